// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// check-in processor and the handlers to distinguish between different
// failure scenarios without string matching.
package repository

import "errors"

// ErrDuplicateCheckin is returned by CheckinRepo.Insert when a
// non-override check-in record already exists for the registration.  It
// is the store-level signal the processor turns into DuplicateDetected;
// under concurrent submissions the unique key on dedupe_key guarantees
// only one insert wins.
var ErrDuplicateCheckin = errors.New("checkin already recorded")

// ErrCheckinNotFound is returned when no check-in record exists for a
// registration.
var ErrCheckinNotFound = errors.New("checkin not found")

// ErrEmailExists is returned when creating a guest or staff account with
// an email that is already taken.
var ErrEmailExists = errors.New("email already exists")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state, such as deleting a table that still has assignments.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
