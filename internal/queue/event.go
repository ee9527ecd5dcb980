// Package queue defines the lifecycle events published to the message
// broker for the notification collaborator, along with the publisher and
// the background consumer.
package queue

// Event type values carried in LifecycleEvent.Type.
const (
	TypeApproved  = "approved"
	TypeCancelled = "cancelled"
	TypeCheckedIn = "checked_in"
)

// LifecycleEvent is published whenever a guest crosses a lifecycle
// boundary the notification system cares about.  It carries enough
// information for downstream consumers to address an email or log the
// fact without querying the primary database.  Delivery is asynchronous;
// the engine never waits on it.
type LifecycleEvent struct {
	Type           string `json:"type"`
	GuestID        uint64 `json:"guest_id"`
	GuestEmail     string `json:"guest_email"`
	GuestName      string `json:"guest_name"`
	RegistrationID uint64 `json:"registration_id"`
	EventID        uint64 `json:"event_id"`
	Reason         string `json:"reason,omitempty"`
	OccurredAt     string `json:"occurred_at"`
}
