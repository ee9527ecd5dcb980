// Package ticket issues and verifies the signed entry tickets presented
// at the event door.  A ticket is an HS256 JWT binding a registration to
// its guest for a bounded validity window.  The signing secret and TTL
// are injected at construction so the service carries no ambient state.
package ticket

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/event-checkin/internal/model"
)

// Parse errors.  Anything that is not a valid signature over unexpired
// claims collapses into one of these two.
var (
	// ErrMalformed is returned when the token cannot be parsed or its
	// signature does not verify.
	ErrMalformed = errors.New("ticket malformed")

	// ErrExpired is returned when the signature is valid but the token is
	// past its expiry.
	ErrExpired = errors.New("ticket expired")
)

// Claims are the verified contents of an entry ticket.
type Claims struct {
	RegistrationID uint64
	GuestID        uint64
	TicketType     model.TicketType
}

// Service signs and parses entry tickets and invite credentials.
type Service struct {
	secret string
	ttl    time.Duration
}

// NewService constructs a ticket Service.  ttl bounds how long an issued
// ticket remains acceptable at the door.
func NewService(secret string, ttl time.Duration) *Service {
	return &Service{secret: secret, ttl: ttl}
}

// Issue builds and signs an entry ticket for the registration.  The JWT
// carries the registration ID (rid), guest ID (gid), ticket type (ttype),
// issued-at and expiry.  It returns the serialized token and its expiry.
func (s *Service) Issue(reg *model.Registration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"rid":   reg.ID,
		"gid":   reg.GuestID,
		"ttype": string(reg.TicketType),
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueInvite mints a bounded-lifetime invitation credential for an
// approved applicant.  The credential reuses the same signing scheme as
// entry tickets but carries a "purpose" claim so it can never be accepted
// at the door.
func (s *Service) IssueInvite(guestID uint64, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":     guestID,
		"purpose": "invite",
		"iat":     now.Unix(),
		"exp":     exp.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse validates the signature and expiry of a ticket and extracts its
// claims.  It returns ErrExpired for a well-signed but stale token and
// ErrMalformed for everything else that is not valid.
func (s *Service) Parse(token string) (Claims, error) {
	tok, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrMalformed
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrMalformed
	}
	if !tok.Valid {
		return Claims{}, ErrMalformed
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if ok {
		// Entry tickets never carry a purpose claim; reject invite
		// credentials and any other derived token here.
		if _, isInvite := mc["purpose"]; isInvite {
			return Claims{}, ErrMalformed
		}
	} else {
		return Claims{}, ErrMalformed
	}
	rid := claimUint64(mc, "rid")
	gid := claimUint64(mc, "gid")
	ttype, _ := mc["ttype"].(string)
	if rid == 0 || gid == 0 || ttype == "" {
		return Claims{}, ErrMalformed
	}
	return Claims{RegistrationID: rid, GuestID: gid, TicketType: model.TicketType(ttype)}, nil
}

// claimUint64 extracts a numeric claim.  JSON numbers decode as float64.
func claimUint64(mc jwt.MapClaims, key string) uint64 {
	switch v := mc[key].(type) {
	case float64:
		if v < 0 {
			return 0
		}
		return uint64(v)
	case int64:
		return uint64(v)
	case uint64:
		return v
	}
	return 0
}

// ResultKind tags the outcome of a full verification.
type ResultKind int

const (
	// Valid: signature correct, not expired, registration exists and is
	// not cancelled.
	Valid ResultKind = iota
	// Malformed: cannot be parsed or signature fails.
	Malformed
	// Expired: signature valid but past expiry.
	Expired
	// NotFound: well-formed and unexpired, but no matching registration.
	NotFound
	// Cancelled: the bound registration has been cancelled.  Reported as
	// its own kind so the door UI can distinguish a legitimate
	// cancellation from a forged token.
	Cancelled
)

// Result is the outcome of Verifier.Verify.  Claims and Registration are
// populated for every kind that got past parsing.
type Result struct {
	Kind         ResultKind
	Claims       Claims
	Registration *model.Registration
}

// RegistrationSource looks up a registration by ID.  Implementations
// return sql.ErrNoRows when no such registration exists.
type RegistrationSource interface {
	GetByID(ctx context.Context, id uint64) (*model.Registration, error)
}

// Verifier resolves a presented token against the store.  It needs only
// read access to registrations.
type Verifier struct {
	svc  *Service
	regs RegistrationSource
}

// NewVerifier constructs a Verifier over the given ticket service and
// registration source.
func NewVerifier(svc *Service, regs RegistrationSource) *Verifier {
	return &Verifier{svc: svc, regs: regs}
}

// Verify classifies a presented token.  The returned error is non-nil
// only for store failures; every ticket-level defect is expressed as a
// Result kind.
func (v *Verifier) Verify(ctx context.Context, token string) (Result, error) {
	claims, err := v.svc.Parse(token)
	if err != nil {
		if errors.Is(err, ErrExpired) {
			return Result{Kind: Expired}, nil
		}
		return Result{Kind: Malformed}, nil
	}
	reg, err := v.regs.GetByID(ctx, claims.RegistrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{Kind: NotFound, Claims: claims}, nil
		}
		return Result{}, err
	}
	if reg.Cancelled() {
		return Result{Kind: Cancelled, Claims: claims, Registration: reg}, nil
	}
	return Result{Kind: Valid, Claims: claims, Registration: reg}, nil
}
