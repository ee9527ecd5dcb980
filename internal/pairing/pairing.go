// Package pairing resolves the partner of a paying_paired guest.  The
// resolution is pure and is shared verbatim by the seating allocator and
// the reporting layer so that both agree on who counts as a pair.
package pairing

import "github.com/iliyamo/event-checkin/internal/model"

// Kind tags the outcome of a partner resolution.
type Kind int

const (
	// None means the guest has no resolvable partner and is treated as a
	// single for seating purposes.
	None Kind = iota
	// Resolved means the partner exists as a separate guest record.
	Resolved
	// Unresolved means the partner is known only as name/email fields on
	// the registration; no guest record exists yet, so no second seat can
	// be bound to a concrete guest.
	Unresolved
)

// Partner is the tagged result of resolving a guest's partner.
type Partner struct {
	Kind    Kind
	GuestID uint64 // set when Kind == Resolved
	Name    string // set when Kind == Unresolved
	Email   string // set when Kind == Unresolved
}

// Resolve determines the partner of a guest, in priority order: the
// explicit paired_with back-reference on the guest record, then the
// partner fields stored on the registration, then nothing.  Guests that
// are not paying_paired always resolve to None.  Resolve never fails:
// paired status without a resolvable partner degrades to None rather
// than erroring.
func Resolve(g *model.Guest, reg *model.Registration) Partner {
	if g == nil || g.GuestType != model.GuestTypePayingPaired {
		return Partner{Kind: None}
	}
	if g.PairedWithID != nil && *g.PairedWithID != 0 {
		return Partner{Kind: Resolved, GuestID: *g.PairedWithID}
	}
	if reg != nil {
		name, email := "", ""
		if reg.PartnerName != nil {
			name = *reg.PartnerName
		}
		if reg.PartnerEmail != nil {
			email = *reg.PartnerEmail
		}
		if name != "" || email != "" {
			return Partner{Kind: Unresolved, Name: name, Email: email}
		}
	}
	return Partner{Kind: None}
}
