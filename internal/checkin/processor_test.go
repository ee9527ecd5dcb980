package checkin

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/queue"
	"github.com/iliyamo/event-checkin/internal/repository"
	"github.com/iliyamo/event-checkin/internal/ticket"
)

// memCheckinStore enforces the same per-registration uniqueness contract
// as the MySQL unique key on dedupe_key.
type memCheckinStore struct {
	records []*model.CheckinRecord
	nextID  uint64
}

func (m *memCheckinStore) Insert(ctx context.Context, rec *model.CheckinRecord) error {
	if rec.DedupeKey != nil {
		for _, r := range m.records {
			if r.DedupeKey != nil && *r.DedupeKey == *rec.DedupeKey {
				return repository.ErrDuplicateCheckin
			}
		}
	}
	m.nextID++
	rec.ID = m.nextID
	rec.CreatedAt = time.Now().UTC()
	cp := *rec
	m.records = append(m.records, &cp)
	return nil
}

func (m *memCheckinStore) GetCurrentByRegistration(ctx context.Context, registrationID uint64) (*model.CheckinRecord, error) {
	for _, r := range m.records {
		if r.RegistrationID == registrationID && !r.IsOverride {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrCheckinNotFound
}

type memRegSource struct {
	regs map[uint64]*model.Registration
}

func (m *memRegSource) GetByID(ctx context.Context, id uint64) (*model.Registration, error) {
	r, ok := m.regs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

// setup builds a processor with one approved registration holding a
// freshly issued ticket, and returns the token to present.
func setup(t *testing.T) (*Processor, *memCheckinStore, *memRegSource, string) {
	t.Helper()
	svc := ticket.NewService("door-secret", time.Hour)
	reg := &model.Registration{ID: 7, GuestID: 3, EventID: 1, TicketType: model.TicketPaidSingle}
	token, _, err := svc.Issue(reg)
	require.NoError(t, err)
	reg.TicketToken = &token

	regs := &memRegSource{regs: map[uint64]*model.Registration{7: reg}}
	store := &memCheckinStore{}
	p := NewProcessor(ticket.NewVerifier(svc, regs), store, nil)
	return p, store, regs, token
}

func TestSubmit_AcceptedThenDuplicate(t *testing.T) {
	p, store, _, token := setup(t)

	first, err := p.Submit(context.Background(), token, SubmitOptions{StaffID: 9})
	require.NoError(t, err)
	assert.Equal(t, Accepted, first.Kind)
	require.NotNil(t, first.Record)
	assert.Equal(t, uint64(7), first.Record.RegistrationID)
	assert.Equal(t, model.CheckinQRScan, first.Record.Method)

	second, err := p.Submit(context.Background(), token, SubmitOptions{StaffID: 9})
	require.NoError(t, err)
	assert.Equal(t, DuplicateDetected, second.Kind)
	require.NotNil(t, second.Original)
	assert.Equal(t, first.Record.ID, second.Original.ID)
	assert.Equal(t, first.Record.CreatedAt, second.Original.CreatedAt)

	// exactly one record exists afterwards
	assert.Len(t, store.records, 1)
}

func TestSubmit_RejectionMapping(t *testing.T) {
	p, _, regs, token := setup(t)

	// Garbage token.
	out, err := p.Submit(context.Background(), "garbage", SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, Rejected, out.Kind)
	assert.Equal(t, ReasonTokenInvalid, out.Reason)

	// Cancelled registration.
	now := time.Now().UTC()
	regs.regs[7].CancelledAt = &now
	out, err = p.Submit(context.Background(), token, SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, Rejected, out.Kind)
	assert.Equal(t, ReasonRegistrationCancelled, out.Reason)

	// Unknown registration.
	delete(regs.regs, 7)
	out, err = p.Submit(context.Background(), token, SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, Rejected, out.Kind)
	assert.Equal(t, ReasonRegistrationNotFound, out.Reason)
}

func TestSubmit_ExpiredTicket(t *testing.T) {
	svc := ticket.NewService("door-secret", -time.Minute)
	reg := &model.Registration{ID: 7, GuestID: 3}
	token, _, err := svc.Issue(reg)
	require.NoError(t, err)
	reg.TicketToken = &token

	regs := &memRegSource{regs: map[uint64]*model.Registration{7: reg}}
	p := NewProcessor(ticket.NewVerifier(svc, regs), &memCheckinStore{}, nil)

	out, err := p.Submit(context.Background(), token, SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, Rejected, out.Kind)
	assert.Equal(t, ReasonTokenExpired, out.Reason)
}

func TestSubmit_SupersededTokenRejected(t *testing.T) {
	p, store, regs, oldToken := setup(t)

	// Re-issue: the registration now stores a different current token.
	svc := ticket.NewService("door-secret", time.Hour)
	fresh, _, err := svc.Issue(regs.regs[7])
	require.NoError(t, err)
	regs.regs[7].TicketToken = &fresh

	out, err := p.Submit(context.Background(), oldToken, SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, Rejected, out.Kind)
	assert.Equal(t, ReasonTokenInvalid, out.Reason)
	assert.Empty(t, store.records)

	// The current token is accepted.
	out, err = p.Submit(context.Background(), fresh, SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, Accepted, out.Kind)
}

func TestSubmit_OverrideAppendsAlongsideOriginal(t *testing.T) {
	p, store, _, token := setup(t)

	first, err := p.Submit(context.Background(), token, SubmitOptions{StaffID: 9})
	require.NoError(t, err)
	require.Equal(t, Accepted, first.Kind)

	over, err := p.Submit(context.Background(), token, SubmitOptions{StaffID: 4, Override: true})
	require.NoError(t, err)
	assert.Equal(t, OverrideAccepted, over.Kind)
	require.NotNil(t, over.Record)
	assert.True(t, over.Record.IsOverride)
	assert.Equal(t, model.CheckinOverride, over.Record.Method)
	assert.Equal(t, uint64(4), over.Record.StaffID)
	assert.Nil(t, over.Record.DedupeKey)
	require.NotNil(t, over.Original)
	assert.Equal(t, first.Record.ID, over.Original.ID)

	// Both records preserved for audit.
	assert.Len(t, store.records, 2)
}

func TestSubmit_OverrideWithoutPriorRecordIsFirstCheckin(t *testing.T) {
	p, store, _, token := setup(t)

	out, err := p.Submit(context.Background(), token, SubmitOptions{StaffID: 4, Override: true})
	require.NoError(t, err)
	assert.Equal(t, Accepted, out.Kind)
	require.NotNil(t, out.Record)
	assert.False(t, out.Record.IsOverride)
	assert.Len(t, store.records, 1)
}

// staleLookupStore simulates a submission committing between the
// override path's existence check and its insert: the first lookup
// misses even though a record already exists.
type staleLookupStore struct {
	memCheckinStore
	missNextLookup bool
}

func (s *staleLookupStore) GetCurrentByRegistration(ctx context.Context, registrationID uint64) (*model.CheckinRecord, error) {
	if s.missNextLookup {
		s.missNextLookup = false
		return nil, repository.ErrCheckinNotFound
	}
	return s.memCheckinStore.GetCurrentByRegistration(ctx, registrationID)
}

func TestSubmit_OverrideRacingFirstCheckinAppendsOverride(t *testing.T) {
	svc := ticket.NewService("door-secret", time.Hour)
	reg := &model.Registration{ID: 7, GuestID: 3, EventID: 1, TicketType: model.TicketPaidSingle}
	token, _, err := svc.Issue(reg)
	require.NoError(t, err)
	reg.TicketToken = &token

	regs := &memRegSource{regs: map[uint64]*model.Registration{7: reg}}
	store := &staleLookupStore{missNextLookup: true}
	p := NewProcessor(ticket.NewVerifier(svc, regs), store, nil)

	// Another station's record lands before the override path inserts.
	dedupe := reg.ID
	require.NoError(t, store.memCheckinStore.Insert(context.Background(), &model.CheckinRecord{
		RegistrationID: reg.ID,
		GuestID:        reg.GuestID,
		Method:         model.CheckinQRScan,
		StaffID:        9,
		DedupeKey:      &dedupe,
	}))

	out, err := p.Submit(context.Background(), token, SubmitOptions{StaffID: 4, Override: true})
	require.NoError(t, err)
	assert.Equal(t, OverrideAccepted, out.Kind)
	require.NotNil(t, out.Record)
	assert.True(t, out.Record.IsOverride)
	require.NotNil(t, out.Original)
	assert.Equal(t, uint64(9), out.Original.StaffID)
	assert.Len(t, store.records, 2)
}

func TestSubmit_OverrideRequiresStaff(t *testing.T) {
	p, _, _, token := setup(t)

	_, err := p.Submit(context.Background(), token, SubmitOptions{Override: true})
	assert.ErrorIs(t, err, ErrOverrideRequiresStaff)
}

func TestSubmit_AcceptedPublishesCheckedInEvent(t *testing.T) {
	svc := ticket.NewService("door-secret", time.Hour)
	reg := &model.Registration{ID: 7, GuestID: 3, EventID: 1, TicketType: model.TicketPaidSingle}
	token, _, err := svc.Issue(reg)
	require.NoError(t, err)
	reg.TicketToken = &token

	regs := &memRegSource{regs: map[uint64]*model.Registration{7: reg}}
	var published []queue.LifecycleEvent
	capture := func(ctx context.Context, ev queue.LifecycleEvent) error {
		published = append(published, ev)
		return nil
	}
	p := NewProcessor(ticket.NewVerifier(svc, regs), &memCheckinStore{}, capture)

	out, err := p.Submit(context.Background(), token, SubmitOptions{StaffID: 9})
	require.NoError(t, err)
	require.Equal(t, Accepted, out.Kind)
	require.Len(t, published, 1)
	assert.Equal(t, queue.TypeCheckedIn, published[0].Type)
	assert.Equal(t, uint64(3), published[0].GuestID)
	assert.Equal(t, uint64(7), published[0].RegistrationID)

	// A duplicate scan writes nothing and publishes nothing.
	dup, err := p.Submit(context.Background(), token, SubmitOptions{StaffID: 9})
	require.NoError(t, err)
	assert.Equal(t, DuplicateDetected, dup.Kind)
	assert.Len(t, published, 1)
}

func TestSubmit_PairedGuestsCheckInIndependently(t *testing.T) {
	svc := ticket.NewService("door-secret", time.Hour)
	regG := &model.Registration{ID: 10, GuestID: 1, TicketType: model.TicketPaidPaired}
	regP := &model.Registration{ID: 11, GuestID: 2, TicketType: model.TicketPaidPaired}
	tokG, _, err := svc.Issue(regG)
	require.NoError(t, err)
	tokP, _, err := svc.Issue(regP)
	require.NoError(t, err)
	regG.TicketToken = &tokG
	regP.TicketToken = &tokP

	regs := &memRegSource{regs: map[uint64]*model.Registration{10: regG, 11: regP}}
	store := &memCheckinStore{}
	p := NewProcessor(ticket.NewVerifier(svc, regs), store, nil)

	outG, err := p.Submit(context.Background(), tokG, SubmitOptions{StaffID: 9})
	require.NoError(t, err)
	assert.Equal(t, Accepted, outG.Kind)

	dup, err := p.Submit(context.Background(), tokG, SubmitOptions{StaffID: 9})
	require.NoError(t, err)
	assert.Equal(t, DuplicateDetected, dup.Kind)

	outP, err := p.Submit(context.Background(), tokP, SubmitOptions{StaffID: 9})
	require.NoError(t, err)
	assert.Equal(t, Accepted, outP.Kind)

	assert.Len(t, store.records, 2)
}
