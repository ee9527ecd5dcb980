package lifecycle

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/pairing"
	"github.com/iliyamo/event-checkin/internal/queue"
)

// --- Pure transition table ---

func TestCanTransition(t *testing.T) {
	legal := [][2]model.Status{
		{model.StatusInvited, model.StatusRegistered},
		{model.StatusInvited, model.StatusDeclined},
		{model.StatusRegistered, model.StatusApproved},
		{model.StatusRegistered, model.StatusDeclined},
		{model.StatusPendingApproval, model.StatusInvited},
		{model.StatusPendingApproval, model.StatusRejected},
	}
	for _, edge := range legal {
		assert.True(t, CanTransition(edge[0], edge[1]), "%s -> %s should be legal", edge[0], edge[1])
	}

	illegal := [][2]model.Status{
		{model.StatusInvited, model.StatusApproved},
		{model.StatusApproved, model.StatusRegistered},
		{model.StatusDeclined, model.StatusRegistered},
		{model.StatusRejected, model.StatusInvited},
		{model.StatusPendingApproval, model.StatusApproved},
		{model.StatusApproved, model.StatusApproved},
	}
	for _, edge := range illegal {
		assert.False(t, CanTransition(edge[0], edge[1]), "%s -> %s should be illegal", edge[0], edge[1])
	}
}

// --- Cancellation gating ---

func TestCheckCancellable_DistinctFailures(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	// 10 days out, 7 day deadline: allowed.
	assert.NoError(t, CheckCancellable(now, now.Add(10*24*time.Hour), 7, false))

	// 3 days out, 7 day deadline: window closed.
	err := CheckCancellable(now, now.Add(3*24*time.Hour), 7, false)
	assert.ErrorIs(t, err, ErrCancellationWindowClosed)

	// Event already happened.
	err = CheckCancellable(now, now.Add(-time.Hour), 7, false)
	assert.ErrorIs(t, err, ErrEventPassed)

	// Already cancelled wins over everything else.
	err = CheckCancellable(now, now.Add(-time.Hour), 7, true)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
}

// --- In-memory store fake ---

type memStore struct {
	guests map[uint64]*model.Guest
	regs   map[uint64]*model.Registration
	events map[uint64]*model.Event
	nextID uint64
}

func newMemStore() *memStore {
	return &memStore{
		guests: map[uint64]*model.Guest{},
		regs:   map[uint64]*model.Registration{},
		events: map[uint64]*model.Event{},
		nextID: 100,
	}
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx Tx) error) error { return fn(m) }

func (m *memStore) GetGuest(ctx context.Context, id uint64) (*model.Guest, error) {
	g, ok := m.guests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *g
	return &cp, nil
}

func (m *memStore) GetGuestByEmail(ctx context.Context, email string) (*model.Guest, error) {
	for _, g := range m.guests {
		if g.Email == email {
			cp := *g
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memStore) CreateGuest(ctx context.Context, g *model.Guest) error {
	m.nextID++
	g.ID = m.nextID
	cp := *g
	m.guests[g.ID] = &cp
	return nil
}

func (m *memStore) UpdateGuestStatus(ctx context.Context, id uint64, status model.Status) error {
	g, ok := m.guests[id]
	if !ok {
		return sql.ErrNoRows
	}
	g.Status = status
	return nil
}

func (m *memStore) ConvertApplicant(ctx context.Context, id uint64, to model.GuestType, status model.Status) error {
	g, ok := m.guests[id]
	if !ok {
		return sql.ErrNoRows
	}
	g.GuestType = to
	g.Status = status
	return nil
}

func (m *memStore) SetRejection(ctx context.Context, id uint64, reason string) error {
	g, ok := m.guests[id]
	if !ok {
		return sql.ErrNoRows
	}
	g.Status = model.StatusRejected
	g.RejectionReason = &reason
	return nil
}

func (m *memStore) SetPair(ctx context.Context, guestID, partnerID uint64) error {
	g, ok := m.guests[guestID]
	if !ok {
		return sql.ErrNoRows
	}
	p, ok := m.guests[partnerID]
	if !ok {
		return sql.ErrNoRows
	}
	g.PairedWithID = &p.ID
	p.PairedWithID = &g.ID
	return nil
}

func (m *memStore) CreateRegistration(ctx context.Context, r *model.Registration) error {
	m.nextID++
	r.ID = m.nextID
	cp := *r
	m.regs[r.ID] = &cp
	return nil
}

func (m *memStore) GetRegistration(ctx context.Context, id uint64) (*model.Registration, error) {
	r, ok := m.regs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) GetRegistrationByGuest(ctx context.Context, guestID uint64) (*model.Registration, error) {
	for _, r := range m.regs {
		if r.GuestID == guestID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memStore) SetTicket(ctx context.Context, registrationID uint64, token string, issuedAt time.Time) error {
	r, ok := m.regs[registrationID]
	if !ok {
		return sql.ErrNoRows
	}
	r.TicketToken = &token
	r.TicketIssuedAt = &issuedAt
	return nil
}

func (m *memStore) SetCancelled(ctx context.Context, registrationID uint64, at time.Time, reason *string) error {
	r, ok := m.regs[registrationID]
	if !ok {
		return sql.ErrNoRows
	}
	if r.CancelledAt != nil {
		return ErrAlreadyCancelled
	}
	r.CancelledAt = &at
	r.CancellationReason = reason
	return nil
}

func (m *memStore) GetEvent(ctx context.Context, id uint64) (*model.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

// --- Issuer stub ---

type stubIssuer struct{ n int }

func (s *stubIssuer) Issue(reg *model.Registration) (string, time.Time, error) {
	s.n++
	return "ticket-token", time.Now().UTC().Add(48 * time.Hour), nil
}

func (s *stubIssuer) IssueInvite(guestID uint64, ttl time.Duration) (string, time.Time, error) {
	return "invite-token", time.Now().UTC().Add(ttl), nil
}

// --- Service scenarios ---

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func setupService(store *memStore) (*Service, *stubIssuer, *[]queue.LifecycleEvent) {
	issuer := &stubIssuer{}
	var published []queue.LifecycleEvent
	publish := func(ctx context.Context, ev queue.LifecycleEvent) error {
		published = append(published, ev)
		return nil
	}
	svc := NewService(store, issuer, publish, 7, 24*time.Hour)
	return svc, issuer, &published
}

func TestInviteGuest_CreatesInvitedGuest(t *testing.T) {
	store := newMemStore()
	svc, _, published := setupService(store)

	g, p, err := svc.InviteGuest(context.Background(), "vip@example.com", "V. Important", model.GuestTypeVIP, nil)
	require.NoError(t, err)
	require.Nil(t, p)

	assert.Equal(t, model.StatusInvited, g.Status)
	assert.Equal(t, model.GuestTypeVIP, g.GuestType)
	assert.Equal(t, model.StatusInvited, store.guests[g.ID].Status)
	assert.Empty(t, *published)
}

func TestInviteGuest_PairedPartnerLinkedBothWays(t *testing.T) {
	store := newMemStore()
	svc, _, _ := setupService(store)

	g, p, err := svc.InviteGuest(context.Background(), "a@example.com", "A", model.GuestTypePayingPaired,
		&PartnerInfo{Name: "B", Email: "b@example.com"})
	require.NoError(t, err)
	require.NotNil(t, p)

	require.NotNil(t, store.guests[g.ID].PairedWithID)
	require.NotNil(t, store.guests[p.ID].PairedWithID)
	assert.Equal(t, p.ID, *store.guests[g.ID].PairedWithID)
	assert.Equal(t, g.ID, *store.guests[p.ID].PairedWithID)
	assert.Equal(t, model.GuestTypePayingPaired, store.guests[p.ID].GuestType)

	// Either half now resolves the other for seating.
	got := pairing.Resolve(store.guests[g.ID], nil)
	assert.Equal(t, pairing.Resolved, got.Kind)
	assert.Equal(t, p.ID, got.GuestID)
	got = pairing.Resolve(store.guests[p.ID], nil)
	assert.Equal(t, pairing.Resolved, got.Kind)
	assert.Equal(t, g.ID, got.GuestID)
}

func TestInviteGuest_PartnerNeedsPairedType(t *testing.T) {
	store := newMemStore()
	svc, _, _ := setupService(store)

	_, _, err := svc.InviteGuest(context.Background(), "s@example.com", "S", model.GuestTypePayingSingle,
		&PartnerInfo{Name: "B", Email: "b@example.com"})
	assert.ErrorIs(t, err, ErrPartnerNotAllowed)
	assert.Empty(t, store.guests)
}

func TestCompleteRegistration_PayingGuestWaitsForPayment(t *testing.T) {
	store := newMemStore()
	store.guests[1] = &model.Guest{ID: 1, Email: "g@example.com", GuestType: model.GuestTypePayingSingle, Status: model.StatusInvited}
	svc, issuer, published := setupService(store)

	reg, err := svc.CompleteRegistration(context.Background(), 1, 10, model.TicketPaidSingle, nil)
	require.NoError(t, err)

	assert.Equal(t, model.StatusRegistered, store.guests[1].Status)
	assert.False(t, reg.HasTicket())
	assert.Zero(t, issuer.n)
	assert.Empty(t, *published)
}

func TestCompleteRegistration_VIPIsApprovedImmediately(t *testing.T) {
	store := newMemStore()
	store.guests[1] = &model.Guest{ID: 1, Email: "vip@example.com", GuestType: model.GuestTypeVIP, Status: model.StatusInvited}
	svc, issuer, published := setupService(store)

	reg, err := svc.CompleteRegistration(context.Background(), 1, 10, model.TicketVIPFree, nil)
	require.NoError(t, err)

	assert.Equal(t, model.StatusApproved, store.guests[1].Status)
	assert.True(t, reg.HasTicket())
	assert.Equal(t, 1, issuer.n)
	require.Len(t, *published, 1)
	assert.Equal(t, queue.TypeApproved, (*published)[0].Type)
}

func TestCompleteRegistration_StoresPartnerFields(t *testing.T) {
	store := newMemStore()
	store.guests[1] = &model.Guest{ID: 1, GuestType: model.GuestTypePayingPaired, Status: model.StatusInvited}
	svc, _, _ := setupService(store)

	reg, err := svc.CompleteRegistration(context.Background(), 1, 10, model.TicketPaidPaired,
		&PartnerInfo{Name: "Dana", Email: "dana@example.com"})
	require.NoError(t, err)

	require.NotNil(t, reg.PartnerName)
	assert.Equal(t, "Dana", *reg.PartnerName)
	require.NotNil(t, reg.PartnerEmail)
	assert.Equal(t, "dana@example.com", *reg.PartnerEmail)
}

func TestCompleteRegistration_RejectsIllegalStatus(t *testing.T) {
	store := newMemStore()
	store.guests[1] = &model.Guest{ID: 1, Status: model.StatusDeclined}
	svc, _, _ := setupService(store)

	_, err := svc.CompleteRegistration(context.Background(), 1, 10, model.TicketPaidSingle, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReportPaymentOutcome_PaidApprovesAndIssuesTicket(t *testing.T) {
	store := newMemStore()
	store.guests[1] = &model.Guest{ID: 1, Email: "g@example.com", GuestType: model.GuestTypePayingSingle, Status: model.StatusRegistered}
	store.regs[5] = &model.Registration{ID: 5, GuestID: 1, EventID: 10, TicketType: model.TicketPaidSingle}
	svc, issuer, published := setupService(store)

	err := svc.ReportPaymentOutcome(context.Background(), 5, true)
	require.NoError(t, err)

	assert.Equal(t, model.StatusApproved, store.guests[1].Status)
	assert.True(t, store.regs[5].HasTicket())
	assert.Equal(t, 1, issuer.n)
	require.Len(t, *published, 1)
	assert.Equal(t, queue.TypeApproved, (*published)[0].Type)
}

func TestReportPaymentOutcome_PendingIsANoOp(t *testing.T) {
	store := newMemStore()
	store.guests[1] = &model.Guest{ID: 1, Status: model.StatusRegistered}
	store.regs[5] = &model.Registration{ID: 5, GuestID: 1, EventID: 10}
	svc, issuer, _ := setupService(store)

	err := svc.ReportPaymentOutcome(context.Background(), 5, false)
	require.NoError(t, err)

	assert.Equal(t, model.StatusRegistered, store.guests[1].Status)
	assert.False(t, store.regs[5].HasTicket())
	assert.Zero(t, issuer.n)
}

func TestCancel_SetsCancelledAtAndPublishes(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store.guests[1] = &model.Guest{ID: 1, Email: "g@example.com", Status: model.StatusApproved}
	store.regs[5] = &model.Registration{ID: 5, GuestID: 1, EventID: 10}
	store.events[10] = &model.Event{ID: 10, StartsAt: now.Add(10 * 24 * time.Hour)}
	svc, _, published := setupService(store)
	svc.now = fixedClock(now)

	reason := "schedule conflict"
	err := svc.Cancel(context.Background(), 5, &reason)
	require.NoError(t, err)

	require.NotNil(t, store.regs[5].CancelledAt)
	assert.Equal(t, now, *store.regs[5].CancelledAt)
	require.Len(t, *published, 1)
	assert.Equal(t, queue.TypeCancelled, (*published)[0].Type)
	assert.Equal(t, "schedule conflict", (*published)[0].Reason)
}

// staleReadStore hands out registration reads taken before a concurrent
// cancellation committed, so the window check passes on a row that is
// already cancelled underneath.
type staleReadStore struct{ *memStore }

func (s *staleReadStore) WithTx(ctx context.Context, fn func(tx Tx) error) error { return fn(s) }

func (s *staleReadStore) GetRegistration(ctx context.Context, id uint64) (*model.Registration, error) {
	r, err := s.memStore.GetRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	r.CancelledAt = nil
	r.CancellationReason = nil
	return r, nil
}

func TestCancel_RacingCancellationGetsAlreadyCancelled(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	first := now.Add(-time.Minute)
	store.guests[1] = &model.Guest{ID: 1, Email: "g@example.com", Status: model.StatusApproved}
	store.regs[5] = &model.Registration{ID: 5, GuestID: 1, EventID: 10, CancelledAt: &first}
	store.events[10] = &model.Event{ID: 10, StartsAt: now.Add(10 * 24 * time.Hour)}

	var published []queue.LifecycleEvent
	publish := func(ctx context.Context, ev queue.LifecycleEvent) error {
		published = append(published, ev)
		return nil
	}
	svc := NewService(&staleReadStore{memStore: store}, &stubIssuer{}, publish, 7, 24*time.Hour)
	svc.now = fixedClock(now)

	err := svc.Cancel(context.Background(), 5, nil)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	// The first cancellation's timestamp survives; nothing is published
	// for the loser.
	assert.Equal(t, first, *store.regs[5].CancelledAt)
	assert.Empty(t, published)
}

func TestCancel_WindowClosedLeavesRegistrationUntouched(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store.guests[1] = &model.Guest{ID: 1, Status: model.StatusApproved}
	store.regs[5] = &model.Registration{ID: 5, GuestID: 1, EventID: 10}
	store.events[10] = &model.Event{ID: 10, StartsAt: now.Add(3 * 24 * time.Hour)}
	svc, _, published := setupService(store)
	svc.now = fixedClock(now)

	err := svc.Cancel(context.Background(), 5, nil)
	assert.ErrorIs(t, err, ErrCancellationWindowClosed)
	assert.Nil(t, store.regs[5].CancelledAt)
	assert.Empty(t, *published)
}

func TestCancel_TwiceReportsAlreadyCancelled(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store.guests[1] = &model.Guest{ID: 1, Status: model.StatusApproved}
	store.regs[5] = &model.Registration{ID: 5, GuestID: 1, EventID: 10}
	store.events[10] = &model.Event{ID: 10, StartsAt: now.Add(30 * 24 * time.Hour)}
	svc, _, _ := setupService(store)
	svc.now = fixedClock(now)

	require.NoError(t, svc.Cancel(context.Background(), 5, nil))
	err := svc.Cancel(context.Background(), 5, nil)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
}

func TestApproveApplicant_ConvertsAndMintsInvite(t *testing.T) {
	store := newMemStore()
	store.guests[1] = &model.Guest{ID: 1, GuestType: model.GuestTypeApplicant, Status: model.StatusPendingApproval}
	svc, _, _ := setupService(store)

	invite, exp, err := svc.ApproveApplicant(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "invite-token", invite)
	assert.True(t, exp.After(time.Now().UTC()))
	assert.Equal(t, model.GuestTypePayingSingle, store.guests[1].GuestType)
	assert.Equal(t, model.StatusInvited, store.guests[1].Status)
}

func TestRejectApplicant_StoresReasonMintsNothing(t *testing.T) {
	store := newMemStore()
	store.guests[1] = &model.Guest{ID: 1, GuestType: model.GuestTypeApplicant, Status: model.StatusPendingApproval}
	svc, _, _ := setupService(store)

	err := svc.RejectApplicant(context.Background(), 1, "capacity reached")
	require.NoError(t, err)

	assert.Equal(t, model.StatusRejected, store.guests[1].Status)
	require.NotNil(t, store.guests[1].RejectionReason)
	assert.Equal(t, "capacity reached", *store.guests[1].RejectionReason)
}

func TestRejectApplicant_OnlyFromPendingApproval(t *testing.T) {
	store := newMemStore()
	store.guests[1] = &model.Guest{ID: 1, Status: model.StatusInvited}
	svc, _, _ := setupService(store)

	err := svc.RejectApplicant(context.Background(), 1, "nope")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReissueTicket_ReplacesStoredToken(t *testing.T) {
	store := newMemStore()
	old := "old-token"
	store.guests[1] = &model.Guest{ID: 1, Status: model.StatusApproved}
	store.regs[5] = &model.Registration{ID: 5, GuestID: 1, EventID: 10, TicketToken: &old}
	svc, issuer, _ := setupService(store)

	token, _, err := svc.ReissueTicket(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, "ticket-token", token)
	assert.Equal(t, "ticket-token", *store.regs[5].TicketToken)
	assert.Equal(t, 1, issuer.n)
}

func TestReissueTicket_RefusesCancelledRegistration(t *testing.T) {
	store := newMemStore()
	now := time.Now().UTC()
	store.guests[1] = &model.Guest{ID: 1, Status: model.StatusApproved}
	store.regs[5] = &model.Registration{ID: 5, GuestID: 1, EventID: 10, CancelledAt: &now}
	svc, _, _ := setupService(store)

	_, _, err := svc.ReissueTicket(context.Background(), 5)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
}
