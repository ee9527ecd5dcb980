package ticket

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-checkin/internal/model"
)

func sampleRegistration() *model.Registration {
	return &model.Registration{
		ID:         7,
		GuestID:    3,
		EventID:    1,
		TicketType: model.TicketPaidSingle,
	}
}

func TestIssueAndParse_RoundTrip(t *testing.T) {
	svc := NewService("door-secret", 48*time.Hour)

	token, exp, err := svc.Issue(sampleRegistration())
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now().UTC()))

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), claims.RegistrationID)
	assert.Equal(t, uint64(3), claims.GuestID)
	assert.Equal(t, model.TicketPaidSingle, claims.TicketType)
}

func TestParse_Expired(t *testing.T) {
	svc := NewService("door-secret", -time.Minute)

	token, _, err := svc.Issue(sampleRegistration())
	require.NoError(t, err)

	_, err = svc.Parse(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestParse_GarbageIsMalformed(t *testing.T) {
	svc := NewService("door-secret", time.Hour)

	_, err := svc.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParse_WrongSecretIsMalformed(t *testing.T) {
	issuer := NewService("door-secret", time.Hour)
	forged := NewService("other-secret", time.Hour)

	token, _, err := issuer.Issue(sampleRegistration())
	require.NoError(t, err)

	_, err = forged.Parse(token)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParse_RejectsInviteCredential(t *testing.T) {
	svc := NewService("door-secret", time.Hour)

	invite, _, err := svc.IssueInvite(3, 24*time.Hour)
	require.NoError(t, err)

	_, err = svc.Parse(invite)
	assert.ErrorIs(t, err, ErrMalformed)
}

// --- Verifier ---

type stubRegSource struct {
	getFn func(ctx context.Context, id uint64) (*model.Registration, error)
}

func (s *stubRegSource) GetByID(ctx context.Context, id uint64) (*model.Registration, error) {
	return s.getFn(ctx, id)
}

func TestVerify_Valid(t *testing.T) {
	svc := NewService("door-secret", time.Hour)
	reg := sampleRegistration()
	token, _, err := svc.Issue(reg)
	require.NoError(t, err)

	v := NewVerifier(svc, &stubRegSource{getFn: func(ctx context.Context, id uint64) (*model.Registration, error) {
		assert.Equal(t, uint64(7), id)
		return reg, nil
	}})

	res, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, Valid, res.Kind)
	assert.Equal(t, uint64(7), res.Claims.RegistrationID)
	assert.Same(t, reg, res.Registration)
}

func TestVerify_Cancelled(t *testing.T) {
	svc := NewService("door-secret", time.Hour)
	reg := sampleRegistration()
	now := time.Now().UTC()
	reg.CancelledAt = &now
	token, _, err := svc.Issue(reg)
	require.NoError(t, err)

	v := NewVerifier(svc, &stubRegSource{getFn: func(ctx context.Context, id uint64) (*model.Registration, error) {
		return reg, nil
	}})

	res, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, res.Kind)
}

func TestVerify_NotFound(t *testing.T) {
	svc := NewService("door-secret", time.Hour)
	token, _, err := svc.Issue(sampleRegistration())
	require.NoError(t, err)

	v := NewVerifier(svc, &stubRegSource{getFn: func(ctx context.Context, id uint64) (*model.Registration, error) {
		return nil, sql.ErrNoRows
	}})

	res, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, NotFound, res.Kind)
}

func TestVerify_StoreErrorPropagates(t *testing.T) {
	svc := NewService("door-secret", time.Hour)
	token, _, err := svc.Issue(sampleRegistration())
	require.NoError(t, err)

	boom := errors.New("connection reset")
	v := NewVerifier(svc, &stubRegSource{getFn: func(ctx context.Context, id uint64) (*model.Registration, error) {
		return nil, boom
	}})

	_, err = v.Verify(context.Background(), token)
	assert.ErrorIs(t, err, boom)
}

func TestVerify_MalformedNeverHitsStore(t *testing.T) {
	svc := NewService("door-secret", time.Hour)
	v := NewVerifier(svc, &stubRegSource{getFn: func(ctx context.Context, id uint64) (*model.Registration, error) {
		t.Fatal("store must not be queried for malformed tokens")
		return nil, nil
	}})

	res, err := v.Verify(context.Background(), "garbage")
	require.NoError(t, err)
	assert.Equal(t, Malformed, res.Kind)
}
