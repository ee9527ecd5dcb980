package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-checkin/internal/checkin"
	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/repository"
	"github.com/iliyamo/event-checkin/internal/ticket"
)

type stubRegSource struct {
	regs map[uint64]*model.Registration
}

func (s *stubRegSource) GetByID(ctx context.Context, id uint64) (*model.Registration, error) {
	r, ok := s.regs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return r, nil
}

type stubCheckinStore struct {
	records []*model.CheckinRecord
}

func (s *stubCheckinStore) Insert(ctx context.Context, rec *model.CheckinRecord) error {
	if rec.DedupeKey != nil {
		for _, existing := range s.records {
			if existing.DedupeKey != nil && *existing.DedupeKey == *rec.DedupeKey {
				return repository.ErrDuplicateCheckin
			}
		}
	}
	rec.ID = uint64(len(s.records) + 1)
	rec.CreatedAt = time.Now().UTC()
	s.records = append(s.records, rec)
	return nil
}

func (s *stubCheckinStore) GetCurrentByRegistration(ctx context.Context, registrationID uint64) (*model.CheckinRecord, error) {
	for _, rec := range s.records {
		if rec.RegistrationID == registrationID && !rec.IsOverride {
			return rec, nil
		}
	}
	return nil, repository.ErrCheckinNotFound
}

func newCheckinFixture(t *testing.T) (*CheckinHandler, *ticket.Service, *stubRegSource, *stubCheckinStore) {
	t.Helper()
	svc := ticket.NewService("handler-test-secret", time.Hour)
	source := &stubRegSource{regs: map[uint64]*model.Registration{}}
	store := &stubCheckinStore{}
	proc := checkin.NewProcessor(ticket.NewVerifier(svc, source), store, nil)
	return &CheckinHandler{Processor: proc}, svc, source, store
}

func issueFor(t *testing.T, svc *ticket.Service, source *stubRegSource, regID, guestID uint64) string {
	t.Helper()
	reg := &model.Registration{ID: regID, GuestID: guestID, TicketType: model.TicketPaidSingle}
	token, _, err := svc.Issue(reg)
	require.NoError(t, err)
	reg.TicketToken = &token
	source.regs[regID] = reg
	return token
}

func doCheckin(h *CheckinHandler, body string, role string, staffID float64) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/checkin", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if role != "" {
		c.Set("role", role)
		c.Set("staff_id", staffID)
	}
	return rec, h.Submit(c)
}

func TestCheckinSubmitAccepted(t *testing.T) {
	h, svc, source, _ := newCheckinFixture(t)
	token := issueFor(t, svc, source, 1, 10)

	rec, err := doCheckin(h, `{"ticket":"`+token+`"}`, "STAFF", 3)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp checkinResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Result)
	require.NotNil(t, resp.Record)
	assert.Equal(t, uint64(1), resp.Record.RegistrationID)
	assert.Equal(t, "qr_scan", resp.Record.Method)
}

func TestCheckinSubmitDuplicateAnswers200WithOriginal(t *testing.T) {
	h, svc, source, _ := newCheckinFixture(t)
	token := issueFor(t, svc, source, 1, 10)

	rec, err := doCheckin(h, `{"ticket":"`+token+`"}`, "STAFF", 3)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, err = doCheckin(h, `{"ticket":"`+token+`"}`, "STAFF", 4)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp checkinResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "duplicate", resp.Result)
	require.NotNil(t, resp.Original)
	assert.Equal(t, uint64(1), resp.Original.RegistrationID)
}

func TestCheckinSubmitRejectsGarbageToken(t *testing.T) {
	h, _, _, store := newCheckinFixture(t)

	rec, err := doCheckin(h, `{"ticket":"not-a-jwt"}`, "STAFF", 3)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp checkinResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rejected", resp.Result)
	assert.Equal(t, "token_invalid", resp.Reason)
	assert.Empty(t, store.records)
}

func TestCheckinOverrideRequiresAdminRole(t *testing.T) {
	h, svc, source, store := newCheckinFixture(t)
	token := issueFor(t, svc, source, 1, 10)

	rec, err := doCheckin(h, `{"ticket":"`+token+`","override":true}`, "STAFF", 3)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, store.records)
}

func TestCheckinOverrideAppendsRecord(t *testing.T) {
	h, svc, source, store := newCheckinFixture(t)
	token := issueFor(t, svc, source, 1, 10)

	rec, err := doCheckin(h, `{"ticket":"`+token+`"}`, "STAFF", 3)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, err = doCheckin(h, `{"ticket":"`+token+`","override":true}`, "ADMIN", 9)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp checkinResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "override_accepted", resp.Result)
	require.NotNil(t, resp.Original)
	require.Len(t, store.records, 2)
	assert.True(t, store.records[1].IsOverride)
	assert.Equal(t, uint64(9), store.records[1].StaffID)
}

func TestCheckinSubmitMissingTicket(t *testing.T) {
	h, _, _, _ := newCheckinFixture(t)

	rec, err := doCheckin(h, `{}`, "STAFF", 3)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
