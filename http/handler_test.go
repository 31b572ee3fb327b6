package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketshop/command"
	"ticketshop/entity"
	ticketsHTTP "ticketshop/http"
	"ticketshop/reconcile"
)

type engineMock struct {
	lock sync.Mutex

	checkout reconcile.Checkout
	result   reconcile.Result
	ticket   entity.Ticket
	err      error

	signatures []reconcile.Signature
	verified   []string
}

func (m *engineMock) Initialize(context.Context, entity.Intake) (reconcile.Checkout, error) {
	return m.checkout, m.err
}

func (m *engineMock) HandleNotification(_ context.Context, _ []byte, sig reconcile.Signature) (reconcile.Result, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.signatures = append(m.signatures, sig)
	return m.result, m.err
}

func (m *engineMock) Verify(_ context.Context, ticketID, transactionID string) (entity.Ticket, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.verified = append(m.verified, ticketID+"/"+transactionID)
	return m.ticket, m.err
}

type ticketsMock map[string]entity.Ticket

func (m ticketsMock) GetByTicketID(_ context.Context, ticketID string) (entity.Ticket, error) {
	t, ok := m[ticketID]
	if !ok {
		return entity.Ticket{}, entity.ErrTicketNotFound
	}
	return t, nil
}

func (m ticketsMock) List(context.Context) ([]entity.Ticket, error) {
	var tickets []entity.Ticket
	for _, t := range m {
		tickets = append(tickets, t)
	}
	return tickets, nil
}

type artifactsMock struct {
	lock     sync.Mutex
	produced []string
}

func (m *artifactsMock) Produce(_ context.Context, ticket entity.Ticket) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.produced = append(m.produced, ticket.TicketID)
	return "tickets/" + ticket.TicketID + ".pdf", nil
}

func (m *artifactsMock) Load(context.Context, entity.Ticket) ([]byte, error) {
	return []byte("%PDF-1.3 test"), nil
}

type commandBusMock struct {
	lock     sync.Mutex
	commands []any
}

func (m *commandBusMock) Send(_ context.Context, cmd any) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.commands = append(m.commands, cmd)
	return nil
}

type fixture struct {
	engine    *engineMock
	artifacts *artifactsMock
	commands  *commandBusMock
	server    http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		engine:    &engineMock{},
		artifacts: &artifactsMock{},
		commands:  &commandBusMock{},
	}

	tickets := ticketsMock{
		"RSG-PPOOL-111111": ticket("RSG-PPOOL-111111", entity.StatusSuccessful),
		"RSG-PPOOL-222222": ticket("RSG-PPOOL-222222", entity.StatusPending),
	}

	f.server = ticketsHTTP.NewRouter(ticketsHTTP.Deps{
		Engine:     f.engine,
		Tickets:    tickets,
		Artifacts:  f.artifacts,
		CommandBus: f.commands,
	})

	return f
}

func (f *fixture) do(t *testing.T, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func ticket(ticketID string, status entity.PaymentStatus) entity.Ticket {
	return entity.Ticket{
		ID:            "5f0e9a0c-1f1d-4b9a-9d8e-1b2c3d4e5f60",
		TicketID:      ticketID,
		Name:          "Ada Lovelace",
		Email:         "ada@example.com",
		Gender:        entity.GenderFemale,
		Amount:        3000,
		PaymentStatus: status,
		CreatedAt:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestHealth(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestPostPaymentInitialize(t *testing.T) {
	f := newFixture()
	f.engine.checkout = reconcile.Checkout{
		PaymentLink: "https://checkout.example.com/pay/abc",
		Ticket:      ticket("RSG-PPOOL-333333", entity.StatusPending),
	}

	rec := f.do(t, http.MethodPost, "/payment/initialize",
		`{"name":"Ada Lovelace","email":"ada@example.com","gender":"female","amount":3000}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "https://checkout.example.com/pay/abc", body["paymentLink"])
	assert.Equal(t, "RSG-PPOOL-333333", body["ticketId"])
}

func TestPostPaymentInitialize_errors(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{
			name:     "malformed body",
			body:     `{"amount":"three thousand"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid intake",
			body:     `{"name":"A"}`,
			err:      entity.ValidationError{Err: errors.New("name: too short")},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "gateway down",
			body:     `{"name":"Ada Lovelace","email":"ada@example.com","gender":"female","amount":3000}`,
			err:      entity.UpstreamError{Op: "initialize charge", StatusCode: http.StatusBadGateway},
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.engine.err = tc.err

			rec := f.do(t, http.MethodPost, "/payment/initialize", tc.body, nil)
			assert.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec)["message"])
		})
	}
}

func TestPostPaymentWebhook(t *testing.T) {
	f := newFixture()
	f.engine.result = reconcile.Result{Outcome: reconcile.OutcomeProcessed, Message: "payment processed"}

	rec := f.do(t, http.MethodPost, "/webhooks/payment", `{"event":"charge.completed"}`, map[string]string{
		"flutterwave-signature": "c2lnbmF0dXJl",
		"verif-hash":            "legacy",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "processed", body["status"])
	assert.Equal(t, "payment processed", body["message"])

	require.Len(t, f.engine.signatures, 1)
	assert.Equal(t, reconcile.Signature{HMAC: "c2lnbmF0dXJl", LegacyHash: "legacy"}, f.engine.signatures[0])
}

func TestPostPaymentWebhook_errors(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{
			name:     "bad signature",
			err:      entity.AuthenticationError{Reason: "signature mismatch"},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "malformed payload",
			err:      entity.ValidationError{Err: errors.New("notification must have event and data")},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown ticket",
			err:      entity.ErrTicketNotFound,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "store down",
			err:      errors.New("connection refused"),
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.engine.err = tc.err

			rec := f.do(t, http.MethodPost, "/webhooks/payment", `{}`, nil)
			assert.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestGetTicketVerify(t *testing.T) {
	f := newFixture()
	f.engine.ticket = ticket("RSG-PPOOL-222222", entity.StatusSuccessful)

	rec := f.do(t, http.MethodGet, "/tickets/RSG-PPOOL-222222/verify?transactionId=4242", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "successful", decode(t, rec)["paymentStatus"])
	assert.Equal(t, []string{"RSG-PPOOL-222222/4242"}, f.engine.verified)
}

func TestGetTicketVerify_mismatch(t *testing.T) {
	f := newFixture()
	f.engine.err = entity.MismatchError{
		Reason: "amount does not match",
		Ticket: ticket("RSG-PPOOL-222222", entity.StatusPending),
	}

	rec := f.do(t, http.MethodGet, "/tickets/RSG-PPOOL-222222/verify?transaction_id=4242", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "Verification mismatch", body["message"])
	assert.Equal(t, "amount does not match", body["reason"])

	ticketBody, ok := body["ticket"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pending", ticketBody["paymentStatus"])
}

func TestGetTicket(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/tickets/RSG-PPOOL-222222", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RSG-PPOOL-222222", decode(t, rec)["ticketId"])

	rec = f.do(t, http.MethodGet, "/tickets/RSG-PPOOL-999999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTickets(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/tickets", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tickets []entity.Ticket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tickets))
	assert.Len(t, tickets, 2)
}

func TestGetTicketPDF(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/tickets/RSG-PPOOL-111111.pdf", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.3 test", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/tickets/RSG-PPOOL-222222.pdf", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "pending ticket has no document")

	rec = f.do(t, http.MethodGet, "/tickets/RSG-PPOOL-999999.pdf", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostTicketResendEmail(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/tickets/RSG-PPOOL-111111/resend-email", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "/tickets/RSG-PPOOL-111111.pdf", body["downloadUrl"])

	assert.Equal(t, []string{"RSG-PPOOL-111111"}, f.artifacts.produced)
	require.Len(t, f.commands.commands, 1)
	cmd, ok := f.commands.commands[0].(command.SendTicketEmail)
	require.True(t, ok)
	assert.Equal(t, "RSG-PPOOL-111111", cmd.TicketID)
}

func TestPostTicketResendEmail_not_paid(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/tickets/RSG-PPOOL-222222/resend-email", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/tickets/RSG-PPOOL-999999/resend-email", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Empty(t, f.artifacts.produced)
	assert.Empty(t, f.commands.commands)
}
