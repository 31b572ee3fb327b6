package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"ticketshop/entity"
)

type MockNotifier struct {
	lock          sync.Mutex
	TicketsSent   []string
	AdminSubjects []string
}

func (m *MockNotifier) SendTicket(_ context.Context, ticket entity.Ticket, _ []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.TicketsSent = append(m.TicketsSent, ticket.TicketID)
	return nil
}

func (m *MockNotifier) NotifyAdmin(_ context.Context, subject, _ string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.AdminSubjects = append(m.AdminSubjects, subject)
	return nil
}

func (m *MockNotifier) sentCount(ticketID string) int {
	m.lock.Lock()
	defer m.lock.Unlock()

	count := 0
	for _, id := range m.TicketsSent {
		if id == ticketID {
			count++
		}
	}
	return count
}

func (m *MockNotifier) adminSubjects() []string {
	m.lock.Lock()
	defer m.lock.Unlock()

	return append([]string(nil), m.AdminSubjects...)
}

type gatewayTransaction struct {
	ID       int64  `json:"id"`
	TxRef    string `json:"tx_ref"`
	FlwRef   string `json:"flw_ref"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// FakeGateway answers the two payment provider calls the service makes.
type FakeGateway struct {
	lock         sync.Mutex
	transactions map[string]gatewayTransaction
	charges      []string

	server *httptest.Server
}

func NewFakeGateway(t *testing.T) *FakeGateway {
	g := &FakeGateway{
		transactions: map[string]gatewayTransaction{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /payments", g.handleInitialize)
	mux.HandleFunc("GET /transactions/{id}/verify", g.handleVerify)

	g.server = httptest.NewServer(mux)
	t.Cleanup(g.server.Close)

	return g
}

func (g *FakeGateway) URL() string {
	return g.server.URL
}

func (g *FakeGateway) AddTransaction(id string, tx gatewayTransaction) {
	g.lock.Lock()
	defer g.lock.Unlock()

	g.transactions[id] = tx
}

func (g *FakeGateway) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TxRef string `json:"tx_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	g.lock.Lock()
	g.charges = append(g.charges, req.TxRef)
	g.lock.Unlock()

	writeJSON(w, map[string]any{
		"status":  "success",
		"message": "Hosted Link",
		"data":    map[string]string{"link": "https://checkout.test/pay/" + req.TxRef},
	})
}

func (g *FakeGateway) handleVerify(w http.ResponseWriter, r *http.Request) {
	g.lock.Lock()
	tx, ok := g.transactions[r.PathValue("id")]
	g.lock.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]any{"status": "error", "message": "No transaction was found for this id"})
		return
	}

	writeJSON(w, map[string]any{
		"status":  "success",
		"message": "Transaction fetched successfully",
		"data":    tx,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
