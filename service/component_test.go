package service_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponent(t *testing.T) {
	s := startService(t)

	t.Run("webhook pays ticket once", func(t *testing.T) {
		ticketID := s.initialize(t, "female", 3000)
		assert.Equal(t, "pending", s.ticket(t, ticketID)["paymentStatus"])

		code, _ := s.request(t, http.MethodGet, "/tickets/"+ticketID+".pdf", nil, nil)
		assert.Equal(t, http.StatusNotFound, code, "no document before payment")

		charge := map[string]any{
			"id":       1001,
			"status":   "successful",
			"tx_ref":   ticketID,
			"flw_ref":  "X1",
			"amount":   3000,
			"currency": "NGN",
			"customer": map[string]any{"email": "ada@example.com"},
		}

		code, resp := s.webhook(t, charge)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "processed", resp["status"])

		code, resp = s.webhook(t, charge)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "duplicate", resp["status"])

		ticket := s.ticket(t, ticketID)
		assert.Equal(t, "successful", ticket["paymentStatus"])
		assert.Equal(t, "X1", ticket["providerRef"])

		code, first := s.request(t, http.MethodGet, "/tickets/"+ticketID+".pdf", nil, nil)
		require.Equal(t, http.StatusOK, code)
		code, second := s.request(t, http.MethodGet, "/tickets/"+ticketID+".pdf", nil, nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, first, second)

		assertTicketEmailed(t, s.notifier, ticketID, 1)
	})

	t.Run("verify now pays ticket", func(t *testing.T) {
		ticketID := s.initialize(t, "male", 5000)
		s.gateway.AddTransaction("2002", gatewayTransaction{
			ID:       2002,
			TxRef:    ticketID,
			FlwRef:   "FLW-2002",
			Amount:   5000,
			Currency: "NGN",
			Status:   "successful",
		})

		code, body := s.request(t, http.MethodGet, "/tickets/"+ticketID+"/verify?transaction_id=2002", nil, nil)
		require.Equal(t, http.StatusOK, code, string(body))

		var ticket map[string]any
		require.NoError(t, json.Unmarshal(body, &ticket))
		assert.Equal(t, "successful", ticket["paymentStatus"])
		assert.Equal(t, "FLW-2002", ticket["providerRef"])

		assertTicketEmailed(t, s.notifier, ticketID, 1)

		code, body = s.request(t, http.MethodPost, "/tickets/"+ticketID+"/resend-email", nil, nil)
		require.Equal(t, http.StatusOK, code, string(body))

		var resend map[string]any
		require.NoError(t, json.Unmarshal(body, &resend))
		assert.Equal(t, "/tickets/"+ticketID+".pdf", resend["downloadUrl"])

		assertTicketEmailed(t, s.notifier, ticketID, 2)
	})

	t.Run("verify now with wrong amount leaves ticket pending", func(t *testing.T) {
		ticketID := s.initialize(t, "female", 3000)
		s.gateway.AddTransaction("3003", gatewayTransaction{
			ID:       3003,
			TxRef:    ticketID,
			FlwRef:   "FLW-3003",
			Amount:   300,
			Currency: "NGN",
			Status:   "successful",
		})

		code, body := s.request(t, http.MethodGet, "/tickets/"+ticketID+"/verify?transaction_id=3003", nil, nil)
		require.Equal(t, http.StatusBadRequest, code, string(body))

		var resp map[string]any
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.Equal(t, "Verification mismatch", resp["message"])

		assert.Equal(t, "pending", s.ticket(t, ticketID)["paymentStatus"])
	})

	t.Run("failed payment notifies admin", func(t *testing.T) {
		ticketID := s.initialize(t, "female", 3000)

		code, resp := s.webhook(t, map[string]any{
			"id":       4004,
			"status":   "failed",
			"tx_ref":   ticketID,
			"flw_ref":  "FLW-4004",
			"amount":   3000,
			"currency": "NGN",
		})
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "failed", resp["status"])

		assert.Equal(t, "failed", s.ticket(t, ticketID)["paymentStatus"])

		assert.EventuallyWithT(t, func(collectT *assert.CollectT) {
			assert.Contains(collectT, s.notifier.adminSubjects(), "Ticket "+ticketID+" payment failed")
		}, 10*time.Second, 100*time.Millisecond)
	})

	t.Run("unsigned webhook is rejected", func(t *testing.T) {
		code, _ := s.request(t, http.MethodPost, "/webhooks/payment", []byte(`{"event":"charge.completed","data":{}}`), nil)
		assert.Equal(t, http.StatusUnauthorized, code)
	})
}
