package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketshop/artifact"
	"ticketshop/clients"
	"ticketshop/filestore"
	"ticketshop/message"
	messageEvent "ticketshop/message/event"
	"ticketshop/reconcile"
	"ticketshop/service"
)

const webhookSecret = "whsec-component-test"

type testService struct {
	baseURL  string
	gateway  *FakeGateway
	notifier *MockNotifier
}

func startService(t *testing.T) testService {
	t.Helper()

	logger := log.NewWatermill(logrus.NewEntry(logrus.StandardLogger()))
	pubSub := message.NewGoChannelPubSub(logger)

	eventBus, err := messageEvent.NewBus(pubSub.Publisher, logger)
	require.NoError(t, err)

	dir := t.TempDir()
	store, err := filestore.New(dir+"/tickets.json", eventBus)
	require.NoError(t, err)

	artifacts, err := artifact.NewStore(dir+"/tickets", "NGN", nil)
	require.NoError(t, err)

	gateway := NewFakeGateway(t)
	notifier := &MockNotifier{}
	addr := freeAddr(t)

	svc, err := service.New(service.Deps{
		Logger:    logger,
		PubSub:    pubSub,
		Store:     store,
		Gateway:   clients.NewFlutterwaveClient(nil, gateway.URL(), "FLWSECK_TEST-component"),
		Artifacts: artifacts,
		Notifier:  notifier,
		Reconcile: reconcile.Config{
			WebhookSecret: webhookSecret,
			Currency:      "NGN",
			PublicBaseURL: "http://" + addr,
		},
		HTTPAddr: addr,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, svc.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	baseURL := "http://" + addr
	waitForHttpServer(t, baseURL)

	return testService{
		baseURL:  baseURL,
		gateway:  gateway,
		notifier: notifier,
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

func waitForHttpServer(t *testing.T, baseURL string) {
	t.Helper()

	require.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			resp, err := http.Get(baseURL + "/health")
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()

			assert.Less(t, resp.StatusCode, 300, "API not ready, http status: %d", resp.StatusCode)
		},
		time.Second*10,
		time.Millisecond*50,
	)
}

func (s testService) request(t *testing.T, method, path string, body []byte, headers map[string]string) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, s.baseURL+path, bytes.NewReader(body))
	require.NoError(t, err)

	req.Header.Set("Correlation-ID", shortuuid.New())
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, respBody
}

func (s testService) initialize(t *testing.T, gender string, amount int64) string {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"name":   "Ada Lovelace",
		"email":  "ada@example.com",
		"gender": gender,
		"amount": amount,
	})
	require.NoError(t, err)

	code, body := s.request(t, http.MethodPost, "/payment/initialize", payload, nil)
	require.Equal(t, http.StatusOK, code, string(body))

	var resp struct {
		PaymentLink string `json:"paymentLink"`
		TicketID    string `json:"ticketId"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Regexp(t, `^RSG-PPOOL-\d{6}$`, resp.TicketID)
	assert.Equal(t, "https://checkout.test/pay/"+resp.TicketID, resp.PaymentLink)

	return resp.TicketID
}

func (s testService) webhook(t *testing.T, data map[string]any) (int, map[string]any) {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"event": "charge.completed",
		"data":  data,
	})
	require.NoError(t, err)

	code, body := s.request(t, http.MethodPost, "/webhooks/payment", payload, map[string]string{
		"flutterwave-signature": reconcile.Sign(webhookSecret, payload),
	})

	var resp map[string]any
	require.NoError(t, json.Unmarshal(body, &resp), string(body))

	return code, resp
}

func (s testService) ticket(t *testing.T, ticketID string) map[string]any {
	t.Helper()

	code, body := s.request(t, http.MethodGet, "/tickets/"+ticketID, nil, nil)
	require.Equal(t, http.StatusOK, code, string(body))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(body, &resp))

	return resp
}

func assertTicketEmailed(t *testing.T, notifier *MockNotifier, ticketID string, times int) {
	t.Helper()

	assert.EventuallyWithT(
		t,
		func(collectT *assert.CollectT) {
			assert.Equal(collectT, times, notifier.sentCount(ticketID), "ticket emails sent")
		},
		10*time.Second,
		100*time.Millisecond,
	)
}
