package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/shopspring/decimal"

	"ticketshop/entity"
)

type Customer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type Customizations struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Logo        string `json:"logo,omitempty"`
}

type ChargeRequest struct {
	TxRef          string            `json:"tx_ref"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	RedirectURL    string            `json:"redirect_url"`
	Customer       Customer          `json:"customer"`
	Customizations Customizations    `json:"customizations"`
	Meta           map[string]string `json:"meta,omitempty"`
}

type Transaction struct {
	ID       int64           `json:"id"`
	TxRef    string          `json:"tx_ref"`
	FlwRef   string          `json:"flw_ref"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
	Customer Customer        `json:"customer"`

	// Verified is set when the provider answered the lookup with status "success".
	Verified bool `json:"-"`
}

func (t Transaction) Successful() bool {
	return t.Verified && t.Status == "successful"
}

type response[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type FlutterwaveClient struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

func NewFlutterwaveClient(httpClient *http.Client, baseURL, secretKey string) FlutterwaveClient {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}

	return FlutterwaveClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		secretKey:  secretKey,
	}
}

// InitializeCharge starts a hosted payment and returns the link the buyer is
// redirected to.
func (c FlutterwaveClient) InitializeCharge(ctx context.Context, req ChargeRequest) (string, error) {
	const op = "initialize charge"

	var res response[struct {
		Link string `json:"link"`
	}]
	if err := c.do(ctx, op, http.MethodPost, "/payments", req, &res); err != nil {
		return "", err
	}

	if res.Status != "success" || res.Data.Link == "" {
		return "", entity.UpstreamError{
			Op:  op,
			Err: fmt.Errorf("provider answered %q: %s", res.Status, res.Message),
		}
	}

	log.FromContext(ctx).WithField("tx_ref", req.TxRef).Info("Payment link created")

	return res.Data.Link, nil
}

func (c FlutterwaveClient) VerifyTransaction(ctx context.Context, transactionID string) (Transaction, error) {
	var res response[Transaction]
	path := "/transactions/" + url.PathEscape(transactionID) + "/verify"
	if err := c.do(ctx, "verify transaction", http.MethodGet, path, nil, &res); err != nil {
		return Transaction{}, err
	}

	transaction := res.Data
	transaction.Verified = res.Status == "success"

	return transaction, nil
}

func (c FlutterwaveClient) do(ctx context.Context, op, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return entity.UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.FromContext(ctx).
			WithField("status_code", resp.StatusCode).
			WithField("body", string(snippet)).
			Warnf("Payment gateway %s failed", op)

		return entity.UpstreamError{Op: op, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return entity.UpstreamError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}

	return nil
}
