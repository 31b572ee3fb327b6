package http

import (
	"fmt"
	"io"
	"net/http"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"

	"ticketshop/entity"
	"ticketshop/reconcile"
)

const (
	headerSignature  = "flutterwave-signature"
	headerLegacyHash = "verif-hash"

	maxWebhookBodySize = 1 << 20
)

type initializePaymentRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Gender string `json:"gender"`
	Amount int64  `json:"amount"`
}

type initializePaymentResponse struct {
	PaymentLink string `json:"paymentLink"`
	TicketID    string `json:"ticketId"`
}

type webhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h handler) PostPaymentInitialize(c echo.Context) error {
	var request initializePaymentRequest
	if err := c.Bind(&request); err != nil {
		return respondError(c, entity.ValidationError{Err: fmt.Errorf("parsing request: %w", err)})
	}

	checkout, err := h.engine.Initialize(c.Request().Context(), entity.Intake{
		Name:   request.Name,
		Email:  request.Email,
		Gender: request.Gender,
		Amount: request.Amount,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, initializePaymentResponse{
		PaymentLink: checkout.PaymentLink,
		TicketID:    checkout.Ticket.TicketID,
	})
}

// PostPaymentWebhook needs the body exactly as sent, since the signature is
// computed over the raw bytes.
func (h handler) PostPaymentWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBodySize))
	if err != nil {
		return respondError(c, entity.ValidationError{Err: fmt.Errorf("reading body: %w", err)})
	}

	result, err := h.engine.HandleNotification(c.Request().Context(), body, reconcile.Signature{
		HMAC:       c.Request().Header.Get(headerSignature),
		LegacyHash: c.Request().Header.Get(headerLegacyHash),
	})
	if err != nil {
		return respondError(c, err)
	}

	logger := log.FromContext(c.Request().Context()).WithField("outcome", result.Outcome)
	if result.Ticket != nil {
		logger = logger.WithField("ticket_id", result.Ticket.TicketID)
	}
	logger.Info("Payment notification handled")

	return c.JSON(http.StatusOK, webhookResponse{
		Status:  string(result.Outcome),
		Message: result.Message,
	})
}

func (h handler) GetTicketVerify(c echo.Context) error {
	transactionID := c.QueryParam("transaction_id")
	if transactionID == "" {
		transactionID = c.QueryParam("transactionId")
	}

	ticket, err := h.engine.Verify(c.Request().Context(), c.Param("ticketId"), transactionID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, ticket)
}
