package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"

	"ticketshop/command"
	"ticketshop/entity"
	"ticketshop/notify"
)

const pdfSuffix = ".pdf"

type resendResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	DownloadURL string `json:"downloadUrl"`
}

func (h handler) GetTickets(c echo.Context) error {
	tickets, err := h.tickets.List(c.Request().Context())
	if err != nil {
		return respondError(c, fmt.Errorf("listing tickets: %w", err))
	}

	return c.JSON(http.StatusOK, tickets)
}

// GetTicket serves both the ticket JSON and, for ids ending in ".pdf", the
// ticket document.
func (h handler) GetTicket(c echo.Context) error {
	ticketID := c.Param("ticketId")
	if strings.HasSuffix(ticketID, pdfSuffix) {
		return h.getTicketPDF(c, strings.TrimSuffix(ticketID, pdfSuffix))
	}

	ticket, err := h.tickets.GetByTicketID(c.Request().Context(), ticketID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, ticket)
}

func (h handler) getTicketPDF(c echo.Context, ticketID string) error {
	ticket, err := h.tickets.GetByTicketID(c.Request().Context(), ticketID)
	if err != nil {
		return respondError(c, err)
	}

	// Only paid tickets have a document.
	if ticket.PaymentStatus != entity.StatusSuccessful {
		return respondError(c, fmt.Errorf("ticket %s is %s: %w", ticketID, ticket.PaymentStatus, entity.ErrTicketNotFound))
	}

	pdf, err := h.artifacts.Load(c.Request().Context(), ticket)
	if err != nil {
		return respondError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", notify.TicketAttachmentName(ticket)))
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

func (h handler) PostTicketResendEmail(c echo.Context) error {
	ctx := c.Request().Context()

	ticket, err := h.tickets.GetByTicketID(ctx, c.Param("ticketId"))
	if err != nil {
		return respondError(c, err)
	}

	if ticket.PaymentStatus != entity.StatusSuccessful {
		return respondError(c, entity.ValidationError{Err: errors.New("ticket payment not successful")})
	}

	if _, err := h.artifacts.Produce(ctx, ticket); err != nil {
		return respondError(c, err)
	}

	idempotencyKey := "resend-" + ticket.ID + "-" + log.CorrelationIDFromContext(ctx)
	cmd := command.NewSendTicketEmail(ticket.TicketID, idempotencyKey)
	if err := h.commandBus.Send(ctx, cmd); err != nil {
		return respondError(c, fmt.Errorf("sending SendTicketEmail command: %w", err))
	}

	return c.JSON(http.StatusOK, resendResponse{
		Status:      "ok",
		Message:     "PDF regenerated",
		DownloadURL: "/tickets/" + ticket.TicketID + pdfSuffix,
	})
}
