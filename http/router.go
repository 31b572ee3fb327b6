package http

import (
	"net/http"

	commonHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

var ErrServerClosed = http.ErrServerClosed

type Deps struct {
	Engine     Engine
	Tickets    TicketReader
	Artifacts  Artifacts
	CommandBus CommandBus
}

func NewRouter(deps Deps) *echo.Echo {
	server := commonHTTP.NewEcho()
	server.Use(otelecho.Middleware("ticketshop"))

	server.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	server.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	h := handler{
		engine:     deps.Engine,
		tickets:    deps.Tickets,
		artifacts:  deps.Artifacts,
		commandBus: deps.CommandBus,
	}

	server.POST("/payment/initialize", h.PostPaymentInitialize)
	server.POST("/webhooks/payment", h.PostPaymentWebhook)
	server.GET("/tickets", h.GetTickets)
	server.GET("/tickets/:ticketId", h.GetTicket)
	server.GET("/tickets/:ticketId/verify", h.GetTicketVerify)
	server.POST("/tickets/:ticketId/resend-email", h.PostTicketResendEmail)

	return server
}
