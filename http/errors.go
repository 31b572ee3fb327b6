package http

import (
	"errors"
	"net/http"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"

	"ticketshop/entity"
)

type mismatchResponse struct {
	Message string        `json:"message"`
	Reason  string        `json:"reason"`
	Ticket  entity.Ticket `json:"ticket"`
}

// respondError writes the response for err itself rather than leaving it to
// the echo error handler, so error bodies keep the same shape as successful
// ones.
func respondError(c echo.Context, err error) error {
	httpErr := toHTTPError(err)

	logger := log.FromContext(c.Request().Context()).WithError(err).WithField("status_code", httpErr.Code)
	if httpErr.Code >= http.StatusInternalServerError {
		logger.Error("Request failed")
	} else {
		logger.Info("Request rejected")
	}

	return c.JSON(httpErr.Code, httpErr.Message)
}

// toHTTPError maps the domain error taxonomy onto a response. The cause is
// kept as Internal so it is logged but never shown to the caller.
func toHTTPError(err error) *echo.HTTPError {
	var (
		validationErr entity.ValidationError
		authErr       entity.AuthenticationError
		mismatchErr   entity.MismatchError
		upstreamErr   entity.UpstreamError
		artifactErr   entity.ArtifactGenerationError
	)

	switch {
	case errors.As(err, &validationErr):
		return &echo.HTTPError{
			Code:     http.StatusBadRequest,
			Message:  map[string]string{"message": validationErr.Error()},
			Internal: err,
		}
	case errors.As(err, &authErr):
		return &echo.HTTPError{
			Code:     http.StatusUnauthorized,
			Message:  map[string]string{"message": "Invalid signature"},
			Internal: err,
		}
	case errors.Is(err, entity.ErrTicketNotFound):
		return &echo.HTTPError{
			Code:     http.StatusNotFound,
			Message:  map[string]string{"message": "Ticket not found"},
			Internal: err,
		}
	case errors.As(err, &mismatchErr):
		return &echo.HTTPError{
			Code: http.StatusBadRequest,
			Message: mismatchResponse{
				Message: "Verification mismatch",
				Reason:  mismatchErr.Reason,
				Ticket:  mismatchErr.Ticket,
			},
			Internal: err,
		}
	case errors.As(err, &upstreamErr):
		return &echo.HTTPError{
			Code:     http.StatusInternalServerError,
			Message:  map[string]string{"message": "Payment gateway unavailable"},
			Internal: err,
		}
	case errors.As(err, &artifactErr):
		return &echo.HTTPError{
			Code:     http.StatusInternalServerError,
			Message:  map[string]string{"message": "Ticket generation failed"},
			Internal: err,
		}
	default:
		return &echo.HTTPError{
			Code:     http.StatusInternalServerError,
			Message:  map[string]string{"message": http.StatusText(http.StatusInternalServerError)},
			Internal: err,
		}
	}
}
