package clients

import (
	"net/http"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const headerKeyCorrelationID = "Correlation-ID"

type correlationTransport struct {
	next http.RoundTripper
}

func (t correlationTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if correlationID := log.CorrelationIDFromContext(req.Context()); correlationID != "" {
		req = req.Clone(req.Context())
		req.Header.Set(headerKeyCorrelationID, correlationID)
	}

	return t.next.RoundTrip(req)
}

// NewHTTPClient returns a client that traces outgoing requests and forwards
// the correlation id of the calling context. Requests are bounded only by the
// caller's context.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(correlationTransport{next: http.DefaultTransport}),
	}
}
