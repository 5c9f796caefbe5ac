// Package metrics exposes Prometheus metrics for ledger traffic.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ruteri/gateway-network-client/interfaces"
)

var (
	LedgerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "ledger",
		Name:      "calls_total",
		Help:      "Total view calls by contract, method and outcome",
	}, []string{"contract", "method", "status"})

	LedgerCallRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "ledger",
		Name:      "call_retries_total",
		Help:      "Total view call retries after transport failures",
	}, []string{"contract", "method"})

	LedgerSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "ledger",
		Name:      "submissions_total",
		Help:      "Total submissions by contract, method and outcome",
	}, []string{"contract", "method", "status"})

	ConfirmationWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gateway",
		Subsystem: "ledger",
		Name:      "confirmation_wait_seconds",
		Help:      "Time spent waiting for submissions to reach the requested depth",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"contract", "status"})

	RPCRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "ledger",
		Name:      "rate_limit_waits_total",
		Help:      "Total RPC calls delayed by the client-side rate limiter",
	}, []string{"contract"})
)

// StatusLabel maps an error onto a bounded label value.
func StatusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, interfaces.ErrSubmissionRejected):
		return "reverted"
	case errors.Is(err, interfaces.ErrTimeout):
		return "timeout"
	case errors.Is(err, interfaces.ErrTransport):
		return "transport"
	case errors.Is(err, interfaces.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, interfaces.ErrNetworkNotFound):
		return "not_found"
	case errors.Is(err, interfaces.ErrNoPendingClaim):
		return "no_pending_claim"
	case errors.Is(err, interfaces.ErrInvalidStateTransition):
		return "invalid_state"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "rejected"
	}
}

// Server serves the default Prometheus registry on /metrics.
type Server struct {
	srv *http.Server
}

// NewServer creates a metrics server listening on addr.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
