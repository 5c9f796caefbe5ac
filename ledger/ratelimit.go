package ledger

import (
	"context"
	"time"

	"github.com/ruteri/gateway-network-client/metrics"
)

// throttle blocks until the limiter admits one RPC round trip.
func (g *EthGateway) throttle(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}

	r := g.limiter.Reserve()
	if !r.OK() {
		return g.limiter.Wait(ctx)
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	metrics.RPCRateLimitWaits.WithLabelValues(g.cfg.Name).Inc()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
