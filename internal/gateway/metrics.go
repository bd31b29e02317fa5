package gateway

import (
	"context"
	"time"

	"github.com/veilscan/shielded-stats-pipeline/internal/observability/metrics"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

type gatewayWithMetrics struct {
	gateway GatewayInterface
}

func NewGatewayWithMetrics(gateway GatewayInterface) GatewayInterface {
	return &gatewayWithMetrics{gateway: gateway}
}

func (g *gatewayWithMetrics) Submit(
	ctx context.Context, vector types.EncodedVector, idempotencyKey string,
) (string, error) {
	start := time.Now()
	token, err := g.gateway.Submit(ctx, vector, idempotencyKey)
	metrics.ObserveGatewayLatency("Submit", time.Since(start), err)
	return token, err
}

func (g *gatewayWithMetrics) Poll(ctx context.Context, token string) (PollResult, error) {
	start := time.Now()
	result, err := g.gateway.Poll(ctx, token)
	metrics.ObserveGatewayLatency("Poll", time.Since(start), err)
	return result, err
}
