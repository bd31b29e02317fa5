package gateway

import (
	"context"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/veilscan/shielded-stats-pipeline/internal/config"
	"github.com/veilscan/shielded-stats-pipeline/internal/observability/metrics"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

// AwaitResult polls a token with exponential backoff until the computation
// reaches a terminal status or the poll budget is spent. A spent budget is a
// ComputationTimeoutError; a failed computation is a terminal
// ComputationRejectedError.
func AwaitResult(
	ctx context.Context, g GatewayInterface, cfg *config.GatewayConfig, token string,
) ([]byte, error) {
	var polls uint

	callForResult := func() ([]byte, error) {
		polls++
		result, err := g.Poll(ctx, token)
		if err != nil {
			return nil, err
		}

		switch result.Status {
		case StatusDone:
			return result.ResultBlob, nil
		case StatusFailed:
			return nil, &types.ComputationRejectedError{Token: token, Reason: result.Reason}
		default:
			return nil, &types.ComputationTimeoutError{Token: token, Polls: polls}
		}
	}

	blob, err := retry.DoWithData(callForResult,
		retry.Context(ctx),
		retry.Attempts(cfg.MaxPolls),
		retry.Delay(cfg.PollInterval),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return types.IsComputationTimeoutError(err) || types.IsTransientFetchError(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Debug().
				Uint("poll", n+1).
				Uint("max_polls", cfg.MaxPolls).
				Str("token", token).
				Err(err).
				Msg("computation still pending")
		}))

	if err != nil {
		if types.IsComputationTimeoutError(err) {
			metrics.IncComputationTimeout()
		}
		return nil, err
	}
	return blob, nil
}
