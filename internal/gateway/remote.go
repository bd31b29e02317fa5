package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/veilscan/shielded-stats-pipeline/internal/config"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

const computationsEndpoint = "/v1/computations"

// RemoteGateway talks to the contract-backed compute service over its
// three-call HTTP contract: submit, poll, fetch result.
type RemoteGateway struct {
	httpClient *http.Client
	cfg        *config.GatewayConfig
}

func NewRemoteGateway(cfg *config.GatewayConfig) *RemoteGateway {
	return &RemoteGateway{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
	}
}

type submitRequest struct {
	Vector         types.EncodedVector `json:"vector"`
	IdempotencyKey string              `json:"idempotency_key"`
}

type submitResponse struct {
	Token string `json:"token"`
}

type pollResponse struct {
	Status string `json:"status"`
	Result []byte `json:"result,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (g *RemoteGateway) Submit(
	ctx context.Context, vector types.EncodedVector, idempotencyKey string,
) (string, error) {
	payload, err := json.Marshal(submitRequest{Vector: vector, IdempotencyKey: idempotencyKey})
	if err != nil {
		return "", err
	}

	callForToken := func() (*submitResponse, error) {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodPost, g.cfg.Endpoint+computationsEndpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", idempotencyKey)

		var resp submitResponse
		if err := g.do(req, &resp); err != nil {
			return nil, err
		}
		if resp.Token == "" {
			return nil, fmt.Errorf("compute service returned an empty token")
		}
		return &resp, nil
	}

	resp, err := gatewayCallWithRetry(ctx, callForToken, g.cfg)
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

func (g *RemoteGateway) Poll(ctx context.Context, token string) (PollResult, error) {
	callForStatus := func() (*pollResponse, error) {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodGet, g.cfg.Endpoint+computationsEndpoint+"/"+token, nil)
		if err != nil {
			return nil, err
		}

		var resp pollResponse
		if err := g.do(req, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	}

	resp, err := gatewayCallWithRetry(ctx, callForStatus, g.cfg)
	if err != nil {
		return PollResult{}, err
	}

	switch ComputationStatus(resp.Status) {
	case StatusPending, StatusDone, StatusFailed:
		return PollResult{
			Status:     ComputationStatus(resp.Status),
			ResultBlob: resp.Result,
			Reason:     resp.Reason,
		}, nil
	default:
		return PollResult{}, fmt.Errorf("compute service returned unknown status %q", resp.Status)
	}
}

func (g *RemoteGateway) do(req *http.Request, out any) error {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return &types.TransientFetchError{Message: fmt.Sprintf("compute service request: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &types.TransientFetchError{Message: fmt.Sprintf("read compute service response: %v", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return &types.TransientFetchError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("compute service returned status %d", resp.StatusCode),
		}
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return &types.ComputationRejectedError{Reason: string(body)}
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return fmt.Errorf("compute service returned unexpected status %d", resp.StatusCode)
	}

	return json.Unmarshal(body, out)
}

func gatewayCallWithRetry[T any](
	ctx context.Context, call retry.RetryableFuncWithData[*T], cfg *config.GatewayConfig,
) (*T, error) {
	result, err := retry.DoWithData(call,
		retry.Context(ctx),
		retry.Attempts(cfg.MaxRetryTimes),
		retry.Delay(cfg.RetryInterval),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(types.IsTransientFetchError),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().
				Uint("attempt", n+1).
				Uint("max_attempts", cfg.MaxRetryTimes).
				Err(err).
				Msg("failed to call the compute service")
		}))

	if err != nil {
		return nil, err
	}
	return result, nil
}
