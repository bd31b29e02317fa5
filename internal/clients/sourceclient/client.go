package sourceclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/veilscan/shielded-stats-pipeline/internal/config"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

const transactionsEndpoint = "/v1/transactions"

type SourceClient struct {
	httpClient *http.Client
	cfg        *config.SourceConfig
	cache      *responseCache
}

func NewSourceClient(cfg *config.SourceConfig) *SourceClient {
	return &SourceClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		cache:      newResponseCache(cfg.CacheTTL),
	}
}

func (c *SourceClient) BaseURL() string {
	return c.cfg.BaseURL
}

// transactionsResponse mirrors the upstream page payload.
type transactionsResponse struct {
	Transactions []types.RawTransaction `json:"transactions"`
	NextPage     *int                   `json:"next_page"`
}

func (c *SourceClient) FetchBatch(
	ctx context.Context, cursor Cursor,
) ([]types.RawTransaction, *Cursor, error) {
	key := cacheKey(cursor)
	if page, ok := c.cache.get(key); ok {
		// cache hits bypass the retry path entirely
		return page.records, page.next, nil
	}

	callForPage := func() (*transactionsResponse, error) {
		return c.fetchPage(ctx, cursor)
	}

	resp, err := clientCallWithRetry(ctx, callForPage, c.cfg)
	if err != nil {
		if types.IsNotFoundError(err) {
			return nil, nil, err
		}
		return nil, nil, &types.FetchExhaustedError{Attempts: c.cfg.MaxRetryTimes, Last: err}
	}

	var next *Cursor
	if resp.NextPage != nil {
		next = &Cursor{
			StartHeight: cursor.StartHeight,
			EndHeight:   cursor.EndHeight,
			Page:        *resp.NextPage,
		}
	}

	c.cache.put(key, cachedPage{records: resp.Transactions, next: next})
	return resp.Transactions, next, nil
}

func (c *SourceClient) FetchRange(
	ctx context.Context, startHeight, endHeight uint64,
) ([]types.RawTransaction, error) {
	var records []types.RawTransaction

	cursor := &Cursor{StartHeight: startHeight, EndHeight: endHeight}
	for cursor != nil {
		batch, next, err := c.FetchBatch(ctx, *cursor)
		if err != nil {
			if types.IsNotFoundError(err) {
				// missing range upstream, empty data is not a failure
				log.Ctx(ctx).Debug().
					Uint64("start_height", startHeight).
					Uint64("end_height", endHeight).
					Msg("Upstream range not found, treating as empty batch")
				return records, nil
			}
			return nil, err
		}
		records = append(records, batch...)
		cursor = next
	}

	return records, nil
}

func (c *SourceClient) fetchPage(ctx context.Context, cursor Cursor) (*transactionsResponse, error) {
	query := url.Values{}
	query.Set("start", fmt.Sprintf("%d", cursor.StartHeight))
	query.Set("end", fmt.Sprintf("%d", cursor.EndHeight))
	query.Set("page", fmt.Sprintf("%d", cursor.Page))
	query.Set("limit", fmt.Sprintf("%d", c.cfg.PageSize))

	reqURL := c.cfg.BaseURL + transactionsEndpoint + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &types.TransientFetchError{Message: fmt.Sprintf("fetch %s: %v", transactionsEndpoint, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &types.NotFoundError{
			Key:     cacheKey(cursor),
			Message: fmt.Sprintf("range %d-%d not found upstream", cursor.StartHeight, cursor.EndHeight),
		}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, &types.TransientFetchError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("upstream returned status %d", resp.StatusCode),
		}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("upstream returned unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.TransientFetchError{Message: fmt.Sprintf("read response body: %v", err)}
	}

	var page transactionsResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transactions page: %w", err)
	}
	return &page, nil
}

func clientCallWithRetry[T any](
	ctx context.Context, call retry.RetryableFuncWithData[*T], cfg *config.SourceConfig,
) (*T, error) {
	result, err := retry.DoWithData(call,
		retry.Context(ctx),
		retry.Attempts(cfg.MaxRetryTimes),
		retry.Delay(cfg.RetryInterval),
		retry.MaxJitter(cfg.RetryInterval/10),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
		retry.RetryIf(types.IsTransientFetchError),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().
				Uint("attempt", n+1).
				Uint("max_attempts", cfg.MaxRetryTimes).
				Err(err).
				Msg("failed to fetch from upstream source")
		}))

	if err != nil {
		return nil, err
	}
	return result, nil
}
