package sourceclient

import (
	"context"

	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

// Cursor identifies one page of a block range fetch. A nil next cursor from
// FetchBatch means the sequence is finished.
type Cursor struct {
	StartHeight uint64
	EndHeight   uint64
	Page        int
}

// SourceInterface is the capability boundary towards the upstream data
// provider. Exactly one implementation is selected at construction time.
type SourceInterface interface {
	// FetchBatch returns one page of raw transaction records for the
	// cursor's range along with the cursor for the next page, if any.
	FetchBatch(ctx context.Context, cursor Cursor) ([]types.RawTransaction, *Cursor, error)
	// FetchRange drains FetchBatch from the first page until the sequence
	// ends. A missing upstream range yields an empty slice, not an error.
	FetchRange(ctx context.Context, startHeight, endHeight uint64) ([]types.RawTransaction, error)
	BaseURL() string
}
