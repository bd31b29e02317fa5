package gateway

import (
	"context"
	"encoding/json"

	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

// Enum values for computation status
type ComputationStatus string

const (
	StatusPending ComputationStatus = "pending"
	StatusDone    ComputationStatus = "done"
	StatusFailed  ComputationStatus = "failed"
)

func (s ComputationStatus) String() string {
	return string(s)
}

// PollResult is one snapshot of a submitted computation.
type PollResult struct {
	Status     ComputationStatus
	ResultBlob []byte
	Reason     string
}

// GatewayInterface abstracts the external encrypted-computation service.
// The orchestrator never knows which implementation it talks to; the
// simulator and the remote client satisfy the same contract.
type GatewayInterface interface {
	// Submit hands a vector to the compute service. Submissions are keyed
	// by the caller's idempotency key: resubmitting with the same key
	// returns the same token instead of creating duplicate work.
	Submit(ctx context.Context, vector types.EncodedVector, idempotencyKey string) (string, error)
	// Poll reports the computation's current status for a token.
	Poll(ctx context.Context, token string) (PollResult, error)
}

// DecodeResult turns an opaque result blob back into an encoded vector.
// Numeric interpretation stays with the codec; this only restores the shape.
func DecodeResult(blob []byte) (types.EncodedVector, error) {
	var vector types.EncodedVector
	if err := json.Unmarshal(blob, &vector); err != nil {
		return types.EncodedVector{}, err
	}
	if err := vector.Validate(); err != nil {
		return types.EncodedVector{}, err
	}
	return vector, nil
}
