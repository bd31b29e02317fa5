package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

// submissionNamespace derives deterministic tokens from idempotency keys.
var submissionNamespace = uuid.MustParse("8f9a1e52-0c2d-4a6b-9d3e-5b7f21c4a908")

type simulatedComputation struct {
	vector         types.EncodedVector
	remainingPolls int
}

// Simulator is the local, deterministic GatewayInterface implementation.
// It "computes" the identity function over the submitted vector, which keeps
// the full pipeline runnable offline and makes round-trip assertions exact.
type Simulator struct {
	mu sync.Mutex
	// tokens by idempotency key, computations by token
	submissions  map[string]string
	computations map[string]*simulatedComputation
	// PendingPolls is how many polls a computation reports pending before
	// turning done. Zero makes results immediate.
	PendingPolls int
}

func NewSimulator() *Simulator {
	return &Simulator{
		submissions:  make(map[string]string),
		computations: make(map[string]*simulatedComputation),
	}
}

func (s *Simulator) Submit(
	_ context.Context, vector types.EncodedVector, idempotencyKey string,
) (string, error) {
	if err := vector.Validate(); err != nil {
		return "", &types.ComputationRejectedError{Reason: fmt.Sprintf("malformed vector: %v", err)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if token, ok := s.submissions[idempotencyKey]; ok {
		return token, nil
	}

	token := uuid.NewSHA1(submissionNamespace, []byte(idempotencyKey)).String()
	s.submissions[idempotencyKey] = token
	s.computations[token] = &simulatedComputation{
		vector:         vector,
		remainingPolls: s.PendingPolls,
	}
	return token, nil
}

func (s *Simulator) Poll(_ context.Context, token string) (PollResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comp, ok := s.computations[token]
	if !ok {
		return PollResult{}, &types.ComputationRejectedError{Token: token, Reason: "unknown token"}
	}

	if comp.remainingPolls > 0 {
		comp.remainingPolls--
		return PollResult{Status: StatusPending}, nil
	}

	blob, err := json.Marshal(comp.vector)
	if err != nil {
		return PollResult{}, err
	}
	return PollResult{Status: StatusDone, ResultBlob: blob}, nil
}
