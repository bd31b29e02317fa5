package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

// JobParams describes the block range and aggregation window of one
// pipeline run.
type JobParams struct {
	StartHeight uint64
	EndHeight   uint64
	Window      types.AggregationWindow
}

func (p JobParams) Validate() error {
	if p.EndHeight < p.StartHeight {
		return fmt.Errorf("end height %d is below start height %d", p.EndHeight, p.StartHeight)
	}
	if _, err := types.ParseAggregationWindow(p.Window.String()); err != nil {
		return err
	}
	return nil
}

// BlockRange renders the range in the form stored in result provenance.
func (p JobParams) BlockRange() string {
	return fmt.Sprintf("%d-%d", p.StartHeight, p.EndHeight)
}

// DeriveJobKey builds the canonical key for a range and window. Callers may
// supply their own keys instead; this is only the default.
func DeriveJobKey(params JobParams) string {
	return fmt.Sprintf("%d-%d-%s", params.StartHeight, params.EndHeight, params.Window)
}

// JobStatus is a point-in-time snapshot of a job, safe to hand out.
type JobStatus struct {
	JobKey      string                  `json:"job_key"`
	Stage       types.JobStage          `json:"stage"`
	Attempts    uint                    `json:"attempts"`
	LastError   *string                 `json:"last_error,omitempty"`
	ResultRef   *string                 `json:"result_ref,omitempty"`
	StartHeight uint64                  `json:"start_height"`
	EndHeight   uint64                  `json:"end_height"`
	Window      types.AggregationWindow `json:"window"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// jobEntry is the in-memory registration of a job. The entry outlives the
// run so GetStatus keeps working after the job reaches a terminal stage.
type jobEntry struct {
	mu      sync.RWMutex
	running bool
	status  JobStatus
}

func (e *jobEntry) snapshot() JobStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

func (e *jobEntry) setStage(stage types.JobStage, lastError, resultRef *string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.Stage = stage
	if lastError != nil {
		e.status.LastError = lastError
	}
	if resultRef != nil {
		e.status.ResultRef = resultRef
	}
	e.status.UpdatedAt = time.Now().UTC()
}

// tryRestart flips a failed, idle entry back to INGESTED and marks it
// running. Returns false when the job is in flight or finished successfully.
func (e *jobEntry) tryRestart() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running || e.status.Stage != types.StageFailed {
		return false
	}
	e.running = true
	e.status.Stage = types.StageIngested
	e.status.UpdatedAt = time.Now().UTC()
	return true
}

func (e *jobEntry) setRunning(running bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = running
}

func (e *jobEntry) incrementAttempts() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.Attempts++
}

// vectorFingerprint derives the submission idempotency key from the vector
// content, so identical inputs map to the same computation upstream.
func vectorFingerprint(vector types.EncodedVector) string {
	payload, err := json.Marshal(vector)
	if err != nil {
		// EncodedVector is plain data, marshalling cannot fail
		panic(err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
