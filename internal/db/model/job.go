package model

import (
	"time"

	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

const JobCollection = "pipeline_job"

// PipelineJobDocument is the persisted checkpoint of one pipeline job.
// Owned exclusively by the orchestrator; every stage transition is written
// through a qualified-stage filter so a stale writer can never move a job
// backwards.
type PipelineJobDocument struct {
	JobKey      string         `bson:"_id"`
	Stage       types.JobStage `bson:"stage"`
	Attempts    uint           `bson:"attempts"`
	LastError   *string        `bson:"last_error,omitempty"`
	ResultRef   *string        `bson:"result_ref,omitempty"`
	StartHeight uint64         `bson:"start_height"`
	EndHeight   uint64         `bson:"end_height"`
	Window      string         `bson:"window"`
	CreatedAt   time.Time      `bson:"created_at"`
	UpdatedAt   time.Time      `bson:"updated_at"`
}
