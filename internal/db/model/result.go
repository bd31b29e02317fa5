package model

import (
	"time"

	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

const ResultCollection = "stored_result"

// Provenance records where a result came from, for audit.
type Provenance struct {
	SourceURL   string    `bson:"source_url" json:"source_url"`
	BlockRange  string    `bson:"block_range" json:"block_range"`
	SubmittedAt time.Time `bson:"submitted_at" json:"submitted_at"`
}

// StoredResult is one finished pipeline output. Immutable after creation
// except for deletion.
type StoredResult struct {
	Key         string               `bson:"_id" json:"key"`
	ReferenceID string               `bson:"reference_id" json:"reference_id"`
	Payload     []byte               `bson:"payload" json:"payload"`
	Metadata    types.VectorMetadata `bson:"metadata" json:"metadata"`
	Stats       types.DerivedStats   `bson:"stats" json:"stats"`
	Summary     string               `bson:"summary,omitempty" json:"summary,omitempty"`
	Provenance  Provenance           `bson:"provenance" json:"provenance"`
	StoredAt    time.Time            `bson:"stored_at" json:"stored_at"`
}

// ResultSummary is the list projection of a stored result.
type ResultSummary struct {
	Key         string     `bson:"_id" json:"key"`
	ReferenceID string     `bson:"reference_id" json:"reference_id"`
	Provenance  Provenance `bson:"provenance" json:"provenance"`
	StoredAt    time.Time  `bson:"stored_at" json:"stored_at"`
}
