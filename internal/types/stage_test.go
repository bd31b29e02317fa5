package types

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQualifiedStagesFor(t *testing.T) {
	t.Parallel()

	order := []JobStage{
		StageIngested, StageEncoded, StageSubmitted, StageComputed,
		StageDecoded, StageStored, StageSummarized,
	}
	// each successful stage is reachable only from its predecessor
	for i := 1; i < len(order); i++ {
		require.Equal(t, []JobStage{order[i-1]}, QualifiedStagesFor(order[i]))
	}

	// FAILED is reachable from every non-terminal stage
	failed := QualifiedStagesFor(StageFailed)
	require.ElementsMatch(t, order[:len(order)-1], failed)
	require.NotContains(t, failed, StageSummarized)
	require.NotContains(t, failed, StageFailed)

	// restart path
	require.Equal(t, []JobStage{StageFailed}, QualifiedStagesFor(StageIngested))

	require.Nil(t, QualifiedStagesFor("UNKNOWN"))
}

func TestJobStage_IsTerminal(t *testing.T) {
	t.Parallel()

	require.True(t, StageSummarized.IsTerminal())
	require.True(t, StageFailed.IsTerminal())
	for _, stage := range []JobStage{
		StageIngested, StageEncoded, StageSubmitted,
		StageComputed, StageDecoded, StageStored,
	} {
		require.False(t, stage.IsTerminal(), stage)
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	retryable := []error{
		&TransientFetchError{StatusCode: 503, Message: "unavailable"},
		&ComputationTimeoutError{Token: "t", Polls: 5},
		fmt.Errorf("stage: %w", &TransientFetchError{StatusCode: 500}),
	}
	for _, err := range retryable {
		require.True(t, IsRetryable(err), err)
	}

	terminal := []error{
		// a spent fetch budget stays terminal despite its transient cause
		&FetchExhaustedError{Attempts: 3, Last: &TransientFetchError{StatusCode: 429}},
		&NotFoundError{Key: "k", Message: "missing"},
		&EncodingOverflowError{Field: "total_fees", Value: 1e30},
		&ComputationRejectedError{Token: "t", Reason: "bad shape"},
		&StorageConflictError{Key: "k", Message: "finalized"},
		&DecodeMismatchError{Expected: 12, Got: 4},
		fmt.Errorf("plain"),
	}
	for _, err := range terminal {
		require.False(t, IsRetryable(err), err)
	}
}

func TestParseAggregationWindow(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"hour", "day", "week"} {
		window, err := ParseAggregationWindow(valid)
		require.NoError(t, err)
		require.Equal(t, valid, window.String())
		require.Positive(t, window.Duration())
	}

	_, err := ParseAggregationWindow("month")
	require.Error(t, err)
}
