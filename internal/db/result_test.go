//go:build integration

package db_test

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilscan/shielded-stats-pipeline/internal/db"
	"github.com/veilscan/shielded-stats-pipeline/internal/db/model"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

func resetDatabase(t *testing.T) {
	ctx := t.Context()
	for _, key := range listAllResultKeys(t) {
		require.NoError(t, testDB.DeleteResult(ctx, key))
	}
}

func listAllResultKeys(t *testing.T) []string {
	summaries, err := testDB.ListResults(t.Context(), db.ResultFilter{})
	require.NoError(t, err)

	keys := make([]string, len(summaries))
	for i, s := range summaries {
		keys[i] = s.Key
	}
	return keys
}

func createResult(t *testing.T) *model.StoredResult {
	var result model.StoredResult
	require.NoError(t, gofakeit.Struct(&result))
	result.Key = gofakeit.UUID()
	result.StoredAt = time.Now().UTC().Truncate(time.Millisecond)
	result.Metadata.BucketPolicy = types.BucketPolicyDynamicMax
	return &result
}

func TestResult(t *testing.T) {
	ctx := t.Context()
	t.Cleanup(func() {
		resetDatabase(t)
	})

	t.Run("get", func(t *testing.T) {
		// missing key returns a typed not-found error
		result, err := testDB.GetResult(ctx, gofakeit.UUID())
		require.Error(t, err)
		assert.True(t, db.IsNotFoundError(err))
		assert.Nil(t, result)
	})
	t.Run("save and get", func(t *testing.T) {
		result := createResult(t)
		err := testDB.SaveResult(ctx, result, false)
		require.NoError(t, err)

		stored, err := testDB.GetResult(ctx, result.Key)
		require.NoError(t, err)
		assert.Equal(t, result.Key, stored.Key)
		assert.Equal(t, result.Payload, stored.Payload)
	})
	t.Run("duplicate save is rejected", func(t *testing.T) {
		result := createResult(t)
		require.NoError(t, testDB.SaveResult(ctx, result, false))

		err := testDB.SaveResult(ctx, result, false)
		require.Error(t, err)
		assert.True(t, db.IsDuplicateKeyError(err))

		// explicit overwrite succeeds
		result.Summary = "replaced"
		require.NoError(t, testDB.SaveResult(ctx, result, true))
	})
	t.Run("list with filter", func(t *testing.T) {
		resetDatabase(t)

		result := createResult(t)
		require.NoError(t, testDB.SaveResult(ctx, result, false))

		summaries, err := testDB.ListResults(ctx, db.ResultFilter{
			Source: result.Provenance.SourceURL,
		})
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, result.Key, summaries[0].Key)
	})
	t.Run("delete expired", func(t *testing.T) {
		resetDatabase(t)

		old := createResult(t)
		old.StoredAt = time.Now().UTC().Add(-48 * time.Hour)
		require.NoError(t, testDB.SaveResult(ctx, old, false))

		fresh := createResult(t)
		require.NoError(t, testDB.SaveResult(ctx, fresh, false))

		deleted, err := testDB.DeleteExpiredResults(ctx, time.Now().UTC().Add(-24*time.Hour), 100)
		require.NoError(t, err)
		assert.EqualValues(t, 1, deleted)

		count, err := testDB.CountResults(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})
}

func TestJob(t *testing.T) {
	ctx := t.Context()

	newJob := func() *model.PipelineJobDocument {
		return &model.PipelineJobDocument{
			JobKey:      gofakeit.UUID(),
			Stage:       types.StageIngested,
			StartHeight: 100,
			EndHeight:   200,
			Window:      types.WindowHour.String(),
			CreatedAt:   time.Now().UTC(),
			UpdatedAt:   time.Now().UTC(),
		}
	}

	t.Run("save and get", func(t *testing.T) {
		job := newJob()
		require.NoError(t, testDB.SaveNewJob(ctx, job))

		stored, err := testDB.GetJob(ctx, job.JobKey)
		require.NoError(t, err)
		assert.Equal(t, types.StageIngested, stored.Stage)

		err = testDB.SaveNewJob(ctx, job)
		require.Error(t, err)
		assert.True(t, db.IsDuplicateKeyError(err))
	})
	t.Run("qualified stage transition", func(t *testing.T) {
		job := newJob()
		require.NoError(t, testDB.SaveNewJob(ctx, job))

		err := testDB.UpdateJobStage(ctx, job.JobKey,
			types.QualifiedStagesFor(types.StageEncoded), types.StageEncoded, nil, nil)
		require.NoError(t, err)

		// repeating the same transition misses the filter
		err = testDB.UpdateJobStage(ctx, job.JobKey,
			types.QualifiedStagesFor(types.StageEncoded), types.StageEncoded, nil, nil)
		require.Error(t, err)
		assert.True(t, db.IsStaleStageError(err))
	})
	t.Run("attempts and counts", func(t *testing.T) {
		job := newJob()
		require.NoError(t, testDB.SaveNewJob(ctx, job))
		require.NoError(t, testDB.IncrementJobAttempts(ctx, job.JobKey))

		stored, err := testDB.GetJob(ctx, job.JobKey)
		require.NoError(t, err)
		assert.EqualValues(t, 1, stored.Attempts)

		counts, err := testDB.CountJobsByStage(ctx)
		require.NoError(t, err)
		assert.NotZero(t, counts[types.StageIngested])
	})
}
