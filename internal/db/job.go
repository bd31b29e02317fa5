package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/veilscan/shielded-stats-pipeline/internal/db/model"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

func (db *Database) SaveNewJob(ctx context.Context, job *model.PipelineJobDocument) error {
	_, err := db.collection(model.JobCollection).InsertOne(ctx, job)
	if err != nil {
		var writeErr mongo.WriteException
		if errors.As(err, &writeErr) {
			for _, e := range writeErr.WriteErrors {
				if mongo.IsDuplicateKeyError(e) {
					return &DuplicateKeyError{
						Key:     job.JobKey,
						Message: "job already exists",
					}
				}
			}
		}
		return err
	}
	return nil
}

func (db *Database) GetJob(ctx context.Context, jobKey string) (*model.PipelineJobDocument, error) {
	res := db.collection(model.JobCollection).FindOne(ctx, bson.M{"_id": jobKey})

	var job model.PipelineJobDocument
	err := res.Decode(&job)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     jobKey,
				Message: "job not found",
			}
		}
		return nil, err
	}
	return &job, nil
}

// UpdateJobStage moves a job into newStage, guarded by the set of stages it
// may legally come from. A filter miss means a concurrent writer got there
// first and surfaces as StaleStageError.
func (db *Database) UpdateJobStage(
	ctx context.Context,
	jobKey string,
	qualifiedStages []types.JobStage,
	newStage types.JobStage,
	lastError *string,
	resultRef *string,
) error {
	qualifiedStageStrs := make([]string, len(qualifiedStages))
	for i, stage := range qualifiedStages {
		qualifiedStageStrs[i] = stage.String()
	}

	filter := bson.M{
		"_id":   jobKey,
		"stage": bson.M{"$in": qualifiedStageStrs},
	}

	updateFields := bson.M{
		"stage":      newStage.String(),
		"updated_at": time.Now().UTC(),
	}
	if lastError != nil {
		updateFields["last_error"] = *lastError
	}
	if resultRef != nil {
		updateFields["result_ref"] = *resultRef
	}

	res, err := db.collection(model.JobCollection).
		UpdateOne(ctx, filter, bson.M{"$set": updateFields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &StaleStageError{
			JobKey:  jobKey,
			Message: fmt.Sprintf("job %s not in a qualified stage for %s", jobKey, newStage),
		}
	}
	return nil
}

func (db *Database) IncrementJobAttempts(ctx context.Context, jobKey string) error {
	update := bson.M{
		"$inc": bson.M{"attempts": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	res, err := db.collection(model.JobCollection).UpdateOne(ctx, bson.M{"_id": jobKey}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &NotFoundError{Key: jobKey, Message: "job not found"}
	}
	return nil
}

func (db *Database) CountJobsByStage(ctx context.Context) (map[types.JobStage]uint64, error) {
	pipeline := bson.A{
		bson.M{
			"$group": bson.M{
				"_id":   "$stage",
				"count": bson.M{"$sum": 1},
			},
		},
	}

	cursor, err := db.collection(model.JobCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := make(map[types.JobStage]uint64)
	for cursor.Next(ctx) {
		var row struct {
			Stage string `bson:"_id"`
			Count uint64 `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		counts[types.JobStage(row.Stage)] = row.Count
	}
	return counts, cursor.Err()
}

// DeleteExpiredJobs removes terminal jobs not touched since before.
func (db *Database) DeleteExpiredJobs(
	ctx context.Context, before time.Time, limit uint64,
) (uint64, error) {
	collection := db.collection(model.JobCollection)

	filter := bson.M{
		"stage":      bson.M{"$in": []string{types.StageSummarized.String(), types.StageFailed.String()}},
		"updated_at": bson.M{"$lt": before},
	}

	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetLimit(int64(limit))
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var docs []struct {
		Key string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	keys := make([]string, len(docs))
	for i, doc := range docs {
		keys[i] = doc.Key
	}

	res, err := collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return 0, err
	}
	return uint64(res.DeletedCount), nil
}
