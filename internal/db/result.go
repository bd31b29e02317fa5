package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/veilscan/shielded-stats-pipeline/internal/db/model"
)

func (db *Database) SaveResult(ctx context.Context, result *model.StoredResult, overwrite bool) error {
	collection := db.collection(model.ResultCollection)

	if overwrite {
		filter := bson.M{"_id": result.Key}
		opts := options.Replace().SetUpsert(true)
		_, err := collection.ReplaceOne(ctx, filter, result, opts)
		return err
	}

	_, err := collection.InsertOne(ctx, result)
	if err != nil {
		var writeErr mongo.WriteException
		if errors.As(err, &writeErr) {
			for _, e := range writeErr.WriteErrors {
				if mongo.IsDuplicateKeyError(e) {
					return &DuplicateKeyError{
						Key:     result.Key,
						Message: "result already exists",
					}
				}
			}
		}
		return err
	}
	return nil
}

func (db *Database) GetResult(ctx context.Context, key string) (*model.StoredResult, error) {
	filter := map[string]any{"_id": key}
	res := db.collection(model.ResultCollection).FindOne(ctx, filter)

	var result model.StoredResult
	err := res.Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     key,
				Message: "result not found",
			}
		}
		return nil, err
	}
	return &result, nil
}

func (db *Database) ListResults(ctx context.Context, filter ResultFilter) ([]model.ResultSummary, error) {
	query := bson.M{}
	if filter.Source != "" {
		query["provenance.source_url"] = filter.Source
	}
	storedAt := bson.M{}
	if !filter.StoredAfter.IsZero() {
		storedAt["$gte"] = filter.StoredAfter
	}
	if !filter.StoredBefore.IsZero() {
		storedAt["$lt"] = filter.StoredBefore
	}
	if len(storedAt) > 0 {
		query["stored_at"] = storedAt
	}

	opts := options.Find().
		SetSort(bson.M{"stored_at": -1}).
		SetProjection(bson.M{"payload": 0, "metadata": 0, "stats": 0, "summary": 0})
	if filter.Limit > 0 {
		opts = opts.SetLimit(filter.Limit)
	}

	cursor, err := db.collection(model.ResultCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var summaries []model.ResultSummary
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (db *Database) DeleteResult(ctx context.Context, key string) error {
	res, err := db.collection(model.ResultCollection).DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return &NotFoundError{Key: key, Message: "result not found"}
	}
	return nil
}

func (db *Database) DeleteExpiredResults(
	ctx context.Context, before time.Time, limit uint64,
) (uint64, error) {
	collection := db.collection(model.ResultCollection)

	// bounded per poll run, delete by key to respect the limit
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetLimit(int64(limit))
	cursor, err := collection.Find(ctx, bson.M{"stored_at": bson.M{"$lt": before}}, opts)
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

func (db *Database) CountResults(ctx context.Context) (uint64, error) {
	count, err := db.collection(model.ResultCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	return uint64(count), nil
}
