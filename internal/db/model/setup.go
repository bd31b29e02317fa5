package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/veilscan/shielded-stats-pipeline/internal/config"
)

// Setup creates the collections and indexes used by the pipeline.
func Setup(ctx context.Context, cfg *config.DbConfig) error {
	credential := options.Credential{
		Username: cfg.Username,
		Password: cfg.Password,
	}
	clientOps := options.Client().ApplyURI(cfg.Address).SetAuth(credential)
	client, err := mongo.Connect(ctx, clientOps)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	database := client.Database(cfg.DbName)

	indexes := map[string][]mongo.IndexModel{
		ResultCollection: {
			{Keys: map[string]int{"stored_at": 1}},
		},
		JobCollection: {
			{Keys: map[string]int{"stage": 1}},
			{Keys: map[string]int{"updated_at": 1}},
		},
	}

	for collection, models := range indexes {
		if len(models) == 0 {
			continue
		}
		if _, err := database.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}

	return client.Disconnect(ctx)
}
