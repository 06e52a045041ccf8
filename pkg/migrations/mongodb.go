package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"herald/internal/constants"
)

// EnsureDeadLetterIndexes creates the indexes used by `dlt list`.
func EnsureDeadLetterIndexes(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection(constants.DeadLetterCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "received_at", Value: -1}},
			Options: options.Index().SetName("idx_dead_letters_received_at"),
		},
		{
			Keys:    bson.D{{Key: "original_topic", Value: 1}, {Key: "received_at", Value: -1}},
			Options: options.Index().SetName("idx_dead_letters_original_topic_received_at"),
		},
		{
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetName("idx_dead_letters_key"),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
