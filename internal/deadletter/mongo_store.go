package deadletter

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"herald/internal/constants"
	apperrors "herald/pkg/errors"
)

type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection(constants.DeadLetterCollection)}
}

func (s *MongoStore) Save(ctx context.Context, rec Record) error {
	_, err := s.collection.ReplaceOne(ctx,
		bson.M{"_id": rec.ID},
		rec,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save dead-letter record: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Record{}, apperrors.ErrNotFound.WithDetail("record_id", id)
		}
		return Record{}, fmt.Errorf("failed to get dead-letter record: %w", err)
	}
	return rec, nil
}

// List sorts in MongoDB and applies the CEL filter client side, so the limit
// counts matching records only.
func (s *MongoStore) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "received_at", Value: -1}, {Key: "_id", Value: 1}})
	if opts.Filter == nil && opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := s.collection.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead-letter records: %w", err)
	}
	defer cursor.Close(ctx)

	var out []Record
	for cursor.Next(ctx) {
		var rec Record
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode dead-letter record: %w", err)
		}

		if opts.Filter != nil {
			ok, err := opts.Filter.Match(ctx, rec)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}

		out = append(out, rec)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dead-letter records: %w", err)
	}

	return out, nil
}
