package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"alcyxob/coach-scheduler/internal/domain"
	"alcyxob/coach-scheduler/internal/repository"
)

const periodConfigCollectionName = "period_configs"

// mongoPeriodConfigRepository implements repository.PeriodConfigRepository
type mongoPeriodConfigRepository struct {
	collection *mongo.Collection
}

// NewMongoPeriodConfigRepository creates a new PeriodConfig repository.
func NewMongoPeriodConfigRepository(db *mongo.Database) repository.PeriodConfigRepository {
	return &mongoPeriodConfigRepository{
		collection: db.Collection(periodConfigCollectionName),
	}
}

// GetByActivityID retrieves the period configuration of an activity.
func (r *mongoPeriodConfigRepository) GetByActivityID(ctx context.Context, activityID primitive.ObjectID) (*domain.PeriodConfig, error) {
	var cfg domain.PeriodConfig
	err := r.collection.FindOne(ctx, bson.M{"activityId": activityID}).Decode(&cfg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

// SetPeriodCount creates or updates the activity's period count and returns the stored row.
func (r *mongoPeriodConfigRepository) SetPeriodCount(ctx context.Context, activityID primitive.ObjectID, count int) (*domain.PeriodConfig, error) {
	if activityID == primitive.NilObjectID || count < 1 {
		return nil, repository.ErrInvalidInput
	}
	key := bson.M{"activityId": activityID}
	set := bson.M{"periodCount": count, "updatedAt": time.Now().UTC()}
	if _, err := upsertByNaturalKey(ctx, r.collection, key, nil, set); err != nil {
		return nil, err
	}
	return r.GetByActivityID(ctx, activityID)
}

// DeleteByActivityID removes the configuration, returning the activity to its default.
func (r *mongoPeriodConfigRepository) DeleteByActivityID(ctx context.Context, activityID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"activityId": activityID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsurePeriodConfigIndexes creates necessary indexes.
func EnsurePeriodConfigIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "activityId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
