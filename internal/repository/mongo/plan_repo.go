// internal/repository/mongo/plan_repo.go
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

const planCollectionName = "weekly_plans"

// mongoPlanRepository implements repository.PlanRepository
type mongoPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanRepository creates a new weekly plan repository.
func NewMongoPlanRepository(db *mongo.Database) repository.PlanRepository {
	return &mongoPlanRepository{
		collection: db.Collection(planCollectionName),
	}
}

// GetByActivityID retrieves every week of an activity's plan, lowest week first.
func (r *mongoPlanRepository) GetByActivityID(ctx context.Context, activityID primitive.ObjectID) ([]domain.WeeklyPlanEntry, error) {
	var entries []domain.WeeklyPlanEntry
	findOptions := options.Find().SetSort(bson.D{{Key: "weekNumber", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"activityId": activityID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetWeek retrieves a single week of an activity's plan.
func (r *mongoPlanRepository) GetWeek(ctx context.Context, activityID primitive.ObjectID, weekNumber int) (*domain.WeeklyPlanEntry, error) {
	var entry domain.WeeklyPlanEntry
	filter := bson.M{"activityId": activityID, "weekNumber": weekNumber}
	err := r.collection.FindOne(ctx, filter).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// UpsertWeek overwrites every day payload of the week, creating the row if needed.
func (r *mongoPlanRepository) UpsertWeek(ctx context.Context, entry *domain.WeeklyPlanEntry) error {
	if entry.ActivityID == primitive.NilObjectID || entry.WeekNumber < 1 {
		return repository.ErrInvalidInput
	}
	key := bson.M{"activityId": entry.ActivityID, "weekNumber": entry.WeekNumber}
	set := bson.M{"updatedAt": time.Now().UTC()}
	for _, day := range domain.Weekdays() {
		set[day.String()] = entry.Day(day)
	}
	_, err := upsertByNaturalKey(ctx, r.collection, key, nil, set)
	return err
}

// DeleteWeek removes one week of the plan.
func (r *mongoPlanRepository) DeleteWeek(ctx context.Context, activityID primitive.ObjectID, weekNumber int) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"activityId": activityID, "weekNumber": weekNumber})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsurePlanIndexes creates necessary indexes. Call during startup.
func EnsurePlanIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// One row per (activity, week)
			Keys:    bson.D{{Key: "activityId", Value: 1}, {Key: "weekNumber", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
