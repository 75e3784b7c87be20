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

const executionCollectionName = "exercise_executions"

// mongoExecutionRepository implements repository.ExecutionRepository
type mongoExecutionRepository struct {
	collection *mongo.Collection
}

// NewMongoExecutionRepository creates a new Execution repository backed by MongoDB.
func NewMongoExecutionRepository(db *mongo.Database) repository.ExecutionRepository {
	return &mongoExecutionRepository{
		collection: db.Collection(executionCollectionName),
	}
}

// executionKey is the natural key; it must match the unique index below.
func executionKey(e *domain.ExerciseExecution) bson.M {
	return bson.M{
		"clientId":       e.ClientID,
		"periodConfigId": e.PeriodConfigID,
		"exerciseId":     e.ExerciseID,
		"period":         e.Period,
		"week":           e.Week,
		"weekday":        e.Weekday,
		"blockNumber":    e.BlockNumber,
		"orderInBlock":   e.OrderInBlock,
	}
}

// InsertIfAbsent creates the execution unless its natural key is already taken.
func (r *mongoExecutionRepository) InsertIfAbsent(ctx context.Context, execution *domain.ExerciseExecution) (bool, error) {
	if execution.ClientID == primitive.NilObjectID || execution.ExerciseID == primitive.NilObjectID {
		return false, repository.ErrInvalidInput
	}

	now := time.Now().UTC()
	onInsert := bson.M{
		"activityId":           execution.ActivityID,
		"enrollmentId":         execution.EnrollmentID,
		"detailOfSetsSnapshot": execution.DetailOfSetsSnapshot,
		"completed":            false,
		"createdAt":            now,
		"updatedAt":            now,
	}
	if execution.ScheduledDate != nil {
		onInsert["scheduledDate"] = *execution.ScheduledDate
	}

	return upsertByNaturalKey(ctx, r.collection, executionKey(execution), onInsert, nil)
}

// GetByID retrieves an execution by its ID.
func (r *mongoExecutionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ExerciseExecution, error) {
	var execution domain.ExerciseExecution
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&execution)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &execution, nil
}

// GetByClientID retrieves every execution of a client across all activities.
func (r *mongoExecutionRepository) GetByClientID(ctx context.Context, clientID primitive.ObjectID) ([]domain.ExerciseExecution, error) {
	var executions []domain.ExerciseExecution
	findOptions := options.Find().SetSort(bson.D{
		{Key: "period", Value: 1},
		{Key: "week", Value: 1},
		{Key: "blockNumber", Value: 1},
		{Key: "orderInBlock", Value: 1},
	})

	cursor, err := r.collection.Find(ctx, bson.M{"clientId": clientID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &executions); err != nil {
		return nil, err
	}
	return executions, nil
}

// SetScheduledDate overwrites (or clears, when date is nil) the scheduled date.
func (r *mongoExecutionRepository) SetScheduledDate(ctx context.Context, id primitive.ObjectID, date *time.Time) error {
	var update bson.M
	if date == nil {
		update = bson.M{
			"$unset": bson.M{"scheduledDate": ""},
			"$set":   bson.M{"updatedAt": time.Now().UTC()},
		}
	} else {
		update = bson.M{"$set": bson.M{"scheduledDate": *date, "updatedAt": time.Now().UTC()}}
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateProgress sets the client-owned fields; nil arguments are left unchanged.
func (r *mongoExecutionRepository) UpdateProgress(ctx context.Context, id primitive.ObjectID, completed *bool, clientNote *string) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if completed != nil {
		set["completed"] = *completed
	}
	if clientNote != nil {
		set["clientNote"] = *clientNote
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureExecutionIndexes creates necessary indexes for the executions collection.
func EnsureExecutionIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Natural key; makes re-materialization idempotent
			Keys: bson.D{
				{Key: "clientId", Value: 1},
				{Key: "periodConfigId", Value: 1},
				{Key: "exerciseId", Value: 1},
				{Key: "period", Value: 1},
				{Key: "week", Value: 1},
				{Key: "weekday", Value: 1},
				{Key: "blockNumber", Value: 1},
				{Key: "orderInBlock", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("execution_natural_key"),
		},
		{
			Keys:    bson.D{{Key: "enrollmentId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "scheduledDate", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
