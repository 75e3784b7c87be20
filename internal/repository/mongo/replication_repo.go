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

const replicationCollectionName = "exercise_replications"

// mongoReplicationRepository implements repository.ReplicationRepository
type mongoReplicationRepository struct {
	collection *mongo.Collection
}

// NewMongoReplicationRepository creates a new replication record repository.
func NewMongoReplicationRepository(db *mongo.Database) repository.ReplicationRepository {
	return &mongoReplicationRepository{
		collection: db.Collection(replicationCollectionName),
	}
}

// Create inserts a new replication record.
func (r *mongoReplicationRepository) Create(ctx context.Context, record *domain.ReplicationRecord) (primitive.ObjectID, error) {
	if record.ActivityID == primitive.NilObjectID || record.Type == "" {
		return primitive.NilObjectID, repository.ErrInvalidInput
	}
	record.ID = primitive.NewObjectID()
	record.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted replication ID")
	}
	return insertedID, nil
}

// GetByID retrieves a replication record by its ID.
func (r *mongoReplicationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ReplicationRecord, error) {
	var record domain.ReplicationRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// GetActiveByActivityID lists the records that have not been reverted, newest first.
func (r *mongoReplicationRepository) GetActiveByActivityID(ctx context.Context, activityID primitive.ObjectID) ([]domain.ReplicationRecord, error) {
	var records []domain.ReplicationRecord
	filter := bson.M{"activityId": activityID, "reverted": false}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "targetWeek", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// MarkReverted flags the record as undone. A record can only be reverted once.
func (r *mongoReplicationRepository) MarkReverted(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	filter := bson.M{"_id": id, "reverted": false}
	update := bson.M{"$set": bson.M{"reverted": true, "revertedAt": at}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrUpdateFailed
	}
	return nil
}

// EnsureReplicationIndexes creates necessary indexes.
func EnsureReplicationIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "activityId", Value: 1}, {Key: "reverted", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "batchId", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
