package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"alcyxob/coach-scheduler/internal/domain"
	"alcyxob/coach-scheduler/internal/repository"
)

const topicLogCollectionName = "topic_execution_logs"

// mongoTopicLogRepository implements repository.TopicLogRepository
type mongoTopicLogRepository struct {
	collection *mongo.Collection
}

// NewMongoTopicLogRepository creates a new topic execution log repository.
func NewMongoTopicLogRepository(db *mongo.Database) repository.TopicLogRepository {
	return &mongoTopicLogRepository{
		collection: db.Collection(topicLogCollectionName),
	}
}

// GetByActivityID retrieves every attendance log of a workshop, oldest first.
func (r *mongoTopicLogRepository) GetByActivityID(ctx context.Context, activityID primitive.ObjectID) ([]domain.TopicExecutionLog, error) {
	var logs []domain.TopicExecutionLog
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"activityId": activityID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// EnsureTopicLogIndexes creates necessary indexes.
func EnsureTopicLogIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "activityId", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "executionRunId", Value: 1}, {Key: "topicId", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
