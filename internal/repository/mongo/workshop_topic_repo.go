package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"alcyxob/coach-scheduler/internal/domain"
	"alcyxob/coach-scheduler/internal/repository"
)

const workshopTopicCollectionName = "workshop_topics"

// mongoWorkshopTopicRepository implements repository.WorkshopTopicRepository
type mongoWorkshopTopicRepository struct {
	collection *mongo.Collection
}

// NewMongoWorkshopTopicRepository creates a new WorkshopTopic repository.
func NewMongoWorkshopTopicRepository(db *mongo.Database) repository.WorkshopTopicRepository {
	return &mongoWorkshopTopicRepository{
		collection: db.Collection(workshopTopicCollectionName),
	}
}

func (r *mongoWorkshopTopicRepository) find(ctx context.Context, filter bson.M) ([]domain.WorkshopTopic, error) {
	var topics []domain.WorkshopTopic
	findOptions := options.Find().SetSort(bson.D{{Key: "activityId", Value: 1}, {Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

// GetByActivityID retrieves the topics of one workshop.
func (r *mongoWorkshopTopicRepository) GetByActivityID(ctx context.Context, activityID primitive.ObjectID) ([]domain.WorkshopTopic, error) {
	return r.find(ctx, bson.M{"activityId": activityID})
}

// GetAll retrieves every topic of every workshop.
func (r *mongoWorkshopTopicRepository) GetAll(ctx context.Context) ([]domain.WorkshopTopic, error) {
	return r.find(ctx, bson.M{})
}

// UpsertByName overwrites the topic's primary schedule or inserts the topic.
// An empty description never clears a stored one, and the secondary schedule of an
// existing topic is preserved.
func (r *mongoWorkshopTopicRepository) UpsertByName(ctx context.Context, topic *domain.WorkshopTopic) (bool, error) {
	if topic.ActivityID == primitive.NilObjectID || topic.Name == "" {
		return false, repository.ErrInvalidInput
	}

	now := time.Now().UTC()
	primary := topic.PrimarySchedule
	if primary == nil {
		primary = []domain.ScheduleSlot{}
	}
	key := bson.M{"activityId": topic.ActivityID, "name": topic.Name}
	set := bson.M{
		"primarySchedule": primary,
		"active":          topic.Active,
		"updatedAt":       now,
	}
	onInsert := bson.M{
		"secondarySchedule": []domain.ScheduleSlot{},
		"createdAt":         now,
	}
	if topic.Description != "" {
		set["description"] = topic.Description
	} else {
		onInsert["description"] = ""
	}

	return upsertByNaturalKey(ctx, r.collection, key, onInsert, set)
}

// SetActive updates only the active flag.
func (r *mongoWorkshopTopicRepository) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	update := bson.M{"$set": bson.M{"active": active, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureWorkshopTopicIndexes creates necessary indexes.
func EnsureWorkshopTopicIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Topic names are unique within a workshop; recovery matches on them
			Keys:    bson.D{{Key: "activityId", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
