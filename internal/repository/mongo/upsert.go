package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// updater is the part of *mongo.Collection the upsert needs.
type updater interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// upsertByNaturalKey is the single find-or-create used by every repository that
// deduplicates on a natural key. key selects the document (and is copied into it on
// insert), onInsert is written only when the document is created, set is written
// either way. Fields must not appear in both onInsert and set.
//
// A duplicate-key error means a concurrent writer created the same key first. The
// upsert is then reported as "not created", and set is applied to that document with
// a plain update so it is not lost.
func upsertByNaturalKey(ctx context.Context, collection updater, key, onInsert, set bson.M) (bool, error) {
	update := bson.M{}
	if len(onInsert) > 0 {
		update["$setOnInsert"] = onInsert
	}
	if len(set) > 0 {
		update["$set"] = set
	}

	result, err := collection.UpdateOne(ctx, key, update, options.Update().SetUpsert(true))
	if err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return false, err
		}
		if len(set) == 0 {
			return false, nil
		}
		if _, err := collection.UpdateOne(ctx, key, bson.M{"$set": set}); err != nil {
			return false, err
		}
		return false, nil
	}
	return result.UpsertedCount > 0, nil
}
