package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/sync/errgroup"

	"alcyxob/coach-scheduler/internal/repository"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI.
// It returns the mongo.Client which can be used to access databases and collections.
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// The initial connect can succeed against an unresponsive server, so ping separately.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes of every collection, one goroutine per collection.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return EnsurePlanIndexes(ctx, db.Collection(planCollectionName)) })
	g.Go(func() error { return EnsurePeriodConfigIndexes(ctx, db.Collection(periodConfigCollectionName)) })
	g.Go(func() error { return EnsureExerciseIndexes(ctx, db.Collection(exerciseCollectionName)) })
	g.Go(func() error { return EnsureExecutionIndexes(ctx, db.Collection(executionCollectionName)) })
	g.Go(func() error { return EnsureWorkshopTopicIndexes(ctx, db.Collection(workshopTopicCollectionName)) })
	g.Go(func() error { return EnsureTopicLogIndexes(ctx, db.Collection(topicLogCollectionName)) })
	g.Go(func() error { return EnsureReplicationIndexes(ctx, db.Collection(replicationCollectionName)) })
	g.Go(func() error { return EnsureEnrollmentIndexes(ctx, db.Collection(enrollmentCollectionName)) })
	return g.Wait()
}

// mongoUnitOfWork implements repository.UnitOfWork with a session transaction.
// Transactions need a replica set; with transactions disabled fn runs directly.
type mongoUnitOfWork struct {
	client       *mongo.Client
	transactions bool
}

// NewUnitOfWork creates a UnitOfWork over the given client.
func NewUnitOfWork(client *mongo.Client, transactions bool) repository.UnitOfWork {
	return &mongoUnitOfWork{client: client, transactions: transactions}
}

func (u *mongoUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !u.transactions {
		return fn(ctx)
	}
	session, err := u.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
