package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"fitshare/fitness-api/internal/apperr"
	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/repository"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI.
// Transactions need a replica set (a single-node one is enough).
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

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

// NewStore wires every Mongo repository against db.
func NewStore(client *mongo.Client, db *mongo.Database) repository.Store {
	return repository.Store{
		Tx:               NewTransactor(client),
		Users:            NewMongoUserRepository(db),
		Tokens:           NewMongoTokenRepository(db),
		Exercises:        NewMongoExerciseRepository(db),
		Workouts:         NewMongoWorkoutRepository(db),
		WorkoutExercises: NewMongoWorkoutExerciseRepository(db),
		Groups:           NewMongoGroupRepository(db),
		GroupMembers:     NewMongoGroupMemberRepository(db),
	}
}

type transactor struct {
	client *mongo.Client
}

// NewTransactor returns a Transactor backed by driver sessions.
func NewTransactor(client *mongo.Client) repository.Transactor {
	return &transactor{client: client}
}

// WithinTransaction runs fn in a multi-document transaction. The driver
// retries fn on TransientTransactionError, which is how concurrent quota
// checks for one owner get serialised. Calls nested in an open session
// join it.
func (t *transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := t.client.StartSession()
	if err != nil {
		return storageErr(err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return storageErr(err)
}

// storageErr passes domain and repository errors through and wraps
// everything else (driver, network, timeout) as repository.ErrUnexpected.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		repository.ErrNotFound, repository.ErrDuplicate,
		apperr.ErrUnauthenticated, apperr.ErrForbidden, apperr.ErrNotFound,
		apperr.ErrConflict, apperr.ErrValidation, apperr.ErrUnexpected,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", repository.ErrUnexpected, err)
}

// findPage runs a paginated Find plus the matching count.
func findPage[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, page domain.PageRequest, sort bson.D) ([]T, int64, error) {
	page = page.Normalize()

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(sort).SetSkip(page.Offset()).SetLimit(page.Limit)
	items, err := findAll[T](ctx, coll, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []T{}
	if err = cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// distinctIDs runs Distinct on an ObjectID field.
func distinctIDs(ctx context.Context, coll *mongo.Collection, field string, filter bson.M) ([]primitive.ObjectID, error) {
	values, err := coll.Distinct(ctx, field, filter)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(values))
	for _, v := range values {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

var byCreatedAsc = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
