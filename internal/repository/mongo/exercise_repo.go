package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/repository"
)

const exerciseCollectionName = "exercises"

// mongoExerciseRepository implements repository.ExerciseRepository
type mongoExerciseRepository struct {
	collection *mongo.Collection
}

// NewMongoExerciseRepository creates a new Exercise repository backed by MongoDB.
func NewMongoExerciseRepository(db *mongo.Database) repository.ExerciseRepository {
	return &mongoExerciseRepository{
		collection: db.Collection(exerciseCollectionName),
	}
}

// Create inserts a new exercise into the database.
func (r *mongoExerciseRepository) Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error) {
	if exercise.Title == "" || exercise.UserID.IsZero() {
		return primitive.NilObjectID, errors.New("exercise title and owner ID are required")
	}

	if exercise.ID.IsZero() {
		exercise.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	exercise.CreatedAt = now
	exercise.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, exercise)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves an exercise by its ID.
func (r *mongoExerciseRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	var exercise domain.Exercise
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&exercise); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &exercise, nil
}

// ListByOwner pages through an owner's exercises, oldest first.
func (r *mongoExerciseRepository) ListByOwner(ctx context.Context, ownerID primitive.ObjectID, page domain.PageRequest) ([]domain.Exercise, int64, error) {
	return findPage[domain.Exercise](ctx, r.collection, bson.M{"userId": ownerID}, page, byCreatedAsc)
}

func (r *mongoExerciseRepository) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Exercise, error) {
	if len(ids) == 0 {
		return []domain.Exercise{}, nil
	}
	return findAll[domain.Exercise](ctx, r.collection, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *mongoExerciseRepository) CountByOwner(ctx context.Context, ownerID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"userId": ownerID})
}

func (r *mongoExerciseRepository) CountOwnedAmong(ctx context.Context, ownerID primitive.ObjectID, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return r.collection.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": ids}, "userId": ownerID})
}

// Update replaces the stored document with exercise, keeping owner and
// creation time. Replacing (rather than $set) drops a timing mode that was
// switched off.
func (r *mongoExerciseRepository) Update(ctx context.Context, exercise *domain.Exercise) error {
	if exercise.ID.IsZero() {
		return errors.New("exercise ID is required for update")
	}
	if exercise.Title == "" {
		return errors.New("exercise title cannot be empty")
	}

	exercise.UpdatedAt = time.Now().UTC()
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": exercise.ID, "userId": exercise.UserID},
		exerciseUpdate(exercise),
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// exerciseUpdate sets the editable fields only. Media is owned by SetMedia
// and must not be overwritten from a copy read earlier.
func exerciseUpdate(e *domain.Exercise) bson.M {
	set := bson.M{"title": e.Title, "type": e.Type, "updatedAt": e.UpdatedAt}
	unset := bson.M{}
	optional := func(key string, v any, present bool) {
		if present {
			set[key] = v
		} else {
			unset[key] = ""
		}
	}
	optional("description", e.Description, e.Description != "")
	optional("meta", e.Meta, len(e.Meta) > 0)
	optional("timeWork", e.TimeWork, e.TimeWork != nil)
	optional("repetitions", e.Repetitions, e.Repetitions != nil)
	optional("countSets", e.CountSets, e.CountSets != nil)
	optional("restSec", e.RestSec, e.RestSec != nil)

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

func (r *mongoExerciseRepository) SetMedia(ctx context.Context, id primitive.ObjectID, key, url string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"mediaKey": key, "mediaUrl": url, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes an exercise. Detaching it from workouts is the caller's job.
func (r *mongoExerciseRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoExerciseRepository) DeleteByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]string, error) {
	filter := bson.M{"userId": ownerID}
	withMedia, err := findAll[domain.Exercise](ctx, r.collection,
		bson.M{"userId": ownerID, "mediaKey": bson.M{"$exists": true, "$ne": ""}},
		options.Find().SetProjection(bson.M{"mediaKey": 1}),
	)
	if err != nil {
		return nil, err
	}
	if _, err := r.collection.DeleteMany(ctx, filter); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(withMedia))
	for _, e := range withMedia {
		keys = append(keys, e.MediaKey)
	}
	return keys, nil
}

// EnsureExerciseIndexes creates indexes for the exercises collection.
func EnsureExerciseIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	return err
}
