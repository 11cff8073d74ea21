package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/repository"
)

const workoutCollectionName = "workouts"

type mongoWorkoutRepository struct {
	collection *mongo.Collection
}

// NewMongoWorkoutRepository creates a repository for workout shells. The
// ordered exercise rows live in their own collection.
func NewMongoWorkoutRepository(db *mongo.Database) repository.WorkoutRepository {
	return &mongoWorkoutRepository{collection: db.Collection(workoutCollectionName)}
}

func (r *mongoWorkoutRepository) Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error) {
	if workout.Title == "" || workout.UserID.IsZero() {
		return primitive.NilObjectID, errors.New("workout title and owner ID are required")
	}
	if workout.ID.IsZero() {
		workout.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	workout.CreatedAt = now
	workout.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, workout); err != nil {
		return primitive.NilObjectID, err
	}
	return workout.ID, nil
}

func (r *mongoWorkoutRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error) {
	var workout domain.Workout
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&workout); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &workout, nil
}

func (r *mongoWorkoutRepository) ListByOwner(ctx context.Context, ownerID primitive.ObjectID, page domain.PageRequest) ([]domain.Workout, int64, error) {
	return findPage[domain.Workout](ctx, r.collection, bson.M{"userId": ownerID}, page, byCreatedAsc)
}

func (r *mongoWorkoutRepository) ListByIDs(ctx context.Context, ids []primitive.ObjectID, page domain.PageRequest) ([]domain.Workout, int64, error) {
	if len(ids) == 0 {
		return []domain.Workout{}, 0, nil
	}
	return findPage[domain.Workout](ctx, r.collection, bson.M{"_id": bson.M{"$in": ids}}, page, byCreatedAsc)
}

func (r *mongoWorkoutRepository) CountByOwner(ctx context.Context, ownerID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"userId": ownerID})
}

// Update changes title and description only.
func (r *mongoWorkoutRepository) Update(ctx context.Context, workout *domain.Workout) error {
	if workout.Title == "" {
		return errors.New("workout title cannot be empty")
	}
	workout.UpdatedAt = time.Now().UTC()
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": workout.ID}, bson.M{
		"$set": bson.M{
			"title":       workout.Title,
			"description": workout.Description,
			"updatedAt":   workout.UpdatedAt,
		},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoWorkoutRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoWorkoutRepository) DeleteByOwner(ctx context.Context, ownerID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"userId": ownerID})
	return err
}

func EnsureWorkoutIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	return err
}
