package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/repository"
)

const workoutExerciseCollectionName = "workout_exercises"

type mongoWorkoutExerciseRepository struct {
	collection *mongo.Collection
}

// NewMongoWorkoutExerciseRepository creates the store for the ordered
// workout <-> exercise rows.
func NewMongoWorkoutExerciseRepository(db *mongo.Database) repository.WorkoutExerciseRepository {
	return &mongoWorkoutExerciseRepository{collection: db.Collection(workoutExerciseCollectionName)}
}

func (r *mongoWorkoutExerciseRepository) InsertMany(ctx context.Context, rows []domain.WorkoutExercise) error {
	if len(rows) == 0 {
		return nil
	}
	docs := make([]interface{}, len(rows))
	for i := range rows {
		if rows[i].ID.IsZero() {
			rows[i].ID = primitive.NewObjectID()
		}
		docs[i] = rows[i]
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

func (r *mongoWorkoutExerciseRepository) ListByWorkout(ctx context.Context, workoutID primitive.ObjectID) ([]domain.WorkoutExercise, error) {
	return findAll[domain.WorkoutExercise](ctx, r.collection,
		bson.M{"workoutId": workoutID},
		options.Find().SetSort(bson.D{{Key: "position", Value: 1}}),
	)
}

func (r *mongoWorkoutExerciseRepository) WorkoutIDsByExercise(ctx context.Context, exerciseID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return distinctIDs(ctx, r.collection, "workoutId", bson.M{"exerciseId": exerciseID})
}

func (r *mongoWorkoutExerciseRepository) DeleteByIDs(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	return err
}

func (r *mongoWorkoutExerciseRepository) DeleteByWorkout(ctx context.Context, workoutID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"workoutId": workoutID})
	return err
}

func (r *mongoWorkoutExerciseRepository) DeleteByOwner(ctx context.Context, ownerID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"userId": ownerID})
	return err
}

// UpdatePositions sends one ordered bulk write. Changes produced by
// composition.Renumber only move rows down into freed slots, in ascending
// order, so the unique (workoutId, position) index never sees a collision.
func (r *mongoWorkoutExerciseRepository) UpdatePositions(ctx context.Context, changes []domain.PositionChange) error {
	if len(changes) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(changes))
	for _, c := range changes {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": c.ID, "position": c.From}).
			SetUpdate(bson.M{"$set": bson.M{"position": c.To}}))
	}
	result, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return err
	}
	if result.MatchedCount != int64(len(changes)) {
		// A row moved underneath us; abort so the transaction rolls back.
		return repository.ErrNotFound
	}
	return nil
}

func EnsureWorkoutExerciseIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "workoutId", Value: 1}, {Key: "position", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "exerciseId", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
	})
	return err
}
