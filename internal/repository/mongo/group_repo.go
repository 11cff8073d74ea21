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

const groupCollectionName = "groups"

type mongoGroupRepository struct {
	collection *mongo.Collection
}

func NewMongoGroupRepository(db *mongo.Database) repository.GroupRepository {
	return &mongoGroupRepository{collection: db.Collection(groupCollectionName)}
}

func (r *mongoGroupRepository) Create(ctx context.Context, group *domain.Group) (primitive.ObjectID, error) {
	if group.Name == "" || group.UserID.IsZero() {
		return primitive.NilObjectID, errors.New("group name and owner ID are required")
	}
	group.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	group.CreatedAt = now
	group.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, group); err != nil {
		return primitive.NilObjectID, err
	}
	return group.ID, nil
}

func (r *mongoGroupRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Group, error) {
	var group domain.Group
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&group); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &group, nil
}

func (r *mongoGroupRepository) ListByOwner(ctx context.Context, ownerID primitive.ObjectID, page domain.PageRequest) ([]domain.Group, int64, error) {
	return findPage[domain.Group](ctx, r.collection, bson.M{"userId": ownerID}, page, byCreatedAsc)
}

func (r *mongoGroupRepository) CountByOwner(ctx context.Context, ownerID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"userId": ownerID})
}

func (r *mongoGroupRepository) IDsByWorkout(ctx context.Context, workoutID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return distinctIDs(ctx, r.collection, "_id", bson.M{"workoutId": workoutID})
}

func (r *mongoGroupRepository) WorkoutIDsForGroups(ctx context.Context, groupIDs []primitive.ObjectID) ([]primitive.ObjectID, error) {
	if len(groupIDs) == 0 {
		return []primitive.ObjectID{}, nil
	}
	return distinctIDs(ctx, r.collection, "workoutId", bson.M{
		"_id":       bson.M{"$in": groupIDs},
		"workoutId": bson.M{"$exists": true, "$ne": nil},
	})
}

func (r *mongoGroupRepository) updateByID(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoGroupRepository) Rename(ctx context.Context, id primitive.ObjectID, name string) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"name": name, "updatedAt": time.Now().UTC()}})
}

func (r *mongoGroupRepository) SetWorkout(ctx context.Context, id primitive.ObjectID, workoutID *primitive.ObjectID) error {
	now := time.Now().UTC()
	if workoutID == nil {
		return r.updateByID(ctx, id, bson.M{
			"$unset": bson.M{"workoutId": ""},
			"$set":   bson.M{"updatedAt": now},
		})
	}
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"workoutId": *workoutID, "updatedAt": now}})
}

func (r *mongoGroupRepository) DetachWorkoutEverywhere(ctx context.Context, workoutID primitive.ObjectID) error {
	_, err := r.collection.UpdateMany(ctx, bson.M{"workoutId": workoutID}, bson.M{
		"$unset": bson.M{"workoutId": ""},
		"$set":   bson.M{"updatedAt": time.Now().UTC()},
	})
	return err
}

// Delete removes the group document only; members are removed by the service
// in the same transaction.
func (r *mongoGroupRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoGroupRepository) DeleteByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]primitive.ObjectID, error) {
	ids, err := distinctIDs(ctx, r.collection, "_id", bson.M{"userId": ownerID})
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}
	if _, err := r.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return nil, err
	}
	return ids, nil
}

func EnsureGroupIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "workoutId", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	return err
}
