package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/repository"
)

const groupMemberCollectionName = "group_members"

type mongoGroupMemberRepository struct {
	collection *mongo.Collection
}

func NewMongoGroupMemberRepository(db *mongo.Database) repository.GroupMemberRepository {
	return &mongoGroupMemberRepository{collection: db.Collection(groupMemberCollectionName)}
}

// AddMany inserts one membership per user. The unique (groupId, userId)
// index turns a repeated member into repository.ErrDuplicate.
func (r *mongoGroupMemberRepository) AddMany(ctx context.Context, groupID primitive.ObjectID, userIDs []primitive.ObjectID) error {
	if len(userIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(userIDs))
	for _, uid := range userIDs {
		docs = append(docs, domain.GroupMember{
			ID:        primitive.NewObjectID(),
			GroupID:   groupID,
			UserID:    uid,
			CreatedAt: now,
		})
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *mongoGroupMemberRepository) ListByGroup(ctx context.Context, groupID primitive.ObjectID) ([]domain.GroupMember, error) {
	return findAll[domain.GroupMember](ctx, r.collection,
		bson.M{"groupId": groupID},
		options.Find().SetSort(byCreatedAsc),
	)
}

func (r *mongoGroupMemberRepository) CountByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"groupId": groupID})
}

func (r *mongoGroupMemberRepository) GroupIDsByUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return distinctIDs(ctx, r.collection, "groupId", bson.M{"userId": userID})
}

func (r *mongoGroupMemberRepository) IsMember(ctx context.Context, groupIDs []primitive.ObjectID, userID primitive.ObjectID) (bool, error) {
	if len(groupIDs) == 0 {
		return false, nil
	}
	n, err := r.collection.CountDocuments(ctx,
		bson.M{"groupId": bson.M{"$in": groupIDs}, "userId": userID},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *mongoGroupMemberRepository) Remove(ctx context.Context, groupID primitive.ObjectID, userIDs []primitive.ObjectID) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	result, err := r.collection.DeleteMany(ctx, bson.M{"groupId": groupID, "userId": bson.M{"$in": userIDs}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (r *mongoGroupMemberRepository) DeleteByGroups(ctx context.Context, groupIDs []primitive.ObjectID) error {
	if len(groupIDs) == 0 {
		return nil
	}
	_, err := r.collection.DeleteMany(ctx, bson.M{"groupId": bson.M{"$in": groupIDs}})
	return err
}

func (r *mongoGroupMemberRepository) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"userId": userID})
	return err
}

func EnsureGroupMemberIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "groupId", Value: 1}, {Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
	})
	return err
}
