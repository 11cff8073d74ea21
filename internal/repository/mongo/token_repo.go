package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/repository"
)

const tokenCollectionName = "auth_tokens"

type mongoTokenRepository struct {
	collection *mongo.Collection
}

// NewMongoTokenRepository creates the auth token store. One document per user.
func NewMongoTokenRepository(db *mongo.Database) repository.TokenRepository {
	return &mongoTokenRepository{collection: db.Collection(tokenCollectionName)}
}

func (r *mongoTokenRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.AuthToken, error) {
	var token domain.AuthToken
	if err := r.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&token); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &token, nil
}

// Save replaces the user's token document, inserting it on first login.
func (r *mongoTokenRepository) Save(ctx context.Context, token *domain.AuthToken) error {
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"userId": token.UserID},
		token,
		options.Replace().SetUpsert(true),
	)
	return err
}

// DeleteByUserID is a no-op when the user has no token.
func (r *mongoTokenRepository) DeleteByUserID(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"userId": userID})
	return err
}

func EnsureTokenIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
