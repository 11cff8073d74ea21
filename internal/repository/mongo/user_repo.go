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

const userCollectionName = "users"

// mongoUserRepository implements repository.UserRepository
type mongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new user repository backed by MongoDB.
func NewMongoUserRepository(db *mongo.Database) repository.UserRepository {
	return &mongoUserRepository{
		collection: db.Collection(userCollectionName),
	}
}

// Create inserts a new user. A taken email yields repository.ErrDuplicate.
func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.PasswordHash == "" {
		return primitive.NilObjectID, errors.New("user email and password hash are required")
	}

	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	return user.ID, nil
}

func (r *mongoUserRepository) getOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByEmail finds a user by their (already normalised) email address.
func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, bson.M{"email": email})
}

// GetByID finds a user by their ObjectID.
func (r *mongoUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return r.getOne(ctx, bson.M{"_id": id})
}

func (r *mongoUserRepository) List(ctx context.Context, page domain.PageRequest) ([]domain.User, int64, error) {
	return findPage[domain.User](ctx, r.collection, bson.M{}, page, byCreatedAsc)
}

func (r *mongoUserRepository) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	return findAll[domain.User](ctx, r.collection, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *mongoUserRepository) updateByID(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoUserRepository) SetConfirmed(ctx context.Context, id primitive.ObjectID) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"isConfirmed": true, "updatedAt": time.Now().UTC()}})
}

func profileSet(set bson.M, upd domain.ProfileUpdate) {
	if upd.FirstName != nil {
		set["firstName"] = *upd.FirstName
	}
	if upd.LastName != nil {
		set["lastName"] = *upd.LastName
	}
	if upd.BirthDate != nil {
		set["birthDate"] = upd.BirthDate.UTC()
	}
}

func (r *mongoUserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd domain.ProfileUpdate) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	profileSet(set, upd)
	return r.updateByID(ctx, id, bson.M{"$set": set})
}

// UpdateAdmin applies administrator-only changes. Changing to an email that
// already exists yields repository.ErrDuplicate.
func (r *mongoUserRepository) UpdateAdmin(ctx context.Context, id primitive.ObjectID, upd domain.AdminUserUpdate) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	profileSet(set, upd.ProfileUpdate)
	if upd.Email != nil {
		set["email"] = *upd.Email
	}
	if upd.Plan != nil {
		set["plan"] = *upd.Plan
	}
	if upd.IsActive != nil {
		set["isActive"] = *upd.IsActive
	}
	if upd.IsConfirmed != nil {
		set["isConfirmed"] = *upd.IsConfirmed
	}
	if upd.IsAdmin != nil {
		set["isAdmin"] = *upd.IsAdmin
	}
	return r.updateByID(ctx, id, bson.M{"$set": set})
}

func (r *mongoUserRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// LockQuota increments quotaVersion. Two transactions doing this for the same
// owner hit a write conflict; the driver aborts and retries the later one.
func (r *mongoUserRepository) LockQuota(ctx context.Context, id primitive.ObjectID) error {
	return r.updateByID(ctx, id, bson.M{"$inc": bson.M{"quotaVersion": 1}})
}

// EnsureUserIndexes creates necessary indexes for the users collection.
func EnsureUserIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "createdAt", Value: 1}}},
	})
	return err
}
