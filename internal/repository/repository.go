package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"fitshare/fitness-api/internal/apperr"
	"fitshare/fitness-api/internal/domain"
)

// Error constants for the repository layer.
var (
	ErrNotFound  = RepositoryError("not found")
	ErrDuplicate = RepositoryError("duplicate key")
	// ErrUnexpected wraps driver failures so they never leak past this layer.
	ErrUnexpected = fmt.Errorf("%w: storage failure", apperr.ErrUnexpected)
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// Transactor runs fn atomically. Repository calls made with the ctx handed
// to fn join the transaction. fn may be invoked more than once when the
// backend retries a transient conflict, so it must not have side effects
// that cannot be repeated.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	List(ctx context.Context, page domain.PageRequest) ([]domain.User, int64, error)
	ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.User, error)
	SetConfirmed(ctx context.Context, id primitive.ObjectID) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, upd domain.ProfileUpdate) error
	UpdateAdmin(ctx context.Context, id primitive.ObjectID, upd domain.AdminUserUpdate) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	// LockQuota bumps the owner's quota version. Inside a transaction this
	// makes concurrent quota-checked creates for the same owner conflict.
	LockQuota(ctx context.Context, id primitive.ObjectID) error
}

// TokenRepository stores the single live access token per user.
type TokenRepository interface {
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.AuthToken, error)
	// Save inserts or replaces the user's token.
	Save(ctx context.Context, token *domain.AuthToken) error
	DeleteByUserID(ctx context.Context, userID primitive.ObjectID) error
}

// ExerciseRepository defines the interface for interacting with exercise data.
type ExerciseRepository interface {
	Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error)
	ListByOwner(ctx context.Context, ownerID primitive.ObjectID, page domain.PageRequest) ([]domain.Exercise, int64, error)
	ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Exercise, error)
	CountByOwner(ctx context.Context, ownerID primitive.ObjectID) (int64, error)
	// CountOwnedAmong counts how many of ids exist and belong to ownerID.
	CountOwnedAmong(ctx context.Context, ownerID primitive.ObjectID, ids []primitive.ObjectID) (int64, error)
	Update(ctx context.Context, exercise *domain.Exercise) error
	SetMedia(ctx context.Context, id primitive.ObjectID, key, url string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	// DeleteByOwner removes all exercises of ownerID and returns their media keys.
	DeleteByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]string, error)
}

// WorkoutRepository defines the interface for interacting with workout data.
type WorkoutRepository interface {
	Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error)
	ListByOwner(ctx context.Context, ownerID primitive.ObjectID, page domain.PageRequest) ([]domain.Workout, int64, error)
	ListByIDs(ctx context.Context, ids []primitive.ObjectID, page domain.PageRequest) ([]domain.Workout, int64, error)
	CountByOwner(ctx context.Context, ownerID primitive.ObjectID) (int64, error)
	Update(ctx context.Context, workout *domain.Workout) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByOwner(ctx context.Context, ownerID primitive.ObjectID) error
}

// WorkoutExerciseRepository stores the ordered workout <-> exercise rows.
type WorkoutExerciseRepository interface {
	InsertMany(ctx context.Context, rows []domain.WorkoutExercise) error
	// ListByWorkout returns the rows of one workout ordered by position.
	ListByWorkout(ctx context.Context, workoutID primitive.ObjectID) ([]domain.WorkoutExercise, error)
	WorkoutIDsByExercise(ctx context.Context, exerciseID primitive.ObjectID) ([]primitive.ObjectID, error)
	DeleteByIDs(ctx context.Context, ids []primitive.ObjectID) error
	DeleteByWorkout(ctx context.Context, workoutID primitive.ObjectID) error
	DeleteByOwner(ctx context.Context, ownerID primitive.ObjectID) error
	// UpdatePositions applies the moves in order.
	UpdatePositions(ctx context.Context, changes []domain.PositionChange) error
}

// GroupRepository defines the interface for interacting with group data.
type GroupRepository interface {
	Create(ctx context.Context, group *domain.Group) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Group, error)
	ListByOwner(ctx context.Context, ownerID primitive.ObjectID, page domain.PageRequest) ([]domain.Group, int64, error)
	CountByOwner(ctx context.Context, ownerID primitive.ObjectID) (int64, error)
	// IDsByWorkout returns the groups the workout is attached to.
	IDsByWorkout(ctx context.Context, workoutID primitive.ObjectID) ([]primitive.ObjectID, error)
	// WorkoutIDsForGroups returns the distinct workouts attached to groupIDs.
	WorkoutIDsForGroups(ctx context.Context, groupIDs []primitive.ObjectID) ([]primitive.ObjectID, error)
	Rename(ctx context.Context, id primitive.ObjectID, name string) error
	// SetWorkout attaches workoutID, or detaches when it is nil.
	SetWorkout(ctx context.Context, id primitive.ObjectID, workoutID *primitive.ObjectID) error
	DetachWorkoutEverywhere(ctx context.Context, workoutID primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	// DeleteByOwner removes all groups of ownerID and returns their ids.
	DeleteByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]primitive.ObjectID, error)
}

// GroupMemberRepository defines the interface for group membership rows.
type GroupMemberRepository interface {
	AddMany(ctx context.Context, groupID primitive.ObjectID, userIDs []primitive.ObjectID) error
	ListByGroup(ctx context.Context, groupID primitive.ObjectID) ([]domain.GroupMember, error)
	CountByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error)
	GroupIDsByUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error)
	IsMember(ctx context.Context, groupIDs []primitive.ObjectID, userID primitive.ObjectID) (bool, error)
	Remove(ctx context.Context, groupID primitive.ObjectID, userIDs []primitive.ObjectID) (int64, error)
	DeleteByGroups(ctx context.Context, groupIDs []primitive.ObjectID) error
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) error
}

// Store bundles every repository of one backend.
type Store struct {
	Tx               Transactor
	Users            UserRepository
	Tokens           TokenRepository
	Exercises        ExerciseRepository
	Workouts         WorkoutRepository
	WorkoutExercises WorkoutExerciseRepository
	Groups           GroupRepository
	GroupMembers     GroupMemberRepository
}
