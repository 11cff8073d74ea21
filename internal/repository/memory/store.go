// Package memory is an in-process implementation of every repository. It is
// selected with database.driver=memory and backs the service and API tests.
// Transactions are serialised on one mutex and rolled back from a snapshot.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/repository"
)

// Store holds all collections. The zero value is not usable; call New.
type Store struct {
	mu sync.Mutex

	users            map[primitive.ObjectID]domain.User
	tokens           map[primitive.ObjectID]domain.AuthToken // by user id
	exercises        map[primitive.ObjectID]domain.Exercise
	workouts         map[primitive.ObjectID]domain.Workout
	workoutExercises map[primitive.ObjectID]domain.WorkoutExercise
	groups           map[primitive.ObjectID]domain.Group
	members          map[primitive.ObjectID]domain.GroupMember
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:            make(map[primitive.ObjectID]domain.User),
		tokens:           make(map[primitive.ObjectID]domain.AuthToken),
		exercises:        make(map[primitive.ObjectID]domain.Exercise),
		workouts:         make(map[primitive.ObjectID]domain.Workout),
		workoutExercises: make(map[primitive.ObjectID]domain.WorkoutExercise),
		groups:           make(map[primitive.ObjectID]domain.Group),
		members:          make(map[primitive.ObjectID]domain.GroupMember),
	}
}

// NewStore returns the repository bundle over a fresh in-memory store.
func NewStore() repository.Store {
	return New().Repositories()
}

// Repositories returns the repository bundle over s.
func (s *Store) Repositories() repository.Store {
	return repository.Store{
		Tx:               s,
		Users:            &userRepo{s},
		Tokens:           &tokenRepo{s},
		Exercises:        &exerciseRepo{s},
		Workouts:         &workoutRepo{s},
		WorkoutExercises: &workoutExerciseRepo{s},
		Groups:           &groupRepo{s},
		GroupMembers:     &groupMemberRepo{s},
	}
}

type txKey struct{}

// lock takes the store mutex unless ctx already belongs to a transaction
// on this store, which holds it.
func (s *Store) lock(ctx context.Context) func() {
	if owner, _ := ctx.Value(txKey{}).(*Store); owner == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithinTransaction implements repository.Transactor.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, _ := ctx.Value(txKey{}).(*Store); owner == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	users            map[primitive.ObjectID]domain.User
	tokens           map[primitive.ObjectID]domain.AuthToken
	exercises        map[primitive.ObjectID]domain.Exercise
	workouts         map[primitive.ObjectID]domain.Workout
	workoutExercises map[primitive.ObjectID]domain.WorkoutExercise
	groups           map[primitive.ObjectID]domain.Group
	members          map[primitive.ObjectID]domain.GroupMember
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		users:            cloneMap(s.users),
		tokens:           cloneMap(s.tokens),
		exercises:        cloneMap(s.exercises),
		workouts:         cloneMap(s.workouts),
		workoutExercises: cloneMap(s.workoutExercises),
		groups:           cloneMap(s.groups),
		members:          cloneMap(s.members),
	}
}

func (s *Store) restore(snap snapshot) {
	s.users = snap.users
	s.tokens = snap.tokens
	s.exercises = snap.exercises
	s.workouts = snap.workouts
	s.workoutExercises = snap.workoutExercises
	s.groups = snap.groups
	s.members = snap.members
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// sortedBy returns the values of m matching keep, ordered by less.
func sortedBy[V any](m map[primitive.ObjectID]V, keep func(V) bool, less func(a, b V) bool) []V {
	out := make([]V, 0)
	for _, v := range m {
		if keep(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func paginate[T any](items []T, page domain.PageRequest) ([]T, int64) {
	page = page.Normalize()
	total := int64(len(items))
	start := page.Offset()
	if start >= total {
		return []T{}, total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return items[start:end], total
}

func idSet(ids []primitive.ObjectID) map[primitive.ObjectID]struct{} {
	set := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// createdBefore orders by creation time, then id.
func createdBefore(aAt, bAt time.Time, aID, bID primitive.ObjectID) bool {
	if !aAt.Equal(bAt) {
		return aAt.Before(bAt)
	}
	return aID.Hex() < bID.Hex()
}
