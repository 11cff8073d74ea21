package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"

	"fitshare/fitness-api/internal/auth"
	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/quota"
	"fitshare/fitness-api/internal/repository"
	"fitshare/fitness-api/internal/repository/memory"
)

type fakeFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failPut bool
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{objects: map[string][]byte{}}
}

func (f *fakeFiles) Upload(_ context.Context, key string, data []byte, _ string, _ bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut {
		return "", errors.New("bucket unavailable")
	}
	f.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func (f *fakeFiles) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.test/" + key, nil
}

func (f *fakeFiles) DeleteObject(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type enqueued struct {
	task    string
	payload any
	queue   string
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []enqueued
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, task string, payload any, queueName string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.tasks = append(q.tasks, enqueued{task: task, payload: payload, queue: queueName})
	return primitive.NewObjectID().Hex(), nil
}

// free plan: 1 group, 3 exercises, 2 workouts, 2 members per group
var testLimits = quota.NewTable(
	domain.PlanLimits{Groups: 1, Exercises: 3, Workouts: 2, MembersPerGroup: 2},
	domain.PlanLimits{Groups: 5, Exercises: 50, Workouts: 20, MembersPerGroup: 10},
)

type env struct {
	store     repository.Store
	files     *fakeFiles
	queue     *fakeQueue
	tokens    *auth.TokenManager
	auth      AuthService
	users     UserService
	exercises ExerciseService
	workouts  WorkoutService
	groups    GroupService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	e := &env{
		store:  store,
		files:  newFakeFiles(),
		queue:  &fakeQueue{},
		tokens: auth.NewTokenManager("test-secret"),
	}
	e.auth = NewAuthService(store, e.tokens, e.queue, AuthOptions{
		AccessTTL:     time.Hour,
		VerifyTTL:     30 * time.Minute,
		BcryptCost:    4,
		AppBaseURL:    "http://localhost:8080",
		EmailQueue:    "email",
		SignupSubject: "Confirm your email",
	}, logger)
	e.users = NewUserService(store, e.files, logger)
	e.exercises = NewExerciseService(store, testLimits, e.files, logger)
	e.workouts = NewWorkoutService(store, testLimits, logger)
	e.groups = NewGroupService(store, testLimits, logger)
	return e
}

// seedUser stores an active, confirmed user and returns it with a context
// that carries it as the principal.
func (e *env) seedUser(t *testing.T, email string, admin bool) (*domain.User, context.Context) {
	t.Helper()
	u := &domain.User{
		Email:        email,
		PasswordHash: "not-a-real-hash",
		IsActive:     true,
		IsConfirmed:  true,
		IsAdmin:      admin,
		Plan:         domain.PlanFree,
	}
	_, err := e.store.Users.Create(context.Background(), u)
	require.NoError(t, err)
	return u, auth.WithPrincipal(context.Background(), auth.PrincipalFromUser(u))
}

func intp(v int) *int { return &v }

func repsInput(title string) ExerciseInput {
	return ExerciseInput{Title: title, Repetitions: intp(10), CountSets: intp(3)}
}

func (e *env) newExercise(t *testing.T, ctx context.Context, title string) *domain.Exercise {
	t.Helper()
	ex, err := e.exercises.CreateExercise(ctx, repsInput(title), nil, nil)
	require.NoError(t, err)
	return ex
}

func items(ids ...primitive.ObjectID) []domain.WorkoutItem {
	out := make([]domain.WorkoutItem, len(ids))
	for i, id := range ids {
		out[i] = domain.WorkoutItem{ExerciseID: id, Position: i + 1}
	}
	return out
}

func positionsOf(t *testing.T, store repository.Store, workoutID primitive.ObjectID) map[primitive.ObjectID]int {
	t.Helper()
	rows, err := store.WorkoutExercises.ListByWorkout(context.Background(), workoutID)
	require.NoError(t, err)
	out := make(map[primitive.ObjectID]int, len(rows))
	for _, r := range rows {
		out[r.ExerciseID] = r.Position
	}
	return out
}
