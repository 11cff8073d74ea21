package mongo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"fitshare/fitness-api/internal/apperr"
	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/repository"
)

func TestStorageErr(t *testing.T) {
	assert.NoError(t, storageErr(nil))

	for _, known := range []error{
		repository.ErrNotFound,
		repository.ErrDuplicate,
		apperr.ErrForbidden,
		fmt.Errorf("%w: exercise belongs to someone else", apperr.ErrForbidden),
	} {
		assert.Equal(t, known, storageErr(known))
	}

	err := storageErr(context.DeadlineExceeded)
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrUnexpected)
	assert.ErrorIs(t, err, apperr.ErrUnexpected)
	assert.False(t, errors.Is(err, context.DeadlineExceeded), "driver errors must not leak")
	assert.Contains(t, err.Error(), "deadline exceeded")
}

// The sort and filter keys used by the repositories must match what the
// domain types actually encode to.
func TestDocumentFieldNames(t *testing.T) {
	id := primitive.NewObjectID()
	docs := map[string]any{
		"user":             domain.User{Email: "a@b.c"},
		"workout":          domain.Workout{UserID: id},
		"workout exercise": domain.WorkoutExercise{WorkoutID: id, ExerciseID: id, Position: 1},
		"group":            domain.Group{UserID: id, WorkoutID: &id},
		"group member":     domain.GroupMember{GroupID: id, UserID: id},
	}
	want := map[string][]string{
		"user":             {"email", "plan", "isActive", "createdAt"},
		"workout":          {"userId", "createdAt"},
		"workout exercise": {"workoutId", "exerciseId", "userId", "position"},
		"group":            {"userId", "workoutId", "createdAt"},
		"group member":     {"groupId", "userId", "createdAt"},
	}

	for name, doc := range docs {
		raw, err := bson.Marshal(doc)
		require.NoError(t, err, name)
		var m bson.M
		require.NoError(t, bson.Unmarshal(raw, &m), name)
		for _, key := range want[name] {
			assert.Contains(t, m, key, "%s should encode %q", name, key)
		}
		assert.NotContains(t, m, "_id", "%s: zero id must be omitted so the driver assigns one", name)
	}

	for _, e := range byCreatedAsc {
		assert.Contains(t, []string{"createdAt", "_id"}, e.Key)
	}
}

func TestExerciseUpdateLeavesMediaAlone(t *testing.T) {
	reps := 12
	update := exerciseUpdate(&domain.Exercise{
		Title:       "Squat",
		Type:        "strength",
		Repetitions: &reps,
		MediaKey:    "stale/key.mp4",
		MediaURL:    "https://cdn.test/stale/key.mp4",
	})

	set, ok := update["$set"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, "Squat", set["title"])
	assert.Equal(t, &reps, set["repetitions"])
	assert.NotContains(t, set, "mediaKey")
	assert.NotContains(t, set, "mediaUrl")
	assert.NotContains(t, set, "userId")
	assert.NotContains(t, set, "createdAt")

	unset, ok := update["$unset"].(bson.M)
	require.True(t, ok)
	assert.Contains(t, unset, "timeWork")
	assert.NotContains(t, unset, "mediaKey")
}
