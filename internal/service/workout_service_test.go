package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"fitshare/fitness-api/internal/composition"
	"fitshare/fitness-api/internal/domain"
)

func TestCreateWorkoutPositions(t *testing.T) {
	e := newEnv(t)
	_, alice := e.seedUser(t, "alice@example.com", false)
	a := e.newExercise(t, alice, "A")
	b := e.newExercise(t, alice, "B")
	c := e.newExercise(t, alice, "C")

	w, err := e.workouts.CreateWorkout(alice, WorkoutInput{Title: "Legs", Items: items(a.ID, b.ID, c.ID)}, nil)
	require.NoError(t, err)
	require.Len(t, w.Items, 3)
	for i, row := range w.Items {
		assert.Equal(t, i+1, row.Position)
	}
	assert.Len(t, w.Exercises, 3)

	gap := []domain.WorkoutItem{{ExerciseID: a.ID, Position: 1}, {ExerciseID: b.ID, Position: 2}, {ExerciseID: c.ID, Position: 4}}
	_, err = e.workouts.CreateWorkout(alice, WorkoutInput{Title: "Gap", Items: gap}, nil)
	require.ErrorIs(t, err, ErrValidation)
	var perr *composition.PositionError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, []int{3}, perr.Missing)

	dup := []domain.WorkoutItem{{ExerciseID: a.ID, Position: 1}, {ExerciseID: b.ID, Position: 1}, {ExerciseID: c.ID, Position: 2}}
	_, err = e.workouts.CreateWorkout(alice, WorkoutInput{Title: "Dup", Items: dup}, nil)
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, []int{1}, perr.Duplicates)
}

func TestCreateWorkoutEdgeCases(t *testing.T) {
	e := newEnv(t)
	_, alice := e.seedUser(t, "alice@example.com", false)
	_, bob := e.seedUser(t, "bob@example.com", false)
	bobs := e.newExercise(t, bob, "Bob's")

	empty, err := e.workouts.CreateWorkout(alice, WorkoutInput{Title: "Rest day"}, nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)

	_, err = e.workouts.CreateWorkout(alice, WorkoutInput{Title: "Stolen", Items: items(bobs.ID)}, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	// the failed create consumed no quota
	_, err = e.workouts.CreateWorkout(alice, WorkoutInput{Title: "Second"}, nil)
	require.NoError(t, err)
	_, err = e.workouts.CreateWorkout(alice, WorkoutInput{Title: "Third"}, nil)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "limit for creating workouts")
}

func TestUpdateWorkoutReplacesList(t *testing.T) {
	e := newEnv(t)
	_, alice := e.seedUser(t, "alice@example.com", false)
	_, bob := e.seedUser(t, "bob@example.com", false)
	a := e.newExercise(t, alice, "A")
	b := e.newExercise(t, alice, "B")
	c := e.newExercise(t, alice, "C")

	w, err := e.workouts.CreateWorkout(alice, WorkoutInput{Title: "Legs", Items: items(a.ID, b.ID)}, nil)
	require.NoError(t, err)

	updated, err := e.workouts.UpdateWorkout(alice, w.Workout.ID, WorkoutInput{Title: "Legs v2", Items: items(c.ID, a.ID)})
	require.NoError(t, err)
	assert.Equal(t, "Legs v2", updated.Workout.Title)
	assert.Equal(t, map[primitive.ObjectID]int{c.ID: 1, a.ID: 2}, positionsOf(t, e.store, w.Workout.ID))

	// invalid input leaves the old list in place
	_, err = e.workouts.UpdateWorkout(alice, w.Workout.ID, WorkoutInput{Title: "Broken", Items: []domain.WorkoutItem{{ExerciseID: b.ID, Position: 2}}})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, map[primitive.ObjectID]int{c.ID: 1, a.ID: 2}, positionsOf(t, e.store, w.Workout.ID))

	_, err = e.workouts.UpdateWorkout(bob, w.Workout.ID, WorkoutInput{Title: "Mine now"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSharedWorkoutVisibility(t *testing.T) {
	e := newEnv(t)
	_, alice := e.seedUser(t, "alice@example.com", false)
	bob, bctx := e.seedUser(t, "bob@example.com", false)
	_, carol := e.seedUser(t, "carol@example.com", false)
	a := e.newExercise(t, alice, "A")

	w, err := e.workouts.CreateWorkout(alice, WorkoutInput{Title: "Shared", Items: items(a.ID)}, nil)
	require.NoError(t, err)
	g, err := e.groups.CreateGroup(alice, "Club", nil)
	require.NoError(t, err)
	_, err = e.groups.AddMembers(alice, g.ID, []primitive.ObjectID{bob.ID})
	require.NoError(t, err)

	_, err = e.workouts.GetWorkout(bctx, w.Workout.ID)
	assert.ErrorIs(t, err, ErrNotFound, "not attached yet")

	_, err = e.groups.AttachWorkout(alice, g.ID, w.Workout.ID)
	require.NoError(t, err)

	d, err := e.workouts.GetWorkout(bctx, w.Workout.ID)
	require.NoError(t, err)
	assert.Len(t, d.Items, 1)
	_, err = e.workouts.GetWorkout(carol, w.Workout.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// visibility is read-only
	_, err = e.workouts.UpdateWorkout(bctx, w.Workout.ID, WorkoutInput{Title: "Hijack"})
	assert.ErrorIs(t, err, ErrNotFound)

	shared, err := e.workouts.ListSharedWorkouts(bctx, domain.PageRequest{})
	require.NoError(t, err)
	require.Len(t, shared.Items, 1)
	assert.Equal(t, w.Workout.ID, shared.Items[0].ID)

	none, err := e.workouts.ListSharedWorkouts(carol, domain.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, none.Items)
	assert.Zero(t, none.Meta.Total)
}

func TestDeleteWorkoutDetachesFromGroups(t *testing.T) {
	e := newEnv(t)
	_, alice := e.seedUser(t, "alice@example.com", false)
	a := e.newExercise(t, alice, "A")
	w, err := e.workouts.CreateWorkout(alice, WorkoutInput{Title: "W", Items: items(a.ID)}, nil)
	require.NoError(t, err)
	g, err := e.groups.CreateGroup(alice, "Club", nil)
	require.NoError(t, err)
	_, err = e.groups.AttachWorkout(alice, g.ID, w.Workout.ID)
	require.NoError(t, err)

	require.NoError(t, e.workouts.DeleteWorkout(alice, w.Workout.ID))

	d, err := e.groups.GetGroup(alice, g.ID)
	require.NoError(t, err)
	assert.Nil(t, d.Group.WorkoutID)
	assert.Nil(t, d.Workout)
	assert.Empty(t, positionsOf(t, e.store, w.Workout.ID))

	// the exercise survives
	_, err = e.exercises.GetExercise(alice, a.ID)
	assert.NoError(t, err)
}

func TestListWorkoutsPaginates(t *testing.T) {
	e := newEnv(t)
	alice, _ := e.seedUser(t, "alice@example.com", false)
	_, admin := e.seedUser(t, "root@example.com", true)
	for _, title := range []string{"one", "two", "three"} {
		_, err := e.workouts.CreateWorkout(admin, WorkoutInput{Title: title}, &alice.ID)
		require.NoError(t, err)
	}

	page, err := e.workouts.ListWorkouts(admin, &alice.ID, domain.PageRequest{Limit: 2, Start: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.PageMeta{Total: 3, Limit: 2, Pages: 2}, page.Meta)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "three", page.Items[0].Title)
}
