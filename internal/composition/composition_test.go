package composition

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"fitshare/fitness-api/internal/apperr"
	"fitshare/fitness-api/internal/domain"
)

func items(positions ...int) []domain.WorkoutItem {
	out := make([]domain.WorkoutItem, len(positions))
	for i, p := range positions {
		out[i] = domain.WorkoutItem{ExerciseID: primitive.NewObjectID(), Position: p}
	}
	return out
}

func TestValidatePositions_Valid(t *testing.T) {
	assert.NoError(t, ValidatePositions(nil))
	assert.NoError(t, ValidatePositions(items(1)))
	assert.NoError(t, ValidatePositions(items(3, 1, 2)))
}

func TestValidatePositions_Gap(t *testing.T) {
	err := ValidatePositions(items(1, 2, 4))
	require.ErrorIs(t, err, apperr.ErrValidation)

	var perr *PositionError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, []int{3}, perr.Missing)
	assert.Equal(t, []int{4}, perr.OutOfRange)
	assert.Empty(t, perr.Duplicates)
	assert.Contains(t, err.Error(), "missing positions [3]")
}

func TestValidatePositions_Duplicate(t *testing.T) {
	err := ValidatePositions(items(1, 1, 2))
	var perr *PositionError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, []int{1}, perr.Duplicates)
	assert.Equal(t, []int{3}, perr.Missing)
	assert.Contains(t, err.Error(), "duplicate positions [1]")
}

func TestValidatePositions_ZeroAndNegative(t *testing.T) {
	err := ValidatePositions(items(0, 1))
	var perr *PositionError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, []int{2}, perr.Missing)
	assert.Equal(t, []int{0}, perr.OutOfRange)
}

func TestValidatePositions_MissingExercise(t *testing.T) {
	err := ValidatePositions([]domain.WorkoutItem{{Position: 1}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDistinctExerciseIDs(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	got := DistinctExerciseIDs([]domain.WorkoutItem{
		{ExerciseID: a, Position: 1},
		{ExerciseID: b, Position: 2},
		{ExerciseID: a, Position: 3},
	})
	assert.Equal(t, []primitive.ObjectID{a, b}, got)
}

func TestBuildRows(t *testing.T) {
	wid, owner := primitive.NewObjectID(), primitive.NewObjectID()
	rows := BuildRows(wid, owner, items(2, 1))
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Position)
	assert.Equal(t, 2, rows[1].Position)
	assert.Equal(t, wid, rows[0].WorkoutID)
	assert.Equal(t, owner, rows[1].UserID)
	assert.False(t, rows[0].ID.IsZero())
}

func rowsOf(exercises ...primitive.ObjectID) []domain.WorkoutExercise {
	rows := make([]domain.WorkoutExercise, len(exercises))
	for i, e := range exercises {
		rows[i] = domain.WorkoutExercise{ID: primitive.NewObjectID(), ExerciseID: e, Position: i + 1}
	}
	return rows
}

func TestDetach_Middle(t *testing.T) {
	a, e, c := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	rows := rowsOf(a, e, c)

	removed, changes := Detach(rows, e)
	assert.Equal(t, []primitive.ObjectID{rows[1].ID}, removed)
	// old 1 stays, old 3 -> 2
	assert.Equal(t, []domain.PositionChange{{ID: rows[2].ID, From: 3, To: 2}}, changes)
}

func TestDetach_First(t *testing.T) {
	e, b := primitive.NewObjectID(), primitive.NewObjectID()
	rows := rowsOf(e, b)

	removed, changes := Detach(rows, e)
	assert.Len(t, removed, 1)
	assert.Equal(t, []domain.PositionChange{{ID: rows[1].ID, From: 2, To: 1}}, changes)
}

func TestDetach_Last(t *testing.T) {
	a, e := primitive.NewObjectID(), primitive.NewObjectID()
	removed, changes := Detach(rowsOf(a, e), e)
	assert.Len(t, removed, 1)
	assert.Empty(t, changes)
}

func TestDetach_OnlyRow(t *testing.T) {
	e := primitive.NewObjectID()
	removed, changes := Detach(rowsOf(e), e)
	assert.Len(t, removed, 1)
	assert.Empty(t, changes, "nothing remains to renumber")
}

func TestDetach_RepeatedExercise(t *testing.T) {
	a, e := primitive.NewObjectID(), primitive.NewObjectID()
	rows := rowsOf(e, a, e, a)

	removed, changes := Detach(rows, e)
	assert.ElementsMatch(t, []primitive.ObjectID{rows[0].ID, rows[2].ID}, removed)
	assert.Equal(t, []domain.PositionChange{
		{ID: rows[1].ID, From: 2, To: 1},
		{ID: rows[3].ID, From: 4, To: 2},
	}, changes)
}

func TestDetach_UnorderedInput(t *testing.T) {
	a, e, c := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	rows := rowsOf(a, e, c)
	shuffled := []domain.WorkoutExercise{rows[2], rows[0], rows[1]}

	_, changes := Detach(shuffled, e)
	assert.Equal(t, []domain.PositionChange{{ID: rows[2].ID, From: 3, To: 2}}, changes)
	// input slice is not reordered
	assert.Equal(t, rows[2].ID, shuffled[0].ID)
}

func TestDetach_NotReferencedIsNoop(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	removed, changes := Detach(rowsOf(a, b), primitive.NewObjectID())
	assert.Nil(t, removed)
	assert.Nil(t, changes)
}

func TestRenumber_AlreadyContiguous(t *testing.T) {
	assert.Empty(t, Renumber(rowsOf(primitive.NewObjectID(), primitive.NewObjectID())))
}
