// Package composition maintains the ordered exercise list of a workout:
// positions are 1-based and always form the contiguous sequence 1..N.
package composition

import (
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"fitshare/fitness-api/internal/apperr"
	"fitshare/fitness-api/internal/domain"
)

// PositionError reports why a requested position list is not exactly 1..N.
type PositionError struct {
	N          int
	Missing    []int
	Duplicates []int
	OutOfRange []int
}

func (e *PositionError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing positions %v", e.Missing))
	}
	if len(e.Duplicates) > 0 {
		parts = append(parts, fmt.Sprintf("duplicate positions %v", e.Duplicates))
	}
	if len(e.OutOfRange) > 0 {
		parts = append(parts, fmt.Sprintf("positions out of range %v", e.OutOfRange))
	}
	return fmt.Sprintf("positions must form 1..%d: %s", e.N, strings.Join(parts, "; "))
}

// Is makes a PositionError match apperr.ErrValidation.
func (e *PositionError) Is(target error) bool {
	return target == apperr.ErrValidation
}

// ValidatePositions checks that the positions of items are exactly {1..N}
// with N = len(items). An empty list is valid.
func ValidatePositions(items []domain.WorkoutItem) error {
	n := len(items)
	seen := make(map[int]int, n)
	for _, it := range items {
		if it.ExerciseID.IsZero() {
			return fmt.Errorf("%w: exercise id is required for position %d", apperr.ErrValidation, it.Position)
		}
		seen[it.Position]++
	}

	perr := &PositionError{N: n}
	for pos := 1; pos <= n; pos++ {
		switch c := seen[pos]; {
		case c == 0:
			perr.Missing = append(perr.Missing, pos)
		case c > 1:
			perr.Duplicates = append(perr.Duplicates, pos)
		}
	}
	for pos, c := range seen {
		if pos < 1 || pos > n {
			perr.OutOfRange = append(perr.OutOfRange, pos)
			if c > 1 {
				perr.Duplicates = append(perr.Duplicates, pos)
			}
		}
	}
	if len(perr.Missing) == 0 && len(perr.Duplicates) == 0 && len(perr.OutOfRange) == 0 {
		return nil
	}
	sort.Ints(perr.Duplicates)
	sort.Ints(perr.OutOfRange)
	return perr
}

// DistinctExerciseIDs returns the referenced exercise ids without repeats,
// in first-seen order.
func DistinctExerciseIDs(items []domain.WorkoutItem) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(items))
	ids := make([]primitive.ObjectID, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ExerciseID]; ok {
			continue
		}
		seen[it.ExerciseID] = struct{}{}
		ids = append(ids, it.ExerciseID)
	}
	return ids
}

// BuildRows turns validated items into association rows ordered by position.
func BuildRows(workoutID, ownerID primitive.ObjectID, items []domain.WorkoutItem) []domain.WorkoutExercise {
	rows := make([]domain.WorkoutExercise, 0, len(items))
	for _, it := range items {
		rows = append(rows, domain.WorkoutExercise{
			ID:         primitive.NewObjectID(),
			WorkoutID:  workoutID,
			ExerciseID: it.ExerciseID,
			UserID:     ownerID,
			Position:   it.Position,
			Notes:      it.Notes,
		})
	}
	sortByPosition(rows)
	return rows
}

// Detach removes every row of one workout that references exerciseID and
// renumbers what remains to 1..N' keeping the relative order. It returns the
// ids of the removed rows and only those position changes that actually
// move a row. Rows are expected to belong to a single workout.
func Detach(rows []domain.WorkoutExercise, exerciseID primitive.ObjectID) ([]primitive.ObjectID, []domain.PositionChange) {
	ordered := make([]domain.WorkoutExercise, len(rows))
	copy(ordered, rows)
	sortByPosition(ordered)

	var removed []primitive.ObjectID
	remaining := ordered[:0]
	for _, r := range ordered {
		if r.ExerciseID == exerciseID {
			removed = append(removed, r.ID)
			continue
		}
		remaining = append(remaining, r)
	}
	if len(removed) == 0 {
		return nil, nil
	}
	return removed, Renumber(remaining)
}

// Renumber computes the moves that bring rows (already in the intended
// order) to positions 1..N. Rows already in place are skipped.
func Renumber(rows []domain.WorkoutExercise) []domain.PositionChange {
	var changes []domain.PositionChange
	for i, r := range rows {
		if want := i + 1; r.Position != want {
			changes = append(changes, domain.PositionChange{ID: r.ID, From: r.Position, To: want})
		}
	}
	return changes
}

func sortByPosition(rows []domain.WorkoutExercise) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position < rows[j].Position })
}
