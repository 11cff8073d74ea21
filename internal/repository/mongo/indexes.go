package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// EnsureIndexes creates every index the repositories rely on. The unique
// ones back domain invariants (one email, one token per user, one member
// row per user and group, one row per workout position).
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	steps := []struct {
		collection string
		ensure     func(context.Context, *mongo.Collection) error
	}{
		{userCollectionName, EnsureUserIndexes},
		{tokenCollectionName, EnsureTokenIndexes},
		{exerciseCollectionName, EnsureExerciseIndexes},
		{workoutCollectionName, EnsureWorkoutIndexes},
		{workoutExerciseCollectionName, EnsureWorkoutExerciseIndexes},
		{groupCollectionName, EnsureGroupIndexes},
		{groupMemberCollectionName, EnsureGroupMemberIndexes},
	}
	for _, s := range steps {
		if err := s.ensure(ctx, db.Collection(s.collection)); err != nil {
			return fmt.Errorf("ensure indexes for %s: %w", s.collection, err)
		}
	}
	return nil
}
