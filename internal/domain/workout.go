package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Workout is an owned, ordered list of exercises. The exercises themselves are
// linked through WorkoutExercise rows pointing at this Workout's ID.
type Workout struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// WorkoutExercise places one exercise at a 1-based position inside a workout.
// Within a workout the positions always form 1..N.
type WorkoutExercise struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkoutID  primitive.ObjectID `bson:"workoutId" json:"workoutId"`
	ExerciseID primitive.ObjectID `bson:"exerciseId" json:"exerciseId"`
	UserID     primitive.ObjectID `bson:"userId" json:"-"`
	Position   int                `bson:"position" json:"position"`
	Notes      string             `bson:"notes,omitempty" json:"notes,omitempty"`
}

// WorkoutItem is one requested entry of a workout's exercise list.
type WorkoutItem struct {
	ExerciseID primitive.ObjectID
	Position   int
	Notes      string
}

// PositionChange moves an existing association row to a new position.
type PositionChange struct {
	ID   primitive.ObjectID
	From int
	To   int
}

// WorkoutDetails is a workout with its ordered rows and the exercises they
// reference.
type WorkoutDetails struct {
	Workout   Workout
	Items     []WorkoutExercise
	Exercises map[primitive.ObjectID]Exercise
}
