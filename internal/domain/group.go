package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group is a set of members created by one user, optionally sharing a workout.
type Group struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID  `bson:"userId" json:"userId"`
	Name      string              `bson:"name" json:"name"`
	WorkoutID *primitive.ObjectID `bson:"workoutId,omitempty" json:"workoutId,omitempty"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// GroupMember links a user to a group. The pair is unique.
type GroupMember struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID   primitive.ObjectID `bson:"groupId" json:"groupId"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// GroupDetails is a group with its member accounts and attached workout.
type GroupDetails struct {
	Group   Group
	Members []User
	Workout *Workout
}
