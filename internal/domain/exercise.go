package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultExerciseType is used when an exercise is created without a type.
const DefaultExerciseType = "strength"

// Exercise represents a single exercise definition owned by one user.
// Timing is either duration based (TimeWork) or rep based (Repetitions and
// CountSets), never both.
type Exercise struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	Title       string             `bson:"title" json:"title"`
	Type        string             `bson:"type" json:"type"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Meta        map[string]any     `bson:"meta,omitempty" json:"meta,omitempty"`

	MediaKey string `bson:"mediaKey,omitempty" json:"-"`
	MediaURL string `bson:"mediaUrl,omitempty" json:"mediaUrl,omitempty"`

	TimeWork    *int `bson:"timeWork,omitempty" json:"timeWork,omitempty"` // seconds
	Repetitions *int `bson:"repetitions,omitempty" json:"repetitions,omitempty"`
	CountSets   *int `bson:"countSets,omitempty" json:"countSets,omitempty"`
	RestSec     *int `bson:"restSec,omitempty" json:"restSec,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// ExercisePatch is a partial update. Nil fields are left as they are; the
// Clear* flags drop one timing mode so the other can be set.
type ExercisePatch struct {
	Title       *string
	Type        *string
	Description *string
	Meta        map[string]any
	TimeWork    *int
	Repetitions *int
	CountSets   *int
	RestSec     *int

	ClearTimeWork bool
	ClearRepsSets bool
}

// Apply returns a copy of e with the patch applied.
func (p ExercisePatch) Apply(e Exercise) Exercise {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Meta != nil {
		e.Meta = p.Meta
	}
	if p.ClearTimeWork {
		e.TimeWork = nil
	}
	if p.ClearRepsSets {
		e.Repetitions, e.CountSets = nil, nil
	}
	if p.TimeWork != nil {
		e.TimeWork = p.TimeWork
	}
	if p.Repetitions != nil {
		e.Repetitions = p.Repetitions
	}
	if p.CountSets != nil {
		e.CountSets = p.CountSets
	}
	if p.RestSec != nil {
		e.RestSec = p.RestSec
	}
	return e
}
