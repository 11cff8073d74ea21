package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPageMeta(t *testing.T) {
	assert.Equal(t, PageMeta{Total: 0, Limit: 10, Pages: 0}, NewPageMeta(0, PageRequest{Limit: 10}))
	assert.Equal(t, PageMeta{Total: 21, Limit: 10, Pages: 3}, NewPageMeta(21, PageRequest{Limit: 10}))
	assert.Equal(t, PageMeta{Total: 20, Limit: 10, Pages: 2}, NewPageMeta(20, PageRequest{Limit: 10}))
}

func TestPageRequestNormalize(t *testing.T) {
	p := PageRequest{Limit: 0, Start: -2}.Normalize()
	assert.Equal(t, int64(DefaultPageLimit), p.Limit)
	assert.Equal(t, int64(0), p.Start)

	p = PageRequest{Limit: 1000, Start: 3}.Normalize()
	assert.Equal(t, int64(MaxPageLimit), p.Limit)
	assert.Equal(t, int64(300), p.Offset())
}

func TestAuthTokenExpired(t *testing.T) {
	now := time.Now()
	tok := AuthToken{ExpiresAt: now}
	assert.True(t, tok.Expired(now))
	assert.False(t, tok.Expired(now.Add(-time.Second)))
}

func TestExercisePatchApply(t *testing.T) {
	ten, three, four := 10, 3, 4
	e := Exercise{Title: "Squat", Repetitions: &three, CountSets: &four}

	got := ExercisePatch{ClearRepsSets: true, TimeWork: &ten}.Apply(e)
	assert.Nil(t, got.Repetitions)
	assert.Nil(t, got.CountSets)
	assert.Equal(t, 10, *got.TimeWork)
	assert.Equal(t, "Squat", got.Title)
	// original untouched
	assert.NotNil(t, e.Repetitions)
}

func TestPlanLimitsOf(t *testing.T) {
	l := PlanLimits{Groups: 1, Exercises: 2, Workouts: 3, MembersPerGroup: 4}
	assert.Equal(t, 1, l.Of(ResourceGroup))
	assert.Equal(t, 2, l.Of(ResourceExercise))
	assert.Equal(t, 3, l.Of(ResourceWorkout))
	assert.Equal(t, 4, l.Of(ResourceMember))
	assert.True(t, PlanPro.Valid())
	assert.False(t, Plan("gold").Valid())
}
