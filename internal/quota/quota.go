// Package quota holds the per-plan resource ceilings and the uniform
// count-against-limit check.
package quota

import (
	"fmt"

	"fitshare/fitness-api/internal/apperr"
	"fitshare/fitness-api/internal/config"
	"fitshare/fitness-api/internal/domain"
)

// Observer is told about every rejected create.
type Observer interface {
	QuotaDenied(resource string)
}

// Table is an immutable plan -> limits lookup built once at start.
type Table struct {
	limits   map[domain.Plan]domain.PlanLimits
	observer Observer
}

// NewTable builds the lookup for the two plan tiers.
func NewTable(free, pro domain.PlanLimits) *Table {
	return &Table{limits: map[domain.Plan]domain.PlanLimits{
		domain.PlanFree: free,
		domain.PlanPro:  pro,
	}}
}

// FromConfig builds the table from the limits section of the configuration.
func FromConfig(cfg config.LimitsConfig) *Table {
	conv := func(c config.PlanLimitConfig) domain.PlanLimits {
		return domain.PlanLimits{
			Groups:          c.Groups,
			Exercises:       c.Exercises,
			Workouts:        c.Workouts,
			MembersPerGroup: c.MembersPerGroup,
		}
	}
	return NewTable(conv(cfg.Free), conv(cfg.Pro))
}

// WithObserver returns a copy of t that reports rejections to o.
func (t *Table) WithObserver(o Observer) *Table {
	return &Table{limits: t.limits, observer: o}
}

// Limits returns the ceilings of plan.
func (t *Table) Limits(plan domain.Plan) (domain.PlanLimits, error) {
	l, ok := t.limits[plan]
	if !ok {
		return domain.PlanLimits{}, fmt.Errorf("%w: unknown plan %q", apperr.ErrUnexpected, plan)
	}
	return l, nil
}

var limitMessages = map[domain.Resource]string{
	domain.ResourceGroup:    "you have reached the limit for creating groups",
	domain.ResourceExercise: "you have reached the limit for creating exercises",
	domain.ResourceWorkout:  "you have reached the limit for creating workouts",
	domain.ResourceMember:   "you cannot add more users to this group",
}

// Check fails with Forbidden once count has reached limit.
func Check(r domain.Resource, count int64, limit int) error {
	if count >= int64(limit) {
		return fmt.Errorf("%w: %s (limit %d)", apperr.ErrForbidden, limitMessages[r], limit)
	}
	return nil
}

// Enforce looks up plan's ceiling for r and checks count against it.
func (t *Table) Enforce(plan domain.Plan, r domain.Resource, count int64) error {
	l, err := t.Limits(plan)
	if err != nil {
		return err
	}
	err = Check(r, count, l.Of(r))
	if err != nil && t.observer != nil {
		t.observer.QuotaDenied(string(r))
	}
	return err
}
