package domain

// PlanLimits holds the resource ceilings of one plan tier.
type PlanLimits struct {
	Groups          int `json:"groups"`
	Exercises       int `json:"exercises"`
	Workouts        int `json:"workouts"`
	MembersPerGroup int `json:"membersPerGroup"`
}

// Resource names a quota-limited resource type.
type Resource string

const (
	ResourceGroup    Resource = "group"
	ResourceExercise Resource = "exercise"
	ResourceWorkout  Resource = "workout"
	ResourceMember   Resource = "member"
)

// Of returns the ceiling for r.
func (l PlanLimits) Of(r Resource) int {
	switch r {
	case ResourceGroup:
		return l.Groups
	case ResourceExercise:
		return l.Exercises
	case ResourceWorkout:
		return l.Workouts
	case ResourceMember:
		return l.MembersPerGroup
	}
	return 0
}
