package service

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"fitshare/fitness-api/internal/auth"
	"fitshare/fitness-api/internal/composition"
	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/quota"
	"fitshare/fitness-api/internal/repository"
)

// WorkoutInput is the full content of a workout. Updates replace the whole
// exercise list.
type WorkoutInput struct {
	Title       string
	Description string
	Items       []domain.WorkoutItem
}

type WorkoutService interface {
	CreateWorkout(ctx context.Context, in WorkoutInput, target *primitive.ObjectID) (*domain.WorkoutDetails, error)
	GetWorkout(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutDetails, error)
	ListWorkouts(ctx context.Context, target *primitive.ObjectID, page domain.PageRequest) (*domain.Page[domain.Workout], error)
	// ListSharedWorkouts lists workouts attached to groups the caller belongs to.
	ListSharedWorkouts(ctx context.Context, page domain.PageRequest) (*domain.Page[domain.Workout], error)
	UpdateWorkout(ctx context.Context, id primitive.ObjectID, in WorkoutInput) (*domain.WorkoutDetails, error)
	DeleteWorkout(ctx context.Context, id primitive.ObjectID) error
}

type workoutService struct {
	store  repository.Store
	quota  quotaGate
	logger *zap.Logger
}

func NewWorkoutService(store repository.Store, limits *quota.Table, logger *zap.Logger) WorkoutService {
	return &workoutService{
		store:  store,
		quota:  quotaGate{users: store.Users, limits: limits},
		logger: logger.Named("workout"),
	}
}

func validateWorkout(in *WorkoutInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return invalid("title is required")
	}
	return composition.ValidatePositions(in.Items)
}

// checkExerciseOwnership fails unless every referenced exercise belongs to ownerID.
func (s *workoutService) checkExerciseOwnership(ctx context.Context, ownerID primitive.ObjectID, items []domain.WorkoutItem) error {
	ids := composition.DistinctExerciseIDs(items)
	if len(ids) == 0 {
		return nil
	}
	n, err := s.store.Exercises.CountOwnedAmong(ctx, ownerID, ids)
	if err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return forbidden("all exercises must belong to the workout owner")
	}
	return nil
}

func (s *workoutService) CreateWorkout(ctx context.Context, in WorkoutInput, target *primitive.ObjectID) (*domain.WorkoutDetails, error) {
	p, owner, err := actor(ctx, target)
	if err != nil {
		return nil, err
	}
	if err := validateWorkout(&in); err != nil {
		return nil, err
	}

	var details *domain.WorkoutDetails
	err = s.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		err := s.quota.reserve(ctx, p, owner, domain.ResourceWorkout, func(ctx context.Context) (int64, error) {
			return s.store.Workouts.CountByOwner(ctx, owner)
		})
		if err != nil {
			return err
		}
		if err := s.checkExerciseOwnership(ctx, owner, in.Items); err != nil {
			return err
		}

		w := &domain.Workout{UserID: owner, Title: in.Title, Description: in.Description}
		if _, err := s.store.Workouts.Create(ctx, w); err != nil {
			return err
		}
		if rows := composition.BuildRows(w.ID, owner, in.Items); len(rows) > 0 {
			if err := s.store.WorkoutExercises.InsertMany(ctx, rows); err != nil {
				return err
			}
		}
		details, err = s.details(ctx, w)
		return err
	})
	if err != nil {
		return nil, repoErr(err, "workout")
	}

	s.logger.Info("workout created",
		zap.String("workout_id", details.Workout.ID.Hex()),
		zap.String("owner_id", owner.Hex()),
		zap.Int("exercises", len(details.Items)))
	return details, nil
}

func (s *workoutService) details(ctx context.Context, w *domain.Workout) (*domain.WorkoutDetails, error) {
	rows, err := s.store.WorkoutExercises.ListByWorkout(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	exercises := map[primitive.ObjectID]domain.Exercise{}
	if len(rows) > 0 {
		ids := make([]primitive.ObjectID, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ExerciseID)
		}
		list, err := s.store.Exercises.ListByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, e := range list {
			exercises[e.ID] = e
		}
	}
	return &domain.WorkoutDetails{Workout: *w, Items: rows, Exercises: exercises}, nil
}

// owned loads a workout the caller may modify.
func (s *workoutService) owned(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error) {
	p, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, err
	}
	w, err := s.store.Workouts.GetByID(ctx, id)
	if err != nil {
		return nil, repoErr(err, "workout")
	}
	if !auth.CanAccessOwned(p, w.UserID) {
		return nil, notFound("workout")
	}
	return w, nil
}

// GetWorkout is also open to members of a group the workout is attached to.
func (s *workoutService) GetWorkout(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutDetails, error) {
	p, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, err
	}
	w, err := s.store.Workouts.GetByID(ctx, id)
	if err != nil {
		return nil, repoErr(err, "workout")
	}
	if !auth.CanAccessOwned(p, w.UserID) {
		groupIDs, err := s.store.Groups.IDsByWorkout(ctx, w.ID)
		if err != nil {
			return nil, repoErr(err, "workout")
		}
		member := false
		if len(groupIDs) > 0 {
			if member, err = s.store.GroupMembers.IsMember(ctx, groupIDs, p.UserID); err != nil {
				return nil, repoErr(err, "workout")
			}
		}
		if !member {
			return nil, notFound("workout")
		}
	}
	d, err := s.details(ctx, w)
	return d, repoErr(err, "workout")
}

func (s *workoutService) ListWorkouts(ctx context.Context, target *primitive.ObjectID, page domain.PageRequest) (*domain.Page[domain.Workout], error) {
	_, owner, err := actor(ctx, target)
	if err != nil {
		return nil, err
	}
	items, total, err := s.store.Workouts.ListByOwner(ctx, owner, page)
	if err != nil {
		return nil, repoErr(err, "workout")
	}
	return pageOf(items, total, page), nil
}

func (s *workoutService) ListSharedWorkouts(ctx context.Context, page domain.PageRequest) (*domain.Page[domain.Workout], error) {
	p, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, err
	}
	groupIDs, err := s.store.GroupMembers.GroupIDsByUser(ctx, p.UserID)
	if err != nil {
		return nil, repoErr(err, "group")
	}
	workoutIDs, err := s.store.Groups.WorkoutIDsForGroups(ctx, groupIDs)
	if err != nil {
		return nil, repoErr(err, "group")
	}
	if len(workoutIDs) == 0 {
		return pageOf([]domain.Workout{}, 0, page), nil
	}
	items, total, err := s.store.Workouts.ListByIDs(ctx, workoutIDs, page)
	if err != nil {
		return nil, repoErr(err, "workout")
	}
	return pageOf(items, total, page), nil
}

// UpdateWorkout replaces the title, description and the whole exercise list.
func (s *workoutService) UpdateWorkout(ctx context.Context, id primitive.ObjectID, in WorkoutInput) (*domain.WorkoutDetails, error) {
	w, err := s.owned(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateWorkout(&in); err != nil {
		return nil, err
	}

	var details *domain.WorkoutDetails
	err = s.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.checkExerciseOwnership(ctx, w.UserID, in.Items); err != nil {
			return err
		}
		updated := *w
		updated.Title, updated.Description = in.Title, in.Description
		if err := s.store.Workouts.Update(ctx, &updated); err != nil {
			return err
		}
		if err := s.store.WorkoutExercises.DeleteByWorkout(ctx, w.ID); err != nil {
			return err
		}
		if rows := composition.BuildRows(w.ID, w.UserID, in.Items); len(rows) > 0 {
			if err := s.store.WorkoutExercises.InsertMany(ctx, rows); err != nil {
				return err
			}
		}
		var err error
		details, err = s.details(ctx, &updated)
		return err
	})
	if err != nil {
		return nil, repoErr(err, "workout")
	}
	return details, nil
}

// DeleteWorkout removes the workout with its rows and unsets it on groups.
func (s *workoutService) DeleteWorkout(ctx context.Context, id primitive.ObjectID) error {
	w, err := s.owned(ctx, id)
	if err != nil {
		return err
	}
	err = s.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.WorkoutExercises.DeleteByWorkout(ctx, w.ID); err != nil {
			return err
		}
		if err := s.store.Groups.DetachWorkoutEverywhere(ctx, w.ID); err != nil {
			return err
		}
		return s.store.Workouts.Delete(ctx, w.ID)
	})
	if err != nil {
		return repoErr(err, "workout")
	}
	s.logger.Info("workout deleted", zap.String("workout_id", w.ID.Hex()))
	return nil
}
