package service

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"fitshare/fitness-api/internal/auth"
	"fitshare/fitness-api/internal/composition"
	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/quota"
	"fitshare/fitness-api/internal/repository"
	"fitshare/fitness-api/internal/storage"
)

// ExerciseInput is the payload of a create.
type ExerciseInput struct {
	Title       string
	Type        string
	Description string
	Meta        map[string]any
	TimeWork    *int
	Repetitions *int
	CountSets   *int
	RestSec     *int
}

// MediaFile is an uploaded file held in memory.
type MediaFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ExerciseService interface {
	CreateExercise(ctx context.Context, in ExerciseInput, file *MediaFile, target *primitive.ObjectID) (*domain.Exercise, error)
	GetExercise(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error)
	ListExercises(ctx context.Context, target *primitive.ObjectID, page domain.PageRequest) (*domain.Page[domain.Exercise], error)
	UpdateExercise(ctx context.Context, id primitive.ObjectID, patch domain.ExercisePatch) (*domain.Exercise, error)
	ReplaceExerciseMedia(ctx context.Context, id primitive.ObjectID, file MediaFile) (*domain.Exercise, error)
	// MediaDownloadURL returns a short-lived signed link to the media file.
	MediaDownloadURL(ctx context.Context, id primitive.ObjectID) (string, error)
	DeleteExercise(ctx context.Context, id primitive.ObjectID) error
}

// exerciseService implements the ExerciseService interface.
type exerciseService struct {
	store  repository.Store
	quota  quotaGate
	files  storage.FileStorage
	logger *zap.Logger
}

// NewExerciseService creates a new instance of exerciseService.
func NewExerciseService(store repository.Store, limits *quota.Table, files storage.FileStorage, logger *zap.Logger) ExerciseService {
	return &exerciseService{
		store:  store,
		quota:  quotaGate{users: store.Users, limits: limits},
		files:  files,
		logger: logger.Named("exercise"),
	}
}

// validateExercise checks the fields of a complete exercise. Timing is
// either duration based or rep based, never both and never neither.
func validateExercise(e *domain.Exercise) error {
	if strings.TrimSpace(e.Title) == "" {
		return invalid("title is required")
	}
	for name, v := range map[string]*int{
		"time_work": e.TimeWork, "repetitions": e.Repetitions, "count_sets": e.CountSets, "rest_sec": e.RestSec,
	} {
		if v != nil && *v <= 0 {
			return invalid("%s must be positive", name)
		}
	}

	reps := e.Repetitions != nil || e.CountSets != nil
	switch {
	case e.TimeWork != nil && reps:
		return invalid("time_work cannot be combined with repetitions and count_sets")
	case e.TimeWork == nil && !reps:
		return invalid("either time_work or repetitions and count_sets must be set")
	case reps && (e.Repetitions == nil || e.CountSets == nil):
		return invalid("repetitions and count_sets must be set together")
	}
	return nil
}

func (s *exerciseService) CreateExercise(ctx context.Context, in ExerciseInput, file *MediaFile, target *primitive.ObjectID) (*domain.Exercise, error) {
	p, owner, err := actor(ctx, target)
	if err != nil {
		return nil, err
	}

	base := domain.Exercise{
		// fixed up front so a retried transaction writes the same media key
		ID:          primitive.NewObjectID(),
		UserID:      owner,
		Title:       strings.TrimSpace(in.Title),
		Type:        in.Type,
		Description: in.Description,
		Meta:        in.Meta,
		TimeWork:    in.TimeWork,
		Repetitions: in.Repetitions,
		CountSets:   in.CountSets,
		RestSec:     in.RestSec,
	}
	if base.Type == "" {
		base.Type = domain.DefaultExerciseType
	}
	if err := validateExercise(&base); err != nil {
		return nil, err
	}

	var created domain.Exercise
	err = s.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		err := s.quota.reserve(ctx, p, owner, domain.ResourceExercise, func(ctx context.Context) (int64, error) {
			return s.store.Exercises.CountByOwner(ctx, owner)
		})
		if err != nil {
			return err
		}

		ex := base
		if _, err := s.store.Exercises.Create(ctx, &ex); err != nil {
			return err
		}
		if file != nil {
			key := storage.ExerciseMediaKey(owner, ex.ID, file.Filename)
			url, err := s.files.Upload(ctx, key, file.Data, file.ContentType, true)
			if err != nil {
				return err
			}
			if err := s.store.Exercises.SetMedia(ctx, ex.ID, key, url); err != nil {
				return err
			}
			ex.MediaKey, ex.MediaURL = key, url
		}
		created = ex
		return nil
	})
	if err != nil {
		return nil, repoErr(err, "exercise")
	}

	s.logger.Info("exercise created",
		zap.String("exercise_id", created.ID.Hex()),
		zap.String("owner_id", owner.Hex()),
		zap.Bool("with_media", created.MediaKey != ""))
	return &created, nil
}

// owned loads an exercise the caller may access. Foreign rows are reported
// as missing.
func (s *exerciseService) owned(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	p, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, err
	}
	ex, err := s.store.Exercises.GetByID(ctx, id)
	if err != nil {
		return nil, repoErr(err, "exercise")
	}
	if !auth.CanAccessOwned(p, ex.UserID) {
		return nil, notFound("exercise")
	}
	return ex, nil
}

func (s *exerciseService) GetExercise(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	return s.owned(ctx, id)
}

func (s *exerciseService) ListExercises(ctx context.Context, target *primitive.ObjectID, page domain.PageRequest) (*domain.Page[domain.Exercise], error) {
	_, owner, err := actor(ctx, target)
	if err != nil {
		return nil, err
	}
	items, total, err := s.store.Exercises.ListByOwner(ctx, owner, page)
	if err != nil {
		return nil, repoErr(err, "exercise")
	}
	return pageOf(items, total, page), nil
}

func (s *exerciseService) UpdateExercise(ctx context.Context, id primitive.ObjectID, patch domain.ExercisePatch) (*domain.Exercise, error) {
	var updated domain.Exercise
	err := s.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ex, err := s.owned(ctx, id)
		if err != nil {
			return err
		}
		updated = patch.Apply(*ex)
		updated.Title = strings.TrimSpace(updated.Title)
		if updated.Type == "" {
			updated.Type = domain.DefaultExerciseType
		}
		if err := validateExercise(&updated); err != nil {
			return err
		}
		if err := s.store.Exercises.Update(ctx, &updated); err != nil {
			return repoErr(err, "exercise")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *exerciseService) ReplaceExerciseMedia(ctx context.Context, id primitive.ObjectID, file MediaFile) (*domain.Exercise, error) {
	ex, err := s.owned(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(file.Data) == 0 {
		return nil, invalid("file is empty")
	}

	oldKey := ex.MediaKey
	key := storage.ExerciseMediaKey(ex.UserID, ex.ID, file.Filename)
	url, err := s.files.Upload(ctx, key, file.Data, file.ContentType, true)
	if err != nil {
		return nil, repoErr(err, "media")
	}
	if err := s.store.Exercises.SetMedia(ctx, ex.ID, key, url); err != nil {
		return nil, repoErr(err, "exercise")
	}
	ex.MediaKey, ex.MediaURL = key, url

	if oldKey != "" && oldKey != key {
		if err := s.files.DeleteObject(ctx, oldKey); err != nil {
			s.logger.Warn("failed to delete replaced media", zap.String("key", oldKey), zap.Error(err))
		}
	}
	return ex, nil
}

func (s *exerciseService) MediaDownloadURL(ctx context.Context, id primitive.ObjectID) (string, error) {
	ex, err := s.owned(ctx, id)
	if err != nil {
		return "", err
	}
	if ex.MediaKey == "" {
		return "", notFound("media")
	}
	url, err := s.files.GeneratePresignedDownloadURL(ctx, ex.MediaKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return "", repoErr(err, "media")
	}
	return url, nil
}

// DeleteExercise detaches the exercise from every workout, closing the gaps
// it leaves, and deletes it, all in one transaction.
func (s *exerciseService) DeleteExercise(ctx context.Context, id primitive.ObjectID) error {
	ex, err := s.owned(ctx, id)
	if err != nil {
		return err
	}

	start := time.Now()
	var touched int
	err = s.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		n, err := s.detachEverywhere(ctx, ex.ID)
		if err != nil {
			return err
		}
		touched = n
		return s.store.Exercises.Delete(ctx, ex.ID)
	})
	if err != nil {
		return repoErr(err, "exercise")
	}
	s.logger.Info("exercise deleted",
		zap.String("exercise_id", ex.ID.Hex()),
		zap.Int("workouts_touched", touched),
		zap.Duration("took", time.Since(start)))

	if ex.MediaKey != "" {
		if err := s.files.DeleteObject(ctx, ex.MediaKey); err != nil {
			s.logger.Warn("failed to delete media object", zap.String("key", ex.MediaKey), zap.Error(err))
		}
	}
	return nil
}

// detachEverywhere removes exerciseID from every workout referencing it and
// renumbers what remains, writing only rows whose position moves. It
// returns the number of workouts changed; zero means nothing was written.
func (s *exerciseService) detachEverywhere(ctx context.Context, exerciseID primitive.ObjectID) (int, error) {
	workoutIDs, err := s.store.WorkoutExercises.WorkoutIDsByExercise(ctx, exerciseID)
	if err != nil {
		return 0, err
	}
	for _, wid := range workoutIDs {
		rows, err := s.store.WorkoutExercises.ListByWorkout(ctx, wid)
		if err != nil {
			return 0, err
		}
		removed, changes := composition.Detach(rows, exerciseID)
		if len(removed) == 0 {
			continue
		}
		if err := s.store.WorkoutExercises.DeleteByIDs(ctx, removed); err != nil {
			return 0, err
		}
		if len(changes) > 0 {
			if err := s.store.WorkoutExercises.UpdatePositions(ctx, changes); err != nil {
				return 0, err
			}
		}
	}
	return len(workoutIDs), nil
}
