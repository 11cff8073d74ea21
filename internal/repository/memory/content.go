package memory

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/repository"
)

type exerciseRepo struct{ s *Store }

func exerciseOlder(a, b domain.Exercise) bool {
	return createdBefore(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
}

func (r *exerciseRepo) Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error) {
	if exercise.Title == "" || exercise.UserID.IsZero() {
		return primitive.NilObjectID, errors.New("exercise title and owner ID are required")
	}
	defer r.s.lock(ctx)()

	if exercise.ID.IsZero() {
		exercise.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	exercise.CreatedAt, exercise.UpdatedAt = now, now
	r.s.exercises[exercise.ID] = *exercise
	return exercise.ID, nil
}

func (r *exerciseRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	defer r.s.lock(ctx)()
	e, ok := r.s.exercises[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r *exerciseRepo) ListByOwner(ctx context.Context, ownerID primitive.ObjectID, page domain.PageRequest) ([]domain.Exercise, int64, error) {
	defer r.s.lock(ctx)()
	all := sortedBy(r.s.exercises, func(e domain.Exercise) bool { return e.UserID == ownerID }, exerciseOlder)
	items, total := paginate(all, page)
	return items, total, nil
}

func (r *exerciseRepo) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Exercise, error) {
	defer r.s.lock(ctx)()
	want := idSet(ids)
	return sortedBy(r.s.exercises, func(e domain.Exercise) bool { _, ok := want[e.ID]; return ok }, exerciseOlder), nil
}

func (r *exerciseRepo) CountByOwner(ctx context.Context, ownerID primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for _, e := range r.s.exercises {
		if e.UserID == ownerID {
			n++
		}
	}
	return n, nil
}

func (r *exerciseRepo) CountOwnedAmong(ctx context.Context, ownerID primitive.ObjectID, ids []primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for id := range idSet(ids) {
		if e, ok := r.s.exercises[id]; ok && e.UserID == ownerID {
			n++
		}
	}
	return n, nil
}

func (r *exerciseRepo) Update(ctx context.Context, exercise *domain.Exercise) error {
	if exercise.Title == "" {
		return errors.New("exercise title cannot be empty")
	}
	defer r.s.lock(ctx)()
	cur, ok := r.s.exercises[exercise.ID]
	if !ok || cur.UserID != exercise.UserID {
		return repository.ErrNotFound
	}
	exercise.CreatedAt = cur.CreatedAt
	exercise.MediaKey, exercise.MediaURL = cur.MediaKey, cur.MediaURL
	exercise.UpdatedAt = time.Now().UTC()
	r.s.exercises[exercise.ID] = *exercise
	return nil
}

func (r *exerciseRepo) SetMedia(ctx context.Context, id primitive.ObjectID, key, url string) error {
	defer r.s.lock(ctx)()
	e, ok := r.s.exercises[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.MediaKey, e.MediaURL = key, url
	e.UpdatedAt = time.Now().UTC()
	r.s.exercises[id] = e
	return nil
}

func (r *exerciseRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.exercises[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.exercises, id)
	return nil
}

func (r *exerciseRepo) DeleteByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]string, error) {
	defer r.s.lock(ctx)()
	keys := []string{}
	for id, e := range r.s.exercises {
		if e.UserID != ownerID {
			continue
		}
		if e.MediaKey != "" {
			keys = append(keys, e.MediaKey)
		}
		delete(r.s.exercises, id)
	}
	return keys, nil
}

type workoutRepo struct{ s *Store }

func workoutOlder(a, b domain.Workout) bool {
	return createdBefore(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
}

func (r *workoutRepo) Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error) {
	if workout.Title == "" || workout.UserID.IsZero() {
		return primitive.NilObjectID, errors.New("workout title and owner ID are required")
	}
	defer r.s.lock(ctx)()
	if workout.ID.IsZero() {
		workout.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	workout.CreatedAt, workout.UpdatedAt = now, now
	r.s.workouts[workout.ID] = *workout
	return workout.ID, nil
}

func (r *workoutRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error) {
	defer r.s.lock(ctx)()
	w, ok := r.s.workouts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &w, nil
}

func (r *workoutRepo) ListByOwner(ctx context.Context, ownerID primitive.ObjectID, page domain.PageRequest) ([]domain.Workout, int64, error) {
	defer r.s.lock(ctx)()
	all := sortedBy(r.s.workouts, func(w domain.Workout) bool { return w.UserID == ownerID }, workoutOlder)
	items, total := paginate(all, page)
	return items, total, nil
}

func (r *workoutRepo) ListByIDs(ctx context.Context, ids []primitive.ObjectID, page domain.PageRequest) ([]domain.Workout, int64, error) {
	defer r.s.lock(ctx)()
	want := idSet(ids)
	all := sortedBy(r.s.workouts, func(w domain.Workout) bool { _, ok := want[w.ID]; return ok }, workoutOlder)
	items, total := paginate(all, page)
	return items, total, nil
}

func (r *workoutRepo) CountByOwner(ctx context.Context, ownerID primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for _, w := range r.s.workouts {
		if w.UserID == ownerID {
			n++
		}
	}
	return n, nil
}

func (r *workoutRepo) Update(ctx context.Context, workout *domain.Workout) error {
	if workout.Title == "" {
		return errors.New("workout title cannot be empty")
	}
	defer r.s.lock(ctx)()
	cur, ok := r.s.workouts[workout.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Title, cur.Description = workout.Title, workout.Description
	cur.UpdatedAt = time.Now().UTC()
	workout.UpdatedAt = cur.UpdatedAt
	r.s.workouts[workout.ID] = cur
	return nil
}

func (r *workoutRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.workouts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.workouts, id)
	return nil
}

func (r *workoutRepo) DeleteByOwner(ctx context.Context, ownerID primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	for id, w := range r.s.workouts {
		if w.UserID == ownerID {
			delete(r.s.workouts, id)
		}
	}
	return nil
}

type workoutExerciseRepo struct{ s *Store }

// positionTaken emulates the unique (workoutId, position) index.
func (r *workoutExerciseRepo) positionTaken(workoutID primitive.ObjectID, pos int, except primitive.ObjectID) bool {
	for id, row := range r.s.workoutExercises {
		if id != except && row.WorkoutID == workoutID && row.Position == pos {
			return true
		}
	}
	return false
}

func (r *workoutExerciseRepo) InsertMany(ctx context.Context, rows []domain.WorkoutExercise) error {
	defer r.s.lock(ctx)()
	for i := range rows {
		if rows[i].ID.IsZero() {
			rows[i].ID = primitive.NewObjectID()
		}
		if r.positionTaken(rows[i].WorkoutID, rows[i].Position, rows[i].ID) {
			return repository.ErrDuplicate
		}
		r.s.workoutExercises[rows[i].ID] = rows[i]
	}
	return nil
}

func (r *workoutExerciseRepo) ListByWorkout(ctx context.Context, workoutID primitive.ObjectID) ([]domain.WorkoutExercise, error) {
	defer r.s.lock(ctx)()
	return sortedBy(r.s.workoutExercises,
		func(row domain.WorkoutExercise) bool { return row.WorkoutID == workoutID },
		func(a, b domain.WorkoutExercise) bool { return a.Position < b.Position }), nil
}

func (r *workoutExerciseRepo) WorkoutIDsByExercise(ctx context.Context, exerciseID primitive.ObjectID) ([]primitive.ObjectID, error) {
	defer r.s.lock(ctx)()
	seen := map[primitive.ObjectID]struct{}{}
	ids := []primitive.ObjectID{}
	for _, row := range r.s.workoutExercises {
		if row.ExerciseID != exerciseID {
			continue
		}
		if _, ok := seen[row.WorkoutID]; !ok {
			seen[row.WorkoutID] = struct{}{}
			ids = append(ids, row.WorkoutID)
		}
	}
	return ids, nil
}

func (r *workoutExerciseRepo) DeleteByIDs(ctx context.Context, ids []primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	for _, id := range ids {
		delete(r.s.workoutExercises, id)
	}
	return nil
}

func (r *workoutExerciseRepo) deleteWhere(ctx context.Context, match func(domain.WorkoutExercise) bool) {
	defer r.s.lock(ctx)()
	for id, row := range r.s.workoutExercises {
		if match(row) {
			delete(r.s.workoutExercises, id)
		}
	}
}

func (r *workoutExerciseRepo) DeleteByWorkout(ctx context.Context, workoutID primitive.ObjectID) error {
	r.deleteWhere(ctx, func(row domain.WorkoutExercise) bool { return row.WorkoutID == workoutID })
	return nil
}

func (r *workoutExerciseRepo) DeleteByOwner(ctx context.Context, ownerID primitive.ObjectID) error {
	r.deleteWhere(ctx, func(row domain.WorkoutExercise) bool { return row.UserID == ownerID })
	return nil
}

func (r *workoutExerciseRepo) UpdatePositions(ctx context.Context, changes []domain.PositionChange) error {
	defer r.s.lock(ctx)()
	for _, c := range changes {
		row, ok := r.s.workoutExercises[c.ID]
		if !ok || row.Position != c.From {
			return repository.ErrNotFound
		}
		if r.positionTaken(row.WorkoutID, c.To, row.ID) {
			return repository.ErrDuplicate
		}
		row.Position = c.To
		r.s.workoutExercises[c.ID] = row
	}
	return nil
}
