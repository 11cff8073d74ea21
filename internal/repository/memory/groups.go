package memory

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/repository"
)

type groupRepo struct{ s *Store }

func (r *groupRepo) Create(ctx context.Context, group *domain.Group) (primitive.ObjectID, error) {
	if group.Name == "" || group.UserID.IsZero() {
		return primitive.NilObjectID, errors.New("group name and owner ID are required")
	}
	defer r.s.lock(ctx)()
	group.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	group.CreatedAt, group.UpdatedAt = now, now
	r.s.groups[group.ID] = *group
	return group.ID, nil
}

func (r *groupRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Group, error) {
	defer r.s.lock(ctx)()
	g, ok := r.s.groups[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &g, nil
}

func (r *groupRepo) ListByOwner(ctx context.Context, ownerID primitive.ObjectID, page domain.PageRequest) ([]domain.Group, int64, error) {
	defer r.s.lock(ctx)()
	all := sortedBy(r.s.groups,
		func(g domain.Group) bool { return g.UserID == ownerID },
		func(a, b domain.Group) bool { return createdBefore(a.CreatedAt, b.CreatedAt, a.ID, b.ID) })
	items, total := paginate(all, page)
	return items, total, nil
}

func (r *groupRepo) CountByOwner(ctx context.Context, ownerID primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for _, g := range r.s.groups {
		if g.UserID == ownerID {
			n++
		}
	}
	return n, nil
}

func (r *groupRepo) IDsByWorkout(ctx context.Context, workoutID primitive.ObjectID) ([]primitive.ObjectID, error) {
	defer r.s.lock(ctx)()
	ids := []primitive.ObjectID{}
	for id, g := range r.s.groups {
		if g.WorkoutID != nil && *g.WorkoutID == workoutID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *groupRepo) WorkoutIDsForGroups(ctx context.Context, groupIDs []primitive.ObjectID) ([]primitive.ObjectID, error) {
	defer r.s.lock(ctx)()
	seen := map[primitive.ObjectID]struct{}{}
	ids := []primitive.ObjectID{}
	for _, gid := range groupIDs {
		g, ok := r.s.groups[gid]
		if !ok || g.WorkoutID == nil {
			continue
		}
		if _, dup := seen[*g.WorkoutID]; !dup {
			seen[*g.WorkoutID] = struct{}{}
			ids = append(ids, *g.WorkoutID)
		}
	}
	return ids, nil
}

func (r *groupRepo) update(ctx context.Context, id primitive.ObjectID, fn func(g *domain.Group)) error {
	defer r.s.lock(ctx)()
	g, ok := r.s.groups[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&g)
	g.UpdatedAt = time.Now().UTC()
	r.s.groups[id] = g
	return nil
}

func (r *groupRepo) Rename(ctx context.Context, id primitive.ObjectID, name string) error {
	return r.update(ctx, id, func(g *domain.Group) { g.Name = name })
}

func (r *groupRepo) SetWorkout(ctx context.Context, id primitive.ObjectID, workoutID *primitive.ObjectID) error {
	return r.update(ctx, id, func(g *domain.Group) {
		if workoutID == nil {
			g.WorkoutID = nil
			return
		}
		w := *workoutID
		g.WorkoutID = &w
	})
}

func (r *groupRepo) DetachWorkoutEverywhere(ctx context.Context, workoutID primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	for id, g := range r.s.groups {
		if g.WorkoutID != nil && *g.WorkoutID == workoutID {
			g.WorkoutID = nil
			g.UpdatedAt = time.Now().UTC()
			r.s.groups[id] = g
		}
	}
	return nil
}

func (r *groupRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.groups[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.groups, id)
	return nil
}

func (r *groupRepo) DeleteByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]primitive.ObjectID, error) {
	defer r.s.lock(ctx)()
	ids := []primitive.ObjectID{}
	for id, g := range r.s.groups {
		if g.UserID == ownerID {
			ids = append(ids, id)
			delete(r.s.groups, id)
		}
	}
	return ids, nil
}

type groupMemberRepo struct{ s *Store }

func (r *groupMemberRepo) AddMany(ctx context.Context, groupID primitive.ObjectID, userIDs []primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	want := idSet(userIDs)
	if len(want) != len(userIDs) {
		return repository.ErrDuplicate
	}
	for _, m := range r.s.members {
		if _, ok := want[m.UserID]; ok && m.GroupID == groupID {
			return repository.ErrDuplicate
		}
	}
	now := time.Now().UTC()
	for _, uid := range userIDs {
		m := domain.GroupMember{ID: primitive.NewObjectID(), GroupID: groupID, UserID: uid, CreatedAt: now}
		r.s.members[m.ID] = m
	}
	return nil
}

func (r *groupMemberRepo) ListByGroup(ctx context.Context, groupID primitive.ObjectID) ([]domain.GroupMember, error) {
	defer r.s.lock(ctx)()
	return sortedBy(r.s.members,
		func(m domain.GroupMember) bool { return m.GroupID == groupID },
		func(a, b domain.GroupMember) bool { return createdBefore(a.CreatedAt, b.CreatedAt, a.ID, b.ID) }), nil
}

func (r *groupMemberRepo) CountByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for _, m := range r.s.members {
		if m.GroupID == groupID {
			n++
		}
	}
	return n, nil
}

func (r *groupMemberRepo) GroupIDsByUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	defer r.s.lock(ctx)()
	ids := []primitive.ObjectID{}
	for _, m := range r.s.members {
		if m.UserID == userID {
			ids = append(ids, m.GroupID)
		}
	}
	return ids, nil
}

func (r *groupMemberRepo) IsMember(ctx context.Context, groupIDs []primitive.ObjectID, userID primitive.ObjectID) (bool, error) {
	defer r.s.lock(ctx)()
	groups := idSet(groupIDs)
	for _, m := range r.s.members {
		if _, ok := groups[m.GroupID]; ok && m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *groupMemberRepo) Remove(ctx context.Context, groupID primitive.ObjectID, userIDs []primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()
	users := idSet(userIDs)
	var n int64
	for id, m := range r.s.members {
		if _, ok := users[m.UserID]; ok && m.GroupID == groupID {
			delete(r.s.members, id)
			n++
		}
	}
	return n, nil
}

func (r *groupMemberRepo) DeleteByGroups(ctx context.Context, groupIDs []primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	groups := idSet(groupIDs)
	for id, m := range r.s.members {
		if _, ok := groups[m.GroupID]; ok {
			delete(r.s.members, id)
		}
	}
	return nil
}

func (r *groupMemberRepo) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	for id, m := range r.s.members {
		if m.UserID == userID {
			delete(r.s.members, id)
		}
	}
	return nil
}
