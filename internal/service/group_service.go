package service

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"fitshare/fitness-api/internal/auth"
	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/quota"
	"fitshare/fitness-api/internal/repository"
)

type GroupService interface {
	CreateGroup(ctx context.Context, name string, target *primitive.ObjectID) (*domain.Group, error)
	GetGroup(ctx context.Context, id primitive.ObjectID) (*domain.GroupDetails, error)
	ListGroups(ctx context.Context, target *primitive.ObjectID, page domain.PageRequest) (*domain.Page[domain.Group], error)
	RenameGroup(ctx context.Context, id primitive.ObjectID, name string) (*domain.Group, error)
	DeleteGroup(ctx context.Context, id primitive.ObjectID) error
	AddMembers(ctx context.Context, id primitive.ObjectID, userIDs []primitive.ObjectID) (*domain.GroupDetails, error)
	RemoveMembers(ctx context.Context, id primitive.ObjectID, userIDs []primitive.ObjectID) (int64, error)
	AttachWorkout(ctx context.Context, id, workoutID primitive.ObjectID) (*domain.Group, error)
	DetachWorkout(ctx context.Context, id primitive.ObjectID) (*domain.Group, error)
}

type groupService struct {
	store  repository.Store
	quota  quotaGate
	logger *zap.Logger
}

func NewGroupService(store repository.Store, limits *quota.Table, logger *zap.Logger) GroupService {
	return &groupService{
		store:  store,
		quota:  quotaGate{users: store.Users, limits: limits},
		logger: logger.Named("group"),
	}
}

func (s *groupService) CreateGroup(ctx context.Context, name string, target *primitive.ObjectID) (*domain.Group, error) {
	p, owner, err := actor(ctx, target)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("group name is required")
	}

	var group domain.Group
	err = s.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		err := s.quota.reserve(ctx, p, owner, domain.ResourceGroup, func(ctx context.Context) (int64, error) {
			return s.store.Groups.CountByOwner(ctx, owner)
		})
		if err != nil {
			return err
		}
		group = domain.Group{UserID: owner, Name: name}
		_, err = s.store.Groups.Create(ctx, &group)
		return err
	})
	if err != nil {
		return nil, repoErr(err, "group")
	}
	s.logger.Info("group created", zap.String("group_id", group.ID.Hex()), zap.String("owner_id", owner.Hex()))
	return &group, nil
}

// owned loads a group the caller may manage.
func (s *groupService) owned(ctx context.Context, id primitive.ObjectID) (*domain.Group, error) {
	p, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, err
	}
	g, err := s.store.Groups.GetByID(ctx, id)
	if err != nil {
		return nil, repoErr(err, "group")
	}
	if !auth.CanAccessOwned(p, g.UserID) {
		return nil, notFound("group")
	}
	return g, nil
}

// GetGroup is also open to the group's members.
func (s *groupService) GetGroup(ctx context.Context, id primitive.ObjectID) (*domain.GroupDetails, error) {
	p, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, err
	}
	g, err := s.store.Groups.GetByID(ctx, id)
	if err != nil {
		return nil, repoErr(err, "group")
	}
	if !auth.CanAccessOwned(p, g.UserID) {
		member, err := s.store.GroupMembers.IsMember(ctx, []primitive.ObjectID{g.ID}, p.UserID)
		if err != nil {
			return nil, repoErr(err, "group")
		}
		if !member {
			return nil, notFound("group")
		}
	}
	d, err := s.details(ctx, g)
	return d, repoErr(err, "group")
}

func (s *groupService) details(ctx context.Context, g *domain.Group) (*domain.GroupDetails, error) {
	rows, err := s.store.GroupMembers.ListByGroup(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	members := []domain.User{}
	if len(rows) > 0 {
		ids := make([]primitive.ObjectID, 0, len(rows))
		for _, m := range rows {
			ids = append(ids, m.UserID)
		}
		if members, err = s.store.Users.ListByIDs(ctx, ids); err != nil {
			return nil, err
		}
	}

	d := &domain.GroupDetails{Group: *g, Members: members}
	if g.WorkoutID != nil {
		w, err := s.store.Workouts.GetByID(ctx, *g.WorkoutID)
		switch {
		case err == nil:
			d.Workout = w
		case !errors.Is(err, repository.ErrNotFound):
			return nil, err
		}
	}
	return d, nil
}

func (s *groupService) ListGroups(ctx context.Context, target *primitive.ObjectID, page domain.PageRequest) (*domain.Page[domain.Group], error) {
	_, owner, err := actor(ctx, target)
	if err != nil {
		return nil, err
	}
	items, total, err := s.store.Groups.ListByOwner(ctx, owner, page)
	if err != nil {
		return nil, repoErr(err, "group")
	}
	return pageOf(items, total, page), nil
}

func (s *groupService) RenameGroup(ctx context.Context, id primitive.ObjectID, name string) (*domain.Group, error) {
	g, err := s.owned(ctx, id)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("group name is required")
	}
	if err := s.store.Groups.Rename(ctx, g.ID, name); err != nil {
		return nil, repoErr(err, "group")
	}
	g, err = s.store.Groups.GetByID(ctx, g.ID)
	return g, repoErr(err, "group")
}

// DeleteGroup removes the group together with its member rows.
func (s *groupService) DeleteGroup(ctx context.Context, id primitive.ObjectID) error {
	g, err := s.owned(ctx, id)
	if err != nil {
		return err
	}
	err = s.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.GroupMembers.DeleteByGroups(ctx, []primitive.ObjectID{g.ID}); err != nil {
			return err
		}
		return s.store.Groups.Delete(ctx, g.ID)
	})
	if err != nil {
		return repoErr(err, "group")
	}
	s.logger.Info("group deleted", zap.String("group_id", g.ID.Hex()))
	return nil
}

func dedupeIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id.IsZero() {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func hexIDs(ids []primitive.ObjectID) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return strings.Join(out, ", ")
}

// AddMembers adds users to the group. All of them must exist and none may
// be a member already. The owner's members-per-group ceiling always applies.
func (s *groupService) AddMembers(ctx context.Context, id primitive.ObjectID, userIDs []primitive.ObjectID) (*domain.GroupDetails, error) {
	g, err := s.owned(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := dedupeIDs(userIDs)
	if len(ids) == 0 {
		return nil, invalid("at least one user id is required")
	}

	var details *domain.GroupDetails
	err = s.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		users, err := s.store.Users.ListByIDs(ctx, ids)
		if err != nil {
			return err
		}
		found := make(map[primitive.ObjectID]domain.User, len(users))
		for _, u := range users {
			found[u.ID] = u
		}
		var missing []primitive.ObjectID
		for _, uid := range ids {
			if _, ok := found[uid]; !ok {
				missing = append(missing, uid)
			}
		}
		if len(missing) > 0 {
			return forbidden("users not found: %s", hexIDs(missing))
		}

		current, err := s.store.GroupMembers.ListByGroup(ctx, g.ID)
		if err != nil {
			return err
		}
		var present []string
		for _, m := range current {
			if u, ok := found[m.UserID]; ok {
				present = append(present, u.Email)
			}
		}
		if len(present) > 0 {
			return forbidden("users are already members of the group: %s", strings.Join(present, ", "))
		}

		if err := s.quota.memberCeiling(ctx, g.UserID, int64(len(current)), len(ids)); err != nil {
			return err
		}
		if err := s.store.GroupMembers.AddMany(ctx, g.ID, ids); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return forbidden("users are already members of the group")
			}
			return err
		}
		details, err = s.details(ctx, g)
		return err
	})
	if err != nil {
		return nil, repoErr(err, "group")
	}
	s.logger.Info("group members added", zap.String("group_id", g.ID.Hex()), zap.Int("count", len(ids)))
	return details, nil
}

// RemoveMembers returns how many of userIDs were members.
func (s *groupService) RemoveMembers(ctx context.Context, id primitive.ObjectID, userIDs []primitive.ObjectID) (int64, error) {
	g, err := s.owned(ctx, id)
	if err != nil {
		return 0, err
	}
	ids := dedupeIDs(userIDs)
	if len(ids) == 0 {
		return 0, invalid("at least one user id is required")
	}
	n, err := s.store.GroupMembers.Remove(ctx, g.ID, ids)
	if err != nil {
		return 0, repoErr(err, "group")
	}
	return n, nil
}

// AttachWorkout shares one of the group owner's workouts with the members.
func (s *groupService) AttachWorkout(ctx context.Context, id, workoutID primitive.ObjectID) (*domain.Group, error) {
	g, err := s.owned(ctx, id)
	if err != nil {
		return nil, err
	}
	w, err := s.store.Workouts.GetByID(ctx, workoutID)
	if err != nil {
		return nil, repoErr(err, "workout")
	}
	if w.UserID != g.UserID {
		return nil, notFound("workout")
	}
	if err := s.store.Groups.SetWorkout(ctx, g.ID, &w.ID); err != nil {
		return nil, repoErr(err, "group")
	}
	g, err = s.store.Groups.GetByID(ctx, g.ID)
	return g, repoErr(err, "group")
}

func (s *groupService) DetachWorkout(ctx context.Context, id primitive.ObjectID) (*domain.Group, error) {
	g, err := s.owned(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.Groups.SetWorkout(ctx, g.ID, nil); err != nil {
		return nil, repoErr(err, "group")
	}
	g, err = s.store.Groups.GetByID(ctx, g.ID)
	return g, repoErr(err, "group")
}
