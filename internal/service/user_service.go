package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"fitshare/fitness-api/internal/auth"
	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/repository"
	"fitshare/fitness-api/internal/storage"
)

type UserService interface {
	GetMe(ctx context.Context) (*domain.User, error)
	UpdateMe(ctx context.Context, upd domain.ProfileUpdate) (*domain.User, error)

	// Administrator only.
	GetUser(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	ListUsers(ctx context.Context, page domain.PageRequest) (*domain.Page[domain.User], error)
	UpdateUser(ctx context.Context, id primitive.ObjectID, upd domain.AdminUserUpdate) (*domain.User, error)
	DeleteUser(ctx context.Context, id primitive.ObjectID) error
}

type userService struct {
	store  repository.Store
	files  storage.FileStorage
	logger *zap.Logger
}

func NewUserService(store repository.Store, files storage.FileStorage, logger *zap.Logger) UserService {
	return &userService{store: store, files: files, logger: logger.Named("user")}
}

func validateProfile(upd domain.ProfileUpdate) error {
	if upd.BirthDate != nil && upd.BirthDate.After(time.Now()) {
		return invalid("birth date cannot be in the future")
	}
	return nil
}

func (s *userService) GetMe(ctx context.Context) (*domain.User, error) {
	p, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.store.Users.GetByID(ctx, p.UserID)
	return u, repoErr(err, "user")
}

func (s *userService) UpdateMe(ctx context.Context, upd domain.ProfileUpdate) (*domain.User, error) {
	p, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateProfile(upd); err != nil {
		return nil, err
	}
	if err := s.store.Users.UpdateProfile(ctx, p.UserID, upd); err != nil {
		return nil, repoErr(err, "user")
	}
	u, err := s.store.Users.GetByID(ctx, p.UserID)
	return u, repoErr(err, "user")
}

func requireAdmin(ctx context.Context) (auth.Principal, error) {
	p, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return p, err
	}
	return p, auth.RequireAdmin(p)
}

func (s *userService) GetUser(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	u, err := s.store.Users.GetByID(ctx, id)
	return u, repoErr(err, "user")
}

func (s *userService) ListUsers(ctx context.Context, page domain.PageRequest) (*domain.Page[domain.User], error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	items, total, err := s.store.Users.List(ctx, page)
	if err != nil {
		return nil, repoErr(err, "user")
	}
	return pageOf(items, total, page), nil
}

func (s *userService) UpdateUser(ctx context.Context, id primitive.ObjectID, upd domain.AdminUserUpdate) (*domain.User, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := validateProfile(upd.ProfileUpdate); err != nil {
		return nil, err
	}
	if upd.Plan != nil && !upd.Plan.Valid() {
		return nil, invalid("unknown plan %q", *upd.Plan)
	}
	if upd.Email != nil {
		email, err := normalizeEmail(*upd.Email)
		if err != nil {
			return nil, err
		}
		upd.Email = &email
	}

	if err := s.store.Users.UpdateAdmin(ctx, id, upd); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: user with this email already exists", ErrConflict)
		}
		return nil, repoErr(err, "user")
	}
	// a deactivated account loses its session right away
	if upd.IsActive != nil && !*upd.IsActive {
		if err := s.store.Tokens.DeleteByUserID(ctx, id); err != nil {
			return nil, repoErr(err, "token")
		}
	}
	u, err := s.store.Users.GetByID(ctx, id)
	return u, repoErr(err, "user")
}

// DeleteUser removes the account with everything it owns in one
// transaction. Media objects are removed afterwards on a best-effort basis.
func (s *userService) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}

	var mediaKeys []string
	err := s.store.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.store.Users.GetByID(ctx, id); err != nil {
			return repoErr(err, "user")
		}
		if err := s.store.WorkoutExercises.DeleteByOwner(ctx, id); err != nil {
			return err
		}
		keys, err := s.store.Exercises.DeleteByOwner(ctx, id)
		if err != nil {
			return err
		}
		if err := s.store.Workouts.DeleteByOwner(ctx, id); err != nil {
			return err
		}
		groupIDs, err := s.store.Groups.DeleteByOwner(ctx, id)
		if err != nil {
			return err
		}
		if err := s.store.GroupMembers.DeleteByGroups(ctx, groupIDs); err != nil {
			return err
		}
		if err := s.store.GroupMembers.DeleteByUser(ctx, id); err != nil {
			return err
		}
		if err := s.store.Tokens.DeleteByUserID(ctx, id); err != nil {
			return err
		}
		if err := s.store.Users.Delete(ctx, id); err != nil {
			return err
		}
		mediaKeys = keys
		return nil
	})
	if err != nil {
		return repoErr(err, "user")
	}
	s.logger.Info("user deleted", zap.String("user_id", id.Hex()), zap.Int("media_objects", len(mediaKeys)))

	for _, key := range mediaKeys {
		if err := s.files.DeleteObject(ctx, key); err != nil {
			s.logger.Warn("failed to delete media object", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}
