package memory

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/repository"
)

type userRepo struct{ s *Store }

func (r *userRepo) emailTaken(email string, except primitive.ObjectID) bool {
	for id, u := range r.s.users {
		if u.Email == email && id != except {
			return true
		}
	}
	return false
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.PasswordHash == "" {
		return primitive.NilObjectID, errors.New("user email and password hash are required")
	}
	defer r.s.lock(ctx)()

	if r.emailTaken(user.Email, primitive.NilObjectID) {
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = *user
	return user.ID, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	defer r.s.lock(ctx)()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	defer r.s.lock(ctx)()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.User, int64, error) {
	defer r.s.lock(ctx)()
	all := sortedBy(r.s.users,
		func(domain.User) bool { return true },
		func(a, b domain.User) bool { return createdBefore(a.CreatedAt, b.CreatedAt, a.ID, b.ID) })
	items, total := paginate(all, page)
	return items, total, nil
}

func (r *userRepo) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.User, error) {
	defer r.s.lock(ctx)()
	want := idSet(ids)
	return sortedBy(r.s.users,
		func(u domain.User) bool { _, ok := want[u.ID]; return ok },
		func(a, b domain.User) bool { return createdBefore(a.CreatedAt, b.CreatedAt, a.ID, b.ID) }), nil
}

func (r *userRepo) update(ctx context.Context, id primitive.ObjectID, fn func(u *domain.User) error) error {
	defer r.s.lock(ctx)()
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := fn(&u); err != nil {
		return err
	}
	u.UpdatedAt = time.Now().UTC()
	r.s.users[id] = u
	return nil
}

func (r *userRepo) SetConfirmed(ctx context.Context, id primitive.ObjectID) error {
	return r.update(ctx, id, func(u *domain.User) error {
		u.IsConfirmed = true
		return nil
	})
}

func applyProfile(u *domain.User, upd domain.ProfileUpdate) {
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.BirthDate != nil {
		d := upd.BirthDate.UTC()
		u.BirthDate = &d
	}
}

func (r *userRepo) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd domain.ProfileUpdate) error {
	return r.update(ctx, id, func(u *domain.User) error {
		applyProfile(u, upd)
		return nil
	})
}

func (r *userRepo) UpdateAdmin(ctx context.Context, id primitive.ObjectID, upd domain.AdminUserUpdate) error {
	return r.update(ctx, id, func(u *domain.User) error {
		if upd.Email != nil {
			if r.emailTaken(*upd.Email, id) {
				return repository.ErrDuplicate
			}
			u.Email = *upd.Email
		}
		applyProfile(u, upd.ProfileUpdate)
		if upd.Plan != nil {
			u.Plan = *upd.Plan
		}
		if upd.IsActive != nil {
			u.IsActive = *upd.IsActive
		}
		if upd.IsConfirmed != nil {
			u.IsConfirmed = *upd.IsConfirmed
		}
		if upd.IsAdmin != nil {
			u.IsAdmin = *upd.IsAdmin
		}
		return nil
	})
}

func (r *userRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.users, id)
	return nil
}

func (r *userRepo) LockQuota(ctx context.Context, id primitive.ObjectID) error {
	return r.update(ctx, id, func(u *domain.User) error {
		u.QuotaVersion++
		return nil
	})
}

type tokenRepo struct{ s *Store }

func (r *tokenRepo) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.AuthToken, error) {
	defer r.s.lock(ctx)()
	t, ok := r.s.tokens[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *tokenRepo) Save(ctx context.Context, token *domain.AuthToken) error {
	defer r.s.lock(ctx)()
	r.s.tokens[token.UserID] = *token
	return nil
}

func (r *tokenRepo) DeleteByUserID(ctx context.Context, userID primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	delete(r.s.tokens, userID)
	return nil
}
