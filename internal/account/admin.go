package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"investment-core/internal/domain"
	"investment-core/pkg/db"
)

// List returns users newest first.
func (s *Service) List(ctx context.Context, actor domain.Actor, limit, offset int) ([]db.User, error) {
	if err := domain.Authorize(actor, domain.ActionManageUsers); err != nil {
		return nil, err
	}
	return s.db.Queries().ListUsers(ctx, limit, offset)
}

// Get returns any user with balances.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (Profile, error) {
	if err := domain.Authorize(actor, domain.ActionManageUsers); err != nil {
		return Profile{}, err
	}
	return s.profile(ctx, id)
}

// UserPatch is what an admin may change on a user.
type UserPatch struct {
	FullName   *string
	Phone      *string
	Role       *string
	IsVerified *bool
}

// Update applies an admin change to a user.
func (s *Service) Update(ctx context.Context, actor domain.Actor, id string, p UserPatch) (db.User, error) {
	if err := domain.Authorize(actor, domain.ActionManageUsers); err != nil {
		return db.User{}, err
	}

	var u db.User
	err := s.db.InTx(ctx, func(q *db.Queries) error {
		var err error
		u, err = q.GetUserByID(ctx, id)
		if err != nil {
			return userNotFound(err, id)
		}
		if p.FullName != nil {
			u.FullName = strings.TrimSpace(*p.FullName)
		}
		if p.Phone != nil {
			u.PhoneNumber = strings.TrimSpace(*p.Phone)
		}
		if p.Role != nil {
			r := domain.Role(strings.ToLower(strings.TrimSpace(*p.Role)))
			if !r.Valid() {
				return domain.ErrInvalidInput.Withf("role must be user or admin")
			}
			u.Role = string(r)
		}
		if p.IsVerified != nil {
			u.IsVerified = *p.IsVerified
		}
		return q.UpdateUser(ctx, &u)
	})
	if err != nil {
		return db.User{}, err
	}
	s.log.Info("user updated by admin", zap.String("user_id", id), zap.String("admin_id", actor.ID))
	return u, nil
}

// Delete removes a user and their balances. Transactions are kept as
// history.
func (s *Service) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := domain.Authorize(actor, domain.ActionManageUsers); err != nil {
		return err
	}
	if id == actor.ID {
		return domain.ErrInvalidInput.Withf("admins cannot delete their own account")
	}
	err := s.db.InTx(ctx, func(q *db.Queries) error {
		if err := q.DeleteBalances(ctx, id); err != nil {
			return err
		}
		return userNotFound(q.DeleteUser(ctx, id), id)
	})
	if err != nil {
		return err
	}
	s.log.Info("user deleted", zap.String("user_id", id), zap.String("admin_id", actor.ID))
	return nil
}

// EnsureAdmin creates the bootstrap admin when absent, or promotes and
// verifies an existing account with that email.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	q := s.db.Queries()
	u, err := q.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role == string(domain.RoleAdmin) && u.IsVerified {
			return nil
		}
		u.Role = string(domain.RoleAdmin)
		u.IsVerified = true
		if err := q.UpdateUser(ctx, &u); err != nil {
			return fmt.Errorf("promote admin: %w", err)
		}
	case errors.Is(err, db.ErrNotFound):
		hash, err := hashPassword(password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u = db.User{
			ID:           uuid.NewString(),
			Email:        email,
			PasswordHash: hash,
			UserName:     "admin",
			Role:         string(domain.RoleAdmin),
			IsVerified:   true,
		}
		if err := s.create(ctx, &u); err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
	default:
		return err
	}
	s.log.Info("bootstrap admin ensured", zap.String("user_id", u.ID), zap.String("email", email))
	return nil
}
