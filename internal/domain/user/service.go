package user

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hemorec/hemorec/internal/platform/apperr"
	"github.com/hemorec/hemorec/internal/platform/auth"
)

type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Current returns the caller's account, registering it on first sight
// with both permission flags off.
func (s *Service) Current(ctx context.Context) (*User, error) {
	ident, ok := auth.CurrentIdentity(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: no identity on request", apperr.ErrForbidden)
	}

	u, err := s.repo.Get(ctx, ident.ID)
	if err == nil {
		return u, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()
	u = &User{
		ID:        ident.ID,
		Email:     ident.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Put(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", u.ID).Msg("registered new account")
	return u, nil
}

// Flags implements the account lookup used by the route guards.
func (s *Service) Flags(ctx context.Context, ident auth.Identity) (auth.AccountFlags, error) {
	u, err := s.Current(auth.WithIdentity(ctx, ident))
	if err != nil {
		return auth.AccountFlags{}, err
	}
	return auth.AccountFlags{Authorized: u.Authorized, Admin: u.Admin}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// UpdateInput carries an account update. Authorized and Admin are
// pointers so "not sent" is distinct from "set to false".
type UpdateInput struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	Authorized *bool   `json:"authorized"`
	Admin      *bool   `json:"admin"`
}

// Update applies an account update. Anyone may edit their own name and
// email; only administrators may touch permission flags or other
// accounts, and an administrator cannot revoke their own admin flag.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*User, error) {
	caller, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	touchesFlags := in.Authorized != nil || in.Admin != nil
	if !caller.Admin {
		if id != caller.ID {
			return nil, fmt.Errorf("%w: cannot edit another account", apperr.ErrForbidden)
		}
		if touchesFlags {
			return nil, fmt.Errorf("%w: cannot change own permissions", apperr.ErrForbidden)
		}
	}
	if caller.Admin && id == caller.ID && in.Admin != nil && !*in.Admin {
		return nil, fmt.Errorf("%w: cannot revoke own admin flag", apperr.ErrForbidden)
	}

	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.Authorized != nil {
		u.Authorized = *in.Authorized
	}
	if in.Admin != nil {
		u.Admin = *in.Admin
	}
	u.UpdatedAt = time.Now().UTC()

	if err := s.repo.Put(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
