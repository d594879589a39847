package users

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"safed/useradmin/internal/apperr"
)

var tracer = otel.Tracer("safed/useradmin/internal/users")

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
}

type Service struct {
	store  Store
	hasher PasswordHasher
}

func NewService(store Store, hasher PasswordHasher) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	return &Service{store: store, hasher: hasher}, nil
}

func (s *Service) List(ctx context.Context, f Filter) (Page, error) {
	f = f.Normalize()
	items, total, err := s.store.List(ctx, f)
	if err != nil {
		return Page{}, apperr.From(err)
	}
	return Page{Users: items, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return User{}, apperr.From(err)
	}
	return u, nil
}

// GetByUsername is the single credential lookup used by login.
func (s *Service) GetByUsername(ctx context.Context, username string) (User, error) {
	u, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return User{}, apperr.From(err)
	}
	return u, nil
}

// Create checks email then username before inserting; the store's unique
// constraints decide when two creates race past the checks.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	ctx, span := tracer.Start(ctx, "users.Create")
	defer span.End()

	if fields := ValidateCreate(&in); fields != nil {
		return User{}, apperr.Validation(fields)
	}

	if taken, err := s.store.EmailTaken(ctx, in.Email, 0); err != nil {
		return User{}, apperr.From(err)
	} else if taken {
		return User{}, ErrDuplicateEmail
	}
	if taken, err := s.store.UsernameTaken(ctx, in.Username, 0); err != nil {
		return User{}, apperr.From(err)
	} else if taken {
		return User{}, ErrDuplicateUsername
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, apperr.Internal(fmt.Errorf("hash password: %w", err))
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	u, err := s.store.Insert(ctx, User{
		Name:         in.Name,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     active,
	})
	if err != nil {
		return User{}, apperr.From(err)
	}
	span.SetAttributes(attribute.Int64("user.id", u.ID))
	return u, nil
}

func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (User, error) {
	ctx, span := tracer.Start(ctx, "users.Update")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", id))

	if fields := ValidateUpdate(&in); fields != nil {
		return User{}, apperr.Validation(fields)
	}
	if in.Empty() {
		return User{}, apperr.NoFields()
	}

	if _, err := s.store.GetByID(ctx, id); err != nil {
		return User{}, apperr.From(err)
	}

	if in.Email != nil {
		if taken, err := s.store.EmailTaken(ctx, *in.Email, id); err != nil {
			return User{}, apperr.From(err)
		} else if taken {
			return User{}, ErrDuplicateEmail
		}
	}
	if in.Username != nil {
		if taken, err := s.store.UsernameTaken(ctx, *in.Username, id); err != nil {
			return User{}, apperr.From(err)
		} else if taken {
			return User{}, ErrDuplicateUsername
		}
	}

	c := Changes{
		Name:     in.Name,
		Username: in.Username,
		Email:    in.Email,
		Role:     in.Role,
		IsActive: in.IsActive,
	}
	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return User{}, apperr.Internal(fmt.Errorf("hash password: %w", err))
		}
		c.PasswordHash = &hash
	}

	u, err := s.store.Update(ctx, id, c)
	if err != nil {
		return User{}, apperr.From(err)
	}
	return u, nil
}

// Delete succeeds whether or not the row existed.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "users.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", id))

	if err := s.store.Delete(ctx, id); err != nil {
		return apperr.From(err)
	}
	return nil
}
