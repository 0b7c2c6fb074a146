// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/health-diary/internal/model"
)

// UserRepository stores accounts.
type UserRepository interface {
	// Create inserts a new account; a taken email yields errs.ErrAlreadyExists.
	Create(ctx context.Context, a *model.Account) error
	// GetByID loads an account by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	// GetByEmail loads an account by its (lower-cased) email.
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
}
