package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/health-diary/internal/errs"
	"github.com/and161185/health-diary/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `
INSERT INTO users (id, email, name, avatar, pwd_hash, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q, a.ID, strings.ToLower(a.Email), a.Name, a.Avatar, a.PasswordHash, a.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

const selectUser = `
SELECT id::text, email, name, avatar, pwd_hash, created_at
FROM users`

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	return r.scan(r.db.Pool.QueryRow(ctx, selectUser+` WHERE id=$1`, id))
}

// GetByEmail selects a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.scan(r.db.Pool.QueryRow(ctx, selectUser+` WHERE email=$1`, strings.ToLower(email)))
}

func (r *UserRepo) scan(row pgx.Row) (*model.Account, error) {
	var a model.Account
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &a.Avatar, &a.PasswordHash, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
