package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/health-diary/internal/errs"
	"github.com/and161185/health-diary/internal/model"
)

// ProfileRepo implements ProfileRepository using PostgreSQL.
type ProfileRepo struct{ db *DB }

// NewProfileRepo constructs a family profile repository.
func NewProfileRepo(db *DB) *ProfileRepo { return &ProfileRepo{db: db} }

const selectProfile = `
SELECT id::text, name, age, relation, avatar, created_at, updated_at
FROM family_profiles`

// List returns the owner's profiles in creation order.
func (r *ProfileRepo) List(ctx context.Context, ownerID uuid.UUID) ([]model.FamilyMember, error) {
	rows, err := r.db.Pool.Query(ctx, selectProfile+`
WHERE owner_id=$1
ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.FamilyMember, 0)
	for rows.Next() {
		m, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// Get selects one profile.
func (r *ProfileRepo) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.FamilyMember, error) {
	m, err := scanProfile(r.db.Pool.QueryRow(ctx, selectProfile+` WHERE owner_id=$1 AND id=$2`, ownerID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return m, err
}

// Create inserts a new profile row.
func (r *ProfileRepo) Create(ctx context.Context, ownerID uuid.UUID, m *model.FamilyMember) error {
	const q = `
INSERT INTO family_profiles (id, owner_id, name, age, relation, avatar, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Pool.Exec(ctx, q, m.ID, ownerID, m.Name, m.Age, m.Relation, m.Avatar, m.CreatedAt, m.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Update overwrites the mutable columns of a profile.
func (r *ProfileRepo) Update(ctx context.Context, ownerID uuid.UUID, m *model.FamilyMember) error {
	const q = `
UPDATE family_profiles
SET name=$3, age=$4, relation=$5, avatar=$6, updated_at=$7
WHERE owner_id=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, ownerID, m.ID, m.Name, m.Age, m.Relation, m.Avatar, m.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes a profile; the entries foreign key rejects referenced ones.
func (r *ProfileRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM family_profiles WHERE owner_id=$1 AND id=$2`, ownerID, id)
	if isForeignKeyViolation(err) {
		return errs.ErrReferentialConflict
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (*model.FamilyMember, error) {
	var m model.FamilyMember
	if err := row.Scan(&m.ID, &m.Name, &m.Age, &m.Relation, &m.Avatar, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}
