package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/health-diary/internal/errs"
	"github.com/and161185/health-diary/internal/model"
)

// EntryRepo implements EntryRepository using PostgreSQL.
type EntryRepo struct{ db *DB }

// NewEntryRepo constructs an entry repository.
func NewEntryRepo(db *DB) *EntryRepo { return &EntryRepo{db: db} }

const selectEntry = `
SELECT id::text, title, content, to_char(entry_date, 'YYYY-MM-DD'), mood, tags,
       family_member_id::text, created_at, updated_at
FROM diary_entries`

// List returns the owner's entries, newest first.
func (r *EntryRepo) List(ctx context.Context, ownerID uuid.UUID) ([]model.DiaryEntry, error) {
	rows, err := r.db.Pool.Query(ctx, selectEntry+`
WHERE owner_id=$1
ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.DiaryEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Get selects one entry.
func (r *EntryRepo) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.DiaryEntry, error) {
	e, err := scanEntry(r.db.Pool.QueryRow(ctx, selectEntry+` WHERE owner_id=$1 AND id=$2`, ownerID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return e, err
}

// Create inserts a new entry row.
func (r *EntryRepo) Create(ctx context.Context, ownerID uuid.UUID, e *model.DiaryEntry) error {
	const q = `
INSERT INTO diary_entries (id, owner_id, title, content, entry_date, mood, tags, family_member_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10)`
	_, err := r.db.Pool.Exec(ctx, q, e.ID, ownerID, e.Title, e.Content, e.Date, string(e.Mood),
		tagsOrEmpty(e.Tags), nullableID(e.FamilyMemberID), e.CreatedAt, e.UpdatedAt)
	if isForeignKeyViolation(err) {
		return errs.ErrNotFound
	}
	return err
}

// Update overwrites the mutable columns of an entry.
func (r *EntryRepo) Update(ctx context.Context, ownerID uuid.UUID, e *model.DiaryEntry) error {
	const q = `
UPDATE diary_entries
SET title=$3, content=$4, entry_date=$5::date, mood=$6, tags=$7, family_member_id=$8, updated_at=$9
WHERE owner_id=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, ownerID, e.ID, e.Title, e.Content, e.Date, string(e.Mood),
		tagsOrEmpty(e.Tags), nullableID(e.FamilyMemberID), e.UpdatedAt)
	if isForeignKeyViolation(err) {
		return errs.ErrNotFound
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes an entry.
func (r *EntryRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM diary_entries WHERE owner_id=$1 AND id=$2`, ownerID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// CountByMember counts entries linked to memberID.
func (r *EntryRepo) CountByMember(ctx context.Context, ownerID, memberID uuid.UUID) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM diary_entries WHERE owner_id=$1 AND family_member_id=$2`,
		ownerID, memberID).Scan(&n)
	return n, err
}

func scanEntry(row pgx.Row) (*model.DiaryEntry, error) {
	var (
		e      model.DiaryEntry
		mood   string
		member *string
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Content, &e.Date, &mood, &e.Tags, &member, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Mood = model.Mood(mood)
	if member != nil {
		e.FamilyMemberID = *member
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return &e, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
