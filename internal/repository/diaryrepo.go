package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/health-diary/internal/model"
)

// EntryRepository stores diary entries scoped to their owner.
type EntryRepository interface {
	// List returns the owner's entries, newest first.
	List(ctx context.Context, ownerID uuid.UUID) ([]model.DiaryEntry, error)
	// Get loads one entry or returns errs.ErrNotFound.
	Get(ctx context.Context, ownerID, id uuid.UUID) (*model.DiaryEntry, error)
	// Create inserts e; e.ID and timestamps are set by the caller.
	Create(ctx context.Context, ownerID uuid.UUID, e *model.DiaryEntry) error
	// Update overwrites the mutable fields of e.
	Update(ctx context.Context, ownerID uuid.UUID, e *model.DiaryEntry) error
	// Delete removes an entry or returns errs.ErrNotFound.
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	// CountByMember returns how many entries reference memberID.
	CountByMember(ctx context.Context, ownerID, memberID uuid.UUID) (int, error)
}

// ProfileRepository stores family member profiles scoped to their owner.
type ProfileRepository interface {
	// List returns the owner's profiles in creation order.
	List(ctx context.Context, ownerID uuid.UUID) ([]model.FamilyMember, error)
	// Get loads one profile or returns errs.ErrNotFound.
	Get(ctx context.Context, ownerID, id uuid.UUID) (*model.FamilyMember, error)
	// Create inserts m; m.ID and timestamps are set by the caller.
	Create(ctx context.Context, ownerID uuid.UUID, m *model.FamilyMember) error
	// Update overwrites the mutable fields of m.
	Update(ctx context.Context, ownerID uuid.UUID, m *model.FamilyMember) error
	// Delete removes a profile. It returns errs.ErrReferentialConflict while
	// entries still reference it and errs.ErrNotFound when it does not exist.
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}
