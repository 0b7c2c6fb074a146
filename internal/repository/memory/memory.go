// Package memory implements the repository interfaces in process memory.
// It backs diaryd when no PostgreSQL DSN is configured and the end-to-end tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/health-diary/internal/errs"
	"github.com/and161185/health-diary/internal/model"
	"github.com/and161185/health-diary/internal/repository"
)

// DB is one in-memory database shared by the three repositories,
// so profile deletion can see referencing entries.
type DB struct {
	mu       sync.RWMutex
	users    map[string]model.Account // by lower-cased email
	entries  map[uuid.UUID]map[string]model.DiaryEntry
	profiles map[uuid.UUID]map[string]model.FamilyMember
}

// New returns an empty database.
func New() *DB {
	return &DB{
		users:    map[string]model.Account{},
		entries:  map[uuid.UUID]map[string]model.DiaryEntry{},
		profiles: map[uuid.UUID]map[string]model.FamilyMember{},
	}
}

// Users returns the account repository.
func (db *DB) Users() *UserRepo { return &UserRepo{db: db} }

// Entries returns the diary entry repository.
func (db *DB) Entries() *EntryRepo { return &EntryRepo{db: db} }

// Profiles returns the family profile repository.
func (db *DB) Profiles() *ProfileRepo { return &ProfileRepo{db: db} }

var (
	_ repository.UserRepository    = (*UserRepo)(nil)
	_ repository.EntryRepository   = (*EntryRepo)(nil)
	_ repository.ProfileRepository = (*ProfileRepo)(nil)
)

// UserRepo implements UserRepository.
type UserRepo struct{ db *DB }

// Create inserts a new account.
func (r *UserRepo) Create(_ context.Context, a *model.Account) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	key := strings.ToLower(a.Email)
	if _, ok := r.db.users[key]; ok {
		return errs.ErrAlreadyExists
	}
	cp := *a
	cp.Email = key
	r.db.users[key] = cp
	return nil
}

// GetByID loads an account by ID.
func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Account, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, a := range r.db.users {
		if a.ID == id.String() {
			cp := a
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

// GetByEmail loads an account by email.
func (r *UserRepo) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	a, ok := r.db.users[strings.ToLower(email)]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &a, nil
}

// EntryRepo implements EntryRepository.
type EntryRepo struct{ db *DB }

// List returns the owner's entries, newest first.
func (r *EntryRepo) List(_ context.Context, ownerID uuid.UUID) ([]model.DiaryEntry, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]model.DiaryEntry, 0, len(r.db.entries[ownerID]))
	for _, e := range r.db.entries[ownerID] {
		out = append(out, cloneEntry(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Get loads one entry.
func (r *EntryRepo) Get(_ context.Context, ownerID, id uuid.UUID) (*model.DiaryEntry, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	e, ok := r.db.entries[ownerID][id.String()]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := cloneEntry(e)
	return &cp, nil
}

// Create inserts e.
func (r *EntryRepo) Create(_ context.Context, ownerID uuid.UUID, e *model.DiaryEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if !r.db.memberExists(ownerID, e.FamilyMemberID) {
		return errs.ErrNotFound
	}
	if r.db.entries[ownerID] == nil {
		r.db.entries[ownerID] = map[string]model.DiaryEntry{}
	}
	if _, dup := r.db.entries[ownerID][e.ID]; dup {
		return errs.ErrAlreadyExists
	}
	r.db.entries[ownerID][e.ID] = cloneEntry(*e)
	return nil
}

// Update overwrites the mutable fields of e.
func (r *EntryRepo) Update(_ context.Context, ownerID uuid.UUID, e *model.DiaryEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.entries[ownerID][e.ID]
	if !ok {
		return errs.ErrNotFound
	}
	if !r.db.memberExists(ownerID, e.FamilyMemberID) {
		return errs.ErrNotFound
	}
	upd := cloneEntry(*e)
	upd.CreatedAt = cur.CreatedAt
	r.db.entries[ownerID][e.ID] = upd
	return nil
}

// Delete removes an entry.
func (r *EntryRepo) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.entries[ownerID][id.String()]; !ok {
		return errs.ErrNotFound
	}
	delete(r.db.entries[ownerID], id.String())
	return nil
}

// CountByMember counts entries linked to memberID.
func (r *EntryRepo) CountByMember(_ context.Context, ownerID, memberID uuid.UUID) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.countByMember(ownerID, memberID.String()), nil
}

// ProfileRepo implements ProfileRepository.
type ProfileRepo struct{ db *DB }

// List returns the owner's profiles in creation order.
func (r *ProfileRepo) List(_ context.Context, ownerID uuid.UUID) ([]model.FamilyMember, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]model.FamilyMember, 0, len(r.db.profiles[ownerID]))
	for _, m := range r.db.profiles[ownerID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Get loads one profile.
func (r *ProfileRepo) Get(_ context.Context, ownerID, id uuid.UUID) (*model.FamilyMember, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	m, ok := r.db.profiles[ownerID][id.String()]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &m, nil
}

// Create inserts m.
func (r *ProfileRepo) Create(_ context.Context, ownerID uuid.UUID, m *model.FamilyMember) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.profiles[ownerID] == nil {
		r.db.profiles[ownerID] = map[string]model.FamilyMember{}
	}
	if _, dup := r.db.profiles[ownerID][m.ID]; dup {
		return errs.ErrAlreadyExists
	}
	r.db.profiles[ownerID][m.ID] = *m
	return nil
}

// Update overwrites the mutable fields of m.
func (r *ProfileRepo) Update(_ context.Context, ownerID uuid.UUID, m *model.FamilyMember) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.profiles[ownerID][m.ID]
	if !ok {
		return errs.ErrNotFound
	}
	upd := *m
	upd.CreatedAt = cur.CreatedAt
	r.db.profiles[ownerID][m.ID] = upd
	return nil
}

// Delete removes a profile unless entries still reference it.
func (r *ProfileRepo) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	key := id.String()
	if _, ok := r.db.profiles[ownerID][key]; !ok {
		return errs.ErrNotFound
	}
	if r.db.countByMember(ownerID, key) > 0 {
		return errs.ErrReferentialConflict
	}
	delete(r.db.profiles[ownerID], key)
	return nil
}

// memberExists reports whether an optional member reference resolves; "" always does.
// Callers hold db.mu.
func (db *DB) memberExists(ownerID uuid.UUID, memberID string) bool {
	if memberID == "" {
		return true
	}
	_, ok := db.profiles[ownerID][memberID]
	return ok
}

func (db *DB) countByMember(ownerID uuid.UUID, memberID string) int {
	n := 0
	for _, e := range db.entries[ownerID] {
		if e.FamilyMemberID == memberID {
			n++
		}
	}
	return n
}

func cloneEntry(e model.DiaryEntry) model.DiaryEntry {
	e.Tags = append([]string{}, e.Tags...)
	return e
}
