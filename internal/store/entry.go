package store

import (
	"context"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/health-diary/internal/kv"
	"github.com/and161185/health-diary/internal/model"
	"github.com/and161185/health-diary/internal/validate"
)

const entriesPath = "/family/entries"

// EntryStore owns the diary entries, newest first.
type EntryStore struct {
	api API
	val *validate.Validator
	log *zap.Logger
	out *mirror

	mu      sync.RWMutex
	entries []model.DiaryEntry
}

// NewEntryStore constructs an empty EntryStore.
func NewEntryStore(api API, opts Options) *EntryStore {
	opts = opts.withDefaults()
	return &EntryStore{
		api: api,
		val: opts.Validator,
		log: opts.Logger.Named("entries"),
		out: &mirror{slots: opts.Slots, key: kv.SlotEntries, log: opts.Logger},
	}
}

// Entries returns a copy of the current entries.
func (s *EntryStore) Entries() []model.DiaryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEntries(s.entries)
}

// Len returns the number of entries.
func (s *EntryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entry looks an entry up by id.
func (s *EntryStore) Entry(id string) (model.DiaryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return cloneEntry(e), true
		}
	}
	return model.DiaryEntry{}, false
}

// AddEntry creates an entry on the backend and prepends the canonical record.
func (s *EntryStore) AddEntry(ctx context.Context, draft model.EntryDraft) (model.DiaryEntry, error) {
	const op, generic = "add entry", "Failed to add diary entry"

	draft = draft.Normalize()
	if err := s.val.Struct(draft); err != nil {
		return model.DiaryEntry{}, failure(op, generic, err)
	}

	var rec model.DiaryEntry
	if err := s.api.Post(ctx, entriesPath, draft, &rec); err != nil {
		s.log.Info("add entry failed", zap.Error(err))
		return model.DiaryEntry{}, failure(op, generic, err)
	}
	if rec.ID == "" {
		return model.DiaryEntry{}, failure(op, generic, errMalformed)
	}

	s.mu.Lock()
	s.entries = append([]model.DiaryEntry{rec}, s.entries...)
	s.mu.Unlock()
	s.persist(ctx)
	return cloneEntry(rec), nil
}

// UpdateEntry sends patch and replaces the local record with the backend's canonical one.
func (s *EntryStore) UpdateEntry(ctx context.Context, id string, patch model.EntryPatch) (model.DiaryEntry, error) {
	const op, generic = "update entry", "Failed to update diary entry"

	patch = patch.Normalize()
	if err := s.val.Struct(patch); err != nil {
		return model.DiaryEntry{}, failure(op, generic, err)
	}

	var rec model.DiaryEntry
	if err := s.api.Put(ctx, entriesPath+"/"+url.PathEscape(id), patch, &rec); err != nil {
		s.log.Info("update entry failed", zap.String("id", id), zap.Error(err))
		return model.DiaryEntry{}, failure(op, generic, err)
	}
	if rec.ID != id {
		return model.DiaryEntry{}, failure(op, generic, errMalformed)
	}

	s.mu.Lock()
	replaced := false
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		s.entries = append([]model.DiaryEntry{rec}, s.entries...)
	}
	s.mu.Unlock()
	s.persist(ctx)
	return cloneEntry(rec), nil
}

// DeleteEntry deletes an entry on the backend and drops it locally.
func (s *EntryStore) DeleteEntry(ctx context.Context, id string) error {
	const op, generic = "delete entry", "Failed to delete diary entry"

	if err := s.api.Delete(ctx, entriesPath+"/"+url.PathEscape(id), nil); err != nil {
		s.log.Info("delete entry failed", zap.String("id", id), zap.Error(err))
		return failure(op, generic, err)
	}

	s.mu.Lock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.persist(ctx)
	return nil
}

// EntriesByDate returns the entries whose date equals date exactly.
func (s *EntryStore) EntriesByDate(date string) []model.DiaryEntry {
	return s.Filter(Filter{Date: date})
}

// EntriesByMood returns the entries with the given mood.
func (s *EntryStore) EntriesByMood(mood model.Mood) []model.DiaryEntry {
	return s.Filter(Filter{Mood: mood})
}

// EntriesForMember returns the entries linked to memberID.
func (s *EntryStore) EntriesForMember(memberID string) []model.DiaryEntry {
	if memberID == "" {
		return []model.DiaryEntry{}
	}
	return s.Filter(Filter{FamilyMemberID: memberID})
}

// Filter returns the entries matching f without touching store state.
func (s *EntryStore) Filter(f Filter) []model.DiaryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEntries(f.Apply(s.entries))
}

// Refresh replaces local state with the backend's entry list.
func (s *EntryStore) Refresh(ctx context.Context) error {
	var list []model.DiaryEntry
	if err := s.api.Get(ctx, entriesPath, &list); err != nil {
		return failure("refresh entries", "Failed to load diary entries", err)
	}
	s.mu.Lock()
	s.entries = cloneEntries(list)
	s.mu.Unlock()
	s.persist(ctx)
	return nil
}

// Rehydrate loads the persisted slot; a never-written slot leaves the store empty.
func (s *EntryStore) Rehydrate(ctx context.Context) error {
	var entries []model.DiaryEntry
	ok, err := s.out.load(ctx, &entries)
	if err != nil || !ok {
		return err
	}
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

// Reset drops every entry and overwrites the slot with an empty list.
func (s *EntryStore) Reset(ctx context.Context) {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
	s.persist(ctx)
}

func (s *EntryStore) persist(ctx context.Context) {
	s.out.save(ctx, func() any { return s.Entries() })
}

func cloneEntry(e model.DiaryEntry) model.DiaryEntry {
	if e.Tags != nil {
		e.Tags = append([]string{}, e.Tags...)
	}
	return e
}

func cloneEntries(in []model.DiaryEntry) []model.DiaryEntry {
	out := make([]model.DiaryEntry, len(in))
	for i, e := range in {
		out[i] = cloneEntry(e)
	}
	return out
}
