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

const profilesPath = "/family/profiles"

type profileEnvelope struct {
	Profile *model.FamilyMember `json:"profile"`
}

type profilesEnvelope struct {
	Profiles []model.FamilyMember `json:"profiles"`
}

// FamilyStore owns the ordered collection of family members (insertion order).
type FamilyStore struct {
	api API
	val *validate.Validator
	log *zap.Logger
	out *mirror

	mu      sync.RWMutex
	members []model.FamilyMember
}

// NewFamilyStore constructs an empty FamilyStore.
func NewFamilyStore(api API, opts Options) *FamilyStore {
	opts = opts.withDefaults()
	return &FamilyStore{
		api: api,
		val: opts.Validator,
		log: opts.Logger.Named("family"),
		out: &mirror{slots: opts.Slots, key: kv.SlotFamily, log: opts.Logger},
	}
}

// Members returns a copy of the current members.
func (s *FamilyStore) Members() []model.FamilyMember {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMembers(s.members)
}

// Len returns the number of members.
func (s *FamilyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// Member looks a member up by id.
func (s *FamilyStore) Member(id string) (model.FamilyMember, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.ID == id {
			return m, true
		}
	}
	return model.FamilyMember{}, false
}

// AddMember creates a member on the backend and appends the canonical record.
func (s *FamilyStore) AddMember(ctx context.Context, draft model.MemberDraft) (model.FamilyMember, error) {
	const op, generic = "add member", "Failed to add family member"

	draft = draft.Normalize()
	if err := s.val.Struct(draft); err != nil {
		return model.FamilyMember{}, failure(op, generic, err)
	}

	var env profileEnvelope
	if err := s.api.Post(ctx, profilesPath, draft, &env); err != nil {
		s.log.Info("add member failed", zap.Error(err))
		return model.FamilyMember{}, failure(op, generic, err)
	}
	if env.Profile == nil || env.Profile.ID == "" {
		return model.FamilyMember{}, failure(op, generic, errMalformed)
	}
	rec := *env.Profile

	s.mu.Lock()
	s.members = append(s.members, rec)
	s.mu.Unlock()
	s.persist(ctx)
	return rec, nil
}

// UpdateMember sends patch and replaces the local record with the backend's canonical one.
func (s *FamilyStore) UpdateMember(ctx context.Context, id string, patch model.MemberPatch) (model.FamilyMember, error) {
	const op, generic = "update member", "Failed to update family member"

	patch = patch.Normalize()
	if err := s.val.Struct(patch); err != nil {
		return model.FamilyMember{}, failure(op, generic, err)
	}

	var env profileEnvelope
	if err := s.api.Put(ctx, profilesPath+"/"+url.PathEscape(id), patch, &env); err != nil {
		s.log.Info("update member failed", zap.String("id", id), zap.Error(err))
		return model.FamilyMember{}, failure(op, generic, err)
	}
	if env.Profile == nil || env.Profile.ID != id {
		return model.FamilyMember{}, failure(op, generic, errMalformed)
	}
	rec := *env.Profile

	s.mu.Lock()
	replaced := false
	for i := range s.members {
		if s.members[i].ID == id {
			s.members[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		s.members = append(s.members, rec)
	}
	s.mu.Unlock()
	s.persist(ctx)
	return rec, nil
}

// DeleteMember deletes a member on the backend and drops it locally.
// It performs no cross-entity checks; see package guard.
func (s *FamilyStore) DeleteMember(ctx context.Context, id string) error {
	const op, generic = "delete member", "Failed to delete family member"

	if err := s.api.Delete(ctx, profilesPath+"/"+url.PathEscape(id), nil); err != nil {
		s.log.Info("delete member failed", zap.String("id", id), zap.Error(err))
		return failure(op, generic, err)
	}

	s.mu.Lock()
	for i := range s.members {
		if s.members[i].ID == id {
			s.members = append(s.members[:i], s.members[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.persist(ctx)
	return nil
}

// Refresh replaces local state with the backend's member list.
func (s *FamilyStore) Refresh(ctx context.Context) error {
	var env profilesEnvelope
	if err := s.api.Get(ctx, profilesPath, &env); err != nil {
		return failure("refresh members", "Failed to load family members", err)
	}
	s.mu.Lock()
	s.members = cloneMembers(env.Profiles)
	s.mu.Unlock()
	s.persist(ctx)
	return nil
}

// Rehydrate loads the persisted slot; a never-written slot leaves the store empty.
func (s *FamilyStore) Rehydrate(ctx context.Context) error {
	var members []model.FamilyMember
	ok, err := s.out.load(ctx, &members)
	if err != nil || !ok {
		return err
	}
	s.mu.Lock()
	s.members = members
	s.mu.Unlock()
	return nil
}

// Reset drops every member and overwrites the slot with an empty list.
func (s *FamilyStore) Reset(ctx context.Context) {
	s.mu.Lock()
	s.members = nil
	s.mu.Unlock()
	s.persist(ctx)
}

func (s *FamilyStore) persist(ctx context.Context) {
	s.out.save(ctx, func() any { return s.Members() })
}

func cloneMembers(in []model.FamilyMember) []model.FamilyMember {
	out := make([]model.FamilyMember, len(in))
	copy(out, in)
	return out
}
