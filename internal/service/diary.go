package service

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/health-diary/internal/errs"
	"github.com/and161185/health-diary/internal/guard"
	"github.com/and161185/health-diary/internal/model"
	"github.com/and161185/health-diary/internal/repository"
	"github.com/and161185/health-diary/internal/validate"
)

// DiaryService owns diary entries and family profiles of a signed-in user.
type DiaryService struct {
	entries  repository.EntryRepository
	profiles repository.ProfileRepository
	val      *validate.Validator
	now      func() time.Time
}

// NewDiaryService constructs DiaryService.
func NewDiaryService(entries repository.EntryRepository, profiles repository.ProfileRepository, val *validate.Validator) *DiaryService {
	if val == nil {
		val = validate.New()
	}
	return &DiaryService{entries: entries, profiles: profiles, val: val, now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }}
}

// ListEntries returns the owner's entries, newest first.
func (s *DiaryService) ListEntries(ctx context.Context, owner uuid.UUID) ([]model.DiaryEntry, error) {
	return s.entries.List(ctx, owner)
}

// CreateEntry validates draft and stores a new entry.
func (s *DiaryService) CreateEntry(ctx context.Context, owner uuid.UUID, draft model.EntryDraft) (model.DiaryEntry, error) {
	draft = draft.Normalize()
	if err := s.val.Struct(draft); err != nil {
		return model.DiaryEntry{}, err
	}
	memberID, err := s.checkMember(ctx, owner, draft.FamilyMemberID)
	if err != nil {
		return model.DiaryEntry{}, err
	}
	draft.FamilyMemberID = memberID
	id, err := uuid.NewV4()
	if err != nil {
		return model.DiaryEntry{}, err
	}
	now := s.now()
	e := model.DiaryEntry{
		ID:             id.String(),
		Title:          draft.Title,
		Content:        draft.Content,
		Date:           draft.Date,
		Mood:           draft.Mood,
		Tags:           draft.Tags,
		FamilyMemberID: draft.FamilyMemberID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.entries.Create(ctx, owner, &e); err != nil {
		return model.DiaryEntry{}, err
	}
	return e, nil
}

// UpdateEntry applies patch to an existing entry.
func (s *DiaryService) UpdateEntry(ctx context.Context, owner uuid.UUID, id string, patch model.EntryPatch) (model.DiaryEntry, error) {
	eid, err := parseID(id)
	if err != nil {
		return model.DiaryEntry{}, err
	}
	patch = patch.Normalize()
	if err := s.val.Struct(patch); err != nil {
		return model.DiaryEntry{}, err
	}
	if patch.FamilyMemberID != nil {
		memberID, err := s.checkMember(ctx, owner, *patch.FamilyMemberID)
		if err != nil {
			return model.DiaryEntry{}, err
		}
		patch.FamilyMemberID = &memberID
	}
	cur, err := s.entries.Get(ctx, owner, eid)
	if err != nil {
		return model.DiaryEntry{}, err
	}
	e := patch.Apply(*cur)
	e.UpdatedAt = s.now()
	if err := s.entries.Update(ctx, owner, &e); err != nil {
		return model.DiaryEntry{}, err
	}
	return e, nil
}

// DeleteEntry removes an entry.
func (s *DiaryService) DeleteEntry(ctx context.Context, owner uuid.UUID, id string) error {
	eid, err := parseID(id)
	if err != nil {
		return err
	}
	return s.entries.Delete(ctx, owner, eid)
}

// ListProfiles returns the owner's family members in creation order.
func (s *DiaryService) ListProfiles(ctx context.Context, owner uuid.UUID) ([]model.FamilyMember, error) {
	return s.profiles.List(ctx, owner)
}

// CreateProfile validates draft and stores a new family member.
func (s *DiaryService) CreateProfile(ctx context.Context, owner uuid.UUID, draft model.MemberDraft) (model.FamilyMember, error) {
	draft = draft.Normalize()
	if err := s.val.Struct(draft); err != nil {
		return model.FamilyMember{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.FamilyMember{}, err
	}
	now := s.now()
	m := model.FamilyMember{
		ID:        id.String(),
		Name:      draft.Name,
		Age:       draft.Age,
		Relation:  draft.Relation,
		Avatar:    draft.Avatar,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.profiles.Create(ctx, owner, &m); err != nil {
		return model.FamilyMember{}, err
	}
	return m, nil
}

// UpdateProfile applies patch to an existing family member.
func (s *DiaryService) UpdateProfile(ctx context.Context, owner uuid.UUID, id string, patch model.MemberPatch) (model.FamilyMember, error) {
	pid, err := parseID(id)
	if err != nil {
		return model.FamilyMember{}, err
	}
	patch = patch.Normalize()
	if err := s.val.Struct(patch); err != nil {
		return model.FamilyMember{}, err
	}
	cur, err := s.profiles.Get(ctx, owner, pid)
	if err != nil {
		return model.FamilyMember{}, err
	}
	m := patch.Apply(*cur)
	if m.Avatar == "" {
		m.Avatar = model.AvatarURL(m.Name)
	}
	m.UpdatedAt = s.now()
	if err := s.profiles.Update(ctx, owner, &m); err != nil {
		return model.FamilyMember{}, err
	}
	return m, nil
}

// DeleteProfile removes a family member that no entry references.
func (s *DiaryService) DeleteProfile(ctx context.Context, owner uuid.UUID, id string) error {
	pid, err := parseID(id)
	if err != nil {
		return err
	}
	n, err := s.entries.CountByMember(ctx, owner, pid)
	if err != nil {
		return err
	}
	if n > 0 {
		return &guard.ConflictError{MemberID: id, Dependents: n}
	}
	return s.profiles.Delete(ctx, owner, pid)
}

// checkMember verifies that an optional member reference points at one of
// owner's profiles and returns it in canonical form.
func (s *DiaryService) checkMember(ctx context.Context, owner uuid.UUID, memberID string) (string, error) {
	if memberID == "" {
		return "", nil
	}
	unknown := &validate.Error{Fields: map[string]string{"familyMemberId": "unknown family member"}}
	pid, err := uuid.FromString(memberID)
	if err != nil {
		return "", unknown
	}
	if _, err := s.profiles.Get(ctx, owner, pid); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", unknown
		}
		return "", err
	}
	return pid.String(), nil
}

// parseID maps malformed ids to ErrNotFound.
func parseID(id string) (uuid.UUID, error) {
	u, err := uuid.FromString(id)
	if err != nil {
		return uuid.Nil, errs.ErrNotFound
	}
	return u, nil
}
