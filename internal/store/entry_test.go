package store

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/health-diary/internal/apiclient"
	"github.com/and161185/health-diary/internal/errs"
	"github.com/and161185/health-diary/internal/kv"
	"github.com/and161185/health-diary/internal/model"
)

func newEntryStore(t *testing.T, api API, slots kv.Slots) *EntryStore {
	t.Helper()
	return NewEntryStore(api, Options{Slots: slots, Logger: zaptest.NewLogger(t)})
}

func draft(title, date string, mood model.Mood, tags ...string) model.EntryDraft {
	return model.EntryDraft{Title: title, Content: "content of " + title, Date: date, Mood: mood, Tags: tags}
}

func strp(s string) *string { return &s }

func TestAddEntry_PrependsCanonicalRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	api := &fakeAPI{}
	s := newEntryStore(t, api, nil)

	first, err := s.AddEntry(ctx, draft("Day1", "2024-01-01", model.MoodHappy, "work"))
	require.NoError(t, err)
	second, err := s.AddEntry(ctx, draft(" Day2 ", "2024-01-02", model.MoodSad, "home", " home ", ""))
	require.NoError(t, err)

	got := s.Entries()
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)
	assert.Equal(t, "Day2", got[0].Title)
	assert.Equal(t, "content of  Day2", got[0].Content)
	assert.Equal(t, []string{"home"}, got[0].Tags)
	assert.Equal(t, model.MoodSad, got[0].Mood)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestAddEntry_BusinessFieldsMatchDraft(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newEntryStore(t, &fakeAPI{}, nil)

	drafts := []model.EntryDraft{
		draft("a", "2024-01-01", model.MoodHappy),
		draft("b", "2024-02-01", model.MoodNeutral, "x", "y"),
		draft("c", "2024-03-01", model.MoodAnxious, "z"),
		draft("d", "2024-04-01", model.MoodExcited, "x"),
	}
	for i, d := range drafts {
		before := s.Len()
		_, err := s.AddEntry(ctx, d)
		require.NoError(t, err)
		require.Equal(t, before+1, s.Len(), "draft %d", i)

		head := s.Entries()[0]
		assert.Equal(t, d.Title, head.Title)
		assert.Equal(t, d.Content, head.Content)
		assert.Equal(t, d.Date, head.Date)
		assert.Equal(t, d.Mood, head.Mood)
		assert.Equal(t, model.NormalizeTags(d.Tags), head.Tags)
	}
}

func TestAddEntry_ValidationSendsNothing(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	s := newEntryStore(t, api, nil)

	_, err := s.AddEntry(context.Background(), model.EntryDraft{Title: "  ", Date: "01/02/2024", Mood: "grumpy"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrValidation)

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Contains(t, f.Message, "title")
	assert.Zero(t, api.callCount())
	assert.Zero(t, s.Len())
}

func TestAddEntry_Simulated500LeavesStateUnchanged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	api := &fakeAPI{}
	s := newEntryStore(t, api, nil)
	_, err := s.AddEntry(ctx, draft("keep", "2024-01-01", model.MoodHappy))
	require.NoError(t, err)

	api.failWith = status(http.StatusInternalServerError, "")
	_, err = s.AddEntry(ctx, draft("lost", "2024-01-02", model.MoodSad))

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, "Failed to add diary entry", f.Message)
	assert.Equal(t, 1, s.Len())

	var te *apiclient.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusInternalServerError, te.Status)
}

func TestAddEntry_BackendMessageSurfaced(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{failWith: status(http.StatusBadRequest, "date is in the future")}
	s := newEntryStore(t, api, nil)

	_, err := s.AddEntry(context.Background(), draft("x", "2024-01-01", model.MoodHappy))
	require.EqualError(t, err, "date is in the future")
}

func TestAddEntry_MalformedResponseFailsClosed(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{raw: `{"title":"no id"}`}
	s := newEntryStore(t, api, nil)

	_, err := s.AddEntry(context.Background(), draft("x", "2024-01-01", model.MoodHappy))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errMalformed))
	assert.Zero(t, s.Len())
}

func TestUpdateEntry_TrustsBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	api := &fakeAPI{}
	s := newEntryStore(t, api, nil)
	a, err := s.AddEntry(ctx, draft("a", "2024-01-01", model.MoodHappy, "t1"))
	require.NoError(t, err)
	b, err := s.AddEntry(ctx, draft("b", "2024-01-02", model.MoodSad))
	require.NoError(t, err)

	mood := model.MoodNeutral
	got, err := s.UpdateEntry(ctx, a.ID, model.EntryPatch{Title: strp(" renamed "), Mood: &mood})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, model.MoodNeutral, got.Mood)
	assert.Equal(t, []string{"t1"}, got.Tags)
	assert.True(t, got.UpdatedAt.After(a.UpdatedAt))

	stored, ok := s.Entry(a.ID)
	require.True(t, ok)
	assert.Equal(t, got, stored)

	other, ok := s.Entry(b.ID)
	require.True(t, ok)
	assert.Equal(t, b, other)
	assert.Equal(t, http.MethodPut, api.calls[len(api.calls)-1].Method)
	assert.Equal(t, "/family/entries/"+a.ID, api.calls[len(api.calls)-1].Path)
}

func TestUpdateEntry_FailureKeepsRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	api := &fakeAPI{}
	s := newEntryStore(t, api, nil)
	a, err := s.AddEntry(ctx, draft("a", "2024-01-01", model.MoodHappy))
	require.NoError(t, err)

	_, err = s.UpdateEntry(ctx, "missing", model.EntryPatch{Title: strp("x")})
	require.EqualError(t, err, "entry not found")

	_, err = s.UpdateEntry(ctx, a.ID, model.EntryPatch{Title: strp("")})
	require.ErrorIs(t, err, errs.ErrValidation)

	stored, _ := s.Entry(a.ID)
	assert.Equal(t, a, stored)
}

func TestDeleteEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	api := &fakeAPI{}
	s := newEntryStore(t, api, nil)
	a, err := s.AddEntry(ctx, draft("a", "2024-01-01", model.MoodHappy))
	require.NoError(t, err)

	require.Error(t, s.DeleteEntry(ctx, "nope"))
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.DeleteEntry(ctx, a.ID))
	assert.Zero(t, s.Len())
}

func TestEntriesByDate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newEntryStore(t, &fakeAPI{}, nil)
	for _, d := range []model.EntryDraft{
		draft("a", "2024-01-01", model.MoodHappy),
		draft("b", "2024-01-02", model.MoodHappy),
		draft("c", "2024-01-01", model.MoodSad),
	} {
		_, err := s.AddEntry(ctx, d)
		require.NoError(t, err)
	}

	got := s.EntriesByDate("2024-01-01")
	require.Len(t, got, 2)
	for _, e := range got {
		assert.Equal(t, "2024-01-01", e.Date)
	}
	assert.Equal(t, "c", got[0].Title)

	none := s.EntriesByDate("1999-12-31")
	assert.NotNil(t, none)
	assert.Empty(t, none)

	assert.Len(t, s.EntriesByMood(model.MoodHappy), 2)
	assert.Empty(t, s.EntriesByMood(model.MoodExcited))
}

func TestEntriesForMember(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newEntryStore(t, &fakeAPI{}, nil)
	d := draft("a", "2024-01-01", model.MoodHappy)
	d.FamilyMemberID = "m-1"
	_, err := s.AddEntry(ctx, d)
	require.NoError(t, err)
	_, err = s.AddEntry(ctx, draft("b", "2024-01-01", model.MoodHappy))
	require.NoError(t, err)

	assert.Len(t, s.EntriesForMember("m-1"), 1)
	assert.Empty(t, s.EntriesForMember(""))
}

func TestEntries_ReturnsCopy(t *testing.T) {
	t.Parallel()
	s := newEntryStore(t, &fakeAPI{}, nil)
	_, err := s.AddEntry(context.Background(), draft("a", "2024-01-01", model.MoodHappy, "t"))
	require.NoError(t, err)

	got := s.Entries()
	got[0].Title = "mutated"
	got[0].Tags[0] = "mutated"

	again := s.Entries()
	assert.Equal(t, "a", again[0].Title)
	assert.Equal(t, []string{"t"}, again[0].Tags)
}

func TestEntryStore_Refresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	api := &fakeAPI{entries: []model.DiaryEntry{{ID: "e-9", Title: "remote", Date: "2024-05-05", Mood: model.MoodHappy}}}
	s := newEntryStore(t, api, nil)

	require.NoError(t, s.Refresh(ctx))
	require.Len(t, s.Entries(), 1)
	assert.Equal(t, "remote", s.Entries()[0].Title)

	api.failWith = status(http.StatusBadGateway, "")
	err := s.Refresh(ctx)
	require.EqualError(t, err, "Failed to load diary entries")
	assert.Equal(t, 1, s.Len())
}
