package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/health-diary/internal/config"
	"github.com/and161185/health-diary/internal/limiter"
	"github.com/and161185/health-diary/internal/model"
	"github.com/and161185/health-diary/internal/repository/memory"
	"github.com/and161185/health-diary/internal/server"
	"github.com/and161185/health-diary/internal/service"
)

// withBackend points the CLI at an in-memory API and a temporary config dir.
func withBackend(t *testing.T) {
	t.Helper()
	mem := memory.New()
	srv := server.New(server.Deps{
		Auth:   service.NewAuthService(mem.Users(), []byte("cli-test"), time.Hour, limiter.NewMemory(time.Minute, 5, time.Minute), nil),
		Diary:  service.NewDiaryService(mem.Entries(), mem.Profiles(), nil),
		Logger: zaptest.NewLogger(t),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	t.Setenv("DIARY_API_BASE_URL", ts.URL+"/api")
	t.Setenv("DIARY_SESSION_PATH", filepath.Join(dir, "session.json"))
	t.Setenv("DIARY_CACHE_PATH", filepath.Join(dir, "cache"))
	t.Setenv("DIARY_LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(config.New())
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, args)
	return out
}

func decodeOut[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestCLI_MemberAndEntryLifecycle(t *testing.T) {
	withBackend(t)

	u := decodeOut[model.User](t, mustRun(t, "register", "--name", "Owner", "-u", "owner@example.com", "-p", "password1"))
	assert.Equal(t, "owner@example.com", u.Email)
	assert.Equal(t, "owner@example.com", decodeOut[model.User](t, mustRun(t, "whoami")).Email)

	alice := decodeOut[model.FamilyMember](t, mustRun(t, "member", "add", "--name", "Alice", "--age", "34"))
	require.NotEmpty(t, alice.ID)

	e := decodeOut[model.DiaryEntry](t, mustRun(t, "entry", "add",
		"--title", "Day1", "--content", "ok", "--date", "2024-01-01", "--mood", "happy",
		"--tag", "work", "--member", alice.ID))
	assert.Equal(t, []string{"work"}, e.Tags)

	_, err := run(t, "member", "rm", alice.ID)
	require.ErrorContains(t, err, "remove the 1 diary entry linked to this family member first")
	assert.Len(t, decodeOut[[]model.FamilyMember](t, mustRun(t, "member", "list")), 1)

	assert.Len(t, decodeOut[[]model.DiaryEntry](t, mustRun(t, "entry", "list", "--mood", "happy")), 1)
	assert.Empty(t, decodeOut[[]model.DiaryEntry](t, mustRun(t, "entry", "list", "--search", "nothing")))

	upd := decodeOut[model.DiaryEntry](t, mustRun(t, "entry", "update", e.ID, "--mood", "sad"))
	assert.Equal(t, model.MoodSad, upd.Mood)
	assert.Equal(t, "Day1", upd.Title)

	mustRun(t, "entry", "rm", e.ID)
	mustRun(t, "member", "rm", alice.ID)
	assert.Empty(t, decodeOut[[]model.FamilyMember](t, mustRun(t, "member", "list", "--refresh")))

	mustRun(t, "logout")
	_, err = run(t, "whoami")
	require.Error(t, err)
}

func TestCLI_ValidationFailsLocally(t *testing.T) {
	withBackend(t)
	mustRun(t, "register", "--name", "Owner", "-u", "v@example.com", "-p", "password1")

	_, err := run(t, "entry", "add", "--title", "x", "--content", "y", "--date", "2024-13-45", "--mood", "happy")
	require.ErrorContains(t, err, "date")
	assert.Empty(t, decodeOut[[]model.DiaryEntry](t, mustRun(t, "entry", "list", "--refresh")))
}

func TestCLI_SyncRebuildsCache(t *testing.T) {
	withBackend(t)
	mustRun(t, "register", "--name", "Owner", "-u", "s@example.com", "-p", "password1")
	mustRun(t, "member", "add", "--name", "Bob", "--age", "70")

	t.Setenv("DIARY_CACHE_PATH", filepath.Join(t.TempDir(), "fresh"))
	assert.Empty(t, decodeOut[[]model.FamilyMember](t, mustRun(t, "member", "list")))

	out := mustRun(t, "sync")
	assert.Equal(t, "1 members, 0 entries\n", out)
	assert.Len(t, decodeOut[[]model.FamilyMember](t, mustRun(t, "member", "list")), 1)
}

func TestCLI_EntryAddDefaults(t *testing.T) {
	withBackend(t)
	mustRun(t, "register", "--name", "Owner", "-u", "d@example.com", "-p", "password1")

	before := time.Now().Format(model.DateLayout)
	e := decodeOut[model.DiaryEntry](t, mustRun(t, "entry", "add", "--title", "x", "--content", "y"))
	after := time.Now().Format(model.DateLayout)

	assert.Contains(t, []string{before, after}, e.Date)
	assert.Equal(t, model.MoodNeutral, e.Mood)

	e = decodeOut[model.DiaryEntry](t, mustRun(t, "entry", "add", "--title", "x", "--content", "y", "--date", "2024-02-02", "--mood", "sad"))
	assert.Equal(t, "2024-02-02", e.Date)
	assert.Equal(t, model.MoodSad, e.Mood)
}

func TestCLI_LogoutClearsCache(t *testing.T) {
	withBackend(t)
	mustRun(t, "register", "--name", "Ann", "-u", "ann@example.com", "-p", "password1")
	mustRun(t, "entry", "add", "--title", "private", "--content", "y")
	mustRun(t, "logout")

	mustRun(t, "register", "--name", "Ben", "-u", "ben@example.com", "-p", "password1")
	assert.Empty(t, decodeOut[[]model.DiaryEntry](t, mustRun(t, "entry", "list")))
}
