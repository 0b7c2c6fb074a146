package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/health-diary/internal/limiter"
	"github.com/and161185/health-diary/internal/model"
	"github.com/and161185/health-diary/internal/repository/memory"
	"github.com/and161185/health-diary/internal/service"
)

type testEnv struct {
	h http.Handler
}

func newEnv(t *testing.T, db Pinger) *testEnv {
	t.Helper()
	mem := memory.New()
	auth := service.NewAuthService(mem.Users(), []byte("secret"), time.Hour, limiter.NewMemory(time.Minute, 2, time.Minute), nil)
	s := New(Deps{
		Auth:     auth,
		Diary:    service.NewDiaryService(mem.Entries(), mem.Profiles(), nil),
		DB:       db,
		Registry: prometheus.NewRegistry(),
		Logger:   zaptest.NewLogger(t),
	})
	return &testEnv{h: s.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) signup(t *testing.T, email string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Alice", "email": email, "password": "password1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[model.AuthResult](t, rec)
	require.NotEmpty(t, res.Token)
	return res.Token
}

func TestAuthFlow(t *testing.T) {
	t.Parallel()
	env := newEnv(t, nil)
	env.signup(t, "alice@example.com")

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Alice", "email": "ALICE@example.com", "password": "password1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "password1"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[model.AuthResult](t, rec)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.Equal(t, model.AvatarURL("alice@example.com"), res.User.Avatar)
	assert.True(t, res.ExpiresAt.After(time.Now()))

	rec = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"name": "B", "email": "nope", "password": "short"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Contains(t, body.Fields, "email")
	assert.Contains(t, body.Fields, "password")
}

func TestLogin_RateLimited(t *testing.T) {
	t.Parallel()
	env := newEnv(t, nil)
	env.signup(t, "bob@example.com")
	bad := map[string]string{"email": "bob@example.com", "password": "wrong-password"}

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/auth/login", "", bad).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(t, http.MethodPost, "/api/auth/login", "", bad).Code)

	good := map[string]string{"email": "bob@example.com", "password": "password1"}
	rec := env.do(t, http.MethodPost, "/api/auth/login", "", good)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, decode[errorBody](t, rec).Message)
}

func TestFamily_RequiresBearer(t *testing.T) {
	t.Parallel()
	env := newEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/family/entries", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing or invalid bearer token", decode[errorBody](t, rec).Message)

	rec = env.do(t, http.MethodGet, "/api/family/profiles", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEntries_CRUD(t *testing.T) {
	t.Parallel()
	env := newEnv(t, nil)
	tok := env.signup(t, "carol@example.com")

	rec := env.do(t, http.MethodGet, "/api/family/entries", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/family/entries", tok, model.EntryDraft{
		Title: "Day1", Content: "ok", Date: "2024-01-01", Mood: model.MoodHappy, Tags: []string{"work"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	e := decode[model.DiaryEntry](t, rec)
	require.NotEmpty(t, e.ID)

	rec = env.do(t, http.MethodPost, "/api/family/entries", tok, map[string]any{"title": "x", "content": "y", "date": "01/02/2024", "mood": "angry"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode[errorBody](t, rec).Fields
	assert.Contains(t, fields, "date")
	assert.Contains(t, fields, "mood")

	rec = env.do(t, http.MethodPut, "/api/family/entries/"+e.ID, tok, map[string]any{"mood": "sad"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	upd := decode[model.DiaryEntry](t, rec)
	assert.Equal(t, model.MoodSad, upd.Mood)
	assert.Equal(t, "Day1", upd.Title)

	rec = env.do(t, http.MethodPost, "/api/family/entries/"+e.ID, tok, map[string]any{"title": "Day one"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Day one", decode[model.DiaryEntry](t, rec).Title)

	other := env.signup(t, "dave@example.com")
	rec = env.do(t, http.MethodDelete, "/api/family/entries/"+e.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/family/entries/"+e.ID, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[messageResponse](t, rec).Message)

	rec = env.do(t, http.MethodDelete, "/api/family/entries/"+e.ID, tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfiles_DeleteConflict(t *testing.T) {
	t.Parallel()
	env := newEnv(t, nil)
	tok := env.signup(t, "erin@example.com")

	rec := env.do(t, http.MethodPost, "/api/family/profiles", tok, model.MemberDraft{Name: "Alice", Age: 34, Relation: "mother"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	m := decode[profileResponse](t, rec).Profile
	assert.Equal(t, model.AvatarURL("Alice"), m.Avatar)

	rec = env.do(t, http.MethodPut, "/api/family/profiles/"+m.ID, tok, map[string]any{"age": 35})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 35, decode[profileResponse](t, rec).Profile.Age)

	rec = env.do(t, http.MethodPost, "/api/family/entries", tok, model.EntryDraft{
		Title: "Day1", Content: "ok", Date: "2024-01-01", Mood: model.MoodHappy, FamilyMemberID: m.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	e := decode[model.DiaryEntry](t, rec)

	rec = env.do(t, http.MethodDelete, "/api/family/profiles/"+m.ID, tok, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "remove the 1 diary entry linked to this family member first", decode[errorBody](t, rec).Message)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/family/entries/"+e.ID, tok, nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/family/profiles/"+m.ID, tok, nil).Code)

	rec = env.do(t, http.MethodGet, "/api/family/profiles", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"profiles":[]}`, rec.Body.String())
}

func TestBadBody(t *testing.T) {
	t.Parallel()
	env := newEnv(t, nil)
	tok := env.signup(t, "frank@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/family/entries", strings.NewReader("{not json"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	rec := httptest.NewRecorder()
	env.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decode[errorBody](t, rec).Message)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	env := newEnv(t, pingerFunc(func(context.Context) error { return nil }))
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", "", nil).Code)

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "diary_http_requests_total")

	down := newEnv(t, pingerFunc(func(context.Context) error { return errors.New("down") }))
	assert.Equal(t, http.StatusServiceUnavailable, down.do(t, http.MethodGet, "/healthz", "", nil).Code)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/nope", "", nil).Code)
}
