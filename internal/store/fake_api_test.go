package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/and161185/health-diary/internal/apiclient"
	"github.com/and161185/health-diary/internal/model"
)

type call struct {
	Method string
	Path   string
}

// fakeAPI is an in-memory backend speaking the /family contract.
type fakeAPI struct {
	mu       sync.Mutex
	calls    []call
	seq      int
	entries  []model.DiaryEntry
	profiles []model.FamilyMember

	// failWith, when set, is returned for every request instead of a response.
	failWith error
	// raw, when set, is decoded into out instead of the real response.
	raw string
}

var _ API = (*fakeAPI)(nil)

func (f *fakeAPI) Get(ctx context.Context, path string, out any) error {
	return f.do(ctx, http.MethodGet, path, nil, out)
}
func (f *fakeAPI) Post(ctx context.Context, path string, body, out any) error {
	return f.do(ctx, http.MethodPost, path, body, out)
}
func (f *fakeAPI) Put(ctx context.Context, path string, body, out any) error {
	return f.do(ctx, http.MethodPut, path, body, out)
}
func (f *fakeAPI) Delete(ctx context.Context, path string, out any) error {
	return f.do(ctx, http.MethodDelete, path, nil, out)
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAPI) do(_ context.Context, method, path string, body, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{Method: method, Path: path})
	if f.failWith != nil {
		return f.failWith
	}

	var resp any
	var err error
	switch {
	case strings.HasPrefix(path, entriesPath):
		resp, err = f.entry(method, strings.TrimPrefix(strings.TrimPrefix(path, entriesPath), "/"), body)
	case strings.HasPrefix(path, profilesPath):
		resp, err = f.profile(method, strings.TrimPrefix(strings.TrimPrefix(path, profilesPath), "/"), body)
	default:
		err = status(http.StatusNotFound, "")
	}
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	b := []byte(f.raw)
	if f.raw == "" {
		b, _ = json.Marshal(resp)
	}
	return json.Unmarshal(b, out)
}

func (f *fakeAPI) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeAPI) entry(method, id string, body any) (any, error) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	switch {
	case method == http.MethodGet && id == "":
		return f.entries, nil
	case method == http.MethodPost && id == "":
		d := body.(model.EntryDraft)
		e := model.DiaryEntry{
			ID: f.nextID("e"), Title: d.Title, Content: d.Content, Date: d.Date, Mood: d.Mood,
			Tags: d.Tags, FamilyMemberID: d.FamilyMemberID, CreatedAt: now, UpdatedAt: now,
		}
		f.entries = append([]model.DiaryEntry{e}, f.entries...)
		return e, nil
	case method == http.MethodPut:
		for i := range f.entries {
			if f.entries[i].ID == id {
				f.entries[i] = body.(model.EntryPatch).Apply(f.entries[i])
				f.entries[i].UpdatedAt = now.Add(time.Hour)
				return f.entries[i], nil
			}
		}
	case method == http.MethodDelete:
		for i := range f.entries {
			if f.entries[i].ID == id {
				f.entries = append(f.entries[:i], f.entries[i+1:]...)
				return map[string]string{"message": "deleted"}, nil
			}
		}
	}
	return nil, status(http.StatusNotFound, "entry not found")
}

func (f *fakeAPI) profile(method, id string, body any) (any, error) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	switch {
	case method == http.MethodGet && id == "":
		return profilesEnvelope{Profiles: f.profiles}, nil
	case method == http.MethodPost && id == "":
		d := body.(model.MemberDraft)
		m := model.FamilyMember{
			ID: f.nextID("m"), Name: d.Name, Age: d.Age, Relation: d.Relation, Avatar: d.Avatar,
			CreatedAt: now, UpdatedAt: now,
		}
		f.profiles = append(f.profiles, m)
		return profileEnvelope{Profile: &m}, nil
	case method == http.MethodPut:
		for i := range f.profiles {
			if f.profiles[i].ID == id {
				f.profiles[i] = body.(model.MemberPatch).Apply(f.profiles[i])
				m := f.profiles[i]
				return profileEnvelope{Profile: &m}, nil
			}
		}
	case method == http.MethodDelete:
		for i := range f.profiles {
			if f.profiles[i].ID == id {
				f.profiles = append(f.profiles[:i], f.profiles[i+1:]...)
				return map[string]string{"message": "deleted"}, nil
			}
		}
	}
	return nil, status(http.StatusNotFound, "profile not found")
}

func status(code int, msg string) error {
	te := &apiclient.TransportError{Status: code, Message: msg, FromServer: msg != ""}
	if msg == "" {
		te.Message = fmt.Sprintf("request failed with status %d", code)
	}
	return te
}
