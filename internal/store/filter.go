package store

import (
	"strings"

	"github.com/and161185/health-diary/internal/model"
)

// Filter selects entries; empty fields match everything and set fields are ANDed.
type Filter struct {
	Search         string
	Date           string
	Mood           model.Mood
	FamilyMemberID string
}

// IsZero reports whether f matches every entry.
func (f Filter) IsZero() bool { return f == Filter{} }

// Match reports whether e satisfies f. Search is a case-insensitive substring
// test against title or content; the query is not trimmed.
func (f Filter) Match(e model.DiaryEntry) bool {
	if q := strings.ToLower(f.Search); q != "" {
		if !strings.Contains(strings.ToLower(e.Title), q) &&
			!strings.Contains(strings.ToLower(e.Content), q) {
			return false
		}
	}
	if f.Date != "" && e.Date != f.Date {
		return false
	}
	if f.Mood != "" && e.Mood != f.Mood {
		return false
	}
	if f.FamilyMemberID != "" && e.FamilyMemberID != f.FamilyMemberID {
		return false
	}
	return true
}

// Apply returns the matching entries in their original order. entries is not modified.
func (f Filter) Apply(entries []model.DiaryEntry) []model.DiaryEntry {
	out := make([]model.DiaryEntry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}
