// Package model defines diary entities shared by the client stores and the backend.
package model

import (
	"net/url"
	"strings"
	"time"
)

// Mood is the fixed mood scale of a diary entry.
type Mood string

// Supported moods.
const (
	MoodHappy   Mood = "happy"
	MoodNeutral Mood = "neutral"
	MoodSad     Mood = "sad"
	MoodAnxious Mood = "anxious"
	MoodExcited Mood = "excited"
)

// Moods lists every valid mood in display order.
var Moods = []Mood{MoodHappy, MoodNeutral, MoodSad, MoodAnxious, MoodExcited}

// Valid reports whether m is one of the five supported moods.
func (m Mood) Valid() bool {
	for _, v := range Moods {
		if m == v {
			return true
		}
	}
	return false
}

// DateLayout is the calendar date format of DiaryEntry.Date.
const DateLayout = "2006-01-02"

// DiaryEntry is the canonical diary record returned by the backend.
type DiaryEntry struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Date           string    `json:"date"`
	Mood           Mood      `json:"mood"`
	Tags           []string  `json:"tags"`
	FamilyMemberID string    `json:"familyMemberId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// EntryDraft is an entry payload before the backend assigns identity and timestamps.
type EntryDraft struct {
	Title          string   `json:"title" validate:"required"`
	Content        string   `json:"content" validate:"required"`
	Date           string   `json:"date" validate:"required,datetime=2006-01-02"`
	Mood           Mood     `json:"mood" validate:"required,mood"`
	Tags           []string `json:"tags"`
	FamilyMemberID string   `json:"familyMemberId,omitempty"`
}

// EntryPatch carries a partial entry update; nil fields are left unchanged.
// An empty FamilyMemberID unlinks the entry.
type EntryPatch struct {
	Title          *string   `json:"title,omitempty" validate:"omitempty,min=1"`
	Content        *string   `json:"content,omitempty" validate:"omitempty,min=1"`
	Date           *string   `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Mood           *Mood     `json:"mood,omitempty" validate:"omitempty,mood"`
	Tags           *[]string `json:"tags,omitempty"`
	FamilyMemberID *string   `json:"familyMemberId,omitempty"`
}

// Normalize trims text fields and collapses tags into an ordered set.
func (d EntryDraft) Normalize() EntryDraft {
	d.Title = strings.TrimSpace(d.Title)
	d.Content = strings.TrimSpace(d.Content)
	d.Date = strings.TrimSpace(d.Date)
	d.FamilyMemberID = strings.TrimSpace(d.FamilyMemberID)
	d.Tags = NormalizeTags(d.Tags)
	return d
}

// Normalize applies the EntryDraft rules to the fields present in p.
func (p EntryPatch) Normalize() EntryPatch {
	p.Title = trimPtr(p.Title)
	p.Content = trimPtr(p.Content)
	p.Date = trimPtr(p.Date)
	p.FamilyMemberID = trimPtr(p.FamilyMemberID)
	if p.Tags != nil {
		tags := NormalizeTags(*p.Tags)
		p.Tags = &tags
	}
	return p
}

// Apply returns e with every non-nil patch field copied in.
func (p EntryPatch) Apply(e DiaryEntry) DiaryEntry {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Content != nil {
		e.Content = *p.Content
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Mood != nil {
		e.Mood = *p.Mood
	}
	if p.Tags != nil {
		e.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.FamilyMemberID != nil {
		e.FamilyMemberID = *p.FamilyMemberID
	}
	return e
}

// FamilyMember is the canonical family profile returned by the backend.
type FamilyMember struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Relation  string    `json:"relation"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MemberDraft is a family profile payload before the backend assigns identity.
type MemberDraft struct {
	Name     string `json:"name" validate:"required"`
	Age      int    `json:"age" validate:"gte=0,lte=150"`
	Relation string `json:"relation"`
	Avatar   string `json:"avatar,omitempty" validate:"omitempty,url"`
}

// MemberPatch carries a partial profile update; nil fields are left unchanged.
type MemberPatch struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Age      *int    `json:"age,omitempty" validate:"omitempty,gte=0,lte=150"`
	Relation *string `json:"relation,omitempty"`
	Avatar   *string `json:"avatar,omitempty" validate:"omitempty,url"`
}

// Normalize trims text fields and derives the avatar when none is set.
func (d MemberDraft) Normalize() MemberDraft {
	d.Name = strings.TrimSpace(d.Name)
	d.Relation = strings.TrimSpace(d.Relation)
	d.Avatar = strings.TrimSpace(d.Avatar)
	if d.Avatar == "" && d.Name != "" {
		d.Avatar = AvatarURL(d.Name)
	}
	return d
}

// Normalize trims the text fields present in p.
func (p MemberPatch) Normalize() MemberPatch {
	p.Name = trimPtr(p.Name)
	p.Relation = trimPtr(p.Relation)
	p.Avatar = trimPtr(p.Avatar)
	return p
}

// Apply returns m with every non-nil patch field copied in.
func (p MemberPatch) Apply(m FamilyMember) FamilyMember {
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Age != nil {
		m.Age = *p.Age
	}
	if p.Relation != nil {
		m.Relation = *p.Relation
	}
	if p.Avatar != nil {
		m.Avatar = *p.Avatar
	}
	return m
}

// User is the account owning a diary.
type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Account is the stored form of a User, including the password hash.
type Account struct {
	User
	PasswordHash string
	CreatedAt    time.Time
}

// AuthResult is returned by the register and login endpoints.
type AuthResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

const avatarBase = "https://api.dicebear.com/7.x/avataaars/svg?seed="

// AvatarURL derives a deterministic avatar URI from a name or email.
func AvatarURL(seed string) string {
	return avatarBase + url.QueryEscape(seed)
}

// NormalizeTags trims tags, drops blanks and duplicates, and keeps first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
