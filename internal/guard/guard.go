// Package guard holds the pre-delete policy between family members and diary entries.
package guard

import (
	"fmt"

	"github.com/and161185/health-diary/internal/errs"
	"github.com/and161185/health-diary/internal/model"
)

// ConflictError reports that a member is still referenced and must not be deleted.
type ConflictError struct {
	MemberID   string
	Dependents int
}

// Error implements error with the user-facing notice.
func (e *ConflictError) Error() string {
	noun := "entries"
	if e.Dependents == 1 {
		noun = "entry"
	}
	return fmt.Sprintf("remove the %d diary %s linked to this family member first", e.Dependents, noun)
}

// Unwrap lets callers match errs.ErrReferentialConflict.
func (e *ConflictError) Unwrap() error { return errs.ErrReferentialConflict }

// Dependents counts the entries whose FamilyMemberID equals memberID.
func Dependents(memberID string, entries []model.DiaryEntry) int {
	n := 0
	for _, e := range entries {
		if e.FamilyMemberID != "" && e.FamilyMemberID == memberID {
			n++
		}
	}
	return n
}

// CanDelete reports false iff at least one entry references memberID.
func CanDelete(memberID string, entries []model.DiaryEntry) bool {
	return Dependents(memberID, entries) == 0
}

// Check returns *ConflictError when memberID is referenced, nil otherwise.
func Check(memberID string, entries []model.DiaryEntry) error {
	if n := Dependents(memberID, entries); n > 0 {
		return &ConflictError{MemberID: memberID, Dependents: n}
	}
	return nil
}
