/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package conflict

import (
	"errors"
	"fmt"

	"github.com/Seednode/quizbox/category"
)

var (
	// ErrNameConflict rejects a new category name that is blank, already in
	// the store, or already claimed by another pending rename.
	ErrNameConflict = errors.New("name conflict")

	// ErrInvalidAction rejects an action that references a missing group or
	// candidate, targets a fully skipped group, or arrives after the session
	// was applied or cancelled.
	ErrInvalidAction = errors.New("invalid action")

	// ErrStoreUnavailable wraps failures of the underlying category store.
	ErrStoreUnavailable = errors.New("category store unavailable")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidAction}, args...)...)
}

func nameConflict(name, reason string) error {
	return fmt.Errorf("%w: %q %s", ErrNameConflict, name, reason)
}

// storeError classifies an error returned by a category.Store. Only failures
// of the store itself become ErrStoreUnavailable; a category that vanished
// is passed through as category.ErrNotFound.
func storeError(err error) error {
	switch {
	case errors.Is(err, ErrNameConflict),
		errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrInvalidAction),
		errors.Is(err, category.ErrNotFound):
		return err
	case errors.Is(err, category.ErrExists):
		return fmt.Errorf("%w: %w", ErrNameConflict, err)
	case errors.Is(err, category.ErrEmptyName), errors.Is(err, category.ErrEmptyAnswer):
		return fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// ApplyError reports where Apply stopped. Groups before Group were already
// written to the store and are counted in Summary; nothing is rolled back.
type ApplyError struct {
	Group   int
	Name    string
	Step    string
	Total   int
	Summary Summary
	Err     error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply stopped at group %d (%q) during %s, %d of %d groups already committed: %v",
		e.Group, e.Name, e.Step, e.Summary.Committed(), e.Total, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}
