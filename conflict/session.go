/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package conflict

import (
	"context"
	"fmt"
	"strings"

	"github.com/Seednode/quizbox/category"
)

// ActionKind names a user action against one group.
type ActionKind int

const (
	ActionSkip ActionKind = iota
	ActionRename
	ActionEditName
	ActionOverwrite
)

var actionNames = [...]string{"skip", "rename", "edit-name", "overwrite"}

func (k ActionKind) String() string {
	if k < 0 || int(k) >= len(actionNames) {
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
	return actionNames[k]
}

func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ActionKind) UnmarshalText(b []byte) error {
	for i, name := range actionNames {
		if string(b) == name {
			*k = ActionKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown action %q", b)
}

// Action is a single user decision. Candidate is -1 for actions that target
// the whole group.
type Action struct {
	Kind      ActionKind
	Candidate int
	Mode      RenameMode
	Name      string
	Answers   []string
}

// SkipGroup discards every candidate of the group.
func SkipGroup() Action {
	return Action{Kind: ActionSkip, Candidate: -1}
}

// SkipCandidate discards one candidate. A group left without candidates is
// treated as fully skipped.
func SkipCandidate(i int) Action {
	return Action{Kind: ActionSkip, Candidate: i}
}

// RenameAutomatically imports the group's first remaining candidate under the
// next free "<name> - N".
func RenameAutomatically() Action {
	return Action{Kind: ActionRename, Candidate: -1, Mode: RenameAuto}
}

// RenameTo imports the group's first remaining candidate under name.
func RenameTo(name string) Action {
	return Action{Kind: ActionRename, Candidate: -1, Mode: RenameCustom, Name: name}
}

// EditName changes the name of candidate i and renames the group to it. Like
// any rename, apply imports the answers of the first remaining candidate.
func EditName(i int, name string) Action {
	return Action{Kind: ActionEditName, Candidate: i, Mode: RenameCustom, Name: name}
}

// OverwriteWith replaces the existing category's answers with answers, which
// were taken from candidate i. A nil answers list means all of the
// candidate's answers. The candidate is consumed.
func OverwriteWith(i int, answers []string) Action {
	return Action{Kind: ActionOverwrite, Candidate: i, Answers: answers}
}

// Session holds one import's conflict groups and the resolutions chosen so
// far. It is not safe for concurrent use; callers serialise actions.
type Session struct {
	store       category.Store
	groups      []Group
	resolutions map[int]Resolution
	closed      bool
}

// NewSession starts a resolution workflow over groups, which are copied.
func NewSession(store category.Store, groups []Group) (*Session, error) {
	s := &Session{
		store:       store,
		groups:      make([]Group, len(groups)),
		resolutions: make(map[int]Resolution),
	}

	for i, g := range groups {
		if len(g.Candidates) == 0 {
			return nil, invalidf("group %d (%q) has no candidates", i, g.Existing.Name)
		}
		s.groups[i] = g.clone()
	}

	return s, nil
}

// Len returns the number of groups the session started with.
func (s *Session) Len() int {
	return len(s.groups)
}

// Groups returns a copy of the groups in their current state.
func (s *Session) Groups() []Group {
	out := make([]Group, len(s.groups))
	for i, g := range s.groups {
		out[i] = g.clone()
	}
	return out
}

// Resolution returns the resolution stored for group i, if any.
func (s *Session) Resolution(i int) (Resolution, bool) {
	r, ok := s.resolutions[i]
	if !ok {
		return Resolution{}, false
	}
	return r.clone(), true
}

// Closed reports whether the session was applied or cancelled.
func (s *Session) Closed() bool {
	return s.closed
}

// skipped reports whether group i is out of further consideration.
func (s *Session) skipped(i int) bool {
	r, ok := s.resolutions[i]
	if ok {
		return r.Kind == Skip
	}
	return len(s.groups[i].Candidates) == 0
}

func (s *Session) resolved(i int) bool {
	_, ok := s.resolutions[i]
	return ok || len(s.groups[i].Candidates) == 0
}

// IsFullyResolved reports whether every group has a resolution or has had
// all of its candidates skipped.
func (s *Session) IsFullyResolved() bool {
	resolved, total := s.Progress()
	return resolved == total
}

// Progress returns how many groups are resolved out of the total.
func (s *Session) Progress() (resolved, total int) {
	for i := range s.groups {
		if s.resolved(i) {
			resolved++
		}
	}
	return resolved, len(s.groups)
}

// Do applies one user action to group g. On error the session is left
// exactly as it was.
func (s *Session) Do(ctx context.Context, g int, a Action) error {
	if s.closed {
		return invalidf("session is closed")
	}
	if g < 0 || g >= len(s.groups) {
		return invalidf("group %d out of range [0,%d)", g, len(s.groups))
	}
	if s.skipped(g) {
		return invalidf("group %d (%q) is already skipped", g, s.groups[g].Existing.Name)
	}

	switch a.Kind {
	case ActionSkip:
		if a.Candidate < 0 {
			s.skipGroup(g)
			return nil
		}
		return s.skipCandidate(g, a.Candidate)
	case ActionRename:
		return s.rename(ctx, g, a.Mode, a.Name)
	case ActionEditName:
		return s.editName(ctx, g, a.Candidate, a.Name)
	case ActionOverwrite:
		return s.overwrite(g, a.Candidate, a.Answers)
	}

	return invalidf("unknown action %v", a.Kind)
}

func (s *Session) checkCandidate(g, c int) error {
	if n := len(s.groups[g].Candidates); c < 0 || c >= n {
		return invalidf("candidate %d out of range [0,%d) in group %d", c, n, g)
	}
	return nil
}

func (s *Session) skipGroup(g int) {
	s.resolutions[g] = Resolution{Kind: Skip}
	s.groups[g].Candidates = nil
}

func (s *Session) skipCandidate(g, c int) error {
	if err := s.checkCandidate(g, c); err != nil {
		return err
	}

	grp := &s.groups[g]
	grp.Candidates = append(grp.Candidates[:c:c], grp.Candidates[c+1:]...)

	// A rename with nothing left to import leaves the group fully skipped.
	if r, ok := s.resolutions[g]; ok && r.Kind == Rename && len(grp.Candidates) == 0 {
		delete(s.resolutions, g)
	}

	return nil
}

func (s *Session) rename(ctx context.Context, g int, mode RenameMode, name string) error {
	if len(s.groups[g].Candidates) == 0 {
		return invalidf("group %d (%q) has no candidate left to rename", g, s.groups[g].Existing.Name)
	}

	switch mode {
	case RenameAuto:
		s.resolutions[g] = Resolution{Kind: Rename, Mode: RenameAuto}
	case RenameCustom:
		name = strings.TrimSpace(name)
		if err := s.validateName(ctx, g, name); err != nil {
			return err
		}
		s.resolutions[g] = Resolution{Kind: Rename, Mode: RenameCustom, Name: name}
	default:
		return invalidf("unknown rename mode %v", mode)
	}

	return nil
}

func (s *Session) editName(ctx context.Context, g, c int, name string) error {
	if err := s.checkCandidate(g, c); err != nil {
		return err
	}

	name = strings.TrimSpace(name)
	if err := s.validateName(ctx, g, name); err != nil {
		return err
	}

	s.groups[g].Candidates[c].Name = name
	s.resolutions[g] = Resolution{Kind: Rename, Mode: RenameCustom, Name: name}

	return nil
}

func (s *Session) overwrite(g, c int, answers []string) error {
	if err := s.checkCandidate(g, c); err != nil {
		return err
	}

	grp := &s.groups[g]
	if answers == nil {
		answers = grp.Candidates[c].Answers
	}
	selected := category.NewAnswerSet(answers...)

	grp.Candidates = append(grp.Candidates[:c:c], grp.Candidates[c+1:]...)
	s.resolutions[g] = Resolution{Kind: Overwrite, Answers: selected}

	return nil
}

// validateName checks that name may become a new category for group g: it
// must be non-blank, absent from the store, and not the pending custom name
// of any other group.
func (s *Session) validateName(ctx context.Context, g int, name string) error {
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrNameConflict)
	}

	for i, r := range s.resolutions {
		if i != g && r.Kind == Rename && r.Mode == RenameCustom && r.Name == name {
			return nameConflict(name, fmt.Sprintf("is already the new name for group %d", i))
		}
	}

	exists, err := s.store.Exists(ctx, name)
	if err != nil {
		return storeError(err)
	}
	if exists {
		return nameConflict(name, "already exists")
	}

	return nil
}

// Cancel discards the session. The store is never touched; calling Cancel
// more than once is harmless.
func (s *Session) Cancel() {
	s.closed = true
}
