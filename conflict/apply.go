/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package conflict

import (
	"context"
	"fmt"
	"strings"
)

// Progress is called after each group is processed during Apply.
type Progress func(done, total int, o Outcome)

// Apply writes every resolution to the store in group order and closes the
// session. Groups without a resolution are skipped. The first failure stops
// processing and is returned as an *ApplyError carrying what was already
// committed; earlier writes are not rolled back.
func (s *Session) Apply(ctx context.Context) (Summary, error) {
	return s.ApplyWithProgress(ctx, nil)
}

// ApplyWithProgress is Apply with a per-group callback.
func (s *Session) ApplyWithProgress(ctx context.Context, progress Progress) (Summary, error) {
	if s.closed {
		return Summary{}, invalidf("session is closed")
	}
	s.closed = true

	reserved := make(map[string]bool)
	for _, r := range s.resolutions {
		if r.Kind == Rename && r.Mode == RenameCustom {
			reserved[r.Name] = true
		}
	}

	var sum Summary
	for i, g := range s.groups {
		if err := ctx.Err(); err != nil {
			return sum, s.applyError(i, "apply", sum, err)
		}

		r, ok := s.resolutions[i]
		if !ok || len(g.Candidates) == 0 && r.Kind == Rename {
			r = Resolution{Kind: Skip}
		}

		o := Outcome{Group: i, Name: g.Existing.Name, Kind: r.Kind}

		switch r.Kind {
		case Skip:
			sum.Skipped++
		case Rename:
			name, step, err := s.applyRename(ctx, g, r, reserved)
			if err != nil {
				return sum, s.applyError(i, step, sum, err)
			}
			o.Result = name
			sum.Renamed++
		case Overwrite:
			if err := s.store.ReplaceAnswers(ctx, g.Existing.Name, r.Answers.Slice()); err != nil {
				return sum, s.applyError(i, "replace answers", sum, storeError(err))
			}
			o.Result = g.Existing.Name
			sum.Overwritten++
		}

		sum.Outcomes = append(sum.Outcomes, o)
		if progress != nil {
			progress(i+1, len(s.groups), o)
		}
	}

	return sum, nil
}

func (s *Session) applyError(i int, step string, sum Summary, err error) error {
	return &ApplyError{
		Group:   i,
		Name:    s.groups[i].Existing.Name,
		Step:    step,
		Total:   len(s.groups),
		Summary: sum,
		Err:     err,
	}
}

func (s *Session) applyRename(ctx context.Context, g Group, r Resolution, reserved map[string]bool) (string, string, error) {
	candidate := g.Candidates[0]

	var name string
	switch r.Mode {
	case RenameCustom:
		name = r.Name
		exists, err := s.store.Exists(ctx, name)
		if err != nil {
			return "", "check name", storeError(err)
		}
		if exists {
			return "", "check name", nameConflict(name, "already exists")
		}
		delete(reserved, name)
	default:
		var err error
		name, err = s.autoName(ctx, g.Existing.Name, reserved)
		if err != nil {
			return "", "generate name", err
		}
	}

	if err := s.store.Add(ctx, name); err != nil {
		return "", "add category", storeError(err)
	}

	for _, answer := range candidate.Answers {
		answer = strings.TrimSpace(answer)
		if answer == "" {
			continue
		}
		if err := s.store.AddAnswer(ctx, name, answer); err != nil {
			return name, "add answer", storeError(err)
		}
	}

	return name, "", nil
}

// autoName returns the first "<base> - N", N counting from 1, that is
// neither in the store nor reserved by a pending custom rename.
func (s *Session) autoName(ctx context.Context, base string, reserved map[string]bool) (string, error) {
	for n := 1; ; n++ {
		name := fmt.Sprintf("%s - %d", base, n)
		if reserved[name] {
			continue
		}

		exists, err := s.store.Exists(ctx, name)
		if err != nil {
			return "", storeError(err)
		}
		if !exists {
			return name, nil
		}
	}
}
