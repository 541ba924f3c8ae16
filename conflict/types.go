/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package conflict reconciles imported categories against the categories
// already present in a game. Detect splits an import batch into clean
// additions and conflict groups, a Session collects the user's choice for
// each group, and Session.Apply writes those choices to the store.
package conflict

import (
	"fmt"

	"github.com/Seednode/quizbox/category"
)

// Incoming is one imported category. Several may share a name.
type Incoming struct {
	Name    string   `json:"name"`
	Answers []string `json:"answers"`
	Source  string   `json:"source,omitempty"`
}

func (in Incoming) clone() Incoming {
	in.Answers = append([]string(nil), in.Answers...)
	return in
}

// Group is an existing category together with every imported candidate
// sharing its name.
type Group struct {
	Existing   category.Category `json:"existing"`
	Candidates []Incoming        `json:"candidates"`
}

func (g Group) clone() Group {
	out := Group{
		Existing:   g.Existing.Clone(),
		Candidates: make([]Incoming, len(g.Candidates)),
	}
	for i, c := range g.Candidates {
		out.Candidates[i] = c.clone()
	}
	return out
}

// Kind is the disposition chosen for a group.
type Kind int

const (
	Skip Kind = iota
	Rename
	Overwrite
)

var kindNames = [...]string{"skip", "rename", "overwrite"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if string(b) == name {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown resolution %q", b)
}

// RenameMode selects how a renamed candidate gets its new name.
type RenameMode int

const (
	RenameAuto RenameMode = iota
	RenameCustom
)

func (m RenameMode) String() string {
	switch m {
	case RenameAuto:
		return "auto"
	case RenameCustom:
		return "custom"
	}
	return fmt.Sprintf("RenameMode(%d)", int(m))
}

func (m RenameMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *RenameMode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "auto", "":
		*m = RenameAuto
	case "custom":
		*m = RenameCustom
	default:
		return fmt.Errorf("unknown rename mode %q", b)
	}
	return nil
}

// Resolution is the user's choice for one group.
//
// Mode and Name are meaningful for Rename. Answers holds the replacement
// list for Overwrite.
type Resolution struct {
	Kind    Kind               `json:"action"`
	Mode    RenameMode         `json:"mode,omitzero"`
	Name    string             `json:"name,omitempty"`
	Answers category.AnswerSet `json:"answers,omitzero"`
}

func (r Resolution) clone() Resolution {
	r.Answers = r.Answers.Clone()
	return r
}

func (r Resolution) String() string {
	switch r.Kind {
	case Rename:
		if r.Mode == RenameCustom {
			return fmt.Sprintf("rename to %q", r.Name)
		}
		return "rename (auto)"
	case Overwrite:
		return fmt.Sprintf("overwrite with %d answers", r.Answers.Len())
	}
	return r.Kind.String()
}
