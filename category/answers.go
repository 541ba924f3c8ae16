/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package category

import (
	"encoding/json"
	"strings"
)

// AnswerSet is a set of answers. Duplicates collapse and blank entries are
// dropped; the order answers were first added is kept only so the set can be
// written back the way the user arranged it.
type AnswerSet struct {
	order []string
	index map[string]struct{}
}

func NewAnswerSet(answers ...string) AnswerSet {
	var s AnswerSet
	for _, a := range answers {
		s.Add(a)
	}
	return s
}

// Add inserts a trimmed answer and reports whether it was new.
func (s *AnswerSet) Add(answer string) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[answer]; ok {
		return false
	}
	s.index[answer] = struct{}{}
	s.order = append(s.order, answer)
	return true
}

func (s AnswerSet) Contains(answer string) bool {
	_, ok := s.index[strings.TrimSpace(answer)]
	return ok
}

func (s AnswerSet) Len() int {
	return len(s.order)
}

// Slice returns the members in insertion order.
func (s AnswerSet) Slice() []string {
	return append([]string(nil), s.order...)
}

func (s AnswerSet) Clone() AnswerSet {
	return NewAnswerSet(s.order...)
}

func (s AnswerSet) IsZero() bool {
	return len(s.order) == 0
}

func (s AnswerSet) MarshalJSON() ([]byte, error) {
	if s.order == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.order)
}

func (s *AnswerSet) UnmarshalJSON(b []byte) error {
	var answers []string
	if err := json.Unmarshal(b, &answers); err != nil {
		return err
	}
	*s = NewAnswerSet(answers...)
	return nil
}
