/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package category

import (
	"context"
	"strings"
	"sync"
)

// Memory is an in-memory Store. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	names   []string
	answers map[string][]string
}

var _ Store = (*Memory)(nil)

// NewMemory returns a store seeded with copies of the given categories.
// Later duplicates of a name are ignored.
func NewMemory(categories ...Category) *Memory {
	m := &Memory{answers: make(map[string][]string, len(categories))}
	for _, c := range categories {
		if _, ok := m.answers[c.Name]; ok {
			continue
		}
		m.names = append(m.names, c.Name)
		m.answers[c.Name] = append([]string(nil), c.Answers...)
	}
	return m
}

func (m *Memory) Exists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.answers[name]
	return ok, nil
}

func (m *Memory) Answers(_ context.Context, name string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	answers, ok := m.answers[name]
	if !ok {
		return nil, &NameError{Name: name, Err: ErrNotFound}
	}
	return append([]string(nil), answers...), nil
}

func (m *Memory) Add(_ context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.answers[name]; ok {
		return &NameError{Name: name, Err: ErrExists}
	}
	m.names = append(m.names, name)
	m.answers[name] = []string{}
	return nil
}

func (m *Memory) AddAnswer(_ context.Context, name, text string) error {
	if strings.TrimSpace(text) == "" {
		return &NameError{Name: name, Err: ErrEmptyAnswer}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	answers, ok := m.answers[name]
	if !ok {
		return &NameError{Name: name, Err: ErrNotFound}
	}
	m.answers[name] = append(answers, text)
	return nil
}

func (m *Memory) ReplaceAnswers(_ context.Context, name string, answers []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.answers[name]; !ok {
		return &NameError{Name: name, Err: ErrNotFound}
	}
	m.answers[name] = append([]string{}, answers...)
	return nil
}

func (m *Memory) Names(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]string(nil), m.names...), nil
}
