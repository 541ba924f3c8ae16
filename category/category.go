/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package category holds the category model shared by the game library,
// the import conflict resolver and the play modes.
package category

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound    = errors.New("category not found")
	ErrExists      = errors.New("category already exists")
	ErrEmptyName   = errors.New("category name must not be empty")
	ErrEmptyAnswer = errors.New("answer must not be empty")
)

// Category is a named, ordered list of answers within one game.
type Category struct {
	Name    string   `json:"name" yaml:"name"`
	Answers []string `json:"answers" yaml:"answers"`
}

// Clone returns a copy that shares no memory with c.
func (c Category) Clone() Category {
	return Category{
		Name:    c.Name,
		Answers: append([]string(nil), c.Answers...),
	}
}

// Store is the set of operations the import resolver needs from whatever
// holds a game's categories.
type Store interface {
	Exists(ctx context.Context, name string) (bool, error)
	Answers(ctx context.Context, name string) ([]string, error)
	Add(ctx context.Context, name string) error
	AddAnswer(ctx context.Context, name, text string) error
	ReplaceAnswers(ctx context.Context, name string, answers []string) error
	Names(ctx context.Context) ([]string, error)
}

// Snapshot reads every category in s, in game order.
func Snapshot(ctx context.Context, s Store) ([]Category, error) {
	names, err := s.Names(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Category, 0, len(names))
	for _, name := range names {
		answers, err := s.Answers(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, Category{Name: name, Answers: answers})
	}

	return out, nil
}

// Validate checks the invariants of a category list: non-blank, unique names
// and non-blank answers.
func Validate(categories []Category) error {
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		if strings.TrimSpace(c.Name) == "" {
			return ErrEmptyName
		}
		if seen[c.Name] {
			return &NameError{Name: c.Name, Err: ErrExists}
		}
		seen[c.Name] = true

		for _, a := range c.Answers {
			if strings.TrimSpace(a) == "" {
				return &NameError{Name: c.Name, Err: ErrEmptyAnswer}
			}
		}
	}

	return nil
}

// NameError attaches the offending category name to a store error.
type NameError struct {
	Name string
	Err  error
}

func (e *NameError) Error() string {
	return e.Err.Error() + ": " + e.Name
}

func (e *NameError) Unwrap() error {
	return e.Err
}
