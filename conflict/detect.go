/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package conflict

import (
	"context"
	"errors"
	"strings"

	"github.com/Seednode/quizbox/category"
)

// Detect partitions incoming against store. Names already in the store come
// back as groups, in the order their first candidate appeared; everything
// else comes back in clean, in input order. Two incoming entries sharing a
// name the store does not know are not a conflict.
func Detect(ctx context.Context, store category.Store, incoming []Incoming) ([]Group, []Incoming, error) {
	var order []string
	byName := make(map[string][]Incoming)
	for _, in := range incoming {
		if _, ok := byName[in.Name]; !ok {
			order = append(order, in.Name)
		}
		byName[in.Name] = append(byName[in.Name], in.clone())
	}

	exists := make(map[string]bool, len(order))
	var groups []Group
	for _, name := range order {
		ok, err := store.Exists(ctx, name)
		if err != nil {
			return nil, nil, storeError(err)
		}
		if !ok {
			continue
		}
		exists[name] = true

		answers, err := store.Answers(ctx, name)
		if err != nil {
			return nil, nil, storeError(err)
		}

		groups = append(groups, Group{
			Existing:   category.Category{Name: name, Answers: answers},
			Candidates: byName[name],
		})
	}

	var clean []Incoming
	for _, in := range incoming {
		if !exists[in.Name] {
			clean = append(clean, in.clone())
		}
	}

	return groups, clean, nil
}

// AddClean writes non-conflicting imports straight to the store. The first
// entry for a name creates the category; later entries with the same name
// contribute only answers the category does not have yet. It returns how
// many categories were created.
func AddClean(ctx context.Context, store category.Store, clean []Incoming) (int, error) {
	created := 0
	seen := make(map[string]*category.AnswerSet)

	for _, in := range clean {
		set, ok := seen[in.Name]
		if !ok {
			if err := store.Add(ctx, in.Name); err != nil {
				if errors.Is(err, category.ErrEmptyName) {
					return created, invalidf("imported category has no name")
				}
				return created, storeError(err)
			}
			created++
			set = &category.AnswerSet{}
			seen[in.Name] = set
		}

		for _, answer := range in.Answers {
			answer = strings.TrimSpace(answer)
			if !set.Add(answer) {
				continue
			}
			if err := store.AddAnswer(ctx, in.Name, answer); err != nil {
				return created, storeError(err)
			}
		}
	}

	return created, nil
}
