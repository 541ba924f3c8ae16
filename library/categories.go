/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package library

import (
	"context"
	"database/sql"
	"slices"
	"strings"

	"github.com/Seednode/quizbox/category"
)

// Categories returns a category.Store over the categories of game id. Each
// mutation is a read-modify-write of the stored game inside one
// transaction.
func (l *Library) Categories(id string) category.Store {
	return &gameCategories{lib: l, id: id}
}

type gameCategories struct {
	lib *Library
	id  string
}

func (gc *gameCategories) read(ctx context.Context) (*Game, error) {
	return gc.lib.Get(ctx, gc.id)
}

func (gc *gameCategories) modify(ctx context.Context, fn func(g *Game) error) error {
	if err := gc.lib.check(); err != nil {
		return err
	}

	return gc.lib.update(ctx, func(tx *sql.Tx) error {
		g, err := get(ctx, tx, gc.id)
		if err != nil {
			return err
		}
		if err := fn(g); err != nil {
			return err
		}
		g.Updated = gc.lib.now().UTC()
		return put(ctx, tx, g)
	})
}

func find(g *Game, name string) int {
	return slices.IndexFunc(g.Categories, func(c category.Category) bool {
		return c.Name == name
	})
}

func (gc *gameCategories) Exists(ctx context.Context, name string) (bool, error) {
	g, err := gc.read(ctx)
	if err != nil {
		return false, err
	}
	return find(g, name) >= 0, nil
}

func (gc *gameCategories) Answers(ctx context.Context, name string) ([]string, error) {
	g, err := gc.read(ctx)
	if err != nil {
		return nil, err
	}

	i := find(g, name)
	if i < 0 {
		return nil, &category.NameError{Name: name, Err: category.ErrNotFound}
	}
	return append([]string(nil), g.Categories[i].Answers...), nil
}

func (gc *gameCategories) Add(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return category.ErrEmptyName
	}

	return gc.modify(ctx, func(g *Game) error {
		if find(g, name) >= 0 {
			return &category.NameError{Name: name, Err: category.ErrExists}
		}
		g.Categories = append(g.Categories, category.Category{Name: name, Answers: []string{}})
		return nil
	})
}

func (gc *gameCategories) AddAnswer(ctx context.Context, name, text string) error {
	if strings.TrimSpace(text) == "" {
		return &category.NameError{Name: name, Err: category.ErrEmptyAnswer}
	}

	return gc.modify(ctx, func(g *Game) error {
		i := find(g, name)
		if i < 0 {
			return &category.NameError{Name: name, Err: category.ErrNotFound}
		}
		g.Categories[i].Answers = append(g.Categories[i].Answers, text)
		return nil
	})
}

func (gc *gameCategories) ReplaceAnswers(ctx context.Context, name string, answers []string) error {
	return gc.modify(ctx, func(g *Game) error {
		i := find(g, name)
		if i < 0 {
			return &category.NameError{Name: name, Err: category.ErrNotFound}
		}
		g.Categories[i].Answers = append([]string{}, answers...)
		return nil
	})
}

func (gc *gameCategories) Names(ctx context.Context) ([]string, error) {
	g, err := gc.read(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(g.Categories))
	for i, c := range g.Categories {
		names[i] = c.Name
	}
	return names, nil
}
