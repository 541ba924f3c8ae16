/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"slices"
	"time"

	"github.com/Seednode/quizbox/category"
)

// Sort is the drag-and-drop game: every answer starts in a shared pool and
// must be dropped onto each category it belongs to.
type Sort struct {
	categories []string
	pool       []*association
	placed     map[string][]string
	score      int
	clock      clock
}

// NewSort deals a shuffled pool from categories.
func NewSort(categories []category.Category, rng Shuffler) (*Sort, error) {
	pool := associate(categories)
	if len(pool) == 0 {
		return nil, ErrNoAnswers
	}
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	s := &Sort{
		pool:   pool,
		placed: make(map[string][]string, len(categories)),
		clock:  newClock(),
	}
	for _, c := range categories {
		s.categories = append(s.categories, c.Name)
	}

	return s, nil
}

// Drop places answer on category. A correct drop scores, consumes one of the
// answer's associations and removes it from the pool once none remain; a
// wrong drop changes nothing.
func (s *Sort) Drop(answer, target string) (bool, error) {
	if s.Done() {
		return false, ErrFinished
	}

	i := slices.IndexFunc(s.pool, func(a *association) bool { return a.text == answer })
	if i < 0 {
		return false, ErrUnknownAnswer
	}
	as := s.pool[i]

	j := slices.Index(as.categories, target)
	if j < 0 {
		return false, nil
	}

	as.categories = slices.Delete(as.categories, j, j+1)
	if len(as.categories) == 0 {
		s.pool = slices.Delete(s.pool, i, i+1)
	}
	s.placed[target] = append(s.placed[target], answer)
	s.score += PointsPerCorrect

	if s.Done() {
		s.clock.finish()
	}

	return true, nil
}

func (s *Sort) Done() bool {
	return len(s.pool) == 0
}

func (s *Sort) Score() int {
	return s.score
}

// Tile is an answer still in the pool. Remaining counts the categories it
// has yet to be dropped on.
type Tile struct {
	Text      string `json:"text"`
	Remaining int    `json:"remaining"`
}

// Column is a category with the answers placed on it so far.
type Column struct {
	Name   string   `json:"name"`
	Placed []string `json:"placed"`
}

// SortState is a snapshot for rendering.
type SortState struct {
	Pool    []Tile        `json:"pool"`
	Columns []Column      `json:"columns"`
	Score   int           `json:"score"`
	Done    bool          `json:"done"`
	Elapsed time.Duration `json:"elapsed"`
}

func (s *Sort) State() SortState {
	st := SortState{
		Pool:    make([]Tile, len(s.pool)),
		Columns: make([]Column, len(s.categories)),
		Score:   s.score,
		Done:    s.Done(),
		Elapsed: s.clock.elapsed(),
	}
	for i, a := range s.pool {
		st.Pool[i] = Tile{Text: a.text, Remaining: len(a.categories)}
	}
	for i, name := range s.categories {
		st.Columns[i] = Column{Name: name, Placed: append([]string{}, s.placed[name]...)}
	}
	return st
}
