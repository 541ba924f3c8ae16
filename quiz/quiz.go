/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package quiz implements the two ways of playing a game: sorting answers
// into their categories, and answering multiple-choice questions.
package quiz

import (
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/Seednode/quizbox/category"
)

// PointsPerCorrect is awarded for every correct drop or answer.
const PointsPerCorrect = 10

var (
	ErrNoAnswers     = errors.New("game has no answers to play with")
	ErrOutOfRange    = errors.New("question out of range")
	ErrAnswered      = errors.New("question already answered")
	ErrUnknownAnswer = errors.New("answer is not in play")
	ErrFinished      = errors.New("game is finished")
)

// Mode names a way of playing.
type Mode string

const (
	ModeSort           Mode = "sort"
	ModeMultipleChoice Mode = "multiple-choice"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeSort, ModeMultipleChoice:
		return Mode(s), true
	}
	return "", false
}

// Shuffler is the randomness a game needs. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// NewRand returns a seeded source for reproducible games.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

type clock struct {
	now      func() time.Time
	started  time.Time
	finished time.Time
}

func newClock() clock {
	c := clock{now: time.Now}
	c.started = c.now()
	return c
}

func (c *clock) finish() {
	if c.finished.IsZero() {
		c.finished = c.now()
	}
}

func (c *clock) elapsed() time.Duration {
	end := c.finished
	if end.IsZero() {
		end = c.now()
	}
	return end.Sub(c.started)
}

// association ties an answer text to every category it belongs to, one
// entry per occurrence.
type association struct {
	text       string
	categories []string
}

// associate collapses answers by text in first-seen order.
func associate(categories []category.Category) []*association {
	var out []*association
	index := make(map[string]*association)

	for _, c := range categories {
		for _, a := range c.Answers {
			a = strings.TrimSpace(a)
			if a == "" {
				continue
			}
			as, ok := index[a]
			if !ok {
				as = &association{text: a}
				index[a] = as
				out = append(out, as)
			}
			as.categories = append(as.categories, c.Name)
		}
	}

	return out
}
