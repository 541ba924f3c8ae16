/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"fmt"
	"slices"
	"time"

	"github.com/Seednode/quizbox/category"
)

const distractors = 3

type question struct {
	category string
	correct  string
	options  []string
	selected string
	answered bool
}

// MultipleChoice asks one question per answer and category pairing.
type MultipleChoice struct {
	questions []*question
	current   int
	answered  int
	score     int
	clock     clock
}

// NewMultipleChoice builds a shuffled question list from categories. Each
// question offers its correct answer plus up to three answers that do not
// belong to the question's category.
func NewMultipleChoice(categories []category.Category, rng Shuffler) (*MultipleChoice, error) {
	pool := associate(categories)
	if len(pool) == 0 {
		return nil, ErrNoAnswers
	}

	m := &MultipleChoice{clock: newClock()}

	for _, as := range pool {
		for _, name := range as.categories {
			var wrong []string
			for _, other := range pool {
				if !slices.Contains(other.categories, name) {
					wrong = append(wrong, other.text)
				}
			}
			rng.Shuffle(len(wrong), func(i, j int) { wrong[i], wrong[j] = wrong[j], wrong[i] })
			if len(wrong) > distractors {
				wrong = wrong[:distractors]
			}

			options := append([]string{as.text}, wrong...)
			rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

			m.questions = append(m.questions, &question{
				category: name,
				correct:  as.text,
				options:  options,
			})
		}
	}

	rng.Shuffle(len(m.questions), func(i, j int) {
		m.questions[i], m.questions[j] = m.questions[j], m.questions[i]
	})

	return m, nil
}

func (m *MultipleChoice) question(i int) (*question, error) {
	if i < 0 || i >= len(m.questions) {
		return nil, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, len(m.questions))
	}
	return m.questions[i], nil
}

// Answer selects option for question i. Each question can be answered once.
func (m *MultipleChoice) Answer(i int, option string) (bool, error) {
	q, err := m.question(i)
	if err != nil {
		return false, err
	}
	if q.answered {
		return false, ErrAnswered
	}
	if !slices.Contains(q.options, option) {
		return false, ErrUnknownAnswer
	}

	q.answered = true
	q.selected = option
	m.answered++

	correct := option == q.correct
	if correct {
		m.score += PointsPerCorrect
	}

	if m.Done() {
		m.clock.finish()
	}

	return correct, nil
}

// Goto moves to question i.
func (m *MultipleChoice) Goto(i int) error {
	if _, err := m.question(i); err != nil {
		return err
	}
	m.current = i
	return nil
}

func (m *MultipleChoice) Current() int {
	return m.current
}

func (m *MultipleChoice) Len() int {
	return len(m.questions)
}

func (m *MultipleChoice) Done() bool {
	return m.answered == len(m.questions)
}

func (m *MultipleChoice) Score() int {
	return m.score
}

// Question is a rendered question. Correct is only filled in once the
// question has been answered.
type Question struct {
	Prompt   string   `json:"prompt"`
	Category string   `json:"category"`
	Options  []string `json:"options"`
	Answered bool     `json:"answered"`
	Selected string   `json:"selected,omitempty"`
	Correct  string   `json:"correct,omitempty"`
}

type MultipleChoiceState struct {
	Questions []Question    `json:"questions"`
	Current   int           `json:"current"`
	Answered  int           `json:"answered"`
	Score     int           `json:"score"`
	Done      bool          `json:"done"`
	Elapsed   time.Duration `json:"elapsed"`
}

func (m *MultipleChoice) State() MultipleChoiceState {
	st := MultipleChoiceState{
		Questions: make([]Question, len(m.questions)),
		Current:   m.current,
		Answered:  m.answered,
		Score:     m.score,
		Done:      m.Done(),
		Elapsed:   m.clock.elapsed(),
	}
	for i, q := range m.questions {
		v := Question{
			Prompt:   fmt.Sprintf("Which answer belongs to %q?", q.category),
			Category: q.category,
			Options:  slices.Clone(q.options),
			Answered: q.answered,
		}
		if q.answered {
			v.Selected = q.selected
			v.Correct = q.correct
		}
		st.Questions[i] = v
	}
	return st
}
