package category

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerSet_CollapsesDuplicatesAndBlanks(t *testing.T) {
	s := NewAnswerSet("Red", " Blue ", "Red", "", "  ")

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"Red", "Blue"}, s.Slice())
	assert.True(t, s.Contains("Blue"))
	assert.False(t, s.Contains("Green"))
}

func TestAnswerSet_CloneIsIndependent(t *testing.T) {
	s := NewAnswerSet("Red")
	c := s.Clone()
	c.Add("Blue")

	assert.Equal(t, []string{"Red"}, s.Slice())
	assert.Equal(t, []string{"Red", "Blue"}, c.Slice())
}

func TestMemory_Contract(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(Category{Name: "Colors", Answers: []string{"Red"}})

	ok, err := m.Exists(ctx, "Colors")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Exists(ctx, "colors")
	require.NoError(t, err)
	assert.False(t, ok, "names are case-sensitive")

	err = m.Add(ctx, "Colors")
	assert.True(t, errors.Is(err, ErrExists))

	assert.ErrorIs(t, m.Add(ctx, " "), ErrEmptyName)

	require.NoError(t, m.Add(ctx, "Shapes"))
	require.NoError(t, m.AddAnswer(ctx, "Shapes", "Circle"))
	assert.ErrorIs(t, m.AddAnswer(ctx, "Shapes", ""), ErrEmptyAnswer)
	assert.ErrorIs(t, m.AddAnswer(ctx, "Animals", "Cat"), ErrNotFound)

	_, err = m.Answers(ctx, "Animals")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.ReplaceAnswers(ctx, "Colors", []string{"Blue", "Green"}))

	all, err := Snapshot(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, []Category{
		{Name: "Colors", Answers: []string{"Blue", "Green"}},
		{Name: "Shapes", Answers: []string{"Circle"}},
	}, all)
}

func TestMemory_AnswersAreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(Category{Name: "Colors", Answers: []string{"Red"}})

	answers, err := m.Answers(ctx, "Colors")
	require.NoError(t, err)
	answers[0] = "Mutated"

	again, err := m.Answers(ctx, "Colors")
	require.NoError(t, err)
	assert.Equal(t, []string{"Red"}, again)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      []Category
		wantErr error
	}{
		{"ok", []Category{{Name: "A", Answers: []string{"x"}}, {Name: "B"}}, nil},
		{"blank name", []Category{{Name: "  "}}, ErrEmptyName},
		{"duplicate", []Category{{Name: "A"}, {Name: "A"}}, ErrExists},
		{"blank answer", []Category{{Name: "A", Answers: []string{""}}}, ErrEmptyAnswer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.in)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
