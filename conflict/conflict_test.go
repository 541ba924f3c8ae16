package conflict

import (
	"context"
	"errors"
	"testing"

	"github.com/Seednode/quizbox/category"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func colorsStore(extra ...category.Category) *category.Memory {
	cats := append([]category.Category{
		{Name: "Colors", Answers: []string{"Red", "Green"}},
	}, extra...)
	return category.NewMemory(cats...)
}

func snapshot(t *testing.T, s category.Store) []category.Category {
	t.Helper()
	all, err := category.Snapshot(context.Background(), s)
	require.NoError(t, err)
	return all
}

func newSession(t *testing.T, store category.Store, incoming ...Incoming) *Session {
	t.Helper()
	groups, _, err := Detect(context.Background(), store, incoming)
	require.NoError(t, err)
	s, err := NewSession(store, groups)
	require.NoError(t, err)
	return s
}

func TestDetect_GroupsByExistingName(t *testing.T) {
	store := colorsStore()
	incoming := []Incoming{
		{Name: "Colors", Answers: []string{"Red"}},
		{Name: "Colors", Answers: []string{"Blue"}},
		{Name: "Shapes", Answers: []string{"Circle"}},
	}

	groups, clean, err := Detect(context.Background(), store, incoming)
	require.NoError(t, err)

	require.Len(t, groups, 1)
	assert.Equal(t, category.Category{Name: "Colors", Answers: []string{"Red", "Green"}}, groups[0].Existing)
	assert.Equal(t, []Incoming{
		{Name: "Colors", Answers: []string{"Red"}},
		{Name: "Colors", Answers: []string{"Blue"}},
	}, groups[0].Candidates)

	assert.Equal(t, []Incoming{{Name: "Shapes", Answers: []string{"Circle"}}}, clean)
}

func TestDetect_OrderFollowsFirstSeenName(t *testing.T) {
	store := colorsStore(category.Category{Name: "Animals", Answers: []string{"Cat"}})
	incoming := []Incoming{
		{Name: "Animals", Answers: []string{"Dog"}},
		{Name: "Fruit", Answers: []string{"Apple"}},
		{Name: "Colors", Answers: []string{"Blue"}},
		{Name: "Animals", Answers: []string{"Cow"}},
	}

	groups, clean, err := Detect(context.Background(), store, incoming)
	require.NoError(t, err)

	require.Len(t, groups, 2)
	assert.Equal(t, "Animals", groups[0].Existing.Name)
	assert.Len(t, groups[0].Candidates, 2)
	assert.Equal(t, "Colors", groups[1].Existing.Name)
	assert.Equal(t, []Incoming{{Name: "Fruit", Answers: []string{"Apple"}}}, clean)
}

func TestDetect_DuplicateNewNamesAreNotConflicts(t *testing.T) {
	store := colorsStore()
	incoming := []Incoming{
		{Name: "Shapes", Answers: []string{"Circle"}},
		{Name: "Shapes", Answers: []string{"Square", "Circle"}},
	}

	groups, clean, err := Detect(context.Background(), store, incoming)
	require.NoError(t, err)
	assert.Empty(t, groups)
	assert.Len(t, clean, 2)

	created, err := AddClean(context.Background(), store, clean)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	answers, err := store.Answers(context.Background(), "Shapes")
	require.NoError(t, err)
	assert.Equal(t, []string{"Circle", "Square"}, answers)
}

func TestDetect_DoesNotAliasInput(t *testing.T) {
	store := colorsStore()
	incoming := []Incoming{{Name: "Colors", Answers: []string{"Blue"}}}

	groups, _, err := Detect(context.Background(), store, incoming)
	require.NoError(t, err)

	incoming[0].Answers[0] = "Mutated"
	assert.Equal(t, []string{"Blue"}, groups[0].Candidates[0].Answers)
}

func TestNewSession_RejectsEmptyGroup(t *testing.T) {
	_, err := NewSession(colorsStore(), []Group{{Existing: category.Category{Name: "Colors"}}})
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestSession_IsFullyResolved(t *testing.T) {
	store := colorsStore(category.Category{Name: "Shapes", Answers: []string{"Square"}})
	s := newSession(t, store,
		Incoming{Name: "Colors", Answers: []string{"Blue"}},
		Incoming{Name: "Shapes", Answers: []string{"Circle"}},
	)
	ctx := context.Background()

	assert.False(t, s.IsFullyResolved())

	require.NoError(t, s.Do(ctx, 0, SkipGroup()))
	assert.False(t, s.IsFullyResolved())
	resolved, total := s.Progress()
	assert.Equal(t, 1, resolved)
	assert.Equal(t, 2, total)

	require.NoError(t, s.Do(ctx, 1, SkipCandidate(0)))
	assert.True(t, s.IsFullyResolved(), "a group emptied by skips counts as resolved")
}

func TestSession_SkipCandidate(t *testing.T) {
	s := newSession(t, colorsStore(),
		Incoming{Name: "Colors", Answers: []string{"Blue"}},
		Incoming{Name: "Colors", Answers: []string{"Pink"}},
	)
	ctx := context.Background()

	require.NoError(t, s.Do(ctx, 0, SkipCandidate(0)))
	groups := s.Groups()
	require.Len(t, groups[0].Candidates, 1)
	assert.Equal(t, []string{"Pink"}, groups[0].Candidates[0].Answers)
	assert.False(t, s.IsFullyResolved())

	require.NoError(t, s.Do(ctx, 0, SkipCandidate(0)))
	assert.True(t, s.IsFullyResolved())

	err := s.Do(ctx, 0, RenameAutomatically())
	assert.ErrorIs(t, err, ErrInvalidAction, "fully skipped groups accept no further actions")
}

func TestSession_SkippingEveryCandidateDropsRename(t *testing.T) {
	s := newSession(t, colorsStore(),
		Incoming{Name: "Colors", Answers: []string{"Blue"}},
		Incoming{Name: "Colors", Answers: []string{"Pink"}},
	)
	ctx := context.Background()

	require.NoError(t, s.Do(ctx, 0, EditName(1, "Shades")))
	require.NoError(t, s.Do(ctx, 0, SkipCandidate(0)))

	r, ok := s.Resolution(0)
	require.True(t, ok, "a rename survives while a candidate remains")
	assert.Equal(t, "Shades", r.Name)

	require.NoError(t, s.Do(ctx, 0, SkipCandidate(0)))
	_, ok = s.Resolution(0)
	assert.False(t, ok)
	assert.True(t, s.IsFullyResolved())
	assert.ErrorIs(t, s.Do(ctx, 0, RenameAutomatically()), ErrInvalidAction)
}

func TestSession_InvalidIndices(t *testing.T) {
	s := newSession(t, colorsStore(), Incoming{Name: "Colors", Answers: []string{"Blue"}})
	ctx := context.Background()

	assert.ErrorIs(t, s.Do(ctx, 1, SkipGroup()), ErrInvalidAction)
	assert.ErrorIs(t, s.Do(ctx, -1, SkipGroup()), ErrInvalidAction)
	assert.ErrorIs(t, s.Do(ctx, 0, SkipCandidate(3)), ErrInvalidAction)
	assert.ErrorIs(t, s.Do(ctx, 0, OverwriteWith(1, nil)), ErrInvalidAction)
	assert.ErrorIs(t, s.Do(ctx, 0, EditName(-2, "Hues")), ErrInvalidAction)

	_, ok := s.Resolution(0)
	assert.False(t, ok)
	assert.Len(t, s.Groups()[0].Candidates, 1)
}

func TestSession_RenameCustomRejectsExistingName(t *testing.T) {
	s := newSession(t, colorsStore(), Incoming{Name: "Colors", Answers: []string{"Blue"}})
	ctx := context.Background()

	err := s.Do(ctx, 0, RenameTo("Colors"))
	assert.ErrorIs(t, err, ErrNameConflict)
	_, ok := s.Resolution(0)
	assert.False(t, ok, "resolutions must be unchanged")

	assert.ErrorIs(t, s.Do(ctx, 0, RenameTo("   ")), ErrNameConflict)

	require.NoError(t, s.Do(ctx, 0, RenameAutomatically()))
	err = s.Do(ctx, 0, EditName(0, "Colors"))
	assert.ErrorIs(t, err, ErrNameConflict)

	r, ok := s.Resolution(0)
	require.True(t, ok)
	assert.Equal(t, RenameAuto, r.Mode, "failed edit keeps the previous resolution")
	assert.Equal(t, "Colors", s.Groups()[0].Candidates[0].Name)
}

func TestSession_RenameCustomRejectsPendingName(t *testing.T) {
	store := colorsStore(category.Category{Name: "Shapes", Answers: []string{"Square"}})
	s := newSession(t, store,
		Incoming{Name: "Colors", Answers: []string{"Blue"}},
		Incoming{Name: "Shapes", Answers: []string{"Circle"}},
	)
	ctx := context.Background()

	require.NoError(t, s.Do(ctx, 0, RenameTo("Imported")))
	assert.ErrorIs(t, s.Do(ctx, 1, RenameTo("Imported")), ErrNameConflict)

	require.NoError(t, s.Do(ctx, 0, RenameTo("Imported")), "a group may re-submit its own name")
}

func TestSession_LatestResolutionWins(t *testing.T) {
	s := newSession(t, colorsStore(),
		Incoming{Name: "Colors", Answers: []string{"Blue"}},
		Incoming{Name: "Colors", Answers: []string{"Pink"}},
	)
	ctx := context.Background()

	require.NoError(t, s.Do(ctx, 0, RenameTo("Hues")))
	require.NoError(t, s.Do(ctx, 0, OverwriteWith(1, []string{"Pink", "Pink", "Red"})))

	r, ok := s.Resolution(0)
	require.True(t, ok)
	assert.Equal(t, Overwrite, r.Kind)
	assert.Equal(t, []string{"Pink", "Red"}, r.Answers.Slice())
	assert.Len(t, s.Groups()[0].Candidates, 1, "overwrite consumes its candidate")
}

func TestApply_RenameAutoSkipsTakenSuffixes(t *testing.T) {
	store := colorsStore(category.Category{Name: "Colors - 1", Answers: []string{"Teal"}})
	s := newSession(t, store, Incoming{Name: "Colors", Answers: []string{"Blue", "Pink"}})
	ctx := context.Background()

	require.NoError(t, s.Do(ctx, 0, RenameAutomatically()))
	sum, err := s.Apply(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Renamed)
	require.Len(t, sum.Outcomes, 1)
	assert.Equal(t, "Colors - 2", sum.Outcomes[0].Result)

	answers, err := store.Answers(ctx, "Colors - 2")
	require.NoError(t, err)
	assert.Equal(t, []string{"Blue", "Pink"}, answers)
}

func TestApply_RenameAutoAvoidsPendingCustomNames(t *testing.T) {
	store := colorsStore(category.Category{Name: "Shapes", Answers: []string{"Square"}})
	s := newSession(t, store,
		Incoming{Name: "Colors", Answers: []string{"Blue"}},
		Incoming{Name: "Shapes", Answers: []string{"Circle"}},
	)
	ctx := context.Background()

	require.NoError(t, s.Do(ctx, 0, RenameAutomatically()))
	require.NoError(t, s.Do(ctx, 1, RenameTo("Colors - 1")))

	sum, err := s.Apply(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Renamed)
	assert.Equal(t, "Colors - 2", sum.Outcomes[0].Result)
	assert.Equal(t, "Colors - 1", sum.Outcomes[1].Result)
}

func TestApply_EditNameImportsFirstCandidate(t *testing.T) {
	store := colorsStore()
	s := newSession(t, store,
		Incoming{Name: "Colors", Answers: []string{"Blue"}},
		Incoming{Name: "Colors", Answers: []string{"Pink", "Teal"}},
	)
	ctx := context.Background()

	require.NoError(t, s.Do(ctx, 0, EditName(1, "Pastels")))
	assert.Equal(t, "Pastels", s.Groups()[0].Candidates[1].Name)

	sum, err := s.Apply(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Pastels", sum.Outcomes[0].Result)

	answers, err := store.Answers(ctx, "Pastels")
	require.NoError(t, err)
	assert.Equal(t, []string{"Blue"}, answers)
}

func TestApply_RenameAfterSkipUsesNextCandidate(t *testing.T) {
	store := colorsStore()
	s := newSession(t, store,
		Incoming{Name: "Colors", Answers: []string{"Blue"}},
		Incoming{Name: "Colors", Answers: []string{"Pink", "Teal"}},
	)
	ctx := context.Background()

	require.NoError(t, s.Do(ctx, 0, RenameAutomatically()))
	require.NoError(t, s.Do(ctx, 0, SkipCandidate(0)))

	_, err := s.Apply(ctx)
	require.NoError(t, err)

	answers, err := store.Answers(ctx, "Colors - 1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Pink", "Teal"}, answers)
}

func TestApply_OverwriteReplacesRatherThanMerges(t *testing.T) {
	store := colorsStore()
	s := newSession(t, store, Incoming{Name: "Colors", Answers: []string{"Blue"}})
	ctx := context.Background()

	require.NoError(t, s.Do(ctx, 0, OverwriteWith(0, []string{"Red", "Blue"})))
	sum, err := s.Apply(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Overwritten: 1, Outcomes: []Outcome{
		{Group: 0, Name: "Colors", Kind: Overwrite, Result: "Colors"},
	}}, sum)

	answers, err := store.Answers(ctx, "Colors")
	require.NoError(t, err)
	assert.Equal(t, []string{"Red", "Blue"}, answers)
}

func TestApply_SkipLeavesStoreUntouched(t *testing.T) {
	store := colorsStore()
	before := snapshot(t, store)
	s := newSession(t, store, Incoming{Name: "Colors", Answers: []string{"Blue"}})
	ctx := context.Background()

	require.NoError(t, s.Do(ctx, 0, SkipGroup()))
	sum, err := s.Apply(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Zero(t, sum.Renamed)
	assert.Zero(t, sum.Overwritten)
	assert.Equal(t, before, snapshot(t, store))
}

func TestApply_UnresolvedGroupsAreSkipped(t *testing.T) {
	store := colorsStore(category.Category{Name: "Shapes", Answers: []string{"Square"}})
	s := newSession(t, store,
		Incoming{Name: "Colors", Answers: []string{"Blue"}},
		Incoming{Name: "Shapes", Answers: []string{"Circle"}},
	)
	ctx := context.Background()

	require.NoError(t, s.Do(ctx, 1, OverwriteWith(0, nil)))
	sum, err := s.Apply(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Overwritten)

	answers, err := store.Answers(ctx, "Shapes")
	require.NoError(t, err)
	assert.Equal(t, []string{"Circle"}, answers)
}

func TestApply_ClosesSession(t *testing.T) {
	s := newSession(t, colorsStore(), Incoming{Name: "Colors", Answers: []string{"Blue"}})
	ctx := context.Background()

	_, err := s.Apply(ctx)
	require.NoError(t, err)
	assert.True(t, s.Closed())

	_, err = s.Apply(ctx)
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.ErrorIs(t, s.Do(ctx, 0, SkipGroup()), ErrInvalidAction)
}

func TestApply_NameTakenSinceValidation(t *testing.T) {
	store := colorsStore(category.Category{Name: "Shapes", Answers: []string{"Square"}})
	s := newSession(t, store,
		Incoming{Name: "Shapes", Answers: []string{"Circle"}},
		Incoming{Name: "Colors", Answers: []string{"Blue"}},
	)
	ctx := context.Background()

	require.NoError(t, s.Do(ctx, 0, OverwriteWith(0, []string{"Circle"})))
	require.NoError(t, s.Do(ctx, 1, RenameTo("Hues")))
	require.NoError(t, store.Add(ctx, "Hues"))

	sum, err := s.Apply(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNameConflict)

	var applyErr *ApplyError
	require.True(t, errors.As(err, &applyErr))
	assert.Equal(t, 1, applyErr.Group)
	assert.Equal(t, "check name", applyErr.Step)
	assert.Equal(t, 1, sum.Overwritten, "earlier groups stay committed")
	assert.Equal(t, sum, applyErr.Summary)
	assert.Contains(t, err.Error(), "1 of 2 groups already committed")

	answers, err := store.Answers(ctx, "Shapes")
	require.NoError(t, err)
	assert.Equal(t, []string{"Circle"}, answers)
}

type failingStore struct {
	*category.Memory
	failReplace bool
}

var errDisk = errors.New("disk on fire")

func (f *failingStore) ReplaceAnswers(ctx context.Context, name string, answers []string) error {
	if f.failReplace {
		return errDisk
	}
	return f.Memory.ReplaceAnswers(ctx, name, answers)
}

func TestApply_StoreFailureReturnsPartialSummary(t *testing.T) {
	store := &failingStore{Memory: colorsStore(category.Category{Name: "Shapes"}), failReplace: true}
	s := newSession(t, store,
		Incoming{Name: "Colors", Answers: []string{"Blue"}},
		Incoming{Name: "Shapes", Answers: []string{"Circle"}},
		Incoming{Name: "Colors", Answers: []string{"Pink"}},
	)
	ctx := context.Background()

	require.NoError(t, s.Do(ctx, 0, RenameAutomatically()))
	require.NoError(t, s.Do(ctx, 1, OverwriteWith(0, nil)))

	sum, err := s.Apply(ctx)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, errDisk)
	assert.Equal(t, 1, sum.Renamed)
	assert.Zero(t, sum.Overwritten)

	ok, err := store.Exists(ctx, "Colors - 1")
	require.NoError(t, err)
	assert.True(t, ok, "applied renames are not rolled back")
}

func TestApply_MissingCategoryIsNotAStoreFailure(t *testing.T) {
	groups, _, err := Detect(context.Background(), colorsStore(), []Incoming{{Name: "Colors", Answers: []string{"Blue"}}})
	require.NoError(t, err)

	s, err := NewSession(category.NewMemory(), groups)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Do(ctx, 0, OverwriteWith(0, nil)))

	_, err = s.Apply(ctx)
	assert.ErrorIs(t, err, category.ErrNotFound)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)

	var applyErr *ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.Equal(t, "replace answers", applyErr.Step)
}

func TestStoreError(t *testing.T) {
	assert.ErrorIs(t, storeError(category.ErrEmptyAnswer), ErrInvalidAction)
	assert.ErrorIs(t, storeError(category.ErrExists), ErrNameConflict)
	assert.ErrorIs(t, storeError(errors.New("disk full")), ErrStoreUnavailable)
	assert.Equal(t, category.ErrNotFound, storeError(category.ErrNotFound))
}

func TestCancel_NeverTouchesStore(t *testing.T) {
	store := colorsStore(category.Category{Name: "Shapes", Answers: []string{"Square"}})
	before := snapshot(t, store)
	s := newSession(t, store,
		Incoming{Name: "Colors", Answers: []string{"Blue"}},
		Incoming{Name: "Shapes", Answers: []string{"Circle"}},
	)
	ctx := context.Background()

	require.NoError(t, s.Do(ctx, 0, RenameTo("Hues")))
	require.NoError(t, s.Do(ctx, 1, OverwriteWith(0, nil)))
	s.Cancel()
	s.Cancel()

	assert.True(t, s.Closed())
	assert.Equal(t, before, snapshot(t, store))
	_, err := s.Apply(ctx)
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestApplyWithProgress_ReportsEveryGroup(t *testing.T) {
	store := colorsStore(category.Category{Name: "Shapes"})
	s := newSession(t, store,
		Incoming{Name: "Colors", Answers: []string{"Blue"}},
		Incoming{Name: "Shapes", Answers: []string{"Circle"}},
	)

	var seen []int
	_, err := s.ApplyWithProgress(context.Background(), func(done, total int, o Outcome) {
		assert.Equal(t, 2, total)
		seen = append(seen, done)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestSummary_String(t *testing.T) {
	sum := Summary{Skipped: 1, Renamed: 1, Outcomes: []Outcome{
		{Group: 0, Name: "Colors", Kind: Skip},
		{Group: 1, Name: "Shapes", Kind: Rename, Result: "Shapes - 1"},
	}}

	out := sum.String()
	assert.Contains(t, out, "Skipped: 1")
	assert.Contains(t, out, "Renamed: 1")
	assert.Contains(t, out, "Overwritten: 0")
	assert.Contains(t, out, `"Shapes" imported as "Shapes - 1"`)
}

func TestKind_TextRoundTrip(t *testing.T) {
	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("overwrite")))
	assert.Equal(t, Overwrite, k)
	assert.Error(t, k.UnmarshalText([]byte("merge")))

	var a ActionKind
	require.NoError(t, a.UnmarshalText([]byte("edit-name")))
	assert.Equal(t, ActionEditName, a)
}
