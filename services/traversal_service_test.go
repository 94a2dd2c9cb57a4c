package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"questforge/models"
)

func newTraversalFixture(t *testing.T, maxQuestions int) (*gorm.DB, *TraversalService, *fakeGenerator, *models.Quest, []models.ScoreCategory) {
	t.Helper()

	db := newTestDB(t)
	universe := createUniverse(t, db)
	quest := createQuest(t, db, universe.ID, maxQuestions)
	categories := createCategories(t, db, quest.ID)

	fake := &fakeGenerator{}
	generator := NewGeneratorService(db, fake, testLogger())
	traversal := NewTraversalService(db, generator, testLogger())
	return db, traversal, fake, quest, categories
}

// scriptQuestions makes the fake generator answer every question prompt with
// a fresh two-option question.
func scriptQuestions(t *testing.T, fake *fakeGenerator, categories []models.ScoreCategory) {
	t.Helper()
	known := fmt.Sprintf("%d", categories[0].ID)
	n := 0
	fake.textFn = func(string) (string, error) {
		n++
		return questionJSON(t, fmt.Sprintf("Scene %d: what now?", n), []map[string]any{
			optionSpec("Press on", map[string]int{known: 1}),
			optionSpec("Hold back", map[string]int{known: -1}),
		}), nil
	}
}

func TestResolveNextRootIdempotent(t *testing.T) {
	_, traversal, fake, quest, categories := newTraversalFixture(t, 3)
	scriptQuestions(t, fake, categories)

	first, completed, err := traversal.ResolveNext(context.Background(), quest.ID, nil, 2)
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, 1, first.QuestionNumber)
	require.Len(t, first.Options, 2)

	second, _, err := traversal.ResolveNext(context.Background(), quest.ID, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	texts, _, _ := fake.calls()
	assert.Equal(t, 1, texts)
}

func TestResolveNextEdgeMemoized(t *testing.T) {
	_, traversal, fake, quest, categories := newTraversalFixture(t, 5)
	scriptQuestions(t, fake, categories)

	root, _, err := traversal.ResolveNext(context.Background(), quest.ID, nil, 2)
	require.NoError(t, err)

	next, completed, err := traversal.ResolveNext(context.Background(), quest.ID, &root.Options[0].ID, 2)
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, 2, next.QuestionNumber)

	again, _, err := traversal.ResolveNext(context.Background(), quest.ID, &root.Options[0].ID, 2)
	require.NoError(t, err)
	assert.Equal(t, next.ID, again.ID)

	texts, _, _ := fake.calls()
	assert.Equal(t, 2, texts)
}

func TestResolveNextSiblingBranchesDiverge(t *testing.T) {
	_, traversal, fake, quest, categories := newTraversalFixture(t, 5)
	scriptQuestions(t, fake, categories)

	root, _, err := traversal.ResolveNext(context.Background(), quest.ID, nil, 2)
	require.NoError(t, err)

	left, _, err := traversal.ResolveNext(context.Background(), quest.ID, &root.Options[0].ID, 2)
	require.NoError(t, err)
	right, _, err := traversal.ResolveNext(context.Background(), quest.ID, &root.Options[1].ID, 2)
	require.NoError(t, err)

	assert.NotEqual(t, left.ID, right.ID)
	assert.Equal(t, 2, left.QuestionNumber)
	assert.Equal(t, 2, right.QuestionNumber)
}

func TestResolveNextExhaustsBudget(t *testing.T) {
	_, traversal, fake, quest, categories := newTraversalFixture(t, 3)
	scriptQuestions(t, fake, categories)

	ctx := context.Background()
	question, _, err := traversal.ResolveNext(ctx, quest.ID, nil, 2)
	require.NoError(t, err)

	for depth := 2; depth <= 3; depth++ {
		question, _, err = traversal.ResolveNext(ctx, quest.ID, &question.Options[0].ID, 2)
		require.NoError(t, err)
		assert.Equal(t, depth, question.QuestionNumber)
	}

	// The third question is the last one the budget allows.
	next, completed, err := traversal.ResolveNext(ctx, quest.ID, &question.Options[0].ID, 2)
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Nil(t, next)
}

func TestResolveNextSingleQuestionQuest(t *testing.T) {
	_, traversal, fake, quest, categories := newTraversalFixture(t, 1)
	scriptQuestions(t, fake, categories)

	root, _, err := traversal.ResolveNext(context.Background(), quest.ID, nil, 2)
	require.NoError(t, err)

	next, completed, err := traversal.ResolveNext(context.Background(), quest.ID, &root.Options[0].ID, 2)
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Nil(t, next)

	texts, _, _ := fake.calls()
	assert.Equal(t, 1, texts)
}

func TestDepthCountingIsPerQuest(t *testing.T) {
	db, traversal, fake, quest, categories := newTraversalFixture(t, 1)
	scriptQuestions(t, fake, categories)

	other := createQuest(t, db, quest.UniverseID, 1)
	createCategories(t, db, other.ID)

	rootA, _, err := traversal.ResolveNext(context.Background(), quest.ID, nil, 2)
	require.NoError(t, err)
	rootB, _, err := traversal.ResolveNext(context.Background(), other.ID, nil, 2)
	require.NoError(t, err)
	assert.NotEqual(t, rootA.ID, rootB.ID)

	// Exhaustion in one quest's tree is independent of the other's.
	_, completed, err := traversal.ResolveNext(context.Background(), quest.ID, &rootA.Options[0].ID, 2)
	require.NoError(t, err)
	assert.True(t, completed)

	_, completed, err = traversal.ResolveNext(context.Background(), other.ID, &rootB.Options[1].ID, 2)
	require.NoError(t, err)
	assert.True(t, completed)
}

func TestResolveNextConcurrentSingleChild(t *testing.T) {
	db, traversal, fake, quest, categories := newTraversalFixture(t, 5)
	scriptQuestions(t, fake, categories)

	root, _, err := traversal.ResolveNext(context.Background(), quest.ID, nil, 2)
	require.NoError(t, err)
	optionID := root.Options[0].ID

	const workers = 8
	ids := make([]uint, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			question, _, err := traversal.ResolveNext(context.Background(), quest.ID, &optionID, 2)
			errs[i] = err
			if question != nil {
				ids[i] = question.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	var count int64
	require.NoError(t, db.Model(&models.Question{}).Where("parent_option_id = ?", optionID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestResolveNextUnknownQuest(t *testing.T) {
	_, traversal, _, _, _ := newTraversalFixture(t, 3)

	_, _, err := traversal.ResolveNext(context.Background(), 404, nil, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveNextForeignOption(t *testing.T) {
	db, traversal, fake, quest, categories := newTraversalFixture(t, 3)
	scriptQuestions(t, fake, categories)

	_, _, err := traversal.ResolveNext(context.Background(), quest.ID, nil, 2)
	require.NoError(t, err)

	// An option from a different quest must not resolve against this one.
	other := createQuest(t, db, quest.UniverseID, 3)
	otherQuestion := models.Question{QuestID: other.ID, Text: "Elsewhere.", QuestionNumber: 1}
	require.NoError(t, db.Create(&otherQuestion).Error)
	otherOption := models.Option{QuestionID: otherQuestion.ID, Text: "A stray path"}
	require.NoError(t, db.Create(&otherOption).Error)

	_, _, err = traversal.ResolveNext(context.Background(), quest.ID, &otherOption.ID, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScoreForOption(t *testing.T) {
	db, traversal, fake, quest, categories := newTraversalFixture(t, 3)
	known := fmt.Sprintf("%d", categories[1].ID)
	fake.textQueue = []string{questionJSON(t, "The vault looms.", []map[string]any{
		optionSpec("Pick the lock", map[string]int{known: 3}),
		optionSpec("Blow the door", map[string]int{known: -2}),
	})}

	root, _, err := traversal.ResolveNext(context.Background(), quest.ID, nil, 2)
	require.NoError(t, err)

	rewards, err := traversal.ScoreForOption(context.Background(), root.Options[1].ID)
	require.NoError(t, err)
	assert.Equal(t, map[uint]int{categories[1].ID: -2}, rewards)

	var stored models.Option
	require.NoError(t, db.First(&stored, root.Options[1].ID).Error)
	assert.Equal(t, stored.ScoreRewards, rewards)
}

func TestClampOptionCount(t *testing.T) {
	assert.Equal(t, defaultOptionCount, clampOptionCount(0))
	assert.Equal(t, minOptionCount, clampOptionCount(1))
	assert.Equal(t, 4, clampOptionCount(4))
	assert.Equal(t, maxOptionCount, clampOptionCount(12))
}
