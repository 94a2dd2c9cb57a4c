package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"questforge/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	// A pooled second connection would see its own empty in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Universe{},
		&models.Character{},
		&models.Quest{},
		&models.ScoreCategory{},
		&models.Question{},
		&models.Option{},
		&models.Collectible{},
		&models.QuestReward{},
		&models.QuestGameplayImage{},
		&models.UniverseSuggestion{},
	))
	return db
}

// fakeGenerator is a scripted ContentGenerator. Text responses are served
// from textFn when set, otherwise from the queue in order.
type fakeGenerator struct {
	mu         sync.Mutex
	textQueue  []string
	textFn     func(prompt string) (string, error)
	textCalls  int
	imageCalls int
	audioCalls int
}

func (f *fakeGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textCalls++

	if f.textFn != nil {
		return f.textFn(prompt)
	}
	if len(f.textQueue) == 0 {
		return "", fmt.Errorf("%w: no scripted response left", ErrGenerationProvider)
	}
	next := f.textQueue[0]
	f.textQueue = f.textQueue[1:]
	return next, nil
}

func (f *fakeGenerator) GenerateImage(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageCalls++
	return fmt.Sprintf("https://images.example.com/%d.png", f.imageCalls), nil
}

func (f *fakeGenerator) GenerateAudio(_ context.Context, _ string, _ AudioOptions) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audioCalls++
	return []byte("fake-audio"), nil
}

func (f *fakeGenerator) calls() (text, image, audio int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.textCalls, f.imageCalls, f.audioCalls
}

// fakeAssetStore records uploads and hands back deterministic URLs.
type fakeAssetStore struct {
	mu      sync.Mutex
	uploads int
}

func (f *fakeAssetStore) UploadBytes(_ context.Context, _ []byte, _, prefix string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	return fmt.Sprintf("https://cdn.example.com/%s/%d", prefix, f.uploads), nil
}

func (f *fakeAssetStore) UploadFromURL(_ context.Context, _, prefix string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	return fmt.Sprintf("https://cdn.example.com/%s/%d", prefix, f.uploads), nil
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// Fixtures

func createUniverse(t *testing.T, db *gorm.DB) *models.Universe {
	t.Helper()
	universe := &models.Universe{
		Name:        "The Shattered Realm",
		Description: "A realm broken into floating shards.",
		KeyElements: []string{"skyships", "shardstone"},
		MainCharacters: []models.CharacterSummary{
			{Name: "Mira", Role: "Navigator", Description: "Reads the shard winds."},
		},
		Slug: makeSlug("The Shattered Realm"),
	}
	require.NoError(t, db.Create(universe).Error)
	return universe
}

func createQuest(t *testing.T, db *gorm.DB, universeID uint, maxQuestions int) *models.Quest {
	t.Helper()
	quest := &models.Quest{
		UniverseID:   universeID,
		Name:         "The Windfall Heist",
		Intro:        "The skyship docks at midnight.",
		Description:  "Steal the shardstone from the floating vault.",
		MaxQuestions: maxQuestions,
		StoryOutline: []string{"arrival", "the vault", "escape"},
		Slug:         makeSlug("The Windfall Heist"),
	}
	require.NoError(t, db.Create(quest).Error)
	return quest
}

func createCategories(t *testing.T, db *gorm.DB, questID uint) []models.ScoreCategory {
	t.Helper()
	categories := []models.ScoreCategory{
		{QuestID: questID, Name: "Courage", Description: "Facing danger head on."},
		{QuestID: questID, Name: "Cunning", Description: "Outsmarting the vault."},
		{QuestID: questID, Name: "Loyalty", Description: "Standing by the crew."},
	}
	for i := range categories {
		require.NoError(t, db.Create(&categories[i]).Error)
	}
	return categories
}

// questionJSON builds a provider response for a question with the given
// option texts and rewards keyed by category id.
func questionJSON(t *testing.T, text string, options []map[string]any) string {
	t.Helper()
	payload := map[string]any{
		"text":       text,
		"characters": []string{"Mira"},
		"options":    options,
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(data)
}

func optionSpec(text string, rewards map[string]int) map[string]any {
	return map[string]any{"text": text, "score_rewards": rewards}
}
