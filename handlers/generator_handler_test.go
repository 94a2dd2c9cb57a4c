package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"questforge/models"
	"questforge/services"
)

type questScriptGenerator struct{}

func (questScriptGenerator) GenerateText(context.Context, string) (string, error) {
	return `{
		"name": "The Windfall Heist",
		"description": "A daring raid on the sky barge.",
		"intro": "The barge drifts in at dusk.",
		"story_outline": ["The approach", "The vault", "The escape"],
		"main_characters": [{"name": "Mira", "role": "Scout", "description": "Quick and quiet."}],
		"background_audio_description": "Low wind over creaking rigging.",
		"score_categories": [
			{"name": "Courage", "description": "Facing danger head on."},
			{"name": "Cunning", "description": "Outsmarting the watch."},
			{"name": "Loyalty", "description": "Standing by the crew."}
		]
	}`, nil
}

func (questScriptGenerator) GenerateImage(context.Context, string) (string, error) {
	return "https://images.example.com/1.png", nil
}

func (questScriptGenerator) GenerateAudio(context.Context, string, services.AudioOptions) ([]byte, error) {
	return []byte("fake-audio"), nil
}

func newGeneratorRouter(t *testing.T) (*gin.Engine, *models.Universe) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Universe{}, &models.Character{}, &models.Quest{}, &models.ScoreCategory{},
	))

	universe := models.Universe{Name: "The Shattered Realm", Slug: "the-shattered-realm-gen12345"}
	require.NoError(t, db.Create(&universe).Error)

	generator := services.NewGeneratorService(db, questScriptGenerator{}, zap.NewNop())
	handler := NewGeneratorHandler(generator, nil, nil, zap.NewNop())

	router := gin.New()
	router.POST("/api/generator/universes/:id/quests", handler.CreateQuest)
	return router, &universe
}

func TestCreateQuestStreamsProgress(t *testing.T) {
	router, universe := newGeneratorRouter(t)

	path := fmt.Sprintf("/api/generator/universes/%d/quests", universe.ID)
	w := doJSON(t, router, http.MethodPost, path, gin.H{"theme": "a heist", "max_questions": 3})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, `"Generating quest data"`)
	assert.Contains(t, body, `"status":"completed"`)
	assert.Contains(t, body, `"The Windfall Heist"`)
}

func TestCreateQuestUnknownUniverse(t *testing.T) {
	router, _ := newGeneratorRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/generator/universes/404/quests", nil)

	// The stream is already open when the lookup fails; the error arrives as
	// a terminal event.
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
}

func TestCreateQuestInvalidID(t *testing.T) {
	router, _ := newGeneratorRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/generator/universes/abc/quests", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
