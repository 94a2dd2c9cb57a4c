package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questforge/models"
)

func TestSubmitSuggestion(t *testing.T) {
	db := newTestDB(t)
	// No webhook configured: the suggestion is stored without notification.
	svc := NewSuggestionService(db, "", testLogger())

	suggestion, err := svc.SubmitSuggestion(context.Background(), &SuggestUniverseRequest{
		Name:        "A visitor",
		Email:       "visitor@example.com",
		Description: "A universe inside a clockwork whale.",
	})
	require.NoError(t, err)
	assert.NotZero(t, suggestion.ID)

	var stored models.UniverseSuggestion
	require.NoError(t, db.First(&stored, suggestion.ID).Error)
	assert.Equal(t, "A universe inside a clockwork whale.", stored.Description)
}
