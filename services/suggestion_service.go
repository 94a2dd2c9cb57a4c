package services

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"questforge/models"
)

// SuggestionService stores visitor universe suggestions and relays them to
// the team's Slack channel.
type SuggestionService struct {
	db         *gorm.DB
	webhookURL string
	logger     *zap.Logger
}

func NewSuggestionService(db *gorm.DB, webhookURL string, logger *zap.Logger) *SuggestionService {
	return &SuggestionService{db: db, webhookURL: webhookURL, logger: logger}
}

type SuggestUniverseRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Email       string `json:"email" binding:"required,email"`
	Mobile      string `json:"mobile" binding:"max=20"`
	Description string `json:"description" binding:"required,max=2000"`
}

// SubmitSuggestion persists the suggestion and notifies Slack. Notification
// failures are logged and swallowed; the suggestion is already saved.
func (s *SuggestionService) SubmitSuggestion(ctx context.Context, req *SuggestUniverseRequest) (*models.UniverseSuggestion, error) {
	suggestion := models.UniverseSuggestion{
		Name:        req.Name,
		Email:       req.Email,
		Mobile:      req.Mobile,
		Description: req.Description,
	}
	if err := s.db.WithContext(ctx).Create(&suggestion).Error; err != nil {
		return nil, err
	}

	s.notify(ctx, &suggestion)
	return &suggestion, nil
}

func (s *SuggestionService) notify(ctx context.Context, suggestion *models.UniverseSuggestion) {
	if s.webhookURL == "" {
		return
	}

	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf("New universe suggestion from %s (%s):\n%s",
			suggestion.Name, suggestion.Email, suggestion.Description),
	}
	if err := slack.PostWebhookContext(ctx, s.webhookURL, msg); err != nil {
		s.logger.Warn("slack notification failed",
			zap.Uint("suggestion_id", suggestion.ID),
			zap.Error(err))
	}
}
