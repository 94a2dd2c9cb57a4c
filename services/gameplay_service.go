package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"questforge/models"
)

const (
	playCacheTTL        = 2 * time.Hour
	maxScorePerCategory = 10
)

// GameplayService shapes quest traversal into the payloads players see:
// starting a quest, answering a question, and browsing published content.
type GameplayService struct {
	db        *gorm.DB
	redis     *redis.Client
	traversal *TraversalService
	logger    *zap.Logger
}

// NewGameplayService wires the player-facing layer. redisClient may be nil;
// caching is skipped entirely then.
func NewGameplayService(db *gorm.DB, redisClient *redis.Client, traversal *TraversalService, logger *zap.Logger) *GameplayService {
	return &GameplayService{db: db, redis: redisClient, traversal: traversal, logger: logger}
}

type OptionView struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

type QuestionView struct {
	ID             uint         `json:"id"`
	Text           string       `json:"text"`
	QuestionNumber int          `json:"question_number"`
	Image          string       `json:"image,omitempty"`
	Audio          string       `json:"audio,omitempty"`
	Characters     []string     `json:"characters,omitempty"`
	Options        []OptionView `json:"options"`
}

// ScoreCategoryView is the zero-state score entry handed out at quest start.
// Clients add the per-answer deltas to ScoreChange themselves.
type ScoreCategoryView struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
	ScoreChange int    `json:"score_change"`
	MaxScore    int    `json:"max_score"`
}

type CollectibleView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
}

type StartQuestResult struct {
	QuestName       string              `json:"quest_name"`
	QuestIntro      string              `json:"quest_intro"`
	QuestDesc       string              `json:"quest_description"`
	QuestThumbnail  string              `json:"quest_thumbnail,omitempty"`
	QuestAudio      string              `json:"quest_audio,omitempty"`
	MaxQuestions    int                 `json:"max_questions"`
	ScoreCategories []ScoreCategoryView `json:"score_categories"`
	Question        *QuestionView       `json:"question"`
}

type AnswerResult struct {
	Completed    bool             `json:"completed"`
	Question     *QuestionView    `json:"question,omitempty"`
	ScoreChanges map[uint]int     `json:"score_changes"`
	Collectible  *CollectibleView `json:"collectible,omitempty"`
}

// StartQuest resolves the quest's root question, generating it on the first
// play, and returns it with the quest framing and zero-state score categories.
func (s *GameplayService) StartQuest(ctx context.Context, slug string, optionCount int) (*StartQuestResult, error) {
	var quest models.Quest
	err := s.db.WithContext(ctx).Preload("ScoreCategories").Where("slug = ?", slug).First(&quest).Error
	if err != nil {
		return nil, asNotFound(err)
	}

	cacheKey := fmt.Sprintf("play:start:%s:%d", slug, clampOptionCount(optionCount))
	var cached StartQuestResult
	if s.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	question, _, err := s.traversal.ResolveNext(ctx, quest.ID, nil, optionCount)
	if err != nil {
		return nil, err
	}

	result := &StartQuestResult{
		QuestName:       quest.Name,
		QuestIntro:      quest.Intro,
		QuestDesc:       quest.Description,
		QuestThumbnail:  quest.Thumbnail,
		QuestAudio:      quest.AudioURL,
		MaxQuestions:    quest.MaxQuestions,
		ScoreCategories: categoryViews(quest.ScoreCategories),
		Question:        questionView(question),
	}

	s.cacheSet(ctx, cacheKey, result)
	return result, nil
}

// AnswerQuestion records nothing server-side: it returns the score deltas of
// the chosen option, its collectible if one is attached, and either the next
// question on that branch or a completion marker once the question budget is
// spent. Clients accumulate scores themselves.
func (s *GameplayService) AnswerQuestion(ctx context.Context, questionID, optionID uint) (*AnswerResult, error) {
	var option models.Option
	if err := s.db.WithContext(ctx).First(&option, optionID).Error; err != nil {
		return nil, asNotFound(err)
	}
	if option.QuestionID != questionID {
		return nil, fmt.Errorf("%w: option does not belong to question", ErrNotFound)
	}

	var question models.Question
	if err := s.db.WithContext(ctx).Preload("Options").First(&question, questionID).Error; err != nil {
		return nil, asNotFound(err)
	}

	cacheKey := fmt.Sprintf("play:answer:%d", option.ID)
	var cached AnswerResult
	if s.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	next, completed, err := s.traversal.ResolveNext(ctx, question.QuestID, &option.ID, len(question.Options))
	if err != nil {
		return nil, err
	}

	result := &AnswerResult{
		Completed:    completed,
		ScoreChanges: option.ScoreRewards,
	}
	if result.ScoreChanges == nil {
		result.ScoreChanges = map[uint]int{}
	}
	if next != nil {
		result.Question = questionView(next)
	}

	var collectible models.Collectible
	err = s.db.WithContext(ctx).Where("option_id = ?", option.ID).Order("id").First(&collectible).Error
	if err == nil {
		result.Collectible = &CollectibleView{
			Name:        collectible.Name,
			Description: collectible.Description,
			Image:       collectible.ImagePath,
		}
	}

	// Only fully materialized answers get cached: an edge still waiting on
	// its collectible would otherwise pin the gap for the TTL.
	if completed || result.Collectible != nil {
		s.cacheSet(ctx, cacheKey, result)
	}
	return result, nil
}

// ListUniverses returns all universes for the content browser.
func (s *GameplayService) ListUniverses(ctx context.Context) ([]models.Universe, error) {
	var universes []models.Universe
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&universes).Error; err != nil {
		return nil, err
	}
	return universes, nil
}

// GetUniverse returns one universe with its quests and characters.
func (s *GameplayService) GetUniverse(ctx context.Context, slug string) (*models.Universe, error) {
	var universe models.Universe
	err := s.db.WithContext(ctx).
		Preload("Quests").
		Preload("Characters").
		Where("slug = ?", slug).
		First(&universe).Error
	if err != nil {
		return nil, asNotFound(err)
	}
	return &universe, nil
}

// GetScoreCategories returns a quest's score categories in their zero state.
func (s *GameplayService) GetScoreCategories(ctx context.Context, slug string) ([]ScoreCategoryView, error) {
	var quest models.Quest
	err := s.db.WithContext(ctx).Preload("ScoreCategories").Where("slug = ?", slug).First(&quest).Error
	if err != nil {
		return nil, asNotFound(err)
	}
	return categoryViews(quest.ScoreCategories), nil
}

// GetQuest returns one quest with its score categories.
func (s *GameplayService) GetQuest(ctx context.Context, slug string) (*models.Quest, error) {
	var quest models.Quest
	err := s.db.WithContext(ctx).
		Preload("ScoreCategories").
		Preload("Universe").
		Where("slug = ?", slug).
		First(&quest).Error
	if err != nil {
		return nil, asNotFound(err)
	}
	return &quest, nil
}

func questionView(q *models.Question) *QuestionView {
	if q == nil {
		return nil
	}
	view := &QuestionView{
		ID:             q.ID,
		Text:           q.Text,
		QuestionNumber: q.QuestionNumber,
		Image:          q.ImagePath,
		Audio:          q.AudioPath,
		Characters:     q.Characters,
		Options:        make([]OptionView, 0, len(q.Options)),
	}
	for _, opt := range q.Options {
		view.Options = append(view.Options, OptionView{ID: opt.ID, Text: opt.Text})
	}
	return view
}

func categoryViews(categories []models.ScoreCategory) []ScoreCategoryView {
	views := make([]ScoreCategoryView, 0, len(categories))
	for _, c := range categories {
		views = append(views, ScoreCategoryView{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Icon:        c.Icon,
			MaxScore:    maxScorePerCategory,
		})
	}
	return views
}

// Cache helpers are best effort: a missing or failing Redis never blocks play.

func (s *GameplayService) cacheGet(ctx context.Context, key string, v any) bool {
	if s.redis == nil {
		return false
	}
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("dropping bad cache entry", zap.String("key", key), zap.Error(err))
		s.redis.Del(ctx, key)
		return false
	}
	return true
}

func (s *GameplayService) cacheSet(ctx context.Context, key string, v any) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, playCacheTTL).Err(); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
