package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"questforge/models"
)

const (
	defaultMaxQuestions = 10
	scoreCategoryCount  = 3
	maxQuestionTextLen  = 150
	maxOptionTextLen    = 70
)

// GeneratorService creates narrative content: universes with their character
// rosters, quests with score categories, and the questions that make up a
// quest's branching tree. Asset generation lives in PipelineService.
type GeneratorService struct {
	db     *gorm.DB
	gen    ContentGenerator
	logger *zap.Logger
}

func NewGeneratorService(db *gorm.DB, gen ContentGenerator, logger *zap.Logger) *GeneratorService {
	return &GeneratorService{db: db, gen: gen, logger: logger}
}

type universePayload struct {
	Name                     string                    `json:"name"`
	Description              string                    `json:"description"`
	KeyElements              []string                  `json:"key_elements"`
	NarratorVoiceDescription string                    `json:"narrator_voice_description"`
	MainCharacters           []models.CharacterSummary `json:"main_characters"`
}

type questPayload struct {
	Name                       string                    `json:"name"`
	Description                string                    `json:"description"`
	Intro                      string                    `json:"intro"`
	StoryOutline               []string                  `json:"story_outline"`
	MainCharacters             []models.CharacterSummary `json:"main_characters"`
	BackgroundAudioDescription string                    `json:"background_audio_description"`
	ScoreCategories            []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"score_categories"`
}

type questionPayload struct {
	Text       string   `json:"text"`
	Characters []string `json:"characters"`
	Options    []struct {
		Text         string         `json:"text"`
		ScoreRewards map[string]int `json:"score_rewards"`
	} `json:"options"`
}

// GenerateUniverse creates a universe and its character roster from a free
// text description. The universe and all characters are written in one
// transaction so a malformed response leaves nothing behind.
func (s *GeneratorService) GenerateUniverse(ctx context.Context, description string, progress ProgressFunc) (*models.Universe, error) {
	progress.emit(ProgressEvent{Status: "Generating universe data"})

	prompt := universePrompt(description)
	raw, err := s.gen.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var payload universePayload
	if err := DecodeModelJSON(raw, &payload); err != nil {
		s.logger.Error("universe response rejected",
			zap.String("prompt", prompt), zap.String("raw", raw), zap.Error(err))
		return nil, err
	}
	if payload.Name == "" || len(payload.MainCharacters) == 0 {
		s.logger.Error("universe response incomplete", zap.String("raw", raw))
		return nil, fmt.Errorf("%w: universe payload missing name or characters", ErrContentFormat)
	}

	progress.emit(ProgressEvent{Status: "Adding universe to database"})

	universe := &models.Universe{
		Name:                     payload.Name,
		Description:              payload.Description,
		KeyElements:              payload.KeyElements,
		MainCharacters:           payload.MainCharacters,
		NarratorVoiceDescription: payload.NarratorVoiceDescription,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createWithSlug(tx, universe.Name, func(slug string) error {
			universe.Slug = slug
			return tx.Create(universe).Error
		}); err != nil {
			return err
		}

		for _, summary := range payload.MainCharacters {
			character := &models.Character{
				UniverseID:       universe.ID,
				Name:             summary.Name,
				Role:             summary.Role,
				Description:      summary.Description,
				ImageDescription: summary.ImageDescription,
				VoiceDescription: summary.VoiceDescription,
			}
			if err := createWithSlug(tx, character.Name, func(slug string) error {
				character.Slug = slug
				return tx.Create(character).Error
			}); err != nil {
				return err
			}
			universe.Characters = append(universe.Characters, *character)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	progress.emit(ProgressEvent{Status: "Universe created", UniverseID: universe.ID})
	s.logger.Info("universe generated",
		zap.Uint("universe_id", universe.ID),
		zap.String("name", universe.Name),
		zap.Int("characters", len(universe.Characters)))
	return universe, nil
}

// GenerateQuest creates a quest inside a universe, with its story outline and
// exactly three score categories.
func (s *GeneratorService) GenerateQuest(ctx context.Context, universeID uint, theme string, maxQuestions int, progress ProgressFunc) (*models.Quest, error) {
	if maxQuestions < 1 {
		maxQuestions = defaultMaxQuestions
	}

	var universe models.Universe
	if err := s.db.WithContext(ctx).Preload("Characters").First(&universe, universeID).Error; err != nil {
		return nil, asNotFound(err)
	}

	progress.emit(ProgressEvent{Status: "Generating quest data", UniverseID: universe.ID})

	prompt := questPrompt(&universe, theme, maxQuestions)
	raw, err := s.gen.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var payload questPayload
	if err := DecodeModelJSON(raw, &payload); err != nil {
		s.logger.Error("quest response rejected",
			zap.String("prompt", prompt), zap.String("raw", raw), zap.Error(err))
		return nil, err
	}
	if payload.Name == "" {
		return nil, fmt.Errorf("%w: quest payload missing name", ErrContentFormat)
	}
	if len(payload.ScoreCategories) != scoreCategoryCount {
		s.logger.Error("quest response has wrong category count",
			zap.Int("got", len(payload.ScoreCategories)), zap.String("raw", raw))
		return nil, fmt.Errorf("%w: expected %d score categories, got %d",
			ErrContentFormat, scoreCategoryCount, len(payload.ScoreCategories))
	}

	// Quest characters reuse portraits already rendered for the universe.
	byName := make(map[string]string)
	for _, c := range universe.Characters {
		byName[strings.ToLower(c.Name)] = c.ImagePath
	}
	for i := range payload.MainCharacters {
		if img, ok := byName[strings.ToLower(payload.MainCharacters[i].Name)]; ok && img != "" {
			payload.MainCharacters[i].Image = img
		}
	}

	progress.emit(ProgressEvent{Status: "Adding quest to database", UniverseID: universe.ID})

	quest := &models.Quest{
		UniverseID:                 universe.ID,
		Name:                       payload.Name,
		Intro:                      payload.Intro,
		Description:                payload.Description,
		MaxQuestions:               maxQuestions,
		MainCharacters:             payload.MainCharacters,
		StoryOutline:               payload.StoryOutline,
		BackgroundAudioDescription: payload.BackgroundAudioDescription,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createWithSlug(tx, quest.Name, func(slug string) error {
			quest.Slug = slug
			return tx.Create(quest).Error
		}); err != nil {
			return err
		}

		for _, cat := range payload.ScoreCategories {
			category := models.ScoreCategory{
				QuestID:     quest.ID,
				Name:        cat.Name,
				Description: cat.Description,
			}
			if err := tx.Create(&category).Error; err != nil {
				return err
			}
			quest.ScoreCategories = append(quest.ScoreCategories, category)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	progress.emit(ProgressEvent{Status: "Quest created", UniverseID: universe.ID, QuestID: quest.ID})
	s.logger.Info("quest generated",
		zap.Uint("quest_id", quest.ID),
		zap.String("name", quest.Name),
		zap.Int("max_questions", quest.MaxQuestions))
	return quest, nil
}

// GenerateQuestion creates the question behind parentOption (or the quest
// root when parentOption is nil) together with its options, and links it from
// the parent in the same transaction. depthSoFar is the number of questions
// already on the path from the root through parentOption's question.
//
// At most one question can ever exist behind an edge: a concurrent insert
// trips the unique index on parent_option_id (or the partial root index on
// quest_id) and surfaces as ErrIntegrity, which callers resolve by re-reading
// the edge.
func (s *GeneratorService) GenerateQuestion(ctx context.Context, quest *models.Quest, parentOption *models.Option, depthSoFar, optionCount int) (*models.Question, error) {
	var universe models.Universe
	if err := s.db.WithContext(ctx).First(&universe, quest.UniverseID).Error; err != nil {
		return nil, asNotFound(err)
	}

	var categories []models.ScoreCategory
	if err := s.db.WithContext(ctx).Where("quest_id = ?", quest.ID).Find(&categories).Error; err != nil {
		return nil, err
	}

	var parentQuestion *models.Question
	if parentOption != nil {
		parentQuestion = &models.Question{}
		if err := s.db.WithContext(ctx).Preload("Options").First(parentQuestion, parentOption.QuestionID).Error; err != nil {
			return nil, asNotFound(err)
		}
	}

	questionNumber := depthSoFar + 1
	prompt := questionPrompt(&universe, quest, categories, parentQuestion, parentOption, questionNumber, optionCount)

	raw, err := s.gen.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var payload questionPayload
	if err := DecodeModelJSON(raw, &payload); err != nil {
		s.logger.Error("question response rejected",
			zap.String("prompt", prompt), zap.String("raw", raw), zap.Error(err))
		return nil, err
	}
	if payload.Text == "" || len(payload.Options) != optionCount {
		s.logger.Error("question response incomplete",
			zap.Int("want_options", optionCount),
			zap.Int("got_options", len(payload.Options)),
			zap.String("raw", raw))
		return nil, fmt.Errorf("%w: question payload missing text or options", ErrContentFormat)
	}

	question := &models.Question{
		QuestID:        quest.ID,
		Text:           payload.Text,
		QuestionNumber: questionNumber,
		Characters:     payload.Characters,
		ImagePath:      s.randomGameplayImage(ctx, quest.ID),
	}
	if parentOption != nil {
		question.ParentOptionID = &parentOption.ID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(question).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: question already generated for this edge", ErrIntegrity)
			}
			return err
		}

		for _, opt := range payload.Options {
			option := models.Option{
				QuestionID:   question.ID,
				Text:         opt.Text,
				ScoreRewards: s.filterScoreRewards(opt.ScoreRewards, categories),
			}
			if err := tx.Create(&option).Error; err != nil {
				return err
			}
			question.Options = append(question.Options, option)
		}

		if parentOption != nil {
			res := tx.Model(&models.Option{}).
				Where("id = ? AND next_question_id IS NULL", parentOption.ID).
				Update("next_question_id", question.ID)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: option already linked to a question", ErrIntegrity)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("question generated",
		zap.Uint("quest_id", quest.ID),
		zap.Uint("question_id", question.ID),
		zap.Int("question_number", question.QuestionNumber),
		zap.Int("options", len(question.Options)))
	return question, nil
}

// filterScoreRewards keeps deltas for the quest's own categories and drops
// anything else the model invented.
func (s *GeneratorService) filterScoreRewards(raw map[string]int, categories []models.ScoreCategory) map[uint]int {
	known := make(map[uint]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}

	rewards := make(map[uint]int, len(raw))
	for key, delta := range raw {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil || !known[uint(id)] {
			s.logger.Warn("dropping reward for unknown score category", zap.String("category", key))
			continue
		}
		rewards[uint(id)] = delta
	}
	return rewards
}

func (s *GeneratorService) randomGameplayImage(ctx context.Context, questID uint) string {
	var image models.QuestGameplayImage
	err := s.db.WithContext(ctx).
		Where("quest_id = ? AND image_path <> ''", questID).
		Order("random()").
		First(&image).Error
	if err != nil {
		return ""
	}
	return image.ImagePath
}

// createWithSlug retries entity creation with fresh slugs until the unique
// index stops complaining or the attempt budget runs out.
func createWithSlug(tx *gorm.DB, base string, create func(slug string) error) error {
	var lastErr error
	for attempt := 0; attempt < slugAttempts; attempt++ {
		lastErr = create(makeSlug(base))
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, gorm.ErrDuplicatedKey) {
			return lastErr
		}
	}
	return fmt.Errorf("%w: could not allocate unique slug for %q", ErrIntegrity, base)
}
