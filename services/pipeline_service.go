package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"questforge/models"
)

const (
	rewardPoolSize        = 30
	gameplayImagePoolSize = 20
	narrationAudioType    = "audio/mpeg"
	narrationDefaultSpeed = 1.0
	narrationDefaultVoice = "onyx"
)

// PipelineService fills in the visual and audio assets behind already
// persisted content. Every job checks whether its asset exists before
// generating, so re-running a partially failed pipeline only does the
// remaining work.
type PipelineService struct {
	db     *gorm.DB
	gen    ContentGenerator
	assets AssetStore
	logger *zap.Logger
}

func NewPipelineService(db *gorm.DB, gen ContentGenerator, assets AssetStore, logger *zap.Logger) *PipelineService {
	return &PipelineService{db: db, gen: gen, assets: assets, logger: logger}
}

// GenerateUniverseAssets renders the universe thumbnail and one portrait per
// character. Assets already present are left alone.
func (s *PipelineService) GenerateUniverseAssets(ctx context.Context, universeID uint, progress ProgressFunc) error {
	var universe models.Universe
	if err := s.db.WithContext(ctx).Preload("Characters").First(&universe, universeID).Error; err != nil {
		return asNotFound(err)
	}

	progress.emit(ProgressEvent{Status: "Generating universe thumbnail", UniverseID: universe.ID})
	if err := s.universeThumbnail(ctx, &universe); err != nil {
		return err
	}

	progress.emit(ProgressEvent{Status: "Generating character images", UniverseID: universe.ID})
	if err := s.universeCharacterImages(ctx, &universe); err != nil {
		return err
	}

	progress.emit(ProgressEvent{Status: "Universe assets completed", UniverseID: universe.ID})
	return nil
}

func (s *PipelineService) universeThumbnail(ctx context.Context, universe *models.Universe) error {
	if universe.Thumbnail != "" {
		return nil
	}

	prompt := fmt.Sprintf("A cinematic wide establishing shot of the fictional universe %q: %s. Key elements: %s. No text in the image.",
		universe.Name, universe.Description, strings.Join(universe.KeyElements, ", "))
	url, err := s.gen.GenerateImage(ctx, prompt)
	if err != nil {
		return err
	}

	stored, err := s.assets.UploadFromURL(ctx, url, fmt.Sprintf("universe/%d", universe.ID))
	if err != nil {
		return err
	}

	universe.Thumbnail = stored
	return s.db.WithContext(ctx).Model(universe).Update("thumbnail", stored).Error
}

func (s *PipelineService) universeCharacterImages(ctx context.Context, universe *models.Universe) error {
	changed := false
	for i := range universe.Characters {
		character := &universe.Characters[i]
		if character.ImagePath != "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		prompt := fmt.Sprintf("A character portrait of %s, %s, from the universe %q. %s. No text in the image.",
			character.Name, character.Role, universe.Name, character.ImageDescription)
		url, err := s.gen.GenerateImage(ctx, prompt)
		if err != nil {
			return err
		}

		stored, err := s.assets.UploadFromURL(ctx, url, fmt.Sprintf("universe/%d/characters", universe.ID))
		if err != nil {
			return err
		}

		character.ImagePath = stored
		if err := s.db.WithContext(ctx).Model(character).Update("image_path", stored).Error; err != nil {
			return err
		}
		changed = true
	}

	if !changed {
		return nil
	}

	// Keep the denormalized summaries on the universe in sync.
	byName := make(map[string]string, len(universe.Characters))
	for _, c := range universe.Characters {
		byName[strings.ToLower(c.Name)] = c.ImagePath
	}
	for i := range universe.MainCharacters {
		if img, ok := byName[strings.ToLower(universe.MainCharacters[i].Name)]; ok && img != "" {
			universe.MainCharacters[i].Image = img
		}
	}
	return s.db.WithContext(ctx).Model(universe).Update("main_characters", universe.MainCharacters).Error
}

// GenerateQuestAssets runs the full quest asset pipeline in dependency order:
// the reward pool and gameplay image pool first, then the images and audio
// that hang off the quest, then reward assignment, which requires the pool.
// A cancelled context stops before the next step; completed steps stay.
func (s *PipelineService) GenerateQuestAssets(ctx context.Context, questID uint, progress ProgressFunc) error {
	var quest models.Quest
	if err := s.db.WithContext(ctx).Preload("ScoreCategories").Preload("Universe.Characters").First(&quest, questID).Error; err != nil {
		return asNotFound(err)
	}

	steps := []struct {
		status string
		run    func(context.Context, *models.Quest) error
	}{
		{"Generating reward pool", s.rewardPool},
		{"Generating gameplay images", s.gameplayImages},
		{"Generating quest thumbnail", s.questThumbnail},
		{"Generating quest character images", s.questCharacterImages},
		{"Generating score category icons", s.categoryIcons},
		{"Generating reward images", s.rewardImages},
		{"Generating background audio", s.backgroundAudio},
		{"Assigning rewards", s.assignRewards},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		progress.emit(ProgressEvent{Status: step.status, QuestID: quest.ID})
		if err := step.run(ctx, &quest); err != nil {
			s.logger.Error("quest asset step failed",
				zap.Uint("quest_id", quest.ID),
				zap.String("step", step.status),
				zap.Error(err))
			return err
		}
	}

	progress.emit(ProgressEvent{Status: "Quest assets completed", QuestID: quest.ID})
	return nil
}

// rewardPool generates the quest's pool of collectible rewards. The pool is
// generated once; a quest with any rewards is considered done.
func (s *PipelineService) rewardPool(ctx context.Context, quest *models.Quest) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.QuestReward{}).Where("quest_id = ?", quest.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	prompt := fmt.Sprintf(`You are designing collectible rewards for the quest %q: %s

Respond with a single JSON object, no surrounding text, with one key
"collectible_rewards": a list of exactly %d objects, each with keys "name"
and "description". Rewards are small thematic items a player could earn
during the quest.

Use plain double quotes in JSON strings, never doubled quotes.`,
		quest.Name, quest.Description, rewardPoolSize)

	raw, err := s.gen.GenerateText(ctx, prompt)
	if err != nil {
		return err
	}

	var payload struct {
		CollectibleRewards []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"collectible_rewards"`
	}
	if err := DecodeModelJSON(raw, &payload); err != nil {
		s.logger.Error("reward pool response rejected", zap.String("raw", raw), zap.Error(err))
		return err
	}
	if len(payload.CollectibleRewards) == 0 {
		return fmt.Errorf("%w: reward pool payload is empty", ErrContentFormat)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, reward := range payload.CollectibleRewards {
			entry := models.QuestReward{
				QuestID:     quest.ID,
				Name:        reward.Name,
				Description: reward.Description,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// gameplayImages builds the pool of scene backgrounds assigned to questions.
func (s *PipelineService) gameplayImages(ctx context.Context, quest *models.Quest) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.QuestGameplayImage{}).Where("quest_id = ?", quest.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	prompt := fmt.Sprintf(`You are an art director for the quest %q: %s
Story outline: %s

Respond with a single JSON object, no surrounding text, with one key
"image_descriptions": a list of exactly %d strings, each a standalone visual
prompt for a background scene image matching the quest's settings and mood.

Use plain double quotes in JSON strings, never doubled quotes.`,
		quest.Name, quest.Description, strings.Join(quest.StoryOutline, " | "), gameplayImagePoolSize)

	raw, err := s.gen.GenerateText(ctx, prompt)
	if err != nil {
		return err
	}

	var payload struct {
		ImageDescriptions []string `json:"image_descriptions"`
	}
	if err := DecodeModelJSON(raw, &payload); err != nil {
		s.logger.Error("gameplay image response rejected", zap.String("raw", raw), zap.Error(err))
		return err
	}
	if len(payload.ImageDescriptions) == 0 {
		return fmt.Errorf("%w: gameplay image payload is empty", ErrContentFormat)
	}

	for _, description := range payload.ImageDescriptions {
		if err := ctx.Err(); err != nil {
			return err
		}

		url, err := s.gen.GenerateImage(ctx, fmt.Sprintf("%s. Wide scene, no characters in focus, no text in the image.", description))
		if err != nil {
			return err
		}
		stored, err := s.assets.UploadFromURL(ctx, url, fmt.Sprintf("quest/%d/gameplay", quest.ID))
		if err != nil {
			return err
		}

		image := models.QuestGameplayImage{
			QuestID:     quest.ID,
			Description: description,
			ImagePath:   stored,
		}
		if err := s.db.WithContext(ctx).Create(&image).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *PipelineService) questThumbnail(ctx context.Context, quest *models.Quest) error {
	if quest.Thumbnail != "" {
		return nil
	}

	prompt := fmt.Sprintf("Cover art for the quest %q set in the universe %q: %s. No text in the image.",
		quest.Name, quest.Universe.Name, quest.Description)
	url, err := s.gen.GenerateImage(ctx, prompt)
	if err != nil {
		return err
	}

	stored, err := s.assets.UploadFromURL(ctx, url, fmt.Sprintf("quest/%d", quest.ID))
	if err != nil {
		return err
	}

	quest.Thumbnail = stored
	return s.db.WithContext(ctx).Model(quest).Update("thumbnail", stored).Error
}

// questCharacterImages fills quest character portraits, reusing the portrait
// already rendered for the same-named universe character when there is one.
func (s *PipelineService) questCharacterImages(ctx context.Context, quest *models.Quest) error {
	byName := make(map[string]string, len(quest.Universe.Characters))
	for _, c := range quest.Universe.Characters {
		byName[strings.ToLower(c.Name)] = c.ImagePath
	}

	changed := false
	for i := range quest.MainCharacters {
		character := &quest.MainCharacters[i]
		if character.Image != "" {
			continue
		}

		if img, ok := byName[strings.ToLower(character.Name)]; ok && img != "" {
			character.Image = img
			changed = true
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		prompt := fmt.Sprintf("A character portrait of %s, %s, for the quest %q. %s. No text in the image.",
			character.Name, character.Role, quest.Name, character.ImageDescription)
		url, err := s.gen.GenerateImage(ctx, prompt)
		if err != nil {
			return err
		}
		stored, err := s.assets.UploadFromURL(ctx, url, fmt.Sprintf("quest/%d/characters", quest.ID))
		if err != nil {
			return err
		}
		character.Image = stored
		changed = true
	}

	if !changed {
		return nil
	}
	return s.db.WithContext(ctx).Model(quest).Update("main_characters", quest.MainCharacters).Error
}

func (s *PipelineService) categoryIcons(ctx context.Context, quest *models.Quest) error {
	for i := range quest.ScoreCategories {
		category := &quest.ScoreCategories[i]
		if category.Icon != "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		prompt := fmt.Sprintf("A simple flat game icon representing %q (%s) for the quest %q. Centered, plain background, no text.",
			category.Name, category.Description, quest.Name)
		url, err := s.gen.GenerateImage(ctx, prompt)
		if err != nil {
			return err
		}
		stored, err := s.assets.UploadFromURL(ctx, url, fmt.Sprintf("quest/%d/categories", quest.ID))
		if err != nil {
			return err
		}

		category.Icon = stored
		if err := s.db.WithContext(ctx).Model(category).Update("icon", stored).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *PipelineService) rewardImages(ctx context.Context, quest *models.Quest) error {
	var rewards []models.QuestReward
	if err := s.db.WithContext(ctx).Where("quest_id = ? AND image_path = ''", quest.ID).Find(&rewards).Error; err != nil {
		return err
	}

	for i := range rewards {
		reward := &rewards[i]
		if err := ctx.Err(); err != nil {
			return err
		}

		prompt := fmt.Sprintf("A collectible game item: %s. %s. From the quest %q. Centered on a plain background, no text.",
			reward.Name, reward.Description, quest.Name)
		url, err := s.gen.GenerateImage(ctx, prompt)
		if err != nil {
			return err
		}
		stored, err := s.assets.UploadFromURL(ctx, url, fmt.Sprintf("quest/%d/rewards", quest.ID))
		if err != nil {
			return err
		}

		reward.ImagePath = stored
		if err := s.db.WithContext(ctx).Model(reward).Update("image_path", stored).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *PipelineService) backgroundAudio(ctx context.Context, quest *models.Quest) error {
	if quest.AudioURL != "" || quest.BackgroundAudioDescription == "" {
		return nil
	}

	data, err := s.gen.GenerateAudio(ctx, quest.BackgroundAudioDescription, AudioOptions{
		Voice: narrationDefaultVoice,
		Speed: narrationDefaultSpeed,
	})
	if err != nil {
		return err
	}

	stored, err := s.assets.UploadBytes(ctx, data, narrationAudioType, fmt.Sprintf("quest/%d/audio", quest.ID))
	if err != nil {
		return err
	}

	quest.AudioURL = stored
	return s.db.WithContext(ctx).Model(quest).Update("audio_url", stored).Error
}

// assignRewards copies a random pool entry onto every option that has no
// collectible yet. The pool must exist first; assignment never generates.
func (s *PipelineService) assignRewards(ctx context.Context, quest *models.Quest) error {
	var pool []models.QuestReward
	if err := s.db.WithContext(ctx).Where("quest_id = ?", quest.ID).Find(&pool).Error; err != nil {
		return err
	}
	if len(pool) == 0 {
		return fmt.Errorf("%w: reward pool is empty for quest %d", ErrIntegrity, quest.ID)
	}

	var options []models.Option
	err := s.db.WithContext(ctx).
		Joins("JOIN questions ON questions.id = options.question_id").
		Where("questions.quest_id = ?", quest.ID).
		Find(&options).Error
	if err != nil {
		return err
	}
	if len(options) == 0 {
		return nil
	}

	optionIDs := make([]uint, 0, len(options))
	for _, o := range options {
		optionIDs = append(optionIDs, o.ID)
	}

	var existing []models.Collectible
	if err := s.db.WithContext(ctx).Where("option_id IN ?", optionIDs).Find(&existing).Error; err != nil {
		return err
	}
	assigned := make(map[uint]bool, len(existing))
	for _, c := range existing {
		assigned[c.OptionID] = true
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, option := range options {
			if assigned[option.ID] {
				continue
			}
			reward := pool[rand.Intn(len(pool))]
			collectible := models.Collectible{
				OptionID:    option.ID,
				Name:        reward.Name,
				Description: reward.Description,
				ImagePath:   reward.ImagePath,
			}
			if err := tx.Create(&collectible).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// AssignRewards exposes reward assignment on its own, for options created
// after the pipeline last ran.
func (s *PipelineService) AssignRewards(ctx context.Context, questID uint) error {
	var quest models.Quest
	if err := s.db.WithContext(ctx).First(&quest, questID).Error; err != nil {
		return asNotFound(err)
	}
	return s.assignRewards(ctx, &quest)
}

// GenerateQuestionAssets fills a question's scene image from the quest's pool
// and renders its narration audio.
func (s *PipelineService) GenerateQuestionAssets(ctx context.Context, questionID uint) error {
	var question models.Question
	if err := s.db.WithContext(ctx).First(&question, questionID).Error; err != nil {
		return asNotFound(err)
	}

	if question.ImagePath == "" {
		var image models.QuestGameplayImage
		err := s.db.WithContext(ctx).
			Where("quest_id = ? AND image_path <> ''", question.QuestID).
			Order("random()").
			First(&image).Error
		if err == nil {
			question.ImagePath = image.ImagePath
			if err := s.db.WithContext(ctx).Model(&question).Update("image_path", image.ImagePath).Error; err != nil {
				return err
			}
		}
	}

	if question.AudioPath == "" {
		data, err := s.gen.GenerateAudio(ctx, question.Text, AudioOptions{
			Voice: narrationDefaultVoice,
			Speed: narrationDefaultSpeed,
		})
		if err != nil {
			return err
		}
		stored, err := s.assets.UploadBytes(ctx, data, narrationAudioType, fmt.Sprintf("quest/%d/questions", question.QuestID))
		if err != nil {
			return err
		}
		if err := s.db.WithContext(ctx).Model(&question).Update("audio_path", stored).Error; err != nil {
			return err
		}
	}
	return nil
}

// BackfillAssets sweeps all content and fills whatever assets are missing.
// Safe to run on a schedule since every underlying job is idempotent.
func (s *PipelineService) BackfillAssets(ctx context.Context) error {
	var universeIDs []uint
	if err := s.db.WithContext(ctx).Model(&models.Universe{}).Pluck("id", &universeIDs).Error; err != nil {
		return err
	}
	for _, id := range universeIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.GenerateUniverseAssets(ctx, id, nil); err != nil {
			s.logger.Error("universe backfill failed", zap.Uint("universe_id", id), zap.Error(err))
		}
	}

	var questIDs []uint
	if err := s.db.WithContext(ctx).Model(&models.Quest{}).Pluck("id", &questIDs).Error; err != nil {
		return err
	}
	for _, id := range questIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.GenerateQuestAssets(ctx, id, nil); err != nil {
			s.logger.Error("quest backfill failed", zap.Uint("quest_id", id), zap.Error(err))
		}
	}

	var questionIDs []uint
	err := s.db.WithContext(ctx).Model(&models.Question{}).
		Where("audio_path = '' OR image_path = ''").
		Pluck("id", &questionIDs).Error
	if err != nil {
		return err
	}
	for _, id := range questionIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.GenerateQuestionAssets(ctx, id); err != nil {
			s.logger.Error("question backfill failed", zap.Uint("question_id", id), zap.Error(err))
		}
	}
	return nil
}
