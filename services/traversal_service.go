package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"questforge/models"
)

const (
	minOptionCount     = 2
	maxOptionCount     = 5
	defaultOptionCount = 2
)

// TraversalService walks a quest's branching tree, generating questions
// lazily the first time an edge is taken and returning the memoized question
// on every visit after that.
type TraversalService struct {
	db        *gorm.DB
	generator *GeneratorService
	logger    *zap.Logger
	flights   singleflight.Group
}

func NewTraversalService(db *gorm.DB, generator *GeneratorService, logger *zap.Logger) *TraversalService {
	return &TraversalService{db: db, generator: generator, logger: logger}
}

// ResolveNext returns the question behind an edge of the quest tree. A nil
// prevOptionID resolves the root edge. The first traversal of an edge
// generates and links the question; later traversals return the same row.
// completed is true when the path through prevOptionID has already used up
// the quest's question budget, in which case question is nil.
func (s *TraversalService) ResolveNext(ctx context.Context, questID uint, prevOptionID *uint, optionCount int) (*models.Question, bool, error) {
	optionCount = clampOptionCount(optionCount)

	var quest models.Quest
	if err := s.db.WithContext(ctx).First(&quest, questID).Error; err != nil {
		return nil, false, asNotFound(err)
	}

	if prevOptionID == nil {
		question, err := s.resolveRoot(ctx, &quest, optionCount)
		return question, false, err
	}

	var option models.Option
	if err := s.db.WithContext(ctx).Preload("Question").First(&option, *prevOptionID).Error; err != nil {
		return nil, false, asNotFound(err)
	}
	if option.Question.QuestID != quest.ID {
		return nil, false, fmt.Errorf("%w: option does not belong to quest", ErrNotFound)
	}

	if option.NextQuestionID != nil {
		question, err := s.loadQuestion(ctx, *option.NextQuestionID)
		return question, false, err
	}

	depth, err := s.depthThrough(ctx, &quest, &option.Question)
	if err != nil {
		return nil, false, err
	}
	if depth >= quest.MaxQuestions {
		s.logger.Debug("question budget exhausted",
			zap.Uint("quest_id", quest.ID),
			zap.Uint("option_id", option.ID),
			zap.Int("depth", depth))
		return nil, true, nil
	}

	question, err := s.generateEdge(ctx, &quest, &option, depth, optionCount)
	if err != nil {
		return nil, false, err
	}
	return question, false, nil
}

// ScoreForOption returns the option's stored score deltas, keyed by score
// category id, exactly as persisted at generation time.
func (s *TraversalService) ScoreForOption(ctx context.Context, optionID uint) (map[uint]int, error) {
	var option models.Option
	if err := s.db.WithContext(ctx).First(&option, optionID).Error; err != nil {
		return nil, asNotFound(err)
	}
	return option.ScoreRewards, nil
}

func (s *TraversalService) resolveRoot(ctx context.Context, quest *models.Quest, optionCount int) (*models.Question, error) {
	if question, err := s.findRoot(ctx, quest.ID); err == nil {
		return question, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	key := fmt.Sprintf("root:%d", quest.ID)
	result, err, _ := s.flights.Do(key, func() (any, error) {
		if question, err := s.findRoot(ctx, quest.ID); err == nil {
			return question, nil
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		question, err := s.generator.GenerateQuestion(ctx, quest, nil, 0, optionCount)
		if errors.Is(err, ErrIntegrity) {
			// Lost the race across processes. The winner's row is there now.
			return s.findRoot(ctx, quest.ID)
		}
		return question, err
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Question), nil
}

func (s *TraversalService) generateEdge(ctx context.Context, quest *models.Quest, option *models.Option, depth, optionCount int) (*models.Question, error) {
	key := fmt.Sprintf("opt:%d", option.ID)
	result, err, _ := s.flights.Do(key, func() (any, error) {
		// Re-read under the flight: another caller may have linked the edge
		// between our first check and acquiring the flight.
		var fresh models.Option
		if err := s.db.WithContext(ctx).First(&fresh, option.ID).Error; err != nil {
			return nil, asNotFound(err)
		}
		if fresh.NextQuestionID != nil {
			return s.loadQuestion(ctx, *fresh.NextQuestionID)
		}

		question, err := s.generator.GenerateQuestion(ctx, quest, &fresh, depth, optionCount)
		if errors.Is(err, ErrIntegrity) {
			if err := s.db.WithContext(ctx).First(&fresh, option.ID).Error; err != nil {
				return nil, asNotFound(err)
			}
			if fresh.NextQuestionID != nil {
				return s.loadQuestion(ctx, *fresh.NextQuestionID)
			}
			return nil, fmt.Errorf("%w: edge conflict without linked question", ErrIntegrity)
		}
		return question, err
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Question), nil
}

func (s *TraversalService) findRoot(ctx context.Context, questID uint) (*models.Question, error) {
	var question models.Question
	err := s.db.WithContext(ctx).Preload("Options").
		Where("quest_id = ? AND parent_option_id IS NULL", questID).
		Order("id").
		First(&question).Error
	if err != nil {
		return nil, asNotFound(err)
	}
	return &question, nil
}

func (s *TraversalService) loadQuestion(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	if err := s.db.WithContext(ctx).Preload("Options").First(&question, id).Error; err != nil {
		return nil, asNotFound(err)
	}
	return &question, nil
}

// depthThrough counts the questions on the path from the quest root through
// question, inclusive. A path longer than the quest allows means the parent
// chain loops, which the unique parent index should make impossible.
func (s *TraversalService) depthThrough(ctx context.Context, quest *models.Quest, question *models.Question) (int, error) {
	depth := 0
	current := question
	for {
		depth++
		if current.ParentOptionID == nil {
			return depth, nil
		}
		if depth > quest.MaxQuestions+1 {
			return 0, fmt.Errorf("%w: parent chain exceeds quest depth, possible cycle", ErrIntegrity)
		}

		var parentOption models.Option
		if err := s.db.WithContext(ctx).First(&parentOption, *current.ParentOptionID).Error; err != nil {
			return 0, asNotFound(err)
		}
		var parentQuestion models.Question
		if err := s.db.WithContext(ctx).First(&parentQuestion, parentOption.QuestionID).Error; err != nil {
			return 0, asNotFound(err)
		}
		current = &parentQuestion
	}
}

func clampOptionCount(n int) int {
	switch {
	case n == 0:
		return defaultOptionCount
	case n < minOptionCount:
		return minOptionCount
	case n > maxOptionCount:
		return maxOptionCount
	default:
		return n
	}
}
