package models

import (
	"time"

	"gorm.io/gorm"
)

type Quest struct {
	ID                         uint               `json:"id" gorm:"primaryKey"`
	UniverseID                 uint               `json:"universe_id" gorm:"not null"`
	Name                       string             `json:"name" gorm:"not null"`
	Intro                      string             `json:"intro"`
	Description                string             `json:"description"`
	MaxQuestions               int                `json:"max_questions" gorm:"not null;default:10"`
	MainCharacters             []CharacterSummary `json:"main_characters" gorm:"serializer:json"`
	StoryOutline               []string           `json:"story_outline" gorm:"serializer:json"`
	BackgroundAudioDescription string             `json:"background_audio_description,omitempty"`
	AudioURL                   string             `json:"audio_url,omitempty"`
	Thumbnail                  string             `json:"thumbnail,omitempty"`
	// Present in the model but not enforced at quest entry.
	MinScoreRequirement int            `json:"min_score_requirement" gorm:"default:0"`
	Slug                string         `json:"slug" gorm:"uniqueIndex;not null"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Universe        Universe        `json:"universe,omitempty"`
	Questions       []Question      `json:"questions,omitempty" gorm:"foreignKey:QuestID"`
	ScoreCategories []ScoreCategory `json:"score_categories,omitempty" gorm:"foreignKey:QuestID"`
}
