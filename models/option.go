package models

import (
	"time"

	"gorm.io/gorm"
)

// Option is an edge out of a Question. NextQuestionID stays nil until the
// branch behind it has been generated, and once set it is never rewritten:
// content already generated for a branch is never regenerated.
type Option struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	QuestionID      uint           `json:"question_id" gorm:"not null"`
	Text            string         `json:"text" gorm:"not null"`
	NextQuestionID  *uint          `json:"next_question_id,omitempty"`
	ScoreRewards    map[uint]int   `json:"score_rewards" gorm:"serializer:json"`
	RewardText      string         `json:"reward_text,omitempty"`
	RewardImagePath string         `json:"reward_image_path,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Question     Question  `json:"question,omitempty"`
	NextQuestion *Question `json:"next_question,omitempty" gorm:"foreignKey:NextQuestionID"`
}
