package models

import (
	"time"

	"gorm.io/gorm"
)

// Question is a node in a quest's branching tree. QuestionNumber equals the
// node's depth from the quest root (root = 1) and is assigned at creation
// time. ParentOptionID is nil only for the root. Two indexes enforce tree
// shape at the storage layer: the unique index on ParentOptionID allows at
// most one child question per option, and the partial index on QuestID
// allows at most one root per quest.
type Question struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	QuestID        uint           `json:"quest_id" gorm:"not null;index:idx_questions_quest_root,unique,where:parent_option_id IS NULL"`
	Text           string         `json:"text" gorm:"not null"`
	QuestionNumber int            `json:"question_number" gorm:"not null;default:1"`
	ParentOptionID *uint          `json:"parent_option_id,omitempty" gorm:"uniqueIndex"`
	Characters     []string       `json:"characters" gorm:"serializer:json"`
	ImagePath      string         `json:"image_path,omitempty"`
	AudioPath      string         `json:"audio_path,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Quest        Quest    `json:"quest,omitempty"`
	ParentOption *Option  `json:"parent_option,omitempty" gorm:"foreignKey:ParentOptionID"`
	Options      []Option `json:"options,omitempty" gorm:"foreignKey:QuestionID"`
}
