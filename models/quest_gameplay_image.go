package models

import (
	"time"

	"gorm.io/gorm"
)

// QuestGameplayImage is one entry of a quest's pre-generated scene image pool,
// assigned at random to newly created questions.
type QuestGameplayImage struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	QuestID     uint           `json:"quest_id" gorm:"not null"`
	Description string         `json:"description"`
	ImagePath   string         `json:"image_path" gorm:"not null"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Quest Quest `json:"quest,omitempty"`
}
