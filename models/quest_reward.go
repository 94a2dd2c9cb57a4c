package models

import (
	"time"

	"gorm.io/gorm"
)

// QuestReward is one entry of a quest's pre-generated reward pool. Entries are
// generated once per quest and copied onto options as Collectibles.
type QuestReward struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	QuestID     uint           `json:"quest_id" gorm:"not null"`
	Name        string         `json:"name" gorm:"not null"`
	Description string         `json:"description"`
	ImagePath   string         `json:"image_path,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Quest Quest `json:"quest,omitempty"`
}
