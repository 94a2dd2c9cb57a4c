package models

import (
	"time"

	"gorm.io/gorm"
)

type ScoreCategory struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	QuestID     uint           `json:"quest_id" gorm:"not null"`
	Name        string         `json:"name" gorm:"not null"`
	Description string         `json:"description"`
	Icon        string         `json:"icon,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Quest Quest `json:"quest,omitempty"`
}
