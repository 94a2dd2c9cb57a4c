package models

import (
	"time"

	"gorm.io/gorm"
)

type Character struct {
	ID               uint           `json:"id" gorm:"primaryKey"`
	UniverseID       uint           `json:"universe_id" gorm:"not null"`
	Name             string         `json:"name" gorm:"not null"`
	Role             string         `json:"role"`
	Description      string         `json:"description"`
	ImageDescription string         `json:"image_description,omitempty"`
	VoiceDescription string         `json:"voice_description,omitempty"`
	ImagePath        string         `json:"image_path,omitempty"`
	Slug             string         `json:"slug" gorm:"uniqueIndex;not null"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Universe Universe `json:"universe,omitempty"`
}
