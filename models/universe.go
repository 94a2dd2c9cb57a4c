package models

import (
	"time"

	"gorm.io/gorm"
)

// CharacterSummary is the denormalized character payload stored on universes
// and quests. Quests keep their own copy so a quest can reuse or override a
// universe character's image.
type CharacterSummary struct {
	Name             string `json:"name"`
	Role             string `json:"role"`
	Description      string `json:"description"`
	ImageDescription string `json:"image_description,omitempty"`
	VoiceDescription string `json:"voice_description,omitempty"`
	Image            string `json:"image,omitempty"`
}

type Universe struct {
	ID                       uint               `json:"id" gorm:"primaryKey"`
	Name                     string             `json:"name" gorm:"not null"`
	Description              string             `json:"description"`
	KeyElements              []string           `json:"key_elements" gorm:"serializer:json"`
	MainCharacters           []CharacterSummary `json:"main_characters" gorm:"serializer:json"`
	NarratorVoiceDescription string             `json:"narrator_voice_description,omitempty"`
	Thumbnail                string             `json:"thumbnail,omitempty"`
	Slug                     string             `json:"slug" gorm:"uniqueIndex;not null"`
	CreatedAt                time.Time          `json:"created_at"`
	UpdatedAt                time.Time          `json:"updated_at"`
	DeletedAt                gorm.DeletedAt     `json:"-" gorm:"index"`

	// Relationships
	Quests     []Quest     `json:"quests,omitempty" gorm:"foreignKey:UniverseID"`
	Characters []Character `json:"characters,omitempty" gorm:"foreignKey:UniverseID"`
}
