package models

import (
	"time"

	"gorm.io/gorm"
)

// UniverseSuggestion stores a visitor's idea for a new universe, submitted
// from the public site and relayed to the team channel.
type UniverseSuggestion struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Name        string         `json:"name" gorm:"not null"`
	Email       string         `json:"email" gorm:"not null"`
	Mobile      string         `json:"mobile,omitempty"`
	Description string         `json:"description" gorm:"not null"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}
