package models

import (
	"time"

	"gorm.io/gorm"
)

// Collectible is a reward instance attached to a specific option, copied from
// the quest's pre-generated reward pool.
type Collectible struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	OptionID    uint           `json:"option_id" gorm:"not null"`
	Name        string         `json:"name" gorm:"not null"`
	Description string         `json:"description"`
	ImagePath   string         `json:"image_path,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Option Option `json:"option,omitempty"`
}
