package services

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a referenced universe/quest/question/option
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrContentFormat is returned when a provider response cannot be parsed
	// as the expected JSON, even after sanitization.
	ErrContentFormat = errors.New("generated content is not in the expected format")

	// ErrGenerationProvider is returned when the content provider fails after
	// the retry budget is exhausted.
	ErrGenerationProvider = errors.New("generation provider failure")

	// ErrIntegrity is returned when a uniqueness constraint cannot be
	// satisfied (slug collision retries exhausted, duplicate-edge race).
	ErrIntegrity = errors.New("integrity conflict")
)

// asNotFound maps gorm's record-not-found to the service-level sentinel so
// callers never depend on the storage layer's error values.
func asNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
