package handlers

import (
	"errors"
	"net/http"

	"questforge/services"
)

const generationFailedMessage = "Content generation failed. Please try again."

// playerMessageForError picks the error text for player-facing responses.
// Generation failures carry provider detail that belongs in operator logs,
// not in play responses, so those collapse to a fixed retry message.
func playerMessageForError(err error) string {
	if errors.Is(err, services.ErrContentFormat) || errors.Is(err, services.ErrGenerationProvider) {
		return generationFailedMessage
	}
	return err.Error()
}

// statusForError maps service sentinels onto HTTP statuses so every handler
// reports failures the same way.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrContentFormat), errors.Is(err, services.ErrGenerationProvider):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrIntegrity):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
