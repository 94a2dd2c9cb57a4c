package services

// ProgressEvent is one status update emitted by a generation job. Jobs emit a
// finite sequence of events terminating in a completed or error status.
type ProgressEvent struct {
	Status     string `json:"status"`
	UniverseID uint   `json:"universe_id,omitempty"`
	QuestID    uint   `json:"quest_id,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ProgressFunc receives progress events. A nil ProgressFunc is valid and
// discards events.
type ProgressFunc func(ProgressEvent)

func (f ProgressFunc) emit(ev ProgressEvent) {
	if f != nil {
		f(ev)
	}
}
