package pomodoro

import (
	"time"

	"focusflow/internal/core/model"
)

// EventType defines the type of engine event.
type EventType string

const (
	// EventTick is sent on every countdown second.
	EventTick EventType = "tick"
	// EventTransition is sent after start, pause, reset, skip, advance,
	// completion and safety pause.
	EventTransition EventType = "transition"
	// EventSettings is sent when settings are reloaded or the notification
	// preference is reconciled.
	EventSettings EventType = "settings"
)

// Status is the full timer status reported to UI surfaces.
type Status struct {
	model.PomodoroState
	Durations     model.Durations `json:"durations"`
	NotifyEnabled bool            `json:"notifyEnabled"`
}

// Event is a status update for observers.
type Event struct {
	Type       EventType
	Transition string
	Status     Status
	At         time.Time
}
