package pomodoro

import (
	"strconv"

	"focusflow/internal/core/model"
)

const (
	ColorIdle       = "#808080"
	ColorWork       = "#28a745"
	ColorShortBreak = "#fd7e14"
	ColorLongBreak  = "#ffc107"

	PausedBadge = "❚❚"
)

// Badge is the short text and background color shown on the tray icon.
type Badge struct {
	Text  string
	Color string
}

// BadgeFor derives the badge of a timer state. A running timer shows whole
// minutes left, "<1" under a minute and "0" at zero.
func BadgeFor(state model.PomodoroState) Badge {
	switch state.TimerState {
	case model.TimerRunning:
		badge := Badge{Color: phaseColor(state.CurrentPhase)}
		minutes := state.RemainingTime / 60
		switch {
		case minutes > 0:
			badge.Text = strconv.Itoa(minutes)
		case state.RemainingTime > 0:
			badge.Text = "<1"
		default:
			badge.Text = "0"
		}
		return badge
	case model.TimerPaused:
		return Badge{Text: PausedBadge, Color: ColorIdle}
	default:
		return Badge{Color: ColorIdle}
	}
}

func phaseColor(phase model.Phase) string {
	switch phase {
	case model.PhaseWork:
		return ColorWork
	case model.PhaseShortBreak:
		return ColorShortBreak
	default:
		return ColorLongBreak
	}
}
