package model

// Phase is one step of the focus timer cycle.
type Phase string

const (
	PhaseWork       Phase = "Work"
	PhaseShortBreak Phase = "Short Break"
	PhaseLongBreak  Phase = "Long Break"
)

// Valid reports whether the phase is one of the three known phases.
func (phase Phase) Valid() bool {
	switch phase {
	case PhaseWork, PhaseShortBreak, PhaseLongBreak:
		return true
	}
	return false
}

// IsBreak reports whether the phase is a short or long break.
func (phase Phase) IsBreak() bool {
	return phase == PhaseShortBreak || phase == PhaseLongBreak
}

// TimerState is the run state of the focus timer.
type TimerState string

const (
	TimerStopped TimerState = "stopped"
	TimerRunning TimerState = "running"
	TimerPaused  TimerState = "paused"
)

// Valid reports whether the timer state is known.
func (state TimerState) Valid() bool {
	switch state {
	case TimerStopped, TimerRunning, TimerPaused:
		return true
	}
	return false
}

const (
	DefaultWorkSeconds             = 25 * 60
	DefaultShortBreakSeconds       = 5 * 60
	DefaultLongBreakSeconds        = 15 * 60
	DefaultSessionsBeforeLongBreak = 4
)

// Durations maps each phase to its configured length in seconds.
type Durations map[Phase]int

// DefaultDurations returns the stock 25/5/15 minute cycle.
func DefaultDurations() Durations {
	return Durations{
		PhaseWork:       DefaultWorkSeconds,
		PhaseShortBreak: DefaultShortBreakSeconds,
		PhaseLongBreak:  DefaultLongBreakSeconds,
	}
}

// Of returns the duration of phase, falling back to the Work duration for
// unknown phases and to the stock default when nothing usable is configured.
func (durations Durations) Of(phase Phase) int {
	if seconds := durations[phase]; seconds > 0 {
		return seconds
	}
	if !phase.Valid() {
		if seconds := durations[PhaseWork]; seconds > 0 {
			return seconds
		}
		return DefaultWorkSeconds
	}
	return DefaultDurations()[phase]
}

// Clone returns an independent copy.
func (durations Durations) Clone() Durations {
	out := make(Durations, len(durations))
	for phase, seconds := range durations {
		out[phase] = seconds
	}
	return out
}

// PomodoroSettings holds user configuration of the focus timer.
type PomodoroSettings struct {
	Durations                   Durations `json:"durations"`
	SessionsBeforeLongBreak     int       `json:"sessionsBeforeLongBreak"`
	NotifyEnabled               bool      `json:"notifyEnabled"`
	BlockDuringWorkEnabled      bool      `json:"blockDuringWorkEnabled"`
	BlockedCategoriesDuringWork []string  `json:"blockedCategoriesDuringWork"`
}

// DefaultPomodoroSettings returns settings used when nothing is persisted.
func DefaultPomodoroSettings() PomodoroSettings {
	return PomodoroSettings{
		Durations:                   DefaultDurations(),
		SessionsBeforeLongBreak:     DefaultSessionsBeforeLongBreak,
		NotifyEnabled:               true,
		BlockDuringWorkEnabled:      false,
		BlockedCategoriesDuringWork: []string{},
	}
}

// Normalize replaces missing or invalid values with defaults.
func (settings *PomodoroSettings) Normalize() {
	durations := DefaultDurations()
	for phase, seconds := range settings.Durations {
		if phase.Valid() && seconds > 0 {
			durations[phase] = seconds
		}
	}
	settings.Durations = durations
	if settings.SessionsBeforeLongBreak <= 0 {
		settings.SessionsBeforeLongBreak = DefaultSessionsBeforeLongBreak
	}
	categories := make([]string, 0, len(settings.BlockedCategoriesDuringWork))
	for _, category := range settings.BlockedCategoriesDuringWork {
		if category != "" {
			categories = append(categories, category)
		}
	}
	settings.BlockedCategoriesDuringWork = categories
}

// Clone returns a deep copy.
func (settings PomodoroSettings) Clone() PomodoroSettings {
	out := settings
	out.Durations = settings.Durations.Clone()
	out.BlockedCategoriesDuringWork = append([]string(nil), settings.BlockedCategoriesDuringWork...)
	return out
}

// PomodoroState is the live position of the focus timer.
type PomodoroState struct {
	CurrentPhase          Phase      `json:"currentPhase"`
	RemainingTime         int        `json:"remainingTime"`
	WorkSessionsCompleted int        `json:"workSessionsCompleted"`
	TimerState            TimerState `json:"timerState"`
}

// InitialPomodoroState returns a stopped Work phase at full length.
func InitialPomodoroState(settings PomodoroSettings) PomodoroState {
	return PomodoroState{
		CurrentPhase:          PhaseWork,
		RemainingTime:         settings.Durations.Of(PhaseWork),
		WorkSessionsCompleted: 0,
		TimerState:            TimerStopped,
	}
}

// DailyPomodoroStat aggregates completed work sessions of one calendar day.
type DailyPomodoroStat struct {
	WorkSessions  int `json:"workSessions"`
	TotalWorkTime int `json:"totalWorkTime"`
}

// AllTimePomodoroStat aggregates every completed work session.
type AllTimePomodoroStat struct {
	TotalWorkSessionsCompleted int `json:"totalWorkSessionsCompleted"`
	TotalTimeFocused           int `json:"totalTimeFocused"`
}

// DateLayout is the key format of every per-day record.
const DateLayout = "2006-01-02"
