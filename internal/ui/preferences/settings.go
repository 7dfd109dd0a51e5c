package preferences

import (
	"strconv"
	"strings"

	"focusflow/internal/core/model"
)

// Form holds the editable timer settings as entered in the window.
// Durations are whole minutes.
type Form struct {
	WorkMinutes        string
	ShortBreakMinutes  string
	LongBreakMinutes   string
	SessionsBeforeLong string
	NotifyEnabled      bool
	BlockDuringWork    bool
	BlockedCategories  string
}

// FormFrom renders settings into form values.
func FormFrom(settings model.PomodoroSettings) Form {
	return Form{
		WorkMinutes:        minutes(settings.Durations.Of(model.PhaseWork)),
		ShortBreakMinutes:  minutes(settings.Durations.Of(model.PhaseShortBreak)),
		LongBreakMinutes:   minutes(settings.Durations.Of(model.PhaseLongBreak)),
		SessionsBeforeLong: strconv.Itoa(settings.SessionsBeforeLongBreak),
		NotifyEnabled:      settings.NotifyEnabled,
		BlockDuringWork:    settings.BlockDuringWorkEnabled,
		BlockedCategories:  strings.Join(settings.BlockedCategoriesDuringWork, ", "),
	}
}

// Apply returns base with the form values applied. Entries that are not
// positive integers keep the base value.
func (form Form) Apply(base model.PomodoroSettings) model.PomodoroSettings {
	settings := base.Clone()
	if settings.Durations == nil {
		settings.Durations = model.DefaultDurations()
	}
	if value, ok := parsePositiveInt(form.WorkMinutes); ok {
		settings.Durations[model.PhaseWork] = value * 60
	}
	if value, ok := parsePositiveInt(form.ShortBreakMinutes); ok {
		settings.Durations[model.PhaseShortBreak] = value * 60
	}
	if value, ok := parsePositiveInt(form.LongBreakMinutes); ok {
		settings.Durations[model.PhaseLongBreak] = value * 60
	}
	if value, ok := parsePositiveInt(form.SessionsBeforeLong); ok {
		settings.SessionsBeforeLongBreak = value
	}
	settings.NotifyEnabled = form.NotifyEnabled
	settings.BlockDuringWorkEnabled = form.BlockDuringWork

	categories := []string{}
	for _, category := range strings.Split(form.BlockedCategories, ",") {
		if category = strings.TrimSpace(category); category != "" {
			categories = append(categories, category)
		}
	}
	settings.BlockedCategoriesDuringWork = categories
	settings.Normalize()
	return settings
}

func minutes(seconds int) string {
	return strconv.Itoa(max(seconds/60, 1))
}

func parsePositiveInt(value string) (int, bool) {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return 0, false
	}
	return parsed, true
}
