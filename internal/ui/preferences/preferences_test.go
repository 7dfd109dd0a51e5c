package preferences

import (
	"testing"

	"focusflow/internal/core/model"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormFromDefaults(t *testing.T) {
	form := FormFrom(model.DefaultPomodoroSettings())

	assert.Equal(t, "25", form.WorkMinutes)
	assert.Equal(t, "5", form.ShortBreakMinutes)
	assert.Equal(t, "15", form.LongBreakMinutes)
	assert.Equal(t, "4", form.SessionsBeforeLong)
	assert.True(t, form.NotifyEnabled)
	assert.Empty(t, form.BlockedCategories)
}

func TestFormApply(t *testing.T) {
	base := model.DefaultPomodoroSettings()
	form := FormFrom(base)
	form.WorkMinutes = "50"
	form.ShortBreakMinutes = "abc"
	form.LongBreakMinutes = "-3"
	form.SessionsBeforeLong = " 2 "
	form.BlockDuringWork = true
	form.BlockedCategories = "Social, , Entertainment "

	settings := form.Apply(base)

	assert.Equal(t, 3000, settings.Durations.Of(model.PhaseWork))
	assert.Equal(t, base.Durations.Of(model.PhaseShortBreak), settings.Durations.Of(model.PhaseShortBreak))
	assert.Equal(t, base.Durations.Of(model.PhaseLongBreak), settings.Durations.Of(model.PhaseLongBreak))
	assert.Equal(t, 2, settings.SessionsBeforeLongBreak)
	assert.True(t, settings.BlockDuringWorkEnabled)
	assert.Equal(t, []string{"Social", "Entertainment"}, settings.BlockedCategoriesDuringWork)
	assert.Equal(t, 1500, base.Durations.Of(model.PhaseWork), "base must not be mutated")
}

func TestWindowSave(t *testing.T) {
	app := test.NewApp()
	defer app.Quit()

	var saved *model.PomodoroSettings
	prefs := New(app, model.DefaultPomodoroSettings(), func(settings model.PomodoroSettings) {
		saved = &settings
	})
	prefs.work.SetText("40")
	prefs.notify.SetChecked(false)
	prefs.handleSave()

	require.NotNil(t, saved)
	assert.Equal(t, 2400, saved.Durations.Of(model.PhaseWork))
	assert.False(t, saved.NotifyEnabled)
}
