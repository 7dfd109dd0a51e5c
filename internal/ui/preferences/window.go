// Package preferences provides the timer settings window.
package preferences

import (
	"focusflow/internal/core/model"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

// Window handles the preferences UI.
type Window struct {
	window   fyne.Window
	settings model.PomodoroSettings
	onSave   func(model.PomodoroSettings)

	work       *widget.Entry
	shortBreak *widget.Entry
	longBreak  *widget.Entry
	sessions   *widget.Entry
	notify     *widget.Check
	block      *widget.Check
	categories *widget.Entry
}

// New creates a preferences window. onSave receives the edited settings.
func New(app fyne.App, settings model.PomodoroSettings, onSave func(model.PomodoroSettings)) *Window {
	window := app.NewWindow("FocusFlow Settings")

	prefs := &Window{
		window:     window,
		onSave:     onSave,
		work:       widget.NewEntry(),
		shortBreak: widget.NewEntry(),
		longBreak:  widget.NewEntry(),
		sessions:   widget.NewEntry(),
		notify:     widget.NewCheck("Notify when a phase ends", nil),
		block:      widget.NewCheck("Block categories during work", nil),
		categories: widget.NewEntry(),
	}
	prefs.categories.SetPlaceHolder("Social, Entertainment")
	prefs.UpdateSettings(settings)

	form := container.NewVBox(
		widget.NewLabelWithStyle("Timer", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		container.NewHBox(widget.NewLabel("Work"), prefs.work, widget.NewLabel("min")),
		container.NewHBox(widget.NewLabel("Short break"), prefs.shortBreak, widget.NewLabel("min")),
		container.NewHBox(widget.NewLabel("Long break"), prefs.longBreak, widget.NewLabel("min")),
		container.NewHBox(widget.NewLabel("Long break after"), prefs.sessions, widget.NewLabel("sessions")),
		prefs.notify,
		widget.NewLabelWithStyle("Focus", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		prefs.block,
		widget.NewLabel("Blocked categories"),
		prefs.categories,
	)

	saveButton := widget.NewButton("Save", prefs.handleSave)
	cancelButton := widget.NewButton("Cancel", window.Hide)
	buttons := container.NewHBox(saveButton, layout.NewSpacer(), cancelButton)

	window.SetContent(container.NewBorder(nil, buttons, nil, nil, form))
	window.Resize(fyne.NewSize(420, 420))
	window.SetCloseIntercept(window.Hide)
	return prefs
}

// Show displays the preferences window.
func (prefs *Window) Show() {
	prefs.window.Show()
	prefs.window.RequestFocus()
}

// UpdateSettings replaces window values.
func (prefs *Window) UpdateSettings(settings model.PomodoroSettings) {
	prefs.settings = settings.Clone()
	form := FormFrom(settings)
	prefs.work.SetText(form.WorkMinutes)
	prefs.shortBreak.SetText(form.ShortBreakMinutes)
	prefs.longBreak.SetText(form.LongBreakMinutes)
	prefs.sessions.SetText(form.SessionsBeforeLong)
	prefs.notify.SetChecked(form.NotifyEnabled)
	prefs.block.SetChecked(form.BlockDuringWork)
	prefs.categories.SetText(form.BlockedCategories)
}

func (prefs *Window) form() Form {
	return Form{
		WorkMinutes:        prefs.work.Text,
		ShortBreakMinutes:  prefs.shortBreak.Text,
		LongBreakMinutes:   prefs.longBreak.Text,
		SessionsBeforeLong: prefs.sessions.Text,
		NotifyEnabled:      prefs.notify.Checked,
		BlockDuringWork:    prefs.block.Checked,
		BlockedCategories:  prefs.categories.Text,
	}
}

func (prefs *Window) handleSave() {
	prefs.settings = prefs.form().Apply(prefs.settings)
	if prefs.onSave != nil {
		prefs.onSave(prefs.settings.Clone())
	}
	prefs.window.Hide()
}
