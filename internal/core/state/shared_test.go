package state

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"focusflow/internal/core/model"
	"focusflow/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppliesStoredValuesAndDefaults(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(t.Context(), map[string]any{
		storage.KeyCategories:          []string{"Work", "Social"},
		storage.KeyCategoryAssignments: map[string]string{"github.com": "Work"},
		storage.KeyIdleThreshold:       600,
	}))

	shared := New(store, Defaults{RetentionDays: 30})
	require.NoError(t, shared.LoadConfig(t.Context()))

	config := shared.Config()
	assert.Equal(t, []string{"Work", "Social"}, config.Categories)
	assert.Equal(t, "Work", config.Assignments["github.com"])
	assert.Equal(t, DefaultCategory, config.DefaultCategory)
	assert.Equal(t, 600, config.IdleThresholdSeconds)
	assert.Equal(t, 30, config.RetentionDays)
}

func TestLoadConfigKeepsPreviousOnFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	shared := New(store, Defaults{})
	shared.SetAssignments(map[string]string{"news.example": "News"})

	store.FailGet(errors.New("disk gone"))
	require.Error(t, shared.LoadConfig(t.Context()))
	assert.Equal(t, "News", shared.Config().Assignments["news.example"])
}

func TestCategoryForResolvesWildcards(t *testing.T) {
	shared := New(storage.NewMemoryStore(), Defaults{})
	shared.SetAssignments(map[string]string{
		"mail.google.com": "Work",
		"*.google.com":    "Search",
		"*.social.test":   "Social",
	})

	assert.Equal(t, "Work", shared.CategoryFor("mail.google.com"))
	assert.Equal(t, "Search", shared.CategoryFor("docs.google.com"))
	assert.Equal(t, "Search", shared.CategoryFor("google.com"))
	assert.Equal(t, "Social", shared.CategoryFor("a.b.social.test"))
	assert.Equal(t, DefaultCategory, shared.CategoryFor("example.org"))
}

func TestAccrueFeedsEveryAggregate(t *testing.T) {
	shared := New(storage.NewMemoryStore(), Defaults{})
	at := time.Date(2026, 10, 19, 9, 30, 0, 0, time.Local)

	shared.Accrue("github.com", "Work", 45, at)
	shared.Accrue("github.com", "Work", 15, at.Add(time.Hour))
	shared.Accrue("", "Work", 15, at)
	shared.Accrue("github.com", "Work", 0, at)

	tracking := shared.Tracking()
	assert.Equal(t, 60, tracking.Tracked["github.com"])
	assert.Equal(t, 60, tracking.CategoryTime["Work"])
	assert.Equal(t, 60, tracking.DailyDomain["2026-10-19"]["github.com"])
	assert.Equal(t, 60, tracking.DailyCategory["2026-10-19"]["Work"])
	assert.Equal(t, 45, tracking.Hourly["2026-10-19"]["09"])
	assert.Equal(t, 15, tracking.Hourly["2026-10-19"]["10"])
}

func TestSaveAndLoadTracking(t *testing.T) {
	store := storage.NewMemoryStore()
	shared := New(store, Defaults{})
	at := time.Date(2026, 10, 19, 14, 0, 0, 0, time.Local)
	shared.Accrue("go.dev", DefaultCategory, 30, at)
	shared.SetCurrentInterval(&Interval{Domain: "go.dev", URL: "https://go.dev/doc", StartTime: at.UnixMilli()})
	require.NoError(t, shared.SaveTracking(t.Context()))

	restored := New(store, Defaults{})
	require.NoError(t, restored.LoadTracking(t.Context()))
	tracking := restored.Tracking()
	assert.Equal(t, 30, tracking.Tracked["go.dev"])
	require.NotNil(t, tracking.Current)
	assert.Equal(t, "go.dev", tracking.Current.Domain)
	assert.True(t, tracking.Current.Started().Equal(at))

	shared.SetCurrentInterval(nil)
	require.NoError(t, shared.SaveTracking(t.Context()))
	require.NoError(t, restored.LoadTracking(t.Context()))
	_, open := restored.CurrentInterval()
	assert.False(t, open)
}

func TestRecordWorkSessionUpdatesDailyAndAllTime(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(t.Context(), map[string]any{
		storage.KeyPomodoroStatsDaily: map[string]model.DailyPomodoroStat{
			"2026-10-19": {WorkSessions: 2, TotalWorkTime: 3000},
		},
		storage.KeyPomodoroStatsAllTime: model.AllTimePomodoroStat{TotalWorkSessionsCompleted: 10, TotalTimeFocused: 15000},
	}))
	shared := New(store, Defaults{})
	require.NoError(t, shared.LoadStats(t.Context()))

	daily, allTime, err := shared.RecordWorkSession(t.Context(), "2026-10-19", 1500)
	require.NoError(t, err)
	assert.Equal(t, model.DailyPomodoroStat{WorkSessions: 3, TotalWorkTime: 4500}, daily)
	assert.Equal(t, model.AllTimePomodoroStat{TotalWorkSessionsCompleted: 11, TotalTimeFocused: 16500}, allTime)

	raw, ok := store.Raw(storage.KeyPomodoroStatsDaily)
	require.True(t, ok)
	var persisted map[string]model.DailyPomodoroStat
	require.NoError(t, json.Unmarshal(raw, &persisted))
	assert.Equal(t, daily, persisted["2026-10-19"])
}

func TestRecordWorkSessionKeepsMemoryWhenSaveFails(t *testing.T) {
	store := storage.NewMemoryStore()
	store.FailSet(errors.New("read-only"))
	shared := New(store, Defaults{})

	_, _, err := shared.RecordWorkSession(t.Context(), "2026-10-20", 1500)
	require.Error(t, err)
	assert.Equal(t, 1, shared.StatsForDate("2026-10-20").WorkSessions)
	assert.Equal(t, 1500, shared.AllTimeStats().TotalTimeFocused)
}

func TestPruneDropsOldDays(t *testing.T) {
	store := storage.NewMemoryStore()
	shared := New(store, Defaults{})
	old := time.Date(2026, 6, 1, 10, 0, 0, 0, time.Local)
	recent := time.Date(2026, 10, 18, 10, 0, 0, 0, time.Local)
	shared.Accrue("old.example", "Other", 10, old)
	shared.Accrue("new.example", "Other", 10, recent)
	_, _, err := shared.RecordWorkSession(t.Context(), "2026-06-01", 1500)
	require.NoError(t, err)

	removed, err := shared.Prune(t.Context(), "2026-07-21")
	require.NoError(t, err)
	assert.Equal(t, 4, removed)

	tracking := shared.Tracking()
	assert.NotContains(t, tracking.DailyDomain, "2026-06-01")
	assert.Contains(t, tracking.DailyDomain, "2026-10-18")
	assert.Equal(t, 10, tracking.Tracked["old.example"])
	assert.Zero(t, shared.StatsForDate("2026-06-01").WorkSessions)
	assert.Equal(t, 1, shared.AllTimeStats().TotalWorkSessionsCompleted)

	removed, err = shared.Prune(t.Context(), "2026-07-21")
	require.NoError(t, err)
	assert.Zero(t, removed)
}
