// Package state holds the process-wide shared state: the in-memory mirror of
// persisted configuration, tracking aggregates and focus timer statistics.
//
// One Shared value is created per process and handed to the components that
// need it. Field ownership:
//
//   - configuration (categories, assignments, default category, ratings,
//     idle threshold, retention) is written by LoadConfig and SetAssignments
//     and read by the tracker;
//   - tracking aggregates and the open interval are written only by the
//     tracker, which runs on the event queue worker, and by Prune;
//   - focus statistics are written only by the phase engine through
//     RecordWorkSession, and by Prune.
//
// Every accessor copies, so callers never share maps with Shared.
package state

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"focusflow/internal/core/model"
	"focusflow/internal/logging"
	"focusflow/internal/storage"

	"github.com/sirupsen/logrus"
)

const (
	DefaultCategory             = "Other"
	DefaultIdleThresholdSeconds = 1800
)

// Defaults are used when the store has no value for a setting.
type Defaults struct {
	IdleThresholdSeconds int
	RetentionDays        int
}

// Config is the configuration mirror.
type Config struct {
	Categories           []string
	Assignments          map[string]string
	DefaultCategory      string
	ProductivityRatings  map[string]int
	IdleThresholdSeconds int
	RetentionDays        int
}

// Interval is the tracking interval currently open.
type Interval struct {
	Domain    string `json:"domain"`
	URL       string `json:"url,omitempty"`
	StartTime int64  `json:"startTime"`
}

// Started returns the interval start as a time.
func (interval Interval) Started() time.Time {
	return time.UnixMilli(interval.StartTime)
}

// Tracking holds accumulated usage in seconds.
type Tracking struct {
	Tracked       map[string]int
	CategoryTime  map[string]int
	DailyDomain   map[string]map[string]int
	DailyCategory map[string]map[string]int
	Hourly        map[string]map[string]int
	Current       *Interval
}

// Shared is the owned state object described in the package comment.
type Shared struct {
	store storage.Store
	log   *logrus.Entry

	mu           sync.RWMutex
	defaults     Defaults
	config       Config
	tracking     Tracking
	statsDaily   map[string]model.DailyPomodoroStat
	statsAllTime model.AllTimePomodoroStat
}

// New creates empty shared state backed by store.
func New(store storage.Store, defaults Defaults) *Shared {
	shared := &Shared{
		store:      store,
		log:        logging.NewLogger("store"),
		defaults:   normalizeDefaults(defaults),
		tracking:   emptyTracking(),
		statsDaily: make(map[string]model.DailyPomodoroStat),
	}
	shared.config = shared.defaultConfigLocked()
	return shared
}

// Load repopulates everything from the store.
func (shared *Shared) Load(ctx context.Context) error {
	if err := shared.LoadConfig(ctx); err != nil {
		return err
	}
	if err := shared.LoadTracking(ctx); err != nil {
		return err
	}
	return shared.LoadStats(ctx)
}

// LoadConfig reloads the configuration mirror. On failure the previous
// configuration is kept.
func (shared *Shared) LoadConfig(ctx context.Context) error {
	values, err := shared.store.Get(ctx,
		storage.KeyCategories,
		storage.KeyCategoryAssignments,
		storage.KeyDefaultCategory,
		storage.KeyProductivityRatings,
		storage.KeyIdleThreshold,
		storage.KeyDataRetentionDays,
	)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	shared.mu.Lock()
	defer shared.mu.Unlock()
	config := shared.defaultConfigLocked()
	if _, err := storage.Decode(values, storage.KeyCategories, &config.Categories); err != nil {
		shared.log.WithError(err).Warn("Ignoring stored categories")
	}
	if _, err := storage.Decode(values, storage.KeyCategoryAssignments, &config.Assignments); err != nil {
		shared.log.WithError(err).Warn("Ignoring stored category assignments")
	}
	if _, err := storage.Decode(values, storage.KeyDefaultCategory, &config.DefaultCategory); err != nil {
		shared.log.WithError(err).Warn("Ignoring stored default category")
	}
	if _, err := storage.Decode(values, storage.KeyProductivityRatings, &config.ProductivityRatings); err != nil {
		shared.log.WithError(err).Warn("Ignoring stored productivity ratings")
	}
	if _, err := storage.Decode(values, storage.KeyIdleThreshold, &config.IdleThresholdSeconds); err != nil {
		shared.log.WithError(err).Warn("Ignoring stored idle threshold")
	}
	if _, err := storage.Decode(values, storage.KeyDataRetentionDays, &config.RetentionDays); err != nil {
		shared.log.WithError(err).Warn("Ignoring stored retention period")
	}

	if len(config.Categories) == 0 {
		config.Categories = []string{DefaultCategory}
	}
	if config.Assignments == nil {
		config.Assignments = map[string]string{}
	}
	if config.ProductivityRatings == nil {
		config.ProductivityRatings = map[string]int{}
	}
	if config.DefaultCategory == "" {
		config.DefaultCategory = DefaultCategory
	}
	if config.IdleThresholdSeconds <= 0 {
		config.IdleThresholdSeconds = shared.defaults.IdleThresholdSeconds
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = shared.defaults.RetentionDays
	}
	shared.config = config
	return nil
}

// LoadTracking reloads tracking aggregates and the open interval.
func (shared *Shared) LoadTracking(ctx context.Context) error {
	values, err := shared.store.Get(ctx,
		storage.KeyTrackedData,
		storage.KeyCategoryTimeData,
		storage.KeyDailyDomainData,
		storage.KeyDailyCategoryData,
		storage.KeyHourlyData,
		storage.KeyCurrentTrackingState,
	)
	if err != nil {
		return fmt.Errorf("load tracking data: %w", err)
	}

	tracking := emptyTracking()
	targets := map[string]any{
		storage.KeyTrackedData:       &tracking.Tracked,
		storage.KeyCategoryTimeData:  &tracking.CategoryTime,
		storage.KeyDailyDomainData:   &tracking.DailyDomain,
		storage.KeyDailyCategoryData: &tracking.DailyCategory,
		storage.KeyHourlyData:        &tracking.Hourly,
	}
	for key, target := range targets {
		if _, err := storage.Decode(values, key, target); err != nil {
			shared.log.WithError(err).WithField("key", key).Warn("Ignoring stored tracking data")
		}
	}
	var current Interval
	if found, err := storage.Decode(values, storage.KeyCurrentTrackingState, &current); err != nil {
		shared.log.WithError(err).Warn("Ignoring stored tracking interval")
	} else if found && current.Domain != "" {
		tracking.Current = &current
	}
	fillTracking(&tracking)

	shared.mu.Lock()
	shared.tracking = tracking
	shared.mu.Unlock()
	return nil
}

// LoadStats reloads focus timer statistics.
func (shared *Shared) LoadStats(ctx context.Context) error {
	values, err := shared.store.Get(ctx, storage.KeyPomodoroStatsDaily, storage.KeyPomodoroStatsAllTime)
	if err != nil {
		return fmt.Errorf("load pomodoro stats: %w", err)
	}
	daily := make(map[string]model.DailyPomodoroStat)
	if _, err := storage.Decode(values, storage.KeyPomodoroStatsDaily, &daily); err != nil {
		shared.log.WithError(err).Warn("Ignoring stored daily pomodoro stats")
	}
	if daily == nil {
		daily = make(map[string]model.DailyPomodoroStat)
	}
	var allTime model.AllTimePomodoroStat
	if _, err := storage.Decode(values, storage.KeyPomodoroStatsAllTime, &allTime); err != nil {
		shared.log.WithError(err).Warn("Ignoring stored all-time pomodoro stats")
	}

	shared.mu.Lock()
	shared.statsDaily = daily
	shared.statsAllTime = allTime
	shared.mu.Unlock()
	return nil
}

// SetDefaults replaces the fallback values used by the next LoadConfig.
func (shared *Shared) SetDefaults(defaults Defaults) {
	shared.mu.Lock()
	defer shared.mu.Unlock()
	shared.defaults = normalizeDefaults(defaults)
}

// Config returns a copy of the configuration mirror.
func (shared *Shared) Config() Config {
	shared.mu.RLock()
	defer shared.mu.RUnlock()
	config := shared.config
	config.Categories = append([]string(nil), shared.config.Categories...)
	config.Assignments = cloneCounts(shared.config.Assignments)
	config.ProductivityRatings = cloneCounts(shared.config.ProductivityRatings)
	return config
}

// SetAssignments replaces the category assignments, keeping them in step with
// the rule cache.
func (shared *Shared) SetAssignments(assignments map[string]string) {
	shared.mu.Lock()
	defer shared.mu.Unlock()
	shared.config.Assignments = cloneCounts(assignments)
}

// CategoryFor resolves the category of a domain: an exact assignment first,
// then "*.parent" wildcards from the most to the least specific, then the
// default category.
func (shared *Shared) CategoryFor(domain string) string {
	shared.mu.RLock()
	defer shared.mu.RUnlock()
	if category, ok := shared.config.Assignments[domain]; ok && category != "" {
		return category
	}
	for candidate := domain; candidate != ""; {
		if category, ok := shared.config.Assignments["*."+candidate]; ok && category != "" {
			return category
		}
		dot := strings.IndexByte(candidate, '.')
		if dot < 0 {
			break
		}
		candidate = candidate[dot+1:]
	}
	return shared.config.DefaultCategory
}

// Accrue adds seconds of usage of domain in category, attributed to the day
// and hour of at.
func (shared *Shared) Accrue(domain, category string, seconds int, at time.Time) {
	if domain == "" || seconds <= 0 {
		return
	}
	date := at.Format(model.DateLayout)
	hour := fmt.Sprintf("%02d", at.Hour())

	shared.mu.Lock()
	defer shared.mu.Unlock()
	tracking := &shared.tracking
	tracking.Tracked[domain] += seconds
	tracking.CategoryTime[category] += seconds
	addNested(tracking.DailyDomain, date, domain, seconds)
	addNested(tracking.DailyCategory, date, category, seconds)
	addNested(tracking.Hourly, date, hour, seconds)
}

// CurrentInterval returns the open interval, if any.
func (shared *Shared) CurrentInterval() (Interval, bool) {
	shared.mu.RLock()
	defer shared.mu.RUnlock()
	if shared.tracking.Current == nil {
		return Interval{}, false
	}
	return *shared.tracking.Current, true
}

// SetCurrentInterval opens interval, or closes tracking when it is nil.
func (shared *Shared) SetCurrentInterval(interval *Interval) {
	shared.mu.Lock()
	defer shared.mu.Unlock()
	if interval == nil {
		shared.tracking.Current = nil
		return
	}
	current := *interval
	shared.tracking.Current = &current
}

// Tracking returns a copy of the tracking aggregates.
func (shared *Shared) Tracking() Tracking {
	shared.mu.RLock()
	defer shared.mu.RUnlock()
	return cloneTracking(shared.tracking)
}

// SaveTracking writes tracking aggregates and the open interval.
func (shared *Shared) SaveTracking(ctx context.Context) error {
	tracking := shared.Tracking()
	values := map[string]any{
		storage.KeyTrackedData:       tracking.Tracked,
		storage.KeyCategoryTimeData:  tracking.CategoryTime,
		storage.KeyDailyDomainData:   tracking.DailyDomain,
		storage.KeyDailyCategoryData: tracking.DailyCategory,
		storage.KeyHourlyData:        tracking.Hourly,
	}
	if tracking.Current != nil {
		values[storage.KeyCurrentTrackingState] = tracking.Current
	} else {
		values[storage.KeyCurrentTrackingState] = nil
	}
	if err := shared.store.Set(ctx, values); err != nil {
		return fmt.Errorf("save tracking data: %w", err)
	}
	return nil
}

// RecordWorkSession adds one completed work session of seconds to the stats
// of date and to the all-time totals, then persists both. The in-memory
// update stands even when persisting fails.
func (shared *Shared) RecordWorkSession(ctx context.Context, date string, seconds int) (model.DailyPomodoroStat, model.AllTimePomodoroStat, error) {
	if seconds < 0 {
		seconds = 0
	}
	shared.mu.Lock()
	daily := shared.statsDaily[date]
	daily.WorkSessions++
	daily.TotalWorkTime += seconds
	shared.statsDaily[date] = daily
	shared.statsAllTime.TotalWorkSessionsCompleted++
	shared.statsAllTime.TotalTimeFocused += seconds
	allTime := shared.statsAllTime
	dailyCopy := cloneCounts(shared.statsDaily)
	shared.mu.Unlock()

	err := shared.store.Set(ctx, map[string]any{
		storage.KeyPomodoroStatsDaily:   dailyCopy,
		storage.KeyPomodoroStatsAllTime: allTime,
	})
	if err != nil {
		return daily, allTime, fmt.Errorf("save pomodoro stats: %w", err)
	}
	return daily, allTime, nil
}

// StatsForDate returns the stats of date, zero when nothing was recorded.
func (shared *Shared) StatsForDate(date string) model.DailyPomodoroStat {
	shared.mu.RLock()
	defer shared.mu.RUnlock()
	return shared.statsDaily[date]
}

// AllTimeStats returns the all-time totals.
func (shared *Shared) AllTimeStats() model.AllTimePomodoroStat {
	shared.mu.RLock()
	defer shared.mu.RUnlock()
	return shared.statsAllTime
}

// Prune drops every date-keyed record older than cutoff (YYYY-MM-DD) and
// persists the pruned maps. It returns the number of removed day records.
func (shared *Shared) Prune(ctx context.Context, cutoff string) (int, error) {
	shared.mu.Lock()
	removed := storage.PruneDateKeyed(shared.tracking.DailyDomain, cutoff) +
		storage.PruneDateKeyed(shared.tracking.DailyCategory, cutoff) +
		storage.PruneDateKeyed(shared.tracking.Hourly, cutoff) +
		storage.PruneDateKeyed(shared.statsDaily, cutoff)
	values := map[string]any{
		storage.KeyDailyDomainData:    cloneNested(shared.tracking.DailyDomain),
		storage.KeyDailyCategoryData:  cloneNested(shared.tracking.DailyCategory),
		storage.KeyHourlyData:         cloneNested(shared.tracking.Hourly),
		storage.KeyPomodoroStatsDaily: cloneCounts(shared.statsDaily),
	}
	shared.mu.Unlock()

	if removed == 0 {
		return 0, nil
	}
	if err := shared.store.Set(ctx, values); err != nil {
		return removed, fmt.Errorf("save pruned data: %w", err)
	}
	return removed, nil
}

// RetentionDays returns the configured retention window.
func (shared *Shared) RetentionDays() int {
	shared.mu.RLock()
	defer shared.mu.RUnlock()
	return shared.config.RetentionDays
}

func (shared *Shared) defaultConfigLocked() Config {
	return Config{
		Categories:           []string{DefaultCategory},
		Assignments:          map[string]string{},
		DefaultCategory:      DefaultCategory,
		ProductivityRatings:  map[string]int{},
		IdleThresholdSeconds: shared.defaults.IdleThresholdSeconds,
		RetentionDays:        shared.defaults.RetentionDays,
	}
}

func normalizeDefaults(defaults Defaults) Defaults {
	if defaults.IdleThresholdSeconds <= 0 {
		defaults.IdleThresholdSeconds = DefaultIdleThresholdSeconds
	}
	if defaults.RetentionDays <= 0 {
		defaults.RetentionDays = storage.DefaultRetentionDays
	}
	return defaults
}

func emptyTracking() Tracking {
	tracking := Tracking{}
	fillTracking(&tracking)
	return tracking
}

func fillTracking(tracking *Tracking) {
	if tracking.Tracked == nil {
		tracking.Tracked = map[string]int{}
	}
	if tracking.CategoryTime == nil {
		tracking.CategoryTime = map[string]int{}
	}
	if tracking.DailyDomain == nil {
		tracking.DailyDomain = map[string]map[string]int{}
	}
	if tracking.DailyCategory == nil {
		tracking.DailyCategory = map[string]map[string]int{}
	}
	if tracking.Hourly == nil {
		tracking.Hourly = map[string]map[string]int{}
	}
}

func cloneTracking(tracking Tracking) Tracking {
	out := Tracking{
		Tracked:       cloneCounts(tracking.Tracked),
		CategoryTime:  cloneCounts(tracking.CategoryTime),
		DailyDomain:   cloneNested(tracking.DailyDomain),
		DailyCategory: cloneNested(tracking.DailyCategory),
		Hourly:        cloneNested(tracking.Hourly),
	}
	if tracking.Current != nil {
		current := *tracking.Current
		out.Current = &current
	}
	return out
}

func addNested(records map[string]map[string]int, outer, inner string, seconds int) {
	bucket, ok := records[outer]
	if !ok {
		bucket = map[string]int{}
		records[outer] = bucket
	}
	bucket[inner] += seconds
}

func cloneCounts[V any](values map[string]V) map[string]V {
	out := make(map[string]V, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}

func cloneNested(values map[string]map[string]int) map[string]map[string]int {
	out := make(map[string]map[string]int, len(values))
	for key, inner := range values {
		out[key] = cloneCounts(inner)
	}
	return out
}
