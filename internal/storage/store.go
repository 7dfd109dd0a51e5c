package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys of the persisted records.
const (
	KeyRules                = "rules"
	KeyCategoryAssignments  = "categoryAssignments"
	KeyCategories           = "categories"
	KeyPomodoroState        = "pomodoroPersistentState"
	KeyPomodoroSettings     = "pomodoroUserSettings"
	KeyPomodoroStatsDaily   = "pomodoroStatsDaily"
	KeyPomodoroStatsAllTime = "pomodoroStatsAllTime"
	KeyTrackedData          = "trackedData"
	KeyCategoryTimeData     = "categoryTimeData"
	KeyDailyDomainData      = "dailyDomainData"
	KeyDailyCategoryData    = "dailyCategoryData"
	KeyHourlyData           = "hourlyData"
	KeyCurrentTrackingState = "currentTrackingState"
	KeyIdleThreshold        = "idleThresholdSeconds"
	KeyDataRetentionDays    = "dataRetentionPeriodDays"
	KeyProductivityRatings  = "categoryProductivityRatings"
	KeyDefaultCategory      = "defaultCategory"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Store is an asynchronous-safe key/value store of JSON documents.
// Get omits keys that are not present. Set writes all values atomically.
type Store interface {
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, values map[string]any) error
}

// Decode unmarshals key from a Get result into target.
// It reports false without error when the key is absent or null.
func Decode(values map[string]json.RawMessage, key string, target any) (bool, error) {
	raw, ok := values[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// GetInto reads a single key into target.
func GetInto(ctx context.Context, store Store, key string, target any) (bool, error) {
	values, err := store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return Decode(values, key, target)
}

func encodeValues(values map[string]any) (map[string][]byte, error) {
	encoded := make(map[string][]byte, len(values))
	for key, value := range values {
		if raw, ok := value.(json.RawMessage); ok {
			encoded[key] = append([]byte(nil), raw...)
			continue
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		encoded[key] = data
	}
	return encoded, nil
}
