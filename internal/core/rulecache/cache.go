// Package rulecache keeps the merged, read-optimized view of blocking rules
// and category assignments consumed by the request matcher.
package rulecache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"focusflow/internal/core/model"
	"focusflow/internal/logging"
	"focusflow/internal/metrics"
	"focusflow/internal/storage"

	"github.com/sirupsen/logrus"
)

// Snapshot is an immutable published view. Callers must not modify it.
type Snapshot struct {
	ActiveRules       model.Rules       `json:"activeRules"`
	ActiveAssignments map[string]string `json:"activeAssignments"`
}

// Empty returns the snapshot published when inputs cannot be read.
func Empty() *Snapshot {
	return &Snapshot{ActiveRules: model.Rules{}, ActiveAssignments: map[string]string{}}
}

// AssignmentSink receives the assignments of every successful rebuild.
type AssignmentSink interface {
	SetAssignments(assignments map[string]string)
}

// Cache rebuilds snapshots from the store plus the ephemeral rules the
// focus timer supplies.
type Cache struct {
	store    storage.Store
	log      *logrus.Entry
	recorder metrics.Recorder
	sink     AssignmentSink

	rebuildMu   sync.Mutex
	ephemeralMu sync.Mutex
	ephemeral   model.Rules
	current     atomic.Pointer[Snapshot]
}

// Option customizes a Cache.
type Option func(*Cache)

// WithRecorder attaches a metrics recorder.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(cache *Cache) {
		if recorder != nil {
			cache.recorder = recorder
		}
	}
}

// WithAssignmentSink forwards rebuilt assignments to sink.
func WithAssignmentSink(sink AssignmentSink) Option {
	return func(cache *Cache) {
		cache.sink = sink
	}
}

// New creates a cache that serves an empty snapshot until the first Rebuild.
func New(store storage.Store, options ...Option) *Cache {
	cache := &Cache{
		store:    store,
		log:      logging.NewLogger("cache"),
		recorder: metrics.NoopRecorder{},
	}
	for _, option := range options {
		option(cache)
	}
	cache.current.Store(Empty())
	return cache
}

// Snapshot returns the most recently published snapshot.
func (cache *Cache) Snapshot() *Snapshot {
	return cache.current.Load()
}

// SetEphemeral replaces the ephemeral rules. They take effect on the next
// Rebuild.
func (cache *Cache) SetEphemeral(rules []model.Rule) {
	cache.ephemeralMu.Lock()
	defer cache.ephemeralMu.Unlock()
	cache.ephemeral = append(model.Rules(nil), rules...)
}

// Ephemeral returns the ephemeral rules currently held.
func (cache *Cache) Ephemeral() model.Rules {
	cache.ephemeralMu.Lock()
	defer cache.ephemeralMu.Unlock()
	return append(model.Rules(nil), cache.ephemeral...)
}

// Rebuild reads persisted rules and assignments and publishes a new
// snapshot: persisted rules in stored order followed by ephemeral rules.
// Persisted rules that fail validation are skipped. When the inputs cannot
// be read the empty snapshot is published and the error returned.
func (cache *Cache) Rebuild(ctx context.Context) error {
	cache.rebuildMu.Lock()
	defer cache.rebuildMu.Unlock()

	snapshot, err := cache.build(ctx)
	if err != nil {
		cache.current.Store(Empty())
		cache.recorder.CacheRebuilt(false, 0)
		cache.log.WithError(err).Error("Failed to update caches, serving empty rule set")
		return err
	}

	cache.current.Store(snapshot)
	cache.recorder.CacheRebuilt(true, len(snapshot.ActiveRules))
	if cache.sink != nil {
		cache.sink.SetAssignments(snapshot.ActiveAssignments)
	}
	cache.log.WithFields(logrus.Fields{
		"rules":       len(snapshot.ActiveRules),
		"assignments": len(snapshot.ActiveAssignments),
	}).Debug("Updated active blocking rules and assignments")
	return nil
}

func (cache *Cache) build(ctx context.Context) (*Snapshot, error) {
	values, err := cache.store.Get(ctx, storage.KeyRules, storage.KeyCategoryAssignments)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}

	persisted, skipped, err := model.DecodeRules(values[storage.KeyRules])
	if err != nil {
		return nil, err
	}
	for _, skipErr := range skipped {
		cache.log.WithError(skipErr).Warn("Skipping invalid stored rule")
	}

	assignments := map[string]string{}
	if raw, ok := values[storage.KeyCategoryAssignments]; ok && len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &assignments); err != nil {
			return nil, fmt.Errorf("decode category assignments: %w", err)
		}
	}

	ephemeral := cache.Ephemeral()
	rules := make(model.Rules, 0, len(persisted)+len(ephemeral))
	rules = append(rules, persisted...)
	rules = append(rules, ephemeral...)
	return &Snapshot{ActiveRules: rules, ActiveAssignments: assignments}, nil
}
