package storage

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore keeps documents in process memory. Failures can be injected
// to exercise degraded paths.
type MemoryStore struct {
	mu       sync.Mutex
	values   map[string][]byte
	getErr   error
	setErr   error
	getCalls int
	setCalls int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// FailGet makes subsequent Get calls return err. Nil clears the failure.
func (store *MemoryStore) FailGet(err error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.getErr = err
}

// FailSet makes subsequent Set calls return err. Nil clears the failure.
func (store *MemoryStore) FailSet(err error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.setErr = err
}

// Get implements Store.
func (store *MemoryStore) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	store.getCalls++
	if store.getErr != nil {
		return nil, store.getErr
	}
	result := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		if value, ok := store.values[key]; ok {
			result[key] = append(json.RawMessage(nil), value...)
		}
	}
	return result, nil
}

// Set implements Store.
func (store *MemoryStore) Set(ctx context.Context, values map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	encoded, err := encodeValues(values)
	if err != nil {
		return err
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	store.setCalls++
	if store.setErr != nil {
		return store.setErr
	}
	for key, value := range encoded {
		store.values[key] = value
	}
	return nil
}

// Raw returns the stored document for key.
func (store *MemoryStore) Raw(key string) (json.RawMessage, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()
	value, ok := store.values[key]
	return append(json.RawMessage(nil), value...), ok
}

// SetCalls returns how many Set calls reached the store.
func (store *MemoryStore) SetCalls() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.setCalls
}
