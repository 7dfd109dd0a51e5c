// Package eventqueue applies host tracking events one at a time, oldest first.
//
// Producers call Enqueue from any goroutine; it appends to the queue and
// signals the single worker started by Start. The worker drains the queue
// until it is empty before waiting for the next signal, so a burst of events
// never spawns more than one concurrent application.
package eventqueue

import (
	"context"
	"fmt"
	"sync"

	"focusflow/internal/core/model"
	"focusflow/internal/logging"
	"focusflow/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Applier is the state-update procedure run for each event.
type Applier interface {
	Apply(ctx context.Context, event model.TrackingEvent) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(ctx context.Context, event model.TrackingEvent) error

// Apply implements Applier.
func (fn ApplierFunc) Apply(ctx context.Context, event model.TrackingEvent) error {
	return fn(ctx, event)
}

// Serializer owns the FIFO and its only consumer.
type Serializer struct {
	applier  Applier
	log      *logrus.Entry
	recorder metrics.Recorder

	mu      sync.Mutex
	queue   []model.TrackingEvent
	started bool
	wake    chan struct{}
	stopCh  chan struct{}
	done    chan struct{}
}

// Option customizes a Serializer.
type Option func(*Serializer)

// WithRecorder attaches a metrics recorder.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(serializer *Serializer) {
		if recorder != nil {
			serializer.recorder = recorder
		}
	}
}

// New creates a serializer around applier. Nothing runs until Start.
func New(applier Applier, options ...Option) *Serializer {
	serializer := &Serializer{
		applier:  applier,
		log:      logging.NewLogger("queue"),
		recorder: metrics.NoopRecorder{},
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, option := range options {
		option(serializer)
	}
	return serializer
}

// Start launches the worker. Calling it again is a no-op.
func (serializer *Serializer) Start(ctx context.Context) {
	serializer.mu.Lock()
	if serializer.started {
		serializer.mu.Unlock()
		return
	}
	serializer.started = true
	pending := len(serializer.queue)
	serializer.mu.Unlock()

	if pending > 0 {
		serializer.signal()
	}
	go serializer.run(ctx)
}

// Stop halts the worker after the event in flight and waits for it to exit.
// Events still queued are dropped. Stop is idempotent.
func (serializer *Serializer) Stop() {
	serializer.mu.Lock()
	if !serializer.started {
		serializer.mu.Unlock()
		return
	}
	select {
	case <-serializer.stopCh:
		serializer.mu.Unlock()
		<-serializer.done
		return
	default:
	}
	close(serializer.stopCh)
	serializer.mu.Unlock()

	<-serializer.done
}

// Enqueue appends an event and wakes the worker. It never blocks and never
// starts a second worker.
func (serializer *Serializer) Enqueue(event model.TrackingEvent) {
	serializer.mu.Lock()
	serializer.queue = append(serializer.queue, event)
	depth := len(serializer.queue)
	serializer.mu.Unlock()

	serializer.recorder.EventEnqueued(depth)
	serializer.signal()
}

// Len returns the number of events waiting.
func (serializer *Serializer) Len() int {
	serializer.mu.Lock()
	defer serializer.mu.Unlock()
	return len(serializer.queue)
}

func (serializer *Serializer) signal() {
	select {
	case serializer.wake <- struct{}{}:
	default:
	}
}

func (serializer *Serializer) run(ctx context.Context) {
	defer close(serializer.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-serializer.stopCh:
			return
		case <-serializer.wake:
			if !serializer.drain(ctx) {
				return
			}
		}
	}
}

// drain applies queued events until the queue is empty. It reports false when
// the worker should exit.
func (serializer *Serializer) drain(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-serializer.stopCh:
			return false
		default:
		}

		event, ok := serializer.pop()
		if !ok {
			return true
		}
		err := serializer.applyOne(ctx, event)
		if err != nil {
			serializer.log.WithError(err).WithField("event", string(event)).Error("Tracking state update failed")
		} else {
			serializer.log.WithField("event", string(event)).Debug("Tracking state updated")
		}
		serializer.recorder.EventProcessed(err == nil, serializer.Len())
	}
}

func (serializer *Serializer) pop() (model.TrackingEvent, bool) {
	serializer.mu.Lock()
	defer serializer.mu.Unlock()
	if len(serializer.queue) == 0 {
		return "", false
	}
	event := serializer.queue[0]
	serializer.queue[0] = ""
	serializer.queue = serializer.queue[1:]
	return event, true
}

func (serializer *Serializer) applyOne(ctx context.Context, event model.TrackingEvent) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic applying %s: %v", event, recovered)
		}
	}()
	return serializer.applier.Apply(ctx, event)
}
