// Package scheduler keeps the engine's recurring wake-ups registered with
// gocron: the periodic tracking check and the daily retention prune.
package scheduler

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"focusflow/internal/core/model"
	"focusflow/internal/logging"
	"focusflow/internal/storage"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Wake-up names.
const (
	PeriodicStateCheck  = "periodicStateCheck"
	DailyDataPruneCheck = "dailyDataPruneCheck"
)

const (
	DefaultAlarmPeriod = 15 * time.Second
	DefaultPrunePeriod = 24 * time.Hour
	DefaultPruneDelay  = 15 * time.Minute
	// DriftPruneDelay is used when a prune job is recreated because its
	// period changed.
	DriftPruneDelay = time.Minute
)

// Enqueuer accepts tracking events.
type Enqueuer interface {
	Enqueue(event model.TrackingEvent)
}

// Pruner drops date-keyed records older than a cutoff date.
type Pruner interface {
	Prune(ctx context.Context, cutoff string) (int, error)
	RetentionDays() int
}

// LimitEnforcer checks time-limit rules on every periodic check.
type LimitEnforcer interface {
	Enforce(ctx context.Context) error
}

// LoggingEnforcer only notes that a check happened. Blocking is done by the
// external rule matcher.
type LoggingEnforcer struct{}

// Enforce implements LimitEnforcer.
func (LoggingEnforcer) Enforce(context.Context) error {
	logging.NewLogger("alarm").Debug("Limit check")
	return nil
}

// Periods configures the wake-up cadence.
type Periods struct {
	Alarm      time.Duration
	Prune      time.Duration
	PruneDelay time.Duration
}

func (periods Periods) withDefaults() Periods {
	if periods.Alarm <= 0 {
		periods.Alarm = DefaultAlarmPeriod
	}
	if periods.Prune <= 0 {
		periods.Prune = DefaultPrunePeriod
	}
	if periods.PruneDelay <= 0 {
		periods.PruneDelay = DefaultPruneDelay
	}
	return periods
}

// Scheduler wraps a gocron scheduler.
type Scheduler struct {
	scheduler gocron.Scheduler
	queue     Enqueuer
	pruner    Pruner
	enforcer  LimitEnforcer
	now       func() time.Time
	log       *logrus.Entry

	mu      sync.Mutex
	periods Periods
	ctx     context.Context
}

// New creates a scheduler. Jobs are registered by EnsureWakeups and start
// firing after Start.
func New(queue Enqueuer, pruner Pruner, enforcer LimitEnforcer, periods Periods) (*Scheduler, error) {
	log := logging.NewLogger("alarm")
	s, err := gocron.NewScheduler(gocron.WithLogger(gocronLogger{log}))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if enforcer == nil {
		enforcer = LoggingEnforcer{}
	}
	return &Scheduler{
		scheduler: s,
		queue:     queue,
		pruner:    pruner,
		enforcer:  enforcer,
		now:       time.Now,
		log:       log,
		periods:   periods.withDefaults(),
		ctx:       context.Background(),
	}, nil
}

// Start begins firing jobs. ctx is handed to every job run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.log.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down and waits for running jobs.
func (s *Scheduler) Stop() error {
	s.log.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// SetPeriods changes the cadence. Call EnsureWakeups to apply it.
func (s *Scheduler) SetPeriods(periods Periods) {
	s.mu.Lock()
	s.periods = periods.withDefaults()
	s.mu.Unlock()
}

// EnsureWakeups registers both wake-ups. A job that already exists with the
// same period is left alone. A job whose period drifted is replaced.
func (s *Scheduler) EnsureWakeups() error {
	s.mu.Lock()
	periods := s.periods
	s.mu.Unlock()

	if err := s.ensure(PeriodicStateCheck, periods.Alarm, 0, 0, s.periodicStateCheck); err != nil {
		return err
	}
	return s.ensure(DailyDataPruneCheck, periods.Prune, periods.PruneDelay, DriftPruneDelay, s.dailyDataPruneCheck)
}

func (s *Scheduler) ensure(name string, period, delay, driftDelay time.Duration, task func()) error {
	tag := periodTag(period)
	for _, job := range s.scheduler.Jobs() {
		if job.Name() != name {
			continue
		}
		if slices.Contains(job.Tags(), tag) {
			s.log.WithField("job", name).Debug("Wake-up already registered")
			return nil
		}
		s.log.WithFields(logrus.Fields{"job": name, "period": period}).Info("Wake-up period changed, recreating")
		if err := s.scheduler.RemoveJob(job.ID()); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
		delay = driftDelay
	}

	options := []gocron.JobOption{
		gocron.WithName(name),
		gocron.WithTags(tag),
		gocron.WithIdentifier(uuid.New()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if delay > 0 {
		options = append(options, gocron.WithStartAt(gocron.WithStartDateTime(s.now().Add(delay))))
	}
	job, err := s.scheduler.NewJob(gocron.DurationJob(period), gocron.NewTask(task), options...)
	if err != nil {
		return fmt.Errorf("failed to create %s job: %w", name, err)
	}
	s.log.WithFields(logrus.Fields{"job": name, "id": job.ID().String(), "period": period}).Info("Wake-up registered")
	return nil
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) periodicStateCheck() {
	s.queue.Enqueue(model.EventAlarm)
	if err := s.enforcer.Enforce(s.runContext()); err != nil {
		s.log.WithError(err).Warn("Limit enforcement failed")
	}
}

func (s *Scheduler) dailyDataPruneCheck() {
	if s.pruner == nil {
		return
	}
	cutoff := storage.RetentionCutoff(s.now(), s.pruner.RetentionDays())
	removed, err := s.pruner.Prune(s.runContext(), cutoff)
	if err != nil {
		s.log.WithError(err).Error("Daily data prune failed")
		return
	}
	s.log.WithFields(logrus.Fields{"cutoff": cutoff, "removed": removed}).Info("Daily data prune finished")
}

func periodTag(period time.Duration) string {
	return "period=" + period.String()
}

// gocronLogger routes gocron's own logging into logrus.
type gocronLogger struct {
	entry *logrus.Entry
}

func (l gocronLogger) Debug(msg string, args ...any) { l.entry.WithField("args", args).Debug(msg) }
func (l gocronLogger) Info(msg string, args ...any)  { l.entry.WithField("args", args).Info(msg) }
func (l gocronLogger) Warn(msg string, args ...any)  { l.entry.WithField("args", args).Warn(msg) }
func (l gocronLogger) Error(msg string, args ...any) { l.entry.WithField("args", args).Error(msg) }
