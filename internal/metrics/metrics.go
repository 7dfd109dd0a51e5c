package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives engine measurements. Components default to NoopRecorder.
type Recorder interface {
	EventEnqueued(depth int)
	EventProcessed(ok bool, depth int)
	CacheRebuilt(ok bool, activeRules int)
	PomodoroTransition(transition string)
	PomodoroRemaining(seconds int)
	NotificationSent(result string)
	MessageHandled(action string, ok bool)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) EventEnqueued(int)           {}
func (NoopRecorder) EventProcessed(bool, int)    {}
func (NoopRecorder) CacheRebuilt(bool, int)      {}
func (NoopRecorder) PomodoroTransition(string)   {}
func (NoopRecorder) PomodoroRemaining(int)       {}
func (NoopRecorder) NotificationSent(string)     {}
func (NoopRecorder) MessageHandled(string, bool) {}

// Collector records into Prometheus metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	eventsEnqueued  prometheus.Counter
	eventsProcessed *prometheus.CounterVec
	queueDepth      prometheus.Gauge

	cacheRebuilds *prometheus.CounterVec
	activeRules   prometheus.Gauge

	transitions   *prometheus.CounterVec
	remaining     prometheus.Gauge
	notifications *prometheus.CounterVec

	messages *prometheus.CounterVec
}

// NewCollector creates and registers every metric.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		eventsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "focusflow_events_enqueued_total",
			Help: "Tracking events accepted by the serializer",
		}),
		eventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "focusflow_events_processed_total",
			Help: "Tracking events applied, by result",
		}, []string{"result"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "focusflow_queue_depth",
			Help: "Tracking events waiting to be applied",
		}),
		cacheRebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "focusflow_rule_cache_rebuilds_total",
			Help: "Rule cache rebuilds, by result",
		}, []string{"result"}),
		activeRules: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "focusflow_rule_cache_active_rules",
			Help: "Rules in the published rule cache snapshot",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "focusflow_pomodoro_transitions_total",
			Help: "Focus timer transitions, by kind",
		}, []string{"transition"}),
		remaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "focusflow_pomodoro_remaining_seconds",
			Help: "Seconds left in the current phase",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "focusflow_notifications_total",
			Help: "Phase completion notifications, by result",
		}, []string{"result"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "focusflow_messages_total",
			Help: "Message surface requests, by action and result",
		}, []string{"action", "result"}),
	}

	c.registry.MustRegister(
		c.eventsEnqueued,
		c.eventsProcessed,
		c.queueDepth,
		c.cacheRebuilds,
		c.activeRules,
		c.transitions,
		c.remaining,
		c.notifications,
		c.messages,
	)
	return c
}

// EventEnqueued records an accepted event and the resulting depth.
func (c *Collector) EventEnqueued(depth int) {
	c.eventsEnqueued.Inc()
	c.queueDepth.Set(float64(depth))
}

// EventProcessed records an applied event and the remaining depth.
func (c *Collector) EventProcessed(ok bool, depth int) {
	c.eventsProcessed.WithLabelValues(result(ok)).Inc()
	c.queueDepth.Set(float64(depth))
}

// CacheRebuilt records a published snapshot.
func (c *Collector) CacheRebuilt(ok bool, activeRules int) {
	c.cacheRebuilds.WithLabelValues(result(ok)).Inc()
	c.activeRules.Set(float64(activeRules))
}

// PomodoroTransition counts a timer transition.
func (c *Collector) PomodoroTransition(transition string) {
	c.transitions.WithLabelValues(transition).Inc()
}

// PomodoroRemaining tracks the countdown.
func (c *Collector) PomodoroRemaining(seconds int) {
	c.remaining.Set(float64(seconds))
}

// NotificationSent counts notification outcomes (sent, skipped, denied, failed).
func (c *Collector) NotificationSent(outcome string) {
	c.notifications.WithLabelValues(outcome).Inc()
}

// MessageHandled counts message surface requests.
func (c *Collector) MessageHandled(action string, ok bool) {
	c.messages.WithLabelValues(action, result(ok)).Inc()
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the underlying registry for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
