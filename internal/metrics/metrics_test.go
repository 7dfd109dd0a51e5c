package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecords(t *testing.T) {
	c := NewCollector()

	c.EventEnqueued(3)
	c.EventProcessed(true, 2)
	c.EventProcessed(false, 1)
	c.CacheRebuilt(true, 5)
	c.PomodoroTransition("start")
	c.PomodoroTransition("start")
	c.PomodoroRemaining(1499)
	c.NotificationSent("sent")
	c.MessageHandled("startPomodoro", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.eventsEnqueued))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.eventsProcessed.WithLabelValues("error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.activeRules))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.transitions.WithLabelValues("start")))
	assert.Equal(t, 1499.0, testutil.ToFloat64(c.remaining))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messages.WithLabelValues("startPomodoro", "ok")))
}

func TestCollectorsAreIndependent(t *testing.T) {
	first := NewCollector()
	second := NewCollector()
	first.PomodoroTransition("pause")
	assert.Equal(t, 0.0, testutil.ToFloat64(second.transitions.WithLabelValues("pause")))
}

func TestHandlerServesMetrics(t *testing.T) {
	c := NewCollector()
	c.CacheRebuilt(false, 0)

	recorder := httptest.NewRecorder()
	c.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "focusflow_rule_cache_rebuilds_total")
}

func TestNoopRecorderSatisfiesRecorder(t *testing.T) {
	var recorder Recorder = NoopRecorder{}
	recorder.EventEnqueued(1)
	recorder.MessageHandled("x", false)
}
