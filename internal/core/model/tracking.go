package model

// TrackingEvent names what triggered a tracking re-evaluation. It carries no
// payload: the consumer re-reads live host state when applying it.
type TrackingEvent string

const (
	EventTabActivated       TrackingEvent = "tabActivated"
	EventTabUpdated         TrackingEvent = "tabUpdated"
	EventWindowFocusChanged TrackingEvent = "windowFocusChanged"
	EventIdleStateChanged   TrackingEvent = "idleStateChanged"
	EventAlarm              TrackingEvent = "periodicStateCheck"
)

// Valid reports whether the event is one of the known tags.
func (event TrackingEvent) Valid() bool {
	switch event {
	case EventTabActivated, EventTabUpdated, EventWindowFocusChanged, EventIdleStateChanged, EventAlarm:
		return true
	}
	return false
}
