package pipeline

// Live event types pushed to subscribers.
const (
	EventNewLogs     = "new_logs"
	EventNewAlerts   = "new_alerts"
	EventStatsUpdate = "stats_update"
)

// Publisher fans live events out to subscribers. Publish must not block on slow consumers.
type Publisher interface {
	Publish(event string, payload any)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(event string, payload any)

// Publish calls f(event, payload).
func (f PublisherFunc) Publish(event string, payload any) {
	f(event, payload)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}
