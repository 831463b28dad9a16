// Package invalidation implements C9: consuming registry mutation events,
// re-embedding affected text, applying deltas to vector indexes, and
// invalidating caches, plus full-rebuild and corruption recovery.
package invalidation

// EventKind names the registry mutation event types published by the
// admin surface (out of scope) and consumed here, per spec.md §4.9.
type EventKind string

const (
	EventServiceCreated      EventKind = "service_created"
	EventServiceUpdated      EventKind = "service_updated"
	EventServiceDeleted      EventKind = "service_deleted"
	EventToolCreated         EventKind = "tool_created"
	EventToolUpdated         EventKind = "tool_updated"
	EventToolDeleted         EventKind = "tool_deleted"
	EventAccessPolicyChanged EventKind = "access_policy_changed"
)

// Event is one registry mutation notification. ServiceID is always set;
// ToolID is set only for tool-scoped events.
type Event struct {
	Kind      EventKind
	ServiceID int64
	ToolID    int64
}

// Source delivers mutation events to the controller. The in-process
// implementation is a buffered channel; a Pulse-stream-backed Source can
// fan mutation events in from other nodes (SPEC_FULL.md §4.9).
type Source interface {
	Events() <-chan Event
}

// ChannelSource is the default in-process event Source.
type ChannelSource struct {
	ch chan Event
}

// NewChannelSource constructs a buffered in-process Source. Publish blocks
// once the buffer is full — callers emitting events from the admin surface
// should size buffer generously or consume promptly.
func NewChannelSource(buffer int) *ChannelSource {
	return &ChannelSource{ch: make(chan Event, buffer)}
}

// Events implements Source.
func (s *ChannelSource) Events() <-chan Event { return s.ch }

// Publish enqueues an event for the controller to consume.
func (s *ChannelSource) Publish(e Event) {
	s.ch <- e
}

// Close signals no further events will be published.
func (s *ChannelSource) Close() {
	close(s.ch)
}
