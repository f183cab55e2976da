package resource

import "errors"

// Handle is an opaque reference to an object in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// ErrClosed is returned by Insert once the table is closed.
var ErrClosed = errors.New("resource table closed")

// EventType identifies an object lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	}
	return "unknown"
}

// Event represents an object lifecycle event.
type Event struct {
	Value  any
	Kind   string
	Handle Handle
	Type   EventType
}

// Observer receives notifications about object lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Dropper is optionally implemented by values that need cleanup when they
// leave the table.
type Dropper interface {
	Drop()
}
