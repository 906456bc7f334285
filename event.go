package tev

// EventType classifies a track event.
type EventType uint8

const (
	TypeUnspecified EventType = iota
	TypeInstant               // a point-in-time marker
	TypeBegin                 // opens a slice on a track
	TypeEnd                   // closes the most recent open slice on a track
	TypeCounter               // samples a counter value
)

// String implements fmt.Stringer.
func (t EventType) String() string {
	switch t {
	case TypeInstant:
		return "instant"
	case TypeBegin:
		return "begin"
	case TypeEnd:
		return "end"
	case TypeCounter:
		return "counter"
	default:
		return "unspecified"
	}
}

// Annotation is a flat key/value pair attached to an event. Up to two
// annotations can be attached inline at a trace point via [WithAnnotation];
// richer payloads go through [WithPopulate].
type Annotation struct {
	Key   string
	Value any
}

// EventContext is the handle passed to a caller-supplied population callback.
// It stays valid only until the callback returns; the event is finalized on
// return, so fields must not be added afterwards.
type EventContext struct {
	handle EventHandle
}

// AddField appends a structured field to the open event.
func (ec *EventContext) AddField(key string, value any) {
	ec.handle.AddField(key, value)
}
