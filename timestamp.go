package tev

import (
	"fmt"
	"time"
)

// ClockID identifies the timebase of a trace timestamp.
type ClockID int32

const (
	ClockUnknown ClockID = iota

	// ClockMonotonic is the trace clock: nanoseconds of monotonic time since
	// a fixed process-lifetime origin.
	ClockMonotonic

	// ClockRealtime is wall-clock nanoseconds since the Unix epoch. Events
	// cannot currently be recorded against it; see TraceForCategory.
	ClockRealtime
)

// String implements fmt.Stringer.
func (c ClockID) String() string {
	switch c {
	case ClockMonotonic:
		return "monotonic"
	case ClockRealtime:
		return "realtime"
	default:
		return "unknown"
	}
}

// TraceTimestamp is a canonical (clock, nanoseconds) pair.
type TraceTimestamp struct {
	ClockID ClockID `json:"clock_id"`
	Nanos   uint64  `json:"ns"`
}

// Timestamper converts a caller-defined timestamp type into the trace clock
// timebase. Implement it on custom types to pass them to [WithTimestamp].
// The returned clock must match [TraceClockID]; a mismatch indicates
// unimplemented multi-clock support and is reported as a panic at the trace
// point.
type Timestamper interface {
	TraceTimestamp() TraceTimestamp
}

// traceTimeOrigin anchors the trace clock. time.Since reads the monotonic
// component, so trace time is immune to wall clock adjustments.
var traceTimeOrigin = time.Now()

// GetTraceTimeNs returns the current trace timestamp in nanoseconds. The
// timebase always matches the timestamps recorded by track events.
func GetTraceTimeNs() uint64 {
	return uint64(time.Since(traceTimeOrigin))
}

// TraceClockID returns the clock used by GetTraceTimeNs.
func TraceClockID() ClockID {
	return ClockMonotonic
}

// resolveTimestamp converts an arbitrary caller-supplied timestamp value into
// a canonical pair. Raw integers are taken as trace clock nanoseconds;
// time.Time and time.Duration values are converted against the trace origin;
// any Timestamper resolves itself. A value of an unsupported type is a caller
// bug and panics.
func resolveTimestamp(v any) TraceTimestamp {
	switch t := v.(type) {
	case nil:
		return TraceTimestamp{ClockID: ClockMonotonic, Nanos: GetTraceTimeNs()}
	case uint64:
		return TraceTimestamp{ClockID: ClockMonotonic, Nanos: t}
	case int64:
		return TraceTimestamp{ClockID: ClockMonotonic, Nanos: uint64(t)}
	case time.Duration:
		return TraceTimestamp{ClockID: ClockMonotonic, Nanos: uint64(t)}
	case time.Time:
		return TraceTimestamp{ClockID: ClockMonotonic, Nanos: uint64(t.Sub(traceTimeOrigin))}
	case TraceTimestamp:
		return t
	case Timestamper:
		return t.TraceTimestamp()
	default:
		panic(fmt.Sprintf("tev: unsupported timestamp type %T", v))
	}
}
