// Package tev is the instrumentation core of a track-event tracing SDK: the
// machinery that lets application code emit structured, timestamped track
// events (spans, counters, instant markers) into a shared trace stream, at
// negligible cost when no tracing session is active, and with correct,
// low-overhead behavior while one or more sessions are recording.
//
// The package is organized around a few cooperating pieces. A [Registry] holds
// the static table of trace categories, each with an atomic bitmap recording
// which active sessions want that category. A [Source] owns the registry, the
// session lifecycle, and the process-wide track registry. A [Session] is one
// independently configured recording instance: it is set up from a [Config],
// started (which sets its bit on every matching category), and stopped (which
// clears it). A [Sequence] is one ordered output stream into the trace,
// exclusively owned by its creator; it carries the incremental state that
// makes repeated serialization cheap: interning tables, the emitted-track
// set, and the dynamic-category cache.
//
// Instrumentation call sites use the two-function contract at the heart of
// the design: [Source.CallIfCategoryEnabled] is the trivial fast path, a
// single atomic load and a branch, safe to place on the hottest code paths;
// [Sequence.TraceForCategory] is the outlined slow path that resolves
// timestamps, maintains incremental state, and writes the event through the
// external [Writer] interface.
//
//	src.CallIfCategoryEnabled(catNet, func(instances uint8) {
//		seq.TraceForCategory(instances, catNet, "connect", tev.TypeBegin)
//	})
//
// Serialization itself is out of scope: the [Writer] is an opaque structured
// writer supplied by the caller. The [github.com/tevtrace/tev/tevjson]
// package provides a simple JSON-lines implementation.
//
// Applications that don't need multiple sources or explicit sequences can use
// [github.com/tevtrace/tev/eztev], which wraps a process-global source behind
// an easy API.
package tev
