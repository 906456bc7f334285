// Package tevdebug contains debug counters for the track event engine. The
// counters are cheap atomics, always on, and primarily consumed by tests that
// need to observe internal behavior like lock-guarded config evaluations.
package tevdebug

import "sync/atomic"

var (
	// DynamicCategoryEvalCount counts dynamic-category enablement decisions
	// that had to consult session configs under the source lock, i.e. cache
	// misses. Cache hits don't move it.
	DynamicCategoryEvalCount atomic.Uint64

	// IncrementalResetCount counts sequence reset records written.
	IncrementalResetCount atomic.Uint64

	// TrackDescriptorWriteCount counts track descriptor records written.
	TrackDescriptorWriteCount atomic.Uint64

	// EventBeginCount counts events opened on any sequence.
	EventBeginCount atomic.Uint64

	// SessionStartCount counts sessions started.
	SessionStartCount atomic.Uint64

	// SessionStopCount counts sessions stopped.
	SessionStopCount atomic.Uint64
)
