package tev

import (
	"github.com/tevtrace/tev/internal/tevdebug"
)

// Sequence is one ordered output stream into the trace: it pairs a [Writer]
// with the incremental state that makes repeated serialization cheap.
//
// A sequence is exclusively owned by whoever created it, typically one
// goroutine or one logical worker. None of its state is synchronized; using
// one sequence from multiple goroutines concurrently is a caller bug. Create
// one sequence per writer-affine execution context instead, they are cheap.
type Sequence struct {
	source *Source
	writer Writer
	state  *incrementalState
}

// NewSequence creates a sequence writing through w. The writer must not be
// nil, and is used only from the sequence owner's context.
func (s *Source) NewSequence(w Writer) *Sequence {
	if w == nil {
		panic("tev: NewSequence requires a writer")
	}
	return &Sequence{
		source: s,
		writer: w,
		state:  newIncrementalState(),
	}
}

// Source returns the source the sequence records for.
func (seq *Sequence) Source() *Source {
	return seq.source
}

// IsDynamicCategoryEnabled reports whether any started session wants the
// dynamic category, deciding via the sequence-local cache. Only the first
// use of a given name on this sequence consults the session configs under
// the source lock; repeated checks are lock-free until the incremental state
// is next cleared.
func (seq *Sequence) IsDynamicCategoryEnabled(dyn DynamicCategory) bool {
	seq.syncGeneration()

	if enabled, ok := seq.state.dynamicCategories[dyn.Name]; ok {
		return enabled
	}

	enabled := seq.source.evaluateDynamicCategory(dyn.Category())
	seq.state.cacheDynamicCategory(dyn.Name, enabled)
	return enabled
}

// SetTrackDescriptor records the descriptor in the process-wide track
// registry and, when a session is active, mirrors it into this sequence's
// record stream immediately.
func (seq *Sequence) SetTrackDescriptor(track Track, desc TrackDescriptor) error {
	if err := seq.source.SetTrackDescriptor(track, desc); err != nil {
		return err
	}

	if seq.source.IsEnabled() {
		seq.syncGeneration()
		seq.maybeWriteReset(resolveTimestamp(nil))
		seq.state.seenTracks[track.UUID] = struct{}{}
		if payload, ok := seq.source.tracks.payload(track.UUID); ok {
			seq.writer.WriteTrackDescriptor(track.UUID, payload)
			tevdebug.TrackDescriptorWriteCount.Add(1)
		}
	}

	return nil
}

// syncGeneration clears the incremental state when the source has
// invalidated it since this sequence last recorded. The reset record itself
// is deferred to maybeWriteReset, which runs once a timestamp is in hand.
func (seq *Sequence) syncGeneration() {
	if gen := seq.source.generation.Load(); gen != seq.state.generation {
		seq.state.clear(gen)
		seq.state.pendingReset = true
	}
}

// maybeWriteReset emits the sequence reset record owed after a clear. At
// most one reset is written per clear, and always before any event or
// definition that follows it.
func (seq *Sequence) maybeWriteReset(ts TraceTimestamp) {
	if !seq.state.pendingReset {
		return
	}
	seq.state.pendingReset = false
	seq.writer.ResetSequence(ts)
	tevdebug.IncrementalResetCount.Add(1)
}

// writeTrackDescriptorIfNeeded emits the track's descriptor before the first
// event this sequence records on it. Idempotent per sequence per reset:
// later events on the track cost one map probe.
func (seq *Sequence) writeTrackDescriptorIfNeeded(track Track) {
	if _, ok := seq.state.seenTracks[track.UUID]; ok {
		return
	}
	seq.state.seenTracks[track.UUID] = struct{}{}

	if payload, ok := seq.source.tracks.payload(track.UUID); ok {
		seq.writer.WriteTrackDescriptor(track.UUID, payload)
		tevdebug.TrackDescriptorWriteCount.Add(1)
	}
}
