package tev

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tevtrace/tev/internal/tevdebug"
)

// MaxObservers is the maximum number of session observers per source.
const MaxObservers = 8

// SessionObserver is notified about started and stopped tracing sessions.
// Callbacks are invoked synchronously from Start and Stop, outside the
// source lock.
type SessionObserver interface {
	OnSessionStart(info SessionInfo)
	OnSessionStop(info SessionInfo)
}

// Source is a track event namespace: a static category registry bound to the
// session lifecycle, the process-wide track registry, and the sequences that
// serialize events. A source is process-lifetime state: construct it once,
// before any session starts, and keep it alive until process exit.
type Source struct {
	registry *Registry
	tracks   *trackRegistry

	// active is the bitmap of started session slots; generation versions the
	// buffer-side incremental caches. Both are read lock-free on hot paths.
	active     atomic.Uint32
	generation atomic.Uint64

	// mtx guards the fields below. It is taken only on session transitions,
	// observer registration, and first-use dynamic category evaluation.
	mtx       sync.Mutex
	sessions  [MaxSessions]*Session
	observers []SessionObserver
}

// NewSource registers the category namespace described by the registry and
// returns the source that owns it. Registering the same registry twice is an
// error.
func NewSource(registry *Registry) (*Source, error) {
	if registry == nil {
		return nil, fmt.Errorf("nil registry")
	}
	if !registry.bound.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("registry already registered to a source")
	}
	return &Source{
		registry: registry,
		tracks:   newTrackRegistry(),
	}, nil
}

// Registry returns the source's category registry.
func (s *Source) Registry() *Registry {
	return s.registry
}

// IsEnabled reports whether any tracing session is started.
func (s *Source) IsEnabled() bool {
	return s.active.Load() != 0
}

// IsCategoryEnabled reports whether any started session wants the static
// category at the given index.
func (s *Source) IsCategoryEnabled(index int) bool {
	return s.registry.states[index].Load() != 0
}

// IsDynamicCategoryEnabled reports whether any started session wants the
// dynamic category. Unlike [Sequence.IsDynamicCategoryEnabled] the result is
// not cached, and the session configs are consulted under the source lock on
// every call; prefer the sequence variant on recording paths.
func (s *Source) IsDynamicCategoryEnabled(dyn DynamicCategory) bool {
	if !s.IsEnabled() {
		return false
	}
	return s.evaluateDynamicCategory(dyn.Category())
}

// GetTraceTimeNs returns the current trace timestamp in nanoseconds.
func (s *Source) GetTraceTimeNs() uint64 {
	return GetTraceTimeNs()
}

// TraceClockID returns the clock recorded timestamps are expressed in.
func (s *Source) TraceClockID() ClockID {
	return TraceClockID()
}

// ClearIncrementalState invalidates the incremental caches of every sequence:
// each re-emits a reset record and its definitions before its next event.
// Periodic clearing bounds how much of the record stream a trace consumer
// must retain to interpret later events.
func (s *Source) ClearIncrementalState() {
	s.generation.Add(1)
}

// AddSessionObserver registers an observer for session lifecycle events. It
// reports false, and registers nothing, when the observer is nil, already
// registered, or the maximum observer count is reached.
func (s *Source) AddSessionObserver(obs SessionObserver) bool {
	if obs == nil {
		return false
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, o := range s.observers {
		if o == obs {
			return false
		}
	}
	if len(s.observers) >= MaxObservers {
		return false
	}

	s.observers = append(s.observers, obs)
	return true
}

// RemoveSessionObserver removes a previously added observer.
func (s *Source) RemoveSessionObserver(obs SessionObserver) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for i, o := range s.observers {
		if o == obs {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// SetTrackDescriptor records metadata for a track in the process-wide track
// registry. Sequences emit the descriptor before the first event they record
// on the track; see [Sequence.SetTrackDescriptor] for immediate mirroring
// into an ongoing trace. The descriptor's UUID must match the track.
func (s *Source) SetTrackDescriptor(track Track, desc TrackDescriptor) error {
	if !track.IsValid() {
		panic("tev: SetTrackDescriptor requires a valid track")
	}
	if track.UUID != desc.UUID {
		panic(fmt.Sprintf("tev: descriptor uuid %d does not match track uuid %d", desc.UUID, track.UUID))
	}

	payload, err := desc.Encode()
	if err != nil {
		return fmt.Errorf("encode track descriptor: %w", err)
	}

	s.tracks.update(track.UUID, payload)
	return nil
}

// EraseTrackDescriptor removes a track from the registry. Sequences that
// use the track afterwards no longer auto-emit a descriptor for it.
func (s *Source) EraseTrackDescriptor(track Track) {
	s.tracks.erase(track.UUID)
}

// LookupTrackDescriptor returns the registry's current descriptor for the
// track, decoded.
func (s *Source) LookupTrackDescriptor(track Track) (TrackDescriptor, bool) {
	payload, ok := s.tracks.payload(track.UUID)
	if !ok {
		return TrackDescriptor{}, false
	}
	desc, err := DecodeTrackDescriptor(payload)
	if err != nil {
		return TrackDescriptor{}, false
	}
	return desc, true
}

// TrackDescriptorPayload returns the registry's current descriptor payload
// bytes for the track, exactly as sequences would emit them.
func (s *Source) TrackDescriptorPayload(track Track) ([]byte, bool) {
	return s.tracks.payload(track.UUID)
}

// evaluateDynamicCategory decides enablement for a category that is not in
// the static table: enabled if any started session's config matches it. This
// is the only recording-path operation that takes the source lock, and each
// sequence caches the result, so contention is bounded by distinct dynamic
// names per sequence, not by events.
func (s *Source) evaluateDynamicCategory(cat Category) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	tevdebug.DynamicCategoryEvalCount.Add(1)

	for _, sess := range s.sessions {
		if sess == nil {
			continue
		}
		if sess.config.Matches(cat) {
			return true
		}
	}
	return false
}

func (s *Source) snapshotObserversLocked() []SessionObserver {
	out := make([]SessionObserver, len(s.observers))
	copy(out, s.observers)
	return out
}
