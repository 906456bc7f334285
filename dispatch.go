package tev

import (
	"fmt"

	"github.com/tevtrace/tev/internal/tevdebug"
)

// CallIfCategoryEnabled is the inlined entrypoint for track event trace
// points: one relaxed atomic load of the category's session bitmap and one
// branch. When the bitmap is nonzero, the callback receives its value;
// otherwise nothing happens. Everything downstream of the check belongs in
// the callback, outlined in [Sequence.TraceForCategory].
func (s *Source) CallIfCategoryEnabled(index int, fn func(instances uint8)) {
	if m := uint8(s.registry.states[index].Load()); m != 0 {
		fn(m)
	}
}

// CallIfEnabled is CallIfCategoryEnabled against the any-session bitmap:
// the callback runs if any session is started, regardless of categories.
func (s *Source) CallIfEnabled(fn func(instances uint8)) {
	if m := uint8(s.active.Load()); m != 0 {
		fn(m)
	}
}

//
//
//

// TraceOption customizes one trace point. The zero set of options records an
// event on the default track, timestamped now, with no extra fields; each
// option pays only for what it adds.
type TraceOption func(*traceArgs)

type traceArgs struct {
	track       Track
	timestamp   any
	value       any
	hasValue    bool
	annotations [2]Annotation
	annotationN int
	populate    func(*EventContext)
}

// WithTrack attaches the event to a non-default track. The track must be
// valid; the zero track is only ever implicit.
func WithTrack(track Track) TraceOption {
	if !track.IsValid() {
		panic("tev: WithTrack requires a valid track")
	}
	return func(a *traceArgs) {
		a.track = track
	}
}

// WithTimestamp overrides the event timestamp. The value may be raw trace
// clock nanoseconds (uint64/int64), a time.Time, a time.Duration since the
// trace origin, a TraceTimestamp, or any [Timestamper]. The resolved clock
// must match the trace clock.
func WithTimestamp(v any) TraceOption {
	return func(a *traceArgs) {
		a.timestamp = v
	}
}

// WithValue sets the sampled value of a [TypeCounter] event.
func WithValue(v any) TraceOption {
	return func(a *traceArgs) {
		a.value = v
		a.hasValue = true
	}
}

// WithAnnotation attaches one flat key/value pair to the event. At most two
// annotations fit inline in a trace point, by design: they cover the cheap
// common case without the cost of a population callback. Use [WithPopulate]
// for anything richer.
func WithAnnotation(key string, value any) TraceOption {
	return func(a *traceArgs) {
		if a.annotationN >= len(a.annotations) {
			panic("tev: at most two inline annotations per trace point, use WithPopulate")
		}
		a.annotations[a.annotationN] = Annotation{Key: key, Value: value}
		a.annotationN++
	}
}

// WithPopulate registers a callback that appends arbitrary structured fields
// to the open event before it is finalized.
func WithPopulate(fn func(*EventContext)) TraceOption {
	return func(a *traceArgs) {
		a.populate = fn
	}
}

//
//
//

// categoryRef is a resolved trace point category: either a static registry
// index or a dynamic name.
type categoryRef struct {
	isStatic bool
	index    int
	dynamic  DynamicCategory
}

// resolveCategory accepts the category forms a trace point may pass: a
// static index (int), a [Category] or name (string) resolved against the
// static table, or an explicit [DynamicCategory]. A name unknown to the
// static table is dynamic. Any other type is a caller bug.
func (s *Source) resolveCategory(category any) categoryRef {
	switch c := category.(type) {
	case int:
		if c < 0 || c >= s.registry.Len() {
			panic(fmt.Sprintf("tev: category index %d out of range [0,%d)", c, s.registry.Len()))
		}
		return categoryRef{isStatic: true, index: c}
	case DynamicCategory:
		return categoryRef{dynamic: c}
	case Category:
		if i, ok := s.registry.IndexOf(c.Name); ok {
			return categoryRef{isStatic: true, index: i}
		}
		return categoryRef{dynamic: DynamicCategory{Name: c.Name}}
	case string:
		if i, ok := s.registry.IndexOf(c); ok {
			return categoryRef{isStatic: true, index: i}
		}
		return categoryRef{dynamic: DynamicCategory{Name: c}}
	default:
		panic(fmt.Sprintf("tev: unsupported category type %T", category))
	}
}

// TraceForCategory is the outlined slow path of a trace point: it records
// one event on this sequence. instances is the bitmap handed to the fast
// path callback; zero means no session wanted the category and nothing is
// recorded.
//
//	src.CallIfCategoryEnabled(catNet, func(instances uint8) {
//		seq.TraceForCategory(instances, catNet, "connect", tev.TypeBegin,
//			tev.WithAnnotation("addr", addr))
//	})
//
// The event is written once into the shared record stream however many
// sessions are recording it; per-session demux happens downstream of the
// writer.
//
// Nothing here returns an error: the failure modes are caller contract
// violations (bad category index, clock mismatch, invalid track) and panic.
func (seq *Sequence) TraceForCategory(instances uint8, category any, name string, typ EventType, opts ...TraceOption) {
	if instances == 0 {
		return
	}

	ref := seq.source.resolveCategory(category)

	// Dynamic categories have no bit in the static bitmaps: decide
	// enablement via the sequence cache before any side effects.
	if !ref.isStatic && !seq.IsDynamicCategoryEnabled(ref.dynamic) {
		return
	}

	var args traceArgs
	for _, opt := range opts {
		opt(&args)
	}

	ts := resolveTimestamp(args.timestamp)
	if ts.ClockID != TraceClockID() {
		panic(fmt.Sprintf("tev: timestamp clock %v does not match trace clock %v: multi-clock traces are not supported", ts.ClockID, TraceClockID()))
	}

	seq.syncGeneration()
	seq.maybeWriteReset(ts)

	// The track's descriptor precedes any event on the track.
	if args.track.IsValid() {
		seq.writeTrackDescriptorIfNeeded(args.track)
	}

	hdr := EventHeader{
		Type:      typ,
		Timestamp: ts,
		Name:      name,
		TrackUUID: args.track.UUID,
	}

	iid, fresh := seq.state.internEventName(name)
	if fresh {
		seq.writer.WriteInternedString(InternEventName, iid, name)
	}
	hdr.NameIID = iid

	if ref.isStatic {
		cat := seq.source.registry.CategoryAt(ref.index)
		ciid, fresh := seq.state.internCategory(cat.Name)
		if fresh {
			seq.writer.WriteInternedString(InternCategoryName, ciid, cat.Name)
		}
		hdr.CategoryIIDs = []uint64{ciid}
	} else {
		hdr.Categories = ref.dynamic.Category().GroupMembers()
	}

	h := seq.writer.BeginEvent(hdr)
	tevdebug.EventBeginCount.Add(1)

	if args.hasValue {
		h.AddField("value", args.value)
	}
	for i := 0; i < args.annotationN; i++ {
		h.AddField(args.annotations[i].Key, args.annotations[i].Value)
	}
	if args.populate != nil {
		ec := EventContext{handle: h}
		args.populate(&ec)
	}

	h.Finalize()
}
