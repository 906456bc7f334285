package tev

// InternKind distinguishes the dictionaries of interned strings.
type InternKind uint8

const (
	InternEventName InternKind = iota + 1
	InternCategoryName
)

// String implements fmt.Stringer.
func (k InternKind) String() string {
	switch k {
	case InternEventName:
		return "event_name"
	case InternCategoryName:
		return "category_name"
	default:
		return "unknown"
	}
}

// EventHeader carries the fixed fields of one track event. Interned ids
// refer to dictionary entries previously announced on the same sequence via
// [Writer.WriteInternedString]; Name is additionally carried literally so
// writers without a dictionary stay usable.
type EventHeader struct {
	Type      EventType
	Timestamp TraceTimestamp

	Name    string
	NameIID uint64

	// CategoryIIDs refer to interned static category names. Categories carry
	// literal names instead, used for dynamic categories, where every group
	// member name is appended.
	CategoryIIDs []uint64
	Categories   []string

	// TrackUUID is the track the event attaches to. Zero means the default
	// track.
	TrackUUID uint64
}

// Writer is the opaque structured writer this core serializes through. It is
// an external collaborator: the core requires only that writes issued through
// one sequence's writer appear in the trace in issue order, as a contiguous
// per-sequence record stream.
//
// None of the methods return errors: the dispatch path cannot propagate
// failures, so implementations must absorb them (and, say, expose a last
// error out of band).
type Writer interface {
	// ResetSequence marks the start of a fresh incremental-state epoch on
	// this sequence. All dictionaries and track descriptors previously
	// written on the sequence are invalid after this record.
	ResetSequence(ts TraceTimestamp)

	// WriteTrackDescriptor appends a track descriptor definition record.
	WriteTrackDescriptor(uuid uint64, payload []byte)

	// WriteInternedString appends a dictionary definition record.
	WriteInternedString(kind InternKind, iid uint64, value string)

	// BeginEvent opens one event record and returns a handle for appending
	// caller fields. The record is committed by Finalize.
	BeginEvent(hdr EventHeader) EventHandle
}

// EventHandle is an open event record.
type EventHandle interface {
	AddField(key string, value any)
	Finalize()
}
