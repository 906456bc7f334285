// Package tevjson implements the track event [tev.Writer] interface as a
// JSON-lines record stream: one self-describing JSON object per record,
// appended to an io.Writer in issue order. It is intended for trace files
// and debugging, not for wire compatibility with any binary trace format.
package tevjson

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/tevtrace/tev"
)

// Record is one line of the stream. Kind selects which of the remaining
// fields are meaningful.
type Record struct {
	Kind string `json:"kind"` // "reset" | "intern" | "track" | "event"

	// Timestamp, on reset and event records.
	ClockID int32  `json:"clock_id,omitempty"`
	Nanos   uint64 `json:"ns,omitempty"`

	// Intern records.
	InternKind string `json:"intern_kind,omitempty"`
	IID        uint64 `json:"iid,omitempty"`
	Value      string `json:"value,omitempty"`

	// Track records; TrackUUID doubles as the event's track reference.
	TrackUUID uint64 `json:"track_uuid,omitempty"`
	Payload   []byte `json:"payload,omitempty"`

	// Event records.
	Name         string         `json:"name,omitempty"`
	NameIID      uint64         `json:"name_iid,omitempty"`
	Type         string         `json:"type,omitempty"`
	CategoryIIDs []uint64       `json:"category_iids,omitempty"`
	Categories   []string       `json:"categories,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
}

// Writer emits one JSON object per record to an underlying io.Writer.
//
// Writes are serialized with a mutex so that several sequences may share one
// destination stream, e.g. a trace file; records from different sequences
// interleave at record granularity, each sequence's records staying in issue
// order, which is all the engine requires.
type Writer struct {
	mtx      sync.Mutex
	enc      *json.Encoder
	err      error
	observer func(Record)
}

var _ tev.Writer = (*Writer)(nil)

// WriterOption customizes a Writer.
type WriterOption func(*Writer)

// WithObserver registers a callback invoked with a copy of every record
// written, after encoding. Used to tee the stream, e.g. into a broker. The
// callback runs under the writer lock, so it observes records in exactly the
// order they reach the underlying stream, even when sequences share the
// writer; it must not call back into the Writer.
func WithObserver(fn func(Record)) WriterOption {
	return func(w *Writer) {
		w.observer = fn
	}
}

// NewWriter constructs a Writer appending to dst.
func NewWriter(dst io.Writer, opts ...WriterOption) *Writer {
	w := &Writer{
		enc: json.NewEncoder(dst),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Err returns the first error encountered while encoding, if any. The writer
// interface is infallible by contract, so failures are absorbed here and the
// stream goes quiet; callers that care should check Err after tracing.
func (w *Writer) Err() error {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	return w.err
}

// ResetSequence implements tev.Writer.
func (w *Writer) ResetSequence(ts tev.TraceTimestamp) {
	w.emit(Record{
		Kind:    "reset",
		ClockID: int32(ts.ClockID),
		Nanos:   ts.Nanos,
	})
}

// WriteTrackDescriptor implements tev.Writer.
func (w *Writer) WriteTrackDescriptor(uuid uint64, payload []byte) {
	w.emit(Record{
		Kind:      "track",
		TrackUUID: uuid,
		Payload:   payload,
	})
}

// WriteInternedString implements tev.Writer.
func (w *Writer) WriteInternedString(kind tev.InternKind, iid uint64, value string) {
	w.emit(Record{
		Kind:       "intern",
		InternKind: kind.String(),
		IID:        iid,
		Value:      value,
	})
}

// BeginEvent implements tev.Writer.
func (w *Writer) BeginEvent(hdr tev.EventHeader) tev.EventHandle {
	return &eventHandle{
		w: w,
		rec: Record{
			Kind:         "event",
			ClockID:      int32(hdr.Timestamp.ClockID),
			Nanos:        hdr.Timestamp.Nanos,
			Name:         hdr.Name,
			NameIID:      hdr.NameIID,
			Type:         hdr.Type.String(),
			CategoryIIDs: hdr.CategoryIIDs,
			Categories:   hdr.Categories,
			TrackUUID:    hdr.TrackUUID,
		},
	}
}

func (w *Writer) emit(rec Record) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.enc.Encode(rec); err != nil && w.err == nil {
		w.err = err
	}
	if w.observer != nil {
		w.observer(rec)
	}
}

type eventHandle struct {
	w   *Writer
	rec Record
}

func (h *eventHandle) AddField(key string, value any) {
	if h.rec.Fields == nil {
		h.rec.Fields = map[string]any{}
	}
	h.rec.Fields[key] = value
}

func (h *eventHandle) Finalize() {
	h.w.emit(h.rec)
}
