package tev_test

import (
	"testing"

	"github.com/tevtrace/tev"
)

func AssertEqual[X comparable](t *testing.T, want, have X) {
	t.Helper()
	if want != have {
		t.Fatalf("want %v, have %v", want, have)
	}
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("error %v", err)
	}
}

func ExpectEqual[X comparable](t *testing.T, want, have X) {
	t.Helper()
	if want != have {
		t.Errorf("want %v, have %v", want, have)
	}
}

//
//
//

// memWriter captures every record issued through it, in issue order, so
// tests can assert on exactly what a sequence wrote.
type memWriter struct {
	resets  []tev.TraceTimestamp
	tracks  []trackWrite
	interns []internWrite
	events  []eventWrite
}

type trackWrite struct {
	uuid    uint64
	payload []byte
}

type internWrite struct {
	kind  tev.InternKind
	iid   uint64
	value string
}

type eventWrite struct {
	header tev.EventHeader
	fields map[string]any
}

var _ tev.Writer = (*memWriter)(nil)

func (w *memWriter) ResetSequence(ts tev.TraceTimestamp) {
	w.resets = append(w.resets, ts)
}

func (w *memWriter) WriteTrackDescriptor(uuid uint64, payload []byte) {
	w.tracks = append(w.tracks, trackWrite{uuid: uuid, payload: payload})
}

func (w *memWriter) WriteInternedString(kind tev.InternKind, iid uint64, value string) {
	w.interns = append(w.interns, internWrite{kind: kind, iid: iid, value: value})
}

func (w *memWriter) BeginEvent(hdr tev.EventHeader) tev.EventHandle {
	return &memHandle{w: w, ev: eventWrite{header: hdr}}
}

func (w *memWriter) writes() int {
	return len(w.resets) + len(w.tracks) + len(w.interns) + len(w.events)
}

type memHandle struct {
	w  *memWriter
	ev eventWrite
}

func (h *memHandle) AddField(key string, value any) {
	if h.ev.fields == nil {
		h.ev.fields = map[string]any{}
	}
	h.ev.fields[key] = value
}

func (h *memHandle) Finalize() {
	h.w.events = append(h.w.events, h.ev)
}

//
//
//

// newTestSource builds a source over a fresh registry with the given
// categories, failing the test on any construction error.
func newTestSource(t *testing.T, categories ...tev.Category) *tev.Source {
	t.Helper()

	registry, err := tev.NewRegistry(categories...)
	AssertNoError(t, err)

	src, err := tev.NewSource(registry)
	AssertNoError(t, err)

	return src
}

// startSession sets up and starts a session, and stops it at test cleanup.
func startSession(t *testing.T, src *tev.Source, cfg tev.Config) *tev.Session {
	t.Helper()

	sess, err := src.NewSession(cfg)
	AssertNoError(t, err)
	AssertNoError(t, sess.Start())
	t.Cleanup(sess.Stop)

	return sess
}
