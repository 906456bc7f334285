// Package eztev wraps a process-global track event source behind an
// easy-to-use API, for applications that don't need multiple sources or
// writer-affine sequences.
//
// Register the category table and a writer once at startup, then call
// [Begin], [End], [Instant], and [Count] from anywhere:
//
//	eztev.Register(tevjson.NewWriter(f),
//		tev.Category{Name: "net"},
//		tev.Category{Name: "render"},
//	)
//	...
//	eztev.Begin("net", "connect", tev.WithAnnotation("addr", addr))
//	defer eztev.End("net", "connect")
//
// The global sequence is guarded by a mutex, which trades the lock-free
// sequence ownership model for convenience. The disabled-path cost is
// unchanged: the mutex is only touched after a category check succeeds.
package eztev

import (
	"fmt"
	"sync"

	"github.com/tevtrace/tev"
)

var (
	mtx    sync.Mutex
	source *tev.Source
	seq    *tev.Sequence
)

// Register builds the global registry and source, and binds the global
// sequence to the given writer. It must be called once, before any session
// starts; calling it again is an error.
func Register(w tev.Writer, categories ...tev.Category) error {
	registry, err := tev.NewRegistry(categories...)
	if err != nil {
		return fmt.Errorf("register categories: %w", err)
	}

	src, err := tev.NewSource(registry)
	if err != nil {
		return fmt.Errorf("register source: %w", err)
	}

	mtx.Lock()
	defer mtx.Unlock()

	if source != nil {
		return fmt.Errorf("already registered")
	}

	source = src
	seq = src.NewSequence(w)
	return nil
}

// Source returns the global source, or nil before Register.
func Source() *tev.Source {
	mtx.Lock()
	defer mtx.Unlock()

	return source
}

// StartSession sets up and starts a session on the global source.
func StartSession(cfg tev.Config) (*tev.Session, error) {
	src := Source()
	if src == nil {
		return nil, fmt.Errorf("not registered")
	}

	sess, err := src.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	if err := sess.Start(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Begin records a slice-begin event in the given category.
func Begin(category, name string, opts ...tev.TraceOption) {
	trace(category, name, tev.TypeBegin, opts...)
}

// End records a slice-end event in the given category.
func End(category, name string, opts ...tev.TraceOption) {
	trace(category, name, tev.TypeEnd, opts...)
}

// Instant records an instant event in the given category.
func Instant(category, name string, opts ...tev.TraceOption) {
	trace(category, name, tev.TypeInstant, opts...)
}

// Count records a counter sample in the given category.
func Count(category, name string, value any, opts ...tev.TraceOption) {
	trace(category, name, tev.TypeCounter, append(opts, tev.WithValue(value))...)
}

func trace(category, name string, typ tev.EventType, opts ...tev.TraceOption) {
	mtx.Lock()
	src, sq := source, seq
	mtx.Unlock()
	if src == nil {
		return
	}

	record := func(instances uint8, category any) {
		mtx.Lock()
		defer mtx.Unlock()
		sq.TraceForCategory(instances, category, name, typ, opts...)
	}

	if index, ok := src.Registry().IndexOf(category); ok {
		src.CallIfCategoryEnabled(index, func(instances uint8) {
			record(instances, index)
		})
		return
	}

	src.CallIfEnabled(func(instances uint8) {
		record(instances, tev.DynamicCategory{Name: category})
	})
}
