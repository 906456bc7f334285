package tev_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/tevtrace/tev"
)

func TestNewSource(t *testing.T) {
	registry, err := tev.NewRegistry(tev.Category{Name: "net"})
	AssertNoError(t, err)

	_, err = tev.NewSource(registry)
	AssertNoError(t, err)

	t.Run("registry is claimed", func(t *testing.T) {
		if _, err := tev.NewSource(registry); err == nil {
			t.Fatal("want error registering the same registry twice, have nil")
		}
	})

	t.Run("nil registry", func(t *testing.T) {
		if _, err := tev.NewSource(nil); err == nil {
			t.Fatal("want error for nil registry, have nil")
		}
	})
}

func TestRegistryConstruction(t *testing.T) {
	t.Run("duplicate name", func(t *testing.T) {
		if _, err := tev.NewRegistry(tev.Category{Name: "x"}, tev.Category{Name: "x"}); err == nil {
			t.Fatal("want error for duplicate category, have nil")
		}
	})

	t.Run("empty name", func(t *testing.T) {
		if _, err := tev.NewRegistry(tev.Category{}); err == nil {
			t.Fatal("want error for empty category name, have nil")
		}
	})

	t.Run("lookup", func(t *testing.T) {
		registry, err := tev.NewRegistry(tev.Category{Name: "a"}, tev.Category{Name: "b"})
		AssertNoError(t, err)

		AssertEqual(t, 2, registry.Len())

		i, ok := registry.IndexOf("b")
		AssertEqual(t, true, ok)
		AssertEqual(t, 1, i)
		AssertEqual(t, "b", registry.CategoryAt(i).Name)

		_, ok = registry.IndexOf("nope")
		AssertEqual(t, false, ok)
	})
}

func TestSessionEnablement(t *testing.T) {
	src := newTestSource(t,
		tev.Category{Name: "db"},
		tev.Category{Name: "rpc"},
		tev.Category{Name: "net"},
		tev.Category{Name: "io", Tags: []string{tev.TagSlow}},
	)

	idx := func(name string) int {
		t.Helper()
		i, ok := src.Registry().IndexOf(name)
		AssertEqual(t, true, ok)
		return i
	}

	AssertEqual(t, false, src.IsEnabled())
	AssertEqual(t, false, src.IsCategoryEnabled(idx("net")))

	sess, err := src.NewSession(tev.Config{EnabledCategories: []string{"net"}})
	AssertNoError(t, err)
	AssertNoError(t, sess.Start())

	AssertEqual(t, true, src.IsEnabled())
	AssertEqual(t, true, sess.Started())
	AssertEqual(t, true, src.IsCategoryEnabled(idx("net")))
	AssertEqual(t, false, src.IsCategoryEnabled(idx("db")))
	AssertEqual(t, false, src.IsCategoryEnabled(idx("rpc")))
	AssertEqual(t, false, src.IsCategoryEnabled(idx("io")))

	sess.Stop()

	AssertEqual(t, false, src.IsEnabled())
	AssertEqual(t, false, sess.Started())
	AssertEqual(t, false, src.IsCategoryEnabled(idx("net")))
}

func TestSessionLifecycle(t *testing.T) {
	src := newTestSource(t, tev.Category{Name: "net"})

	t.Run("restart is an error", func(t *testing.T) {
		sess, err := src.NewSession(tev.Config{})
		AssertNoError(t, err)
		AssertNoError(t, sess.Start())
		if err := sess.Start(); err == nil {
			t.Fatal("want error starting a started session, have nil")
		}
		sess.Stop()
		if err := sess.Start(); err == nil {
			t.Fatal("want error restarting a stopped session, have nil")
		}
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		sess, err := src.NewSession(tev.Config{})
		AssertNoError(t, err)
		AssertNoError(t, sess.Start())
		sess.Stop()
		sess.Stop()
		AssertEqual(t, false, src.IsEnabled())
	})

	t.Run("stop finalizes setup-only sessions", func(t *testing.T) {
		sess, err := src.NewSession(tev.Config{})
		AssertNoError(t, err)
		sess.Stop()
		if err := sess.Start(); err == nil {
			t.Fatal("want error starting a finalized session, have nil")
		}
	})

	t.Run("bad config is a setup error", func(t *testing.T) {
		if _, err := src.NewSession(tev.Config{EnabledCategories: []string{"[x"}}); err == nil {
			t.Fatal("want error for malformed config, have nil")
		}
	})
}

func TestSessionCapacity(t *testing.T) {
	src := newTestSource(t, tev.Category{Name: "net"})

	sessions := make([]*tev.Session, 0, tev.MaxSessions)
	for i := 0; i < tev.MaxSessions; i++ {
		sess := startSession(t, src, tev.Config{})
		sessions = append(sessions, sess)
	}

	overflow, err := src.NewSession(tev.Config{})
	AssertNoError(t, err)
	if err := overflow.Start(); err == nil {
		t.Fatalf("want error starting session %d, have nil", tev.MaxSessions+1)
	}

	// Stopping any session frees its slot for reuse.
	sessions[3].Stop()

	replacement, err := src.NewSession(tev.Config{})
	AssertNoError(t, err)
	AssertNoError(t, replacement.Start())
	defer replacement.Stop()
}

func TestSessionSlotReuseUnderConcurrentStop(t *testing.T) {
	t.Parallel()

	categories := make([]tev.Category, 64)
	for i := range categories {
		categories[i] = tev.Category{Name: fmt.Sprintf("cat-%d", i)}
	}
	src := newTestSource(t, categories...)

	for iter := 0; iter < 500; iter++ {
		a, err := src.NewSession(tev.Config{})
		AssertNoError(t, err)
		AssertNoError(t, a.Start())

		b, err := src.NewSession(tev.Config{})
		AssertNoError(t, err)

		// Stop and Start race; Start may reclaim the slot Stop is freeing.
		var wg sync.WaitGroup
		var startErr error
		wg.Add(2)
		go func() { defer wg.Done(); a.Stop() }()
		go func() { defer wg.Done(); startErr = b.Start() }()
		wg.Wait()
		AssertNoError(t, startErr)

		// B is started and its default config matches every category: A's
		// teardown must not leave any of them disabled.
		for i := range categories {
			if !src.IsCategoryEnabled(i) {
				t.Fatalf("iteration %d: category %d disabled while a started session wants it", iter, i)
			}
		}

		b.Stop()
	}
}

//
//
//

type testObserver struct {
	starts []tev.SessionInfo
	stops  []tev.SessionInfo
}

func (o *testObserver) OnSessionStart(info tev.SessionInfo) { o.starts = append(o.starts, info) }
func (o *testObserver) OnSessionStop(info tev.SessionInfo)  { o.stops = append(o.stops, info) }

func TestSessionObservers(t *testing.T) {
	src := newTestSource(t, tev.Category{Name: "net"})

	obs := &testObserver{}
	AssertEqual(t, true, src.AddSessionObserver(obs))
	AssertEqual(t, false, src.AddSessionObserver(obs)) // duplicate
	AssertEqual(t, false, src.AddSessionObserver(nil))

	sess := startSession(t, src, tev.Config{})
	AssertEqual(t, 1, len(obs.starts))
	AssertEqual(t, sess.ID(), obs.starts[0].ID)
	if slot := obs.starts[0].Slot; slot < 0 || slot >= tev.MaxSessions {
		t.Fatalf("slot %d out of range", slot)
	}

	sess.Stop()
	AssertEqual(t, 1, len(obs.stops))
	AssertEqual(t, sess.ID(), obs.stops[0].ID)
	AssertEqual(t, obs.starts[0].Slot, obs.stops[0].Slot)

	src.RemoveSessionObserver(obs)
	sess2 := startSession(t, src, tev.Config{})
	sess2.Stop()
	AssertEqual(t, 1, len(obs.starts))
	AssertEqual(t, 1, len(obs.stops))
}

func TestSessionObserverCapacity(t *testing.T) {
	src := newTestSource(t, tev.Category{Name: "net"})

	observers := make([]*testObserver, tev.MaxObservers)
	for i := range observers {
		observers[i] = &testObserver{}
		AssertEqual(t, true, src.AddSessionObserver(observers[i]))
	}
	AssertEqual(t, false, src.AddSessionObserver(&testObserver{}))

	src.RemoveSessionObserver(observers[0])
	AssertEqual(t, true, src.AddSessionObserver(&testObserver{}))
}

func TestSessionIDsAreUnique(t *testing.T) {
	src := newTestSource(t, tev.Category{Name: "net"})

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		sess, err := src.NewSession(tev.Config{})
		AssertNoError(t, err)
		id := sess.ID().String()
		if seen[id] {
			t.Fatalf("duplicate session id %s", id)
		}
		seen[id] = true
	}
}

func TestNewSessionFromJSON(t *testing.T) {
	src := newTestSource(t, tev.Category{Name: "net"}, tev.Category{Name: "render"})

	sess, err := src.NewSessionFromJSON([]byte(`{"enabled_categories": ["net"]}`))
	AssertNoError(t, err)
	AssertNoError(t, sess.Start())
	defer sess.Stop()

	netIdx, _ := src.Registry().IndexOf("net")
	renderIdx, _ := src.Registry().IndexOf("render")
	AssertEqual(t, true, src.IsCategoryEnabled(netIdx))
	AssertEqual(t, false, src.IsCategoryEnabled(renderIdx))

	if _, err := src.NewSessionFromJSON([]byte(`{bogus`)); err == nil {
		t.Fatal("want error for malformed JSON, have nil")
	}
}

func TestDynamicCategorySourceLevel(t *testing.T) {
	src := newTestSource(t, tev.Category{Name: "net"})

	dyn := tev.DynamicCategory{Name: "custom.debug"}

	AssertEqual(t, false, src.IsDynamicCategoryEnabled(dyn)) // no session

	sess := startSession(t, src, tev.Config{DisabledCategories: []string{"custom.*"}})
	AssertEqual(t, false, src.IsDynamicCategoryEnabled(dyn))
	AssertEqual(t, true, src.IsDynamicCategoryEnabled(tev.DynamicCategory{Name: "other"}))
	sess.Stop()

	sess2 := startSession(t, src, tev.Config{})
	AssertEqual(t, true, src.IsDynamicCategoryEnabled(dyn))
	sess2.Stop()
}

func TestMultiSessionUnion(t *testing.T) {
	src := newTestSource(t,
		tev.Category{Name: "net"},
		tev.Category{Name: "render"},
	)

	netIdx, _ := src.Registry().IndexOf("net")
	renderIdx, _ := src.Registry().IndexOf("render")

	s1 := startSession(t, src, tev.Config{EnabledCategories: []string{"net"}})
	s2 := startSession(t, src, tev.Config{EnabledCategories: []string{"render"}})

	AssertEqual(t, true, src.IsCategoryEnabled(netIdx))
	AssertEqual(t, true, src.IsCategoryEnabled(renderIdx))

	s1.Stop()
	AssertEqual(t, false, src.IsCategoryEnabled(netIdx))
	AssertEqual(t, true, src.IsCategoryEnabled(renderIdx))

	s2.Stop()
	AssertEqual(t, false, src.IsCategoryEnabled(renderIdx))
	AssertEqual(t, false, src.IsEnabled())
}

func TestSessionInfoString(t *testing.T) {
	src := newTestSource(t, tev.Category{Name: "net"})

	sess, err := src.NewSession(tev.Config{EnabledCategories: []string{"net"}})
	AssertNoError(t, err)

	// The config survives setup normalized and printable.
	AssertEqual(t, "EnabledCategories=[net]", fmt.Sprint(sess.Config()))
}
