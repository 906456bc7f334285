package tev

import (
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/tevtrace/tev/internal/tevdebug"
)

// SessionInfo identifies a session to observers.
type SessionInfo struct {
	ID     ulid.ULID `json:"id"`
	Slot   int       `json:"slot"`
	Config Config    `json:"config"`
}

// Session is one independently configured tracing instance. Its lifecycle is
// setup (NewSession) -> Start -> Stop; Stop is terminal, and the session's
// bitmap slot is freed for reuse by later sessions.
type Session struct {
	source *Source
	id     ulid.ULID
	config Config

	// Guarded by source.mtx.
	slot    int
	started bool
	stopped bool
}

// NewSession sets up a session with the given config. Setup parses and
// validates the filter only; no category state is touched until Start.
func (s *Source) NewSession(cfg Config) (*Session, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	return &Session{
		source: s,
		id:     ulid.Make(),
		config: cfg,
		slot:   -1,
	}, nil
}

// NewSessionFromJSON sets up a session from serialized config bytes.
func (s *Source) NewSessionFromJSON(data []byte) (*Session, error) {
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	return s.NewSession(cfg)
}

// ID returns the session's unique identifier.
func (sess *Session) ID() ulid.ULID {
	return sess.id
}

// Config returns the session's normalized category filter.
func (sess *Session) Config() Config {
	return sess.config
}

// Started reports whether the session is currently recording.
func (sess *Session) Started() bool {
	sess.source.mtx.Lock()
	defer sess.source.mtx.Unlock()

	return sess.started
}

// Start claims a free instance slot and sets the session's bit on every
// static category its config matches. It fails when the session was already
// started or stopped, or when all instance slots are busy.
//
// Enablement propagates to trace points with relaxed visibility: an event
// just after Start may still be missed, just as one shortly after Stop may
// still be recorded. That window is bounded and accepted; stronger ordering
// would tax every trace point. The bitmap writes themselves happen under the
// source lock, so overlapping Start and Stop calls cannot interleave a
// slot's teardown with its reuse.
func (sess *Session) Start() error {
	src := sess.source

	src.mtx.Lock()
	switch {
	case sess.stopped:
		src.mtx.Unlock()
		return fmt.Errorf("session %s: stopped, cannot restart", sess.id)
	case sess.started:
		src.mtx.Unlock()
		return fmt.Errorf("session %s: already started", sess.id)
	}

	slot := -1
	for i := range src.sessions {
		if src.sessions[i] == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		src.mtx.Unlock()
		return fmt.Errorf("session %s: all %d instance slots busy", sess.id, MaxSessions)
	}

	src.sessions[slot] = sess
	sess.slot = slot
	sess.started = true

	mask := uint32(1) << slot
	for i := 0; i < src.registry.Len(); i++ {
		if sess.config.Matches(src.registry.CategoryAt(i)) {
			src.registry.states[i].Or(mask)
		}
	}
	src.active.Or(mask)

	// A new session invalidates buffer-side incremental caches: every
	// sequence re-emits its definitions before its next event.
	src.generation.Add(1)

	observers := src.snapshotObserversLocked()
	src.mtx.Unlock()

	info := sess.infoWithSlot(slot)
	for _, obs := range observers {
		obs.OnSessionStart(info)
	}

	tevdebug.SessionStartCount.Add(1)
	return nil
}

// Stop clears the session's bit from every category and frees its slot. It
// is idempotent, and also finalizes sessions that were set up but never
// started. In-flight trace points may straddle the boundary; see Start.
func (sess *Session) Stop() {
	src := sess.source

	src.mtx.Lock()
	if !sess.started {
		sess.stopped = true
		src.mtx.Unlock()
		return
	}

	// Tear the bits down before freeing the slot, all under the lock: a
	// concurrent Start must not reclaim the slot while its bits are still
	// being cleared, or the new session's enablement would be wiped.
	slot := sess.slot
	mask := uint32(1) << slot
	for i := 0; i < src.registry.Len(); i++ {
		src.registry.states[i].And(^mask)
	}
	src.active.And(^mask)

	src.sessions[slot] = nil
	sess.started = false
	sess.stopped = true
	observers := src.snapshotObserversLocked()
	src.mtx.Unlock()

	info := sess.infoWithSlot(slot)
	for _, obs := range observers {
		obs.OnSessionStop(info)
	}

	tevdebug.SessionStopCount.Add(1)
}

func (sess *Session) infoWithSlot(slot int) SessionInfo {
	return SessionInfo{
		ID:     sess.id,
		Slot:   slot,
		Config: sess.config,
	}
}
