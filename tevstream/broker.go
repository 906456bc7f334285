// Package tevstream fans written trace records out to live subscribers. It
// sits behind a [tevjson.WithObserver] hook: every record a writer emits is
// also published to the broker, where subscribers receive it on buffered
// channels with per-subscriber accounting.
package tevstream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tevtrace/tev/tevjson"
)

// Broker distributes records to subscribers. Slow subscribers drop records
// rather than stall the publisher: publishing happens downstream of trace
// points and must never block them.
type Broker struct {
	mtx         sync.Mutex
	subscribers map[chan<- tevjson.Record]*subscriber
	active      atomic.Bool
}

type subscriber struct {
	allow func(tevjson.Record) bool
	ch    chan<- tevjson.Record
	stats Stats
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: map[chan<- tevjson.Record]*subscriber{},
	}
}

// Publish offers the record to every subscriber. With no subscribers it
// costs one atomic load.
func (b *Broker) Publish(rec tevjson.Record) {
	if !b.active.Load() { // optimization
		return
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()

	for _, sub := range b.subscribers {
		if sub.allow != nil && !sub.allow(rec) {
			sub.stats.Skips++
			continue
		}
		select {
		case sub.ch <- rec:
			sub.stats.Sends++
		default:
			sub.stats.Drops++
		}
	}
}

// Subscribe delivers matching records to ch until the context is canceled,
// then returns the subscriber's stats. A nil allow function matches every
// record.
func (b *Broker) Subscribe(ctx context.Context, allow func(tevjson.Record) bool, ch chan<- tevjson.Record) (Stats, error) {
	if err := func() error {
		b.mtx.Lock()
		defer b.mtx.Unlock()

		if _, ok := b.subscribers[ch]; ok {
			return fmt.Errorf("already subscribed")
		}

		b.subscribers[ch] = &subscriber{
			allow: allow,
			ch:    ch,
		}

		b.active.Store(len(b.subscribers) > 0)

		return nil
	}(); err != nil {
		return Stats{}, err
	}

	<-ctx.Done()

	sub := func() *subscriber {
		b.mtx.Lock()
		defer b.mtx.Unlock()

		sub := b.subscribers[ch]
		delete(b.subscribers, ch)

		b.active.Store(len(b.subscribers) > 0)

		return sub
	}()
	if sub == nil {
		return Stats{}, fmt.Errorf("not subscribed (programmer error)")
	}

	return sub.stats, ctx.Err()
}

// Stats returns the current stats for an active subscription.
func (b *Broker) Stats(ch chan<- tevjson.Record) (Stats, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	sub, ok := b.subscribers[ch]
	if !ok {
		return Stats{}, fmt.Errorf("not subscribed")
	}

	return sub.stats, nil
}

// Stats accounts one subscription's record flow.
type Stats struct {
	Skips uint64 `json:"skips"`
	Sends uint64 `json:"sends"`
	Drops uint64 `json:"drops"`
}

func (s Stats) String() string {
	return fmt.Sprintf("skips=%d sends=%d drops=%d", s.Skips, s.Sends, s.Drops)
}
