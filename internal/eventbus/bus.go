// Package eventbus provides a small topic-based, non-blocking pub/sub
// mechanism used to announce store mutations without coupling the HTTP
// handler to whoever wants to observe them. cmd/koppelnd creates the bus
// and hands it to internal/httpapi; nothing in this codebase subscribes to
// it. Kept from the lineage almost unmodified; the
// topic set is narrowed to this service's one domain event.
package eventbus

import (
	"context"
	"sync"
)

type Topic string

// TopicStoreUpdated is published once per successful PUT /hostname, after
// the store mutation but outside the store's lock.
const TopicStoreUpdated Topic = "store.updated"

// StoreUpdated is the Event payload published on TopicStoreUpdated.
type StoreUpdated struct {
	Subdomain string // subdomain key, e.g. "test" for "test.dyn.example.com"
	Family    string // "ipv4" or "ipv6"
}

type Event struct {
	Topic Topic
	Data  interface{}
}

type Subscriber struct {
	Ch   <-chan Event
	stop context.CancelFunc
}

// Bus fans events out to subscribers without blocking the publisher: a
// slow or absent subscriber simply misses events rather than stalling the
// HTTP handler that published them.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic][]chan Event
	buf  int
}

func New(buf int) *Bus {
	return &Bus{subs: make(map[Topic][]chan Event), buf: buf}
}

func (b *Bus) Publish(ctx context.Context, topic Topic, data interface{}) {
	b.mu.RLock()
	chs := b.subs[topic]
	b.mu.RUnlock()
	for _, ch := range chs {
		select {
		case ch <- Event{Topic: topic, Data: data}:
		default:
			// drop if subscriber is slow
		}
	}
}

func (b *Bus) Subscribe(ctx context.Context, topic Topic) *Subscriber {
	ch := make(chan Event, b.buf)
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	cctx, cancel := context.WithCancel(ctx)
	go func() {
		<-cctx.Done()
		b.mu.Lock()
		subs := b.subs[topic]
		for i, c := range subs {
			if c == ch {
				b.subs[topic] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(ch)
	}()
	return &Subscriber{Ch: ch, stop: cancel}
}

func (s *Subscriber) Close() {
	if s.stop != nil {
		s.stop()
	}
}
