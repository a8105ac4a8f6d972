// Package bus implements the in-process publish/subscribe message bus that
// every Vessel Frame component communicates over: decoded AIS messages,
// vessel lifecycle events, and screen-switch commands all travel as bus
// topics rather than direct method calls between components.
package bus

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/vesselframe/vesselframe/internal/logger"
)

// subscriberQueueSize is the per-subscriber channel capacity. Once full,
// the oldest queued message is dropped to make room for the new one: a
// slow subscriber loses history, not the publisher's progress.
const subscriberQueueSize = 1000

// Subscription is a single subscriber's handle on a topic. Receive values
// from Messages() until the bus shuts the subscription down, then call
// Close to release it early.
type Subscription struct {
	topic string
	ch    chan any

	bus    *Bus
	id     uint64
	mu     sync.Mutex
	closed bool
}

// Messages returns the channel this subscription receives published
// values on. The channel is closed when Close is called or the bus shuts
// down.
func (s *Subscription) Messages() <-chan any {
	return s.ch
}

// Close detaches the subscription from the bus and closes its channel.
// Safe to call more than once and safe to call concurrently with publish.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

// Bus is a topic-addressed publish/subscribe hub. The zero value is not
// usable; construct with New.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[uint64]*Subscription
	nextID      uint64
	closed      bool

	log zerolog.Logger
}

// New constructs an empty, ready-to-use Bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string]map[uint64]*Subscription),
		log:         logger.Component("bus"),
	}
}

// Subscribe registers a new subscriber on topic and returns its
// Subscription. The returned subscription's channel has capacity 1000;
// publishes that arrive while it is full drop the oldest queued message.
func (b *Bus) Subscribe(topic string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		topic: topic,
		ch:    make(chan any, subscriberQueueSize),
		bus:   b,
		id:    b.nextID,
	}

	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[uint64]*Subscription)
	}
	b.subscribers[topic][sub.id] = sub

	b.log.Debug().Str("topic", topic).Uint64("subscriber", sub.id).Msg("subscribed")
	return sub
}

// Publish delivers msg to every current subscriber of topic. Publish never
// blocks on a slow subscriber: a full subscriber queue has its oldest
// message dropped to make room.
func (b *Bus) Publish(topic string, msg any) {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subscribers[topic]))
	for _, sub := range b.subscribers[topic] {
		subs = append(subs, sub)
	}
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return
	}

	for _, sub := range subs {
		deliver(sub, msg)
	}
}

// deliver performs the non-blocking, drop-oldest-on-full send to a single
// subscriber's channel.
func deliver(sub *Subscription, msg any) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed {
		return
	}

	for {
		select {
		case sub.ch <- msg:
			return
		default:
		}

		select {
		case <-sub.ch:
		default:
		}
	}
}

// unsubscribe removes sub from the bus and closes its channel. Called by
// Subscription.Close and by Shutdown for every remaining subscriber.
func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if topicSubs, ok := b.subscribers[sub.topic]; ok {
		delete(topicSubs, sub.id)
		if len(topicSubs) == 0 {
			delete(b.subscribers, sub.topic)
		}
	}
	b.mu.Unlock()

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// Shutdown closes every outstanding subscription and marks the bus
// closed; subsequent Publish calls are no-ops. Shutdown is idempotent.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	all := make([]*Subscription, 0)
	for _, topicSubs := range b.subscribers {
		for _, sub := range topicSubs {
			all = append(all, sub)
		}
	}
	b.subscribers = make(map[string]map[uint64]*Subscription)
	b.mu.Unlock()

	for _, sub := range all {
		sub.mu.Lock()
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
		sub.mu.Unlock()
	}

	b.log.Info().Msg("bus shut down")
}
