package broadcast

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// TopicConfigurationChanged carries configuration change events.
const TopicConfigurationChanged = "CONFIGURATION_CHANGED"

var ErrClosed = errors.New("broadcaster closed")

// Subscription receives values published after it was created.
type Subscription[T any] struct {
	id     string
	values chan T
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription[T]) ID() string {
	return s.id
}

// C yields published values. It is never closed; select on Done to detect
// unsubscription.
func (s *Subscription[T]) C() <-chan T {
	return s.values
}

func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription[T]) cancel() {
	s.once.Do(func() { close(s.done) })
}

type Broadcaster[T any] struct {
	topic string

	// publishMutex serialises Publish calls.
	publishMutex sync.Mutex

	mutex       sync.RWMutex
	subscribers map[string]*Subscription[T]
	closed      bool
}

func New[T any](topic string) *Broadcaster[T] {
	return &Broadcaster[T]{
		topic:       topic,
		subscribers: make(map[string]*Subscription[T]),
	}
}

func (b *Broadcaster[T]) Topic() string {
	return b.topic
}

// Subscribe registers id with a buffer of the given size.
func (b *Broadcaster[T]) Subscribe(id string, buffer int) (*Subscription[T], error) {
	if id == "" {
		return nil, errors.New("subscriber id required")
	}
	if buffer < 0 {
		buffer = 0
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return nil, fmt.Errorf("%s: subscriber %q already registered", b.topic, id)
	}

	sub := &Subscription[T]{
		id:     id,
		values: make(chan T, buffer),
		done:   make(chan struct{}),
	}
	b.subscribers[id] = sub
	return sub, nil
}

// Unsubscribe removes id. A Publish blocked on this subscriber moves on.
func (b *Broadcaster[T]) Unsubscribe(id string) {
	b.mutex.Lock()
	sub, ok := b.subscribers[id]
	delete(b.subscribers, id)
	b.mutex.Unlock()

	if ok {
		sub.cancel()
	}
}

// Subscribers returns the registered ids in order.
func (b *Broadcaster[T]) Subscribers() []string {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return slices.Sorted(maps.Keys(b.subscribers))
}

// Publish delivers value to every subscriber registered when the call
// starts. It blocks on a full subscriber until the value is accepted, the
// subscriber leaves, or ctx is done.
func (b *Broadcaster[T]) Publish(ctx context.Context, value T) error {
	b.publishMutex.Lock()
	defer b.publishMutex.Unlock()

	b.mutex.RLock()
	if b.closed {
		b.mutex.RUnlock()
		return ErrClosed
	}
	targets := make([]*Subscription[T], 0, len(b.subscribers))
	for _, id := range slices.Sorted(maps.Keys(b.subscribers)) {
		targets = append(targets, b.subscribers[id])
	}
	b.mutex.RUnlock()

	for _, sub := range targets {
		select {
		case sub.values <- value:
		case <-sub.done:
		case <-ctx.Done():
			return fmt.Errorf("publish to %s: %w", b.topic, ctx.Err())
		}
	}
	return nil
}

// Close unsubscribes everyone and rejects further use.
func (b *Broadcaster[T]) Close() {
	b.mutex.Lock()
	subs := b.subscribers
	b.subscribers = make(map[string]*Subscription[T])
	b.closed = true
	b.mutex.Unlock()

	for _, sub := range subs {
		sub.cancel()
	}
}
