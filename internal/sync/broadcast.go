package sync

import "sync"

// Broadcaster fans values out to any number of subscribers. A new subscriber
// immediately receives the latest published value (if any) and then every
// subsequent one; there is no history replay beyond that. Publishing never
// blocks: a subscriber that stops draining loses intermediate values, which
// is fine for status/progress streams where only the latest matters.
type Broadcaster[T any] struct {
	mu        sync.Mutex
	subs      map[chan T]struct{}
	latest    T
	hasLatest bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[chan T]struct{})}
}

// Subscribe registers a subscriber and returns its channel plus a cancel
// function. The channel is buffered; the latest value is replayed first.
func (b *Broadcaster[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 16)
	b.mu.Lock()
	if b.hasLatest {
		ch <- b.latest
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a value to all current subscribers without blocking.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = v
	b.hasLatest = true
	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			// Slow subscriber, drop. It still holds the channel and
			// will see later values once it drains.
		}
	}
}

// Latest returns the most recently published value.
func (b *Broadcaster[T]) Latest() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, b.hasLatest
}
