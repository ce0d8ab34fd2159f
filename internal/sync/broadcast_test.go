package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterReplaysLatestToNewSubscriber(t *testing.T) {
	b := NewBroadcaster[int]()
	b.Publish(1)
	b.Publish(2)

	ch, cancel := b.Subscribe()
	defer cancel()

	select {
	case v := <-ch:
		assert.Equal(t, 2, v)
	default:
		t.Fatal("expected replay of the latest value")
	}
}

func TestBroadcasterFansOut(t *testing.T) {
	b := NewBroadcaster[string]()

	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	b.Publish("hello")
	assert.Equal(t, "hello", <-ch1)
	assert.Equal(t, "hello", <-ch2)
}

func TestBroadcasterLatest(t *testing.T) {
	b := NewBroadcaster[int]()

	_, ok := b.Latest()
	assert.False(t, ok)

	b.Publish(7)
	v, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestBroadcasterCancelStopsDelivery(t *testing.T) {
	b := NewBroadcaster[int]()

	ch, cancel := b.Subscribe()
	cancel()
	// Cancelling twice is harmless.
	cancel()

	b.Publish(1)
	_, open := <-ch
	assert.False(t, open)
}

func TestBroadcasterDropsWhenSubscriberIsFull(t *testing.T) {
	b := NewBroadcaster[int]()

	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < 100; i++ {
		b.Publish(i)
	}
	// The buffer bounds delivery; publishing never blocked.
	assert.LessOrEqual(t, len(ch), 16)
}
