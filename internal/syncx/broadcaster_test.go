package syncx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterWakesWaiter(t *testing.T) {
	b := NewBroadcaster()

	done := make(chan bool, 1)
	go func() {
		done <- b.Wait(context.Background())
	}()

	// Give the waiter a chance to block before broadcasting; if it
	// doesn't, the broadcast is simply a bit early and the waiter still
	// observes the new channel as open (and correctly blocks, which
	// would make this test fail after its one-second timeout) -- so sleep
	// a little to make the race
	// vanishingly unlikely rather than structurally impossible.
	time.Sleep(10 * time.Millisecond)
	b.Broadcast()

	select {
	case woken := <-done:
		assert.True(t, woken)
	case <-time.After(time.Second):
		t.Fatal("waiter was never woken")
	}
}

func TestBroadcasterWaitRespectsContext(t *testing.T) {
	b := NewBroadcaster()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	woken := b.Wait(ctx)
	assert.False(t, woken)
}

func TestBroadcasterChanCapturedBeforeBroadcastStillWakes(t *testing.T) {
	b := NewBroadcaster()

	// Capture the channel first, exactly as a check-then-wait predicate
	// loop must: a Broadcast landing after this point but before WaitOn
	// is called must still be observed, not missed.
	ch := b.Chan()
	b.Broadcast()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.True(t, b.WaitOn(ctx, ch))
}

func TestBroadcasterWaitOnStaleChannelIgnoresLaterBroadcast(t *testing.T) {
	b := NewBroadcaster()

	stale := b.Chan()
	b.Broadcast() // closes stale, swaps in a new channel
	b.Broadcast() // second broadcast only affects the new channel

	// stale is already closed from the first Broadcast, so WaitOn
	// returns immediately regardless of the second broadcast -- this
	// just documents that a captured channel is a one-shot wakeup.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.True(t, b.WaitOn(ctx, stale))
}

func TestBroadcasterMultipleWaiters(t *testing.T) {
	b := NewBroadcaster()

	const n = 8
	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		go func() {
			results <- b.Wait(context.Background())
		}()
	}

	time.Sleep(10 * time.Millisecond)
	b.Broadcast()

	for i := 0; i < n; i++ {
		select {
		case woken := <-results:
			require.True(t, woken)
		case <-time.After(time.Second):
			t.Fatal("not all waiters were woken")
		}
	}
}
