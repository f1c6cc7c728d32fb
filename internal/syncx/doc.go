// Package syncx provides the wait/notify capability the spec's Design
// Notes call "CondVar": something a writer can broadcast on and a reader
// can wait on with a timeout. sync.Cond has no timeout primitive, so
// Broadcaster implements the contract with a channel that is swapped out
// on every broadcast instead.
//
// FutexBroadcaster (linux only) implements the same Notifier contract
// directly on top of the futex(2) syscall, operating on a single shared
// uint32 word rather than a Go channel. It exists to demonstrate the
// process-shared swap the spec anticipates ("a future shared-memory
// implementation supplies process-shared equivalents") without requiring
// the in-process Stream to depend on it.
package syncx

import "context"

// Notifier is the wait/notify contract a dataAvailableCV or
// spaceAvailableCV must satisfy.
type Notifier interface {
	// Broadcast wakes every goroutine currently blocked in Wait.
	Broadcast()
	// Wait blocks until the next Broadcast or until ctx is done,
	// reporting which happened first.
	Wait(ctx context.Context) (woken bool)
}
