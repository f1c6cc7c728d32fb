//go:build linux

package syncx

import (
	"context"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// FutexBroadcaster implements Notifier directly on the futex(2) syscall,
// over a single shared uint32 "epoch" word. Unlike Broadcaster, the word
// itself carries the wakeup state, so FutexBroadcaster needs no private
// heap allocation that only this process can see — it is the shape a
// future process-shared port of this package would take, with word
// pointing into the mmap'd region's header instead of a process-local
// *uint32.
//
// Not used by the default in-process Stream; see syncx's package doc.
type FutexBroadcaster struct {
	word *uint32
}

// NewFutexBroadcaster wraps an existing uint32 cell as a futex word. The
// caller owns the word's memory and must zero-initialize it before the
// first use.
func NewFutexBroadcaster(word *uint32) *FutexBroadcaster {
	return &FutexBroadcaster{word: word}
}

// Broadcast increments the epoch and wakes every thread parked on it.
func (f *FutexBroadcaster) Broadcast() {
	atomic.AddUint32(f.word, 1)
	futexWake(f.word)
}

// Wait blocks until the epoch changes or ctx's deadline passes. While
// parked in the syscall only the deadline is honored: cancellation of a
// ctx without a deadline is observed only after the next wakeup.
func (f *FutexBroadcaster) Wait(ctx context.Context) bool {
	start := atomic.LoadUint32(f.word)

	for {
		if atomic.LoadUint32(f.word) != start {
			return true
		}

		var ts *unix.Timespec
		if deadline, ok := ctx.Deadline(); ok {
			d := time.Until(deadline)
			if d <= 0 {
				return false
			}
			t := unix.NsecToTimespec(d.Nanoseconds())
			ts = &t
		}

		err := futexWait(f.word, start, ts)
		switch err {
		case nil, unix.EAGAIN, unix.EINTR:
			// EAGAIN: word changed between our load and the syscall;
			// EINTR: spurious wake; either way re-check the epoch.
		case unix.ETIMEDOUT:
			return false
		default:
			return false
		}

		select {
		case <-ctx.Done():
			return false
		default:
		}
	}
}

func futexWait(word *uint32, expected uint32, timeout *unix.Timespec) error {
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(word)),
		uintptr(unix.FUTEX_WAIT),
		uintptr(expected),
		uintptr(unsafe.Pointer(timeout)),
		0, 0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}

func futexWake(word *uint32) {
	unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(word)),
		uintptr(unix.FUTEX_WAKE),
		uintptr(1<<31-1),
		0, 0, 0,
	)
}
