package sds

import (
	"context"
	"time"
)

// Writer is the single producer of a stream. Construction of a Writer
// (via Stream.CreateWriter) enforces the at-most-one-writer invariant.
type Writer struct {
	r      *region
	policy WriterPolicy
}

func newWriter(r *region, policy WriterPolicy, force bool) (*Writer, Status) {
	r.writerEnableMu.Lock()
	defer r.writerEnableMu.Unlock()

	if r.h.writerEnabled().Load() && !force {
		return nil, StatusInvalid
	}

	r.h.writeEndCursor().Store(r.h.writeStartCursor().Load())
	r.h.writerClosed().Store(false)
	r.h.writerEnabled().Store(true)

	return &Writer{r: r, policy: policy}, StatusOK
}

// Tell returns the writer's current start cursor.
func (w *Writer) Tell() uint64 {
	return w.r.h.writeStartCursor().Load()
}

// Write copies up to len(buf)/wordSize words from buf into the stream, applying
// w.policy's blocking/clamping rules, and returns the number of words
// written.
//
// Validation order and clamping rules follow spec §4.3:
//   - nil/empty buf or a disabled writer fail immediately;
//   - a request larger than the ring is clamped to the ring size under
//     NonBlockable and WriterBlocking, and rejected with WouldBlock under
//     AllOrNothing;
//   - AllOrNothing and WriterBlocking check the oldest-unconsumed barrier
//     before committing; NonBlockable never does, racing with slow
//     readers by design (spec §9, Open Question 1 — this port retains
//     the race for latency).
func (w *Writer) Write(ctx context.Context, buf []byte) (int, Status) {
	if len(buf) == 0 {
		return 0, StatusInvalid
	}
	if !w.r.h.writerEnabled().Load() {
		return 0, StatusClosed
	}

	wordSize := uint64(w.r.l.wordSize)
	if uint64(len(buf))%wordSize != 0 {
		return 0, StatusInvalid
	}
	nWords := uint64(len(buf)) / wordSize
	dataSize := w.r.dataSizeWords()

	if nWords > dataSize {
		switch w.policy {
		case AllOrNothing:
			return 0, StatusWouldBlock
		default:
			// NonBlockable and WriterBlocking both clamp to a single
			// ring's worth per call, taking the leading words so a
			// caller retrying with buf[n:] makes forward progress
			// (spec §4.3: "BLOCKING waits then writes up to dataSize
			// per call").
			nWords = dataSize
			buf = buf[:int(nWords*wordSize)]
		}
	}

	start := w.r.h.writeStartCursor().Load()
	end := start + nWords

	switch w.policy {
	case AllOrNothing:
		w.r.backwardSeekMu.Lock()
		w.r.recomputeOldestUnconsumed()
		ok := end-w.r.h.oldestUnconsumedCursor().Load() <= dataSize
		w.r.backwardSeekMu.Unlock()
		if !ok {
			return 0, StatusWouldBlock
		}

	case WriterBlocking:
		for {
			w.r.backwardSeekMu.Lock()
			w.r.recomputeOldestUnconsumed()
			ch := w.r.spaceAvailable.Chan()
			ok := end-w.r.h.oldestUnconsumedCursor().Load() <= dataSize
			w.r.backwardSeekMu.Unlock()
			if ok {
				break
			}

			// ch is captured inside the same backwardSeekMu critical
			// section as the barrier check, and recomputeOldestUnconsumed
			// only ever broadcasts while holding backwardSeekMu (see
			// region.go), so a reader release racing this loop either
			// completes its broadcast before we lock above (and we see
			// the updated cursor in ok) or after we unlock (and it closes
			// exactly the ch we are about to wait on). No wakeup is lost.
			if !w.r.spaceAvailable.WaitOn(ctx, ch) {
				return 0, StatusTimedOut
			}
		}

	case NonBlockable:
		// No barrier check: a slow reader may be overrun. See doc comment.
	}

	w.r.h.writeEndCursor().Store(end)

	w.copyIn(start, dataSize, wordSize, buf)

	// Publish the new start cursor, then wake blocked readers. This step
	// is the same under every policy and takes no lock: the store always
	// precedes the Broadcast, and Reader.waitForData snapshots the
	// channel before checking the cursor, so no wakeup is lost.
	w.r.h.writeStartCursor().Store(end)
	w.r.dataAvailable.Broadcast()

	return int(nWords), StatusOK
}

// copyIn writes buf into the ring starting at word index start, wrapping
// at most once (buf is already clamped to at most dataSize words).
func (w *Writer) copyIn(start, dataSize, wordSize uint64, buf []byte) {
	data := w.r.l.data(w.r.buf)
	off := (start % dataSize) * wordSize

	n := copy(data[off:], buf)
	if n < len(buf) {
		copy(data[0:], buf[n:])
	}
}

// Close idempotently disables the writer, marks it closed and wakes
// every waiting reader so they can observe StatusClosed.
func (w *Writer) Close() Status {
	w.r.writerEnableMu.Lock()
	defer w.r.writerEnableMu.Unlock()

	if !w.r.h.writerEnabled().Load() {
		return StatusOK
	}
	w.r.h.writerEnabled().Store(false)
	w.r.h.writerClosed().Store(true)
	w.r.dataAvailable.Broadcast()
	return StatusOK
}

// WithTimeout builds a context carrying the spec's millisecond timeout
// convention (0 means wait forever) on top of a parent context.
func WithTimeout(parent context.Context, timeoutMS int64) (context.Context, context.CancelFunc) {
	if timeoutMS <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, time.Duration(timeoutMS)*time.Millisecond)
}
