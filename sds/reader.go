package sds

import (
	"context"
	"sync/atomic"
)

// Reader is one of up to maxReaders consumers attached to a stream. Each
// reader owns a private cursor and close index; readers never interfere
// with one another's progress beyond the shared oldest-unconsumed
// barrier they all contribute to.
type Reader struct {
	r      *region
	id     uint32
	policy ReaderPolicy

	resetOnOverrun bool
}

// newReader finds (or, with force, takes) a free slot and enables it,
// positioning the new reader per spec §4.4: at the writer's current
// start cursor if startWithNewData, otherwise seeked back to the oldest
// surviving data.
func newReader(r *region, policy ReaderPolicy, startWithNewData bool, resetOnOverrun bool, requestedID int, force bool) (*Reader, Status) {
	r.readerEnableMu.Lock()
	defer r.readerEnableMu.Unlock()

	slot, ok := allocateReaderSlot(r, requestedID, force)
	if !ok {
		return nil, StatusInvalid
	}

	start := r.h.writeStartCursor().Load()
	r.l.cursorSlot(r.buf, slot).Store(start)
	r.l.closeIndexSlot(r.buf, slot).Store(noClose)
	r.l.enabledSlot(r.buf, slot).Store(true)

	rd := &Reader{r: r, id: slot, policy: policy, resetOnOverrun: resetOnOverrun}

	if !startWithNewData {
		dataSize := r.dataSizeWords()
		oldest := start
		if start > dataSize {
			oldest = start - dataSize
		} else {
			oldest = 0
		}
		r.l.cursorSlot(r.buf, slot).Store(oldest)
	}

	r.backwardSeekMu.Lock()
	r.recomputeOldestUnconsumed()
	r.backwardSeekMu.Unlock()

	return rd, StatusOK
}

func allocateReaderSlot(r *region, requestedID int, force bool) (uint32, bool) {
	if requestedID >= 0 {
		slot := uint32(requestedID)
		if slot >= r.l.maxReaders {
			return 0, false
		}
		if r.l.enabledSlot(r.buf, slot).Load() && !force {
			return 0, false
		}
		return slot, true
	}

	for i := uint32(0); i < r.l.maxReaders; i++ {
		if !r.l.enabledSlot(r.buf, i).Load() {
			return i, true
		}
	}
	return 0, false
}

// ID returns this reader's slot index within the stream.
func (rd *Reader) ID() uint32 { return rd.id }

// Read copies up to len(buf)/wordSize words from the stream into buf, applying
// rd.policy's blocking rules, and returns the number of words copied.
//
// See spec §4.4 for the full decision tree this follows: precondition
// checks, close-index check, overrun check (with optional reset), the
// would-block/blocking branch when nothing is available yet, the
// triple-min copy length, and the post-advance overrun re-check.
func (rd *Reader) Read(ctx context.Context, buf []byte) (int, Status) {
	if len(buf) == 0 {
		return 0, StatusInvalid
	}
	wordSize := uint64(rd.r.l.wordSize)
	if uint64(len(buf)) < wordSize {
		return 0, StatusBytesLessThanWordSize
	}
	if !rd.r.l.enabledSlot(rd.r.buf, rd.id).Load() {
		return 0, StatusClosed
	}

	cursorCell := rd.r.l.cursorSlot(rd.r.buf, rd.id)
	closeCell := rd.r.l.closeIndexSlot(rd.r.buf, rd.id)

	if cursorCell.Load() >= closeCell.Load() {
		return 0, StatusClosed
	}

	if st, handled := rd.checkOverrun(cursorCell); handled {
		return 0, st
	}

	st, ok := rd.waitForData(ctx, cursorCell)
	if !ok {
		return 0, st
	}
	available := rd.r.h.writeStartCursor().Load() - cursorCell.Load()
	if available == 0 {
		return 0, StatusClosed
	}

	dataSize := rd.r.dataSizeWords()
	nWords := uint64(len(buf)) / wordSize
	cur := cursorCell.Load()

	if n := available; n < nWords {
		nWords = n
	}
	if n := closeCell.Load() - cur; n < nWords {
		nWords = n
	}
	wordsUntilWrap := dataSize - (cur % dataSize)
	if wordsUntilWrap < nWords {
		nWords = wordsUntilWrap
	}

	rd.copyOut(cur, dataSize, wordSize, buf, nWords)
	cursorCell.Add(nWords)

	if st, handled := rd.checkOverrun(cursorCell); handled {
		return 0, st
	}

	rd.r.backwardSeekMu.Lock()
	rd.r.recomputeOldestUnconsumed()
	rd.r.backwardSeekMu.Unlock()

	return int(nWords), StatusOK
}

// checkOverrun reports whether the reader has fallen more than dataSize
// words behind the writer. If resetOnOverrun is set, it seeks the reader
// forward to the writer's current start cursor and reports
// StatusOverrunReset; otherwise it reports StatusOverrun.
func (rd *Reader) checkOverrun(cursorCell *atomic.Uint64) (Status, bool) {
	end := rd.r.h.writeEndCursor().Load()
	dataSize := rd.r.dataSizeWords()

	if end-cursorCell.Load() <= dataSize {
		return StatusOK, false
	}

	if !rd.resetOnOverrun {
		return StatusOverrun, true
	}

	cursorCell.Store(rd.r.h.writeStartCursor().Load())
	rd.r.backwardSeekMu.Lock()
	rd.r.recomputeOldestUnconsumed()
	rd.r.backwardSeekMu.Unlock()
	return StatusOverrunReset, true
}

// waitForData blocks (under Blocking policy) until data becomes
// available, the writer closes, or ctx ends. ok is false when the
// caller should return immediately with the returned status.
//
// Every iteration captures dataAvailable's current channel before
// evaluating the predicate, mirroring the happens-before a real
// condition variable gets from holding its mutex across a
// check-then-wait (spec §5's dataAvailableMutex-guarded
// std::condition_variable::wait(lock, predicate)). A writer's
// writeStartCursor store always precedes its Broadcast, so any write
// that lands after we snapshot the channel either is already visible in
// the predicate check below, or will close exactly the channel we are
// about to wait on -- there is no window in which a broadcast can slip
// past unnoticed.
func (rd *Reader) waitForData(ctx context.Context, cursorCell *atomic.Uint64) (Status, bool) {
	for {
		ch := rd.r.dataAvailable.Chan()

		if rd.r.h.writeStartCursor().Load() > cursorCell.Load() {
			return StatusOK, true
		}
		if rd.r.h.writerClosed().Load() {
			return StatusClosed, false
		}
		if rd.policy == NonBlocking {
			return StatusWouldBlock, false
		}

		if !rd.r.dataAvailable.WaitOn(ctx, ch) {
			return StatusTimedOut, false
		}
	}
}

func (rd *Reader) copyOut(cur, dataSize, wordSize uint64, dst []byte, nWords uint64) {
	data := rd.r.l.data(rd.r.buf)
	off := (cur % dataSize) * wordSize
	copy(dst, data[off:off+nWords*wordSize])
}

// Seek moves the reader's cursor per spec §4.4. Backward seeks take
// backwardSeekMu first to close the TOCTOU window with a concurrent
// writer advancing past the target. Seeking past the reader's own close
// index, or to a position already overwritten by the writer, fails and
// leaves the cursor unchanged.
func (rd *Reader) Seek(offset int64, ref SeekReference) Status {
	cursorCell := rd.r.l.cursorSlot(rd.r.buf, rd.id)
	closeCell := rd.r.l.closeIndexSlot(rd.r.buf, rd.id)

	cur := cursorCell.Load()
	var target uint64
	switch ref {
	case Absolute:
		if offset < 0 {
			return StatusInvalid
		}
		target = uint64(offset)
	case AfterReader:
		if offset < 0 {
			return StatusInvalid
		}
		target = cur + uint64(offset)
	case BeforeReader:
		if offset < 0 || uint64(offset) > cur {
			return StatusInvalid
		}
		target = cur - uint64(offset)
	case BeforeWriter:
		start := rd.r.h.writeStartCursor().Load()
		if offset < 0 || uint64(offset) > start {
			return StatusInvalid
		}
		target = start - uint64(offset)
	default:
		return StatusInvalid
	}

	if target > closeCell.Load() {
		return StatusInvalid
	}

	backward := target < cur
	if backward {
		rd.r.backwardSeekMu.Lock()
		defer rd.r.backwardSeekMu.Unlock()
	}

	if rd.r.h.writeEndCursor().Load()-target > rd.r.dataSizeWords() {
		return StatusInvalid
	}

	cursorCell.Store(target)

	if backward {
		rd.r.recomputeOldestUnconsumed()
	} else {
		rd.r.backwardSeekMu.Lock()
		rd.r.recomputeOldestUnconsumed()
		rd.r.backwardSeekMu.Unlock()
	}

	return StatusOK
}

// Tell returns the reader's absolute index for Absolute, 0 for
// AfterReader/BeforeReader, and the number of words currently buffered
// ahead of the reader for BeforeWriter.
func (rd *Reader) Tell(ref SeekReference) uint64 {
	cursorCell := rd.r.l.cursorSlot(rd.r.buf, rd.id)
	switch ref {
	case Absolute:
		return cursorCell.Load()
	case BeforeWriter:
		start := rd.r.h.writeStartCursor().Load()
		cur := cursorCell.Load()
		if start < cur {
			return 0
		}
		return start - cur
	default:
		return 0
	}
}

// Close sets this reader's close index. With CloseImmediately, offset
// is counted from the reader's cursor, so offset 0 terminates the reader
// on its next Read. With
// CloseAfterDrainingCurrentBuffer, offset 0 sets the close index to the
// writer's current start cursor, letting the reader drain whatever is
// already buffered before terminating.
//
// Close never wakes an already-waiting blocking Read (spec §5 — this
// asymmetry is retained as specified, not treated as a bug).
func (rd *Reader) Close(offset uint64, point ClosePoint) Status {
	var target uint64
	switch point {
	case CloseImmediately:
		cur := rd.r.l.cursorSlot(rd.r.buf, rd.id).Load()
		target = cur + offset
	case CloseAfterDrainingCurrentBuffer:
		target = rd.r.h.writeStartCursor().Load() + offset
	default:
		return StatusInvalid
	}

	rd.r.l.closeIndexSlot(rd.r.buf, rd.id).Store(target)
	return StatusOK
}

// release is called from Stream when the caller is done with this
// reader: per spec §4.4, the cursor is first moved forward to the
// write-start cursor so a zombie cursor can never become the oldest
// unconsumed, and only then is the slot disabled.
func (rd *Reader) release() {
	cursorCell := rd.r.l.cursorSlot(rd.r.buf, rd.id)
	cursorCell.Store(rd.r.h.writeStartCursor().Load())

	rd.r.readerEnableMu.Lock()
	rd.r.l.enabledSlot(rd.r.buf, rd.id).Store(false)
	rd.r.backwardSeekMu.Lock()
	rd.r.recomputeOldestUnconsumed()
	rd.r.backwardSeekMu.Unlock()
	rd.r.readerEnableMu.Unlock()
}
