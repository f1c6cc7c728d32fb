package sds

import (
	"fmt"
	"sync"

	"github.com/yanet-platform/sds/internal/syncx"
)

// region owns a backing []byte and the Go-level synchronization
// primitives guarding it: attachMutex, writerEnableMutex,
// readerEnableMutex and backwardSeekMutex from spec §3, plus the
// dataAvailable/spaceAvailable broadcasters from §5.
//
// Mutexes and condition variables are not serialized into the byte
// region itself: spec §4.2 allows "ordinary sequentially-consistent"
// atomics for a single-process target, and a region's mutexes only ever
// need to coordinate goroutines inside this process. A process wanting
// true cross-handle sharing of one buffer must share the *region value
// (via Stream.Attach), not just the []byte — see DESIGN.md for the
// tradeoff this implies for Open.
type region struct {
	buf []byte
	l   layout
	h   header

	attachMu       sync.Mutex
	writerEnableMu sync.Mutex
	readerEnableMu sync.Mutex
	backwardSeekMu sync.Mutex

	dataAvailable  *syncx.Broadcaster
	spaceAvailable *syncx.Broadcaster
}

// createRegion placement-initializes a fresh region over buf. It fails
// if wordSize or maxReaders is zero, or if buf is smaller than
// sizeFor(1, wordSize, maxReaders).
func createRegion(buf []byte, wordSize, maxReaders uint32) (*region, error) {
	if wordSize == 0 {
		return nil, fmt.Errorf("sds: wordSize must be positive")
	}
	if maxReaders == 0 {
		return nil, fmt.Errorf("sds: maxReaders must be positive")
	}

	minSize := sizeFor(1, wordSize, maxReaders)
	if uint64(len(buf)) < minSize {
		return nil, fmt.Errorf("sds: region too small: have %d bytes, need at least %d", len(buf), minSize)
	}

	preDataOff := headerSlots*cellSize + 3*int(maxReaders)*cellSize
	dataAlign := int(wordSize)
	if dataAlign < cellSize {
		dataAlign = cellSize
	}
	dataOff := alignUp(preDataOff, dataAlign)
	dataBytes := len(buf) - dataOff
	dataBytes -= dataBytes % int(wordSize)
	if dataBytes <= 0 {
		return nil, fmt.Errorf("sds: region too small: have %d bytes, need at least %d", len(buf), minSize)
	}

	l := layout{
		wordSize:   wordSize,
		maxReaders: maxReaders,
		nWords:     uint64(dataBytes) / uint64(wordSize),
		headerOff:  0,
		enabledOff: headerSlots * cellSize,
		cursorOff:  headerSlots*cellSize + int(maxReaders)*cellSize,
		closeOff:   headerSlots*cellSize + 2*int(maxReaders)*cellSize,
		dataOff:    dataOff,
		dataSize:   dataBytes,
	}

	initHeader(buf, wordSize, maxReaders)
	l.initReaderSlots(buf)

	return &region{
		buf:            buf,
		l:              l,
		h:              header{buf: buf},
		dataAvailable:  syncx.NewBroadcaster(),
		spaceAvailable: syncx.NewBroadcaster(),
	}, nil
}

// openRegion validates an existing region's header against this
// implementation's traits and returns a fresh Go-level wrapper around it,
// incrementing the on-buffer reference count.
//
// Per spec §4.1, attach requires referenceCount > 0 and referenceCount <
// math.MaxUint32, then increments it.
func openRegion(buf []byte) (*region, error) {
	if len(buf) < headerSlots*cellSize {
		return nil, fmt.Errorf("sds: region too small to hold a header")
	}

	h := header{buf: buf}
	if h.magic() != magic {
		return nil, fmt.Errorf("sds: magic mismatch: got 0x%x want 0x%x", h.magic(), magic)
	}
	if h.version() != headerVersion {
		return nil, fmt.Errorf("sds: version mismatch: got %d want %d", h.version(), headerVersion)
	}
	if h.traitsHash() != traitsHash() {
		return nil, fmt.Errorf("sds: traits hash mismatch: this region was not created by a compatible implementation")
	}

	wordSize := h.wordSize()
	maxReaders := h.maxReaders()
	dataAreaOff := headerSlots*cellSize + 3*int(maxReaders)*cellSize
	dataAlign := int(wordSize)
	if dataAlign < cellSize {
		dataAlign = cellSize
	}
	dataOff := alignUp(dataAreaOff, dataAlign)
	if dataOff > len(buf) {
		return nil, fmt.Errorf("sds: region too small for its own header-declared maxReaders=%d", maxReaders)
	}
	dataBytes := len(buf) - dataOff
	dataBytes -= dataBytes % int(wordSize)

	l := layout{
		wordSize:   wordSize,
		maxReaders: maxReaders,
		nWords:     uint64(dataBytes) / uint64(wordSize),
		headerOff:  0,
		enabledOff: headerSlots * cellSize,
		cursorOff:  headerSlots*cellSize + int(maxReaders)*cellSize,
		closeOff:   headerSlots*cellSize + 2*int(maxReaders)*cellSize,
		dataOff:    dataOff,
		dataSize:   dataBytes,
	}

	refc := h.referenceCount()
	for {
		cur := refc.Load()
		if cur == 0 {
			return nil, fmt.Errorf("sds: region has no live handles")
		}
		if cur == ^uint32(0) {
			return nil, fmt.Errorf("sds: region reference count saturated")
		}
		if refc.CompareAndSwap(cur, cur+1) {
			break
		}
	}

	return &region{
		buf:            buf,
		l:              l,
		h:              h,
		dataAvailable:  syncx.NewBroadcaster(),
		spaceAvailable: syncx.NewBroadcaster(),
	}, nil
}

// attach increments the reference count of an already-live region and
// returns the same region value, so the caller shares its mutexes and
// broadcasters (unlike openRegion, which only shares the buffer).
func (r *region) attach() *region {
	r.attachMu.Lock()
	defer r.attachMu.Unlock()

	r.h.referenceCount().Add(1)
	return r
}

// detach decrements the reference count and reports whether this was the
// last live handle.
func (r *region) detach() (last bool) {
	r.attachMu.Lock()
	defer r.attachMu.Unlock()

	n := r.h.referenceCount().Add(^uint32(0)) // -1
	return n == 0
}

// recomputeOldestUnconsumed implements spec §4.6. Callers must hold
// backwardSeekMu.
func (r *region) recomputeOldestUnconsumed() {
	oldest := noClose
	for i := uint32(0); i < r.l.maxReaders; i++ {
		if !r.l.enabledSlot(r.buf, i).Load() {
			continue
		}
		c := r.l.cursorSlot(r.buf, i).Load()
		if c < oldest {
			oldest = c
		}
	}
	if oldest == noClose {
		oldest = r.h.writeStartCursor().Load()
	}

	cur := r.h.oldestUnconsumedCursor()
	if oldest > cur.Load() {
		cur.Store(oldest)
		r.spaceAvailable.Broadcast()
	}
}

// dataSizeWords is the ring's capacity in words.
func (r *region) dataSizeWords() uint64 {
	return uint64(r.l.dataSize) / uint64(r.l.wordSize)
}
