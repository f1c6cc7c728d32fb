package sds

// cellSize is the width, in bytes, of every atomic cell placed in the
// backing region (header scalars and per-reader array elements). Using a
// single uniform width sidesteps per-field alignment arithmetic: every
// sub-region boundary this package computes is already a multiple of
// cellSize, which is also the alignment of the atomic types the region
// is cast to (see header.go).
const cellSize = 8

// headerSlots is the number of cellSize-wide cells the header occupies,
// in the order header.go's slot constants list them.
const headerSlots = 11

// layout describes the byte offsets of every sub-region of a backing
// region, for a given wordSize/maxReaders/nWords triple. It is a pure
// function of its inputs: two regions created with the same parameters
// always get the same layout.
type layout struct {
	wordSize   uint32
	maxReaders uint32
	nWords     uint64

	headerOff int
	enabledOff int
	cursorOff  int
	closeOff   int
	dataOff    int
	dataSize   int // bytes
}

// alignUp rounds off up to the next multiple of to (to must be > 0).
func alignUp(off int, to int) int {
	if to <= 0 {
		return off
	}
	rem := off % to
	if rem == 0 {
		return off
	}
	return off + (to - rem)
}

// newLayout computes the sub-region layout for a region holding nWords
// words of wordSize bytes each, with room for maxReaders reader slots.
// It returns false if wordSize or maxReaders is zero, or if nWords is
// zero (sizeFor(0, ...) is defined to be invalid per spec).
func newLayout(wordSize, maxReaders uint32, nWords uint64) (layout, bool) {
	if wordSize == 0 || maxReaders == 0 || nWords == 0 {
		return layout{}, false
	}

	l := layout{wordSize: wordSize, maxReaders: maxReaders, nWords: nWords}

	l.headerOff = 0
	off := headerSlots * cellSize

	l.enabledOff = off
	off += int(maxReaders) * cellSize

	l.cursorOff = off
	off += int(maxReaders) * cellSize

	l.closeOff = off
	off += int(maxReaders) * cellSize

	dataAlign := int(wordSize)
	if dataAlign < cellSize {
		dataAlign = cellSize
	}
	l.dataOff = alignUp(off, dataAlign)

	dataBytes := nWords * uint64(wordSize)
	if dataBytes > uint64(int(^uint(0)>>1))-uint64(l.dataOff) {
		return layout{}, false // would overflow int on this platform
	}
	l.dataSize = int(dataBytes)

	return l, true
}

// totalSize is the number of bytes the region must be to hold this layout.
func (l layout) totalSize() int {
	return l.dataOff + l.dataSize
}

// sizeFor returns the number of bytes a backing region must be to hold a
// stream of nWords words of wordSize bytes each, with room for
// maxReaders reader slots. It returns 0 if wordSize, maxReaders or
// nWords is zero.
func sizeFor(nWords uint64, wordSize, maxReaders uint32) uint64 {
	l, ok := newLayout(wordSize, maxReaders, nWords)
	if !ok {
		return 0
	}
	return uint64(l.totalSize())
}

// SizeFor is the exported form of sizeFor: the byte count a caller must
// allocate before calling Create with the given parameters.
func SizeFor(nWords uint64, wordSize, maxReaders uint32) uint64 {
	return sizeFor(nWords, wordSize, maxReaders)
}
