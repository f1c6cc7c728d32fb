package sds

// NewInProcess allocates a backing buffer and creates a stream over it in
// one call, for the common case of a stream that never needs to be
// backed by a caller-supplied or externally shared buffer (spec's
// original Design Notes describe construction always starting from a
// pre-allocated buffer; this is the Go-native convenience this port adds
// for in-process-only use, since allocating a []byte is free of the
// shared-memory-segment ceremony the original targets).
func NewInProcess(nWords uint64, wordSize, maxReaders uint32) (*Stream, error) {
	size := SizeFor(nWords, wordSize, maxReaders)
	if size == 0 {
		return nil, errInvalidDimensions(nWords, wordSize, maxReaders)
	}
	return Create(make([]byte, size), wordSize, maxReaders)
}

func errInvalidDimensions(nWords uint64, wordSize, maxReaders uint32) error {
	return internalStatus("sds: invalid stream dimensions: nWords=%d wordSize=%d maxReaders=%d", nWords, wordSize, maxReaders)
}
