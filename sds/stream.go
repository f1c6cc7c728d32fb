package sds

import (
	"fmt"
	"sync"
)

// Stream is a handle onto one shared data stream. Multiple handles may be
// attached to the same underlying region (see Attach); each handle may
// create at most one live Writer but up to maxReaders live Readers.
type Stream struct {
	mu *sync.Mutex // guards writer/readers bookkeeping below
	r  *region

	writer  *Writer
	readers map[uint32]*Reader
}

// Create placement-initializes a fresh stream over buf, which must be at
// least SizeFor(nWords, wordSize, maxReaders) bytes. The caller owns buf's
// lifetime; it must outlive every handle derived from the returned Stream.
func Create(buf []byte, wordSize, maxReaders uint32) (*Stream, error) {
	r, err := createRegion(buf, wordSize, maxReaders)
	if err != nil {
		return nil, err
	}
	return newStream(r), nil
}

// Open attaches to an existing region found in buf, validating its header
// against this package's magic, version and traits hash. Open only shares
// the buffer, not the synchronization primitives of whatever handle
// created it: two Opens of the same process-local buf get independent
// Go-level mutexes and broadcasters over the same atomics. Use Attach
// instead when both handles live in this process and you want them to
// observe each other's Broadcast wakeups promptly.
func Open(buf []byte) (*Stream, error) {
	r, err := openRegion(buf)
	if err != nil {
		return nil, err
	}
	return newStream(r), nil
}

func newStream(r *region) *Stream {
	return &Stream{
		mu:      &sync.Mutex{},
		r:       r,
		readers: make(map[uint32]*Reader),
	}
}

// Attach returns a new handle sharing this Stream's region, including its
// mutexes and broadcasters, and increments the region's reference count.
// The returned handle must eventually be closed with Close.
func (s *Stream) Attach() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()

	return newStream(s.r.attach())
}

// Close detaches this handle from the underlying region. It does not
// close any Writer or Reader still owned by this handle; callers should
// close those first if they want readers/writers on other handles to
// observe termination promptly.
func (s *Stream) Close() {
	s.r.detach()
}

// WordSize returns the region's word size in bytes.
func (s *Stream) WordSize() uint32 { return s.r.l.wordSize }

// MaxReaders returns the maximum number of concurrently enabled readers.
func (s *Stream) MaxReaders() uint32 { return s.r.l.maxReaders }

// DataSize returns the ring's capacity in words.
func (s *Stream) DataSize() uint64 { return s.r.dataSizeWords() }

// CreateWriterOptions configures CreateWriter. The zero value requests
// the NonBlockable policy without forcing replacement of a live writer.
type CreateWriterOptions struct {
	Policy WriterPolicy
	// Force allows creating a writer even if one is already enabled,
	// displacing it.
	Force bool
}

// CreateWriter enables a Writer for this stream, failing with
// StatusInvalid if one is already enabled and opts.Force is false.
func (s *Stream) CreateWriter(opts CreateWriterOptions) (*Writer, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, st := newWriter(s.r, opts.Policy, opts.Force)
	if !st.OK() {
		return nil, st
	}
	s.writer = w
	return w, StatusOK
}

// CreateReaderOptions configures CreateReader.
type CreateReaderOptions struct {
	Policy ReaderPolicy
	// StartWithNewData positions the reader at the writer's current start
	// cursor rather than at the oldest surviving data.
	StartWithNewData bool
	// ResetOnOverrun makes the reader recover from an overrun by seeking
	// forward to the writer's current start cursor instead of failing.
	ResetOnOverrun bool
	// ID requests a specific reader slot; DefaultReaderID (-1) lets the
	// stream pick the first free slot. The zero value requests slot 0.
	ID int
	// Force takes the requested slot even if it is already enabled.
	Force bool
}

// DefaultReaderID requests that CreateReader pick any free slot.
const DefaultReaderID = -1

// CreateReader enables a Reader for this stream.
func (s *Stream) CreateReader(opts CreateReaderOptions) (*Reader, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rd, st := newReader(s.r, opts.Policy, opts.StartWithNewData, opts.ResetOnOverrun, opts.ID, opts.Force)
	if !st.OK() {
		return nil, st
	}
	s.readers[rd.ID()] = rd
	return rd, StatusOK
}

// CloseReader releases a reader previously returned by CreateReader,
// per the forward-seek-then-disable sequence in Reader.release.
func (s *Stream) CloseReader(rd *Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readers[rd.ID()] != rd {
		return fmt.Errorf("sds: reader %d does not belong to this stream handle", rd.ID())
	}
	rd.release()
	delete(s.readers, rd.ID())
	return nil
}

// CloseWriter closes this handle's writer, if any, and drops the
// reference to it so a subsequent CreateWriter without Force succeeds.
func (s *Stream) CloseWriter(w *Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != w {
		return fmt.Errorf("sds: writer does not belong to this stream handle")
	}
	w.Close()
	s.writer = nil
	return nil
}
