package sds

// ReaderPolicy controls how Reader.Read behaves when no data is available.
type ReaderPolicy int

const (
	// NonBlocking returns WouldBlock immediately when nothing is available.
	NonBlocking ReaderPolicy = iota
	// Blocking waits on the data-available notification until the
	// timeout elapses or the writer closes.
	Blocking
)

func (p ReaderPolicy) String() string {
	switch p {
	case NonBlocking:
		return "non-blocking"
	case Blocking:
		return "blocking"
	default:
		return "unknown"
	}
}

// WriterPolicy controls how Writer.Write behaves with respect to the
// oldest-unconsumed barrier and buffer-sized requests.
type WriterPolicy int

const (
	// NonBlockable never waits and never fails on back-pressure; it may
	// overrun slow readers. Requests larger than the ring are clamped.
	NonBlockable WriterPolicy = iota
	// AllOrNothing fails with WouldBlock rather than write a partial or
	// back-pressured block.
	AllOrNothing
	// WriterBlocking waits for room to be freed by the slowest reader,
	// up to the given timeout.
	WriterBlocking
)

func (p WriterPolicy) String() string {
	switch p {
	case NonBlockable:
		return "non-blockable"
	case AllOrNothing:
		return "all-or-nothing"
	case WriterBlocking:
		return "blocking"
	default:
		return "unknown"
	}
}

// SeekReference is the reference point for Reader.Seek and Reader.Tell.
type SeekReference int

const (
	// Absolute seeks to the given index directly.
	Absolute SeekReference = iota
	// AfterReader seeks forward from the reader's current cursor.
	AfterReader
	// BeforeReader seeks backward from the reader's current cursor.
	BeforeReader
	// BeforeWriter seeks backward from the writer's current start cursor.
	BeforeWriter
)

// ClosePoint controls when a reader-side Close takes effect.
type ClosePoint int

const (
	// CloseImmediately terminates the reader on its very next read.
	CloseImmediately ClosePoint = iota
	// CloseAfterDrainingCurrentBuffer lets the reader drain whatever is
	// already buffered (up to the writer's current start cursor) before
	// terminating.
	CloseAfterDrainingCurrentBuffer
)
