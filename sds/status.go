package sds

import "fmt"

// Status is the outcome of a read or write operation: a kind plus an
// optional message. Read and Write return the word count alongside it,
// so CLOSED/WOULDBLOCK/TIMEDOUT can report "zero words" with a kind that
// is distinct from a hard failure.
type Status struct {
	kind statusKind
	msg  string
}

type statusKind int

const (
	kindOK statusKind = iota
	kindWouldBlock
	kindTimedOut
	kindOverrunReset
	kindClosed
	kindOverrun
	kindBytesLessThanWordSize
	kindInvalid
	kindInternal
)

var (
	// StatusOK indicates the operation completed normally.
	StatusOK = Status{kind: kindOK}
	// StatusWouldBlock indicates a non-blocking operation had nothing to do.
	StatusWouldBlock = Status{kind: kindWouldBlock}
	// StatusTimedOut indicates a blocking operation's timeout elapsed.
	StatusTimedOut = Status{kind: kindTimedOut}
	// StatusOverrunReset indicates a reader was overrun and reset itself
	// to the writer's current start cursor because reset-on-overrun was
	// requested; zero words are delivered by the call that returns it.
	StatusOverrunReset = Status{kind: kindOverrunReset}
	// StatusClosed indicates the stream (or the reader's close index) is
	// terminal; no more data will ever be produced for this handle.
	StatusClosed = Status{kind: kindClosed}
	// StatusOverrun indicates the reader fell more than dataSize words
	// behind the writer and reset-on-overrun was not requested. The
	// reader must not be used for further reads.
	StatusOverrun = Status{kind: kindOverrun}
	// StatusBytesLessThanWordSize indicates the caller's buffer cannot
	// hold even one word.
	StatusBytesLessThanWordSize = Status{kind: kindBytesLessThanWordSize}
	// StatusInvalid indicates a precondition violation (nil buffer, zero
	// length, a write that is not a whole number of words, ...).
	StatusInvalid = Status{kind: kindInvalid}
)

func internalStatus(format string, args ...any) Status {
	return Status{kind: kindInternal, msg: fmt.Sprintf(format, args...)}
}

// OK reports whether the status represents a successful, non-terminal
// outcome (plain OK or OK_OVERRUN_RESET).
func (s Status) OK() bool {
	return s.kind == kindOK || s.kind == kindOverrunReset
}

// Error implements the error interface so a Status can be returned and
// compared as a normal Go error while still being inspected for its kind.
func (s Status) Error() string {
	if s.msg != "" {
		return s.msg
	}
	switch s.kind {
	case kindOK:
		return "ok"
	case kindWouldBlock:
		return "would block"
	case kindTimedOut:
		return "timed out"
	case kindOverrunReset:
		return "overrun, reader reset"
	case kindClosed:
		return "closed"
	case kindOverrun:
		return "overrun"
	case kindBytesLessThanWordSize:
		return "buffer smaller than one word"
	case kindInvalid:
		return "invalid argument"
	default:
		return "internal error"
	}
}

func (s Status) is(k statusKind) bool { return s.kind == k }

// IsWouldBlock reports whether s is StatusWouldBlock.
func (s Status) IsWouldBlock() bool { return s.is(kindWouldBlock) }

// IsTimedOut reports whether s is StatusTimedOut.
func (s Status) IsTimedOut() bool { return s.is(kindTimedOut) }

// IsClosed reports whether s is StatusClosed.
func (s Status) IsClosed() bool { return s.is(kindClosed) }

// IsOverrun reports whether s is StatusOverrun (fatal, no reset).
func (s Status) IsOverrun() bool { return s.is(kindOverrun) }

// IsOverrunReset reports whether s is StatusOverrunReset.
func (s Status) IsOverrunReset() bool { return s.is(kindOverrunReset) }
