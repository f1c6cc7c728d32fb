package attachment

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/yanet-platform/sds/sds"
)

// ID identifies an attachment as contextID:contentID, matching the
// original AVS Device SDK's attachment-naming convention.
type ID struct {
	ContextID string
	ContentID string
}

// String renders the ID in "contextID:contentID" form, matching
// generateAttachmentId: either half missing is returned verbatim rather
// than padded with a stray separator.
func (id ID) String() string {
	switch {
	case id.ContextID == "":
		return id.ContentID
	case id.ContentID == "":
		return id.ContextID
	default:
		return id.ContextID + ":" + id.ContentID
	}
}

// WriterPolicy controls AttachmentWriter.Write's blocking behavior --
// distinct from sds.WriterPolicy, since the attachment layer never
// exposes the NonBlockable (overrun-the-reader) policy: a misdelivered
// audio frame is worse than a stalled producer.
type WriterPolicy int

const (
	// AllOrNothing fails immediately rather than overwrite unread data.
	AllOrNothing WriterPolicy = iota
	// Blocking waits for the single reader to free space.
	Blocking
)

func (p WriterPolicy) toSDS() sds.WriterPolicy {
	if p == Blocking {
		return sds.WriterBlocking
	}
	return sds.AllOrNothing
}

// ReaderPolicy controls AttachmentReader.Read's blocking behavior.
type ReaderPolicy int

const (
	// NonBlocking returns immediately when nothing is available.
	NonBlocking ReaderPolicy = iota
	// ReaderBlocking waits for the writer to produce more data.
	ReaderBlocking
)

func (p ReaderPolicy) toSDS() sds.ReaderPolicy {
	if p == ReaderBlocking {
		return sds.Blocking
	}
	return sds.NonBlocking
}

// OverrunPolicy controls what happens when the reader falls behind the
// writer by more than the attachment's capacity.
type OverrunPolicy int

const (
	// OverrunFail makes Read fail with an "attachment: reader overrun"
	// status and leaves the reader unusable.
	OverrunFail OverrunPolicy = iota
	// OverrunReset seeks the reader forward to the writer's current
	// position and continues.
	OverrunReset
)

// defaultWordSize is the attachment layer's fixed word granularity: one
// byte, since attachments carry opaque binary payloads rather than
// framed, word-aligned protocol data.
const defaultWordSize = 1

// Attachment is a single-producer/single-consumer named binary payload.
type Attachment struct {
	id     ID
	stream *sds.Stream

	lastUsedMu sync.Mutex
	lastUsed   time.Time

	writer *AttachmentWriter
	reader *AttachmentReader
}

// New allocates a fresh, empty attachment with the given capacity in
// bytes.
func New(id ID, capacity uint64) (*Attachment, error) {
	stream, err := sds.NewInProcess(capacity, defaultWordSize, 1)
	if err != nil {
		return nil, err
	}
	a := &Attachment{id: id, stream: stream}
	a.touch()
	return a, nil
}

// ID returns this attachment's identifier.
func (a *Attachment) ID() ID { return a.id }

// HasWriter reports whether a writer is currently live for this
// attachment.
func (a *Attachment) HasWriter() bool { return a.writer != nil }

// HasReader reports whether a reader is currently live for this
// attachment.
func (a *Attachment) HasReader() bool { return a.reader != nil }

// Active reports whether this attachment has both a live writer and a
// live reader. An active attachment is exempt from idle expiration
// (spec §4.7): only once one side goes away can the other's idleness
// reclaim it.
func (a *Attachment) Active() bool { return a.HasWriter() && a.HasReader() }

func (a *Attachment) touch() {
	a.lastUsedMu.Lock()
	a.lastUsed = time.Now()
	a.lastUsedMu.Unlock()
}

// idle reports whether this attachment has not been touched in d.
func (a *Attachment) idle(d time.Duration) bool {
	a.lastUsedMu.Lock()
	last := a.lastUsed
	a.lastUsedMu.Unlock()
	return time.Since(last) >= d
}

// CreateWriter enables a writer for this attachment. Only one may be
// live at a time.
func (a *Attachment) CreateWriter(policy WriterPolicy) (*AttachmentWriter, Status) {
	a.touch()
	if a.writer != nil {
		return nil, StatusAlreadyExists
	}
	w, st := a.stream.CreateWriter(sds.CreateWriterOptions{Policy: policy.toSDS()})
	if !st.OK() {
		return nil, errorStatus("attachment: create writer: %s", st.Error())
	}
	aw := &AttachmentWriter{a: a, w: w}
	a.writer = aw
	return aw, StatusOK
}

// CreateReader enables the (sole) reader for this attachment.
func (a *Attachment) CreateReader(readerPolicy ReaderPolicy, overrun OverrunPolicy) (*AttachmentReader, Status) {
	a.touch()
	if a.reader != nil {
		return nil, StatusAlreadyExists
	}
	rd, st := a.stream.CreateReader(sds.CreateReaderOptions{
		Policy:         readerPolicy.toSDS(),
		ResetOnOverrun: overrun == OverrunReset,
	})
	if !st.OK() {
		return nil, errorStatus("attachment: create reader: %s", st.Error())
	}
	ar := &AttachmentReader{a: a, rd: rd}
	a.reader = ar
	return ar, StatusOK
}

// Close tears down this attachment: any live writer or reader is closed
// first and their failed statuses are aggregated into the returned
// error; the stream handle is then detached, which reports no error.
func (a *Attachment) Close() error {
	var err error
	if a.writer != nil {
		if st := a.writer.Close(); !st.OK() {
			err = multierr.Append(err, st)
		}
	}
	if a.reader != nil {
		if st := a.reader.Close(sds.CloseImmediately); !st.OK() {
			err = multierr.Append(err, st)
		}
	}
	a.stream.Close()
	return err
}

// AttachmentWriter is the producer side of an Attachment.
type AttachmentWriter struct {
	a *Attachment
	w *sds.Writer
}

// Write pushes buf into the attachment, applying the writer's policy.
func (w *AttachmentWriter) Write(ctx context.Context, buf []byte) (int, Status) {
	w.a.touch()
	n, st := w.w.Write(ctx, buf)
	if !st.OK() {
		return n, errorStatus("attachment: write: %s", st.Error())
	}
	return n, StatusOK
}

// Close disables this writer and wakes any blocked reader.
func (w *AttachmentWriter) Close() Status {
	w.w.Close()
	w.a.writer = nil
	return StatusOK
}

// AttachmentReader is the consumer side of an Attachment.
type AttachmentReader struct {
	a  *Attachment
	rd *sds.Reader
}

// Read copies up to len(buf) bytes from the attachment into buf.
func (r *AttachmentReader) Read(ctx context.Context, buf []byte) (int, Status) {
	r.a.touch()
	n, st := r.rd.Read(ctx, buf)
	if st.IsOverrun() {
		return n, errorStatus("attachment: reader overrun")
	}
	if !st.OK() {
		return n, errorStatus("attachment: read: %s", st.Error())
	}
	return n, StatusOK
}

// Close terminates this reader per point, per the original SDK's
// IMMEDIATELY/AFTER_DRAINING_CURRENT_BUFFER distinction.
func (r *AttachmentReader) Close(point sds.ClosePoint) Status {
	r.rd.Close(0, point)
	r.a.reader = nil
	return StatusOK
}

// WriteAll pushes all of data through an existing writer w, calling
// Write again after each partial write, for callers handing over a
// complete in-memory payload (e.g. a whole TTS response). It stops at
// the first Write that returns a non-OK status (a full ring under
// AllOrNothing, a timeout or cancelled ctx, a closed writer) or that
// makes no progress. It does not create the writer.
func WriteAll(ctx context.Context, w *AttachmentWriter, data []byte) (int, Status) {
	total := 0
	for total < len(data) {
		n, st := w.Write(ctx, data[total:])
		total += n
		if !st.OK() {
			return total, st
		}
		if n == 0 {
			return total, errorStatus("attachment: write made no progress")
		}
	}
	return total, StatusOK
}
