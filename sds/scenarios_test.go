package sds

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarioSlowestReaderGatesWriterBlocking exercises spec §4.6: the
// oldest-unconsumed barrier must track the slowest of several readers,
// not just one of them.
func TestScenarioSlowestReaderGatesWriterBlocking(t *testing.T) {
	s, err := NewInProcess(4, 4, 2)
	require.NoError(t, err)

	w, st := s.CreateWriter(CreateWriterOptions{Policy: WriterBlocking})
	require.True(t, st.OK())

	fast, st := s.CreateReader(CreateReaderOptions{Policy: NonBlocking, ID: DefaultReaderID})
	require.True(t, st.OK())
	slow, st := s.CreateReader(CreateReaderOptions{Policy: NonBlocking, ID: DefaultReaderID})
	require.True(t, st.OK())

	full := make([]byte, 4*4)
	_, st = w.Write(context.Background(), full)
	require.True(t, st.OK())

	// fast drains fully, slow does not.
	n, st := fast.Read(context.Background(), full)
	require.True(t, st.OK())
	require.Equal(t, 4, n)

	ctx, cancel := WithTimeout(context.Background(), 10)
	defer cancel()
	_, st = w.Write(ctx, full)
	assert.Equal(t, StatusTimedOut, st, "slow reader has not advanced, writer must still be gated")

	_, st = slow.Read(context.Background(), full)
	require.True(t, st.OK())

	_, st = w.Write(context.Background(), full)
	assert.True(t, st.OK(), "once the slowest reader drains, the barrier must release")
}

// TestScenarioReaderBeforeWriter verifies a reader created
// before any writer exists still observes data written afterward (spec
// §4.4's "reader may attach before the writer").
func TestScenarioReaderBeforeWriter(t *testing.T) {
	s, err := NewInProcess(4, 4, 1)
	require.NoError(t, err)

	rd, st := s.CreateReader(CreateReaderOptions{Policy: Blocking})
	require.True(t, st.OK())

	w, st := s.CreateWriter(CreateWriterOptions{Policy: NonBlockable})
	require.True(t, st.OK())

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 4)
		n, st := rd.Read(context.Background(), buf)
		assert.True(t, st.OK())
		assert.Equal(t, 1, n)
	}()

	_, st = w.Write(context.Background(), []byte{5, 0, 0, 0})
	require.True(t, st.OK())
	<-done
}

// TestScenarioWriterCloseWakesBlockedReader ensures a
// reader blocked on an empty, writer-closed stream observes StatusClosed
// rather than hanging forever.
func TestScenarioWriterCloseWakesBlockedReader(t *testing.T) {
	s, err := NewInProcess(4, 4, 1)
	require.NoError(t, err)

	w, st := s.CreateWriter(CreateWriterOptions{Policy: NonBlockable})
	require.True(t, st.OK())

	rd, st := s.CreateReader(CreateReaderOptions{Policy: Blocking})
	require.True(t, st.OK())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, st := rd.Read(context.Background(), make([]byte, 4))
		assert.Equal(t, StatusClosed, st)
	}()

	assert.Equal(t, StatusOK, w.Close())
	<-done
}

// TestScenarioWrapAround exercises the ring wrapping past its end more
// than once, confirming word-granular addressing never corrupts data.
func TestScenarioWrapAround(t *testing.T) {
	s, err := NewInProcess(3, 4, 1)
	require.NoError(t, err)

	w, st := s.CreateWriter(CreateWriterOptions{Policy: NonBlockable})
	require.True(t, st.OK())
	rd, st := s.CreateReader(CreateReaderOptions{Policy: NonBlocking})
	require.True(t, st.OK())

	for round := 0; round < 5; round++ {
		val := byte(round + 1)
		n, st := w.Write(context.Background(), []byte{val, 0, 0, 0})
		require.True(t, st.OK())
		require.Equal(t, 1, n)

		buf := make([]byte, 4)
		n, st = rd.Read(context.Background(), buf)
		require.True(t, st.OK())
		require.Equal(t, 1, n)
		assert.Equal(t, val, buf[0])
	}
}

// TestScenarioStartWithNewDataSkipsBacklog checks that a reader created
// with StartWithNewData never observes words written before it attached.
func TestScenarioStartWithNewDataSkipsBacklog(t *testing.T) {
	s, err := NewInProcess(8, 4, 1)
	require.NoError(t, err)

	w, st := s.CreateWriter(CreateWriterOptions{Policy: NonBlockable})
	require.True(t, st.OK())

	writeWords(t, w, 4, 1, 2, 3)

	rd, st := s.CreateReader(CreateReaderOptions{Policy: NonBlocking, StartWithNewData: true})
	require.True(t, st.OK())

	_, st = rd.Read(context.Background(), make([]byte, 4))
	assert.Equal(t, StatusWouldBlock, st)

	writeWords(t, w, 4, 4)
	buf := make([]byte, 4)
	n, st := rd.Read(context.Background(), buf)
	require.True(t, st.OK())
	assert.Equal(t, 1, n)
	assert.Equal(t, byte(4), buf[0])
}

// TestScenarioReaderReleaseNeverPoisonsBarrier checks spec's invariant
// that a released reader's cursor can never be mistaken for the oldest
// unconsumed position afterward.
func TestScenarioReaderReleaseNeverPoisonsBarrier(t *testing.T) {
	s, err := NewInProcess(4, 4, 2)
	require.NoError(t, err)

	w, st := s.CreateWriter(CreateWriterOptions{Policy: WriterBlocking})
	require.True(t, st.OK())

	stale, st := s.CreateReader(CreateReaderOptions{Policy: NonBlocking})
	require.True(t, st.OK())

	require.NoError(t, s.CloseReader(stale))

	full := make([]byte, 4*4)
	_, st = w.Write(context.Background(), full)
	require.True(t, st.OK())

	ctx, cancel := WithTimeout(context.Background(), 10)
	defer cancel()
	_, st = w.Write(ctx, full)
	assert.True(t, st.OK(), "a released reader must not gate the writer")
}
