package sds

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRejectsUndersizedBuffer(t *testing.T) {
	_, err := Create(make([]byte, 4), 8, 1)
	assert.Error(t, err)
}

func TestOpenRejectsForeignBuffer(t *testing.T) {
	buf := make([]byte, 256)
	_, err := Open(buf)
	assert.Error(t, err)
}

func TestOpenRoundTrip(t *testing.T) {
	size := SizeFor(16, 4, 2)
	buf := make([]byte, size)

	s1, err := Create(buf, 4, 2)
	require.NoError(t, err)

	w, st := s1.CreateWriter(CreateWriterOptions{Policy: NonBlockable})
	require.True(t, st.OK())
	_, st = w.Write(context.Background(), []byte{9, 0, 0, 0})
	require.True(t, st.OK())

	s2, err := Open(buf)
	require.NoError(t, err)
	assert.Equal(t, s1.WordSize(), s2.WordSize())
	assert.Equal(t, s1.MaxReaders(), s2.MaxReaders())
	assert.Equal(t, s1.DataSize(), s2.DataSize())
}

func TestAttachSharesSynchronization(t *testing.T) {
	s1, err := NewInProcess(8, 4, 1)
	require.NoError(t, err)

	s2 := s1.Attach()
	defer s2.Close()

	w, st := s1.CreateWriter(CreateWriterOptions{Policy: NonBlockable})
	require.True(t, st.OK())

	rd, st := s2.CreateReader(CreateReaderOptions{Policy: Blocking})
	require.True(t, st.OK())

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 4)
		_, st := rd.Read(context.Background(), buf)
		assert.True(t, st.OK())
	}()

	_, st = w.Write(context.Background(), []byte{7, 0, 0, 0})
	require.True(t, st.OK())
	<-done
}

func TestCreateReaderPicksFreeSlotAndRejectsOverCapacity(t *testing.T) {
	s, err := NewInProcess(8, 4, 1)
	require.NoError(t, err)

	rd1, st := s.CreateReader(CreateReaderOptions{Policy: NonBlocking, ID: DefaultReaderID})
	require.True(t, st.OK())
	assert.Equal(t, uint32(0), rd1.ID())

	_, st = s.CreateReader(CreateReaderOptions{Policy: NonBlocking, ID: DefaultReaderID})
	assert.Equal(t, StatusInvalid, st)
}

func TestCloseReaderRejectsForeignReader(t *testing.T) {
	s1, err := NewInProcess(8, 4, 1)
	require.NoError(t, err)
	s2, err := NewInProcess(8, 4, 1)
	require.NoError(t, err)

	rd, st := s1.CreateReader(CreateReaderOptions{Policy: NonBlocking})
	require.True(t, st.OK())

	err = s2.CloseReader(rd)
	assert.Error(t, err)
}

func TestCloseWriterAllowsRecreationWithoutForce(t *testing.T) {
	s, err := NewInProcess(8, 4, 1)
	require.NoError(t, err)

	w, st := s.CreateWriter(CreateWriterOptions{Policy: NonBlockable})
	require.True(t, st.OK())

	require.NoError(t, s.CloseWriter(w))

	_, st = s.CreateWriter(CreateWriterOptions{Policy: NonBlockable})
	assert.True(t, st.OK())
}
