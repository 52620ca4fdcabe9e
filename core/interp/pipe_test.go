package interp

import (
	"io"
	"io/ioutil"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipe_roundTrip(t *testing.T) {
	p := newPipe(4)

	go func() {
		p.Write([]byte("hello "))
		p.Write([]byte("world"))
		p.CloseWrite()
	}()

	out, err := ioutil.ReadAll(p)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(out))
}

func TestPipe_eofAfterClose(t *testing.T) {
	p := newPipe(1)
	p.CloseWrite()

	buf := make([]byte, 8)
	n, err := p.Read(buf)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)
}

func TestPipe_partialReads(t *testing.T) {
	p := newPipe(1)
	go func() {
		p.Write([]byte("abcdef"))
		p.CloseWrite()
	}()

	buf := make([]byte, 4)
	n, err := p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(buf[:n]))

	n, err = p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ef", string(buf[:n]))

	_, err = p.Read(buf)
	assert.Equal(t, io.EOF, err)
}

func TestPipe_writeAfterClose(t *testing.T) {
	p := newPipe(1)
	p.CloseWrite()

	_, err := p.Write([]byte("late"))
	assert.Equal(t, io.ErrClosedPipe, err)
}

func TestPipe_emptyWriteIsNoop(t *testing.T) {
	p := newPipe(1)
	n, err := p.Write(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPipe_writerDetachesFromBuffer(t *testing.T) {
	p := newPipe(2)
	chunk := []byte("aaa")
	_, err := p.Write(chunk)
	require.NoError(t, err)

	// Mutating the caller's buffer after Write must not corrupt the
	// queued chunk.
	copy(chunk, "bbb")
	p.CloseWrite()

	out, err := ioutil.ReadAll(p)
	require.NoError(t, err)
	assert.Equal(t, "aaa", string(out))
}

func TestPipe_boundedWritesBlock(t *testing.T) {
	p := newPipe(1)
	require.NoError(t, errOf(p.Write([]byte("one"))))

	unblocked := make(chan struct{})
	go func() {
		p.Write([]byte("two"))
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("second write should block until the reader drains a chunk")
	case <-time.After(20 * time.Millisecond):
	}

	buf := make([]byte, 8)
	_, err := p.Read(buf)
	require.NoError(t, err)

	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("write did not unblock after a read")
	}
}

func TestPipe_writeAfterCloseRead(t *testing.T) {
	p := newPipe(1)
	p.CloseRead()

	_, err := p.Write([]byte("orphaned"))
	assert.Equal(t, io.ErrClosedPipe, err)
}

func TestPipe_closeReadUnblocksWriter(t *testing.T) {
	p := newPipe(1)
	require.NoError(t, errOf(p.Write([]byte("one"))))

	errs := make(chan error, 1)
	go func() {
		_, err := p.Write([]byte("two"))
		errs <- err
	}()

	select {
	case <-errs:
		t.Fatal("second write should block on the full pipe")
	case <-time.After(20 * time.Millisecond):
	}

	p.CloseRead()

	select {
	case err := <-errs:
		assert.Equal(t, io.ErrClosedPipe, err)
	case <-time.After(time.Second):
		t.Fatal("write did not fail after the reader detached")
	}
}

func errOf(_ int, err error) error { return err }
