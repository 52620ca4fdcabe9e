package interp

import "io"

// pipe is the bounded in-memory byte channel connecting adjacent
// pipeline stages. Writes block once depth chunks are buffered and
// reads block while the pipe is empty but not closed, giving the
// backpressure the execution model requires without relying on OS pipe
// buffering.
//
// The contract is single writer, single reader: the producing stage
// owns Write and CloseWrite, the consuming stage owns Read and
// CloseRead.
type pipe struct {
	ch          chan []byte
	done        chan struct{}
	leftover    []byte
	writeClosed bool
}

func newPipe(depth int) *pipe {
	if depth < 1 {
		depth = 1
	}
	return &pipe{
		ch:   make(chan []byte, depth),
		done: make(chan struct{}),
	}
}

func (p *pipe) Write(b []byte) (int, error) {
	if p.writeClosed {
		return 0, io.ErrClosedPipe
	}
	select {
	case <-p.done:
		return 0, io.ErrClosedPipe
	default:
	}
	if len(b) == 0 {
		return 0, nil
	}
	chunk := make([]byte, len(b))
	copy(chunk, b)
	select {
	case p.ch <- chunk:
		return len(b), nil
	case <-p.done:
		return 0, io.ErrClosedPipe
	}
}

func (p *pipe) Read(b []byte) (int, error) {
	if len(p.leftover) == 0 {
		chunk, ok := <-p.ch
		if !ok {
			return 0, io.EOF
		}
		p.leftover = chunk
	}
	n := copy(b, p.leftover)
	p.leftover = p.leftover[n:]
	return n, nil
}

// CloseWrite marks the end of the stream; pending chunks remain
// readable and then Read reports io.EOF.
func (p *pipe) CloseWrite() {
	if !p.writeClosed {
		p.writeClosed = true
		close(p.ch)
	}
}

// CloseRead detaches the reader. Blocked and subsequent Writes fail
// with io.ErrClosedPipe, the way a real pipe raises EPIPE once the
// consumer is gone.
func (p *pipe) CloseRead() {
	close(p.done)
}
