package output

import (
	"context"
	"io"
	"sync"
)

// WriterConn writes frames to an io.Writer, one per line. It backs the
// --echo mode of the CLI.
type WriterConn struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterConn(w io.Writer) *WriterConn {
	return &WriterConn{w: w}
}

func (c *WriterConn) WriteMessage(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.w.Write(frame); err != nil {
		return err
	}
	if len(frame) == 0 || frame[len(frame)-1] != '\n' {
		_, err := c.w.Write([]byte{'\n'})
		return err
	}
	return nil
}

// Close closes the underlying writer if it is an io.Closer.
func (c *WriterConn) Close() error {
	if closer, ok := c.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
