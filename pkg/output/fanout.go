package output

import (
	"context"
	"errors"
	"sync"
)

// FanOutConn writes to multiple connections in parallel.
type FanOutConn struct {
	conns []Conn
}

func NewFanOutConn(conns ...Conn) *FanOutConn {
	return &FanOutConn{
		conns: conns,
	}
}

// WriteMessage returns the first error in connection order. The frame is
// still offered to every connection.
func (f *FanOutConn) WriteMessage(ctx context.Context, frame []byte) error {
	if len(f.conns) == 1 {
		return f.conns[0].WriteMessage(ctx, frame)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(f.conns))

	for i, c := range f.conns {
		wg.Add(1)
		go func(idx int, c Conn) {
			defer wg.Done()
			errs[idx] = c.WriteMessage(ctx, frame)
		}(i, c)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}

func (f *FanOutConn) Close() error {
	var errs []error
	for _, c := range f.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
