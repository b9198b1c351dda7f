package ingest

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// TCPIngestor listens for TCP connections and forwards one entry per line.
type TCPIngestor struct {
	addr     string
	sink     EntrySink
	parser   Parser
	logger   *slog.Logger
	listener net.Listener
}

func NewTCPIngestor(addr string, sink EntrySink, parser Parser, logger *slog.Logger) *TCPIngestor {
	return &TCPIngestor{
		addr:   addr,
		sink:   sink,
		parser: parser,
		logger: logger.With("ingestor", "tcp"),
	}
}

// Listen binds the address. Start calls it if needed.
func (t *TCPIngestor) Listen() error {
	if t.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", t.addr)
	if err != nil {
		return err
	}
	t.listener = listener
	t.logger.Info("listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (t *TCPIngestor) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Start serves connections until ctx is done. Blocking call.
func (t *TCPIngestor) Start(ctx context.Context) error {
	if err := t.Listen(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { t.listener.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	var delay time.Duration
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			delay = acceptBackoff(delay)
			t.logger.Warn("error accepting connection", "error", err, "retry_in", delay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		delay = 0
		// Handle each connection in a lightweight goroutine
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.handleConnection(ctx, conn)
		}()
	}
}

// acceptBackoff doubles the wait after a failed Accept, from 5ms up to 1s.
func acceptBackoff(prev time.Duration) time.Duration {
	if prev == 0 {
		return 5 * time.Millisecond
	}
	if next := prev * 2; next < time.Second {
		return next
	}
	return time.Second
}

func (t *TCPIngestor) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			if entry, ok := t.parser.Parse(line); ok {
				t.sink.Log(entry)
			}
		}
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				t.logger.Warn("read error", "remote", conn.RemoteAddr().String(), "error", err)
			}
			return
		}
	}
}
