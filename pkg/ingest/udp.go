package ingest

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
)

// UDPIngestor listens for UDP packets and forwards one entry per line.
type UDPIngestor struct {
	addr   string
	sink   EntrySink
	parser Parser
	logger *slog.Logger
	conn   *net.UDPConn
}

func NewUDPIngestor(addr string, sink EntrySink, parser Parser, logger *slog.Logger) *UDPIngestor {
	return &UDPIngestor{
		addr:   addr,
		sink:   sink,
		parser: parser,
		logger: logger.With("ingestor", "udp"),
	}
}

// Listen binds the address. Start calls it if needed.
func (u *UDPIngestor) Listen() error {
	if u.conn != nil {
		return nil
	}
	addr, err := net.ResolveUDPAddr("udp", u.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	u.conn = conn
	u.logger.Info("listening", "addr", conn.LocalAddr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (u *UDPIngestor) Addr() net.Addr {
	if u.conn == nil {
		return nil
	}
	return u.conn.LocalAddr()
}

// Start reads packets until ctx is done. Blocking call.
func (u *UDPIngestor) Start(ctx context.Context) error {
	if err := u.Listen(); err != nil {
		return err
	}
	defer u.conn.Close()
	stop := context.AfterFunc(ctx, func() { u.conn.Close() })
	defer stop()

	// Max UDP payload.
	buf := make([]byte, 65535)

	for {
		n, _, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			u.logger.Warn("read error", "error", err)
			continue
		}

		// The parser copies what it keeps, so buf can be reused.
		for _, line := range bytes.Split(buf[:n], []byte{'\n'}) {
			if entry, ok := u.parser.Parse(line); ok {
				u.sink.Log(entry)
			}
		}
	}
}
