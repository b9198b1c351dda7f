package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
)

// DefaultMaxLineSize is the longest line a reader ingestor accepts.
const DefaultMaxLineSize = 1024 * 1024 // 1MB

// ReaderIngestor forwards every line of a stream, typically stdin.
type ReaderIngestor struct {
	name        string
	r           io.Reader
	sink        EntrySink
	parser      Parser
	maxLineSize int
	logger      *slog.Logger
}

func NewReaderIngestor(name string, r io.Reader, sink EntrySink, parser Parser, maxLineSize int, logger *slog.Logger) *ReaderIngestor {
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}
	return &ReaderIngestor{
		name:        name,
		r:           r,
		sink:        sink,
		parser:      parser,
		maxLineSize: maxLineSize,
		logger:      logger.With("ingestor", name),
	}
}

// Run reads until EOF, a read error or ctx is done. Reaching EOF is not
// an error. Cancellation is noticed between lines.
func (ri *ReaderIngestor) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(ri.r)
	scanner.Buffer(make([]byte, 0, min(64*1024, ri.maxLineSize)), ri.maxLineSize)

	lines := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if entry, ok := ri.parser.Parse(scanner.Bytes()); ok {
			ri.sink.Log(entry)
			lines++
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s: %w", ri.name, err)
	}
	ri.logger.Info("input closed", "lines", lines)
	return nil
}
