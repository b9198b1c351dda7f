// Package console forwards log records from the current process to a
// remote console over a WebSocket connection.
//
// Records are queued by any goroutine through a Sink and written in
// order by a single delivery loop that owns the connection. The loop
// never retries: once the console goes away, forwarding stops and one
// diagnostic line is written to stderr.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"consolefwd/pkg/codec"
	"consolefwd/pkg/engine"
	"consolefwd/pkg/model"
	"consolefwd/pkg/output"
)

// Dialer opens the connection to the console at address.
type Dialer func(ctx context.Context, address string) (output.Conn, error)

// DialWebSocket is the default Dialer.
func DialWebSocket(ctx context.Context, address string) (output.Conn, error) {
	return output.DialWebSocket(ctx, address, nil)
}

type options struct {
	codec       codec.Codec
	capacity    int
	marker      string
	chain       *engine.ProcessorChain
	diagnostics io.Writer
	dialer      Dialer
	tee         []output.Conn
}

// Option configures New and Init.
type Option func(*options)

// WithCodec selects the wire encoding. The default is JSON.
func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithQueueCapacity bounds the hand-off queue.
func WithQueueCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithMarker changes the origin substring that selects forwarded records.
func WithMarker(marker string) Option {
	return func(o *options) { o.marker = marker }
}

// WithChain installs a processor chain that runs before encoding.
func WithChain(chain *engine.ProcessorChain) Option {
	return func(o *options) { o.chain = chain }
}

// WithDiagnostics redirects diagnostic lines away from stderr.
func WithDiagnostics(w io.Writer) Option {
	return func(o *options) { o.diagnostics = w }
}

// WithDialer replaces the WebSocket transport.
func WithDialer(d Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithTee copies every frame, hello included, to additional connections.
// A failed write on any of them stops forwarding.
func WithTee(conns ...output.Conn) Option {
	return func(o *options) { o.tee = append(o.tee, conns...) }
}

// Forwarder is a running connection to a console.
type Forwarder struct {
	address  string
	sink     *Sink
	pipeline *engine.Pipeline
	level    *slog.LevelVar
	logger   *slog.Logger
}

// New connects to the console at address, sends the hello and starts
// the delivery loop. On error nothing is left running.
func New(ctx context.Context, address string, opts ...Option) (*Forwarder, error) {
	o := options{
		codec:    codec.JSON,
		capacity: engine.DefaultQueueCapacity,
		marker:   DefaultMarker,
		dialer:   DialWebSocket,
	}
	for _, opt := range opts {
		opt(&o)
	}

	queue, err := engine.NewQueue(o.capacity)
	if err != nil {
		return nil, fmt.Errorf("console: %w", err)
	}
	diag := engine.NewDiagnostics(o.diagnostics)

	conn, err := o.dialer(ctx, address)
	if err != nil {
		return nil, &ConnectError{Address: address, Err: err}
	}
	if len(o.tee) > 0 {
		conn = output.NewFanOutConn(append([]output.Conn{conn}, o.tee...)...)
	}

	pipeline := engine.NewPipeline(queue, conn, o.codec, o.chain, diag)
	if err := pipeline.Handshake(ctx, model.NewHello()); err != nil {
		_ = conn.Close()
		return nil, &ConnectError{Address: address, Err: err}
	}
	// The loop outlives ctx; Shutdown stops it.
	if err := pipeline.Start(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("console: %w", err)
	}

	level := new(slog.LevelVar)
	level.Set(LevelTrace)
	sink := NewSink(queue, o.marker, diag)
	sink.level = level

	return &Forwarder{
		address:  address,
		sink:     sink,
		pipeline: pipeline,
		level:    level,
		logger:   slog.New(NewHandler(sink, level)),
	}, nil
}

func (f *Forwarder) Address() string {
	return f.address
}

func (f *Forwarder) Sink() *Sink {
	return f.sink
}

// Logger returns a slog.Logger that forwards through this Forwarder.
func (f *Forwarder) Logger() *slog.Logger {
	return f.logger
}

// Level controls the most verbose level forwarded, both by the Logger
// and by direct Sink calls.
func (f *Forwarder) Level() *slog.LevelVar {
	return f.level
}

// Pipeline exposes the delivery loop, mostly for hot reload.
func (f *Forwarder) Pipeline() *engine.Pipeline {
	return f.pipeline
}

// Done is closed once the delivery loop has stopped.
func (f *Forwarder) Done() <-chan struct{} {
	return f.pipeline.Done()
}

// Shutdown stops accepting records, waits for the queued ones to be
// written and closes the connection. If ctx expires first the
// remaining records are discarded and ctx.Err is returned. A write
// failure that ended the loop earlier is returned as well.
func (f *Forwarder) Shutdown(ctx context.Context) error {
	f.pipeline.Queue().CloseSend()
	select {
	case <-f.pipeline.Done():
		return f.pipeline.Err()
	case <-ctx.Done():
		f.pipeline.Abort()
		return ctx.Err()
	}
}
