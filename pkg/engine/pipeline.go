package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"consolefwd/pkg/codec"
	"consolefwd/pkg/model"
	"consolefwd/pkg/output"
)

// State is the lifecycle stage of a delivery loop.
type State int32

const (
	StateConnecting State = iota
	StateHandshakeSent
	StateStreaming
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshakeSent:
		return "handshake_sent"
	case StateStreaming:
		return "streaming"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

var (
	ErrNoHandshake    = errors.New("hello has not been sent")
	ErrAlreadyStarted = errors.New("pipeline already started")
	ErrHandshake      = errors.New("failed to send hello")
	ErrWriteFailure   = errors.New("failed to write record")
)

// Pipeline connects the hand-off Queue -> ProcessorChain -> Conn.
//
// It owns the connection: the hello goes out first, then one message
// per record in queue order. A failed write ends the loop for good;
// there is no reconnect.
type Pipeline struct {
	queue *Queue
	conn  output.Conn
	codec codec.Codec
	diag  *Diagnostics
	chain atomic.Pointer[ProcessorChain] // Hot-swappable chain

	mu        sync.Mutex
	state     atomic.Int32
	closeConn sync.Once

	written atomic.Uint64
	dropped atomic.Uint64

	done chan struct{}
	err  error // set before done is closed
}

func NewPipeline(q *Queue, conn output.Conn, c codec.Codec, chain *ProcessorChain, diag *Diagnostics) *Pipeline {
	if c == nil {
		c = codec.JSON
	}
	if diag == nil {
		diag = NewDiagnostics(nil)
	}
	p := &Pipeline{
		queue: q,
		conn:  conn,
		codec: c,
		diag:  diag,
		done:  make(chan struct{}),
	}
	p.chain.Store(chain)
	return p
}

// UpdateChain hot-swaps the processor chain safely.
func (p *Pipeline) UpdateChain(chain *ProcessorChain) {
	p.chain.Store(chain)
	p.diag.Logger().Debug("processor chain swapped", "processors", chain.Names())
}

// Handshake sends hello on the connection. It must succeed before Start.
func (p *Pipeline) Handshake(ctx context.Context, hello model.Hello) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s := p.State(); s != StateConnecting {
		return fmt.Errorf("%w: pipeline is %s", ErrHandshake, s)
	}

	frame, err := p.codec.Marshal(hello)
	if err != nil {
		p.state.Store(int32(StateTerminated))
		return fmt.Errorf("%w: encode: %w", ErrHandshake, err)
	}
	if err := p.conn.WriteMessage(ctx, frame); err != nil {
		p.state.Store(int32(StateTerminated))
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	p.state.Store(int32(StateHandshakeSent))
	return nil
}

// Start launches the delivery worker. Cancelling ctx stops it without
// reporting a failure.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.State() {
	case StateConnecting:
		return ErrNoHandshake
	case StateHandshakeSent:
	default:
		return ErrAlreadyStarted
	}

	p.state.Store(int32(StateStreaming))
	go p.worker(ctx)
	return nil
}

func (p *Pipeline) worker(ctx context.Context) {
	stop := context.AfterFunc(ctx, p.queue.CloseRecv)
	defer func() {
		stop()
		p.state.Store(int32(StateTerminated))
		p.queue.CloseRecv()
		p.shutdownConn()
		close(p.done)
	}()

	pCtx := NewProcessingContext(ctx)

	for {
		rec, ok := p.queue.Pop()
		if !ok {
			return
		}

		pCtx.reset()
		processed, drop, err := p.chain.Load().Process(pCtx, rec)
		if err != nil {
			p.diag.Logger().Warn("process error", "target", rec.Metadata.Target, "error", err)
			continue
		}
		if drop {
			p.dropped.Add(1)
			continue
		}

		frame, err := p.codec.Marshal(processed)
		if err != nil {
			p.diag.Logger().Warn("encode error", "target", rec.Metadata.Target, "error", err)
			continue
		}

		if err := p.conn.WriteMessage(ctx, frame); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.err = fmt.Errorf("%w: %w", ErrWriteFailure, err)
			p.diag.Terminal("console forwarding stopped", p.err)
			return
		}
		p.written.Add(1)
	}
}

// Abort stops the worker without draining and closes the connection.
func (p *Pipeline) Abort() {
	p.queue.CloseRecv()
	p.shutdownConn()
}

func (p *Pipeline) shutdownConn() {
	p.closeConn.Do(func() {
		_ = p.conn.Close()
	})
}

// Done is closed once the worker has exited.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Err returns the write failure that ended the worker, if any. It is
// only meaningful after Done is closed.
func (p *Pipeline) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Written returns the number of records delivered.
func (p *Pipeline) Written() uint64 {
	return p.written.Load()
}

// Dropped returns the number of records removed by the processor chain.
func (p *Pipeline) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *Pipeline) Queue() *Queue {
	return p.queue
}
