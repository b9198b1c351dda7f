package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"consolefwd/pkg/model"
)

// DefaultQueueCapacity bounds the hand-off queue between producers and
// the delivery loop.
const DefaultQueueCapacity = 10000

var (
	// ErrQueueClosed is returned by Push once the consumer has stopped.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueShutdown is returned by Push after CloseSend. It matches
	// ErrQueueClosed.
	ErrQueueShutdown = fmt.Errorf("%w: shut down", ErrQueueClosed)
)

// Queue is a bounded FIFO of records between any number of producers
// and a single consumer. Push blocks while the queue is full and Pop
// blocks while it is empty.
//
// The send side is closed by CloseSend: Pop keeps returning buffered
// records and reports false once they are drained. The receive side is
// closed by CloseRecv, which the consumer calls when it stops: every
// pending and future Push fails with ErrQueueClosed, or ErrQueueShutdown
// if the send side was closed first.
type Queue struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	data []model.Record
	head uint64
	tail uint64
	size uint64

	sendClosed bool
	recvClosed bool

	// Metrics
	rejected atomic.Uint64
}

// NewQueue creates a queue holding at most size records.
func NewQueue(size int) (*Queue, error) {
	if size <= 0 {
		return nil, errors.New("queue size must be positive")
	}
	q := &Queue{
		data: make([]model.Record, size),
		size: uint64(size),
	}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q, nil
}

// Push appends rec, waiting for space if the queue is full.
func (q *Queue) Push(rec model.Record) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head-q.tail >= q.size && !q.sendClosed && !q.recvClosed {
		q.notFull.Wait()
	}
	if q.sendClosed {
		q.rejected.Add(1)
		return ErrQueueShutdown
	}
	if q.recvClosed {
		q.rejected.Add(1)
		return ErrQueueClosed
	}

	q.data[q.head%q.size] = rec
	q.head++
	q.notEmpty.Signal()
	return nil
}

// Pop removes the oldest record, waiting for one if the queue is empty.
// It returns false when the send side is closed and nothing is left, or
// when the receive side has been closed.
func (q *Queue) Pop() (model.Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head == q.tail && !q.sendClosed && !q.recvClosed {
		q.notEmpty.Wait()
	}
	if q.recvClosed || q.head == q.tail {
		return model.Record{}, false
	}

	idx := q.tail % q.size
	rec := q.data[idx]
	q.data[idx] = model.Record{}
	q.tail++
	q.notFull.Signal()
	return rec, true
}

// CloseSend marks the end of input. Buffered records stay available to Pop.
func (q *Queue) CloseSend() {
	q.mu.Lock()
	q.sendClosed = true
	q.mu.Unlock()
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// CloseRecv discards buffered records and wakes every blocked caller.
func (q *Queue) CloseRecv() {
	q.mu.Lock()
	q.recvClosed = true
	for i := range q.data {
		q.data[i] = model.Record{}
	}
	q.tail = q.head
	q.mu.Unlock()
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// RejectedCount returns the number of pushes refused because the queue was closed.
func (q *Queue) RejectedCount() uint64 {
	return q.rejected.Load()
}

// Usage returns the number of records currently in the queue.
func (q *Queue) Usage() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.head - q.tail
}

// Capacity returns the total size of the queue.
func (q *Queue) Capacity() uint64 {
	return q.size
}
