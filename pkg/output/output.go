// Package output holds the message sinks the delivery loop writes to.
package output

import "context"

// Conn is an ordered, message-oriented connection to a log consumer.
// Each WriteMessage call delivers exactly one frame. Implementations
// are used by a single writer and need not be safe for concurrent use.
type Conn interface {
	WriteMessage(ctx context.Context, frame []byte) error
	Close() error
}
