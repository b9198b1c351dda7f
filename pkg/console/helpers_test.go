package console

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// collector is a minimal console: it accepts WebSocket connections on
// /ws and publishes every message it reads.
type collector struct {
	srv  *httptest.Server
	msgs chan []byte
}

// newCollector starts a collector. If closeAfter is positive the
// collector closes each connection after reading that many messages.
func newCollector(t *testing.T, closeAfter int) *collector {
	t.Helper()
	c := &collector{msgs: make(chan []byte, 1024)}
	c.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "")
		conn.SetReadLimit(1 << 22)

		read := 0
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			c.msgs <- data
			read++
			if closeAfter > 0 && read >= closeAfter {
				conn.Close(websocket.StatusNormalClosure, "done")
				return
			}
		}
	}))
	t.Cleanup(c.srv.Close)
	return c
}

func (c *collector) address() string {
	return strings.TrimPrefix(c.srv.URL, "http://")
}

func (c *collector) next(t *testing.T) []byte {
	t.Helper()
	select {
	case m := <-c.msgs:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("collector received nothing")
		return nil
	}
}

func (c *collector) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case m := <-c.msgs:
		t.Fatalf("unexpected message: %s", m)
	case <-time.After(100 * time.Millisecond):
	}
}
