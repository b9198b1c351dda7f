package output

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"nhooyr.io/websocket"
)

// ConsolePath is the endpoint the console serves on.
const ConsolePath = "/ws"

// ConsoleURL builds the WebSocket URL for a console listening on address.
func ConsoleURL(address string) string {
	address = strings.TrimSuffix(address, "/")
	return "ws://" + address + ConsolePath
}

// WebSocketConn sends each frame as one binary WebSocket message.
type WebSocketConn struct {
	url  string
	conn *websocket.Conn

	// closed is done once the peer closes or the read side fails.
	closed context.Context
}

// DialOptions tunes DialWebSocket.
type DialOptions struct {
	HTTPClient *http.Client
	Header     http.Header
}

// DialWebSocket connects to the console at ws://address/ws.
func DialWebSocket(ctx context.Context, address string, opts *DialOptions) (*WebSocketConn, error) {
	url := ConsoleURL(address)

	var wsOpts *websocket.DialOptions
	if opts != nil {
		wsOpts = &websocket.DialOptions{
			HTTPClient: opts.HTTPClient,
			HTTPHeader: opts.Header,
		}
	}

	conn, resp, err := websocket.Dial(ctx, url, wsOpts)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	// The console never sends to us. CloseRead keeps control frames
	// flowing so a peer close fails the next write.
	closed := conn.CloseRead(context.Background())

	return &WebSocketConn{url: url, conn: conn, closed: closed}, nil
}

// URL returns the address this connection was dialed with.
func (w *WebSocketConn) URL() string {
	return w.url
}

func (w *WebSocketConn) WriteMessage(ctx context.Context, frame []byte) error {
	if err := w.closed.Err(); err != nil {
		return errors.New("connection closed by peer")
	}
	return w.conn.Write(ctx, websocket.MessageBinary, frame)
}

func (w *WebSocketConn) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "")
}
