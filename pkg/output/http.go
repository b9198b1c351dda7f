package output

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPConn posts every frame to a collector URL.
type HTTPConn struct {
	url         string
	contentType string
	headers     map[string]string
	client      *http.Client
}

func NewHTTPConn(url, contentType string, headers map[string]string) *HTTPConn {
	if contentType == "" {
		contentType = "application/json"
	}
	return &HTTPConn{
		url:         url,
		contentType: contentType,
		headers:     headers,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (h *HTTPConn) WriteMessage(ctx context.Context, frame []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(frame))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", h.contentType)
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http output failed with status: %d", resp.StatusCode)
	}

	return nil
}

func (h *HTTPConn) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
