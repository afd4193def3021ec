// Package httputil provides the shared HTTP plumbing for outbound calls to
// LLM judge providers and embedding servers: one pooled transport, bounded
// body reads, and a semaphore for capping concurrent escalations.
package httputil

import (
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// MaxResponseSize caps response body reads. Judge verdicts and embedding
// vectors are small; anything larger is a misbehaving upstream.
const MaxResponseSize = 4 * 1024 * 1024 // 4MB

// One transport for the process. Judge and embedding calls hit the same one
// or two hosts repeatedly, so connection reuse matters more than isolation.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

var (
	clientMu sync.Mutex
	clients  = map[time.Duration]*http.Client{}
)

// Client returns a pooled HTTP client with the given total-request timeout.
// Clients are cached per timeout and share the process transport; callers
// must not mutate the returned client.
func Client(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	clientMu.Lock()
	defer clientMu.Unlock()
	if c, ok := clients[timeout]; ok {
		return c
	}
	c := &http.Client{
		Timeout:   timeout,
		Transport: sharedTransport,
	}
	clients[timeout] = c
	return c
}

// ReadResponseBody reads an HTTP response body with a size limit.
// Pass maxSize <= 0 for the default cap.
func ReadResponseBody(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = MaxResponseSize
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// ReadErrorBody reads a response body for inclusion in an error message.
// Uses a smaller limit since upstream error payloads should be short.
func ReadErrorBody(r io.Reader) ([]byte, error) {
	const maxErrorSize = 64 * 1024
	return io.ReadAll(io.LimitReader(r, maxErrorSize))
}

// DrainAndClose drains and closes a response body so the underlying
// connection returns to the pool.
func DrainAndClose(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxResponseSize))
		_ = body.Close()
	}
}
