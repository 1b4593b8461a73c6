// Package transport implements a tus-style resumable chunked upload client
// over plain HTTP. A Stream pushes one file to an upload resource in PATCH
// requests carrying Upload-Offset headers; the server acknowledges each chunk
// with the new committed offset, and a HEAD request re-reads that offset when
// the client needs to re-synchronize after an interruption.
package transport

import (
	"net/http"
	"time"
)

const (
	// DefaultChunkSize is used when the config leaves ChunkSize unset.
	DefaultChunkSize int64 = 5 * 1024 * 1024

	contentTypeOffsetStream = "application/offset+octet-stream"
)

// DefaultRetryDelays is the escalating schedule applied to transient
// failures before a chunk error is surfaced.
var DefaultRetryDelays = []time.Duration{
	0,
	1 * time.Second,
	3 * time.Second,
	5 * time.Second,
}

// Config parameterizes a Client.
type Config struct {
	// HTTPClient issues all requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// ChunkSize is the number of bytes sent per PATCH request.
	ChunkSize int64
	// RetryDelays is the wait schedule for transient failures (network
	// errors and 5xx responses). Each entry is one retry; an exhausted
	// schedule surfaces the last error. nil means DefaultRetryDelays; an
	// empty non-nil slice disables retries.
	RetryDelays []time.Duration
	// OnBeforeRequest decorates every outgoing request, typically attaching
	// the current bearer token. May be nil.
	OnBeforeRequest func(*http.Request)
}

// Client builds Streams sharing one HTTP client and chunking policy.
type Client struct {
	http        *http.Client
	chunkSize   int64
	retryDelays []time.Duration
	beforeReq   func(*http.Request)
}

func NewClient(cfg Config) *Client {
	c := &Client{
		http:        cfg.HTTPClient,
		chunkSize:   cfg.ChunkSize,
		retryDelays: cfg.RetryDelays,
		beforeReq:   cfg.OnBeforeRequest,
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.chunkSize <= 0 {
		c.chunkSize = DefaultChunkSize
	}
	if c.retryDelays == nil {
		c.retryDelays = DefaultRetryDelays
	}
	return c
}
