package uploader

import (
	"context"
	"errors"
	"fmt"

	"github.com/reelproof/reelproof/internal/client/transport"
)

// chunkedTransport adapts the HTTP chunked-upload client to the queue's
// Transport contract.
type chunkedTransport struct {
	client *transport.Client
}

// NewChunkedTransport wraps a transport client for use by the Manager.
func NewChunkedTransport(c *transport.Client) Transport {
	return &chunkedTransport{client: c}
}

func (ct *chunkedTransport) OpenTransfer(cfg TransferConfig, src FileSource) (TransferHandle, error) {
	if cfg.UploadURL == "" {
		return nil, fmt.Errorf("transfer for %s has no upload url", src.Name)
	}
	st := ct.client.OpenStream(cfg.UploadURL, cfg.Offset, cfg.TotalSize, cfg.Metadata, src.Open)
	return &streamHandle{st: st}, nil
}

// streamHandle forwards to a transport.Stream, translating its abort
// sentinel into the queue's.
type streamHandle struct {
	st *transport.Stream
}

func (h *streamHandle) Run(ctx context.Context, onProgress func(uploaded, total int64)) error {
	err := h.st.Run(ctx, onProgress)
	if errors.Is(err, transport.ErrAborted) {
		return ErrAborted
	}
	return err
}

func (h *streamHandle) Abort(hard bool)                        { h.st.Abort(hard) }
func (h *streamHandle) Sync(ctx context.Context) (int64, error) { return h.st.Sync(ctx) }
func (h *streamHandle) Offset() int64                           { return h.st.Offset() }
func (h *streamHandle) Close() error                            { return h.st.Close() }
