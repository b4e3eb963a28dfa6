package hubwire

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
)

// Body is a transport-agnostic request body. It comes in two variants:
//
//   - Buffered: owns its bytes and can be read any number of times by any
//     number of holders, which is what makes retries and cache playback safe.
//   - Streaming: a single-consumption handle over an external byte source.
//     The second read attempt fails with ErrBodyConsumed.
//
// A nil *Body means "no body" and is valid everywhere a *Body is accepted.
type Body struct {
	buf       []byte
	stream    io.ReadCloser
	streaming bool
	consumed  atomic.Bool
}

// NewBufferedBody returns a replayable body owning a copy of data.
func NewBufferedBody(data []byte) *Body {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Body{buf: buf}
}

// NewStringBody returns a replayable body over the given string.
func NewStringBody(s string) *Body {
	return &Body{buf: []byte(s)}
}

// NewJSONBody marshals v and returns a replayable body over the result.
func NewJSONBody(v interface{}) (*Body, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &ClientError{Type: ErrorTypeBody, Message: "encoding request body", Cause: err}
	}
	return &Body{buf: data}, nil
}

// NewStreamingBody returns a single-consumption body reading from r.
// If r is not an io.ReadCloser it is wrapped with a no-op Close.
func NewStreamingBody(r io.Reader) *Body {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	return &Body{stream: rc, streaming: true}
}

// Replayable reports whether the body can be read more than once.
func (b *Body) Replayable() bool {
	return b == nil || !b.streaming
}

// Len returns the byte length for buffered bodies and -1 for streaming ones.
func (b *Body) Len() int {
	if b == nil {
		return 0
	}
	if b.streaming {
		return -1
	}
	return len(b.buf)
}

// Reader returns a fresh reader over the body content. Buffered bodies hand
// out an independent reader on every call. Streaming bodies hand out their
// underlying source exactly once; later calls fail with ErrBodyConsumed.
func (b *Body) Reader() (io.ReadCloser, error) {
	if b == nil {
		return http.NoBody, nil
	}
	if !b.streaming {
		return io.NopCloser(bytes.NewReader(b.buf)), nil
	}
	if b.consumed.Swap(true) {
		return nil, ErrBodyConsumed
	}
	return b.stream, nil
}

// apply attaches the body to req, wiring GetBody for buffered bodies so the
// standard library (and the refresh-retry path) can replay them.
func (b *Body) apply(req *http.Request) error {
	if b == nil {
		return nil
	}
	rc, err := b.Reader()
	if err != nil {
		return err
	}
	req.Body = rc
	if b.streaming {
		req.ContentLength = -1
		return nil
	}
	req.ContentLength = int64(len(b.buf))
	req.GetBody = func() (io.ReadCloser, error) {
		return b.Reader()
	}
	return nil
}
