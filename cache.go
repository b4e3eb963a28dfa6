package hubwire

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// ValidatorKind distinguishes the two freshness validators the API hands out.
type ValidatorKind int

const (
	// ValidatorETag is an entity tag served back via If-None-Match.
	ValidatorETag ValidatorKind = iota
	// ValidatorLastModified is a timestamp served back via If-Modified-Since.
	ValidatorLastModified
)

// Validator is an opaque cache-freshness token extracted from a response.
type Validator struct {
	Kind  ValidatorKind
	Value string
}

// CachedResponse holds the response payload and headers stored for a URI.
type CachedResponse struct {
	Body    []byte
	Headers http.Header
}

// CacheStorage is the pluggable store behind the conditional-request cache.
// Implementations must be safe for concurrent use, and Load must return an
// entry whenever TryHit reported one for the same URI.
type CacheStorage interface {
	// TryHit returns the stored validator for the URI, if any.
	TryHit(uri string) (Validator, bool)
	// Load returns the cached response for the URI, if any.
	Load(uri string) (CachedResponse, bool)
	// Writer returns a sink that accumulates the response body for the URI.
	// The entry becomes visible only once Commit is called; a writer that is
	// abandoned mid-stream commits nothing.
	Writer(uri string, validator Validator, headers http.Header) CacheWriter
}

// CacheWriter accumulates response bytes as they stream past and publishes
// them atomically on Commit.
type CacheWriter interface {
	io.Writer
	Commit()
}

// InMemoryCache is the default CacheStorage: two maps behind a single mutex.
// The lock is held only across map operations, never across I/O.
type InMemoryCache struct {
	mu         sync.Mutex
	validators map[string]Validator
	responses  map[string]CachedResponse
}

// NewInMemoryCache returns an empty in-memory cache store.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		validators: make(map[string]Validator),
		responses:  make(map[string]CachedResponse),
	}
}

func (c *InMemoryCache) TryHit(uri string) (Validator, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.validators[uri]
	return v, ok
}

func (c *InMemoryCache) Load(uri string) (CachedResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.responses[uri]
	return r, ok
}

func (c *InMemoryCache) Writer(uri string, validator Validator, headers http.Header) CacheWriter {
	return &inMemoryWriter{
		cache:     c,
		uri:       uri,
		validator: validator,
		response:  CachedResponse{Headers: headers},
	}
}

// Len reports the number of cached entries, for metrics and tests.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.responses)
}

type inMemoryWriter struct {
	cache     *InMemoryCache
	uri       string
	validator Validator
	response  CachedResponse
}

func (w *inMemoryWriter) Write(p []byte) (int, error) {
	w.response.Body = append(w.response.Body, p...)
	return len(p), nil
}

// Commit replaces the validator and body for the URI in one critical
// section, so a reader never sees a validator without its matching body.
func (w *inMemoryWriter) Commit() {
	w.cache.mu.Lock()
	defer w.cache.mu.Unlock()
	w.cache.validators[w.uri] = w.validator
	w.cache.responses[w.uri] = w.response
}

// restoredHeaders are missing from 304 Not Modified responses but matter for
// further processing, so they are copied back from the cached entry.
var restoredHeaders = []string{"Content-Type", "Content-Length", "Link"}

// cacheMiddleware serves repeat safe requests conditionally: a known
// validator is attached on the way out, a 304 is answered from the store,
// and any validator-bearing success has its body recorded as it streams by.
func cacheMiddleware(storage CacheStorage, metrics *MetricsCollector, logger Logger) Middleware {
	return func(req *http.Request, next RoundTripper) (*http.Response, error) {
		if storage == nil || !isCacheableMethod(req.Method) {
			return next.RoundTrip(req)
		}

		uri := req.URL.String()
		if v, ok := storage.TryHit(uri); ok {
			switch v.Kind {
			case ValidatorETag:
				req.Header.Set("If-None-Match", v.Value)
			case ValidatorLastModified:
				req.Header.Set("If-Modified-Since", v.Value)
			}
		}

		resp, err := next.RoundTrip(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusNotModified {
			cached, ok := storage.Load(uri)
			if !ok {
				// A validator without a body should not happen, but a broken
				// store degrades to handing the caller the bare 304.
				if logger != nil {
					logger.Warn("cache store returned validator without body", "uri", uri)
				}
				return resp, nil
			}
			metrics.RecordCacheHit(req.Method, endpointLabel(req))
			if logger != nil {
				logger.Debug("serving cached response", "uri", uri)
			}
			resp.Body.Close()
			for _, name := range restoredHeaders {
				if v := cached.Headers.Get(name); v != "" {
					resp.Header.Set(name, v)
				}
			}
			resp.StatusCode = http.StatusOK
			resp.Status = http.StatusText(http.StatusOK)
			resp.Body = io.NopCloser(bytes.NewReader(cached.Body))
			resp.ContentLength = int64(len(cached.Body))
			return resp, nil
		}

		metrics.RecordCacheMiss(req.Method, endpointLabel(req))

		if v, ok := validatorFromHeaders(resp.Header); ok && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			w := storage.Writer(uri, v, resp.Header.Clone())
			resp.Body = &recordingBody{inner: resp.Body, writer: w}
		}
		return resp, nil
	}
}

// isCacheableMethod limits conditional caching to safe, idempotent verbs.
func isCacheableMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// validatorFromHeaders extracts a validator from response headers. ETag
// takes precedence over Last-Modified, being the more accurate of the two.
func validatorFromHeaders(h http.Header) (Validator, bool) {
	if etag := h.Get("ETag"); etag != "" {
		return Validator{Kind: ValidatorETag, Value: etag}, true
	}
	if lm := h.Get("Last-Modified"); lm != "" {
		return Validator{Kind: ValidatorLastModified, Value: lm}, true
	}
	return Validator{}, false
}

// recordingBody tees a response body into a cache writer. The entry is
// committed only after the body has been read to completion; a body dropped
// mid-stream never publishes a truncated entry.
type recordingBody struct {
	inner     io.ReadCloser
	writer    CacheWriter
	committed bool
}

func (b *recordingBody) Read(p []byte) (int, error) {
	n, err := b.inner.Read(p)
	if n > 0 {
		b.writer.Write(p[:n])
	}
	if err == io.EOF && !b.committed {
		b.committed = true
		b.writer.Commit()
	}
	return n, err
}

func (b *recordingBody) Close() error {
	return b.inner.Close()
}
