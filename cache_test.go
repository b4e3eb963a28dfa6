package hubwire

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCacheCommitPublishesAtomically(t *testing.T) {
	cache := NewInMemoryCache()
	headers := http.Header{"Content-Type": []string{"application/json"}}

	w := cache.Writer("/repos/o/r", Validator{Kind: ValidatorETag, Value: `"abc"`}, headers)
	w.Write([]byte(`{"id"`))

	// Nothing is visible until Commit.
	_, ok := cache.TryHit("/repos/o/r")
	assert.False(t, ok, "validator visible before commit")
	_, ok = cache.Load("/repos/o/r")
	assert.False(t, ok, "body visible before commit")

	w.Write([]byte(`:1}`))
	w.Commit()

	v, ok := cache.TryHit("/repos/o/r")
	require.True(t, ok)
	assert.Equal(t, ValidatorETag, v.Kind)
	assert.Equal(t, `"abc"`, v.Value)

	cached, ok := cache.Load("/repos/o/r")
	require.True(t, ok)
	assert.Equal(t, `{"id":1}`, string(cached.Body))
	assert.Equal(t, "application/json", cached.Headers.Get("Content-Type"))
}

func TestInMemoryCacheAbandonedWriterCommitsNothing(t *testing.T) {
	cache := NewInMemoryCache()

	w := cache.Writer("/x", Validator{Kind: ValidatorETag, Value: `"v"`}, http.Header{})
	w.Write([]byte("partial"))
	// Writer goes out of scope without Commit: the truncated body must
	// never become visible.
	w = nil
	_ = w

	_, ok := cache.TryHit("/x")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestInMemoryCacheOverwrite(t *testing.T) {
	cache := NewInMemoryCache()

	w := cache.Writer("/x", Validator{Kind: ValidatorETag, Value: `"one"`}, http.Header{})
	w.Write([]byte("first"))
	w.Commit()

	w = cache.Writer("/x", Validator{Kind: ValidatorLastModified, Value: "Wed, 21 Oct 2015 07:28:00 GMT"}, http.Header{})
	w.Write([]byte("second"))
	w.Commit()

	v, ok := cache.TryHit("/x")
	require.True(t, ok)
	assert.Equal(t, ValidatorLastModified, v.Kind)

	cached, _ := cache.Load("/x")
	assert.Equal(t, "second", string(cached.Body))
}

func TestInMemoryCacheConcurrentAccess(t *testing.T) {
	cache := NewInMemoryCache()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				w := cache.Writer("/shared", Validator{Kind: ValidatorETag, Value: `"t"`}, http.Header{})
				w.Write([]byte("body"))
				w.Commit()
				cache.TryHit("/shared")
				cache.Load("/shared")
			}
		}()
	}
	wg.Wait()

	cached, ok := cache.Load("/shared")
	require.True(t, ok)
	assert.Equal(t, "body", string(cached.Body))
}

func TestValidatorFromHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("ETag", `"e"`)
	h.Set("Last-Modified", "Wed, 21 Oct 2015 07:28:00 GMT")

	// ETag takes precedence.
	v, ok := validatorFromHeaders(h)
	require.True(t, ok)
	assert.Equal(t, ValidatorETag, v.Kind)

	h.Del("ETag")
	v, ok = validatorFromHeaders(h)
	require.True(t, ok)
	assert.Equal(t, ValidatorLastModified, v.Kind)

	h.Del("Last-Modified")
	_, ok = validatorFromHeaders(h)
	assert.False(t, ok)
}

// Issuing the same GET twice against a responder that hands out an ETag on
// the first response and a 304 on the second must yield identical bodies,
// with only one real fetch of the underlying resource.
func TestConditionalRequestFlow(t *testing.T) {
	const etag = `"33a64df551425fcc55e4d42a148795d9f25f89d4"`
	fullFetches := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.Header().Set("X-RateLimit-Reset", "99999999999")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		fullFetches++
		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"full_name":"rust-lang/rust"}`))
	}))
	defer server.Close()

	client, err := New(
		WithBaseURL(server.URL),
		WithCacheStorage(NewInMemoryCache()),
	)
	require.NoError(t, err)

	read := func() (string, *http.Response) {
		req, err := client.NewRequest(context.Background(), http.MethodGet, "/repos/rust-lang/rust", nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(data), resp
	}

	first, firstResp := read()
	second, secondResp := read()

	assert.Equal(t, first, second, "cached body must match the original")
	assert.Equal(t, `{"full_name":"rust-lang/rust"}`, second)
	assert.Equal(t, 1, fullFetches, "second request must be served conditionally")

	assert.Equal(t, http.StatusOK, secondResp.StatusCode, "304 must be rewritten to 200")
	assert.Equal(t, "application/json", secondResp.Header.Get("Content-Type"),
		"missing 304 headers are restored from the cache")

	// The conditional hit does not consume rate-limit budget, so both
	// responses report the same remaining count.
	assert.Equal(t,
		firstResp.Header.Get("X-RateLimit-Remaining"),
		secondResp.Header.Get("X-RateLimit-Remaining"))
}

func TestCacheSkipsUnsafeMethods(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("ETag", `"p"`)
		w.Write([]byte("created"))
	}))
	defer server.Close()

	cache := NewInMemoryCache()
	client, err := New(WithBaseURL(server.URL), WithCacheStorage(cache))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		req, err := client.NewRequest(context.Background(), http.MethodPost, "/things", NewStringBody(`{}`))
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	assert.Equal(t, 2, hits)
	assert.Equal(t, 0, cache.Len(), "POST responses must not be cached")
}

func TestCacheEntryCommittedOnlyAfterFullRead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"big"`)
		w.Write(make([]byte, 64*1024))
	}))
	defer server.Close()

	cache := NewInMemoryCache()
	client, err := New(WithBaseURL(server.URL), WithCacheStorage(cache))
	require.NoError(t, err)

	req, err := client.NewRequest(context.Background(), http.MethodGet, "/big", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)

	// Abandon the body after a partial read: no entry may be committed.
	buf := make([]byte, 10)
	resp.Body.Read(buf)
	resp.Body.Close()

	_, ok := cache.TryHit(server.URL + "/big")
	assert.False(t, ok, "partial read must not commit a cache entry")
}
