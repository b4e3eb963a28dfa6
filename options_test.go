package hubwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHeadersInjectedOnce(t *testing.T) {
	client, err := New()
	require.NoError(t, err)

	accepts := 0
	for _, h := range client.extraHeaders {
		if h.Name == "Accept" {
			accepts++
			assert.Equal(t, "application/vnd.github+json", h.Value)
		}
	}
	assert.Equal(t, 1, accepts)
}

func TestConfiguredAcceptWins(t *testing.T) {
	client, err := New(WithExtraHeader("Accept", "application/vnd.github.raw+json"))
	require.NoError(t, err)

	accepts := 0
	for _, h := range client.extraHeaders {
		if h.Name == "Accept" {
			accepts++
			assert.Equal(t, "application/vnd.github.raw+json", h.Value)
		}
	}
	assert.Equal(t, 1, accepts, "default Accept must not be added next to a configured one")
}

func TestWithExtraHeadersAppends(t *testing.T) {
	client, err := New(
		WithExtraHeader("X-One", "1"),
		WithExtraHeaders([]Header{{Name: "X-Two", Value: "2"}}),
	)
	require.NoError(t, err)

	names := make(map[string]string)
	for _, h := range client.extraHeaders {
		names[h.Name] = h.Value
	}
	assert.Equal(t, "1", names["X-One"])
	assert.Equal(t, "2", names["X-Two"])
}

func TestWithRequestIDGenerator(t *testing.T) {
	client, err := New(WithRequestIDGenerator(func() string { return "fixed" }))
	require.NoError(t, err)
	assert.Equal(t, "fixed", client.requestIDGen())
}

func TestWithMetricsCollector(t *testing.T) {
	mc := &MetricsCollector{}
	client, err := New(WithMetricsCollector(mc))
	require.NoError(t, err)
	assert.Same(t, mc, client.metrics)
}
