package hubwire

import (
	"net/http"
	"time"
)

// Middleware wraps a request on its way to the transport. Each middleware
// may rewrite the request, short-circuit with its own response, or decorate
// the response returned by next.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface at the bottom of the
// middleware chain.
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc adapts a function to the RoundTripper interface.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Header is a single static header appended to every outgoing request.
type Header struct {
	Name  string
	Value string
}

// TokenRecord is a minted installation token together with its expiry.
// A record is considered dead as soon as now >= ExpiresAt.
type TokenRecord struct {
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the record is no longer usable at the given time.
func (r *TokenRecord) Expired(now time.Time) bool {
	return r == nil || !now.Before(r.ExpiresAt)
}

// Option configures a Client at construction time.
type Option func(*Client)

// Logger is the minimal structured logging interface used by the client.
// Keys and values alternate, zerolog-style flattened pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
