package hubwire

import (
	"net/http"
	"net/url"
	"sync/atomic"
)

// credentialHolder is the shared, swappable Authorization value read by the
// auth-header middleware and rewritten by the token lifecycle. The value is
// replaced wholesale on refresh, so a concurrent reader observes either the
// entirely-old or entirely-new credential, never a partial update.
type credentialHolder struct {
	value atomic.Pointer[string]
}

func (h *credentialHolder) get() (string, bool) {
	v := h.value.Load()
	if v == nil {
		return "", false
	}
	return *v, true
}

func (h *credentialHolder) set(headerValue string) {
	h.value.Store(&headerValue)
}

// authHeaderMiddleware attaches the held credential to requests bound for
// the configured base authority. Requests whose authority differs are left
// untouched: a response may have redirected us to a third-party host, and
// we must not hand it our credentials.
func authHeaderMiddleware(holder *credentialHolder, base *url.URL) Middleware {
	return func(req *http.Request, next RoundTripper) (*http.Response, error) {
		authority := req.URL.Host
		if authority == "" || authority == base.Host {
			if v, ok := holder.get(); ok {
				req.Header.Set("Authorization", v)
			}
		}
		return next.RoundTrip(req)
	}
}
