package hubwire

import "net/http"

// extraHeadersMiddleware appends the configured static header set to every
// outgoing request, regardless of destination.
func extraHeadersMiddleware(headers []Header) Middleware {
	return func(req *http.Request, next RoundTripper) (*http.Response, error) {
		for _, h := range headers {
			req.Header.Add(h.Name, h.Value)
		}
		return next.RoundTrip(req)
	}
}
