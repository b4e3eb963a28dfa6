package hubwire

import (
	"net/http"
	"net/url"
	"strings"
)

// rewriteURL joins the configured base with the request target, preserving
// any path prefix on the base:
//
//   - scheme and authority come from the target when present, otherwise
//     from the base
//   - when the base carries a path and the target supplies a path-and-query,
//     the base path (trailing slashes stripped) is prepended to the target's
//     path-and-query; otherwise whichever of the two supplies a path wins
//
// rewriteURL is a pure function; neither argument is mutated.
func rewriteURL(base, target *url.URL) *url.URL {
	out := &url.URL{
		Scheme:   target.Scheme,
		Host:     target.Host,
		Path:     target.Path,
		RawQuery: target.RawQuery,
	}
	if out.Scheme == "" {
		out.Scheme = base.Scheme
	}
	if out.Host == "" {
		out.Host = base.Host
	}

	if base.Path != "" {
		if target.Path != "" || target.RawQuery != "" {
			// A request path always starts with a slash, so stripping the
			// base's trailing slashes keeps exactly one separator.
			out.Path = strings.TrimRight(base.Path, "/") + target.Path
		} else {
			out.Path = base.Path
			out.RawQuery = base.RawQuery
		}
	}
	return out
}

// baseURIMiddleware makes every request relative to base. Requests that
// already carry an absolute URL keep their own scheme and authority, which
// is what lets callers follow cross-host links from response payloads.
func baseURIMiddleware(base *url.URL) Middleware {
	return func(req *http.Request, next RoundTripper) (*http.Response, error) {
		req.URL = rewriteURL(base, req.URL)
		req.Host = ""
		return next.RoundTrip(req)
	}
}
