// Package hubwire implements the request-execution runtime behind a
// GitHub-style REST API client:
//
//   - Base-URI rewriting (relative routes resolved against a configured base,
//     preserving any path prefix on the base)
//   - Static extra headers appended to every outgoing request
//   - Credential header injection, gated on the destination authority so
//     tokens are never leaked to third-party hosts after a redirect
//   - Conditional-request caching (ETag / Last-Modified validators served
//     back as If-None-Match / If-Modified-Since, 304 answered from the store)
//   - A header-driven rate limiter that estimates the remaining request
//     budget and recommends delays before the server starts rejecting
//   - App JWT and installation-token lifecycle management with a bounded
//     refresh-and-retry-once policy on credential expiry
//
// Design goals:
//   - Small surface area – functional options configure everything
//   - Safe concurrent use of a single *Client instance
//   - Extensibility via user supplied middleware & pluggable cache / metrics
//
// Typical usage:
//
//	client, err := hubwire.New(
//	    hubwire.WithBaseURL("https://api.github.com"),
//	    hubwire.WithPersonalToken(os.Getenv("GITHUB_TOKEN")),
//	    hubwire.WithCacheStorage(hubwire.NewInMemoryCache()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var repo struct {
//	    FullName string `json:"full_name"`
//	}
//	err = client.Get(ctx, "/repos/rust-lang/rust", &repo)
//
// The runtime deliberately adds exactly two local behaviours on top of the
// transport: one bounded auth-refresh retry and one cache short-circuit.
// Everything else (transport failures, upstream responses) passes through
// unchanged so callers keep full control over retry policy.
package hubwire
