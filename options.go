package hubwire

import "net/http"

// WithBaseURL sets the API root every relative route is resolved against.
// A path prefix on the base (e.g. behind a reverse proxy) is preserved.
func WithBaseURL(rawURL string) Option {
	return func(c *Client) {
		c.rawBaseURL = rawURL
	}
}

// WithHTTPClient sets a custom underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithPersonalToken authenticates every request with a personal access or
// OAuth token. The token never expires from the client's point of view.
func WithPersonalToken(token string) Option {
	return func(c *Client) {
		c.mode = authStatic
		c.staticToken = token
	}
}

// WithAppAuth authenticates as the App itself: a fresh RS256 JWT is minted
// per request from the given PEM-encoded private key.
func WithAppAuth(appID string, privateKeyPEM []byte) Option {
	return func(c *Client) {
		c.mode = authAppJWT
		c.appID = appID
		c.privateKeyPEM = privateKeyPEM
	}
}

// WithInstallationAuth authenticates as an App installation: short-lived
// installation tokens are minted on demand via the token endpoint and
// refreshed transparently when they expire.
func WithInstallationAuth(appID string, privateKeyPEM []byte, installationID int64) Option {
	return func(c *Client) {
		c.mode = authInstallation
		c.appID = appID
		c.privateKeyPEM = privateKeyPEM
		c.installationID = installationID
	}
}

// WithExtraHeader appends one static header to every outgoing request.
func WithExtraHeader(name, value string) Option {
	return func(c *Client) {
		c.extraHeaders = append(c.extraHeaders, Header{Name: name, Value: value})
	}
}

// WithExtraHeaders appends a static header set to every outgoing request.
func WithExtraHeaders(headers []Header) Option {
	return func(c *Client) {
		c.extraHeaders = append(c.extraHeaders, headers...)
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithCacheStorage enables conditional-request caching backed by the given
// store. Use NewInMemoryCache for the default process-local store.
func WithCacheStorage(storage CacheStorage) Option {
	return func(c *Client) {
		c.cache = storage
	}
}

// WithoutRateLimiting disables the header-driven rate limiter.
func WithoutRateLimiting() Option {
	return func(c *Client) {
		c.limiterDisabled = true
	}
}

// WithMiddleware adds user middleware to the pipeline. It runs after auth
// header injection and before the cache.
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.userMiddleware = append(c.userMiddleware, middleware...)
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRequestIDGenerator sets a custom request ID generator. The default
// produces UUIDs.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.requestIDGen = gen
	}
}
