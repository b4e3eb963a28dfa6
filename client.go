package hubwire

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is the API root used when no base URL is configured.
const DefaultBaseURL = "https://api.github.com"

// maxErrorBodySize bounds how much of an error response body is read back.
const maxErrorBodySize = 64 * 1024

// Client executes API requests through an ordered middleware pipeline:
// base-URI rewrite, extra headers, auth header, conditional-request cache,
// then the transport. It also paces requests against the remote rate limit
// and manages App JWT / installation token lifetimes. All mutable state is
// owned by the Client and shared by every request issued through it; a
// single instance is safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	baseURL      *url.URL
	rawBaseURL   string
	extraHeaders []Header
	userAgent    string

	mode           authMode
	staticToken    string
	appID          string
	privateKeyPEM  []byte
	appKey         *rsa.PrivateKey
	installationID int64

	holder *credentialHolder
	tokens *installationTokenSource

	cache            CacheStorage
	limiter          *RateLimiter
	limiterDisabled  bool
	userMiddleware   []Middleware
	chain            []Middleware
	metrics          *MetricsCollector
	logger           Logger
	requestIDGen     func() string
	now              func() time.Time
}

// New constructs a Client from the provided functional options.
// Configuration problems (malformed base URL, unparseable signing key) are
// fatal and reported here rather than on first use.
func New(options ...Option) (*Client, error) {
	c := &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		rawBaseURL:   DefaultBaseURL,
		holder:       &credentialHolder{},
		requestIDGen: uuid.NewString,
		now:          time.Now,
	}

	for _, option := range options {
		option(c)
	}

	base, err := url.Parse(c.rawBaseURL)
	if err != nil {
		return nil, &ClientError{Type: ErrorTypeConfig, Message: "invalid base URL", Cause: err}
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, &ClientError{Type: ErrorTypeConfig, Message: "base URL must be absolute: " + c.rawBaseURL}
	}
	c.baseURL = base

	if err := c.initAuth(); err != nil {
		return nil, err
	}

	if !c.limiterDisabled {
		c.limiter = NewRateLimiter()
	}

	headers := make([]Header, 0, len(c.extraHeaders)+2)
	if !hasHeader(c.extraHeaders, "Accept") {
		headers = append(headers, Header{Name: "Accept", Value: "application/vnd.github+json"})
	}
	if c.userAgent != "" && !hasHeader(c.extraHeaders, "User-Agent") {
		headers = append(headers, Header{Name: "User-Agent", Value: c.userAgent})
	}
	headers = append(headers, c.extraHeaders...)
	c.extraHeaders = headers

	c.chain = make([]Middleware, 0, 4+len(c.userMiddleware))
	c.chain = append(c.chain,
		baseURIMiddleware(c.baseURL),
		extraHeadersMiddleware(c.extraHeaders),
		authHeaderMiddleware(c.holder, c.baseURL),
	)
	c.chain = append(c.chain, c.userMiddleware...)
	c.chain = append(c.chain, cacheMiddleware(c.cache, c.metrics, c.logger))

	return c, nil
}

func (c *Client) initAuth() error {
	switch c.mode {
	case authNone:
		return nil
	case authStatic:
		c.holder.set("Bearer " + c.staticToken)
		return nil
	}

	key, err := parseSigningKey(c.privateKeyPEM)
	if err != nil {
		return err
	}

	if c.mode == authInstallation {
		endpoint := rewriteURL(c.baseURL, &url.URL{
			Path: "/app/installations/" + strconv.FormatInt(c.installationID, 10) + "/access_tokens",
		})
		c.tokens = &installationTokenSource{
			appID:          c.appID,
			key:            key,
			installationID: c.installationID,
			endpoint:       endpoint,
			httpClient:     c.httpClient,
			holder:         c.holder,
			metrics:        c.metrics,
			logger:         c.logger,
			now:            c.now,
		}
		return nil
	}

	// App JWT mode: keep the key around and mint per request.
	c.appKey = key
	return nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() *url.URL {
	out := *c.baseURL
	return &out
}

// AbsoluteURL resolves a possibly-relative route against the base URL the
// same way the request pipeline does.
func (c *Client) AbsoluteURL(route string) (*url.URL, error) {
	target, err := url.Parse(route)
	if err != nil {
		return nil, &ClientError{Type: ErrorTypeConfig, Message: "invalid route: " + route, Cause: err}
	}
	return rewriteURL(c.baseURL, target), nil
}

// NewRequest builds a request for the given route. Relative routes are
// resolved against the base URL when the request passes through the
// pipeline, so the URL here may stay relative.
func (c *Client) NewRequest(ctx context.Context, method, route string, body *Body) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, route, nil)
	if err != nil {
		return nil, &ClientError{Type: ErrorTypeConfig, Message: "building request", Cause: err}
	}
	if err := body.apply(req); err != nil {
		return nil, err
	}
	if body != nil && body.Len() != 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Do executes a prepared request through the pipeline: ensure a live
// credential, wait out any limiter-recommended delay, dispatch, and on an
// unauthorized response under an installation credential force one token
// refresh and retry the same request exactly once. It returns the raw
// response without status-code post-processing; see Get/Post/... or
// CheckResponse for the mapped variant.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	start := c.now()
	endpoint := endpointLabel(req)
	requestID := ""
	if c.requestIDGen != nil {
		requestID = c.requestIDGen()
	}

	c.metrics.RecordRequestStart(req.Method, endpoint)
	defer c.metrics.RecordRequestEnd(req.Method, endpoint)

	if err := c.ensureCredential(req.Context()); err != nil {
		c.metrics.RecordError(ErrorTypeAuth, req.Method, endpoint)
		return nil, err
	}

	// The pipeline mutates the request it is given, so dispatch a clone and
	// keep the caller's request pristine for the bounded retry below.
	resp, err := c.dispatch(req.Clone(req.Context()), requestID, endpoint)

	if err == nil && resp.StatusCode == http.StatusUnauthorized && c.tokens != nil {
		if retryReq, ok := cloneForRetry(req); ok {
			drainBody(resp)
			c.metrics.RecordAuthRetry()
			if c.logger != nil {
				c.logger.Info("unauthorized response, refreshing installation token",
					"requestID", requestID, "endpoint", endpoint)
			}
			if refreshErr := c.tokens.refresh(req.Context()); refreshErr != nil {
				// The refresh failure replaces the original unauthorized error.
				c.metrics.RecordError(ErrorTypeAuth, req.Method, endpoint)
				return nil, refreshErr
			}
			resp, err = c.dispatch(retryReq, requestID, endpoint)
		}
	}

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	c.metrics.RecordRequest(req.Method, endpoint, statusCode, c.now().Sub(start))
	return resp, err
}

// dispatch runs one attempt: limiter delay, middleware chain, limiter
// bookkeeping, transport error wrapping.
func (c *Client) dispatch(req *http.Request, requestID, endpoint string) (*http.Response, error) {
	if c.limiter != nil {
		if wait := c.limiter.RequestDelay(); wait > 0 {
			c.metrics.RecordRateLimitWait(endpoint, wait)
			if c.logger != nil {
				c.logger.Warn("pacing request against rate limit",
					"requestID", requestID, "endpoint", endpoint, "wait", wait)
			}
			timer := time.NewTimer(wait)
			select {
			case <-req.Context().Done():
				timer.Stop()
				return nil, &ClientError{
					Type:      ErrorTypeTransport,
					Message:   "request canceled while waiting on rate limit",
					Cause:     req.Context().Err(),
					RequestID: requestID,
					Method:    req.Method,
					URL:       req.URL.String(),
					Timestamp: c.now(),
				}
			case <-timer.C:
			}
		}
		c.limiter.RegisterRequest()
	}

	resp, err := c.runChain(req)

	if c.limiter != nil {
		c.limiter.RegisterResponse(resp, err)
	}

	if err != nil {
		var clientErr *ClientError
		if errors.As(err, &clientErr) {
			return nil, err
		}
		c.metrics.RecordError(ErrorTypeTransport, req.Method, endpoint)
		return nil, &ClientError{
			Type:      ErrorTypeTransport,
			Message:   "request failed",
			Cause:     err,
			RequestID: requestID,
			Method:    req.Method,
			URL:       req.URL.String(),
			Timestamp: c.now(),
		}
	}
	return resp, nil
}

// runChain assembles the middleware pipeline around the transport call,
// innermost middleware last.
func (c *Client) runChain(req *http.Request) (*http.Response, error) {
	current := RoundTripper(RoundTripperFunc(c.httpClient.Do))

	for i := len(c.chain) - 1; i >= 0; i-- {
		middleware := c.chain[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

// ensureCredential guarantees the credential holder carries a live value
// before the request is dispatched (read-after-refresh).
func (c *Client) ensureCredential(ctx context.Context) error {
	switch c.mode {
	case authAppJWT:
		token, err := mintAppJWT(c.appID, c.appKey, c.now())
		if err != nil {
			return err
		}
		c.holder.set("Bearer " + token)
		return nil
	case authInstallation:
		return c.tokens.ensure(ctx)
	default:
		return nil
	}
}

// Get issues a GET for route and decodes the response body into out.
func (c *Client) Get(ctx context.Context, route string, out interface{}) error {
	return c.call(ctx, http.MethodGet, route, nil, out)
}

// Post issues a POST for route with the given body and decodes the
// response into out.
func (c *Client) Post(ctx context.Context, route string, body *Body, out interface{}) error {
	return c.call(ctx, http.MethodPost, route, body, out)
}

// Put issues a PUT for route with the given body and decodes the response
// into out.
func (c *Client) Put(ctx context.Context, route string, body *Body, out interface{}) error {
	return c.call(ctx, http.MethodPut, route, body, out)
}

// Patch issues a PATCH for route with the given body and decodes the
// response into out.
func (c *Client) Patch(ctx context.Context, route string, body *Body, out interface{}) error {
	return c.call(ctx, http.MethodPatch, route, body, out)
}

// Delete issues a DELETE for route and decodes the response into out.
func (c *Client) Delete(ctx context.Context, route string, out interface{}) error {
	return c.call(ctx, http.MethodDelete, route, nil, out)
}

func (c *Client) call(ctx context.Context, method, route string, body *Body, out interface{}) error {
	req, err := c.NewRequest(ctx, method, route, body)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer drainBody(resp)

	if err := CheckResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{
			Type:       ErrorTypeUpstream,
			Message:    "decoding response body",
			Cause:      err,
			Method:     method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Timestamp:  c.now(),
		}
	}
	return nil
}

// CheckResponse maps a non-success response into a structured upstream
// error, decoding the API's error payload as the cause. Success responses
// (including cache-served ones) pass through untouched.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	return &ClientError{
		Type:       ErrorTypeUpstream,
		Message:    http.StatusText(resp.StatusCode),
		Cause:      apiErr,
		StatusCode: resp.StatusCode,
		Timestamp:  time.Now(),
	}
}

// cloneForRetry duplicates a request for the bounded refresh-retry. Bodies
// are replayed through GetBody, which buffered bodies always provide; a
// streaming body cannot be replayed, in which case no retry happens.
func cloneForRetry(req *http.Request) (*http.Request, bool) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return out, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	out.Body = body
	return out, true
}

func drainBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
	resp.Body.Close()
}

func hasHeader(headers []Header, name string) bool {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return true
		}
	}
	return false
}
