package hubwire

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// appJWTLifetime is the validity window of a minted App JWT. GitHub rejects
// anything above ten minutes.
const appJWTLifetime = 10 * time.Minute

type authMode int

const (
	authNone authMode = iota
	authStatic
	authAppJWT
	authInstallation
)

// parseSigningKey parses an RSA private key in PEM form. A malformed key is
// a configuration error, surfaced at construction time and never retried.
func parseSigningKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, &ClientError{Type: ErrorTypeConfig, Message: "parsing app signing key", Cause: err}
	}
	return key, nil
}

// mintAppJWT synthesizes the short-lived RS256 token used to authenticate
// as the App itself: claims {iss: app id, iat: now, exp: now+10m}.
func mintAppJWT(appID string, key *rsa.PrivateKey, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    appID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", &ClientError{Type: ErrorTypeAuth, Message: "signing app JWT", Cause: err, Timestamp: now}
	}
	return signed, nil
}

// installationTokenPayload is the token-creation endpoint's response body.
type installationTokenPayload struct {
	Token       string            `json:"token"`
	ExpiresAt   time.Time         `json:"expires_at"`
	Permissions map[string]string `json:"permissions"`
}

// installationTokenSource mints and refreshes installation tokens and
// republishes each fresh token into the shared credential holder.
//
// Refresh is intentionally not mutually exclusive: two requests racing past
// an expired token may each mint a new one, and the last write wins. Both
// outcomes are valid tokens, merely differently timestamped, and skipping
// the lock avoids serializing unrelated requests behind a refresh.
type installationTokenSource struct {
	appID          string
	key            *rsa.PrivateKey
	installationID int64
	endpoint       *url.URL
	httpClient     *http.Client
	holder         *credentialHolder
	record         atomic.Pointer[TokenRecord]
	metrics        *MetricsCollector
	logger         Logger
	now            func() time.Time
}

// ensure refreshes the cached token if it is absent or expired. The
// credential holder is guaranteed to carry a live token when ensure
// returns nil.
func (s *installationTokenSource) ensure(ctx context.Context) error {
	if rec := s.record.Load(); !rec.Expired(s.now()) {
		return nil
	}
	return s.refresh(ctx)
}

// refresh unconditionally mints an App JWT, trades it for a fresh
// installation token, and swaps the new credential into the holder in one
// atomic replacement.
func (s *installationTokenSource) refresh(ctx context.Context) error {
	now := s.now()
	appJWT, err := mintAppJWT(s.appID, s.key, now)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint.String(), http.NoBody)
	if err != nil {
		return &ClientError{Type: ErrorTypeAuth, Message: "building token request", Cause: err, Timestamp: now}
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &ClientError{Type: ErrorTypeAuth, Message: "requesting installation token", Cause: err, Timestamp: now}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ClientError{
			Type:       ErrorTypeAuth,
			Message:    fmt.Sprintf("token endpoint rejected request: %s", body),
			StatusCode: resp.StatusCode,
			Timestamp:  now,
		}
	}

	var payload installationTokenPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return &ClientError{Type: ErrorTypeAuth, Message: "decoding token response", Cause: err, Timestamp: now}
	}

	rec := &TokenRecord{Token: payload.Token, ExpiresAt: payload.ExpiresAt}
	s.record.Store(rec)
	s.holder.set("Bearer " + payload.Token)

	s.metrics.RecordTokenRefresh()
	if s.logger != nil {
		s.logger.Debug("installation token refreshed",
			"installationID", s.installationID, "expiresAt", payload.ExpiresAt)
	}
	return nil
}
