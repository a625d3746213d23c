package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opentagger/tagstore/internal/domain"
	"github.com/opentagger/tagstore/internal/repo"
)

// ErrAuthServerUnavailable is returned when token issuance is attempted but
// no external auth server is configured or it answered with a server error.
// Handlers should map this to HTTP 503.
var ErrAuthServerUnavailable = errors.New("auth server unavailable")

// tokenMarker separates the user id from the random part of an issued token.
// A bearer token without this marker is never looked up — it cannot be ours.
const tokenMarker = "__U"

// AuthService issues bearer tokens by checking credentials against an
// external identity server, and resolves presented tokens back to identities.
// The credential-check protocol itself lives entirely on the remote side;
// this service only relays the outcome and keeps the token table.
type AuthService struct {
	store   repo.Store
	authURL string
	client  *http.Client

	// failedDelay is slept before answering a rejected login, to slow down
	// brute-force attempts.
	failedDelay time.Duration
}

// NewAuthService constructs an AuthService. authURL is the base URL of the
// external auth server (empty disables token issuance; resolution still works).
func NewAuthService(store repo.Store, authURL string, failedDelay time.Duration) *AuthService {
	return &AuthService{
		store:       store,
		authURL:     strings.TrimRight(authURL, "/"),
		client:      &http.Client{Timeout: 10 * time.Second},
		failedDelay: failedDelay,
	}
}

// Login verifies username/password against the external auth server and, on
// success, mints and stores a bearer token for the user. Any previous token
// of the same user is replaced.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", fmt.Errorf("service.AuthService.Login: %w",
			&domain.FieldError{Field: "username", Reason: "username and password are required"})
	}
	form := url.Values{"user_id": {username}, "password": {password}}
	status, err := s.postAuthServer(ctx, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil)
	if err != nil {
		return "", fmt.Errorf("service.AuthService.Login: %w", err)
	}
	token, err := s.finishLogin(ctx, username, status)
	if err != nil {
		return "", fmt.Errorf("service.AuthService.Login: %w", err)
	}
	return token, nil
}

// LoginByCookie verifies a session cookie against the external auth server.
// The cookie value is an '&'-separated list where the entry after "user_id"
// names the user, e.g. "user_id&alice&user_session&...".
func (s *AuthService) LoginByCookie(ctx context.Context, session string) (string, error) {
	if session == "" {
		return "", fmt.Errorf("service.AuthService.LoginByCookie: %w",
			&domain.FieldError{Field: "session", Reason: "missing 'session' cookie"})
	}
	username, ok := userIDFromSession(session)
	if !ok {
		return "", fmt.Errorf("service.AuthService.LoginByCookie: %w",
			&domain.FieldError{Field: "session", Reason: "malformed 'session' cookie"})
	}
	status, err := s.postAuthServer(ctx, nil, "", &http.Cookie{Name: "session", Value: session})
	if err != nil {
		return "", fmt.Errorf("service.AuthService.LoginByCookie: %w", err)
	}
	token, err := s.finishLogin(ctx, username, status)
	if err != nil {
		return "", fmt.Errorf("service.AuthService.LoginByCookie: %w", err)
	}
	return token, nil
}

// Resolve maps a bearer token to an identity. An unknown or malformed token
// resolves to the anonymous identity "" without error; only a storage failure
// is an error. Implements middleware.IdentityResolver.
func (s *AuthService) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" || !strings.Contains(token, tokenMarker) {
		return "", nil
	}
	identity, err := s.store.Auth().ResolveToken(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("service.AuthService.Resolve: %w", err)
	}
	return identity, nil
}

// postAuthServer relays a credential check to the external auth server and
// returns its HTTP status code.
func (s *AuthService) postAuthServer(ctx context.Context, body io.Reader, contentType string, cookie *http.Cookie) (int, error) {
	if s.authURL == "" {
		return 0, ErrAuthServerUnavailable
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authURL+"/cgi/auth.pl", body)
	if err != nil {
		return 0, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAuthServerUnavailable, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// finishLogin turns the auth server's verdict into a stored token or an error.
func (s *AuthService) finishLogin(ctx context.Context, username string, status int) (string, error) {
	switch status {
	case http.StatusOK:
		token := username + tokenMarker + uuid.NewString()
		err := s.store.InTx(ctx, func(st repo.Store) error {
			return st.Auth().SaveToken(ctx, username, token)
		})
		if err != nil {
			return "", err
		}
		return token, nil
	case http.StatusForbidden:
		s.sleep(ctx)
		return "", fmt.Errorf("%w: invalid authentication credentials", domain.ErrUnauthorized)
	default:
		return "", fmt.Errorf("%w: auth server returned status %d", ErrAuthServerUnavailable, status)
	}
}

// sleep pauses for the configured failed-login delay, honoring cancellation.
func (s *AuthService) sleep(ctx context.Context) {
	if s.failedDelay <= 0 {
		return
	}
	t := time.NewTimer(s.failedDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// userIDFromSession extracts the user id from an '&'-separated session cookie.
func userIDFromSession(session string) (string, bool) {
	parts := strings.Split(session, "&")
	for i, p := range parts {
		if p == "user_id" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], true
		}
	}
	return "", false
}
