// Package auth resolves the driver behind a request from its Supabase session.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coreybb/dropoff/models"
)

const (
	userEndpointPath   = "/auth/v1/user"
	accessTokenCookie  = "sb-access-token"
	defaultAuthTimeout = 5 * time.Second
)

// ErrUnauthenticated is returned when the request carries no valid session.
var ErrUnauthenticated = errors.New("authentication required")

// SupabaseAuthenticator validates access tokens against the Supabase Auth API.
type SupabaseAuthenticator struct {
	baseURL string
	anonKey string
	client  *http.Client
}

func NewSupabaseAuthenticator(baseURL, anonKey string) *SupabaseAuthenticator {
	return &SupabaseAuthenticator{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  &http.Client{Timeout: defaultAuthTimeout},
	}
}

type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Authenticate returns the driver for r. Any missing, expired or rejected
// token yields ErrUnauthenticated; transport failures are returned wrapped.
func (a *SupabaseAuthenticator) Authenticate(r *http.Request) (*models.Driver, error) {
	token := AccessToken(r)
	if token == "" {
		return nil, ErrUnauthenticated
	}
	if a.baseURL == "" {
		return nil, fmt.Errorf("supabase URL is not configured: %w", ErrUnauthenticated)
	}
	return a.lookup(r.Context(), token)
}

func (a *SupabaseAuthenticator) lookup(ctx context.Context, token string) (*models.Driver, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+userEndpointPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", a.anonKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrUnauthenticated
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("auth service returned status %d: %s", resp.StatusCode, string(body))
	}

	var user supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode auth user: %w", err)
	}
	if user.ID == "" {
		return nil, ErrUnauthenticated
	}
	return &models.Driver{ID: user.ID, Email: user.Email}, nil
}

// AccessToken extracts the session token from the Authorization header or
// the access token cookie.
func AccessToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(accessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}
