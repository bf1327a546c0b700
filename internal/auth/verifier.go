// Package auth validates access tokens against the hosted auth provider.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mojocode/api/internal/logger"
	"mojocode/api/internal/session"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingToken = errors.New("missing token")
)

// User is the authenticated caller.
type User struct {
	ID    string
	Email string
	Role  string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (User, error)
}

// ProviderVerifier asks the provider's /auth/v1/user endpoint who owns a token.
type ProviderVerifier struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewProviderVerifier(baseURL, apiKey string, httpClient *http.Client) *ProviderVerifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &ProviderVerifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type providerUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (v *ProviderVerifier) Verify(ctx context.Context, token string) (User, error) {
	if strings.TrimSpace(token) == "" {
		return User{}, ErrMissingToken
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return User{}, fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if v.apiKey != "" {
		req.Header.Set("apikey", v.apiKey)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("call auth provider: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return User{}, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return User{}, fmt.Errorf("auth provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload providerUser
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return User{}, fmt.Errorf("decode auth provider user: %w", err)
	}
	if payload.ID == "" {
		return User{}, ErrInvalidToken
	}
	return User{ID: payload.ID, Email: payload.Email, Role: payload.Role}, nil
}

// IdentityCache is implemented by session.RedisStore.
type IdentityCache interface {
	LookupIdentity(ctx context.Context, tokenHash string) (session.Identity, error)
	SaveIdentity(ctx context.Context, tokenHash string, identity session.Identity, ttl time.Duration) error
}

// CachedVerifier consults the cache before the wrapped verifier. Cache
// failures degrade to a provider call; they never fail the request.
type CachedVerifier struct {
	next  Verifier
	cache IdentityCache
	ttl   time.Duration
	log   *slog.Logger
}

func NewCachedVerifier(next Verifier, cache IdentityCache, ttl time.Duration) *CachedVerifier {
	return &CachedVerifier{next: next, cache: cache, ttl: ttl, log: logger.WithComponent("auth")}
}

func (v *CachedVerifier) Verify(ctx context.Context, token string) (User, error) {
	if strings.TrimSpace(token) == "" {
		return User{}, ErrMissingToken
	}
	key := HashToken(token)

	identity, err := v.cache.LookupIdentity(ctx, key)
	if err == nil {
		return User{ID: identity.UserID, Email: identity.Email, Role: identity.Role}, nil
	}
	if !errors.Is(err, session.ErrSessionNotFound) {
		v.log.Warn("identity cache lookup failed", "error", err)
	}

	user, err := v.next.Verify(ctx, token)
	if err != nil {
		return User{}, err
	}
	if err := v.cache.SaveIdentity(ctx, key, session.Identity{UserID: user.ID, Email: user.Email, Role: user.Role}, v.ttl); err != nil {
		v.log.Warn("identity cache save failed", "error", err)
	}
	return user, nil
}
