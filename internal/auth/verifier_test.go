package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"mojocode/api/internal/session"
)

func newProviderServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/auth/v1/user" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("apikey") != "anon-key" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good-token":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"user-1","email":"dev@example.com","role":"authenticated"}`))
		case "Bearer broken-token":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestProviderVerifier(t *testing.T) {
	var calls atomic.Int32
	server := newProviderServer(t, &calls)
	verifier := NewProviderVerifier(server.URL+"/", "anon-key", server.Client())

	user, err := verifier.Verify(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if user.ID != "user-1" || user.Email != "dev@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := verifier.Verify(context.Background(), "expired"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	_, err = verifier.Verify(context.Background(), "broken-token")
	if err == nil || errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected upstream error distinct from ErrInvalidToken, got %v", err)
	}

	if _, err := verifier.Verify(context.Background(), " "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestCachedVerifierCallsProviderOnce(t *testing.T) {
	var calls atomic.Int32
	server := newProviderServer(t, &calls)
	redis := miniredis.RunT(t)
	cache, err := session.NewRedisStore("redis://" + redis.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	defer cache.Close()

	verifier := NewCachedVerifier(NewProviderVerifier(server.URL, "anon-key", server.Client()), cache, time.Minute)

	for i := 0; i < 3; i++ {
		user, err := verifier.Verify(context.Background(), "good-token")
		if err != nil {
			t.Fatalf("Verify() #%d error = %v", i, err)
		}
		if user.ID != "user-1" {
			t.Fatalf("unexpected user: %+v", user)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single provider call, got %d", calls.Load())
	}
	if !redis.Exists("auth:" + HashToken("good-token")) {
		t.Fatal("expected identity cached under the token hash")
	}
}

func TestCachedVerifierDoesNotCacheRejections(t *testing.T) {
	var calls atomic.Int32
	server := newProviderServer(t, &calls)
	redis := miniredis.RunT(t)
	cache, err := session.NewRedisStore("redis://" + redis.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	defer cache.Close()

	verifier := NewCachedVerifier(NewProviderVerifier(server.URL, "anon-key", server.Client()), cache, time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := verifier.Verify(context.Background(), "bad-token"); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("expected rejected tokens to be re-checked, got %d calls", calls.Load())
	}
}

type failingCache struct{}

func (failingCache) LookupIdentity(context.Context, string) (session.Identity, error) {
	return session.Identity{}, errors.New("redis down")
}

func (failingCache) SaveIdentity(context.Context, string, session.Identity, time.Duration) error {
	return errors.New("redis down")
}

func TestCachedVerifierSurvivesCacheOutage(t *testing.T) {
	var calls atomic.Int32
	server := newProviderServer(t, &calls)
	verifier := NewCachedVerifier(NewProviderVerifier(server.URL, "anon-key", server.Client()), failingCache{}, time.Minute)

	user, err := verifier.Verify(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("unexpected user: %+v", user)
	}
}
