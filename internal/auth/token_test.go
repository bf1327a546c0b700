package auth

import (
	"net/http/httptest"
	"testing"
)

func TestTokenFromRequestPrefersCookie(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/settings", nil)
	req.Header.Set("Cookie", "theme=dark; sb:token=cookie-token")
	req.Header.Set("Authorization", "Bearer header-token")

	if got := TokenFromRequest(req); got != "cookie-token" {
		t.Fatalf("expected cookie token, got %q", got)
	}
}

func TestTokenFromRequestFallsBackToHeader(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/settings", nil)
	req.Header.Set("Authorization", "Bearer header-token")

	if got := TokenFromRequest(req); got != "header-token" {
		t.Fatalf("expected header token, got %q", got)
	}
}

func TestTokenFromRequestStripsBearerFromCookie(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/settings", nil)
	req.Header.Set("Cookie", `sb:token="Bearer abc"`)

	if got := TokenFromRequest(req); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}

func TestTokenFromRequestEmpty(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/settings", nil)
	if got := TokenFromRequest(req); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}

func TestHashTokenIsStableHex(t *testing.T) {
	first := HashToken("token")
	if first != HashToken("token") {
		t.Fatal("expected stable hash")
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
	if first == HashToken("other") {
		t.Fatal("expected different tokens to hash differently")
	}
}
