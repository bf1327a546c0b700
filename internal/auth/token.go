package auth

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"strings"
)

// CookieName is the cookie the web client stores its access token in.
const CookieName = "sb:token"

// TokenFromRequest returns the access token from the auth cookie or, failing
// that, the Authorization header. A "Bearer " prefix is stripped from either.
func TokenFromRequest(r *http.Request) string {
	if token := cookieValue(r, CookieName); token != "" {
		return stripBearer(token)
	}
	return stripBearer(r.Header.Get("Authorization"))
}

func stripBearer(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return value
}

// cookieValue reads a cookie by name from the raw header. net/http drops
// cookies whose names contain ':', which rules out r.Cookie here.
func cookieValue(r *http.Request, name string) string {
	for _, header := range r.Header.Values("Cookie") {
		for _, part := range strings.Split(header, ";") {
			key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
			if ok && key == name {
				return strings.Trim(value, `"`)
			}
		}
	}
	return ""
}

// HashToken is the cache key for a token; raw tokens are never stored.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}
