package provider

import (
	"context"
	"strings"

	"mojocode/api/internal/logger"
)

// AccessVerifier checks that a token is accepted by a provider.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, token string) error
}

// ValidateProviderToken reports which provider accepts token. Only GitHub is
// supported; ok is false for empty or rejected tokens.
func ValidateProviderToken(ctx context.Context, verifier AccessVerifier, token string) (providerType string, ok bool) {
	if strings.TrimSpace(token) == "" {
		return "", false
	}
	err := verifier.VerifyAccess(ctx, token)
	if err == nil {
		return GitHub, true
	}
	logger.WithComponent("provider").Debug("provider token rejected", "provider", GitHub, "error", err)
	return "", false
}
