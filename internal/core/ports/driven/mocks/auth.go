package mocks

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

// Ensure MockTokenVerifier implements TokenVerifier
var _ driven.TokenVerifier = (*MockTokenVerifier)(nil)

// MockTokenVerifier encodes claims as base64 JSON.
// NOT secure - only for testing.
type MockTokenVerifier struct{}

// NewMockTokenVerifier creates a new MockTokenVerifier
func NewMockTokenVerifier() *MockTokenVerifier {
	return &MockTokenVerifier{}
}

// GenerateToken creates a base64-encoded JSON token from claims
func (m *MockTokenVerifier) GenerateToken(claims *domain.TokenClaims) (string, error) {
	data, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ParseToken decodes a base64-encoded JSON token and returns claims
func (m *MockTokenVerifier) ParseToken(token string) (*domain.TokenClaims, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	var claims domain.TokenClaims
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, domain.ErrTokenInvalid
	}
	if claims.ExpiresAt != 0 && time.Now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}

	return &claims, nil
}
