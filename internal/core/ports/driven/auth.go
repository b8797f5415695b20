package driven

import "github.com/blkout/ivor-core/internal/core/domain"

// TokenVerifier handles service-token cryptographic operations
type TokenVerifier interface {
	// GenerateToken signs claims (used by operators and tests to mint tokens)
	GenerateToken(claims *domain.TokenClaims) (string, error)

	// ParseToken validates a token and returns its claims
	ParseToken(token string) (*domain.TokenClaims, error)
}
