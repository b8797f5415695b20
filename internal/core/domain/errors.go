package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrClassificationFailed indicates the embedding or classifier capability failed
	ErrClassificationFailed = errors.New("classification failed")

	// ErrDimensionMismatch indicates an embedding does not have the configured dimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrPublishFailed indicates an event could not be persisted or fanned out
	ErrPublishFailed = errors.New("publish failed")

	// ErrPersistenceInconsistency indicates the vector and relational stores diverged
	ErrPersistenceInconsistency = errors.New("persistence inconsistency")

	// ErrInvalidTransition indicates a processing status change that is not allowed
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrRegistrySealed indicates a handler registration after startup
	ErrRegistrySealed = errors.New("handler registry sealed")

	// ErrServiceUnavailable indicates a downstream service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)
