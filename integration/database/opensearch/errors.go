package opensearch

import "errors"

// Domain-specific OpenSearch errors for consistent error handling across the application.
// Use errors.Is() to check error types for retry logic and user-facing messages.
var (
	ErrEmptyAddresses    = errors.New("no opensearch addresses provided")
	ErrConnectionFailed  = errors.New("failed to create opensearch client")
	ErrHealthcheckFailed = errors.New("opensearch healthcheck failed")
	ErrInvalidRootCA     = errors.New("failed to load opensearch root CA certificate")
)
