package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrTimeout            = errors.New("operation timed out")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Inbound request errors
	ErrMissingCredentials = errors.New("missing API credentials")
	ErrEmptySecret        = errors.New("signing secret is empty")

	// Exchange Specific Errors
	ErrUpstreamShape        = errors.New("unexpected response shape from exchange")
	ErrUpstreamUnavailable  = errors.New("exchange API is unavailable")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")
)
