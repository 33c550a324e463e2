package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"

	// Validation errors
	ErrCodeInvalidRequest    = "invalid_request"
	ErrCodeValidationFailed  = "validation_failed"
	ErrCodeUnknownDifficulty = "unknown_difficulty"
	ErrCodeInvalidRating     = "invalid_rating"

	// Resource errors
	ErrCodeNotFound        = "not_found"
	ErrCodeSessionNotFound = "session_not_found"

	// Session errors
	ErrCodeSessionCreationFailed = "session_creation_failed"
	ErrCodeInvalidTransition     = "invalid_transition"
	ErrCodeSessionClosed         = "session_closed"
	ErrCodeResultsNotReady       = "results_not_ready"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"

	// Feature availability
	ErrCodeFeatureNotAvailable = "feature_not_available"

	// Stats errors
	ErrCodeStatsFetchFailed = "stats_fetch_failed"
)
