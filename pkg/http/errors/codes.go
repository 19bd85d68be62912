package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeTokenRevoked           = "token_revoked"
	ErrCodeAuthenticationRequired = "authentication_required"
	ErrCodeLoginFailed            = "login_failed"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"

	// Resource errors
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeUnknownTest      = "unknown_test"
	ErrCodeQuestionNotFound = "question_not_found"
	ErrCodeSessionNotFound  = "session_not_found"
	ErrCodeStaleSession     = "stale_session"
	ErrCodeResultNotFound   = "result_not_found"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError       = "internal_error"
	ErrCodeServiceUnavailable  = "service_unavailable"
	ErrCodeUpstreamError       = "upstream_error"
	ErrCodeUpstreamUnavailable = "upstream_unavailable"
	ErrCodeMalformedPayload    = "malformed_payload"
	ErrCodeUpstreamTooLarge    = "upstream_response_too_large"
)
