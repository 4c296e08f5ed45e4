package errors

const (
	HttpInternalError     = "internal_error"
	HttpBadRequestError   = "bad_request"
	HttpBadSignatureError = "invalid_signature"
	HttpUpstreamError     = "upstream_error"
	HttpUpstreamAuthError = "upstream_auth_failed"
)

// ErrorResponse is the error response body for all API endpoints.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
