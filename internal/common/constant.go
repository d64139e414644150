package common

// AuthorizationHeaderName is the HTTP header that carries the bearer access
// token on authenticated requests.
const AuthorizationHeaderName = "Authorization"

// Wire error codes shared by the HTTP API and the client. The server maps
// its sentinel errors onto these; the client maps them back.
const (
	CodeInvalidDevice      = "INVALID_DEVICE"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeExpired            = "EXPIRED"
	CodeRevoked            = "REVOKED"
	CodeDeviceMismatch     = "DEVICE_MISMATCH"
	CodeValidation         = "VALIDATION_ERROR"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
)
