package httputil

// Machine-readable error codes returned alongside the message
const (
	CodeInvalidRequestBody  = "INVALID_REQUEST_BODY"
	CodeMissingCredentials  = "MISSING_CREDENTIALS"
	CodeInvalidEmailFormat  = "INVALID_EMAIL_FORMAT"
	CodeAlreadyRegistered   = "ALREADY_REGISTERED"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeNeedsPassword       = "NEEDS_PASSWORD"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeForbidden           = "FORBIDDEN"
	CodeCredentialRequired  = "CREDENTIAL_REQUIRED"
	CodeInvalidIdentity     = "INVALID_IDENTITY"
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeMissingAuth         = "MISSING_AUTH"
	CodeInvalidAuthHeader   = "INVALID_AUTH_HEADER"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeInvalidTokenUserID  = "INVALID_TOKEN_USER_ID"
	CodeNotFound            = "NOT_FOUND"
	CodeInternalError       = "INTERNAL_ERROR"
)
