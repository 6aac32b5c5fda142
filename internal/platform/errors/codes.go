// Package errors provides structured error handling for the auth service.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeInvalidInput indicates malformed or missing request fields.
	CodeInvalidInput Code = "INVALID_INPUT"
	// CodeDuplicateIdentifier indicates a unique identifier collision on create.
	CodeDuplicateIdentifier Code = "DUPLICATE_IDENTIFIER"
	// CodeNotFound indicates no account exists for the given identifier.
	CodeNotFound Code = "NOT_FOUND"
	// CodeInvalidCredentials indicates a password mismatch.
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	// CodeInvalidSignature indicates a wallet signature that does not recover
	// to the claimed address.
	CodeInvalidSignature Code = "INVALID_SIGNATURE"
	// CodePasskeyVerificationFailed indicates a WebAuthn ceremony mismatch.
	CodePasskeyVerificationFailed Code = "PASSKEY_VERIFICATION_FAILED"
	// CodeInvalidOrExpiredToken indicates a session or verification-email
	// token that failed signature or expiry checks.
	CodeInvalidOrExpiredToken Code = "INVALID_OR_EXPIRED_TOKEN"
	// CodeExpiredOrConsumedCode indicates a phone verification code that is
	// wrong, expired, or already used. The three cases are deliberately not
	// distinguished.
	CodeExpiredOrConsumedCode Code = "EXPIRED_OR_CONSUMED_CODE"
	// CodeDeliveryFailure indicates an email or SMS collaborator error.
	CodeDeliveryFailure Code = "DELIVERY_FAILURE"
)

// HTTPStatus maps domain codes to HTTP status codes at the external boundary.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidInput,
		CodeDuplicateIdentifier,
		CodeInvalidSignature,
		CodePasskeyVerificationFailed,
		CodeExpiredOrConsumedCode:
		return http.StatusBadRequest

	case CodeInvalidCredentials,
		CodeInvalidOrExpiredToken:
		return http.StatusUnauthorized

	case CodeNotFound:
		return http.StatusNotFound

	case CodeDeliveryFailure:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}
