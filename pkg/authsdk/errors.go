package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/twofactor/pkg/httpx"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeCredentialsMissing = "credentials_missing"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeTwoFactorRequired  = "two_factor_required"
	ErrorCodeInvalidCode        = "invalid_code"
	ErrorCodeLoginURLMismatch   = "login_url_mismatch"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeAlreadyEnabled     = "two_factor_already_enabled"
	ErrorCodeNotEnabled         = "two_factor_not_enabled"
	ErrorCodeNotEnrolled        = "not_enrolled"
	ErrorCodeServerError        = "server_error"
)

// ============================================================================
// APIError
// ============================================================================

// APIError is the error body every endpoint returns. It is used both by the
// server (to write responses) and by the client (to represent them).
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is a stable machine-readable error code
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes e as a JSON error response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

// WithDescription returns a copy of e carrying desc.
func (e *APIError) WithDescription(desc string) *APIError {
	return &APIError{StatusCode: e.StatusCode, Code: e.Code, Description: desc}
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	ErrInvalidFormBody = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "invalid form body",
	}

	ErrCredentialsMissing = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeCredentialsMissing,
		Description: "Login credentials not found",
	}

	// ErrInvalidCredentials deliberately does not say which half was wrong.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid credentials",
	}

	ErrInvalidCode = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCode,
		Description: "Invalid two-step verification code.",
	}

	ErrLoginURLMismatch = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeLoginURLMismatch,
		Description: "login is not accepted on this URL",
	}

	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the session token is missing, invalid or expired",
	}

	ErrAlreadyEnabled = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeAlreadyEnabled,
		Description: "two-factor authentication is already enabled",
	}

	ErrNotEnabled = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeNotEnabled,
		Description: "two-factor authentication is not enabled",
	}

	ErrNotEnrolled = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeNotEnrolled,
		Description: "no TOTP enrollment in progress",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	ErrServiceUnavailable = &APIError{
		StatusCode:  http.StatusServiceUnavailable,
		Code:        ErrorCodeServerError,
		Description: "service temporarily unavailable",
	}
)

// ============================================================================
// Two-Factor Challenge
// ============================================================================

// TwoFactorRequiredError is returned when the credentials were right and a
// code is now needed. It is sent as 409 Conflict: the request was valid but
// the account needs another step.
type TwoFactorRequiredError struct {
	// VerifyURL is where the code should be submitted
	VerifyURL string `json:"verify_url"`
}

// Error implements the error interface.
func (e *TwoFactorRequiredError) Error() string {
	return "two-factor authentication required: submit a code to " + e.VerifyURL
}

// WriteError writes the challenge as a 409 Conflict.
func (e *TwoFactorRequiredError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusConflict, map[string]string{
		"error":             ErrorCodeTwoFactorRequired,
		"error_description": "a two-step verification code is required",
		"verify_url":        e.VerifyURL,
	})
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into a typed error.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp struct {
		ErrorResponse
		VerifyURL string `json:"verify_url"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		if resp.StatusCode == http.StatusConflict && errResp.Error == ErrorCodeTwoFactorRequired {
			return &TwoFactorRequiredError{VerifyURL: errResp.VerifyURL}
		}
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
