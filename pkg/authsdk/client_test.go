package authsdk

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{}`,
			check:  func(t *testing.T, err error) { require.NoError(t, err) },
		},
		{
			name:   "two factor challenge",
			status: http.StatusConflict,
			body:   `{"error":"two_factor_required","error_description":"x","verify_url":"/v1/login"}`,
			check: func(t *testing.T, err error) {
				var tf *TwoFactorRequiredError
				require.True(t, errors.As(err, &tf))
				require.Equal(t, "/v1/login", tf.VerifyURL)
			},
		},
		{
			name:   "api error",
			status: http.StatusUnauthorized,
			body:   `{"error":"invalid_code","error_description":"Invalid two-step verification code."}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				require.Equal(t, ErrorCodeInvalidCode, apiErr.Code)
				require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
			},
		},
		{
			name:   "not json",
			status: http.StatusBadGateway,
			body:   `<html>`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				require.Equal(t, ErrorCodeServerError, apiErr.Code)
				require.Contains(t, apiErr.Description, "502")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, parseErrorResponse(&http.Response{StatusCode: tt.status}, []byte(tt.body)))
		})
	}
}

func TestWriteError_RoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrInvalidCredentials.WriteError(rec)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"error":"invalid_credentials","error_description":"invalid credentials"}`, rec.Body.String())

	err := parseErrorResponse(rec.Result(), rec.Body.Bytes())
	require.Equal(t, ErrInvalidCredentials.Error(), err.Error())

	rec = httptest.NewRecorder()
	(&TwoFactorRequiredError{VerifyURL: "/v1/login"}).WriteError(rec)
	require.Equal(t, http.StatusConflict, rec.Code)

	var tf *TwoFactorRequiredError
	require.True(t, errors.As(parseErrorResponse(rec.Result(), rec.Body.Bytes()), &tf))
}
