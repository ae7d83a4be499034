package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/metrics"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/service"
	"github.com/aussiebroadwan/twofactor/pkg/authsdk"
	"github.com/aussiebroadwan/twofactor/pkg/httpx"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
)

// MFAHandler handles TOTP enrollment for the logged-in user.
type MFAHandler struct {
	EnrollmentService *service.EnrollmentService
	Metrics           *metrics.Metrics // Optional
}

func (h *MFAHandler) count(event string, err error) {
	if h.Metrics != nil {
		h.Metrics.Enrollment(event, err)
	}
}

// HandleEnroll handles POST /v1/mfa/totp/enroll
//
//	@Summary		Start TOTP enrollment
//	@Description	Issues a new secret and returns it with an otpauth URI and QR code. The second factor stays off
//	@Description	until the secret is confirmed with /v1/mfa/totp/verify.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.TOTPEnrollResponse	"Pending secret and QR code"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing session token"
//	@Failure		409	{object}	authsdk.ErrorResponse		"Two-factor already enabled"
//	@Failure		500	{object}	authsdk.ErrorResponse		"Internal server error"
//	@Router			/v1/mfa/totp/enroll [post].
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	enrollment, err := h.EnrollmentService.Enroll(ctx, userID)
	h.count("enroll", err)
	if err != nil {
		if errors.Is(err, service.ErrTwoFactorAlreadyEnabled) {
			log.Warn("two-factor already enabled", "user_id", userID)
			authsdk.ErrAlreadyEnabled.WriteError(w)
			return
		}
		log.Error("failed to enroll TOTP", "user_id", userID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	log.Info("TOTP enrollment started", "user_id", userID)
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.TOTPEnrollResponse{
		Secret:          enrollment.Secret,
		ProvisioningURI: enrollment.ProvisioningURI,
		QRCode:          enrollment.QRCode,
		Issuer:          enrollment.Issuer,
		Account:         enrollment.Account,
	})
}

// HandleConfirm handles POST /v1/mfa/totp/verify
//
//	@Summary		Confirm TOTP enrollment
//	@Description	Activates the pending secret once a code generated from it is supplied.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.TOTPCodeRequest	true	"Code from the authenticator app"
//	@Success		204		"Two-factor enabled"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed request or no enrollment pending"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid code or session token"
//	@Failure		409		{object}	authsdk.ErrorResponse	"Two-factor already enabled"
//	@Failure		500		{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/mfa/totp/verify [post].
func (h *MFAHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	h.withCode(w, r, "confirm", h.EnrollmentService.Confirm)
}

// HandleRemove handles DELETE /v1/mfa/totp
//
//	@Summary		Disable TOTP
//	@Description	Removes the secret. A current code is required so a stolen session alone cannot turn it off.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.TOTPCodeRequest	true	"Current code"
//	@Success		204		"Two-factor disabled"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed request or two-factor not enabled"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid code or session token"
//	@Failure		500		{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/mfa/totp [delete].
func (h *MFAHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	h.withCode(w, r, "disable", h.EnrollmentService.Disable)
}

func (h *MFAHandler) withCode(
	w http.ResponseWriter,
	r *http.Request,
	event string,
	fn func(ctx context.Context, userID, code string) error,
) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.TOTPCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		log.Warn("failed to parse request", "err", err)
		authsdk.ErrInvalidRequest.WithDescription("a JSON body with a code is required").WriteError(w)
		return
	}

	err := fn(ctx, userID, req.Code)
	h.count(event, err)
	switch {
	case err == nil:
		log.Info("TOTP "+event+" succeeded", "user_id", userID)
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, service.ErrInvalidTOTPCode):
		log.Warn("invalid TOTP code", "user_id", userID, "event", event)
		authsdk.ErrInvalidCode.WriteError(w)
	case errors.Is(err, service.ErrTwoFactorAlreadyEnabled):
		authsdk.ErrAlreadyEnabled.WriteError(w)
	case errors.Is(err, service.ErrTwoFactorNotEnabled):
		authsdk.ErrNotEnabled.WriteError(w)
	case errors.Is(err, service.ErrNotEnrolled):
		authsdk.ErrNotEnrolled.WriteError(w)
	default:
		log.Error("TOTP "+event+" failed", "user_id", userID, "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}
