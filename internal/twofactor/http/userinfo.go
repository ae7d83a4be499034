package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/service"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
	"github.com/aussiebroadwan/twofactor/pkg/authsdk"
	"github.com/aussiebroadwan/twofactor/pkg/httpx"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
)

type UserInfoHandler struct {
	UserService *service.UserService
}

// ServeHTTP handles GET /v1/userinfo
//
//	@Summary		Current user
//	@Description	Returns the user behind the session token and how they authenticated.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserInfoResponse	"User info"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing session token"
//	@Failure		500	{object}	authsdk.ErrorResponse		"Internal server error"
//	@Router			/v1/userinfo [get].
func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := httpx.ClaimsFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	user, err := h.UserService.GetUserByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}
	if err != nil {
		slogx.FromContext(ctx).Error("failed to load user", "user_id", claims.Subject, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.UserInfoResponse{
		Sub:              user.ID,
		Username:         user.Username,
		PreferredName:    user.PreferredName,
		AMR:              claims.AMR,
		TwoFactorEnabled: user.TwoFactorEnabled(),
	})
}
