package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/service"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/session"
	"github.com/aussiebroadwan/twofactor/pkg/authsdk"
	"github.com/aussiebroadwan/twofactor/pkg/httpx"
	"github.com/aussiebroadwan/twofactor/pkg/jwtx"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
)

// amrFor maps how the login was completed to RFC 8176 method values. A
// remembered device stands in for a code it was issued after, so it counts
// as otp too.
func amrFor(m service.Method) []string {
	switch m {
	case service.MethodTOTP, service.MethodRemembered:
		return []string{jwtx.AMRPassword, jwtx.AMROTP}
	default:
		return []string{jwtx.AMRPassword}
	}
}

// issueSession finishes a login: the session id is rotated, the subject is
// recorded server-side and a signed session token is set as a cookie.
func (r *Router) issueSession(ctx context.Context, w http.ResponseWriter, sess *session.Session, out service.Outcome) (authsdk.LoginResponse, error) {
	fields := r.Authenticator.Config().Fields
	identity := out.Identity
	sub := identity.String("id")
	if sub == "" {
		sub = identity.String(fields.Username)
	}

	// A session id planted before login must not survive it.
	if err := sess.Renew(ctx); err != nil {
		return authsdk.LoginResponse{}, fmt.Errorf("renew session: %w", err)
	}
	if err := sess.Write(ctx, sessionKeySubject, sub); err != nil {
		return authsdk.LoginResponse{}, fmt.Errorf("record subject: %w", err)
	}

	amr := amrFor(out.Method)
	claims := jwtx.NewSessionClaims(sub, sess.ID(), identity.String(fields.Username), amr, r.cfg.TokenTTL, r.cfg.Issuer, time.Now())
	token, err := r.signer.Sign(claims)
	if err != nil {
		return authsdk.LoginResponse{}, fmt.Errorf("sign session token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     r.cfg.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(r.cfg.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	return authsdk.LoginResponse{
		Status:      string(out.Status),
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(r.cfg.TokenTTL.Seconds()),
		User:        userInfoFromIdentity(identity, fields, amr, out.Method != service.MethodPassword),
	}, nil
}

func userInfoFromIdentity(identity domain.Identity, fields service.Fields, amr []string, twoFactor bool) authsdk.UserInfoResponse {
	return authsdk.UserInfoResponse{
		Sub:              identity.String("id"),
		Username:         identity.String(fields.Username),
		PreferredName:    identity.String("preferred_name"),
		AMR:              amr,
		TwoFactorEnabled: twoFactor,
	}
}

// endSession drops pending login state, the server-side session and the
// token cookie.
func (r *Router) endSession(w http.ResponseWriter, req *http.Request) error {
	ctx := req.Context()
	sess := r.sessions.Load(w, req)

	err := r.Authenticator.Abandon(ctx, sess)
	if derr := sess.Destroy(ctx); err == nil {
		err = derr
	}

	http.SetCookie(w, &http.Cookie{
		Name:     r.cfg.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return err
}

// requireLiveSession rejects a valid token whose session has been logged out
// or has expired.
func (r *Router) requireLiveSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		claims, ok := httpx.ClaimsFromContext(ctx)
		if !ok {
			authsdk.ErrInvalidToken.WriteError(w)
			return
		}

		sub, ok, err := r.sessions.Value(ctx, claims.SID, sessionKeySubject)
		if err != nil {
			slogx.FromContext(ctx).Error("session lookup failed", "err", err)
			authsdk.ErrServiceUnavailable.WriteError(w)
			return
		}
		if !ok || sub != claims.Subject {
			authsdk.ErrInvalidToken.WriteError(w)
			return
		}
		next.ServeHTTP(w, req)
	})
}
