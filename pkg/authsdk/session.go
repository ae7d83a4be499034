package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Session is an authenticated session. It is safe for concurrent use.
type Session struct {
	client *SDKClient

	mu          sync.RWMutex
	accessToken string
	expiresAt   time.Time
	user        UserInfoResponse
}

func newSession(client *SDKClient, login *LoginResponse) *Session {
	return &Session{
		client:      client,
		accessToken: login.AccessToken,
		expiresAt:   time.Now().Add(time.Duration(login.ExpiresIn) * time.Second),
		user:        login.User,
	}
}

// User returns the user as reported at login.
func (s *Session) User() UserInfoResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// AccessToken returns the session token.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// Expired reports whether the session token has lapsed.
func (s *Session) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !time.Now().Before(s.expiresAt)
}

// GetUserInfo fetches the current user.
func (s *Session) GetUserInfo(ctx context.Context) (*UserInfoResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/userinfo", nil, nil)
	if err != nil {
		return nil, err
	}

	var info UserInfoResponse
	if err := decodeJSON(resp, &info, http.StatusOK); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.user = info
	s.mu.Unlock()
	return &info, nil
}

// EnrollTOTP issues a new secret for the user. It is not active until
// ConfirmTOTP succeeds.
func (s *Session) EnrollTOTP(ctx context.Context) (*TOTPEnrollResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/mfa/totp/enroll", nil, nil)
	if err != nil {
		return nil, err
	}

	var enroll TOTPEnrollResponse
	if err := decodeJSON(resp, &enroll, http.StatusOK); err != nil {
		return nil, err
	}
	return &enroll, nil
}

// ConfirmTOTP activates the enrolled secret with a code generated from it.
func (s *Session) ConfirmTOTP(ctx context.Context, code string) error {
	return s.sendCode(ctx, http.MethodPost, "/v1/mfa/totp/verify", code)
}

// DisableTOTP turns the second factor off. A current code is required.
func (s *Session) DisableTOTP(ctx context.Context, code string) error {
	return s.sendCode(ctx, http.MethodDelete, "/v1/mfa/totp", code)
}

// Logout ends the session server-side.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/logout", nil, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

func (s *Session) sendCode(ctx context.Context, method, path, code string) error {
	body, err := json.Marshal(TOTPCodeRequest{Code: code})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := s.doAuthRequest(ctx, method, path, bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
