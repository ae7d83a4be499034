package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
	"github.com/aussiebroadwan/twofactor/pkg/totpx"
)

var (
	ErrInvalidTOTPCode         = errors.New("invalid TOTP code")
	ErrTwoFactorNotEnabled     = errors.New("two-factor authentication not enabled for this user")
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled for this user")
	ErrNotEnrolled             = errors.New("no TOTP enrollment in progress")
)

// EnrollmentService provisions and removes TOTP secrets.
type EnrollmentService struct {
	Store  store.Store
	Engine *totpx.Engine
	QRSize int              // Optional: default totpx.DefaultQRSize
	Now    func() time.Time // Optional
}

func (s *EnrollmentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Enroll issues a new secret and stages it. The second factor is NOT enabled
// until Confirm sees a code generated from it.
func (s *EnrollmentService) Enroll(ctx context.Context, userID string) (domain.TOTPEnrollment, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.TOTPEnrollment{}, fmt.Errorf("failed to get user: %w", err)
	}
	if user.TwoFactorEnabled() {
		return domain.TOTPEnrollment{}, ErrTwoFactorAlreadyEnabled
	}

	secret, err := s.Engine.CreateSecret(totpx.DefaultSecretBits, true)
	if err != nil {
		return domain.TOTPEnrollment{}, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	uri, err := s.Engine.ProvisioningURI(user.Username, secret)
	if err != nil {
		return domain.TOTPEnrollment{}, fmt.Errorf("failed to build provisioning URI: %w", err)
	}
	qr, err := totpx.QRCodeDataURI(uri, s.QRSize)
	if err != nil {
		return domain.TOTPEnrollment{}, fmt.Errorf("failed to render QR code: %w", err)
	}

	if err := s.Store.Users().SetPendingSecret(ctx, userID, secret); err != nil {
		return domain.TOTPEnrollment{}, fmt.Errorf("failed to store pending secret: %w", err)
	}

	return domain.TOTPEnrollment{
		Secret:          secret,
		ProvisioningURI: uri,
		QRCode:          qr,
		Issuer:          s.Engine.Issuer(),
		Account:         user.Username,
	}, nil
}

// Confirm checks code against the staged secret and, when it matches, makes
// it the active secret.
func (s *EnrollmentService) Confirm(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.TwoFactorEnabled() {
		return ErrTwoFactorAlreadyEnabled
	}
	if user.PendingSecret == nil || *user.PendingSecret == "" {
		return ErrNotEnrolled
	}

	ok, err := s.Engine.VerifyCode(*user.PendingSecret, code, s.now())
	if err != nil {
		return fmt.Errorf("failed to verify code: %w", err)
	}
	if !ok {
		return ErrInvalidTOTPCode
	}

	if err := s.Store.Users().ActivatePendingSecret(ctx, userID); err != nil {
		return fmt.Errorf("failed to activate secret: %w", err)
	}
	return nil
}

// Disable turns the second factor off. A current code is required so a
// stolen session alone cannot downgrade the account.
func (s *EnrollmentService) Disable(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if !user.TwoFactorEnabled() {
		return ErrTwoFactorNotEnabled
	}

	ok, err := s.Engine.VerifyCode(*user.Secret, code, s.now())
	if err != nil {
		return fmt.Errorf("failed to verify code: %w", err)
	}
	if !ok {
		return ErrInvalidTOTPCode
	}

	if err := s.Store.Users().ClearSecret(ctx, userID); err != nil {
		return fmt.Errorf("failed to disable two-factor: %w", err)
	}
	return nil
}
