// Package totpx generates and verifies time-based one-time passwords (RFC 6238)
// and builds the provisioning material authenticator apps consume.
//
// The HMAC and Base32 arithmetic is delegated to github.com/pquerna/otp; this
// package owns the configuration surface (issuer, digits, period, algorithm,
// clock-skew window), secret generation and input normalisation.
package totpx

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	DefaultDigits     = 6
	DefaultPeriod     = 30 // seconds
	DefaultAlgorithm  = "sha1"
	DefaultSkew       = 1 // adjacent time steps accepted either side
	DefaultSecretBits = 80
)

var (
	ErrInvalidSecret       = errors.New("totpx: invalid secret")
	ErrConfiguration       = errors.New("totpx: invalid configuration")
	ErrInsufficientEntropy = errors.New("totpx: insufficient entropy")
)

// RNG is the random source used for secret generation.
type RNG interface {
	io.Reader

	// IsCryptographicallySecure reports whether the source is suitable for
	// generating shared secrets.
	IsCryptographicallySecure() bool
}

type cryptoRNG struct{}

func (cryptoRNG) Read(p []byte) (int, error)      { return rand.Read(p) }
func (cryptoRNG) IsCryptographicallySecure() bool { return true }

// Config describes how codes are derived. Zero values fall back to the
// defaults used by common authenticator apps.
type Config struct {
	Issuer    string // Optional: shown by authenticator apps
	Digits    int    // Optional: code length, 6 or 8 (default: 6)
	Period    uint   // Optional: seconds per time step (default: 30)
	Algorithm string // Optional: sha1, sha256, sha512 or md5 (default: sha1)
	Skew      *uint  // Optional: adjacent steps accepted, 0 for the current step only (default: 1)
	RNG       RNG    // Optional: secret source (default: crypto/rand)
}

// Skew returns n for Config.Skew.
func Skew(n uint) *uint { return &n }

// Engine is safe for concurrent use; it holds no mutable state.
type Engine struct {
	issuer    string
	digits    otp.Digits
	period    uint
	skew      uint
	algorithm otp.Algorithm
	rng       RNG
}

// New validates cfg and returns an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Digits == 0 {
		cfg.Digits = DefaultDigits
	}
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = DefaultAlgorithm
	}
	if cfg.RNG == nil {
		cfg.RNG = cryptoRNG{}
	}

	digits, err := parseDigits(cfg.Digits)
	if err != nil {
		return nil, err
	}
	algorithm, err := ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	skew := uint(DefaultSkew)
	if cfg.Skew != nil {
		skew = *cfg.Skew
	}

	return &Engine{
		issuer:    cfg.Issuer,
		digits:    digits,
		period:    cfg.Period,
		skew:      skew,
		algorithm: algorithm,
		rng:       cfg.RNG,
	}, nil
}

// Issuer returns the configured issuer name (may be empty).
func (e *Engine) Issuer() string { return e.issuer }

// Period returns the step length.
func (e *Engine) Period() time.Duration { return time.Duration(e.period) * time.Second }

// CreateSecret returns a Base32 secret carrying at least bits of entropy.
// bits <= 0 selects DefaultSecretBits.
func (e *Engine) CreateSecret(bits int, requireCryptoSecure bool) (string, error) {
	if bits <= 0 {
		bits = DefaultSecretBits
	}
	if requireCryptoSecure && !e.rng.IsCryptographicallySecure() {
		return "", fmt.Errorf("%w: random source is not cryptographically secure", ErrInsufficientEntropy)
	}

	buf := make([]byte, (bits+7)/8)
	if _, err := io.ReadFull(e.rng, buf); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInsufficientEntropy, err)
	}

	return secretEncoding.EncodeToString(buf), nil
}

// GenerateCode computes the code for the time step containing at.
func (e *Engine) GenerateCode(secret string, at time.Time) (string, error) {
	if err := ValidateSecret(secret); err != nil {
		return "", err
	}

	code, err := totp.GenerateCodeCustom(secret, at, e.opts())
	if err != nil {
		return "", mapOTPError(err)
	}
	return code, nil
}

// VerifyCode reports whether code matches secret at the step containing at or
// any of the Skew steps either side. Whitespace inside code is ignored.
func (e *Engine) VerifyCode(secret, code string, at time.Time) (bool, error) {
	if err := ValidateSecret(secret); err != nil {
		return false, err
	}

	code = stripSpaces(code)
	if len(code) != e.digits.Length() {
		return false, nil
	}

	ok, err := totp.ValidateCustom(code, secret, at, e.opts())
	if err != nil {
		if errors.Is(err, otp.ErrValidateInputInvalidLength) {
			return false, nil
		}
		return false, mapOTPError(err)
	}
	return ok, nil
}

// ProvisioningURI builds the otpauth URI for label using the engine settings.
func (e *Engine) ProvisioningURI(label, secret string) (string, error) {
	return BuildProvisioningURI(label, secret, e.issuer, e.digits.Length(), e.period, e.algorithm.String())
}

func (e *Engine) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    e.period,
		Skew:      e.skew,
		Digits:    e.digits,
		Algorithm: e.algorithm,
	}
}

// secretEncoding matches what authenticator apps expect: RFC 4648 Base32
// without padding.
var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ValidateSecret checks that secret is non-empty Base32. Lowercase input and
// trailing padding are tolerated, as they are by the code generator.
func ValidateSecret(secret string) error {
	s := strings.ToUpper(strings.TrimSpace(secret))
	s = strings.TrimRight(s, "=")
	if s == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSecret)
	}
	if _, err := secretEncoding.DecodeString(s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSecret, err)
	}
	return nil
}

// ParseAlgorithm maps a configuration name to an otp.Algorithm.
func ParseAlgorithm(name string) (otp.Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sha1":
		return otp.AlgorithmSHA1, nil
	case "sha256":
		return otp.AlgorithmSHA256, nil
	case "sha512":
		return otp.AlgorithmSHA512, nil
	case "md5":
		return otp.AlgorithmMD5, nil
	default:
		return otp.AlgorithmSHA1, fmt.Errorf("%w: unsupported algorithm %q", ErrConfiguration, name)
	}
}

func parseDigits(n int) (otp.Digits, error) {
	switch n {
	case 6:
		return otp.DigitsSix, nil
	case 8:
		return otp.DigitsEight, nil
	default:
		return otp.DigitsSix, fmt.Errorf("%w: unsupported digits %d", ErrConfiguration, n)
	}
}

func mapOTPError(err error) error {
	if errors.Is(err, otp.ErrValidateSecretInvalidBase32) {
		return fmt.Errorf("%w: %w", ErrInvalidSecret, err)
	}
	return err
}

// stripSpaces removes every whitespace rune; users commonly type "123 456".
func stripSpaces(code string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, code)
}
