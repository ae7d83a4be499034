package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Issuer              string        // Optional: iss of session tokens (default: twofactor)
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)

	DatabaseFile string // Optional: path to SQLite database file (default: ./twofactor.db)
	PepperFile   string // Optional: path to file containing pepper for password hashing (default: ./pepper)

	AppSecret     string // APP_SECRET: shared fallback for the keys below
	EncryptionKey string // Optional: key for carried credentials and remember cookies (default: AppSecret)
	SigningKey    string // Optional: HS256 key for session tokens (default: AppSecret)

	SessionDriver  string        // Optional: memory or redis (default: memory)
	SessionTTL     time.Duration // Optional: idle lifetime of server-side sessions (default: 24h)
	SessionCookie  string        // Optional: session cookie name (default: twofactor_sid)
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	TokenTTL       time.Duration // Optional: lifetime of session tokens (default: 12h)
	SecureCookies  bool          // Set the Secure attribute on every cookie
	TrustProxy     bool          // Honour X-Forwarded-Proto/Host
	MetricsEnabled bool          // Serve /metrics (default: true)

	TOTPIssuer    string // Optional: shown by authenticator apps (default: none)
	TOTPDigits    int    // Optional: 6 or 8 (default: 6)
	TOTPPeriod    uint   // Optional: seconds per step (default: 30)
	TOTPAlgorithm string // Optional: sha1, sha256, sha512 (default: sha1)
	TOTPSkew      uint   // Optional: adjacent steps accepted, 0 for the current step only (default: 1)

	LoginURL        string   // Optional: browser login form (default: /login)
	VerifyURL       string   // Optional: browser code form (default: /login/verify)
	LoginURLs       []string // Optional: URLs a login may be posted to (default: /login,/v1/login; "" disables the check)
	URLChecker      string   // Optional: default
	URLCheckerRegex bool     // Treat LoginURLs as regular expressions
	CheckFullURL    bool     // Compare scheme://host/path instead of the path
	Finder          string   // Optional: all or auth (default: all)
	CarryOver       string   // Optional: identity or credentials (default: identity)

	RememberCookie string        // Optional: remember-device cookie name (default: TwoFactorAuth)
	RememberFor    time.Duration // Optional: remember-device lifetime (default: 30 days)
}

// LoadConfig reads the environment, after loading envFiles (or .env) when
// present. Variables already set in the environment win over file values.
func LoadConfig(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	appSecret := os.Getenv("APP_SECRET")
	cfg := Config{
		Issuer:              getEnvOrDefault("TWOFACTOR_ISSUER", "twofactor"),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		DatabaseFile: getEnvOrDefault("TWOFACTOR_DATABASE_FILE", "twofactor.db"),
		PepperFile:   getEnvOrDefault("TWOFACTOR_PEPPER_FILE", "pepper"),

		AppSecret:     appSecret,
		EncryptionKey: getEnvOrDefault("TWOFACTOR_ENCRYPTION_KEY", appSecret),
		SigningKey:    getEnvOrDefault("TWOFACTOR_SIGNING_KEY", appSecret),

		SessionDriver:  getEnvOrDefault("TWOFACTOR_SESSION_DRIVER", "memory"),
		SessionTTL:     getEnvDurationOrDefault("TWOFACTOR_SESSION_TTL", 24*time.Hour),
		SessionCookie:  getEnvOrDefault("TWOFACTOR_SESSION_COOKIE", "twofactor_sid"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getEnvIntOrDefault("REDIS_DB", 0),
		TokenTTL:       getEnvDurationOrDefault("TWOFACTOR_TOKEN_TTL", 12*time.Hour),
		SecureCookies:  getEnvBoolOrDefault("TWOFACTOR_SECURE_COOKIES", false),
		TrustProxy:     getEnvBoolOrDefault("TWOFACTOR_TRUST_PROXY", false),
		MetricsEnabled: getEnvBoolOrDefault("METRICS_ENABLED", true),

		TOTPIssuer:    os.Getenv("TWOFACTOR_TOTP_ISSUER"),
		TOTPDigits:    getEnvIntOrDefault("TWOFACTOR_TOTP_DIGITS", 6),
		TOTPPeriod:    uint(getEnvIntOrDefault("TWOFACTOR_TOTP_PERIOD", 30)),
		TOTPAlgorithm: getEnvOrDefault("TWOFACTOR_TOTP_ALGORITHM", "sha1"),

		LoginURL:        getEnvOrDefault("TWOFACTOR_LOGIN_URL", "/login"),
		VerifyURL:       getEnvOrDefault("TWOFACTOR_VERIFY_URL", "/login/verify"),
		URLChecker:      getEnvOrDefault("TWOFACTOR_URL_CHECKER", "default"),
		URLCheckerRegex: getEnvBoolOrDefault("TWOFACTOR_URL_CHECKER_REGEX", false),
		CheckFullURL:    getEnvBoolOrDefault("TWOFACTOR_CHECK_FULL_URL", false),
		Finder:          getEnvOrDefault("TWOFACTOR_FINDER", "all"),
		CarryOver:       getEnvOrDefault("TWOFACTOR_CARRY_OVER", "identity"),

		RememberCookie: getEnvOrDefault("TWOFACTOR_REMEMBER_COOKIE", "TwoFactorAuth"),
		RememberFor:    getEnvDurationOrDefault("TWOFACTOR_REMEMBER_FOR", 30*24*time.Hour),
	}

	// Unset means the defaults; set-but-empty turns the URL check off.
	if v, ok := os.LookupEnv("TWOFACTOR_LOGIN_URLS"); ok {
		cfg.LoginURLs = splitList(v)
	} else {
		cfg.LoginURLs = []string{cfg.LoginURL, "/v1/login"}
	}

	skew := getEnvIntOrDefault("TWOFACTOR_TOTP_SKEW", 1)
	if skew < 0 {
		return Config{}, fmt.Errorf("TWOFACTOR_TOTP_SKEW must not be negative, got %d", skew)
	}
	cfg.TOTPSkew = uint(skew)

	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
