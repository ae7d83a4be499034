package http_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	twofactorhttp "github.com/aussiebroadwan/twofactor/internal/twofactor/http"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/metrics"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/service"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/session"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store/drivers/sqlite"
	"github.com/aussiebroadwan/twofactor/pkg/authsdk"
	"github.com/aussiebroadwan/twofactor/pkg/cryptox"
	"github.com/aussiebroadwan/twofactor/pkg/jwtx"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
	"github.com/aussiebroadwan/twofactor/pkg/totpx"
	"github.com/stretchr/testify/require"
)

const (
	nateSecret = "FDJBDYSSZMLJBOUG"
	password   = "correct horse battery staple"
	issuer     = "twofactor-test"

	signingSecret = "http-test-signing-secret-0123456789"
)

type harness struct {
	srv    *httptest.Server
	engine *totpx.Engine
	store  *sqlite.Store
}

func newHarness(t *testing.T, configure ...func(*service.Config)) *harness {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	hasher := cryptox.Hasher{}
	users := &service.UserService{Store: st, Hasher: hasher}

	nate, _, err := users.CreateUser(ctx, "nate", "Nate", password)
	require.NoError(t, err)
	require.NoError(t, st.Users().SetSecret(ctx, nate.ID, nateSecret))
	_, _, err = users.CreateUser(ctx, "mariano", "Mariano", password)
	require.NoError(t, err)

	engine, err := totpx.New(totpx.Config{Issuer: "Bartab"})
	require.NoError(t, err)
	cipher, err := cryptox.NewCipher("test-encryption-key", "", "remember")
	require.NoError(t, err)

	cfg := service.DefaultConfig()
	cfg.LoginURLs = []string{"/login", "/v1/login"}
	for _, fn := range configure {
		fn(&cfg)
	}

	m := metrics.New()
	auth, err := service.NewAuthenticator(cfg, service.Deps{
		Engine:   engine,
		Finder:   service.StoreFinder{Users: st.Users(), Hasher: hasher, Fields: cfg.Fields},
		Remember: service.NewRememberPolicy(cipher, cfg.Remember),
		Observer: m,
	})
	require.NoError(t, err)
	results, err := service.NewResultAuthenticator(auth)
	require.NoError(t, err)
	responses, err := service.NewResponseAuthenticator(auth)
	require.NoError(t, err)

	signer, err := jwtx.NewSignerHS256("test", []byte(signingSecret))
	require.NoError(t, err)
	verifier := jwtx.NewVerifierHS256([]byte(signingSecret), issuer, 0)

	sessions := session.NewManager(session.NewMemory("test:", time.Hour), session.ManagerConfig{})

	router := twofactorhttp.NewRouter(
		twofactorhttp.RouterConfig{BuildVersion: "test", Issuer: issuer},
		st, sessions, signer, verifier, slogx.Discard(),
	)
	router.Authenticator = auth
	router.Results = results
	router.Responses = responses
	router.UserService = users
	router.EnrollmentService = &service.EnrollmentService{Store: st, Engine: engine}
	router.Metrics = m
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &harness{srv: srv, engine: engine, store: st}
}

func (h *harness) code(t *testing.T, secret string) string {
	t.Helper()
	code, err := h.engine.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return code
}

// wrongCode returns a code that differs from code in every digit.
func wrongCode(code string) string {
	b := []byte(code)
	for i, c := range b {
		b[i] = '0' + (c-'0'+5)%10
	}
	return string(b)
}

func requireAPIError(t *testing.T, err error, status int, code string) *authsdk.APIError {
	t.Helper()
	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr), "expected *authsdk.APIError, got %v", err)
	require.Equal(t, status, apiErr.StatusCode)
	require.Equal(t, code, apiErr.Code)
	return apiErr
}

func TestAPILogin_PasswordOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client := authsdk.NewSDKClient(h.srv.URL)

	sess, err := client.Login(ctx, "mariano", password)
	require.NoError(t, err)
	require.NotEmpty(t, sess.AccessToken())
	require.Equal(t, "mariano", sess.User().Username)
	require.False(t, sess.User().TwoFactorEnabled)
	require.Equal(t, []string{jwtx.AMRPassword}, sess.User().AMR)

	info, err := sess.GetUserInfo(ctx)
	require.NoError(t, err)
	require.Equal(t, "Mariano", info.PreferredName)
	require.False(t, info.TwoFactorEnabled)
}

func TestAPILogin_TwoFactor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client := authsdk.NewSDKClient(h.srv.URL)

	_, err := client.Login(ctx, "nate", password)
	var challenge *authsdk.TwoFactorRequiredError
	require.ErrorAs(t, err, &challenge)
	require.Equal(t, "/v1/login", challenge.VerifyURL)

	code := h.code(t, nateSecret)

	_, err = client.Verify(ctx, wrongCode(code), false)
	apiErr := requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCode)
	require.Equal(t, "Invalid two-step verification code.", apiErr.Description)

	// A wrong code leaves the login pending
	sess, err := client.Verify(ctx, code, false)
	require.NoError(t, err)
	require.Equal(t, "nate", sess.User().Username)
	require.True(t, sess.User().TwoFactorEnabled)
	require.Equal(t, []string{jwtx.AMRPassword, jwtx.AMROTP}, sess.User().AMR)

	// The pending login is gone once used
	_, err = client.Verify(ctx, code, false)
	requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeCredentialsMissing)
}

func TestAPILogin_Failures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
		status   int
		code     string
	}{
		{"wrong password", "nate", "nope", http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials},
		{"unknown user", "ghost", password, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials},
		{"missing password", "nate", "", http.StatusBadRequest, authsdk.ErrorCodeCredentialsMissing},
		{"missing username", "", password, http.StatusBadRequest, authsdk.ErrorCodeCredentialsMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := authsdk.NewSDKClient(h.srv.URL)
			_, err := client.Login(ctx, tt.username, tt.password)
			requireAPIError(t, err, tt.status, tt.code)
		})
	}

	t.Run("code without pending login", func(t *testing.T) {
		client := authsdk.NewSDKClient(h.srv.URL)
		_, err := client.Verify(ctx, "123456", false)
		apiErr := requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeCredentialsMissing)
		require.Equal(t, "Login credentials not found", apiErr.Description)
	})
}

func TestAPILogin_URLMismatch(t *testing.T) {
	h := newHarness(t, func(cfg *service.Config) {
		cfg.LoginURLs = []string{"/login"}
	})

	client := authsdk.NewSDKClient(h.srv.URL)
	_, err := client.Login(context.Background(), "mariano", password)
	apiErr := requireAPIError(t, err, http.StatusNotFound, authsdk.ErrorCodeLoginURLMismatch)
	require.Equal(t, "Login URL `/v1/login` did not match `/login`.", apiErr.Description)
}

func TestAPILogin_RememberDevice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client := authsdk.NewSDKClient(h.srv.URL)

	_, err := client.Login(ctx, "nate", password)
	require.Error(t, err)
	sess, err := client.Verify(ctx, h.code(t, nateSecret), true)
	require.NoError(t, err)
	require.NoError(t, sess.Logout(ctx))

	// The remember cookie survives logout and skips the code
	sess, err = client.Login(ctx, "nate", password)
	require.NoError(t, err)
	require.Equal(t, []string{jwtx.AMRPassword, jwtx.AMROTP}, sess.User().AMR)

	// Another device still needs a code
	other := authsdk.NewSDKClient(h.srv.URL)
	_, err = other.Login(ctx, "nate", password)
	var challenge *authsdk.TwoFactorRequiredError
	require.ErrorAs(t, err, &challenge)
}

func TestAPILogout_RevokesToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client := authsdk.NewSDKClient(h.srv.URL)

	sess, err := client.Login(ctx, "mariano", password)
	require.NoError(t, err)

	_, err = sess.GetUserInfo(ctx)
	require.NoError(t, err)

	require.NoError(t, sess.Logout(ctx))

	// The token is still signed and unexpired, but its session is gone
	_, err = sess.GetUserInfo(ctx)
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)
}

func TestUserInfo_RequiresToken(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.srv.URL + "/v1/userinfo")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMFA_EnrollConfirmDisable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client := authsdk.NewSDKClient(h.srv.URL)

	sess, err := client.Login(ctx, "mariano", password)
	require.NoError(t, err)

	// Nothing staged yet
	err = sess.ConfirmTOTP(ctx, "123456")
	requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeNotEnrolled)

	enrollment, err := sess.EnrollTOTP(ctx)
	require.NoError(t, err)
	require.NoError(t, totpx.ValidateSecret(enrollment.Secret))
	require.Equal(t, "mariano", enrollment.Account)
	require.Equal(t, "Bartab", enrollment.Issuer)
	require.True(t, strings.HasPrefix(enrollment.ProvisioningURI, "otpauth://totp/"))
	require.True(t, strings.HasPrefix(enrollment.QRCode, "data:image/png;base64,"))

	// Staged but not active: login still needs only the password
	again := authsdk.NewSDKClient(h.srv.URL)
	_, err = again.Login(ctx, "mariano", password)
	require.NoError(t, err)

	code := h.code(t, enrollment.Secret)
	err = sess.ConfirmTOTP(ctx, wrongCode(code))
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCode)

	require.NoError(t, sess.ConfirmTOTP(ctx, code))

	info, err := sess.GetUserInfo(ctx)
	require.NoError(t, err)
	require.True(t, info.TwoFactorEnabled)

	_, err = sess.EnrollTOTP(ctx)
	requireAPIError(t, err, http.StatusConflict, authsdk.ErrorCodeAlreadyEnabled)

	// Now the password alone is not enough
	fresh := authsdk.NewSDKClient(h.srv.URL)
	_, err = fresh.Login(ctx, "mariano", password)
	var challenge *authsdk.TwoFactorRequiredError
	require.ErrorAs(t, err, &challenge)

	require.NoError(t, sess.DisableTOTP(ctx, code))
	err = sess.DisableTOTP(ctx, code)
	requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeNotEnabled)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	client := authsdk.NewSDKClient(h.srv.URL)

	live, err := client.Health(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := client.Health(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Sessions)

	require.NoError(t, h.store.Close())
	ready, err = client.Health(context.Background(), true)
	require.ErrorIs(t, err, authsdk.ErrServiceUnavailable)
	require.Equal(t, "degraded", ready.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	client := authsdk.NewSDKClient(h.srv.URL)
	_, err := client.Login(context.Background(), "mariano", password)
	require.NoError(t, err)

	resp, err := http.Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Contains(t, string(body), `twofactor_auth_outcomes_total{method="password",status="authenticated"} 1`)
	require.Contains(t, string(body), `twofactor_http_requests_total`)
}

// browser is a cookie-keeping client that does not follow redirects.
type browser struct {
	t    *testing.T
	base string
	c    *http.Client
}

func newBrowser(t *testing.T, base string) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: base, c: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (b *browser) get(path string) (int, string, string) {
	resp, err := b.c.Get(b.base + path)
	require.NoError(b.t, err)
	return b.read(resp)
}

func (b *browser) post(path string, form url.Values) (int, string, string) {
	resp, err := b.c.PostForm(b.base+path, form)
	require.NoError(b.t, err)
	return b.read(resp)
}

func (b *browser) read(resp *http.Response) (int, string, string) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp.StatusCode, resp.Header.Get("Location"), string(body)
}

func TestWebLogin_TwoFactor(t *testing.T) {
	h := newHarness(t)
	b := newBrowser(t, h.srv.URL)

	status, _, body := b.get("/login")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, `name="username"`)

	// Nothing pending yet
	status, loc, _ := b.get("/login/verify")
	require.Equal(t, http.StatusSeeOther, status)
	require.Equal(t, "/login", loc)

	status, loc, _ = b.post("/login", url.Values{"username": {"nate"}, "password": {password}})
	require.Equal(t, http.StatusSeeOther, status)
	require.Equal(t, "/login/verify", loc)

	status, _, body = b.get("/login/verify")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, `name="code"`)
	require.Contains(t, body, `action="/login"`)

	code := h.code(t, nateSecret)
	status, loc, _ = b.post("/login", url.Values{"code": {wrongCode(code)}})
	require.Equal(t, http.StatusSeeOther, status)
	require.Equal(t, "/login/verify", loc)

	// The flash is shown once
	_, _, body = b.get("/login/verify")
	require.Contains(t, body, "Invalid two-step verification code.")
	_, _, body = b.get("/login/verify")
	require.NotContains(t, body, "Invalid two-step verification code.")

	status, loc, _ = b.post("/login", url.Values{"code": {code}})
	require.Equal(t, http.StatusSeeOther, status)
	require.Equal(t, "/", loc)

	status, _, body = b.get("/")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "Hello, nate")
	require.Contains(t, body, "pwd + otp")

	status, loc, _ = b.post("/logout", nil)
	require.Equal(t, http.StatusSeeOther, status)
	require.Equal(t, "/login", loc)

	status, loc, _ = b.get("/")
	require.Equal(t, http.StatusSeeOther, status)
	require.Equal(t, "/login", loc)
}

func TestWebLogin_Failures(t *testing.T) {
	h := newHarness(t)
	b := newBrowser(t, h.srv.URL)

	status, _, body := b.post("/login", url.Values{"username": {"nate"}, "password": {"nope"}})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Contains(t, body, "Invalid username or password.")
	require.Contains(t, body, `value="nate"`)

	status, _, body = b.post("/login", url.Values{"username": {"nate"}})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body, "Login credentials not found")

	status, _, body = b.post("/login", url.Values{"code": {"123456"}})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body, "Login credentials not found")
}

func TestWebLogin_CancelDropsPending(t *testing.T) {
	h := newHarness(t)
	b := newBrowser(t, h.srv.URL)

	status, loc, _ := b.post("/login", url.Values{"username": {"nate"}, "password": {password}})
	require.Equal(t, http.StatusSeeOther, status)
	require.Equal(t, "/login/verify", loc)

	b.post("/logout", nil)

	status, _, _ = b.post("/login", url.Values{"code": {h.code(t, nateSecret)}})
	require.Equal(t, http.StatusBadRequest, status)
}
