package authsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// SDKClient talks to the twofactor login service. It keeps a cookie jar so
// the server-side login session survives between the password step and the
// code step.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// LoginPath is where both login steps are posted.
	// Default: /v1/login
	LoginPath string
}

// NewSDKClient creates a client with its own cookie jar.
func NewSDKClient(baseURL string) *SDKClient {
	jar, _ := cookiejar.New(nil) // never fails without options

	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
		LoginPath: "/v1/login",
	}
}

// Login runs the password step. Accounts without a second factor get a
// Session straight away; otherwise a *TwoFactorRequiredError is returned and
// the caller continues with Verify.
func (c *SDKClient) Login(ctx context.Context, username, password string) (*Session, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	return c.postLogin(ctx, form)
}

// Verify runs the code step of a login started with Login. remember asks the
// server to skip the code on this device next time.
func (c *SDKClient) Verify(ctx context.Context, code string, remember bool) (*Session, error) {
	form := url.Values{}
	form.Set("code", code)
	if remember {
		form.Set("remember", "1")
	}
	return c.postLogin(ctx, form)
}

func (c *SDKClient) postLogin(ctx context.Context, form url.Values) (*Session, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, c.LoginPath, strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
	if err != nil {
		return nil, err
	}

	var login LoginResponse
	if err := decodeJSON(resp, &login, http.StatusOK); err != nil {
		return nil, err
	}
	return newSession(c, &login), nil
}

// Health fetches /livez, or /readyz when ready is set. A degraded readiness
// response is returned together with an *APIError carrying status 503.
func (c *SDKClient) Health(ctx context.Context, ready bool) (*HealthResponse, error) {
	path := "/livez"
	if ready {
		path = "/readyz"
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if resp.StatusCode == http.StatusServiceUnavailable {
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &health, ErrServiceUnavailable
	}
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}
