package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/service"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/session"
)

// cookieJar adapts a request/response pair to service.Cookies.
type cookieJar struct {
	w      http.ResponseWriter
	r      *http.Request
	secure bool
}

func (c cookieJar) Read(name string) (string, bool) {
	ck, err := c.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return ck.Value, true
}

func (c cookieJar) Write(name, value string, opts service.CookieOptions) {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     opts.Path,
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure || c.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if !opts.Expires.IsZero() {
		ck.Expires = opts.Expires.UTC()
		ck.MaxAge = max(int(time.Until(opts.Expires).Seconds()), 1)
	}
	http.SetCookie(c.w, ck)
}

// redirectResponder records what the response adapter asks for; the handler
// turns it into a 303 once the attempt is over.
type redirectResponder struct {
	sess   *session.Session
	target string
}

func (r *redirectResponder) Redirect(url string) { r.target = url }

func (r *redirectResponder) Flash(ctx context.Context, msg string) error {
	return r.sess.AddFlash(ctx, msg)
}

// newAttempt reads the form and binds the request to its session.
func (r *Router) newAttempt(w http.ResponseWriter, req *http.Request) (service.Attempt, *session.Session, error) {
	if err := req.ParseForm(); err != nil {
		return service.Attempt{}, nil, err
	}

	sess := r.sessions.Load(w, req)
	return service.Attempt{
		Form:    req.PostForm,
		URL:     r.requestURL(req),
		Session: sess,
		Cookies: cookieJar{w: w, r: req, secure: r.cfg.SecureCookies},
	}, sess, nil
}

// requestURL reconstructs the URL the client used, for full-URL login checks.
func (r *Router) requestURL(req *http.Request) *url.URL {
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	host := req.Host

	if r.cfg.TrustProxy {
		if p := req.Header.Get("X-Forwarded-Proto"); p != "" {
			scheme = strings.ToLower(strings.TrimSpace(strings.Split(p, ",")[0]))
		}
		if h := req.Header.Get("X-Forwarded-Host"); h != "" {
			host = strings.TrimSpace(strings.Split(h, ",")[0])
		}
	}

	return &url.URL{
		Scheme:  scheme,
		Host:    host,
		Path:    req.URL.Path,
		RawPath: req.URL.RawPath,
	}
}
