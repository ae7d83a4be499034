package http

import (
	"html/template"
	"net/http"

	"github.com/aussiebroadwan/twofactor/pkg/httpx"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
)

const layoutTpl = `{{define "layout"}}<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width,initial-scale=1">
  <title>{{.Title}}</title>
  <style>
    body{font-family:system-ui,sans-serif;background:#f4f5f7;margin:0;display:grid;place-items:center;min-height:100vh}
    main{background:#fff;padding:2rem;border-radius:8px;box-shadow:0 1px 4px rgba(0,0,0,.1);width:20rem}
    label{display:block;margin:.75rem 0 .25rem}
    input[type=text],input[type=password]{width:100%;padding:.5rem;box-sizing:border-box}
    button{margin-top:1rem;width:100%;padding:.6rem}
    .error{color:#b00020;margin:.5rem 0}
    .muted{color:#666;font-size:.9rem}
  </style>
</head>
<body><main>{{template "content" .}}</main></body>
</html>{{end}}`

const loginTpl = `{{define "content"}}
<h1>Sign in</h1>
{{with .Error}}<p class="error">{{.}}</p>{{end}}
<form method="post" action="{{.Action}}">
  <label for="username">Username</label>
  <input type="text" id="username" name="{{.Fields.Username}}" value="{{.Username}}" autocomplete="username" required autofocus>
  <label for="password">Password</label>
  <input type="password" id="password" name="{{.Fields.Password}}" autocomplete="current-password" required>
  <button type="submit">Continue</button>
</form>
{{end}}`

const verifyTpl = `{{define "content"}}
<h1>Two-step verification</h1>
<p class="muted">Enter the code shown in your authenticator app.</p>
{{with .Error}}<p class="error">{{.}}</p>{{end}}
<form method="post" action="{{.Action}}">
  <label for="code">Code</label>
  <input type="text" id="code" name="{{.Fields.Code}}" inputmode="numeric" autocomplete="one-time-code" required autofocus>
  <label><input type="checkbox" name="{{.Fields.Remember}}" value="1"> Trust this device for 30 days</label>
  <button type="submit">Verify</button>
</form>
<form method="post" action="/logout"><button type="submit">Cancel</button></form>
{{end}}`

const homeTpl = `{{define "content"}}
<h1>Hello, {{.Username}}</h1>
<p class="muted">Signed in with {{range $i, $m := .AMR}}{{if $i}} + {{end}}{{$m}}{{end}}.</p>
<form method="post" action="/logout"><button type="submit">Sign out</button></form>
{{end}}`

var (
	loginPage  = template.Must(template.Must(template.New("login").Parse(layoutTpl)).Parse(loginTpl))
	verifyPage = template.Must(template.Must(template.New("verify").Parse(layoutTpl)).Parse(verifyTpl))
	homePage   = template.Must(template.Must(template.New("home").Parse(layoutTpl)).Parse(homeTpl))
)

// render writes a full, uncached HTML page.
func render(w http.ResponseWriter, r *http.Request, t *template.Template, status int, data any) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Frame-Options", "DENY")
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		slogx.FromContext(r.Context()).Error("failed to render page", "page", t.Name(), "err", err)
	}
}
