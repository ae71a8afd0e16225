// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"html/template"
	"net/http"
	"net/url"
	"strings"
)

// Paths served by the login handlers.
const (
	LoginPath  = "/login"
	LogoutPath = "/logout"
)

var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>wb login</title></head>
<body>
<h2>Access token required</h2>
{{if .Failed}}<p class="error">Invalid token.</p>{{end}}
<form method="post" action="/login">
<input type="hidden" name="next" value="{{.Next}}">
<input type="password" name="token" placeholder="Enter access token" autofocus>
<input type="submit" value="Log in">
</form>
</body>
</html>
`))

type loginView struct {
	Next   string
	Failed bool
}

// LoginHandler serves the token form on GET and checks it on POST. A
// correct token sets the session cookie and redirects to the "next"
// form value when it is a local path, else to "/".
func (a *Authenticator) LoginHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			a.renderLogin(w, loginView{Next: safeNext(r.URL.Query().Get("next"))}, http.StatusOK)
		case http.MethodPost:
			next := safeNext(r.PostFormValue("next"))
			if !a.CheckToken(r.PostFormValue("token")) {
				a.logger.Warn("login failed", "remote", r.RemoteAddr)
				a.renderLogin(w, loginView{Next: next, Failed: true}, http.StatusUnauthorized)
				return
			}
			if err := a.issue(w, r); err != nil {
				a.logger.Error("issuing session cookie", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			a.logger.Info("login succeeded", "remote", r.RemoteAddr)
			http.Redirect(w, r, next, http.StatusSeeOther)
		default:
			w.Header().Set("Allow", "GET, HEAD, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

// LogoutHandler clears the session cookie and returns to the login
// form. POST only.
func (a *Authenticator) LogoutHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		a.clear(w, r)
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
	})
}

func (a *Authenticator) renderLogin(w http.ResponseWriter, view loginView, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := loginPage.Execute(w, view); err != nil {
		a.logger.Debug("rendering login page", "error", err)
	}
}

// safeNext returns target when it is a path on this server, else "/".
// Scheme-relative ("//host") and backslash forms are rejected because
// browsers treat them as other hosts.
func safeNext(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return "/"
	}
	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return "/"
	}
	return target
}
