// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"

	"github.com/filetail/wb/lib/clock"
	"github.com/filetail/wb/lib/secret"
)

const (
	// DefaultMaxAge is how long a session cookie stays valid.
	DefaultMaxAge = 30 * 24 * time.Hour

	keySize   = 32
	nonceSize = 16
	macSize   = 32

	// payloadSize is the issue time (unix seconds) plus the nonce.
	payloadSize = 8 + nonceSize
)

var cookieKeyInfo = []byte("wb session cookie v1")

// Config configures an Authenticator.
type Config struct {
	// Token is the access token. Required. The Authenticator does not
	// take ownership; the caller closes it.
	Token *secret.Buffer

	// CookieName is the session cookie name. Required.
	CookieName string

	// MaxAge bounds cookie validity. Defaults to DefaultMaxAge.
	MaxAge time.Duration

	// Clock stamps and checks cookie ages. Defaults to clock.Real().
	Clock clock.Clock

	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// Authenticator checks tokens and issues and verifies session cookies.
type Authenticator struct {
	token      *secret.Buffer
	key        *secret.Buffer
	cookieName string
	maxAge     time.Duration
	clock      clock.Clock
	logger     *slog.Logger
}

// New derives the cookie key from the token.
func New(config Config) (*Authenticator, error) {
	if config.Token == nil {
		return nil, errors.New("auth: token is required")
	}
	if config.CookieName == "" {
		return nil, errors.New("auth: cookie name is required")
	}
	if config.Logger == nil {
		return nil, errors.New("auth: logger is required")
	}
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultMaxAge
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}

	key, err := deriveKey(config.Token.Bytes())
	if err != nil {
		return nil, err
	}

	return &Authenticator{
		token:      config.Token,
		key:        key,
		cookieName: config.CookieName,
		maxAge:     config.MaxAge,
		clock:      config.Clock,
		logger:     config.Logger,
	}, nil
}

// Close releases the derived key.
func (a *Authenticator) Close() error {
	return a.key.Close()
}

func deriveKey(token []byte) (*secret.Buffer, error) {
	reader := hkdf.New(sha256.New, token, nil, cookieKeyInfo)
	derived := make([]byte, keySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("deriving cookie key: %w", err)
	}
	return secret.NewFromBytes(derived)
}

// CheckToken reports whether candidate is the access token.
func (a *Authenticator) CheckToken(candidate string) bool {
	return a.token.Equal([]byte(candidate))
}

func (a *Authenticator) mac(payload []byte) []byte {
	hasher, err := blake3.NewKeyed(a.key.Bytes())
	if err != nil {
		panic("auth: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(payload)
	return hasher.Sum(nil)
}

// newCookieValue returns "payload.mac", both base64url.
func (a *Authenticator) newCookieValue() (string, error) {
	payload := make([]byte, payloadSize)
	binary.BigEndian.PutUint64(payload[:8], uint64(a.clock.Now().Unix()))
	if _, err := rand.Read(payload[8:]); err != nil {
		return "", fmt.Errorf("generating cookie nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(a.mac(payload)), nil
}

// verifyCookieValue checks the MAC and age of a cookie value.
func (a *Authenticator) verifyCookieValue(value string) error {
	encodedPayload, encodedMAC, ok := strings.Cut(value, ".")
	if !ok {
		return errors.New("cookie has no signature")
	}
	payload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil || len(payload) != payloadSize {
		return errors.New("cookie payload is malformed")
	}
	signature, err := base64.RawURLEncoding.DecodeString(encodedMAC)
	if err != nil || len(signature) != macSize {
		return errors.New("cookie signature is malformed")
	}
	if !hmac.Equal(signature, a.mac(payload)) {
		return errors.New("cookie signature mismatch")
	}

	issued := time.Unix(int64(binary.BigEndian.Uint64(payload[:8])), 0)
	age := a.clock.Now().Sub(issued)
	if age < -time.Minute {
		return errors.New("cookie issued in the future")
	}
	if age > a.maxAge {
		return fmt.Errorf("cookie expired %v ago", (age - a.maxAge).Truncate(time.Second))
	}
	return nil
}

// Authenticated reports whether r carries a valid session cookie.
func (a *Authenticator) Authenticated(r *http.Request) bool {
	cookie, err := r.Cookie(a.cookieName)
	if err != nil {
		return false
	}
	if err := a.verifyCookieValue(cookie.Value); err != nil {
		a.logger.Debug("rejecting session cookie", "error", err, "remote", r.RemoteAddr)
		return false
	}
	return true
}

// issue sets a fresh session cookie on w.
func (a *Authenticator) issue(w http.ResponseWriter, r *http.Request) error {
	value, err := a.newCookieValue()
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(a.maxAge / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// clear expires the session cookie on w.
func (a *Authenticator) clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireBrowser redirects requests without a valid cookie to the
// login form, remembering where they were going.
func (a *Authenticator) RequireBrowser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Authenticated(r) {
			http.Redirect(w, r, LoginPath+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAPI rejects requests without a valid cookie with 401.
func (a *Authenticator) RequireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Authenticated(r) {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
