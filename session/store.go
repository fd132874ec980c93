// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package session keeps a sign-in attempt and the resulting session in
// HTTP-only cookies.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/businesshub/hubauth/oidc"
	"github.com/businesshub/hubauth/oidc/callback"
	"github.com/hashicorp/go-hclog"
)

// Cookie names.
const (
	StateCookie          = "oauth_state"
	VerifierCookie       = "code_verifier"
	NonceCookie          = "oauth_nonce"
	AttemptExpiresCookie = "oauth_expires_at"
	AccessTokenCookie    = "access_token"
	IDTokenCookie        = "id_token"
	ExpiresAtCookie      = "token_expires_at"
)

// DefaultPKCETTL is how long a sign-in attempt's cookies live.
const DefaultPKCETTL = 5 * time.Minute

// Store reads and writes the cookies of the sign-in flow.
type Store struct {
	secure  bool
	pkceTTL time.Duration
	now     func() time.Time
	logger  hclog.Logger
}

// ensure that Store implements the callback.RequestReader interface.
var _ callback.RequestReader = (*Store)(nil)

// NewStore creates a Store.
//
// Supported options: WithSecure, WithPKCETTL, WithNow, WithLogger
func NewStore(opt ...Option) *Store {
	opts := getOpts(opt...)
	return &Store{
		secure:  opts.withSecure,
		pkceTTL: opts.withPKCETTL,
		now:     opts.withNowFunc,
		logger:  opts.withLogger,
	}
}

// PKCETTL is how long a sign-in attempt stays valid.
func (s *Store) PKCETTL() time.Duration {
	return s.pkceTTL
}

func (s *Store) cookie(name, value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		c.Expires = time.Unix(0, 0)
	}
	return c
}

func (s *Store) clear(w http.ResponseWriter, names ...string) {
	for _, n := range names {
		http.SetCookie(w, s.cookie(n, "", -1))
	}
}

// WritePKCE stores the sign-in attempt's state, nonce and code verifier,
// plus its expiry in unix milliseconds.
func (s *Store) WritePKCE(w http.ResponseWriter, r oidc.Request) error {
	const op = "session.(Store).WritePKCE"
	switch {
	case r == nil:
		return fmt.Errorf("%s: request is nil: %w", op, oidc.ErrNilParameter)
	case r.PKCEVerifier() == nil:
		return fmt.Errorf("%s: %w", op, oidc.ErrMissingVerifier)
	}
	maxAge := int(s.pkceTTL / time.Second)
	http.SetCookie(w, s.cookie(StateCookie, r.State(), maxAge))
	http.SetCookie(w, s.cookie(VerifierCookie, r.PKCEVerifier().Verifier(), maxAge))
	http.SetCookie(w, s.cookie(NonceCookie, r.Nonce(), maxAge))
	http.SetCookie(w, s.cookie(AttemptExpiresCookie, strconv.FormatInt(r.ExpiresAt().UnixMilli(), 10), maxAge))
	return nil
}

// Read rebuilds the sign-in attempt from its cookies, keeping the expiry it
// was written with. A missing state or expiry cookie is an error wrapping
// oidc.ErrNotFound, so the callback fails closed. A missing verifier cookie
// yields a request without one, which the callback refuses.
func (s *Store) Read(_ context.Context, req *http.Request, state string) (oidc.Request, error) {
	const op = "session.(Store).Read"
	stateCookie, err := req.Cookie(StateCookie)
	if err != nil || stateCookie.Value == "" {
		return nil, fmt.Errorf("%s: no %s cookie: %w", op, StateCookie, oidc.ErrNotFound)
	}
	expCookie, err := req.Cookie(AttemptExpiresCookie)
	if err != nil || expCookie.Value == "" {
		return nil, fmt.Errorf("%s: no %s cookie: %w", op, AttemptExpiresCookie, oidc.ErrNotFound)
	}
	ms, err := strconv.ParseInt(expCookie.Value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: malformed %s cookie: %w", op, AttemptExpiresCookie, oidc.ErrNotFound)
	}
	opts := []oidc.Option{
		oidc.WithState(stateCookie.Value),
		oidc.WithExpiration(time.UnixMilli(ms)),
		oidc.WithNow(s.now),
		oidc.WithPKCE(nil),
	}
	if c, err := req.Cookie(NonceCookie); err == nil && c.Value != "" {
		opts = append(opts, oidc.WithNonce(c.Value))
	}
	if c, err := req.Cookie(VerifierCookie); err == nil && c.Value != "" {
		v, err := oidc.ParseCodeVerifier(c.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		opts = append(opts, oidc.WithPKCE(v))
	}
	r, err := oidc.NewRequest(s.pkceTTL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// ClearPKCE expires the sign-in attempt's cookies.
func (s *Store) ClearPKCE(w http.ResponseWriter) {
	s.clear(w, StateCookie, VerifierCookie, NonceCookie, AttemptExpiresCookie)
}

// WriteSession stores the tokens of an established session. The cookies live
// for the access token's lifetime, and token_expires_at holds its expiry in
// unix milliseconds.
func (s *Store) WriteSession(w http.ResponseWriter, t *oidc.Token) error {
	const op = "session.(Store).WriteSession"
	switch {
	case t == nil:
		return fmt.Errorf("%s: token is nil: %w", op, oidc.ErrNilParameter)
	case t.AccessToken == "":
		return fmt.Errorf("%s: %w", op, oidc.ErrMissingAccessToken)
	}
	maxAge := int(t.ExpiresIn)
	if maxAge <= 0 {
		maxAge = int(t.ExpiresAt.Sub(s.now()) / time.Second)
	}
	http.SetCookie(w, s.cookie(AccessTokenCookie, string(t.AccessToken), maxAge))
	if t.IDToken != "" {
		http.SetCookie(w, s.cookie(IDTokenCookie, string(t.IDToken), maxAge))
	}
	http.SetCookie(w, s.cookie(ExpiresAtCookie, strconv.FormatInt(t.ExpiresAt.UnixMilli(), 10), maxAge))
	return nil
}

// ClearSession expires the session and sign-in attempt cookies.
func (s *Store) ClearSession(w http.ResponseWriter) {
	s.clear(w, AccessTokenCookie, IDTokenCookie, ExpiresAtCookie, StateCookie, VerifierCookie, NonceCookie, AttemptExpiresCookie)
}

// FromRequest reads the session carried by req's cookies. A missing access
// token or one past its expiry returns oidc.ErrSessionExpired.
func (s *Store) FromRequest(req *http.Request) (*Session, error) {
	const op = "session.(Store).FromRequest"
	at, err := req.Cookie(AccessTokenCookie)
	if err != nil || at.Value == "" {
		return nil, fmt.Errorf("%s: no %s cookie: %w", op, AccessTokenCookie, oidc.ErrSessionExpired)
	}
	sess := &Session{AccessToken: oidc.AccessToken(at.Value)}
	if c, err := req.Cookie(IDTokenCookie); err == nil {
		sess.IDToken = oidc.IDToken(c.Value)
	}
	if c, err := req.Cookie(ExpiresAtCookie); err == nil {
		ms, err := strconv.ParseInt(c.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: malformed %s cookie: %w", op, ExpiresAtCookie, oidc.ErrSessionExpired)
		}
		sess.ExpiresAt = time.UnixMilli(ms)
	}
	if sess.IsExpired(s.now()) {
		return nil, fmt.Errorf("%s: %w", op, oidc.ErrSessionExpired)
	}
	return sess, nil
}

// Require is middleware that only calls next when the request carries a live
// session, which next can get with FromContext. Otherwise onFail is called
// with an error wrapping oidc.ErrSessionExpired.
func (s *Store) Require(next http.Handler, onFail func(w http.ResponseWriter, req *http.Request, err error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		sess, err := s.FromRequest(req)
		if err != nil {
			if !errors.Is(err, oidc.ErrSessionExpired) {
				err = fmt.Errorf("%w: %w", oidc.ErrSessionExpired, err)
			}
			s.logger.Debug("request without a live session", "path", req.URL.Path, "error", err)
			onFail(w, req, err)
			return
		}
		next.ServeHTTP(w, req.WithContext(NewContext(req.Context(), sess)))
	})
}
