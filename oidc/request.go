// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// Request basically represents one OIDC authentication flow for a user. It
// contains the data needed to uniquely represent that one-time flow across the
// multiple interactions needed to complete the OIDC flow the user is
// attempting.
//
// State() is passed throughout the OIDC interactions to uniquely identify the
// flow's request. The State() and Nonce() cannot be equal, and will be used
// during the OIDC flow to prevent CSRF and replay attacks (see OpenID Connect
// Core 1.0, section 3.1.2.1).
type Request interface {
	// State is a unique identifier and an opaque value used to maintain
	// request between the oidc request and the callback. State cannot equal
	// the Nonce.
	// See https://openid.net/specs/openid-connect-core-1_0.html#AuthRequest.
	State() string

	// Nonce is a unique nonce and a string value used to associate a Client
	// session with an ID Token, and to mitigate replay attacks. Nonce cannot
	// equal the ID.
	Nonce() string

	// IsExpired returns true if the request has expired.
	IsExpired() bool

	// PKCEVerifier returns the code verifier bound to this request. It is
	// nil only for requests rebuilt from incomplete storage.
	PKCEVerifier() CodeVerifier

	// LoginHint is an optional username hint forwarded to the provider.
	LoginHint() string

	// UILocales are optional end-user preferred languages for the
	// provider's login pages.
	UILocales() []language.Tag
}

// Req represents the oidc request used for oidc flows and implements the
// Request interface.
type Req struct {
	state string
	nonce string

	// expiration is the expiration time for the Request.
	expiration time.Time

	withVerifier  CodeVerifier
	withLoginHint string
	withUILocales []language.Tag

	// nowFunc is an optional function that returns the current time
	nowFunc func() time.Time
}

// ensure that Request implements the Request interface.
var _ Request = (*Req)(nil)

// NewRequest creates a new Request (*Req).
//
// The expireIn is required and is the duration the request is valid for. A
// fresh state, nonce and PKCE verifier are generated unless supplied with the
// WithState, WithNonce or WithPKCE options (used when rebuilding a request
// from cookie storage).
//
// Supported Options: WithState, WithNonce, WithPKCE, WithExpiration,
// WithLoginHint, WithUILocales, WithNow
func NewRequest(expireIn time.Duration, opt ...Option) (*Req, error) {
	const op = "oidc.NewRequest"
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	opts := getReqOpts(opt...)

	state := opts.withState
	if state == "" {
		var err error
		state, err = NewID(WithPrefix("st"))
		if err != nil {
			return nil, fmt.Errorf("%s: unable to generate a request's state: %w", op, err)
		}
	}
	nonce := opts.withNonce
	if nonce == "" {
		var err error
		nonce, err = NewID(WithPrefix("n"))
		if err != nil {
			return nil, fmt.Errorf("%s: unable to generate a request's nonce: %w", op, err)
		}
	}
	if state == nonce {
		return nil, fmt.Errorf("%s: state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}

	verifier := opts.withVerifier
	if verifier == nil && !opts.withoutPKCE {
		v, err := NewCodeVerifier()
		if err != nil {
			return nil, fmt.Errorf("%s: unable to generate a request's code verifier: %w", op, err)
		}
		verifier = v
	}

	r := &Req{
		state:         state,
		nonce:         nonce,
		withVerifier:  verifier,
		withLoginHint: opts.withLoginHint,
		withUILocales: opts.withUILocales,
		nowFunc:       opts.withNowFunc,
	}
	r.expiration = r.now().Add(expireIn)
	if !opts.withExpiration.IsZero() {
		r.expiration = opts.withExpiration
	}
	return r, nil
}

func (r *Req) State() string             { return r.state }         // State implements the Request.State() interface function.
func (r *Req) Nonce() string             { return r.nonce }         // Nonce implements the Request.Nonce() interface function.
func (r *Req) LoginHint() string         { return r.withLoginHint } // LoginHint implements the Request.LoginHint() interface function.
func (r *Req) UILocales() []language.Tag { return r.withUILocales } // UILocales implements the Request.UILocales() interface function.

// PKCEVerifier implements the Request.PKCEVerifier() interface function and
// returns a copy of the CodeVerifier
func (r *Req) PKCEVerifier() CodeVerifier {
	if r.withVerifier == nil {
		return nil
	}
	return r.withVerifier.Copy()
}

// IsExpired returns true if the request has expired.
func (r *Req) IsExpired() bool {
	return !r.expiration.After(r.now())
}

// ExpiresAt is when the request expires.
func (r *Req) ExpiresAt() time.Time { return r.expiration }

// now returns the current time using the optional timeFn
func (r *Req) now() time.Time {
	if r.nowFunc != nil {
		return r.nowFunc()
	}
	return time.Now() // fallback to this default
}

// reqOptions is the set of available options for Req functions
type reqOptions struct {
	withNowFunc    func() time.Time
	withState      string
	withNonce      string
	withVerifier   CodeVerifier
	withoutPKCE    bool
	withExpiration time.Time
	withLoginHint  string
	withUILocales  []language.Tag
}

// reqDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func reqDefaults() reqOptions {
	return reqOptions{
		withNowFunc: time.Now,
	}
}

// getReqOpts gets the request defaults and applies the opt overrides passed in
func getReqOpts(opt ...Option) reqOptions {
	opts := reqDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithState optionally specifies the request's state instead of generating
// one.
//
// Valid for: Request
func WithState(s string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withState = s
		}
	}
}

// WithNonce optionally specifies the request's nonce instead of generating
// one.
//
// Valid for: Request
func WithNonce(n string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withNonce = n
		}
	}
}

// WithPKCE provides an optional PKCE code verifier. A nil verifier produces a
// request without one, which Provider.Exchange will refuse.
//
// Valid for: Request
//
// See: https://tools.ietf.org/html/rfc7636
func WithPKCE(v CodeVerifier) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withVerifier = v
			o.withoutPKCE = v == nil
		}
	}
}

// WithExpiration sets the request's absolute expiry, overriding expireIn.
// It is used when rebuilding a stored request, which must keep the expiry
// it was created with.
//
// Valid for: Request
func WithExpiration(t time.Time) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withExpiration = t
		}
	}
}

// WithLoginHint provides an optional login_hint for the authorization
// request.
//
// Valid for: Request
func WithLoginHint(hint string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withLoginHint = hint
		}
	}
}

// WithUILocales optionally specifies End-User's preferred languages via
// language Tags, ordered by preference.
//
// Valid for: Request
func WithUILocales(locales ...language.Tag) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withUILocales = locales
		}
	}
}
