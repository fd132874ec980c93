// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"time"
)

// DefaultTokenExpirySkew defines a time skew when checking a Token's
// expiration.
const DefaultTokenExpirySkew = 10 * time.Second

// DefaultTokenLifetime is used when the provider omits expires_in.
const DefaultTokenLifetime = 15 * time.Minute

// Token is the result of a successful authorization code exchange: an oauth
// access_token, an optional oidc id_token and the access_token's expiry.
type Token struct {
	AccessToken  AccessToken
	IDToken      IDToken
	RefreshToken RefreshToken
	TokenType    string
	Scope        string

	// ExpiresIn is the access_token lifetime in seconds as reported by the
	// provider (or DefaultTokenLifetime when it didn't).
	ExpiresIn int64

	// ExpiresAt is the time of the exchange plus ExpiresIn.
	ExpiresAt time.Time
}

// IsExpired will return true if the token's access token is expired.
// Supports the WithExpirySkew and WithNow options; the skew defaults to
// DefaultTokenExpirySkew.
func (t *Token) IsExpired(opt ...Option) bool {
	if t == nil || t.ExpiresAt.IsZero() {
		return false
	}
	opts := getTokenOpts(opt...)
	return t.ExpiresAt.Round(0).Before(opts.withNowFunc().Add(opts.withExpirySkew))
}

// Valid will ensure that the access_token is not empty or expired.
func (t *Token) Valid(opt ...Option) bool {
	if t == nil {
		return false
	}
	if t.AccessToken == "" {
		return false
	}
	return !t.IsExpired(opt...)
}

// tokenOptions is the set of available options for Token functions
type tokenOptions struct {
	withExpirySkew time.Duration
	withNowFunc    func() time.Time
}

// tokenDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func tokenDefaults() tokenOptions {
	return tokenOptions{
		withExpirySkew: DefaultTokenExpirySkew,
		withNowFunc:    time.Now,
	}
}

// getTokenOpts gets the token defaults and applies the opt overrides passed
// in
func getTokenOpts(opt ...Option) tokenOptions {
	opts := tokenDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithExpirySkew provides an optional expiry skew duration for: Token
func WithExpirySkew(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*tokenOptions); ok {
			v.withExpirySkew = d
		}
	}
}
