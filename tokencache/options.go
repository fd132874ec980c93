// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package tokencache

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(*options)

type options struct {
	withSafetyBuffer time.Duration
	withNowFunc      func() time.Time
	withLogger       hclog.Logger
	withScopes       []string
	withAssertion    *Assertion
	withHTTPClient   *http.Client
}

func getDefaults() options {
	return options{
		withSafetyBuffer: DefaultSafetyBuffer,
		withNowFunc:      time.Now,
		withLogger:       hclog.NewNullLogger(),
	}
}

func getOpts(opt ...Option) options {
	opts := getDefaults()
	for _, o := range opt {
		if o != nil {
			o(&opts)
		}
	}
	return opts
}

// WithSafetyBuffer overrides DefaultSafetyBuffer. Negative values are
// ignored.
//
// Valid for: Cache
func WithSafetyBuffer(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.withSafetyBuffer = d
		}
	}
}

// WithNow provides an optional func for determining what the current time it
// is.
//
// Valid for: Cache and ClientCredentials
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.withNowFunc = now
		}
	}
}

// WithLogger provides an optional logger.
//
// Valid for: Cache
func WithLogger(l hclog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.withLogger = l
		}
	}
}

// WithScopes requests scopes with the client credentials grant.
//
// Valid for: ClientCredentials
func WithScopes(scopes ...string) Option {
	return func(o *options) {
		o.withScopes = scopes
	}
}

// WithAssertion authenticates the client with a signed client_assertion
// instead of its secret.
//
// Valid for: ClientCredentials
func WithAssertion(a *Assertion) Option {
	return func(o *options) {
		o.withAssertion = a
	}
}

// WithHTTPClient sets the client used to reach the token endpoint.
//
// Valid for: ClientCredentials
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.withHTTPClient = c
	}
}
