// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(*options)

type options struct {
	withSecure  bool
	withPKCETTL time.Duration
	withNowFunc func() time.Time
	withLogger  hclog.Logger
}

func getDefaults() options {
	return options{
		withSecure:  true,
		withPKCETTL: DefaultPKCETTL,
		withNowFunc: time.Now,
		withLogger:  hclog.NewNullLogger(),
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

// WithSecure sets the Secure attribute of every cookie. It defaults to true
// and should only be disabled outside of production.
func WithSecure(secure bool) Option {
	return func(o *options) {
		o.withSecure = secure
	}
}

// WithPKCETTL overrides DefaultPKCETTL.
func WithPKCETTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.withPKCETTL = d
		}
	}
}

// WithNow provides an optional func for determining what the current time it
// is.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.withNowFunc = now
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.withLogger = l
		}
	}
}
