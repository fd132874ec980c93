// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(*options)

type options struct {
	withLogger        hclog.Logger
	withOTP           OTPGateway
	withSigninPath    string
	withPostLoginPath string
	withNowFunc       func() time.Time
}

func getDefaults() options {
	return options{
		withLogger:        hclog.NewNullLogger(),
		withSigninPath:    DefaultSigninPath,
		withPostLoginPath: DefaultPostLoginPath,
		withNowFunc:       time.Now,
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

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.withLogger = l
		}
	}
}

// WithOTPGateway enables the /auth/otp routes.
func WithOTPGateway(g OTPGateway) Option {
	return func(o *options) {
		o.withOTP = g
	}
}

// WithSigninPath overrides DefaultSigninPath.
func WithSigninPath(p string) Option {
	return func(o *options) {
		if p != "" {
			o.withSigninPath = p
		}
	}
}

// WithPostLoginPath overrides DefaultPostLoginPath.
func WithPostLoginPath(p string) Option {
	return func(o *options) {
		if p != "" {
			o.withPostLoginPath = p
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
