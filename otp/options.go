// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package otp

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
)

// MachineTokens supplies client credentials bearer tokens. It is satisfied
// by *tokencache.Cache.
type MachineTokens interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(*options)

type options struct {
	withHTTPClient     *http.Client
	withRequestTimeout time.Duration
	withLogger         hclog.Logger
	withMachineTokens  MachineTokens
}

func getDefaults() options {
	return options{
		withLogger: hclog.NewNullLogger(),
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

// WithHTTPClient sets the client used to reach the gateway. The default is a
// pooled client from sdk/http with its default timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.withHTTPClient = c
	}
}

// WithRequestTimeout bounds each gateway attempt. Zero means only the http
// client's own timeout applies.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.withRequestTimeout = d
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

// WithMachineTokens enables machine mode: calls made with an empty bearer
// use tokens from m, and a 401 from the gateway invalidates m and retries
// once with a fresh token.
func WithMachineTokens(m MachineTokens) Option {
	return func(o *options) {
		o.withMachineTokens = m
	}
}
