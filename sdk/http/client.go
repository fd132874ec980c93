// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

var (
	ErrInvalidCertificatePem = errors.New("invalid certificate PEM")

	// ErrTransport is returned when an outbound request never produced an
	// HTTP response (dns, connect, tls, reset).
	ErrTransport = errors.New("transport failure")

	// ErrGatewayTimeout is returned when an outbound request exceeded its
	// deadline. Callers should treat it as retryable.
	ErrGatewayTimeout = errors.New("gateway timeout")
)

// DefaultTimeout bounds every outbound request made with a client from
// NewClient, unless overridden with WithTimeout.
const DefaultTimeout = 12 * time.Second

// Option configures NewClient.
type Option func(*clientOptions)

type clientOptions struct {
	withTimeout time.Duration
}

func clientDefaults() clientOptions {
	return clientOptions{
		withTimeout: DefaultTimeout,
	}
}

// WithTimeout overrides DefaultTimeout. A zero or negative duration is
// ignored.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.withTimeout = d
		}
	}
}

// NewClient creates a new http client which will use the optional CA certificate PEM
// if provided, otherwise it will use the installed system CA chain.
func NewClient(caPEM string, opt ...Option) (*http.Client, error) {
	opts := clientDefaults()
	for _, o := range opt {
		o(&opts)
	}
	tr := cleanhttp.DefaultPooledTransport()

	if caPEM != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(caPEM)); !ok {
			return nil, ErrInvalidCertificatePem
		}

		tr.TLSClientConfig = &tls.Config{
			RootCAs:    certPool,
			MinVersion: tls.VersionTLS12,
		}
	}

	return &http.Client{
		Transport: tr,
		Timeout:   opts.withTimeout,
	}, nil
}

// TransportError classifies an error returned by http.Client.Do (or by a
// library that wraps it). Deadlines become ErrGatewayTimeout, everything else
// ErrTransport. The original error stays in the chain.
func TransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTimeout(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrGatewayTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}

// IsTimeout reports whether err is a context deadline or a net.Error timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
