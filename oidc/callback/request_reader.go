// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"net/http"

	"github.com/businesshub/hubauth/oidc"
)

// RequestReader defines an interface for finding and reading an oidc.Request
//
// Implementations must be concurrently safe, since the reader will likely be
// used within a concurrent http.Handler
type RequestReader interface {
	// Read an existing Request entry for the callback req. The returned
	// request's State() should match the state used to look it up, and a
	// missing entry is an error. Implementations must be concurrently safe,
	// which likely means returning a deep copy.
	Read(ctx context.Context, req *http.Request, state string) (oidc.Request, error)
}

// SingleRequestReader implements the RequestReader interface for a single request.
// It is concurrently safe.
type SingleRequestReader struct {
	Request oidc.Request
}

// Read() will return it's single-request if the state matches it's Request.State(),
// otherwise it returns an error of oidc.ErrNotFound. It satisfies the
// RequestReader interface.  Read() is concurrently safe.
func (sr *SingleRequestReader) Read(_ context.Context, _ *http.Request, state string) (oidc.Request, error) {
	if sr.Request == nil || sr.Request.State() != state {
		return nil, oidc.ErrNotFound
	}
	return sr.Request, nil
}

// RequestReaderFunc is an adapter to allow the use of ordinary functions as
// RequestReaders.
type RequestReaderFunc func(ctx context.Context, req *http.Request, state string) (oidc.Request, error)

// Read calls f(ctx, req, state).
func (f RequestReaderFunc) Read(ctx context.Context, req *http.Request, state string) (oidc.Request, error) {
	return f(ctx, req, state)
}
