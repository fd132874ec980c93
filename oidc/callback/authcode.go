// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/businesshub/hubauth/oidc"
)

// Exchanger exchanges an authorization code for tokens. *oidc.Provider
// satisfies it.
type Exchanger interface {
	Exchange(ctx context.Context, oidcRequest oidc.Request, authorizationState string, authorizationCode string) (*oidc.Token, error)
}

// ensure that *oidc.Provider implements the Exchanger interface.
var _ Exchanger = (*oidc.Provider)(nil)

// AuthCode creates an oidc authorization code callback handler which uses a
// RequestReader to read the oidc.Request stored when the flow started, using
// the response's "state" parameter.
//
// The handler moves each response through these checks, in order, and calls
// eFn at the first one that fails:
//   - the provider returned an error (eFn receives an AuthenErrorResponse)
//   - the code or state parameter is missing
//   - the stored request can't be read (there is no fallback)
//   - the stored request is expired
//   - the stored state doesn't match the returned state
//   - the stored request has no PKCE verifier
//   - the code exchange fails
//
// Only then is sFn called with the tokens. The exchange is never attempted
// unless every check before it passed.
func AuthCode(p Exchanger, rr RequestReader, sFn SuccessResponseFunc, eFn ErrorResponseFunc) (http.HandlerFunc, error) {
	const op = "callback.AuthCode"
	switch {
	case p == nil:
		return nil, fmt.Errorf("%s: exchanger is nil: %w", op, oidc.ErrNilParameter)
	case rr == nil:
		return nil, fmt.Errorf("%s: request reader is nil: %w", op, oidc.ErrNilParameter)
	case sFn == nil:
		return nil, fmt.Errorf("%s: success response func is nil: %w", op, oidc.ErrNilParameter)
	case eFn == nil:
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrNilParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		// get parameters from either the body or query parameters.
		// FormValue prioritizes body values, if found.
		reqState := req.FormValue("state")

		if err := req.FormValue("error"); err != "" {
			reqError := &AuthenErrorResponse{
				Error:       err,
				Description: req.FormValue("error_description"),
				URI:         req.FormValue("error_uri"),
			}
			eFn(reqState, reqError, nil, w, req)
			return
		}

		reqCode := req.FormValue("code")
		switch {
		case reqCode == "":
			eFn(reqState, nil, fmt.Errorf("%s: %w", op, oidc.ErrMissingCode), w, req)
			return
		case reqState == "":
			eFn(reqState, nil, fmt.Errorf("%s: %w", op, oidc.ErrMissingState), w, req)
			return
		}

		oidcRequest, err := rr.Read(req.Context(), req, reqState)
		if err != nil {
			eFn(reqState, nil, fmt.Errorf("%s: unable to read auth code request: %w", op, err), w, req)
			return
		}
		if oidcRequest == nil {
			// could have expired or it could be invalid... no way to known for sure
			eFn(reqState, nil, fmt.Errorf("%s: auth code request not found: %w", op, oidc.ErrNotFound), w, req)
			return
		}
		if oidcRequest.IsExpired() {
			eFn(reqState, nil, fmt.Errorf("%s: authentication request is expired: %w", op, oidc.ErrExpiredRequest), w, req)
			return
		}
		if subtle.ConstantTimeCompare([]byte(reqState), []byte(oidcRequest.State())) != 1 {
			eFn(reqState, nil, fmt.Errorf("%s: authen state and response state are not equal: %w", op, oidc.ErrResponseStateInvalid), w, req)
			return
		}
		if v := oidcRequest.PKCEVerifier(); v == nil || v.Verifier() == "" {
			eFn(reqState, nil, fmt.Errorf("%s: %w", op, oidc.ErrMissingVerifier), w, req)
			return
		}

		responseToken, err := p.Exchange(req.Context(), oidcRequest, reqState, reqCode)
		if err != nil {
			eFn(reqState, nil, fmt.Errorf("%s: unable to exchange authorization code: %w", op, err), w, req)
			return
		}
		sFn(reqState, responseToken, w, req)
	}, nil
}
