// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"fmt"

	sdkhttp "github.com/businesshub/hubauth/sdk/http"
)

var (
	ErrInvalidParameter           = errors.New("invalid parameter")
	ErrNilParameter               = errors.New("nil parameter")
	ErrInvalidConfig              = errors.New("invalid configuration")
	ErrInvalidCACert              = errors.New("invalid CA certificate")
	ErrIDGeneratorFailed          = errors.New("id generation failed")
	ErrUnsupportedChallengeMethod = errors.New("unsupported PKCE challenge method")
	ErrInvalidCodeVerifier        = errors.New("invalid PKCE code verifier")

	ErrExpiredRequest            = errors.New("request is expired")
	ErrNotFound                  = errors.New("not found")
	ErrMissingState              = errors.New("state is missing")
	ErrMissingCode               = errors.New("authorization code is missing")
	ErrMissingVerifier           = errors.New("PKCE code verifier is missing")
	ErrResponseStateInvalid      = errors.New("response state is invalid")
	ErrIDTokenVerificationFailed = errors.New("id_token verification failed")
	ErrInvalidNonce              = errors.New("invalid nonce")
	ErrInvalidAudience           = errors.New("invalid audience")

	ErrTokenExchange      = errors.New("token exchange failed")
	ErrMissingAccessToken = errors.New("access_token is missing")
	ErrUserInfoFailed     = errors.New("user info failed")
	ErrUnauthorizedToken  = errors.New("access token is expired or malformed")
	ErrForbiddenToken     = errors.New("access token lacks the openid scope or was not issued by the authorization code flow")

	ErrSessionExpired = errors.New("session is expired")
)

// Kind is the coarse classification of an error, used at the http boundary
// to pick a status code and a user-facing message.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindProtocol
	KindUpstream
	KindTransport
	KindTimeout
	KindSessionExpired
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindProtocol:
		return "protocol"
	case KindUpstream:
		return "upstream"
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindSessionExpired:
		return "session_expired"
	default:
		return "unknown"
	}
}

// Retryable reports whether the same request may succeed without new
// credentials.
func (k Kind) Retryable() bool {
	return k == KindTransport || k == KindTimeout
}

// Classify maps err onto a Kind. Timeouts are checked before transport
// failures since a timeout is also a transport failure.
func Classify(err error) Kind {
	var upstreamErr *UpstreamError
	var exchangeErr *TokenExchangeError
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, sdkhttp.ErrGatewayTimeout):
		return KindTimeout
	case errors.Is(err, sdkhttp.ErrTransport):
		return KindTransport
	case errors.Is(err, ErrSessionExpired):
		return KindSessionExpired
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrInvalidCACert):
		return KindConfiguration
	case errors.As(err, &exchangeErr), errors.As(err, &upstreamErr),
		errors.Is(err, ErrTokenExchange), errors.Is(err, ErrMissingAccessToken),
		errors.Is(err, ErrUserInfoFailed), errors.Is(err, ErrUnauthorizedToken),
		errors.Is(err, ErrForbiddenToken):
		return KindUpstream
	case errors.Is(err, ErrExpiredRequest), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrMissingState), errors.Is(err, ErrMissingCode),
		errors.Is(err, ErrMissingVerifier), errors.Is(err, ErrResponseStateInvalid),
		errors.Is(err, ErrIDTokenVerificationFailed), errors.Is(err, ErrInvalidNonce),
		errors.Is(err, ErrInvalidAudience), errors.Is(err, ErrInvalidCodeVerifier):
		return KindProtocol
	default:
		return KindUnknown
	}
}

// TokenExchangeError is returned by Provider.Exchange when the token endpoint
// answers with a non-2xx status or a 2xx without an access_token. Body is
// kept for server-side logging and is intentionally not part of Error().
type TokenExchangeError struct {
	StatusCode int
	// ErrorCode is the oauth2 "error" field, when the provider sent one.
	ErrorCode string
	Body      []byte
	Err       error
}

func (e *TokenExchangeError) Error() string {
	msg := fmt.Sprintf("token endpoint returned status %d", e.StatusCode)
	if e.ErrorCode != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.ErrorCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

func (e *TokenExchangeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UpstreamError is returned when a provider endpoint other than the token
// endpoint answers with an unexpected status. Like TokenExchangeError, Body
// is for server-side logging only.
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s returned status %d", e.Endpoint, e.StatusCode)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
