// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package otp

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidConfig    = errors.New("invalid configuration")

	// ErrUnauthorized is returned when the gateway rejects the bearer token.
	ErrUnauthorized = errors.New("otp gateway rejected the bearer token")

	// ErrMalformedResponse is returned when a 2xx response can't be decoded.
	ErrMalformedResponse = errors.New("malformed otp gateway response")

	// ErrGateway is wrapped by every GatewayError.
	ErrGateway = errors.New("otp gateway failed")

	// ErrRejected is wrapped by every ResponseCodeError.
	ErrRejected = errors.New("otp gateway returned a failure code")
)

// GatewayError is returned when the gateway answers with a non-2xx status
// other than 401, or with a SOAP fault. Body is kept for server-side logging
// and is intentionally not part of Error().
type GatewayError struct {
	StatusCode int
	// Fault is the SOAP faultstring, when there was one.
	Fault string
	Body  []byte
}

func (e *GatewayError) Error() string {
	if e.Fault != "" {
		return fmt.Sprintf("otp gateway returned status %d: soap fault", e.StatusCode)
	}
	return fmt.Sprintf("otp gateway returned status %d", e.StatusCode)
}

func (e *GatewayError) Unwrap() error { return ErrGateway }

// ResponseCodeError is returned alongside the Result when the gateway
// processed the request but answered with a code other than CodeSuccess.
type ResponseCodeError struct {
	Code    string
	Message string
}

func (e *ResponseCodeError) Error() string {
	return fmt.Sprintf("otp gateway response code %s: %s", e.Code, e.Message)
}

func (e *ResponseCodeError) Unwrap() error { return ErrRejected }

// UserError reports whether the code is caused by the user's input (a bad,
// expired or exhausted OTP) rather than the gateway.
func (e *ResponseCodeError) UserError() bool {
	switch e.Code {
	case CodeInvalid, CodeExpired, CodeExceededAttempts:
		return true
	default:
		return false
	}
}
