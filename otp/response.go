// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package otp

import (
	"fmt"
)

// GatewayResponse is either an *XMLResponse or a *JSONResponse.
type GatewayResponse interface {
	isGatewayResponse()
}

var (
	_ GatewayResponse = (*XMLResponse)(nil)
	_ GatewayResponse = (*JSONResponse)(nil)
)

// Result is the format independent outcome of an OTP operation.
type Result struct {
	ReferenceNumber   string `json:"referenceNumber"`
	MaskedDestination string `json:"maskedDestination,omitempty"`
	ResponseCode      string `json:"responseCode"`
	Status            Status `json:"status"`
	Message           string `json:"message"`
}

// Succeeded reports whether the gateway answered with CodeSuccess.
func (r *Result) Succeeded() bool {
	return r != nil && r.ResponseCode == CodeSuccess
}

// Normalize converts a raw gateway response into a Result. The message is
// always taken from the code vocabulary, never from the gateway, so upstream
// text is not shown to customers.
func Normalize(op Operation, resp GatewayResponse) (*Result, error) {
	const fn = "otp.Normalize"
	var ref, masked, code string
	switch r := resp.(type) {
	case *XMLResponse:
		if r == nil {
			return nil, fmt.Errorf("%s: nil xml response: %w", fn, ErrInvalidParameter)
		}
		ref, masked, code = r.ReferenceNumber, r.MaskedCellNumber, r.ResponseCode
	case *JSONResponse:
		if r == nil {
			return nil, fmt.Errorf("%s: nil json response: %w", fn, ErrInvalidParameter)
		}
		ref, masked, code = r.ReferenceNumber, r.MaskedCellNumber, string(r.ResponseCode)
	default:
		return nil, fmt.Errorf("%s: unsupported response type %T: %w", fn, resp, ErrInvalidParameter)
	}
	return &Result{
		ReferenceNumber:   ref,
		MaskedDestination: masked,
		ResponseCode:      code,
		Status:            statusFor(op, code),
		Message:           Message(code),
	}, nil
}
