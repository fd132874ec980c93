// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package otp

import (
	"fmt"
	"strings"
)

// Format is the wire format spoken by the OTP gateway.
type Format string

const (
	// FormatXML is a SOAP 1.1 envelope posted to the gateway URL.
	FormatXML Format = "xml"

	// FormatJSON is a JSON document posted to <gateway URL>/send or
	// <gateway URL>/validate.
	FormatJSON Format = "json"
)

// ParseFormat parses a case insensitive format name.
func ParseFormat(s string) (Format, error) {
	const op = "otp.ParseFormat"
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatXML, "soap":
		return FormatXML, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%s: unsupported format %q: %w", op, s, ErrInvalidParameter)
	}
}

// Operation identifies the gateway call.
type Operation string

const (
	OperationSend     Operation = "SendOTP"
	OperationValidate Operation = "ValidateOTP"
)

// SendRequest asks the gateway to generate an OTP and deliver it to the
// customer's cell phone.
type SendRequest struct {
	CellNumber      string `json:"cellNumber"`
	IDNumber        string `json:"idNumber"`
	ReferenceNumber string `json:"referenceNumber"`
}

func (r SendRequest) validate() error {
	switch {
	case r.CellNumber == "":
		return fmt.Errorf("missing cell number: %w", ErrInvalidParameter)
	case r.IDNumber == "":
		return fmt.Errorf("missing id number: %w", ErrInvalidParameter)
	case r.ReferenceNumber == "":
		return fmt.Errorf("missing reference number: %w", ErrInvalidParameter)
	}
	return nil
}

// ValidateRequest asks the gateway to check an OTP entered by the customer.
type ValidateRequest struct {
	OTPValue        string `json:"otpValue"`
	ReferenceNumber string `json:"referenceNumber"`
	IDNumber        string `json:"idNumber"`
}

func (r ValidateRequest) validate() error {
	switch {
	case r.OTPValue == "":
		return fmt.Errorf("missing otp value: %w", ErrInvalidParameter)
	case r.ReferenceNumber == "":
		return fmt.Errorf("missing reference number: %w", ErrInvalidParameter)
	case r.IDNumber == "":
		return fmt.Errorf("missing id number: %w", ErrInvalidParameter)
	}
	return nil
}

// field is one ordered request element, shared by both encoders so the XML
// element order is stable.
type field struct {
	name  string
	value string
}

func (r SendRequest) fields() []field {
	return []field{
		{"CellNumber", r.CellNumber},
		{"IDNumber", r.IDNumber},
		{"ReferenceNumber", r.ReferenceNumber},
	}
}

func (r ValidateRequest) fields() []field {
	return []field{
		{"OTPValue", r.OTPValue},
		{"ReferenceNumber", r.ReferenceNumber},
		{"IDNumber", r.IDNumber},
	}
}
