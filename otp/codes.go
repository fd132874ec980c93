// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package otp

import "fmt"

// Gateway response codes.
const (
	CodeSuccess          = "0000"
	CodeTechnicalError   = "1000"
	CodeInvalid          = "1024"
	CodeExpired          = "1025"
	CodeExceededAttempts = "1026"
)

var messages = map[string]string{
	CodeSuccess:          "The request was processed successfully.",
	CodeTechnicalError:   "A technical error occurred. Please try again later.",
	CodeInvalid:          "The OTP entered is invalid. Please try again.",
	CodeExpired:          "The OTP has expired. A new OTP has been sent to you.",
	CodeExceededAttempts: "You have exceeded the maximum number of OTP attempts. Please contact the bank.",
}

// Message returns the user facing message for a gateway response code.
// Unknown codes get a generic message that carries the code for support.
func Message(code string) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return fmt.Sprintf("An unexpected error occurred (code %s). Please contact support.", code)
}

// Status of an OTP transaction after a gateway response.
type Status string

const (
	StatusSent      Status = "sent"
	StatusValidated Status = "validated"
	StatusInvalid   Status = "invalid"
	StatusExpired   Status = "expired"
	StatusLocked    Status = "locked"
	StatusFailed    Status = "failed"
)

func statusFor(op Operation, code string) Status {
	switch code {
	case CodeSuccess:
		if op == OperationValidate {
			return StatusValidated
		}
		return StatusSent
	case CodeInvalid:
		return StatusInvalid
	case CodeExpired:
		return StatusExpired
	case CodeExceededAttempts:
		return StatusLocked
	default:
		return StatusFailed
	}
}
