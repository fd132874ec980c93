// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package otp is a client for the downstream one-time-PIN gateway.

The gateway speaks either SOAP 1.1 (FormatXML) or JSON (FormatJSON). Both are
decoded into a GatewayResponse and normalized into a Result whose Message
comes from a fixed code vocabulary:

	0000  success
	1000  technical error
	1024  invalid OTP
	1025  expired OTP, a new one was generated
	1026  exceeded attempts

Calls are authenticated with a bearer token. Callers pass the customer's
access token, or an empty bearer to use the MachineTokens configured with
WithMachineTokens. In that mode a 401 invalidates the cached machine token and
the call is retried once.
*/
package otp
