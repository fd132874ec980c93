// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// hubauth is the Business Hub authentication gateway: it signs customers in
// with the OAuth2 authorization code flow and PKCE, keeps the resulting
// session in HTTP-only cookies and proxies OTP send and verify calls to the
// OTP gateway.
//
// The packages are:
//
//   - oidc: provider configuration, PKCE, authorization urls, the token
//     exchange and UserInfo.
//   - oidc/callback: the authorization code callback state machine.
//   - session: the cookie store for sign-in attempts and sessions.
//   - tokencache: machine tokens from the client credentials grant.
//   - otp: the OTP gateway client for its SOAP and JSON dialects.
//   - server: the http routes the web client calls.
//   - config: environment configuration.
//
// cmd/hubauth runs the gateway.
package hubauth
