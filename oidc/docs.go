// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
oidc is a package for the Business Hub sign-in flow: the OAuth2 authorization
code flow with PKCE against an OIDC provider.

# Primary types provided by the package

* Request: represents one sign-in attempt for a user. It contains the state,
nonce and PKCE code verifier bound to that one-time flow, and its expiration.

* CodeVerifier: a PKCE code verifier and its S256 code challenge.

* Token: represents an Oauth2 access_token with its optional id_token and
refresh_token, and the absolute time the access_token expires.

* Config: provides the configuration for the provider (client id/secret,
redirect URL, the provider's endpoints or an issuer to discover them from,
scopes, supported signing algorithms, request timeout, etc).

* Provider: provides integration with the provider. It generates the
authorization URL, exchanges codes for tokens, verifies id_tokens and makes
user info requests.

* Kind: the coarse classification of errors returned by the package, used to
choose http status codes (see Classify).

The oidc/callback package

The callback package includes the ability to create a http.HandlerFunc which
can be used for the 3rd leg of the flow where the authorization code is
exchanged for tokens.

# Testing

TestProvider is an in-process provider for tests. It supports discovery, PKCE,
the authorization_code and client_credentials grants and userinfo.
*/
package oidc
