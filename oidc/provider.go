// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	sdkhttp "github.com/businesshub/hubauth/sdk/http"
	"github.com/businesshub/hubauth/sdk/strutils"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
)

// maxResponseBody caps how much of an upstream error body is retained for
// logging.
const maxResponseBody = 64 * 1024

// Provider provides integration with an OIDC provider.
//
// It's primary capabilities include:
//   - Producing an authorization URL for a Request (AuthURL)
//   - Exchanging an authorization code for tokens (Exchange)
//   - Verifying an id_token when the provider's keys were discovered
//     (VerifyIDToken)
//   - Retrieving a user's claims from the userinfo endpoint (UserInfo)
type Provider struct {
	config      *Config
	client      *http.Client
	endpoint    oauth2.Endpoint
	userInfoURL string
	verifier    *oidc.IDTokenVerifier
	logger      hclog.Logger

	// backgroundCtx is used for the discovered key set, which may refresh
	// keys after NewProvider returns.
	mu                  sync.Mutex
	backgroundCtx       context.Context
	backgroundCtxCancel context.CancelFunc
}

// NewProvider creates and initializes a Provider. When the config has an
// Issuer, the provider's endpoints and keys are discovered (explicit endpoint
// URLs still win). Otherwise the explicit endpoints are used and id_tokens are
// not verified.
//
// The returned provider should have its Done() function called to free
// resources.
//
// Supported options: WithLogger
func NewProvider(c *Config, opt ...Option) (*Provider, error) {
	const op = "NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}
	opts := getProviderOpts(opt...)

	client, err := c.HTTPClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	ctx = HTTPClientContext(ctx, client)

	p := &Provider{
		config:              c,
		client:              client,
		logger:              opts.withLogger,
		backgroundCtx:       ctx,
		backgroundCtxCancel: cancel,
		endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		userInfoURL: c.UserInfoURL,
	}

	if c.Issuer != "" {
		discoveryCtx, discoveryCancel := context.WithTimeout(ctx, c.timeout())
		defer discoveryCancel()
		// the discovered key set keeps the background ctx for later refreshes
		discovered, err := oidc.NewProvider(oidc.ClientContext(discoveryCtx, client), c.Issuer)
		if err != nil {
			cancel()
			if sdkhttp.IsTimeout(err) {
				return nil, sdkhttp.TransportError(op, err)
			}
			return nil, fmt.Errorf("%s: unable to discover provider %q: %w", op, c.Issuer, err)
		}
		if p.endpoint.AuthURL == "" {
			p.endpoint.AuthURL = discovered.Endpoint().AuthURL
		}
		if p.endpoint.TokenURL == "" {
			p.endpoint.TokenURL = discovered.Endpoint().TokenURL
		}
		if p.userInfoURL == "" {
			p.userInfoURL = discovered.UserInfoEndpoint()
		}
		algs := make([]string, 0, len(c.SupportedSigningAlgs))
		for _, a := range c.SupportedSigningAlgs {
			algs = append(algs, string(a))
		}
		keySet := oidc.NewRemoteKeySet(ctx, discoveredJWKSURL(discovered))
		p.verifier = oidc.NewVerifier(c.Issuer, keySet, &oidc.Config{
			// audiences are checked by VerifyIDToken
			SkipClientIDCheck:    true,
			SupportedSigningAlgs: algs,
			Now:                  c.Now,
		})
	}

	switch {
	case p.endpoint.AuthURL == "":
		cancel()
		return nil, fmt.Errorf("%s: provider has no authorization endpoint: %w", op, ErrInvalidConfig)
	case p.endpoint.TokenURL == "":
		cancel()
		return nil, fmt.Errorf("%s: provider has no token endpoint: %w", op, ErrInvalidConfig)
	case p.userInfoURL == "":
		cancel()
		return nil, fmt.Errorf("%s: provider has no userinfo endpoint: %w", op, ErrInvalidConfig)
	}
	p.logger.Debug("provider initialized", "auth_url", p.endpoint.AuthURL, "token_url", p.endpoint.TokenURL, "userinfo_url", p.userInfoURL, "verifies_id_tokens", p.verifier != nil)
	return p, nil
}

// discoveredJWKSURL pulls jwks_uri from the discovery document.
func discoveredJWKSURL(p *oidc.Provider) string {
	var claims struct {
		JWKSURL string `json:"jwks_uri"`
	}
	_ = p.Claims(&claims)
	return claims.JWKSURL
}

// Done with the provider's background resources and must be called for every
// Provider created
func (p *Provider) Done() {
	// checking for nil here prevents a panic when developers neglect to check
	// the for an error before deferring a call to p.Done():
	// p, err := NewProvider(...)
	// defer p.Done()
	// if err != nil { ... }
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backgroundCtxCancel != nil {
		p.backgroundCtxCancel()
		p.backgroundCtxCancel = nil
	}
}

// Config returns the provider's config.
func (p *Provider) Config() *Config {
	return p.config
}

// HTTPClient returns the provider's outbound http client.
func (p *Provider) HTTPClient() *http.Client {
	return p.client
}

// TokenURL returns the token endpoint in use, explicit or discovered.
func (p *Provider) TokenURL() string {
	return p.endpoint.TokenURL
}

// VerifiesIDTokens reports whether the provider's signing keys were
// discovered.
func (p *Provider) VerifiesIDTokens() bool {
	return p.verifier != nil
}

func (p *Provider) oauth2Config() *oauth2.Config {
	scopes := strutils.RemoveDuplicatesStable(append([]string{oidc.ScopeOpenID}, p.config.Scopes...), false)
	return &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: string(p.config.ClientSecret),
		Endpoint:     p.endpoint,
		RedirectURL:  p.config.RedirectURL,
		Scopes:       scopes,
	}
}

// AuthURL will generate a URL the caller can use to kick off an OIDC
// authorization code flow with PKCE. The request's state, nonce and code
// challenge are embedded, along with its optional login_hint and ui_locales.
func (p *Provider) AuthURL(ctx context.Context, oidcRequest Request) (string, error) {
	const op = "Provider.AuthURL"
	if oidcRequest == nil {
		return "", fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if oidcRequest.State() == "" {
		return "", fmt.Errorf("%s: request state is empty: %w", op, ErrInvalidParameter)
	}
	if oidcRequest.Nonce() == "" {
		return "", fmt.Errorf("%s: request nonce is empty: %w", op, ErrInvalidParameter)
	}
	if oidcRequest.State() == oidcRequest.Nonce() {
		return "", fmt.Errorf("%s: request state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}
	v := oidcRequest.PKCEVerifier()
	if v == nil {
		return "", fmt.Errorf("%s: request has no PKCE verifier: %w", op, ErrMissingVerifier)
	}
	if v.Method() != S256 {
		return "", fmt.Errorf("%s: %s: %w", op, v.Method(), ErrUnsupportedChallengeMethod)
	}

	authCodeOpts := []oauth2.AuthCodeOption{
		oidc.Nonce(oidcRequest.Nonce()),
		oauth2.SetAuthURLParam("code_challenge", v.Challenge()),
		oauth2.SetAuthURLParam("code_challenge_method", string(v.Method())),
	}
	if hint := oidcRequest.LoginHint(); hint != "" {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("login_hint", hint))
	}
	if locales := oidcRequest.UILocales(); len(locales) > 0 {
		tags := make([]string, 0, len(locales))
		for _, l := range locales {
			tags = append(tags, l.String())
		}
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("ui_locales", strings.Join(tags, " ")))
	}
	return p.oauth2Config().AuthCodeURL(oidcRequest.State(), authCodeOpts...), nil
}

// Exchange will request a token from the oidc token endpoint, using the
// authorizationCode and authorizationState it received in an earlier
// successful oidc authentication response.
//
// The oidcRequest is checked before any request is sent: its state must
// match authorizationState, it must not be expired and it must carry the PKCE
// verifier. The code_verifier, client_id and client_secret are posted in the
// form body.
//
// A non-2xx token response is returned as a *TokenExchangeError wrapping
// ErrTokenExchange, and a 2xx response without an access_token as a
// *TokenExchangeError wrapping ErrMissingAccessToken.
func (p *Provider) Exchange(ctx context.Context, oidcRequest Request, authorizationState string, authorizationCode string) (*Token, error) {
	const op = "Provider.Exchange"
	switch {
	case oidcRequest == nil:
		return nil, fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	case authorizationState == "":
		return nil, fmt.Errorf("%s: authorization state is empty: %w", op, ErrMissingState)
	case authorizationCode == "":
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrMissingCode)
	}
	if subtle.ConstantTimeCompare([]byte(oidcRequest.State()), []byte(authorizationState)) != 1 {
		return nil, fmt.Errorf("%s: authentication request state and authorization state are not equal: %w", op, ErrResponseStateInvalid)
	}
	if oidcRequest.IsExpired() {
		return nil, fmt.Errorf("%s: authentication request is expired: %w", op, ErrExpiredRequest)
	}
	v := oidcRequest.PKCEVerifier()
	if v == nil || v.Verifier() == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingVerifier)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.timeout())
	defer cancel()
	ctx = HTTPClientContext(ctx, p.client)

	oauth2Token, err := p.oauth2Config().Exchange(ctx, authorizationCode, oauth2.VerifierOption(v.Verifier()))
	if err != nil {
		return nil, p.exchangeError(op, err)
	}

	now := p.config.Now()
	expiresIn := tokenExpiresIn(oauth2Token, now)
	t := &Token{
		AccessToken:  AccessToken(oauth2Token.AccessToken),
		RefreshToken: RefreshToken(oauth2Token.RefreshToken),
		TokenType:    oauth2Token.TokenType,
		ExpiresIn:    expiresIn,
		ExpiresAt:    now.Add(time.Duration(expiresIn) * time.Second),
	}
	if scope, ok := oauth2Token.Extra("scope").(string); ok {
		t.Scope = scope
	}
	if idToken, ok := oauth2Token.Extra("id_token").(string); ok && idToken != "" {
		t.IDToken = IDToken(idToken)
		if p.verifier != nil {
			if _, err := p.VerifyIDToken(ctx, t.IDToken, oidcRequest.Nonce()); err != nil {
				return nil, fmt.Errorf("%s: id_token failed verification: %w", op, err)
			}
		}
	}
	p.logger.Debug("token exchanged", "token_type", t.TokenType, "expires_in", t.ExpiresIn, "has_id_token", t.IDToken != "", "access_token", strutils.Preview(string(t.AccessToken)))
	return t, nil
}

// exchangeError sorts an oauth2 exchange failure into a TokenExchangeError or
// a transport error.
func (p *Provider) exchangeError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	var urlErr *url.Error
	switch {
	case errors.As(err, &retrieveErr):
		tokenErr := &TokenExchangeError{
			ErrorCode: retrieveErr.ErrorCode,
			Body:      retrieveErr.Body,
			Err:       ErrTokenExchange,
		}
		if retrieveErr.Response != nil {
			tokenErr.StatusCode = retrieveErr.Response.StatusCode
		}
		p.logger.Error("token endpoint rejected exchange", "status", tokenErr.StatusCode, "error_code", tokenErr.ErrorCode, "body", string(tokenErr.Body))
		return fmt.Errorf("%s: %w", op, tokenErr)
	case sdkhttp.IsTimeout(err), errors.As(err, &urlErr):
		p.logger.Error("token endpoint unreachable", "error", err)
		return sdkhttp.TransportError(op, err)
	// x/oauth2 has no sentinel for a 2xx reply without an access_token; its
	// internal token retrieval returns the plain error
	// "oauth2: server response missing access_token".
	case strings.Contains(err.Error(), "server response missing access_token"):
		tokenErr := &TokenExchangeError{StatusCode: http.StatusOK, Err: ErrMissingAccessToken}
		p.logger.Error("token endpoint returned no access_token")
		return fmt.Errorf("%s: %w", op, tokenErr)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrTokenExchange, err)
	}
}

// tokenExpiresIn returns the token lifetime in seconds from expires_in, the
// derived expiry, or DefaultTokenLifetime, in that order.
func tokenExpiresIn(t *oauth2.Token, now time.Time) int64 {
	if t.ExpiresIn > 0 {
		return t.ExpiresIn
	}
	switch v := t.Extra("expires_in").(type) {
	case float64:
		if v > 0 {
			return int64(v)
		}
	case json.Number:
		if i, err := v.Int64(); err == nil && i > 0 {
			return i
		}
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil && i > 0 {
			return i
		}
	}
	if !t.Expiry.IsZero() {
		if secs := int64(t.Expiry.Sub(now).Round(time.Second) / time.Second); secs > 0 {
			return secs
		}
	}
	return int64(DefaultTokenLifetime / time.Second)
}

// VerifyIDToken will verify the inbound IDToken and return its claims. It
// checks the signature, issuer, expiry, nonce and audience.
//
// The audience must contain the client id or, when configured, one of the
// config's Audiences.
func (p *Provider) VerifyIDToken(ctx context.Context, t IDToken, nonce string) (map[string]interface{}, error) {
	const op = "Provider.VerifyIDToken"
	if p.verifier == nil {
		return nil, fmt.Errorf("%s: provider keys were not discovered: %w", op, ErrInvalidConfig)
	}
	if t == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	if nonce == "" {
		return nil, fmt.Errorf("%s: nonce is empty: %w", op, ErrInvalidParameter)
	}
	ctx = HTTPClientContext(ctx, p.client)
	oidcIDToken, err := p.verifier.Verify(ctx, string(t))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrIDTokenVerificationFailed, err)
	}
	if subtle.ConstantTimeCompare([]byte(oidcIDToken.Nonce), []byte(nonce)) != 1 {
		return nil, fmt.Errorf("%s: id_token nonce does not match the request: %w", op, ErrInvalidNonce)
	}
	audiences := p.config.Audiences
	if len(audiences) == 0 {
		audiences = []string{p.config.ClientID}
	}
	found := false
	for _, aud := range oidcIDToken.Audience {
		if strutils.StrListContains(audiences, aud) {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%s: id_token aud %v is not an expected audience: %w", op, oidcIDToken.Audience, ErrInvalidAudience)
	}
	var claims map[string]interface{}
	if err := oidcIDToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: unable to get id_token claims: %w: %w", op, ErrIDTokenVerificationFailed, err)
	}
	return claims, nil
}

// UserInfo gets the claims of the user the access token was issued to from
// the provider's userinfo endpoint. The response may be plain json or a jwt
// (application/jwt).
//
// A 401 is returned as ErrUnauthorizedToken and a 403 as ErrForbiddenToken.
// Other non-2xx responses are returned as an *UpstreamError wrapping
// ErrUserInfoFailed.
func (p *Provider) UserInfo(ctx context.Context, t AccessToken) (map[string]interface{}, error) {
	const op = "Provider.UserInfo"
	if t == "" {
		return nil, fmt.Errorf("%s: access token is empty: %w", op, ErrUnauthorizedToken)
	}
	ctx, cancel := context.WithTimeout(ctx, p.config.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create userinfo request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+string(t))
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("userinfo endpoint unreachable", "error", err)
		return nil, sdkhttp.TransportError(op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, sdkhttp.TransportError(op, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorizedToken)
	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s: %w", op, ErrForbiddenToken)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		p.logger.Error("userinfo endpoint failed", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("%s: %w", op, &UpstreamError{
			Endpoint:   "userinfo",
			StatusCode: resp.StatusCode,
			Body:       body,
			Err:        ErrUserInfoFailed,
		})
	}

	claims := map[string]interface{}{}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/jwt" {
		if err := UnmarshalClaims(strings.TrimSpace(string(body)), &claims); err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrUserInfoFailed, err)
		}
	} else if err := json.Unmarshal(body, &claims); err != nil {
		return nil, fmt.Errorf("%s: unable to decode userinfo response: %w: %w", op, ErrUserInfoFailed, err)
	}
	return claims, nil
}

// providerOptions is the set of available options
type providerOptions struct {
	withLogger hclog.Logger
}

// providerDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func providerDefaults() providerOptions {
	return providerOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

// getProviderOpts gets the defaults and applies the opt overrides passed
// in.
func getProviderOpts(opt ...Option) providerOptions {
	opts := providerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
