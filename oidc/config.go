// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	sdkhttp "github.com/businesshub/hubauth/sdk/http"
	"github.com/businesshub/hubauth/sdk/strutils"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-multierror"
)

// ClientSecret is an oauth client Secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret.
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret.
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret.
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// DefaultRequestTimeout bounds every call to the provider's endpoints.
const DefaultRequestTimeout = sdkhttp.DefaultTimeout

// Config represents the configuration for an OIDC provider used by a relying
// party.
type Config struct {
	// ClientID is the relying party ID.
	ClientID string

	// ClientSecret is the relying party secret. It is sent to the token
	// endpoint in the form body and must never reach a browser.
	ClientSecret ClientSecret

	// Scopes is a list of default oidc scopes to request of the provider.
	// The required "openid" scope is requested by default, and does not need
	// to be part of this optional list.
	Scopes []string

	// Issuer is a case-sensitive URL string using the https scheme that
	// contains scheme, host, and optionally, port number and path components
	// and no query or fragment components. When set, the provider's
	// endpoints are discovered and id_tokens are verified.
	Issuer string

	// AuthURL, TokenURL and UserInfoURL are the provider's endpoints. They are
	// required when Issuer is empty and override discovered values otherwise.
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// RedirectURL is the callback registered with the provider.
	RedirectURL string

	// SupportedSigningAlgs is a list of supported signing algorithms. List of
	// currently supported algs: RS256, RS384, RS512, ES256, ES384, ES512,
	// PS256, PS384, PS512, EdDSA
	SupportedSigningAlgs []Alg

	// Audiences is an optional list of case-sensitive strings to use when
	// verifying an id_token's "aud" claim (which is also a list).
	Audiences []string

	// ProviderCA is an optional CA certs (PEM encoded) to use when sending
	// requests to the provider.
	ProviderCA string

	// RequestTimeout bounds every outbound request to the provider.
	RequestTimeout time.Duration

	// NowFunc is a time func that returns the current time.
	NowFunc func() time.Time
}

// NewConfig composes a new config for a provider.
//
// The clientID, clientSecret and redirectURL are required. Either WithIssuer
// or WithEndpoints must be supplied.
//
// Supported options: WithIssuer, WithEndpoints, WithScopes, WithAudiences,
// WithSupportedSigningAlgs, WithProviderCA, WithRequestTimeout, WithNow
func NewConfig(clientID string, clientSecret ClientSecret, redirectURL string, opt ...Option) (*Config, error) {
	const op = "NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		ClientID:             clientID,
		ClientSecret:         clientSecret,
		RedirectURL:          redirectURL,
		Issuer:               opts.withIssuer,
		AuthURL:              opts.withAuthURL,
		TokenURL:             opts.withTokenURL,
		UserInfoURL:          opts.withUserInfoURL,
		Scopes:               opts.withScopes,
		Audiences:            opts.withAudiences,
		SupportedSigningAlgs: opts.withSupportedSigningAlgs,
		ProviderCA:           opts.withProviderCA,
		RequestTimeout:       opts.withRequestTimeout,
		NowFunc:              opts.withNowFunc,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return c, nil
}

// Validate the provider configuration. Every problem is reported, not just the
// first one. It doesn't verify the Issuer is discoverable via an http request.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	var errs *multierror.Error
	invalid := func(format string, a ...interface{}) {
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", fmt.Sprintf(format, a...), ErrInvalidConfig))
	}
	if c.ClientID == "" {
		invalid("client id is empty")
	}
	if c.ClientSecret == "" {
		invalid("client secret is empty")
	}
	if c.RedirectURL == "" {
		invalid("redirect URL is empty")
	} else if err := validateURL(c.RedirectURL); err != nil {
		invalid("redirect URL %q is invalid: %s", c.RedirectURL, err)
	}
	switch {
	case c.Issuer != "":
		if err := validateURL(c.Issuer); err != nil {
			invalid("issuer %q is invalid: %s", c.Issuer, err)
		}
	default:
		if c.AuthURL == "" {
			invalid("authorization endpoint URL is empty and no issuer is configured for discovery")
		}
		if c.TokenURL == "" {
			invalid("token endpoint URL is empty and no issuer is configured for discovery")
		}
		if c.UserInfoURL == "" {
			invalid("userinfo endpoint URL is empty and no issuer is configured for discovery")
		}
	}
	for name, u := range map[string]string{"authorization": c.AuthURL, "token": c.TokenURL, "userinfo": c.UserInfoURL} {
		if u == "" {
			continue
		}
		if err := validateURL(u); err != nil {
			invalid("%s endpoint URL %q is invalid: %s", name, u, err)
		}
	}
	for _, a := range c.SupportedSigningAlgs {
		if !supportedAlgorithms[a] {
			invalid("unsupported algorithm %s", a)
		}
	}
	if c.RequestTimeout < 0 {
		invalid("request timeout %s is negative", c.RequestTimeout)
	}
	if c.ProviderCA != "" {
		if _, err := sdkhttp.NewClient(c.ProviderCA); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("could not parse CA PEM value: %w", ErrInvalidCACert))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HTTPClient is a helper function that creates a new http client for the
// provider configured, bounded by RequestTimeout.
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "Config.HTTPClient"
	client, err := sdkhttp.NewClient(c.ProviderCA, sdkhttp.WithTimeout(c.RequestTimeout))
	if err != nil {
		if errors.Is(err, sdkhttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}

// Now will return the current time which can be overridden by the NowFunc
func (c *Config) Now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return time.Now() // fallback to this default
}

// timeout returns RequestTimeout or DefaultRequestTimeout when unset.
func (c *Config) timeout() time.Duration {
	if c.RequestTimeout > 0 {
		return c.RequestTimeout
	}
	return DefaultRequestTimeout
}

// HTTPClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func HTTPClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !strutils.StrListContains([]string{"https", "http"}, u.Scheme) {
		return fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is empty")
	}
	return nil
}

// configOptions is the set of available options
type configOptions struct {
	withIssuer               string
	withAuthURL              string
	withTokenURL             string
	withUserInfoURL          string
	withScopes               []string
	withAudiences            []string
	withSupportedSigningAlgs []Alg
	withProviderCA           string
	withRequestTimeout       time.Duration
	withNowFunc              func() time.Time
}

// configDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func configDefaults() configOptions {
	return configOptions{
		withSupportedSigningAlgs: []Alg{RS256},
		withRequestTimeout:       DefaultRequestTimeout,
		withNowFunc:              time.Now,
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed
// in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithIssuer configures discovery of the provider's endpoints.
//
// Valid for: Config
func WithIssuer(issuer string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withIssuer = issuer
		}
	}
}

// WithEndpoints provides the provider's authorization, token and userinfo
// endpoints explicitly.
//
// Valid for: Config
func WithEndpoints(authURL, tokenURL, userInfoURL string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withAuthURL = authURL
			o.withTokenURL = tokenURL
			o.withUserInfoURL = userInfoURL
		}
	}
}

// WithScopes provides an optional list of scopes.
//
// Valid for: Config
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withScopes = scopes
		}
	}
}

// WithAudiences provides an optional list of audiences.
//
// Valid for: Config
func WithAudiences(auds ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withAudiences = auds
		}
	}
}

// WithSupportedSigningAlgs overrides the default of RS256.
//
// Valid for: Config
func WithSupportedSigningAlgs(algs ...Alg) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok && len(algs) > 0 {
			o.withSupportedSigningAlgs = algs
		}
	}
}

// WithProviderCA provides optional CA certs (PEM encoded) for the provider's
// config.  These certs will can be used when making http requests to the
// provider.
//
// Valid for: Config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithRequestTimeout overrides DefaultRequestTimeout.
//
// Valid for: Config
func WithRequestTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withRequestTimeout = d
		}
	}
}
