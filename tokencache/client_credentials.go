// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package tokencache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	sdkhttp "github.com/businesshub/hubauth/sdk/http"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenLifetime is assumed when the token endpoint omits expires_in.
const DefaultTokenLifetime = 5 * time.Minute

var (
	// ErrInvalidParameter is returned for missing client credentials.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrTokenRequest is returned when the token endpoint refuses the grant.
	ErrTokenRequest = errors.New("client credentials grant failed")
)

// ClientCredentials is a Fetcher that runs the oauth2 client credentials
// grant against a token endpoint.
type ClientCredentials struct {
	config    clientcredentials.Config
	client    *http.Client
	assertion *Assertion
	now       func() time.Time
}

// ensure that ClientCredentials implements the Fetcher interface.
var _ Fetcher = (*ClientCredentials)(nil)

// NewClientCredentials creates a ClientCredentials fetcher. The client
// authenticates with clientSecret, or with a signed client_assertion when
// WithAssertion is used (clientSecret may then be empty).
//
// Supported options: WithScopes, WithNow, WithAssertion, WithHTTPClient
func NewClientCredentials(tokenURL, clientID, clientSecret string, opt ...Option) (*ClientCredentials, error) {
	const op = "tokencache.NewClientCredentials"
	opts := getOpts(opt...)
	switch {
	case tokenURL == "":
		return nil, fmt.Errorf("%s: token URL is empty: %w", op, ErrInvalidParameter)
	case clientID == "":
		return nil, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	case clientSecret == "" && opts.withAssertion == nil:
		return nil, fmt.Errorf("%s: client secret or assertion is required: %w", op, ErrInvalidParameter)
	}
	cc := &ClientCredentials{
		config: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       opts.withScopes,
		},
		client:    opts.withHTTPClient,
		assertion: opts.withAssertion,
		now:       opts.withNowFunc,
	}
	if cc.assertion != nil {
		cc.config.ClientSecret = ""
		cc.config.AuthStyle = oauth2.AuthStyleInParams
	}
	if cc.client == nil {
		client, err := sdkhttp.NewClient("")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		cc.client = client
	}
	return cc, nil
}

// Fetch implements Fetcher.
func (c *ClientCredentials) Fetch(ctx context.Context) (string, time.Time, error) {
	const op = "tokencache.(ClientCredentials).Fetch"
	cfg := c.config
	if c.assertion != nil {
		jwt, err := c.assertion.Serialize()
		if err != nil {
			return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
		}
		cfg.EndpointParams = url.Values{
			"client_assertion_type": {JWTBearerAssertionType},
			"client_assertion":      {jwt},
		}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)
	t, err := cfg.Token(ctx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		var urlErr *url.Error
		switch {
		case errors.As(err, &retrieveErr):
			return "", time.Time{}, fmt.Errorf("%s: %w: %w", op, ErrTokenRequest, err)
		case sdkhttp.IsTimeout(err), errors.As(err, &urlErr):
			return "", time.Time{}, sdkhttp.TransportError(op, err)
		default:
			return "", time.Time{}, fmt.Errorf("%s: %w: %w", op, ErrTokenRequest, err)
		}
	}
	now := c.now()
	switch {
	case t.ExpiresIn > 0:
		return t.AccessToken, now.Add(time.Duration(t.ExpiresIn) * time.Second), nil
	case extraExpiresIn(t) > 0:
		return t.AccessToken, now.Add(time.Duration(extraExpiresIn(t)) * time.Second), nil
	case !t.Expiry.IsZero():
		return t.AccessToken, t.Expiry, nil
	default:
		return t.AccessToken, now.Add(DefaultTokenLifetime), nil
	}
}

// extraExpiresIn reads expires_in from the raw token response.
func extraExpiresIn(t *oauth2.Token) int64 {
	switch v := t.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case string:
		i, _ := strconv.ParseInt(v, 10, 64)
		return i
	default:
		return 0
	}
}
