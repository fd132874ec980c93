// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()
	testNow := func() time.Time {
		return time.Now().Add(-1 * time.Minute)
	}
	testCA := TestGenerateCA(t, []string{"localhost"})

	type args struct {
		clientID     string
		clientSecret ClientSecret
		redirectURL  string
		opt          []Option
	}
	tests := []struct {
		name            string
		args            args
		want            *Config
		wantErr         bool
		wantIsErr       error
		wantErrContains []string
	}{
		{
			name: "valid-with-endpoints",
			args: args{
				clientID:     "client-id",
				clientSecret: "client-secret",
				redirectURL:  "https://app.example.com/auth/callback",
				opt: []Option{
					WithEndpoints("https://idp.example.com/as/authorization.oauth2", "https://idp.example.com/as/token.oauth2", "https://idp.example.com/idp/userinfo.openid"),
					WithScopes("profile", "email"),
					WithAudiences("client-id", "other"),
					WithProviderCA(testCA),
					WithRequestTimeout(5 * time.Second),
					WithNow(testNow),
				},
			},
			want: &Config{
				ClientID:             "client-id",
				ClientSecret:         "client-secret",
				RedirectURL:          "https://app.example.com/auth/callback",
				AuthURL:              "https://idp.example.com/as/authorization.oauth2",
				TokenURL:             "https://idp.example.com/as/token.oauth2",
				UserInfoURL:          "https://idp.example.com/idp/userinfo.openid",
				Scopes:               []string{"profile", "email"},
				Audiences:            []string{"client-id", "other"},
				SupportedSigningAlgs: []Alg{RS256},
				ProviderCA:           testCA,
				RequestTimeout:       5 * time.Second,
				NowFunc:              testNow,
			},
		},
		{
			name: "valid-with-issuer",
			args: args{
				clientID:     "client-id",
				clientSecret: "client-secret",
				redirectURL:  "http://localhost:8080/auth/callback",
				opt: []Option{
					WithIssuer("https://idp.example.com"),
					WithSupportedSigningAlgs(RS256, ES256),
				},
			},
			want: &Config{
				ClientID:             "client-id",
				ClientSecret:         "client-secret",
				RedirectURL:          "http://localhost:8080/auth/callback",
				Issuer:               "https://idp.example.com",
				SupportedSigningAlgs: []Alg{RS256, ES256},
				RequestTimeout:       DefaultRequestTimeout,
			},
		},
		{
			name:      "missing-everything",
			args:      args{},
			wantErr:   true,
			wantIsErr: ErrInvalidConfig,
			wantErrContains: []string{
				"client id is empty",
				"client secret is empty",
				"redirect URL is empty",
				"authorization endpoint URL is empty",
				"token endpoint URL is empty",
				"userinfo endpoint URL is empty",
			},
		},
		{
			name: "bad-urls",
			args: args{
				clientID:     "client-id",
				clientSecret: "client-secret",
				redirectURL:  "ftp://app.example.com/callback",
				opt:          []Option{WithEndpoints("https://idp.example.com/auth", "not a url", "https://")},
			},
			wantErr:   true,
			wantIsErr: ErrInvalidConfig,
			wantErrContains: []string{
				"redirect URL",
				"token endpoint URL",
				"userinfo endpoint URL",
			},
		},
		{
			name: "bad-issuer",
			args: args{
				clientID:     "client-id",
				clientSecret: "client-secret",
				redirectURL:  "https://app.example.com/callback",
				opt:          []Option{WithIssuer("file:///etc/passwd")},
			},
			wantErr:         true,
			wantIsErr:       ErrInvalidConfig,
			wantErrContains: []string{"issuer"},
		},
		{
			name: "bad-alg",
			args: args{
				clientID:     "client-id",
				clientSecret: "client-secret",
				redirectURL:  "https://app.example.com/callback",
				opt:          []Option{WithIssuer("https://idp.example.com"), WithSupportedSigningAlgs("HS256")},
			},
			wantErr:         true,
			wantIsErr:       ErrInvalidConfig,
			wantErrContains: []string{"unsupported algorithm HS256"},
		},
		{
			name: "bad-ca",
			args: args{
				clientID:     "client-id",
				clientSecret: "client-secret",
				redirectURL:  "https://app.example.com/callback",
				opt:          []Option{WithIssuer("https://idp.example.com"), WithProviderCA("bad cert")},
			},
			wantErr:   true,
			wantIsErr: ErrInvalidCACert,
		},
		{
			name: "negative-timeout",
			args: args{
				clientID:     "client-id",
				clientSecret: "client-secret",
				redirectURL:  "https://app.example.com/callback",
				opt:          []Option{WithIssuer("https://idp.example.com"), WithRequestTimeout(-1)},
			},
			wantErr:         true,
			wantIsErr:       ErrInvalidConfig,
			wantErrContains: []string{"negative"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := NewConfig(tt.args.clientID, tt.args.clientSecret, tt.args.redirectURL, tt.args.opt...)
			if tt.wantErr {
				require.Error(err)
				assert.Nil(got)
				if tt.wantIsErr != nil {
					assert.ErrorIs(err, tt.wantIsErr)
				}
				for _, s := range tt.wantErrContains {
					assert.Contains(err.Error(), s)
				}
				return
			}
			require.NoError(err)
			if tt.want.NowFunc != nil {
				assert.Equal(tt.want.NowFunc().Round(time.Second), got.Now().Round(time.Second))
			}
			tt.want.NowFunc = nil
			got.NowFunc = nil
			assert.Equal(tt.want, got)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	t.Run("nil", func(t *testing.T) {
		var c *Config
		assert.ErrorIs(t, c.Validate(), ErrNilParameter)
	})
	t.Run("aggregates", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := &Config{ClientID: "client-id"}
		err := c.Validate()
		require.Error(err)
		var merr *multierror.Error
		require.True(errors.As(err, &merr))
		// secret, redirect URL, and the three endpoints
		assert.Len(merr.Errors, 5)
	})
}

func TestConfig_HTTPClient(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	c := &Config{RequestTimeout: 3 * time.Second}
	client, err := c.HTTPClient()
	require.NoError(err)
	assert.Equal(3*time.Second, client.Timeout)

	c = &Config{ProviderCA: "bad"}
	_, err = c.HTTPClient()
	require.Error(err)
	assert.ErrorIs(err, ErrInvalidCACert)
}

func TestConfig_Now(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := &Config{NowFunc: func() time.Time { return fixed }}
	assert.Equal(fixed, c.Now())

	c = &Config{}
	assert.WithinDuration(time.Now(), c.Now(), time.Second)
	assert.Equal(DefaultRequestTimeout, c.timeout())
}

func TestClientSecret_Redacted(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	const secret = ClientSecret("super-secret")
	assert.Equal(RedactedClientSecret, secret.String())
	assert.Equal(RedactedClientSecret, fmt.Sprintf("%s", secret))

	b, err := json.Marshal(struct {
		ClientID     string
		ClientSecret ClientSecret
	}{"client-id", secret})
	require.NoError(err)
	assert.NotContains(string(b), "super-secret")
	assert.Contains(string(b), RedactedClientSecret)
}
