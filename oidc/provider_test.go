// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	sdkhttp "github.com/businesshub/hubauth/sdk/http"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"golang.org/x/text/language"
)

func TestNewProvider(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)

	t.Run("discovered", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p, err := NewProvider(tp.TestConfig(t), WithLogger(hclog.NewNullLogger()))
		require.NoError(err)
		defer p.Done()
		assert.Equal(tp.AuthURL(), p.endpoint.AuthURL)
		assert.Equal(tp.TokenURL(), p.TokenURL())
		assert.Equal(oauth2.AuthStyleInParams, p.endpoint.AuthStyle)
		assert.Equal(tp.UserInfoURL(), p.userInfoURL)
		assert.True(p.VerifiesIDTokens())
		assert.NotNil(p.HTTPClient())
		assert.Equal(tp.Addr(), p.Config().Issuer)
	})
	t.Run("explicit-endpoints", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p, err := NewProvider(tp.TestConfig(t, tp.TestEndpoints()))
		require.NoError(err)
		defer p.Done()
		assert.Equal(tp.AuthURL(), p.endpoint.AuthURL)
		assert.False(p.VerifiesIDTokens())
	})
	t.Run("explicit-overrides-discovered", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := tp.TestConfig(t)
		c.UserInfoURL = "https://userinfo.example.com/v1"
		p, err := NewProvider(c)
		require.NoError(err)
		defer p.Done()
		assert.Equal("https://userinfo.example.com/v1", p.userInfoURL)
		assert.True(p.VerifiesIDTokens())
	})
	t.Run("nil-config", func(t *testing.T) {
		p, err := NewProvider(nil)
		assert.ErrorIs(t, err, ErrNilParameter)
		assert.Nil(t, p)
	})
	t.Run("invalid-config", func(t *testing.T) {
		_, err := NewProvider(&Config{ClientID: "client-id"})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
	t.Run("untrusted-ca", func(t *testing.T) {
		c := tp.TestConfig(t)
		c.ProviderCA = ""
		_, err := NewProvider(c)
		assert.Error(t, err)
	})
	t.Run("done-is-nil-safe", func(t *testing.T) {
		var p *Provider
		assert.NotPanics(t, p.Done)
	})
}

func TestProvider_AuthURL(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)
	p, err := NewProvider(tp.TestConfig(t))
	require.NoError(t, err)
	defer p.Done()

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		oidcRequest, err := NewRequest(time.Minute,
			WithLoginHint("alice"),
			WithUILocales(language.MustParse("en-ZA"), language.Afrikaans),
		)
		require.NoError(err)

		got, err := p.AuthURL(context.Background(), oidcRequest)
		require.NoError(err)
		u, err := url.Parse(got)
		require.NoError(err)
		assert.Equal(tp.AuthURL(), u.Scheme+"://"+u.Host+u.Path)

		q := u.Query()
		assert.Equal("code", q.Get("response_type"))
		assert.Equal(p.config.ClientID, q.Get("client_id"))
		assert.Equal(p.config.RedirectURL, q.Get("redirect_uri"))
		assert.Equal("openid profile email", q.Get("scope"))
		assert.Equal(oidcRequest.State(), q.Get("state"))
		assert.Equal(oidcRequest.Nonce(), q.Get("nonce"))
		assert.Equal(oidcRequest.PKCEVerifier().Challenge(), q.Get("code_challenge"))
		assert.Equal("S256", q.Get("code_challenge_method"))
		assert.Equal("alice", q.Get("login_hint"))
		assert.Equal("en-ZA af", q.Get("ui_locales"))
		assert.NotContains(got, string(p.config.ClientSecret))
		assert.NotContains(got, oidcRequest.PKCEVerifier().Verifier())
	})
	t.Run("without-optional-params", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		oidcRequest, err := NewRequest(time.Minute)
		require.NoError(err)
		got, err := p.AuthURL(context.Background(), oidcRequest)
		require.NoError(err)
		assert.NotContains(got, "login_hint")
		assert.NotContains(got, "ui_locales")
	})
	t.Run("accepted-by-provider", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		oidcRequest, err := NewRequest(time.Minute)
		require.NoError(err)
		authURL, err := p.AuthURL(context.Background(), oidcRequest)
		require.NoError(err)
		code, state := tp.TestAuthorize(t, authURL)
		assert.Equal("test-auth-code", code)
		assert.Equal(oidcRequest.State(), state)
	})
	t.Run("errors", func(t *testing.T) {
		noPKCE, err := NewRequest(time.Minute, WithPKCE(nil))
		require.NoError(t, err)
		tests := []struct {
			name      string
			req       Request
			wantIsErr error
		}{
			{name: "nil-request", req: nil, wantIsErr: ErrNilParameter},
			{name: "no-verifier", req: noPKCE, wantIsErr: ErrMissingVerifier},
			{name: "equal-state-nonce", req: &testRequest{state: "same", nonce: "same"}, wantIsErr: ErrInvalidParameter},
			{name: "empty-state", req: &testRequest{nonce: "n"}, wantIsErr: ErrInvalidParameter},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := p.AuthURL(context.Background(), tt.req)
				assert.ErrorIs(t, err, tt.wantIsErr)
				assert.Empty(t, got)
			})
		}
	})
}

func TestProvider_Exchange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// authorize runs a request through the provider's /authorization endpoint
	// so the provider records its code challenge and nonce.
	authorize := func(t *testing.T, tp *TestProvider, p *Provider, opt ...Option) (*Req, string, string) {
		t.Helper()
		oidcRequest, err := NewRequest(time.Minute, opt...)
		require.NoError(t, err)
		authURL, err := p.AuthURL(ctx, oidcRequest)
		require.NoError(t, err)
		code, state := tp.TestAuthorize(t, authURL)
		require.NotEmpty(t, code)
		return oidcRequest, state, code
	}

	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		now := time.Now()
		p, err := NewProvider(tp.TestConfig(t, WithNow(func() time.Time { return now })))
		require.NoError(err)
		defer p.Done()

		oidcRequest, state, code := authorize(t, tp, p)
		tk, err := p.Exchange(ctx, oidcRequest, state, code)
		require.NoError(err)
		assert.NotEmpty(tk.AccessToken)
		assert.NotEmpty(tk.IDToken)
		assert.Equal("Bearer", tk.TokenType)
		assert.Equal("openid profile email", tk.Scope)
		assert.Equal(int64(3600), tk.ExpiresIn)
		assert.Equal(now.Add(time.Hour).UnixMilli(), tk.ExpiresAt.UnixMilli())
		assert.Equal(1, tp.AuthCodeCalls())

		// the code is single use
		_, err = p.Exchange(ctx, oidcRequest, state, code)
		var exchangeErr *TokenExchangeError
		require.True(errors.As(err, &exchangeErr))
		assert.Equal(http.StatusBadRequest, exchangeErr.StatusCode)
		assert.Equal("invalid_grant", exchangeErr.ErrorCode)
	})
	t.Run("default-lifetime", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.SetExpiresIn(0)
		p, err := NewProvider(tp.TestConfig(t, tp.TestEndpoints()))
		require.NoError(err)
		defer p.Done()
		oidcRequest, state, code := authorize(t, tp, p)
		tk, err := p.Exchange(ctx, oidcRequest, state, code)
		require.NoError(err)
		assert.Equal(int64(DefaultTokenLifetime/time.Second), tk.ExpiresIn)
	})
	t.Run("missing-access-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.OmitAccessToken()
		p, err := NewProvider(tp.TestConfig(t, tp.TestEndpoints()))
		require.NoError(err)
		defer p.Done()
		oidcRequest, state, code := authorize(t, tp, p)
		tk, err := p.Exchange(ctx, oidcRequest, state, code)
		require.Error(err)
		assert.Nil(tk)
		assert.ErrorIs(err, ErrMissingAccessToken)
		var exchangeErr *TokenExchangeError
		require.True(errors.As(err, &exchangeErr))
		assert.Equal(http.StatusOK, exchangeErr.StatusCode)
		assert.Equal(KindUpstream, Classify(err))
	})
	t.Run("non-2xx", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.SetTokenError(http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Authorization code is invalid or expired."}`)
		p, err := NewProvider(tp.TestConfig(t, tp.TestEndpoints()))
		require.NoError(err)
		defer p.Done()
		oidcRequest, state, code := authorize(t, tp, p)
		_, err = p.Exchange(ctx, oidcRequest, state, code)
		require.Error(err)
		assert.ErrorIs(err, ErrTokenExchange)
		var exchangeErr *TokenExchangeError
		require.True(errors.As(err, &exchangeErr))
		assert.Equal(http.StatusBadRequest, exchangeErr.StatusCode)
		assert.Equal("invalid_grant", exchangeErr.ErrorCode)
		assert.Contains(string(exchangeErr.Body), "Authorization code is invalid or expired.")
		assert.NotContains(err.Error(), "Authorization code is invalid or expired.")
	})
	t.Run("pkce-mismatch", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		p, err := NewProvider(tp.TestConfig(t, tp.TestEndpoints()))
		require.NoError(err)
		defer p.Done()
		oidcRequest, state, code := authorize(t, tp, p)
		other, err := NewCodeVerifier()
		require.NoError(err)
		forged, err := NewRequest(time.Minute, WithState(oidcRequest.State()), WithNonce(oidcRequest.Nonce()), WithPKCE(other))
		require.NoError(err)
		_, err = p.Exchange(ctx, forged, state, code)
		assert.ErrorIs(err, ErrTokenExchange)
	})
	t.Run("id-token-nonce-mismatch", func(t *testing.T) {
		require := require.New(t)
		tp := StartTestProvider(t)
		tp.SetExpectedAuthNonce("some-other-nonce")
		p, err := NewProvider(tp.TestConfig(t))
		require.NoError(err)
		defer p.Done()
		// skip /authorization so the provider signs the expected nonce
		oidcRequest, err := NewRequest(time.Minute)
		require.NoError(err)
		_, err = p.Exchange(ctx, oidcRequest, oidcRequest.State(), "test-auth-code")
		assert.ErrorIs(t, err, ErrInvalidNonce)
	})
	t.Run("precondition-failures-never-reach-provider", func(t *testing.T) {
		tp := StartTestProvider(t)
		p, err := NewProvider(tp.TestConfig(t, tp.TestEndpoints()))
		require.NoError(t, err)
		defer p.Done()

		valid, err := NewRequest(time.Minute)
		require.NoError(t, err)
		expired, err := NewRequest(time.Minute, WithNow(func() time.Time { return time.Now().Add(-time.Hour) }))
		require.NoError(t, err)
		noPKCE, err := NewRequest(time.Minute, WithPKCE(nil))
		require.NoError(t, err)

		tests := []struct {
			name      string
			req       Request
			state     string
			code      string
			wantIsErr error
		}{
			{name: "nil-request", req: nil, state: "s", code: "c", wantIsErr: ErrNilParameter},
			{name: "missing-state", req: valid, state: "", code: "c", wantIsErr: ErrMissingState},
			{name: "missing-code", req: valid, state: valid.State(), code: "", wantIsErr: ErrMissingCode},
			{name: "state-mismatch", req: valid, state: "st_forged", code: "c", wantIsErr: ErrResponseStateInvalid},
			{name: "expired", req: expired, state: expired.State(), code: "c", wantIsErr: ErrExpiredRequest},
			{name: "missing-verifier", req: noPKCE, state: noPKCE.State(), code: "c", wantIsErr: ErrMissingVerifier},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tk, err := p.Exchange(ctx, tt.req, tt.state, tt.code)
				assert.ErrorIs(t, err, tt.wantIsErr)
				assert.Nil(t, tk)
			})
		}
		assert.Equal(t, 0, tp.AuthCodeCalls())
	})
	t.Run("timeout", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.SetTokenDelay(2 * time.Second)
		p, err := NewProvider(tp.TestConfig(t, tp.TestEndpoints(), WithRequestTimeout(100*time.Millisecond)))
		require.NoError(err)
		defer p.Done()
		oidcRequest, state, code := authorize(t, tp, p)
		_, err = p.Exchange(ctx, oidcRequest, state, code)
		require.Error(err)
		assert.ErrorIs(err, sdkhttp.ErrGatewayTimeout)
		assert.Equal(KindTimeout, Classify(err))
		assert.True(Classify(err).Retryable())
	})
	t.Run("unreachable", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		p, err := NewProvider(tp.TestConfig(t, tp.TestEndpoints()))
		require.NoError(err)
		defer p.Done()
		oidcRequest, err := NewRequest(time.Minute)
		require.NoError(err)
		tp.Stop()
		_, err = p.Exchange(ctx, oidcRequest, oidcRequest.State(), "test-auth-code")
		require.Error(err)
		assert.ErrorIs(err, sdkhttp.ErrTransport)
		assert.Equal(KindTransport, Classify(err))
	})
}

func TestProvider_UserInfo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tp := StartTestProvider(t)
	p, err := NewProvider(tp.TestConfig(t))
	require.NoError(t, err)
	defer p.Done()

	t.Run("json", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		claims, err := p.UserInfo(ctx, AccessToken(tp.IssueUserToken()))
		require.NoError(err)
		assert.Equal(tp.Subject(), claims["sub"])
		assert.Equal("Alice Doe", claims["name"])
		assert.Equal("alice@example.com", claims["email"])
	})
	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name       string
			token      AccessToken
			status     int
			wantIsErr  error
			wantStatus int
		}{
			{name: "empty", token: "", wantIsErr: ErrUnauthorizedToken},
			{name: "unknown-token", token: "at_unknown", wantIsErr: ErrUnauthorizedToken},
			{name: "forbidden", token: "at_unknown", status: http.StatusForbidden, wantIsErr: ErrForbiddenToken},
			{name: "server-error", token: "at_unknown", status: http.StatusInternalServerError, wantIsErr: ErrUserInfoFailed, wantStatus: http.StatusInternalServerError},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert, require := assert.New(t), require.New(t)
				tp.SetUserInfoStatus(tt.status)
				defer tp.SetUserInfoStatus(0)
				claims, err := p.UserInfo(ctx, tt.token)
				require.Error(err)
				assert.Nil(claims)
				assert.ErrorIs(err, tt.wantIsErr)
				assert.Equal(KindUpstream, Classify(err))
				if tt.wantStatus != 0 {
					var upstreamErr *UpstreamError
					require.True(errors.As(err, &upstreamErr))
					assert.Equal(tt.wantStatus, upstreamErr.StatusCode)
					assert.Contains(string(upstreamErr.Body), "forced")
				}
			})
		}
	})
}

func TestProvider_UserInfoJWT(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	tp.SetUserInfoAsJWT(true)
	p, err := NewProvider(tp.TestConfig(t, tp.TestEndpoints()))
	require.NoError(err)
	defer p.Done()

	claims, err := p.UserInfo(context.Background(), AccessToken(tp.IssueUserToken()))
	require.NoError(err)
	assert.Equal(tp.Subject(), claims["sub"])
	assert.Equal("Alice Doe", claims["name"])
}

func TestProvider_VerifyIDToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tp := StartTestProvider(t)
	p, err := NewProvider(tp.TestConfig(t))
	require.NoError(t, err)
	defer p.Done()

	const nonce = "n_test-nonce"
	tests := []struct {
		name      string
		token     IDToken
		nonce     string
		wantIsErr error
	}{
		{name: "valid", token: IDToken(tp.IssueIDToken(nonce, time.Minute)), nonce: nonce},
		{name: "empty-token", token: "", nonce: nonce, wantIsErr: ErrInvalidParameter},
		{name: "empty-nonce", token: IDToken(tp.IssueIDToken(nonce, time.Minute)), nonce: "", wantIsErr: ErrInvalidParameter},
		{name: "wrong-nonce", token: IDToken(tp.IssueIDToken(nonce, time.Minute)), nonce: "n_other", wantIsErr: ErrInvalidNonce},
		{name: "wrong-audience", token: IDToken(tp.IssueIDToken(nonce, time.Minute, "someone-else")), nonce: nonce, wantIsErr: ErrInvalidAudience},
		{name: "expired", token: IDToken(tp.IssueIDToken(nonce, -time.Minute)), nonce: nonce, wantIsErr: ErrIDTokenVerificationFailed},
		{name: "garbage", token: "not.a.jwt", nonce: nonce, wantIsErr: ErrIDTokenVerificationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			claims, err := p.VerifyIDToken(ctx, tt.token, tt.nonce)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				return
			}
			require.NoError(err)
			assert.Equal(tp.Subject(), claims["sub"])
			assert.Equal(tt.nonce, claims["nonce"])
		})
	}

	t.Run("not-discovered", func(t *testing.T) {
		explicit, err := NewProvider(tp.TestConfig(t, tp.TestEndpoints()))
		require.NoError(t, err)
		defer explicit.Done()
		_, err = explicit.VerifyIDToken(ctx, IDToken(tp.IssueIDToken(nonce, time.Minute)), nonce)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func Test_tokenExpiresIn(t *testing.T) {
	t.Parallel()
	now := time.Now()
	tests := []struct {
		name  string
		token *oauth2.Token
		want  int64
	}{
		{name: "expires-in-field", token: &oauth2.Token{ExpiresIn: 120}, want: 120},
		{name: "expiry", token: &oauth2.Token{Expiry: now.Add(90 * time.Second)}, want: 90},
		{name: "past-expiry", token: &oauth2.Token{Expiry: now.Add(-time.Second)}, want: int64(DefaultTokenLifetime / time.Second)},
		{name: "none", token: &oauth2.Token{}, want: int64(DefaultTokenLifetime / time.Second)},
		{name: "extra-float", token: (&oauth2.Token{}).WithExtra(map[string]interface{}{"expires_in": float64(300)}), want: 300},
		{name: "extra-string", token: (&oauth2.Token{}).WithExtra(map[string]interface{}{"expires_in": "600"}), want: 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenExpiresIn(tt.token, now))
		})
	}
}

// testRequest is a Request whose fields can be set to values NewRequest
// refuses to produce.
type testRequest struct {
	state    string
	nonce    string
	expired  bool
	verifier CodeVerifier
}

func (r *testRequest) State() string              { return r.state }
func (r *testRequest) Nonce() string              { return r.nonce }
func (r *testRequest) IsExpired() bool            { return r.expired }
func (r *testRequest) PKCEVerifier() CodeVerifier { return r.verifier }
func (r *testRequest) LoginHint() string          { return "" }
func (r *testRequest) UILocales() []language.Tag  { return nil }
