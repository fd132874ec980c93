// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestNewRequest(t *testing.T) {
	t.Parallel()
	skew := 250 * time.Millisecond
	defaultExpireIn := 1 * time.Second
	testNow := func() time.Time {
		return time.Now().Add(-1 * time.Minute)
	}

	testVerifier, err := NewCodeVerifier()
	require.NoError(t, err)

	tests := []struct {
		name          string
		expireIn      time.Duration
		opts          []Option
		wantNow       bool
		wantState     string
		wantNonce     string
		wantVerifier  CodeVerifier
		wantNoPKCE    bool
		wantLoginHint string
		wantLocales   []language.Tag
		wantErr       bool
		wantIsErr     error
	}{
		{
			name:     "valid-with-all-options",
			expireIn: defaultExpireIn,
			opts: []Option{
				WithNow(testNow),
				WithState("st_alice"),
				WithNonce("n_bob"),
				WithPKCE(testVerifier),
				WithLoginHint("alice@example.com"),
				WithUILocales(language.English, language.Afrikaans),
			},
			wantNow:       true,
			wantState:     "st_alice",
			wantNonce:     "n_bob",
			wantVerifier:  testVerifier,
			wantLoginHint: "alice@example.com",
			wantLocales:   []language.Tag{language.English, language.Afrikaans},
		},
		{
			name:     "valid-no-opt",
			expireIn: defaultExpireIn,
		},
		{
			name:       "nil-pkce",
			expireIn:   defaultExpireIn,
			opts:       []Option{WithPKCE(nil)},
			wantNoPKCE: true,
		},
		{
			name:      "zero-expireIn",
			expireIn:  0,
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "state-equals-nonce",
			expireIn:  defaultExpireIn,
			opts:      []Option{WithState("same"), WithNonce("same")},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewRequest(tt.expireIn, tt.opts...)
			if tt.wantErr {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			tExp := got.now().Add(tt.expireIn)
			assert.True(got.expiration.Before(tExp.Add(skew)))
			assert.True(got.expiration.After(tExp.Add(-skew)))
			if tt.wantNow {
				assert.True(got.now().Before(time.Now().Add(-30 * time.Second)))
			}
			assert.NotEqualf(got.State(), got.Nonce(), "%s state should not equal %s nonce", got.State(), got.Nonce())
			assert.NotEmpty(got.State())
			assert.NotEmpty(got.Nonce())
			if tt.wantState != "" {
				assert.Equal(tt.wantState, got.State())
			}
			if tt.wantNonce != "" {
				assert.Equal(tt.wantNonce, got.Nonce())
			}
			switch {
			case tt.wantNoPKCE:
				assert.Nil(got.PKCEVerifier())
			case tt.wantVerifier != nil:
				assert.Equal(tt.wantVerifier, got.PKCEVerifier())
			default:
				require.NotNil(got.PKCEVerifier())
				assert.Len(got.PKCEVerifier().Verifier(), verifierLen)
			}
			assert.Equal(tt.wantLoginHint, got.LoginHint())
			assert.Equal(tt.wantLocales, got.UILocales())
		})
	}
}

func TestRequest_IsExpired(t *testing.T) {
	t.Parallel()
	t.Run("not-expired", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := NewRequest(2 * time.Second)
		require.NoError(err)
		assert.False(r.IsExpired())
	})
	t.Run("expired", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		oidcRequest, err := NewRequest(1 * time.Nanosecond)
		require.NoError(err)
		time.Sleep(2 * time.Nanosecond)
		assert.True(oidcRequest.IsExpired())
	})
	t.Run("expired-with-now", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		now := time.Now()
		clock := func() time.Time { return now }
		r, err := NewRequest(time.Minute, WithNow(clock))
		require.NoError(err)
		assert.False(r.IsExpired())
		now = now.Add(2 * time.Minute)
		assert.True(r.IsExpired())
	})
	t.Run("with-expiration", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		created := time.Now().Add(-time.Hour)
		expiresAt := created.Add(5 * time.Minute)
		r, err := NewRequest(5*time.Minute, WithExpiration(expiresAt))
		require.NoError(err)
		assert.Equal(expiresAt, r.ExpiresAt())
		assert.True(r.IsExpired())

		later := time.Now().Add(time.Minute)
		r, err = NewRequest(time.Second, WithExpiration(later))
		require.NoError(err)
		assert.False(r.IsExpired())
	})
}

func TestReq_PKCEVerifier_Copy(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	r, err := NewRequest(time.Minute)
	require.NoError(err)
	v1, v2 := r.PKCEVerifier(), r.PKCEVerifier()
	assert.Equal(v1, v2)
	assert.NotSame(v1, v2)
}
