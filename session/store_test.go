// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/businesshub/hubauth/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCookies returns the cookies set on w, keyed by name.
func testCookies(w *httptest.ResponseRecorder) map[string]*http.Cookie {
	got := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		got[c.Name] = c
	}
	return got
}

// testRequestWith returns a request carrying the cookies set on w.
func testRequestWith(w *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge >= 0 {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return req
}

func testExpiresCookie(t time.Time) *http.Cookie {
	return &http.Cookie{Name: AttemptExpiresCookie, Value: strconv.FormatInt(t.UnixMilli(), 10)}
}

func TestStore_PKCE(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("round-trip", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := NewStore()
		oidcRequest, err := oidc.NewRequest(DefaultPKCETTL)
		require.NoError(err)

		w := httptest.NewRecorder()
		require.NoError(s.WritePKCE(w, oidcRequest))
		cookies := testCookies(w)
		require.Len(cookies, 4)
		for _, name := range []string{StateCookie, VerifierCookie, NonceCookie, AttemptExpiresCookie} {
			c := cookies[name]
			require.NotNil(c, name)
			assert.True(c.HttpOnly)
			assert.True(c.Secure)
			assert.Equal(http.SameSiteLaxMode, c.SameSite)
			assert.Equal("/", c.Path)
			assert.Equal(300, c.MaxAge)
		}

		got, err := s.Read(ctx, testRequestWith(w), oidcRequest.State())
		require.NoError(err)
		assert.Equal(oidcRequest.State(), got.State())
		assert.Equal(oidcRequest.Nonce(), got.Nonce())
		assert.Equal(oidcRequest.PKCEVerifier().Verifier(), got.PKCEVerifier().Verifier())
		assert.Equal(oidcRequest.PKCEVerifier().Challenge(), got.PKCEVerifier().Challenge())
		assert.Equal(oidcRequest.ExpiresAt().UnixMilli(), got.ExpiresAt().UnixMilli())
		assert.False(got.IsExpired())
	})
	t.Run("expired-attempt", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		now := time.Now()
		clock := func() time.Time { return now }
		s := NewStore(WithNow(clock))
		oidcRequest, err := oidc.NewRequest(s.PKCETTL(), oidc.WithNow(clock))
		require.NoError(err)
		w := httptest.NewRecorder()
		require.NoError(s.WritePKCE(w, oidcRequest))

		// a client that keeps sending the cookies past their Max-Age
		now = now.Add(time.Hour)
		got, err := s.Read(ctx, testRequestWith(w), oidcRequest.State())
		require.NoError(err)
		assert.True(got.IsExpired())
		assert.Equal(oidcRequest.ExpiresAt().UnixMilli(), got.ExpiresAt().UnixMilli())
	})
	t.Run("insecure", func(t *testing.T) {
		s := NewStore(WithSecure(false), WithPKCETTL(time.Minute))
		assert.Equal(t, time.Minute, s.PKCETTL())
		oidcRequest, err := oidc.NewRequest(time.Minute)
		require.NoError(t, err)
		w := httptest.NewRecorder()
		require.NoError(t, s.WritePKCE(w, oidcRequest))
		c := testCookies(w)[StateCookie]
		assert.False(t, c.Secure)
		assert.Equal(t, 60, c.MaxAge)
	})
	t.Run("write-errors", func(t *testing.T) {
		s := NewStore()
		assert.ErrorIs(t, s.WritePKCE(httptest.NewRecorder(), nil), oidc.ErrNilParameter)
		noPKCE, err := oidc.NewRequest(time.Minute, oidc.WithPKCE(nil))
		require.NoError(t, err)
		assert.ErrorIs(t, s.WritePKCE(httptest.NewRecorder(), noPKCE), oidc.ErrMissingVerifier)
	})
	t.Run("missing-state-fails-closed", func(t *testing.T) {
		s := NewStore()
		got, err := s.Read(ctx, httptest.NewRequest(http.MethodGet, "/auth/callback", nil), "st_anything")
		assert.ErrorIs(t, err, oidc.ErrNotFound)
		assert.Nil(t, got)
	})
	t.Run("missing-verifier", func(t *testing.T) {
		s := NewStore()
		req := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
		req.AddCookie(&http.Cookie{Name: StateCookie, Value: "st_state"})
		req.AddCookie(&http.Cookie{Name: NonceCookie, Value: "n_nonce"})
		req.AddCookie(testExpiresCookie(time.Now().Add(time.Minute)))
		got, err := s.Read(ctx, req, "st_state")
		require.NoError(t, err)
		assert.Nil(t, got.PKCEVerifier())
		assert.Equal(t, "n_nonce", got.Nonce())
	})
	t.Run("malformed-verifier", func(t *testing.T) {
		s := NewStore()
		req := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
		req.AddCookie(&http.Cookie{Name: StateCookie, Value: "st_state"})
		req.AddCookie(&http.Cookie{Name: VerifierCookie, Value: "short"})
		req.AddCookie(testExpiresCookie(time.Now().Add(time.Minute)))
		_, err := s.Read(ctx, req, "st_state")
		assert.ErrorIs(t, err, oidc.ErrInvalidCodeVerifier)
	})
	t.Run("missing-or-malformed-expiry", func(t *testing.T) {
		s := NewStore()
		for _, value := range []string{"", "tomorrow"} {
			req := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
			req.AddCookie(&http.Cookie{Name: StateCookie, Value: "st_state"})
			if value != "" {
				req.AddCookie(&http.Cookie{Name: AttemptExpiresCookie, Value: value})
			}
			got, err := s.Read(ctx, req, "st_state")
			assert.ErrorIs(t, err, oidc.ErrNotFound, value)
			assert.Nil(t, got)
		}
	})
	t.Run("clear", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewStore().ClearPKCE(w)
		cookies := testCookies(w)
		require.Len(t, cookies, 4)
		for _, c := range cookies {
			assert.Equal(t, -1, c.MaxAge)
			assert.Empty(t, c.Value)
		}
	})
}

func TestStore_Session(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewStore(WithNow(func() time.Time { return now }))
	tk := &oidc.Token{
		AccessToken: "at_test",
		IDToken:     "header.payload.sig",
		TokenType:   "Bearer",
		ExpiresIn:   3600,
		ExpiresAt:   now.Add(time.Hour),
	}

	t.Run("write-read", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		w := httptest.NewRecorder()
		require.NoError(s.WriteSession(w, tk))
		cookies := testCookies(w)
		require.Len(cookies, 3)
		assert.Equal("at_test", cookies[AccessTokenCookie].Value)
		assert.Equal(3600, cookies[AccessTokenCookie].MaxAge)
		assert.True(cookies[AccessTokenCookie].HttpOnly)
		assert.Equal(strconv.FormatInt(now.UnixMilli()+3600000, 10), cookies[ExpiresAtCookie].Value)

		sess, err := s.FromRequest(testRequestWith(w))
		require.NoError(err)
		assert.Equal(oidc.AccessToken("at_test"), sess.AccessToken)
		assert.Equal(oidc.IDToken("header.payload.sig"), sess.IDToken)
		assert.Equal(now.Add(time.Hour).UnixMilli(), sess.ExpiresAt.UnixMilli())
	})
	t.Run("without-id-token", func(t *testing.T) {
		w := httptest.NewRecorder()
		require.NoError(t, s.WriteSession(w, &oidc.Token{AccessToken: "at_test", ExpiresIn: 60, ExpiresAt: now.Add(time.Minute)}))
		_, ok := testCookies(w)[IDTokenCookie]
		assert.False(t, ok)
	})
	t.Run("write-errors", func(t *testing.T) {
		assert.ErrorIs(t, s.WriteSession(httptest.NewRecorder(), nil), oidc.ErrNilParameter)
		assert.ErrorIs(t, s.WriteSession(httptest.NewRecorder(), &oidc.Token{}), oidc.ErrMissingAccessToken)
	})
	t.Run("expired", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "at_test"})
		req.AddCookie(&http.Cookie{Name: ExpiresAtCookie, Value: strconv.FormatInt(now.UnixMilli(), 10)})
		_, err := s.FromRequest(req)
		assert.ErrorIs(t, err, oidc.ErrSessionExpired)
		assert.Equal(t, oidc.KindSessionExpired, oidc.Classify(err))
	})
	t.Run("no-cookies", func(t *testing.T) {
		_, err := s.FromRequest(httptest.NewRequest(http.MethodGet, "/auth/me", nil))
		assert.ErrorIs(t, err, oidc.ErrSessionExpired)
	})
	t.Run("malformed-expiry", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "at_test"})
		req.AddCookie(&http.Cookie{Name: ExpiresAtCookie, Value: "tomorrow"})
		_, err := s.FromRequest(req)
		assert.ErrorIs(t, err, oidc.ErrSessionExpired)
	})
	t.Run("clear", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.ClearSession(w)
		assert.Len(t, testCookies(w), 7)
	})
}

func TestStore_Require(t *testing.T) {
	t.Parallel()
	s := NewStore()
	next := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		sess, ok := FromContext(req.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(sess.AccessToken))
	})
	var failErr error
	onFail := func(w http.ResponseWriter, _ *http.Request, err error) {
		failErr = err
		w.WriteHeader(http.StatusUnauthorized)
	}
	h := s.Require(next, onFail)

	t.Run("live", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "at_live"})
		req.AddCookie(&http.Cookie{Name: ExpiresAtCookie, Value: strconv.FormatInt(time.Now().Add(time.Hour).UnixMilli(), 10)})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "at_live", w.Body.String())
	})
	t.Run("missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.ErrorIs(t, failErr, oidc.ErrSessionExpired)
	})
}

func TestSession_IsExpired(t *testing.T) {
	t.Parallel()
	now := time.Now()
	tests := []struct {
		name string
		sess *Session
		want bool
	}{
		{name: "nil", sess: nil, want: true},
		{name: "no-token", sess: &Session{ExpiresAt: now.Add(time.Hour)}, want: true},
		{name: "no-expiry", sess: &Session{AccessToken: "at"}, want: false},
		{name: "future", sess: &Session{AccessToken: "at", ExpiresAt: now.Add(time.Second)}, want: false},
		{name: "now", sess: &Session{AccessToken: "at", ExpiresAt: now}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sess.IsExpired(now))
		})
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	sess := &Session{AccessToken: "at"}
	got, ok := FromContext(NewContext(context.Background(), sess))
	assert.True(t, ok)
	assert.Same(t, sess, got)
}
