// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/businesshub/hubauth/oidc"
)

func TestMe(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	env := newTestEnv(t, testEnvOpts{noOTP: true})

	resp := env.do(t, http.MethodGet, "/auth/me", "")
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(notAuthenticated{Error: oidc.ErrSessionExpired.Error()}, decodeBody[notAuthenticated](t, resp))

	env.signIn(t)
	resp = env.do(t, http.MethodGet, "/auth/me", "")
	assert.Equal(http.StatusOK, resp.StatusCode)
	got := decodeBody[map[string]interface{}](t, resp)
	assert.Equal(map[string]interface{}{
		"sub":             env.tp.Subject(),
		"name":            "Alice Doe",
		"email":           "alice@example.com",
		"isAuthenticated": true,
	}, got)
	assert.Equal(1, env.tp.UserInfoCalls())
}

func TestMe_Failures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		setup      func(env *testEnv)
		wantStatus int
		wantError  string
		wantCalls  int
	}{
		{
			name:       "userinfo-401",
			setup:      func(env *testEnv) { env.tp.SetUserInfoStatus(http.StatusUnauthorized) },
			wantStatus: http.StatusUnauthorized,
			wantError:  oidc.ErrUnauthorizedToken.Error(),
			wantCalls:  1,
		},
		{
			name:       "userinfo-403",
			setup:      func(env *testEnv) { env.tp.SetUserInfoStatus(http.StatusForbidden) },
			wantStatus: http.StatusUnauthorized,
			wantError:  oidc.ErrForbiddenToken.Error(),
			wantCalls:  1,
		},
		{
			name:       "userinfo-500",
			setup:      func(env *testEnv) { env.tp.SetUserInfoStatus(http.StatusInternalServerError) },
			wantStatus: http.StatusBadGateway,
			wantError:  "identity provider is unavailable",
			wantCalls:  1,
		},
		{
			name:       "session-expired",
			setup:      func(env *testEnv) { env.clock.Advance(time.Hour + time.Second) },
			wantStatus: http.StatusUnauthorized,
			wantError:  oidc.ErrSessionExpired.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert := assert.New(t)
			env := newTestEnv(t, testEnvOpts{noOTP: true})
			env.signIn(t)
			tt.setup(env)

			resp := env.do(t, http.MethodGet, "/auth/me", "")
			assert.Equal(tt.wantStatus, resp.StatusCode)
			got := decodeBody[notAuthenticated](t, resp)
			assert.False(got.IsAuthenticated)
			assert.Equal(tt.wantError, got.Error)
			assert.Equal(tt.wantCalls, env.tp.UserInfoCalls())
		})
	}
}
