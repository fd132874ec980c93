// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"time"

	"github.com/businesshub/hubauth/oidc"
)

// Session is an established sign-in. It is built only from a successful code
// exchange and is gone once the user signs out or the cookies expire.
type Session struct {
	AccessToken oidc.AccessToken
	IDToken     oidc.IDToken
	// ExpiresAt is zero when the expiry cookie is absent.
	ExpiresAt time.Time
}

// IsExpired reports whether the session's access token has expired at now.
func (s *Session) IsExpired(now time.Time) bool {
	if s == nil || s.AccessToken == "" {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying sess.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext returns the session stored by Require.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(*Session)
	return sess, ok && sess != nil
}
