// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package server exposes the sign-in flow, the current user's profile and
// the OTP gateway over http.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/businesshub/hubauth/oidc"
	"github.com/businesshub/hubauth/oidc/callback"
	"github.com/businesshub/hubauth/otp"
	"github.com/businesshub/hubauth/session"
)

const (
	DefaultSigninPath    = "/signin"
	DefaultPostLoginPath = "/otp"
)

// Provider is the identity provider behind the routes. *oidc.Provider
// satisfies it.
type Provider interface {
	callback.Exchanger
	AuthURL(ctx context.Context, oidcRequest oidc.Request) (string, error)
	UserInfo(ctx context.Context, t oidc.AccessToken) (map[string]interface{}, error)
}

var _ Provider = (*oidc.Provider)(nil)

// OTPGateway sends and validates one-time PINs. *otp.Client satisfies it.
type OTPGateway interface {
	Send(ctx context.Context, bearer string, r otp.SendRequest) (*otp.Result, error)
	Validate(ctx context.Context, bearer string, r otp.ValidateRequest) (*otp.Result, error)
	MachineMode() bool
}

var _ OTPGateway = (*otp.Client)(nil)

// Server holds the routes' dependencies.
type Server struct {
	provider      Provider
	store         *session.Store
	otp           OTPGateway
	logger        hclog.Logger
	signinPath    string
	postLoginPath string
	now           func() time.Time
	callback      http.HandlerFunc
}

// New creates a Server.
//
// Supported options: WithLogger, WithOTPGateway, WithSigninPath,
// WithPostLoginPath, WithNow
func New(p Provider, store *session.Store, opt ...Option) (*Server, error) {
	const op = "server.New"
	switch {
	case p == nil:
		return nil, fmt.Errorf("%s: provider is nil: %w", op, oidc.ErrNilParameter)
	case store == nil:
		return nil, fmt.Errorf("%s: session store is nil: %w", op, oidc.ErrNilParameter)
	}
	opts := getOpts(opt...)
	s := &Server{
		provider:      p,
		store:         store,
		otp:           opts.withOTP,
		logger:        opts.withLogger,
		signinPath:    opts.withSigninPath,
		postLoginPath: opts.withPostLoginPath,
		now:           opts.withNowFunc,
	}
	cb, err := callback.AuthCode(p, store, s.callbackSuccess, s.callbackFailed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.callback = cb
	return s, nil
}

// Handler returns the routes wrapped in the request id and logging
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/signin", s.handleSignin)
	mux.HandleFunc("GET /auth/callback", s.callback)
	mux.Handle("GET /auth/me", s.store.Require(http.HandlerFunc(s.handleMe), s.unauthenticated))
	mux.Handle("POST /auth/otp/send", s.store.Require(http.HandlerFunc(s.handleOTPSend), s.otpUnauthenticated))
	mux.Handle("POST /auth/otp/verify", s.store.Require(http.HandlerFunc(s.handleOTPVerify), s.otpUnauthenticated))
	mux.HandleFunc("POST /auth/signout", s.handleSignout)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return withRequestID(withLogging(s.logger, withRecovery(s.logger, mux)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
