// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/businesshub/hubauth/oidc"
	"github.com/businesshub/hubauth/oidc/callback"
)

// Messages shown on the sign-in page. Internal errors never reach the
// browser.
const (
	msgSigninExpired     = "Your sign-in attempt has expired. Please sign in again."
	msgSigninInvalid     = "Your sign-in attempt could not be verified. Please sign in again."
	msgProviderTimeout   = "The identity provider did not respond in time. Please try again."
	msgProviderUnavail   = "The identity provider is unavailable. Please try again later."
	msgSigninFailed      = "Sign-in failed. Please try again."
	msgSessionNotCreated = "Your session could not be created. Please sign in again."
)

func (s *Server) callbackSuccess(_ string, t *oidc.Token, w http.ResponseWriter, req *http.Request) {
	s.store.ClearPKCE(w)
	if err := s.store.WriteSession(w, t); err != nil {
		s.logger.Error("unable to write session", "request_id", RequestID(req.Context()), "error", err)
		s.redirectToSignin(w, req, msgSessionNotCreated)
		return
	}
	s.logger.Info("session established", "request_id", RequestID(req.Context()), "expires_at", t.ExpiresAt)
	http.Redirect(w, req, s.postLoginPath, http.StatusFound)
}

func (s *Server) callbackFailed(_ string, respErr *callback.AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
	s.store.ClearPKCE(w)
	if respErr != nil {
		s.logger.Warn("provider returned an authentication error", "request_id", RequestID(req.Context()), "error", respErr.Error, "description", respErr.Description)
		s.redirectToSignin(w, req, respErr.Message())
		return
	}
	kind := oidc.Classify(e)
	s.logger.Error("sign-in callback failed", "request_id", RequestID(req.Context()), "kind", kind.String(), "error", e)
	s.redirectToSignin(w, req, callbackMessage(e, kind))
}

func callbackMessage(err error, kind oidc.Kind) string {
	switch {
	case errors.Is(err, oidc.ErrExpiredRequest), errors.Is(err, oidc.ErrNotFound):
		return msgSigninExpired
	case kind == oidc.KindProtocol:
		return msgSigninInvalid
	case kind == oidc.KindTimeout:
		return msgProviderTimeout
	case kind == oidc.KindTransport:
		return msgProviderUnavail
	default:
		return msgSigninFailed
	}
}

func (s *Server) redirectToSignin(w http.ResponseWriter, req *http.Request, msg string) {
	target := s.signinPath
	if msg != "" {
		target += "?" + url.Values{"auth_error": {msg}}.Encode()
	}
	http.Redirect(w, req, target, http.StatusFound)
}

func (s *Server) handleSignout(w http.ResponseWriter, req *http.Request) {
	s.store.ClearSession(w)
	http.Redirect(w, req, s.signinPath, http.StatusFound)
}
