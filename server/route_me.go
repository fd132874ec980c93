// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"errors"
	"net/http"

	"github.com/businesshub/hubauth/oidc"
	"github.com/businesshub/hubauth/session"
)

type notAuthenticated struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	Error           string `json:"error"`
}

// handleMe returns the signed in user's claims from the userinfo endpoint.
func (s *Server) handleMe(w http.ResponseWriter, req *http.Request) {
	sess, ok := session.FromContext(req.Context())
	if !ok {
		s.unauthenticated(w, req, oidc.ErrSessionExpired)
		return
	}
	claims, err := s.provider.UserInfo(req.Context(), sess.AccessToken)
	if err != nil {
		s.logger.Warn("userinfo failed", "request_id", RequestID(req.Context()), "error", err)
		switch {
		case errors.Is(err, oidc.ErrUnauthorizedToken):
			writeJSON(w, http.StatusUnauthorized, notAuthenticated{Error: oidc.ErrUnauthorizedToken.Error()})
		case errors.Is(err, oidc.ErrForbiddenToken):
			writeJSON(w, http.StatusUnauthorized, notAuthenticated{Error: oidc.ErrForbiddenToken.Error()})
		case oidc.Classify(err) == oidc.KindTimeout:
			writeJSON(w, http.StatusGatewayTimeout, notAuthenticated{Error: "identity provider timed out"})
		default:
			writeJSON(w, http.StatusBadGateway, notAuthenticated{Error: "identity provider is unavailable"})
		}
		return
	}
	claims["isAuthenticated"] = true
	writeJSON(w, http.StatusOK, claims)
}

func (s *Server) unauthenticated(w http.ResponseWriter, _ *http.Request, _ error) {
	writeJSON(w, http.StatusUnauthorized, notAuthenticated{Error: oidc.ErrSessionExpired.Error()})
}
