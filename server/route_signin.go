// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"github.com/businesshub/hubauth/oidc"
)

const (
	maxBodyBytes = 16 * 1024
	maxUILocales = 5
)

type signinRequest struct {
	Username string `json:"username"`
}

type signinResponse struct {
	AuthorizationURL string `json:"authorizationUrl"`
}

// handleSignin starts a sign-in attempt: it stores a fresh state, nonce and
// PKCE verifier in cookies and returns the provider's authorization url.
func (s *Server) handleSignin(w http.ResponseWriter, req *http.Request) {
	var body signinRequest
	if err := decodeJSON(w, req, &body); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body must be a JSON object"})
		return
	}

	opts := []oidc.Option{oidc.WithNow(s.now)}
	if u := strings.TrimSpace(body.Username); u != "" {
		opts = append(opts, oidc.WithLoginHint(u))
	}
	if tags := uiLocales(req.Header.Get("Accept-Language")); len(tags) > 0 {
		opts = append(opts, oidc.WithUILocales(tags...))
	}

	oidcRequest, err := oidc.NewRequest(s.store.PKCETTL(), opts...)
	if err != nil {
		s.signinFailed(w, req, err)
		return
	}
	authURL, err := s.provider.AuthURL(req.Context(), oidcRequest)
	if err != nil {
		s.signinFailed(w, req, err)
		return
	}
	if err := s.store.WritePKCE(w, oidcRequest); err != nil {
		s.signinFailed(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, signinResponse{AuthorizationURL: authURL})
}

func (s *Server) signinFailed(w http.ResponseWriter, req *http.Request, err error) {
	s.logger.Error("unable to start sign-in", "request_id", RequestID(req.Context()), "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "unable to start sign-in"})
}

// uiLocales parses an Accept-Language header, best first. Malformed headers
// are ignored.
func uiLocales(header string) []language.Tag {
	if header == "" {
		return nil
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return nil
	}
	out := make([]language.Tag, 0, len(tags))
	for _, t := range tags {
		if t == language.Und {
			continue
		}
		out = append(out, t)
		if len(out) == maxUILocales {
			break
		}
	}
	return out
}

// decodeJSON decodes a bounded request body. An empty body returns io.EOF.
func decodeJSON(w http.ResponseWriter, req *http.Request, v interface{}) error {
	if req.Body == nil {
		return io.EOF
	}
	return json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes)).Decode(v)
}
