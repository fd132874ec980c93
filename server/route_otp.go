// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/businesshub/hubauth/oidc"
	"github.com/businesshub/hubauth/otp"
	sdkhttp "github.com/businesshub/hubauth/sdk/http"
	"github.com/businesshub/hubauth/session"
)

const (
	msgOTPNotConfigured = "The OTP service is not configured."
	msgOTPSession       = "Your session has expired. Please sign in again."
	msgOTPBody          = "Request body must be a JSON object."
	msgOTPRejectedToken = "The OTP service rejected your session. Please sign in again."
	msgOTPTimeout       = "The OTP service did not respond in time. Please try again."
	msgOTPUnavailable   = "The OTP service is unavailable. Please try again later."
	msgOTPSendFields    = "cellNumber, idNumber and referenceNumber are required."
	msgOTPVerifyFields  = "otpValue, referenceNumber and idNumber are required."
)

type otpResponse struct {
	ReferenceNumber string `json:"referenceNumber"`
}

func (s *Server) handleOTPSend(w http.ResponseWriter, req *http.Request) {
	var body otp.SendRequest
	s.otpCall(w, req, &body, msgOTPSendFields, func(ctx context.Context, bearer string) (*otp.Result, error) {
		return s.otp.Send(ctx, bearer, body)
	})
}

func (s *Server) handleOTPVerify(w http.ResponseWriter, req *http.Request) {
	var body otp.ValidateRequest
	s.otpCall(w, req, &body, msgOTPVerifyFields, func(ctx context.Context, bearer string) (*otp.Result, error) {
		return s.otp.Validate(ctx, bearer, body)
	})
}

// otpCall decodes body and calls the gateway for a request that passed the
// session guard. The session's access token is the bearer unless the gateway is in machine
// mode.
func (s *Server) otpCall(w http.ResponseWriter, req *http.Request, body interface{}, fieldsMsg string, call func(ctx context.Context, bearer string) (*otp.Result, error)) {
	if s.otp == nil {
		writeError(w, http.StatusInternalServerError, msgOTPNotConfigured)
		return
	}
	sess, ok := session.FromContext(req.Context())
	if !ok {
		s.otpUnauthenticated(w, req, oidc.ErrSessionExpired)
		return
	}
	if err := decodeJSON(w, req, body); err != nil {
		writeError(w, http.StatusBadRequest, msgOTPBody)
		return
	}
	var bearer string
	if !s.otp.MachineMode() {
		bearer = string(sess.AccessToken)
	}

	res, err := call(req.Context(), bearer)
	if err != nil {
		status, msg := otpFailure(err, fieldsMsg)
		s.logger.Warn("otp gateway call failed", "request_id", RequestID(req.Context()), "path", req.URL.Path, "status", status, "error", err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, otpResponse{ReferenceNumber: res.ReferenceNumber})
}

// otpUnauthenticated answers requests without a live session.
func (s *Server) otpUnauthenticated(w http.ResponseWriter, _ *http.Request, _ error) {
	writeError(w, http.StatusUnauthorized, msgOTPSession)
}

func otpFailure(err error, fieldsMsg string) (int, string) {
	var codeErr *otp.ResponseCodeError
	switch {
	case errors.As(err, &codeErr):
		if codeErr.UserError() {
			return http.StatusBadRequest, codeErr.Message
		}
		return http.StatusInternalServerError, codeErr.Message
	case errors.Is(err, otp.ErrInvalidParameter):
		return http.StatusBadRequest, fieldsMsg
	case errors.Is(err, otp.ErrUnauthorized):
		return http.StatusUnauthorized, msgOTPRejectedToken
	case errors.Is(err, sdkhttp.ErrGatewayTimeout):
		return http.StatusGatewayTimeout, msgOTPTimeout
	default:
		return http.StatusInternalServerError, msgOTPUnavailable
	}
}
