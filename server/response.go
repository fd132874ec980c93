// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"encoding/json"
	"net/http"
	"strconv"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the error body of the OTP routes.
type ErrorResponse struct {
	HTTPCode        string `json:"httpCode"`
	HTTPMessage     string `json:"httpMessage"`
	MoreInformation string `json:"moreInformation"`
}

func writeError(w http.ResponseWriter, status int, moreInformation string) {
	writeJSON(w, status, ErrorResponse{
		HTTPCode:        strconv.Itoa(status),
		HTTPMessage:     http.StatusText(status),
		MoreInformation: moreInformation,
	})
}
