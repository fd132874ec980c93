// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package otp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// JSONResponse is a decoded JSON gateway response.
type JSONResponse struct {
	ReferenceNumber  string       `json:"referenceNumber"`
	MaskedCellNumber string       `json:"maskedCellNumber,omitempty"`
	ResponseCode     ResponseCode `json:"responseCode"`
	ResponseMessage  string       `json:"responseMessage,omitempty"`
}

func (*JSONResponse) isGatewayResponse() {}

// ResponseCode accepts either "0000" or 0 on the wire. Numeric codes are
// zero padded to four digits.
type ResponseCode string

func (c *ResponseCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = ResponseCode(s)
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("response code %s is neither a string nor an integer", b)
	}
	*c = ResponseCode(fmt.Sprintf("%04d", n))
	return nil
}

func parseJSON(raw []byte) (*JSONResponse, error) {
	const op = "otp.parseJSON"
	var resp JSONResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformedResponse, err)
	}
	if resp.ResponseCode == "" {
		return nil, fmt.Errorf("%s: missing response code: %w", op, ErrMalformedResponse)
	}
	return &resp, nil
}
