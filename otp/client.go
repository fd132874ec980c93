// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-hclog"

	sdkhttp "github.com/businesshub/hubauth/sdk/http"
)

const maxResponseBody = 64 * 1024

// Client calls the downstream OTP gateway. It is safe for concurrent use.
type Client struct {
	gatewayURL string
	format     Format
	client     *http.Client
	timeout    time.Duration
	logger     hclog.Logger
	machine    MachineTokens
}

// NewClient creates a gateway client for gatewayURL speaking format.
func NewClient(gatewayURL string, format Format, opt ...Option) (*Client, error) {
	const op = "otp.NewClient"
	u, err := url.Parse(gatewayURL)
	switch {
	case gatewayURL == "":
		return nil, fmt.Errorf("%s: missing gateway url: %w", op, ErrInvalidConfig)
	case err != nil:
		return nil, fmt.Errorf("%s: invalid gateway url: %w: %w", op, ErrInvalidConfig, err)
	case u.Scheme != "http" && u.Scheme != "https", u.Host == "":
		return nil, fmt.Errorf("%s: gateway url %q must be an absolute http(s) url: %w", op, gatewayURL, ErrInvalidConfig)
	}
	if format != FormatXML && format != FormatJSON {
		return nil, fmt.Errorf("%s: unsupported format %q: %w", op, format, ErrInvalidConfig)
	}

	opts := getOpts(opt...)
	hc := opts.withHTTPClient
	if hc == nil {
		if hc, err = sdkhttp.NewClient(""); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return &Client{
		gatewayURL: gatewayURL,
		format:     format,
		client:     hc,
		timeout:    opts.withRequestTimeout,
		logger:     opts.withLogger,
		machine:    opts.withMachineTokens,
	}, nil
}

// Format returns the wire format the client speaks.
func (c *Client) Format() Format { return c.format }

// MachineMode reports whether an empty bearer is served by machine tokens.
func (c *Client) MachineMode() bool { return c.machine != nil }

// Send asks the gateway to generate and deliver an OTP. An empty bearer uses
// machine tokens when the client has them.
//
// When the gateway processed the request but did not answer CodeSuccess, the
// Result is returned together with a *ResponseCodeError.
func (c *Client) Send(ctx context.Context, bearer string, r SendRequest) (*Result, error) {
	const op = "otp.(Client).Send"
	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := c.call(ctx, bearer, OperationSend, r.fields(), r)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// Validate asks the gateway to check an OTP. Error semantics match Send.
func (c *Client) Validate(ctx context.Context, bearer string, r ValidateRequest) (*Result, error) {
	const op = "otp.(Client).Validate"
	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := c.call(ctx, bearer, OperationValidate, r.fields(), r)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func (c *Client) call(ctx context.Context, bearer string, op Operation, fields []field, jsonBody any) (*Result, error) {
	if bearer != "" {
		return c.roundTrip(ctx, bearer, op, fields, jsonBody)
	}
	if c.machine == nil {
		return nil, fmt.Errorf("missing bearer token: %w", ErrUnauthorized)
	}

	for attempt := 1; ; attempt++ {
		tk, err := c.machine.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to get machine token: %w", err)
		}
		res, err := c.roundTrip(ctx, tk, op, fields, jsonBody)
		if attempt == 1 && errors.Is(err, ErrUnauthorized) {
			c.logger.Debug("otp gateway rejected machine token, refreshing", "operation", op)
			c.machine.Invalidate()
			continue
		}
		return res, err
	}
}

func (c *Client) roundTrip(ctx context.Context, bearer string, op Operation, fields []field, jsonBody any) (*Result, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, op, fields, jsonBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("otp gateway unreachable", "operation", op, "error", err)
		return nil, sdkhttp.TransportError(string(op), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, sdkhttp.TransportError(string(op), err)
	}
	c.logger.Debug("otp gateway call", "operation", op, "status", resp.StatusCode, "elapsed", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, c.gatewayError(resp.StatusCode, body)
	}

	raw, err := c.decode(resp.StatusCode, body)
	if err != nil {
		return nil, err
	}
	res, err := Normalize(op, raw)
	if err != nil {
		return nil, err
	}
	if !res.Succeeded() {
		return res, &ResponseCodeError{Code: res.ResponseCode, Message: res.Message}
	}
	return res, nil
}

func (c *Client) newRequest(ctx context.Context, op Operation, fields []field, jsonBody any) (*http.Request, error) {
	switch c.format {
	case FormatXML:
		payload, err := buildEnvelope(op, fields)
		if err != nil {
			return nil, fmt.Errorf("unable to build soap envelope: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "text/xml; charset=utf-8")
		req.Header.Set("Accept", "text/xml")
		req.Header.Set("SOAPAction", fmt.Sprintf("%q", op))
		return req, nil
	default:
		payload, err := json.Marshal(jsonBody)
		if err != nil {
			return nil, fmt.Errorf("unable to encode request: %w", err)
		}
		endpoint, err := url.JoinPath(c.gatewayURL, jsonPath(op))
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}
}

func (c *Client) decode(status int, body []byte) (GatewayResponse, error) {
	if c.format == FormatXML {
		return parseEnvelope(body, status)
	}
	return parseJSON(body)
}

func (c *Client) gatewayError(status int, body []byte) error {
	if c.format == FormatXML {
		var gErr *GatewayError
		if _, err := parseEnvelope(body, status); errors.As(err, &gErr) {
			return gErr
		}
	}
	return &GatewayError{StatusCode: status, Body: body}
}

func jsonPath(op Operation) string {
	if op == OperationValidate {
		return "validate"
	}
	return "send"
}
