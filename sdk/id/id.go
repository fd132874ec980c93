// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package id

import (
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// DefaultEntropy is the number of random bytes behind every id, which
// encodes to DefaultLength base64url characters.
const (
	DefaultEntropy = 24
	DefaultLength  = 32
)

// New generates a url-safe random id with an optional prefix. The random
// part is read from crypto/rand.
func New(optionalPrefix string) (string, error) {
	b, err := uuid.GenerateRandomBytes(DefaultEntropy)
	if err != nil {
		return "", fmt.Errorf("unable to generate id: %w", err)
	}
	id := base64.RawURLEncoding.EncodeToString(b)
	switch {
	case optionalPrefix != "":
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	default:
		return id, nil
	}
}

// NewRequestID returns a uuid suitable for correlating log lines for one
// inbound request.
func NewRequestID() (string, error) {
	rid, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("unable to generate request id: %w", err)
	}
	return rid, nil
}
