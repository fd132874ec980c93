// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package tokencache

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/go-uuid"
)

// JWTBearerAssertionType is the client_assertion_type for a signed JWT.
// https://www.rfc-editor.org/rfc/rfc7523.html#section-2.2
const JWTBearerAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// assertionLifetime is the exp of an assertion, relative to its iat.
const assertionLifetime = 5 * time.Minute

var (
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrCreatingSigner    = errors.New("error creating jwt signer")
)

// Assertion signs the client_assertion JWTs a client uses to authenticate
// itself to the token endpoint instead of a client secret, A.K.A.
// private_key_jwt. Each Serialize call yields a new token with a unique jti.
type Assertion struct {
	clientID string
	audience string
	keyID    string
	signer   jose.Signer

	// these are overwritten for testing
	genID func() (string, error)
	now   func() time.Time
}

// NewAssertion creates an Assertion signed with RS256 by the PEM encoded
// (PKCS #1 or PKCS #8) RSA private key. The audience is the token endpoint
// URL. The keyID is sent as the "kid" header when it isn't empty.
func NewAssertion(clientID, audience, privateKeyPEM, keyID string) (*Assertion, error) {
	const op = "tokencache.NewAssertion"
	switch {
	case clientID == "":
		return nil, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	case audience == "":
		return nil, fmt.Errorf("%s: audience is empty: %w", op, ErrInvalidParameter)
	}
	key, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sOpts := (&jose.SignerOptions{}).WithType("JWT")
	if keyID != "" {
		sOpts = sOpts.WithHeader("kid", keyID)
	}
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, sOpts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrCreatingSigner, err)
	}
	return &Assertion{
		clientID: clientID,
		audience: audience,
		keyID:    keyID,
		signer:   signer,
		genID:    uuid.GenerateUUID,
		now:      time.Now,
	}, nil
}

// Serialize returns a freshly signed client assertion.
func (a *Assertion) Serialize() (string, error) {
	const op = "tokencache.(Assertion).Serialize"
	id, err := a.genID()
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate token id: %w", op, err)
	}
	now := a.now().UTC()
	claims := jwt.Claims{
		Issuer:    a.clientID,
		Subject:   a.clientID,
		Audience:  jwt.Audience{a.audience},
		Expiry:    jwt.NewNumericDate(now.Add(assertionLifetime)),
		NotBefore: jwt.NewNumericDate(now.Add(-1 * time.Second)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        id,
	}
	token, err := jwt.Signed(a.signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("%s: failed to serialize token: %w", op, err)
	}
	return token, nil
}

func parseRSAPrivateKey(keyPEM string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(keyPEM))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found: %w", ErrInvalidPrivateKey)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is a %T, not RSA: %w", parsed, ErrInvalidPrivateKey)
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}
	return key, nil
}
