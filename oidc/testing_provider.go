// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/businesshub/hubauth/sdk/id"
	"github.com/businesshub/hubauth/sdk/strutils"
	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// TestProvider is local server that supports test provider capabilities which
// make writing tests much easier. It behaves like the bank's identity
// provider: discovery, an authorization endpoint that requires a S256 code
// challenge, a token endpoint for the authorization_code (with PKCE) and
// client_credentials grants, a userinfo endpoint and a jwks endpoint.
//
// Access tokens issued by the authorization_code grant are accepted by
// /userinfo. Tokens issued by the client_credentials grant are answered with
// a 403, and unknown tokens with a 401.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	jwks          *jose.JSONWebKeySet
	keyID         string
	rsaPublicKey  string
	rsaPrivateKey string

	mu                  sync.Mutex
	clientID            string
	clientSecret        string
	allowedRedirectURIs []string
	replySubject        string
	replyUserinfo       map[string]interface{}
	expectedAuthCode    string
	expectedAuthNonce   string
	authError           string
	authErrorDesc       string
	expiresIn           int64
	omitAccessToken     bool
	omitIDToken         bool
	userInfoAsJWT       bool
	tokenDelay          time.Duration
	tokenErrorStatus    int
	tokenErrorBody      string
	userInfoStatus      int
	assertionKey        interface{}

	// state captured from /authorization, keyed by the issued code
	challenges map[string]string
	nonces     map[string]string
	usedCodes  map[string]bool

	userTokens    map[string]bool
	machineTokens map[string]bool

	authCodeCalls          int
	clientCredentialsCalls int
	userInfoCalls          int

	t *testing.T
}

// StartTestProvider creates a disposable TestProvider. It is stopped by
// t.Cleanup, but Stop may be called earlier to simulate an unreachable
// provider.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		t:     t,
		keyID: "test-signing-key",
		allowedRedirectURIs: []string{
			"https://example.com/auth/callback",
		},
		clientID:         "test-client-id",
		clientSecret:     "test-client-secret",
		expectedAuthCode: "test-auth-code",
		expiresIn:        3600,
		replySubject:     "alice@example.com",
		replyUserinfo: map[string]interface{}{
			"name":  "Alice Doe",
			"email": "alice@example.com",
		},
		challenges:    map[string]string{},
		nonces:        map[string]string{},
		usedCodes:     map[string]bool{},
		userTokens:    map[string]bool{},
		machineTokens: map[string]bool{},
	}
	p.rsaPublicKey, p.rsaPrivateKey = TestGenerateKeys(t)
	p.jwks = testJWKS(t, p.rsaPublicKey, p.keyID)

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	cert := p.httpServer.Certificate()

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the current base URL for the test provider's running webserver.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// AuthURL, TokenURL and UserInfoURL return the provider's endpoints.
func (p *TestProvider) AuthURL() string     { return p.Addr() + "/authorization" }
func (p *TestProvider) TokenURL() string    { return p.Addr() + "/token" }
func (p *TestProvider) UserInfoURL() string { return p.Addr() + "/userinfo" }

// SigningKeys returns the test provider's pem-encoded keys used to sign JWTs.
func (p *TestProvider) SigningKeys() (pub, priv string) {
	return p.rsaPublicKey, p.rsaPrivateKey
}

// ClientCreds returns the client id and secret the provider accepts.
func (p *TestProvider) ClientCreds() (clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientID, p.clientSecret
}

// SetClientCreds is for configuring the client information required for the
// OIDC workflows.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetExpectedAuthCode configures the auth code to return from /authorization
// and the allowed auth code for /token. Previously used codes are forgotten.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
	p.usedCodes = map[string]bool{}
}

// SetExpectedAuthNonce configures the nonce value required for /authorization
// and embedded in id_tokens for codes that did not pass through it.
func (p *TestProvider) SetExpectedAuthNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthNonce = nonce
}

// SetAllowedRedirectURIs allows you to configure the allowed redirect URIs for
// the OIDC workflow.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetAuthError makes /authorization redirect back with the error and
// optional error_description instead of a code.
func (p *TestProvider) SetAuthError(errorCode, description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authError = errorCode
	p.authErrorDesc = description
}

// SetExpiresIn configures the expires_in of issued tokens. Zero omits it.
func (p *TestProvider) SetExpiresIn(seconds int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiresIn = seconds
}

// OmitAccessToken forces an error state where /token answers 200 without an
// access_token.
func (p *TestProvider) OmitAccessToken() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitAccessToken = true
}

// OmitIDTokens forces /token to not return an id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// SetTokenError makes /token answer with the status and raw body.
func (p *TestProvider) SetTokenError(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenErrorStatus = status
	p.tokenErrorBody = body
}

// SetTokenDelay delays every /token response.
func (p *TestProvider) SetTokenDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenDelay = d
}

// SetUserInfoStatus makes /userinfo answer with the status regardless of the
// token presented. Zero restores the default behavior.
func (p *TestProvider) SetUserInfoStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfoStatus = status
}

// SetClientAssertionKey makes the client_credentials grant accept
// client_assertion JWTs signed by the private half of the PEM encoded public
// key.
func (p *TestProvider) SetClientAssertionKey(pubPEM string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	block, _ := pem.Decode([]byte(pubPEM))
	require.NotNil(p.t, block)
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(p.t, err)
	p.assertionKey = key
}

// SetUserInfoReply configures the claims returned by /userinfo in addition to
// "sub".
func (p *TestProvider) SetUserInfoReply(claims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyUserinfo = claims
}

// SetUserInfoAsJWT makes /userinfo return a signed application/jwt response.
func (p *TestProvider) SetUserInfoAsJWT(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfoAsJWT = enabled
}

// Subject returns the "sub" claim of issued id_tokens and userinfo replies.
func (p *TestProvider) Subject() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.replySubject
}

// AuthCodeCalls returns the number of authorization_code grants received.
func (p *TestProvider) AuthCodeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authCodeCalls
}

// ClientCredentialsCalls returns the number of client_credentials grants
// received.
func (p *TestProvider) ClientCredentialsCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientCredentialsCalls
}

// UserInfoCalls returns the number of /userinfo requests received.
func (p *TestProvider) UserInfoCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userInfoCalls
}

// IssueUserToken returns an access token /userinfo will accept, without a
// round trip through /authorization and /token.
func (p *TestProvider) IssueUserToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	tk := p.newAccessToken()
	p.userTokens[tk] = true
	return tk
}

// IssueIDToken returns an id_token signed by the provider for the nonce.
// Optional audiences replace the client id as the "aud" claim.
func (p *TestProvider) IssueIDToken(nonce string, expireIn time.Duration, audiences ...string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signIDToken(nonce, expireIn, audiences...)
}

// must be called while holding p.mu
func (p *TestProvider) newAccessToken() string {
	tk, err := id.New("at")
	require.NoError(p.t, err)
	return tk
}

// must be called while holding p.mu
func (p *TestProvider) signIDToken(nonce string, expireIn time.Duration, audiences ...string) string {
	if len(audiences) == 0 {
		audiences = []string{p.clientID}
	}
	now := time.Now()
	claims := jwt.Claims{
		Subject:   p.replySubject,
		Issuer:    p.Addr(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
		Expiry:    jwt.NewNumericDate(now.Add(expireIn)),
		Audience:  jwt.Audience(audiences),
	}
	return TestSignJWT(p.t, p.rsaPrivateKey, p.keyID, claims, map[string]interface{}{"nonce": nonce})
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()

	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)

	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}

	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(&body)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.t.Helper()

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reply := struct {
			Issuer           string   `json:"issuer"`
			AuthEndpoint     string   `json:"authorization_endpoint"`
			TokenEndpoint    string   `json:"token_endpoint"`
			JWKSURI          string   `json:"jwks_uri"`
			UserinfoEndpoint string   `json:"userinfo_endpoint"`
			Algs             []string `json:"id_token_signing_alg_values_supported"`
		}{
			Issuer:           p.Addr(),
			AuthEndpoint:     p.AuthURL(),
			TokenEndpoint:    p.TokenURL(),
			JWKSURI:          p.Addr() + "/certs",
			UserinfoEndpoint: p.UserInfoURL(),
			Algs:             []string{string(RS256)},
		}
		_ = p.writeJSON(w, &reply)

	case "/authorization":
		p.handleAuthorization(w, req)

	case "/certs":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = p.writeJSON(w, p.jwks)

	case "/token":
		p.handleToken(w, req)

	case "/userinfo":
		p.handleUserInfo(w, req)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *TestProvider) handleAuthorization(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	qv := req.URL.Query()

	redirectURI := qv.Get("redirect_uri")
	if !strutils.StrListContains(p.allowedRedirectURIs, redirectURI) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	switch {
	case p.authError != "":
		p.writeAuthErrorResponse(w, req, p.authError, p.authErrorDesc)
		return
	case qv.Get("response_type") != "code":
		p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
		return
	case qv.Get("client_id") != p.clientID:
		p.writeAuthErrorResponse(w, req, "unauthorized_client", "unknown client_id")
		return
	case !strutils.StrListContains(strings.Fields(qv.Get("scope")), "openid"):
		p.writeAuthErrorResponse(w, req, "invalid_scope", "")
		return
	case qv.Get("code_challenge_method") != string(S256), qv.Get("code_challenge") == "":
		p.writeAuthErrorResponse(w, req, "invalid_request", "PKCE S256 code challenge is required")
		return
	case qv.Get("state") == "":
		p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
		return
	case p.expectedAuthCode == "":
		p.writeAuthErrorResponse(w, req, "access_denied", "")
		return
	}
	nonce := qv.Get("nonce")
	if p.expectedAuthNonce != "" && p.expectedAuthNonce != nonce {
		p.writeAuthErrorResponse(w, req, "access_denied", "")
		return
	}
	p.challenges[p.expectedAuthCode] = qv.Get("code_challenge")
	p.nonces[p.expectedAuthCode] = nonce

	redirectURI += "?state=" + url.QueryEscape(qv.Get("state")) +
		"&code=" + url.QueryEscape(p.expectedAuthCode)
	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) handleToken(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p.mu.Lock()
	delay := p.tokenDelay
	p.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-req.Context().Done():
			return
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := req.ParseForm(); err != nil {
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "unable to parse form")
		return
	}
	switch req.PostForm.Get("grant_type") {
	case "authorization_code":
		p.authCodeCalls++
		p.handleAuthCodeGrant(w, req)
	case "client_credentials":
		p.clientCredentialsCalls++
		p.handleClientCredentialsGrant(w, req)
	default:
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "unsupported_grant_type", "bad grant_type")
	}
}

// must be called while holding p.mu
func (p *TestProvider) handleAuthCodeGrant(w http.ResponseWriter, req *http.Request) {
	form := req.PostForm
	switch {
	case p.tokenErrorStatus != 0:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(p.tokenErrorStatus)
		_, _ = w.Write([]byte(p.tokenErrorBody))
		return
	case form.Get("client_id") != p.clientID || form.Get("client_secret") != p.clientSecret:
		p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "client credentials must be in the request body")
		return
	case !strutils.StrListContains(p.allowedRedirectURIs, form.Get("redirect_uri")):
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
		return
	case form.Get("code") != p.expectedAuthCode, p.usedCodes[form.Get("code")]:
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code")
		return
	}
	code := form.Get("code")
	verifier := form.Get("code_verifier")
	if verifier == "" {
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "code_verifier is required")
		return
	}
	if challenge, ok := p.challenges[code]; ok && oauth2.S256ChallengeFromVerifier(verifier) != challenge {
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "PKCE verification failed")
		return
	}
	p.usedCodes[code] = true

	nonce, ok := p.nonces[code]
	if !ok {
		nonce = p.expectedAuthNonce
	}
	delete(p.challenges, code)
	delete(p.nonces, code)

	reply := map[string]interface{}{
		"token_type": "Bearer",
		"scope":      "openid profile email",
	}
	if p.expiresIn > 0 {
		reply["expires_in"] = p.expiresIn
	}
	if !p.omitAccessToken {
		tk := p.newAccessToken()
		p.userTokens[tk] = true
		reply["access_token"] = tk
	}
	if !p.omitIDToken {
		lifetime := time.Duration(p.expiresIn) * time.Second
		if lifetime <= 0 {
			lifetime = time.Hour
		}
		reply["id_token"] = p.signIDToken(nonce, lifetime)
	}
	_ = p.writeJSON(w, reply)
}

// must be called while holding p.mu
func (p *TestProvider) handleClientCredentialsGrant(w http.ResponseWriter, req *http.Request) {
	if req.PostForm.Get("client_assertion_type") == clientAssertionType {
		if !p.validClientAssertion(req.PostForm.Get("client_id"), req.PostForm.Get("client_assertion")) {
			p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "client assertion rejected")
			return
		}
		p.issueMachineToken(w)
		return
	}
	clientID, clientSecret, ok := req.BasicAuth()
	if ok {
		clientID, _ = url.QueryUnescape(clientID)
		clientSecret, _ = url.QueryUnescape(clientSecret)
	} else {
		clientID, clientSecret = req.PostForm.Get("client_id"), req.PostForm.Get("client_secret")
	}
	if clientID != p.clientID || clientSecret != p.clientSecret {
		p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "")
		return
	}
	p.issueMachineToken(w)
}

// must be called while holding p.mu
func (p *TestProvider) validClientAssertion(clientID, raw string) bool {
	if p.assertionKey == nil || clientID != p.clientID {
		return false
	}
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return false
	}
	var claims jwt.Claims
	if err := tok.Claims(p.assertionKey, &claims); err != nil {
		return false
	}
	err = claims.ValidateWithLeeway(jwt.Expected{
		Issuer:      p.clientID,
		Subject:     p.clientID,
		AnyAudience: jwt.Audience{p.TokenURL()},
		Time:        time.Now(),
	}, time.Minute)
	return err == nil && claims.ID != ""
}

// must be called while holding p.mu
func (p *TestProvider) issueMachineToken(w http.ResponseWriter) {
	tk := p.newAccessToken()
	p.machineTokens[tk] = true
	reply := map[string]interface{}{
		"access_token": tk,
		"token_type":   "Bearer",
	}
	if p.expiresIn > 0 {
		reply["expires_in"] = p.expiresIn
	}
	_ = p.writeJSON(w, reply)
}

func (p *TestProvider) handleUserInfo(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p.userInfoCalls++
	if p.userInfoStatus != 0 {
		w.WriteHeader(p.userInfoStatus)
		_, _ = w.Write([]byte(`{"error":"forced"}`))
		return
	}
	tk := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
	switch {
	case p.machineTokens[tk]:
		w.WriteHeader(http.StatusForbidden)
		return
	case !p.userTokens[tk]:
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	claims := map[string]interface{}{"sub": p.replySubject}
	for k, v := range p.replyUserinfo {
		claims[k] = v
	}
	if p.userInfoAsJWT {
		w.Header().Set("Content-Type", "application/jwt")
		_, _ = w.Write([]byte(TestSignJWT(p.t, p.rsaPrivateKey, p.keyID, jwt.Claims{Issuer: p.Addr()}, claims)))
		return
	}
	_ = p.writeJSON(w, claims)
}

// testJWKS converts a pem-encoded public key into JWKS data suitable for a
// verification endpoint response
func testJWKS(t *testing.T, pubKey, keyID string) *jose.JSONWebKeySet {
	t.Helper()
	require := require.New(t)

	block, _ := pem.Decode([]byte(pubKey))
	require.NotNil(block)

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(err)

	return &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       pub,
				KeyID:     keyID,
				Algorithm: string(jose.RS256),
				Use:       "sig",
			},
		},
	}
}

// TestConfig returns a Config for the provider that discovers its endpoints,
// trusts its CA and redirects to the first allowed redirect URI. Options are
// applied last, so WithIssuer("") with WithEndpoints yields a config without
// discovery.
func (p *TestProvider) TestConfig(t *testing.T, opt ...Option) *Config {
	t.Helper()
	p.mu.Lock()
	clientID, clientSecret := p.clientID, p.clientSecret
	redirectURL := p.allowedRedirectURIs[0]
	p.mu.Unlock()

	opts := append([]Option{
		WithIssuer(p.Addr()),
		WithProviderCA(p.CACert()),
		WithScopes("profile", "email"),
	}, opt...)
	c, err := NewConfig(clientID, ClientSecret(clientSecret), redirectURL, opts...)
	require.NoError(t, err)
	return c
}

// TestEndpoints returns an option that configures the provider's endpoints
// explicitly and disables discovery.
func (p *TestProvider) TestEndpoints() Option {
	return func(o interface{}) {
		WithIssuer("")(o)
		WithEndpoints(p.AuthURL(), p.TokenURL(), p.UserInfoURL())(o)
	}
}

// TestAuthorize follows authURL to the provider's /authorization endpoint
// and returns the code and state it redirected back with. When the provider
// redirected with an error, code is empty and state holds the error.
func (p *TestProvider) TestAuthorize(t *testing.T, authURL string) (code, state string) {
	t.Helper()
	require := require.New(t)
	client := *p.httpServer.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := client.Get(authURL)
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(err)
	if e := loc.Query().Get("error"); e != "" {
		return "", e
	}
	return loc.Query().Get("code"), loc.Query().Get("state")
}
