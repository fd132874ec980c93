// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package config loads the gateway's configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"

	"github.com/businesshub/hubauth/oidc"
	"github.com/businesshub/hubauth/otp"
	sdkhttp "github.com/businesshub/hubauth/sdk/http"
	"github.com/businesshub/hubauth/session"
	"github.com/businesshub/hubauth/tokencache"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// OTP bearer token sources.
const (
	AuthModeSession = "session"
	AuthModeMachine = "machine"
)

// EnvProduction enables Secure cookies.
const EnvProduction = "production"

// Config is the complete gateway configuration.
type Config struct {
	Addr        string `env:"HUBAUTH_ADDR" envDefault:":8080"`
	Environment string `env:"HUBAUTH_ENV" envDefault:"production"`

	OIDC    OIDC
	Machine Machine
	OTP     OTP

	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" envDefault:"12s"`
	TokenCacheBuffer time.Duration `env:"TOKEN_CACHE_BUFFER" envDefault:"30s"`
	PKCETTL          time.Duration `env:"PKCE_TTL" envDefault:"5m"`

	SigninPath    string `env:"SIGNIN_PATH" envDefault:"/signin"`
	PostLoginPath string `env:"POST_LOGIN_PATH" envDefault:"/otp"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// OIDC configures the customer facing authorization code flow.
type OIDC struct {
	Issuer       string   `env:"OIDC_ISSUER"`
	AuthURL      string   `env:"OIDC_AUTHORIZATION_URL"`
	TokenURL     string   `env:"OIDC_TOKEN_URL"`
	UserInfoURL  string   `env:"OIDC_USERINFO_URL"`
	ClientID     string   `env:"OIDC_CLIENT_ID"`
	ClientSecret string   `env:"OIDC_CLIENT_SECRET"`
	RedirectURI  string   `env:"OIDC_REDIRECT_URI"`
	Scopes       []string `env:"OIDC_SCOPES" envDefault:"openid,profile,email" envSeparator:","`
	Audiences    []string `env:"OIDC_AUDIENCES" envSeparator:","`
	// ProviderCA is a PEM bundle. ProviderCAFile is read when it's empty.
	ProviderCA     string `env:"OIDC_PROVIDER_CA"`
	ProviderCAFile string `env:"OIDC_PROVIDER_CA_FILE,file"`
}

// Machine configures client credentials for machine-to-machine calls. Unset
// client values fall back to the OIDC client.
type Machine struct {
	ClientID     string   `env:"MACHINE_CLIENT_ID"`
	ClientSecret string   `env:"MACHINE_CLIENT_SECRET"`
	Scopes       []string `env:"MACHINE_SCOPES" envSeparator:","`
	TokenURL     string   `env:"MACHINE_TOKEN_URL"`
	// PrivateKey switches the client to private_key_jwt authentication.
	PrivateKey        string `env:"MACHINE_PRIVATE_KEY_FILE,file"`
	KeyID             string `env:"MACHINE_KEY_ID"`
	AssertionAudience string `env:"MACHINE_ASSERTION_AUDIENCE"`
}

// OTP configures the downstream OTP gateway.
type OTP struct {
	GatewayURL string `env:"OTP_GATEWAY_URL"`
	Format     string `env:"OTP_GATEWAY_FORMAT" envDefault:"xml"`
	AuthMode   string `env:"OTP_AUTH_MODE" envDefault:"session"`
}

// Load reads envFile (when set) into the process environment, then parses
// the environment. Without an envFile a .env in the working directory is
// loaded if present. Variables already set are never overridden.
func Load(envFile string) (*Config, error) {
	const op = "config.Load"
	switch {
	case envFile != "":
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("%s: unable to load %s: %w", op, envFile, err)
		}
	default:
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: unable to load .env: %w", op, err)
		}
	}
	c, err := parse(env.Options{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// FromMap parses vars instead of the process environment.
func FromMap(vars map[string]string) (*Config, error) {
	const op = "config.FromMap"
	c, err := parse(env.Options{Environment: vars})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

func parse(opts env.Options) (*Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.OIDC.ProviderCA == "" {
		c.OIDC.ProviderCA = c.OIDC.ProviderCAFile
	}
	c.OTP.Format = strings.ToLower(c.OTP.Format)
	c.OTP.AuthMode = strings.ToLower(c.OTP.AuthMode)
	return &c, nil
}

// Validate checks the configuration, returning every problem found.
func (c *Config) Validate() error {
	const op = "config.(Config).Validate"
	var result *multierror.Error
	fail := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidConfig))
	}

	if _, err := c.oidcConfig(); err != nil {
		result = multierror.Append(result, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	if c.Addr == "" {
		fail("HUBAUTH_ADDR is empty")
	}
	if c.HTTPTimeout <= 0 {
		fail("HTTP_TIMEOUT must be positive")
	}
	if c.TokenCacheBuffer < 0 {
		fail("TOKEN_CACHE_BUFFER must not be negative")
	}
	if c.PKCETTL <= 0 {
		fail("PKCE_TTL must be positive")
	}
	for name, p := range map[string]string{"SIGNIN_PATH": c.SigninPath, "POST_LOGIN_PATH": c.PostLoginPath} {
		// a leading "//" would be a protocol relative redirect
		if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
			fail("%s %q must be an absolute path", name, p)
		}
	}

	if c.OTP.GatewayURL != "" {
		if _, err := otp.ParseFormat(c.OTP.Format); err != nil {
			fail("OTP_GATEWAY_FORMAT %q must be xml or json", c.OTP.Format)
		}
	}
	switch c.OTP.AuthMode {
	case AuthModeSession:
	case AuthModeMachine:
		if c.Machine.TokenURL == "" && c.OIDC.TokenURL == "" && c.OIDC.Issuer == "" {
			fail("OTP_AUTH_MODE=machine needs MACHINE_TOKEN_URL, OIDC_TOKEN_URL or OIDC_ISSUER")
		}
		if c.Machine.PrivateKey != "" && c.MachineAssertionAudience() == "" {
			fail("MACHINE_PRIVATE_KEY_FILE needs MACHINE_ASSERTION_AUDIENCE or a token url")
		}
	default:
		fail("OTP_AUTH_MODE %q must be %s or %s", c.OTP.AuthMode, AuthModeSession, AuthModeMachine)
	}

	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		fail("LOG_LEVEL %q is not a log level", c.LogLevel)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		fail("LOG_FORMAT %q must be json or text", c.LogFormat)
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// OIDCConfig returns the validated provider configuration.
func (c *Config) OIDCConfig() (*oidc.Config, error) {
	const op = "config.(Config).OIDCConfig"
	oc, err := c.oidcConfig()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return oc, nil
}

func (c *Config) oidcConfig() (*oidc.Config, error) {
	opts := []oidc.Option{
		oidc.WithIssuer(c.OIDC.Issuer),
		oidc.WithEndpoints(c.OIDC.AuthURL, c.OIDC.TokenURL, c.OIDC.UserInfoURL),
		oidc.WithScopes(c.OIDC.Scopes...),
		oidc.WithRequestTimeout(c.HTTPTimeout),
	}
	if len(c.OIDC.Audiences) > 0 {
		opts = append(opts, oidc.WithAudiences(c.OIDC.Audiences...))
	}
	if c.OIDC.ProviderCA != "" {
		opts = append(opts, oidc.WithProviderCA(c.OIDC.ProviderCA))
	}
	return oidc.NewConfig(c.OIDC.ClientID, oidc.ClientSecret(c.OIDC.ClientSecret), c.OIDC.RedirectURI, opts...)
}

// SecureCookies reports whether cookies should carry the Secure attribute.
func (c *Config) SecureCookies() bool {
	return c.Environment == EnvProduction
}

// SessionOptions returns the cookie store options.
func (c *Config) SessionOptions(logger hclog.Logger) []session.Option {
	return []session.Option{
		session.WithSecure(c.SecureCookies()),
		session.WithPKCETTL(c.PKCETTL),
		session.WithLogger(logger),
	}
}

// MachineClientID returns the client credentials client id.
func (c *Config) MachineClientID() string {
	if c.Machine.ClientID != "" {
		return c.Machine.ClientID
	}
	return c.OIDC.ClientID
}

// MachineClientSecret returns the client credentials secret.
func (c *Config) MachineClientSecret() string {
	if c.Machine.ClientSecret != "" {
		return c.Machine.ClientSecret
	}
	return c.OIDC.ClientSecret
}

// MachineTokenURL returns the configured client credentials token url, or
// discovered when nothing is configured.
func (c *Config) MachineTokenURL(discovered string) string {
	switch {
	case c.Machine.TokenURL != "":
		return c.Machine.TokenURL
	case c.OIDC.TokenURL != "":
		return c.OIDC.TokenURL
	default:
		return discovered
	}
}

// MachineAssertionAudience is the aud of private_key_jwt assertions.
func (c *Config) MachineAssertionAudience() string {
	if c.Machine.AssertionAudience != "" {
		return c.Machine.AssertionAudience
	}
	return c.MachineTokenURL("")
}

// MachineTokens builds the client credentials token cache. tokenURL is the
// discovered token endpoint and is used only when none is configured.
func (c *Config) MachineTokens(tokenURL string, logger hclog.Logger) (*tokencache.Cache, error) {
	const op = "config.(Config).MachineTokens"
	tokenURL = c.MachineTokenURL(tokenURL)

	hc, err := sdkhttp.NewClient(c.OIDC.ProviderCA, sdkhttp.WithTimeout(c.HTTPTimeout))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := []tokencache.Option{
		tokencache.WithHTTPClient(hc),
		tokencache.WithLogger(logger),
		tokencache.WithScopes(c.Machine.Scopes...),
		tokencache.WithSafetyBuffer(c.TokenCacheBuffer),
	}
	if c.Machine.PrivateKey != "" {
		aud := c.Machine.AssertionAudience
		if aud == "" {
			aud = tokenURL
		}
		a, err := tokencache.NewAssertion(c.MachineClientID(), aud, c.Machine.PrivateKey, c.Machine.KeyID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		opts = append(opts, tokencache.WithAssertion(a))
	}
	cc, err := tokencache.NewClientCredentials(tokenURL, c.MachineClientID(), c.MachineClientSecret(), opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cache, err := tokencache.New(cc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cache, nil
}

// OTPClient builds the gateway client, or returns nil when no gateway is
// configured. machine is used only in machine auth mode.
func (c *Config) OTPClient(machine otp.MachineTokens, logger hclog.Logger) (*otp.Client, error) {
	const op = "config.(Config).OTPClient"
	if c.OTP.GatewayURL == "" {
		return nil, nil
	}
	format, err := otp.ParseFormat(c.OTP.Format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	hc, err := sdkhttp.NewClient("", sdkhttp.WithTimeout(c.HTTPTimeout))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := []otp.Option{
		otp.WithHTTPClient(hc),
		otp.WithRequestTimeout(c.HTTPTimeout),
		otp.WithLogger(logger),
	}
	if c.OTP.AuthMode == AuthModeMachine && machine != nil {
		opts = append(opts, otp.WithMachineTokens(machine))
	}
	client, err := otp.NewClient(c.OTP.GatewayURL, format, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return client, nil
}

// Logger creates the root logger named "hubauth" writing to w (stderr when
// nil).
func (c *Config) Logger(w io.Writer) hclog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := hclog.LevelFromString(c.LogLevel)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "hubauth",
		Level:      level,
		Output:     w,
		JSONFormat: c.LogFormat == "json",
	})
}

// Summary returns the non-secret settings for display.
func (c *Config) Summary() map[string]any {
	return map[string]any{
		"addr":               c.Addr,
		"environment":        c.Environment,
		"secure_cookies":     c.SecureCookies(),
		"oidc_issuer":        c.OIDC.Issuer,
		"oidc_auth_url":      c.OIDC.AuthURL,
		"oidc_token_url":     c.OIDC.TokenURL,
		"oidc_userinfo_url":  c.OIDC.UserInfoURL,
		"oidc_client_id":     c.OIDC.ClientID,
		"oidc_client_secret": oidc.ClientSecret(c.OIDC.ClientSecret).String(),
		"oidc_redirect_uri":  c.OIDC.RedirectURI,
		"oidc_scopes":        c.OIDC.Scopes,
		"oidc_provider_ca":   c.OIDC.ProviderCA != "",
		"machine_client_id":  c.MachineClientID(),
		"machine_assertion":  c.Machine.PrivateKey != "",
		"otp_gateway_url":    c.OTP.GatewayURL,
		"otp_gateway_format": c.OTP.Format,
		"otp_auth_mode":      c.OTP.AuthMode,
		"http_timeout":       c.HTTPTimeout.String(),
		"token_cache_buffer": c.TokenCacheBuffer.String(),
		"pkce_ttl":           c.PKCETTL.String(),
		"signin_path":        c.SigninPath,
		"post_login_path":    c.PostLoginPath,
		"log_level":          c.LogLevel,
		"log_format":         c.LogFormat,
	}
}
