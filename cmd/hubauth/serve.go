// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/businesshub/hubauth/config"
	"github.com/businesshub/hubauth/oidc"
	"github.com/businesshub/hubauth/otp"
	"github.com/businesshub/hubauth/server"
	"github.com/businesshub/hubauth/session"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway's http server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile(cmd))
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, cfg.Logger(nil))
		},
	}
}

// gateway is everything serve wires together.
type gateway struct {
	provider *oidc.Provider
	handler  http.Handler
}

func newGateway(cfg *config.Config, logger hclog.Logger) (*gateway, error) {
	oc, err := cfg.OIDCConfig()
	if err != nil {
		return nil, err
	}
	p, err := oidc.NewProvider(oc, oidc.WithLogger(logger.Named("oidc")))
	if err != nil {
		return nil, err
	}

	opts := []server.Option{
		server.WithLogger(logger.Named("http")),
		server.WithSigninPath(cfg.SigninPath),
		server.WithPostLoginPath(cfg.PostLoginPath),
	}

	var machine otp.MachineTokens
	if cfg.OTP.AuthMode == config.AuthModeMachine {
		cache, err := cfg.MachineTokens(p.TokenURL(), logger.Named("tokencache"))
		if err != nil {
			p.Done()
			return nil, err
		}
		machine = cache
	}
	otpClient, err := cfg.OTPClient(machine, logger.Named("otp"))
	if err != nil {
		p.Done()
		return nil, err
	}
	if otpClient != nil {
		opts = append(opts, server.WithOTPGateway(otpClient))
	} else {
		logger.Warn("OTP_GATEWAY_URL is not set, the otp routes will fail")
	}

	store := session.NewStore(cfg.SessionOptions(logger.Named("session"))...)
	s, err := server.New(p, store, opts...)
	if err != nil {
		p.Done()
		return nil, err
	}
	return &gateway{provider: p, handler: s.Handler()}, nil
}

func serve(ctx context.Context, cfg *config.Config, logger hclog.Logger) error {
	gw, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}
	defer gw.provider.Done()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           gw.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logger.Named("http").StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true}),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "environment", cfg.Environment, "otp_auth_mode", cfg.OTP.AuthMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
