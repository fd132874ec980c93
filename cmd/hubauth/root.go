// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hubauth",
		Short: "Business Hub authentication gateway",
		Long: `hubauth signs Business Hub customers in with the OAuth2 authorization code
flow with PKCE, keeps their session in HTTP-only cookies and proxies OTP
send and verify calls to the OTP gateway.

Configuration is read from the environment, optionally seeded from a .env
file (see --env-file).`,
		Version: version,
		// errors are printed by main
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{printf "hubauth version %s\n" .Version}}`)
	root.PersistentFlags().String("env-file", "", "load variables from this file before reading the environment (default .env when present)")

	root.AddCommand(newServeCmd(), newConfigCmd())
	return root
}

func envFile(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("env-file")
	return f
}
