// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package hubauth_test

import (
	"log"
	"net/http"
	"time"

	"github.com/businesshub/hubauth/oidc"
	"github.com/businesshub/hubauth/otp"
	"github.com/businesshub/hubauth/server"
	"github.com/businesshub/hubauth/session"
)

func Example() {
	// Create a new provider config
	pc, err := oidc.NewConfig(
		"your_client_id",
		"your_client_secret",
		"https://hub.example.com/auth/callback",
		oidc.WithIssuer("https://your-issuer.example.com/"),
	)
	if err != nil {
		// handle error
	}

	// Create a provider, which discovers the issuer's endpoints and keys
	p, err := oidc.NewProvider(pc)
	if err != nil {
		// handle error
	}
	defer p.Done()

	// The OTP gateway is called with the customer's access token
	otpClient, err := otp.NewClient("https://otp.example.com/OTPService", otp.FormatXML)
	if err != nil {
		// handle error
	}

	s, err := server.New(p, session.NewStore(session.WithPKCETTL(5*time.Minute)),
		server.WithOTPGateway(otpClient),
		server.WithPostLoginPath("/otp"),
	)
	if err != nil {
		// handle error
	}
	srv := &http.Server{Addr: ":8080", Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	log.Fatal(srv.ListenAndServe())
}
