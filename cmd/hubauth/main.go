// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Command hubauth runs the Business Hub authentication gateway.
package main

import (
	"context"
	"fmt"
	"os"
)

// version can be set during build with -ldflags
var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
