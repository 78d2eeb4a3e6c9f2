// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command unpuff is the terminal client: sign in, onboard and count puffs.
//
// Configuration comes from UNPUFF_* environment variables; see
// config.ClientConfig. State persists between runs in UNPUFF_DATA_DIR.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/taibuivan/unpuff/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	root, cleanup := cli.NewRootCommand(cli.Build)
	err := root.ExecuteContext(ctx)

	cleanup()
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err))
		os.Exit(1)
	}
}
