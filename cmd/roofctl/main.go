// Command roofctl is the command line client for a roofline server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/roofline/internal/roofctl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := roofctl.NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
