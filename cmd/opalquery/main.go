// file: cmd/opalquery/main.go
package main

import (
	"OpalBridge/internal/cli"
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(os.Stdout, nil).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
