package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rohzyy/govai/internal/cli"
	"github.com/rohzyy/govai/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args, config.LoadClient())
	stop()
	os.Exit(code)
}
