package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/ditsuke/go-badcurl/internal/cli"
)

// Main is the entry point for the application.
// It's exported to make it testable.
func Main() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return cli.ExitCode(cli.Execute(ctx))
}

func main() {
	os.Exit(Main())
}
