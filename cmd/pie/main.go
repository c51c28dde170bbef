// Package main is the entry point for the pie package manager.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.trai.ch/pie/cmd/pie/commands"
	"go.trai.ch/pie/internal/app"
	_ "go.trai.ch/pie/internal/wiring"
)

func main() {
	os.Exit(run())
}

func run(opts ...func(*app.App)) int {
	// 0. Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Initialize application components
	components, _, err := graft.ExecuteFor[*app.Components](ctx)
	if err != nil {
		// Logger is not available yet if initialization failed
		// Write directly to stderr
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return commands.ExitFailure
	}

	// Apply options
	for _, opt := range opts {
		opt(components.App)
	}

	// 2. Interface - CLI
	cli := commands.New(components.App, components.Logger)

	// 3. Execution
	err = cli.Execute(ctx)
	closeErr := components.Telemetry.Close()
	if err != nil {
		components.Logger.Error(err)
		return commands.ExitCode(err)
	}
	if closeErr != nil {
		components.Logger.Error(closeErr)
		return commands.ExitFailure
	}
	return commands.ExitOK
}
