// Package main provides the leapconn CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/leapconn/internal/cli"

	// Store providers register themselves on import.
	_ "github.com/leapstack-labs/leapconn/pkg/providers/duckdb"
	_ "github.com/leapstack-labs/leapconn/pkg/providers/mysql"
	_ "github.com/leapstack-labs/leapconn/pkg/providers/postgres"
	_ "github.com/leapstack-labs/leapconn/pkg/providers/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
