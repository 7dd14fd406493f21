package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tally/internal/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tallyctl",
		Short:         "Operator tool for the tally ledger",
		Long:          `tallyctl inspects and repairs a tally ledger database and previews budget periods.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(reconcileCmd())
	root.AddCommand(periodCmd())
	return root
}

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
