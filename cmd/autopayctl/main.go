package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dhruv457457/AutoPay/internal/cli"
	"github.com/dhruv457457/AutoPay/internal/logger"
)

// Build-time version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// autopayctl is the operator CLI: it talks to a running agent over its HTTP
// API and never touches storage or the chain directly.
func main() {
	versionInfo := cli.VersionInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	var verbose bool
	rootCmd := &cobra.Command{
		Use:   "autopayctl",
		Short: "Operator CLI for the autopay agent",
		Long:  `autopayctl inspects and manages a running autopay agent over its HTTP API: stored delegations, payment attempts and health.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.InitLogger(verbose)
			return nil
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(cli.NewDelegationsCommand())
	rootCmd.AddCommand(cli.NewAttemptsCommand())
	rootCmd.AddCommand(cli.NewHealthCommand())
	rootCmd.AddCommand(cli.NewVersionCommand(versionInfo))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
