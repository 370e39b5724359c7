package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dhruv457457/AutoPay/internal/logger"
)

var (
	cfgFile         string
	verbose         bool
	portFlag        int
	storageModeFlag string
	postgresURLFlag string
)

// NewRootCommand creates the root Cobra command for the autopay agent.
// Running it without a subcommand starts the server.
func NewRootCommand(runServerFunc func(cmd *cobra.Command, args []string), versionInfo VersionInfo) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "autopay-agent",
		Short: "Recurring payment execution agent",
		Long:  `autopay-agent watches on-chain subscriptions through an indexer and executes due payments on behalf of subscribers via their signed delegations.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.InitLogger(verbose)
			if verbose {
				logger.Logger.Debug().Msg("Verbose logging enabled.")
			}
			return nil
		},
		Run: runServerFunc,
	}

	var showVersion bool
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Print version information")

	originalRun := rootCmd.Run
	rootCmd.Run = func(cmd *cobra.Command, args []string) {
		if showVersion {
			printVersion(versionInfo)
			return
		}
		originalRun(cmd, args)
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file (e.g., config/autopay.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 0, "Port for the HTTP API (overrides config if set)")
	rootCmd.PersistentFlags().StringVar(&storageModeFlag, "storage-mode", "", "Override the storage backend (local, postgres or memory)")
	rootCmd.PersistentFlags().StringVar(&postgresURLFlag, "postgres-url", "", "PostgreSQL connection URL or DSN (implies --storage-mode=postgres)")

	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(NewVersionCommand(versionInfo))

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Run the payment agent server",
		Long:  `Starts the HTTP API and the recurring payment scheduler.`,
		Run:   runServerFunc,
	}
	rootCmd.AddCommand(serverCmd)

	return rootCmd
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.SetConfigName("autopay")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("AUTOPAY")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func printVersion(versionInfo VersionInfo) {
	fmt.Printf("AutoPay Agent\n")
	fmt.Printf("  Version:    %s\n", versionInfo.Version)
	fmt.Printf("  Commit:     %s\n", versionInfo.Commit)
	fmt.Printf("  Built:      %s\n", versionInfo.Date)
	fmt.Printf("  Go version: %s\n", runtime.Version())
	fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
