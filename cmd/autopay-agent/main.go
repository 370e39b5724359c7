package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dhruv457457/AutoPay/internal/agent"
	"github.com/dhruv457457/AutoPay/internal/chain"
	"github.com/dhruv457457/AutoPay/internal/cli"
	"github.com/dhruv457457/AutoPay/internal/config"
	"github.com/dhruv457457/AutoPay/internal/indexer"
	"github.com/dhruv457457/AutoPay/internal/logger"
	"github.com/dhruv457457/AutoPay/internal/relay"
	"github.com/dhruv457457/AutoPay/internal/server"
	"github.com/dhruv457457/AutoPay/internal/storage"
)

// Build-time version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	versionInfo := cli.VersionInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	rootCmd := cli.NewRootCommand(runServer, versionInfo)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// agentStatus adapts the bootstrapped identity for the health endpoint. A
// nil identity reports not-ready.
type agentStatus struct {
	identity *chain.Identity
}

func (a *agentStatus) Ready() bool {
	return a.identity != nil
}

func (a *agentStatus) AgentAddress() string {
	if a.identity == nil {
		return ""
	}
	return a.identity.SmartAccount.Hex()
}

// runServer contains the server startup logic for the unified CLI.
func runServer(cmd *cobra.Command, args []string) {
	// Credentials usually live in a .env file next to the binary during
	// development. Missing file is fine.
	_ = godotenv.Load()

	cfgFilePath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(cfgFilePath)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	applyFlagOverrides(cmd, cfg)
	applyEnvOverrides(cfg)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		logger.Logger.Fatal().Err(err).Str("mode", cfg.Storage.Mode).Msg("Failed to open storage")
	}

	// A missing or malformed signer key keeps the HTTP API up for delegation
	// management; only the payment loop stays off.
	var identity *chain.Identity
	if cfg.Agent.PrivateKey == "" {
		logger.Logger.Warn().Msg("AGENT_PRIVATE_KEY not set, payment execution disabled")
	} else {
		identity, err = chain.Bootstrap(cfg.Agent.PrivateKey, cfg.Chain.ChainID, cfg.Chain.DeploySalt)
		if err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to bootstrap agent identity, payment execution disabled")
		} else {
			logger.Logger.Info().
				Str("eoa", identity.EOA.Hex()).
				Str("smart_account", identity.SmartAccount.Hex()).
				Uint64("chain_id", cfg.Chain.ChainID).
				Msg("agent identity ready")
		}
	}

	status := &agentStatus{identity: identity}
	httpServer := server.NewServer(cfg, store, status)

	var scheduler *agent.Scheduler
	if identity != nil {
		fetcher := indexer.NewClient(cfg.Indexer.URL, cfg.Indexer.RequestTimeout)
		bundler := relay.NewClient(cfg.Relay.BundlerRPCURL, identity.Env.EntryPoint, relay.Options{
			RequestTimeout:      cfg.Relay.RequestTimeout,
			ReceiptPollInterval: cfg.Relay.ReceiptPollInterval,
			ReceiptTimeout:      cfg.Relay.ReceiptTimeout,
		})
		service := agent.NewService(fetcher, store, bundler, identity, common.HexToAddress(cfg.Chain.SubscriptionManager))
		scheduler = agent.NewScheduler(service, cfg.Agent.PollInterval)
		scheduler.Start()
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		if err != nil {
			logger.Logger.Error().Err(err).Msg("http server failed")
		}
	}

	if scheduler != nil {
		scheduler.Stop(cfg.Agent.ShutdownGrace)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Agent.ShutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("http server shutdown failed")
		os.Exit(1)
	}
	logger.Logger.Info().Msg("shutdown complete")
}

func loadConfig(configFile string) (*config.Config, error) {
	viper.SetEnvPrefix("AUTOPAY")
	viper.AutomaticEnv()

	if configFile == "" {
		configFile = os.Getenv("AUTOPAY_CONFIG_FILE")
	}
	return config.LoadConfig(configFile)
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if flag := cmd.Flags().Lookup("port"); flag != nil && flag.Changed {
		if port, err := cmd.Flags().GetInt("port"); err == nil && port != 0 {
			cfg.Agent.Port = port
		}
	}
	if flag := cmd.Flags().Lookup("storage-mode"); flag != nil && flag.Changed {
		if mode, err := cmd.Flags().GetString("storage-mode"); err == nil && mode != "" {
			cfg.Storage.Mode = mode
		}
	}
	if flag := cmd.Flags().Lookup("postgres-url"); flag != nil && flag.Changed {
		if url, err := cmd.Flags().GetString("postgres-url"); err == nil && url != "" {
			cfg.Storage.Postgres.DSN = url
			cfg.Storage.Postgres.URL = url
			if cfg.Storage.Mode == "" || cfg.Storage.Mode == "local" {
				cfg.Storage.Mode = "postgres"
			}
		}
	}
}

// applyEnvOverrides layers environment variables over the file config. The
// chain credentials keep their original unprefixed names so existing .env
// files carry over.
func applyEnvOverrides(cfg *config.Config) {
	if env := os.Getenv("AUTOPAY_PORT"); env != "" {
		if port, err := strconv.Atoi(env); err == nil {
			cfg.Agent.Port = port
		}
	}
	if env := os.Getenv("AUTOPAY_STORAGE_MODE"); env != "" {
		cfg.Storage.Mode = env
	}
	if env := os.Getenv("AUTOPAY_POSTGRES_URL"); env != "" {
		cfg.Storage.Postgres.DSN = env
		cfg.Storage.Postgres.URL = env
		if cfg.Storage.Mode == "" || cfg.Storage.Mode == "local" {
			cfg.Storage.Mode = "postgres"
		}
	}
	if env := os.Getenv("AGENT_PRIVATE_KEY"); env != "" {
		cfg.Agent.PrivateKey = env
	}
	if env := os.Getenv("INDEXER_URL"); env != "" {
		cfg.Indexer.URL = env
	}
	if env := os.Getenv("BUNDLER_RPC_URL"); env != "" {
		cfg.Relay.BundlerRPCURL = env
	}
	if env := os.Getenv("SUBSCRIPTION_MANAGER_ADDRESS"); env != "" {
		cfg.Chain.SubscriptionManager = env
	}
	if env := os.Getenv("CHAIN_ID"); env != "" {
		if id, err := strconv.ParseUint(env, 10, 64); err == nil {
			cfg.Chain.ChainID = id
		}
	}
}
