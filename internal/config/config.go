package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dhruv457457/AutoPay/internal/storage"
)

// Config holds the entire configuration for the AutoPay agent service.
type Config struct {
	Agent   AgentConfig   `yaml:"agent" mapstructure:"agent"`
	Chain   ChainConfig   `yaml:"chain" mapstructure:"chain"`
	Indexer IndexerConfig `yaml:"indexer" mapstructure:"indexer"`
	Relay   RelayConfig   `yaml:"relay" mapstructure:"relay"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	API     APIConfig     `yaml:"api" mapstructure:"api"`
}

// AgentConfig holds the core server and scheduler configuration.
type AgentConfig struct {
	Port          int           `yaml:"port" mapstructure:"port"`
	Host          string        `yaml:"host" mapstructure:"host"`
	PollInterval  time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace" mapstructure:"shutdown_grace"`
	PrivateKey    string        `yaml:"private_key" mapstructure:"private_key"` // usually supplied via AGENT_PRIVATE_KEY
}

// ChainConfig pins the target chain and the contracts the agent talks to.
type ChainConfig struct {
	ChainID             uint64 `yaml:"chain_id" mapstructure:"chain_id"`
	SubscriptionManager string `yaml:"subscription_manager" mapstructure:"subscription_manager"`
	DeploySalt          string `yaml:"deploy_salt" mapstructure:"deploy_salt"`
}

// IndexerConfig points at the external GraphQL indexer.
type IndexerConfig struct {
	URL            string        `yaml:"url" mapstructure:"url"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// RelayConfig configures the bundler client the submitter talks to.
type RelayConfig struct {
	BundlerRPCURL       string        `yaml:"bundler_rpc_url" mapstructure:"bundler_rpc_url"`
	RequestTimeout      time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	ReceiptPollInterval time.Duration `yaml:"receipt_poll_interval" mapstructure:"receipt_poll_interval"`
	ReceiptTimeout      time.Duration `yaml:"receipt_timeout" mapstructure:"receipt_timeout"`
}

// APIConfig holds configuration for API settings.
type APIConfig struct {
	CORS CORSConfig `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig holds CORS configuration. The front end stores delegations
// cross-origin, so the API must answer preflights.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials" mapstructure:"allow_credentials"`
}

// StorageConfig is an alias of the storage layer's configuration so callers
// can work with a single definition while keeping the canonical struct
// colocated with the implementation in the storage package.
type StorageConfig = storage.StorageConfig

// DefaultConfigPath is the default path for the autopay configuration file.
const DefaultConfigPath = "autopay.yaml"

// MonadTestnetChainID is the chain the original deployment targets.
const MonadTestnetChainID = 10143

// ApplyDefaults fills zero-valued fields with working defaults.
func (c *Config) ApplyDefaults() {
	if c.Agent.Port == 0 {
		c.Agent.Port = 3001
	}
	if c.Agent.Host == "" {
		c.Agent.Host = "0.0.0.0"
	}
	if c.Agent.PollInterval == 0 {
		c.Agent.PollInterval = 15 * time.Second
	}
	if c.Agent.ShutdownGrace == 0 {
		c.Agent.ShutdownGrace = 10 * time.Second
	}
	if c.Chain.ChainID == 0 {
		c.Chain.ChainID = MonadTestnetChainID
	}
	if c.Chain.DeploySalt == "" {
		c.Chain.DeploySalt = "0x"
	}
	if c.Indexer.RequestTimeout == 0 {
		c.Indexer.RequestTimeout = 10 * time.Second
	}
	if c.Relay.RequestTimeout == 0 {
		c.Relay.RequestTimeout = 30 * time.Second
	}
	if c.Relay.ReceiptPollInterval == 0 {
		c.Relay.ReceiptPollInterval = 2 * time.Second
	}
	if c.Relay.ReceiptTimeout == 0 {
		c.Relay.ReceiptTimeout = 2 * time.Minute
	}
	if c.Storage.Mode == "" {
		c.Storage.Mode = "local"
	}
	if c.Storage.Local.DatabasePath == "" {
		c.Storage.Local.DatabasePath = filepath.Join("data", "autopay.db")
	}
	if len(c.API.CORS.AllowedOrigins) == 0 {
		c.API.CORS.AllowedOrigins = []string{"*"}
	}
	if len(c.API.CORS.AllowedMethods) == 0 {
		c.API.CORS.AllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(c.API.CORS.AllowedHeaders) == 0 {
		c.API.CORS.AllowedHeaders = []string{"Content-Type", "Authorization"}
	}
}

// Validate rejects configurations the payment loop cannot run with. The HTTP
// surface has no hard requirements beyond storage, which is checked when the
// store opens.
func (c *Config) Validate() error {
	if c.Indexer.URL == "" {
		return fmt.Errorf("indexer.url is required")
	}
	if c.Relay.BundlerRPCURL == "" {
		return fmt.Errorf("relay.bundler_rpc_url is required")
	}
	if c.Chain.SubscriptionManager == "" {
		return fmt.Errorf("chain.subscription_manager is required")
	}
	return nil
}

// LoadConfig reads the configuration from the given path or default paths.
func LoadConfig(configPath string) (*Config, error) {
	explicit := configPath != ""
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		altPath := filepath.Join("config", "autopay.yaml")
		if _, err2 := os.Stat(altPath); err2 == nil {
			configPath = altPath
		} else if explicit {
			return nil, fmt.Errorf("configuration file not found at %s: %w", configPath, err)
		} else {
			// No file anywhere: start from defaults; env overrides fill the rest.
			cfg := &Config{}
			cfg.ApplyDefaults()
			return cfg, nil
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", configPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", configPath, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}
