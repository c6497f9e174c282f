package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/feral-file/marketplace-indexer/internal/domain"
)

const ENV_PREFIX = "MARKETPLACE_INDEXER"

// Dispatch orders accepted by indexer.dispatch_order
const (
	DispatchOrderLog  = "log"
	DispatchOrderKind = "kind"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// URIConfig holds URI resolver configuration
type URIConfig struct {
	IPFSGateways    []string `mapstructure:"ipfs_gateways"`
	ArweaveGateways []string `mapstructure:"arweave_gateways"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadHost        string        `mapstructure:"read_host"`
	ReadPort        int           `mapstructure:"read_port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // Maximum number of open connections to the database
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // e.g. "5m", "1h"
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // e.g. "10m", "30m"
}

// EthereumConfig holds the chain and the two indexed contracts
type EthereumConfig struct {
	RPCURL             string       `mapstructure:"rpc_url"`
	ChainID            domain.Chain `mapstructure:"chain_id"`
	NFTAddress         string       `mapstructure:"nft_address"`
	MarketplaceAddress string       `mapstructure:"marketplace_address"`
	StartBlock         uint64       `mapstructure:"start_block"`
	LogStepSize        uint64       `mapstructure:"log_step_size"`
	RPCRateLimit       float64      `mapstructure:"rpc_rate_limit"` // requests per second, 0 disables
	RPCBurst           int          `mapstructure:"rpc_burst"`
}

// IndexerLoopConfig holds poll loop configuration
type IndexerLoopConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	MaxBlockRange uint64        `mapstructure:"max_block_range"` // 0 = unbounded
	DispatchOrder string        `mapstructure:"dispatch_order"`  // "log" or "kind"
}

// MetadataConfig holds metadata resolver configuration
type MetadataConfig struct {
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
	MaxRetryElapsed time.Duration `mapstructure:"max_retry_elapsed"` // 0 = single attempt
	DetectMediaType bool          `mapstructure:"detect_media_type"`
}

// MetricsConfig holds the Prometheus listener configuration
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTPublicKey string   `mapstructure:"jwt_public_key"`
	APIKeys      []string `mapstructure:"api_keys"`
}

// WorkerConfig holds worker configuration
type WorkerConfig struct {
	WorkerPoolSize  int `mapstructure:"pool_size"`
	WorkerQueueSize int `mapstructure:"queue_size"`
}

// MetadataSweeperConfig holds configuration for the metadata sweeper
type MetadataSweeperConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	RefreshAfter time.Duration `mapstructure:"refresh_after"`
	Interval     time.Duration `mapstructure:"interval"`
	Worker       WorkerConfig  `mapstructure:"worker"`
}

// IndexerConfig holds configuration for the indexer
type IndexerConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Ethereum   EthereumConfig    `mapstructure:"ethereum"`
	Indexer    IndexerLoopConfig `mapstructure:"indexer"`
	Metadata   MetadataConfig    `mapstructure:"metadata"`
	URI        URIConfig         `mapstructure:"uri"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
}

// APIConfig holds configuration for API server
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig   `mapstructure:"server"`
	Database   DatabaseConfig `mapstructure:"database"`
	Auth       AuthConfig     `mapstructure:"auth"`
}

// SweeperConfig holds configuration for the sweeper program
type SweeperConfig struct {
	BaseConfig      `mapstructure:",squash"`
	Database        DatabaseConfig        `mapstructure:"database"`
	Ethereum        EthereumConfig        `mapstructure:"ethereum"`
	Metadata        MetadataConfig        `mapstructure:"metadata"`
	URI             URIConfig             `mapstructure:"uri"`
	Metrics         MetricsConfig         `mapstructure:"metrics"`
	MetadataSweeper MetadataSweeperConfig `mapstructure:"metadata_sweeper"`
}

// LoadIndexerConfig loads configuration for the indexer
func LoadIndexerConfig(configFile string, envPath string) (*IndexerConfig, error) {
	v := configureViper("indexer", configFile, envPath)

	// Set defaults
	setDatabaseDefaults(v)
	setChainDefaults(v)
	v.SetDefault("indexer.poll_interval", "5s")
	v.SetDefault("indexer.max_block_range", 0)
	v.SetDefault("indexer.dispatch_order", DispatchOrderLog)
	v.SetDefault("metrics.address", ":9090")
	// Metadata fetched inline must not hold up the poll loop; the sweeper heals what fails here
	v.SetDefault("metadata.http_timeout", "10s")
	v.SetDefault("metadata.max_retry_elapsed", "0s")

	if err := readInConfig(v); err != nil {
		return nil, err
	}

	var cfg IndexerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if err := cfg.Database.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Ethereum.validate(); err != nil {
		return nil, err
	}
	if cfg.Indexer.DispatchOrder != DispatchOrderLog && cfg.Indexer.DispatchOrder != DispatchOrderKind {
		return nil, fmt.Errorf("indexer.dispatch_order must be %q or %q, got %q",
			DispatchOrderLog, DispatchOrderKind, cfg.Indexer.DispatchOrder)
	}
	if cfg.Metadata.MaxRetryElapsed < 0 {
		return nil, errors.New("metadata.max_retry_elapsed must not be negative")
	}
	if cfg.Indexer.PollInterval <= 0 {
		return nil, errors.New("indexer.poll_interval must be positive")
	}

	return &cfg, nil
}

// LoadAPIConfig loads configuration for API server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)
	setDatabaseDefaults(v)

	if err := readInConfig(v); err != nil {
		return nil, err
	}

	var cfg APIConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadSweeperConfig loads configuration for the sweeper program
func LoadSweeperConfig(configFile string, envPath string) (*SweeperConfig, error) {
	v := configureViper("sweeper", configFile, envPath)

	// Set defaults
	setDatabaseDefaults(v)
	setChainDefaults(v)
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("metrics.address", ":9091")
	v.SetDefault("metadata.max_retry_elapsed", "1m")
	v.SetDefault("metadata_sweeper.batch_size", 100)
	v.SetDefault("metadata_sweeper.refresh_after", "24h") // 1 day
	v.SetDefault("metadata_sweeper.interval", "1m")
	v.SetDefault("metadata_sweeper.worker.pool_size", 10)
	v.SetDefault("metadata_sweeper.worker.queue_size", 100)

	if err := readInConfig(v); err != nil {
		return nil, err
	}

	var cfg SweeperConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if err := cfg.Database.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Ethereum.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDatabaseDefaults(v *viper.Viper) {
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
}

func setChainDefaults(v *viper.Viper) {
	v.SetDefault("ethereum.chain_id", string(domain.ChainEthereumMainnet))
	v.SetDefault("ethereum.log_step_size", 2000)
	v.SetDefault("ethereum.rpc_rate_limit", 0)
	v.SetDefault("ethereum.rpc_burst", 10)
	v.SetDefault("metadata.http_timeout", "30s")
	v.SetDefault("metadata.detect_media_type", true)
	v.SetDefault("uri.ipfs_gateways", []string{domain.DEFAULT_IPFS_GATEWAY})
	v.SetDefault("uri.arweave_gateways", []string{domain.DEFAULT_ARWEAVE_GATEWAY})
}

// readInConfig reads the config file, falling back to defaults and environment variables when none exists
func readInConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

func (c *DatabaseConfig) validate() error {
	if c.Host == "" {
		return errors.New("database.host is required")
	}
	if c.DBName == "" {
		return errors.New("database.dbname is required")
	}
	return nil
}

func (c *EthereumConfig) validate() error {
	if c.RPCURL == "" {
		return errors.New("ethereum.rpc_url is required")
	}
	if c.NFTAddress == "" {
		return errors.New("ethereum.nft_address is required")
	}
	if c.MarketplaceAddress == "" {
		return errors.New("ethereum.marketplace_address is required")
	}
	if !domain.IsValidAddress(c.NFTAddress) {
		return fmt.Errorf("ethereum.nft_address is not a valid address: %q", c.NFTAddress)
	}
	if !domain.IsValidAddress(c.MarketplaceAddress) {
		return fmt.Errorf("ethereum.marketplace_address is not a valid address: %q", c.MarketplaceAddress)
	}
	if c.RPCRateLimit < 0 {
		return errors.New("ethereum.rpc_rate_limit must not be negative")
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/indexer/, cmd/api/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.read_host",
		"database.read_port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// Ethereum
		"ethereum.rpc_url",
		"ethereum.chain_id",
		"ethereum.nft_address",
		"ethereum.marketplace_address",
		"ethereum.start_block",
		"ethereum.log_step_size",
		"ethereum.rpc_rate_limit",
		"ethereum.rpc_burst",
		// Poll loop
		"indexer.poll_interval",
		"indexer.max_block_range",
		"indexer.dispatch_order",
		// Metadata
		"metadata.http_timeout",
		"metadata.max_retry_elapsed",
		"metadata.detect_media_type",
		// URI
		"uri.ipfs_gateways",
		"uri.arweave_gateways",
		// Metrics
		"metrics.address",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		// Auth
		"auth.jwt_public_key",
		"auth.api_keys",
		// Metadata sweeper
		"metadata_sweeper.batch_size",
		"metadata_sweeper.refresh_after",
		"metadata_sweeper.interval",
		"metadata_sweeper.worker.pool_size",
		"metadata_sweeper.worker.queue_size",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ReadDSN returns the read-replica database connection string.
// If ReadPort is not configured, it falls back to Port.
func (c *DatabaseConfig) ReadDSN() string {
	port := c.ReadPort
	if port == 0 {
		port = c.Port
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.ReadHost, port, c.User, c.Password, c.DBName, c.SSLMode)
}
