// Package config provides configuration management for the chain ledger application.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Upstream provider names. Rate limits and metrics are keyed by these.
const (
	ProviderBlockstream    = "blockstream"
	ProviderBlockchainInfo = "blockchain.info"
	ProviderEtherscan      = "etherscan"
	ProviderBlockfrost     = "blockfrost"
	ProviderSolana         = "solana"
	ProviderXRPScan        = "xrpscan"
	ProviderSubscan        = "subscan"
	ProviderSui            = "sui"
	ProviderCryptoAPIs     = "cryptoapis"
	ProviderCoinGecko      = "coingecko"
	ProviderCryptoCompare  = "cryptocompare"
	ProviderYoroi          = "yoroi"
	ProviderCopper         = "copper"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Providers   ProvidersConfig
	RateLimit   RateLimitConfig
	Cache       CacheConfig
	Retry       RetryConfig
	Logging     LoggingConfig
	Copper      CopperConfig
	AddressBook AddressBookConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// ClientRPS throttles report requests per client; 0 disables it
	ClientRPS   float64
	ClientBurst int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// URL returns the connection URL used by migrations
func (c PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ProvidersConfig holds base URLs and credentials of the upstream explorers and oracles
type ProvidersConfig struct {
	BlockstreamURL    string
	BlockchainInfoURL string
	EtherscanURL      string
	EtherscanAPIKey   string
	BlockfrostURL     string
	BlockfrostAPIKey  string
	SolanaRPCURL      string
	SolanaFallbackURL string
	XRPScanURL        string
	SubscanURL        string
	SubscanAPIKey     string
	SuiRPCURL         string
	CryptoAPIsURL     string
	CryptoAPIsKey     string
	CoinGeckoURL      string
	CryptoCompareURL  string
	YoroiURL          string
	CopperURL         string
	HTTPTimeout       time.Duration
}

// RateLimitConfig holds per-provider token bucket settings
type RateLimitConfig struct {
	DefaultRPS  float64
	Burst       int
	PerProvider map[string]float64
}

// RPS returns the configured requests-per-second ceiling of a provider
func (c RateLimitConfig) RPS(provider string) float64 {
	if rps, ok := c.PerProvider[provider]; ok {
		return rps
	}
	return c.DefaultRPS
}

// CacheConfig holds price cache configuration
type CacheConfig struct {
	CurrentPriceTTL time.Duration
	UseRedis        bool
}

// RetryConfig holds the optional caller-side retry policy for upstream calls.
// MaxAttempts of 1 disables retries.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// CopperConfig holds the custodial API credentials
type CopperConfig struct {
	APIKey    string
	APISecret string
}

// AddressBookConfig selects where the address book is read from
type AddressBookConfig struct {
	Source string // "postgres" or "file"
	Path   string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Minute),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			ClientRPS:       getEnvAsFloat("SERVER_CLIENT_RPS", 2),
			ClientBurst:     getEnvAsInt("SERVER_CLIENT_BURST", 5),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "chain_ledger"),
				User:           getEnv("POSTGRES_USER", "ledger"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 10),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Providers: ProvidersConfig{
			BlockstreamURL:    getEnv("BLOCKSTREAM_URL", "https://blockstream.info/api"),
			BlockchainInfoURL: getEnv("BLOCKCHAIN_INFO_URL", "https://blockchain.info"),
			EtherscanURL:      getEnv("ETHERSCAN_URL", "https://api.etherscan.io/v2/api"),
			EtherscanAPIKey:   getEnv("ETHERSCAN_API_KEY", ""),
			BlockfrostURL:     getEnv("BLOCKFROST_URL", "https://cardano-mainnet.blockfrost.io/api/v0"),
			BlockfrostAPIKey:  getEnv("BLOCKFROST_API_KEY", ""),
			SolanaRPCURL:      getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
			SolanaFallbackURL: getEnv("SOLANA_FALLBACK_RPC_URL", "https://rpc.ankr.com/solana"),
			XRPScanURL:        getEnv("XRPSCAN_URL", "https://api.xrpscan.com/api/v1"),
			SubscanURL:        getEnv("SUBSCAN_URL", "https://polkadot.api.subscan.io"),
			SubscanAPIKey:     getEnv("SUBSCAN_API_KEY", ""),
			SuiRPCURL:         getEnv("SUI_RPC_URL", "https://fullnode.mainnet.sui.io:443"),
			CryptoAPIsURL:     getEnv("CRYPTOAPIS_URL", "https://rest.cryptoapis.io"),
			CryptoAPIsKey:     getEnv("CRYPTOAPIS_KEY", ""),
			CoinGeckoURL:      getEnv("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
			CryptoCompareURL:  getEnv("CRYPTOCOMPARE_URL", "https://min-api.cryptocompare.com"),
			YoroiURL:          getEnv("YOROI_URL", "https://api.yoroiwallet.com/api"),
			CopperURL:         getEnv("COPPER_URL", "https://api.copper.co"),
			HTTPTimeout:       getEnvAsDuration("UPSTREAM_HTTP_TIMEOUT", 30*time.Second),
		},
		RateLimit: loadRateLimitConfig(),
		Cache: CacheConfig{
			CurrentPriceTTL: getEnvAsDuration("CURRENT_PRICE_TTL", 10*time.Minute),
			UseRedis:        getEnvAsBool("PRICE_CACHE_REDIS", false),
		},
		Retry: RetryConfig{
			MaxAttempts:  getEnvAsInt("UPSTREAM_MAX_ATTEMPTS", 1),
			InitialDelay: getEnvAsDuration("UPSTREAM_RETRY_INITIAL_DELAY", time.Second),
			MaxDelay:     getEnvAsDuration("UPSTREAM_RETRY_MAX_DELAY", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Copper: CopperConfig{
			APIKey:    getEnv("COPPER_API_KEY", ""),
			APISecret: getEnv("COPPER_API_SECRET", ""),
		},
		AddressBook: AddressBookConfig{
			Source: getEnv("ADDRESS_BOOK_SOURCE", "file"),
			Path:   getEnv("ADDRESS_BOOK_PATH", "addressbook.json"),
		},
	}

	return config, nil
}

// loadRateLimitConfig reads RATE_LIMIT_DEFAULT_RPS and RATE_LIMIT_<PROVIDER>_RPS overrides
func loadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		DefaultRPS:  getEnvAsFloat("RATE_LIMIT_DEFAULT_RPS", 5),
		Burst:       getEnvAsInt("RATE_LIMIT_BURST", 1),
		PerProvider: make(map[string]float64),
	}

	providers := []string{
		ProviderBlockstream, ProviderBlockchainInfo, ProviderEtherscan, ProviderBlockfrost,
		ProviderSolana, ProviderXRPScan, ProviderSubscan, ProviderSui, ProviderCryptoAPIs,
		ProviderCoinGecko, ProviderCryptoCompare, ProviderYoroi, ProviderCopper,
	}
	for _, p := range providers {
		key := "RATE_LIMIT_" + envName(p) + "_RPS"
		if v := getEnv(key, ""); v != "" {
			if rps, err := strconv.ParseFloat(v, 64); err == nil {
				cfg.PerProvider[p] = rps
			}
		}
	}

	// Public tiers known to throttle hard
	if _, ok := cfg.PerProvider[ProviderCoinGecko]; !ok {
		cfg.PerProvider[ProviderCoinGecko] = 0.5
	}
	if _, ok := cfg.PerProvider[ProviderSubscan]; !ok {
		cfg.PerProvider[ProviderSubscan] = 2
	}

	return cfg
}

func envName(provider string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return strings.ToUpper(r.Replace(provider))
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
