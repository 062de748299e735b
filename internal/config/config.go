package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/better-wallet/webconnect/internal/validation"
	"github.com/better-wallet/webconnect/pkg/types"
)

// Config holds the service configuration. Values come from the defaults,
// then an optional TOML file, then the environment.
type Config struct {
	// Server
	Port      int    `toml:"port"`
	LogFormat string `toml:"log_format"`
	LogLevel  string `toml:"log_level"`

	MetricsEnabled bool `toml:"metrics_enabled"`

	// Rate limit of the HTTP API, zero disables it
	APIRateLimitRPS   float64 `toml:"api_rate_limit_rps"`
	APIRateLimitBurst int     `toml:"api_rate_limit_burst"`

	// Database
	PostgresDSN      string `toml:"postgres_dsn"`
	PostgresMaxConns int    `toml:"postgres_max_conns"`

	// Delegate key encryption
	KMSProvider        string `toml:"kms_provider"` // local, aws-kms or vault
	KMSLocalMasterKey  string `toml:"kms_local_master_key"`
	KMSAWSKeyID        string `toml:"kms_aws_key_id"`
	KMSAWSRegion       string `toml:"kms_aws_region"`
	KMSVaultAddress    string `toml:"kms_vault_address"`
	KMSVaultToken      string `toml:"kms_vault_token"`
	KMSVaultTransitKey string `toml:"kms_vault_transit_key"`

	// Client gateway
	GatewayURL     string        `toml:"gateway_url"`
	GatewayTimeout time.Duration `toml:"gateway_timeout"`
	GatewayRPS     float64       `toml:"gateway_rps"`
	GatewayBurst   int           `toml:"gateway_burst"`

	// Delegate handshake
	ChainIDs        []string      `toml:"chain_ids"`
	DelegateLabel   string        `toml:"delegate_label"`
	DelegateTimeout time.Duration `toml:"delegate_timeout"`
	SignerKeyTypes  []string      `toml:"signer_key_types"`

	// WalletConnect
	DefaultChainID    int      `toml:"default_chain_id"`
	WalletName        string   `toml:"wallet_name"`
	WalletDescription string   `toml:"wallet_description"`
	WalletURL         string   `toml:"wallet_url"`
	WalletIcons       []string `toml:"wallet_icons"`

	// Push notifications
	PushDeviceID   string `toml:"push_device_id"`
	PushToken      string `toml:"push_token"`
	PushDeviceType string `toml:"push_device_type"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Port:              8080,
		LogFormat:         "json",
		LogLevel:          "INFO",
		MetricsEnabled:    true,
		APIRateLimitRPS:   20,
		APIRateLimitBurst: 40,
		PostgresMaxConns:  10,
		KMSProvider:       "local",
		GatewayTimeout:    30 * time.Second,
		GatewayRPS:        10,
		GatewayBurst:      10,
		ChainIDs:          append([]string(nil), types.DefaultDelegateChains...),
		DelegateLabel:     "iOS Device Delegate",
		DelegateTimeout:   60 * time.Second,
		SignerKeyTypes:    []string{string(types.KeyTypeLedgerNanoX)},
		DefaultChainID:    1,
		WalletName:        "Gnosis Safe",
		WalletDescription: "The most trusted platform to manage digital assets on Ethereum",
		WalletURL:         "https://gnosis-safe.io",
		WalletIcons:       []string{"https://gnosis-safe.io/app/favicon.ico"},
		PushDeviceType:    "IOS",
	}
}

// Load loads configuration from the file named by CONFIG_FILE, if any, and
// the environment
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile loads configuration from a TOML file overlaid with the
// environment. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Read is LoadFile without validation, for tools that only need part of the
// configuration
func Read(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnvInt("PORT", c.Port)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)
	c.APIRateLimitRPS = getEnvFloat("API_RATE_LIMIT_RPS", c.APIRateLimitRPS)
	c.APIRateLimitBurst = getEnvInt("API_RATE_LIMIT_BURST", c.APIRateLimitBurst)

	c.PostgresDSN = getEnv("POSTGRES_DSN", c.PostgresDSN)
	c.PostgresMaxConns = getEnvInt("POSTGRES_MAX_CONNS", c.PostgresMaxConns)

	c.KMSProvider = getEnv("KMS_PROVIDER", c.KMSProvider)
	c.KMSLocalMasterKey = getEnv("KMS_LOCAL_MASTER_KEY", c.KMSLocalMasterKey)
	c.KMSAWSKeyID = getEnv("KMS_AWS_KEY_ID", c.KMSAWSKeyID)
	c.KMSAWSRegion = getEnv("KMS_AWS_REGION", c.KMSAWSRegion)
	c.KMSVaultAddress = getEnv("KMS_VAULT_ADDRESS", c.KMSVaultAddress)
	c.KMSVaultToken = getEnv("KMS_VAULT_TOKEN", c.KMSVaultToken)
	c.KMSVaultTransitKey = getEnv("KMS_VAULT_TRANSIT_KEY", c.KMSVaultTransitKey)

	c.GatewayURL = getEnv("GATEWAY_URL", c.GatewayURL)
	c.GatewayRPS = getEnvFloat("GATEWAY_RPS", c.GatewayRPS)
	c.GatewayBurst = getEnvInt("GATEWAY_BURST", c.GatewayBurst)

	c.ChainIDs = getEnvList("CHAIN_IDS", c.ChainIDs)
	c.DelegateLabel = getEnv("DELEGATE_LABEL", c.DelegateLabel)
	c.SignerKeyTypes = getEnvList("SIGNER_KEY_TYPES", c.SignerKeyTypes)

	c.DefaultChainID = getEnvInt("DEFAULT_CHAIN_ID", c.DefaultChainID)
	c.WalletName = getEnv("WALLET_NAME", c.WalletName)
	c.WalletDescription = getEnv("WALLET_DESCRIPTION", c.WalletDescription)
	c.WalletURL = getEnv("WALLET_URL", c.WalletURL)
	c.WalletIcons = getEnvList("WALLET_ICONS", c.WalletIcons)

	c.PushDeviceID = getEnv("PUSH_DEVICE_ID", c.PushDeviceID)
	c.PushToken = getEnv("PUSH_TOKEN", c.PushToken)
	c.PushDeviceType = getEnv("PUSH_DEVICE_TYPE", c.PushDeviceType)

	var err error
	if c.GatewayTimeout, err = getEnvDuration("GATEWAY_TIMEOUT", c.GatewayTimeout); err != nil {
		return err
	}
	if c.DelegateTimeout, err = getEnvDuration("DELEGATE_TIMEOUT", c.DelegateTimeout); err != nil {
		return err
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required")
	}

	switch c.KMSProvider {
	case "local":
		if c.KMSLocalMasterKey == "" {
			return fmt.Errorf("KMS_LOCAL_MASTER_KEY is required when KMS_PROVIDER is 'local'")
		}
	case "aws-kms":
		if c.KMSAWSKeyID == "" {
			return fmt.Errorf("KMS_AWS_KEY_ID is required when KMS_PROVIDER is 'aws-kms'")
		}
	case "vault":
		if c.KMSVaultAddress == "" || c.KMSVaultToken == "" || c.KMSVaultTransitKey == "" {
			return fmt.Errorf("KMS_VAULT_ADDRESS, KMS_VAULT_TOKEN and KMS_VAULT_TRANSIT_KEY are required when KMS_PROVIDER is 'vault'")
		}
	default:
		return fmt.Errorf("KMS_PROVIDER must be 'local', 'aws-kms' or 'vault', got: %s", c.KMSProvider)
	}

	if c.GatewayURL == "" {
		return fmt.Errorf("GATEWAY_URL is required")
	}

	if err := validation.ValidateChainIDs(c.ChainIDs); err != nil {
		return fmt.Errorf("CHAIN_IDS: %w", err)
	}

	if c.DelegateTimeout <= 0 {
		return fmt.Errorf("DELEGATE_TIMEOUT must be positive, got: %s", c.DelegateTimeout)
	}

	if len(c.SignerKeyTypes) == 0 {
		return fmt.Errorf("SIGNER_KEY_TYPES must list at least one key type")
	}
	for _, kt := range c.SignerKeyTypes {
		if !types.KeyType(kt).IsValid() {
			return fmt.Errorf("SIGNER_KEY_TYPES contains an unknown key type: %s", kt)
		}
	}

	if c.DefaultChainID <= 0 {
		return fmt.Errorf("DEFAULT_CHAIN_ID must be positive, got: %d", c.DefaultChainID)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got: %d", c.Port)
	}

	return nil
}

// KeyTypes returns the configured signer key types
func (c *Config) KeyTypes() []types.KeyType {
	out := make([]types.KeyType, len(c.SignerKeyTypes))
	for i, kt := range c.SignerKeyTypes {
		out[i] = types.KeyType(kt)
	}
	return out
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	valueStr = strings.ToLower(valueStr)
	return valueStr == "true" || valueStr == "1" || valueStr == "yes"
}

// getEnvDuration parses a duration such as "90s". A malformed value is an
// error.
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
