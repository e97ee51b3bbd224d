// Package config provides configuration management for Anchor.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Version       int                 `yaml:"version"`
	Home          string              `yaml:"home"`
	Network       NetworkConfig       `yaml:"network"`
	Wallet        WalletConfig        `yaml:"wallet"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Lending       LendingConfig       `yaml:"lending"`
	Store         StoreConfig         `yaml:"store"`
	Output        OutputConfig        `yaml:"output"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// NetworkConfig defines the Stellar network the wallets sign for.
type NetworkConfig struct {
	RPC        string `yaml:"rpc"`
	Passphrase string `yaml:"passphrase"`
}

// WalletConfig defines wallet driver settings.
type WalletConfig struct {
	// Bridges maps a wallet kind to the JSON-RPC endpoint of its local bridge.
	Bridges map[string]string `yaml:"bridges"`
	// Retain selects where the last active wallet kind is remembered: "file" or "keyring".
	Retain string `yaml:"retain"`
	// ProbeTimeoutMillis bounds each environment marker probe.
	ProbeTimeoutMillis int `yaml:"probe_timeout_ms"`
	// ConnectTimeoutSeconds bounds a wallet handshake.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"`
}

// NotificationsConfig defines notification bus settings.
type NotificationsConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// LendingConfig defines the lending-protocol estimate provider.
type LendingConfig struct {
	ProviderURL     string  `yaml:"provider_url"`
	PoolID          string  `yaml:"pool_id"`
	BackstopID      string  `yaml:"backstop_id"`
	RatePerSecond   float64 `yaml:"rate_per_second"`
	Burst           int     `yaml:"burst"`
	IntervalSeconds int     `yaml:"interval_seconds"`

	// AlternativePools are compared against the watched pool's supply APY.
	AlternativePools []string `yaml:"alternative_pools,omitempty"`
}

// StoreConfig defines the persistence store.
type StoreConfig struct {
	// Driver is "postgres" for the hosted database or "sqlite" for a local file.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// OutputConfig defines output settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Load reads configuration from the specified file.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// GetHome returns the anchor home directory path.
func (c *Config) GetHome() string {
	return c.Home
}

// GetRPC returns the Stellar RPC URL.
func (c *Config) GetRPC() string {
	return c.Network.RPC
}

// GetNetworkPassphrase returns the network passphrase.
func (c *Config) GetNetworkPassphrase() string {
	return c.Network.Passphrase
}

// GetBridgeURL returns the bridge endpoint configured for a wallet kind.
func (c *Config) GetBridgeURL(kind string) string {
	return c.Wallet.Bridges[kind]
}

// GetRetainMethod returns where the last active wallet kind is kept.
func (c *Config) GetRetainMethod() string {
	return c.Wallet.Retain
}

// ProbeTimeout returns the environment probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	if c.Wallet.ProbeTimeoutMillis <= 0 {
		return DefaultProbeTimeout
	}
	return time.Duration(c.Wallet.ProbeTimeoutMillis) * time.Millisecond
}

// ConnectTimeout returns the wallet handshake timeout.
func (c *Config) ConnectTimeout() time.Duration {
	if c.Wallet.ConnectTimeoutSeconds <= 0 {
		return DefaultConnectTimeout
	}
	return time.Duration(c.Wallet.ConnectTimeoutSeconds) * time.Second
}

// NotificationTTL returns how long a notification is retained.
func (c *Config) NotificationTTL() time.Duration {
	if c.Notifications.TTLSeconds <= 0 {
		return DefaultNotificationTTL
	}
	return time.Duration(c.Notifications.TTLSeconds) * time.Second
}

// MonitorInterval returns the lending monitor polling interval.
func (c *Config) MonitorInterval() time.Duration {
	if c.Lending.IntervalSeconds <= 0 {
		return DefaultMonitorInterval
	}
	return time.Duration(c.Lending.IntervalSeconds) * time.Second
}

// GetLendingProviderURL returns the estimate provider URL.
func (c *Config) GetLendingProviderURL() string {
	return c.Lending.ProviderURL
}

// GetPoolID returns the configured lending pool ID.
func (c *Config) GetPoolID() string {
	return c.Lending.PoolID
}

// GetStoreDriver returns the persistence store driver name.
func (c *Config) GetStoreDriver() string {
	return c.Store.Driver
}

// GetStoreDSN returns the persistence store DSN.
func (c *Config) GetStoreDSN() string {
	return c.Store.DSN
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path.
func (c *Config) GetLoggingFile() string {
	return c.Logging.File
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// DefaultHome returns the default anchor home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".anchor"
	}
	return filepath.Join(home, ".anchor")
}

// GetAlternativePools returns the pools watch compares the watched pool against.
func (c *Config) GetAlternativePools() []string {
	return c.Lending.AlternativePools
}

// GetBackstopID returns the backstop contract guarding the pool.
func (c *Config) GetBackstopID() string {
	return c.Lending.BackstopID
}

// LendingRate returns the provider rate limit in requests per second and burst.
func (c *Config) LendingRate() (float64, int) {
	return c.Lending.RatePerSecond, c.Lending.Burst
}
