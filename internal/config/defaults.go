package config

import "time"

// DefaultRPCURL is the default Stellar endpoint (testnet Horizon).
const DefaultRPCURL = "https://horizon-testnet.stellar.org"

// DefaultNetworkPassphrase is the Stellar testnet passphrase.
const DefaultNetworkPassphrase = "Test SDF Network ; September 2015"

// Timing defaults.
const (
	DefaultNotificationTTL = 5 * time.Second
	DefaultProbeTimeout    = 500 * time.Millisecond
	DefaultConnectTimeout  = 60 * time.Second
	DefaultMonitorInterval = 30 * time.Second
)

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.anchor",
		Network: NetworkConfig{
			RPC:        DefaultRPCURL,
			Passphrase: DefaultNetworkPassphrase,
		},
		Wallet: WalletConfig{
			Bridges: map[string]string{
				"freighter": "http://127.0.0.1:7801/rpc",
				"albedo":    "http://127.0.0.1:7802/rpc",
			},
			Retain:                "file",
			ProbeTimeoutMillis:    500,
			ConnectTimeoutSeconds: 60,
		},
		Notifications: NotificationsConfig{
			TTLSeconds: 5,
		},
		Lending: LendingConfig{
			ProviderURL:     "http://127.0.0.1:7900/rpc",
			PoolID:          "",
			BackstopID:      "",
			RatePerSecond:   5,
			Burst:           10,
			IntervalSeconds: 30,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "~/.anchor/anchor.db",
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level:      "error",
			File:       "~/.anchor/anchor.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}
