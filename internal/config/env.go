package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/mrz1836/go-sanitize"
)

// Environment variable names.
const (
	EnvHome         = "ANCHOR_HOME"
	EnvRPC          = "ANCHOR_RPC_URL"
	EnvLendingURL   = "ANCHOR_LENDING_URL"
	EnvPoolID       = "ANCHOR_POOL_ID"
	EnvStoreDriver  = "ANCHOR_STORE_DRIVER"
	EnvStoreDSN     = "ANCHOR_STORE_DSN"
	EnvRetain       = "ANCHOR_RETAIN"
	EnvOutputFormat = "ANCHOR_OUTPUT_FORMAT"
	EnvVerbose      = "ANCHOR_VERBOSE"
	EnvLogLevel     = "ANCHOR_LOG_LEVEL"
	EnvNotifyTTL    = "ANCHOR_NOTIFY_TTL"
	EnvNoColor      = "NO_COLOR"
)

var (
	// ErrInsecureURL indicates a plain-HTTP URL pointing at a non-loopback host.
	ErrInsecureURL = errors.New("insecure URL: plain http is only allowed for loopback hosts")

	// ErrUnsupportedScheme indicates a URL scheme other than http(s) or ws(s).
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvRPC); v != "" {
		cfg.Network.RPC = SanitizeURL(v)
	}

	if v := os.Getenv(EnvLendingURL); v != "" {
		cfg.Lending.ProviderURL = SanitizeURL(v)
	}

	if v := os.Getenv(EnvPoolID); v != "" {
		cfg.Lending.PoolID = sanitize.AlphaNumeric(v, false)
	}

	if v := os.Getenv(EnvStoreDriver); v != "" {
		cfg.Store.Driver = strings.ToLower(strings.TrimSpace(v))
	}

	// DSNs may legitimately contain spaces (key=value form), so they are only trimmed
	if v := os.Getenv(EnvStoreDSN); v != "" {
		cfg.Store.DSN = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvRetain); v != "" {
		cfg.Wallet.Retain = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}

	// ANCHOR_NOTIFY_TTL is in seconds
	if v := os.Getenv(EnvNotifyTTL); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil && ttl > 0 {
			cfg.Notifications.TTLSeconds = ttl
		}
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL cleans a URL string by removing invalid characters and trimming whitespace.
func SanitizeURL(raw string) string {
	return sanitize.URL(strings.TrimSpace(raw))
}

// ValidateURL checks an endpoint URL used for a wallet bridge or provider.
// Empty is allowed (feature disabled). Plain http and ws are accepted only
// for loopback hosts since bridges normally run on the same machine.
func ValidateURL(raw string) error {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		return nil
	case "http", "ws":
		if isLoopback(u.Hostname()) {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrInsecureURL, u.Host)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
