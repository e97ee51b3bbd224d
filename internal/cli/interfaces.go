package cli

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mrz1836/anchor/internal/config"
	"github.com/mrz1836/anchor/internal/output"
	"github.com/mrz1836/anchor/internal/store"
)

// Compile-time interface checks.
var (
	_ ConfigProvider = (*config.Config)(nil)
	_ LogWriter      = (*config.Logger)(nil)
	_ FormatProvider = (*output.Formatter)(nil)
	_ Store          = (*store.Store)(nil)
)

// ConfigProvider provides read access to configuration values.
// This interface enables mocking configuration in tests.
type ConfigProvider interface {
	// GetHome returns the anchor home directory path.
	GetHome() string

	// GetNetworkPassphrase returns the Stellar network passphrase.
	GetNetworkPassphrase() string

	// GetPoolID returns the default lending pool.
	GetPoolID() string

	// GetAlternativePools returns pools to compare the watched pool against.
	GetAlternativePools() []string

	// MonitorInterval returns how often watch polls the provider.
	MonitorInterval() time.Duration

	// GetOutputFormat returns the default output format.
	GetOutputFormat() string

	// IsVerbose returns true if verbose output is enabled.
	IsVerbose() bool
}

// LogWriter provides logging capabilities.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
	Close() error
}

// FormatProvider provides output format information.
type FormatProvider interface {
	Format() output.Format
}

// Store is the persistence surface the user and tx commands need.
type Store interface {
	CreateUser(ctx context.Context, u *store.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*store.User, error)
	RecordTransaction(ctx context.Context, tx *store.Transaction) error
	UserTransactions(ctx context.Context, userID uuid.UUID) ([]store.Transaction, error)
	Close() error
}
