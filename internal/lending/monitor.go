package lending

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/mrz1836/anchor/internal/notify"
)

// Alerter is the notification surface the monitor publishes to.
type Alerter interface {
	Notify(sev notify.Severity, message string) string
	NotifyPositionRisk(positionID string, risk float64) (string, bool)
	NotifyLiquidationRisk(positionID string, healthFactor float64) (string, bool)
	NotifyPoolUtilization(poolID string, utilization float64) (string, bool)
	NotifyPoolRisk(poolID string, risk float64) (string, bool)
	NotifyBetterPoolAvailable(positionID string, currentAPY, betterAPY float64) (string, bool)
}

// Logger is the logging surface the monitor uses.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

// Monitor polls the provider for one pool, and optionally one user's
// positions, and raises alerts when thresholds are crossed.
type Monitor struct {
	provider Provider
	alerts   Alerter
	cache    *Cache
	clock    clock.Clock
	logger   Logger

	poolID       string
	userID       string
	alternatives []string
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithCache keeps the last good snapshot in c.
func WithCache(c *Cache) MonitorOption {
	return func(m *Monitor) { m.cache = c }
}

// WithMonitorClock sets the clock that drives Run.
func WithMonitorClock(c clock.Clock) MonitorOption {
	return func(m *Monitor) { m.clock = c }
}

// WithMonitorLogger sets the monitor logger.
func WithMonitorLogger(l Logger) MonitorOption {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithUser also watches userID's positions in the pool.
func WithUser(userID string) MonitorOption {
	return func(m *Monitor) { m.userID = userID }
}

// WithAlternatives compares the user's pool against poolIDs on every check
// and announces the best one paying a higher supply APY.
func WithAlternatives(poolIDs ...string) MonitorOption {
	return func(m *Monitor) { m.alternatives = poolIDs }
}

// NewMonitor creates a monitor for poolID.
func NewMonitor(provider Provider, alerts Alerter, poolID string, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		provider: provider,
		alerts:   alerts,
		cache:    NewCache(),
		clock:    clock.New(),
		logger:   nopLogger{},
		poolID:   poolID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Cache returns the monitor's snapshot cache.
func (m *Monitor) Cache() *Cache {
	return m.cache
}

// Check fetches fresh estimates and raises alerts for them. On a provider
// failure an error notification is published and the last good snapshot,
// if any, is returned along with the error, marked Stale once it is older
// than DefaultStaleness.
func (m *Monitor) Check(ctx context.Context) (*Snapshot, error) {
	pool, err := m.provider.PoolEstimate(ctx, m.poolID)
	if err != nil {
		return m.fallback("Failed to load pool estimate: ", err)
	}

	snap := Snapshot{PoolID: m.poolID, UserID: m.userID, Pool: &pool}
	m.alerts.NotifyPoolUtilization(pool.PoolID, pool.Utilization)
	m.alerts.NotifyPoolRisk(pool.PoolID, pool.RiskLevel)

	if m.userID != "" {
		pos, err := m.provider.UserPositions(ctx, m.poolID, m.userID)
		if err != nil {
			return m.fallback("Failed to load positions: ", err)
		}
		snap.Positions = &pos
		m.alerts.NotifyLiquidationRisk(m.userID, pos.HealthFactor)
		m.alerts.NotifyPositionRisk(m.userID, pos.BorrowLimit)
		m.compareAlternatives(ctx, pool)
	}

	stored := m.cache.Set(snap)
	m.logger.Debug("pool %s: utilization %.3f risk %.3f", pool.PoolID, pool.Utilization, pool.RiskLevel)
	return &stored, nil
}

// compareAlternatives announces the alternative pool with the highest supply
// APY when it beats current. Alternatives that fail to load are skipped.
func (m *Monitor) compareAlternatives(ctx context.Context, current PoolEstimate) {
	bestID, best := "", current.SupplyAPY
	for _, id := range m.alternatives {
		if id == m.poolID {
			continue
		}
		est, err := m.provider.PoolEstimate(ctx, id)
		if err != nil {
			m.logger.Debug("alternative pool %s: %v", id, err)
			continue
		}
		if est.SupplyAPY > best {
			bestID, best = id, est.SupplyAPY
		}
	}
	if bestID == "" {
		return
	}
	m.logger.Debug("pool %s pays %.4f over %.4f in %s", bestID, best, current.SupplyAPY, m.poolID)
	m.alerts.NotifyBetterPoolAvailable(Key(m.poolID, m.userID), current.SupplyAPY, best)
}

func (m *Monitor) fallback(prefix string, err error) (*Snapshot, error) {
	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	m.logger.Error("lending monitor: %v", err)
	m.alerts.Notify(notify.SeverityError, prefix+err.Error())

	last, ok := m.cache.Lookup(m.poolID, m.userID, DefaultStaleness)
	if !ok {
		return nil, err
	}
	return last, err
}

// Run checks once immediately and then every interval until ctx ends.
// Each result is passed to onCheck when it is non-nil.
func (m *Monitor) Run(ctx context.Context, interval time.Duration, onCheck func(*Snapshot, error)) error {
	ticker := m.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		snap, err := m.Check(ctx)
		if onCheck != nil {
			onCheck(snap, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
