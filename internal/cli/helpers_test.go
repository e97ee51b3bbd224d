package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/anchor/internal/config"
	"github.com/mrz1836/anchor/internal/driver"
	"github.com/mrz1836/anchor/internal/lending"
	"github.com/mrz1836/anchor/internal/metrics"
	"github.com/mrz1836/anchor/internal/notify"
	"github.com/mrz1836/anchor/internal/output"
	"github.com/mrz1836/anchor/internal/session"
	"github.com/mrz1836/anchor/internal/store"
)

const testPool = "CPOOLTEST"

// mockConfigProvider implements ConfigProvider for testing.
type mockConfigProvider struct {
	home         string
	pool         string
	alternatives []string
	interval     time.Duration
}

func (m *mockConfigProvider) GetHome() string                { return m.home }
func (m *mockConfigProvider) GetNetworkPassphrase() string   { return config.DefaultNetworkPassphrase }
func (m *mockConfigProvider) GetPoolID() string              { return m.pool }
func (m *mockConfigProvider) GetAlternativePools() []string  { return m.alternatives }
func (m *mockConfigProvider) MonitorInterval() time.Duration { return m.interval }
func (m *mockConfigProvider) GetOutputFormat() string        { return "text" }
func (m *mockConfigProvider) IsVerbose() bool                { return false }

// mockFormatProvider implements FormatProvider for testing.
type mockFormatProvider struct {
	format output.Format
}

func (m *mockFormatProvider) Format() output.Format { return m.format }

// fakeProvider implements lending.Provider with canned estimates.
type fakeProvider struct {
	mu    sync.Mutex
	pool  lending.PoolEstimate
	pos   lending.PositionsEstimate
	err   error
	users []string
}

func (f *fakeProvider) PoolEstimate(_ context.Context, poolID string) (lending.PoolEstimate, error) {
	if f.err != nil {
		return lending.PoolEstimate{}, f.err
	}
	est := f.pool
	est.PoolID = poolID
	return est, nil
}

func (f *fakeProvider) UserPositions(_ context.Context, poolID, userID string) (lending.PositionsEstimate, error) {
	f.mu.Lock()
	f.users = append(f.users, userID)
	f.mu.Unlock()
	if f.err != nil {
		return lending.PositionsEstimate{}, f.err
	}
	est := f.pos
	est.PoolID, est.UserID = poolID, userID
	return est, nil
}

func (f *fakeProvider) BackstopEstimate(_ context.Context, poolID string) (lending.BackstopEstimate, error) {
	if f.err != nil {
		return lending.BackstopEstimate{}, f.err
	}
	return lending.BackstopEstimate{BackstopID: "CBACKSTOP", PoolID: poolID, TotalSpotValue: 5000, APR: 0.04}, nil
}

func (f *fakeProvider) UserBackstop(_ context.Context, poolID, userID string) (lending.BackstopUserEstimate, error) {
	if f.err != nil {
		return lending.BackstopUserEstimate{}, f.err
	}
	return lending.BackstopUserEstimate{UserID: userID, PoolID: poolID, Tokens: 12, EarnedValue: 1.5}, nil
}

func (f *fakeProvider) seenUsers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.users...)
}

// testEnv is a fully wired CommandContext over mock wallets and a temp home.
type testEnv struct {
	cc       *CommandContext
	provider *fakeProvider
	home     string
	alerts   *bytes.Buffer
}

func newTestEnv(t *testing.T, format output.Format) *testEnv {
	t.Helper()
	home := t.TempDir()

	markers := make([]string, 0, len(driver.Kinds()))
	for _, k := range driver.Kinds() {
		markers = append(markers, k.Marker())
	}
	reg := driver.NewRegistry(driver.NewMapEnvironment(markers...),
		driver.WithFactory(driver.StaticFactory()),
		driver.WithRetainer(driver.NewFileRetainer(filepath.Join(home, "active.json"))),
	)

	m := metrics.New()
	bus := notify.New(notify.WithRecorder(m))
	t.Cleanup(bus.Close)

	alerts := &bytes.Buffer{}
	bus.Subscribe(output.NotificationWriter(alerts, output.FormatText))

	provider := &fakeProvider{
		pool: lending.PoolEstimate{Name: "Test Pool", TotalSupplied: 1000, TotalBorrowed: 500, Utilization: 0.5, SupplyAPY: 0.03, BorrowAPY: 0.06, RiskLevel: 0.2},
		pos:  lending.PositionsEstimate{TotalSupplied: 100, TotalBorrowed: 40, BorrowLimit: 0.4, HealthFactor: 2.5},
	}
	dsn := filepath.Join(home, "anchor.db")

	cc := &CommandContext{
		Cfg:      &mockConfigProvider{home: home, pool: testPool, interval: time.Second},
		Log:      config.NullLogger(),
		Fmt:      &mockFormatProvider{format: format},
		Registry: reg,
		Bus:      bus,
		Metrics:  m,
		Provider: provider,
		OpenStore: func() (Store, error) {
			return store.Open("sqlite", dsn, store.WithRecorder(m))
		},
	}
	cc.Session = session.New(reg, session.WithNotifier(bus), session.WithRecorder(m))

	return &testEnv{cc: cc, provider: provider, home: home, alerts: alerts}
}

// freshSession replaces the session with a new one over the same registry,
// the way a second CLI invocation starts.
func (e *testEnv) freshSession() {
	e.cc.Session = session.New(e.cc.Registry, session.WithNotifier(e.cc.Bus), session.WithRecorder(e.cc.Metrics))
}

// newTestCmd returns a command carrying cc and a buffer capturing its output.
func newTestCmd(cc *CommandContext) (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetContext(context.Background())
	SetCmdContext(cmd, cc)
	return cmd, buf
}

// setFlag assigns a package-level flag variable for one test.
func setFlag[T any](t *testing.T, p *T, v T) {
	t.Helper()
	orig := *p
	*p = v
	t.Cleanup(func() { *p = orig })
}
