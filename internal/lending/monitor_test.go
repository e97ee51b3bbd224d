package lending

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/anchor/internal/metrics"
	"github.com/mrz1836/anchor/internal/notify"
)

var errUpstream = errors.New("upstream down")

// fakeProvider returns canned estimates and can be switched to fail.
type fakeProvider struct {
	mu        sync.Mutex
	pool      PoolEstimate
	positions PositionsEstimate
	poolErr   error
	posErr    error
	poolCalls int

	alternatives map[string]PoolEstimate
	failingPool  string
}

func (f *fakeProvider) PoolEstimate(_ context.Context, poolID string) (PoolEstimate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.poolCalls++
	if f.poolErr != nil {
		return PoolEstimate{}, f.poolErr
	}
	if poolID == f.failingPool {
		return PoolEstimate{}, errUpstream
	}
	p := f.pool
	if alt, ok := f.alternatives[poolID]; ok {
		p = alt
	}
	p.PoolID = poolID
	return p, nil
}

func (f *fakeProvider) UserPositions(_ context.Context, poolID, userID string) (PositionsEstimate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.posErr != nil {
		return PositionsEstimate{}, f.posErr
	}
	p := f.positions
	p.PoolID, p.UserID = poolID, userID
	return p, nil
}

func (f *fakeProvider) BackstopEstimate(context.Context, string) (BackstopEstimate, error) {
	return BackstopEstimate{}, nil
}

func (f *fakeProvider) UserBackstop(context.Context, string, string) (BackstopUserEstimate, error) {
	return BackstopUserEstimate{}, nil
}

func (f *fakeProvider) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.poolErr = err
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.poolCalls
}

func newTestBus(t *testing.T) *notify.Bus {
	t.Helper()
	b := notify.New(notify.WithClock(clock.NewMock()))
	t.Cleanup(b.Close)
	return b
}

func messages(b *notify.Bus) []string {
	var out []string
	for _, n := range b.Notifications() {
		out = append(out, string(n.Severity)+": "+n.Message)
	}
	return out
}

func TestMonitor_HealthyPoolIsQuiet(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)
	p := &fakeProvider{pool: PoolEstimate{Utilization: 0.5, RiskLevel: 0.2}}
	m := NewMonitor(p, bus, testPool)

	snap, err := m.Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.Pool)
	assert.Equal(t, testPool, snap.Pool.PoolID)
	assert.Nil(t, snap.Positions)
	assert.Empty(t, bus.Notifications())
}

func TestMonitor_PoolAlerts(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)
	p := &fakeProvider{pool: PoolEstimate{Utilization: 0.95, RiskLevel: 0.75}}

	_, err := NewMonitor(p, bus, testPool).Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"warning: Pool CPOOL is highly utilized (95.0%)",
		"warning: Pool CPOOL has elevated risk level (75.0%)",
	}, messages(bus))
}

func TestMonitor_UserAlerts(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)
	p := &fakeProvider{
		pool:      PoolEstimate{Utilization: 0.1, RiskLevel: 0.1},
		positions: PositionsEstimate{HealthFactor: 1.05, BorrowLimit: 0.85},
	}
	m := NewMonitor(p, bus, testPool, WithUser(testUser))

	snap, err := m.Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.Positions)
	assert.Equal(t, testUser, snap.UserID)

	got := messages(bus)
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "error: Position "+testUser+" is at risk of liquidation! Health factor: 1.05")
	assert.Contains(t, got[1], "warning: Position "+testUser+" is at high risk (85.0%)")
}

func TestMonitor_BetterPoolAvailable(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)
	p := &fakeProvider{
		pool: PoolEstimate{SupplyAPY: 0.04},
		alternatives: map[string]PoolEstimate{
			"CLOW":  {SupplyAPY: 0.03},
			"CHIGH": {SupplyAPY: 0.07},
			"CMID":  {SupplyAPY: 0.05},
		},
		failingPool: "CDOWN",
		positions:   PositionsEstimate{HealthFactor: 3},
	}
	m := NewMonitor(p, bus, testPool, WithUser(testUser), WithAlternatives("CLOW", "CDOWN", "CHIGH", testPool, "CMID"))

	_, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"info: Better APY available for position " + Key(testPool, testUser) + ": 7.00% vs current 4.00%",
	}, messages(bus))
}

func TestMonitor_NoBetterPool(t *testing.T) {
	t.Parallel()

	t.Run("alternatives pay less", func(t *testing.T) {
		t.Parallel()
		bus := newTestBus(t)
		p := &fakeProvider{
			pool:         PoolEstimate{SupplyAPY: 0.08},
			alternatives: map[string]PoolEstimate{"CLOW": {SupplyAPY: 0.03}, "CSAME": {SupplyAPY: 0.08}},
			positions:    PositionsEstimate{HealthFactor: 3},
		}
		_, err := NewMonitor(p, bus, testPool, WithUser(testUser), WithAlternatives("CLOW", "CSAME")).Check(context.Background())
		require.NoError(t, err)
		assert.Empty(t, bus.Notifications())
	})

	t.Run("pool only watch skips comparison", func(t *testing.T) {
		t.Parallel()
		bus := newTestBus(t)
		p := &fakeProvider{
			pool:         PoolEstimate{SupplyAPY: 0.01},
			alternatives: map[string]PoolEstimate{"CHIGH": {SupplyAPY: 0.09}},
		}
		_, err := NewMonitor(p, bus, testPool, WithAlternatives("CHIGH")).Check(context.Background())
		require.NoError(t, err)
		assert.Empty(t, bus.Notifications())
		assert.Equal(t, 1, p.calls())
	})
}

func TestMonitor_FailureKeepsLastGoodSnapshot(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)
	p := &fakeProvider{pool: PoolEstimate{Name: "good", Utilization: 0.3}}
	m := NewMonitor(p, bus, testPool)
	ctx := context.Background()

	_, err := m.Check(ctx)
	require.NoError(t, err)

	p.fail(errUpstream)
	snap, err := m.Check(ctx)
	require.ErrorIs(t, err, errUpstream)
	require.NotNil(t, snap, "stale snapshot is still served")
	assert.Equal(t, "good", snap.Pool.Name)
	assert.False(t, snap.Stale)

	got := messages(bus)
	require.Len(t, got, 1)
	assert.Equal(t, "error: Failed to load pool estimate: upstream down", got[0])
}

func TestMonitor_FailureMarksOldSnapshotStale(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)
	c, mock := newMockCache(t)
	p := &fakeProvider{pool: PoolEstimate{Utilization: 0.3}}
	m := NewMonitor(p, bus, testPool, WithCache(c))
	ctx := context.Background()

	fresh, err := m.Check(ctx)
	require.NoError(t, err)
	assert.False(t, fresh.Stale)

	p.fail(errUpstream)
	mock.Add(DefaultStaleness + time.Second)
	snap, err := m.Check(ctx)
	require.ErrorIs(t, err, errUpstream)
	require.NotNil(t, snap)
	assert.True(t, snap.Stale)
	assert.Equal(t, fresh.UpdatedAt, snap.UpdatedAt)

	stored, ok, _ := c.Get(testPool, "")
	require.True(t, ok)
	assert.False(t, stored.Stale, "the flag is not written back")
}

func TestMonitor_SuccessfulCheckIsNotACacheLookup(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)
	rec := metrics.New()
	c := NewCache()
	c.SetRecorder(rec)
	p := &fakeProvider{pool: PoolEstimate{Utilization: 0.3}}
	m := NewMonitor(p, bus, testPool, WithCache(c))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		snap, err := m.Check(ctx)
		require.NoError(t, err)
		assert.False(t, snap.UpdatedAt.IsZero())
	}
	got := rec.Snapshot()
	assert.Zero(t, got.CacheHits)
	assert.Zero(t, got.CacheMisses)

	p.fail(errUpstream)
	_, err := m.Check(ctx)
	require.ErrorIs(t, err, errUpstream)
	assert.Equal(t, int64(1), rec.Snapshot().CacheHits)
}

func TestMonitor_FailureWithoutHistory(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)
	p := &fakeProvider{poolErr: errUpstream}

	snap, err := NewMonitor(p, bus, testPool, WithCache(NewCache())).Check(context.Background())
	require.ErrorIs(t, err, errUpstream)
	assert.Nil(t, snap)
	assert.Len(t, bus.Notifications(), 1)
}

func TestMonitor_PositionsFailure(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)
	p := &fakeProvider{posErr: errUpstream}

	_, err := NewMonitor(p, bus, testPool, WithUser(testUser)).Check(context.Background())
	require.ErrorIs(t, err, errUpstream)
	assert.Equal(t, []string{"error: Failed to load positions: upstream down"}, messages(bus))
}

func TestMonitor_CanceledIsSilent(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)
	p := &fakeProvider{poolErr: context.Canceled}

	_, err := NewMonitor(p, bus, testPool).Check(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, bus.Notifications())
}

func TestMonitor_Run(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)
	mock := clock.NewMock()
	p := &fakeProvider{pool: PoolEstimate{Utilization: 0.2}}
	m := NewMonitor(p, bus, testPool, WithMonitorClock(mock), WithMonitorLogger(nil))

	ctx, cancel := context.WithCancel(context.Background())
	checked := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx, time.Minute, func(*Snapshot, error) { checked <- struct{}{} })
	}()

	<-checked
	assert.Equal(t, 1, p.calls())

	assert.Eventually(t, func() bool {
		mock.Add(time.Minute)
		select {
		case <-checked:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, p.calls(), 2)

	cancel()
	mock.Add(time.Minute)
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
	assert.NotNil(t, m.Cache())
}
