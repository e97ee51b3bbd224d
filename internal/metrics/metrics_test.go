package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	anchorerr "github.com/mrz1836/anchor/pkg/errors"
)

func TestMetrics_RecordWalletOp(t *testing.T) {
	t.Parallel()
	m := New()

	m.RecordWalletOp("connect", "freighter", nil)
	m.RecordWalletOp("connect", "freighter", anchorerr.ErrHandshakeRejected)
	m.RecordWalletOp("disconnect", "", nil)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.walletOps.WithLabelValues("connect", "freighter", "error")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.walletOps.WithLabelValues("disconnect", "none", "success")), 0.001)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.WalletOpsTotal)
	assert.Equal(t, int64(1), snap.WalletOpsErrors)
}

func TestMetrics_RecordNotification(t *testing.T) {
	t.Parallel()
	m := New()

	m.RecordNotification("warning")
	m.RecordNotification("warning")
	m.RecordNotification("error")

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.notifications.WithLabelValues("warning")), 0.001)
	assert.Equal(t, int64(3), m.Snapshot().NotificationsTotal)
}

func TestMetrics_RecordProviderCall(t *testing.T) {
	t.Parallel()
	m := New()

	m.RecordProviderCall("pool_estimate", 100*time.Millisecond, nil)
	m.RecordProviderCall("", 300*time.Millisecond, anchorerr.ErrNetworkError)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.ProviderCallsTotal)
	assert.Equal(t, int64(1), snap.ProviderErrorsTotal)
	assert.InDelta(t, 200.0, snap.ProviderLatencyAvgMs(), 0.1)
	assert.Equal(t, 2, testutil.CollectAndCount(m.providerCalls))
}

func TestMetrics_StoreAndCache(t *testing.T) {
	t.Parallel()
	m := New()

	m.RecordStoreOp("create_user", nil)
	m.RecordStoreOp("get_user", anchorerr.ErrNotFound)
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.StoreOpsTotal)
	assert.Equal(t, int64(1), snap.StoreOpsErrors)
	assert.InDelta(t, 75.0, snap.CacheHitRate(), 0.001)
}

func TestSnapshot_Empty(t *testing.T) {
	t.Parallel()
	snap := New().Snapshot()
	assert.Equal(t, Snapshot{}, snap)
	assert.InDelta(t, 0.0, snap.CacheHitRate(), 0.001)
	assert.InDelta(t, 0.0, snap.ProviderLatencyAvgMs(), 0.001)
}

func TestMetrics_NilReceiver(t *testing.T) {
	t.Parallel()
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordWalletOp("connect", "albedo", nil)
		m.RecordNotification("info")
		m.RecordProviderCall("x", time.Second, nil)
		m.RecordStoreOp("x", nil)
		m.RecordCacheHit()
		m.RecordCacheMiss()
	})
}
