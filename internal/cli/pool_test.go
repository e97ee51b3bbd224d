package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/anchor/internal/driver"
	"github.com/mrz1836/anchor/internal/lending"
	"github.com/mrz1836/anchor/internal/output"
	anchorerr "github.com/mrz1836/anchor/pkg/errors"
)

// writeCachedPool saves a pool snapshot last refreshed at updated.
func writeCachedPool(t *testing.T, home string, updated time.Time) {
	t.Helper()
	c := lending.NewCache()
	snap := c.Set(lending.Snapshot{
		PoolID: testPool,
		Pool:   &lending.PoolEstimate{PoolID: testPool, Name: "Cached Pool", Utilization: 0.4},
	})
	snap.UpdatedAt = updated
	c.Entries[lending.Key(testPool, "")] = snap
	require.NoError(t, lending.NewFileStorage(lending.CacheFile(home)).Save(c))
}

func TestRunPoolShow_Text(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	env.provider.pool.Reserves = []lending.Reserve{{Symbol: "XLM", TotalSupplied: 600, Utilization: 0.25}}
	setFlag(t, &poolID, "")
	cmd, buf := newTestCmd(env.cc)

	require.NoError(t, runPoolShow(cmd, nil))

	got := buf.String()
	assert.Contains(t, got, "Pool:        Test Pool")
	assert.Contains(t, got, "ID:          "+testPool)
	assert.Contains(t, got, "Utilization: 50.00%")
	assert.Contains(t, got, "XLM")
	assert.Contains(t, got, "25.00%")
}

func TestRunPoolShow_FlagOverridesConfig(t *testing.T) {
	env := newTestEnv(t, output.FormatJSON)
	setFlag(t, &poolID, "COTHER")
	cmd, buf := newTestCmd(env.cc)

	require.NoError(t, runPoolShow(cmd, nil))

	var est lending.PoolEstimate
	require.NoError(t, json.Unmarshal(buf.Bytes(), &est))
	assert.Equal(t, "COTHER", est.PoolID)
	assert.InDelta(t, 0.5, est.Utilization, 1e-9)
}

func TestRunPoolShow_ProviderError(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	env.provider.err = anchorerr.Classify(anchorerr.ErrProviderFailed, errors.New("boom"))
	setFlag(t, &poolID, "")
	cmd, _ := newTestCmd(env.cc)

	err := runPoolShow(cmd, nil)
	require.ErrorIs(t, err, anchorerr.ErrProviderFailed)
	assert.Equal(t, anchorerr.ExitUnavailable, ExitCode(err))
}

func TestRunPoolShow_ProviderDownServesCachedEstimate(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	setFlag(t, &poolID, "")
	cmd, _ := newTestCmd(env.cc)
	require.NoError(t, runPoolShow(cmd, nil))

	env.provider.err = anchorerr.Classify(anchorerr.ErrProviderFailed, errors.New("down"))
	cmd, buf := newTestCmd(env.cc)
	err := runPoolShow(cmd, nil)

	require.ErrorIs(t, err, anchorerr.ErrProviderFailed)
	assert.Contains(t, buf.String(), "Utilization: 50.00%")
	assert.Contains(t, buf.String(), "Showing cached estimate from")
}

func TestRunPoolShow_OldCacheIsMarkedStale(t *testing.T) {
	env := newTestEnv(t, output.FormatJSON)
	setFlag(t, &poolID, "")
	updated := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	writeCachedPool(t, env.home, updated)
	env.provider.err = anchorerr.Classify(anchorerr.ErrProviderFailed, errors.New("down"))
	cmd, buf := newTestCmd(env.cc)

	err := runPoolShow(cmd, nil)
	require.ErrorIs(t, err, anchorerr.ErrProviderFailed)

	var view poolView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &view))
	assert.Equal(t, testPool, view.PoolID)
	assert.True(t, view.Stale)
	require.NotNil(t, view.UpdatedAt)
	assert.True(t, updated.Equal(*view.UpdatedAt))
}

func TestRunPoolShow_FreshResultIsNotMarked(t *testing.T) {
	env := newTestEnv(t, output.FormatJSON)
	setFlag(t, &poolID, "")
	cmd, buf := newTestCmd(env.cc)

	require.NoError(t, runPoolShow(cmd, nil))
	assert.NotContains(t, buf.String(), "stale")
	assert.NotContains(t, buf.String(), "updated_at")
}

func TestRunPoolPositions_DefaultsToConnectedWallet(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	setFlag(t, &poolID, "")
	setFlag(t, &poolUser, "")
	cmd, _ := newTestCmd(env.cc)
	require.NoError(t, runConnect(cmd, []string{"freighter"}))

	env.freshSession()
	cmd, buf := newTestCmd(env.cc)
	require.NoError(t, runPoolPositions(cmd, nil))

	key := driver.MockKey(driver.KindFreighter)
	assert.Equal(t, []string{key}, env.provider.seenUsers())
	assert.Contains(t, buf.String(), "User:          "+key)
	assert.Contains(t, buf.String(), "Health factor: 2.50")
}

func TestRunPoolPositions_NoUser(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	setFlag(t, &poolUser, "")
	cmd, _ := newTestCmd(env.cc)

	err := runPoolPositions(cmd, nil)
	require.ErrorIs(t, err, anchorerr.ErrNotConnected)
	assert.Empty(t, env.provider.seenUsers())
}

func TestRunPoolBackstop(t *testing.T) {
	t.Run("pool only", func(t *testing.T) {
		env := newTestEnv(t, output.FormatJSON)
		setFlag(t, &poolUser, "")
		cmd, buf := newTestCmd(env.cc)

		require.NoError(t, runPoolBackstop(cmd, nil))

		var view backstopView
		require.NoError(t, json.Unmarshal(buf.Bytes(), &view))
		assert.Equal(t, "CBACKSTOP", view.Backstop.BackstopID)
		assert.Nil(t, view.User)
	})

	t.Run("with user", func(t *testing.T) {
		env := newTestEnv(t, output.FormatText)
		setFlag(t, &poolUser, driver.MockKey(driver.KindAlbedo))
		cmd, buf := newTestCmd(env.cc)

		require.NoError(t, runPoolBackstop(cmd, nil))
		assert.Contains(t, buf.String(), "Earned:     1.50")
	})
}

func TestRunWatch_Once(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	env.provider.pool.Utilization = 0.95
	env.provider.pos.HealthFactor = 1.05
	setFlag(t, &poolID, "")
	setFlag(t, &watchUser, driver.MockKey(driver.KindFreighter))
	setFlag(t, &watchOnce, true)
	cmd, buf := newTestCmd(env.cc)

	require.NoError(t, runWatch(cmd, nil))

	assert.Contains(t, buf.String(), "Utilization: 95.00%")
	assert.Contains(t, buf.String(), "Health factor: 1.05")
	assert.Contains(t, env.alerts.String(), "Pool "+testPool+" is highly utilized (95.0%)")
	assert.Contains(t, env.alerts.String(), "is at risk of liquidation! Health factor: 1.05")

	cache, err := lending.NewFileStorage(lending.CacheFile(env.home)).Load()
	require.NoError(t, err)
	snap, ok, _ := cache.Get(testPool, driver.MockKey(driver.KindFreighter))
	require.True(t, ok)
	assert.InDelta(t, 0.95, snap.Pool.Utilization, 1e-9)
}

func TestRunWatch_OnceProviderDownUsesLastSnapshot(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	setFlag(t, &poolID, "")
	setFlag(t, &watchUser, "")
	setFlag(t, &watchOnce, true)

	cmd, _ := newTestCmd(env.cc)
	require.NoError(t, runWatch(cmd, nil))
	_, err := os.Stat(lending.CacheFile(env.home))
	require.NoError(t, err)

	env.provider.err = anchorerr.Classify(anchorerr.ErrProviderFailed, errors.New("down"))
	cmd, buf := newTestCmd(env.cc)
	err = runWatch(cmd, nil)

	require.ErrorIs(t, err, anchorerr.ErrProviderFailed)
	assert.Contains(t, env.alerts.String(), "Failed to load pool estimate")
	assert.Contains(t, buf.String(), "Utilization: 50.00%")
	assert.Contains(t, buf.String(), "Showing cached estimate from")
}

func TestRunWatch_OnceOldSnapshotIsStale(t *testing.T) {
	env := newTestEnv(t, output.FormatJSON)
	setFlag(t, &poolID, "")
	setFlag(t, &watchUser, "")
	setFlag(t, &watchOnce, true)
	updated := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	writeCachedPool(t, env.home, updated)
	env.provider.err = anchorerr.Classify(anchorerr.ErrProviderFailed, errors.New("down"))
	cmd, buf := newTestCmd(env.cc)

	err := runWatch(cmd, nil)
	require.ErrorIs(t, err, anchorerr.ErrProviderFailed)

	var snap lending.Snapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &snap))
	assert.True(t, snap.Stale)
	assert.True(t, updated.Equal(snap.UpdatedAt))
	assert.Equal(t, "Cached Pool", snap.Pool.Name)

	// the failed check leaves the file as it was
	cache, err := lending.NewFileStorage(lending.CacheFile(env.home)).Load()
	require.NoError(t, err)
	stored, ok, _ := cache.Get(testPool, "")
	require.True(t, ok)
	assert.False(t, stored.Stale)
	assert.True(t, updated.Equal(stored.UpdatedAt))
}

func TestRunWatch_UnreadableCacheStillChecks(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	setFlag(t, &poolID, "")
	setFlag(t, &watchUser, "")
	setFlag(t, &watchOnce, true)
	require.NoError(t, os.MkdirAll(lending.CacheFile(env.home), 0o750))
	cmd, buf := newTestCmd(env.cc)

	require.NoError(t, runWatch(cmd, nil))
	assert.Contains(t, buf.String(), "Utilization: 50.00%")
}

func TestRunWatch_StopsOnCancel(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	setFlag(t, &poolID, "")
	setFlag(t, &watchUser, "")
	setFlag(t, &watchOnce, false)
	setFlag(t, &watchInterval, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd, _ := newTestCmd(env.cc)
	cmd.SetContext(ctx)
	SetCmdContext(cmd, env.cc)

	require.NoError(t, runWatch(cmd, nil))

	// the first check still ran and was saved
	_, err := os.Stat(lending.CacheFile(env.home))
	require.NoError(t, err)
}
