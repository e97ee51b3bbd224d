package cli

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/anchor/internal/lending"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	watchOnce     bool
	watchUser     string
	watchInterval time.Duration
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a pool and raise risk alerts",
	Long: `Poll the lending provider and print an alert whenever the pool is highly
utilized or risky, or when the watched user nears liquidation. On provider
errors the last good snapshot is kept and shown, marked stale once it is
older than five minutes. Snapshots are saved under the anchor home directory.
With lending.alternative_pools set, a watched user is also told when another
pool pays a higher supply APY.

Example:
  anchor watch --pool CPOOL...
  anchor watch --user GABC... --once
  anchor watch --interval 1m`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&poolID, "pool", "", "lending pool ID (default: lending.pool_id)")
	watchCmd.Flags().StringVar(&watchUser, "user", "", "also watch this account's positions (default: connected wallet)")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "check once and exit")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "poll interval (default: lending.interval_seconds)")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	user := watchUser
	if user == "" && cc.Session != nil {
		_ = cc.Session.Restore(cmd.Context())
		user, _ = cc.Session.PublicKey()
	}

	storage, cache := loadEstimateCache(cc)

	opts := []lending.MonitorOption{lending.WithCache(cache), lending.WithMonitorLogger(cc.Log)}
	if user != "" {
		opts = append(opts, lending.WithUser(user), lending.WithAlternatives(cc.Cfg.GetAlternativePools()...))
	}
	mon := lending.NewMonitor(cc.Provider, cc.Bus, resolvePool(cc), opts...)

	save := func(snap *lending.Snapshot, err error) {
		if snap == nil || err != nil {
			return
		}
		saveEstimateCache(cc, storage, cache)
	}

	if watchOnce {
		snap, err := mon.Check(cmd.Context())
		save(snap, err)
		if snap == nil {
			return err
		}
		if rerr := render(cmd, snap, func(w io.Writer) { displaySnapshotText(w, snap, err != nil) }); rerr != nil {
			return rerr
		}
		return err
	}

	interval := watchInterval
	if interval <= 0 {
		interval = cc.Cfg.MonitorInterval()
	}
	err := mon.Run(cmd.Context(), interval, save)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func displaySnapshotText(w io.Writer, snap *lending.Snapshot, cached bool) {
	if snap.Pool != nil {
		displayPoolText(w, *snap.Pool)
	}
	if snap.Positions != nil {
		outln(w)
		out(w, "Health factor: %.2f\n", snap.Positions.HealthFactor)
		out(w, "Borrow limit:  %s\n", percent(snap.Positions.BorrowLimit))
	}
	if cached {
		displayCacheAge(w, snap)
	}
}

// displayCacheAge notes that snap was served from the cache.
func displayCacheAge(w io.Writer, snap *lending.Snapshot) {
	label := "cached"
	if snap.Stale {
		label = "stale"
	}
	outln(w)
	out(w, "Showing %s estimate from %s\n", label, snap.UpdatedAt.Format(time.RFC3339))
}

// loadEstimateCache reads the estimate cache under the anchor home. A read
// failure is logged and an empty cache is used instead.
func loadEstimateCache(cc *CommandContext) (*lending.FileStorage, *lending.Cache) {
	storage := lending.NewFileStorage(lending.CacheFile(cc.Cfg.GetHome()))
	cache, err := storage.Load()
	if err != nil {
		cc.Log.Error("loading estimate cache: %v", err)
	}
	if cache == nil {
		cache = lending.NewCache()
	}
	cache.SetRecorder(cc.Metrics)
	return storage, cache
}

// saveEstimateCache drops snapshots not refreshed within MaxSnapshotAge and
// writes the cache back.
func saveEstimateCache(cc *CommandContext, storage *lending.FileStorage, cache *lending.Cache) {
	if n := cache.Prune(lending.MaxSnapshotAge); n > 0 {
		cc.Log.Debug("pruned %d cached estimates", n)
	}
	if err := storage.Save(cache); err != nil {
		cc.Log.Error("saving estimate cache to %s: %v", filepath.Base(storage.Path()), err)
	}
}
