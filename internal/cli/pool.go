package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/anchor/internal/lending"
	"github.com/mrz1836/anchor/internal/output"
	anchorerr "github.com/mrz1836/anchor/pkg/errors"
)

// providerTimeout bounds a single pool command's provider calls.
const providerTimeout = 30 * time.Second

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	poolID   string
	poolUser string
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Read lending pool estimates",
	Long:  `Read pool, position and backstop estimates from the lending provider.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var poolShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a pool estimate",
	Long: `Show utilization, rates and risk for a lending pool. When the provider
is unreachable the last cached estimate is shown, marked stale once it is
older than five minutes.

Example:
  anchor pool show --pool CPOOL...`,
	Args: cobra.NoArgs,
	RunE: runPoolShow,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var poolPositionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Show a user's positions in a pool",
	Long: `Show supplied and borrowed totals, borrow limit and health factor.
The user defaults to the connected wallet's account.

Example:
  anchor pool positions
  anchor pool positions --user GABC...`,
	Args: cobra.NoArgs,
	RunE: runPoolPositions,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var poolBackstopCmd = &cobra.Command{
	Use:   "backstop",
	Short: "Show the pool's backstop",
	Long: `Show the backstop insuring the pool and, with a user, that user's share.

Example:
  anchor pool backstop
  anchor pool backstop --user GABC...`,
	Args: cobra.NoArgs,
	RunE: runPoolBackstop,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(poolCmd)
	poolCmd.AddCommand(poolShowCmd)
	poolCmd.AddCommand(poolPositionsCmd)
	poolCmd.AddCommand(poolBackstopCmd)

	poolCmd.PersistentFlags().StringVar(&poolID, "pool", "", "lending pool ID (default: lending.pool_id)")
	poolPositionsCmd.Flags().StringVar(&poolUser, "user", "", "user account ID (default: connected wallet)")
	poolBackstopCmd.Flags().StringVar(&poolUser, "user", "", "user account ID")
}

// resolvePool returns the --pool flag or the configured pool.
func resolvePool(cc *CommandContext) string {
	if poolID != "" {
		return poolID
	}
	if cc.Cfg != nil {
		return cc.Cfg.GetPoolID()
	}
	return ""
}

// resolveUser returns the --user flag or the connected wallet's key.
func resolveUser(cmd *cobra.Command, cc *CommandContext, required bool) (string, error) {
	if poolUser != "" {
		return poolUser, nil
	}
	if cc.Session != nil {
		_ = cc.Session.Restore(cmd.Context())
		if key, ok := cc.Session.PublicKey(); ok {
			return key, nil
		}
	}
	if !required {
		return "", nil
	}
	return "", anchorerr.WithSuggestion(anchorerr.ErrNotConnected, "pass --user or connect a wallet first")
}

func runPoolShow(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	ctx, cancel := contextWithTimeout(cmd, providerTimeout)
	defer cancel()

	pool := resolvePool(cc)
	storage, cache := loadEstimateCache(cc)

	est, err := cc.Provider.PoolEstimate(ctx, pool)
	if err != nil {
		last, ok := cache.Lookup(pool, "", lending.DefaultStaleness)
		if !ok || last.Pool == nil {
			return err
		}
		cc.Log.Error("pool %s: showing cached estimate: %v", pool, err)
		view := poolView{PoolEstimate: *last.Pool, Stale: last.Stale, UpdatedAt: &last.UpdatedAt}
		if rerr := render(cmd, view, func(w io.Writer) {
			displayPoolText(w, view.PoolEstimate)
			displayCacheAge(w, last)
		}); rerr != nil {
			return rerr
		}
		return err
	}

	cache.Set(lending.Snapshot{PoolID: pool, Pool: &est})
	saveEstimateCache(cc, storage, cache)
	return render(cmd, poolView{PoolEstimate: est}, func(w io.Writer) { displayPoolText(w, est) })
}

// poolView is a pool estimate as shown. UpdatedAt is set when it came from the cache.
type poolView struct {
	lending.PoolEstimate

	Stale     bool       `json:"stale,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func displayPoolText(w io.Writer, est lending.PoolEstimate) {
	name := est.Name
	if name == "" {
		name = est.PoolID
	}
	out(w, "Pool:        %s\n", name)
	out(w, "ID:          %s\n", est.PoolID)
	out(w, "Supplied:    %s\n", amount(est.TotalSupplied))
	out(w, "Borrowed:    %s\n", amount(est.TotalBorrowed))
	out(w, "Utilization: %s\n", percent(est.Utilization))
	out(w, "Supply APY:  %s\n", percent(est.SupplyAPY))
	out(w, "Borrow APY:  %s\n", percent(est.BorrowAPY))
	out(w, "Risk:        %s\n", percent(est.RiskLevel))

	if len(est.Reserves) == 0 {
		return
	}
	outln(w)
	tbl := output.NewTable("ASSET", "SUPPLIED", "BORROWED", "UTIL", "SUPPLY APY", "BORROW APY")
	for _, r := range est.Reserves {
		tbl.AddRow(r.Symbol, amount(r.TotalSupplied), amount(r.TotalBorrowed),
			percent(r.Utilization), percent(r.SupplyAPY), percent(r.BorrowAPY))
	}
	_ = tbl.Render(w)
}

func runPoolPositions(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	user, err := resolveUser(cmd, cc, true)
	if err != nil {
		return err
	}
	ctx, cancel := contextWithTimeout(cmd, providerTimeout)
	defer cancel()

	est, err := cc.Provider.UserPositions(ctx, resolvePool(cc), user)
	if err != nil {
		return err
	}

	return render(cmd, est, func(w io.Writer) {
		out(w, "User:          %s\n", est.UserID)
		out(w, "Pool:          %s\n", est.PoolID)
		out(w, "Supplied:      %s\n", amount(est.TotalSupplied))
		out(w, "Borrowed:      %s\n", amount(est.TotalBorrowed))
		out(w, "Borrow limit:  %s\n", percent(est.BorrowLimit))
		out(w, "Borrow cap:    %s\n", amount(est.BorrowCap))
		out(w, "Health factor: %.2f\n", est.HealthFactor)
		out(w, "Net APY:       %s\n", percent(est.NetAPY))
		if len(est.Positions) > 0 {
			outln(w)
			tbl := output.NewTable("ASSET", "COLLATERAL", "SUPPLIED", "BORROWED")
			for _, p := range est.Positions {
				tbl.AddRow(p.AssetID, amount(p.Collateral), amount(p.Supplied), amount(p.Borrowed))
			}
			_ = tbl.Render(w)
		}
	})
}

// backstopView combines the pool backstop with an optional user share.
type backstopView struct {
	Backstop lending.BackstopEstimate      `json:"backstop"`
	User     *lending.BackstopUserEstimate `json:"user,omitempty"`
}

func runPoolBackstop(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	pool := resolvePool(cc)
	ctx, cancel := contextWithTimeout(cmd, providerTimeout)
	defer cancel()

	bs, err := cc.Provider.BackstopEstimate(ctx, pool)
	if err != nil {
		return err
	}
	view := backstopView{Backstop: bs}

	user, err := resolveUser(cmd, cc, false)
	if err != nil {
		return err
	}
	if user != "" {
		ub, err := cc.Provider.UserBackstop(ctx, pool, user)
		if err != nil {
			return err
		}
		view.User = &ub
	}

	return render(cmd, view, func(w io.Writer) {
		out(w, "Backstop:   %s\n", bs.BackstopID)
		out(w, "Pool:       %s\n", bs.PoolID)
		out(w, "Value:      %s\n", amount(bs.TotalSpotValue))
		out(w, "Shares:     %s\n", amount(bs.Shares))
		out(w, "Queued:     %s\n", percent(bs.Q4W))
		out(w, "APR:        %s\n", percent(bs.APR))
		if view.User != nil {
			outln(w)
			out(w, "User:       %s\n", view.User.UserID)
			out(w, "Tokens:     %s\n", amount(view.User.Tokens))
			out(w, "Shares:     %s\n", amount(view.User.Shares))
			out(w, "Queued:     %s\n", amount(view.User.TotalQueued))
			out(w, "Unlocked:   %s\n", amount(view.User.TotalUnlocked))
			out(w, "Earned:     %s\n", amount(view.User.EarnedValue))
		}
	})
}

func percent(f float64) string {
	return fmt.Sprintf("%.2f%%", f*100)
}

func amount(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
