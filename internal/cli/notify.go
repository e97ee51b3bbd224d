package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/anchor/internal/metrics"
	"github.com/mrz1836/anchor/internal/notify"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var notifyCmd = &cobra.Command{
	Use:   "notify <severity> <message...>",
	Short: "Publish a notification",
	Long: `Publish a notification on the bus. It is printed like any other alert.
Severity is one of info, warning, error or success.

Example:
  anchor notify success "Deposit confirmed"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runNotify,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show counters for this invocation",
	Long: `Run a status check and print the wallet, notification, provider, store and
cache counters it produced.`,
	Args: cobra.NoArgs,
	RunE: runMetrics,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(metricsCmd)
}

func runNotify(cmd *cobra.Command, args []string) error {
	cc := GetCmdContext(cmd)

	sev, err := notify.ParseSeverity(args[0])
	if err != nil {
		return err
	}
	id := cc.Bus.Notify(sev, strings.Join(args[1:], " "))

	// The notification itself is printed by the bus subscriber
	return render(cmd, map[string]string{"id": id}, func(io.Writer) {})
}

func runMetrics(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	if cc.Session != nil {
		if err := cc.Session.Restore(cmd.Context()); err != nil {
			cc.Log.Debug("restore: %v", err)
		}
	}
	var snap metrics.Snapshot
	if cc.Metrics != nil {
		snap = cc.Metrics.Snapshot()
	}

	return render(cmd, snap, func(w io.Writer) {
		out(w, "Wallet ops:        %d\n", snap.WalletOpsTotal)
		out(w, "Wallet errors:     %d\n", snap.WalletOpsErrors)
		out(w, "Notifications:     %d\n", snap.NotificationsTotal)
		out(w, "Provider calls:    %d\n", snap.ProviderCallsTotal)
		out(w, "Provider latency:  %.1f ms\n", snap.ProviderLatencyAvgMs())
		out(w, "Store ops:         %d\n", snap.StoreOpsTotal)
		out(w, "Cache hit rate:    %.0f%%\n", snap.CacheHitRate())
	})
}
