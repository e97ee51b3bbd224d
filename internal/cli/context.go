package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/anchor/internal/config"
	"github.com/mrz1836/anchor/internal/driver"
	"github.com/mrz1836/anchor/internal/lending"
	"github.com/mrz1836/anchor/internal/metrics"
	"github.com/mrz1836/anchor/internal/notify"
	"github.com/mrz1836/anchor/internal/output"
	"github.com/mrz1836/anchor/internal/rpc"
	"github.com/mrz1836/anchor/internal/session"
	"github.com/mrz1836/anchor/internal/store"
)

// CommandContext holds dependencies for CLI commands.
type CommandContext struct {
	Cfg      ConfigProvider
	Log      LogWriter
	Fmt      FormatProvider
	Registry *driver.Registry
	Session  *session.Session
	Bus      *notify.Bus
	Metrics  *metrics.Metrics
	Provider lending.Provider

	// OpenStore connects to the persistence store on demand.
	OpenStore func() (Store, error)
}

// NewCommandContext wires the application from configuration. With mock set,
// every wallet kind is available and backed by an in-process driver.
func NewCommandContext(cfg *config.Config, logger *config.Logger, formatter *output.Formatter, mock bool) *CommandContext {
	m := metrics.New()
	bus := notify.New(
		notify.WithTTL(cfg.NotificationTTL()),
		notify.WithLogger(logger),
		notify.WithRecorder(m),
	)

	registry := newRegistry(cfg, logger, mock)
	sess := session.New(registry,
		session.WithNotifier(bus),
		session.WithRecorder(m),
		session.WithLogger(logger),
		session.WithConnectTimeout(cfg.ConnectTimeout()),
	)

	ratePerSecond, burst := cfg.LendingRate()
	client := rpc.NewClient(cfg.GetLendingProviderURL(), lending.ClientOptions(ratePerSecond, burst, m)...)

	return &CommandContext{
		Cfg:      cfg,
		Log:      logger,
		Fmt:      formatter,
		Registry: registry,
		Session:  sess,
		Bus:      bus,
		Metrics:  m,
		Provider: lending.NewRPCProvider(client, cfg.GetBackstopID()),
		OpenStore: func() (Store, error) {
			dsn, err := config.ExpandHome(cfg.GetStoreDSN())
			if err != nil {
				return nil, err
			}
			return store.Open(cfg.GetStoreDriver(), dsn, store.WithRecorder(m))
		},
	}
}

func newRegistry(cfg *config.Config, logger *config.Logger, mock bool) *driver.Registry {
	opts := []driver.Option{
		driver.WithRetainer(driver.NewRetainer(cfg.GetRetainMethod(), cfg.GetHome())),
		driver.WithProbeTimeout(cfg.ProbeTimeout()),
		driver.WithLogger(logger),
	}

	if mock {
		markers := make([]string, 0, len(driver.Kinds()))
		for _, k := range driver.Kinds() {
			markers = append(markers, k.Marker())
		}
		opts = append(opts, driver.WithFactory(driver.StaticFactory()))
		return driver.NewRegistry(driver.NewMapEnvironment(markers...), opts...)
	}

	endpoints := make(map[driver.Kind]string, len(driver.Kinds()))
	for _, k := range driver.Kinds() {
		if url := cfg.GetBridgeURL(string(k)); url != "" {
			endpoints[k] = url
		}
	}
	opts = append(opts, driver.WithFactory(driver.BridgeFactory(endpoints, cfg.GetNetworkPassphrase())))
	return driver.NewRegistry(driver.NewOSEnvironment(cfg.GetHome()), opts...)
}

// Close releases the bus. The session is left as is so the retained wallet survives.
func (c *CommandContext) Close() {
	if c.Bus != nil {
		c.Bus.Close()
	}
}

// subscribeNotifications renders every bus notification to w.
func subscribeNotifications(c *CommandContext, w io.Writer) {
	if c.Bus == nil {
		return
	}
	format := output.FormatText
	if c.Fmt != nil {
		format = c.Fmt.Format()
	}
	c.Bus.Subscribe(output.NotificationWriter(w, format))
}

type cmdContextKey struct{}

// SetCmdContext attaches cc to the command's context.
func SetCmdContext(cmd *cobra.Command, cc *CommandContext) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	cmd.SetContext(context.WithValue(base, cmdContextKey{}, cc))
}

// GetCmdContext returns the CommandContext attached to cmd, or an empty one.
func GetCmdContext(cmd *cobra.Command) *CommandContext {
	if ctx := cmd.Context(); ctx != nil {
		if cc, ok := ctx.Value(cmdContextKey{}).(*CommandContext); ok && cc != nil {
			return cc
		}
	}
	return &CommandContext{}
}
