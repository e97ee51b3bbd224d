package cli

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/cobra"

	"github.com/mrz1836/anchor/internal/config"
	"github.com/mrz1836/anchor/internal/driver"
	"github.com/mrz1836/anchor/internal/output"
	anchorerr "github.com/mrz1836/anchor/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify anchor configuration settings.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.anchor/config.yaml.

An existing file is only replaced with --force.

Example:
  anchor config init
  anchor config init --force`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display every configuration key with its effective value.
Database passwords are masked.

Example:
  anchor config show
  anchor config show -o json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get one configuration value by its dotted key.

Examples:
  anchor config get lending.pool_id
  anchor config get wallet.bridges.freighter`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set one configuration value by its dotted key and save the file.

Examples:
  anchor config set lending.pool_id CPOOL...
  anchor config set wallet.retain keyring
  anchor config set logging.level debug`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		outln(cmd.OutOrStdout(), config.Path(cfg.Home))
		return nil
	},
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
}

// configKey binds a dotted key to its field.
type configKey struct {
	get func(c *config.Config) string
	set func(c *config.Config, v string) error
}

// configKeys lists every settable key.
func configKeys() map[string]configKey {
	keys := map[string]configKey{
		"home": {
			get: func(c *config.Config) string { return c.Home },
			set: func(c *config.Config, v string) error { c.Home = v; return nil },
		},
		"network.rpc": {
			get: func(c *config.Config) string { return c.Network.RPC },
			set: setURL(func(c *config.Config, v string) { c.Network.RPC = v }),
		},
		"network.passphrase": {
			get: func(c *config.Config) string { return c.Network.Passphrase },
			set: func(c *config.Config, v string) error { c.Network.Passphrase = v; return nil },
		},
		"wallet.retain": {
			get: func(c *config.Config) string { return c.Wallet.Retain },
			set: setOneOf(func(c *config.Config, v string) { c.Wallet.Retain = v }, "file", "keyring"),
		},
		"wallet.probe_timeout_ms": {
			get: func(c *config.Config) string { return strconv.Itoa(c.Wallet.ProbeTimeoutMillis) },
			set: setInt(func(c *config.Config, n int) { c.Wallet.ProbeTimeoutMillis = n }),
		},
		"wallet.connect_timeout_seconds": {
			get: func(c *config.Config) string { return strconv.Itoa(c.Wallet.ConnectTimeoutSeconds) },
			set: setInt(func(c *config.Config, n int) { c.Wallet.ConnectTimeoutSeconds = n }),
		},
		"notifications.ttl_seconds": {
			get: func(c *config.Config) string { return strconv.Itoa(c.Notifications.TTLSeconds) },
			set: setInt(func(c *config.Config, n int) { c.Notifications.TTLSeconds = n }),
		},
		"lending.provider_url": {
			get: func(c *config.Config) string { return c.Lending.ProviderURL },
			set: setURL(func(c *config.Config, v string) { c.Lending.ProviderURL = v }),
		},
		"lending.pool_id": {
			get: func(c *config.Config) string { return c.Lending.PoolID },
			set: func(c *config.Config, v string) error { c.Lending.PoolID = v; return nil },
		},
		"lending.backstop_id": {
			get: func(c *config.Config) string { return c.Lending.BackstopID },
			set: func(c *config.Config, v string) error { c.Lending.BackstopID = v; return nil },
		},
		"lending.alternative_pools": {
			get: func(c *config.Config) string { return strings.Join(c.Lending.AlternativePools, ",") },
			set: func(c *config.Config, v string) error {
				var pools []string
				for _, id := range strings.Split(v, ",") {
					if id = strings.TrimSpace(id); id != "" {
						pools = append(pools, id)
					}
				}
				c.Lending.AlternativePools = pools
				return nil
			},
		},
		"lending.rate_per_second": {
			get: func(c *config.Config) string { return strconv.FormatFloat(c.Lending.RatePerSecond, 'f', -1, 64) },
			set: func(c *config.Config, v string) error {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil || f <= 0 {
					return invalidValue(v, "a positive number")
				}
				c.Lending.RatePerSecond = f
				return nil
			},
		},
		"lending.burst": {
			get: func(c *config.Config) string { return strconv.Itoa(c.Lending.Burst) },
			set: setInt(func(c *config.Config, n int) { c.Lending.Burst = n }),
		},
		"lending.interval_seconds": {
			get: func(c *config.Config) string { return strconv.Itoa(c.Lending.IntervalSeconds) },
			set: setInt(func(c *config.Config, n int) { c.Lending.IntervalSeconds = n }),
		},
		"store.driver": {
			get: func(c *config.Config) string { return c.Store.Driver },
			set: setOneOf(func(c *config.Config, v string) { c.Store.Driver = v }, "sqlite", "postgres"),
		},
		"store.dsn": {
			get: func(c *config.Config) string { return c.Store.DSN },
			set: func(c *config.Config, v string) error { c.Store.DSN = v; return nil },
		},
		"output.default_format": {
			get: func(c *config.Config) string { return c.Output.DefaultFormat },
			set: setOneOf(func(c *config.Config, v string) { c.Output.DefaultFormat = v }, "text", "json", "auto"),
		},
		"output.color": {
			get: func(c *config.Config) string { return c.Output.Color },
			set: setOneOf(func(c *config.Config, v string) { c.Output.Color = v }, "auto", "always", "never"),
		},
		"output.verbose": {
			get: func(c *config.Config) string { return strconv.FormatBool(c.Output.Verbose) },
			set: func(c *config.Config, v string) error {
				b, err := strconv.ParseBool(v)
				if err != nil {
					return invalidValue(v, "true or false")
				}
				c.Output.Verbose = b
				return nil
			},
		},
		"logging.level": {
			get: func(c *config.Config) string { return c.Logging.Level },
			set: setOneOf(func(c *config.Config, v string) { c.Logging.Level = v }, "off", "error", "debug"),
		},
		"logging.file": {
			get: func(c *config.Config) string { return c.Logging.File },
			set: func(c *config.Config, v string) error { c.Logging.File = v; return nil },
		},
	}

	for _, k := range driver.Kinds() {
		name := string(k)
		keys["wallet.bridges."+name] = configKey{
			get: func(c *config.Config) string { return c.Wallet.Bridges[name] },
			set: setURL(func(c *config.Config, v string) {
				if c.Wallet.Bridges == nil {
					c.Wallet.Bridges = make(map[string]string)
				}
				c.Wallet.Bridges[name] = v
			}),
		}
	}
	return keys
}

func setURL(assign func(*config.Config, string)) func(*config.Config, string) error {
	return func(c *config.Config, v string) error {
		v = config.SanitizeURL(v)
		if err := config.ValidateURL(v); err != nil {
			return anchorerr.Classify(anchorerr.ErrConfigInvalid, err)
		}
		assign(c, v)
		return nil
	}
}

func setInt(assign func(*config.Config, int)) func(*config.Config, string) error {
	return func(c *config.Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return invalidValue(v, "a positive integer")
		}
		assign(c, n)
		return nil
	}
}

func setOneOf(assign func(*config.Config, string), valid ...string) func(*config.Config, string) error {
	return func(c *config.Config, v string) error {
		for _, ok := range valid {
			if v == ok {
				assign(c, v)
				return nil
			}
		}
		return invalidValue(v, fmt.Sprint(valid))
	}
}

func invalidValue(value, valid string) error {
	return anchorerr.WithDetails(anchorerr.ErrConfigInvalid, map[string]string{"value": value, "valid": valid})
}

// lookupKey resolves a dotted key, suggesting the closest known key on a miss.
func lookupKey(path string) (configKey, error) {
	keys := configKeys()
	if k, ok := keys[path]; ok {
		return k, nil
	}

	err := anchorerr.WithDetails(anchorerr.ErrUnknownConfigKey, map[string]string{"key": path})
	best, bestDist := "", len(path)
	for name := range keys {
		if d := levenshtein.ComputeDistance(path, name); d < bestDist || (d == bestDist && name < best) {
			best, bestDist = name, d
		}
	}
	if best != "" && bestDist <= 3 {
		return configKey{}, anchorerr.WithSuggestion(err, fmt.Sprintf("did you mean '%s'?", best))
	}
	return configKey{}, anchorerr.WithSuggestion(err, "run 'anchor config show' to list keys")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	configPath := config.Path(cfg.Home)

	if _, err := os.Stat(configPath); err == nil && !configForce {
		return anchorerr.WithSuggestion(
			anchorerr.ErrGeneral,
			fmt.Sprintf("configuration already exists at %s. Use --force to overwrite.", configPath),
		)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	defaultCfg := config.Defaults()
	defaultCfg.Home = cfg.Home
	if err := config.Save(defaultCfg, configPath); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	w := cmd.OutOrStdout()
	out(w, "Configuration initialized at %s\n", configPath)
	outln(w)
	outln(w, "Edit this file to configure:")
	outln(w, "  - wallet.bridges.<kind>: Local wallet bridge endpoints")
	outln(w, "  - lending.provider_url: Lending estimate provider")
	outln(w, "  - lending.pool_id: Default pool for 'pool' and 'watch'")
	outln(w, "  - store.driver, store.dsn: User and transaction store")
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	keys := configKeys()
	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make(map[string]string, len(names))
	for _, name := range names {
		v := keys[name].get(cfg)
		if name == "store.dsn" {
			v = maskDSN(v)
		}
		values[name] = v
	}

	return render(cmd, values, func(w io.Writer) {
		tbl := output.NewTable("KEY", "VALUE")
		for _, name := range names {
			v := values[name]
			if v == "" {
				v = "(not configured)"
			}
			tbl.AddRow(name, v)
		}
		_ = tbl.Render(w)
	})
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	k, err := lookupKey(args[0])
	if err != nil {
		return err
	}
	outln(cmd.OutOrStdout(), k.get(cfg))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, value := args[0], args[1]

	k, err := lookupKey(path)
	if err != nil {
		return err
	}

	configPath := config.Path(cfg.Home)
	current, err := config.Load(configPath)
	if err != nil {
		current = config.Defaults()
	}
	if err := k.set(current, value); err != nil {
		return err
	}
	if err := config.Save(current, configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	out(cmd.OutOrStdout(), "Set %s = %s\n", path, k.get(current))
	return nil
}

//nolint:gochecknoglobals // compiled once
var dsnPassword = regexp.MustCompile(`(?i)(password=)\S+`)

// maskDSN hides the password in a URL or key=value database DSN.
func maskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			return u.String()
		}
	}
	return dsnPassword.ReplaceAllString(dsn, "${1}xxxxx")
}
