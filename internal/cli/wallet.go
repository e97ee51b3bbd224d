package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/anchor/internal/driver"
	"github.com/mrz1836/anchor/internal/output"
)

// out is a helper for CLI output that ignores write errors.
//
//nolint:errcheck // CLI output writes to stdout are intentionally unchecked
func out(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}

// outln is a helper for CLI output with newline.
//
//nolint:errcheck // CLI output writes to stdout are intentionally unchecked
func outln(w io.Writer, args ...any) {
	fmt.Fprintln(w, args...)
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var listAll bool

// walletCmd is the parent command for wallet driver operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Inspect wallet drivers",
	Long:  `List the supported wallet kinds and check which of them can be used right now.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available wallets",
	Long: `List the wallet kinds whose bridge is running. Use --all to include
kinds that are not available.

Example:
  anchor wallet list
  anchor wallet list --all -o json`,
	Args: cobra.NoArgs,
	RunE: runWalletList,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletDescribeCmd = &cobra.Command{
	Use:   "describe <kind>",
	Short: "Describe a wallet kind",
	Long: `Show a wallet kind's name, description and current availability.

Example:
  anchor wallet describe freighter`,
	Args: cobra.ExactArgs(1),
	RunE: runWalletDescribe,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletListCmd)
	walletCmd.AddCommand(walletDescribeCmd)

	walletListCmd.Flags().BoolVar(&listAll, "all", false, "include unavailable wallet kinds")
}

func runWalletList(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	var descs []driver.Descriptor
	if listAll {
		for _, k := range driver.Kinds() {
			d, err := cc.Registry.Describe(k)
			if err != nil {
				return err
			}
			descs = append(descs, d)
		}
	} else {
		descs = cc.Registry.DetectAvailable()
	}
	if descs == nil {
		descs = []driver.Descriptor{}
	}

	return render(cmd, descs, func(w io.Writer) {
		if len(descs) == 0 {
			outln(w, "No wallets available.")
			outln(w, "Start the Freighter or Albedo bridge, or rerun with --mock.")
			return
		}
		tbl := output.NewTable("KIND", "NAME", "AVAILABLE", "DESCRIPTION")
		for _, d := range descs {
			tbl.AddRow(string(d.Kind), d.DisplayName, yesNo(d.Available), d.Description)
		}
		_ = tbl.Render(w)
	})
}

func runWalletDescribe(cmd *cobra.Command, args []string) error {
	cc := GetCmdContext(cmd)

	kind, err := driver.ParseKind(args[0])
	if err != nil {
		return err
	}
	d, err := cc.Registry.Describe(kind)
	if err != nil {
		return err
	}

	return render(cmd, d, func(w io.Writer) {
		out(w, "Kind:        %s\n", d.Kind)
		out(w, "Name:        %s\n", d.DisplayName)
		out(w, "Description: %s\n", d.Description)
		out(w, "Available:   %s\n", yesNo(d.Available))
	})
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
