package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/anchor/internal/driver"
	"github.com/mrz1836/anchor/internal/output"
	"github.com/mrz1836/anchor/internal/session"
	anchorerr "github.com/mrz1836/anchor/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	statusQR       bool
	signPassphrase string
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var connectCmd = &cobra.Command{
	Use:   "connect <kind>",
	Short: "Connect a wallet",
	Long: `Connect to a wallet through its bridge and fetch its public key.
The wallet kind is remembered so later commands reconnect silently.

Example:
  anchor connect freighter
  anchor connect albedo --mock`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disconnect the active wallet",
	Long: `Tear down the active wallet connection and forget it. The session always
ends disconnected, even when the wallet reports a teardown failure.`,
	Args: cobra.NoArgs,
	RunE: runDisconnect,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the wallet session",
	Long: `Reconnect silently to the remembered wallet, if any, and show the session.

Example:
  anchor status
  anchor status --qr`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var signCmd = &cobra.Command{
	Use:   "sign <xdr>",
	Short: "Sign a transaction with the connected wallet",
	Long: `Ask the connected wallet to sign a base64 transaction envelope and print
the signed envelope.

Example:
  anchor sign AAAAAgAAAAB...`,
	Args: cobra.ExactArgs(1),
	RunE: runSign,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(signCmd)

	statusCmd.Flags().BoolVar(&statusQR, "qr", false, "render the public key as a QR code on a terminal")
	signCmd.Flags().StringVar(&signPassphrase, "network-passphrase", "", "network passphrase (default: from config)")
}

// statusView is the JSON shape of the session.
type statusView struct {
	session.State
	Error *output.ErrorDetail `json:"last_error,omitempty"`
}

func newStatusView(st session.State) statusView {
	v := statusView{State: st}
	if st.LastError != nil {
		d := output.Describe(st.LastError)
		v.Error = &d
	}
	return v
}

func runConnect(cmd *cobra.Command, args []string) error {
	cc := GetCmdContext(cmd)

	kind, err := driver.ParseKind(args[0])
	if err != nil {
		return err
	}
	if err := cc.Session.ConnectKind(cmd.Context(), kind); err != nil {
		return err
	}
	return renderState(cmd, cc.Session.State())
}

func runDisconnect(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	// Pick up the remembered wallet so its driver is torn down too
	_ = cc.Session.Restore(cmd.Context())
	err := cc.Session.Disconnect(cmd.Context())

	// A remembered wallet that could not be restored is forgotten as well
	if ferr := cc.Registry.Forget(); ferr != nil {
		cc.Log.Error("forgetting active wallet: %v", ferr)
	}
	if err != nil {
		return err
	}
	return renderState(cmd, cc.Session.State())
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	if err := cc.Session.Restore(cmd.Context()); err != nil {
		cc.Log.Debug("restore: %v", err)
	}
	st := cc.Session.State()
	if err := renderState(cmd, st); err != nil {
		return err
	}
	if statusQR && st.Connected {
		output.RenderQR(cmd.OutOrStdout(), st.PublicKey, output.DefaultQRConfig())
	}
	return nil
}

func runSign(cmd *cobra.Command, args []string) error {
	cc := GetCmdContext(cmd)

	if err := cc.Session.Restore(cmd.Context()); err != nil {
		return err
	}
	if _, ok := cc.Session.PublicKey(); !ok {
		return anchorerr.WithSuggestion(anchorerr.ErrNotConnected, "connect a wallet first: anchor connect <kind>")
	}

	passphrase := signPassphrase
	if passphrase == "" && cc.Cfg != nil {
		passphrase = cc.Cfg.GetNetworkPassphrase()
	}
	signed, err := cc.Session.SignTransaction(cmd.Context(), driver.Transaction{XDR: args[0], NetworkPassphrase: passphrase})
	if err != nil {
		return err
	}

	return render(cmd, signed, func(w io.Writer) {
		outln(w, signed.XDR)
	})
}

func renderState(cmd *cobra.Command, st session.State) error {
	return render(cmd, newStatusView(st), func(w io.Writer) {
		if !st.Connected {
			outln(w, "Wallet: not connected")
			if st.LastError != nil {
				out(w, "Last error: %s\n", output.Describe(st.LastError).Message)
			}
			return
		}
		out(w, "Wallet:     %s\n", st.Kind.DisplayName())
		out(w, "Public key: %s\n", st.PublicKey)
	})
}
