package cli

import (
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mrz1836/anchor/internal/store"
	anchorerr "github.com/mrz1836/anchor/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	userEmail   string
	userCountry string
	userWallet  string
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user profiles",
	Long:  `Create and look up user profiles in the local or hosted store.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	Long: `Create a user profile. The wallet address defaults to the connected wallet.

Example:
  anchor user create --email ada@example.com --country PT
  anchor user create --email ada@example.com --wallet GABC...`,
	Args: cobra.NoArgs,
	RunE: runUserCreate,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var userGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserGet,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userGetCmd)

	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "email address (required)")
	userCreateCmd.Flags().StringVar(&userCountry, "country", "", "country")
	userCreateCmd.Flags().StringVar(&userWallet, "wallet", "", "Stellar account ID (default: connected wallet)")
	_ = userCreateCmd.MarkFlagRequired("email")
}

// withStore opens the store for the duration of fn.
func withStore(cc *CommandContext, fn func(Store) error) error {
	if cc.OpenStore == nil {
		return anchorerr.WithSuggestion(anchorerr.ErrConfigInvalid, "configure store.driver and store.dsn")
	}
	s, err := cc.OpenStore()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && cc.Log != nil {
			cc.Log.Error("closing store: %v", cerr)
		}
	}()
	return fn(s)
}

// parseID parses a UUID argument.
func parseID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil, anchorerr.WithDetails(anchorerr.ErrInvalidInput, map[string]string{field: value})
	}
	return id, nil
}

func runUserCreate(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	wallet := userWallet
	if wallet == "" && cc.Session != nil {
		_ = cc.Session.Restore(cmd.Context())
		wallet, _ = cc.Session.PublicKey()
	}

	u := &store.User{
		Email:         strings.TrimSpace(userEmail),
		Country:       strings.TrimSpace(userCountry),
		WalletAddress: wallet,
	}
	if err := withStore(cc, func(s Store) error {
		return s.CreateUser(cmd.Context(), u)
	}); err != nil {
		return err
	}
	return renderUser(cmd, u)
}

func runUserGet(cmd *cobra.Command, args []string) error {
	cc := GetCmdContext(cmd)

	id, err := parseID("id", args[0])
	if err != nil {
		return err
	}
	var u *store.User
	if err := withStore(cc, func(s Store) error {
		u, err = s.GetUser(cmd.Context(), id)
		return err
	}); err != nil {
		return err
	}
	return renderUser(cmd, u)
}

func renderUser(cmd *cobra.Command, u *store.User) error {
	return render(cmd, u, func(w io.Writer) {
		out(w, "ID:      %s\n", u.ID)
		out(w, "Email:   %s\n", u.Email)
		if u.Country != "" {
			out(w, "Country: %s\n", u.Country)
		}
		if u.WalletAddress != "" {
			out(w, "Wallet:  %s\n", u.WalletAddress)
		}
		out(w, "Created: %s\n", u.CreatedAt.Format(time.RFC3339))
	})
}
