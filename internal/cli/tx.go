package cli

import (
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/anchor/internal/output"
	"github.com/mrz1836/anchor/internal/store"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	txUser       string
	txType       string
	txAssetFrom  string
	txAssetTo    string
	txAmountFrom float64
	txAmountTo   float64
	txCurrency   string
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Record and list transactions",
	Long:  `Record swaps, stakes and loans against a user and list them. Records are append-only.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var txRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a transaction",
	Long: `Append a swap, stake or loan to a user's transaction log.

Example:
  anchor tx record --user 7f6c... --type swap --from XLM --to USDC \
    --amount-from 100 --amount-to 11.2 --currency USD`,
	Args: cobra.NoArgs,
	RunE: runTxRecord,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's transactions",
	Long: `List a user's transactions, oldest first.

Example:
  anchor tx list --user 7f6c...`,
	Args: cobra.NoArgs,
	RunE: runTxList,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(txCmd)
	txCmd.AddCommand(txRecordCmd)
	txCmd.AddCommand(txListCmd)

	txCmd.PersistentFlags().StringVar(&txUser, "user", "", "user ID (required)")
	_ = txCmd.MarkPersistentFlagRequired("user")

	txRecordCmd.Flags().StringVar(&txType, "type", "", "transaction type: swap, stake, loan")
	txRecordCmd.Flags().StringVar(&txAssetFrom, "from", "", "asset given")
	txRecordCmd.Flags().StringVar(&txAssetTo, "to", "", "asset received")
	txRecordCmd.Flags().Float64Var(&txAmountFrom, "amount-from", 0, "amount given")
	txRecordCmd.Flags().Float64Var(&txAmountTo, "amount-to", 0, "amount received")
	txRecordCmd.Flags().StringVar(&txCurrency, "currency", "USD", "reporting currency")
	_ = txRecordCmd.MarkFlagRequired("type")
}

func runTxRecord(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	userID, err := parseID("user", txUser)
	if err != nil {
		return err
	}
	tx := &store.Transaction{
		UserID:     userID,
		Type:       store.TxType(strings.ToLower(strings.TrimSpace(txType))),
		AssetFrom:  txAssetFrom,
		AssetTo:    txAssetTo,
		AmountFrom: txAmountFrom,
		AmountTo:   txAmountTo,
		Currency:   strings.ToUpper(txCurrency),
	}
	if err := withStore(cc, func(s Store) error {
		return s.RecordTransaction(cmd.Context(), tx)
	}); err != nil {
		return err
	}

	return render(cmd, tx, func(w io.Writer) {
		out(w, "Recorded %s %s\n", tx.Type, tx.ID)
		out(w, "  %s %s -> %s %s\n", amount(tx.AmountFrom), tx.AssetFrom, amount(tx.AmountTo), tx.AssetTo)
	})
}

func runTxList(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	userID, err := parseID("user", txUser)
	if err != nil {
		return err
	}
	var txs []store.Transaction
	if err := withStore(cc, func(s Store) error {
		txs, err = s.UserTransactions(cmd.Context(), userID)
		return err
	}); err != nil {
		return err
	}
	if txs == nil {
		txs = []store.Transaction{}
	}

	return render(cmd, txs, func(w io.Writer) {
		if len(txs) == 0 {
			outln(w, "No transactions recorded.")
			return
		}
		tbl := output.NewTable("TIME", "TYPE", "FROM", "AMOUNT", "TO", "AMOUNT", "CCY")
		for _, t := range txs {
			tbl.AddRow(t.Timestamp.Format(time.RFC3339), string(t.Type),
				t.AssetFrom, amount(t.AmountFrom), t.AssetTo, amount(t.AmountTo), t.Currency)
		}
		_ = tbl.Render(w)
	})
}
