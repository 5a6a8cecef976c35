package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// A missing .env is fine; the private key may come from the environment.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "lpdesk",
		Short:        "Add and remove DEX pool liquidity",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	addChainFlags(root.PersistentFlags())

	quoteAddCmd := &cobra.Command{
		Use:   "quote-add [route]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Show the derived amounts for adding liquidity",
		RunE:  runQuoteAdd,
	}
	addPairFlags(quoteAddCmd.Flags())
	quoteAddCmd.Flags().String("amount-a", "", "amount of currency A")
	quoteAddCmd.Flags().String("amount-b", "", "amount of currency B")
	root.AddCommand(quoteAddCmd)

	addCmd := &cobra.Command{
		Use:   "add [route]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Add liquidity to a pool",
		RunE:  runAdd,
	}
	addPairFlags(addCmd.Flags())
	addCmd.Flags().String("amount-a", "", "amount of currency A")
	addCmd.Flags().String("amount-b", "", "amount of currency B")
	addSubmitFlags(addCmd.Flags())
	root.AddCommand(addCmd)

	quoteRemoveCmd := &cobra.Command{
		Use:   "quote-remove [route]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Show the derived amounts for removing liquidity",
		RunE:  runQuoteRemove,
	}
	addPairFlags(quoteRemoveCmd.Flags())
	addBurnFlags(quoteRemoveCmd.Flags())
	root.AddCommand(quoteRemoveCmd)

	removeCmd := &cobra.Command{
		Use:   "remove [route]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Remove liquidity from a pool",
		RunE:  runRemove,
	}
	addPairFlags(removeCmd.Flags())
	addBurnFlags(removeCmd.Flags())
	addSubmitFlags(removeCmd.Flags())
	removeCmd.Flags().Bool("permit", false, "authorize with a signed permit instead of an approval")
	root.AddCommand(removeCmd)

	approveCmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve the router to spend a token",
		RunE:  runApprove,
	}
	approveCmd.Flags().String("token", "", "token address")
	approveCmd.Flags().String("amount", "", "amount the router must be allowed to spend")
	approveCmd.Flags().Bool("exact-approval", false, "approve the exact amount instead of an unlimited allowance")
	approveCmd.Flags().Bool("yes", false, "skip confirmation prompts")
	root.AddCommand(approveCmd)

	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change slippage and deadline preferences",
	}
	settingsShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored preferences",
		RunE:  runSettingsShow,
	}
	settingsShowCmd.Flags().String("account", "", "settings account (defaults to the signer address)")
	settingsSetCmd := &cobra.Command{
		Use:   "set",
		Short: "Store new preferences",
		RunE:  runSettingsSet,
	}
	settingsSetCmd.Flags().String("account", "", "settings account (defaults to the signer address)")
	settingsSetCmd.Flags().String("slippage", "", "slippage tolerance in percent, e.g. 0.5")
	settingsSetCmd.Flags().String("deadline", "", "transaction deadline in minutes")
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	root.AddCommand(settingsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "JSON-RPC URL")
	flags.Uint64("chain-id", 0, "expected chain id, 0 means use the node's")
	flags.String("router", "", "router contract address")
	flags.String("factory", "", "factory contract address")
	flags.String("weth", "", "wrapped native token address")
	flags.String("native-symbol", "ETH", "native currency symbol")
	flags.String("permit-domain", "SushiSwap LP Token", "EIP-712 domain name of the LP token")
	flags.Bool("disable-native", false, "always use the token router methods")
	flags.String("settings-file", "./data/settings.json", "preferences file")
	flags.String("pg-dsn", "", "Postgres DSN for history and preferences")
	flags.String("history", "./data/transactions.jsonl", "transaction history JSONL path")
	flags.Duration("confirm-timeout", 5*time.Minute, "how long to wait for a transaction to be mined")
	flags.Duration("poll-interval", 2*time.Second, "receipt poll interval")
	flags.Int("max-retries", 5, "maximum retry attempts for receipt reads")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
}

func addPairFlags(flags *pflag.FlagSet) {
	flags.String("a", "", "currency A (native symbol or token address)")
	flags.String("b", "", "currency B (native symbol or token address)")
	flags.String("slippage", "", "slippage tolerance in percent, overrides the stored preference")
	flags.String("deadline", "", "deadline in minutes, overrides the stored preference")
}

func addBurnFlags(flags *pflag.FlagSet) {
	flags.String("percent", "", "percent of the position to remove (0-100)")
	flags.String("liquidity", "", "LP token amount to remove")
	flags.String("amount-a", "", "amount of currency A to receive")
	flags.String("amount-b", "", "amount of currency B to receive")
}

func addSubmitFlags(flags *pflag.FlagSet) {
	flags.Bool("approve", false, "send missing approvals before submitting")
	flags.Bool("exact-approval", false, "approve the exact amount instead of an unlimited allowance")
	flags.Bool("wait", false, "wait for the transaction to be mined")
	flags.Bool("yes", false, "skip confirmation prompts")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
