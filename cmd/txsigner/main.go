// txsigner CLI - streaming transaction signer
//
// The CLI plays both sides of a signing session: it loads a session file,
// answers the signer's requests from it and asks the user at every
// confirmation checkpoint.
//
// Example usage:
//
//	# Sign a session file with a hex seed
//	txsigner sign --seed 5a5a... session.yaml
//
//	# List the coin table
//	txsigner coins
//
//	# Parse a payment request
//	txsigner parse-uri "bitcoin:bc1q...?amount=0.001&label=coffee"
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/suffix-labs/txsigner/pkg/coins"
	"github.com/suffix-labs/txsigner/pkg/payuri"
)

const version = "v0.2.0"

var (
	coinsPath string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:           "txsigner",
	Short:         "Streaming multi-pass transaction signer",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&coinsPath, "coins", "", "coin table YAML (default: built-in table)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every signing step")
	rootCmd.AddCommand(signCmd, coinsCmd, parseURICmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func loadCoins() (*coins.Table, error) {
	if coinsPath == "" {
		return coins.Default(), nil
	}
	f, err := os.Open(coinsPath)
	if err != nil {
		return nil, errors.Wrap(err, "open coin table")
	}
	defer f.Close()
	return coins.Load(f)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("txsigner %s\n", version)
	},
}

var coinsCmd = &cobra.Command{
	Use:   "coins",
	Short: "List the coin table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := loadCoins()
		if err != nil {
			return err
		}
		for _, c := range table.All() {
			family := "bitcoin"
			switch {
			case c.Decred:
				family = "decred"
			case c.Overwintered:
				family = "zcash"
			case c.ForkID != nil:
				family = "forkid"
			}
			fmt.Printf("%-16s %-6s slip44=%-4d %-8s segwit=%-5t dust=%d fee/kB=%d..%d\n",
				c.Name, c.Shortcut, c.Slip44, family, c.Segwit, c.DustLimit, c.MinFeeKB, c.MaxFeeKB)
		}
		return nil
	},
}

var parseURICmd = &cobra.Command{
	Use:   "parse-uri <uri>",
	Short: "Parse a BIP-21 style payment request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := payuri.Parse(args[0])
		if err != nil {
			return errors.Wrap(err, "parse URI")
		}

		fmt.Println("Payment Request:")
		fmt.Printf("  Scheme:   %s\n", req.Scheme)
		fmt.Printf("  Payments: %d\n\n", len(req.Payments))
		for i, p := range req.Payments {
			fmt.Printf("Payment %d:\n", i+1)
			fmt.Printf("  Address: %s\n", p.Address)
			if p.Amount > 0 {
				fmt.Printf("  Amount:  %s\n", payuri.FormatAmount(p.Amount))
			} else {
				fmt.Println("  Amount:  (user specified)")
			}
			if p.Label != "" {
				fmt.Printf("  Label:   %s\n", p.Label)
			}
			if p.Message != "" {
				fmt.Printf("  Message: %s\n", p.Message)
			}
			fmt.Println()
		}
		fmt.Printf("Re-encoded URI:\n%s\n", req.Encode())
		return nil
	},
}
