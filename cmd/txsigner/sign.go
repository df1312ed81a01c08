package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/suffix-labs/txsigner/pkg/coins"
	"github.com/suffix-labs/txsigner/pkg/crypto"
	"github.com/suffix-labs/txsigner/pkg/host"
	"github.com/suffix-labs/txsigner/pkg/payuri"
	"github.com/suffix-labs/txsigner/pkg/signing"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
	"gopkg.in/yaml.v3"
)

var (
	seedHex    string
	assumeYes  bool
	dump       bool
	mergePath  string
	outSigPath string
)

var signCmd = &cobra.Command{
	Use:   "sign <session.yaml>",
	Short: "Sign a session file and print the raw transaction",
	Args:  cobra.ExactArgs(1),
	RunE:  runSign,
}

func init() {
	signCmd.Flags().StringVar(&seedHex, "seed", "", "BIP-32 seed, hex (default: $TXSIGNER_SEED)")
	signCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "approve every confirmation")
	signCmd.Flags().BoolVar(&dump, "dump", false, "dump the request log and signatures to stderr")
	signCmd.Flags().StringVar(&mergePath, "merge", "", "cosigner signatures to merge before signing")
	signCmd.Flags().StringVar(&outSigPath, "signatures", "", "write the released signatures to this file")
}

// signatureFile is the YAML form of signatures passed between cosigners.
type signatureFile struct {
	Input     uint32 `yaml:"input"`
	Signature string `yaml:"signature"`
	PublicKey string `yaml:"public_key"`
}

func runSign(cmd *cobra.Command, args []string) error {
	log := newLogger()

	table, err := loadCoins()
	if err != nil {
		return err
	}
	tx, coin, err := loadSession(args[0], table)
	if err != nil {
		return err
	}
	keys, err := keychain()
	if err != nil {
		return err
	}

	if mergePath != "" {
		sigs, err := readSignatures(mergePath)
		if err != nil {
			return err
		}
		n, err := host.Combine(tx, sigs)
		if err != nil {
			return errors.Wrap(err, "merge cosigner signatures")
		}
		log.Info().Int("signatures", n).Msg("merged cosigner signatures")
	}

	signer := signing.NewSigner(keys,
		signing.WithCoins(table),
		signing.WithLogger(log),
		signing.WithObserver(signing.LogObserver{Logger: log}),
	)
	confirm := host.ConfirmAll
	if !assumeYes {
		confirm = prompt(coin, bufio.NewReader(os.Stdin), os.Stderr)
	}
	res, err := host.New(tx, host.WithConfirmer(confirm), host.WithLogger(log)).Run(signer)
	if dump && res != nil {
		spew.Fdump(os.Stderr, res.Requests)
	}
	if err != nil {
		return errors.Wrap(err, "signing failed")
	}

	if outSigPath != "" {
		if err := writeSignatures(outSigPath, res.Signatures); err != nil {
			return err
		}
	}

	raw, err := host.NewExtractor(coin, tx, res.Signatures, keys).Extract()
	if err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(raw))
	return nil
}

func loadSession(path string, table *coins.Table) (*host.Transaction, *coins.CoinInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open session file")
	}
	defer f.Close()
	return host.LoadFile(f, table)
}

func keychain() (*crypto.SoftwareKeychain, error) {
	s := seedHex
	if s == "" {
		s = os.Getenv("TXSIGNER_SEED")
	}
	if s == "" {
		return nil, errors.New("no seed: use --seed or TXSIGNER_SEED")
	}
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode seed")
	}
	return crypto.NewSoftwareKeychain(seed)
}

// prompt asks the user on out and reads y/n answers from in.
func prompt(coin *coins.CoinInfo, in *bufio.Reader, out io.Writer) host.Confirmer {
	return func(req *txmsg.Request) bool {
		switch req.Type {
		case txmsg.RequestConfirmOutput:
			if req.Output.ScriptType == txmsg.PayToOpReturn {
				fmt.Fprintf(out, "OP_RETURN %x\n", req.Output.OpReturnData)
			} else {
				fmt.Fprintf(out, "Send %s %s to %s\n", payuri.FormatAmount(req.Output.Amount), coin.Shortcut, req.Address)
			}
		case txmsg.RequestConfirmFee:
			fmt.Fprintf(out, "Fee %s %s is unusually high\n", payuri.FormatAmount(req.Fee), coin.Shortcut)
		case txmsg.RequestConfirmLockTime:
			fmt.Fprintf(out, "Locked until %d\n", req.LockTime)
		case txmsg.RequestConfirmForeignAddress:
			fmt.Fprintln(out, "Transaction spends inputs from a foreign path or another wallet")
		}
		fmt.Fprint(out, "Confirm? [y/N] ")
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

func readSignatures(path string) ([]*txmsg.Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read signatures")
	}
	var entries []signatureFile
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, "decode signatures")
	}
	sigs := make([]*txmsg.Signature, 0, len(entries))
	for _, e := range entries {
		der, err := hex.DecodeString(e.Signature)
		if err != nil {
			return nil, errors.Wrapf(err, "input %d signature", e.Input)
		}
		pub, err := hex.DecodeString(e.PublicKey)
		if err != nil {
			return nil, errors.Wrapf(err, "input %d public key", e.Input)
		}
		sigs = append(sigs, &txmsg.Signature{InputIndex: e.Input, Signature: der, PublicKey: pub})
	}
	return sigs, nil
}

func writeSignatures(path string, sigs []*txmsg.Signature) error {
	entries := make([]signatureFile, len(sigs))
	for i, sig := range sigs {
		entries[i] = signatureFile{
			Input:     sig.InputIndex,
			Signature: hex.EncodeToString(sig.Signature),
			PublicKey: hex.EncodeToString(sig.PublicKey),
		}
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, "encode signatures")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o600), "write signatures")
}
