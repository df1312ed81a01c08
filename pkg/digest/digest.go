// Package digest computes signature digests for every supported script
// family without holding the transaction in memory.
//
// Families that precompute transaction-wide hashes (BIP-143, ZIP-143,
// ZIP-243, ZIP-244, Decred) implement Builder: inputs and outputs are fed
// once during the gathering passes, the builder is finalized, and each
// per-input digest is then derived from the accumulators plus that input's
// own fields. The Legacy family cannot be precomputed; it re-serializes the
// whole transaction for every signed input (see Legacy).
//
// References:
//   - BIP-143: https://github.com/bitcoin/bips/blob/master/bip-0143.mediawiki
//   - ZIP-143: https://zips.z.cash/zip-0143
//   - ZIP-243: https://zips.z.cash/zip-0243
//   - ZIP-244: https://zips.z.cash/zip-0244
//   - Decred: https://devdocs.decred.org/developer-guides/transactions/transaction-format/
package digest

import (
	"github.com/suffix-labs/txsigner/pkg/coins"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// Family is the closed set of digest algorithms.
type Family uint8

const (
	Legacy Family = iota + 1
	BIP143
	ZIP143
	ZIP243
	ZIP244
	Decred
)

func (f Family) String() string {
	switch f {
	case Legacy:
		return "legacy"
	case BIP143:
		return "bip143"
	case ZIP143:
		return "zip143"
	case ZIP243:
		return "zip243"
	case ZIP244:
		return "zip244"
	case Decred:
		return "decred"
	default:
		return "unknown"
	}
}

// CommitsToAmount reports whether the digest covers the spent amount. When it
// does not, the amount must be proven by streaming the previous transaction.
func (f Family) CommitsToAmount() bool {
	return f != Legacy && f != Decred
}

// Select picks the digest family for an input of the given script type.
func Select(coin *coins.CoinInfo, tx *txmsg.SignTx, scriptType txmsg.InputScriptType) (Family, error) {
	switch {
	case coin.Decred:
		return Decred, nil
	case coin.Overwintered:
		switch tx.Version {
		case 3:
			return ZIP143, nil
		case 4:
			return ZIP243, nil
		case 5:
			return ZIP244, nil
		default:
			return 0, digestError(txmsg.ErrDigestData, "unsupported %s transaction version %d", coin.Name, tx.Version)
		}
	case scriptType.IsSegwit() || coin.ForceBIP143:
		return BIP143, nil
	default:
		return Legacy, nil
	}
}

// Builder accumulates transaction-wide hashes and derives per-input
// digests from them.
type Builder interface {
	Family() Family
	// AddInput feeds one input during the first pass.
	AddInput(in *txmsg.TxInput) error
	// AddOutput feeds one serialized output during the second pass.
	AddOutput(out *txmsg.TxOutputBin) error
	// Finalize closes the accumulators once every item has been fed.
	Finalize() error
	// Compute returns the digest to sign for input index.
	Compute(index uint32, in *txmsg.TxInput, scriptCode []byte) ([32]byte, error)
}

// New returns the precomputing builder for the transaction. Bitcoin-like
// coins always get a BIP-143 builder so that segwit inputs can be signed
// whatever the other inputs are.
func New(coin *coins.CoinInfo, tx *txmsg.SignTx) (Builder, error) {
	switch {
	case coin.Decred:
		return newDecredBuilder(tx), nil
	case coin.Overwintered:
		family, err := Select(coin, tx, txmsg.SpendAddress)
		if err != nil {
			return nil, err
		}
		vgid, branch := tx.VersionGroupID, tx.BranchID
		if defaults, ok := coin.ZcashDefaults(tx.Version); ok {
			if vgid == 0 {
				vgid = defaults.VersionGroupID
			}
			if branch == 0 {
				branch = defaults.BranchID
			}
		}
		if family == ZIP244 {
			return newZip244Builder(tx, vgid, branch), nil
		}
		return newZcashBuilder(family, tx, vgid, branch), nil
	default:
		return newBIP143Builder(tx, coin.HashType()), nil
	}
}

func digestError(code, format string, args ...interface{}) error {
	return txmsg.NewError(txmsg.KindDigest, code, format, args...)
}

// counter tracks the fed items and the finalize state shared by all
// builders.
type counter struct {
	tx        *txmsg.SignTx
	inputs    uint32
	outputs   uint32
	finalized bool
}

func (c *counter) addInput() error {
	if c.finalized {
		return digestError(txmsg.ErrDigestState, "input added after finalize")
	}
	if c.outputs > 0 {
		return digestError(txmsg.ErrDigestState, "input added after outputs")
	}
	if c.inputs >= c.tx.InputsCount {
		return digestError(txmsg.ErrDigestState, "more than %d inputs", c.tx.InputsCount)
	}
	c.inputs++
	return nil
}

func (c *counter) addOutput() error {
	if c.finalized {
		return digestError(txmsg.ErrDigestState, "output added after finalize")
	}
	if c.inputs != c.tx.InputsCount {
		return digestError(txmsg.ErrDigestState, "output added before all inputs")
	}
	if c.outputs >= c.tx.OutputsCount {
		return digestError(txmsg.ErrDigestState, "more than %d outputs", c.tx.OutputsCount)
	}
	c.outputs++
	return nil
}

func (c *counter) finalize() error {
	if c.finalized {
		return digestError(txmsg.ErrDigestState, "already finalized")
	}
	if c.inputs != c.tx.InputsCount || c.outputs != c.tx.OutputsCount {
		return digestError(txmsg.ErrDigestState, "finalize with %d/%d inputs and %d/%d outputs",
			c.inputs, c.tx.InputsCount, c.outputs, c.tx.OutputsCount)
	}
	c.finalized = true
	return nil
}

func (c *counter) checkCompute(index uint32) error {
	if !c.finalized {
		return digestError(txmsg.ErrDigestState, "compute before finalize")
	}
	if index >= c.tx.InputsCount {
		return digestError(txmsg.ErrDigestState, "input index %d out of range", index)
	}
	return nil
}

func sum32(b []byte) [32]byte {
	var digest [32]byte
	copy(digest[:], b)
	return digest
}
