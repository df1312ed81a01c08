package digest

import (
	"crypto/sha256"
	"hash"

	"github.com/suffix-labs/txsigner/pkg/crypto"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// bip143Builder implements the segwit v0 digest, also used with a fork id by
// Bitcoin Cash.
type bip143Builder struct {
	counter
	hashType uint32

	prevouts  hash.Hash
	sequences hash.Hash
	outputs   hash.Hash

	hashPrevouts [32]byte
	hashSequence [32]byte
	hashOutputs  [32]byte
}

func newBIP143Builder(tx *txmsg.SignTx, hashType uint32) *bip143Builder {
	return &bip143Builder{
		counter:   counter{tx: tx},
		hashType:  hashType,
		prevouts:  sha256.New(),
		sequences: sha256.New(),
		outputs:   sha256.New(),
	}
}

func (b *bip143Builder) Family() Family { return BIP143 }

func (b *bip143Builder) AddInput(in *txmsg.TxInput) error {
	if err := b.addInput(); err != nil {
		return err
	}
	txmsg.WritePrevout(b.prevouts, in)
	txmsg.WriteUint32(b.sequences, in.Sequence)
	return nil
}

func (b *bip143Builder) AddOutput(out *txmsg.TxOutputBin) error {
	if err := b.addOutput(); err != nil {
		return err
	}
	txmsg.WriteTxOutputBin(b.outputs, out, false)
	return nil
}

// doubleSum finishes a streamed SHA-256 with a second round.
func doubleSum(h hash.Hash) [32]byte {
	return sha256.Sum256(h.Sum(nil))
}

func (b *bip143Builder) Finalize() error {
	if err := b.finalize(); err != nil {
		return err
	}
	b.hashPrevouts = doubleSum(b.prevouts)
	b.hashSequence = doubleSum(b.sequences)
	b.hashOutputs = doubleSum(b.outputs)
	return nil
}

// Compute builds the BIP-143 preimage:
//
//	version || hashPrevouts || hashSequence || outpoint || scriptCode ||
//	amount || sequence || hashOutputs || lock_time || hash_type
func (b *bip143Builder) Compute(index uint32, in *txmsg.TxInput, scriptCode []byte) ([32]byte, error) {
	if err := b.checkCompute(index); err != nil {
		return [32]byte{}, err
	}
	if len(scriptCode) == 0 {
		return [32]byte{}, digestError(txmsg.ErrDigestData, "missing script code for input %d", index)
	}

	h, _ := crypto.NewTxHasher(crypto.Sha256d)
	txmsg.WriteUint32(h, b.tx.Version)
	h.Write(b.hashPrevouts[:])
	h.Write(b.hashSequence[:])
	txmsg.WritePrevout(h, in)
	txmsg.WriteVarBytes(h, scriptCode)
	txmsg.WriteUint64(h, in.Amount)
	txmsg.WriteUint32(h, in.Sequence)
	h.Write(b.hashOutputs[:])
	txmsg.WriteUint32(h, b.tx.LockTime)
	txmsg.WriteUint32(h, b.hashType)
	return h.Sum(), nil
}
