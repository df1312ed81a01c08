package digest

import (
	"bytes"
	"hash"

	"github.com/decred/dcrd/crypto/blake256"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// Decred serialization types, stored in the upper 16 bits of the version.
const (
	decredSerializePrefix  uint32 = 1
	decredSerializeWitness uint32 = 3
)

// decredBuilder implements the prefix/witness-split digest. The prefix
// (everything except signature scripts) is hashed once; each signed input
// adds a witness hash that carries only that input's script code.
//
//	sighash = BLAKE-256(hash_type || prefix_hash || witness_hash)
type decredBuilder struct {
	counter
	prefix     hash.Hash
	prefixHash [32]byte
}

func newDecredBuilder(tx *txmsg.SignTx) *decredBuilder {
	b := &decredBuilder{
		counter: counter{tx: tx},
		prefix:  blake256.New(),
	}
	txmsg.WriteUint32(b.prefix, tx.Version|decredSerializePrefix<<16)
	txmsg.WriteCompactSize(b.prefix, uint64(tx.InputsCount))
	return b
}

func (b *decredBuilder) Family() Family { return Decred }

func (b *decredBuilder) AddInput(in *txmsg.TxInput) error {
	if err := b.addInput(); err != nil {
		return err
	}
	txmsg.WriteTxInput(b.prefix, in, nil, true)
	return nil
}

func (b *decredBuilder) AddOutput(out *txmsg.TxOutputBin) error {
	if err := b.addOutput(); err != nil {
		return err
	}
	if b.outputs == 1 {
		txmsg.WriteCompactSize(b.prefix, uint64(b.tx.OutputsCount))
	}
	txmsg.WriteTxOutputBin(b.prefix, out, true)
	return nil
}

func (b *decredBuilder) Finalize() error {
	if err := b.finalize(); err != nil {
		return err
	}
	if b.tx.OutputsCount == 0 {
		txmsg.WriteCompactSize(b.prefix, 0)
	}
	txmsg.WriteUint32(b.prefix, b.tx.LockTime)
	txmsg.WriteUint32(b.prefix, b.tx.Expiry)
	b.prefixHash = sum32(b.prefix.Sum(nil))
	return nil
}

// PrefixHash returns the transaction prefix hash, which is also the Decred
// transaction id. Valid after Finalize.
func (b *decredBuilder) PrefixHash() [32]byte {
	return b.prefixHash
}

func (b *decredBuilder) Compute(index uint32, in *txmsg.TxInput, scriptCode []byte) ([32]byte, error) {
	if err := b.checkCompute(index); err != nil {
		return [32]byte{}, err
	}
	if len(scriptCode) == 0 {
		return [32]byte{}, digestError(txmsg.ErrDigestData, "missing script code for input %d", index)
	}

	var witness bytes.Buffer
	txmsg.WriteUint32(&witness, b.tx.Version|decredSerializeWitness<<16)
	txmsg.WriteCompactSize(&witness, uint64(b.tx.InputsCount))
	for i := uint32(0); i < b.tx.InputsCount; i++ {
		if i == index {
			txmsg.WriteVarBytes(&witness, scriptCode)
		} else {
			txmsg.WriteCompactSize(&witness, 0)
		}
	}
	witnessHash := blake256.Sum256(witness.Bytes())

	h := blake256.New()
	txmsg.WriteUint32(h, txmsg.SighashAll)
	h.Write(b.prefixHash[:])
	h.Write(witnessHash[:])
	return sum32(h.Sum(nil)), nil
}
