package digest

import (
	"github.com/suffix-labs/txsigner/pkg/crypto"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// LegacyHasher streams the pre-segwit signature serialization for one input:
// the whole transaction with the signed input's scriptSig replaced by its
// script code and every other scriptSig empty, followed by the u32 hash
// type, double SHA-256'd. A fresh hasher is needed for every signed input.
type LegacyHasher struct {
	tx         *txmsg.SignTx
	index      uint32
	scriptCode []byte
	hashType   uint32
	h          *crypto.TxHasher
	inputs     uint32
	outputs    uint32
}

// NewLegacyHasher starts the serialization for signing input index.
func NewLegacyHasher(tx *txmsg.SignTx, index uint32, scriptCode []byte, hashType uint32) (*LegacyHasher, error) {
	if index >= tx.InputsCount {
		return nil, digestError(txmsg.ErrDigestState, "input index %d out of range", index)
	}
	if len(scriptCode) == 0 {
		return nil, digestError(txmsg.ErrDigestData, "missing script code for input %d", index)
	}
	h, _ := crypto.NewTxHasher(crypto.Sha256d)
	txmsg.WriteUint32(h, tx.Version)
	txmsg.WriteCompactSize(h, uint64(tx.InputsCount))
	return &LegacyHasher{
		tx:         tx,
		index:      index,
		scriptCode: scriptCode,
		hashType:   hashType,
		h:          h,
	}, nil
}

// AddInput writes the next input.
func (l *LegacyHasher) AddInput(in *txmsg.TxInput) error {
	if l.inputs >= l.tx.InputsCount {
		return digestError(txmsg.ErrDigestState, "more than %d inputs", l.tx.InputsCount)
	}
	var script []byte
	if l.inputs == l.index {
		script = l.scriptCode
	}
	txmsg.WriteTxInput(l.h, in, script, false)
	l.inputs++
	if l.inputs == l.tx.InputsCount {
		txmsg.WriteCompactSize(l.h, uint64(l.tx.OutputsCount))
	}
	return nil
}

// AddOutput writes the next output.
func (l *LegacyHasher) AddOutput(out *txmsg.TxOutputBin) error {
	if l.inputs != l.tx.InputsCount {
		return digestError(txmsg.ErrDigestState, "output added before all inputs")
	}
	if l.outputs >= l.tx.OutputsCount {
		return digestError(txmsg.ErrDigestState, "more than %d outputs", l.tx.OutputsCount)
	}
	txmsg.WriteTxOutputBin(l.h, out, false)
	l.outputs++
	return nil
}

// Sum closes the serialization and returns the digest.
func (l *LegacyHasher) Sum() ([32]byte, error) {
	if l.inputs != l.tx.InputsCount || l.outputs != l.tx.OutputsCount {
		return [32]byte{}, digestError(txmsg.ErrDigestState, "legacy digest with %d/%d inputs and %d/%d outputs",
			l.inputs, l.tx.InputsCount, l.outputs, l.tx.OutputsCount)
	}
	txmsg.WriteUint32(l.h, l.tx.LockTime)
	txmsg.WriteUint32(l.h, l.hashType)
	return l.h.Sum(), nil
}
