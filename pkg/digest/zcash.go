package digest

import (
	"encoding/binary"
	"hash"

	blake2b "github.com/minio/blake2b-simd"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// blake2bNew256 creates a new BLAKE2b-256 hash with the given personalization.
// The personalization is NOT a key, but a distinct parameter that modifies
// the hash function.
func blake2bNew256(personalization []byte) hash.Hash {
	h, err := blake2b.New(&blake2b.Config{
		Size:   32,
		Person: personalization,
	})
	if err != nil {
		// Only reachable with a personalization longer than 16 bytes.
		panic(err)
	}
	return h
}

// branchPersonalization appends the little-endian consensus branch id to a
// 12-byte prefix.
func branchPersonalization(prefix string, branchID uint32) []byte {
	p := make([]byte, 16)
	copy(p, prefix)
	binary.LittleEndian.PutUint32(p[12:], branchID)
	return p
}

// ZIP-143 / ZIP-243 personalization strings.
const (
	SigHashPersonalization      = "ZcashSigHash"
	PrevoutsHashPersonalization = "ZcashPrevoutHash"
	SequenceHashPersonalization = "ZcashSequencHash"
	OutputsHashPersonalization  = "ZcashOutputsHash"
)

// overwinteredFlag marks overwintered transaction versions.
const overwinteredFlag uint32 = 1 << 31

// zcashBuilder implements ZIP-143 (Overwinter, v3) and ZIP-243 (Sapling, v4).
// The transaction is transparent-only: every shielded commitment is the
// all-zero hash.
type zcashBuilder struct {
	counter
	family         Family
	versionGroupID uint32
	branchID       uint32

	prevouts  hash.Hash
	sequences hash.Hash
	outputs   hash.Hash

	hashPrevouts [32]byte
	hashSequence [32]byte
	hashOutputs  [32]byte
}

func newZcashBuilder(family Family, tx *txmsg.SignTx, versionGroupID, branchID uint32) *zcashBuilder {
	return &zcashBuilder{
		counter:        counter{tx: tx},
		family:         family,
		versionGroupID: versionGroupID,
		branchID:       branchID,
		prevouts:       blake2bNew256([]byte(PrevoutsHashPersonalization)),
		sequences:      blake2bNew256([]byte(SequenceHashPersonalization)),
		outputs:        blake2bNew256([]byte(OutputsHashPersonalization)),
	}
}

func (b *zcashBuilder) Family() Family { return b.family }

func (b *zcashBuilder) AddInput(in *txmsg.TxInput) error {
	if err := b.addInput(); err != nil {
		return err
	}
	txmsg.WritePrevout(b.prevouts, in)
	txmsg.WriteUint32(b.sequences, in.Sequence)
	return nil
}

func (b *zcashBuilder) AddOutput(out *txmsg.TxOutputBin) error {
	if err := b.addOutput(); err != nil {
		return err
	}
	txmsg.WriteTxOutputBin(b.outputs, out, false)
	return nil
}

func (b *zcashBuilder) Finalize() error {
	if err := b.finalize(); err != nil {
		return err
	}
	b.hashPrevouts = sum32(b.prevouts.Sum(nil))
	b.hashSequence = sum32(b.sequences.Sum(nil))
	b.hashOutputs = sum32(b.outputs.Sum(nil))
	return nil
}

// Compute builds the ZIP-143/243 preimage:
//
//	header || version_group_id || hashPrevouts || hashSequence || hashOutputs ||
//	hashJoinSplits || [hashShieldedSpends || hashShieldedOutputs] ||
//	lock_time || expiry_height || [value_balance] || hash_type ||
//	outpoint || scriptCode || amount || sequence
//
// Bracketed fields exist only in ZIP-243.
func (b *zcashBuilder) Compute(index uint32, in *txmsg.TxInput, scriptCode []byte) ([32]byte, error) {
	if err := b.checkCompute(index); err != nil {
		return [32]byte{}, err
	}
	if len(scriptCode) == 0 {
		return [32]byte{}, digestError(txmsg.ErrDigestData, "missing script code for input %d", index)
	}

	var zero [32]byte
	h := blake2bNew256(branchPersonalization(SigHashPersonalization, b.branchID))
	txmsg.WriteUint32(h, b.tx.Version|overwinteredFlag)
	txmsg.WriteUint32(h, b.versionGroupID)
	h.Write(b.hashPrevouts[:])
	h.Write(b.hashSequence[:])
	h.Write(b.hashOutputs[:])
	h.Write(zero[:]) // joinsplits
	if b.family == ZIP243 {
		h.Write(zero[:]) // shielded spends
		h.Write(zero[:]) // shielded outputs
	}
	txmsg.WriteUint32(h, b.tx.LockTime)
	txmsg.WriteUint32(h, b.tx.Expiry)
	if b.family == ZIP243 {
		txmsg.WriteUint64(h, 0) // value balance
	}
	txmsg.WriteUint32(h, txmsg.SighashAll)

	txmsg.WritePrevout(h, in)
	txmsg.WriteVarBytes(h, scriptCode)
	txmsg.WriteUint64(h, in.Amount)
	txmsg.WriteUint32(h, in.Sequence)
	return sum32(h.Sum(nil)), nil
}
