package digest

import (
	"hash"

	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// ZIP 244 constants - personalization strings for BLAKE2b hashing
const (
	// Signature hash personalization (12 bytes prefix + 4 bytes branch ID)
	Zip244HashPersonalization = "ZcashTxHash_"

	// Component digest personalizations (all 16 bytes)
	HeaderDigestPersonalization      = "ZTxIdHeadersHash"
	TransparentDigestPersonalization = "ZTxIdTranspaHash"
	SaplingDigestPersonalization     = "ZTxIdSaplingHash"
	OrchardDigestPersonalization     = "ZTxIdOrchardHash"

	// Transparent sub-digests
	PrevoutDigestPersonalization  = "ZTxIdPrevoutHash"
	SequenceDigestPersonalization = "ZTxIdSequencHash"
	OutputsDigestPersonalization  = "ZTxIdOutputsHash"

	// Transparent signature digests (for amounts and scripts)
	AmountsDigestPersonalization = "ZTxTrAmountsHash"
	ScriptsDigestPersonalization = "ZTxTrScriptsHash"
	TxInDigestPersonalization    = "Zcash___TxInHash"
)

// zip244Builder implements the v5 transparent signature digest with
// SIGHASH_ALL. Unlike the earlier Zcash digests it commits to the amount and
// locking script of every input, so each input must disclose ScriptPubKey.
//
// The signature hash is computed by hashing together 4 digests:
//  1. Header digest (version, version group, branch, lock time, expiry)
//  2. Transparent signature digest (prevouts, amounts, scripts, sequences,
//     outputs, and the input being signed)
//  3. Sapling digest (empty)
//  4. Orchard digest (empty)
type zip244Builder struct {
	counter
	versionGroupID uint32
	branchID       uint32

	prevouts  hash.Hash
	amounts   hash.Hash
	scripts   hash.Hash
	sequences hash.Hash
	outputs   hash.Hash

	headerDigest   [32]byte
	prevoutsDigest [32]byte
	amountsDigest  [32]byte
	scriptsDigest  [32]byte
	sequenceDigest [32]byte
	outputsDigest  [32]byte
	saplingDigest  [32]byte
	orchardDigest  [32]byte
}

func newZip244Builder(tx *txmsg.SignTx, versionGroupID, branchID uint32) *zip244Builder {
	return &zip244Builder{
		counter:        counter{tx: tx},
		versionGroupID: versionGroupID,
		branchID:       branchID,
		prevouts:       blake2bNew256([]byte(PrevoutDigestPersonalization)),
		amounts:        blake2bNew256([]byte(AmountsDigestPersonalization)),
		scripts:        blake2bNew256([]byte(ScriptsDigestPersonalization)),
		sequences:      blake2bNew256([]byte(SequenceDigestPersonalization)),
		outputs:        blake2bNew256([]byte(OutputsDigestPersonalization)),
	}
}

func (b *zip244Builder) Family() Family { return ZIP244 }

func (b *zip244Builder) AddInput(in *txmsg.TxInput) error {
	if len(in.ScriptPubKey) == 0 {
		return digestError(txmsg.ErrDigestData, "v5 input requires its script pubkey")
	}
	if err := b.addInput(); err != nil {
		return err
	}
	txmsg.WritePrevout(b.prevouts, in)
	txmsg.WriteUint64(b.amounts, in.Amount)
	txmsg.WriteVarBytes(b.scripts, in.ScriptPubKey)
	txmsg.WriteUint32(b.sequences, in.Sequence)
	return nil
}

func (b *zip244Builder) AddOutput(out *txmsg.TxOutputBin) error {
	if err := b.addOutput(); err != nil {
		return err
	}
	txmsg.WriteTxOutputBin(b.outputs, out, false)
	return nil
}

func (b *zip244Builder) Finalize() error {
	if err := b.finalize(); err != nil {
		return err
	}

	// T.1: header_digest = BLAKE2b-256("ZTxIdHeadersHash", header)
	h := blake2bNew256([]byte(HeaderDigestPersonalization))
	txmsg.WriteUint32(h, b.tx.Version|overwinteredFlag)
	txmsg.WriteUint32(h, b.versionGroupID)
	txmsg.WriteUint32(h, b.branchID)
	txmsg.WriteUint32(h, b.tx.LockTime)
	txmsg.WriteUint32(h, b.tx.Expiry)
	b.headerDigest = sum32(h.Sum(nil))

	b.prevoutsDigest = sum32(b.prevouts.Sum(nil))
	b.amountsDigest = sum32(b.amounts.Sum(nil))
	b.scriptsDigest = sum32(b.scripts.Sum(nil))
	b.sequenceDigest = sum32(b.sequences.Sum(nil))
	b.outputsDigest = sum32(b.outputs.Sum(nil))

	// Transparent-only transaction: empty shielded bundles.
	b.saplingDigest = sum32(blake2bNew256([]byte(SaplingDigestPersonalization)).Sum(nil))
	b.orchardDigest = sum32(blake2bNew256([]byte(OrchardDigestPersonalization)).Sum(nil))
	return nil
}

// Compute returns
//
//	BLAKE2b-256("ZcashTxHash_" || branch_id,
//	    header_digest || transparent_sig_digest || sapling_digest || orchard_digest)
func (b *zip244Builder) Compute(index uint32, in *txmsg.TxInput, scriptCode []byte) ([32]byte, error) {
	if err := b.checkCompute(index); err != nil {
		return [32]byte{}, err
	}
	if len(scriptCode) == 0 {
		return [32]byte{}, digestError(txmsg.ErrDigestData, "missing script code for input %d", index)
	}

	// S.2g: txin_sig_digest
	txin := blake2bNew256([]byte(TxInDigestPersonalization))
	txmsg.WritePrevout(txin, in)
	txmsg.WriteUint64(txin, in.Amount)
	txmsg.WriteVarBytes(txin, scriptCode)
	txmsg.WriteUint32(txin, in.Sequence)
	txinDigest := txin.Sum(nil)

	// S.2: transparent_sig_digest
	tr := blake2bNew256([]byte(TransparentDigestPersonalization))
	tr.Write([]byte{byte(txmsg.SighashAll)})
	tr.Write(b.prevoutsDigest[:])
	tr.Write(b.amountsDigest[:])
	tr.Write(b.scriptsDigest[:])
	tr.Write(b.sequenceDigest[:])
	tr.Write(b.outputsDigest[:])
	tr.Write(txinDigest)
	transparentDigest := tr.Sum(nil)

	h := blake2bNew256(branchPersonalization(Zip244HashPersonalization, b.branchID))
	h.Write(b.headerDigest[:])
	h.Write(transparentDigest)
	h.Write(b.saplingDigest[:])
	h.Write(b.orchardDigest[:])
	return sum32(h.Sum(nil)), nil
}
