package fees

import (
	"github.com/suffix-labs/txsigner/pkg/scripts"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// Serialized size constants, in bytes.
const (
	sizeHeader         = 4  // version
	sizeFooter         = 4  // lock time
	sizeInput          = 40 // prevout + sequence
	sizeOutput         = 8  // amount
	sizePubkey         = 33
	sizeSignature      = 72
	sizeSegwitOverhead = 2 // marker + flag
	sizeWitnessPKHash  = 22
	sizeWitnessScript  = 34
	sizeDecredWitness  = 16 // value + block height + block index
	sizeDecredExpiry   = 4
	sizeDecredTree     = 1
	sizeDecredScriptV  = 2
)

// WeightCalculator estimates the weight of the signed transaction from the
// streamed items. Witness bytes count once, everything else four times.
type WeightCalculator struct {
	weight      uint64
	inputsCount uint32
	segwit      bool
	decred      bool
}

// NewWeightCalculator starts the estimate with the fixed header and footer.
func NewWeightCalculator(inputsCount, outputsCount uint32, decred bool) *WeightCalculator {
	size := sizeHeader + sizeFooter +
		txmsg.CompactSizeLen(uint64(inputsCount)) +
		txmsg.CompactSizeLen(uint64(outputsCount))
	if decred {
		size += sizeDecredExpiry
		size += txmsg.CompactSizeLen(uint64(inputsCount))
	}
	return &WeightCalculator{weight: 4 * size, inputsCount: inputsCount, decred: decred}
}

// inputScriptSize is the expected scriptSig (or witness) size of a signed
// input.
func inputScriptSize(in *txmsg.TxInput) uint64 {
	if in.Multisig != nil {
		msSize := scripts.MultisigScriptSize(len(in.Multisig.Pubkeys))
		return uint64(1 + // OP_0 for the CHECKMULTISIG off-by-one
			int(in.Multisig.M)*(1+sizeSignature) +
			scripts.PushSize(msSize) + msSize)
	}
	return 1 + sizeSignature + 1 + sizePubkey
}

// AddInput accounts for one input.
func (w *WeightCalculator) AddInput(in *txmsg.TxInput) {
	if w.decred {
		w.weight += 4 * (sizeInput + sizeDecredTree)
		script := inputScriptSize(in)
		w.weight += 4 * (sizeDecredWitness + txmsg.CompactSizeLen(script) + script)
		return
	}

	script := inputScriptSize(in)
	w.weight += 4 * sizeInput
	switch in.ScriptType {
	case txmsg.SpendWitness, txmsg.SpendP2SHWitness:
		if !w.segwit {
			w.segwit = true
			w.weight += sizeSegwitOverhead + uint64(w.inputsCount)
		}
		if in.ScriptType == txmsg.SpendP2SHWitness {
			program := uint64(sizeWitnessPKHash)
			if in.Multisig != nil {
				program = sizeWitnessScript
			}
			w.weight += 4 * (2 + program)
		} else {
			w.weight += 4 // empty scriptSig
		}
		w.weight += script
	default:
		script += txmsg.CompactSizeLen(script)
		w.weight += 4 * script
	}
}

// AddOutput accounts for one output with the given locking script length.
func (w *WeightCalculator) AddOutput(scriptLen int) {
	size := uint64(sizeOutput)
	if w.decred {
		size += sizeDecredScriptV
	}
	size += txmsg.CompactSizeLen(uint64(scriptLen)) + uint64(scriptLen)
	w.weight += 4 * size
}

// Weight returns the current estimate.
func (w *WeightCalculator) Weight() uint64 {
	return w.weight
}
