package host

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/suffix-labs/txsigner/pkg/coins"
	"github.com/suffix-labs/txsigner/pkg/scripts"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// Decred outpoint defaults for inputs whose block location is not known.
const (
	decredNullBlockHeight uint32 = 0x00000000
	decredNullBlockIndex  uint32 = 0xffffffff
)

// Extractor assembles a broadcastable transaction from the host's view of the
// transaction and the signatures released by the device.
//
// Supported layouts:
//   - Bitcoin-like, with the BIP-144 marker when any input carries a witness
//   - Zcash v3, v4 and v5 with empty shielded bundles
//   - Decred, prefix and witness in one full serialization
type Extractor struct {
	coin *coins.CoinInfo
	tx   *Transaction
	sigs map[uint32]*txmsg.Signature
	keys KeySource
}

// KeySource publishes the device's public nodes. Only needed when the
// transaction has change outputs.
type KeySource interface {
	PublicNode(path []uint32) (*txmsg.HDNode, error)
}

// NewExtractor creates an Extractor. Later signatures for the same input
// replace earlier ones.
func NewExtractor(coin *coins.CoinInfo, tx *Transaction, sigs []*txmsg.Signature, keys KeySource) *Extractor {
	byInput := make(map[uint32]*txmsg.Signature, len(sigs))
	for _, sig := range sigs {
		byInput[sig.InputIndex] = sig
	}
	return &Extractor{coin: coin, tx: tx, sigs: byInput, keys: keys}
}

// Extract returns the raw transaction bytes.
func (e *Extractor) Extract() ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, errors.Wrap(err, "transaction not ready for extraction")
	}

	outputs, err := e.outputs()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch {
	case e.coin.Decred:
		e.writeDecred(&buf, outputs)
	case e.coin.Overwintered:
		if err := e.writeZcash(&buf, outputs); err != nil {
			return nil, err
		}
	default:
		e.writeBitcoin(&buf, outputs)
	}
	return buf.Bytes(), nil
}

// validate checks that every owned input was signed and that the transaction
// is internally consistent.
func (e *Extractor) validate() error {
	tx := e.tx
	if uint32(len(tx.Inputs)) != tx.SignTx.InputsCount {
		return errors.Errorf("%d inputs, header announces %d", len(tx.Inputs), tx.SignTx.InputsCount)
	}
	if uint32(len(tx.Outputs)) != tx.SignTx.OutputsCount {
		return errors.Errorf("%d outputs, header announces %d", len(tx.Outputs), tx.SignTx.OutputsCount)
	}
	for i := range tx.Inputs {
		if tx.Inputs[i].IsOurs() {
			if _, ok := e.sigs[uint32(i)]; !ok {
				return errors.Errorf("input %d not signed", i)
			}
		}
	}
	for idx := range e.sigs {
		if int(idx) >= len(tx.Inputs) {
			return errors.Errorf("signature for missing input %d", idx)
		}
	}
	return nil
}

// outputs reduces the host's outputs to their serialized form.
func (e *Extractor) outputs() ([]*txmsg.TxOutputBin, error) {
	bins := make([]*txmsg.TxOutputBin, len(e.tx.Outputs))
	for i := range e.tx.Outputs {
		bin, err := OutputBin(e.coin, &e.tx.Outputs[i], e.keys)
		if err != nil {
			return nil, errors.Wrapf(err, "output %d", i)
		}
		bins[i] = bin
	}
	return bins, nil
}

func (e *Extractor) scriptSig(i int) []byte {
	if sig, ok := e.sigs[uint32(i)]; ok {
		return sig.ScriptSig
	}
	return e.tx.Inputs[i].ScriptSig
}

func (e *Extractor) hasWitness() bool {
	for _, sig := range e.sigs {
		if len(sig.Witness) > 0 {
			return true
		}
	}
	return false
}

func (e *Extractor) writeInputs(buf *bytes.Buffer) {
	txmsg.WriteCompactSize(buf, uint64(len(e.tx.Inputs)))
	for i := range e.tx.Inputs {
		txmsg.WriteTxInput(buf, &e.tx.Inputs[i], e.scriptSig(i), false)
	}
}

func (e *Extractor) writeOutputs(buf *bytes.Buffer, outputs []*txmsg.TxOutputBin, decred bool) {
	txmsg.WriteCompactSize(buf, uint64(len(outputs)))
	for _, out := range outputs {
		txmsg.WriteTxOutputBin(buf, out, decred)
	}
}

// writeBitcoin writes version, inputs, outputs, witnesses and lock time.
func (e *Extractor) writeBitcoin(buf *bytes.Buffer, outputs []*txmsg.TxOutputBin) {
	segwit := e.hasWitness()
	txmsg.WriteUint32(buf, e.tx.SignTx.Version)
	if segwit {
		buf.Write([]byte{0x00, 0x01})
	}
	e.writeInputs(buf)
	e.writeOutputs(buf, outputs, false)
	if segwit {
		for i := range e.tx.Inputs {
			if sig, ok := e.sigs[uint32(i)]; ok && len(sig.Witness) > 0 {
				buf.Write(sig.Witness)
			} else {
				buf.WriteByte(0x00)
			}
		}
	}
	txmsg.WriteUint32(buf, e.tx.SignTx.LockTime)
}

// writeZcash writes an overwintered transaction without shielded parts.
func (e *Extractor) writeZcash(buf *bytes.Buffer, outputs []*txmsg.TxOutputBin) error {
	st := e.tx.SignTx
	vgid, branch := st.VersionGroupID, st.BranchID
	if defaults, ok := e.coin.ZcashDefaults(st.Version); ok {
		if vgid == 0 {
			vgid = defaults.VersionGroupID
		}
		if branch == 0 {
			branch = defaults.BranchID
		}
	}

	txmsg.WriteUint32(buf, st.Version|1<<31)
	txmsg.WriteUint32(buf, vgid)

	switch st.Version {
	case 3, 4:
		e.writeInputs(buf)
		e.writeOutputs(buf, outputs, false)
		txmsg.WriteUint32(buf, st.LockTime)
		txmsg.WriteUint32(buf, st.Expiry)
		if st.Version == 4 {
			// valueBalance, nShieldedSpend, nShieldedOutput
			txmsg.WriteUint64(buf, 0)
			buf.Write([]byte{0x00, 0x00})
		}
		// nJoinSplit
		buf.WriteByte(0x00)

	case 5:
		txmsg.WriteUint32(buf, branch)
		txmsg.WriteUint32(buf, st.LockTime)
		txmsg.WriteUint32(buf, st.Expiry)
		e.writeInputs(buf)
		e.writeOutputs(buf, outputs, false)
		// Sapling spends and outputs, Orchard actions
		buf.Write([]byte{0x00, 0x00, 0x00})

	default:
		return errors.Errorf("cannot serialize %s version %d", e.coin.Name, st.Version)
	}
	return nil
}

// writeDecred writes the full serialization: prefix, then one witness entry
// per input.
func (e *Extractor) writeDecred(buf *bytes.Buffer, outputs []*txmsg.TxOutputBin) {
	st := e.tx.SignTx
	txmsg.WriteUint32(buf, st.Version&0xFFFF)

	txmsg.WriteCompactSize(buf, uint64(len(e.tx.Inputs)))
	for i := range e.tx.Inputs {
		txmsg.WriteTxInput(buf, &e.tx.Inputs[i], nil, true)
	}
	e.writeOutputs(buf, outputs, true)
	txmsg.WriteUint32(buf, st.LockTime)
	txmsg.WriteUint32(buf, st.Expiry)

	txmsg.WriteCompactSize(buf, uint64(len(e.tx.Inputs)))
	for i := range e.tx.Inputs {
		binary.Write(buf, binary.LittleEndian, int64(e.tx.Inputs[i].Amount))
		txmsg.WriteUint32(buf, decredNullBlockHeight)
		txmsg.WriteUint32(buf, decredNullBlockIndex)
		txmsg.WriteVarBytes(buf, e.scriptSig(i))
	}
}

// OutputBin computes the serialized form of out the same way the device
// does. Change outputs need keys.
func OutputBin(coin *coins.CoinInfo, out *txmsg.TxOutput, keys KeySource) (*txmsg.TxOutputBin, error) {
	bin := &txmsg.TxOutputBin{Amount: out.Amount, DecredScriptVersion: out.DecredScriptVersion}
	switch {
	case out.ScriptType == txmsg.PayToOpReturn:
		bin.ScriptPubKey = scripts.OpReturn(out.OpReturnData)
	case out.IsChangeCandidate():
		if keys == nil {
			return nil, errors.New("change output without a key source")
		}
		node, err := keys.PublicNode(out.AddressN)
		if err != nil {
			return nil, err
		}
		r, err := scripts.ResolveOutput(coin, out, node.PublicKey)
		if err != nil {
			return nil, err
		}
		bin.ScriptPubKey = r.ScriptPubKey
	default:
		spk, err := scripts.DecodeAddress(coin, out.Address)
		if err != nil {
			return nil, err
		}
		bin.ScriptPubKey = spk
	}
	return bin, nil
}
