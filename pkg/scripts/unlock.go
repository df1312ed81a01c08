package scripts

import (
	"bytes"

	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// Unlocking holds the finalized scriptSig and the serialized witness stack of
// one input.
type Unlocking struct {
	ScriptSig []byte
	Witness   []byte
}

// Unlock assembles the unlocking data for a signed input. sig is the DER
// signature without hash type. For multisig inputs ourIndex is our cosigner
// slot; signatures already collected in ms.Signatures are kept in slot order
// and at most M signatures are pushed.
func Unlock(scriptType txmsg.InputScriptType, r *Resolved, pubkey, sig []byte, hashType byte, ms *txmsg.MultisigRedeemScript, ourIndex int) (*Unlocking, error) {
	full := append(append([]byte(nil), sig...), hashType)

	var stack [][]byte
	if ms != nil {
		stack = append(stack, nil)
		// CHECKMULTISIG consumes exactly M signatures. Ours always goes in;
		// cosigner signatures fill the remaining places in slot order.
		others := int(ms.M) - 1
		for i := 0; i < int(ms.N()); i++ {
			switch {
			case i == ourIndex:
				stack = append(stack, full)
			case others > 0 && i < len(ms.Signatures) && len(ms.Signatures[i]) > 0:
				stack = append(stack, append(append([]byte(nil), ms.Signatures[i]...), hashType))
				others--
			}
		}
		if scriptType.IsSegwit() {
			stack = append(stack, r.WitnessScript)
		} else {
			stack = append(stack, r.RedeemScript)
		}
	} else {
		stack = [][]byte{full, pubkey}
	}

	switch scriptType {
	case txmsg.SpendAddress, txmsg.SpendMultisig:
		return &Unlocking{ScriptSig: pushStack(stack)}, nil
	case txmsg.SpendWitness:
		return &Unlocking{ScriptSig: nil, Witness: SerializeWitness(stack)}, nil
	case txmsg.SpendP2SHWitness:
		return &Unlocking{ScriptSig: PushData(r.RedeemScript), Witness: SerializeWitness(stack)}, nil
	default:
		return nil, addressError(txmsg.ErrUnsupportedScript, "cannot unlock %s", scriptType)
	}
}

func pushStack(stack [][]byte) []byte {
	var buf bytes.Buffer
	for _, item := range stack {
		if len(item) == 0 {
			buf.WriteByte(op0)
			continue
		}
		buf.Write(PushData(item))
	}
	return buf.Bytes()
}

// SerializeWitness encodes a witness stack as item count followed by
// length-prefixed items.
func SerializeWitness(stack [][]byte) []byte {
	var buf bytes.Buffer
	txmsg.WriteCompactSize(&buf, uint64(len(stack)))
	for _, item := range stack {
		txmsg.WriteVarBytes(&buf, item)
	}
	return buf.Bytes()
}
