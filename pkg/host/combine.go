package host

import (
	"github.com/pkg/errors"
	"github.com/suffix-labs/txsigner/pkg/multisig"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// Combine merges cosigner signatures into the multisig descriptors of tx.
//
// Multisig inputs are signed by several devices in turn. After each device
// finishes, its signatures are stored in the cosigner slot of the signing
// key, so the next device emits a scriptSig that carries every signature
// collected so far. Signatures for single-key inputs are ignored.
//
// Returns the number of signatures merged. A slot that already holds a
// different signature is a conflict.
func Combine(tx *Transaction, sigs []*txmsg.Signature) (int, error) {
	merged := 0
	for _, sig := range sigs {
		if int(sig.InputIndex) >= len(tx.Inputs) {
			return merged, errors.Errorf("signature for missing input %d", sig.InputIndex)
		}
		ms := tx.Inputs[sig.InputIndex].Multisig
		if ms == nil {
			continue
		}
		slot, err := multisig.PubkeyIndex(ms, sig.PublicKey)
		if err != nil {
			return merged, errors.Wrapf(err, "input %d", sig.InputIndex)
		}
		for len(ms.Signatures) < len(ms.Pubkeys) {
			ms.Signatures = append(ms.Signatures, nil)
		}
		if existing := ms.Signatures[slot]; len(existing) > 0 {
			if string(existing) != string(sig.Signature) {
				return merged, errors.Errorf("input %d: conflicting signature for cosigner %d", sig.InputIndex, slot)
			}
			continue
		}
		ms.Signatures[slot] = append([]byte(nil), sig.Signature...)
		merged++
	}
	return merged, nil
}
