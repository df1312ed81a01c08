package signing

import (
	"github.com/suffix-labs/txsigner/pkg/fees"
	"github.com/suffix-labs/txsigner/pkg/scripts"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// maxOpReturnData bounds the payload of an OP_RETURN output.
const maxOpReturnData = 80

// onOutput processes output ss.index during pass 2.
func (s *Signer) onOutput(out *txmsg.TxOutput) (*txmsg.Request, error) {
	ss := s.sess
	idx := ss.index
	if out == nil {
		return nil, signingError(txmsg.ErrInvalidOutput, "missing output %d", idx)
	}

	bin, address, err := s.resolveOutput(idx, out)
	if err != nil {
		return nil, err
	}
	if err := ss.validator.CheckDust(out.Amount, out.ScriptType == txmsg.PayToOpReturn); err != nil {
		return nil, err
	}
	class, err := ss.validator.AccumulateOutput(out.Amount, s.isChange(out))
	if err != nil {
		return nil, err
	}
	if class == fees.OutputChange {
		ss.changeSeen = true
	}

	txmsg.WriteTxOutputBin(ss.check, bin, ss.coin.Decred)
	if err := ss.builder.AddOutput(bin); err != nil {
		return nil, err
	}
	ss.weight.AddOutput(len(bin.ScriptPubKey))
	s.observer.ItemProcessed(PassOutputs, idx)

	if class == fees.OutputExternal {
		s.setPhase(PhaseConfirmOutput)
		return &txmsg.Request{Type: txmsg.RequestConfirmOutput, Index: idx, Output: out, Address: address}, nil
	}
	return s.nextOutput()
}

func (s *Signer) nextOutput() (*txmsg.Request, error) {
	ss := s.sess
	ss.index++
	if ss.index < ss.tx.OutputsCount {
		return &txmsg.Request{Type: txmsg.RequestOutput, Index: ss.index}, nil
	}
	return s.finishOutputs()
}

// resolveOutput reduces an output to its serialized form and display
// address.
func (s *Signer) resolveOutput(idx uint32, out *txmsg.TxOutput) (*txmsg.TxOutputBin, string, error) {
	coin := s.sess.coin
	if out.DecredScriptVersion != 0 {
		return nil, "", signingError(txmsg.ErrInvalidOutput, "output %d: script version %d", idx, out.DecredScriptVersion)
	}
	bin := &txmsg.TxOutputBin{Amount: out.Amount}

	switch {
	case out.ScriptType == txmsg.PayToOpReturn:
		if out.Address != "" || out.IsChangeCandidate() {
			return nil, "", signingError(txmsg.ErrInvalidOutput, "output %d: OP_RETURN with a destination", idx)
		}
		if len(out.OpReturnData) > maxOpReturnData {
			return nil, "", signingError(txmsg.ErrInvalidOutput, "output %d: OP_RETURN data of %d bytes", idx, len(out.OpReturnData))
		}
		bin.ScriptPubKey = scripts.OpReturn(out.OpReturnData)
		return bin, "", nil

	case out.IsChangeCandidate():
		if out.Address != "" {
			return nil, "", signingError(txmsg.ErrInvalidOutput, "output %d: both address and key path", idx)
		}
		pub, err := s.derivePublicKey(out.AddressN)
		if err != nil {
			return nil, "", err
		}
		r, err := scripts.ResolveOutput(coin, out, pub)
		if err != nil {
			return nil, "", err
		}
		bin.ScriptPubKey = r.ScriptPubKey
		return bin, r.Address, nil

	case out.Address != "":
		spk, err := scripts.DecodeAddress(coin, out.Address)
		if err != nil {
			return nil, "", err
		}
		bin.ScriptPubKey = spk
		return bin, out.Address, nil

	default:
		return nil, "", signingError(txmsg.ErrInvalidOutput, "output %d has no destination", idx)
	}
}

// isChange decides whether an output may be accepted without showing it.
// Only the first qualifying output counts as change.
func (s *Signer) isChange(out *txmsg.TxOutput) bool {
	ss := s.sess
	if !out.IsChangeCandidate() || ss.changeSeen {
		return false
	}
	if foreignPath(ss.coin, out.AddressN) {
		return false
	}
	if _, multisigWallet := ss.tracker.Fingerprint(); multisigWallet {
		if out.Multisig == nil || !ss.tracker.Matches(out.Multisig) {
			return false
		}
	} else if out.Multisig != nil {
		return false
	}
	if out.ScriptType.IsSegwit() && out.Amount > ss.validator.SegwitIn() {
		return false
	}
	return true
}

// finishOutputs closes the accumulators, applies the fee policy and moves to
// the checkpoints.
func (s *Signer) finishOutputs() (*txmsg.Request, error) {
	ss := s.sess
	if err := ss.builder.Finalize(); err != nil {
		return nil, err
	}
	copy(ss.checkSum[:], ss.check.Sum(nil))

	weight := ss.weight.Weight()
	fee, warnings, err := ss.validator.Finalize(weight)
	if err != nil {
		return nil, err
	}
	ss.fee = fee
	ss.authorized = ss.validator.TotalIn()
	ss.log.Debug().
		Uint64("fee", fee).
		Uint64("weight", weight).
		Uint64("spending", ss.validator.SpendingAmount()).
		Msg("outputs verified")

	for _, w := range warnings {
		if w == fees.WarningFeeTooHigh {
			s.setPhase(PhaseConfirmFee)
			return &txmsg.Request{Type: txmsg.RequestConfirmFee, Fee: fee, Weight: weight}, nil
		}
	}
	return s.confirmLockTime()
}

func (s *Signer) confirmLockTime() (*txmsg.Request, error) {
	ss := s.sess
	if ss.tx.LockTime > 0 {
		s.setPhase(PhaseConfirmLockTime)
		return &txmsg.Request{Type: txmsg.RequestConfirmLockTime, LockTime: ss.tx.LockTime}, nil
	}
	return s.confirmForeign()
}

func (s *Signer) confirmForeign() (*txmsg.Request, error) {
	if s.sess.foreign {
		s.setPhase(PhaseConfirmForeign)
		return &txmsg.Request{Type: txmsg.RequestConfirmForeignAddress}, nil
	}
	return s.startSigning()
}
