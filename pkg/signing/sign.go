package signing

import (
	"bytes"
	"crypto/sha256"
	"hash"

	"github.com/suffix-labs/txsigner/pkg/crypto"
	"github.com/suffix-labs/txsigner/pkg/digest"
	"github.com/suffix-labs/txsigner/pkg/multisig"
	"github.com/suffix-labs/txsigner/pkg/scripts"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// legacyPass re-streams the whole transaction for one legacy input.
type legacyPass struct {
	in       *txmsg.TxInput
	pub      []byte
	resolved *scripts.Resolved
	hasher   *digest.LegacyHasher
	check    hash.Hash
	inputs   uint32
	outputs  uint32
}

func tampered(format string, args ...interface{}) error {
	return signingError(txmsg.ErrTampered, format, args...)
}

func (s *Signer) startSigning() (*txmsg.Request, error) {
	ss := s.sess
	var owned uint32
	for _, rec := range ss.inputs {
		if rec.owned {
			owned++
		}
	}
	s.setPhase(PhaseSignInputs)
	s.observer.PassStarted(PassSigning, owned)
	ss.index = 0
	return s.nextSignInput()
}

// nextSignInput requests the next owned input, or releases the signatures
// once there is none left.
func (s *Signer) nextSignInput() (*txmsg.Request, error) {
	ss := s.sess
	for ss.index < ss.tx.InputsCount && !ss.inputs[ss.index].owned {
		ss.index++
	}
	if ss.index == ss.tx.InputsCount {
		return s.startEmit()
	}
	ss.legacy = nil
	return &txmsg.Request{Type: txmsg.RequestInput, Index: ss.index}, nil
}

func (s *Signer) onSign(ack *txmsg.Ack) (*txmsg.Request, error) {
	ss := s.sess
	if ss.legacy != nil {
		return s.onLegacyStream(ack)
	}

	idx := ss.index
	in := ack.Input
	if in == nil {
		return nil, signingError(txmsg.ErrInvalidInput, "missing input %d", idx)
	}
	rec := ss.inputs[idx]
	if commitInput(in) != rec.commitment {
		return nil, tampered("input %d changed since the first pass", idx)
	}
	if rec.family == digest.Legacy {
		return s.startLegacy(in)
	}

	key, err := s.deriveKey(in.AddressN)
	if err != nil {
		return nil, err
	}
	defer key.Zero()
	pub := key.PublicKey().Bytes()

	r, err := scripts.Resolve(ss.coin, in.ScriptType, pub, in.Multisig)
	if err != nil {
		return nil, err
	}
	signed := *in
	signed.Amount = rec.amount
	sighash, err := ss.builder.Compute(idx, &signed, r.ScriptCode)
	if err != nil {
		return nil, err
	}
	if err := s.sign(idx, in, key, pub, r, sighash); err != nil {
		return nil, err
	}
	return s.signed()
}

func (s *Signer) signed() (*txmsg.Request, error) {
	ss := s.sess
	s.observer.ItemProcessed(PassSigning, ss.index)
	ss.index++
	return s.nextSignInput()
}

// startLegacy resolves the script code of the input being signed and asks
// for the whole transaction again.
func (s *Signer) startLegacy(in *txmsg.TxInput) (*txmsg.Request, error) {
	ss := s.sess
	pub, err := s.derivePublicKey(in.AddressN)
	if err != nil {
		return nil, err
	}
	r, err := scripts.Resolve(ss.coin, in.ScriptType, pub, in.Multisig)
	if err != nil {
		return nil, err
	}
	hasher, err := digest.NewLegacyHasher(&ss.tx, ss.index, r.ScriptCode, ss.coin.HashType())
	if err != nil {
		return nil, err
	}
	ss.legacy = &legacyPass{
		in:       in,
		pub:      pub,
		resolved: r,
		hasher:   hasher,
		check:    sha256.New(),
	}
	return &txmsg.Request{Type: txmsg.RequestInput, Index: 0}, nil
}

func (s *Signer) onLegacyStream(ack *txmsg.Ack) (*txmsg.Request, error) {
	ss := s.sess
	lg := ss.legacy

	switch ack.Type {
	case txmsg.AckInput:
		in := ack.Input
		if in == nil {
			return nil, signingError(txmsg.ErrInvalidInput, "missing input %d", lg.inputs)
		}
		c := commitInput(in)
		if c != ss.inputs[lg.inputs].commitment {
			return nil, tampered("input %d changed since the first pass", lg.inputs)
		}
		lg.check.Write(c[:])
		if err := lg.hasher.AddInput(in); err != nil {
			return nil, err
		}
		lg.inputs++
		if lg.inputs < ss.tx.InputsCount {
			return &txmsg.Request{Type: txmsg.RequestInput, Index: lg.inputs}, nil
		}
		return &txmsg.Request{Type: txmsg.RequestOutput, Index: 0}, nil

	default:
		out := ack.Output
		if out == nil {
			return nil, signingError(txmsg.ErrInvalidOutput, "missing output %d", lg.outputs)
		}
		bin, _, err := s.resolveOutput(lg.outputs, out)
		if err != nil {
			return nil, err
		}
		txmsg.WriteTxOutputBin(lg.check, bin, ss.coin.Decred)
		if err := lg.hasher.AddOutput(bin); err != nil {
			return nil, err
		}
		lg.outputs++
		if lg.outputs < ss.tx.OutputsCount {
			return &txmsg.Request{Type: txmsg.RequestOutput, Index: lg.outputs}, nil
		}
		return s.finishLegacy()
	}
}

func (s *Signer) finishLegacy() (*txmsg.Request, error) {
	ss := s.sess
	lg := ss.legacy

	var sum [32]byte
	copy(sum[:], lg.check.Sum(nil))
	if sum != ss.checkSum {
		return nil, tampered("transaction changed since the first pass")
	}
	sighash, err := lg.hasher.Sum()
	if err != nil {
		return nil, err
	}

	key, err := s.deriveKey(lg.in.AddressN)
	if err != nil {
		return nil, err
	}
	defer key.Zero()
	pub := key.PublicKey().Bytes()
	if !bytes.Equal(pub, lg.pub) {
		return nil, signingError(txmsg.ErrKeyDerivation, "key for input %d changed between derivations", ss.index)
	}
	if err := s.sign(ss.index, lg.in, key, pub, lg.resolved, sighash); err != nil {
		return nil, err
	}
	ss.legacy = nil
	return s.signed()
}

// sign produces and checks the signature of input idx and buffers it.
func (s *Signer) sign(idx uint32, in *txmsg.TxInput, key *crypto.PrivateKey, pub []byte, r *scripts.Resolved, sighash [32]byte) error {
	ss := s.sess
	amount := ss.inputs[idx].amount
	if amount > ss.authorized {
		return signingError(txmsg.ErrInvalidInput, "input %d spends more than the confirmed inputs", idx)
	}

	der, err := key.Sign(sighash)
	if err != nil {
		return txmsg.WrapError(txmsg.KindSigning, txmsg.ErrInternal, err, "sign input %d", idx)
	}
	if !crypto.VerifySignature(key.PublicKey(), sighash, der) {
		return signingError(txmsg.ErrInvalidSignature, "signature of input %d does not verify", idx)
	}

	slot := -1
	if in.Multisig != nil {
		slot, err = multisig.PubkeyIndex(in.Multisig, pub)
		if err != nil {
			return err
		}
	}
	unlock, err := scripts.Unlock(in.ScriptType, r, pub, der, byte(ss.coin.HashType()), in.Multisig, slot)
	if err != nil {
		return err
	}

	ss.authorized -= amount
	ss.sigs = append(ss.sigs, &txmsg.Signature{
		InputIndex: idx,
		Signature:  der,
		PublicKey:  pub,
		ScriptSig:  unlock.ScriptSig,
		Witness:    unlock.Witness,
	})
	return nil
}

func (s *Signer) startEmit() (*txmsg.Request, error) {
	ss := s.sess
	if len(ss.sigs) == 0 {
		return &txmsg.Request{Type: txmsg.RequestFinished}, nil
	}
	s.setPhase(PhaseEmitSignatures)
	ss.emitted = 0
	return s.signatureRequest(), nil
}

func (s *Signer) signatureRequest() *txmsg.Request {
	sig := s.sess.sigs[s.sess.emitted]
	return &txmsg.Request{Type: txmsg.RequestSignature, Index: sig.InputIndex, Signature: sig}
}

func (s *Signer) onContinue() (*txmsg.Request, error) {
	ss := s.sess
	ss.emitted++
	if ss.emitted < len(ss.sigs) {
		return s.signatureRequest(), nil
	}
	return &txmsg.Request{Type: txmsg.RequestFinished}, nil
}
