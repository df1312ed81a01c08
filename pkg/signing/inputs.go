package signing

import (
	"bytes"

	"github.com/suffix-labs/txsigner/pkg/digest"
	"github.com/suffix-labs/txsigner/pkg/scripts"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// prevStream is the previous transaction being streamed for the current
// input.
type prevStream struct {
	meta    txmsg.PrevTx
	hasher  *digest.PrevTxHasher
	inputs  uint32
	outputs uint32
	amount  uint64
	script  []byte
}

// onInput processes input ss.index during pass 1.
func (s *Signer) onInput(in *txmsg.TxInput) (*txmsg.Request, error) {
	ss := s.sess
	if in == nil {
		return nil, signingError(txmsg.ErrInvalidInput, "missing input %d", ss.index)
	}
	family, err := s.checkInput(in)
	if err != nil {
		return nil, err
	}
	if err := ss.builder.AddInput(in); err != nil {
		return nil, err
	}
	ss.weight.AddInput(in)
	ss.inputs = append(ss.inputs, inputRecord{
		commitment: commitInput(in),
		family:     family,
		amount:     in.Amount,
		owned:      in.IsOurs(),
	})

	if !family.CommitsToAmount() {
		ss.cur = in
		s.setPhase(PhaseGatherPrevTx)
		return &txmsg.Request{Type: txmsg.RequestPrevMeta, Index: ss.index, PrevHash: in.PrevHash}, nil
	}
	return s.finishInput(in)
}

// checkInput validates an input and returns its digest family.
func (s *Signer) checkInput(in *txmsg.TxInput) (digest.Family, error) {
	ss := s.sess
	idx := ss.index

	switch in.ScriptType {
	case txmsg.External:
		if len(in.ScriptPubKey) == 0 {
			return 0, signingError(txmsg.ErrInvalidInput, "external input %d without script pubkey", idx)
		}
		if in.Multisig != nil {
			return 0, signingError(txmsg.ErrInvalidInput, "external input %d with multisig descriptor", idx)
		}
	case txmsg.SpendAddress, txmsg.SpendMultisig, txmsg.SpendWitness, txmsg.SpendP2SHWitness:
		if len(in.AddressN) == 0 {
			return 0, signingError(txmsg.ErrInvalidInput, "input %d has no key path", idx)
		}
		if in.ScriptType.IsSegwit() && !ss.coin.Segwit {
			return 0, txmsg.NewError(txmsg.KindAddress, txmsg.ErrUnsupportedScript,
				"%s not supported by %s", in.ScriptType, ss.coin.Name)
		}
	default:
		return 0, signingError(txmsg.ErrUnsupportedScript, "input %d: unknown script type %d", idx, in.ScriptType)
	}
	if in.ScriptType == txmsg.SpendMultisig && in.Multisig == nil {
		return 0, txmsg.NewError(txmsg.KindMultisig, txmsg.ErrMultisigMalformed, "input %d: multisig without descriptor", idx)
	}
	if !ss.coin.Decred && in.DecredTree != 0 {
		return 0, signingError(txmsg.ErrInvalidInput, "input %d: outpoint tree on a non-decred coin", idx)
	}

	family, err := digest.Select(ss.coin, &ss.tx, in.ScriptType)
	if err != nil {
		return 0, err
	}
	if family.CommitsToAmount() && in.Amount == 0 {
		return 0, signingError(txmsg.ErrInvalidInput, "input %d: amount required for %s", idx, family)
	}

	if in.Multisig != nil {
		if err := ss.tracker.Add(in.Multisig); err != nil {
			return 0, err
		}
	}

	if !in.IsOurs() {
		ss.foreign = true
		return family, nil
	}
	if foreignPath(ss.coin, in.AddressN) {
		ss.foreign = true
	}

	// Resolving now surfaces membership and script errors before anything is
	// shown to the user, and binds a disclosed script pubkey to our key.
	pub, err := s.derivePublicKey(in.AddressN)
	if err != nil {
		return 0, err
	}
	r, err := scripts.Resolve(ss.coin, in.ScriptType, pub, in.Multisig)
	if err != nil {
		return 0, err
	}
	if len(in.ScriptPubKey) > 0 && !bytes.Equal(in.ScriptPubKey, r.ScriptPubKey) {
		return 0, signingError(txmsg.ErrInvalidInput, "input %d: script pubkey does not belong to our key", idx)
	}
	return family, nil
}

// finishInput accounts for an input whose amount is now trusted and moves
// on.
func (s *Signer) finishInput(in *txmsg.TxInput) (*txmsg.Request, error) {
	ss := s.sess
	rec := &ss.inputs[ss.index]
	if err := ss.validator.AccumulateInput(rec.amount, in.ScriptType.IsSegwit()); err != nil {
		return nil, err
	}
	ss.check.Write(rec.commitment[:])
	s.observer.ItemProcessed(PassInputs, ss.index)

	ss.index++
	if ss.index < ss.tx.InputsCount {
		return &txmsg.Request{Type: txmsg.RequestInput, Index: ss.index}, nil
	}

	ss.index = 0
	s.setPhase(PhaseGatherOutputs)
	s.observer.PassStarted(PassOutputs, ss.tx.OutputsCount)
	return &txmsg.Request{Type: txmsg.RequestOutput, Index: 0}, nil
}

// onPrevTx consumes one part of the previous transaction of ss.cur.
func (s *Signer) onPrevTx(ack *txmsg.Ack) (*txmsg.Request, error) {
	ss := s.sess
	in := ss.cur
	p := ss.prev

	switch ack.Type {
	case txmsg.AckPrevMeta:
		meta := ack.PrevMeta
		if meta == nil {
			return nil, signingError(txmsg.ErrInvalidInput, "missing previous transaction header")
		}
		if in.PrevIndex >= meta.OutputsCount {
			return nil, signingError(txmsg.ErrPrevTxMismatch,
				"previous transaction has %d outputs, input spends %d", meta.OutputsCount, in.PrevIndex)
		}
		hasher, err := digest.NewPrevTxHasher(ss.coin, meta)
		if err != nil {
			return nil, err
		}
		ss.prev = &prevStream{meta: *meta, hasher: hasher}

	case txmsg.AckPrevInput:
		if ack.PrevInput == nil {
			return nil, signingError(txmsg.ErrInvalidInput, "missing previous input %d", p.inputs)
		}
		if err := p.hasher.AddInput(ack.PrevInput); err != nil {
			return nil, err
		}
		p.inputs++

	case txmsg.AckPrevOutput:
		out := ack.PrevOutput
		if out == nil {
			return nil, signingError(txmsg.ErrInvalidInput, "missing previous output %d", p.outputs)
		}
		if err := p.hasher.AddOutput(out); err != nil {
			return nil, err
		}
		if p.outputs == in.PrevIndex {
			p.amount = out.Amount
			p.script = append([]byte(nil), out.ScriptPubKey...)
		}
		p.outputs++

	case txmsg.AckExtraData:
		if uint32(len(ack.ExtraData)) != ss.pending.ExtraDataLen {
			return nil, signingError(txmsg.ErrInvalidInput,
				"extra data chunk of %d bytes, requested %d", len(ack.ExtraData), ss.pending.ExtraDataLen)
		}
		if err := p.hasher.AddExtraData(ack.ExtraData); err != nil {
			return nil, err
		}
	}
	return s.nextPrevRequest()
}

func (s *Signer) nextPrevRequest() (*txmsg.Request, error) {
	ss := s.sess
	p := ss.prev
	hash := ss.cur.PrevHash

	switch {
	case p.inputs < p.meta.InputsCount:
		return &txmsg.Request{Type: txmsg.RequestPrevInput, Index: p.inputs, PrevHash: hash}, nil
	case p.outputs < p.meta.OutputsCount:
		return &txmsg.Request{Type: txmsg.RequestPrevOutput, Index: p.outputs, PrevHash: hash}, nil
	case p.hasher.ExtraDataRemaining() > 0:
		remaining := p.hasher.ExtraDataRemaining()
		chunk := remaining
		if chunk > digest.MaxExtraDataChunk {
			chunk = digest.MaxExtraDataChunk
		}
		return &txmsg.Request{
			Type:            txmsg.RequestPrevExtraData,
			PrevHash:        hash,
			ExtraDataOffset: p.meta.ExtraDataLen - remaining,
			ExtraDataLen:    chunk,
		}, nil
	default:
		return s.finishPrevTx()
	}
}

// finishPrevTx checks the streamed transaction against the input that spends
// it and takes the proven amount.
func (s *Signer) finishPrevTx() (*txmsg.Request, error) {
	ss := s.sess
	in, p := ss.cur, ss.prev

	txid, err := p.hasher.TxID()
	if err != nil {
		return nil, err
	}
	if txid != in.PrevHash {
		return nil, signingError(txmsg.ErrPrevTxMismatch, "input %d: previous transaction hash mismatch", ss.index)
	}
	if in.Amount != 0 && in.Amount != p.amount {
		return nil, signingError(txmsg.ErrPrevTxMismatch,
			"input %d: disclosed amount %d, previous output holds %d", ss.index, in.Amount, p.amount)
	}
	if len(in.ScriptPubKey) > 0 && !bytes.Equal(in.ScriptPubKey, p.script) {
		return nil, signingError(txmsg.ErrPrevTxMismatch, "input %d: script pubkey differs from previous output", ss.index)
	}

	ss.inputs[ss.index].amount = p.amount
	ss.cur, ss.prev = nil, nil
	s.setPhase(PhaseGatherInputs)
	return s.finishInput(in)
}
