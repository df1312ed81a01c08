// Package host plays the untrusted side of a signing session.
//
// A Host holds a complete transaction and answers each request of a Device
// from it, the way wallet software talks to a hardware signer. Tests use the
// Tamper hook to make the host lie; the CLI uses a Host to replay session
// files.
package host

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/suffix-labs/txsigner/pkg/coins"
	"github.com/suffix-labs/txsigner/pkg/digest"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// Device is the signing side of a session.
type Device interface {
	Next(ack *txmsg.Ack) (*txmsg.Request, error)
}

// Transaction is everything the host knows about the transaction to sign.
type Transaction struct {
	SignTx  txmsg.SignTx
	Inputs  []txmsg.TxInput
	Outputs []txmsg.TxOutput
	PrevTxs map[[32]byte]*PrevTransaction // By txid, display order
}

// PrevTransaction is a transaction whose output is spent by an input.
type PrevTransaction struct {
	Meta      txmsg.PrevTx
	Inputs    []txmsg.PrevInput
	Outputs   []txmsg.TxOutputBin
	ExtraData []byte
}

// TxID hashes the previous transaction the same way the device does.
func (p *PrevTransaction) TxID(coin *coins.CoinInfo) ([32]byte, error) {
	meta := p.Meta
	meta.InputsCount = uint32(len(p.Inputs))
	meta.OutputsCount = uint32(len(p.Outputs))
	meta.ExtraDataLen = uint32(len(p.ExtraData))

	h, err := digest.NewPrevTxHasher(coin, &meta)
	if err != nil {
		return [32]byte{}, err
	}
	for i := range p.Inputs {
		if err := h.AddInput(&p.Inputs[i]); err != nil {
			return [32]byte{}, err
		}
	}
	for i := range p.Outputs {
		if err := h.AddOutput(&p.Outputs[i]); err != nil {
			return [32]byte{}, err
		}
	}
	for off := 0; off < len(p.ExtraData); off += digest.MaxExtraDataChunk {
		end := off + digest.MaxExtraDataChunk
		if end > len(p.ExtraData) {
			end = len(p.ExtraData)
		}
		if err := h.AddExtraData(p.ExtraData[off:end]); err != nil {
			return [32]byte{}, err
		}
	}
	return h.TxID()
}

// AddPrevTx registers p under its txid and returns the txid.
func (t *Transaction) AddPrevTx(coin *coins.CoinInfo, p *PrevTransaction) ([32]byte, error) {
	id, err := p.TxID(coin)
	if err != nil {
		return id, err
	}
	if t.PrevTxs == nil {
		t.PrevTxs = make(map[[32]byte]*PrevTransaction)
	}
	t.PrevTxs[id] = p
	return id, nil
}

// Confirmer plays the user at a confirmation checkpoint.
type Confirmer func(req *txmsg.Request) bool

// ConfirmAll approves every checkpoint.
func ConfirmAll(*txmsg.Request) bool { return true }

// Tamper may rewrite an answer before it is sent. seen counts how many
// times the same request (type and index) was answered before.
type Tamper func(req *txmsg.Request, ack *txmsg.Ack, seen int)

// Option configures a Host.
type Option func(*Host)

// WithConfirmer sets the user's answers. The default approves everything.
func WithConfirmer(c Confirmer) Option {
	return func(h *Host) { h.confirm = c }
}

// WithTamper installs a hook that rewrites answers.
func WithTamper(t Tamper) Option {
	return func(h *Host) { h.tamper = t }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Host) { h.log = l }
}

// Host answers device requests from a Transaction.
type Host struct {
	tx      *Transaction
	confirm Confirmer
	tamper  Tamper
	log     zerolog.Logger
	seen    map[requestKey]int
}

type requestKey struct {
	t     txmsg.RequestType
	index uint32
	prev  [32]byte
}

// New returns a Host for tx.
func New(tx *Transaction, opts ...Option) *Host {
	h := &Host{
		tx:      tx,
		confirm: ConfirmAll,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Result is the record of one session.
type Result struct {
	Requests   []*txmsg.Request   // Every request the device sent, in order
	Signatures []*txmsg.Signature // Signatures released by the device
}

// Types lists the request types in order.
func (r *Result) Types() []txmsg.RequestType {
	types := make([]txmsg.RequestType, len(r.Requests))
	for i, req := range r.Requests {
		types[i] = req.Type
	}
	return types
}

// Run drives d through a full session. The error is the device's error when
// the session aborted.
func (h *Host) Run(d Device) (*Result, error) {
	h.seen = make(map[requestKey]int)
	res := &Result{}
	signTx := h.tx.SignTx
	ack := &txmsg.Ack{Type: txmsg.AckSignTx, SignTx: &signTx}

	for {
		req, err := d.Next(ack)
		if req != nil {
			res.Requests = append(res.Requests, req)
		}
		if err != nil {
			return res, err
		}
		switch req.Type {
		case txmsg.RequestFinished:
			return res, nil
		case txmsg.RequestFailure:
			return res, errors.Errorf("device failed with %s", req.FailureCode)
		case txmsg.RequestSignature:
			res.Signatures = append(res.Signatures, req.Signature)
		}

		ack, err = h.Answer(req)
		if err != nil {
			cancel := &txmsg.Ack{Type: txmsg.AckCancel}
			if _, derr := d.Next(cancel); derr != nil {
				h.log.Debug().Err(derr).Msg("session cancelled")
			}
			return res, err
		}
	}
}

// Answer builds the ack for one request.
func (h *Host) Answer(req *txmsg.Request) (*txmsg.Ack, error) {
	h.log.Debug().Stringer("request", req.Type).Uint32("index", req.Index).Msg("answering")
	ack, err := h.answer(req)
	if err != nil {
		return nil, err
	}
	if h.tamper != nil {
		if h.seen == nil {
			h.seen = make(map[requestKey]int)
		}
		key := requestKey{t: req.Type, index: req.Index, prev: req.PrevHash}
		h.tamper(req, ack, h.seen[key])
		h.seen[key]++
	}
	return ack, nil
}

func (h *Host) answer(req *txmsg.Request) (*txmsg.Ack, error) {
	tx := h.tx
	switch req.Type {
	case txmsg.RequestInput:
		if int(req.Index) >= len(tx.Inputs) {
			return nil, errors.Errorf("input %d out of range", req.Index)
		}
		return &txmsg.Ack{Type: txmsg.AckInput, Input: cloneInput(&tx.Inputs[req.Index])}, nil

	case txmsg.RequestOutput:
		if int(req.Index) >= len(tx.Outputs) {
			return nil, errors.Errorf("output %d out of range", req.Index)
		}
		return &txmsg.Ack{Type: txmsg.AckOutput, Output: cloneOutput(&tx.Outputs[req.Index])}, nil

	case txmsg.RequestPrevMeta, txmsg.RequestPrevInput, txmsg.RequestPrevOutput, txmsg.RequestPrevExtraData:
		return h.answerPrev(req)

	case txmsg.RequestConfirmOutput, txmsg.RequestConfirmFee, txmsg.RequestConfirmLockTime, txmsg.RequestConfirmForeignAddress:
		return &txmsg.Ack{Type: txmsg.AckConfirm, Confirmed: h.confirm(req)}, nil

	case txmsg.RequestSignature:
		return &txmsg.Ack{Type: txmsg.AckContinue}, nil

	default:
		return nil, errors.Errorf("cannot answer %s", req.Type)
	}
}

func (h *Host) answerPrev(req *txmsg.Request) (*txmsg.Ack, error) {
	prev, ok := h.tx.PrevTxs[req.PrevHash]
	if !ok {
		return nil, errors.Errorf("unknown previous transaction %x", req.PrevHash)
	}
	switch req.Type {
	case txmsg.RequestPrevMeta:
		meta := prev.Meta
		meta.InputsCount = uint32(len(prev.Inputs))
		meta.OutputsCount = uint32(len(prev.Outputs))
		meta.ExtraDataLen = uint32(len(prev.ExtraData))
		return &txmsg.Ack{Type: txmsg.AckPrevMeta, PrevMeta: &meta}, nil

	case txmsg.RequestPrevInput:
		if int(req.Index) >= len(prev.Inputs) {
			return nil, errors.Errorf("previous input %d out of range", req.Index)
		}
		in := prev.Inputs[req.Index]
		in.ScriptSig = append([]byte(nil), in.ScriptSig...)
		return &txmsg.Ack{Type: txmsg.AckPrevInput, PrevInput: &in}, nil

	case txmsg.RequestPrevOutput:
		if int(req.Index) >= len(prev.Outputs) {
			return nil, errors.Errorf("previous output %d out of range", req.Index)
		}
		out := prev.Outputs[req.Index]
		out.ScriptPubKey = append([]byte(nil), out.ScriptPubKey...)
		return &txmsg.Ack{Type: txmsg.AckPrevOutput, PrevOutput: &out}, nil

	default:
		end := uint64(req.ExtraDataOffset) + uint64(req.ExtraDataLen)
		if end > uint64(len(prev.ExtraData)) {
			return nil, errors.Errorf("extra data range %d+%d out of range", req.ExtraDataOffset, req.ExtraDataLen)
		}
		chunk := append([]byte(nil), prev.ExtraData[req.ExtraDataOffset:end]...)
		return &txmsg.Ack{Type: txmsg.AckExtraData, ExtraData: chunk}, nil
	}
}

// cloneInput copies in so the device never shares memory with the host.
func cloneInput(in *txmsg.TxInput) *txmsg.TxInput {
	c := *in
	c.AddressN = append([]uint32(nil), in.AddressN...)
	c.ScriptSig = append([]byte(nil), in.ScriptSig...)
	c.ScriptPubKey = append([]byte(nil), in.ScriptPubKey...)
	c.Multisig = cloneMultisig(in.Multisig)
	return &c
}

func cloneOutput(out *txmsg.TxOutput) *txmsg.TxOutput {
	c := *out
	c.AddressN = append([]uint32(nil), out.AddressN...)
	c.OpReturnData = append([]byte(nil), out.OpReturnData...)
	c.Multisig = cloneMultisig(out.Multisig)
	return &c
}

func cloneMultisig(ms *txmsg.MultisigRedeemScript) *txmsg.MultisigRedeemScript {
	if ms == nil {
		return nil
	}
	c := &txmsg.MultisigRedeemScript{M: ms.M}
	for _, hd := range ms.Pubkeys {
		hd.Node.ChainCode = append([]byte(nil), hd.Node.ChainCode...)
		hd.Node.PublicKey = append([]byte(nil), hd.Node.PublicKey...)
		hd.AddressN = append([]uint32(nil), hd.AddressN...)
		c.Pubkeys = append(c.Pubkeys, hd)
	}
	for _, sig := range ms.Signatures {
		c.Signatures = append(c.Signatures, append([]byte(nil), sig...))
	}
	return c
}
