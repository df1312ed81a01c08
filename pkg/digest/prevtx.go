package digest

import (
	"github.com/suffix-labs/txsigner/pkg/coins"
	"github.com/suffix-labs/txsigner/pkg/crypto"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// MaxExtraDataChunk bounds a single RequestPrevExtraData.
const MaxExtraDataChunk = 1024

// PrevTxHasher recomputes the id of a previous transaction from its streamed
// parts, so that the amount of the spent output can be trusted.
type PrevTxHasher struct {
	meta      *txmsg.PrevTx
	decred    bool
	h         *crypto.TxHasher
	inputs    uint32
	outputs   uint32
	extraData uint32
	footer    bool
}

// NewPrevTxHasher writes the header of the previous transaction.
func NewPrevTxHasher(coin *coins.CoinInfo, meta *txmsg.PrevTx) (*PrevTxHasher, error) {
	h, err := crypto.NewTxHasher(coin.TxHash)
	if err != nil {
		return nil, digestError(txmsg.ErrDigestData, "%v", err)
	}
	p := &PrevTxHasher{meta: meta, decred: coin.Decred, h: h}
	switch {
	case coin.Decred:
		txmsg.WriteUint32(h, meta.Version|decredSerializePrefix<<16)
	case meta.Overwintered:
		txmsg.WriteUint32(h, meta.Version|overwinteredFlag)
		txmsg.WriteUint32(h, meta.VersionGroupID)
	default:
		txmsg.WriteUint32(h, meta.Version)
	}
	txmsg.WriteCompactSize(h, uint64(meta.InputsCount))
	if meta.InputsCount == 0 {
		p.startOutputs()
	}
	return p, nil
}

func (p *PrevTxHasher) startOutputs() {
	txmsg.WriteCompactSize(p.h, uint64(p.meta.OutputsCount))
	if p.meta.OutputsCount == 0 {
		p.writeFooter()
	}
}

func (p *PrevTxHasher) writeFooter() {
	txmsg.WriteUint32(p.h, p.meta.LockTime)
	if p.decred || (p.meta.Overwintered && p.meta.Version >= 3) {
		txmsg.WriteUint32(p.h, p.meta.Expiry)
	}
	p.footer = true
}

// AddInput writes the next input of the previous transaction.
func (p *PrevTxHasher) AddInput(in *txmsg.PrevInput) error {
	if p.inputs >= p.meta.InputsCount {
		return digestError(txmsg.ErrDigestState, "previous transaction has %d inputs", p.meta.InputsCount)
	}
	txmsg.WritePrevInput(p.h, in, p.decred)
	p.inputs++
	if p.inputs == p.meta.InputsCount {
		p.startOutputs()
	}
	return nil
}

// AddOutput writes the next output of the previous transaction.
func (p *PrevTxHasher) AddOutput(out *txmsg.TxOutputBin) error {
	if p.inputs != p.meta.InputsCount {
		return digestError(txmsg.ErrDigestState, "previous output before all inputs")
	}
	if p.outputs >= p.meta.OutputsCount {
		return digestError(txmsg.ErrDigestState, "previous transaction has %d outputs", p.meta.OutputsCount)
	}
	txmsg.WriteTxOutputBin(p.h, out, p.decred)
	p.outputs++
	if p.outputs == p.meta.OutputsCount {
		p.writeFooter()
	}
	return nil
}

// AddExtraData hashes a chunk of trailing bytes verbatim.
func (p *PrevTxHasher) AddExtraData(chunk []byte) error {
	if !p.footer {
		return digestError(txmsg.ErrDigestState, "extra data before outputs")
	}
	if len(chunk) > MaxExtraDataChunk || uint64(p.extraData)+uint64(len(chunk)) > uint64(p.meta.ExtraDataLen) {
		return digestError(txmsg.ErrDigestData, "extra data exceeds declared length %d", p.meta.ExtraDataLen)
	}
	p.h.Write(chunk)
	p.extraData += uint32(len(chunk))
	return nil
}

// ExtraDataRemaining returns how many extra data bytes are still expected.
func (p *PrevTxHasher) ExtraDataRemaining() uint32 {
	return p.meta.ExtraDataLen - p.extraData
}

// TxID returns the transaction id in display order.
func (p *PrevTxHasher) TxID() ([32]byte, error) {
	if !p.footer || p.extraData != p.meta.ExtraDataLen {
		return [32]byte{}, digestError(txmsg.ErrDigestState, "previous transaction incomplete")
	}
	return txmsg.ReverseHash(p.h.Sum()), nil
}
