package signing

import (
	"crypto/sha256"
	"hash"

	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// commitInput hashes every field of an input the host disclosed. Pass 3
// compares the re-disclosed input against this value, so any changed byte is
// caught, including fields the digest of the input's family does not cover.
func commitInput(in *txmsg.TxInput) [32]byte {
	h := sha256.New()
	txmsg.WritePrevout(h, in)
	txmsg.WriteUint32(h, in.Sequence)
	txmsg.WriteUint64(h, in.Amount)
	h.Write([]byte{byte(in.ScriptType), in.DecredTree})
	writePath(h, in.AddressN)
	txmsg.WriteVarBytes(h, in.ScriptPubKey)
	txmsg.WriteVarBytes(h, in.ScriptSig)

	if ms := in.Multisig; ms != nil {
		h.Write([]byte{1})
		txmsg.WriteUint32(h, ms.M)
		txmsg.WriteCompactSize(h, uint64(len(ms.Pubkeys)))
		for _, hd := range ms.Pubkeys {
			txmsg.WriteUint32(h, hd.Node.Depth)
			txmsg.WriteUint32(h, hd.Node.Fingerprint)
			txmsg.WriteUint32(h, hd.Node.ChildNum)
			txmsg.WriteVarBytes(h, hd.Node.ChainCode)
			txmsg.WriteVarBytes(h, hd.Node.PublicKey)
			writePath(h, hd.AddressN)
		}
		txmsg.WriteCompactSize(h, uint64(len(ms.Signatures)))
		for _, sig := range ms.Signatures {
			txmsg.WriteVarBytes(h, sig)
		}
	} else {
		h.Write([]byte{0})
	}

	var c [32]byte
	copy(c[:], h.Sum(nil))
	return c
}

func writePath(h hash.Hash, path []uint32) {
	txmsg.WriteCompactSize(h, uint64(len(path)))
	for _, index := range path {
		txmsg.WriteUint32(h, index)
	}
}
