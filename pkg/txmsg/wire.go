package txmsg

import (
	"encoding/binary"
	"io"
)

// Sighash flags.
const (
	SighashAll    uint32 = 0x01
	SighashForkID uint32 = 0x40
)

// WriteCompactSize writes a Bitcoin-style varint.
func WriteCompactSize(w io.Writer, n uint64) {
	if n < 253 {
		w.Write([]byte{byte(n)})
	} else if n <= 0xFFFF {
		w.Write([]byte{253})
		binary.Write(w, binary.LittleEndian, uint16(n))
	} else if n <= 0xFFFFFFFF {
		w.Write([]byte{254})
		binary.Write(w, binary.LittleEndian, uint32(n))
	} else {
		w.Write([]byte{255})
		binary.Write(w, binary.LittleEndian, n)
	}
}

// CompactSizeLen returns the encoded length of n as a varint.
func CompactSizeLen(n uint64) uint64 {
	switch {
	case n < 253:
		return 1
	case n <= 0xFFFF:
		return 3
	case n <= 0xFFFFFFFF:
		return 5
	default:
		return 9
	}
}

// WriteVarBytes writes b prefixed with its varint length.
func WriteVarBytes(w io.Writer, b []byte) {
	WriteCompactSize(w, uint64(len(b)))
	w.Write(b)
}

// WriteHashReversed writes a display-order hash in wire (little-endian) order.
func WriteHashReversed(w io.Writer, h [32]byte) {
	rev := ReverseHash(h)
	w.Write(rev[:])
}

// ReverseHash flips between display and wire byte order.
func ReverseHash(h [32]byte) [32]byte {
	var rev [32]byte
	for i := range h {
		rev[31-i] = h[i]
	}
	return rev
}

// WritePrevout writes the outpoint of in (reversed hash, u32 index).
func WritePrevout(w io.Writer, in *TxInput) {
	WriteHashReversed(w, in.PrevHash)
	binary.Write(w, binary.LittleEndian, in.PrevIndex)
}

// WriteTxInput writes a full serialized input with the given scriptSig. Decred
// inputs carry the outpoint tree and no script in the prefix.
func WriteTxInput(w io.Writer, in *TxInput, scriptSig []byte, decred bool) {
	WritePrevout(w, in)
	if decred {
		w.Write([]byte{in.DecredTree})
	} else {
		WriteVarBytes(w, scriptSig)
	}
	binary.Write(w, binary.LittleEndian, in.Sequence)
}

// WritePrevInput serializes an input of a previous transaction.
func WritePrevInput(w io.Writer, in *PrevInput, decred bool) {
	WriteHashReversed(w, in.PrevHash)
	binary.Write(w, binary.LittleEndian, in.PrevIndex)
	if decred {
		w.Write([]byte{in.DecredTree})
	} else {
		WriteVarBytes(w, in.ScriptSig)
	}
	binary.Write(w, binary.LittleEndian, in.Sequence)
}

// WriteTxOutputBin writes amount, optional Decred script version and the
// length-prefixed script.
func WriteTxOutputBin(w io.Writer, out *TxOutputBin, decred bool) {
	binary.Write(w, binary.LittleEndian, out.Amount)
	if decred {
		binary.Write(w, binary.LittleEndian, out.DecredScriptVersion)
	}
	WriteVarBytes(w, out.ScriptPubKey)
}

// WriteUint32 writes v little-endian.
func WriteUint32(w io.Writer, v uint32) {
	binary.Write(w, binary.LittleEndian, v)
}

// WriteUint64 writes v little-endian.
func WriteUint64(w io.Writer, v uint64) {
	binary.Write(w, binary.LittleEndian, v)
}
