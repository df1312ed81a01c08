// Package scripts maps script types and key material to locking scripts,
// script codes and display addresses, and assembles the unlocking data
// returned with each signature.
package scripts

import (
	"encoding/binary"
)

// Opcodes used by the supported templates.
const (
	op0             = 0x00
	opPushData1     = 0x4c
	opPushData2     = 0x4d
	opPushData4     = 0x4e
	op1             = 0x51
	opReturn        = 0x6a
	opDup           = 0x76
	opEqual         = 0x87
	opEqualVerify   = 0x88
	opHash160       = 0xa9
	opCheckSig      = 0xac
	opCheckMultisig = 0xae
)

// PushData returns the minimal push of data.
func PushData(data []byte) []byte {
	n := len(data)
	var out []byte
	switch {
	case n < opPushData1:
		out = append(out, byte(n))
	case n <= 0xFF:
		out = append(out, opPushData1, byte(n))
	case n <= 0xFFFF:
		out = append(out, opPushData2, 0, 0)
		binary.LittleEndian.PutUint16(out[1:], uint16(n))
	default:
		out = append(out, opPushData4, 0, 0, 0, 0)
		binary.LittleEndian.PutUint32(out[1:], uint32(n))
	}
	return append(out, data...)
}

// PushSize returns the length of the push opcode for n bytes of data.
func PushSize(n int) int {
	switch {
	case n < opPushData1:
		return 1
	case n <= 0xFF:
		return 2
	case n <= 0xFFFF:
		return 3
	default:
		return 5
	}
}

// P2PKH returns OP_DUP OP_HASH160 <h> OP_EQUALVERIFY OP_CHECKSIG.
func P2PKH(pubkeyHash []byte) []byte {
	s := []byte{opDup, opHash160, byte(len(pubkeyHash))}
	s = append(s, pubkeyHash...)
	return append(s, opEqualVerify, opCheckSig)
}

// P2SH returns OP_HASH160 <h> OP_EQUAL.
func P2SH(scriptHash []byte) []byte {
	s := []byte{opHash160, byte(len(scriptHash))}
	s = append(s, scriptHash...)
	return append(s, opEqual)
}

// WitnessProgram returns OP_0 <program>.
func WitnessProgram(program []byte) []byte {
	return append([]byte{op0, byte(len(program))}, program...)
}

// OpReturn returns OP_RETURN <data>.
func OpReturn(data []byte) []byte {
	return append([]byte{opReturn}, PushData(data)...)
}

// Multisig returns OP_m <pubkeys...> OP_n OP_CHECKMULTISIG.
func Multisig(m int, pubkeys [][]byte) []byte {
	s := []byte{byte(op1 - 1 + m)}
	for _, pk := range pubkeys {
		s = append(s, PushData(pk)...)
	}
	return append(s, byte(op1-1+len(pubkeys)), opCheckMultisig)
}

// MultisigScriptSize returns the length of a Multisig script with n
// compressed keys.
func MultisigScriptSize(n int) int {
	return 3 + n*34
}
