package crypto

import (
	"crypto/sha256"
	"hash"

	"github.com/decred/dcrd/crypto/blake256"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160"
)

// Hash function names, shared with the coin table.
const (
	Sha256    = "sha256"
	Sha256d   = "sha256d"
	Blake256  = "blake256"
	Blake256d = "blake256d"
)

// TxHasher streams serialized transaction bytes into a single or double
// hash. The second round, when present, is applied in Sum.
type TxHasher struct {
	inner  hash.Hash
	newFn  func() hash.Hash
	double bool
}

// NewTxHasher returns a streaming hasher for one of the hash names.
func NewTxHasher(name string) (*TxHasher, error) {
	switch name {
	case Sha256:
		return &TxHasher{inner: sha256.New(), newFn: sha256.New}, nil
	case Sha256d:
		return &TxHasher{inner: sha256.New(), newFn: sha256.New, double: true}, nil
	case Blake256:
		return &TxHasher{inner: blake256.New(), newFn: newBlake256}, nil
	case Blake256d:
		return &TxHasher{inner: blake256.New(), newFn: newBlake256, double: true}, nil
	default:
		return nil, errors.Errorf("unknown hash %q", name)
	}
}

func newBlake256() hash.Hash {
	return blake256.New()
}

// Write implements io.Writer.
func (h *TxHasher) Write(p []byte) (int, error) {
	return h.inner.Write(p)
}

// Sum returns the digest of everything written so far.
func (h *TxHasher) Sum() [32]byte {
	var digest [32]byte
	first := h.inner.Sum(nil)
	if h.double {
		second := h.newFn()
		second.Write(first)
		first = second.Sum(nil)
	}
	copy(digest[:], first)
	return digest
}

// Sum256d returns SHA-256(SHA-256(b)).
func Sum256d(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// Hash160 returns RIPEMD-160(SHA-256(b)).
func Hash160(b []byte) []byte {
	sum := sha256.Sum256(b)
	return ripemd(sum[:])
}

// Blake256Hash160 returns RIPEMD-160(BLAKE-256(b)), the Decred key hash.
func Blake256Hash160(b []byte) []byte {
	sum := blake256.Sum256(b)
	return ripemd(sum[:])
}

// PubkeyHash hashes a public key or script with the named coin hasher.
func PubkeyHash(name string, b []byte) []byte {
	if name == Blake256 {
		return Blake256Hash160(b)
	}
	return Hash160(b)
}

func ripemd(b []byte) []byte {
	h := ripemd160.New()
	h.Write(b)
	return h.Sum(nil)
}

// Checksum returns the four-byte base58check checksum under the named
// double hash.
func Checksum(name string, payload []byte) ([4]byte, error) {
	var out [4]byte
	switch name {
	case Sha256d:
		sum := Sum256d(payload)
		copy(out[:], sum[:4])
	case Blake256d:
		first := blake256.Sum256(payload)
		sum := blake256.Sum256(first[:])
		copy(out[:], sum[:4])
	default:
		return out, errors.Errorf("unknown checksum hash %q", name)
	}
	return out, nil
}
