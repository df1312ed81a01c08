// Package crypto implements the key, hash and address primitives used by the
// signing engine.
//
// Bitcoin-family transparent inputs use secp256k1 ECDSA signatures. Nonces
// are derived with RFC 6979, so signing the same digest with the same key
// always yields the same signature.
//
// Key formats:
//   - Private keys: raw 32 bytes, only ever obtained from a Keychain
//   - Public keys: Compressed 33-byte format (0x02/0x03 prefix + x-coordinate)
//   - Signatures: DER-encoded, without the trailing hash type byte
package crypto

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pkg/errors"
)

// PrivateKey wraps secp256k1 private key
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PublicKey wraps secp256k1 public key
type PublicKey struct {
	key *secp256k1.PublicKey
}

// PrivateKeyFromBytes creates a private key from raw bytes
func PrivateKeyFromBytes(keyBytes []byte) (*PrivateKey, error) {
	if len(keyBytes) != 32 {
		return nil, errors.Errorf("private key must be 32 bytes, got %d", len(keyBytes))
	}

	key := secp256k1.PrivKeyFromBytes(keyBytes)
	if key.Key.IsZero() {
		return nil, errors.New("private key is zero")
	}
	return &PrivateKey{key: key}, nil
}

// Sign creates a deterministic ECDSA signature over hash.
func (pk *PrivateKey) Sign(hash [32]byte) ([]byte, error) {
	if pk.key == nil {
		return nil, errors.New("private key already zeroed")
	}
	sig := ecdsa.Sign(pk.key, hash[:])

	// Serialize to DER format (low-S)
	return sig.Serialize(), nil
}

// PublicKey derives the public key
func (pk *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: pk.key.PubKey()}
}

// Zero overwrites the scalar. The key is unusable afterwards.
func (pk *PrivateKey) Zero() {
	if pk == nil || pk.key == nil {
		return
	}
	pk.key.Zero()
	pk.key = nil
}

// Bytes returns the compressed public key bytes
func (pub *PublicKey) Bytes() []byte {
	return pub.key.SerializeCompressed()
}

// ParsePublicKey parses a compressed public key
func ParsePublicKey(pubKeyBytes []byte) (*PublicKey, error) {
	if len(pubKeyBytes) != 33 {
		return nil, errors.Errorf("compressed public key must be 33 bytes, got %d", len(pubKeyBytes))
	}

	pubKey, err := secp256k1.ParsePubKey(pubKeyBytes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse public key")
	}

	return &PublicKey{key: pubKey}, nil
}

// VerifySignature verifies an ECDSA signature
func VerifySignature(pubkey *PublicKey, hash [32]byte, signature []byte) bool {
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}

	return sig.Verify(hash[:], pubkey.key)
}
