// Package multisig canonicalizes cosigner sets.
//
// Every multisig input of one wallet must carry the same cosigner set. The
// set is identified by a fingerprint: SHA-256 over m, n and each cosigner's
// public node, with cosigners sorted by public key so the wire order of the
// descriptor does not matter. The relative paths from each node to the key
// actually used in the redeem script are not part of the fingerprint.
package multisig

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"github.com/suffix-labs/txsigner/pkg/crypto"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// MaxCosigners bounds n (and therefore m).
const MaxCosigners = 15

// Validate checks the size constraints of a cosigner set.
func Validate(ms *txmsg.MultisigRedeemScript) error {
	if ms == nil {
		return txmsg.NewError(txmsg.KindMultisig, txmsg.ErrMultisigMalformed, "missing multisig descriptor")
	}
	n := ms.N()
	if ms.M < 1 || ms.M > n || n > MaxCosigners {
		return txmsg.NewError(txmsg.KindMultisig, txmsg.ErrMultisigMalformed,
			"invalid threshold %d-of-%d", ms.M, n)
	}
	for i, hd := range ms.Pubkeys {
		if len(hd.Node.PublicKey) != 33 {
			return txmsg.NewError(txmsg.KindMultisig, txmsg.ErrMultisigMalformed,
				"cosigner %d: public key must be 33 bytes, got %d", i, len(hd.Node.PublicKey))
		}
		if len(hd.Node.ChainCode) != 32 {
			return txmsg.NewError(txmsg.KindMultisig, txmsg.ErrMultisigMalformed,
				"cosigner %d: chain code must be 32 bytes, got %d", i, len(hd.Node.ChainCode))
		}
	}
	if len(ms.Signatures) != 0 && len(ms.Signatures) != int(n) {
		return txmsg.NewError(txmsg.KindMultisig, txmsg.ErrMultisigMalformed,
			"%d signature slots for %d cosigners", len(ms.Signatures), n)
	}
	return nil
}

// Fingerprint returns the canonical hash of the cosigner set.
func Fingerprint(ms *txmsg.MultisigRedeemScript) ([32]byte, error) {
	if err := Validate(ms); err != nil {
		return [32]byte{}, err
	}

	nodes := make([]*txmsg.HDNode, len(ms.Pubkeys))
	for i := range ms.Pubkeys {
		nodes[i] = &ms.Pubkeys[i].Node
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return bytes.Compare(nodes[i].PublicKey, nodes[j].PublicKey) < 0
	})

	h := sha256.New()
	binary.Write(h, binary.LittleEndian, ms.M)
	binary.Write(h, binary.LittleEndian, ms.N())
	for _, node := range nodes {
		binary.Write(h, binary.LittleEndian, node.Depth)
		binary.Write(h, binary.LittleEndian, node.Fingerprint)
		binary.Write(h, binary.LittleEndian, node.ChildNum)
		h.Write(node.ChainCode)
		h.Write(node.PublicKey)
	}

	var fp [32]byte
	copy(fp[:], h.Sum(nil))
	return fp, nil
}

// Tracker remembers the fingerprint of the first multisig input of a
// transaction and checks every later one against it.
type Tracker struct {
	first [32]byte
	seen  bool
}

// Add fingerprints ms and compares it with the first fingerprint seen.
func (t *Tracker) Add(ms *txmsg.MultisigRedeemScript) error {
	fp, err := Fingerprint(ms)
	if err != nil {
		return err
	}
	if !t.seen {
		t.first = fp
		t.seen = true
		return nil
	}
	if fp != t.first {
		return txmsg.NewError(txmsg.KindMultisig, txmsg.ErrMultisigMismatch,
			"cosigner set differs from the first multisig input")
	}
	return nil
}

// Matches reports whether ms belongs to the tracked wallet. It is false when
// no multisig input has been seen.
func (t *Tracker) Matches(ms *txmsg.MultisigRedeemScript) bool {
	if !t.seen {
		return false
	}
	fp, err := Fingerprint(ms)
	return err == nil && fp == t.first
}

// Fingerprint returns the tracked fingerprint, if any.
func (t *Tracker) Fingerprint() ([32]byte, bool) {
	return t.first, t.seen
}

// Pubkeys derives each cosigner's key in redeem-script order.
func Pubkeys(ms *txmsg.MultisigRedeemScript) ([][]byte, error) {
	if err := Validate(ms); err != nil {
		return nil, err
	}
	keys := make([][]byte, len(ms.Pubkeys))
	for i := range ms.Pubkeys {
		hd := &ms.Pubkeys[i]
		pub, err := crypto.DerivePublicKey(&hd.Node, hd.AddressN)
		if err != nil {
			return nil, txmsg.WrapError(txmsg.KindMultisig, txmsg.ErrMultisigMalformed, err,
				"cosigner %d", i)
		}
		keys[i] = pub
	}
	return keys, nil
}

// PubkeyIndex returns the cosigner slot holding pub.
func PubkeyIndex(ms *txmsg.MultisigRedeemScript, pub []byte) (int, error) {
	keys, err := Pubkeys(ms)
	if err != nil {
		return -1, err
	}
	for i, k := range keys {
		if bytes.Equal(k, pub) {
			return i, nil
		}
	}
	return -1, txmsg.NewError(txmsg.KindMultisig, txmsg.ErrNotAMember,
		"public key is not a cosigner")
}
