package crypto

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// Keychain derives private keys on demand. Callers own the returned key and
// must Zero it once the signature is produced.
type Keychain interface {
	DerivePrivateKey(path []uint32) (*PrivateKey, error)
}

// SoftwareKeychain is a BIP-32 keychain held in memory. It stands in for the
// device's secure key-derivation service.
type SoftwareKeychain struct {
	master *hdkeychain.ExtendedKey
}

// NewSoftwareKeychain derives the BIP-32 master node from seed.
func NewSoftwareKeychain(seed []byte) (*SoftwareKeychain, error) {
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, errors.Wrap(err, "derive master node")
	}
	return &SoftwareKeychain{master: master}, nil
}

func (k *SoftwareKeychain) derive(path []uint32) (*hdkeychain.ExtendedKey, error) {
	node := k.master
	for depth, index := range path {
		child, err := node.Derive(index)
		if err != nil {
			return nil, errors.Wrapf(err, "derive child %d at depth %d", index, depth)
		}
		node = child
	}
	return node, nil
}

// DerivePrivateKey implements Keychain.
func (k *SoftwareKeychain) DerivePrivateKey(path []uint32) (*PrivateKey, error) {
	node, err := k.derive(path)
	if err != nil {
		return nil, err
	}
	ecPriv, err := node.ECPrivKey()
	if err != nil {
		return nil, errors.Wrap(err, "extract private key")
	}
	raw := ecPriv.Serialize()
	ecPriv.Zero()
	defer zeroBytes(raw)

	return PrivateKeyFromBytes(raw)
}

// PublicNode returns the public BIP-32 node at path, in the form a cosigner
// would publish it.
func (k *SoftwareKeychain) PublicNode(path []uint32) (*txmsg.HDNode, error) {
	node, err := k.derive(path)
	if err != nil {
		return nil, err
	}
	pub, err := node.ECPubKey()
	if err != nil {
		return nil, errors.Wrap(err, "extract public key")
	}
	return &txmsg.HDNode{
		Depth:       uint32(node.Depth()),
		Fingerprint: node.ParentFingerprint(),
		ChildNum:    node.ChildIndex(),
		ChainCode:   node.ChainCode(),
		PublicKey:   pub.SerializeCompressed(),
	}, nil
}

// DerivePublicKey derives the non-hardened child of a public node along path.
func DerivePublicKey(node *txmsg.HDNode, path []uint32) ([]byte, error) {
	if len(node.ChainCode) != 32 {
		return nil, errors.Errorf("chain code must be 32 bytes, got %d", len(node.ChainCode))
	}
	if len(node.PublicKey) != 33 {
		return nil, errors.Errorf("public key must be 33 bytes, got %d", len(node.PublicKey))
	}
	if node.Depth > 0xFF {
		return nil, errors.Errorf("node depth %d out of range", node.Depth)
	}

	var parentFP [4]byte
	binary.BigEndian.PutUint32(parentFP[:], node.Fingerprint)
	ext := hdkeychain.NewExtendedKey(
		chaincfg.MainNetParams.HDPublicKeyID[:],
		node.PublicKey,
		node.ChainCode,
		parentFP[:],
		uint8(node.Depth),
		node.ChildNum,
		false,
	)
	for _, index := range path {
		if index >= txmsg.HardenedKeyStart {
			return nil, errors.Errorf("cannot derive hardened child %d from a public node", index)
		}
		child, err := ext.Derive(index)
		if err != nil {
			return nil, errors.Wrapf(err, "derive child %d", index)
		}
		ext = child
	}
	pub, err := ext.ECPubKey()
	if err != nil {
		return nil, errors.Wrap(err, "extract public key")
	}
	return pub.SerializeCompressed(), nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
