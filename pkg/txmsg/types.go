// Package txmsg defines the messages exchanged between the host and the
// signing engine, the error taxonomy of a signing session, and the byte-level
// writers shared by every digest family.
//
// The host is untrusted. Every type in this package is created from host data
// each time it is requested and is never retained beyond the pass that needs
// it; only the coin table outlives a session.
//
// References:
//   - BIP-143: https://github.com/bitcoin/bips/blob/master/bip-0143.mediawiki
//   - ZIP-243: https://zips.z.cash/zip-0243
//   - ZIP-244: https://zips.z.cash/zip-0244
package txmsg

// HardenedKeyStart is the first hardened BIP-32 child index.
const HardenedKeyStart uint32 = 0x80000000

// Default sequence number (final, disables lock time and RBF).
const SequenceFinal uint32 = 0xFFFFFFFF

// SignTx opens a signing session. Immutable for the whole session.
type SignTx struct {
	CoinName       string // Key into the coin table
	InputsCount    uint32 // Number of inputs the host will stream
	OutputsCount   uint32 // Number of outputs the host will stream
	Version        uint32 // Transaction version
	LockTime       uint32 // nLockTime
	Expiry         uint32 // Expiry height (Zcash, Decred)
	VersionGroupID uint32 // Zcash version group id (0 = coin default for the version)
	BranchID       uint32 // Zcash consensus branch id (0 = coin default for the version)
}

// InputScriptType describes how an input is spent.
type InputScriptType uint8

const (
	SpendAddress     InputScriptType = iota // P2PKH
	SpendMultisig                           // P2SH multisig
	External                                // Not ours, context only
	SpendWitness                            // Native P2WPKH / P2WSH
	SpendP2SHWitness                        // P2WPKH / P2WSH nested in P2SH
)

func (t InputScriptType) String() string {
	switch t {
	case SpendAddress:
		return "spend_address"
	case SpendMultisig:
		return "spend_multisig"
	case External:
		return "external"
	case SpendWitness:
		return "spend_witness"
	case SpendP2SHWitness:
		return "spend_p2sh_witness"
	default:
		return "unknown"
	}
}

// IsSegwit reports whether the input carries its signature in the witness.
func (t InputScriptType) IsSegwit() bool {
	return t == SpendWitness || t == SpendP2SHWitness
}

// OutputScriptType describes how an output is locked.
type OutputScriptType uint8

const (
	PayToAddress     OutputScriptType = iota // P2PKH, or any external address
	PayToMultisig                            // P2SH multisig change
	PayToOpReturn                            // Data carrier, zero amount
	PayToWitness                             // Native P2WPKH / P2WSH
	PayToP2SHWitness                         // P2WPKH / P2WSH nested in P2SH
)

func (t OutputScriptType) String() string {
	switch t {
	case PayToAddress:
		return "pay_to_address"
	case PayToMultisig:
		return "pay_to_multisig"
	case PayToOpReturn:
		return "pay_to_op_return"
	case PayToWitness:
		return "pay_to_witness"
	case PayToP2SHWitness:
		return "pay_to_p2sh_witness"
	default:
		return "unknown"
	}
}

// IsSegwit reports whether the output script is a witness program.
func (t OutputScriptType) IsSegwit() bool {
	return t == PayToWitness || t == PayToP2SHWitness
}

// SpendType maps a change output script type to the input script type that
// would later spend it.
func (t OutputScriptType) SpendType() (InputScriptType, bool) {
	switch t {
	case PayToAddress:
		return SpendAddress, true
	case PayToMultisig:
		return SpendMultisig, true
	case PayToWitness:
		return SpendWitness, true
	case PayToP2SHWitness:
		return SpendP2SHWitness, true
	default:
		return 0, false
	}
}

// HDNode is a public BIP-32 node of a multisig cosigner.
type HDNode struct {
	Depth       uint32 // Depth in the cosigner's tree
	Fingerprint uint32 // Parent key fingerprint
	ChildNum    uint32 // Child index of this node
	ChainCode   []byte // 32 bytes
	PublicKey   []byte // 33 bytes, compressed
}

// HDNodePath is a cosigner node plus the non-hardened path from it to the key
// used in the redeem script.
type HDNodePath struct {
	Node     HDNode
	AddressN []uint32
}

// MultisigRedeemScript describes an m-of-n cosigner set.
type MultisigRedeemScript struct {
	M          uint32       // Threshold
	Pubkeys    []HDNodePath // Cosigners in redeem-script order
	Signatures [][]byte     // Cosigner signatures already collected (DER, no hash type), one slot per cosigner
}

// N returns the number of cosigners.
func (m *MultisigRedeemScript) N() uint32 {
	return uint32(len(m.Pubkeys))
}

// TxInput is one input as disclosed by the host.
type TxInput struct {
	AddressN     []uint32              // Owning key path; empty means the input is not ours
	PrevHash     [32]byte              // Previous txid, display (big-endian) order
	PrevIndex    uint32                // Output index in the previous transaction
	ScriptSig    []byte                // Host-supplied scriptSig (external inputs only)
	Sequence     uint32                // nSequence
	ScriptType   InputScriptType       // How the input is spent
	Multisig     *MultisigRedeemScript // Cosigner set for multisig inputs
	Amount       uint64                // Value of the spent output
	DecredTree   uint8                 // Decred outpoint tree
	ScriptPubKey []byte                // Locking script of the spent output (external inputs, ZIP-244)
}

// IsOurs reports whether the device owns the key for this input.
func (i *TxInput) IsOurs() bool {
	return len(i.AddressN) > 0 && i.ScriptType != External
}

// TxOutput is one output as disclosed by the host.
type TxOutput struct {
	Address             string                // Destination address (external outputs)
	AddressN            []uint32              // Key path proving ownership (change outputs)
	Amount              uint64                // Value
	ScriptType          OutputScriptType      // Script family
	Multisig            *MultisigRedeemScript // Cosigner set for multisig change
	OpReturnData        []byte                // Payload of an OP_RETURN output
	DecredScriptVersion uint16                // Decred script version (must be 0)
}

// IsChangeCandidate reports whether the host claims device ownership.
func (o *TxOutput) IsChangeCandidate() bool {
	return len(o.AddressN) > 0
}

// TxOutputBin is an output reduced to its serialized form.
type TxOutputBin struct {
	Amount              uint64
	ScriptPubKey        []byte
	DecredScriptVersion uint16
}

// PrevTx is the header of a previous transaction streamed to prove the
// amount of a legacy input.
type PrevTx struct {
	Version        uint32
	LockTime       uint32
	InputsCount    uint32
	OutputsCount   uint32
	ExtraDataLen   uint32 // Trailing bytes hashed verbatim (e.g. Zcash joinsplits)
	Expiry         uint32
	VersionGroupID uint32
	Overwintered   bool
}

// PrevInput is one input of a previous transaction.
type PrevInput struct {
	PrevHash   [32]byte
	PrevIndex  uint32
	ScriptSig  []byte
	Sequence   uint32
	DecredTree uint8
}

// Signature is returned to the host for each owned input.
type Signature struct {
	InputIndex uint32 // Input the signature belongs to
	Signature  []byte // DER-encoded ECDSA signature, without hash type
	PublicKey  []byte // Compressed key that produced it
	ScriptSig  []byte // Finalized scriptSig for the input
	Witness    []byte // Serialized witness stack (segwit inputs only)
}
