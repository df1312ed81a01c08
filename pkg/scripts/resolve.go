package scripts

import (
	"bytes"
	"crypto/sha256"
	"strings"

	"github.com/suffix-labs/txsigner/pkg/coins"
	"github.com/suffix-labs/txsigner/pkg/crypto"
	"github.com/suffix-labs/txsigner/pkg/multisig"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// Resolved is everything the engine needs about one of our scripts.
type Resolved struct {
	ScriptPubKey  []byte // Locking script
	ScriptCode    []byte // Script committed to by the signature digest
	RedeemScript  []byte // P2SH redeem script (nested segwit program or multisig script)
	WitnessScript []byte // P2WSH witness script
	Address       string // Display address
}

func addressError(code string, format string, args ...interface{}) error {
	return txmsg.NewError(txmsg.KindAddress, code, format, args...)
}

// Resolve derives the scripts and address for a key we own. For multisig
// descriptors pubkey must be one of the cosigner keys.
func Resolve(coin *coins.CoinInfo, scriptType txmsg.InputScriptType, pubkey []byte, ms *txmsg.MultisigRedeemScript) (*Resolved, error) {
	if len(pubkey) != 33 {
		return nil, addressError(txmsg.ErrInvalidInput, "public key must be 33 bytes, got %d", len(pubkey))
	}
	if scriptType.IsSegwit() && !coin.Segwit {
		return nil, addressError(txmsg.ErrUnsupportedScript, "%s not supported by %s", scriptType, coin.Name)
	}
	if scriptType == txmsg.SpendWitness && coin.Bech32Prefix == "" {
		return nil, addressError(txmsg.ErrUnsupportedScript, "%s has no bech32 prefix", coin.Name)
	}

	var witnessScript []byte
	if ms != nil {
		keys, err := multisig.Pubkeys(ms)
		if err != nil {
			return nil, txmsg.WrapError(txmsg.KindAddress, txmsg.ErrMultisigMalformed, err, "multisig descriptor")
		}
		member := false
		for _, k := range keys {
			if bytes.Equal(k, pubkey) {
				member = true
				break
			}
		}
		if !member {
			return nil, addressError(txmsg.ErrNotAMember, "our key is not in the cosigner set")
		}
		witnessScript = Multisig(int(ms.M), keys)
	} else if scriptType == txmsg.SpendMultisig {
		return nil, addressError(txmsg.ErrMultisigMalformed, "multisig script type without descriptor")
	}

	switch scriptType {
	case txmsg.SpendAddress:
		if ms != nil {
			return nil, addressError(txmsg.ErrUnsupportedScript, "spend_address with multisig descriptor")
		}
		pkh := crypto.PubkeyHash(coin.PubkeyHash, pubkey)
		spk := P2PKH(pkh)
		addr, err := crypto.Base58CheckEncode(coin.AddressType, pkh, coin.B58Hash)
		if err != nil {
			return nil, txmsg.WrapError(txmsg.KindAddress, txmsg.ErrInvalidAddress, err, "encode address")
		}
		return &Resolved{ScriptPubKey: spk, ScriptCode: spk, Address: addr}, nil

	case txmsg.SpendMultisig:
		sh := crypto.PubkeyHash(coin.PubkeyHash, witnessScript)
		addr, err := crypto.Base58CheckEncode(coin.AddressTypeP2SH, sh, coin.B58Hash)
		if err != nil {
			return nil, txmsg.WrapError(txmsg.KindAddress, txmsg.ErrInvalidAddress, err, "encode address")
		}
		return &Resolved{ScriptPubKey: P2SH(sh), ScriptCode: witnessScript, RedeemScript: witnessScript, Address: addr}, nil

	case txmsg.SpendWitness:
		program, scriptCode := witnessProgram(pubkey, witnessScript)
		addr, err := crypto.EncodeSegwitAddress(coin.Bech32Prefix, 0, program)
		if err != nil {
			return nil, txmsg.WrapError(txmsg.KindAddress, txmsg.ErrInvalidAddress, err, "encode address")
		}
		return &Resolved{
			ScriptPubKey:  WitnessProgram(program),
			ScriptCode:    scriptCode,
			WitnessScript: witnessScript,
			Address:       addr,
		}, nil

	case txmsg.SpendP2SHWitness:
		program, scriptCode := witnessProgram(pubkey, witnessScript)
		redeem := WitnessProgram(program)
		sh := crypto.Hash160(redeem)
		addr, err := crypto.Base58CheckEncode(coin.AddressTypeP2SH, sh, coin.B58Hash)
		if err != nil {
			return nil, txmsg.WrapError(txmsg.KindAddress, txmsg.ErrInvalidAddress, err, "encode address")
		}
		return &Resolved{
			ScriptPubKey:  P2SH(sh),
			ScriptCode:    scriptCode,
			RedeemScript:  redeem,
			WitnessScript: witnessScript,
			Address:       addr,
		}, nil

	default:
		return nil, addressError(txmsg.ErrUnsupportedScript, "cannot resolve %s", scriptType)
	}
}

// witnessProgram returns the v0 program and the BIP-143 script code.
func witnessProgram(pubkey, witnessScript []byte) ([]byte, []byte) {
	if witnessScript != nil {
		sum := sha256.Sum256(witnessScript)
		return sum[:], witnessScript
	}
	h := crypto.Hash160(pubkey)
	return h, P2PKH(h)
}

// ResolveOutput derives the locking script of a change output.
func ResolveOutput(coin *coins.CoinInfo, out *txmsg.TxOutput, pubkey []byte) (*Resolved, error) {
	spend, ok := out.ScriptType.SpendType()
	if !ok {
		return nil, addressError(txmsg.ErrUnsupportedScript, "%s cannot be a change output", out.ScriptType)
	}
	if spend == txmsg.SpendAddress && out.Multisig != nil {
		spend = txmsg.SpendMultisig
	}
	return Resolve(coin, spend, pubkey, out.Multisig)
}

// DecodeAddress converts a display address into its locking script.
func DecodeAddress(coin *coins.CoinInfo, address string) ([]byte, error) {
	if coin.Bech32Prefix != "" && strings.HasPrefix(strings.ToLower(address), coin.Bech32Prefix+"1") {
		if !coin.Segwit {
			return nil, addressError(txmsg.ErrInvalidAddress, "%s does not support segwit", coin.Name)
		}
		_, program, err := crypto.DecodeSegwitAddress(coin.Bech32Prefix, address)
		if err != nil {
			return nil, txmsg.WrapError(txmsg.KindAddress, txmsg.ErrInvalidAddress, err, "invalid bech32 address")
		}
		return WitnessProgram(program), nil
	}

	if payload, err := crypto.Base58CheckDecode(address, coin.AddressType, coin.B58Hash); err == nil && len(payload) == 20 {
		return P2PKH(payload), nil
	}
	payload, err := crypto.Base58CheckDecode(address, coin.AddressTypeP2SH, coin.B58Hash)
	if err != nil {
		return nil, txmsg.WrapError(txmsg.KindAddress, txmsg.ErrInvalidAddress, err, "invalid address")
	}
	if len(payload) != 20 {
		return nil, addressError(txmsg.ErrInvalidAddress, "invalid address payload length %d", len(payload))
	}
	return P2SH(payload), nil
}

// EncodeScript renders a locking script as an address, when it has one.
func EncodeScript(coin *coins.CoinInfo, spk []byte) (string, bool) {
	switch {
	case len(spk) == 25 && spk[0] == opDup && spk[1] == opHash160 && spk[2] == 20 && spk[23] == opEqualVerify && spk[24] == opCheckSig:
		addr, err := crypto.Base58CheckEncode(coin.AddressType, spk[3:23], coin.B58Hash)
		return addr, err == nil
	case len(spk) == 23 && spk[0] == opHash160 && spk[1] == 20 && spk[22] == opEqual:
		addr, err := crypto.Base58CheckEncode(coin.AddressTypeP2SH, spk[2:22], coin.B58Hash)
		return addr, err == nil
	case coin.Bech32Prefix != "" && (len(spk) == 22 || len(spk) == 34) && spk[0] == op0 && int(spk[1]) == len(spk)-2:
		addr, err := crypto.EncodeSegwitAddress(coin.Bech32Prefix, 0, spk[2:])
		return addr, err == nil
	default:
		return "", false
	}
}
