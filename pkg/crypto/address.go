package crypto

import (
	"bytes"

	"github.com/btcsuite/btcutil/base58"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/pkg/errors"
)

// PrefixBytes encodes an address version as big-endian bytes, using as many
// bytes as the value needs (Zcash and Decred use two-byte prefixes).
func PrefixBytes(version uint32) []byte {
	switch {
	case version <= 0xFF:
		return []byte{byte(version)}
	case version <= 0xFFFF:
		return []byte{byte(version >> 8), byte(version)}
	case version <= 0xFFFFFF:
		return []byte{byte(version >> 16), byte(version >> 8), byte(version)}
	default:
		return []byte{byte(version >> 24), byte(version >> 16), byte(version >> 8), byte(version)}
	}
}

// Base58CheckEncode encodes prefix || payload with a four-byte checksum
// computed by the named double hash.
func Base58CheckEncode(version uint32, payload []byte, hashName string) (string, error) {
	raw := append(PrefixBytes(version), payload...)
	sum, err := Checksum(hashName, raw)
	if err != nil {
		return "", err
	}
	return base58.Encode(append(raw, sum[:]...)), nil
}

// Base58CheckDecode verifies the checksum of addr and returns the payload that
// follows the expected version prefix.
func Base58CheckDecode(addr string, version uint32, hashName string) ([]byte, error) {
	decoded := base58.Decode(addr)
	prefix := PrefixBytes(version)
	if len(decoded) < len(prefix)+4 {
		return nil, errors.New("base58 address too short")
	}

	raw := decoded[:len(decoded)-4]
	sum, err := Checksum(hashName, raw)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(sum[:], decoded[len(decoded)-4:]) {
		return nil, errors.New("base58 checksum mismatch")
	}
	if !bytes.HasPrefix(raw, prefix) {
		return nil, errors.New("address version mismatch")
	}
	return raw[len(prefix):], nil
}

// EncodeSegwitAddress encodes a witness program as a bech32 address.
func EncodeSegwitAddress(hrp string, version byte, program []byte) (string, error) {
	conv, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		return "", errors.Wrap(err, "convert witness program")
	}
	return bech32.Encode(hrp, append([]byte{version}, conv...))
}

// DecodeSegwitAddress decodes a bech32 address and returns its witness
// version and program. Only version 0 programs of 20 or 32 bytes are
// accepted.
func DecodeSegwitAddress(hrp, addr string) (byte, []byte, error) {
	gotHRP, data, err := bech32.Decode(addr)
	if err != nil {
		return 0, nil, errors.Wrap(err, "decode bech32")
	}
	if gotHRP != hrp {
		return 0, nil, errors.Errorf("bech32 prefix %q, want %q", gotHRP, hrp)
	}
	if len(data) < 1 {
		return 0, nil, errors.New("empty bech32 data")
	}
	version := data[0]
	if version != 0 {
		return 0, nil, errors.Errorf("unsupported witness version %d", version)
	}
	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return 0, nil, errors.Wrap(err, "convert witness program")
	}
	if len(program) != 20 && len(program) != 32 {
		return 0, nil, errors.Errorf("invalid witness program length %d", len(program))
	}
	return version, program, nil
}
