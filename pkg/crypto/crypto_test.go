package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// Private key 1; the generator point.
const generatorPub = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func TestSignVerify(t *testing.T) {
	var one [32]byte
	one[31] = 1
	key, err := PrivateKeyFromBytes(one[:])
	require.NoError(t, err)
	assert.Equal(t, generatorPub, hex.EncodeToString(key.PublicKey().Bytes()))

	digest := Sum256d([]byte("digest"))
	sig1, err := key.Sign(digest)
	require.NoError(t, err)
	sig2, err := key.Sign(digest)
	require.NoError(t, err)
	assert.Equal(t, sig1, sig2, "RFC 6979 signatures are deterministic")

	pub, err := ParsePublicKey(key.PublicKey().Bytes())
	require.NoError(t, err)
	assert.True(t, VerifySignature(pub, digest, sig1))

	digest[0] ^= 1
	assert.False(t, VerifySignature(pub, digest, sig1))
	assert.False(t, VerifySignature(pub, digest, []byte{0x30, 0x00}))

	key.Zero()
	_, err = key.Sign(digest)
	assert.Error(t, err)
}

func TestPrivateKeyFromBytesRejects(t *testing.T) {
	_, err := PrivateKeyFromBytes(make([]byte, 31))
	assert.Error(t, err)
	_, err = PrivateKeyFromBytes(make([]byte, 32))
	assert.Error(t, err)
	_, err = ParsePublicKey(make([]byte, 32))
	assert.Error(t, err)
}

func TestAddresses(t *testing.T) {
	pub := mustHex(t, generatorPub)
	h160 := Hash160(pub)
	assert.Equal(t, "751e76e8199196d454941c45d1b3a323f1433bd6", hex.EncodeToString(h160))

	addr, err := Base58CheckEncode(0, h160, Sha256d)
	require.NoError(t, err)
	assert.Equal(t, "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", addr)

	payload, err := Base58CheckDecode(addr, 0, Sha256d)
	require.NoError(t, err)
	assert.Equal(t, h160, payload)

	_, err = Base58CheckDecode(addr, 5, Sha256d)
	assert.Error(t, err, "wrong version")
	_, err = Base58CheckDecode(addr, 0, Blake256d)
	assert.Error(t, err, "wrong checksum hash")

	seg, err := EncodeSegwitAddress("bc", 0, h160)
	require.NoError(t, err)
	assert.Equal(t, "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", seg)

	version, program, err := DecodeSegwitAddress("bc", seg)
	require.NoError(t, err)
	assert.Equal(t, byte(0), version)
	assert.Equal(t, h160, program)

	_, _, err = DecodeSegwitAddress("tb", seg)
	assert.Error(t, err)
}

func TestMultiBytePrefix(t *testing.T) {
	assert.Equal(t, []byte{0x1c, 0xb8}, PrefixBytes(0x1cb8))
	assert.Equal(t, []byte{0x6f}, PrefixBytes(111))

	h160 := make([]byte, 20)
	addr, err := Base58CheckEncode(0x1cb8, h160, Sha256d)
	require.NoError(t, err)
	assert.Equal(t, "t1", addr[:2])

	addr, err = Base58CheckEncode(0x073f, h160, Blake256d)
	require.NoError(t, err)
	assert.Equal(t, "Ds", addr[:2])
	payload, err := Base58CheckDecode(addr, 0x073f, Blake256d)
	require.NoError(t, err)
	assert.Equal(t, h160, payload)
}

func TestTxHasher(t *testing.T) {
	h, err := NewTxHasher(Sha256d)
	require.NoError(t, err)
	h.Write([]byte("abc"))
	assert.Equal(t, Sum256d([]byte("abc")), h.Sum())

	h, err = NewTxHasher(Sha256)
	require.NoError(t, err)
	h.Write([]byte("abc"))
	got := h.Sum()
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hex.EncodeToString(got[:]))

	_, err = NewTxHasher("md5")
	assert.Error(t, err)
}

func TestSoftwareKeychain(t *testing.T) {
	// BIP-32 test vector 1.
	seed := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	kc, err := NewSoftwareKeychain(seed)
	require.NoError(t, err)

	master, err := kc.PublicNode(nil)
	require.NoError(t, err)
	assert.Equal(t, "0339a36013301597daef41fbe593a02cc513d0b55527ec2df1050e2e8ff49c85c2", hex.EncodeToString(master.PublicKey))
	assert.Equal(t, "873dff81c02f525623fd1fe5167eac3a55a049de3d314bb42ee227ffed37d508", hex.EncodeToString(master.ChainCode))

	hardened, err := kc.PublicNode([]uint32{0x80000000})
	require.NoError(t, err)
	assert.Equal(t, "035a784662a4a20a65bf6aab9ae98a6c068a81c52e4b032c0fb5400c706cfccc56", hex.EncodeToString(hardened.PublicKey))
	assert.Equal(t, uint32(1), hardened.Depth)
	assert.Equal(t, uint32(0x80000000), hardened.ChildNum)

	child, err := DerivePublicKey(hardened, []uint32{1})
	require.NoError(t, err)
	assert.Equal(t, "03501e454bf00751f24b1b489aa925215d66af2234e3891c3b21a52bedb3cd711c", hex.EncodeToString(child))

	priv, err := kc.DerivePrivateKey([]uint32{0x80000000, 1})
	require.NoError(t, err)
	assert.Equal(t, child, priv.PublicKey().Bytes())
	priv.Zero()

	_, err = DerivePublicKey(hardened, []uint32{0x80000001})
	assert.Error(t, err, "public derivation cannot go hardened")
}
