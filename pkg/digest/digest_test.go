package digest

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suffix-labs/txsigner/pkg/coins"
	"github.com/suffix-labs/txsigner/pkg/crypto"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

func hexDecode(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// displayHash converts a wire-order hex hash into the display order used by
// TxInput.PrevHash.
func displayHash(t *testing.T, wireHex string) [32]byte {
	t.Helper()
	var h [32]byte
	copy(h[:], hexDecode(t, wireHex))
	return txmsg.ReverseHash(h)
}

func coin(t *testing.T, name string) *coins.CoinInfo {
	t.Helper()
	c, ok := coins.Default().ByName(name)
	require.True(t, ok)
	return c
}

// BIP-143 "native P2WPKH" example.
func bip143Example(t *testing.T) (*txmsg.SignTx, []*txmsg.TxInput, []*txmsg.TxOutputBin) {
	tx := &txmsg.SignTx{CoinName: "Bitcoin", InputsCount: 2, OutputsCount: 2, Version: 1, LockTime: 0x11}
	inputs := []*txmsg.TxInput{
		{
			PrevHash:   displayHash(t, "fff7f7881a8099afa6940d42d1e7f6362bec38171ea3edf433541db4e4ad969f"),
			PrevIndex:  0,
			Sequence:   0xffffffee,
			ScriptType: txmsg.SpendAddress,
			Amount:     625000000,
		},
		{
			PrevHash:   displayHash(t, "ef51e1b804cc89d182d279655c3aa89e815b1b309fe287d9b2b55d57b90ec68a"),
			PrevIndex:  1,
			Sequence:   0xffffffff,
			ScriptType: txmsg.SpendWitness,
			Amount:     600000000,
		},
	}
	outputs := []*txmsg.TxOutputBin{
		{Amount: 112340000, ScriptPubKey: hexDecode(t, "76a9148280b37df378db99f66f85c95a783a76ac7a6d5988ac")},
		{Amount: 223450000, ScriptPubKey: hexDecode(t, "76a9143bde42dbee7e4dbe6a21b2d50ce2f0167faa815988ac")},
	}
	return tx, inputs, outputs
}

func feed(t *testing.T, b Builder, inputs []*txmsg.TxInput, outputs []*txmsg.TxOutputBin) {
	t.Helper()
	for _, in := range inputs {
		require.NoError(t, b.AddInput(in))
	}
	for _, out := range outputs {
		require.NoError(t, b.AddOutput(out))
	}
	require.NoError(t, b.Finalize())
}

func TestBIP143ReferenceVector(t *testing.T) {
	tx, inputs, outputs := bip143Example(t)
	b, err := New(coin(t, "Bitcoin"), tx)
	require.NoError(t, err)
	assert.Equal(t, BIP143, b.Family())
	feed(t, b, inputs, outputs)

	bb := b.(*bip143Builder)
	assert.Equal(t, "96b827c8483d4e9b96712b6713a7b68d6e8003a781feba36c31143470b4efd37", hex.EncodeToString(bb.hashPrevouts[:]))
	assert.Equal(t, "52b0a642eea2fb7ae638c36f6252b6750293dbe574a806984b8e4d8548339a3b", hex.EncodeToString(bb.hashSequence[:]))
	assert.Equal(t, "863ef3e1a92afbfdb97f31ad0fc7683ee943e9abcf2501590ff8f6551f47e5e5", hex.EncodeToString(bb.hashOutputs[:]))

	scriptCode := hexDecode(t, "76a9141d0f172a0ecb48aee1be1f2687d2963ae33f71a188ac")
	sighash, err := b.Compute(1, inputs[1], scriptCode)
	require.NoError(t, err)
	assert.Equal(t, "c37af31116d1b27caf68aae9e3ac82f1477929014d5b917657d0eb49478cb670", hex.EncodeToString(sighash[:]))

	// The key from the example controls the script code and its signature
	// over the digest verifies.
	key, err := crypto.PrivateKeyFromBytes(hexDecode(t, "619c335025c7f4012e556c2a58b2506e30b8511b53ade95ea316fd8c3286feb9"))
	require.NoError(t, err)
	defer key.Zero()
	pub := key.PublicKey()
	assert.Equal(t, "025476c2e83188368da1ff3e292e7acafcdb3566bb0ad253f62fc70f07aeee6357", hex.EncodeToString(pub.Bytes()))
	assert.Equal(t, scriptCode[3:23], crypto.Hash160(pub.Bytes()))

	sig, err := key.Sign(sighash)
	require.NoError(t, err)
	assert.True(t, crypto.VerifySignature(pub, sighash, sig))
}

func TestSelect(t *testing.T) {
	btc := coin(t, "Bitcoin")
	tx := &txmsg.SignTx{Version: 2}

	tests := []struct {
		coin       string
		version    uint32
		scriptType txmsg.InputScriptType
		want       Family
	}{
		{"Bitcoin", 2, txmsg.SpendAddress, Legacy},
		{"Bitcoin", 2, txmsg.SpendMultisig, Legacy},
		{"Bitcoin", 2, txmsg.SpendWitness, BIP143},
		{"Bitcoin", 2, txmsg.SpendP2SHWitness, BIP143},
		{"Bcash", 2, txmsg.SpendAddress, BIP143},
		{"Zcash", 3, txmsg.SpendAddress, ZIP143},
		{"Zcash", 4, txmsg.SpendAddress, ZIP243},
		{"Zcash", 5, txmsg.SpendAddress, ZIP244},
		{"Decred", 1, txmsg.SpendAddress, Decred},
	}

	for _, tt := range tests {
		t.Run(tt.coin+"/"+tt.scriptType.String(), func(t *testing.T) {
			got, err := Select(coin(t, tt.coin), &txmsg.SignTx{Version: tt.version}, tt.scriptType)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Select(coin(t, "Zcash"), &txmsg.SignTx{Version: 2}, txmsg.SpendAddress)
	assert.Equal(t, txmsg.KindDigest, txmsg.KindOf(err))

	got, err := Select(btc, tx, txmsg.SpendAddress)
	require.NoError(t, err)
	assert.False(t, got.CommitsToAmount())
	assert.True(t, BIP143.CommitsToAmount())
	assert.False(t, Decred.CommitsToAmount())
}

func TestBuilderMisuse(t *testing.T) {
	tx, inputs, outputs := bip143Example(t)
	scriptCode := hexDecode(t, "76a9141d0f172a0ecb48aee1be1f2687d2963ae33f71a188ac")

	for _, name := range []string{"Bitcoin", "Zcash", "Decred"} {
		t.Run(name, func(t *testing.T) {
			c := coin(t, name)
			txc := *tx
			if c.Overwintered {
				txc.Version = 4
			}
			b, err := New(c, &txc)
			require.NoError(t, err)

			_, err = b.Compute(0, inputs[0], scriptCode)
			assert.Equal(t, txmsg.KindDigest, txmsg.KindOf(err), "compute before finalize")

			err = b.AddOutput(outputs[0])
			assert.Equal(t, txmsg.KindDigest, txmsg.KindOf(err), "output before inputs")

			require.NoError(t, b.AddInput(inputs[0]))
			err = b.Finalize()
			assert.Equal(t, txmsg.KindDigest, txmsg.KindOf(err), "finalize with missing items")

			require.NoError(t, b.AddInput(inputs[1]))
			err = b.AddInput(inputs[1])
			assert.Equal(t, txmsg.KindDigest, txmsg.KindOf(err), "too many inputs")

			for _, out := range outputs {
				require.NoError(t, b.AddOutput(out))
			}
			require.NoError(t, b.Finalize())

			err = b.AddInput(inputs[0])
			assert.Equal(t, txmsg.KindDigest, txmsg.KindOf(err), "input after finalize")

			_, err = b.Compute(2, inputs[0], scriptCode)
			assert.Equal(t, txmsg.KindDigest, txmsg.KindOf(err), "index out of range")

			_, err = b.Compute(0, inputs[0], nil)
			assert.Equal(t, txmsg.KindDigest, txmsg.KindOf(err), "missing script code")

			_, err = b.Compute(0, inputs[0], scriptCode)
			assert.NoError(t, err)
		})
	}
}

func TestZip244RequiresScriptPubKey(t *testing.T) {
	tx := &txmsg.SignTx{InputsCount: 1, OutputsCount: 1, Version: 5}
	b, err := New(coin(t, "Zcash"), tx)
	require.NoError(t, err)
	assert.Equal(t, ZIP244, b.Family())

	err = b.AddInput(&txmsg.TxInput{Amount: 1})
	require.Error(t, err)
	assert.Equal(t, txmsg.ErrDigestData, txmsg.AsError(err).Code)
}

func TestLegacyHasherMisuse(t *testing.T) {
	tx, inputs, outputs := bip143Example(t)

	_, err := NewLegacyHasher(tx, 2, []byte{0x51}, 1)
	assert.Equal(t, txmsg.KindDigest, txmsg.KindOf(err))
	_, err = NewLegacyHasher(tx, 0, nil, 1)
	assert.Equal(t, txmsg.KindDigest, txmsg.KindOf(err))

	l, err := NewLegacyHasher(tx, 0, []byte{0x51}, 1)
	require.NoError(t, err)
	assert.Error(t, l.AddOutput(outputs[0]))
	require.NoError(t, l.AddInput(inputs[0]))
	_, err = l.Sum()
	assert.Error(t, err)
	require.NoError(t, l.AddInput(inputs[1]))
	assert.Error(t, l.AddInput(inputs[1]))
}
