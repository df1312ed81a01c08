package host

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suffix-labs/txsigner/pkg/coins"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

const sessionFile = `
coin: Bitcoin
version: 2
lock_time: 800000
inputs:
  - path: m/84'/0'/0'/0/5
    prev_hash: 1111111111111111111111111111111111111111111111111111111111111111
    prev_index: 1
    amount: 100000
    script_type: spend_witness
    sequence: 4294967293
  - path: m/44h/0h/0h/0/1
    prev_hash: 2222222222222222222222222222222222222222222222222222222222222222
outputs:
  - address: bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4
    amount: 50000
  - path: m/84'/0'/0'/1/0
    amount: 40000
    script_type: pay_to_witness
  - op_return: 68656c6c6f
payment_request: bitcoin:bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4?amount=0.0001
prev_txs:
  - version: 1
    inputs:
      - prev_hash: 3333333333333333333333333333333333333333333333333333333333333333
        script_sig: "51"
    outputs:
      - amount: 60000
        script_pubkey: 76a914000000000000000000000000000000000000000088ac
      - amount: 70000
        script_pubkey: 76a914000000000000000000000000000000000000000088ac
`

func TestLoadFile(t *testing.T) {
	tx, c, err := LoadFile(strings.NewReader(sessionFile), coins.Default())
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin", c.Name)

	assert.Equal(t, txmsg.SignTx{
		CoinName:     "Bitcoin",
		InputsCount:  2,
		OutputsCount: 4,
		Version:      2,
		LockTime:     800000,
	}, tx.SignTx)

	in := tx.Inputs[0]
	assert.Equal(t, []uint32{84 | hardened, hardened, hardened, 0, 5}, in.AddressN)
	assert.Equal(t, byte(0x11), in.PrevHash[0])
	assert.Equal(t, txmsg.SpendWitness, in.ScriptType)
	assert.Equal(t, uint32(0xfffffffd), in.Sequence)
	assert.Equal(t, txmsg.SpendAddress, tx.Inputs[1].ScriptType)
	assert.Equal(t, txmsg.SequenceFinal, tx.Inputs[1].Sequence)

	assert.Equal(t, txmsg.PayToAddress, tx.Outputs[0].ScriptType)
	assert.Equal(t, txmsg.PayToWitness, tx.Outputs[1].ScriptType)
	assert.Equal(t, txmsg.PayToOpReturn, tx.Outputs[2].ScriptType)
	assert.Equal(t, []byte("hello"), tx.Outputs[2].OpReturnData)
	assert.Equal(t, uint64(10000), tx.Outputs[3].Amount)
	assert.Equal(t, "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", tx.Outputs[3].Address)

	require.Len(t, tx.PrevTxs, 1)
	for id, prev := range tx.PrevTxs {
		again, err := prev.TxID(c)
		require.NoError(t, err)
		assert.Equal(t, id, again)
		assert.Len(t, prev.Outputs, 2)
	}
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{"unknown field", "coin: Bitcoin\nfee: 1\n", "field fee not found"},
		{"unknown coin", "coin: Dogecash\n", "unknown coin"},
		{"short hash", "coin: Bitcoin\ninputs:\n  - prev_hash: abcd\n", "prev_hash must be 32 bytes"},
		{"bad path", "coin: Bitcoin\noutputs:\n  - path: m/x\n", "path \"m/x\""},
		{"bad script type", "coin: Bitcoin\noutputs:\n  - script_type: pay_to_moon\n", "unknown output script type"},
		{"wrong scheme", "coin: Bitcoin\npayment_request: litecoin:ltc1qxyz?amount=1\n", "payment request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := LoadFile(strings.NewReader(tt.yaml), coins.Default())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestPaths(t *testing.T) {
	path, err := ParsePath("m/48'/0h/0'/2/9")
	require.NoError(t, err)
	assert.Equal(t, []uint32{48 | hardened, hardened, hardened, 2, 9}, path)
	assert.Equal(t, "m/48'/0'/0'/2/9", FormatPath(path))

	path, err = ParsePath("0/1")
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, path)

	path, err = ParsePath("")
	require.NoError(t, err)
	assert.Nil(t, path)
	assert.Equal(t, "m", FormatPath(nil))

	for _, bad := range []string{"m/", "m/-1", "m/2147483648", "m/1'/x"} {
		_, err := ParsePath(bad)
		assert.Error(t, err, bad)
	}
}

func TestScriptTypeNames(t *testing.T) {
	for st := txmsg.SpendAddress; st <= txmsg.SpendP2SHWitness; st++ {
		got, err := ParseInputScriptType(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}
	for st := txmsg.PayToAddress; st <= txmsg.PayToP2SHWitness; st++ {
		got, err := ParseOutputScriptType(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}
	_, err := ParseInputScriptType("spend_taproot")
	assert.Error(t, err)
}
