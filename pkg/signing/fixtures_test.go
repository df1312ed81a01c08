package signing

import (
	"bytes"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"github.com/suffix-labs/txsigner/pkg/coins"
	"github.com/suffix-labs/txsigner/pkg/crypto"
	"github.com/suffix-labs/txsigner/pkg/host"
	"github.com/suffix-labs/txsigner/pkg/scripts"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

const h = txmsg.HardenedKeyStart

var (
	deviceSeed   = bytes.Repeat([]byte{0x5a}, 32)
	payeeSeed    = bytes.Repeat([]byte{0xa5}, 32)
	cosignerSeed = bytes.Repeat([]byte{0x3c}, 32)
)

// lowFeeTable is a Bitcoin table whose fee ceiling is low enough for the
// fee confirmation to trigger on ordinary transactions.
const lowFeeTable = `
- name: Bitcoin
  shortcut: BTC
  address_type: 0
  address_type_p2sh: 5
  bech32_prefix: bc
  slip44: 0
  segwit: true
  dust_limit: 546
  min_fee_kb: 1000
  max_fee_kb: 100000
`

func loadTable(t *testing.T, yaml string) *coins.Table {
	t.Helper()
	table, err := coins.Load(strings.NewReader(yaml))
	require.NoError(t, err)
	return table
}

func coinInfo(t *testing.T, table *coins.Table, name string) *coins.CoinInfo {
	t.Helper()
	c, ok := table.ByName(name)
	require.True(t, ok, name)
	return c
}

func keychain(t *testing.T, seed []byte) *crypto.SoftwareKeychain {
	t.Helper()
	kc, err := crypto.NewSoftwareKeychain(seed)
	require.NoError(t, err)
	return kc
}

func bip44(purpose, coinType, change, index uint32) []uint32 {
	return []uint32{purpose | h, coinType | h, 0 | h, change, index}
}

func prevHash(b byte) [32]byte {
	var out [32]byte
	for i := range out {
		out[i] = b
	}
	return out
}

func resolve(t *testing.T, kc *crypto.SoftwareKeychain, coin *coins.CoinInfo, st txmsg.InputScriptType, path []uint32, ms *txmsg.MultisigRedeemScript) *scripts.Resolved {
	t.Helper()
	node, err := kc.PublicNode(path)
	require.NoError(t, err)
	r, err := scripts.Resolve(coin, st, node.PublicKey, ms)
	require.NoError(t, err)
	return r
}

// payee returns an address of someone else on coin.
func payee(t *testing.T, coin *coins.CoinInfo, st txmsg.InputScriptType) string {
	t.Helper()
	purpose := uint32(44)
	if st == txmsg.SpendWitness {
		purpose = 84
	}
	return resolve(t, keychain(t, payeeSeed), coin, st, bip44(purpose, coin.Slip44, 0, 7), nil).Address
}

// p2wpkhSpend is one native segwit input of 100000 paying spend to an
// external address.
func p2wpkhSpend(t *testing.T, coin *coins.CoinInfo, spend uint64) *host.Transaction {
	t.Helper()
	return &host.Transaction{
		SignTx: txmsg.SignTx{CoinName: coin.Name, InputsCount: 1, OutputsCount: 1, Version: 2},
		Inputs: []txmsg.TxInput{{
			AddressN:   bip44(84, coin.Slip44, 0, 0),
			PrevHash:   prevHash(0x11),
			PrevIndex:  1,
			Sequence:   txmsg.SequenceFinal,
			ScriptType: txmsg.SpendWitness,
			Amount:     100000,
		}},
		Outputs: []txmsg.TxOutput{{
			Address:    payee(t, coin, txmsg.SpendWitness),
			Amount:     spend,
			ScriptType: txmsg.PayToAddress,
		}},
	}
}

// p2pkhSpend is one legacy input spending output 0 of a previous
// transaction worth amount, paying spend to an external address.
func p2pkhSpend(t *testing.T, coin *coins.CoinInfo, amount, spend uint64) *host.Transaction {
	t.Helper()
	kc := keychain(t, deviceSeed)
	path := bip44(44, coin.Slip44, 0, 3)
	ours := resolve(t, kc, coin, txmsg.SpendAddress, path, nil)

	prev := &host.PrevTransaction{
		Meta: txmsg.PrevTx{Version: 1},
		Inputs: []txmsg.PrevInput{{
			PrevHash:  prevHash(0x22),
			PrevIndex: 3,
			ScriptSig: []byte{0x51},
			Sequence:  txmsg.SequenceFinal,
		}},
		Outputs: []txmsg.TxOutputBin{
			{Amount: amount, ScriptPubKey: ours.ScriptPubKey},
			{Amount: 5000, ScriptPubKey: []byte{0x6a}},
		},
	}
	if coin.Decred {
		prev.Inputs[0].ScriptSig = nil
		prev.Inputs[0].DecredTree = 0
	}

	tx := &host.Transaction{
		SignTx: txmsg.SignTx{CoinName: coin.Name, InputsCount: 1, OutputsCount: 1, Version: 1},
		Outputs: []txmsg.TxOutput{{
			Address:    payee(t, coin, txmsg.SpendAddress),
			Amount:     spend,
			ScriptType: txmsg.PayToAddress,
		}},
	}
	id, err := tx.AddPrevTx(coin, prev)
	require.NoError(t, err)
	tx.Inputs = []txmsg.TxInput{{
		AddressN:   path,
		PrevHash:   id,
		PrevIndex:  0,
		Sequence:   txmsg.SequenceFinal,
		ScriptType: txmsg.SpendAddress,
		Amount:     amount,
	}}
	return tx
}

func requestTypes(types ...txmsg.RequestType) []txmsg.RequestType {
	return types
}

// verifyBitcoin extracts the signed transaction and runs every signed input
// through the btcd script engine. prevScripts holds the locking script of
// each input.
func verifyBitcoin(t *testing.T, coin *coins.CoinInfo, tx *host.Transaction, sigs []*txmsg.Signature, keys host.KeySource, prevScripts [][]byte) {
	t.Helper()
	raw, err := host.NewExtractor(coin, tx, sigs, keys).Extract()
	require.NoError(t, err)

	msg := wire.NewMsgTx(wire.TxVersion)
	require.NoError(t, msg.Deserialize(bytes.NewReader(raw)))
	require.Len(t, msg.TxIn, len(tx.Inputs))

	prevOuts := make(map[wire.OutPoint]*wire.TxOut)
	for i, in := range msg.TxIn {
		prevOuts[in.PreviousOutPoint] = wire.NewTxOut(int64(tx.Inputs[i].Amount), prevScripts[i])
	}
	fetcher := txscript.NewMultiPrevOutFetcher(prevOuts)
	hashes := txscript.NewTxSigHashes(msg, fetcher)

	for _, sig := range sigs {
		i := int(sig.InputIndex)
		vm, err := txscript.NewEngine(prevScripts[i], msg, i, txscript.StandardVerifyFlags,
			nil, hashes, int64(tx.Inputs[i].Amount), fetcher)
		require.NoError(t, err)
		require.NoError(t, vm.Execute(), "input %d", i)
	}
}
