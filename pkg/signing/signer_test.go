package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suffix-labs/txsigner/pkg/coins"
	"github.com/suffix-labs/txsigner/pkg/host"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

func TestSegwitSpendWithinFeePolicy(t *testing.T) {
	table := loadTable(t, lowFeeTable)
	btc := coinInfo(t, table, "Bitcoin")
	kc := keychain(t, deviceSeed)
	tx := p2wpkhSpend(t, btc, 90000)

	s := NewSigner(kc, WithCoins(table))
	res, err := host.New(tx).Run(s)
	require.NoError(t, err)

	assert.Equal(t, requestTypes(
		txmsg.RequestInput,
		txmsg.RequestOutput,
		txmsg.RequestConfirmOutput,
		txmsg.RequestInput,
		txmsg.RequestSignature,
		txmsg.RequestFinished,
	), res.Types())
	for _, req := range res.Requests[:5] {
		assert.Equal(t, uint32(0), req.Index)
	}

	confirm := res.Requests[2]
	assert.Equal(t, tx.Outputs[0].Address, confirm.Address)
	assert.Equal(t, uint64(90000), confirm.Output.Amount)

	require.Len(t, res.Signatures, 1)
	assert.Equal(t, uint32(0), res.Signatures[0].InputIndex)
	assert.Empty(t, res.Signatures[0].ScriptSig)
	assert.NotEmpty(t, res.Signatures[0].Witness)

	assert.Equal(t, PhaseFinished, s.Phase())
	_, active := s.SessionID()
	assert.False(t, active)

	ours := resolve(t, kc, btc, txmsg.SpendWitness, tx.Inputs[0].AddressN, nil)
	verifyBitcoin(t, btc, tx, res.Signatures, kc, [][]byte{ours.ScriptPubKey})
}

func TestFeeAboveCeilingNeedsConfirmation(t *testing.T) {
	table := loadTable(t, lowFeeTable)
	btc := coinInfo(t, table, "Bitcoin")
	kc := keychain(t, deviceSeed)

	t.Run("approved", func(t *testing.T) {
		res, err := host.New(p2wpkhSpend(t, btc, 40000)).Run(NewSigner(kc, WithCoins(table)))
		require.NoError(t, err)
		assert.Equal(t, requestTypes(
			txmsg.RequestInput,
			txmsg.RequestOutput,
			txmsg.RequestConfirmOutput,
			txmsg.RequestConfirmFee,
			txmsg.RequestInput,
			txmsg.RequestSignature,
			txmsg.RequestFinished,
		), res.Types())

		fee := res.Requests[3]
		assert.Equal(t, uint64(60000), fee.Fee)
		assert.Equal(t, uint64(438), fee.Weight)
		assert.Len(t, res.Signatures, 1)
	})

	t.Run("declined", func(t *testing.T) {
		s := NewSigner(kc, WithCoins(table))
		declineFee := func(req *txmsg.Request) bool { return req.Type != txmsg.RequestConfirmFee }
		res, err := host.New(p2wpkhSpend(t, btc, 40000), host.WithConfirmer(declineFee)).Run(s)
		require.Error(t, err)

		assert.Equal(t, txmsg.KindCancelled, txmsg.KindOf(err))
		assert.Empty(t, res.Signatures)
		types := res.Types()
		assert.Equal(t, txmsg.RequestConfirmFee, types[len(types)-2])
		assert.Equal(t, txmsg.RequestFailure, types[len(types)-1])
		assert.Equal(t, txmsg.ErrCancelled, res.Requests[len(types)-1].FailureCode)
		assert.Equal(t, PhaseAborted, s.Phase())
	})

	t.Run("default ceiling", func(t *testing.T) {
		res, err := host.New(p2wpkhSpend(t, btc, 40000)).Run(NewSigner(kc))
		require.NoError(t, err)
		assert.NotContains(t, res.Types(), txmsg.RequestConfirmFee)
	})
}

func TestDeclinedOutputReleasesNothing(t *testing.T) {
	btc := coinInfo(t, coins.Default(), "Bitcoin")
	s := NewSigner(keychain(t, deviceSeed))
	never := func(*txmsg.Request) bool { return false }

	res, err := host.New(p2wpkhSpend(t, btc, 90000), host.WithConfirmer(never)).Run(s)
	require.Error(t, err)
	assert.Equal(t, txmsg.KindCancelled, txmsg.KindOf(err))
	assert.Empty(t, res.Signatures)
	assert.Equal(t, requestTypes(
		txmsg.RequestInput,
		txmsg.RequestOutput,
		txmsg.RequestConfirmOutput,
		txmsg.RequestFailure,
	), res.Types())
}

func TestSignaturesAreDeterministic(t *testing.T) {
	btc := coinInfo(t, coins.Default(), "Bitcoin")
	s := NewSigner(keychain(t, deviceSeed))
	tx := p2wpkhSpend(t, btc, 90000)

	first, err := host.New(tx).Run(s)
	require.NoError(t, err)
	second, err := host.New(tx).Run(s)
	require.NoError(t, err, "a finished signer accepts a new session")

	assert.Equal(t, first.Signatures, second.Signatures)
}

func TestSessionIDPerSession(t *testing.T) {
	btc := coinInfo(t, coins.Default(), "Bitcoin")
	s := NewSigner(keychain(t, deviceSeed))
	tx := p2wpkhSpend(t, btc, 90000)

	_, err := s.Next(&txmsg.Ack{Type: txmsg.AckSignTx, SignTx: &tx.SignTx})
	require.NoError(t, err)
	first, ok := s.SessionID()
	require.True(t, ok)

	_, err = s.Next(&txmsg.Ack{Type: txmsg.AckCancel})
	require.Error(t, err)
	_, ok = s.SessionID()
	assert.False(t, ok)

	_, err = s.Next(&txmsg.Ack{Type: txmsg.AckSignTx, SignTx: &tx.SignTx})
	require.NoError(t, err)
	second, ok := s.SessionID()
	require.True(t, ok)
	assert.NotEqual(t, first, second)
}

func TestProtocolViolations(t *testing.T) {
	btc := coinInfo(t, coins.Default(), "Bitcoin")
	tx := p2wpkhSpend(t, btc, 90000)
	kc := keychain(t, deviceSeed)

	t.Run("ack without session", func(t *testing.T) {
		s := NewSigner(kc)
		req, err := s.Next(&txmsg.Ack{Type: txmsg.AckInput, Input: &tx.Inputs[0]})
		require.Error(t, err)
		assert.Equal(t, txmsg.RequestFailure, req.Type)
		assert.Equal(t, txmsg.ErrUnexpectedMessage, req.FailureCode)
		assert.Equal(t, PhaseInit, s.Phase())
	})

	t.Run("nil ack", func(t *testing.T) {
		s := NewSigner(kc)
		req, err := s.Next(nil)
		require.Error(t, err)
		assert.Equal(t, txmsg.KindProcess, txmsg.KindOf(err))
		assert.Equal(t, txmsg.RequestFailure, req.Type)
	})

	open := func(t *testing.T) *Signer {
		s := NewSigner(kc)
		req, err := s.Next(&txmsg.Ack{Type: txmsg.AckSignTx, SignTx: &tx.SignTx})
		require.NoError(t, err)
		require.Equal(t, txmsg.RequestInput, req.Type)
		require.Equal(t, PhaseGatherInputs, s.Phase())
		return s
	}

	t.Run("second sign tx", func(t *testing.T) {
		s := open(t)
		req, err := s.Next(&txmsg.Ack{Type: txmsg.AckSignTx, SignTx: &tx.SignTx})
		require.Error(t, err)
		assert.Equal(t, txmsg.ErrSessionActive, req.FailureCode)
		assert.Equal(t, txmsg.KindProcess, txmsg.KindOf(err))
		assert.Equal(t, PhaseAborted, s.Phase())
	})

	t.Run("wrong ack type", func(t *testing.T) {
		s := open(t)
		req, err := s.Next(&txmsg.Ack{Type: txmsg.AckOutput, Output: &tx.Outputs[0]})
		require.Error(t, err)
		assert.Equal(t, txmsg.ErrUnexpectedMessage, req.FailureCode)
		assert.Equal(t, PhaseAborted, s.Phase())
	})

	t.Run("cancel", func(t *testing.T) {
		s := open(t)
		req, err := s.Next(&txmsg.Ack{Type: txmsg.AckCancel})
		require.Error(t, err)
		assert.Equal(t, txmsg.KindCancelled, txmsg.KindOf(err))
		assert.Equal(t, txmsg.ErrCancelled, req.FailureCode)
	})

	t.Run("missing payload", func(t *testing.T) {
		s := open(t)
		_, err := s.Next(&txmsg.Ack{Type: txmsg.AckInput})
		require.Error(t, err)
		assert.Equal(t, txmsg.ErrInvalidInput, txmsg.AsError(err).Code)
	})
}

func TestSessionParameters(t *testing.T) {
	kc := keychain(t, deviceSeed)
	tests := []struct {
		name string
		tx   *txmsg.SignTx
		code string
	}{
		{"missing", nil, txmsg.ErrInvalidInput},
		{"unknown coin", &txmsg.SignTx{CoinName: "Dogecoin", InputsCount: 1, OutputsCount: 1}, txmsg.ErrUnsupportedCoin},
		{"no inputs", &txmsg.SignTx{CoinName: "Bitcoin", OutputsCount: 1}, txmsg.ErrInvalidInput},
		{"no outputs", &txmsg.SignTx{CoinName: "Bitcoin", InputsCount: 1}, txmsg.ErrInvalidOutput},
		{"too many inputs", &txmsg.SignTx{CoinName: "Bitcoin", InputsCount: 0xFFFFFFFF, OutputsCount: 1}, txmsg.ErrInvalidInput},
		{"too many outputs", &txmsg.SignTx{CoinName: "Bitcoin", InputsCount: 1, OutputsCount: MaxOutputs + 1}, txmsg.ErrInvalidOutput},
		{"decred version", &txmsg.SignTx{CoinName: "Decred", InputsCount: 1, OutputsCount: 1, Version: 0x10000}, txmsg.ErrInvalidInput},
		{"zcash version", &txmsg.SignTx{CoinName: "Zcash", InputsCount: 1, OutputsCount: 1, Version: 2}, txmsg.ErrDigestData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSigner(kc)
			req, err := s.Next(&txmsg.Ack{Type: txmsg.AckSignTx, SignTx: tt.tx})
			require.Error(t, err)
			assert.Equal(t, tt.code, req.FailureCode)
			assert.Equal(t, PhaseAborted, s.Phase())
		})
	}
}

func TestOutputPolicy(t *testing.T) {
	btc := coinInfo(t, coins.Default(), "Bitcoin")
	kc := keychain(t, deviceSeed)

	tests := []struct {
		name   string
		output txmsg.TxOutput
		kind   txmsg.Kind
		code   string
	}{
		{"dust", txmsg.TxOutput{Address: payee(t, btc, txmsg.SpendWitness), Amount: 545}, txmsg.KindFee, txmsg.ErrDustOutput},
		{"fee too low", txmsg.TxOutput{Address: payee(t, btc, txmsg.SpendWitness), Amount: 99990}, txmsg.KindFee, txmsg.ErrFeeTooLow},
		{"overspend", txmsg.TxOutput{Address: payee(t, btc, txmsg.SpendWitness), Amount: 100001}, txmsg.KindFee, txmsg.ErrNotEnoughFunds},
		{"bad address", txmsg.TxOutput{Address: "bc1qnotanaddress", Amount: 90000}, txmsg.KindAddress, txmsg.ErrInvalidAddress},
		{"no destination", txmsg.TxOutput{Amount: 90000}, txmsg.KindSigning, txmsg.ErrInvalidOutput},
		{"op_return too long", txmsg.TxOutput{ScriptType: txmsg.PayToOpReturn, OpReturnData: make([]byte, 81)}, txmsg.KindSigning, txmsg.ErrInvalidOutput},
		{"op_return with value", txmsg.TxOutput{ScriptType: txmsg.PayToOpReturn, OpReturnData: []byte("hi"), Amount: 1}, txmsg.KindFee, txmsg.ErrInvalidOutput},
		{"script version", txmsg.TxOutput{Address: payee(t, btc, txmsg.SpendWitness), Amount: 90000, DecredScriptVersion: 1}, txmsg.KindSigning, txmsg.ErrInvalidOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := p2wpkhSpend(t, btc, 0)
			tx.Outputs[0] = tt.output
			res, err := host.New(tx).Run(NewSigner(kc))
			require.Error(t, err)
			e := txmsg.AsError(err)
			assert.Equal(t, tt.kind, e.Kind, e.Error())
			assert.Equal(t, tt.code, e.Code)
			assert.Empty(t, res.Signatures)
		})
	}
}

func TestOpReturnOutput(t *testing.T) {
	btc := coinInfo(t, coins.Default(), "Bitcoin")
	kc := keychain(t, deviceSeed)
	tx := p2wpkhSpend(t, btc, 90000)
	tx.SignTx.OutputsCount = 2
	tx.Outputs = append(tx.Outputs, txmsg.TxOutput{ScriptType: txmsg.PayToOpReturn, OpReturnData: make([]byte, 80)})

	res, err := host.New(tx).Run(NewSigner(kc))
	require.NoError(t, err)
	var confirmed []uint32
	for _, req := range res.Requests {
		if req.Type == txmsg.RequestConfirmOutput {
			confirmed = append(confirmed, req.Index)
		}
	}
	assert.Equal(t, []uint32{0, 1}, confirmed, "data outputs are shown too")

	ours := resolve(t, kc, btc, txmsg.SpendWitness, tx.Inputs[0].AddressN, nil)
	verifyBitcoin(t, btc, tx, res.Signatures, kc, [][]byte{ours.ScriptPubKey})
}

func TestInputChecks(t *testing.T) {
	btc := coinInfo(t, coins.Default(), "Bitcoin")
	zec := coinInfo(t, coins.Default(), "Zcash")
	kc := keychain(t, deviceSeed)

	tests := []struct {
		name   string
		coin   *coins.CoinInfo
		mutate func(*txmsg.TxInput)
		kind   txmsg.Kind
		code   string
	}{
		{"zero amount", btc, func(in *txmsg.TxInput) { in.Amount = 0 }, txmsg.KindSigning, txmsg.ErrInvalidInput},
		{"foreign script pubkey", btc, func(in *txmsg.TxInput) { in.ScriptPubKey = []byte{0x00, 0x14, 1, 2, 3} }, txmsg.KindSigning, txmsg.ErrInvalidInput},
		{"decred tree", btc, func(in *txmsg.TxInput) { in.DecredTree = 1 }, txmsg.KindSigning, txmsg.ErrInvalidInput},
		{"multisig without descriptor", btc, func(in *txmsg.TxInput) { in.ScriptType = txmsg.SpendMultisig }, txmsg.KindMultisig, txmsg.ErrMultisigMalformed},
		{"external without script", btc, func(in *txmsg.TxInput) { in.ScriptType = txmsg.External }, txmsg.KindSigning, txmsg.ErrInvalidInput},
		{"unknown script type", btc, func(in *txmsg.TxInput) { in.ScriptType = 42 }, txmsg.KindSigning, txmsg.ErrUnsupportedScript},
		{"segwit on zcash", zec, func(in *txmsg.TxInput) {}, txmsg.KindAddress, txmsg.ErrUnsupportedScript},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := p2wpkhSpend(t, btc, 90000)
			tx.SignTx.CoinName = tt.coin.Name
			tx.SignTx.Version = 4
			tt.mutate(&tx.Inputs[0])
			_, err := host.New(tx).Run(NewSigner(kc))
			require.Error(t, err)
			e := txmsg.AsError(err)
			assert.Equal(t, tt.kind, e.Kind, e.Error())
			assert.Equal(t, tt.code, e.Code)
		})
	}
}

func TestMatchingScriptPubKeyAccepted(t *testing.T) {
	btc := coinInfo(t, coins.Default(), "Bitcoin")
	kc := keychain(t, deviceSeed)
	tx := p2wpkhSpend(t, btc, 90000)
	tx.Inputs[0].ScriptPubKey = resolve(t, kc, btc, txmsg.SpendWitness, tx.Inputs[0].AddressN, nil).ScriptPubKey

	res, err := host.New(tx).Run(NewSigner(kc))
	require.NoError(t, err)
	assert.Len(t, res.Signatures, 1)
}
