package host

import (
	"encoding/hex"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/suffix-labs/txsigner/pkg/coins"
	"github.com/suffix-labs/txsigner/pkg/payuri"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
	"gopkg.in/yaml.v3"
)

// File is the YAML form of a signing session. Hashes are hex in display
// order, scripts and data are hex.
type File struct {
	Coin           string       `yaml:"coin"`
	Version        uint32       `yaml:"version"`
	LockTime       uint32       `yaml:"lock_time"`
	Expiry         uint32       `yaml:"expiry"`
	VersionGroupID uint32       `yaml:"version_group_id"`
	BranchID       uint32       `yaml:"branch_id"`
	Inputs         []FileInput  `yaml:"inputs"`
	Outputs        []FileOutput `yaml:"outputs"`
	PaymentRequest string       `yaml:"payment_request"` // Appended after Outputs
	PrevTxs        []FilePrevTx `yaml:"prev_txs"`
}

// FileInput is one input of a session file.
type FileInput struct {
	Path         string  `yaml:"path"`
	PrevHash     string  `yaml:"prev_hash"`
	PrevIndex    uint32  `yaml:"prev_index"`
	Amount       uint64  `yaml:"amount"`
	Sequence     *uint32 `yaml:"sequence"`
	ScriptType   string  `yaml:"script_type"`
	ScriptPubKey string  `yaml:"script_pubkey"`
	ScriptSig    string  `yaml:"script_sig"`
	DecredTree   uint8   `yaml:"decred_tree"`
}

// FileOutput is one output of a session file.
type FileOutput struct {
	Address    string `yaml:"address"`
	Path       string `yaml:"path"`
	Amount     uint64 `yaml:"amount"`
	ScriptType string `yaml:"script_type"`
	OpReturn   string `yaml:"op_return"`
}

// FilePrevTx is a previous transaction of a session file.
type FilePrevTx struct {
	Version        uint32 `yaml:"version"`
	LockTime       uint32 `yaml:"lock_time"`
	Expiry         uint32 `yaml:"expiry"`
	VersionGroupID uint32 `yaml:"version_group_id"`
	Overwintered   bool   `yaml:"overwintered"`
	Inputs         []struct {
		PrevHash   string  `yaml:"prev_hash"`
		PrevIndex  uint32  `yaml:"prev_index"`
		ScriptSig  string  `yaml:"script_sig"`
		Sequence   *uint32 `yaml:"sequence"`
		DecredTree uint8   `yaml:"decred_tree"`
	} `yaml:"inputs"`
	Outputs []struct {
		Amount        uint64 `yaml:"amount"`
		ScriptPubKey  string `yaml:"script_pubkey"`
		ScriptVersion uint16 `yaml:"script_version"`
	} `yaml:"outputs"`
	ExtraData string `yaml:"extra_data"`
}

// LoadFile reads a session file and resolves it against table. Previous
// transactions are keyed by the txid they hash to.
func LoadFile(r io.Reader, table *coins.Table) (*Transaction, *coins.CoinInfo, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, nil, errors.Wrap(err, "decode session file")
	}
	return f.Transaction(table)
}

// Transaction converts the file into a Transaction.
func (f *File) Transaction(table *coins.Table) (*Transaction, *coins.CoinInfo, error) {
	coin, ok := table.ByName(f.Coin)
	if !ok {
		return nil, nil, errors.Errorf("unknown coin %q", f.Coin)
	}
	tx := &Transaction{}

	for i, fi := range f.Inputs {
		in, err := fi.input()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "input %d", i)
		}
		tx.Inputs = append(tx.Inputs, *in)
	}
	for i, fo := range f.Outputs {
		out, err := fo.output()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "output %d", i)
		}
		tx.Outputs = append(tx.Outputs, *out)
	}
	if f.PaymentRequest != "" {
		req, err := payuri.Parse(f.PaymentRequest)
		if err != nil {
			return nil, nil, errors.Wrap(err, "payment request")
		}
		outs, err := req.Outputs(coin)
		if err != nil {
			return nil, nil, errors.Wrap(err, "payment request")
		}
		tx.Outputs = append(tx.Outputs, outs...)
	}
	for i := range f.PrevTxs {
		prev, err := f.PrevTxs[i].prevTx()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "previous transaction %d", i)
		}
		if _, err := tx.AddPrevTx(coin, prev); err != nil {
			return nil, nil, errors.Wrapf(err, "previous transaction %d", i)
		}
	}

	tx.SignTx = txmsg.SignTx{
		CoinName:       coin.Name,
		InputsCount:    uint32(len(tx.Inputs)),
		OutputsCount:   uint32(len(tx.Outputs)),
		Version:        f.Version,
		LockTime:       f.LockTime,
		Expiry:         f.Expiry,
		VersionGroupID: f.VersionGroupID,
		BranchID:       f.BranchID,
	}
	return tx, coin, nil
}

func (fi *FileInput) input() (*txmsg.TxInput, error) {
	in := &txmsg.TxInput{
		PrevIndex:  fi.PrevIndex,
		Amount:     fi.Amount,
		Sequence:   sequenceOr(fi.Sequence),
		DecredTree: fi.DecredTree,
	}
	var err error
	if in.PrevHash, err = parseHash(fi.PrevHash); err != nil {
		return nil, err
	}
	if in.AddressN, err = ParsePath(fi.Path); err != nil {
		return nil, err
	}
	if in.ScriptType, err = ParseInputScriptType(fi.ScriptType); err != nil {
		return nil, err
	}
	if in.ScriptPubKey, err = hex.DecodeString(fi.ScriptPubKey); err != nil {
		return nil, errors.Wrap(err, "script_pubkey")
	}
	if in.ScriptSig, err = hex.DecodeString(fi.ScriptSig); err != nil {
		return nil, errors.Wrap(err, "script_sig")
	}
	return in, nil
}

func (fo *FileOutput) output() (*txmsg.TxOutput, error) {
	out := &txmsg.TxOutput{Address: fo.Address, Amount: fo.Amount}
	var err error
	if out.AddressN, err = ParsePath(fo.Path); err != nil {
		return nil, err
	}
	if out.ScriptType, err = ParseOutputScriptType(fo.ScriptType); err != nil {
		return nil, err
	}
	if fo.OpReturn != "" {
		out.ScriptType = txmsg.PayToOpReturn
		if out.OpReturnData, err = hex.DecodeString(fo.OpReturn); err != nil {
			return nil, errors.Wrap(err, "op_return")
		}
	}
	return out, nil
}

func (fp *FilePrevTx) prevTx() (*PrevTransaction, error) {
	prev := &PrevTransaction{Meta: txmsg.PrevTx{
		Version:        fp.Version,
		LockTime:       fp.LockTime,
		Expiry:         fp.Expiry,
		VersionGroupID: fp.VersionGroupID,
		Overwintered:   fp.Overwintered,
	}}
	for i, fi := range fp.Inputs {
		hash, err := parseHash(fi.PrevHash)
		if err != nil {
			return nil, errors.Wrapf(err, "input %d", i)
		}
		sig, err := hex.DecodeString(fi.ScriptSig)
		if err != nil {
			return nil, errors.Wrapf(err, "input %d script_sig", i)
		}
		prev.Inputs = append(prev.Inputs, txmsg.PrevInput{
			PrevHash:   hash,
			PrevIndex:  fi.PrevIndex,
			ScriptSig:  sig,
			Sequence:   sequenceOr(fi.Sequence),
			DecredTree: fi.DecredTree,
		})
	}
	for i, fo := range fp.Outputs {
		spk, err := hex.DecodeString(fo.ScriptPubKey)
		if err != nil {
			return nil, errors.Wrapf(err, "output %d script_pubkey", i)
		}
		prev.Outputs = append(prev.Outputs, txmsg.TxOutputBin{
			Amount:              fo.Amount,
			ScriptPubKey:        spk,
			DecredScriptVersion: fo.ScriptVersion,
		})
	}
	extra, err := hex.DecodeString(fp.ExtraData)
	if err != nil {
		return nil, errors.Wrap(err, "extra_data")
	}
	prev.ExtraData = extra
	return prev, nil
}

func sequenceOr(seq *uint32) uint32 {
	if seq == nil {
		return txmsg.SequenceFinal
	}
	return *seq
}

func parseHash(s string) ([32]byte, error) {
	var h [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, errors.Wrap(err, "prev_hash")
	}
	if len(b) != 32 {
		return h, errors.Errorf("prev_hash must be 32 bytes, got %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ParsePath parses a BIP-32 path such as "m/84'/0'/0'/0/5". Hardened levels
// may be marked with ' or h. The empty string is the empty path.
func ParsePath(s string) ([]uint32, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "/")
	if parts[0] == "m" {
		parts = parts[1:]
	}
	path := make([]uint32, 0, len(parts))
	for _, p := range parts {
		hardened := strings.HasSuffix(p, "'") || strings.HasSuffix(p, "h")
		p = strings.TrimRight(p, "'h")
		n, err := strconv.ParseUint(p, 10, 31)
		if err != nil {
			return nil, errors.Wrapf(err, "path %q", s)
		}
		index := uint32(n)
		if hardened {
			index |= txmsg.HardenedKeyStart
		}
		path = append(path, index)
	}
	return path, nil
}

// FormatPath renders a path the way ParsePath reads it.
func FormatPath(path []uint32) string {
	var b strings.Builder
	b.WriteString("m")
	for _, index := range path {
		b.WriteByte('/')
		b.WriteString(strconv.FormatUint(uint64(index&^txmsg.HardenedKeyStart), 10))
		if index&txmsg.HardenedKeyStart != 0 {
			b.WriteByte('\'')
		}
	}
	return b.String()
}

// ParseInputScriptType reads the name of an input script type. The empty
// string is spend_address.
func ParseInputScriptType(s string) (txmsg.InputScriptType, error) {
	if s == "" {
		return txmsg.SpendAddress, nil
	}
	for t := txmsg.SpendAddress; t <= txmsg.SpendP2SHWitness; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, errors.Errorf("unknown input script type %q", s)
}

// ParseOutputScriptType reads the name of an output script type. The empty
// string is pay_to_address.
func ParseOutputScriptType(s string) (txmsg.OutputScriptType, error) {
	if s == "" {
		return txmsg.PayToAddress, nil
	}
	for t := txmsg.PayToAddress; t <= txmsg.PayToP2SHWitness; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, errors.Errorf("unknown output script type %q", s)
}
