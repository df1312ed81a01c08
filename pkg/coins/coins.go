// Package coins holds the per-coin parameter table.
//
// Coin parameters (address prefixes, fee policy, digest family switches) are
// configuration data, not code. The default table is embedded from
// coins.yaml; Load accepts any table with the same shape.
package coins

import (
	_ "embed"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Hash function names used by the table.
const (
	HashSha256    = "sha256"
	HashSha256d   = "sha256d"
	HashBlake256  = "blake256"
	HashBlake256d = "blake256d"
)

// ZcashVersion binds an overwintered transaction version to its consensus
// defaults.
type ZcashVersion struct {
	Version        uint32 `yaml:"version"`
	VersionGroupID uint32 `yaml:"version_group_id"`
	BranchID       uint32 `yaml:"branch_id"`
}

// CoinInfo describes one supported coin.
type CoinInfo struct {
	Name            string         `yaml:"name"`
	Shortcut        string         `yaml:"shortcut"`
	AddressType     uint32         `yaml:"address_type"`
	AddressTypeP2SH uint32         `yaml:"address_type_p2sh"`
	Bech32Prefix    string         `yaml:"bech32_prefix"`
	Slip44          uint32         `yaml:"slip44"`
	Segwit          bool           `yaml:"segwit"`
	ForceBIP143     bool           `yaml:"force_bip143"`
	ForkID          *uint32        `yaml:"fork_id"`
	Decred          bool           `yaml:"decred"`
	Overwintered    bool           `yaml:"overwintered"`
	DustLimit       uint64         `yaml:"dust_limit"`
	MinFeeKB        uint64         `yaml:"min_fee_kb"`
	MaxFeeKB        uint64         `yaml:"max_fee_kb"`
	B58Hash         string         `yaml:"b58_hash"`
	TxHash          string         `yaml:"tx_hash"`
	PubkeyHash      string         `yaml:"pubkey_hash"`
	Versions        []ZcashVersion `yaml:"versions"`
}

// HashType returns the sighash type committed to by signatures of this coin.
func (c *CoinInfo) HashType() uint32 {
	if c.ForkID != nil {
		return 0x01 | *c.ForkID<<8 | 0x40
	}
	return 0x01
}

// ZcashDefaults returns the consensus defaults for an overwintered version.
func (c *CoinInfo) ZcashDefaults(version uint32) (ZcashVersion, bool) {
	for _, v := range c.Versions {
		if v.Version == version {
			return v, true
		}
	}
	return ZcashVersion{}, false
}

func (c *CoinInfo) validate() error {
	if c.Name == "" {
		return errors.New("coin without name")
	}
	if c.MaxFeeKB == 0 {
		return errors.Errorf("coin %s: max_fee_kb must be set", c.Name)
	}
	if c.MinFeeKB > c.MaxFeeKB {
		return errors.Errorf("coin %s: min_fee_kb above max_fee_kb", c.Name)
	}
	if c.Segwit && c.Bech32Prefix == "" {
		return errors.Errorf("coin %s: segwit coin without bech32 prefix", c.Name)
	}
	switch c.B58Hash {
	case "":
		c.B58Hash = HashSha256d
	case HashSha256d, HashBlake256d:
	default:
		return errors.Errorf("coin %s: unknown b58_hash %q", c.Name, c.B58Hash)
	}
	switch c.TxHash {
	case "":
		c.TxHash = HashSha256d
	case HashSha256d, HashBlake256:
	default:
		return errors.Errorf("coin %s: unknown tx_hash %q", c.Name, c.TxHash)
	}
	switch c.PubkeyHash {
	case "":
		c.PubkeyHash = HashSha256
	case HashSha256, HashBlake256:
	default:
		return errors.Errorf("coin %s: unknown pubkey_hash %q", c.Name, c.PubkeyHash)
	}
	return nil
}

// Table is a set of coins indexed by name.
type Table struct {
	coins []*CoinInfo
	byKey map[string]*CoinInfo
}

// Load decodes a coin table from YAML.
func Load(r io.Reader) (*Table, error) {
	var list []*CoinInfo
	if err := yaml.NewDecoder(r).Decode(&list); err != nil {
		return nil, errors.Wrap(err, "decode coin table")
	}

	t := &Table{byKey: make(map[string]*CoinInfo, 2*len(list))}
	for _, c := range list {
		if err := c.validate(); err != nil {
			return nil, err
		}
		for _, key := range []string{c.Name, c.Shortcut} {
			if key == "" {
				continue
			}
			key = strings.ToLower(key)
			if _, dup := t.byKey[key]; dup {
				return nil, errors.Errorf("duplicate coin %q", key)
			}
			t.byKey[key] = c
		}
		t.coins = append(t.coins, c)
	}
	return t, nil
}

// ByName finds a coin by name or shortcut, case-insensitively.
func (t *Table) ByName(name string) (*CoinInfo, bool) {
	c, ok := t.byKey[strings.ToLower(name)]
	return c, ok
}

// All returns the coins in table order.
func (t *Table) All() []*CoinInfo {
	return t.coins
}

//go:embed coins.yaml
var defaultTable string

var (
	defaultOnce sync.Once
	defaults    *Table
)

// Default returns the embedded coin table.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Load(strings.NewReader(defaultTable))
		if err != nil {
			panic(errors.Wrap(err, "embedded coin table"))
		}
		defaults = t
	})
	return defaults
}
