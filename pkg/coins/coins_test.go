package coins

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	table := Default()

	btc, ok := table.ByName("bitcoin")
	require.True(t, ok)
	assert.Equal(t, "bc", btc.Bech32Prefix)
	assert.True(t, btc.Segwit)
	assert.Equal(t, uint32(0x01), btc.HashType())
	assert.Equal(t, HashSha256d, btc.PubkeyHash, "defaults are filled in")

	bch, ok := table.ByName("BCH")
	require.True(t, ok)
	assert.True(t, bch.ForceBIP143)
	assert.Equal(t, uint32(0x41), bch.HashType())

	zec, ok := table.ByName("Zcash")
	require.True(t, ok)
	assert.Equal(t, uint32(0x1cb8), zec.AddressType)
	v4, ok := zec.ZcashDefaults(4)
	require.True(t, ok)
	assert.Equal(t, uint32(0x892f2085), v4.VersionGroupID)
	assert.Equal(t, uint32(0x76b809bb), v4.BranchID)
	_, ok = zec.ZcashDefaults(2)
	assert.False(t, ok)

	dcr, ok := table.ByName("DCR")
	require.True(t, ok)
	assert.True(t, dcr.Decred)
	assert.Equal(t, HashBlake256d, dcr.B58Hash)

	_, ok = table.ByName("dogecoin")
	assert.False(t, ok)
}

func TestLoadRejectsBadTables(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no name", "- max_fee_kb: 10\n"},
		{"min above max", "- name: X\n  min_fee_kb: 20\n  max_fee_kb: 10\n"},
		{"segwit without hrp", "- name: X\n  segwit: true\n  max_fee_kb: 10\n"},
		{"unknown hash", "- name: X\n  max_fee_kb: 10\n  b58_hash: md5\n"},
		{"duplicate", "- name: X\n  max_fee_kb: 10\n- name: x\n  max_fee_kb: 10\n"},
		{"not yaml", "{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadCustomTable(t *testing.T) {
	table, err := Load(strings.NewReader(`
- name: Regtest
  shortcut: REG
  address_type: 111
  address_type_p2sh: 196
  bech32_prefix: bcrt
  segwit: true
  dust_limit: 546
  max_fee_kb: 100000
`))
	require.NoError(t, err)
	require.Len(t, table.All(), 1)

	c, ok := table.ByName("reg")
	require.True(t, ok)
	assert.Equal(t, "bcrt", c.Bech32Prefix)
	assert.Nil(t, c.ForkID)
}
