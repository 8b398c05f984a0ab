package native

import (
	"testing"

	"github.com/neoref/neoref/pkg/config"
	"github.com/neoref/neoref/pkg/config/netmode"
	"github.com/neoref/neoref/pkg/core/native/nativenames"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContracts() *Contracts {
	return NewContracts(config.Default(netmode.UnitTestNet))
}

func TestAllNativesPresent(t *testing.T) {
	cs := testContracts()
	require.Equal(t, len(nativenames.All), len(cs.Contracts))
	for _, name := range nativenames.All {
		c := cs.ByName(name)
		require.NotNil(t, c, name)
		assert.Equal(t, name, c.Metadata().Manifest.Name)
	}
}

func TestNativeIDsFixed(t *testing.T) {
	cs := testContracts()
	expected := map[string]int32{
		nativenames.Management:  -1,
		nativenames.StdLib:      -2,
		nativenames.CryptoLib:   -3,
		nativenames.Ledger:      -4,
		nativenames.Neo:         -5,
		nativenames.Gas:         -6,
		nativenames.Policy:      -7,
		nativenames.Designation: -8,
		nativenames.Oracle:      -9,
		nativenames.Notary:      -10,
		nativenames.Treasury:    -11,
	}
	for name, id := range expected {
		assert.Equal(t, id, cs.ByName(name).Metadata().ID, name)
	}
}

func TestNativeHashesAreDeterministic(t *testing.T) {
	a := testContracts()
	b := testContracts()
	for i := range a.Contracts {
		assert.Equal(t, a.Contracts[i].Metadata().Hash, b.Contracts[i].Metadata().Hash)
	}
	// And they're pairwise distinct.
	seen := make(map[string]bool)
	for _, c := range a.Contracts {
		h := c.Metadata().Hash.StringLE()
		require.False(t, seen[h])
		seen[h] = true
	}
}

func TestActivationGates(t *testing.T) {
	cs := testContracts()
	assert.Nil(t, cs.NEO.ActiveIn())
	require.NotNil(t, cs.Notary.ActiveIn())
	assert.Equal(t, config.HFEchidna, *cs.Notary.ActiveIn())
	require.NotNil(t, cs.Treasury.ActiveIn())
	assert.Equal(t, config.HFFaun, *cs.Treasury.ActiveIn())

	enabledAll := func(config.Hardfork) bool { return true }
	disabledAll := func(config.Hardfork) bool { return false }
	assert.True(t, IsActive(cs.Notary, enabledAll))
	assert.False(t, IsActive(cs.Notary, disabledAll))
	assert.True(t, IsActive(cs.NEO, disabledAll))
}

func TestDynamicManifestGating(t *testing.T) {
	cs := testContracts()
	std := cs.StdLib.Metadata()

	preEchidna := std.HFSpecificContractMD(func(config.Hardfork) bool { return false })
	assert.Nil(t, preEchidna.Manifest.ABI.GetMethod("base64UrlEncode", 1))
	assert.Nil(t, preEchidna.Manifest.ABI.GetMethod("hexEncode", 1))
	assert.NotNil(t, preEchidna.Manifest.ABI.GetMethod("base64Encode", 1))
	assert.Equal(t, uint16(0), preEchidna.UpdateCounter)

	postFaun := std.HFSpecificContractMD(func(config.Hardfork) bool { return true })
	assert.NotNil(t, postFaun.Manifest.ABI.GetMethod("base64UrlEncode", 1))
	assert.NotNil(t, postFaun.Manifest.ABI.GetMethod("hexEncode", 1))
	// Echidna and Faun activations have been crossed.
	assert.Equal(t, uint16(2), postFaun.UpdateCounter)
}

func TestMethodOffsetsResolvable(t *testing.T) {
	cs := testContracts()
	for _, c := range cs.Contracts {
		md := c.Metadata()
		require.NotEmpty(t, md.NEF.Script, md.Manifest.Name)
		for i := range md.Methods {
			m, ok := md.GetMethodByOffset(md.Methods[i].SyscallOffset)
			require.True(t, ok)
			assert.Equal(t, md.Methods[i].MD.Name, m.MD.Name)
		}
	}
}
