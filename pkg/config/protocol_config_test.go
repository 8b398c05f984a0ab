package config

import (
	"testing"

	"github.com/neoref/neoref/pkg/config/netmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHardforkOrder(t *testing.T) {
	require.Equal(t, 6, len(Hardforks))
	assert.Equal(t, HFAspidochelone, Hardforks[0])
	assert.Equal(t, HFFaun, Hardforks[len(Hardforks)-1])
	assert.Equal(t, HFFaun, LatestHardfork())
	assert.Equal(t, HFEchidna, HFFaun.Prev())
	assert.True(t, IsHardforkValid("Basilisk"))
	assert.False(t, IsHardforkValid("Unicorn"))
}

func TestDefaultProfileEnablesEverything(t *testing.T) {
	c := Default(netmode.PrivNet)
	require.NoError(t, c.Validate())
	for _, hf := range Hardforks {
		assert.True(t, c.IsHardforkEnabled(hf, 0), hf.String())
	}
}

func TestMainNetSchedule(t *testing.T) {
	c := MainNet()
	require.NoError(t, c.Validate())
	assert.Equal(t, netmode.MainNet, c.Magic)
	assert.False(t, c.IsHardforkEnabled(HFAspidochelone, 0))
	assert.True(t, c.IsHardforkEnabled(HFAspidochelone, 1730000))
	assert.False(t, c.IsHardforkEnabled(HFFaun, 1730000))
	assert.True(t, c.IsHardforkEnabled(HFFaun, 8800000))
}

func TestPartialHardforkConfig(t *testing.T) {
	c := Default(netmode.PrivNet)
	c.Hardforks = map[string]uint32{
		HFBasilisk.String(): 100,
	}
	require.NoError(t, c.Validate())
	// Unmentioned predecessors are enabled from genesis.
	assert.True(t, c.IsHardforkEnabled(HFAspidochelone, 0))
	assert.False(t, c.IsHardforkEnabled(HFBasilisk, 99))
	assert.True(t, c.IsHardforkEnabled(HFBasilisk, 100))
	// Everything after the last mentioned hardfork is disabled.
	assert.False(t, c.IsHardforkEnabled(HFCockatrice, 1000000))
	assert.False(t, c.IsHardforkEnabled(HFFaun, 1000000))
}

func TestActiveHardforks(t *testing.T) {
	c := MainNet()
	active := c.ActiveHardforks(5450000)
	require.Equal(t, 3, len(active))
	assert.Equal(t, HFCockatrice, active[2])
}

func TestValidateRejectsBadConfig(t *testing.T) {
	c := Default(netmode.PrivNet)
	c.Hardforks = map[string]uint32{"NotAFork": 1}
	require.Error(t, c.Validate())

	c = Default(netmode.PrivNet)
	c.ValidatorsCount = 0
	require.Error(t, c.Validate())
}
