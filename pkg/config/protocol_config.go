// Package config contains protocol parameter profiles and hardfork
// scheduling.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/neoref/neoref/pkg/config/netmode"
	"gopkg.in/yaml.v3"
)

// Default settings of the v3.9.1 protocol.
const (
	DefaultAddressVersion        = 0x35
	DefaultMillisecondsPerBlock  = 15000
	DefaultMaxTraceableBlocks    = 2102400
	DefaultMaxValidUntilBlockIncrement = 5760
	DefaultMaxTransactionsPerBlock = 512
	DefaultValidatorsCount       = 7
	DefaultCommitteeSize         = 21
	DefaultInitialGASDistribution = 52000000_00000000
)

// ProtocolConfiguration represents the protocol config.
type ProtocolConfiguration struct {
	// Magic is the network magic number.
	Magic netmode.Magic `yaml:"Magic"`
	// AddressVersion is the single byte prefix of base58check addresses.
	AddressVersion byte `yaml:"AddressVersion"`
	// MillisecondsPerBlock is the time interval between blocks.
	MillisecondsPerBlock uint32 `yaml:"MillisecondsPerBlock"`
	// MaxTraceableBlocks is the length of the chain tail accessible to
	// smart contracts.
	MaxTraceableBlocks uint32 `yaml:"MaxTraceableBlocks"`
	// MaxValidUntilBlockIncrement is the upper cap on the transaction
	// lifetime.
	MaxValidUntilBlockIncrement uint32 `yaml:"MaxValidUntilBlockIncrement"`
	// MaxTransactionsPerBlock is the maximum amount of transactions per
	// block.
	MaxTransactionsPerBlock uint16 `yaml:"MaxTransactionsPerBlock"`
	// ValidatorsCount is the number of consensus nodes.
	ValidatorsCount uint32 `yaml:"ValidatorsCount"`
	// CommitteeSize is the number of committee members.
	CommitteeSize uint32 `yaml:"CommitteeSize"`
	// InitialGASSupply is the amount of GAS generated in the genesis
	// block, in the smallest GAS units.
	InitialGASSupply int64 `yaml:"InitialGASSupply"`
	// StandbyCommittee is the list of compressed public keys of the
	// initial committee members, validators are its first
	// ValidatorsCount entries.
	StandbyCommittee []string `yaml:"StandbyCommittee"`
	// Hardforks is a map of hardfork names to the heights they are
	// enabled at. An unmentioned hardfork is enabled at height 0 when
	// any later one is mentioned, otherwise it is disabled.
	Hardforks map[string]uint32 `yaml:"Hardforks"`
}

// Default returns the profile with the v3.9.1 defaults and the given
// network magic; all hardforks are enabled from genesis.
func Default(magic netmode.Magic) ProtocolConfiguration {
	hfs := make(map[string]uint32, len(Hardforks))
	for _, hf := range Hardforks {
		hfs[hf.String()] = 0
	}
	return ProtocolConfiguration{
		Magic:                       magic,
		AddressVersion:              DefaultAddressVersion,
		MillisecondsPerBlock:        DefaultMillisecondsPerBlock,
		MaxTraceableBlocks:          DefaultMaxTraceableBlocks,
		MaxValidUntilBlockIncrement: DefaultMaxValidUntilBlockIncrement,
		MaxTransactionsPerBlock:     DefaultMaxTransactionsPerBlock,
		ValidatorsCount:             DefaultValidatorsCount,
		CommitteeSize:               DefaultCommitteeSize,
		InitialGASSupply:            DefaultInitialGASDistribution,
		Hardforks:                   hfs,
	}
}

// MainNet returns the fixed main network profile.
func MainNet() ProtocolConfiguration {
	c := Default(netmode.MainNet)
	c.Hardforks = map[string]uint32{
		HFAspidochelone.String(): 1730000,
		HFBasilisk.String():      4120000,
		HFCockatrice.String():    5450000,
		HFDomovoi.String():       5570000,
		HFEchidna.String():       7300000,
		HFFaun.String():          8800000,
	}
	return c
}

// TestNet returns the fixed test network profile.
func TestNet() ProtocolConfiguration {
	c := Default(netmode.TestNet)
	c.MillisecondsPerBlock = 15000
	c.Hardforks = map[string]uint32{
		HFAspidochelone.String(): 210000,
		HFBasilisk.String():      2680000,
		HFCockatrice.String():    3967000,
		HFDomovoi.String():       4144000,
		HFEchidna.String():       5870000,
		HFFaun.String():          6800000,
	}
	return c
}

// Load reads a ProtocolConfiguration from the given YAML file.
func Load(path string) (ProtocolConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProtocolConfiguration{}, fmt.Errorf("unable to read config: %w", err)
	}
	c := Default(netmode.PrivNet)
	if err := yaml.Unmarshal(data, &c); err != nil {
		return ProtocolConfiguration{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return ProtocolConfiguration{}, err
	}
	return c, nil
}

// Validate checks the settings for consistency.
func (p ProtocolConfiguration) Validate() error {
	for name := range p.Hardforks {
		if !IsHardforkValid(name) {
			return fmt.Errorf("unknown hardfork: %s", name)
		}
	}
	if p.ValidatorsCount == 0 {
		return errors.New("ValidatorsCount can't be 0")
	}
	if p.CommitteeSize < p.ValidatorsCount {
		return errors.New("CommitteeSize can't be less than ValidatorsCount")
	}
	hfs := p.normalizedHardforks()
	var prev uint32
	for _, hf := range Hardforks {
		h, ok := hfs[hf]
		if !ok {
			continue
		}
		if h < prev {
			return fmt.Errorf("hardfork %s is scheduled before its predecessor", hf)
		}
		prev = h
	}
	return nil
}

// normalizedHardforks maps configured hardforks onto the enum, enabling
// unmentioned predecessors of a mentioned hardfork from genesis and
// cutting off everything after the first unmentioned one.
func (p ProtocolConfiguration) normalizedHardforks() map[Hardfork]uint32 {
	res := make(map[Hardfork]uint32, len(Hardforks))
	var last = -1
	for i, hf := range Hardforks {
		if _, ok := p.Hardforks[hf.String()]; ok {
			last = i
		}
	}
	for i, hf := range Hardforks {
		if i > last {
			break
		}
		res[hf] = p.Hardforks[hf.String()]
	}
	return res
}

// IsHardforkEnabled denotes whether the hardfork is enabled at the given
// block height.
func (p ProtocolConfiguration) IsHardforkEnabled(hf Hardfork, blockHeight uint32) bool {
	if hf == HFDefault {
		return true
	}
	hfs := p.normalizedHardforks()
	h, ok := hfs[hf]
	return ok && blockHeight >= h
}

// ActiveHardforks returns the ordered list of hardforks enabled at the
// given height.
func (p ProtocolConfiguration) ActiveHardforks(blockHeight uint32) []Hardfork {
	var res []Hardfork
	for _, hf := range Hardforks {
		if p.IsHardforkEnabled(hf, blockHeight) {
			res = append(res, hf)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}
