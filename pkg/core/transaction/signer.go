package transaction

import (
	"errors"

	"github.com/neoref/neoref/pkg/crypto/keys"
	"github.com/neoref/neoref/pkg/io"
	"github.com/neoref/neoref/pkg/util"
)

// The maximum number of AllowedContracts, AllowedGroups or Rules.
const maxSubitems = 16

// Signer implements a Transaction signer.
type Signer struct {
	Account          util.Uint160      `json:"account"`
	Scopes           WitnessScope      `json:"scopes"`
	AllowedContracts []util.Uint160    `json:"allowedcontracts,omitempty"`
	AllowedGroups    []*keys.PublicKey `json:"allowedgroups,omitempty"`
	Rules            []WitnessRule     `json:"rules,omitempty"`
}

// EncodeBinary implements the Serializable interface.
func (c *Signer) EncodeBinary(bw *io.BinWriter) {
	bw.WriteBytes(c.Account[:])
	bw.WriteB(byte(c.Scopes))
	if c.Scopes&CustomContracts != 0 {
		bw.WriteVarUint(uint64(len(c.AllowedContracts)))
		for i := range c.AllowedContracts {
			bw.WriteBytes(c.AllowedContracts[i][:])
		}
	}
	if c.Scopes&CustomGroups != 0 {
		bw.WriteVarUint(uint64(len(c.AllowedGroups)))
		for i := range c.AllowedGroups {
			c.AllowedGroups[i].EncodeBinary(bw)
		}
	}
	if c.Scopes&Rules != 0 {
		io.WriteArray(bw, sliceOfPtrs(c.Rules))
	}
}

// DecodeBinary implements the Serializable interface.
func (c *Signer) DecodeBinary(br *io.BinReader) {
	br.ReadBytes(c.Account[:])
	c.Scopes = WitnessScope(br.ReadB())
	if br.Err != nil {
		return
	}
	if c.Scopes & ^(Global|CalledByEntry|CustomContracts|CustomGroups|Rules|None) != 0 {
		br.Err = errors.New("unknown witness scope")
		return
	}
	if c.Scopes&Global != 0 && c.Scopes != Global {
		br.Err = errors.New("global scope can not be combined with other scopes")
		return
	}
	if c.Scopes&CustomContracts != 0 {
		l := br.ReadVarUint()
		if l > maxSubitems {
			br.Err = errors.New("too many allowed contracts")
			return
		}
		c.AllowedContracts = make([]util.Uint160, l)
		for i := 0; i < int(l); i++ {
			br.ReadBytes(c.AllowedContracts[i][:])
		}
	}
	if c.Scopes&CustomGroups != 0 {
		l := br.ReadVarUint()
		if l > maxSubitems {
			br.Err = errors.New("too many allowed groups")
			return
		}
		c.AllowedGroups = make([]*keys.PublicKey, l)
		for i := 0; i < int(l); i++ {
			c.AllowedGroups[i] = new(keys.PublicKey)
			c.AllowedGroups[i].DecodeBinary(br)
		}
	}
	if c.Scopes&Rules != 0 {
		l := br.ReadVarUint()
		if l > maxSubitems {
			br.Err = errors.New("too many witness rules")
			return
		}
		c.Rules = make([]WitnessRule, l)
		for i := 0; i < int(l); i++ {
			c.Rules[i].DecodeBinary(br)
		}
	}
}

// Copy creates a deep copy of the Signer.
func (c *Signer) Copy() *Signer {
	if c == nil {
		return nil
	}
	cp := *c
	if c.AllowedContracts != nil {
		cp.AllowedContracts = make([]util.Uint160, len(c.AllowedContracts))
		copy(cp.AllowedContracts, c.AllowedContracts)
	}
	cp.AllowedGroups = keys.PublicKeys(c.AllowedGroups).Copy()
	if c.Rules != nil {
		cp.Rules = make([]WitnessRule, len(c.Rules))
		copy(cp.Rules, c.Rules)
	}
	return &cp
}

func sliceOfPtrs(rules []WitnessRule) []*WitnessRule {
	res := make([]*WitnessRule, len(rules))
	for i := range rules {
		res[i] = &rules[i]
	}
	return res
}
