// Package native implements the eleven built-in contracts whose behavior
// is part of the protocol.
package native

import (
	"errors"
	"fmt"

	"github.com/neoref/neoref/pkg/config"
	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/smartcontract"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/stackitem"
	"github.com/neoref/neoref/pkg/vm/vmerror"
)

// Contracts is a set of registered native contracts.
type Contracts struct {
	Management *Management
	StdLib     *Std
	Crypto     *Crypto
	Ledger     *Ledger
	NEO        *NEO
	GAS        *GAS
	Policy     *Policy
	Designate  *Designate
	Oracle     *Oracle
	Notary     *Notary
	Treasury   *Treasury
	Contracts  []interop.Contract
}

// NewContracts returns a new set of native contracts with an
// interdependency structure matching the protocol.
func NewContracts(cfg config.ProtocolConfiguration) *Contracts {
	cs := new(Contracts)

	mgmt := newManagement()
	cs.Management = mgmt
	cs.Contracts = append(cs.Contracts, mgmt)

	s := newStd()
	cs.StdLib = s
	cs.Contracts = append(cs.Contracts, s)

	c := newCrypto()
	cs.Crypto = c
	cs.Contracts = append(cs.Contracts, c)

	ledger := newLedger()
	cs.Ledger = ledger
	cs.Contracts = append(cs.Contracts, ledger)

	gas := newGAS(cfg.InitialGASSupply)
	neo := newNEO(cfg)
	policy := newPolicy()
	neo.GAS = gas
	gas.NEO = neo
	gas.Policy = policy
	mgmt.NEO = neo
	policy.NEO = neo

	cs.NEO = neo
	cs.Contracts = append(cs.Contracts, neo)
	cs.GAS = gas
	cs.Contracts = append(cs.Contracts, gas)
	cs.Policy = policy
	cs.Contracts = append(cs.Contracts, policy)

	desig := newDesignate()
	desig.NEO = neo
	cs.Designate = desig
	cs.Contracts = append(cs.Contracts, desig)

	oracle := newOracle()
	oracle.GAS = gas
	oracle.Desig = desig
	cs.Oracle = oracle
	cs.Contracts = append(cs.Contracts, oracle)

	notary := newNotary()
	notary.GAS = gas
	notary.NEO = neo
	notary.Desig = desig
	cs.Notary = notary
	cs.Contracts = append(cs.Contracts, notary)

	treasury := newTreasury()
	treasury.NEO = neo
	cs.Treasury = treasury
	cs.Contracts = append(cs.Contracts, treasury)

	policy.Treasury = treasury
	policy.GAS = gas

	return cs
}

// ByHash returns a native contract with the specified hash.
func (cs *Contracts) ByHash(h util.Uint160) interop.Contract {
	for _, ctr := range cs.Contracts {
		if ctr.Metadata().Hash.Equals(h) {
			return ctr
		}
	}
	return nil
}

// ByName returns a native contract with the specified name.
func (cs *Contracts) ByName(name string) interop.Contract {
	for _, ctr := range cs.Contracts {
		if ctr.Metadata().Manifest.Name == name {
			return ctr
		}
	}
	return nil
}

// IsActive denotes whether the contract is activated at the given height.
func IsActive(c interop.Contract, isEnabled func(config.Hardfork) bool) bool {
	hf := c.ActiveIn()
	return hf == nil || isEnabled(*hf)
}

// Call implements the System.Contract.CallNative syscall: the native stub
// script pushes the version, the method is resolved by the offset of the
// SYSCALL instruction inside the stub.
func Call(ic *interop.Context) error {
	version := ic.VM.Estack().PopBigInt().Int64()
	if version != 0 {
		return fmt.Errorf("native contract of version %d is not active", version)
	}
	var c interop.Contract
	curr := ic.VM.GetCurrentScriptHash()
	for _, ctr := range ic.Natives {
		if ctr.Metadata().Hash.Equals(curr) {
			c = ctr
			break
		}
	}
	if c == nil {
		return fmt.Errorf("%w: native contract %s", vmerror.ErrContractNotFound, curr.StringLE())
	}
	if !IsActive(c, ic.IsHardforkEnabled) {
		return fmt.Errorf("%w: native contract %s is not active", vmerror.ErrInactiveMethod, curr.StringLE())
	}
	m, ok := c.Metadata().GetMethodByOffset(ic.VM.Context().IP())
	if !ok {
		return fmt.Errorf("%w: method not found", vmerror.ErrMethodNotFound)
	}
	if m.ActiveFrom != nil && !ic.IsHardforkEnabled(*m.ActiveFrom) ||
		m.ActiveTill != nil && ic.IsHardforkEnabled(*m.ActiveTill) {
		return fmt.Errorf("%w: method %s is not active", vmerror.ErrInactiveMethod, m.MD.Name)
	}
	reqFlags := m.RequiredFlags
	if !ic.VM.Context().GetCallFlags().Has(reqFlags) {
		return fmt.Errorf("%w: missing call flags %05b for %s",
			vmerror.ErrPermissionDenied, reqFlags, m.MD.Name)
	}
	// Native stub opcodes are free, the cost of the call is the method's
	// CPU and storage fees.
	if !ic.VM.AddGas(m.CPUFee*ic.BaseExecFee() + m.StorageFee*ic.BaseStorageFee()) {
		return fmt.Errorf("%w: native call %s", vmerror.ErrOutOfGas, m.MD.Name)
	}
	args := make([]stackitem.Item, len(m.MD.Parameters))
	for i := range args {
		args[i] = ic.VM.Estack().Pop()
	}
	result := m.Func(ic, args)
	if m.MD.ReturnType != smartcontract.VoidType {
		if result == nil {
			return errors.New("native method returned nil")
		}
		ic.VM.Estack().Push(result)
	}
	return nil
}

// OnPersist calls OnPersist methods for all native contracts.
func OnPersist(ic *interop.Context) error {
	for _, c := range ic.Natives {
		if !IsActive(c, ic.IsHardforkEnabled) {
			continue
		}
		if err := c.OnPersist(ic); err != nil {
			return fmt.Errorf("%s onPersist: %w", c.Metadata().Manifest.Name, err)
		}
	}
	return nil
}

// PostPersist calls PostPersist methods for all native contracts.
func PostPersist(ic *interop.Context) error {
	for _, c := range ic.Natives {
		if !IsActive(c, ic.IsHardforkEnabled) {
			continue
		}
		if err := c.PostPersist(ic); err != nil {
			return fmt.Errorf("%s postPersist: %w", c.Metadata().Manifest.Name, err)
		}
	}
	return nil
}

// newMethodAndPrice returns a new method descriptor with the given CPU
// fee and flags.
func newMethodAndPrice(f interop.Method, cpuFee int64, flags callflag.CallFlag, activeFrom ...config.Hardfork) *interop.MethodAndPrice {
	md := &interop.MethodAndPrice{}
	md.Func = f
	md.CPUFee = cpuFee
	md.RequiredFlags = flags
	if len(activeFrom) != 0 {
		md.ActiveFrom = &activeFrom[0]
	}
	return md
}
