package interop

import (
	"fmt"
	"sort"

	"github.com/neoref/neoref/pkg/config"
	"github.com/neoref/neoref/pkg/core/interop/interopnames"
	"github.com/neoref/neoref/pkg/core/state"
	"github.com/neoref/neoref/pkg/io"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/smartcontract/manifest"
	"github.com/neoref/neoref/pkg/smartcontract/nef"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/emit"
	"github.com/neoref/neoref/pkg/vm/opcode"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// Method is a signature for a native method.
type Method = func(ic *Context, args []stackitem.Item) stackitem.Item

// MethodAndPrice is a Method with its price and flags.
type MethodAndPrice struct {
	HFSpecificMethodAndPrice
	// ActiveFrom is the hardfork the method is available from, nil for
	// the contract activation height.
	ActiveFrom *config.Hardfork
	// ActiveTill is the hardfork the method is deprecated in.
	ActiveTill *config.Hardfork
}

// HFSpecificMethodAndPrice is the hardfork-independent part of the method
// descriptor.
type HFSpecificMethodAndPrice struct {
	MD            *manifest.Method
	Func          Method
	CPUFee        int64
	StorageFee    int64
	SyscallOffset int
	RequiredFlags callflag.CallFlag
}

// Event is a native contract event with its hardfork gates.
type Event struct {
	MD         *manifest.Event
	ActiveFrom *config.Hardfork
	ActiveTill *config.Hardfork
}

// ContractMD represents a native contract instance: its fixed identity
// plus the gated method and event tables the dynamic manifest is
// synthesized from.
type ContractMD struct {
	state.ContractBase
	// ActiveFrom is the hardfork the contract is activated at, nil for
	// genesis.
	ActiveFrom *config.Hardfork

	Methods []MethodAndPrice
	Events  []Event
}

// NewContractMD returns a new ContractMD for the native contract with the
// given name, id and activation hardfork.
func NewContractMD(name string, id int32, activeFrom *config.Hardfork) *ContractMD {
	c := &ContractMD{ActiveFrom: activeFrom}
	c.ID = id
	c.Hash = state.CreateContractHash(util.Uint160{}, 0, name)
	c.Manifest = *manifest.DefaultManifest(name)
	return c
}

// AddMethod adds a new method to a native contract.
func (c *ContractMD) AddMethod(md *MethodAndPrice, desc *manifest.Method) {
	md.MD = desc
	desc.Safe = md.RequiredFlags&(callflag.All^callflag.ReadOnly) == 0
	c.Methods = append(c.Methods, *md)
}

// AddEvent adds a new event to a native contract.
func (c *ContractMD) AddEvent(activeFrom *config.Hardfork, name string, ps ...manifest.Parameter) {
	c.Events = append(c.Events, Event{
		MD: &manifest.Event{
			Name:       name,
			Parameters: ps,
		},
		ActiveFrom: activeFrom,
	})
}

// Finalize sorts the method table, builds the stub script and the base
// manifest. It must be called once after all methods and events are
// added.
func (c *ContractMD) Finalize() {
	sort.Slice(c.Methods, func(i, j int) bool {
		if c.Methods[i].MD.Name != c.Methods[j].MD.Name {
			return c.Methods[i].MD.Name < c.Methods[j].MD.Name
		}
		return len(c.Methods[i].MD.Parameters) < len(c.Methods[j].MD.Parameters)
	})

	w := io.NewBufBinWriter()
	for i := range c.Methods {
		offset := w.Len()
		c.Methods[i].MD.Offset = offset
		emit.Int(&w.BinWriter, 0) // version
		c.Methods[i].SyscallOffset = w.Len()
		emit.Syscall(&w.BinWriter, interopnames.SystemContractCallNative)
		emit.Opcodes(&w.BinWriter, opcode.RET)
	}
	if w.Err != nil {
		panic(fmt.Errorf("can't create native contract script: %w", w.Err))
	}
	script := w.Bytes()
	nf, err := nef.NewFile(script)
	if err != nil {
		panic(fmt.Errorf("can't create native contract NEF: %w", err))
	}
	nf.Tokens = []nef.MethodToken{}
	nf.Checksum = nf.CalculateChecksum()
	c.NEF = *nf
}

// HFSpecificContractMD returns the contract metadata as of the given
// hardfork set: methods and events are filtered by their gates, the
// manifest is synthesized accordingly.
func (c *ContractMD) HFSpecificContractMD(isEnabled func(config.Hardfork) bool) state.Contract {
	var (
		methods []manifest.Method
		events  []manifest.Event
		counter uint16
	)
	seen := make(map[config.Hardfork]bool)
	markActivation := func(hf *config.Hardfork) {
		if hf != nil && !seen[*hf] {
			seen[*hf] = true
			counter++
		}
	}
	for i := range c.Methods {
		m := &c.Methods[i]
		if m.ActiveFrom != nil && !isEnabled(*m.ActiveFrom) {
			continue
		}
		if m.ActiveTill != nil && isEnabled(*m.ActiveTill) {
			markActivation(m.ActiveTill)
			continue
		}
		markActivation(m.ActiveFrom)
		methods = append(methods, *m.MD)
	}
	for i := range c.Events {
		e := &c.Events[i]
		if e.ActiveFrom != nil && !isEnabled(*e.ActiveFrom) {
			continue
		}
		if e.ActiveTill != nil && isEnabled(*e.ActiveTill) {
			markActivation(e.ActiveTill)
			continue
		}
		markActivation(e.ActiveFrom)
		events = append(events, *e.MD)
	}
	m := *manifest.DefaultManifest(c.Manifest.Name)
	m.ABI.Methods = methods
	m.ABI.Events = events
	m.SupportedStandards = c.Manifest.SupportedStandards

	return state.Contract{
		ContractBase: state.ContractBase{
			ID:       c.ID,
			Hash:     c.Hash,
			NEF:      c.NEF,
			Manifest: m,
		},
		// The update counter reflects the number of activation events
		// (gated activations and deprecations) crossed so far.
		UpdateCounter: counter,
	}
}

// GetMethodByOffset returns the method whose syscall offset in the stub
// script matches the given instruction pointer.
func (c *ContractMD) GetMethodByOffset(offset int) (MethodAndPrice, bool) {
	for k := range c.Methods {
		if c.Methods[k].SyscallOffset == offset {
			return c.Methods[k], true
		}
	}
	return MethodAndPrice{}, false
}

// GetMethod returns the method with the given name and parameter count.
func (c *ContractMD) GetMethod(name string, paramCount int) (MethodAndPrice, bool) {
	for k := range c.Methods {
		if c.Methods[k].MD.Name == name &&
			(paramCount == -1 || len(c.Methods[k].MD.Parameters) == paramCount) {
			return c.Methods[k], true
		}
	}
	return MethodAndPrice{}, false
}
