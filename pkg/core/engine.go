package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/neoref/neoref/pkg/config"
	"github.com/neoref/neoref/pkg/core/block"
	"github.com/neoref/neoref/pkg/core/dao"
	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/core/interop/contract"
	"github.com/neoref/neoref/pkg/core/native"
	"github.com/neoref/neoref/pkg/core/state"
	"github.com/neoref/neoref/pkg/core/storage"
	"github.com/neoref/neoref/pkg/core/transaction"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/smartcontract/trigger"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm"
	"github.com/neoref/neoref/pkg/vm/stackitem"
	"go.uber.org/zap"
)

// Engine is a deterministic execution engine over one snapshot: it owns
// the native contract suite, the syscall table and the protocol profile.
type Engine struct {
	cfg     config.ProtocolConfiguration
	dao     *dao.Simple
	natives *native.Contracts
	log     *zap.Logger

	interops []interop.Function
}

// NewEngine creates an engine over the given backing store using the
// given protocol profile. The genesis native state is initialized if it's
// not present yet.
func NewEngine(cfg config.ProtocolConfiguration, st storage.Store, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		cfg:      cfg,
		dao:      dao.NewSimple(st),
		natives:  native.NewContracts(cfg),
		log:      log,
		interops: systemInterops(),
	}
	if err := e.initGenesis(); err != nil {
		return nil, err
	}
	return e, nil
}

// DAO gives access to the engine's data access layer.
func (e *Engine) DAO() *dao.Simple {
	return e.dao
}

// Natives returns the native contract suite.
func (e *Engine) Natives() *native.Contracts {
	return e.natives
}

// GetContract resolves a contract by hash: the native registry has the
// priority, deployed contracts are consulted next.
func (e *Engine) GetContract(d *dao.Simple, h util.Uint160) (*state.Contract, error) {
	height, _ := d.GetCurrentBlockHeight()
	isEnabled := func(hf config.Hardfork) bool {
		return e.cfg.IsHardforkEnabled(hf, height)
	}
	for _, n := range e.natives.Contracts {
		md := n.Metadata()
		if md.Hash.Equals(h) {
			if !native.IsActive(n, isEnabled) {
				return nil, storage.ErrKeyNotFound
			}
			cs := md.HFSpecificContractMD(isEnabled)
			return &cs, nil
		}
	}
	return e.natives.Management.GetContract(d, h)
}

// newContext creates an interop context for the given trigger and
// container over a wrapped snapshot layer.
func (e *Engine) newContext(t trigger.Type, b *block.Block, tx *transaction.Transaction) *interop.Context {
	ic := interop.NewContext(t, e.cfg, e.dao, e.GetContract, e.natives.Contracts, b, tx, e.log)
	ic.RegisterFunctions(e.interops)
	ic.SetBaseExecFee(e.natives.Policy.GetExecFeeFactorInternal(ic.DAO))
	ic.SetBaseStorageFee(e.natives.Policy.GetStoragePriceInternal(ic.DAO))
	return ic
}

// initGenesis initializes native contract storage at height zero. A
// hardfork-gated native is initialized only if its hardfork is already
// enabled at height zero; natives gated on a later height are skipped and
// are not initialized when that height is crossed.
func (e *Engine) initGenesis() error {
	verKey := []byte{byte(storage.SYSVersion)}
	if _, err := e.dao.Store.Get(verKey); err == nil {
		return nil // Already initialized.
	}
	e.dao.Store.Put(verKey, []byte("neoref-3.9.1"))
	ic := e.newContext(trigger.OnPersist, nil, nil)
	ic.SpawnVM()
	ic.VM.LoadScriptWithFlags([]byte{0x40}, callflag.All) // RET, context for charging.
	for _, n := range e.natives.Contracts {
		var activation *config.Hardfork
		if hf := n.ActiveIn(); hf != nil && !ic.IsHardforkEnabled(*hf) {
			continue
		} else if hf != nil {
			activation = hf
		}
		if err := n.Initialize(ic, nil); err != nil {
			return fmt.Errorf("initializing %s: %w", n.Metadata().Manifest.Name, err)
		}
		if activation != nil {
			if err := n.Initialize(ic, activation); err != nil {
				return fmt.Errorf("initializing %s: %w", n.Metadata().Manifest.Name, err)
			}
		}
	}
	if _, err := ic.DAO.Persist(); err != nil {
		return err
	}
	_, err := e.dao.Persist()
	return err
}

// OnPersist runs the OnPersist methods of the natives for the given
// block, before its transactions.
func (e *Engine) OnPersist(b *block.Block) error {
	ic := e.newContext(trigger.OnPersist, b, nil)
	ic.SpawnVM()
	ic.VM.LoadScriptWithFlags([]byte{0x40}, callflag.All)
	if err := native.OnPersist(ic); err != nil {
		return err
	}
	_, err := ic.DAO.Persist()
	return err
}

// PostPersist runs the PostPersist methods of the natives for the given
// block, after its transactions, and stores the block itself.
func (e *Engine) PostPersist(b *block.Block) error {
	ic := e.newContext(trigger.PostPersist, b, nil)
	ic.SpawnVM()
	ic.VM.LoadScriptWithFlags([]byte{0x40}, callflag.All)
	if err := native.PostPersist(ic); err != nil {
		return err
	}
	if err := ic.DAO.StoreAsBlock(b); err != nil {
		return err
	}
	ic.DAO.StoreAsCurrentBlock(b)
	_, err := ic.DAO.Persist()
	return err
}

// ApplyTransaction executes the transaction script in the Application
// trigger against the engine state, returning the execution result. The
// snapshot layer is persisted on HALT and dropped on FAULT.
func (e *Engine) ApplyTransaction(b *block.Block, tx *transaction.Transaction) (*state.AppExecResult, error) {
	ic := e.newContext(trigger.Application, b, tx)
	v := ic.SpawnVM()
	v.GasLimit = tx.SystemFee
	v.LoadToken = contract.LoadToken(ic)
	v.LoadScriptWithFlags(tx.Script, callflag.All)

	err := ic.Exec()
	faultException := ""
	if err != nil {
		faultException = err.Error()
	}

	res := &state.AppExecResult{
		Container: tx.Hash(),
		Execution: state.Execution{
			Trigger:        trigger.Application,
			VMState:        v.State(),
			GasConsumed:    v.GasConsumed(),
			Stack:          stackOrEmpty(v),
			Events:         ic.Notifications,
			FaultException: faultException,
		},
	}
	if v.HasHalted() {
		if err := ic.DAO.StoreAsTransaction(tx, e.blockHeight(b)); err != nil && !errors.Is(err, dao.ErrAlreadyExists) {
			return nil, err
		}
		if _, err := ic.DAO.Persist(); err != nil {
			return nil, err
		}
	}
	// On FAULT the wrapped layer is simply dropped, the externally
	// visible snapshot stays unchanged.
	return res, nil
}

func (e *Engine) blockHeight(b *block.Block) uint32 {
	if b != nil {
		return b.Index
	}
	h, _ := e.dao.GetCurrentBlockHeight()
	return h
}

func stackOrEmpty(v *vm.VM) []stackitem.Item {
	st := v.Estack()
	if st == nil {
		return nil
	}
	return st.ToArray()
}

// Persist flushes the engine's accumulated state into the backing store.
func (e *Engine) Persist() error {
	_, err := e.dao.Persist()
	return err
}

// MintGAS credits the account with the given amount of GAS, a state-setup
// helper used by the transition tool.
func (e *Engine) MintGAS(h util.Uint160, amount *big.Int) error {
	ic := e.newContext(trigger.Application, nil, nil)
	ic.SpawnVM()
	ic.VM.LoadScriptWithFlags([]byte{0x40}, callflag.All)
	e.natives.GAS.Mint(ic, h, amount, false)
	_, err := ic.DAO.Persist()
	return err
}

// MintNEO credits the account with the given amount of NEO, a state-setup
// helper used by the transition tool.
func (e *Engine) MintNEO(h util.Uint160, amount *big.Int) error {
	ic := e.newContext(trigger.Application, nil, nil)
	ic.SpawnVM()
	ic.VM.LoadScriptWithFlags([]byte{0x40}, callflag.All)
	e.natives.NEO.Mint(ic, h, amount)
	_, err := ic.DAO.Persist()
	return err
}

// TokenBalances is a pair of stringified NEO/GAS balances.
type TokenBalances struct {
	Neo string
	Gas string
}

// DumpBalances returns NEO and GAS balances of all accounts present in
// the storage.
func (e *Engine) DumpBalances() map[util.Uint160]TokenBalances {
	res := make(map[util.Uint160]TokenBalances)
	e.natives.GAS.IterateBalances(e.dao, func(h util.Uint160, b *big.Int) bool {
		tb := res[h]
		tb.Gas = b.String()
		res[h] = tb
		return true
	})
	e.natives.NEO.IterateBalances(e.dao, func(h util.Uint160, b *big.Int) bool {
		tb := res[h]
		tb.Neo = b.String()
		res[h] = tb
		return true
	})
	return res
}
