// Package interop contains the application engine: the host layer wrapping
// the VM with gas metering, syscall dispatch, hardfork gating and storage
// access.
package interop

import (
	"errors"
	"fmt"
	"sort"

	"github.com/neoref/neoref/pkg/config"
	"github.com/neoref/neoref/pkg/core/block"
	"github.com/neoref/neoref/pkg/core/dao"
	"github.com/neoref/neoref/pkg/core/interop/interopnames"
	"github.com/neoref/neoref/pkg/core/fee"
	"github.com/neoref/neoref/pkg/core/state"
	"github.com/neoref/neoref/pkg/core/transaction"
	"github.com/neoref/neoref/pkg/crypto/hash"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/smartcontract/trigger"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm"
	"github.com/neoref/neoref/pkg/vm/opcode"
	"github.com/neoref/neoref/pkg/vm/stackitem"
	"github.com/neoref/neoref/pkg/vm/vmerror"
	"go.uber.org/zap"
)

const (
	// DefaultBaseExecFee specifies the default multiplier for opcode and
	// syscall prices.
	DefaultBaseExecFee = 30
	// DefaultStoragePrice is the price to pay for 1 byte of storage.
	DefaultStoragePrice = 100000
)

// Context represents a context in which the script is executed: one
// engine run over one script with one snapshot.
type Context struct {
	Chain         config.ProtocolConfiguration
	Container     hash.Hashable
	Network       uint32
	Natives       []Contract
	Trigger       trigger.Type
	Block         *block.Block
	Tx            *transaction.Transaction
	DAO           *dao.Simple
	Notifications []state.NotificationEvent
	Log           *zap.Logger
	VM            *vm.VM
	Functions     []Function
	Invocations   map[util.Uint160]int

	// LocalStorage is the execution-scoped transient store behind
	// System.Storage.Local (Faun).
	LocalStorage map[string][]byte

	// GetContract looks a deployed contract up by hash, it's provided by
	// the contract management native.
	GetContract func(*dao.Simple, util.Uint160) (*state.Contract, error)

	// IsHardforkEnabled tells whether the hardfork is active at the
	// current execution height.
	IsHardforkEnabled func(config.Hardfork) bool

	baseExecFee     int64
	baseStorageFee  int64
	rnd             uint64
	rndInitialized  bool
	signers         []transaction.Signer
}

// Contract is the interface the eleven native contracts implement.
type Contract interface {
	Initialize(ic *Context, hf *config.Hardfork) error
	Metadata() *ContractMD
	OnPersist(*Context) error
	PostPersist(*Context) error
	ActiveIn() *config.Hardfork
}

// Function binds an interop name (and id) to the function implementing
// it, its price and the required call flags.
type Function struct {
	ID   uint32
	Name string
	Func func(*Context) error

	// Price is the gas cost of the syscall, multiplied by the base exec
	// fee.
	Price int64

	// RequiredFlags is a set of flags which must be set during script
	// invocations. Default is NoneFlag.
	RequiredFlags callflag.CallFlag

	// ActiveFrom is the hardfork the syscall is available from, nil for
	// genesis.
	ActiveFrom *config.Hardfork
}

// NewContext returns a new interop context.
func NewContext(t trigger.Type, cfg config.ProtocolConfiguration, d *dao.Simple,
	getContract func(*dao.Simple, util.Uint160) (*state.Contract, error),
	natives []Contract, b *block.Block, tx *transaction.Transaction, log *zap.Logger) *Context {
	if log == nil {
		log = zap.NewNop()
	}
	ic := &Context{
		Chain:        cfg,
		Network:      uint32(cfg.Magic),
		Natives:      natives,
		Trigger:      t,
		Block:        b,
		Tx:           tx,
		DAO:          d.GetWrapped(),
		Log:          log,
		Invocations:  make(map[util.Uint160]int),
		LocalStorage: make(map[string][]byte),
		GetContract:  getContract,

		baseExecFee:    DefaultBaseExecFee,
		baseStorageFee: DefaultStoragePrice,
	}
	if tx != nil {
		ic.Container = tx
		ic.signers = tx.Signers
	} else if b != nil {
		ic.Container = b
	}
	ic.IsHardforkEnabled = func(hf config.Hardfork) bool {
		return cfg.IsHardforkEnabled(hf, ic.BlockHeight())
	}
	return ic
}

// BlockHeight returns the height of the block the execution runs at.
func (ic *Context) BlockHeight() uint32 {
	if ic.Block != nil {
		return ic.Block.Index
	}
	height, err := ic.DAO.GetCurrentBlockHeight()
	if err != nil {
		return 0
	}
	return height + 1 // Persisting block is the next one.
}

// CurrentBlockHeight returns the height of the latest persisted block.
func (ic *Context) CurrentBlockHeight() uint32 {
	height, _ := ic.DAO.GetCurrentBlockHeight()
	return height
}

// SetBaseExecFee sets the multiplier for opcode and syscall prices.
func (ic *Context) SetBaseExecFee(f int64) {
	ic.baseExecFee = f
}

// SetBaseStorageFee sets the per-byte storage price.
func (ic *Context) SetBaseStorageFee(f int64) {
	ic.baseStorageFee = f
}

// BaseExecFee returns the opcode price multiplier.
func (ic *Context) BaseExecFee() int64 {
	return ic.baseExecFee
}

// BaseStorageFee returns the per-byte storage price.
func (ic *Context) BaseStorageFee() int64 {
	return ic.baseStorageFee
}

// Signers returns the signers of the transaction being executed, nil when
// there is no transaction.
func (ic *Context) Signers() []transaction.Signer {
	return ic.signers
}

// Function returns the function descriptor for the given interop id or
// nil if it's not known.
func (ic *Context) Function(id uint32) *Function {
	n := sort.Search(len(ic.Functions), func(i int) bool {
		return ic.Functions[i].ID >= id
	})
	if n < len(ic.Functions) && ic.Functions[n].ID == id {
		return &ic.Functions[n]
	}
	return nil
}

// SyscallHandler handles syscall with the given id: lookup, hardfork
// check, call-flag check, gas charge, handler run.
func (ic *Context) SyscallHandler(_ *vm.VM, id uint32) error {
	f := ic.Function(id)
	if f == nil {
		return fmt.Errorf("%w: syscall %d", vmerror.ErrInvalidOpcode, id)
	}
	if f.ActiveFrom != nil && !ic.IsHardforkEnabled(*f.ActiveFrom) {
		return fmt.Errorf("%w: syscall %s", vmerror.ErrInactiveMethod, f.Name)
	}
	cf := ic.VM.Context().GetCallFlags()
	if !cf.Has(f.RequiredFlags) {
		return fmt.Errorf("%w: missing call flags for %s: %05b vs %05b",
			vmerror.ErrPermissionDenied, f.Name, cf, f.RequiredFlags)
	}
	if !ic.VM.AddGas(f.Price * ic.BaseExecFee()) {
		return fmt.Errorf("%w: syscall %s", vmerror.ErrOutOfGas, f.Name)
	}
	return f.Func(ic)
}

// SpawnVM spawns a new VM with the specified gas limit and set up
// callbacks.
func (ic *Context) SpawnVM() *vm.VM {
	v := vm.New()
	v.GasLimit = -1
	v.SyscallHandler = ic.SyscallHandler
	v.SetPriceGetter(ic.GetPrice)
	ic.VM = v
	return v
}

// GetPrice returns the price for the given opcode.
func (ic *Context) GetPrice(op opcode.Opcode, parameter []byte) int64 {
	return fee.Opcode(ic.baseExecFee, op)
}

// AddNotification appends the notification to the engine's queue.
func (ic *Context) AddNotification(h util.Uint160, name string, item *stackitem.Array) {
	ic.Notifications = append(ic.Notifications, state.NotificationEvent{
		ScriptHash: h,
		Name:       name,
		Item:       item,
	})
	ic.Log.Info("notification", zap.String("contract", h.StringLE()), zap.String("name", name))
}

// NotificationsCount returns the current length of the notification
// queue, used as the rollback cursor for cross-contract calls.
func (ic *Context) NotificationsCount() int {
	return len(ic.Notifications)
}

// RollbackNotifications truncates the notification queue to the given
// cursor.
func (ic *Context) RollbackNotifications(count int) {
	ic.Notifications = ic.Notifications[:count]
}

// GetRandom returns the next deterministic pseudorandom value. The
// generator is seeded from the network magic, the block nonce and the
// container hash.
func (ic *Context) GetRandom() uint64 {
	if !ic.rndInitialized {
		seed := uint64(ic.Network)
		if ic.Block != nil {
			seed ^= ic.Block.Nonce
		}
		if ic.Container != nil {
			h := ic.Container.Hash()
			for i := 0; i < 8; i++ {
				seed = seed<<8 | uint64(h[i])
			}
		}
		if seed == 0 {
			seed = 0x9E3779B97F4A7C15
		}
		ic.rnd = seed
		ic.rndInitialized = true
	}
	// xorshift64*.
	ic.rnd ^= ic.rnd >> 12
	ic.rnd ^= ic.rnd << 25
	ic.rnd ^= ic.rnd >> 27
	return ic.rnd * 0x2545F4914F6CDD1D
}

// Exec executes the loaded script and returns the error (if any), leaving
// fault/halt state examination to the caller.
func (ic *Context) Exec() error {
	return ic.VM.Run()
}

// RegisterFunctions sets the syscall table, sorting it by id.
func (ic *Context) RegisterFunctions(fns []Function) {
	sort.Slice(fns, func(i, j int) bool { return fns[i].ID < fns[j].ID })
	ic.Functions = fns
}

// NewFunction creates a Function for the given name computing its id.
func NewFunction(name string, f func(*Context) error, price int64, flags callflag.CallFlag) Function {
	return Function{
		ID:            interopnames.ToID([]byte(name)),
		Name:          name,
		Func:          f,
		Price:         price,
		RequiredFlags: flags,
	}
}

// StorageContext contains the storage context id and the read/write flag.
type StorageContext struct {
	ID       int32
	ReadOnly bool
}

// ErrNotFound is returned by storage reads when there is no value.
var ErrNotFound = errors.New("not found")
