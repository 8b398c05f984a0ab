package native

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/neoref/neoref/pkg/config"
	"github.com/neoref/neoref/pkg/core/dao"
	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/core/native/nativenames"
	"github.com/neoref/neoref/pkg/core/transaction"
	"github.com/neoref/neoref/pkg/smartcontract"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/smartcontract/manifest"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

const (
	policyContractID = -7

	defaultExecFeeFactor   = interop.DefaultBaseExecFee
	defaultFeePerByte      = 1000
	defaultAttributeFee    = 0
	defaultNotaryAssistedFee = 1000_0000

	// maxExecFeeFactor is the maximum allowed execution fee factor.
	maxExecFeeFactor = 100
	// maxFeePerByte is the maximum allowed fee per byte value.
	maxFeePerByte = 100_000_000
	// maxStoragePrice is the maximum allowed price for a byte of storage.
	maxStoragePrice = 10000000
	// maxAttributeFee is the maximum allowed value for a transaction
	// attribute fee.
	maxAttributeFee = 10_00000000
	// maxMillisecondsPerBlock is the maximum allowed time between blocks.
	maxMillisecondsPerBlock = 30000

	// blockedAccountPrefix is a prefix used to store blocked accounts.
	blockedAccountPrefix = 15
	// attributeFeePrefix is a prefix used to store attribute fees.
	attributeFeePrefix = 20
	// whitelistFeePrefix is a prefix used to store whitelisted
	// contract+method fees.
	whitelistFeePrefix = 0x16
	// recoverLockPrefix is a prefix used to store fund-recovery locks.
	recoverLockPrefix = 0x17
)

var (
	// execFeeFactorKey is a key used to store execution fee factor.
	execFeeFactorKey = []byte{18}
	// feePerByteKey is a key used to store the minimum fee per byte for
	// transactions.
	feePerByteKey = []byte{10}
	// storagePriceKey is a key used to store the storage price.
	storagePriceKey = []byte{19}
	// msPerBlockKey is a key used to store the milliseconds-per-block
	// value.
	msPerBlockKey = []byte{21}
	// maxVUBIncrementKey is a key used to store the maximum
	// ValidUntilBlock increment.
	maxVUBIncrementKey = []byte{22}
	// maxTraceableBlocksKey is a key used to store the maximum number of
	// traceable blocks.
	maxTraceableBlocksKey = []byte{23}
)

// recoverFundLockBlocks is the number of blocks recovered funds stay
// locked before they can be moved to the Treasury (about one year with
// 15s blocks).
const recoverFundLockBlocks = 2102400

// Policy represents the Policy native contract.
type Policy struct {
	interop.ContractMD
	NEO      *NEO
	GAS      *GAS
	Treasury *Treasury
}

func newPolicy() *Policy {
	p := &Policy{
		ContractMD: *interop.NewContractMD(nativenames.Policy, policyContractID, nil),
	}
	defer p.Finalize()

	desc := newDescriptor("getFeePerByte", smartcontract.IntegerType)
	md := newMethodAndPrice(p.getFeePerByte, 1<<15, callflag.ReadStates)
	p.AddMethod(md, desc)

	desc = newDescriptor("setFeePerByte", smartcontract.VoidType,
		manifest.NewParameter("value", smartcontract.IntegerType))
	md = newMethodAndPrice(p.setFeePerByte, 1<<15, callflag.States)
	p.AddMethod(md, desc)

	desc = newDescriptor("getExecFeeFactor", smartcontract.IntegerType)
	md = newMethodAndPrice(p.getExecFeeFactor, 1<<15, callflag.ReadStates)
	p.AddMethod(md, desc)

	desc = newDescriptor("setExecFeeFactor", smartcontract.VoidType,
		manifest.NewParameter("value", smartcontract.IntegerType))
	md = newMethodAndPrice(p.setExecFeeFactor, 1<<15, callflag.States)
	p.AddMethod(md, desc)

	desc = newDescriptor("getStoragePrice", smartcontract.IntegerType)
	md = newMethodAndPrice(p.getStoragePrice, 1<<15, callflag.ReadStates)
	p.AddMethod(md, desc)

	desc = newDescriptor("setStoragePrice", smartcontract.VoidType,
		manifest.NewParameter("value", smartcontract.IntegerType))
	md = newMethodAndPrice(p.setStoragePrice, 1<<15, callflag.States)
	p.AddMethod(md, desc)

	desc = newDescriptor("getAttributeFee", smartcontract.IntegerType,
		manifest.NewParameter("attributeType", smartcontract.IntegerType))
	md = newMethodAndPrice(p.getAttributeFee, 1<<15, callflag.ReadStates)
	p.AddMethod(md, desc)

	desc = newDescriptor("setAttributeFee", smartcontract.VoidType,
		manifest.NewParameter("attributeType", smartcontract.IntegerType),
		manifest.NewParameter("value", smartcontract.IntegerType))
	md = newMethodAndPrice(p.setAttributeFee, 1<<15, callflag.States)
	p.AddMethod(md, desc)

	desc = newDescriptor("isBlocked", smartcontract.BoolType,
		manifest.NewParameter("account", smartcontract.Hash160Type))
	md = newMethodAndPrice(p.isBlocked, 1<<15, callflag.ReadStates)
	p.AddMethod(md, desc)

	desc = newDescriptor("blockAccount", smartcontract.BoolType,
		manifest.NewParameter("account", smartcontract.Hash160Type))
	md = newMethodAndPrice(p.blockAccount, 1<<15, callflag.States)
	p.AddMethod(md, desc)

	desc = newDescriptor("unblockAccount", smartcontract.BoolType,
		manifest.NewParameter("account", smartcontract.Hash160Type))
	md = newMethodAndPrice(p.unblockAccount, 1<<15, callflag.States)
	p.AddMethod(md, desc)

	desc = newDescriptor("getMillisecondsPerBlock", smartcontract.IntegerType)
	md = newMethodAndPrice(p.getMillisecondsPerBlock, 1<<15, callflag.ReadStates, config.HFEchidna)
	p.AddMethod(md, desc)

	desc = newDescriptor("setMillisecondsPerBlock", smartcontract.VoidType,
		manifest.NewParameter("value", smartcontract.IntegerType))
	md = newMethodAndPrice(p.setMillisecondsPerBlock, 1<<15, callflag.States|callflag.AllowNotify, config.HFEchidna)
	p.AddMethod(md, desc)

	desc = newDescriptor("getMaxValidUntilBlockIncrement", smartcontract.IntegerType)
	md = newMethodAndPrice(p.getMaxVUBIncrement, 1<<15, callflag.ReadStates, config.HFEchidna)
	p.AddMethod(md, desc)

	desc = newDescriptor("setMaxValidUntilBlockIncrement", smartcontract.VoidType,
		manifest.NewParameter("value", smartcontract.IntegerType))
	md = newMethodAndPrice(p.setMaxVUBIncrement, 1<<15, callflag.States, config.HFEchidna)
	p.AddMethod(md, desc)

	desc = newDescriptor("getMaxTraceableBlocks", smartcontract.IntegerType)
	md = newMethodAndPrice(p.getMaxTraceableBlocks, 1<<15, callflag.ReadStates, config.HFEchidna)
	p.AddMethod(md, desc)

	desc = newDescriptor("setMaxTraceableBlocks", smartcontract.VoidType,
		manifest.NewParameter("value", smartcontract.IntegerType))
	md = newMethodAndPrice(p.setMaxTraceableBlocks, 1<<15, callflag.States, config.HFEchidna)
	p.AddMethod(md, desc)

	desc = newDescriptor("setWhitelistFee", smartcontract.VoidType,
		manifest.NewParameter("contract", smartcontract.Hash160Type),
		manifest.NewParameter("method", smartcontract.StringType),
		manifest.NewParameter("argCount", smartcontract.IntegerType),
		manifest.NewParameter("fee", smartcontract.IntegerType))
	md = newMethodAndPrice(p.setWhitelistFee, 1<<15, callflag.States, config.HFFaun)
	p.AddMethod(md, desc)

	desc = newDescriptor("getWhitelistFee", smartcontract.IntegerType,
		manifest.NewParameter("contract", smartcontract.Hash160Type),
		manifest.NewParameter("method", smartcontract.StringType),
		manifest.NewParameter("argCount", smartcontract.IntegerType))
	md = newMethodAndPrice(p.getWhitelistFee, 1<<15, callflag.ReadStates, config.HFFaun)
	p.AddMethod(md, desc)

	desc = newDescriptor("removeWhitelistFee", smartcontract.VoidType,
		manifest.NewParameter("contract", smartcontract.Hash160Type),
		manifest.NewParameter("method", smartcontract.StringType),
		manifest.NewParameter("argCount", smartcontract.IntegerType))
	md = newMethodAndPrice(p.removeWhitelistFee, 1<<15, callflag.States, config.HFFaun)
	p.AddMethod(md, desc)

	desc = newDescriptor("recoverFund", smartcontract.VoidType,
		manifest.NewParameter("account", smartcontract.Hash160Type))
	md = newMethodAndPrice(p.recoverFund, 1<<15, callflag.States|callflag.AllowCall|callflag.AllowNotify, config.HFFaun)
	p.AddMethod(md, desc)

	hfEchidna := config.HFEchidna
	p.AddEvent(&hfEchidna, "MillisecondsPerBlockChanged",
		manifest.NewParameter("old", smartcontract.IntegerType),
		manifest.NewParameter("new", smartcontract.IntegerType),
	)

	return p
}

// Metadata implements the Contract interface.
func (p *Policy) Metadata() *interop.ContractMD {
	return &p.ContractMD
}

// ActiveIn implements the Contract interface.
func (p *Policy) ActiveIn() *config.Hardfork {
	return nil
}

// Initialize implements the Contract interface.
func (p *Policy) Initialize(ic *interop.Context, hf *config.Hardfork) error {
	switch {
	case hf == nil:
		setIntWithKey(p.ID, ic.DAO, feePerByteKey, defaultFeePerByte)
		setIntWithKey(p.ID, ic.DAO, execFeeFactorKey, defaultExecFeeFactor)
		setIntWithKey(p.ID, ic.DAO, storagePriceKey, interop.DefaultStoragePrice)
	case *hf == config.HFEchidna:
		setIntWithKey(p.ID, ic.DAO, msPerBlockKey, int64(ic.Chain.MillisecondsPerBlock))
		setIntWithKey(p.ID, ic.DAO, maxVUBIncrementKey, int64(ic.Chain.MaxValidUntilBlockIncrement))
		setIntWithKey(p.ID, ic.DAO, maxTraceableBlocksKey, int64(ic.Chain.MaxTraceableBlocks))
	}
	return nil
}

// OnPersist implements the Contract interface.
func (p *Policy) OnPersist(ic *interop.Context) error {
	return nil
}

// PostPersist implements the Contract interface.
func (p *Policy) PostPersist(ic *interop.Context) error {
	return nil
}

// GetFeePerByteInternal returns the required transaction's fee per byte.
func (p *Policy) GetFeePerByteInternal(d *dao.Simple) int64 {
	return getIntWithKeyDefault(p.ID, d, feePerByteKey, defaultFeePerByte)
}

// GetExecFeeFactorInternal returns the current execution fee factor.
func (p *Policy) GetExecFeeFactorInternal(d *dao.Simple) int64 {
	return getIntWithKeyDefault(p.ID, d, execFeeFactorKey, defaultExecFeeFactor)
}

// GetStoragePriceInternal returns the current storage price.
func (p *Policy) GetStoragePriceInternal(d *dao.Simple) int64 {
	return getIntWithKeyDefault(p.ID, d, storagePriceKey, interop.DefaultStoragePrice)
}

// GetAttributeFeeInternal returns the fee for the given attribute type.
func (p *Policy) GetAttributeFeeInternal(d *dao.Simple, t transaction.AttrType) int64 {
	def := int64(defaultAttributeFee)
	if t == transaction.NotaryAssistedT {
		def = defaultNotaryAssistedFee
	}
	return getIntWithKeyDefault(p.ID, d, []byte{attributeFeePrefix, byte(t)}, def)
}

// IsBlocked checks whether the account is blocked.
func (p *Policy) IsBlocked(d *dao.Simple, hash util.Uint160) bool {
	return d.GetStorageItem(p.ID, makeUint160Key(blockedAccountPrefix, hash)) != nil
}

func (p *Policy) getFeePerByte(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(p.GetFeePerByteInternal(ic.DAO))
}

func (p *Policy) setFeePerByte(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	value := toInt64(args[0])
	if value < 0 || value > maxFeePerByte {
		panic(fmt.Errorf("FeePerByte shouldn't be negative or greater than %d", maxFeePerByte))
	}
	if !p.NEO.checkCommittee(ic) {
		panic("invalid committee signature")
	}
	setIntWithKey(p.ID, ic.DAO, feePerByteKey, value)
	return stackitem.Null{}
}

func (p *Policy) getExecFeeFactor(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(p.GetExecFeeFactorInternal(ic.DAO))
}

func (p *Policy) setExecFeeFactor(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	value := toInt64(args[0])
	if value <= 0 || value > maxExecFeeFactor {
		panic(fmt.Errorf("ExecFeeFactor should be between 1 and %d", maxExecFeeFactor))
	}
	if !p.NEO.checkCommittee(ic) {
		panic("invalid committee signature")
	}
	setIntWithKey(p.ID, ic.DAO, execFeeFactorKey, value)
	return stackitem.Null{}
}

func (p *Policy) getStoragePrice(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(p.GetStoragePriceInternal(ic.DAO))
}

func (p *Policy) setStoragePrice(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	value := toInt64(args[0])
	if value <= 0 || value > maxStoragePrice {
		panic(fmt.Errorf("StoragePrice should be between 1 and %d", maxStoragePrice))
	}
	if !p.NEO.checkCommittee(ic) {
		panic("invalid committee signature")
	}
	setIntWithKey(p.ID, ic.DAO, storagePriceKey, value)
	return stackitem.Null{}
}

func (p *Policy) getAttributeFee(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	t := transaction.AttrType(toUint8(args[0]))
	return stackitem.Make(p.GetAttributeFeeInternal(ic.DAO, t))
}

func (p *Policy) setAttributeFee(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	t := transaction.AttrType(toUint8(args[0]))
	value := toInt64(args[1])
	if value < 0 || value > maxAttributeFee {
		panic(fmt.Errorf("AttributeFee shouldn't be negative or greater than %d", maxAttributeFee))
	}
	if !p.NEO.checkCommittee(ic) {
		panic("invalid committee signature")
	}
	setIntWithKey(p.ID, ic.DAO, []byte{attributeFeePrefix, byte(t)}, value)
	return stackitem.Null{}
}

func (p *Policy) isBlocked(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	hash := toUint160(args[0])
	return stackitem.NewBool(p.IsBlocked(ic.DAO, hash))
}

func (p *Policy) blockAccount(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	hash := toUint160(args[0])
	if !p.NEO.checkCommittee(ic) {
		panic("invalid committee signature")
	}
	for i := range ic.Natives {
		if ic.Natives[i].Metadata().Hash.Equals(hash) {
			panic("cannot block native contract")
		}
	}
	key := makeUint160Key(blockedAccountPrefix, hash)
	if ic.DAO.GetStorageItem(p.ID, key) != nil {
		return stackitem.NewBool(false)
	}
	ic.DAO.PutStorageItem(p.ID, key, []byte{0x01})
	if ic.IsHardforkEnabled(config.HFFaun) {
		// Blocked accounts lose their NEO votes.
		if acc, err := p.NEO.balanceStateFromBytes(ic.DAO.GetStorageItem(p.NEO.ID, p.NEO.makeAccountKey(hash))); err == nil && acc.VoteTo != nil {
			_ = p.NEO.modifyVotes(ic.DAO, acc.VoteTo, new(big.Int).Neg(&acc.Balance))
			acc.VoteTo = nil
			ic.DAO.PutStorageItem(p.NEO.ID, p.NEO.makeAccountKey(hash), p.NEO.balanceStateToBytes(acc))
		}
		// Start the recovery lock for the account's funds.
		p.putRecoverLock(ic, hash)
	}
	return stackitem.NewBool(true)
}

func (p *Policy) unblockAccount(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	hash := toUint160(args[0])
	if !p.NEO.checkCommittee(ic) {
		panic("invalid committee signature")
	}
	key := makeUint160Key(blockedAccountPrefix, hash)
	if ic.DAO.GetStorageItem(p.ID, key) == nil {
		return stackitem.NewBool(false)
	}
	ic.DAO.DeleteStorageItem(p.ID, key)
	ic.DAO.DeleteStorageItem(p.ID, makeUint160Key(recoverLockPrefix, hash))
	return stackitem.NewBool(true)
}

func (p *Policy) getMillisecondsPerBlock(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(getIntWithKeyDefault(p.ID, ic.DAO, msPerBlockKey, int64(ic.Chain.MillisecondsPerBlock)))
}

func (p *Policy) setMillisecondsPerBlock(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	value := toInt64(args[0])
	if value <= 0 || value > maxMillisecondsPerBlock {
		panic(fmt.Errorf("MillisecondsPerBlock should be between 1 and %d", maxMillisecondsPerBlock))
	}
	if !p.NEO.checkCommittee(ic) {
		panic("invalid committee signature")
	}
	old := getIntWithKeyDefault(p.ID, ic.DAO, msPerBlockKey, int64(ic.Chain.MillisecondsPerBlock))
	setIntWithKey(p.ID, ic.DAO, msPerBlockKey, value)
	ev := stackitem.NewArray([]stackitem.Item{
		stackitem.Make(old),
		stackitem.Make(value),
	})
	ic.AddNotification(p.Hash, "MillisecondsPerBlockChanged", ev)
	return stackitem.Null{}
}

func (p *Policy) getMaxVUBIncrement(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(getIntWithKeyDefault(p.ID, ic.DAO, maxVUBIncrementKey, int64(ic.Chain.MaxValidUntilBlockIncrement)))
}

func (p *Policy) setMaxVUBIncrement(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	value := toInt64(args[0])
	if value <= 0 {
		panic("MaxValidUntilBlockIncrement should be positive")
	}
	if !p.NEO.checkCommittee(ic) {
		panic("invalid committee signature")
	}
	setIntWithKey(p.ID, ic.DAO, maxVUBIncrementKey, value)
	return stackitem.Null{}
}

func (p *Policy) getMaxTraceableBlocks(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(getIntWithKeyDefault(p.ID, ic.DAO, maxTraceableBlocksKey, int64(ic.Chain.MaxTraceableBlocks)))
}

func (p *Policy) setMaxTraceableBlocks(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	value := toInt64(args[0])
	if value <= 0 {
		panic("MaxTraceableBlocks should be positive")
	}
	if !p.NEO.checkCommittee(ic) {
		panic("invalid committee signature")
	}
	setIntWithKey(p.ID, ic.DAO, maxTraceableBlocksKey, value)
	return stackitem.Null{}
}

// makeWhitelistKey builds a storage key for the whitelisted
// contract+method fee: prefix ‖ hash ‖ argCount ‖ method.
func makeWhitelistKey(h util.Uint160, method string, argCount int) []byte {
	res := make([]byte, 0, 1+util.Uint160Size+1+len(method))
	res = append(res, whitelistFeePrefix)
	res = append(res, h.BytesBE()...)
	res = append(res, byte(argCount))
	res = append(res, []byte(method)...)
	return res
}

func (p *Policy) setWhitelistFee(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	h := toUint160(args[0])
	method := toString(args[1])
	argCount := int(toInt64(args[2]))
	fee := toInt64(args[3])
	if fee < 0 || fee > maxAttributeFee {
		panic("invalid whitelist fee")
	}
	if !p.NEO.checkCommittee(ic) {
		panic("invalid committee signature")
	}
	// Resolve the method at set time: it must exist in the target ABI.
	cs, err := ic.GetContract(ic.DAO, h)
	if err != nil {
		panic(fmt.Errorf("unknown contract: %v", h.StringLE()))
	}
	md := cs.Manifest.ABI.GetMethod(method, argCount)
	if md == nil {
		panic(fmt.Errorf("unknown method %s/%d", method, argCount))
	}
	value := make([]byte, 12)
	binary.LittleEndian.PutUint64(value, uint64(fee))
	binary.LittleEndian.PutUint32(value[8:], uint32(md.Offset))
	ic.DAO.PutStorageItem(p.ID, makeWhitelistKey(h, method, argCount), value)
	return stackitem.Null{}
}

func (p *Policy) getWhitelistFee(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	h := toUint160(args[0])
	method := toString(args[1])
	argCount := int(toInt64(args[2]))
	si := ic.DAO.GetStorageItem(p.ID, makeWhitelistKey(h, method, argCount))
	if si == nil {
		return stackitem.Make(-1)
	}
	return stackitem.Make(int64(binary.LittleEndian.Uint64(si)))
}

func (p *Policy) removeWhitelistFee(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	h := toUint160(args[0])
	method := toString(args[1])
	argCount := int(toInt64(args[2]))
	if !p.NEO.checkCommittee(ic) {
		panic("invalid committee signature")
	}
	ic.DAO.DeleteStorageItem(p.ID, makeWhitelistKey(h, method, argCount))
	return stackitem.Null{}
}

func (p *Policy) putRecoverLock(ic *interop.Context, hash util.Uint160) {
	lock := make([]byte, 4)
	binary.LittleEndian.PutUint32(lock, ic.BlockHeight()+recoverFundLockBlocks)
	ic.DAO.PutStorageItem(p.ID, makeUint160Key(recoverLockPrefix, hash), lock)
}

// recoverFund moves the GAS of a blocked account into the Treasury after
// the one-year lock expires.
func (p *Policy) recoverFund(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	hash := toUint160(args[0])
	if !p.NEO.checkCommittee(ic) {
		panic("invalid committee signature")
	}
	if !p.IsBlocked(ic.DAO, hash) {
		panic("account is not blocked")
	}
	si := ic.DAO.GetStorageItem(p.ID, makeUint160Key(recoverLockPrefix, hash))
	if si == nil {
		panic("no recovery lock for the account")
	}
	unlockHeight := binary.LittleEndian.Uint32(si)
	if ic.BlockHeight() < unlockHeight {
		panic(fmt.Errorf("funds are locked until block %d", unlockHeight))
	}
	balance := p.GAS.BalanceOf(ic.DAO, hash)
	if balance.Sign() > 0 {
		p.GAS.Burn(ic, hash, balance)
		p.GAS.Mint(ic, p.Treasury.Hash, balance, true)
	}
	ic.DAO.DeleteStorageItem(p.ID, makeUint160Key(recoverLockPrefix, hash))
	return stackitem.Null{}
}
