package native

import (
	"math/big"

	"github.com/neoref/neoref/pkg/config"
	"github.com/neoref/neoref/pkg/core/dao"
	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/core/interop/runtime"
	"github.com/neoref/neoref/pkg/core/native/nativenames"
	"github.com/neoref/neoref/pkg/core/native/noderoles"
	"github.com/neoref/neoref/pkg/core/transaction"
	"github.com/neoref/neoref/pkg/smartcontract"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/smartcontract/manifest"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// Notary represents the Notary native contract.
type Notary struct {
	interop.ContractMD
	GAS   *GAS
	NEO   *NEO
	Desig *Designate
}

const (
	notaryContractID = -10

	// prefixDeposit is the prefix for deposits.
	prefixDeposit = 1
	// defaultDepositDeltaTill is the number of blocks a deposit is
	// locked for by default.
	defaultDepositDeltaTill = 5760
	// defaultMaxNotValidBeforeDelta is the default maximum NotValidBefore
	// delta.
	defaultMaxNotValidBeforeDelta = 140
)

var maxNotValidBeforeDeltaKey = []byte{10}

var activeInEchidna = config.HFEchidna

func newNotary() *Notary {
	n := &Notary{
		ContractMD: *interop.NewContractMD(nativenames.Notary, notaryContractID, &activeInEchidna),
	}
	defer n.Finalize()

	desc := newDescriptor("onNEP17Payment", smartcontract.VoidType,
		manifest.NewParameter("from", smartcontract.Hash160Type),
		manifest.NewParameter("amount", smartcontract.IntegerType),
		manifest.NewParameter("data", smartcontract.AnyType))
	md := newMethodAndPrice(n.onPayment, 1<<15, callflag.States)
	n.AddMethod(md, desc)

	desc = newDescriptor("lockDepositUntil", smartcontract.BoolType,
		manifest.NewParameter("account", smartcontract.Hash160Type),
		manifest.NewParameter("till", smartcontract.IntegerType))
	md = newMethodAndPrice(n.lockDepositUntil, 1<<15, callflag.States)
	n.AddMethod(md, desc)

	desc = newDescriptor("withdraw", smartcontract.BoolType,
		manifest.NewParameter("from", smartcontract.Hash160Type),
		manifest.NewParameter("to", smartcontract.Hash160Type))
	md = newMethodAndPrice(n.withdraw, 1<<15, callflag.States|callflag.AllowCall|callflag.AllowNotify)
	n.AddMethod(md, desc)

	desc = newDescriptor("balanceOf", smartcontract.IntegerType,
		manifest.NewParameter("account", smartcontract.Hash160Type))
	md = newMethodAndPrice(n.balanceOf, 1<<15, callflag.ReadStates)
	n.AddMethod(md, desc)

	desc = newDescriptor("expirationOf", smartcontract.IntegerType,
		manifest.NewParameter("account", smartcontract.Hash160Type))
	md = newMethodAndPrice(n.expirationOf, 1<<15, callflag.ReadStates)
	n.AddMethod(md, desc)

	desc = newDescriptor("getMaxNotValidBeforeDelta", smartcontract.IntegerType)
	md = newMethodAndPrice(n.getMaxNotValidBeforeDelta, 1<<15, callflag.ReadStates)
	n.AddMethod(md, desc)

	desc = newDescriptor("setMaxNotValidBeforeDelta", smartcontract.VoidType,
		manifest.NewParameter("value", smartcontract.IntegerType))
	md = newMethodAndPrice(n.setMaxNotValidBeforeDelta, 1<<15, callflag.States)
	n.AddMethod(md, desc)

	desc = newDescriptor("verify", smartcontract.BoolType,
		manifest.NewParameter("signature", smartcontract.SignatureType))
	md = newMethodAndPrice(n.verify, 1<<15, callflag.ReadStates)
	n.AddMethod(md, desc)

	return n
}

// Metadata implements the Contract interface.
func (n *Notary) Metadata() *interop.ContractMD {
	return &n.ContractMD
}

// ActiveIn implements the Contract interface.
func (n *Notary) ActiveIn() *config.Hardfork {
	return &activeInEchidna
}

// Initialize implements the Contract interface.
func (n *Notary) Initialize(ic *interop.Context, hf *config.Hardfork) error {
	if hf != nil && *hf == activeInEchidna {
		setIntWithKey(n.ID, ic.DAO, maxNotValidBeforeDeltaKey, defaultMaxNotValidBeforeDelta)
	}
	return nil
}

// OnPersist implements the Contract interface.
func (n *Notary) OnPersist(ic *interop.Context) error {
	return nil
}

// PostPersist implements the Contract interface.
func (n *Notary) PostPersist(ic *interop.Context) error {
	return nil
}

// deposit represents a notary deposit: the amount and the lock height.
type deposit struct {
	Amount *big.Int
	Till   uint32
}

func (n *Notary) makeDepositKey(acc util.Uint160) []byte {
	return makeUint160Key(prefixDeposit, acc)
}

// GetDepositFor returns the deposit for the given account, nil if absent.
func (n *Notary) GetDepositFor(d *dao.Simple, acc util.Uint160) *deposit {
	si := d.GetStorageItem(n.ID, n.makeDepositKey(acc))
	if si == nil {
		return nil
	}
	item, err := stackitem.Deserialize(si)
	if err != nil {
		return nil
	}
	str := item.Value().([]stackitem.Item)
	amount, err := str[0].TryInteger()
	if err != nil {
		return nil
	}
	till, err := str[1].TryInteger()
	if err != nil {
		return nil
	}
	return &deposit{Amount: amount, Till: uint32(till.Int64())}
}

func (n *Notary) putDeposit(d *dao.Simple, acc util.Uint160, dep *deposit) {
	data, err := stackitem.Serialize(stackitem.NewStruct([]stackitem.Item{
		stackitem.NewBigInteger(dep.Amount),
		stackitem.Make(dep.Till),
	}))
	if err != nil {
		panic(err)
	}
	d.PutStorageItem(n.ID, n.makeDepositKey(acc), data)
}

// onPayment records a deposit for the account sent along with a GAS
// transfer to the Notary hash.
func (n *Notary) onPayment(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	if !ic.VM.GetCallingScriptHash().Equals(n.GAS.Hash) {
		panic("only GAS can be accepted for deposit")
	}
	from := toUint160(args[0])
	amount := toBigInt(args[1])
	to := from
	till := ic.BlockHeight() + defaultDepositDeltaTill
	if arr, ok := args[2].Value().([]stackitem.Item); ok && len(arr) == 2 {
		if _, isNull := arr[0].(stackitem.Null); !isNull {
			to = toUint160(arr[0])
		}
		till = toUint32(arr[1])
	}
	if till < ic.BlockHeight() {
		panic("till is in the past")
	}
	dep := n.GetDepositFor(ic.DAO, to)
	if dep == nil {
		dep = &deposit{Amount: big.NewInt(0), Till: till}
	}
	if till > dep.Till {
		dep.Till = till
	}
	dep.Amount.Add(dep.Amount, amount)
	n.putDeposit(ic.DAO, to, dep)
	return stackitem.Null{}
}

func (n *Notary) lockDepositUntil(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	acc := toUint160(args[0])
	till := toUint32(args[1])
	ok, err := runtime.CheckHashedWitness(ic, acc)
	if err != nil || !ok {
		return stackitem.NewBool(false)
	}
	dep := n.GetDepositFor(ic.DAO, acc)
	if dep == nil || till < dep.Till || till < ic.BlockHeight() {
		return stackitem.NewBool(false)
	}
	dep.Till = till
	n.putDeposit(ic.DAO, acc, dep)
	return stackitem.NewBool(true)
}

func (n *Notary) withdraw(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	from := toUint160(args[0])
	to := toUint160(args[1])
	ok, err := runtime.CheckHashedWitness(ic, from)
	if err != nil || !ok {
		return stackitem.NewBool(false)
	}
	dep := n.GetDepositFor(ic.DAO, from)
	if dep == nil {
		return stackitem.NewBool(false)
	}
	if ic.BlockHeight() < dep.Till {
		return stackitem.NewBool(false)
	}
	ic.DAO.DeleteStorageItem(n.ID, n.makeDepositKey(from))
	n.GAS.Burn(ic, n.Hash, dep.Amount)
	n.GAS.Mint(ic, to, dep.Amount, true)
	return stackitem.NewBool(true)
}

func (n *Notary) balanceOf(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	acc := toUint160(args[0])
	dep := n.GetDepositFor(ic.DAO, acc)
	if dep == nil {
		return stackitem.Make(0)
	}
	return stackitem.NewBigInteger(dep.Amount)
}

func (n *Notary) expirationOf(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	acc := toUint160(args[0])
	dep := n.GetDepositFor(ic.DAO, acc)
	if dep == nil {
		return stackitem.Make(0)
	}
	return stackitem.Make(dep.Till)
}

func (n *Notary) getMaxNotValidBeforeDelta(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(getIntWithKeyDefault(n.ID, ic.DAO, maxNotValidBeforeDeltaKey, defaultMaxNotValidBeforeDelta))
}

func (n *Notary) setMaxNotValidBeforeDelta(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	value := toUint32(args[0])
	if !n.NEO.checkCommittee(ic) {
		panic("invalid committee signature")
	}
	setIntWithKey(n.ID, ic.DAO, maxNotValidBeforeDeltaKey, int64(value))
	return stackitem.Null{}
}

// verify checks whether the transaction is a valid notary-assisted one:
// it must carry the NotaryAssisted attribute, at least one notary node
// must be designated and the last signer must have a sufficient deposit.
// The signature argument is not checked.
func (n *Notary) verify(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	if ic.Tx == nil {
		return stackitem.NewBool(false)
	}
	var na *transaction.NotaryAssisted
	for i := range ic.Tx.Attributes {
		if ic.Tx.Attributes[i].Type == transaction.NotaryAssistedT {
			na = ic.Tx.Attributes[i].Value.(*transaction.NotaryAssisted)
			break
		}
	}
	if na == nil {
		return stackitem.NewBool(false)
	}
	nodes, _, err := n.Desig.GetDesignatedByRole(ic.DAO, noderoles.P2PNotary, ic.BlockHeight())
	if err != nil || len(nodes) == 0 {
		return stackitem.NewBool(false)
	}
	payer := ic.Tx.Signers[len(ic.Tx.Signers)-1]
	dep := n.GetDepositFor(ic.DAO, payer.Account)
	feePerKey := int64(defaultNotaryAssistedFee)
	expected := big.NewInt(int64(na.NKeys+1) * feePerKey)
	if dep == nil || dep.Amount.Cmp(expected) < 0 {
		return stackitem.NewBool(false)
	}
	return stackitem.NewBool(true)
}
