package native

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/neoref/neoref/pkg/core/dao"
	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/core/interop/contract"
	"github.com/neoref/neoref/pkg/core/interop/runtime"
	"github.com/neoref/neoref/pkg/encoding/bigint"
	"github.com/neoref/neoref/pkg/smartcontract"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/smartcontract/manifest"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// prefixAccount is the standard NEP-17 balance storage prefix.
const prefixAccount = 20

var totalSupplyKey = []byte{11}

// nep17TokenNative represents a NEP-17 token contract shared by NEO and
// GAS.
type nep17TokenNative struct {
	interop.ContractMD
	symbol      string
	decimals    int64
	factor      int64
	incBalance  func(*interop.Context, util.Uint160, []byte, *big.Int, *big.Int) (func(), error)
	balFromBytes func(item []byte) (*big.Int, error)
}

func newNEP17Native(name string, id int32) *nep17TokenNative {
	n := &nep17TokenNative{ContractMD: *interop.NewContractMD(name, id, nil)}
	n.Manifest.SupportedStandards = []string{manifest.NEP17StandardName}

	desc := newDescriptor("symbol", smartcontract.StringType)
	md := newMethodAndPrice(n.Symbol, 0, callflag.NoneFlag)
	n.AddMethod(md, desc)

	desc = newDescriptor("decimals", smartcontract.IntegerType)
	md = newMethodAndPrice(n.Decimals, 0, callflag.NoneFlag)
	n.AddMethod(md, desc)

	desc = newDescriptor("totalSupply", smartcontract.IntegerType)
	md = newMethodAndPrice(n.TotalSupply, 1<<15, callflag.ReadStates)
	n.AddMethod(md, desc)

	desc = newDescriptor("balanceOf", smartcontract.IntegerType,
		manifest.NewParameter("account", smartcontract.Hash160Type))
	md = newMethodAndPrice(n.balanceOf, 1<<15, callflag.ReadStates)
	n.AddMethod(md, desc)

	transferParams := []manifest.Parameter{
		manifest.NewParameter("from", smartcontract.Hash160Type),
		manifest.NewParameter("to", smartcontract.Hash160Type),
		manifest.NewParameter("amount", smartcontract.IntegerType),
	}
	desc = newDescriptor("transfer", smartcontract.BoolType,
		append(transferParams, manifest.NewParameter("data", smartcontract.AnyType))...,
	)
	md = newMethodAndPrice(n.Transfer, 1<<17, callflag.States|callflag.AllowCall|callflag.AllowNotify)
	n.AddMethod(md, desc)

	n.AddEvent(nil, "Transfer",
		manifest.NewParameter("from", smartcontract.Hash160Type),
		manifest.NewParameter("to", smartcontract.Hash160Type),
		manifest.NewParameter("amount", smartcontract.IntegerType),
	)

	return n
}

// Symbol returns the token symbol.
func (c *nep17TokenNative) Symbol(_ *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.NewByteArray([]byte(c.symbol))
}

// Decimals returns the token divisibility.
func (c *nep17TokenNative) Decimals(_ *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(c.decimals)
}

// TotalSupply returns the token total supply.
func (c *nep17TokenNative) TotalSupply(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	supply, _ := c.getTotalSupply(ic.DAO)
	return stackitem.NewBigInteger(supply)
}

func (c *nep17TokenNative) getTotalSupply(d *dao.Simple) (*big.Int, []byte) {
	si := d.GetStorageItem(c.ID, totalSupplyKey)
	if si == nil {
		si = []byte{}
	}
	return bigint.FromBytes(si), si
}

func (c *nep17TokenNative) saveTotalSupply(d *dao.Simple, supply *big.Int) {
	d.PutStorageItem(c.ID, totalSupplyKey, bigint.ToBytes(supply))
}

func (c *nep17TokenNative) makeAccountKey(h util.Uint160) []byte {
	return makeUint160Key(prefixAccount, h)
}

func (c *nep17TokenNative) balanceOf(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	h := toUint160(args[0])
	return stackitem.NewBigInteger(c.balanceFromStorage(ic.DAO, h))
}

func (c *nep17TokenNative) balanceFromStorage(d *dao.Simple, h util.Uint160) *big.Int {
	key := c.makeAccountKey(h)
	si := d.GetStorageItem(c.ID, key)
	if si == nil {
		return big.NewInt(0)
	}
	balance, err := c.balFromBytes(si)
	if err != nil {
		panic(fmt.Errorf("can not deserialize balance state: %w", err))
	}
	return balance
}

// Transfer moves the given amount between accounts checking the witness
// of the sender and calling onNEP17Payment on a contract recipient.
func (c *nep17TokenNative) Transfer(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	from := toUint160(args[0])
	to := toUint160(args[1])
	amount := toBigInt(args[2])
	err := c.TransferInternal(ic, from, to, amount, args[3])
	return stackitem.NewBool(err == nil)
}

// TransferInternal transfers NEO or GAS between accounts.
func (c *nep17TokenNative) TransferInternal(ic *interop.Context, from, to util.Uint160, amount *big.Int, data stackitem.Item) error {
	if amount.Sign() == -1 {
		return errors.New("negative amount")
	}

	caller := ic.VM.GetCallingScriptHash()
	if caller.Equals(util.Uint160{}) || !from.Equals(caller) {
		ok, err := runtime.CheckHashedWitness(ic, from)
		if err != nil || !ok {
			return errors.New("invalid signature")
		}
	}
	isEmpty := from.Equals(to) || amount.Sign() == 0
	inc := amount
	if isEmpty {
		inc = big.NewInt(0)
	} else {
		inc = new(big.Int).Neg(inc)
	}
	fromPost, err := c.updateAccBalance(ic, from, inc, amount)
	if err != nil {
		return err
	}

	if !isEmpty {
		topost, err := c.updateAccBalance(ic, to, amount, big.NewInt(0))
		if err != nil {
			return err
		}
		if topost != nil {
			topost()
		}
	}
	if fromPost != nil {
		fromPost()
	}

	c.emitTransfer(ic, &from, &to, amount)
	return c.postTransfer(ic, from, to, amount, data)
}

func (c *nep17TokenNative) postTransfer(ic *interop.Context, from, to util.Uint160, amount *big.Int, data stackitem.Item) error {
	cs, err := ic.GetContract(ic.DAO, to)
	if err != nil {
		return nil // Simple account, nothing to call.
	}
	fromArg := stackitem.Item(stackitem.Null{})
	if !from.Equals(util.Uint160{}) {
		fromArg = stackitem.NewByteArray(from.BytesBE())
	}
	args := []stackitem.Item{
		fromArg,
		stackitem.NewBigInteger(amount),
		data,
	}
	return contract.CallExInternal(ic, cs, manifest.MethodOnNEP17Payment, args, callflag.All)
}

func (c *nep17TokenNative) emitTransfer(ic *interop.Context, from, to *util.Uint160, amount *big.Int) {
	ne := stackitem.NewArray([]stackitem.Item{
		addrToStackItem(from),
		addrToStackItem(to),
		stackitem.NewBigInteger(amount),
	})
	ic.AddNotification(c.Hash, "Transfer", ne)
}

func addrToStackItem(u *util.Uint160) stackitem.Item {
	if u == nil || u.Equals(util.Uint160{}) {
		return stackitem.Null{}
	}
	return stackitem.NewByteArray(u.BytesBE())
}

func (c *nep17TokenNative) updateAccBalance(ic *interop.Context, acc util.Uint160, amount *big.Int, requiredBalance *big.Int) (func(), error) {
	key := c.makeAccountKey(acc)
	si := ic.DAO.GetStorageItem(c.ID, key)
	if si == nil {
		if amount.Sign() <= 0 && requiredBalance.Sign() > 0 {
			return nil, errors.New("insufficient funds")
		}
		si = []byte{}
	}
	post, err := c.incBalance(ic, acc, si, amount, requiredBalance)
	if err != nil {
		return nil, err
	}
	return post, nil
}

// mint increases the total supply and the account balance.
func (c *nep17TokenNative) mint(ic *interop.Context, h util.Uint160, amount *big.Int, callOnPayment bool) {
	if amount.Sign() == 0 {
		return
	}
	c.addTokens(ic, h, amount)
	c.emitTransfer(ic, nil, &h, amount)
	if callOnPayment {
		_ = c.postTransfer(ic, util.Uint160{}, h, amount, stackitem.Null{})
	}
}

// burn decreases the total supply and the account balance.
func (c *nep17TokenNative) burn(ic *interop.Context, h util.Uint160, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	amount = new(big.Int).Neg(amount)
	c.addTokens(ic, h, amount)
	amount.Neg(amount)
	c.emitTransfer(ic, &h, nil, amount)
}

func (c *nep17TokenNative) addTokens(ic *interop.Context, h util.Uint160, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}

	key := c.makeAccountKey(h)
	si := ic.DAO.GetStorageItem(c.ID, key)
	if si == nil {
		si = []byte{}
	}
	if _, err := c.incBalance(ic, h, si, amount, nil); err != nil {
		panic(err)
	}
	supply, _ := c.getTotalSupply(ic.DAO)
	supply.Add(supply, amount)
	c.saveTotalSupply(ic.DAO, supply)
}
