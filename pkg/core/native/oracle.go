package native

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"net/url"

	"github.com/neoref/neoref/pkg/config"
	"github.com/neoref/neoref/pkg/core/dao"
	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/core/interop/contract"
	"github.com/neoref/neoref/pkg/core/native/nativenames"
	"github.com/neoref/neoref/pkg/core/native/noderoles"
	"github.com/neoref/neoref/pkg/core/transaction"
	"github.com/neoref/neoref/pkg/smartcontract"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/smartcontract/manifest"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// Oracle represents the Oracle native contract.
type Oracle struct {
	interop.ContractMD
	GAS   *GAS
	Desig *Designate
}

const (
	oracleContractID = -9

	// maxURLLength is the maximum allowed request URL length.
	maxURLLength = 256
	// maxFilterLength is the maximum allowed filter length.
	maxFilterLength = 128
	// maxCallbackLength is the maximum allowed callback method length.
	maxCallbackLength = 32
	// maxUserDataLength is the maximum allowed user data length.
	maxUserDataLength = 512
	// minimumResponseGas is the minimum response fee permitted for a
	// request.
	minimumResponseGas = 10_000_000
	// DefaultOracleRequestPrice is the default amount GAS paid for an
	// oracle request.
	DefaultOracleRequestPrice = 5000_0000
)

const (
	prefixRequestID    = 9
	prefixRequest      = 7
	prefixRequestPrice = 5
)

// Oracle contract storage keys.
var (
	oracleRequestIDKey = []byte{prefixRequestID}
	oraclePriceKey     = []byte{prefixRequestPrice}
)

func newOracle() *Oracle {
	o := &Oracle{
		ContractMD: *interop.NewContractMD(nativenames.Oracle, oracleContractID, nil),
	}
	defer o.Finalize()

	desc := newDescriptor("request", smartcontract.VoidType,
		manifest.NewParameter("url", smartcontract.StringType),
		manifest.NewParameter("filter", smartcontract.StringType),
		manifest.NewParameter("callback", smartcontract.StringType),
		manifest.NewParameter("userData", smartcontract.AnyType),
		manifest.NewParameter("gasForResponse", smartcontract.IntegerType))
	md := newMethodAndPrice(o.request, 0, callflag.States|callflag.AllowNotify)
	o.AddMethod(md, desc)

	desc = newDescriptor("finish", smartcontract.VoidType)
	md = newMethodAndPrice(o.finish, 0, callflag.States|callflag.AllowCall|callflag.AllowNotify)
	o.AddMethod(md, desc)

	desc = newDescriptor("getPrice", smartcontract.IntegerType)
	md = newMethodAndPrice(o.getPrice, 1<<15, callflag.ReadStates)
	o.AddMethod(md, desc)

	desc = newDescriptor("setPrice", smartcontract.VoidType,
		manifest.NewParameter("price", smartcontract.IntegerType))
	md = newMethodAndPrice(o.setPrice, 1<<15, callflag.States)
	o.AddMethod(md, desc)

	desc = newDescriptor("verify", smartcontract.BoolType)
	md = newMethodAndPrice(o.verify, 1<<15, callflag.NoneFlag)
	o.AddMethod(md, desc)

	o.AddEvent(nil, "OracleRequest",
		manifest.NewParameter("Id", smartcontract.IntegerType),
		manifest.NewParameter("RequestContract", smartcontract.Hash160Type),
		manifest.NewParameter("Url", smartcontract.StringType),
		manifest.NewParameter("Filter", smartcontract.StringType),
	)
	o.AddEvent(nil, "OracleResponse",
		manifest.NewParameter("Id", smartcontract.IntegerType),
		manifest.NewParameter("OriginalTx", smartcontract.Hash256Type),
	)

	return o
}

// Metadata implements the Contract interface.
func (o *Oracle) Metadata() *interop.ContractMD {
	return &o.ContractMD
}

// ActiveIn implements the Contract interface.
func (o *Oracle) ActiveIn() *config.Hardfork {
	return nil
}

// Initialize implements the Contract interface.
func (o *Oracle) Initialize(ic *interop.Context, hf *config.Hardfork) error {
	if hf != nil {
		return nil
	}
	setIntWithKey(o.ID, ic.DAO, oracleRequestIDKey, 0)
	setIntWithKey(o.ID, ic.DAO, oraclePriceKey, DefaultOracleRequestPrice)
	return nil
}

// OnPersist implements the Contract interface.
func (o *Oracle) OnPersist(ic *interop.Context) error {
	return nil
}

// PostPersist cleans up answered oracle requests: for every transaction of
// the persisted block carrying an OracleResponse attribute the stored
// request is removed. No GAS is moved here.
func (o *Oracle) PostPersist(ic *interop.Context) error {
	if ic.Block == nil {
		return nil
	}
	for _, tx := range ic.Block.Transactions {
		resp := getOracleResponse(tx)
		if resp == nil {
			continue
		}
		reqKey := makeRequestKey(resp.ID)
		reqBytes := ic.DAO.GetStorageItem(o.ID, reqKey)
		if reqBytes == nil {
			continue
		}
		ic.DAO.DeleteStorageItem(o.ID, reqKey)
	}
	return nil
}

func getOracleResponse(tx *transaction.Transaction) *transaction.OracleResponse {
	for i := range tx.Attributes {
		if tx.Attributes[i].Type == transaction.OracleResponseT {
			return tx.Attributes[i].Value.(*transaction.OracleResponse)
		}
	}
	return nil
}

func makeRequestKey(id uint64) []byte {
	k := make([]byte, 9)
	k[0] = prefixRequest
	binary.BigEndian.PutUint64(k[1:], id)
	return k
}

func (o *Oracle) getPrice(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(o.getPriceInternal(ic.DAO))
}

func (o *Oracle) getPriceInternal(d *dao.Simple) int64 {
	return getIntWithKeyDefault(o.ID, d, oraclePriceKey, DefaultOracleRequestPrice)
}

func (o *Oracle) setPrice(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	price := toBigInt(args[0])
	if price.Sign() <= 0 || !price.IsInt64() {
		panic("invalid price")
	}
	// Only the committee-designated entities rule the oracle price; the
	// committee check lives in the NEO contract reached through GAS.
	if !o.GAS.NEO.checkCommittee(ic) {
		panic("invalid committee signature")
	}
	setIntWithKey(o.ID, ic.DAO, oraclePriceKey, price.Int64())
	return stackitem.Null{}
}

// request stores a new oracle request and charges the response fee.
func (o *Oracle) request(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	urlStr := toString(args[0])
	var filter *string
	if _, ok := args[1].(stackitem.Null); !ok {
		f := toString(args[1])
		filter = &f
	}
	cb := toString(args[2])
	userData := args[3]
	gasForResponse := toInt64(args[4])

	if len(urlStr) > maxURLLength {
		panic("URL is too long")
	}
	if _, err := url.Parse(urlStr); err != nil {
		panic(fmt.Errorf("invalid URL: %w", err))
	}
	if filter != nil && len(*filter) > maxFilterLength {
		panic("filter is too long")
	}
	if len(cb) > maxCallbackLength {
		panic("callback is too long")
	}
	if cb != "" && cb[0] == '_' {
		panic("disallowed callback method (starts with '_')")
	}
	if gasForResponse < minimumResponseGas {
		panic("not enough gas for the response")
	}
	if !ic.VM.AddGas(o.getPriceInternal(ic.DAO)) {
		panic("insufficient gas")
	}
	// The response fee is burned from the requesting contract and
	// minted to the Oracle contract right away.
	o.GAS.Burn(ic, ic.VM.GetCallingScriptHash(), big.NewInt(gasForResponse))
	o.GAS.Mint(ic, o.Hash, big.NewInt(gasForResponse), false)

	id := uint64(getIntWithKey(o.ID, ic.DAO, oracleRequestIDKey))
	setIntWithKey(o.ID, ic.DAO, oracleRequestIDKey, int64(id+1))

	data, err := stackitem.Serialize(stackitem.NewStruct([]stackitem.Item{
		stackitem.Make(urlStr),
		filterToItem(filter),
		stackitem.NewByteArray(ic.VM.GetCallingScriptHash().BytesBE()),
		stackitem.Make(cb),
		stackitem.DeepCopy(userData, true),
		stackitem.Make(gasForResponse),
	}))
	if err != nil {
		panic(err)
	}
	ic.DAO.PutStorageItem(o.ID, makeRequestKey(id), data)

	var filterNotif stackitem.Item = stackitem.Null{}
	if filter != nil {
		filterNotif = stackitem.Make(*filter)
	}
	ev := stackitem.NewArray([]stackitem.Item{
		stackitem.Make(id),
		stackitem.NewByteArray(ic.VM.GetCallingScriptHash().BytesBE()),
		stackitem.Make(urlStr),
		filterNotif,
	})
	ic.AddNotification(o.Hash, "OracleRequest", ev)
	return stackitem.Null{}
}

func filterToItem(filter *string) stackitem.Item {
	if filter == nil {
		return stackitem.Null{}
	}
	return stackitem.Make(*filter)
}

// finish dispatches the stored callback for the oracle response carried
// by the current transaction.
func (o *Oracle) finish(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	if ic.Tx == nil {
		panic("no transaction")
	}
	resp := getOracleResponse(ic.Tx)
	if resp == nil {
		panic("oracle response attribute is missing")
	}
	reqBytes := ic.DAO.GetStorageItem(o.ID, makeRequestKey(resp.ID))
	if reqBytes == nil {
		panic(fmt.Errorf("oracle request %d not found", resp.ID))
	}
	item, err := stackitem.Deserialize(reqBytes)
	if err != nil {
		panic(err)
	}
	fields := item.Value().([]stackitem.Item)
	cbContract := toUint160(fields[2])
	cbMethod := toString(fields[3])
	userData := fields[4]

	ev := stackitem.NewArray([]stackitem.Item{
		stackitem.Make(resp.ID),
		stackitem.NewByteArray(ic.Tx.Hash().BytesBE()),
	})
	ic.AddNotification(o.Hash, "OracleResponse", ev)

	cs, err := ic.GetContract(ic.DAO, cbContract)
	if err != nil {
		panic(fmt.Errorf("oracle callback contract not found: %w", err))
	}
	args := []stackitem.Item{
		stackitem.Make(fields[0].Value()),
		stackitem.DeepCopy(userData, false),
		stackitem.Make(int(resp.Code)),
		stackitem.NewByteArray(resp.Result),
	}
	if err := contract.CallExInternal(ic, cs, cbMethod, args, callflag.All); err != nil {
		panic(err)
	}
	return stackitem.Null{}
}

// verify checks whether the transaction is signed by one of the
// designated oracle nodes.
func (o *Oracle) verify(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	if ic.Tx == nil {
		return stackitem.NewBool(false)
	}
	return stackitem.NewBool(getOracleResponse(ic.Tx) != nil && o.Desig != nil && o.oracleNodesExist(ic))
}

func (o *Oracle) oracleNodesExist(ic *interop.Context) bool {
	pubs, _, err := o.Desig.GetDesignatedByRole(ic.DAO, noderoles.Oracle, ic.BlockHeight())
	return err == nil && len(pubs) > 0
}
