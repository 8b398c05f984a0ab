package native

import (
	"errors"
	"fmt"

	"github.com/neoref/neoref/pkg/config"
	"github.com/neoref/neoref/pkg/core/dao"
	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/core/interop/contract"
	istorage "github.com/neoref/neoref/pkg/core/interop/storage"
	"github.com/neoref/neoref/pkg/core/native/nativenames"
	"github.com/neoref/neoref/pkg/core/state"
	"github.com/neoref/neoref/pkg/core/storage"
	"github.com/neoref/neoref/pkg/smartcontract"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/smartcontract/manifest"
	"github.com/neoref/neoref/pkg/smartcontract/nef"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// Management is a contract-managing native contract.
type Management struct {
	interop.ContractMD
	NEO *NEO
}

const (
	managementContractID = -1

	// prefixContract is a prefix used to store contract states inside
	// Management native contract.
	prefixContract = 8
	// prefixContractHash is a prefix used to store contract hashes by
	// their ids.
	prefixContractHash = 12

	defaultMinimumDeploymentFee = 10_00000000
)

var (
	keyNextAvailableID      = []byte{15}
	keyMinimumDeploymentFee = []byte{20}
)

func newManagement() *Management {
	var m = &Management{
		ContractMD: *interop.NewContractMD(nativenames.Management, managementContractID, nil),
	}
	defer m.Finalize()

	desc := newDescriptor("getContract", smartcontract.ArrayType,
		manifest.NewParameter("hash", smartcontract.Hash160Type))
	md := newMethodAndPrice(m.getContract, 1<<15, callflag.ReadStates)
	m.AddMethod(md, desc)

	desc = newDescriptor("getContractById", smartcontract.ArrayType,
		manifest.NewParameter("id", smartcontract.IntegerType))
	md = newMethodAndPrice(m.getContractByID, 1<<15, callflag.ReadStates)
	m.AddMethod(md, desc)

	desc = newDescriptor("getContractHashes", smartcontract.InteropInterfaceType)
	md = newMethodAndPrice(m.getContractHashes, 1<<15, callflag.ReadStates)
	m.AddMethod(md, desc)

	desc = newDescriptor("hasMethod", smartcontract.BoolType,
		manifest.NewParameter("hash", smartcontract.Hash160Type),
		manifest.NewParameter("method", smartcontract.StringType),
		manifest.NewParameter("pcount", smartcontract.IntegerType))
	md = newMethodAndPrice(m.hasMethod, 1<<15, callflag.ReadStates)
	m.AddMethod(md, desc)

	desc = newDescriptor("deploy", smartcontract.ArrayType,
		manifest.NewParameter("nefFile", smartcontract.ByteArrayType),
		manifest.NewParameter("manifest", smartcontract.ByteArrayType))
	md = newMethodAndPrice(m.deploy, 0, callflag.WriteStates|callflag.AllowNotify)
	m.AddMethod(md, desc)

	desc = newDescriptor("deploy", smartcontract.ArrayType,
		manifest.NewParameter("nefFile", smartcontract.ByteArrayType),
		manifest.NewParameter("manifest", smartcontract.ByteArrayType),
		manifest.NewParameter("data", smartcontract.AnyType))
	md = newMethodAndPrice(m.deployWithData, 0, callflag.WriteStates|callflag.AllowNotify)
	m.AddMethod(md, desc)

	desc = newDescriptor("update", smartcontract.VoidType,
		manifest.NewParameter("nefFile", smartcontract.ByteArrayType),
		manifest.NewParameter("manifest", smartcontract.ByteArrayType))
	md = newMethodAndPrice(m.update, 0, callflag.WriteStates|callflag.AllowNotify)
	m.AddMethod(md, desc)

	desc = newDescriptor("update", smartcontract.VoidType,
		manifest.NewParameter("nefFile", smartcontract.ByteArrayType),
		manifest.NewParameter("manifest", smartcontract.ByteArrayType),
		manifest.NewParameter("data", smartcontract.AnyType))
	md = newMethodAndPrice(m.updateWithData, 0, callflag.WriteStates|callflag.AllowNotify)
	m.AddMethod(md, desc)

	desc = newDescriptor("destroy", smartcontract.VoidType)
	md = newMethodAndPrice(m.destroy, 1<<15, callflag.WriteStates|callflag.AllowNotify)
	m.AddMethod(md, desc)

	desc = newDescriptor("getMinimumDeploymentFee", smartcontract.IntegerType)
	md = newMethodAndPrice(m.getMinimumDeploymentFee, 1<<15, callflag.ReadStates)
	m.AddMethod(md, desc)

	desc = newDescriptor("setMinimumDeploymentFee", smartcontract.VoidType,
		manifest.NewParameter("value", smartcontract.IntegerType))
	md = newMethodAndPrice(m.setMinimumDeploymentFee, 1<<15, callflag.States)
	m.AddMethod(md, desc)

	hashParam := manifest.NewParameter("Hash", smartcontract.Hash160Type)
	m.AddEvent(nil, "Deploy", hashParam)
	m.AddEvent(nil, "Update", hashParam)
	m.AddEvent(nil, "Destroy", hashParam)
	return m
}

// Metadata implements the Contract interface.
func (m *Management) Metadata() *interop.ContractMD {
	return &m.ContractMD
}

// ActiveIn implements the Contract interface.
func (m *Management) ActiveIn() *config.Hardfork {
	return nil
}

// Initialize implements the Contract interface.
func (m *Management) Initialize(ic *interop.Context, hf *config.Hardfork) error {
	if hf != nil {
		return nil
	}
	setIntWithKey(m.ID, ic.DAO, keyMinimumDeploymentFee, defaultMinimumDeploymentFee)
	setIntWithKey(m.ID, ic.DAO, keyNextAvailableID, 1)
	return nil
}

// OnPersist implements the Contract interface.
func (m *Management) OnPersist(ic *interop.Context) error {
	return nil
}

// PostPersist implements the Contract interface.
func (m *Management) PostPersist(ic *interop.Context) error {
	return nil
}

func (m *Management) makeContractKey(h util.Uint160) []byte {
	return makeUint160Key(prefixContract, h)
}

// GetContract returns a contract state with the given hash from the
// management storage.
func (m *Management) GetContract(d *dao.Simple, hash util.Uint160) (*state.Contract, error) {
	si := d.GetStorageItem(m.ID, m.makeContractKey(hash))
	if si == nil {
		return nil, storage.ErrKeyNotFound
	}
	return state.ContractFromBytes(si)
}

// GetContractByID returns a contract with the given ID from the
// management storage.
func (m *Management) GetContractByID(d *dao.Simple, id int32) (*state.Contract, error) {
	si := d.GetStorageItem(m.ID, makeIDKey(prefixContractHash, id))
	if si == nil {
		return nil, storage.ErrKeyNotFound
	}
	hash, err := util.Uint160DecodeBytesBE(si)
	if err != nil {
		return nil, err
	}
	return m.GetContract(d, hash)
}

func (m *Management) getContract(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	hash := toUint160(args[0])
	ctr, err := m.GetContract(ic.DAO, hash)
	if err != nil {
		return stackitem.Null{}
	}
	return contractToStack(ctr)
}

func (m *Management) getContractByID(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	id := toInt64(args[0])
	ctr, err := m.GetContractByID(ic.DAO, int32(id))
	if err != nil {
		return stackitem.Null{}
	}
	return contractToStack(ctr)
}

func (m *Management) getContractHashes(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	var seekres []storage.KeyValue
	ic.DAO.Seek(m.ID, storage.SeekRange{Prefix: []byte{prefixContractHash}}, func(k, v []byte) bool {
		seekres = append(seekres, storage.KeyValue{
			Key:   append([]byte{}, k[1:]...),
			Value: append([]byte{}, v...),
		})
		return true
	})
	iter := istorage.NewIterator(seekres, []byte{}, istorage.FindRemovePrefix)
	return stackitem.NewInterop(iter)
}

func (m *Management) hasMethod(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	hash := toUint160(args[0])
	method := toString(args[1])
	pcount := int(toInt64(args[2]))
	ctr, err := m.GetContract(ic.DAO, hash)
	if err != nil {
		return stackitem.NewBool(false)
	}
	return stackitem.NewBool(ctr.Manifest.ABI.GetMethod(method, pcount) != nil)
}

func (m *Management) getMinimumDeploymentFee(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(getIntWithKey(m.ID, ic.DAO, keyMinimumDeploymentFee))
}

func (m *Management) setMinimumDeploymentFee(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	value := toBigInt(args[0])
	if value.Sign() < 0 || !value.IsInt64() {
		panic("MinimumDeploymentFee cannot be negative")
	}
	if !m.NEO.checkCommittee(ic) {
		panic("invalid committee signature")
	}
	setIntWithKey(m.ID, ic.DAO, keyMinimumDeploymentFee, value.Int64())
	return stackitem.Null{}
}

func (m *Management) deploy(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	return m.deployWithData(ic, []stackitem.Item{args[0], args[1], stackitem.Null{}})
}

func (m *Management) deployWithData(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	neff := toBytes(args[0])
	manifestBytes := toBytes(args[1])
	cs, err := m.Deploy(ic, ic.Tx.Sender(), neff, manifestBytes)
	if err != nil {
		panic(err)
	}
	m.callDeploy(ic, cs, args[2], false)
	m.emitNotification(ic, "Deploy", cs.Hash)
	return contractToStack(cs)
}

// Deploy creates a contract's hash/ID and saves a new contract state.
func (m *Management) Deploy(ic *interop.Context, sender util.Uint160, neff []byte, manifestBytes []byte) (*state.Contract, error) {
	if ic.Tx == nil {
		return nil, errors.New("no transaction in the context")
	}
	if len(neff) == 0 {
		return nil, errors.New("no valid NEF provided")
	}
	if len(manifestBytes) == 0 || len(manifestBytes) > manifest.MaxManifestSize {
		return nil, errors.New("invalid manifest size")
	}
	gas := ic.BaseStorageFee() * int64(len(neff)+len(manifestBytes))
	if minFee := getIntWithKey(m.ID, ic.DAO, keyMinimumDeploymentFee); gas < minFee {
		gas = minFee
	}
	if !ic.VM.AddGas(gas) {
		return nil, errors.New("gas limit exceeded")
	}

	nefFile, err := nef.FileFromBytes(neff)
	if err != nil {
		return nil, fmt.Errorf("invalid NEF file: %w", err)
	}
	var mf manifest.Manifest
	if err := mf.UnmarshalJSON(manifestBytes); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	h := state.CreateContractHash(sender, nefFile.Checksum, mf.Name)
	if nativenames.IsValid(mf.Name) {
		return nil, errors.New("contract name is reserved")
	}
	if _, err := m.GetContract(ic.DAO, h); err == nil {
		return nil, errors.New("contract already exists")
	}
	id := m.getNextContractID(ic.DAO)
	newcontract := &state.Contract{
		ContractBase: state.ContractBase{
			ID:       id,
			Hash:     h,
			NEF:      nefFile,
			Manifest: mf,
		},
	}
	if err := newcontract.Manifest.IsValid(h, true); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	m.putContract(ic.DAO, newcontract)
	return newcontract, nil
}

func (m *Management) callDeploy(ic *interop.Context, cs *state.Contract, data stackitem.Item, isUpdate bool) {
	md := cs.Manifest.ABI.GetMethod(manifest.MethodDeploy, 2)
	if md != nil {
		err := contract.CallExInternal(ic, cs, manifest.MethodDeploy,
			[]stackitem.Item{data, stackitem.NewBool(isUpdate)}, callflag.All)
		if err != nil {
			panic(err)
		}
	}
}

func (m *Management) update(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	return m.updateWithData(ic, []stackitem.Item{args[0], args[1], stackitem.Null{}})
}

func (m *Management) updateWithData(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	var neff, manifestBytes []byte
	if _, ok := args[0].(stackitem.Null); !ok {
		neff = toBytes(args[0])
	}
	if _, ok := args[1].(stackitem.Null); !ok {
		manifestBytes = toBytes(args[1])
	}
	cs, err := m.Update(ic, ic.VM.GetCallingScriptHash(), neff, manifestBytes)
	if err != nil {
		panic(err)
	}
	m.callDeploy(ic, cs, args[2], true)
	m.emitNotification(ic, "Update", cs.Hash)
	return stackitem.Null{}
}

// Update updates the contract's script and/or manifest.
func (m *Management) Update(ic *interop.Context, hash util.Uint160, neff []byte, manifestBytes []byte) (*state.Contract, error) {
	if neff == nil && manifestBytes == nil {
		return nil, errors.New("both NEF and manifest are nil")
	}
	contract, err := m.GetContract(ic.DAO, hash)
	if err != nil {
		return nil, errors.New("contract doesn't exist")
	}
	if !ic.VM.AddGas(ic.BaseStorageFee() * int64(len(neff)+len(manifestBytes))) {
		return nil, errors.New("gas limit exceeded")
	}
	// Changing the contract hash is not allowed, the name is bound.
	cs := *contract
	if neff != nil {
		nefFile, err := nef.FileFromBytes(neff)
		if err != nil {
			return nil, fmt.Errorf("invalid NEF file: %w", err)
		}
		cs.NEF = nefFile
	}
	if manifestBytes != nil {
		var mf manifest.Manifest
		if err := mf.UnmarshalJSON(manifestBytes); err != nil {
			return nil, fmt.Errorf("invalid manifest: %w", err)
		}
		if mf.Name != cs.Manifest.Name {
			return nil, errors.New("contract name can't be changed")
		}
		if err := mf.IsValid(cs.Hash, true); err != nil {
			return nil, fmt.Errorf("invalid manifest: %w", err)
		}
		cs.Manifest = mf
	}
	cs.UpdateCounter++
	m.putContract(ic.DAO, &cs)
	return &cs, nil
}

func (m *Management) destroy(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	hash := ic.VM.GetCallingScriptHash()
	err := m.Destroy(ic.DAO, hash)
	if err != nil {
		panic(err)
	}
	m.emitNotification(ic, "Destroy", hash)
	return stackitem.Null{}
}

// Destroy drops the given contract from the DAO along with its storage.
func (m *Management) Destroy(d *dao.Simple, hash util.Uint160) error {
	contract, err := m.GetContract(d, hash)
	if err != nil {
		return err
	}
	d.DeleteStorageItem(m.ID, m.makeContractKey(hash))
	d.DeleteStorageItem(m.ID, makeIDKey(prefixContractHash, contract.ID))

	var keys [][]byte
	d.Seek(contract.ID, storage.SeekRange{}, func(k, _ []byte) bool {
		keys = append(keys, append([]byte{}, k...))
		return true
	})
	for _, k := range keys {
		d.DeleteStorageItem(contract.ID, k)
	}
	return nil
}

func (m *Management) putContract(d *dao.Simple, cs *state.Contract) {
	data, err := cs.Bytes()
	if err != nil {
		panic(fmt.Errorf("failed to serialize contract state: %w", err))
	}
	d.PutStorageItem(m.ID, m.makeContractKey(cs.Hash), data)
	d.PutStorageItem(m.ID, makeIDKey(prefixContractHash, cs.ID), cs.Hash.BytesBE())
}

func makeIDKey(prefix byte, id int32) []byte {
	return []byte{prefix, byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24)}
}

func (m *Management) getNextContractID(d *dao.Simple) int32 {
	id := getIntWithKey(m.ID, d, keyNextAvailableID)
	setIntWithKey(m.ID, d, keyNextAvailableID, id+1)
	return int32(id)
}

func (m *Management) emitNotification(ic *interop.Context, name string, hash util.Uint160) {
	ne := stackitem.NewArray([]stackitem.Item{stackitem.NewByteArray(hash.BytesBE())})
	ic.AddNotification(m.Hash, name, ne)
}

func contractToStack(cs *state.Contract) stackitem.Item {
	si, err := cs.ToStackItem()
	if err != nil {
		panic(fmt.Errorf("contract to stack item: %w", err))
	}
	return si
}
