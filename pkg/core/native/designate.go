package native

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/neoref/neoref/pkg/config"
	"github.com/neoref/neoref/pkg/core/dao"
	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/core/native/nativenames"
	"github.com/neoref/neoref/pkg/core/native/noderoles"
	"github.com/neoref/neoref/pkg/core/storage"
	"github.com/neoref/neoref/pkg/crypto/keys"
	"github.com/neoref/neoref/pkg/smartcontract"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/smartcontract/manifest"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// Designate represents the RoleManagement native contract.
type Designate struct {
	interop.ContractMD
	NEO *NEO
}

const designateContractID = -8

// maxNodeCount is the maximum number of nodes in a role.
const maxNodeCount = 32

var errInvalidRole = errors.New("invalid role")

func newDesignate() *Designate {
	s := &Designate{
		ContractMD: *interop.NewContractMD(nativenames.Designation, designateContractID, nil),
	}
	defer s.Finalize()

	desc := newDescriptor("getDesignatedByRole", smartcontract.ArrayType,
		manifest.NewParameter("role", smartcontract.IntegerType),
		manifest.NewParameter("index", smartcontract.IntegerType))
	md := newMethodAndPrice(s.getDesignatedByRole, 1<<15, callflag.ReadStates)
	s.AddMethod(md, desc)

	desc = newDescriptor("designateAsRole", smartcontract.VoidType,
		manifest.NewParameter("role", smartcontract.IntegerType),
		manifest.NewParameter("nodes", smartcontract.ArrayType))
	md = newMethodAndPrice(s.designateAsRole, 1<<15, callflag.States|callflag.AllowNotify)
	s.AddMethod(md, desc)

	s.AddEvent(nil, "Designation",
		manifest.NewParameter("Role", smartcontract.IntegerType),
		manifest.NewParameter("BlockIndex", smartcontract.IntegerType),
	)

	return s
}

// Metadata implements the Contract interface.
func (s *Designate) Metadata() *interop.ContractMD {
	return &s.ContractMD
}

// ActiveIn implements the Contract interface.
func (s *Designate) ActiveIn() *config.Hardfork {
	return nil
}

// Initialize implements the Contract interface.
func (s *Designate) Initialize(ic *interop.Context, hf *config.Hardfork) error {
	return nil
}

// OnPersist implements the Contract interface.
func (s *Designate) OnPersist(ic *interop.Context) error {
	return nil
}

// PostPersist implements the Contract interface.
func (s *Designate) PostPersist(ic *interop.Context) error {
	return nil
}

func rolekey(r noderoles.Role, index uint32) []byte {
	key := make([]byte, 5)
	key[0] = byte(r)
	binary.BigEndian.PutUint32(key[1:], index)
	return key
}

func (s *Designate) getDesignatedByRole(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	r := noderoles.Role(toUint8(args[0]))
	if !noderoles.IsValid(r) {
		panic(errInvalidRole)
	}
	index := toUint32(args[1])
	if index > ic.BlockHeight()+1 {
		panic("index is out of range")
	}
	pubs, _, err := s.GetDesignatedByRole(ic.DAO, r, index)
	if err != nil {
		panic(err)
	}
	return pubsToArray(pubs)
}

// GetDesignatedByRole returns the nodes designated for the given role as
// of the given index, plus the height the designation was made at.
func (s *Designate) GetDesignatedByRole(d *dao.Simple, r noderoles.Role, index uint32) (keys.PublicKeys, uint32, error) {
	var (
		result keys.PublicKeys
		at     uint32
	)
	d.Seek(s.ID, storage.SeekRange{
		Prefix:    []byte{byte(r)},
		Start:     rolekey(r, index)[1:],
		Backwards: true,
	}, func(k, v []byte) bool {
		if len(k) == 5 {
			at = binary.BigEndian.Uint32(k[1:])
			result = decodeNodeList(v)
		}
		return false
	})
	return result, at, nil
}

func decodeNodeList(data []byte) keys.PublicKeys {
	item, err := stackitem.Deserialize(data)
	if err != nil {
		panic(err)
	}
	arr := item.Value().([]stackitem.Item)
	res := make(keys.PublicKeys, len(arr))
	for i := range arr {
		b, err := arr[i].TryBytes()
		if err != nil {
			panic(err)
		}
		res[i] = new(keys.PublicKey)
		if err := res[i].DecodeBytes(b); err != nil {
			panic(err)
		}
	}
	return res
}

func encodeNodeList(pubs keys.PublicKeys) []byte {
	arr := make([]stackitem.Item, len(pubs))
	for i := range pubs {
		arr[i] = stackitem.NewByteArray(pubs[i].Bytes())
	}
	data, err := stackitem.Serialize(stackitem.NewArray(arr))
	if err != nil {
		panic(err)
	}
	return data
}

func (s *Designate) designateAsRole(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	r := noderoles.Role(toUint8(args[0]))
	if !noderoles.IsValid(r) {
		panic(errInvalidRole)
	}
	arr := args[1].Value().([]stackitem.Item)
	if len(arr) == 0 || len(arr) > maxNodeCount {
		panic("invalid node count")
	}
	if !s.NEO.checkCommittee(ic) {
		panic("invalid committee signature")
	}
	pubs := make(keys.PublicKeys, len(arr))
	for i := range arr {
		pubs[i] = toPublicKey(arr[i])
	}
	pubs = pubs.Unique()
	pubs.Sort()

	index := ic.BlockHeight() + 1
	if index > math.MaxUint32-1 {
		panic("wrong index")
	}
	ic.DAO.PutStorageItem(s.ID, rolekey(r, index), encodeNodeList(pubs))

	ev := stackitem.NewArray([]stackitem.Item{
		stackitem.Make(int(r)),
		stackitem.Make(ic.BlockHeight()),
	})
	ic.AddNotification(s.Hash, "Designation", ev)
	return stackitem.Null{}
}
