package native

import (
	"fmt"
	"math/big"

	"github.com/neoref/neoref/pkg/core/dao"
	"github.com/neoref/neoref/pkg/crypto/keys"
	"github.com/neoref/neoref/pkg/encoding/bigint"
	"github.com/neoref/neoref/pkg/smartcontract"
	"github.com/neoref/neoref/pkg/smartcontract/manifest"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// Conversion helpers used by native method adapters: a failed conversion
// panics and faults the calling engine.

func toBigInt(s stackitem.Item) *big.Int {
	bi, err := s.TryInteger()
	if err != nil {
		panic(err)
	}
	return bi
}

func toUint64(s stackitem.Item) uint64 {
	bigInt := toBigInt(s)
	if !bigInt.IsUint64() {
		panic("bigint is not an uint64")
	}
	return bigInt.Uint64()
}

func toInt64(s stackitem.Item) int64 {
	bigInt := toBigInt(s)
	if !bigInt.IsInt64() {
		panic("bigint is not an int64")
	}
	return bigInt.Int64()
}

func toUint32(s stackitem.Item) uint32 {
	uint64Value := toUint64(s)
	if uint64Value > uint64(^uint32(0)) {
		panic("bigint does not fit into uint32")
	}
	return uint32(uint64Value)
}

func toUint8(s stackitem.Item) uint8 {
	uint64Value := toUint64(s)
	if uint64Value > 255 {
		panic("bigint does not fit into uint8")
	}
	return uint8(uint64Value)
}

func toUint160(s stackitem.Item) util.Uint160 {
	buf, err := s.TryBytes()
	if err != nil {
		panic(err)
	}
	u, err := util.Uint160DecodeBytesBE(buf)
	if err != nil {
		panic(err)
	}
	return u
}

func toUint256(s stackitem.Item) util.Uint256 {
	buf, err := s.TryBytes()
	if err != nil {
		panic(err)
	}
	u, err := util.Uint256DecodeBytesBE(buf)
	if err != nil {
		panic(err)
	}
	return u
}

func toString(s stackitem.Item) string {
	str, err := stackitem.ToString(s)
	if err != nil {
		panic(err)
	}
	return str
}

func toBytes(s stackitem.Item) []byte {
	buf, err := s.TryBytes()
	if err != nil {
		panic(err)
	}
	return buf
}

func toBool(s stackitem.Item) bool {
	b, err := s.TryBool()
	if err != nil {
		panic(err)
	}
	return b
}

func toPublicKey(s stackitem.Item) *keys.PublicKey {
	buf, err := s.TryBytes()
	if err != nil {
		panic(err)
	}
	pub := new(keys.PublicKey)
	if err := pub.DecodeBytes(buf); err != nil {
		panic(err)
	}
	return pub
}

// makeUint160Key creates a storage key with the given prefix for the
// given account.
func makeUint160Key(prefix byte, h util.Uint160) []byte {
	k := make([]byte, util.Uint160Size+1)
	k[0] = prefix
	copy(k[1:], h.BytesBE())
	return k
}

// setIntWithKey puts an integer value under the given key.
func setIntWithKey(id int32, d *dao.Simple, key []byte, value int64) {
	d.PutStorageItem(id, key, bigint.ToBytes(big.NewInt(value)))
}

// getIntWithKey returns an integer value stored under the given key,
// panicking if it's missing.
func getIntWithKey(id int32, d *dao.Simple, key []byte) int64 {
	si := d.GetStorageItem(id, key)
	if si == nil {
		panic(fmt.Errorf("item doesn't exist"))
	}
	return bigint.FromBytes(si).Int64()
}

// getIntWithKeyDefault is like getIntWithKey with a fallback value for a
// missing item.
func getIntWithKeyDefault(id int32, d *dao.Simple, key []byte, def int64) int64 {
	si := d.GetStorageItem(id, key)
	if si == nil {
		return def
	}
	return bigint.FromBytes(si).Int64()
}

// newDescriptor creates a manifest method descriptor.
func newDescriptor(name string, ret smartcontract.ParamType, ps ...manifest.Parameter) *manifest.Method {
	return &manifest.Method{
		Name:       name,
		Parameters: ps,
		ReturnType: ret,
	}
}
