// Package state contains the typed records the engine persists or reports:
// deployed contracts, storage items, notifications and execution results.
package state

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/neoref/neoref/pkg/crypto/hash"
	"github.com/neoref/neoref/pkg/io"
	"github.com/neoref/neoref/pkg/smartcontract/manifest"
	"github.com/neoref/neoref/pkg/smartcontract/nef"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/emit"
	"github.com/neoref/neoref/pkg/vm/opcode"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// Contract holds information about a smart contract in the blockchain.
type Contract struct {
	ContractBase
	UpdateCounter uint16 `json:"updatecounter"`
}

// ContractBase represents a part shared by deployed and native contracts.
type ContractBase struct {
	ID       int32             `json:"id"`
	Hash     util.Uint160      `json:"hash"`
	NEF      nef.File          `json:"nef"`
	Manifest manifest.Manifest `json:"manifest"`
}

// CreateContractHash creates a deployed contract hash from the transaction
// sender, the contract checksum and its name.
func CreateContractHash(sender util.Uint160, checksum uint32, name string) util.Uint160 {
	w := io.NewBufBinWriter()
	emit.Opcodes(&w.BinWriter, opcode.ABORT)
	emit.Bytes(&w.BinWriter, sender.BytesBE())
	emit.Int(&w.BinWriter, int64(checksum))
	emit.String(&w.BinWriter, name)
	if w.Err != nil {
		panic(w.Err)
	}
	return hash.Hash160(w.Bytes())
}

// ToStackItem converts state.Contract to stackitem.Item.
func (c *Contract) ToStackItem() (stackitem.Item, error) {
	rawNef, err := c.NEF.Bytes()
	if err != nil {
		return nil, err
	}
	m, err := c.Manifest.ToStackItem()
	if err != nil {
		return nil, err
	}
	return stackitem.NewArray([]stackitem.Item{
		stackitem.Make(c.ID),
		stackitem.Make(int(c.UpdateCounter)),
		stackitem.NewByteArray(c.Hash.BytesBE()),
		stackitem.NewByteArray(rawNef),
		m,
	}), nil
}

// FromStackItem fills Contract's data from the given stack item if it is
// possible to do so.
func (c *Contract) FromStackItem(item stackitem.Item) error {
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 5 {
		return errors.New("invalid structure")
	}
	bi, ok := arr[0].Value().(*big.Int)
	if !ok {
		return errors.New("ID is not an integer")
	}
	if !bi.IsInt64() || bi.Int64() > math.MaxInt32 || bi.Int64() < math.MinInt32 {
		return errors.New("ID is not a correct int32")
	}
	c.ID = int32(bi.Int64())
	upd, ok := arr[1].Value().(*big.Int)
	if !ok {
		return errors.New("UpdateCounter is not an integer")
	}
	if !upd.IsInt64() || upd.Int64() > math.MaxUint16 || upd.Int64() < 0 {
		return errors.New("UpdateCounter is not a correct uint16")
	}
	c.UpdateCounter = uint16(upd.Int64())
	bytes, err := arr[2].TryBytes()
	if err != nil {
		return err
	}
	c.Hash, err = util.Uint160DecodeBytesBE(bytes)
	if err != nil {
		return err
	}
	bytes, err = arr[3].TryBytes()
	if err != nil {
		return err
	}
	c.NEF, err = nef.FileFromBytes(bytes)
	if err != nil {
		return err
	}
	m := new(manifest.Manifest)
	err = m.FromStackItem(arr[4])
	if err != nil {
		return err
	}
	c.Manifest = *m
	return nil
}

// Bytes returns a serialized Contract (a serialized stack item).
func (c *Contract) Bytes() ([]byte, error) {
	item, err := c.ToStackItem()
	if err != nil {
		return nil, err
	}
	return stackitem.Serialize(item)
}

// ContractFromBytes deserializes a Contract previously serialized with
// Bytes.
func ContractFromBytes(data []byte) (*Contract, error) {
	item, err := stackitem.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid contract state: %w", err)
	}
	c := new(Contract)
	if err := c.FromStackItem(item); err != nil {
		return nil, fmt.Errorf("invalid contract state: %w", err)
	}
	return c, nil
}
