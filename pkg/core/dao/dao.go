// Package dao provides a typed data access layer over the raw key-value
// store: contract storage items, persisted blocks and transactions, and
// the block-height bookkeeping the ledger contract reads.
package dao

import (
	"encoding/binary"
	"errors"

	"github.com/neoref/neoref/pkg/core/block"
	"github.com/neoref/neoref/pkg/core/storage"
	"github.com/neoref/neoref/pkg/core/transaction"
	"github.com/neoref/neoref/pkg/io"
	"github.com/neoref/neoref/pkg/util"
)

// Simple is a memory-cached DAO over any lower store layer. GetWrapped
// gives a per-call subsnapshot that is either persisted into the parent
// or dropped.
type Simple struct {
	Store *storage.MemCachedStore
}

// NewSimple creates a new Simple dao using the provided backend store.
func NewSimple(backend storage.Store) *Simple {
	return &Simple{Store: storage.NewMemCachedStore(backend)}
}

// GetWrapped returns a new DAO instance with another layer of wrapped
// MemCachedStore around the current DAO Store.
func (dao *Simple) GetWrapped() *Simple {
	return NewSimple(dao.Store)
}

// Persist flushes all the changes made into the lower layer.
func (dao *Simple) Persist() (int, error) {
	return dao.Store.Persist()
}

func (dao *Simple) makeStorageItemKey(id int32, key []byte) []byte {
	buf := make([]byte, 5+len(key))
	buf[0] = byte(storage.STStorage)
	binary.LittleEndian.PutUint32(buf[1:], uint32(id))
	copy(buf[5:], key)
	return buf
}

// GetStorageItem returns the StorageItem if it exists in the given store,
// nil otherwise.
func (dao *Simple) GetStorageItem(id int32, key []byte) []byte {
	b, err := dao.Store.Get(dao.makeStorageItemKey(id, key))
	if err != nil {
		return nil
	}
	return b
}

// PutStorageItem puts the given StorageItem for the given id with the
// given key into the given store.
func (dao *Simple) PutStorageItem(id int32, key []byte, si []byte) {
	dao.Store.Put(dao.makeStorageItemKey(id, key), si)
}

// DeleteStorageItem drops the storage item for the given id with the
// given key from the store.
func (dao *Simple) DeleteStorageItem(id int32, key []byte) {
	dao.Store.Delete(dao.makeStorageItemKey(id, key))
}

// Seek executes f for all storage items matching the given search prefix
// in the given contract id namespace. If the key or the value is to be
// used outside of f, they may not be copied. Seek continues iterating
// until false is returned from f.
func (dao *Simple) Seek(id int32, rng storage.SeekRange, f func(k, v []byte) bool) {
	rng.Prefix = dao.makeStorageItemKey(id, rng.Prefix)
	dao.Store.Seek(rng, func(k, v []byte) bool {
		return f(k[5:], v)
	})
}

func makeExecutableKey(hash util.Uint256) []byte {
	return storage.AppendPrefix(storage.DataExecutable, hash.BytesBE())
}

// Executable subtype tags.
const (
	execBlock       byte = 1
	execTransaction byte = 2
)

var (
	// ErrHasConflicts is returned when the transaction is in the
	// conflicting hashes list.
	ErrHasConflicts = errors.New("transaction has conflicts")
	// ErrAlreadyExists is returned when the executable being stored is
	// already in the DB.
	ErrAlreadyExists = errors.New("already exists")
)

// StoreAsBlock stores the given block as DataExecutable and updates the
// index to hash mapping.
func (dao *Simple) StoreAsBlock(b *block.Block) error {
	buf := io.NewBufBinWriter()
	buf.WriteB(execBlock)
	b.EncodeBinary(&buf.BinWriter)
	if buf.Err != nil {
		return buf.Err
	}
	dao.Store.Put(makeExecutableKey(b.Hash()), buf.Bytes())

	index := make([]byte, 4)
	binary.LittleEndian.PutUint32(index, b.Index)
	dao.Store.Put(storage.AppendPrefix(storage.IXBlockIndex, index), b.Hash().BytesBE())
	return nil
}

// GetBlock reads the block from the store by hash.
func (dao *Simple) GetBlock(hash util.Uint256) (*block.Block, error) {
	data, err := dao.Store.Get(makeExecutableKey(hash))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || data[0] != execBlock {
		return nil, storage.ErrKeyNotFound
	}
	b := &block.Block{}
	if err := io.FromByteArray(b, data[1:]); err != nil {
		return nil, err
	}
	return b, nil
}

// GetBlockHashByIndex returns the hash of the block with the given index.
func (dao *Simple) GetBlockHashByIndex(index uint32) (util.Uint256, error) {
	key := make([]byte, 4)
	binary.LittleEndian.PutUint32(key, index)
	data, err := dao.Store.Get(storage.AppendPrefix(storage.IXBlockIndex, key))
	if err != nil {
		return util.Uint256{}, err
	}
	return util.Uint256DecodeBytesBE(data)
}

// StoreAsTransaction stores the given transaction with the given block
// index.
func (dao *Simple) StoreAsTransaction(tx *transaction.Transaction, index uint32) error {
	buf := io.NewBufBinWriter()
	buf.WriteB(execTransaction)
	buf.WriteU32LE(index)
	tx.EncodeBinary(&buf.BinWriter)
	if buf.Err != nil {
		return buf.Err
	}
	key := makeExecutableKey(tx.Hash())
	if _, err := dao.Store.Get(key); err == nil {
		return ErrAlreadyExists
	}
	dao.Store.Put(key, buf.Bytes())
	return nil
}

// GetTransaction returns the Transaction and its height by the given hash
// if it exists in the store.
func (dao *Simple) GetTransaction(hash util.Uint256) (*transaction.Transaction, uint32, error) {
	data, err := dao.Store.Get(makeExecutableKey(hash))
	if err != nil {
		return nil, 0, err
	}
	if len(data) < 5 || data[0] != execTransaction {
		return nil, 0, storage.ErrKeyNotFound
	}
	height := binary.LittleEndian.Uint32(data[1:5])
	tx := &transaction.Transaction{}
	if err := io.FromByteArray(tx, data[5:]); err != nil {
		return nil, 0, err
	}
	return tx, height, nil
}

// StoreAsCurrentBlock stores the hash and the index of the given block.
func (dao *Simple) StoreAsCurrentBlock(b *block.Block) {
	buf := make([]byte, 36)
	h := b.Hash()
	copy(buf, h.BytesLE())
	binary.LittleEndian.PutUint32(buf[32:], b.Index)
	dao.Store.Put([]byte{byte(storage.SYSCurrentBlock)}, buf)
}

// GetCurrentBlockHeight returns the current block height found in the
// underlying store.
func (dao *Simple) GetCurrentBlockHeight() (uint32, error) {
	b, err := dao.Store.Get([]byte{byte(storage.SYSCurrentBlock)})
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[32:36]), nil
}

// GetCurrentHeaderHash returns the hash of the current block.
func (dao *Simple) GetCurrentHeaderHash() (util.Uint256, error) {
	b, err := dao.Store.Get([]byte{byte(storage.SYSCurrentBlock)})
	if err != nil {
		return util.Uint256{}, err
	}
	return util.Uint256DecodeBytesLE(b[:32])
}
