package storage

import (
	"bytes"
	"errors"

	"github.com/neoref/neoref/pkg/core/interop"
	corestorage "github.com/neoref/neoref/pkg/core/storage"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// FindFlags represents the options of the storage iterator returned by
// System.Storage.Find.
type FindFlags byte

// Option constants.
const (
	// FindDefault returns both keys and values as a key-value struct.
	FindDefault FindFlags = 0
	// FindKeysOnly returns only keys.
	FindKeysOnly FindFlags = 1 << 0
	// FindRemovePrefix strips the lookup prefix from keys.
	FindRemovePrefix FindFlags = 1 << 1
	// FindValuesOnly returns only values.
	FindValuesOnly FindFlags = 1 << 2
	// FindDeserialize deserializes the values before returning.
	FindDeserialize FindFlags = 1 << 3
	// FindPick0 returns the 0-th element of the deserialized value.
	FindPick0 FindFlags = 1 << 4
	// FindPick1 returns the 1-st element of the deserialized value.
	FindPick1 FindFlags = 1 << 5
	// FindBackwards denotes a descending seek direction.
	FindBackwards FindFlags = 1 << 7

	// FindAll is the (impossible) combination of all flags.
	FindAll = FindDefault | FindKeysOnly | FindRemovePrefix | FindValuesOnly |
		FindDeserialize | FindPick0 | FindPick1 | FindBackwards
)

// Iterator is the storage iterator exposed through System.Iterator.*.
type Iterator struct {
	seekres []corestorage.KeyValue
	curr    int

	opts   FindFlags
	prefix []byte
}

// NewIterator creates a new storage iterator over the materialized seek
// result with the given options.
func NewIterator(seekres []corestorage.KeyValue, prefix []byte, opts FindFlags) *Iterator {
	return &Iterator{
		seekres: seekres,
		curr:    -1,
		opts:    opts,
		prefix:  bytes.Clone(prefix),
	}
}

// Next advances the iterator and returns true if Value can be called at
// the current position.
func (s *Iterator) Next() bool {
	s.curr++
	return s.curr < len(s.seekres)
}

// Value returns the current iterator value, depending on the options it
// can be a key, a value, a key-value struct or a deserialized value
// projection.
func (s *Iterator) Value() stackitem.Item {
	if s.curr < 0 || s.curr >= len(s.seekres) {
		panic("iterator index out of range")
	}
	key := s.seekres[s.curr].Key
	if s.opts&FindRemovePrefix == 0 {
		key = append(bytes.Clone(s.prefix), key...)
	}
	if s.opts&FindKeysOnly != 0 {
		return stackitem.NewByteArray(key)
	}
	value := stackitem.Item(stackitem.NewByteArray(s.seekres[s.curr].Value))
	if s.opts&FindDeserialize != 0 {
		bs := s.seekres[s.curr].Value
		var err error
		value, err = stackitem.Deserialize(bs)
		if err != nil {
			panic(err)
		}
	}
	if s.opts&FindPick0 != 0 {
		value = value.Value().([]stackitem.Item)[0]
	} else if s.opts&FindPick1 != 0 {
		value = value.Value().([]stackitem.Item)[1]
	}
	if s.opts&FindValuesOnly != 0 {
		return value
	}
	return stackitem.NewStruct([]stackitem.Item{
		stackitem.NewByteArray(key),
		value,
	})
}

// Find finds stored key-value pair matching the given key prefix and
// pushes an iterator over the result set.
func Find(ic *interop.Context) error {
	sc, err := popContext(ic)
	if err != nil {
		return err
	}
	prefix := ic.VM.Estack().PopBytes()
	opts := ic.VM.Estack().PopBigInt().Int64()
	if opts&^int64(FindAll) != 0 {
		return errors.New("invalid find options")
	}
	if opts&int64(FindKeysOnly) != 0 && opts&int64(FindValuesOnly) != 0 {
		return errors.New("KeysOnly conflicts with ValuesOnly")
	}
	if opts&int64(FindPick0) != 0 && opts&int64(FindPick1) != 0 {
		return errors.New("Pick0 conflicts with Pick1")
	}
	if opts&int64(FindDeserialize) == 0 && (opts&int64(FindPick0) != 0 || opts&int64(FindPick1) != 0) {
		return errors.New("PickN is specified without Deserialize")
	}

	// Materialize the seek result: the iterator must observe a stable
	// snapshot of this moment even if the contract keeps writing.
	var seekres []corestorage.KeyValue
	backwards := opts&int64(FindBackwards) != 0
	ic.DAO.Seek(sc.ID, corestorage.SeekRange{Prefix: prefix, Backwards: backwards}, func(k, v []byte) bool {
		seekres = append(seekres, corestorage.KeyValue{
			Key:   bytes.Clone(k[len(prefix):]),
			Value: bytes.Clone(v),
		})
		return true
	})

	item := stackitem.NewInterop(NewIterator(seekres, prefix, FindFlags(opts)))
	ic.VM.Estack().Push(item)
	return nil
}
