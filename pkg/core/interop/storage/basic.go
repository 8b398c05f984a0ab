// Package storage implements the System.Storage.* syscall family over the
// snapshot layer of the interop context.
package storage

import (
	"errors"
	"fmt"

	"github.com/neoref/neoref/pkg/core/interop"
	corestorage "github.com/neoref/neoref/pkg/core/storage"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

var (
	// ErrGasLimitExceeded is returned from interops when there is not
	// enough gas left to complete the operation.
	ErrGasLimitExceeded = errors.New("gas limit exceeded")
)

// getContextInternal pushes the storage context for the executing
// contract.
func getContextInternal(ic *interop.Context, isReadOnly bool) error {
	contract, err := ic.GetContract(ic.DAO, ic.VM.GetCurrentScriptHash())
	if err != nil {
		return fmt.Errorf("no contract state: %w", err)
	}
	sc := &interop.StorageContext{
		ID:       contract.ID,
		ReadOnly: isReadOnly,
	}
	ic.VM.Estack().Push(stackitem.NewInterop(sc))
	return nil
}

// GetContext returns the storage context for the executing contract.
func GetContext(ic *interop.Context) error {
	return getContextInternal(ic, false)
}

// GetReadOnlyContext returns the read-only storage context for the
// executing contract.
func GetReadOnlyContext(ic *interop.Context) error {
	return getContextInternal(ic, true)
}

// AsReadOnly converts the given storage context to a read-only one.
func AsReadOnly(ic *interop.Context) error {
	sc, err := popContext(ic)
	if err != nil {
		return err
	}
	if !sc.ReadOnly {
		sc = &interop.StorageContext{
			ID:       sc.ID,
			ReadOnly: true,
		}
	}
	ic.VM.Estack().Push(stackitem.NewInterop(sc))
	return nil
}

func popContext(ic *interop.Context) (*interop.StorageContext, error) {
	scItem, ok := ic.VM.Estack().Pop().(*stackitem.Interop)
	if !ok {
		return nil, errors.New("not a storage context")
	}
	sc, ok := scItem.Value().(*interop.StorageContext)
	if !ok {
		return nil, errors.New("not a storage context")
	}
	return sc, nil
}

// Get returns the stored value for the given key or Null.
func Get(ic *interop.Context) error {
	sc, err := popContext(ic)
	if err != nil {
		return err
	}
	key := ic.VM.Estack().PopBytes()
	si := ic.DAO.GetStorageItem(sc.ID, key)
	if si != nil {
		ic.VM.Estack().PushVal([]byte(si))
	} else {
		ic.VM.Estack().Push(stackitem.Null{})
	}
	return nil
}

// Put stores the given value for the given key, charging for the
// consumed storage.
func Put(ic *interop.Context) error {
	sc, err := popContext(ic)
	if err != nil {
		return err
	}
	if sc.ReadOnly {
		return errors.New("storage.Put called in read-only context")
	}
	key := ic.VM.Estack().PopBytes()
	value := ic.VM.Estack().PopBytes()
	if len(key) > corestorage.MaxStorageKeyLen {
		return errors.New("key is too big")
	}
	if len(value) > corestorage.MaxStorageValueLen {
		return errors.New("value is too big")
	}

	sizeInc := len(value)
	si := ic.DAO.GetStorageItem(sc.ID, key)
	if si == nil {
		sizeInc = len(key) + len(value)
	} else if len(value) > len(si) {
		sizeInc = len(value) - len(si)
	} else {
		sizeInc = 1
	}
	if !ic.VM.AddGas(int64(sizeInc) * ic.BaseStorageFee()) {
		return ErrGasLimitExceeded
	}
	ic.DAO.PutStorageItem(sc.ID, key, value)
	return nil
}

// Delete deletes the stored key-value pair.
func Delete(ic *interop.Context) error {
	sc, err := popContext(ic)
	if err != nil {
		return err
	}
	if sc.ReadOnly {
		return errors.New("storage.Delete called in read-only context")
	}
	key := ic.VM.Estack().PopBytes()
	ic.DAO.DeleteStorageItem(sc.ID, key)
	return nil
}

// LocalGet reads a value from the execution-scoped transient store.
func LocalGet(ic *interop.Context) error {
	key := ic.VM.Estack().PopBytes()
	if v, ok := ic.LocalStorage[string(key)]; ok {
		ic.VM.Estack().PushVal(v)
	} else {
		ic.VM.Estack().Push(stackitem.Null{})
	}
	return nil
}

// LocalPut writes a value into the execution-scoped transient store.
func LocalPut(ic *interop.Context) error {
	key := ic.VM.Estack().PopBytes()
	value := ic.VM.Estack().PopBytes()
	if len(key) > corestorage.MaxStorageKeyLen {
		return errors.New("key is too big")
	}
	if len(value) > corestorage.MaxStorageValueLen {
		return errors.New("value is too big")
	}
	ic.LocalStorage[string(key)] = value
	return nil
}

// LocalDelete drops a value from the execution-scoped transient store.
func LocalDelete(ic *interop.Context) error {
	key := ic.VM.Estack().PopBytes()
	delete(ic.LocalStorage, string(key))
	return nil
}
