// Package iterator implements the System.Iterator.* syscalls over any
// host-provided iterator handle.
package iterator

import (
	"errors"

	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// Iterator is the interface iterator handles must implement.
type Iterator interface {
	Next() bool
	Value() stackitem.Item
}

// Next advances the iterator, pushes true on the stack if there is an
// element to read.
func Next(ic *interop.Context) error {
	iop, ok := ic.VM.Estack().Pop().(*stackitem.Interop)
	if !ok {
		return errors.New("not an iterator")
	}
	arr, ok := iop.Value().(Iterator)
	if !ok {
		return errors.New("not an iterator")
	}
	ic.VM.Estack().PushVal(arr.Next())

	return nil
}

// Value returns the current iterator value and depends on the iterator
// type, the details are up to the contract.
func Value(ic *interop.Context) error {
	iop, ok := ic.VM.Estack().Pop().(*stackitem.Interop)
	if !ok {
		return errors.New("not an iterator")
	}
	arr, ok := iop.Value().(Iterator)
	if !ok {
		return errors.New("not an iterator")
	}
	ic.VM.Estack().Push(arr.Value())

	return nil
}
