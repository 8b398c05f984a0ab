// Package contract implements the System.Contract.* syscall family:
// inter-contract calls, method tokens and account helpers.
package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/core/state"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/smartcontract/manifest"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/stackitem"
	"github.com/neoref/neoref/pkg/vm/vmerror"
)

// ErrNativeCall is returned for failed calls from native.
var ErrNativeCall = errors.New("failed native call")

// Call performs a contract call with the given args via
// System.Contract.Call.
func Call(ic *interop.Context) error {
	h := ic.VM.Estack().PopBytes()
	method := ic.VM.Estack().PopString()
	fs := callflag.CallFlag(int32(ic.VM.Estack().PopBigInt().Int64()))
	if fs&^callflag.All != 0 {
		return errors.New("call flags out of range")
	}
	args := ic.VM.Estack().Pop().(*stackitem.Array).Value().([]stackitem.Item)
	u, err := util.Uint160DecodeBytesBE(h)
	if err != nil {
		return fmt.Errorf("%w: %v", vmerror.ErrBadScriptHash, err)
	}

	return callExFromContract(ic, u, method, args, fs)
}

// callExFromContract calls a contract with a manifest-based permission
// check against the caller.
func callExFromContract(ic *interop.Context, h util.Uint160, name string, args []stackitem.Item, f callflag.CallFlag) error {
	cs, err := ic.GetContract(ic.DAO, h)
	if err != nil {
		return fmt.Errorf("%w: %v", vmerror.ErrContractNotFound, h.StringLE())
	}

	if strings.HasPrefix(name, "_") {
		return fmt.Errorf("%w: %s", vmerror.ErrMethodNotFound, name)
	}
	md := cs.Manifest.ABI.GetMethod(name, len(args))
	if md == nil {
		return fmt.Errorf("%w: %s/%d", vmerror.ErrMethodNotFound, name, len(args))
	}

	caller := ic.VM.GetCurrentScriptHash()
	if callingCS, err := ic.GetContract(ic.DAO, caller); err == nil {
		if !callingCS.Manifest.CanCall(h, &cs.Manifest, name) {
			return fmt.Errorf("%w: disallowed method call %s/%s", vmerror.ErrPermissionDenied, h.StringLE(), name)
		}
	}
	return callExInternal(ic, cs, name, args, f)
}

// CallExInternal calls a contract skipping the caller permission check,
// it's used by method tokens and native contracts.
func CallExInternal(ic *interop.Context, cs *state.Contract, name string, args []stackitem.Item, f callflag.CallFlag) error {
	return callExInternal(ic, cs, name, args, f)
}

func callExInternal(ic *interop.Context, cs *state.Contract, name string,
	args []stackitem.Item, f callflag.CallFlag) error {
	md := cs.Manifest.ABI.GetMethod(name, len(args))
	if md == nil {
		return fmt.Errorf("%w: %s/%d", vmerror.ErrMethodNotFound, name, len(args))
	}
	if md.Safe {
		f &^= callflag.WriteStates | callflag.AllowNotify
	}

	ic.Invocations[cs.Hash]++
	f &= ic.VM.Context().GetCallFlags()

	// Snapshot layering: the callee works on its own subsnapshot and a
	// notification cursor, both discarded if it FAULTs.
	parentDAO := ic.DAO
	ic.DAO = parentDAO.GetWrapped()
	notificationCursor := ic.NotificationsCount()

	ic.VM.LoadNEFMethod(cs.NEF.Script, cs.Hash, f, md.Offset)
	ctx := ic.VM.Context()
	ctx.NEF = &cs.NEF
	ctx.SetOnUnload(func(commit bool) error {
		if commit {
			_, err := ic.DAO.Persist()
			if err != nil {
				ic.DAO = parentDAO
				return fmt.Errorf("failed to persist call changes: %w", err)
			}
			ic.DAO = parentDAO
			return nil
		}
		ic.DAO = parentDAO
		ic.RollbackNotifications(notificationCursor)
		return nil
	})

	for i := len(args) - 1; i >= 0; i-- {
		ic.VM.Estack().Push(args[i])
	}
	if init := cs.Manifest.ABI.GetMethod(manifest.MethodInit, 0); init != nil {
		ic.VM.Call(init.Offset)
	}
	return nil
}

// GetCallFlags returns the current context calling flags.
func GetCallFlags(ic *interop.Context) error {
	ic.VM.Estack().PushVal(int64(ic.VM.Context().GetCallFlags()))
	return nil
}

// LoadToken returns a CALLT handler for the given context: it performs a
// call pre-bound by the executing NEF's method-token table.
func LoadToken(ic *interop.Context) func(id int32) error {
	return func(id int32) error {
		ctx := ic.VM.Context()
		if !ctx.IsDeployed() {
			return errors.New("CALLT is not allowed for non-deployed contracts")
		}
		if !ctx.GetCallFlags().Has(callflag.ReadStates | callflag.AllowCall) {
			return fmt.Errorf("%w: missing flags for CALLT", vmerror.ErrPermissionDenied)
		}
		tokens := ctx.NEF.Tokens
		if int(id) >= len(tokens) || id < 0 {
			return fmt.Errorf("%w: token id %d", vmerror.ErrOutOfRange, id)
		}
		tok := tokens[id]
		if int(tok.ParamCount) > ic.VM.Estack().Len() {
			return vmerror.ErrStackUnderflow
		}
		args := make([]stackitem.Item, tok.ParamCount)
		for i := range args {
			args[i] = ic.VM.Estack().Pop()
		}
		cs, err := ic.GetContract(ic.DAO, tok.Hash)
		if err != nil {
			return fmt.Errorf("%w: %v", vmerror.ErrContractNotFound, tok.Hash.StringLE())
		}
		return callExInternal(ic, cs, tok.Method, args, tok.CallFlag)
	}
}
