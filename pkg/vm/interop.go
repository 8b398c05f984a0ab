package vm

import (
	"github.com/neoref/neoref/pkg/util"
)

// GetCurrentScriptHash implements the ScriptHashGetter interface.
func (v *VM) GetCurrentScriptHash() util.Uint160 {
	if ctx := v.Context(); ctx != nil {
		return ctx.ScriptHash()
	}
	return util.Uint160{}
}

// GetCallingScriptHash implements the ScriptHashGetter interface.
func (v *VM) GetCallingScriptHash() util.Uint160 {
	if ctx := v.Context(); ctx != nil {
		return ctx.callingScriptHash
	}
	return util.Uint160{}
}

// GetEntryScriptHash implements the ScriptHashGetter interface.
func (v *VM) GetEntryScriptHash() util.Uint160 {
	if len(v.istack) == 0 {
		return util.Uint160{}
	}
	return v.istack[0].ScriptHash()
}

// PopContext pops the current context from the invocation stack unloading
// it. It's used by the host when a callee FAULTs and the fault is caught:
// contexts down to the caller are discarded with their per-call state
// rolled back.
func (v *VM) PopContext(commit bool) *Context {
	if len(v.istack) == 0 {
		return nil
	}
	ctx := v.istack[len(v.istack)-1]
	v.istack = v.istack[:len(v.istack)-1]
	v.unloadContext(ctx, commit)
	return ctx
}
