// Package vm implements the deterministic stack-based virtual machine:
// instruction dispatch, the invocation and evaluation stacks, slots,
// reference counting and exception frames. All outside effects go through
// the SyscallHandler and LoadToken hooks provided by the host.
package vm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/neoref/neoref/pkg/config/limits"
	"github.com/neoref/neoref/pkg/encoding/bigint"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/opcode"
	"github.com/neoref/neoref/pkg/vm/stackitem"
	"github.com/neoref/neoref/pkg/vm/vmerror"
)

type errorAtInstruct struct {
	ip  int
	op  opcode.Opcode
	err any
}

func (e *errorAtInstruct) Error() string {
	return fmt.Sprintf("at instruction %d (%s): %s", e.ip, e.op, e.err)
}

func (e *errorAtInstruct) Unwrap() error {
	if err, ok := e.err.(error); ok {
		return err
	}
	return nil
}

func newError(ip int, op opcode.Opcode, err any) *errorAtInstruct {
	return &errorAtInstruct{ip: ip, op: op, err: err}
}

// SyscallHandler is a type for the syscall handler.
type SyscallHandler = func(v *VM, id uint32) error

// VM represents an instance of the virtual machine.
type VM struct {
	state State

	istack []*Context

	// Keeps the last context estack around after HALT for result
	// reporting.
	resultStack *Stack

	uncaughtException stackitem.Item

	refs refCounter

	gasConsumed int64
	// GasLimit is the maximum amount of gas the execution may consume,
	// -1 for infinite.
	GasLimit int64

	// SyscallHandler handles SYSCALL opcodes.
	SyscallHandler SyscallHandler

	// LoadToken handles CALLT opcodes.
	LoadToken func(id int32) error

	getPrice priceGetter
}

// priceGetter returns the price of the given instruction, it's called
// before executing it.
type priceGetter = func(opcode.Opcode, []byte) int64

// New returns a new VM object ready to load scripts.
func New() *VM {
	return &VM{
		state:    NoneState,
		istack:   make([]*Context, 0, 8),
		GasLimit: -1,
	}
}

// Istack returns the invocation stack (top is the last element).
func (v *VM) Istack() []*Context {
	return v.istack
}

// Estack returns the evaluation stack of the current context, or the
// result stack after the machine has halted.
func (v *VM) Estack() *Stack {
	if ctx := v.Context(); ctx != nil {
		return ctx.estack
	}
	return v.resultStack
}

// Context returns the current executed context, nil if none.
func (v *VM) Context() *Context {
	if len(v.istack) == 0 {
		return nil
	}
	return v.istack[len(v.istack)-1]
}

// PopResult is used to pop the first item of the evaluation stack. This
// allows us to test the compiler and the vm in a bi-directional way.
func (v *VM) PopResult() any {
	if v.Estack().Len() == 0 {
		return nil
	}
	return v.Estack().Pop().Value()
}

// State returns the state for the VM.
func (v *VM) State() State {
	return v.state
}

// HasFailed returns whether the VM is in the failed state now. Usually
// used to check status after Run.
func (v *VM) HasFailed() bool {
	return v.state.HasFlag(FaultState)
}

// HasHalted returns whether the VM is in the halted state.
func (v *VM) HasHalted() bool {
	return v.state.HasFlag(HaltState)
}

// Ready returns true if the VM is ready to execute the loaded program.
func (v *VM) Ready() bool {
	return len(v.istack) > 0
}

// UncaughtException returns the exception item that FAULTed the machine,
// nil if none.
func (v *VM) UncaughtException() stackitem.Item {
	return v.uncaughtException
}

// GasConsumed returns the amount of GAS consumed during execution.
func (v *VM) GasConsumed() int64 {
	return v.gasConsumed
}

// AddGas consumes the specified amount of gas. It returns true if gas
// limit wasn't exceeded.
func (v *VM) AddGas(gas int64) bool {
	v.gasConsumed += gas
	return v.GasLimit < 0 || v.gasConsumed <= v.GasLimit
}

// SetPriceGetter registers the given PriceGetterFunc in the VM. The
// callback is called before executing each instruction and the returned
// price is charged.
func (v *VM) SetPriceGetter(f priceGetter) {
	v.getPrice = f
}

// LoadScript loads a script into the VM.
func (v *VM) LoadScript(b []byte) {
	v.LoadScriptWithFlags(b, callflag.All)
}

// LoadScriptWithFlags loads the script and sets the given call flags for
// the new context.
func (v *VM) LoadScriptWithFlags(b []byte, f callflag.CallFlag) {
	v.loadScriptWithCallingHash(b, util.Uint160{}, f, false)
}

// LoadScriptWithHash is similar to LoadScriptWithFlags but sets the
// calling hash explicitly. The executing hash of the new context is the
// hash of the script itself.
func (v *VM) LoadScriptWithHash(b []byte, hash util.Uint160, f callflag.CallFlag) {
	v.loadScriptWithCallingHash(b, hash, f, true)
}

func (v *VM) loadScriptWithCallingHash(b []byte, caller util.Uint160, f callflag.CallFlag, hasCaller bool) {
	if len(v.istack) >= limits.MaxInvocationStackSize {
		panic(fmt.Errorf("%w: invocation stack", vmerror.ErrLimitExceeded))
	}
	ctx := NewContext(b)
	ctx.estack = newStack("evaluation", &v.refs)
	ctx.callFlag = f
	if hasCaller {
		ctx.callingScriptHash = caller
	} else if curr := v.Context(); curr != nil {
		ctx.callingScriptHash = curr.ScriptHash()
	}
	v.istack = append(v.istack, ctx)
	v.state = NoneState
}

// LoadNEFMethod allows to create a context to execute a method from the
// NEF file with the specified executing hash, call flags and initial
// position in the script. The calling hash is the executing hash of the
// current context.
func (v *VM) LoadNEFMethod(exe []byte, hash util.Uint160, f callflag.CallFlag, offset int) *Context {
	v.LoadScriptWithFlags(exe, f)
	ctx := v.Context()
	ctx.scriptHash = hash
	ctx.hashInit = true
	ctx.Jump(offset)
	return ctx
}

// Run starts execution of the loaded program and continues until HALT or
// FAULT. The error returned carries the fault cause (nil on HALT).
func (v *VM) Run() error {
	if !v.Ready() {
		v.state = FaultState
		return errors.New("no program loaded")
	}

	if v.state.HasFlag(FaultState) {
		// VM already ran something and failed, in general its state is
		// undefined in this case so we can't run anything.
		return errors.New("VM has failed")
	}
	// HaltState (the default) or BreakState are safe to continue.
	v.state = NoneState
	for {
		switch {
		case v.state.HasFlag(FaultState):
			// Should be caught and reported already by the v.Step,
			// but we're checking here anyway just in case.
			return errors.New("VM has failed")
		case v.state.HasFlag(HaltState), v.state.HasFlag(BreakState):
			// Normal exit from this loop.
			return nil
		case v.state == NoneState:
			if err := v.Step(); err != nil {
				return err
			}
		default:
			v.state = FaultState
			return errors.New("unknown state")
		}
	}
}

// Step performs one step of execution converting any internal error into
// the FAULT state.
func (v *VM) Step() error {
	ctx := v.Context()
	op, param, err := ctx.Next()
	if err != nil {
		v.state = FaultState
		return newError(ctx.ip, op, err)
	}
	return v.execute(ctx, op, param)
}

// execute performs a single instruction converting panics raised by
// opcode implementations into a FAULT state with an attached error.
func (v *VM) execute(ctx *Context, op opcode.Opcode, parameter []byte) (err error) {
	defer func() {
		if errRecover := recover(); errRecover != nil {
			v.state = FaultState
			err = newError(ctx.ip, op, errRecover)
		} else if int(v.refs) > limits.MaxStackSize {
			v.state = FaultState
			err = newError(ctx.ip, op, fmt.Errorf("%w: stack is too big", vmerror.ErrLimitExceeded))
		}
		if err != nil && v.uncaughtException == nil {
			// Keep a diagnostic fault item for non-THROW faults too.
			v.uncaughtException = stackitem.NewByteArray([]byte(err.Error()))
		}
	}()

	if v.getPrice != nil && ctx.ip < len(ctx.prog) {
		v.gasConsumed += v.getPrice(op, parameter)
		if v.GasLimit >= 0 && v.gasConsumed > v.GasLimit {
			panic(vmerror.ErrOutOfGas)
		}
	}

	switch op {
	case opcode.PUSHINT8, opcode.PUSHINT16, opcode.PUSHINT32,
		opcode.PUSHINT64, opcode.PUSHINT128, opcode.PUSHINT256:
		num := bigint.FromBytes(parameter)
		v.estack(ctx).PushVal(num)

	case opcode.PUSHT, opcode.PUSHF:
		v.estack(ctx).PushVal(op == opcode.PUSHT)

	case opcode.PUSHA:
		n := getJumpOffset(ctx, parameter)
		ptr := stackitem.NewPointerWithHash(n, ctx.prog, ctx.ScriptHash())
		v.estack(ctx).Push(ptr)

	case opcode.PUSHNULL:
		v.estack(ctx).Push(stackitem.Null{})

	case opcode.PUSHDATA1, opcode.PUSHDATA2, opcode.PUSHDATA4:
		if len(parameter) > limits.MaxItemSize {
			panic(fmt.Errorf("%w: item size", vmerror.ErrLimitExceeded))
		}
		v.estack(ctx).PushVal(parameter)

	case opcode.PUSHM1, opcode.PUSH0, opcode.PUSH1, opcode.PUSH2, opcode.PUSH3,
		opcode.PUSH4, opcode.PUSH5, opcode.PUSH6, opcode.PUSH7,
		opcode.PUSH8, opcode.PUSH9, opcode.PUSH10, opcode.PUSH11,
		opcode.PUSH12, opcode.PUSH13, opcode.PUSH14, opcode.PUSH15,
		opcode.PUSH16:
		val := int(op) - int(opcode.PUSH0)
		v.estack(ctx).PushVal(val)

	case opcode.NOP:
		// nothing to do

	case opcode.JMP, opcode.JMPL, opcode.JMPIF, opcode.JMPIFL, opcode.JMPIFNOT, opcode.JMPIFNOTL,
		opcode.JMPEQ, opcode.JMPEQL, opcode.JMPNE, opcode.JMPNEL,
		opcode.JMPGT, opcode.JMPGTL, opcode.JMPGE, opcode.JMPGEL,
		opcode.JMPLT, opcode.JMPLTL, opcode.JMPLE, opcode.JMPLEL:
		cond := true
		switch op {
		case opcode.JMP, opcode.JMPL:
		case opcode.JMPIF, opcode.JMPIFL, opcode.JMPIFNOT, opcode.JMPIFNOTL:
			cond = v.estack(ctx).PopBool()
			if op == opcode.JMPIFNOT || op == opcode.JMPIFNOTL {
				cond = !cond
			}
		default:
			b := v.estack(ctx).PopBigInt()
			a := v.estack(ctx).PopBigInt()
			cmp := a.Cmp(b)
			switch op {
			case opcode.JMPEQ, opcode.JMPEQL:
				cond = cmp == 0
			case opcode.JMPNE, opcode.JMPNEL:
				cond = cmp != 0
			case opcode.JMPGT, opcode.JMPGTL:
				cond = cmp > 0
			case opcode.JMPGE, opcode.JMPGEL:
				cond = cmp >= 0
			case opcode.JMPLT, opcode.JMPLTL:
				cond = cmp < 0
			case opcode.JMPLE, opcode.JMPLEL:
				cond = cmp <= 0
			}
		}
		if cond {
			ctx.Jump(getJumpOffset(ctx, parameter))
		}

	case opcode.CALL, opcode.CALLL:
		v.call(ctx, getJumpOffset(ctx, parameter))

	case opcode.CALLA:
		ptr, ok := v.estack(ctx).Pop().(*stackitem.Pointer)
		if !ok {
			panic(fmt.Errorf("%w: CALLA expects a pointer", vmerror.ErrTypeMismatch))
		}
		if ptr.ScriptHash() != ctx.ScriptHash() {
			panic(fmt.Errorf("%w: CALLA pointer is from another script", vmerror.ErrInvalidArgument))
		}
		v.call(ctx, ptr.Position())

	case opcode.CALLT:
		id := int32(binary.LittleEndian.Uint16(parameter))
		if v.LoadToken == nil {
			panic(fmt.Errorf("%w: no token handler", vmerror.ErrInvalidOpcode))
		}
		if err := v.LoadToken(id); err != nil {
			panic(err)
		}

	case opcode.SYSCALL:
		interopID := binary.LittleEndian.Uint32(parameter)
		if v.SyscallHandler == nil {
			panic(fmt.Errorf("%w: no syscall handler", vmerror.ErrInvalidOpcode))
		}
		err := v.SyscallHandler(v, interopID)
		if err != nil {
			panic(fmt.Errorf("failed to invoke syscall %d: %w", interopID, err))
		}

	case opcode.RET:
		oldCtx := v.istack[len(v.istack)-1]
		v.istack = v.istack[:len(v.istack)-1]

		v.unloadContext(oldCtx, true)
		if len(v.istack) == 0 {
			v.state = HaltState
			v.resultStack = oldCtx.estack
			break
		}

		newEstack := v.Context().estack
		if oldCtx.estack != newEstack {
			// Conservation at RET: move all items preserving order.
			elems := oldCtx.estack.elems
			for i := 0; i < len(elems); i++ {
				newEstack.Push(elems[i])
			}
			oldCtx.estack.Clear()
		}

	case opcode.DEPTH:
		v.estack(ctx).PushVal(v.estack(ctx).Len())

	case opcode.DROP:
		v.estack(ctx).Pop()

	case opcode.NIP:
		if v.estack(ctx).Len() < 2 {
			panic(vmerror.ErrStackUnderflow)
		}
		_ = v.estack(ctx).RemoveAt(1)

	case opcode.XDROP:
		n := int(v.estack(ctx).PopBigInt().Int64())
		if n < 0 {
			panic(fmt.Errorf("%w: negative index", vmerror.ErrInvalidArgument))
		}
		if n >= v.estack(ctx).Len() {
			panic(vmerror.ErrStackUnderflow)
		}
		_ = v.estack(ctx).RemoveAt(n)

	case opcode.CLEAR:
		v.estack(ctx).Clear()

	case opcode.DUP:
		item := v.estack(ctx).Top()
		v.estack(ctx).Push(item.Dup())

	case opcode.OVER:
		a := v.estack(ctx).Peek(1)
		if a == nil {
			panic(vmerror.ErrStackUnderflow)
		}
		v.estack(ctx).Push(a.Dup())

	case opcode.PICK:
		n := int(v.estack(ctx).PopBigInt().Int64())
		if n < 0 {
			panic(fmt.Errorf("%w: negative index", vmerror.ErrInvalidArgument))
		}
		a := v.estack(ctx).Peek(n)
		if a == nil {
			panic(vmerror.ErrStackUnderflow)
		}
		v.estack(ctx).Push(a.Dup())

	case opcode.TUCK:
		a := v.estack(ctx).Top()
		if v.estack(ctx).Len() < 2 {
			panic(vmerror.ErrStackUnderflow)
		}
		v.estack(ctx).InsertAt(a.Dup(), 2)

	case opcode.SWAP:
		err := v.estack(ctx).Swap(0, 1)
		if err != nil {
			panic(err)
		}

	case opcode.ROT:
		err := v.estack(ctx).Roll(2)
		if err != nil {
			panic(err)
		}

	case opcode.ROLL:
		n := int(v.estack(ctx).PopBigInt().Int64())
		if n < 0 {
			panic(fmt.Errorf("%w: negative index", vmerror.ErrInvalidArgument))
		}
		err := v.estack(ctx).Roll(n)
		if err != nil {
			panic(err)
		}

	case opcode.REVERSE3, opcode.REVERSE4, opcode.REVERSEN:
		var n int
		switch op {
		case opcode.REVERSE3:
			n = 3
		case opcode.REVERSE4:
			n = 4
		default:
			n = int(v.estack(ctx).PopBigInt().Int64())
		}
		if err := v.estack(ctx).ReverseTop(n); err != nil {
			panic(err)
		}

	case opcode.INITSSLOT:
		if parameter[0] == 0 {
			panic(fmt.Errorf("%w: zero argument", vmerror.ErrInvalidArgument))
		}
		if ctx.static == nil {
			ctx.static = new(slot)
		}
		ctx.static.init(int(parameter[0]), &v.refs)

	case opcode.INITSLOT:
		if ctx.sharedSlots {
			// The frame entered via CALL shares the caller's slots
			// until it sets up its own.
			ctx.local, ctx.arguments = nil, nil
			ctx.sharedSlots = false
		}
		if ctx.local != nil || ctx.arguments != nil {
			panic(fmt.Errorf("%w: already initialized", vmerror.ErrInvalidArgument))
		}
		if parameter[0] == 0 && parameter[1] == 0 {
			panic(fmt.Errorf("%w: zero argument", vmerror.ErrInvalidArgument))
		}
		if parameter[0] > 0 {
			ctx.local.init(int(parameter[0]), &v.refs)
		}
		if parameter[1] > 0 {
			sz := int(parameter[1])
			ctx.arguments.init(sz, &v.refs)
			for i := 0; i < sz; i++ {
				ctx.arguments.Set(i, v.estack(ctx).Pop(), &v.refs)
			}
		}

	case opcode.LDSFLD0, opcode.LDSFLD1, opcode.LDSFLD2, opcode.LDSFLD3, opcode.LDSFLD4, opcode.LDSFLD5, opcode.LDSFLD6:
		item := v.getSlotValue(ctx.static, int(op-opcode.LDSFLD0))
		v.estack(ctx).Push(item)

	case opcode.LDSFLD:
		item := v.getSlotValue(ctx.static, int(parameter[0]))
		v.estack(ctx).Push(item)

	case opcode.STSFLD0, opcode.STSFLD1, opcode.STSFLD2, opcode.STSFLD3, opcode.STSFLD4, opcode.STSFLD5, opcode.STSFLD6:
		item := v.estack(ctx).Pop()
		v.setSlotValue(ctx.static, int(op-opcode.STSFLD0), item)

	case opcode.STSFLD:
		item := v.estack(ctx).Pop()
		v.setSlotValue(ctx.static, int(parameter[0]), item)

	case opcode.LDLOC0, opcode.LDLOC1, opcode.LDLOC2, opcode.LDLOC3, opcode.LDLOC4, opcode.LDLOC5, opcode.LDLOC6:
		item := v.getLocalValue(ctx.local, int(op-opcode.LDLOC0))
		v.estack(ctx).Push(item)

	case opcode.LDLOC:
		item := v.getLocalValue(ctx.local, int(parameter[0]))
		v.estack(ctx).Push(item)

	case opcode.STLOC0, opcode.STLOC1, opcode.STLOC2, opcode.STLOC3, opcode.STLOC4, opcode.STLOC5, opcode.STLOC6:
		item := v.estack(ctx).Pop()
		v.setLocalValue(ctx.local, int(op-opcode.STLOC0), item)

	case opcode.STLOC:
		item := v.estack(ctx).Pop()
		v.setLocalValue(ctx.local, int(parameter[0]), item)

	case opcode.LDARG0, opcode.LDARG1, opcode.LDARG2, opcode.LDARG3, opcode.LDARG4, opcode.LDARG5, opcode.LDARG6:
		item := v.getLocalValue(ctx.arguments, int(op-opcode.LDARG0))
		v.estack(ctx).Push(item)

	case opcode.LDARG:
		item := v.getLocalValue(ctx.arguments, int(parameter[0]))
		v.estack(ctx).Push(item)

	case opcode.STARG0, opcode.STARG1, opcode.STARG2, opcode.STARG3, opcode.STARG4, opcode.STARG5, opcode.STARG6:
		item := v.estack(ctx).Pop()
		v.setLocalValue(ctx.arguments, int(op-opcode.STARG0), item)

	case opcode.STARG:
		item := v.estack(ctx).Pop()
		v.setLocalValue(ctx.arguments, int(parameter[0]), item)

	case opcode.NEWBUFFER:
		n := toInt(v.estack(ctx).PopBigInt())
		if n < 0 || n > limits.MaxItemSize {
			panic(fmt.Errorf("%w: invalid size", vmerror.ErrInvalidArgument))
		}
		v.estack(ctx).Push(stackitem.NewBuffer(make([]byte, n)))

	case opcode.MEMCPY:
		n := toInt(v.estack(ctx).PopBigInt())
		if n < 0 {
			panic(fmt.Errorf("%w: invalid count", vmerror.ErrInvalidArgument))
		}
		si := toInt(v.estack(ctx).PopBigInt())
		if si < 0 {
			panic(fmt.Errorf("%w: invalid source index", vmerror.ErrInvalidArgument))
		}
		src := v.estack(ctx).PopBytes()
		if sum := si + n; sum < 0 || sum > len(src) {
			panic(fmt.Errorf("%w: insufficient source length", vmerror.ErrOutOfRange))
		}
		di := toInt(v.estack(ctx).PopBigInt())
		if di < 0 {
			panic(fmt.Errorf("%w: invalid destination index", vmerror.ErrInvalidArgument))
		}
		dst, ok := v.estack(ctx).Pop().(*stackitem.Buffer)
		if !ok {
			panic(fmt.Errorf("%w: MEMCPY destination is not a buffer", vmerror.ErrTypeMismatch))
		}
		if sum := di + n; sum < 0 || sum > dst.Len() {
			panic(fmt.Errorf("%w: insufficient destination length", vmerror.ErrOutOfRange))
		}
		copy((*dst)[di:], src[si:si+n])

	case opcode.CAT:
		b := v.estack(ctx).PopBytes()
		a := v.estack(ctx).PopBytes()
		l := len(a) + len(b)
		if l > limits.MaxItemSize {
			panic(fmt.Errorf("%w: item is too big (%d)", vmerror.ErrLimitExceeded, l))
		}
		ab := make([]byte, 0, l)
		ab = append(ab, a...)
		ab = append(ab, b...)
		v.estack(ctx).Push(stackitem.NewBuffer(ab))

	case opcode.SUBSTR:
		l := toInt(v.estack(ctx).PopBigInt())
		if l < 0 {
			panic(fmt.Errorf("%w: invalid length", vmerror.ErrInvalidArgument))
		}
		o := toInt(v.estack(ctx).PopBigInt())
		if o < 0 {
			panic(fmt.Errorf("%w: invalid offset", vmerror.ErrInvalidArgument))
		}
		s := v.estack(ctx).PopBytes()
		last := l + o
		if last > len(s) {
			panic(fmt.Errorf("%w: substring is out of bounds", vmerror.ErrOutOfRange))
		}
		res := make([]byte, l)
		copy(res, s[o:last])
		v.estack(ctx).Push(stackitem.NewBuffer(res))

	case opcode.LEFT:
		l := toInt(v.estack(ctx).PopBigInt())
		if l < 0 {
			panic(fmt.Errorf("%w: invalid length", vmerror.ErrInvalidArgument))
		}
		s := v.estack(ctx).PopBytes()
		if t := len(s); l > t {
			panic(fmt.Errorf("%w: size is too big", vmerror.ErrOutOfRange))
		}
		res := make([]byte, l)
		copy(res, s[:l])
		v.estack(ctx).Push(stackitem.NewBuffer(res))

	case opcode.RIGHT:
		l := toInt(v.estack(ctx).PopBigInt())
		if l < 0 {
			panic(fmt.Errorf("%w: invalid length", vmerror.ErrInvalidArgument))
		}
		s := v.estack(ctx).PopBytes()
		res := make([]byte, l)
		copy(res, s[len(s)-l:])
		v.estack(ctx).Push(stackitem.NewBuffer(res))

	case opcode.INVERT:
		i := v.estack(ctx).PopBigInt()
		v.pushInt(ctx, new(big.Int).Not(i))

	case opcode.AND:
		b := v.estack(ctx).PopBigInt()
		a := v.estack(ctx).PopBigInt()
		v.pushInt(ctx, new(big.Int).And(b, a))

	case opcode.OR:
		b := v.estack(ctx).PopBigInt()
		a := v.estack(ctx).PopBigInt()
		v.pushInt(ctx, new(big.Int).Or(b, a))

	case opcode.XOR:
		b := v.estack(ctx).PopBigInt()
		a := v.estack(ctx).PopBigInt()
		v.pushInt(ctx, new(big.Int).Xor(b, a))

	case opcode.EQUAL, opcode.NOTEQUAL:
		if v.estack(ctx).Len() < 2 {
			panic(vmerror.ErrStackUnderflow)
		}
		b := v.estack(ctx).Pop()
		a := v.estack(ctx).Pop()
		res := a.Equals(b) == (op == opcode.EQUAL)
		v.estack(ctx).PushVal(res)

	case opcode.SIGN:
		x := v.estack(ctx).PopBigInt()
		v.estack(ctx).PushVal(x.Sign())

	case opcode.ABS:
		x := v.estack(ctx).PopBigInt()
		v.pushInt(ctx, new(big.Int).Abs(x))

	case opcode.NEGATE:
		x := v.estack(ctx).PopBigInt()
		v.pushInt(ctx, new(big.Int).Neg(x))

	case opcode.INC:
		x := v.estack(ctx).PopBigInt()
		a := new(big.Int).Add(x, big.NewInt(1))
		v.pushInt(ctx, a)

	case opcode.DEC:
		x := v.estack(ctx).PopBigInt()
		a := new(big.Int).Sub(x, big.NewInt(1))
		v.pushInt(ctx, a)

	case opcode.ADD:
		b := v.estack(ctx).PopBigInt()
		a := v.estack(ctx).PopBigInt()
		c := new(big.Int).Add(a, b)
		v.pushInt(ctx, c)

	case opcode.SUB:
		b := v.estack(ctx).PopBigInt()
		a := v.estack(ctx).PopBigInt()
		c := new(big.Int).Sub(a, b)
		v.pushInt(ctx, c)

	case opcode.MUL:
		b := v.estack(ctx).PopBigInt()
		a := v.estack(ctx).PopBigInt()
		c := new(big.Int).Mul(a, b)
		v.pushInt(ctx, c)

	case opcode.DIV:
		b := v.estack(ctx).PopBigInt()
		a := v.estack(ctx).PopBigInt()
		if b.Sign() == 0 {
			panic(vmerror.ErrDivideByZero)
		}
		// Truncation towards zero.
		v.pushInt(ctx, new(big.Int).Quo(a, b))

	case opcode.MOD:
		b := v.estack(ctx).PopBigInt()
		a := v.estack(ctx).PopBigInt()
		if b.Sign() == 0 {
			panic(vmerror.ErrDivideByZero)
		}
		// Remainder has the sign of the dividend.
		v.pushInt(ctx, new(big.Int).Rem(a, b))

	case opcode.POW:
		exp := v.estack(ctx).PopBigInt()
		a := v.estack(ctx).PopBigInt()
		if ei := exp.Uint64(); !exp.IsUint64() || ei > maxSHLArg {
			panic(fmt.Errorf("%w: invalid exponent", vmerror.ErrInvalidArgument))
		}
		v.pushInt(ctx, new(big.Int).Exp(a, exp, nil))

	case opcode.SQRT:
		a := v.estack(ctx).PopBigInt()
		if a.Sign() == -1 {
			panic(fmt.Errorf("%w: negative value", vmerror.ErrInvalidArgument))
		}
		v.pushInt(ctx, new(big.Int).Sqrt(a))

	case opcode.MODMUL:
		modulus := v.estack(ctx).PopBigInt()
		if modulus.Sign() == 0 {
			panic(fmt.Errorf("%w: zero modulus", vmerror.ErrDivideByZero))
		}
		x2 := v.estack(ctx).PopBigInt()
		x1 := v.estack(ctx).PopBigInt()

		res := new(big.Int).Mul(x1, x2)
		v.pushInt(ctx, res.Rem(res, modulus))

	case opcode.MODPOW:
		modulus := v.estack(ctx).PopBigInt()
		exponent := v.estack(ctx).PopBigInt()
		base := v.estack(ctx).PopBigInt()
		res := new(big.Int)
		switch exponent.Sign() {
		case -1:
			if exponent.Cmp(big.NewInt(-1)) != 0 {
				panic(fmt.Errorf("%w: only -1 exponent is supported", vmerror.ErrInvalidArgument))
			}
			if res.ModInverse(base, modulus) == nil {
				panic(fmt.Errorf("%w: no inverse", vmerror.ErrInvalidArgument))
			}
		default:
			if modulus.Sign() == 0 {
				panic(fmt.Errorf("%w: zero modulus", vmerror.ErrDivideByZero))
			}
			res.Exp(base, exponent, modulus)
			if modulus.Sign() == -1 && res.Sign() != 0 {
				res.Add(res, modulus)
			}
		}
		v.pushInt(ctx, res)

	case opcode.SHL, opcode.SHR:
		b := v.estack(ctx).PopBigInt().Int64()
		if b == 0 {
			return
		} else if b < 0 || b > maxSHLArg {
			panic(fmt.Errorf("%w: invalid shift arg", vmerror.ErrInvalidArgument))
		}
		n := uint(b)
		a := v.estack(ctx).PopBigInt()
		var item big.Int
		if op == opcode.SHL {
			item.Lsh(a, n)
		} else {
			item.Rsh(a, n)
		}
		v.pushInt(ctx, &item)

	case opcode.NOT:
		x := v.estack(ctx).PopBool()
		v.estack(ctx).PushVal(!x)

	case opcode.BOOLAND:
		b := v.estack(ctx).PopBool()
		a := v.estack(ctx).PopBool()
		v.estack(ctx).PushVal(a && b)

	case opcode.BOOLOR:
		b := v.estack(ctx).PopBool()
		a := v.estack(ctx).PopBool()
		v.estack(ctx).PushVal(a || b)

	case opcode.NZ:
		x := v.estack(ctx).PopBigInt()
		v.estack(ctx).PushVal(x.Sign() != 0)

	case opcode.NUMEQUAL:
		b := v.estack(ctx).PopBigInt()
		a := v.estack(ctx).PopBigInt()
		v.estack(ctx).PushVal(a.Cmp(b) == 0)

	case opcode.NUMNOTEQUAL:
		b := v.estack(ctx).PopBigInt()
		a := v.estack(ctx).PopBigInt()
		v.estack(ctx).PushVal(a.Cmp(b) != 0)

	case opcode.LT:
		b := v.estack(ctx).PopBigInt()
		a := v.estack(ctx).PopBigInt()
		v.estack(ctx).PushVal(a.Cmp(b) == -1)

	case opcode.LE:
		b := v.estack(ctx).PopBigInt()
		a := v.estack(ctx).PopBigInt()
		v.estack(ctx).PushVal(a.Cmp(b) <= 0)

	case opcode.GT:
		b := v.estack(ctx).PopBigInt()
		a := v.estack(ctx).PopBigInt()
		v.estack(ctx).PushVal(a.Cmp(b) == 1)

	case opcode.GE:
		b := v.estack(ctx).PopBigInt()
		a := v.estack(ctx).PopBigInt()
		v.estack(ctx).PushVal(a.Cmp(b) >= 0)

	case opcode.MIN:
		b := v.estack(ctx).PopBigInt()
		a := v.estack(ctx).PopBigInt()
		val := a
		if a.Cmp(b) == 1 {
			val = b
		}
		v.pushInt(ctx, val)

	case opcode.MAX:
		b := v.estack(ctx).PopBigInt()
		a := v.estack(ctx).PopBigInt()
		val := a
		if a.Cmp(b) == -1 {
			val = b
		}
		v.pushInt(ctx, val)

	case opcode.WITHIN:
		b := v.estack(ctx).PopBigInt()
		a := v.estack(ctx).PopBigInt()
		x := v.estack(ctx).PopBigInt()
		v.estack(ctx).PushVal(a.Cmp(x) <= 0 && x.Cmp(b) == -1)

	case opcode.PACKMAP:
		n := toInt(v.estack(ctx).PopBigInt())
		if n < 0 || n*2 > v.estack(ctx).Len() {
			panic(vmerror.ErrOutOfRange)
		}
		items := make([]stackitem.MapElement, n)
		for i := 0; i < n; i++ {
			key := v.estack(ctx).Pop()
			if err := stackitem.IsValidMapKey(key); err != nil {
				panic(err)
			}
			value := v.estack(ctx).Pop()
			items[i].Key = key
			items[i].Value = value
		}
		m := stackitem.NewMapWithValue(dedupMapElems(items))
		v.estack(ctx).PushVal(m)

	case opcode.PACKSTRUCT, opcode.PACK:
		n := toInt(v.estack(ctx).PopBigInt())
		if n < 0 || n > v.estack(ctx).Len() {
			panic(vmerror.ErrOutOfRange)
		}

		items := make([]stackitem.Item, n)
		for i := 0; i < n; i++ {
			items[i] = v.estack(ctx).Pop()
		}
		var res stackitem.Item
		if op == opcode.PACK {
			res = stackitem.NewArray(items)
		} else {
			res = stackitem.NewStruct(items)
		}
		v.estack(ctx).PushVal(res)

	case opcode.UNPACK:
		e := v.estack(ctx).Pop()
		var arr []stackitem.Item
		var l int
		switch t := e.(type) {
		case *stackitem.Array:
			arr = t.Value().([]stackitem.Item)
		case *stackitem.Struct:
			arr = t.Value().([]stackitem.Item)
		case *stackitem.Map:
			l = t.Len()
			m := t.Value().([]stackitem.MapElement)
			for i := l - 1; i >= 0; i-- {
				v.estack(ctx).Push(m[i].Value)
				v.estack(ctx).Push(m[i].Key)
			}
		default:
			panic(fmt.Errorf("%w: element is not an array/struct/map", vmerror.ErrTypeMismatch))
		}
		if arr != nil {
			l = len(arr)
			for i := l - 1; i >= 0; i-- {
				v.estack(ctx).Push(arr[i])
			}
		}
		v.estack(ctx).PushVal(l)

	case opcode.NEWARRAY0:
		v.estack(ctx).PushVal(stackitem.NewArray([]stackitem.Item{}))

	case opcode.NEWARRAY, opcode.NEWARRAYT:
		n := toInt(v.estack(ctx).PopBigInt())
		if n < 0 || n > limits.MaxStackSize {
			panic(fmt.Errorf("%w: wrong number of elements", vmerror.ErrInvalidArgument))
		}
		typ := stackitem.AnyT
		if op == opcode.NEWARRAYT {
			typ = stackitem.Type(parameter[0])
		}
		items := makeArrayOfType(n, typ)
		v.estack(ctx).PushVal(stackitem.NewArray(items))

	case opcode.NEWSTRUCT0:
		v.estack(ctx).PushVal(stackitem.NewStruct([]stackitem.Item{}))

	case opcode.NEWSTRUCT:
		n := toInt(v.estack(ctx).PopBigInt())
		if n < 0 || n > limits.MaxStackSize {
			panic(fmt.Errorf("%w: wrong number of elements", vmerror.ErrInvalidArgument))
		}
		items := makeArrayOfType(n, stackitem.AnyT)
		v.estack(ctx).PushVal(stackitem.NewStruct(items))

	case opcode.NEWMAP:
		v.estack(ctx).Push(stackitem.NewMap())

	case opcode.SIZE:
		elem := v.estack(ctx).Pop()
		switch t := elem.(type) {
		case *stackitem.Array:
			v.estack(ctx).PushVal(t.Len())
		case *stackitem.Struct:
			v.estack(ctx).PushVal(t.Len())
		case *stackitem.Map:
			v.estack(ctx).PushVal(t.Len())
		case *stackitem.Buffer:
			v.estack(ctx).PushVal(t.Len())
		case *stackitem.ByteArray:
			v.estack(ctx).PushVal(t.Len())
		case stackitem.Bool:
			v.estack(ctx).PushVal(1)
		default:
			bs, err := elem.TryBytes()
			if err != nil {
				panic(err)
			}
			v.estack(ctx).PushVal(len(bs))
		}

	case opcode.HASKEY:
		key := v.estack(ctx).Pop()
		if err := stackitem.IsValidMapKey(key); err != nil {
			panic(err)
		}
		c := v.estack(ctx).Pop()
		var res bool
		switch t := c.(type) {
		case *stackitem.Array, *stackitem.Struct:
			index := toInt(mustInteger(key))
			if index < 0 {
				panic(fmt.Errorf("%w: negative index", vmerror.ErrInvalidArgument))
			}
			res = index < len(c.Value().([]stackitem.Item))
		case *stackitem.Map:
			res = t.Has(key)
		case *stackitem.Buffer, *stackitem.ByteArray:
			index := toInt(mustInteger(key))
			if index < 0 {
				panic(fmt.Errorf("%w: negative index", vmerror.ErrInvalidArgument))
			}
			bs, _ := t.TryBytes()
			res = index < len(bs)
		default:
			panic(fmt.Errorf("%w: wrong collection type", vmerror.ErrTypeMismatch))
		}
		v.estack(ctx).PushVal(res)

	case opcode.KEYS:
		item := v.estack(ctx).Pop()
		if item == nil {
			panic(vmerror.ErrStackUnderflow)
		}

		m, ok := item.(*stackitem.Map)
		if !ok {
			panic(fmt.Errorf("%w: not a Map", vmerror.ErrTypeMismatch))
		}

		arr := make([]stackitem.Item, 0, m.Len())
		for k := range m.Value().([]stackitem.MapElement) {
			arr = append(arr, m.Value().([]stackitem.MapElement)[k].Key.Dup())
		}
		v.estack(ctx).PushVal(stackitem.NewArray(arr))

	case opcode.VALUES:
		item := v.estack(ctx).Pop()
		if item == nil {
			panic(vmerror.ErrStackUnderflow)
		}

		var arr []stackitem.Item
		switch t := item.(type) {
		case *stackitem.Array, *stackitem.Struct:
			src := t.Value().([]stackitem.Item)
			arr = make([]stackitem.Item, len(src))
			for i := range src {
				arr[i] = cloneIfStruct(src[i])
			}
		case *stackitem.Map:
			arr = make([]stackitem.Item, 0, t.Len())
			for k := range t.Value().([]stackitem.MapElement) {
				arr = append(arr, cloneIfStruct(t.Value().([]stackitem.MapElement)[k].Value))
			}
		default:
			panic(fmt.Errorf("%w: not a Map, Array or Struct", vmerror.ErrTypeMismatch))
		}

		v.estack(ctx).PushVal(stackitem.NewArray(arr))

	case opcode.PICKITEM:
		key := v.estack(ctx).Pop()
		if err := stackitem.IsValidMapKey(key); err != nil {
			panic(err)
		}
		obj := v.estack(ctx).Pop()

		switch t := obj.(type) {
		// Struct and Array items have their underlying value as []Item.
		case *stackitem.Array, *stackitem.Struct:
			index := toInt(mustInteger(key))
			arr := t.Value().([]stackitem.Item)
			if index < 0 || index >= len(arr) {
				panic(fmt.Errorf("%w: array index %d", vmerror.ErrOutOfRange, index))
			}
			item := arr[index].Dup()
			v.estack(ctx).Push(item)
		case *stackitem.Map:
			index := t.Index(key)
			if index < 0 {
				panic(fmt.Errorf("%w: key not found", vmerror.ErrOutOfRange))
			}
			v.estack(ctx).Push(t.Value().([]stackitem.MapElement)[index].Value.Dup())
		default:
			arr, err := obj.TryBytes()
			if err != nil {
				panic(fmt.Errorf("%w: not a collection", vmerror.ErrTypeMismatch))
			}
			index := toInt(mustInteger(key))
			if index < 0 || index >= len(arr) {
				panic(fmt.Errorf("%w: byte index %d", vmerror.ErrOutOfRange, index))
			}
			item := arr[index]
			v.estack(ctx).PushVal(int(item))
		}

	case opcode.APPEND:
		itemElem := v.estack(ctx).Pop()
		arrElem := v.estack(ctx).Pop()

		val := cloneIfStruct(itemElem)

		switch t := arrElem.(type) {
		case *stackitem.Array:
			t.Append(val)
		case *stackitem.Struct:
			t.Append(val)
		default:
			panic(fmt.Errorf("%w: APPEND: not an array", vmerror.ErrTypeMismatch))
		}
		v.refs.Add(val)

	case opcode.SETITEM:
		item := v.estack(ctx).Pop()
		key := v.estack(ctx).Pop()
		if err := stackitem.IsValidMapKey(key); err != nil {
			panic(err)
		}
		obj := v.estack(ctx).Pop()

		switch t := obj.(type) {
		// Struct and Array items have their underlying value as []Item.
		case *stackitem.Array, *stackitem.Struct:
			arr := t.Value().([]stackitem.Item)
			index := toInt(mustInteger(key))
			if index < 0 || index >= len(arr) {
				panic(fmt.Errorf("%w: array index %d", vmerror.ErrOutOfRange, index))
			}
			if t.(stackitem.Immutable).IsReadOnly() {
				panic(stackitem.ErrReadOnly)
			}
			v.refs.Remove(arr[index])
			arr[index] = item
			v.refs.Add(arr[index])
		case *stackitem.Map:
			if i := t.Index(key); i >= 0 {
				v.refs.Remove(t.Value().([]stackitem.MapElement)[i].Value)
			} else {
				v.refs.Add(key)
			}
			t.Add(key, item)
			v.refs.Add(item)
		case *stackitem.Buffer:
			index := toInt(mustInteger(key))
			if index < 0 || index >= t.Len() {
				panic(fmt.Errorf("%w: buffer index %d", vmerror.ErrOutOfRange, index))
			}
			bi, err := item.TryInteger()
			b := toInt(bi)
			if err != nil || b < math8MinInt || b > math8MaxUint {
				panic(fmt.Errorf("%w: wrong value for buffer", vmerror.ErrInvalidArgument))
			}
			(*t)[index] = byte(b)
		default:
			panic(fmt.Errorf("%w: SETITEM: invalid item type %s", vmerror.ErrTypeMismatch, t))
		}

	case opcode.REVERSEITEMS:
		item := v.estack(ctx).Pop()
		switch t := item.(type) {
		case *stackitem.Array, *stackitem.Struct:
			if t.(stackitem.Immutable).IsReadOnly() {
				panic(stackitem.ErrReadOnly)
			}
			a := t.Value().([]stackitem.Item)
			for i, j := 0, len(a)-1; i <= j; i, j = i+1, j-1 {
				a[i], a[j] = a[j], a[i]
			}
		case *stackitem.Buffer:
			b := t.Value().([]byte)
			for i, j := 0, len(b)-1; i <= j; i, j = i+1, j-1 {
				b[i], b[j] = b[j], b[i]
			}
		default:
			panic(fmt.Errorf("%w: REVERSEITEMS: invalid item type %s", vmerror.ErrTypeMismatch, t))
		}

	case opcode.REMOVE:
		key := v.estack(ctx).Pop()
		if err := stackitem.IsValidMapKey(key); err != nil {
			panic(err)
		}
		elem := v.estack(ctx).Pop()
		switch t := elem.(type) {
		case *stackitem.Array:
			a := t.Value().([]stackitem.Item)
			k := toInt(mustInteger(key))
			if k < 0 || k >= len(a) {
				panic(vmerror.ErrOutOfRange)
			}
			v.refs.Remove(a[k])
			t.Remove(k)
		case *stackitem.Struct:
			a := t.Value().([]stackitem.Item)
			k := toInt(mustInteger(key))
			if k < 0 || k >= len(a) {
				panic(vmerror.ErrOutOfRange)
			}
			v.refs.Remove(a[k])
			t.Remove(k)
		case *stackitem.Map:
			index := t.Index(key)
			// NOTE: on the server side, this position is cleared, as
			// well as the value corresponding to the key. If the index
			// is < 0, this operation is noop.
			if index >= 0 {
				elems := t.Value().([]stackitem.MapElement)
				v.refs.Remove(elems[index].Key)
				v.refs.Remove(elems[index].Value)
				t.Drop(index)
			}
		default:
			panic(fmt.Errorf("%w: REMOVE: invalid item type %s", vmerror.ErrTypeMismatch, t))
		}

	case opcode.CLEARITEMS:
		elem := v.estack(ctx).Pop()
		switch t := elem.(type) {
		case *stackitem.Array:
			for _, item := range t.Value().([]stackitem.Item) {
				v.refs.Remove(item)
			}
			t.Clear()
		case *stackitem.Struct:
			for _, item := range t.Value().([]stackitem.Item) {
				v.refs.Remove(item)
			}
			t.Clear()
		case *stackitem.Map:
			for i := range t.Value().([]stackitem.MapElement) {
				v.refs.Remove(t.Value().([]stackitem.MapElement)[i].Key)
				v.refs.Remove(t.Value().([]stackitem.MapElement)[i].Value)
			}
			t.Clear()
		default:
			panic(fmt.Errorf("%w: CLEARITEMS: invalid item type %s", vmerror.ErrTypeMismatch, t))
		}

	case opcode.POPITEM:
		arr := v.estack(ctx).Pop()
		switch t := arr.(type) {
		case *stackitem.Array:
			elems := t.Value().([]stackitem.Item)
			l := len(elems)
			if l == 0 {
				panic(vmerror.ErrOutOfRange)
			}
			item := elems[l-1]
			t.Remove(l - 1)
			v.refs.Remove(item)
			v.estack(ctx).Push(item)
		case *stackitem.Struct:
			elems := t.Value().([]stackitem.Item)
			l := len(elems)
			if l == 0 {
				panic(vmerror.ErrOutOfRange)
			}
			item := elems[l-1]
			t.Remove(l - 1)
			v.refs.Remove(item)
			v.estack(ctx).Push(item)
		default:
			panic(fmt.Errorf("%w: POPITEM: invalid item type %s", vmerror.ErrTypeMismatch, t))
		}

	case opcode.ISNULL:
		_, ok := v.estack(ctx).Pop().(stackitem.Null)
		v.estack(ctx).PushVal(ok)

	case opcode.ISTYPE:
		res := v.estack(ctx).Pop()
		v.estack(ctx).PushVal(res.Type() == stackitem.Type(parameter[0]))

	case opcode.CONVERT:
		typ := stackitem.Type(parameter[0])
		item := v.estack(ctx).Pop()
		result, err := item.Convert(typ)
		if err != nil {
			panic(err)
		}
		v.estack(ctx).Push(result)

	case opcode.ABORT:
		panic("ABORT")

	case opcode.ABORTMSG:
		msg := v.estack(ctx).PopBytes()
		panic(fmt.Sprintf("%s is executed. Reason: %s", op, string(msg)))

	case opcode.ASSERT:
		if !v.estack(ctx).PopBool() {
			panic("ASSERT failed")
		}

	case opcode.ASSERTMSG:
		msg := v.estack(ctx).PopBytes()
		if !v.estack(ctx).PopBool() {
			panic(fmt.Sprintf("%s failed. Reason: %s", op, string(msg)))
		}

	case opcode.THROW:
		v.throw(v.estack(ctx).Pop())

	case opcode.TRY, opcode.TRYL:
		catchP, finallyP := getTryParams(op, parameter)
		if len(ctx.tryStack) >= limits.MaxTryNestingDepth {
			panic(fmt.Errorf("%w: maximum TRY depth exceeded", vmerror.ErrLimitExceeded))
		}
		cOffset := getJumpOffset(ctx, catchP)
		fOffset := getJumpOffset(ctx, finallyP)
		if cOffset == ctx.ip && fOffset == ctx.ip {
			panic(fmt.Errorf("%w: invalid offsets for TRY", vmerror.ErrInvalidArgument))
		} else if cOffset == ctx.ip {
			cOffset = -1
		} else if fOffset == ctx.ip {
			fOffset = -1
		}
		eCtx := newExceptionHandlingContext(cOffset, fOffset)
		ctx.tryStack = append(ctx.tryStack, eCtx)

	case opcode.ENDTRY, opcode.ENDTRYL:
		if len(ctx.tryStack) == 0 {
			panic(fmt.Errorf("%w: ENDTRY outside of TRY", vmerror.ErrInvalidArgument))
		}
		eCtx := ctx.tryStack[len(ctx.tryStack)-1]
		if eCtx.State == eFinally {
			panic(fmt.Errorf("%w: ENDTRY in FINALLY block", vmerror.ErrInvalidArgument))
		}
		eOffset := getJumpOffset(ctx, parameter)
		if eCtx.HasFinally() {
			eCtx.State = eFinally
			eCtx.EndOffset = eOffset
			eOffset = eCtx.FinallyOffset
		} else {
			ctx.tryStack = ctx.tryStack[:len(ctx.tryStack)-1]
		}
		ctx.Jump(eOffset)

	case opcode.ENDFINALLY:
		if len(ctx.tryStack) == 0 {
			panic(fmt.Errorf("%w: ENDFINALLY outside of FINALLY", vmerror.ErrInvalidArgument))
		}
		eCtx := ctx.tryStack[len(ctx.tryStack)-1]
		ctx.tryStack = ctx.tryStack[:len(ctx.tryStack)-1]
		if v.uncaughtException != nil {
			v.throw(v.uncaughtException)
			break
		}
		ctx.Jump(eCtx.EndOffset)

	default:
		panic(fmt.Errorf("%w: %s", vmerror.ErrInvalidOpcode, op))
	}
	return
}

func (v *VM) estack(ctx *Context) *Stack {
	return ctx.estack
}

// Call creates a new context over the current one's script jumping to the
// specified offset, the way the CALL instruction does it.
func (v *VM) Call(offset int) {
	v.call(v.Context(), offset)
}

// throw handles the exception item propagating it through try frames and
// contexts until a catch or finally is found or everything is unwound.
func (v *VM) throw(item stackitem.Item) {
	v.uncaughtException = item
	v.handleException()
}

// call creates a new context over the same script sharing slots, with a
// fresh evaluation stack, and jumps to the given offset.
func (v *VM) call(ctx *Context, offset int) {
	if len(v.istack) >= limits.MaxInvocationStackSize {
		panic(fmt.Errorf("%w: invocation stack", vmerror.ErrLimitExceeded))
	}
	newCtx := NewContext(ctx.prog)
	newCtx.estack = newStack("evaluation", &v.refs)
	newCtx.static = ctx.static
	newCtx.local = ctx.local
	newCtx.arguments = ctx.arguments
	newCtx.sharedSlots = true
	newCtx.scriptHash = ctx.scriptHash
	newCtx.hashInit = ctx.hashInit
	newCtx.callingScriptHash = ctx.callingScriptHash
	newCtx.callFlag = ctx.callFlag
	newCtx.NEF = ctx.NEF
	v.istack = append(v.istack, newCtx)
	newCtx.Jump(offset)
}

// unloadContext drops all the references the context holds. The commit
// parameter tells whether per-call host state should be committed (RET)
// or rolled back (exception unwind).
func (v *VM) unloadContext(ctx *Context, commit bool) {
	if err := ctx.errOnUnload(commit); err != nil {
		panic(err)
	}
	if !commit {
		ctx.estack.Clear()
	}
	if !ctx.sharedSlots {
		if ctx.local != nil {
			ctx.local.ClearRefs(&v.refs)
		}
		if ctx.arguments != nil {
			ctx.arguments.ClearRefs(&v.refs)
		}
	}
	currCtx := v.Context()
	if ctx.static != nil && (currCtx == nil || ctx.static != currCtx.static) {
		ctx.static.ClearRefs(&v.refs)
	}
}

// handleException performs the exception unwinding: finds a try frame
// with an unused catch or a pending finally, or FAULTs the machine.
func (v *VM) handleException() {
	for pop := 0; pop < len(v.istack); pop++ {
		ictxv := v.istack[len(v.istack)-1-pop]
		for j := len(ictxv.tryStack) - 1; j >= 0; j-- {
			e := ictxv.tryStack[j]
			if e.State == eFinally ||
				(e.State == eCatch && !e.HasFinally()) {
				// The frame is spent: either the exception happened
				// inside its finally block, or the catch has already
				// been used and there is no finally to run.
				ictxv.tryStack = ictxv.tryStack[:j]
				continue
			}
			for i := 0; i < pop; i++ {
				ctx := v.istack[len(v.istack)-1]
				v.istack = v.istack[:len(v.istack)-1]
				v.unloadContext(ctx, false)
			}
			if e.State == eTry && e.HasCatch() {
				e.State = eCatch
				v.estack(v.Context()).Push(v.uncaughtException)
				v.uncaughtException = nil
				v.Context().Jump(e.CatchOffset)
			} else {
				e.State = eFinally
				v.Context().Jump(e.FinallyOffset)
			}
			ictxv.tryStack = ictxv.tryStack[:j+1]
			return
		}
	}
	// Uncaught exception, FAULT.
	panic(fmt.Errorf("%w: %s", vmerror.ErrUncaught, exceptionString(v.uncaughtException)))
}

func exceptionString(item stackitem.Item) string {
	if item == nil {
		return "nil"
	}
	s, err := stackitem.ToString(item)
	if err != nil {
		return item.String()
	}
	return s
}

// getTryParams splits the TRY parameter into catch and finally offsets.
func getTryParams(op opcode.Opcode, p []byte) ([]byte, []byte) {
	i := 1
	if op == opcode.TRYL {
		i = 4
	}
	return p[:i], p[i:]
}

// getJumpOffset returns an instruction number in the current context to
// which the offset in the parameter points, relative to the current
// opcode's address.
func getJumpOffset(ctx *Context, parameter []byte) int {
	var rOffset int32
	switch l := len(parameter); l {
	case 1:
		rOffset = int32(int8(parameter[0]))
	case 4:
		rOffset = int32(binary.LittleEndian.Uint32(parameter))
	default:
		panic(fmt.Errorf("%w: invalid jump offset length %d", vmerror.ErrInvalidOpcode, l))
	}
	offset := ctx.ip + int(rOffset)
	if offset < 0 || offset > len(ctx.prog) {
		panic(fmt.Errorf("%w: jump offset %d", vmerror.ErrOutOfRange, offset))
	}
	return offset
}

func (v *VM) getSlotValue(s *slot, i int) stackitem.Item {
	if s == nil || i < 0 || i >= s.Size() {
		panic(fmt.Errorf("%w: slot index", vmerror.ErrOutOfRange))
	}
	return (*s).Get(i)
}

func (v *VM) setSlotValue(s *slot, i int, item stackitem.Item) {
	if s == nil || i < 0 || i >= s.Size() {
		panic(fmt.Errorf("%w: slot index", vmerror.ErrOutOfRange))
	}
	(*s).Set(i, item, &v.refs)
}

func (v *VM) getLocalValue(s slot, i int) stackitem.Item {
	if s == nil || i < 0 || i >= s.Size() {
		panic(fmt.Errorf("%w: slot index", vmerror.ErrOutOfRange))
	}
	return s.Get(i)
}

func (v *VM) setLocalValue(s slot, i int, item stackitem.Item) {
	if s == nil || i < 0 || i >= s.Size() {
		panic(fmt.Errorf("%w: slot index", vmerror.ErrOutOfRange))
	}
	s.Set(i, item, &v.refs)
}

// pushInt pushes the integer checking the 32-byte cap, faulting with an
// overflow otherwise.
func (v *VM) pushInt(ctx *Context, i *big.Int) {
	if !bigint.IsValid(i) {
		panic(vmerror.ErrOverflow)
	}
	v.estack(ctx).Push((*stackitem.BigInteger)(i))
}

const (
	maxSHLArg    = limits.MaxShift
	math8MinInt  = -128
	math8MaxUint = 255
)

func toInt(i *big.Int) int {
	if !i.IsInt64() {
		panic(fmt.Errorf("%w: not an int64", vmerror.ErrInvalidArgument))
	}
	n := i.Int64()
	if n < math.MinInt32 || n > math.MaxInt32 {
		panic(fmt.Errorf("%w: int32 overflow", vmerror.ErrInvalidArgument))
	}
	return int(n)
}

func mustInteger(item stackitem.Item) *big.Int {
	res, err := item.TryInteger()
	if err != nil {
		panic(err)
	}
	return res
}

func cloneIfStruct(item stackitem.Item) stackitem.Item {
	switch it := item.(type) {
	case *stackitem.Struct:
		ret, err := it.Clone()
		if err != nil {
			panic(err)
		}
		return ret
	default:
		return it
	}
}

func makeArrayOfType(n int, typ stackitem.Type) []stackitem.Item {
	if !typ.IsValid() {
		panic(fmt.Errorf("%w: invalid type", vmerror.ErrInvalidArgument))
	}
	items := make([]stackitem.Item, n)
	for i := range items {
		// Fresh default per slot, aliased defaults never leak into
		// mutation paths.
		switch typ {
		case stackitem.BooleanT:
			items[i] = stackitem.NewBool(false)
		case stackitem.IntegerT:
			items[i] = stackitem.NewBigInteger(big.NewInt(0))
		case stackitem.ByteArrayT:
			items[i] = stackitem.NewByteArray([]byte{})
		default:
			items[i] = stackitem.Null{}
		}
	}
	return items
}

func dedupMapElems(elems []stackitem.MapElement) []stackitem.MapElement {
	res := make([]stackitem.MapElement, 0, len(elems))
	for i := range elems {
		idx := -1
		for j := range res {
			if res[j].Key.Equals(elems[i].Key) {
				idx = j
				break
			}
		}
		if idx >= 0 {
			res[idx].Value = elems[i].Value
		} else {
			res = append(res, elems[i])
		}
	}
	return res
}
