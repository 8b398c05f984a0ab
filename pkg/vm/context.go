package vm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/neoref/neoref/pkg/crypto/hash"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/smartcontract/nef"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/opcode"
	"github.com/neoref/neoref/pkg/vm/stackitem"
	"github.com/neoref/neoref/pkg/vm/vmerror"
)

// Context represents the current execution context of the VM.
type Context struct {
	// Instruction pointer.
	ip int

	// The next instruction pointer.
	nextip int

	// The raw program script.
	prog []byte

	// Evaluation stack pointer.
	estack *Stack

	static    *slot
	local     slot
	arguments slot

	// sharedSlots is true when local/arguments belong to the calling
	// context (entered via CALL) and must not be cleared on unload.
	sharedSlots bool

	// Exception context stack.
	tryStack []*exceptionHandlingContext

	// Script hash of the prog.
	scriptHash util.Uint160
	hashInit   bool

	// Caller's contract script hash.
	callingScriptHash util.Uint160

	// Call flags this context was created with.
	callFlag callflag.CallFlag

	// NEF represents the NEF file for the current contract.
	NEF *nef.File

	// onUnload is called after the context is unloaded from the
	// invocation stack, with the engine fault state of the moment. It's
	// used by the application engine to commit or roll back per-call
	// state.
	onUnload func(commit bool) error
}

var errNoInstParam = fmt.Errorf("%w: failed to read instruction parameter", vmerror.ErrInvalidOpcode)

// NewContext returns a new Context object for the given script.
func NewContext(b []byte) *Context {
	return &Context{prog: b}
}

// Estack returns the evaluation stack of c.
func (c *Context) Estack() *Stack {
	return c.estack
}

// NextIP returns the next instruction pointer.
func (c *Context) NextIP() int {
	return c.nextip
}

// IP returns the current instruction offset in the context script.
func (c *Context) IP() int {
	return c.ip
}

// LenInstr returns the number of instructions loaded.
func (c *Context) LenInstr() int {
	return len(c.prog)
}

// Program returns the loaded program.
func (c *Context) Program() []byte {
	return c.prog
}

// Jump unconditionally moves the next instruction pointer to the specified
// location.
func (c *Context) Jump(pos int) {
	if pos < 0 || pos > len(c.prog) {
		panic(fmt.Errorf("%w: jump to %d", vmerror.ErrOutOfRange, pos))
	}
	c.nextip = pos
}

// ScriptHash returns the script hash of the program in the context.
func (c *Context) ScriptHash() util.Uint160 {
	if !c.hashInit {
		c.scriptHash = hash.Hash160(c.prog)
		c.hashInit = true
	}
	return c.scriptHash
}

// GetCallFlags returns the calling flags which the context was created
// with.
func (c *Context) GetCallFlags() callflag.CallFlag {
	return c.callFlag
}

// Next returns the next instruction to execute with its parameter if any.
// The parameter is not copied and shouldn't be written to. After this
// call the instruction pointer points to the instruction returned.
func (c *Context) Next() (opcode.Opcode, []byte, error) {
	var err error

	c.ip = c.nextip
	if c.ip >= len(c.prog) {
		return opcode.RET, nil, nil
	}

	var instrbyte = c.prog[c.ip]
	var instr = opcode.Opcode(instrbyte)
	if !opcode.IsValid(instr) {
		return instr, nil, fmt.Errorf("%w: %d at %d", vmerror.ErrInvalidOpcode, instrbyte, c.ip)
	}
	c.nextip++

	var numtoread int
	switch instr {
	case opcode.PUSHINT8, opcode.JMP, opcode.JMPIF, opcode.JMPIFNOT, opcode.JMPEQ, opcode.JMPNE,
		opcode.JMPGT, opcode.JMPGE, opcode.JMPLT, opcode.JMPLE,
		opcode.CALL, opcode.ISTYPE, opcode.CONVERT, opcode.NEWARRAYT,
		opcode.ENDTRY,
		opcode.INITSSLOT, opcode.LDSFLD, opcode.STSFLD, opcode.LDARG, opcode.STARG,
		opcode.LDLOC, opcode.STLOC:
		numtoread = 1
	case opcode.PUSHINT16, opcode.CALLT, opcode.TRY, opcode.INITSLOT:
		numtoread = 2
	case opcode.PUSHINT32, opcode.PUSHA, opcode.JMPL, opcode.JMPIFL, opcode.JMPIFNOTL,
		opcode.JMPEQL, opcode.JMPNEL, opcode.JMPGTL, opcode.JMPGEL, opcode.JMPLTL,
		opcode.JMPLEL, opcode.ENDTRYL,
		opcode.CALLL, opcode.SYSCALL:
		numtoread = 4
	case opcode.PUSHINT64, opcode.TRYL:
		numtoread = 8
	case opcode.PUSHINT128:
		numtoread = 16
	case opcode.PUSHINT256:
		numtoread = 32
	case opcode.PUSHDATA1:
		if c.nextip >= len(c.prog) {
			err = errNoInstParam
		} else {
			numtoread = int(c.prog[c.nextip])
			c.nextip++
		}
	case opcode.PUSHDATA2:
		if c.nextip+1 >= len(c.prog) {
			err = errNoInstParam
		} else {
			numtoread = int(binary.LittleEndian.Uint16(c.prog[c.nextip : c.nextip+2]))
			c.nextip += 2
		}
	case opcode.PUSHDATA4:
		if c.nextip+3 >= len(c.prog) {
			err = errNoInstParam
		} else {
			var n = binary.LittleEndian.Uint32(c.prog[c.nextip : c.nextip+4])
			if n > stackitem.MaxSize {
				return instr, nil, fmt.Errorf("%w: parameter is too big", vmerror.ErrInvalidOpcode)
			}
			numtoread = int(n)
			c.nextip += 4
		}
	default:
		if instr <= opcode.PUSHINT256 {
			return instr, nil, fmt.Errorf("%w: %d", vmerror.ErrInvalidOpcode, instrbyte)
		}
	}
	if c.nextip+numtoread > len(c.prog) {
		err = errNoInstParam
	}
	if err != nil {
		return instr, nil, err
	}
	parameter := c.prog[c.nextip : c.nextip+numtoread]
	c.nextip += numtoread
	return instr, parameter, nil
}

// IsDeployed returns whether this context contains a deployed contract.
func (c *Context) IsDeployed() bool {
	return c.NEF != nil
}

// SetOnUnload sets the unload callback hook used by the host.
func (c *Context) SetOnUnload(f func(commit bool) error) {
	c.onUnload = f
}

func (c *Context) errOnUnload(commit bool) error {
	if c.onUnload == nil {
		return nil
	}
	f := c.onUnload
	c.onUnload = nil
	err := f(commit)
	if err != nil {
		return errors.New("context unload: " + err.Error())
	}
	return nil
}
