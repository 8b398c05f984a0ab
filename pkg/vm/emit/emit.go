// Package emit provides convenience functions for assembling VM scripts.
package emit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"math/bits"

	"github.com/neoref/neoref/pkg/core/interop/interopnames"
	"github.com/neoref/neoref/pkg/encoding/bigint"
	"github.com/neoref/neoref/pkg/io"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/opcode"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// Instruction emits a VM Instruction with data to the given buffer.
func Instruction(w *io.BinWriter, op opcode.Opcode, b []byte) {
	w.WriteB(byte(op))
	w.WriteBytes(b)
}

// Opcodes emits a single VM Instruction without arguments to the given
// buffer.
func Opcodes(w *io.BinWriter, ops ...opcode.Opcode) {
	for _, op := range ops {
		w.WriteB(byte(op))
	}
}

// Bool emits a bool type to the given buffer.
func Bool(w *io.BinWriter, ok bool) {
	if ok {
		Opcodes(w, opcode.PUSHT)
		return
	}
	Opcodes(w, opcode.PUSHF)
}

func padRight(s int, buf []byte) []byte {
	l := len(buf)
	buf = buf[:s]
	if buf[l-1]&0x80 != 0 {
		for i := l; i < s; i++ {
			buf[i] = 0xFF
		}
	}
	return buf
}

// Int emits an int type to the given buffer.
func Int(w *io.BinWriter, i int64) {
	BigInt(w, big.NewInt(i))
}

// BigInt emits a big-integer to the given buffer.
func BigInt(w *io.BinWriter, n *big.Int) {
	if !bigint.IsValid(n) {
		w.Err = errors.New("wrong big integer")
		return
	}
	if i := n.Int64(); n.IsInt64() && i == -1 {
		Opcodes(w, opcode.PUSHM1)
		return
	} else if n.IsInt64() && i >= 0 && i <= 16 {
		Opcodes(w, opcode.PUSH0+opcode.Opcode(i))
		return
	}
	buf := bigint.ToBytes(n)
	// len(buf) > 0 here, zero was handled above.
	padSize := byte(8 - bits.LeadingZeros8(byte(len(buf)-1)))
	Opcodes(w, opcode.PUSHINT8+opcode.Opcode(padSize))
	data := make([]byte, 1<<padSize)
	copy(data, buf)
	w.WriteBytes(padRight(1<<padSize, data[:len(buf)]))
}

// Array emits an array of elements to the given buffer. The first element
// ends up on the top of the stack.
func Array(w *io.BinWriter, es ...any) {
	if len(es) == 0 {
		Opcodes(w, opcode.NEWARRAY0)
		return
	}
	for i := len(es) - 1; i >= 0; i-- {
		switch e := es[i].(type) {
		case []any:
			Array(w, e...)
		case int64:
			Int(w, e)
		case int:
			Int(w, int64(e))
		case *big.Int:
			BigInt(w, e)
		case string:
			String(w, e)
		case util.Uint160:
			Bytes(w, e.BytesBE())
		case util.Uint256:
			Bytes(w, e.BytesBE())
		case []byte:
			Bytes(w, e)
		case bool:
			Bool(w, e)
		case stackitem.Item:
			StackItem(w, e)
		default:
			if es[i] != nil {
				w.Err = fmt.Errorf("unsupported type: %T", e)
				return
			}
			Opcodes(w, opcode.PUSHNULL)
		}
	}
	Int(w, int64(len(es)))
	Opcodes(w, opcode.PACK)
}

// StackItem emits a stack item to the given buffer.
func StackItem(w *io.BinWriter, it stackitem.Item) {
	switch t := it.(type) {
	case stackitem.Null:
		Opcodes(w, opcode.PUSHNULL)
	case stackitem.Bool:
		Bool(w, bool(t))
	case *stackitem.BigInteger:
		BigInt(w, t.Big())
	case *stackitem.ByteArray:
		Bytes(w, *t)
	case *stackitem.Buffer:
		Bytes(w, *t)
		Instruction(w, opcode.CONVERT, []byte{byte(stackitem.BufferT)})
	case *stackitem.Array:
		Array(w, anySlice(t.Value().([]stackitem.Item))...)
	case *stackitem.Struct:
		Array(w, anySlice(t.Value().([]stackitem.Item))...)
		Instruction(w, opcode.CONVERT, []byte{byte(stackitem.StructT)})
	case *stackitem.Map:
		elems := t.Value().([]stackitem.MapElement)
		for i := len(elems) - 1; i >= 0; i-- {
			StackItem(w, elems[i].Value)
			StackItem(w, elems[i].Key)
		}
		Int(w, int64(len(elems)))
		Opcodes(w, opcode.PACKMAP)
	default:
		w.Err = fmt.Errorf("unsupported stack item: %s", it)
	}
}

func anySlice(items []stackitem.Item) []any {
	res := make([]any, len(items))
	for i := range items {
		res[i] = items[i]
	}
	return res
}

// String emits a string to the given buffer.
func String(w *io.BinWriter, s string) {
	Bytes(w, []byte(s))
}

// Bytes emits a byte array to the given buffer.
func Bytes(w *io.BinWriter, b []byte) {
	var n = len(b)

	switch {
	case n < 0x100:
		Instruction(w, opcode.PUSHDATA1, []byte{byte(n)})
	case n < 0x10000:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(n))
		Instruction(w, opcode.PUSHDATA2, buf)
	default:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(n))
		Instruction(w, opcode.PUSHDATA4, buf)
	}
	w.WriteBytes(b)
}

// Syscall emits the syscall with the given name to the given buffer.
func Syscall(w *io.BinWriter, api string) {
	if w.Err != nil {
		return
	} else if len(api) == 0 {
		w.Err = errors.New("syscall api cannot be of length 0")
		return
	}
	buf := make([]byte, 4)
	interopnames.PutID(buf, api)
	Instruction(w, opcode.SYSCALL, buf)
}

// Jmp emits a long-form jump instruction along with a label to the given
// buffer.
func Jmp(w *io.BinWriter, op opcode.Opcode, label uint16) {
	if w.Err != nil {
		return
	} else if !isInstructionJmp(op) {
		w.Err = fmt.Errorf("opcode %s is not a long jump or call type", op.String())
		return
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf, label)
	Instruction(w, op, buf)
}

// AppCallNoArgs emits a call to the provided contract with the arguments
// already expected on the stack.
func AppCallNoArgs(w *io.BinWriter, scriptHash util.Uint160, method string, flags byte) {
	Int(w, int64(flags))
	String(w, method)
	Bytes(w, scriptHash.BytesBE())
	Syscall(w, interopnames.SystemContractCall)
}

// AppCall emits a call to the provided contract converting the arguments.
func AppCall(w *io.BinWriter, scriptHash util.Uint160, method string, flags byte, args ...any) {
	Array(w, args...)
	Int(w, int64(flags))
	String(w, method)
	Bytes(w, scriptHash.BytesBE())
	Syscall(w, interopnames.SystemContractCall)
}

func isInstructionJmp(op opcode.Opcode) bool {
	switch op {
	case opcode.JMPL, opcode.JMPIFL, opcode.JMPIFNOTL, opcode.JMPEQL,
		opcode.JMPNEL, opcode.JMPGTL, opcode.JMPGEL, opcode.JMPLTL,
		opcode.JMPLEL, opcode.CALLL, opcode.ENDTRYL:
		return true
	default:
		return false
	}
}
