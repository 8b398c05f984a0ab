package vm

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/neoref/neoref/pkg/config/limits"
	"github.com/neoref/neoref/pkg/encoding/bigint"
	"github.com/neoref/neoref/pkg/io"
	"github.com/neoref/neoref/pkg/vm/emit"
	"github.com/neoref/neoref/pkg/vm/opcode"
	"github.com/neoref/neoref/pkg/vm/stackitem"
	"github.com/neoref/neoref/pkg/vm/vmerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(prog []byte) *VM {
	v := New()
	v.LoadScript(prog)
	return v
}

func makeProgram(ops ...opcode.Opcode) []byte {
	prog := make([]byte, len(ops)+1)
	for i := 0; i < len(ops); i++ {
		prog[i] = byte(ops[i])
	}
	prog[len(ops)] = byte(opcode.RET)
	return prog
}

func runVM(t *testing.T, vm *VM) {
	err := vm.Run()
	require.NoError(t, err)
	assert.Equal(t, false, vm.HasFailed())
}

func checkVMFailed(t *testing.T, vm *VM) {
	err := vm.Run()
	require.Error(t, err)
	assert.Equal(t, true, vm.HasFailed())
}

func TestAddBasic(t *testing.T) {
	// PUSH3 PUSH5 ADD.
	vm := load([]byte{0x13, 0x15, 0x9E})
	runVM(t, vm)
	require.Equal(t, 1, vm.Estack().Len())
	assert.Equal(t, big.NewInt(8), vm.Estack().Pop().Value())
}

func TestSHLShiftZero(t *testing.T) {
	// The value must survive a zero shift on the stack.
	vm := load(makeProgram(opcode.PUSH2, opcode.PUSH0, opcode.SHL))
	runVM(t, vm)
	require.Equal(t, 1, vm.Estack().Len())
	assert.Equal(t, big.NewInt(2), vm.Estack().Pop().Value())
}

func TestSHLOverLimit(t *testing.T) {
	w := io.NewBufBinWriter()
	emit.Int(&w.BinWriter, 2)
	emit.Int(&w.BinWriter, limits.MaxShift+1)
	emit.Opcodes(&w.BinWriter, opcode.SHL)
	vm := load(w.Bytes())
	checkVMFailed(t, vm)
}

func TestArithmeticCap(t *testing.T) {
	w := io.NewBufBinWriter()
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	emit.BigInt(&w.BinWriter, max)
	emit.Opcodes(&w.BinWriter, opcode.INC)
	vm := load(w.Bytes())
	err := vm.Run()
	require.ErrorIs(t, err, vmerror.ErrOverflow)
}

func TestDivisionSignLaw(t *testing.T) {
	r := rand.New(rand.NewSource(77))
	buf := make([]byte, 32)
	for i := 0; i < 200; i++ {
		r.Read(buf)
		a := bigint.FromBytes(buf[:1+r.Intn(32)])
		r.Read(buf)
		b := bigint.FromBytes(buf[:1+r.Intn(32)])
		if b.Sign() == 0 {
			continue
		}
		w := io.NewBufBinWriter()
		emit.BigInt(&w.BinWriter, a)
		emit.BigInt(&w.BinWriter, b)
		emit.Opcodes(&w.BinWriter, opcode.MOD)
		emit.BigInt(&w.BinWriter, a)
		emit.BigInt(&w.BinWriter, b)
		emit.Opcodes(&w.BinWriter, opcode.DIV)
		vm := load(w.Bytes())
		runVM(t, vm)
		q := vm.Estack().Pop().Value().(*big.Int)
		rem := vm.Estack().Pop().Value().(*big.Int)
		// a == (a/b)*b + a%b
		recon := new(big.Int).Mul(q, b)
		recon.Add(recon, rem)
		require.Equal(t, 0, recon.Cmp(a), "a=%s b=%s", a, b)
		// sign(a%b) == sign(a) or a%b == 0
		if rem.Sign() != 0 {
			require.Equal(t, a.Sign(), rem.Sign())
		}
	}
}

func TestPackMapOrder(t *testing.T) {
	// Push value 0x01, key "k", size 1, PACKMAP.
	w := io.NewBufBinWriter()
	emit.Int(&w.BinWriter, 1)
	emit.String(&w.BinWriter, "k")
	emit.Int(&w.BinWriter, 1)
	emit.Opcodes(&w.BinWriter, opcode.PACKMAP)
	vm := load(w.Bytes())
	runVM(t, vm)
	require.Equal(t, 1, vm.Estack().Len())
	m, ok := vm.Estack().Pop().(*stackitem.Map)
	require.True(t, ok)
	require.Equal(t, 1, m.Len())
	elems := m.Value().([]stackitem.MapElement)
	assert.True(t, elems[0].Key.Equals(stackitem.Make("k")))
	assert.True(t, elems[0].Value.Equals(stackitem.Make(1)))
}

func TestPackUnpackRoundTrip(t *testing.T) {
	w := io.NewBufBinWriter()
	emit.Int(&w.BinWriter, 3)
	emit.String(&w.BinWriter, "two")
	emit.Int(&w.BinWriter, 1)
	emit.Int(&w.BinWriter, 3)
	// UNPACK leaves the element count on top, which is exactly what the
	// next PACK consumes: PACK∘UNPACK is an identity.
	emit.Opcodes(&w.BinWriter, opcode.PACK, opcode.UNPACK, opcode.PACK)
	vm := load(w.Bytes())
	runVM(t, vm)
	arr, ok := vm.Estack().Pop().(*stackitem.Array)
	require.True(t, ok)
	items := arr.Value().([]stackitem.Item)
	require.Equal(t, 3, len(items))
	assert.True(t, items[0].Equals(stackitem.Make(1)))
	assert.True(t, items[1].Equals(stackitem.Make("two")))
	assert.True(t, items[2].Equals(stackitem.Make(3)))
}

func TestTryCatchesThrow(t *testing.T) {
	w := io.NewBufBinWriter()
	// TRY with catch and finally. THROW 7 inside the protected block,
	// catch leaves the caught value, finally pushes a flag value.
	emit.Instruction(&w.BinWriter, opcode.TRY, []byte{5, 8}) // catch at 5, finally at 8
	emit.Opcodes(&w.BinWriter, opcode.PUSH7, opcode.THROW)   // offset 3, 4
	// catch block at offset 5: NOP, ENDTRY +4 (to offset 10).
	emit.Opcodes(&w.BinWriter, opcode.NOP)                      // offset 5
	emit.Instruction(&w.BinWriter, opcode.ENDTRY, []byte{4})    // offset 6, jumps to 10
	emit.Opcodes(&w.BinWriter, opcode.PUSH1, opcode.ENDFINALLY) // offset 8: finally
	emit.Opcodes(&w.BinWriter, opcode.RET)                      // offset 10
	vm := load(w.Bytes())
	runVM(t, vm)
	require.Equal(t, 2, vm.Estack().Len())
	// finally flag on top, caught value below.
	assert.Equal(t, big.NewInt(1), vm.Estack().Pop().Value())
	assert.Equal(t, big.NewInt(7), vm.Estack().Pop().Value())
}

func TestUncaughtThrowFaults(t *testing.T) {
	vm := load(makeProgram(opcode.PUSH7, opcode.THROW))
	err := vm.Run()
	require.ErrorIs(t, err, vmerror.ErrUncaught)
	require.NotNil(t, vm.UncaughtException())
	assert.Equal(t, big.NewInt(7), vm.UncaughtException().Value())
}

func TestMemcpyOutOfRange(t *testing.T) {
	w := io.NewBufBinWriter()
	emit.Int(&w.BinWriter, 4)
	emit.Opcodes(&w.BinWriter, opcode.NEWBUFFER) // dst
	emit.Int(&w.BinWriter, 2)                    // dstIdx
	emit.Bytes(&w.BinWriter, []byte{1, 2, 3})    // src
	emit.Int(&w.BinWriter, 0)                    // srcIdx
	emit.Int(&w.BinWriter, 3)                    // count
	emit.Opcodes(&w.BinWriter, opcode.MEMCPY)
	vm := load(w.Bytes())
	err := vm.Run()
	require.ErrorIs(t, err, vmerror.ErrOutOfRange)
}

func TestMemcpyBasic(t *testing.T) {
	w := io.NewBufBinWriter()
	emit.Int(&w.BinWriter, 4)
	emit.Opcodes(&w.BinWriter, opcode.NEWBUFFER, opcode.DUP)
	emit.Int(&w.BinWriter, 1)                 // dstIdx
	emit.Bytes(&w.BinWriter, []byte{7, 8, 9}) // src
	emit.Int(&w.BinWriter, 1)                 // srcIdx
	emit.Int(&w.BinWriter, 2)                 // count
	emit.Opcodes(&w.BinWriter, opcode.MEMCPY)
	vm := load(w.Bytes())
	runVM(t, vm)
	buf := vm.Estack().Pop().(*stackitem.Buffer)
	assert.Equal(t, []byte{0, 8, 9, 0}, []byte(*buf))
}

func TestAbortBypassesTry(t *testing.T) {
	w := io.NewBufBinWriter()
	emit.Instruction(&w.BinWriter, opcode.TRY, []byte{3, 0})
	emit.Opcodes(&w.BinWriter, opcode.ABORT)
	emit.Opcodes(&w.BinWriter, opcode.PUSH1)
	emit.Opcodes(&w.BinWriter, opcode.RET)
	vm := load(w.Bytes())
	checkVMFailed(t, vm)
}

func TestAssert(t *testing.T) {
	vm := load(makeProgram(opcode.PUSH1, opcode.ASSERT))
	runVM(t, vm)

	vm = load(makeProgram(opcode.PUSH0, opcode.ASSERT))
	checkVMFailed(t, vm)
}

func TestByteArrayToBooleanSemantics(t *testing.T) {
	// 0x0000 is false even though its length is nonzero.
	w := io.NewBufBinWriter()
	emit.Bytes(&w.BinWriter, []byte{0, 0})
	emit.Opcodes(&w.BinWriter, opcode.NOT)
	vm := load(w.Bytes())
	runVM(t, vm)
	assert.Equal(t, true, vm.Estack().Pop().Value())
}

func TestStructVsArrayEquality(t *testing.T) {
	w := io.NewBufBinWriter()
	emit.Int(&w.BinWriter, 1)
	emit.Int(&w.BinWriter, 1)
	emit.Opcodes(&w.BinWriter, opcode.PACK) // Array [1]
	emit.Int(&w.BinWriter, 1)
	emit.Int(&w.BinWriter, 1)
	emit.Opcodes(&w.BinWriter, opcode.PACKSTRUCT) // Struct [1]
	emit.Opcodes(&w.BinWriter, opcode.EQUAL)
	vm := load(w.Bytes())
	runVM(t, vm)
	assert.Equal(t, false, vm.Estack().Pop().Value())

	// But CONVERT(Array, Struct) equals the struct structurally.
	w = io.NewBufBinWriter()
	emit.Int(&w.BinWriter, 1)
	emit.Int(&w.BinWriter, 1)
	emit.Opcodes(&w.BinWriter, opcode.PACK)
	emit.Instruction(&w.BinWriter, opcode.CONVERT, []byte{byte(stackitem.StructT)})
	emit.Int(&w.BinWriter, 1)
	emit.Int(&w.BinWriter, 1)
	emit.Opcodes(&w.BinWriter, opcode.PACKSTRUCT)
	emit.Opcodes(&w.BinWriter, opcode.EQUAL)
	vm = load(w.Bytes())
	runVM(t, vm)
	assert.Equal(t, true, vm.Estack().Pop().Value())
}

func TestCallAndRETConservation(t *testing.T) {
	w := io.NewBufBinWriter()
	emit.Opcodes(&w.BinWriter, opcode.PUSH2)                 // offset 0
	emit.Instruction(&w.BinWriter, opcode.CALL, []byte{0x4}) // offset 1, call to 5
	emit.Opcodes(&w.BinWriter, opcode.ADD, opcode.RET)       // offset 3
	emit.Opcodes(&w.BinWriter, opcode.PUSH5, opcode.PUSH3, opcode.RET)
	vm := load(w.Bytes())
	runVM(t, vm)
	// 2 stayed with the caller, the callee returned 5 and 3 in order,
	// ADD took the top two.
	require.Equal(t, 2, vm.Estack().Len())
	assert.Equal(t, big.NewInt(8), vm.Estack().Pop().Value())
	assert.Equal(t, big.NewInt(2), vm.Estack().Pop().Value())
}

func TestInvocationLimit(t *testing.T) {
	// CALL to self, infinitely recursive.
	w := io.NewBufBinWriter()
	emit.Instruction(&w.BinWriter, opcode.CALL, []byte{0})
	vm := load(w.Bytes())
	err := vm.Run()
	require.ErrorIs(t, err, vmerror.ErrLimitExceeded)
}

func TestStackLimit(t *testing.T) {
	w := io.NewBufBinWriter()
	emit.Opcodes(&w.BinWriter, opcode.PUSH1)
	emit.Opcodes(&w.BinWriter, opcode.DUP)
	emit.Instruction(&w.BinWriter, opcode.JMP, []byte{0xFF}) // jump back to DUP
	vm := load(w.Bytes())
	err := vm.Run()
	require.ErrorIs(t, err, vmerror.ErrLimitExceeded)
}

func TestNEWARRAYTDefaultsDontAlias(t *testing.T) {
	w := io.NewBufBinWriter()
	emit.Int(&w.BinWriter, 2)
	emit.Instruction(&w.BinWriter, opcode.NEWARRAYT, []byte{byte(stackitem.IntegerT)})
	emit.Opcodes(&w.BinWriter, opcode.DUP, opcode.DUP)
	emit.Int(&w.BinWriter, 0)
	emit.Int(&w.BinWriter, 42)
	emit.Opcodes(&w.BinWriter, opcode.SETITEM)
	emit.Int(&w.BinWriter, 1)
	emit.Opcodes(&w.BinWriter, opcode.PICKITEM)
	vm := load(w.Bytes())
	runVM(t, vm)
	assert.Equal(t, big.NewInt(0), vm.Estack().Pop().Value())
}

func TestGasLimit(t *testing.T) {
	vm := load(makeProgram(opcode.PUSH1, opcode.PUSH2, opcode.ADD))
	vm.GasLimit = 2
	vm.SetPriceGetter(func(opcode.Opcode, []byte) int64 { return 1 })
	err := vm.Run()
	require.ErrorIs(t, err, vmerror.ErrOutOfGas)
}

func TestGasMonotonic(t *testing.T) {
	vm := load(makeProgram(opcode.PUSH1, opcode.PUSH2, opcode.ADD))
	vm.GasLimit = 100
	vm.SetPriceGetter(func(opcode.Opcode, []byte) int64 { return 1 })
	runVM(t, vm)
	assert.Equal(t, int64(4), vm.GasConsumed()) // 3 ops + the trailing RET
}

func TestDupBufferSharesReference(t *testing.T) {
	prog := makeProgram(opcode.DUP, opcode.PUSH0, opcode.PUSH1, opcode.SETITEM)
	vm := load(prog)
	vm.Estack().PushVal(stackitem.NewBuffer([]byte{0, 1}))
	runVM(t, vm)
	// Buffers are duplicated by reference, so the original is mutated.
	assert.Equal(t, []byte{1, 1}, vm.Estack().Pop().Value())
}

func TestFinallyResumePropagation(t *testing.T) {
	w := io.NewBufBinWriter()
	// Outer TRY(catch at +11) { inner TRY(no catch, finally at +5) {
	// THROW 7 } finally { PUSH8 } }; outer catch leaves the value.
	emit.Instruction(&w.BinWriter, opcode.TRY, []byte{11, 0})  // 0: catch at 11
	emit.Instruction(&w.BinWriter, opcode.TRY, []byte{0, 5})   // 3: finally at 8
	emit.Opcodes(&w.BinWriter, opcode.PUSH7, opcode.THROW)     // 6, 7
	emit.Opcodes(&w.BinWriter, opcode.PUSH8)                   // 8: finally body
	emit.Opcodes(&w.BinWriter, opcode.ENDFINALLY)              // 9: resume throw
	emit.Opcodes(&w.BinWriter, opcode.NOP)                     // 10
	emit.Opcodes(&w.BinWriter, opcode.NOP)                     // 11: catch block
	emit.Instruction(&w.BinWriter, opcode.ENDTRY, []byte{0x2}) // 12: to 14
	emit.Opcodes(&w.BinWriter, opcode.RET)                     // 14
	vm := load(w.Bytes())
	runVM(t, vm)
	require.Equal(t, 2, vm.Estack().Len())
	// Caught value 7 on top, finally's 8 below it.
	assert.Equal(t, big.NewInt(7), vm.Estack().Pop().Value())
	assert.Equal(t, big.NewInt(8), vm.Estack().Pop().Value())
}
