package core

import (
	"math/big"
	"testing"

	"github.com/neoref/neoref/pkg/config"
	"github.com/neoref/neoref/pkg/config/netmode"
	"github.com/neoref/neoref/pkg/core/block"
	"github.com/neoref/neoref/pkg/core/interop/interopnames"
	"github.com/neoref/neoref/pkg/core/storage"
	"github.com/neoref/neoref/pkg/core/transaction"
	"github.com/neoref/neoref/pkg/io"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/smartcontract/trigger"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm"
	"github.com/neoref/neoref/pkg/vm/emit"
	"github.com/neoref/neoref/pkg/vm/opcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T) *Engine {
	e, err := NewEngine(config.Default(netmode.UnitTestNet), storage.NewMemoryStore(), nil)
	require.NoError(t, err)
	return e
}

func testTx(script []byte) *transaction.Transaction {
	tx := transaction.New(script, 10_0000_0000)
	tx.Signers = []transaction.Signer{{
		Account: util.Uint160{1, 2, 3},
		Scopes:  transaction.CalledByEntry,
	}}
	tx.ValidUntilBlock = 100
	return tx
}

func testBlock(index uint32) *block.Block {
	b := &block.Block{
		Header: block.Header{
			Index:     index,
			Timestamp: 1600000000000,
			Nonce:     42,
		},
	}
	return b
}

func TestApplyTransactionBasic(t *testing.T) {
	e := testEngine(t)
	// PUSH3 PUSH5 ADD.
	aer, err := e.ApplyTransaction(testBlock(1), testTx([]byte{0x13, 0x15, 0x9E, 0x40}))
	require.NoError(t, err)
	assert.Equal(t, vm.HaltState, aer.VMState)
	require.Equal(t, 1, len(aer.Stack))
	assert.Equal(t, big.NewInt(8), aer.Stack[0].Value())
	assert.True(t, aer.GasConsumed > 0)
	assert.True(t, aer.GasConsumed <= 10_0000_0000)
}

func TestApplyTransactionFaultsOnGasExhaustion(t *testing.T) {
	e := testEngine(t)
	w := io.NewBufBinWriter()
	emit.Opcodes(&w.BinWriter, opcode.PUSH1)
	emit.Instruction(&w.BinWriter, opcode.JMP, []byte{0xFF})
	tx := testTx(w.Bytes())
	tx.SystemFee = 1000
	aer, err := e.ApplyTransaction(testBlock(1), tx)
	require.NoError(t, err)
	assert.Equal(t, vm.FaultState, aer.VMState)
	assert.NotEmpty(t, aer.FaultException)
}

func TestNativeCallThroughContractCall(t *testing.T) {
	e := testEngine(t)
	gasHash := e.Natives().GAS.Hash

	w := io.NewBufBinWriter()
	emit.AppCall(&w.BinWriter, gasHash, "decimals", byte(callflag.ReadOnly))
	emit.Opcodes(&w.BinWriter, opcode.RET)
	aer, err := e.ApplyTransaction(testBlock(1), testTx(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, vm.HaltState, aer.VMState, "exception: %s", aer.FaultException)
	require.Equal(t, 1, len(aer.Stack))
	assert.Equal(t, big.NewInt(8), aer.Stack[0].Value())
}

func TestNativeSymbolAndPolicyDefaults(t *testing.T) {
	e := testEngine(t)

	w := io.NewBufBinWriter()
	emit.AppCall(&w.BinWriter, e.Natives().NEO.Hash, "symbol", byte(callflag.ReadOnly))
	aer, err := e.ApplyTransaction(testBlock(1), testTx(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, vm.HaltState, aer.VMState, "exception: %s", aer.FaultException)
	assert.Equal(t, []byte("NEO"), aer.Stack[0].Value())

	w = io.NewBufBinWriter()
	emit.AppCall(&w.BinWriter, e.Natives().Policy.Hash, "getFeePerByte", byte(callflag.ReadOnly))
	aer, err = e.ApplyTransaction(testBlock(1), testTx(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, vm.HaltState, aer.VMState, "exception: %s", aer.FaultException)
	assert.Equal(t, big.NewInt(1000), aer.Stack[0].Value())

	w = io.NewBufBinWriter()
	emit.AppCall(&w.BinWriter, e.Natives().Policy.Hash, "getExecFeeFactor", byte(callflag.ReadOnly))
	aer, err = e.ApplyTransaction(testBlock(1), testTx(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, vm.HaltState, aer.VMState)
	assert.Equal(t, big.NewInt(30), aer.Stack[0].Value())
}

func TestContractNotFoundFaults(t *testing.T) {
	e := testEngine(t)
	w := io.NewBufBinWriter()
	emit.AppCall(&w.BinWriter, util.Uint160{0xde, 0xad}, "method", byte(callflag.All))
	aer, err := e.ApplyTransaction(testBlock(1), testTx(w.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, vm.FaultState, aer.VMState)
	assert.Contains(t, aer.FaultException, "contract not found")
}

func TestCallFlagViolationFaults(t *testing.T) {
	e := testEngine(t)
	// System.Storage.GetContext with None flags on the loaded script.
	w := io.NewBufBinWriter()
	emit.Syscall(&w.BinWriter, interopnames.SystemStorageGetContext)
	tx := testTx(w.Bytes())

	ic := e.newContext(trigger.Application, testBlock(1), tx)
	v := ic.SpawnVM()
	v.GasLimit = tx.SystemFee
	v.LoadScriptWithFlags(tx.Script, callflag.NoneFlag)
	err := ic.Exec()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestStorageSyscallRoundtrip(t *testing.T) {
	e := testEngine(t)
	// The entry script is not a deployed contract, so GetContext must
	// fail with no contract state.
	w := io.NewBufBinWriter()
	emit.Syscall(&w.BinWriter, interopnames.SystemStorageGetContext)
	aer, err := e.ApplyTransaction(testBlock(1), testTx(w.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, vm.FaultState, aer.VMState)
}

func TestRuntimeSyscalls(t *testing.T) {
	e := testEngine(t)
	w := io.NewBufBinWriter()
	emit.Syscall(&w.BinWriter, interopnames.SystemRuntimePlatform)
	emit.Syscall(&w.BinWriter, interopnames.SystemRuntimeGetTrigger)
	emit.Syscall(&w.BinWriter, interopnames.SystemRuntimeGetNetwork)
	aer, err := e.ApplyTransaction(testBlock(1), testTx(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, vm.HaltState, aer.VMState, "exception: %s", aer.FaultException)
	require.Equal(t, 3, len(aer.Stack))
	// Top-of-stack last pushed: network magic.
	assert.Equal(t, big.NewInt(int64(netmode.UnitTestNet)), aer.Stack[2].Value())
	assert.Equal(t, big.NewInt(0x40), aer.Stack[1].Value()) // Application trigger.
	assert.Equal(t, []byte("NEO"), aer.Stack[0].Value())
}

func TestNotifyIsRecorded(t *testing.T) {
	e := testEngine(t)
	w := io.NewBufBinWriter()
	emit.Opcodes(&w.BinWriter, opcode.NEWARRAY0)
	emit.String(&w.BinWriter, "TestEvent")
	emit.Syscall(&w.BinWriter, interopnames.SystemRuntimeNotify)
	aer, err := e.ApplyTransaction(testBlock(1), testTx(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, vm.HaltState, aer.VMState, "exception: %s", aer.FaultException)
	require.Equal(t, 1, len(aer.Events))
	assert.Equal(t, "TestEvent", aer.Events[0].Name)
}

func TestSnapshotAtomicityOnFault(t *testing.T) {
	e := testEngine(t)
	acc := util.Uint160{9, 9, 9}
	require.NoError(t, e.MintGAS(acc, big.NewInt(100)))
	require.NoError(t, e.Persist())

	// Burn fees on a faulting transaction must not happen at the
	// Application trigger: the engine discards the tx layer entirely.
	w := io.NewBufBinWriter()
	emit.Opcodes(&w.BinWriter, opcode.ABORT)
	aer, err := e.ApplyTransaction(testBlock(1), testTx(w.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, vm.FaultState, aer.VMState)

	balances := e.DumpBalances()
	assert.Equal(t, "100", balances[acc].Gas)
}

func TestGasTokenTotalSupplyAfterMint(t *testing.T) {
	e := testEngine(t)
	acc := util.Uint160{1}
	require.NoError(t, e.MintGAS(acc, big.NewInt(5*100000000)))

	w := io.NewBufBinWriter()
	emit.AppCall(&w.BinWriter, e.Natives().GAS.Hash, "balanceOf", byte(callflag.ReadOnly), acc)
	aer, err := e.ApplyTransaction(testBlock(1), testTx(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, vm.HaltState, aer.VMState, "exception: %s", aer.FaultException)
	assert.Equal(t, big.NewInt(5*100000000), aer.Stack[0].Value())
}

func TestOnPostPersistStoreBlock(t *testing.T) {
	e := testEngine(t)
	b := testBlock(1)
	require.NoError(t, e.OnPersist(b))
	require.NoError(t, e.PostPersist(b))
	require.NoError(t, e.Persist())

	height, err := e.DAO().GetCurrentBlockHeight()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), height)

	stored, err := e.DAO().GetBlock(b.Hash())
	require.NoError(t, err)
	assert.Equal(t, b.Hash(), stored.Hash())
}

func TestLedgerNativeCurrentIndex(t *testing.T) {
	e := testEngine(t)
	b := testBlock(7)
	require.NoError(t, e.OnPersist(b))
	require.NoError(t, e.PostPersist(b))

	w := io.NewBufBinWriter()
	emit.AppCall(&w.BinWriter, e.Natives().Ledger.Hash, "currentIndex", byte(callflag.ReadOnly))
	aer, err := e.ApplyTransaction(testBlock(8), testTx(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, vm.HaltState, aer.VMState, "exception: %s", aer.FaultException)
	assert.Equal(t, big.NewInt(7), aer.Stack[0].Value())
}

func TestStdLibThroughCall(t *testing.T) {
	e := testEngine(t)
	w := io.NewBufBinWriter()
	emit.AppCall(&w.BinWriter, e.Natives().StdLib.Hash, "base64Encode", byte(callflag.ReadOnly), []byte("hello"))
	aer, err := e.ApplyTransaction(testBlock(1), testTx(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, vm.HaltState, aer.VMState, "exception: %s", aer.FaultException)
	assert.Equal(t, []byte("aGVsbG8="), aer.Stack[0].Value())
}

func TestCryptoLibSha256(t *testing.T) {
	e := testEngine(t)
	w := io.NewBufBinWriter()
	emit.AppCall(&w.BinWriter, e.Natives().Crypto.Hash, "sha256", byte(callflag.ReadOnly), []byte{})
	aer, err := e.ApplyTransaction(testBlock(1), testTx(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, vm.HaltState, aer.VMState, "exception: %s", aer.FaultException)
	res := aer.Stack[0].Value().([]byte)
	// sha256 of an empty input.
	assert.Equal(t, byte(0xe3), res[0])
	assert.Equal(t, byte(0xb0), res[1])
}
