// Package core wires the VM, the application engine, the syscall table
// and the native contract suite into one executable engine.
package core

import (
	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/core/interop/contract"
	"github.com/neoref/neoref/pkg/core/interop/crypto"
	"github.com/neoref/neoref/pkg/core/interop/interopnames"
	"github.com/neoref/neoref/pkg/core/interop/iterator"
	"github.com/neoref/neoref/pkg/core/interop/runtime"
	istorage "github.com/neoref/neoref/pkg/core/interop/storage"
	"github.com/neoref/neoref/pkg/core/native"
	"github.com/neoref/neoref/pkg/config"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
)

var (
	hfEchidna = config.HFEchidna
	hfFaun    = config.HFFaun
)

// systemInterops is the v3.9.1 syscall table: every record carries the
// name (the id is derived from it), the price and the required call
// flags.
func systemInterops() []interop.Function {
	fns := []interop.Function{
		interop.NewFunction(interopnames.SystemContractCall, contract.Call, 1<<15, callflag.ReadStates|callflag.AllowCall),
		interop.NewFunction(interopnames.SystemContractCallNative, native.Call, 0, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemContractCreateMultisigAccount, contract.CreateMultisigAccount, 0, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemContractCreateStandardAccount, contract.CreateStandardAccount, 0, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemContractGetCallFlags, contract.GetCallFlags, 1<<10, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemCryptoCheckSig, crypto.ECDSASecp256r1CheckSig, crypto.CheckSigPrice, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemCryptoCheckMultisig, crypto.ECDSASecp256r1CheckMultisig, 0, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemIteratorNext, iterator.Next, 1<<15, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemIteratorValue, iterator.Value, 1<<4, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemRuntimeBurnGas, runtime.BurnGas, 1<<4, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemRuntimeCheckWitness, runtime.CheckWitness, 1<<10, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemRuntimeGasLeft, runtime.GasLeft, 1<<4, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemRuntimeGetAddressVersion, runtime.GetAddressVersion, 1<<3, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemRuntimeGetCallingScriptHash, runtime.GetCallingScriptHash, 1<<4, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemRuntimeGetEntryScriptHash, runtime.GetEntryScriptHash, 1<<4, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemRuntimeGetExecutingScriptHash, runtime.GetExecutingScriptHash, 1<<4, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemRuntimeGetInvocationCounter, runtime.GetInvocationCounter, 1<<4, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemRuntimeGetNetwork, runtime.GetNetwork, 1<<3, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemRuntimeGetNotifications, runtime.GetNotifications, 1<<12, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemRuntimeGetRandom, runtime.GetRandom, 1<<4, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemRuntimeGetScriptContainer, runtime.GetScriptContainer, 1<<3, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemRuntimeGetTime, runtime.GetTime, 1<<3, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemRuntimeGetTrigger, runtime.GetTrigger, 1<<3, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemRuntimeLoadScript, runtime.LoadScript, 1<<15, callflag.AllowCall),
		interop.NewFunction(interopnames.SystemRuntimeLog, runtime.Log, 1<<15, callflag.AllowNotify),
		interop.NewFunction(interopnames.SystemRuntimeNotify, runtime.Notify, 1<<15, callflag.AllowNotify),
		interop.NewFunction(interopnames.SystemRuntimePlatform, runtime.Platform, 1<<3, callflag.NoneFlag),
		interop.NewFunction(interopnames.SystemStorageAsReadOnly, istorage.AsReadOnly, 1<<4, callflag.ReadStates),
		interop.NewFunction(interopnames.SystemStorageDelete, istorage.Delete, 1<<15, callflag.WriteStates),
		interop.NewFunction(interopnames.SystemStorageFind, istorage.Find, 1<<15, callflag.ReadStates),
		interop.NewFunction(interopnames.SystemStorageGet, istorage.Get, 1<<15, callflag.ReadStates),
		interop.NewFunction(interopnames.SystemStorageGetContext, istorage.GetContext, 1<<4, callflag.ReadStates),
		interop.NewFunction(interopnames.SystemStorageGetReadOnlyContext, istorage.GetReadOnlyContext, 1<<4, callflag.ReadStates),
		interop.NewFunction(interopnames.SystemStoragePut, istorage.Put, 1<<15, callflag.WriteStates),
	}

	currentSigners := interop.NewFunction(interopnames.SystemRuntimeCurrentSigners, runtime.CurrentSigners, 1<<4, callflag.NoneFlag)
	currentSigners.ActiveFrom = &hfEchidna
	fns = append(fns, currentSigners)

	for _, lf := range []struct {
		name string
		f    func(*interop.Context) error
	}{
		{interopnames.SystemStorageLocalGet, istorage.LocalGet},
		{interopnames.SystemStorageLocalPut, istorage.LocalPut},
		{interopnames.SystemStorageLocalDelete, istorage.LocalDelete},
	} {
		fn := interop.NewFunction(lf.name, lf.f, 1<<5, callflag.NoneFlag)
		fn.ActiveFrom = &hfFaun
		fns = append(fns, fn)
	}
	return fns
}
