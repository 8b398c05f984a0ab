// Package runtime implements the System.Runtime.* syscall family: block
// context access, logging, notifications and gas introspection.
package runtime

import (
	"errors"
	"fmt"

	"github.com/neoref/neoref/pkg/config/limits"
	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/core/state"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/stackitem"
	"go.uber.org/zap"
)

const (
	// MaxEventNameLen is the maximum length of a notification event name.
	MaxEventNameLen = 32
	// MaxNotificationSize is the maximum length of a runtime log message.
	MaxNotificationSize = 1024
	// SystemRuntimeLogMessage represents the log entry message used by
	// System.Runtime.Log.
	SystemRuntimeLogMessage = "runtime log"
)

// GetExecutingScriptHash returns the executing script hash.
func GetExecutingScriptHash(ic *interop.Context) error {
	ic.VM.Estack().Push(stackitem.NewByteArray(ic.VM.GetCurrentScriptHash().BytesBE()))
	return nil
}

// GetCallingScriptHash returns the calling script hash.
func GetCallingScriptHash(ic *interop.Context) error {
	h := ic.VM.GetCallingScriptHash()
	if h.Equals(util.Uint160{}) {
		ic.VM.Estack().Push(stackitem.Null{})
	} else {
		ic.VM.Estack().Push(stackitem.NewByteArray(h.BytesBE()))
	}
	return nil
}

// GetEntryScriptHash returns the entry script hash.
func GetEntryScriptHash(ic *interop.Context) error {
	ic.VM.Estack().Push(stackitem.NewByteArray(ic.VM.GetEntryScriptHash().BytesBE()))
	return nil
}

// Platform returns the name of the platform.
func Platform(ic *interop.Context) error {
	ic.VM.Estack().Push(stackitem.NewByteArray([]byte("NEO")))
	return nil
}

// GetTrigger returns the script trigger.
func GetTrigger(ic *interop.Context) error {
	ic.VM.Estack().PushVal(byte(ic.Trigger))
	return nil
}

// GetTime returns the timestamp of the most recent block.
func GetTime(ic *interop.Context) error {
	if ic.Block == nil {
		return errors.New("no block in the context")
	}
	ic.VM.Estack().PushVal(ic.Block.Timestamp)
	return nil
}

// GetScriptContainer returns the transaction or block that contains the
// script being run.
func GetScriptContainer(ic *interop.Context) error {
	var item stackitem.Item
	switch {
	case ic.Tx != nil:
		item = transactionToStackItem(ic.Tx)
	case ic.Block != nil:
		item = blockHashItem(ic)
	default:
		return errors.New("script container is not available")
	}
	ic.VM.Estack().Push(item)
	return nil
}

// GetNetwork returns the network magic.
func GetNetwork(ic *interop.Context) error {
	ic.VM.Estack().PushVal(ic.Network)
	return nil
}

// GetAddressVersion returns the address version of the current protocol.
func GetAddressVersion(ic *interop.Context) error {
	ic.VM.Estack().PushVal(ic.Chain.AddressVersion)
	return nil
}

// GetRandom returns a random number.
func GetRandom(ic *interop.Context) error {
	ic.VM.Estack().PushVal(ic.GetRandom())
	return nil
}

// GasLeft returns the remaining amount of GAS.
func GasLeft(ic *interop.Context) error {
	if ic.VM.GasLimit == -1 {
		ic.VM.Estack().PushVal(ic.VM.GasLimit)
	} else {
		ic.VM.Estack().PushVal(ic.VM.GasLimit - ic.VM.GasConsumed())
	}
	return nil
}

// BurnGas burns the provided GAS for a price.
func BurnGas(ic *interop.Context) error {
	gas := ic.VM.Estack().PopBigInt()
	if !gas.IsInt64() {
		return errors.New("invalid GAS value")
	}

	g := gas.Int64()
	if g <= 0 {
		return errors.New("GAS must be positive")
	}

	if !ic.VM.AddGas(g) {
		return errors.New("GAS limit exceeded")
	}
	return nil
}

// GetInvocationCounter returns how many times the current contract has
// been invoked during the current tx execution.
func GetInvocationCounter(ic *interop.Context) error {
	currentScriptHash := ic.VM.GetCurrentScriptHash()
	count, ok := ic.Invocations[currentScriptHash]
	if !ok {
		count = 1
		ic.Invocations[currentScriptHash] = count
	}
	ic.VM.Estack().PushVal(count)
	return nil
}

// Notify emits a notification for the current contract.
func Notify(ic *interop.Context) error {
	name := ic.VM.Estack().PopString()
	elem := ic.VM.Estack().Pop()
	args, ok := elem.(*stackitem.Array)
	if !ok {
		return errors.New("notification args must be an array")
	}
	if len(name) > MaxEventNameLen {
		return fmt.Errorf("notification name shouldn't be longer than %d", MaxEventNameLen)
	}
	curHash := ic.VM.GetCurrentScriptHash()

	// The event and args must comply with the contract's manifest.
	if ic.GetContract != nil {
		ctr, err := ic.GetContract(ic.DAO, curHash)
		if err == nil {
			ev := ctr.Manifest.ABI.GetEvent(name)
			if ev == nil {
				return fmt.Errorf("notification %s does not exist", name)
			}
			if err := ev.CheckCompliance(args.Value().([]stackitem.Item)); err != nil {
				return fmt.Errorf("notification %s is invalid: %w", name, err)
			}
		}
	}

	// The notification is not allowed to grow or change after it's
	// emitted, deep copy it.
	copied := stackitem.DeepCopy(args, true).(*stackitem.Array)
	ic.AddNotification(curHash, name, copied)
	return nil
}

// LoadScript takes a script and arguments from the stack and loads it
// into the VM with the given call flags.
func LoadScript(ic *interop.Context) error {
	script := ic.VM.Estack().PopBytes()
	fs := callflag.CallFlag(int32(ic.VM.Estack().PopBigInt().Int64()))
	if fs&^callflag.All != 0 {
		return errors.New("call flags out of range")
	}
	args := ic.VM.Estack().Pop().(*stackitem.Array)
	fs = ic.VM.Context().GetCallFlags() & callflag.ReadOnly & fs
	ic.VM.LoadScriptWithHash(script, ic.VM.GetCurrentScriptHash(), fs)
	for e, i := args.Value().([]stackitem.Item), 0; i < len(e); i++ {
		ic.VM.Estack().Push(e[len(e)-1-i])
	}
	return nil
}

// Log logs the message passed.
func Log(ic *interop.Context) error {
	state := ic.VM.Estack().PopString()
	if len(state) > MaxNotificationSize {
		return fmt.Errorf("message length shouldn't be longer than %v", MaxNotificationSize)
	}
	var txHash string
	if ic.Tx != nil {
		txHash = ic.Tx.Hash().StringLE()
	}
	ic.Log.Info(SystemRuntimeLogMessage,
		zap.String("tx", txHash),
		zap.String("script", ic.VM.GetCurrentScriptHash().StringLE()),
		zap.String("msg", state))
	return nil
}

// GetNotifications returns notifications emitted in the current
// execution context filtered by the emitter hash (or Null for all).
func GetNotifications(ic *interop.Context) error {
	item := ic.VM.Estack().Pop()
	notifications := ic.Notifications
	if _, ok := item.(stackitem.Null); !ok {
		b, err := item.TryBytes()
		if err != nil {
			return err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return err
		}
		notifications = []state.NotificationEvent{}
		for i := range ic.Notifications {
			if ic.Notifications[i].ScriptHash.Equals(u) {
				notifications = append(notifications, ic.Notifications[i])
			}
		}
	}
	if len(notifications) > limits.MaxStackSize {
		return errors.New("too many notifications")
	}
	arr := stackitem.NewArray(make([]stackitem.Item, 0, len(notifications)))
	for i := range notifications {
		ev := stackitem.NewArray([]stackitem.Item{
			stackitem.NewByteArray(notifications[i].ScriptHash.BytesBE()),
			stackitem.Make(notifications[i].Name),
			stackitem.DeepCopy(notifications[i].Item, false),
		})
		arr.Append(ev)
	}
	ic.VM.Estack().Push(arr)
	return nil
}

// CurrentSigners returns the signers of the currently loaded transaction
// or Null if executing outside of a transaction.
func CurrentSigners(ic *interop.Context) error {
	if ic.Tx == nil {
		ic.VM.Estack().Push(stackitem.Null{})
		return nil
	}
	arr := make([]stackitem.Item, 0, len(ic.Tx.Signers))
	for i := range ic.Tx.Signers {
		arr = append(arr, signerToStackItem(&ic.Tx.Signers[i]))
	}
	ic.VM.Estack().Push(stackitem.NewArray(arr))
	return nil
}
