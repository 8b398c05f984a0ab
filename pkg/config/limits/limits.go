// Package limits contains the hard execution limits of the VM and of the
// transaction envelope. A breach of any of them faults the VM.
package limits

const (
	// MaxStackSize is the maximum number of live stack items across the
	// whole engine, reference counter included.
	MaxStackSize = 2 * 1024

	// MaxItemSize is the maximum size of a byte string or buffer.
	MaxItemSize = 1024 * 1024

	// MaxInvocationStackSize is the maximum number of loaded execution
	// contexts.
	MaxInvocationStackSize = 1024

	// MaxShift is the maximum shift count for SHL/SHR.
	MaxShift = 256

	// MaxComparableSize is the maximum byte size processed by the
	// recursive equality check.
	MaxComparableSize = 65536

	// MaxTryNestingDepth is the maximum number of nested try frames per
	// context.
	MaxTryNestingDepth = 16

	// MaxTransactionSize is the upper cap on the serialized transaction
	// envelope.
	MaxTransactionSize = 102400
)
