// Package vmerror defines the closed set of error kinds a faulted VM
// reports. Every fault carries exactly one of them; they're matched with
// errors.Is through any amount of wrapping.
package vmerror

import "errors"

var (
	// ErrStackUnderflow is returned on a pop from an empty stack.
	ErrStackUnderflow = errors.New("stack underflow")
	// ErrTypeMismatch is returned when an operand has an unexpected
	// variant.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrInvalidArgument is returned when an operand is within the
	// expected variant but out of domain.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrOverflow is returned when an integer result exceeds the 32-byte
	// cap.
	ErrOverflow = errors.New("integer overflow")
	// ErrDivideByZero is returned by DIV/MOD with a zero divisor.
	ErrDivideByZero = errors.New("divide by zero")
	// ErrOutOfRange is returned when an index or length is past a
	// sequence bound.
	ErrOutOfRange = errors.New("out of range")
	// ErrOutOfGas is returned when gas consumed would exceed the limit.
	ErrOutOfGas = errors.New("out of gas")
	// ErrLimitExceeded is returned on a stack, item-size, invocation,
	// try-depth or comparable-size breach.
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrInvalidOpcode is returned for an undefined opcode byte or a
	// malformed operand encoding.
	ErrInvalidOpcode = errors.New("invalid opcode")
	// ErrBadScriptHash is returned for an invalid hash width.
	ErrBadScriptHash = errors.New("bad script hash")
	// ErrPermissionDenied is returned on a call-flag or manifest
	// permission violation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrContractNotFound is returned when the call target doesn't exist.
	ErrContractNotFound = errors.New("contract not found")
	// ErrMethodNotFound is returned when the target method doesn't exist.
	ErrMethodNotFound = errors.New("method not found")
	// ErrInactiveMethod is returned when the target method is not active
	// at the current height under hardfork rules.
	ErrInactiveMethod = errors.New("inactive method")
	// ErrUncaught is returned when a THROW escaped all try frames.
	ErrUncaught = errors.New("unhandled exception")
)
