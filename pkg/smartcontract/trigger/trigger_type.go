// Package trigger defines the reason the VM was invoked.
package trigger

import "fmt"

// Type represents a trigger type.
type Type byte

// Viable list of supported trigger type constants.
const (
	// OnPersist is a trigger type that indicates that the script is being
	// invoked internally by the system during the block persistence
	// (before transaction processing).
	OnPersist Type = 0x01

	// PostPersist is a trigger type that indicates that the script is
	// being invoked by the system after block persistence (transaction
	// processing) has finished.
	PostPersist Type = 0x02

	// Verification trigger indicates that the contract is being invoked
	// as a verification function, which can accept multiple parameters
	// and should return a boolean value indicating the validity of the
	// transaction or block.
	Verification Type = 0x20

	// Application trigger indicates that the contract is being invoked as
	// an application function, which can accept multiple parameters,
	// change the state and return any value.
	Application Type = 0x40

	// All represents any trigger type.
	All = OnPersist | PostPersist | Verification | Application
)

// String implements the fmt.Stringer interface.
func (t Type) String() string {
	switch t {
	case OnPersist:
		return "OnPersist"
	case PostPersist:
		return "PostPersist"
	case Verification:
		return "Verification"
	case Application:
		return "Application"
	case All:
		return "All"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", byte(t))
	}
}

// FromString converts a string to the trigger Type.
func FromString(str string) (Type, error) {
	for _, t := range []Type{OnPersist, PostPersist, Verification, Application, All} {
		if t.String() == str {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown trigger type: %s", str)
}
