// Package smartcontract contains the contract parameter model shared by
// manifests, the native framework and the VM marshalling layer.
package smartcontract

import (
	"errors"
	"fmt"

	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// ParamType represents the type of the smart contract parameter.
type ParamType int

// A list of supported smart contract parameter types.
const (
	UnknownType          ParamType = -1
	AnyType              ParamType = 0x00
	BoolType             ParamType = 0x10
	IntegerType          ParamType = 0x11
	ByteArrayType        ParamType = 0x12
	StringType           ParamType = 0x13
	Hash160Type          ParamType = 0x14
	Hash256Type          ParamType = 0x15
	PublicKeyType        ParamType = 0x16
	SignatureType        ParamType = 0x17
	ArrayType            ParamType = 0x20
	MapType              ParamType = 0x22
	InteropInterfaceType ParamType = 0x30
	VoidType             ParamType = 0xff
)

// String implements the fmt.Stringer interface.
func (pt ParamType) String() string {
	switch pt {
	case SignatureType:
		return "Signature"
	case BoolType:
		return "Boolean"
	case IntegerType:
		return "Integer"
	case Hash160Type:
		return "Hash160"
	case Hash256Type:
		return "Hash256"
	case ByteArrayType:
		return "ByteArray"
	case PublicKeyType:
		return "PublicKey"
	case StringType:
		return "String"
	case ArrayType:
		return "Array"
	case MapType:
		return "Map"
	case InteropInterfaceType:
		return "InteropInterface"
	case VoidType:
		return "Void"
	case AnyType:
		return "Any"
	default:
		return ""
	}
}

// MarshalJSON implements the json.Marshaler interface.
func (pt ParamType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + pt.String() + `"`), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (pt *ParamType) UnmarshalJSON(data []byte) error {
	l := len(data)
	if l < 2 || data[0] != '"' || data[l-1] != '"' {
		return errors.New("wrong data")
	}
	var err error
	*pt, err = ParseParamType(string(data[1 : l-1]))
	return err
}

// ParseParamType is a user-friendly relaxed version of parsing a string to
// a ParamType.
func ParseParamType(typ string) (ParamType, error) {
	switch typ {
	case "Signature":
		return SignatureType, nil
	case "Boolean":
		return BoolType, nil
	case "Integer":
		return IntegerType, nil
	case "Hash160":
		return Hash160Type, nil
	case "Hash256":
		return Hash256Type, nil
	case "ByteArray":
		return ByteArrayType, nil
	case "PublicKey":
		return PublicKeyType, nil
	case "String":
		return StringType, nil
	case "Array":
		return ArrayType, nil
	case "Map":
		return MapType, nil
	case "InteropInterface":
		return InteropInterfaceType, nil
	case "Void":
		return VoidType, nil
	case "Any":
		return AnyType, nil
	default:
		return UnknownType, fmt.Errorf("bad parameter type: %s", typ)
	}
}

// ConvertToParamType converts the provided value to the parameter type if
// it's a valid type.
func ConvertToParamType(val int) (ParamType, error) {
	t := ParamType(val)
	if t.String() != "" {
		return t, nil
	}
	return UnknownType, errors.New("unknown parameter type")
}

// ToStackItemType converts ParamType to the corresponding stackitem.Type.
func (pt ParamType) ToStackItemType() stackitem.Type {
	switch pt {
	case SignatureType, ByteArrayType, PublicKeyType:
		return stackitem.ByteArrayT
	case BoolType:
		return stackitem.BooleanT
	case IntegerType:
		return stackitem.IntegerT
	case StringType:
		return stackitem.ByteArrayT
	case Hash160Type, Hash256Type:
		return stackitem.ByteArrayT
	case ArrayType:
		return stackitem.ArrayT
	case MapType:
		return stackitem.MapT
	case InteropInterfaceType:
		return stackitem.InteropT
	case AnyType:
		return stackitem.AnyT
	default:
		return stackitem.AnyT
	}
}
