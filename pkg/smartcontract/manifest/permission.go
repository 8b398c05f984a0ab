package manifest

import (
	"errors"
	"fmt"

	json "github.com/nspcc-dev/go-ordered-json"
	"github.com/neoref/neoref/pkg/crypto/keys"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// PermissionType represents a permission type.
type PermissionType uint8

const (
	// PermissionWildcard allows everything.
	PermissionWildcard PermissionType = 0
	// PermissionHash restricts called contracts based on the hash.
	PermissionHash PermissionType = 1
	// PermissionGroup restricts called contracts based on the public key.
	PermissionGroup PermissionType = 2
)

// PermissionDesc is a permission descriptor.
type PermissionDesc struct {
	Type  PermissionType
	Value any
}

// Permission describes which contracts may be invoked and which methods
// are called.
type Permission struct {
	Contract PermissionDesc `json:"contract"`
	Methods  WildStrings    `json:"methods"`
}

// Permissions is just an array of Permission.
type Permissions []Permission

// NewPermission returns a new permission of the given type.
func NewPermission(typ PermissionType, args ...any) *Permission {
	return &Permission{
		Contract: *newPermissionDesc(typ, args...),
	}
}

func newPermissionDesc(typ PermissionType, args ...any) *PermissionDesc {
	desc := &PermissionDesc{Type: typ}
	switch typ {
	case PermissionWildcard:
		if len(args) != 0 {
			panic("wildcard permission has no arguments")
		}
	case PermissionHash:
		if len(args) == 0 {
			panic("hash permission should have an argument")
		} else if u, ok := args[0].(util.Uint160); !ok {
			panic("hash permission should have a util.Uint160 argument")
		} else {
			desc.Value = u
		}
	case PermissionGroup:
		if len(args) == 0 {
			panic("group permission should have an argument")
		} else if pub, ok := args[0].(*keys.PublicKey); !ok {
			panic("group permission should have a public key argument")
		} else {
			desc.Value = pub
		}
	}
	return desc
}

// Hash returns the hash for the hash-permission.
func (d *PermissionDesc) Hash() util.Uint160 {
	return d.Value.(util.Uint160)
}

// Group returns the group's public key for the group-permission.
func (d *PermissionDesc) Group() *keys.PublicKey {
	return d.Value.(*keys.PublicKey)
}

// Equals returns true if both descriptors are the same.
func (d *PermissionDesc) Equals(other PermissionDesc) bool {
	if d.Type != other.Type {
		return false
	}
	switch d.Type {
	case PermissionWildcard:
		return true
	case PermissionHash:
		return d.Hash().Equals(other.Hash())
	case PermissionGroup:
		return d.Group().Cmp(other.Group()) == 0
	}
	return false
}

// IsValid checks if Permission is correct.
func (p *Permission) IsValid() error {
	for i := range p.Methods.Value {
		if p.Methods.Value[i] == "" {
			return errors.New("empty method name")
		}
	}
	if len(p.Methods.Value) < 2 {
		return nil
	}
	names := make([]string, len(p.Methods.Value))
	copy(names, p.Methods.Value)
	if stringsHaveDups(names) {
		return errors.New("duplicate method names")
	}
	return nil
}

// AreValid checks each permission and ensures there are no duplicates.
func (ps Permissions) AreValid() error {
	for i := range ps {
		err := ps[i].IsValid()
		if err != nil {
			return err
		}
	}
	if len(ps) < 2 {
		return nil
	}
	for i := range ps {
		for j := i + 1; j < len(ps); j++ {
			if ps[i].Contract.Equals(ps[j].Contract) {
				return errors.New("duplicate contracts")
			}
		}
	}
	return nil
}

// IsAllowed checks whether the contract with the given hash and manifest
// is allowed to be called with the given method.
func (p *Permission) IsAllowed(hash util.Uint160, m *Manifest, method string) bool {
	switch p.Contract.Type {
	case PermissionWildcard:
	case PermissionHash:
		if !p.Contract.Hash().Equals(hash) {
			return false
		}
	case PermissionGroup:
		g := p.Contract.Group()
		found := false
		for i := range m.Groups {
			if g.Cmp(m.Groups[i].PublicKey) == 0 {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	default:
		return false
	}
	return p.Methods.Contains(method)
}

// ToStackItem converts Permission to stackitem.Item.
func (p *Permission) ToStackItem() stackitem.Item {
	var methods stackitem.Item
	contract := p.Contract.ToStackItem()
	if p.Methods.IsWildcard() {
		methods = stackitem.Null{}
	} else {
		m := make([]stackitem.Item, len(p.Methods.Value))
		for i := range p.Methods.Value {
			m[i] = stackitem.Make(p.Methods.Value[i])
		}
		methods = stackitem.Make(m)
	}
	return stackitem.NewStruct([]stackitem.Item{
		contract,
		methods,
	})
}

// ToStackItem converts PermissionDesc to stackitem.Item.
func (d *PermissionDesc) ToStackItem() stackitem.Item {
	switch d.Type {
	case PermissionWildcard:
		return stackitem.Null{}
	case PermissionHash:
		return stackitem.Make(d.Hash())
	case PermissionGroup:
		return stackitem.Make(d.Group().Bytes())
	default:
		panic("unsupported permission descriptor type")
	}
}

// FromStackItem converts stackitem.Item to Permission.
func (p *Permission) FromStackItem(item stackitem.Item) error {
	if item.Type() != stackitem.StructT {
		return errors.New("invalid Permission stackitem type")
	}
	str := item.Value().([]stackitem.Item)
	if len(str) != 2 {
		return errors.New("invalid Permission stackitem length")
	}
	desc := new(PermissionDesc)
	err := desc.FromStackItem(str[0])
	if err != nil {
		return err
	}
	p.Contract = *desc
	if _, ok := str[1].(stackitem.Null); ok {
		p.Methods = WildStrings{}
	} else {
		if str[1].Type() != stackitem.ArrayT {
			return errors.New("invalid Methods stackitem type")
		}
		methods := str[1].Value().([]stackitem.Item)
		p.Methods = WildStrings{Value: make([]string, len(methods))}
		for i := range methods {
			p.Methods.Value[i], err = stackitem.ToString(methods[i])
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// FromStackItem converts stackitem.Item to PermissionDesc.
func (d *PermissionDesc) FromStackItem(item stackitem.Item) error {
	if _, ok := item.(stackitem.Null); ok {
		d.Type = PermissionWildcard
		return nil
	}
	val, err := item.TryBytes()
	if err != nil {
		return err
	}
	switch len(val) {
	case util.Uint160Size:
		d.Type = PermissionHash
		u, err := util.Uint160DecodeBytesBE(val)
		if err != nil {
			return err
		}
		d.Value = u
	case 33:
		d.Type = PermissionGroup
		pub, err := keys.NewPublicKeyFromBytes(val)
		if err != nil {
			return err
		}
		d.Value = pub
	default:
		return errors.New("invalid PermissionDesc stackitem value")
	}
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (d PermissionDesc) MarshalJSON() ([]byte, error) {
	switch d.Type {
	case PermissionHash:
		return json.Marshal("0x" + d.Hash().StringLE())
	case PermissionGroup:
		return json.Marshal(d.Group().StringCompressed())
	default:
		return []byte(`"*"`), nil
	}
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (d *PermissionDesc) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch len(s) {
	case 2 + util.Uint160Size*2, util.Uint160Size * 2:
		if len(s) == 2+util.Uint160Size*2 {
			if s[:2] != "0x" {
				return fmt.Errorf("invalid hash prefix: %s", s)
			}
			s = s[2:]
		}
		u, err := util.Uint160DecodeStringLE(s)
		if err != nil {
			return err
		}
		d.Type = PermissionHash
		d.Value = u
	case 33 * 2:
		pub, err := keys.NewPublicKeyFromString(s)
		if err != nil {
			return err
		}
		d.Type = PermissionGroup
		d.Value = pub
	case 1:
		if s != "*" {
			return fmt.Errorf("unknown permission: %s", s)
		}
		d.Type = PermissionWildcard
	default:
		return fmt.Errorf("unknown permission: %s", s)
	}
	return nil
}
