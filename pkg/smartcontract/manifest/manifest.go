// Package manifest defines the deployed contract's metadata: ABI,
// permissions, groups and supported standards.
package manifest

import (
	"errors"
	"fmt"

	json "github.com/nspcc-dev/go-ordered-json"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

const (
	// MaxManifestSize is a max length for a valid contract manifest.
	MaxManifestSize = 0xFFFF

	// MethodInit is a name for the default initialization method.
	MethodInit = "_initialize"

	// MethodDeploy is a name for the default method called during the
	// contract deployment.
	MethodDeploy = "_deploy"

	// MethodVerify is a name for the default verification method.
	MethodVerify = "verify"

	// MethodOnNEP17Payment is the name of the method called when a
	// contract receives NEP-17 tokens.
	MethodOnNEP17Payment = "onNEP17Payment"

	// NEP17StandardName represents the name of the NEP-17 smartcontract
	// standard.
	NEP17StandardName = "NEP-17"
	// NEP27StandardName represents the name of the NEP-27 smartcontract
	// standard.
	NEP27StandardName = "NEP-27"
)

// Manifest represents contract metadata.
type Manifest struct {
	// Name is a contract's name.
	Name string `json:"name"`
	// ABI is a contract's ABI.
	ABI ABI `json:"abi"`
	// Features is a set of contract features. Currently unused.
	Features json.RawMessage `json:"features"`
	// Groups is a set of groups to which a contract belongs.
	Groups Groups `json:"groups"`
	// Permissions is a set of permissions.
	Permissions Permissions `json:"permissions"`
	// SupportedStandards is a list of standards supported by the contract.
	SupportedStandards []string `json:"supportedstandards"`
	// Trusts is a set of hashes to which a contract trusts.
	Trusts WildPermissionDescs `json:"trusts"`
	// Extra is implementation-defined user data.
	Extra json.RawMessage `json:"extra"`
}

// NewManifest returns a new manifest with the necessary fields initialized.
func NewManifest(name string) *Manifest {
	m := &Manifest{
		Name: name,
		ABI: ABI{
			Methods: []Method{},
			Events:  []Event{},
		},
		Features:           json.RawMessage("{}"),
		Groups:             []Group{},
		Permissions:        []Permission{},
		SupportedStandards: []string{},
		Extra:              json.RawMessage("null"),
	}
	m.Trusts.Restrict()
	return m
}

// DefaultManifest returns the default contract manifest allowing
// everything.
func DefaultManifest(name string) *Manifest {
	m := NewManifest(name)
	m.Permissions = []Permission{*NewPermission(PermissionWildcard)}
	return m
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	type manifestAux Manifest
	aux := (*manifestAux)(m)
	return json.Unmarshal(data, aux)
}

// MarshalJSON implements the json.Marshaler interface.
func (m Manifest) MarshalJSON() ([]byte, error) {
	type manifestAux Manifest
	return json.Marshal((manifestAux)(m))
}

// CanCall returns true if the current contract is allowed to call the
// method of another contract with the given manifest.
func (m *Manifest) CanCall(hash util.Uint160, toCall *Manifest, method string) bool {
	for i := range m.Permissions {
		if m.Permissions[i].IsAllowed(hash, toCall, method) {
			return true
		}
	}
	return false
}

// IsValid checks manifest internal consistency and the hash against all
// the keys in the manifest groups.
func (m *Manifest) IsValid(hash util.Uint160, checkSize bool) error {
	var err error

	if m.Name == "" {
		return errors.New("no name")
	}

	for i := range m.SupportedStandards {
		if m.SupportedStandards[i] == "" {
			return errors.New("invalid nameless supported standard")
		}
	}
	if len(m.SupportedStandards) > 1 {
		names := make([]string, len(m.SupportedStandards))
		copy(names, m.SupportedStandards)
		if stringsHaveDups(names) {
			return errors.New("duplicate supported standards")
		}
	}
	err = m.ABI.IsValid()
	if err != nil {
		return fmt.Errorf("ABI: %w", err)
	}
	err = m.Groups.AreValid(hash)
	if err != nil {
		return err
	}
	if len(m.Trusts.Value) > 1 && !m.Trusts.IsWildcard() {
		cache := make([]PermissionDesc, 0, len(m.Trusts.Value))
		for _, v := range m.Trusts.Value {
			for _, existing := range cache {
				if existing.Equals(v) {
					return errors.New("duplicate trusted contracts")
				}
			}
			cache = append(cache, v)
		}
	}
	err = m.Permissions.AreValid()
	if err != nil {
		return err
	}
	if !checkSize {
		return nil
	}
	si, err := m.ToStackItem()
	if err != nil {
		return fmt.Errorf("failed to check manifest serialization: %w", err)
	}
	_, err = stackitem.Serialize(si)
	if err != nil {
		return fmt.Errorf("failed to check manifest serialization: %w", err)
	}
	return nil
}

// IsStandardSupported denotes whether the specified standard is listed in
// the manifest.
func (m *Manifest) IsStandardSupported(standard string) bool {
	for _, st := range m.SupportedStandards {
		if st == standard {
			return true
		}
	}
	return false
}

// ToStackItem converts Manifest to stackitem.Item.
func (m *Manifest) ToStackItem() (stackitem.Item, error) {
	groups := make([]stackitem.Item, len(m.Groups))
	for i := range m.Groups {
		groups[i] = m.Groups[i].ToStackItem()
	}
	supportedStandards := make([]stackitem.Item, len(m.SupportedStandards))
	for i := range m.SupportedStandards {
		supportedStandards[i] = stackitem.Make(m.SupportedStandards[i])
	}
	abi := m.ABI.ToStackItem()
	permissions := make([]stackitem.Item, len(m.Permissions))
	for i := range m.Permissions {
		permissions[i] = m.Permissions[i].ToStackItem()
	}
	trusts := stackitem.Item(stackitem.Null{})
	if !m.Trusts.IsWildcard() {
		tItems := make([]stackitem.Item, len(m.Trusts.Value))
		for i := range m.Trusts.Value {
			tItems[i] = m.Trusts.Value[i].ToStackItem()
		}
		trusts = stackitem.Make(tItems)
	}
	extra := stackitem.Make("null")
	if m.Extra != nil {
		extra = stackitem.NewByteArray(m.Extra)
	}
	return stackitem.NewStruct([]stackitem.Item{
		stackitem.Make(m.Name),
		stackitem.Make(groups),
		stackitem.NewMap(),
		stackitem.Make(supportedStandards),
		abi,
		stackitem.Make(permissions),
		trusts,
		extra,
	}), nil
}

// FromStackItem converts stackitem.Item to Manifest.
func (m *Manifest) FromStackItem(item stackitem.Item) error {
	var err error
	if item.Type() != stackitem.StructT {
		return errors.New("invalid manifest stackitem type")
	}
	str := item.Value().([]stackitem.Item)
	if len(str) != 8 {
		return errors.New("invalid stackitem length")
	}
	m.Name, err = stackitem.ToString(str[0])
	if err != nil {
		return err
	}
	if str[1].Type() != stackitem.ArrayT {
		return errors.New("invalid Groups stackitem type")
	}
	groups := str[1].Value().([]stackitem.Item)
	m.Groups = make([]Group, len(groups))
	for i := range groups {
		group := new(Group)
		err := group.FromStackItem(groups[i])
		if err != nil {
			return err
		}
		m.Groups[i] = *group
	}
	m.Features = json.RawMessage("{}")
	if str[3].Type() != stackitem.ArrayT {
		return errors.New("invalid SupportedStandards stackitem type")
	}
	supportedStandards := str[3].Value().([]stackitem.Item)
	m.SupportedStandards = make([]string, len(supportedStandards))
	for i := range supportedStandards {
		m.SupportedStandards[i], err = stackitem.ToString(supportedStandards[i])
		if err != nil {
			return err
		}
	}
	abi := new(ABI)
	if err := abi.FromStackItem(str[4]); err != nil {
		return err
	}
	m.ABI = *abi
	if str[5].Type() != stackitem.ArrayT {
		return errors.New("invalid Permissions stackitem type")
	}
	permissions := str[5].Value().([]stackitem.Item)
	m.Permissions = make([]Permission, len(permissions))
	for i := range permissions {
		p := new(Permission)
		if err := p.FromStackItem(permissions[i]); err != nil {
			return err
		}
		m.Permissions[i] = *p
	}
	if _, ok := str[6].(stackitem.Null); ok {
		m.Trusts.Restrict()
	} else {
		if str[6].Type() != stackitem.ArrayT {
			return errors.New("invalid Trusts stackitem type")
		}
		trusts := str[6].Value().([]stackitem.Item)
		m.Trusts.Value = make([]PermissionDesc, len(trusts))
		for i := range trusts {
			v := new(PermissionDesc)
			if err := v.FromStackItem(trusts[i]); err != nil {
				return err
			}
			m.Trusts.Value[i] = *v
		}
	}
	extra, err := str[7].TryBytes()
	if err != nil {
		return err
	}
	m.Extra = extra
	return nil
}

func stringsHaveDups(names []string) bool {
	for i := range names {
		for j := i + 1; j < len(names); j++ {
			if names[i] == names[j] {
				return true
			}
		}
	}
	return false
}
