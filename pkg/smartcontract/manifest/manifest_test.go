package manifest

import (
	"testing"

	json "github.com/nspcc-dev/go-ordered-json"
	"github.com/neoref/neoref/pkg/smartcontract"
	"github.com/neoref/neoref/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidManifest(name string) *Manifest {
	m := DefaultManifest(name)
	m.ABI.Methods = []Method{{
		Name:       "main",
		ReturnType: smartcontract.IntegerType,
	}}
	return m
}

func TestManifestValidation(t *testing.T) {
	h := util.Uint160{1, 2, 3}

	m := newValidManifest("Test")
	require.NoError(t, m.IsValid(h, true))

	m = newValidManifest("")
	require.Error(t, m.IsValid(h, true))

	m = newValidManifest("Test")
	m.ABI.Methods = append(m.ABI.Methods, m.ABI.Methods[0])
	require.Error(t, m.IsValid(h, true))

	m = newValidManifest("Test")
	m.SupportedStandards = []string{"NEP-17", "NEP-17"}
	require.Error(t, m.IsValid(h, true))
}

func TestCanCallWildcard(t *testing.T) {
	caller := DefaultManifest("caller")
	callee := newValidManifest("callee")
	assert.True(t, caller.CanCall(util.Uint160{5}, callee, "main"))
}

func TestCanCallRestricted(t *testing.T) {
	target := util.Uint160{5}
	other := util.Uint160{6}

	caller := NewManifest("caller")
	caller.Permissions = []Permission{*NewPermission(PermissionHash, target)}
	callee := newValidManifest("callee")

	assert.True(t, caller.CanCall(target, callee, "main"))
	assert.False(t, caller.CanCall(other, callee, "main"))
}

func TestCanCallMethodFilter(t *testing.T) {
	target := util.Uint160{5}
	caller := NewManifest("caller")
	perm := NewPermission(PermissionHash, target)
	perm.Methods.Add("allowed")
	caller.Permissions = []Permission{*perm}
	callee := newValidManifest("callee")

	assert.True(t, caller.CanCall(target, callee, "allowed"))
	assert.False(t, caller.CanCall(target, callee, "denied"))
}

func TestManifestJSONRoundtrip(t *testing.T) {
	m := newValidManifest("Test")
	m.SupportedStandards = []string{NEP17StandardName}
	data, err := json.Marshal(m)
	require.NoError(t, err)

	decoded := new(Manifest)
	require.NoError(t, decoded.UnmarshalJSON(data))
	assert.Equal(t, m.Name, decoded.Name)
	require.Equal(t, 1, len(decoded.ABI.Methods))
	assert.Equal(t, "main", decoded.ABI.Methods[0].Name)
	assert.True(t, decoded.Permissions[0].Contract.Type == PermissionWildcard)
}

func TestManifestStackItemRoundtrip(t *testing.T) {
	m := newValidManifest("Test")
	item, err := m.ToStackItem()
	require.NoError(t, err)
	decoded := new(Manifest)
	require.NoError(t, decoded.FromStackItem(item))
	assert.Equal(t, m.Name, decoded.Name)
	assert.Equal(t, len(m.ABI.Methods), len(decoded.ABI.Methods))
}
