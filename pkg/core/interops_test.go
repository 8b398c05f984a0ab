package core

import (
	"testing"

	"github.com/neoref/neoref/pkg/core/interop/interopnames"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyscallTableIsComplete(t *testing.T) {
	fns := systemInterops()
	byID := make(map[uint32]string, len(fns))
	for _, f := range fns {
		name, ok := byID[f.ID]
		require.False(t, ok, "id collision between %s and %s", name, f.Name)
		byID[f.ID] = f.Name
	}
	for _, name := range interopnames.All() {
		_, ok := byID[interopnames.ToID([]byte(name))]
		assert.True(t, ok, "missing syscall %s", name)
	}
}

func TestSyscallIDsAreNameDerived(t *testing.T) {
	fns := systemInterops()
	for _, f := range fns {
		assert.Equal(t, interopnames.ToID([]byte(f.Name)), f.ID, f.Name)
	}
}
