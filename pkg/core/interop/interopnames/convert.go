package interopnames

import (
	"encoding/binary"
	"errors"

	"github.com/neoref/neoref/pkg/crypto/hash"
)

var errNotFound = errors.New("interop not found")

// ToID returns the identifier of the method based on its name: the low 32
// bits of murmur32 over the ASCII name with seed zero.
func ToID(name []byte) uint32 {
	return hash.Murmur32(name, 0)
}

// FromID returns the interop name from its id.
func FromID(id uint32) (string, error) {
	for i := range names {
		if id == ToID([]byte(names[i])) {
			return names[i], nil
		}
	}
	return "", errNotFound
}

// PutID writes the id of the given method into a 4-byte LE buffer.
func PutID(b []byte, name string) {
	binary.LittleEndian.PutUint32(b, ToID([]byte(name)))
}
