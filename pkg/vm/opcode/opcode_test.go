package opcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringer(t *testing.T) {
	tests := map[Opcode]string{
		ADD:        "ADD",
		SUB:        "SUB",
		THROW:      "THROW",
		NEWARRAYT:  "NEWARRAY_T",
		JMPL:       "JMP_L",
		Opcode(0x07): "INVALID",
		Opcode(0xff): "INVALID",
	}
	for o, s := range tests {
		assert.Equal(t, s, o.String())
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(ADD))
	assert.True(t, IsValid(PUSH0))
	assert.True(t, IsValid(ABORTMSG))
	assert.False(t, IsValid(Opcode(0x42)))
	assert.False(t, IsValid(Opcode(0xE2)))
}
