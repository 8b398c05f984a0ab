package transaction

import (
	"github.com/neoref/neoref/pkg/crypto/hash"
	"github.com/neoref/neoref/pkg/io"
	"github.com/neoref/neoref/pkg/util"
)

// MaxInvocationScript is the maximum length of the invocation script.
const MaxInvocationScript = 1024

// MaxVerificationScript is the maximum length of the verification script.
const MaxVerificationScript = 1024

// Witness contains an invocation and a verification script.
type Witness struct {
	InvocationScript   []byte `json:"invocation"`
	VerificationScript []byte `json:"verification"`
}

// DecodeBinary implements the Serializable interface.
func (w *Witness) DecodeBinary(br *io.BinReader) {
	w.InvocationScript = br.ReadVarBytes(MaxInvocationScript)
	w.VerificationScript = br.ReadVarBytes(MaxVerificationScript)
}

// EncodeBinary implements the Serializable interface.
func (w *Witness) EncodeBinary(bw *io.BinWriter) {
	bw.WriteVarBytes(w.InvocationScript)
	bw.WriteVarBytes(w.VerificationScript)
}

// ScriptHash returns the hash of the verification script.
func (w Witness) ScriptHash() util.Uint160 {
	return hash.Hash160(w.VerificationScript)
}

// Copy creates a deep copy of the Witness.
func (w Witness) Copy() Witness {
	return Witness{
		InvocationScript:   append([]byte{}, w.InvocationScript...),
		VerificationScript: append([]byte{}, w.VerificationScript...),
	}
}
