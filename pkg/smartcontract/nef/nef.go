// Package nef implements the NEO Executable Format: a deployed contract's
// script together with its metadata and the method-token table.
package nef

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/neoref/neoref/pkg/crypto/hash"
	"github.com/neoref/neoref/pkg/io"
)

// NEO Executable Format 3 (NEF3):
//
//	+------------+-----------+------------------------------------------+
//	|   Field    |  Length   |                 Comment                  |
//	+------------+-----------+------------------------------------------+
//	| Magic      | 4 bytes   | Magic header                             |
//	| Compiler   | 64 bytes  | Compiler name and version                |
//	| Source     | Var bytes | Source file URL                          |
//	| Reserved   | 1 byte    | Must be 0                                |
//	| Tokens     | Var array | Method tokens                            |
//	| Reserved   | 2 bytes   | Must be 0                                |
//	| Script     | Var bytes | Contract script                          |
//	| Checksum   | 4 bytes   | First 4 bytes of double SHA256 of the    |
//	|            |           | preceding content                        |
//	+------------+-----------+------------------------------------------+

const (
	// Magic is a magic File header constant.
	Magic uint32 = 0x3346454E
	// MaxScriptLength is the maximum allowed contract script length.
	MaxScriptLength = 512 * 1024
	// MaxSourceURLLength is the maximum allowed source URL length.
	MaxSourceURLLength = 256
	// maxTokensLength is the maximum allowed method-token table size.
	maxTokensLength = 128
	// compilerFieldSize is the length of the Compiler header field.
	compilerFieldSize = 64
)

// File represents a compiled contract file structure according to the
// NEF3 standard.
type File struct {
	Header
	Source   string        `json:"source"`
	Tokens   []MethodToken `json:"tokens"`
	Script   []byte        `json:"script"`
	Checksum uint32        `json:"checksum"`
}

// Header represents a File header.
type Header struct {
	Magic    uint32 `json:"magic"`
	Compiler string `json:"compiler"`
}

// NewFile returns a new NEF3 file with the script specified.
func NewFile(script []byte) (*File, error) {
	file := &File{
		Header: Header{
			Magic:    Magic,
			Compiler: "neoref",
		},
		Tokens: []MethodToken{},
		Script: script,
	}
	if len(script) == 0 {
		return nil, errors.New("empty script")
	}
	file.Checksum = file.CalculateChecksum()
	return file, nil
}

// EncodeBinary implements the io.Serializable interface.
func (h *Header) EncodeBinary(w *io.BinWriter) {
	if h.Magic != Magic {
		w.Err = errors.New("invalid Magic")
		return
	}
	w.WriteU32LE(h.Magic)
	if len(h.Compiler) > compilerFieldSize {
		w.Err = errors.New("invalid compiler name length")
		return
	}
	var b = make([]byte, compilerFieldSize)
	copy(b, []byte(h.Compiler))
	w.WriteBytes(b)
}

// DecodeBinary implements the io.Serializable interface.
func (h *Header) DecodeBinary(r *io.BinReader) {
	h.Magic = r.ReadU32LE()
	if r.Err == nil && h.Magic != Magic {
		r.Err = errors.New("invalid Magic")
		return
	}
	buf := make([]byte, compilerFieldSize)
	r.ReadBytes(buf)
	buf = bytes.TrimRightFunc(buf, func(r rune) bool {
		return r == 0
	})
	h.Compiler = string(buf)
}

// CalculateChecksum returns the first 4 bytes of double-SHA256 of the
// serialized file content preceding the checksum, as a LE uint32.
func (n *File) CalculateChecksum() uint32 {
	bb, err := n.Bytes()
	if err != nil {
		panic(err)
	}
	return binary.LittleEndian.Uint32(hash.Checksum(bb[:len(bb)-4]))
}

// EncodeBinary implements the io.Serializable interface.
func (n *File) EncodeBinary(w *io.BinWriter) {
	n.Header.EncodeBinary(w)
	w.WriteVarBytes([]byte(n.Source))
	w.WriteB(0)
	io.WriteArray(w, sliceOfPtrs(n.Tokens))
	w.WriteU16LE(0)
	w.WriteVarBytes(n.Script)
	w.WriteU32LE(n.Checksum)
}

// DecodeBinary implements the io.Serializable interface.
func (n *File) DecodeBinary(r *io.BinReader) {
	n.Header.DecodeBinary(r)
	n.Source = r.ReadString(MaxSourceURLLength)
	reservedB := r.ReadB()
	if r.Err == nil && reservedB != 0 {
		r.Err = errors.New("reserved bytes must be 0")
		return
	}
	io.ReadArray[MethodToken](r, &n.Tokens, maxTokensLength)
	reserved := r.ReadU16LE()
	if r.Err == nil && reserved != 0 {
		r.Err = errors.New("reserved bytes must be 0")
		return
	}
	n.Script = r.ReadVarBytes(MaxScriptLength)
	if r.Err == nil && len(n.Script) == 0 {
		r.Err = errors.New("empty script")
		return
	}
	n.Checksum = r.ReadU32LE()
	if r.Err == nil && n.Checksum != n.CalculateChecksum() {
		r.Err = errors.New("checksum verification failure")
		return
	}
}

// Bytes returns a byte array with the serialized NEF File.
func (n File) Bytes() ([]byte, error) {
	buf := io.NewBufBinWriter()
	n.EncodeBinary(&buf.BinWriter)
	if buf.Err != nil {
		return nil, buf.Err
	}
	return buf.Bytes(), nil
}

// FileFromBytes returns a NEF File deserialized from the given bytes.
func FileFromBytes(source []byte) (File, error) {
	result := File{}
	r := io.NewBinReaderFromBuf(source)
	result.DecodeBinary(r)
	if r.Err != nil {
		return result, r.Err
	}
	if r.Len() != 0 {
		return result, errors.New("extra data")
	}
	return result, nil
}

func sliceOfPtrs(tokens []MethodToken) []*MethodToken {
	res := make([]*MethodToken, len(tokens))
	for i := range tokens {
		res[i] = &tokens[i]
	}
	return res
}
