package transaction

import (
	"errors"
	"math"

	"github.com/neoref/neoref/pkg/io"
	"github.com/neoref/neoref/pkg/util"
)

// OracleResponseCode represents the result code of the oracle response.
type OracleResponseCode byte

// Known oracle response codes.
const (
	Success                 OracleResponseCode = 0x00
	ProtocolNotSupported    OracleResponseCode = 0x10
	ConsensusUnreachable    OracleResponseCode = 0x12
	NotFound                OracleResponseCode = 0x14
	Timeout                 OracleResponseCode = 0x16
	Forbidden               OracleResponseCode = 0x18
	ResponseTooLarge        OracleResponseCode = 0x1a
	InsufficientFunds       OracleResponseCode = 0x1c
	ContentTypeNotSupported OracleResponseCode = 0x1f
	Error                   OracleResponseCode = 0xff
)

// MaxOracleResultSize is the maximum allowed oracle answer size.
const MaxOracleResultSize = math.MaxUint16

// IsValid checks if the code is valid.
func (c OracleResponseCode) IsValid() bool {
	switch c {
	case Success, ProtocolNotSupported, ConsensusUnreachable, NotFound,
		Timeout, Forbidden, ResponseTooLarge, InsufficientFunds,
		ContentTypeNotSupported, Error:
		return true
	default:
		return false
	}
}

// OracleResponse represents the oracle response attribute.
type OracleResponse struct {
	ID     uint64             `json:"id"`
	Code   OracleResponseCode `json:"code"`
	Result []byte             `json:"result"`
}

// DecodeBinary implements the Serializable interface.
func (r *OracleResponse) DecodeBinary(br *io.BinReader) {
	r.ID = br.ReadU64LE()
	r.Code = OracleResponseCode(br.ReadB())
	if br.Err == nil && !r.Code.IsValid() {
		br.Err = errors.New("invalid oracle response code")
		return
	}
	r.Result = br.ReadVarBytes(MaxOracleResultSize)
	if r.Code != Success && br.Err == nil && len(r.Result) > 0 {
		br.Err = errors.New("oracle response with error can't have a result")
	}
}

// EncodeBinary implements the Serializable interface.
func (r *OracleResponse) EncodeBinary(w *io.BinWriter) {
	w.WriteU64LE(r.ID)
	w.WriteB(byte(r.Code))
	w.WriteVarBytes(r.Result)
}

// Copy implements the AttrValue interface.
func (r *OracleResponse) Copy() AttrValue {
	return &OracleResponse{
		ID:     r.ID,
		Code:   r.Code,
		Result: append([]byte{}, r.Result...),
	}
}

// NotValidBefore represents the NotValidBefore attribute.
type NotValidBefore struct {
	Height uint32 `json:"height"`
}

// DecodeBinary implements the Serializable interface.
func (n *NotValidBefore) DecodeBinary(br *io.BinReader) {
	n.Height = br.ReadU32LE()
}

// EncodeBinary implements the Serializable interface.
func (n *NotValidBefore) EncodeBinary(w *io.BinWriter) {
	w.WriteU32LE(n.Height)
}

// Copy implements the AttrValue interface.
func (n *NotValidBefore) Copy() AttrValue {
	return &NotValidBefore{Height: n.Height}
}

// Conflicts represents the Conflicts attribute.
type Conflicts struct {
	Hash util.Uint256 `json:"hash"`
}

// DecodeBinary implements the Serializable interface.
func (c *Conflicts) DecodeBinary(br *io.BinReader) {
	br.ReadBytes(c.Hash[:])
}

// EncodeBinary implements the Serializable interface.
func (c *Conflicts) EncodeBinary(w *io.BinWriter) {
	w.WriteBytes(c.Hash[:])
}

// Copy implements the AttrValue interface.
func (c *Conflicts) Copy() AttrValue {
	return &Conflicts{Hash: c.Hash}
}

// NotaryAssisted represents the NotaryAssisted attribute.
type NotaryAssisted struct {
	NKeys uint8 `json:"nkeys"`
}

// DecodeBinary implements the Serializable interface.
func (n *NotaryAssisted) DecodeBinary(br *io.BinReader) {
	n.NKeys = br.ReadB()
}

// EncodeBinary implements the Serializable interface.
func (n *NotaryAssisted) EncodeBinary(w *io.BinWriter) {
	w.WriteB(n.NKeys)
}

// Copy implements the AttrValue interface.
func (n *NotaryAssisted) Copy() AttrValue {
	return &NotaryAssisted{NKeys: n.NKeys}
}
