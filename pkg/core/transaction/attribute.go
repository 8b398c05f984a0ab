package transaction

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/neoref/neoref/pkg/io"
)

// AttrType represents the known attribute types.
type AttrType uint8

// List of valid attribute types.
const (
	// HighPriority whitelists the transaction to the top of the block,
	// only committee-signed transactions may carry it.
	HighPriority AttrType = 1
	// OracleResponseT marks a transaction delivering an oracle response.
	OracleResponseT AttrType = 0x11
	// NotValidBeforeT sets the height the transaction is valid from.
	NotValidBeforeT AttrType = 0x20
	// ConflictsT marks a conflicting transaction hash.
	ConflictsT AttrType = 0x21
	// NotaryAssistedT marks a notary-assisted transaction.
	NotaryAssistedT AttrType = 0x22
)

// Attribute represents a Transaction attribute.
type Attribute struct {
	Type  AttrType
	Value AttrValue
}

// AttrValue represents a Transaction Attribute value.
type AttrValue interface {
	io.Serializable
	// Copy returns a deep copy of the attribute value.
	Copy() AttrValue
}

// attrJSON is used for JSON I/O of Attribute.
type attrJSON struct {
	Type string `json:"type"`
}

func (t AttrType) String() string {
	switch t {
	case HighPriority:
		return "HighPriority"
	case OracleResponseT:
		return "OracleResponse"
	case NotValidBeforeT:
		return "NotValidBefore"
	case ConflictsT:
		return "Conflicts"
	case NotaryAssistedT:
		return "NotaryAssisted"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", byte(t))
	}
}

// DecodeBinary implements the Serializable interface.
func (attr *Attribute) DecodeBinary(br *io.BinReader) {
	attr.Type = AttrType(br.ReadB())

	switch attr.Type {
	case HighPriority:
		return
	case OracleResponseT:
		attr.Value = new(OracleResponse)
	case NotValidBeforeT:
		attr.Value = new(NotValidBefore)
	case ConflictsT:
		attr.Value = new(Conflicts)
	case NotaryAssistedT:
		attr.Value = new(NotaryAssisted)
	default:
		br.Err = fmt.Errorf("failed decoding TX attribute: 0x%02x", byte(attr.Type))
		return
	}
	attr.Value.DecodeBinary(br)
}

// EncodeBinary implements the Serializable interface.
func (attr *Attribute) EncodeBinary(bw *io.BinWriter) {
	bw.WriteB(byte(attr.Type))
	switch attr.Type {
	case HighPriority:
	case OracleResponseT, NotValidBeforeT, ConflictsT, NotaryAssistedT:
		attr.Value.EncodeBinary(bw)
	default:
		bw.Err = fmt.Errorf("failed encoding TX attribute: 0x%02x", byte(attr.Type))
	}
}

// MarshalJSON implements the json.Marshaler interface.
func (attr *Attribute) MarshalJSON() ([]byte, error) {
	base := attrJSON{Type: attr.Type.String()}
	if attr.Value == nil {
		return json.Marshal(base)
	}
	data, err := json.Marshal(attr.Value)
	if err != nil {
		return nil, err
	}
	baseData, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	if string(data) == "{}" {
		return baseData, nil
	}
	// Merge the type field into the value object.
	return []byte(string(baseData[:len(baseData)-1]) + "," + string(data[1:])), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (attr *Attribute) UnmarshalJSON(data []byte) error {
	aux := new(attrJSON)
	err := json.Unmarshal(data, aux)
	if err != nil {
		return err
	}
	switch aux.Type {
	case HighPriority.String():
		attr.Type = HighPriority
		return nil
	case OracleResponseT.String():
		attr.Type = OracleResponseT
		attr.Value = new(OracleResponse)
	case NotValidBeforeT.String():
		attr.Type = NotValidBeforeT
		attr.Value = new(NotValidBefore)
	case ConflictsT.String():
		attr.Type = ConflictsT
		attr.Value = new(Conflicts)
	case NotaryAssistedT.String():
		attr.Type = NotaryAssistedT
		attr.Value = new(NotaryAssisted)
	default:
		return errors.New("wrong attribute type")
	}
	return json.Unmarshal(data, attr.Value)
}

// Copy creates a deep copy of the Attribute.
func (attr *Attribute) Copy() *Attribute {
	if attr == nil {
		return nil
	}
	cp := &Attribute{
		Type: attr.Type,
	}
	if attr.Value != nil {
		cp.Value = attr.Value.Copy()
	}
	return cp
}
