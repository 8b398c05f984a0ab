// Package transaction implements the transaction envelope the engine
// validates and executes scripts on behalf of.
package transaction

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/neoref/neoref/pkg/config/limits"
	"github.com/neoref/neoref/pkg/crypto/hash"
	"github.com/neoref/neoref/pkg/io"
	"github.com/neoref/neoref/pkg/util"
)

const (
	// MaxScriptLength is the limit for the transaction's script length.
	MaxScriptLength = 65536
	// MaxTransactionSize is the upper limit size in bytes that a
	// transaction can reach.
	MaxTransactionSize = limits.MaxTransactionSize
	// MaxAttributes is the maximum number of attributes per transaction.
	MaxAttributes = 16
	// MaxSigners is the maximum number of cosigners per transaction.
	MaxSigners = 16
	// DummyVersion is the only currently valid transaction version.
	DummyVersion = 0
)

var (
	// ErrInvalidWitnessNum returns when the number of witnesses does not
	// match the number of signers.
	ErrInvalidWitnessNum = errors.New("number of signers doesn't match witnesses")
)

// Transaction is a N3 transaction: fees, lifetime, signers with their
// scopes, attributes and the executable script.
type Transaction struct {
	// Version of the binary transaction format, currently 0.
	Version uint8

	// Random number to avoid hash collision.
	Nonce uint32

	// Fee to be burned for the execution, in fractional GAS.
	SystemFee int64

	// Fee to be distributed to the validators, in fractional GAS.
	NetworkFee int64

	// Maximum blockchain height exceeding which the transaction should
	// fail verification.
	ValidUntilBlock uint32

	// Code to run in NeoVM for this transaction.
	Script []byte

	// Transaction attributes.
	Attributes []Attribute

	// Transaction signers: the first one pays the fees.
	Signers []Signer

	// The scripts that come with this transaction, matching Signers.
	Scripts []Witness

	// Hash of the transaction, computed on demand.
	hash       util.Uint256
	hashed     bool
	size       int
}

// New returns a new transaction to execute the given script with the
// given fee.
func New(script []byte, gas int64) *Transaction {
	return &Transaction{
		Version:    DummyVersion,
		Script:     script,
		SystemFee:  gas,
		Attributes: []Attribute{},
		Signers:    []Signer{},
		Scripts:    []Witness{},
	}
}

// Hash returns the hash of the transaction, which is the single SHA256 of
// the serialized unsigned part.
func (t *Transaction) Hash() util.Uint256 {
	if !t.hashed {
		if t.createHash() != nil {
			panic("failed to compute hash!")
		}
	}
	return t.hash
}

func (t *Transaction) createHash() error {
	buf := io.NewBufBinWriter()
	t.encodeHashableFields(&buf.BinWriter)
	if buf.Err != nil {
		return buf.Err
	}
	t.hash = hash.Sha256(buf.Bytes())
	t.hashed = true
	return nil
}

// Sender returns the sender of the transaction, the first signer.
func (t *Transaction) Sender() util.Uint160 {
	if len(t.Signers) == 0 {
		panic("transaction does not have signers")
	}
	return t.Signers[0].Account
}

// decodeHashableFields decodes the fields that are used for signing the
// transaction, which are all fields except the scripts.
func (t *Transaction) decodeHashableFields(br *io.BinReader) {
	t.Version = br.ReadB()
	if br.Err == nil && t.Version > DummyVersion {
		br.Err = errors.New("only version 0 is supported")
		return
	}
	t.Nonce = br.ReadU32LE()
	t.SystemFee = int64(br.ReadU64LE())
	if br.Err == nil && t.SystemFee < 0 {
		br.Err = errors.New("negative system fee")
		return
	}
	t.NetworkFee = int64(br.ReadU64LE())
	if br.Err == nil && t.NetworkFee < 0 {
		br.Err = errors.New("negative network fee")
		return
	}
	if br.Err == nil && t.NetworkFee+t.SystemFee < t.SystemFee {
		br.Err = errors.New("too big fees: int64 overflow")
		return
	}
	t.ValidUntilBlock = br.ReadU32LE()

	l := br.ReadVarUint()
	if l > MaxSigners {
		br.Err = errors.New("max number of signers exceeded")
		return
	}
	t.Signers = make([]Signer, l)
	for i := 0; i < int(l); i++ {
		t.Signers[i].DecodeBinary(br)
	}
	if br.Err == nil {
		for i := range t.Signers {
			for j := i + 1; j < len(t.Signers); j++ {
				if t.Signers[i].Account.Equals(t.Signers[j].Account) {
					br.Err = errors.New("transaction signers should be unique")
					return
				}
			}
		}
	}

	l = br.ReadVarUint()
	if l > MaxAttributes {
		br.Err = errors.New("max number of attributes exceeded")
		return
	}
	t.Attributes = make([]Attribute, l)
	for i := 0; i < int(l); i++ {
		t.Attributes[i].DecodeBinary(br)
	}

	t.Script = br.ReadVarBytes(MaxScriptLength)
	if br.Err == nil && len(t.Script) == 0 {
		br.Err = errors.New("no script")
	}
}

// DecodeBinary implements the Serializable interface.
func (t *Transaction) DecodeBinary(br *io.BinReader) {
	t.decodeHashableFields(br)
	if br.Err != nil {
		return
	}
	l := br.ReadVarUint()
	if l != uint64(len(t.Signers)) {
		br.Err = ErrInvalidWitnessNum
		return
	}
	t.Scripts = make([]Witness, l)
	for i := 0; i < int(l); i++ {
		t.Scripts[i].DecodeBinary(br)
	}
}

// EncodeBinary implements the Serializable interface.
func (t *Transaction) EncodeBinary(bw *io.BinWriter) {
	t.encodeHashableFields(bw)
	bw.WriteVarUint(uint64(len(t.Scripts)))
	for i := range t.Scripts {
		t.Scripts[i].EncodeBinary(bw)
	}
}

// encodeHashableFields encodes the signed part of the transaction.
func (t *Transaction) encodeHashableFields(bw *io.BinWriter) {
	bw.WriteB(t.Version)
	bw.WriteU32LE(t.Nonce)
	bw.WriteU64LE(uint64(t.SystemFee))
	bw.WriteU64LE(uint64(t.NetworkFee))
	bw.WriteU32LE(t.ValidUntilBlock)
	bw.WriteVarUint(uint64(len(t.Signers)))
	for i := range t.Signers {
		t.Signers[i].EncodeBinary(bw)
	}
	bw.WriteVarUint(uint64(len(t.Attributes)))
	for i := range t.Attributes {
		t.Attributes[i].EncodeBinary(bw)
	}
	bw.WriteVarBytes(t.Script)
}

// Bytes converts the transaction to []byte.
func (t *Transaction) Bytes() ([]byte, error) {
	return io.ToByteArray(t)
}

// NewTransactionFromBytes decodes a byte array into a Transaction,
// enforcing the envelope size cap.
func NewTransactionFromBytes(b []byte) (*Transaction, error) {
	if len(b) > MaxTransactionSize {
		return nil, fmt.Errorf("transaction is too big (%d)", len(b))
	}
	tx := &Transaction{}
	if err := io.FromByteArray(tx, b); err != nil {
		return nil, err
	}
	tx.size = len(b)
	return tx, nil
}

// Size returns the size of the serialized transaction.
func (t *Transaction) Size() int {
	if t.size == 0 {
		b, err := t.Bytes()
		if err != nil {
			panic(err)
		}
		t.size = len(b)
	}
	return t.size
}

// GetAttributes returns all the attributes of the given type.
func (t *Transaction) GetAttributes(typ AttrType) []Attribute {
	var res []Attribute
	for i := range t.Attributes {
		if t.Attributes[i].Type == typ {
			res = append(res, t.Attributes[i])
		}
	}
	return res
}

// HasSigner returns true if the given account is listed in signers.
func (t *Transaction) HasSigner(acc util.Uint160) bool {
	for i := range t.Signers {
		if t.Signers[i].Account.Equals(acc) {
			return true
		}
	}
	return false
}

// isValid checks the internal consistency of the transaction.
func (t *Transaction) isValid() error {
	if t.Version > DummyVersion {
		return errors.New("bad version")
	}
	if t.SystemFee < 0 || t.NetworkFee < 0 {
		return errors.New("negative fee")
	}
	if len(t.Signers) == 0 || len(t.Signers) > MaxSigners {
		return errors.New("bad signers count")
	}
	if len(t.Script) == 0 {
		return errors.New("no script")
	}
	return nil
}

// IsValid is the exported consistency check.
func (t *Transaction) IsValid() error {
	return t.isValid()
}

type transactionJSON struct {
	TxID            util.Uint256 `json:"hash"`
	Size            int          `json:"size"`
	Version         uint8        `json:"version"`
	Nonce           uint32       `json:"nonce"`
	Sender          string       `json:"sender,omitempty"`
	SystemFee       int64        `json:"sysfee,string"`
	NetworkFee      int64        `json:"netfee,string"`
	ValidUntilBlock uint32       `json:"validuntilblock"`
	Attributes      []Attribute  `json:"attributes"`
	Signers         []Signer     `json:"signers"`
	Script          []byte       `json:"script"`
	Scripts         []Witness    `json:"witnesses"`
}

// MarshalJSON implements the json.Marshaler interface.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	tx := transactionJSON{
		TxID:            t.Hash(),
		Size:            t.Size(),
		Version:         t.Version,
		Nonce:           t.Nonce,
		SystemFee:       t.SystemFee,
		NetworkFee:      t.NetworkFee,
		ValidUntilBlock: t.ValidUntilBlock,
		Attributes:      t.Attributes,
		Signers:         t.Signers,
		Script:          t.Script,
		Scripts:         t.Scripts,
	}
	return json.Marshal(tx)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	tx := new(transactionJSON)
	if err := json.Unmarshal(data, tx); err != nil {
		return err
	}
	t.Version = tx.Version
	t.Nonce = tx.Nonce
	t.SystemFee = tx.SystemFee
	t.NetworkFee = tx.NetworkFee
	t.ValidUntilBlock = tx.ValidUntilBlock
	t.Attributes = tx.Attributes
	t.Signers = tx.Signers
	t.Script = tx.Script
	t.Scripts = tx.Scripts
	if t.Attributes == nil {
		t.Attributes = []Attribute{}
	}
	if t.Signers == nil {
		t.Signers = []Signer{}
	}
	if t.Scripts == nil {
		t.Scripts = []Witness{}
	}
	return t.isValid()
}
