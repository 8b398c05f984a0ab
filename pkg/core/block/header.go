// Package block contains the block and header types the ledger contract
// reads and the t8n environment synthesizes.
package block

import (
	"encoding/json"
	"errors"

	"github.com/neoref/neoref/pkg/core/transaction"
	"github.com/neoref/neoref/pkg/crypto/hash"
	"github.com/neoref/neoref/pkg/io"
	"github.com/neoref/neoref/pkg/util"
)

// VersionInitial is the default header version.
const VersionInitial uint32 = 0

// Header holds the base info of a block.
type Header struct {
	// Version of the block, currently only 0.
	Version uint32

	// hash of the previous block.
	PrevHash util.Uint256

	// Root hash of a transaction list.
	MerkleRoot util.Uint256

	// Timestamp is a millisecond-precision timestamp.
	Timestamp uint64

	// Nonce is a header nonce.
	Nonce uint64

	// Index/height of the block.
	Index uint32

	// Contract address of the next miner.
	NextConsensus util.Uint160

	// PrimaryIndex is the index of the primary consensus node.
	PrimaryIndex byte

	// Script used to validate the block.
	Script transaction.Witness

	// Hash of this block, created when binary encoded (single SHA256).
	hash   util.Uint256
	hashed bool
}

// Hash returns the hash of the block.
func (b *Header) Hash() util.Uint256 {
	if !b.hashed {
		b.createHash()
	}
	return b.hash
}

func (b *Header) createHash() {
	buf := io.NewBufBinWriter()
	b.encodeHashableFields(&buf.BinWriter)
	if buf.Err != nil {
		panic(buf.Err)
	}
	b.hash = hash.Sha256(buf.Bytes())
	b.hashed = true
}

// encodeHashableFields will only encode the fields used for hashing.
func (b *Header) encodeHashableFields(bw *io.BinWriter) {
	bw.WriteU32LE(b.Version)
	bw.WriteBytes(b.PrevHash[:])
	bw.WriteBytes(b.MerkleRoot[:])
	bw.WriteU64LE(b.Timestamp)
	bw.WriteU64LE(b.Nonce)
	bw.WriteU32LE(b.Index)
	bw.WriteB(b.PrimaryIndex)
	bw.WriteBytes(b.NextConsensus[:])
}

// decodeHashableFields decodes the fields used for hashing.
func (b *Header) decodeHashableFields(br *io.BinReader) {
	b.Version = br.ReadU32LE()
	br.ReadBytes(b.PrevHash[:])
	br.ReadBytes(b.MerkleRoot[:])
	b.Timestamp = br.ReadU64LE()
	b.Nonce = br.ReadU64LE()
	b.Index = br.ReadU32LE()
	b.PrimaryIndex = br.ReadB()
	br.ReadBytes(b.NextConsensus[:])

	if br.Err == nil {
		b.createHash()
	}
}

// EncodeBinary implements the Serializable interface.
func (b *Header) EncodeBinary(bw *io.BinWriter) {
	b.encodeHashableFields(bw)
	bw.WriteVarUint(1)
	b.Script.EncodeBinary(bw)
}

// DecodeBinary implements the Serializable interface.
func (b *Header) DecodeBinary(br *io.BinReader) {
	b.decodeHashableFields(br)
	witnessCount := br.ReadVarUint()
	if br.Err == nil && witnessCount != 1 {
		br.Err = errors.New("wrong witness count")
		return
	}
	b.Script.DecodeBinary(br)
}

// MarshalJSON implements the json.Marshaler interface.
func (b Header) MarshalJSON() ([]byte, error) {
	aux := baseAux{
		Hash:          b.Hash(),
		Version:       b.Version,
		PrevHash:      b.PrevHash,
		MerkleRoot:    b.MerkleRoot,
		Timestamp:     b.Timestamp,
		Nonce:         b.Nonce,
		Index:         b.Index,
		PrimaryIndex:  b.PrimaryIndex,
		NextConsensus: b.NextConsensus,
		Witnesses:     []transaction.Witness{b.Script},
	}
	return json.Marshal(aux)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (b *Header) UnmarshalJSON(data []byte) error {
	var aux = new(baseAux)
	err := json.Unmarshal(data, aux)
	if err != nil {
		return err
	}
	if len(aux.Witnesses) != 1 {
		return errors.New("wrong number of witnesses")
	}
	b.Version = aux.Version
	b.PrevHash = aux.PrevHash
	b.MerkleRoot = aux.MerkleRoot
	b.Timestamp = aux.Timestamp
	b.Nonce = aux.Nonce
	b.Index = aux.Index
	b.PrimaryIndex = aux.PrimaryIndex
	b.NextConsensus = aux.NextConsensus
	b.Script = aux.Witnesses[0]
	return nil
}

type baseAux struct {
	Hash          util.Uint256          `json:"hash"`
	Version       uint32                `json:"version"`
	PrevHash      util.Uint256          `json:"previousblockhash"`
	MerkleRoot    util.Uint256          `json:"merkleroot"`
	Timestamp     uint64                `json:"time"`
	Nonce         uint64                `json:"nonce"`
	Index         uint32                `json:"index"`
	PrimaryIndex  byte                  `json:"primary"`
	NextConsensus util.Uint160          `json:"nextconsensus"`
	Witnesses     []transaction.Witness `json:"witnesses"`
}
