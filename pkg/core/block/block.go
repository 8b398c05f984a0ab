package block

import (
	"errors"

	"github.com/neoref/neoref/pkg/core/transaction"
	"github.com/neoref/neoref/pkg/crypto/hash"
	"github.com/neoref/neoref/pkg/io"
	"github.com/neoref/neoref/pkg/util"
)

// MaxTransactionsPerBlock is the hard cap on the block's transaction list.
const MaxTransactionsPerBlock = 65535

// Block represents one block in the chain.
type Block struct {
	// The base of the block.
	Header

	// Transaction list.
	Transactions []*transaction.Transaction
}

// ComputeMerkleRoot computes the Merkle tree root hash of the block's
// transaction hashes.
func (b *Block) ComputeMerkleRoot() util.Uint256 {
	hashes := make([]util.Uint256, len(b.Transactions))
	for i, tx := range b.Transactions {
		hashes[i] = tx.Hash()
	}
	return calcMerkleRoot(hashes)
}

// calcMerkleRoot folds the hash list pairwise with double sha256 until a
// single root remains. An empty list gives a zero hash.
func calcMerkleRoot(hashes []util.Uint256) util.Uint256 {
	if len(hashes) == 0 {
		return util.Uint256{}
	}
	for len(hashes) > 1 {
		next := make([]util.Uint256, (len(hashes)+1)/2)
		for i := range next {
			var data [util.Uint256Size * 2]byte
			copy(data[:], hashes[2*i].BytesBE())
			if 2*i+1 < len(hashes) {
				copy(data[util.Uint256Size:], hashes[2*i+1].BytesBE())
			} else {
				copy(data[util.Uint256Size:], hashes[2*i].BytesBE())
			}
			next[i] = hash.DoubleSha256(data[:])
		}
		hashes = next
	}
	return hashes[0]
}

// RebuildMerkleRoot rebuilds the merkleroot of the block.
func (b *Block) RebuildMerkleRoot() {
	b.MerkleRoot = b.ComputeMerkleRoot()
}

// EncodeBinary implements the Serializable interface.
func (b *Block) EncodeBinary(bw *io.BinWriter) {
	b.Header.EncodeBinary(bw)
	bw.WriteVarUint(uint64(len(b.Transactions)))
	for i := 0; i < len(b.Transactions); i++ {
		b.Transactions[i].EncodeBinary(bw)
	}
}

// DecodeBinary implements the Serializable interface.
func (b *Block) DecodeBinary(br *io.BinReader) {
	b.Header.DecodeBinary(br)
	contentsCount := br.ReadVarUint()
	if contentsCount > MaxTransactionsPerBlock {
		br.Err = errors.New("too many transactions")
		return
	}
	txes := make([]*transaction.Transaction, contentsCount)
	for i := 0; i < int(contentsCount); i++ {
		tx := &transaction.Transaction{}
		tx.DecodeBinary(br)
		txes[i] = tx
	}
	b.Transactions = txes
}
