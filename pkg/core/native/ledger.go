package native

import (
	"fmt"

	"github.com/neoref/neoref/pkg/config"
	"github.com/neoref/neoref/pkg/core/block"
	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/core/native/nativenames"
	"github.com/neoref/neoref/pkg/core/transaction"
	"github.com/neoref/neoref/pkg/smartcontract"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/smartcontract/manifest"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/stackitem"
	"github.com/neoref/neoref/pkg/vm/vmerror"
)

// Ledger provides access to the persisted blocks and transactions.
type Ledger struct {
	interop.ContractMD
}

const ledgerContractID = -4

func newLedger() *Ledger {
	var l = &Ledger{
		ContractMD: *interop.NewContractMD(nativenames.Ledger, ledgerContractID, nil),
	}
	defer l.Finalize()

	desc := newDescriptor("currentHash", smartcontract.Hash256Type)
	md := newMethodAndPrice(l.currentHash, 1<<15, callflag.ReadStates)
	l.AddMethod(md, desc)

	desc = newDescriptor("currentIndex", smartcontract.IntegerType)
	md = newMethodAndPrice(l.currentIndex, 1<<15, callflag.ReadStates)
	l.AddMethod(md, desc)

	desc = newDescriptor("getBlock", smartcontract.ArrayType,
		manifest.NewParameter("indexOrHash", smartcontract.ByteArrayType))
	md = newMethodAndPrice(l.getBlock, 1<<15, callflag.ReadStates)
	l.AddMethod(md, desc)

	desc = newDescriptor("getTransaction", smartcontract.ArrayType,
		manifest.NewParameter("hash", smartcontract.Hash256Type))
	md = newMethodAndPrice(l.getTransaction, 1<<15, callflag.ReadStates)
	l.AddMethod(md, desc)

	desc = newDescriptor("getTransactionHeight", smartcontract.IntegerType,
		manifest.NewParameter("hash", smartcontract.Hash256Type))
	md = newMethodAndPrice(l.getTransactionHeight, 1<<15, callflag.ReadStates)
	l.AddMethod(md, desc)

	desc = newDescriptor("getTransactionFromBlock", smartcontract.ArrayType,
		manifest.NewParameter("blockIndexOrHash", smartcontract.ByteArrayType),
		manifest.NewParameter("txIndex", smartcontract.IntegerType))
	md = newMethodAndPrice(l.getTransactionFromBlock, 1<<16, callflag.ReadStates)
	l.AddMethod(md, desc)

	desc = newDescriptor("getTransactionSigners", smartcontract.ArrayType,
		manifest.NewParameter("hash", smartcontract.Hash256Type))
	md = newMethodAndPrice(l.getTransactionSigners, 1<<15, callflag.ReadStates)
	l.AddMethod(md, desc)

	return l
}

// Metadata implements the Contract interface.
func (l *Ledger) Metadata() *interop.ContractMD {
	return &l.ContractMD
}

// ActiveIn implements the Contract interface.
func (l *Ledger) ActiveIn() *config.Hardfork {
	return nil
}

// Initialize implements the Contract interface.
func (l *Ledger) Initialize(ic *interop.Context, hf *config.Hardfork) error {
	return nil
}

// OnPersist implements the Contract interface.
func (l *Ledger) OnPersist(ic *interop.Context) error {
	return nil
}

// PostPersist implements the Contract interface.
func (l *Ledger) PostPersist(ic *interop.Context) error {
	return nil
}

func (l *Ledger) currentHash(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	h, err := ic.DAO.GetCurrentHeaderHash()
	if err != nil {
		panic(err)
	}
	return stackitem.NewByteArray(h.BytesBE())
}

func (l *Ledger) currentIndex(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(ic.CurrentBlockHeight())
}

// getBlockHashFromItem resolves a block identified either by its index
// (integer) or by its 32-byte hash.
func getBlockHashFromItem(ic *interop.Context, item stackitem.Item) util.Uint256 {
	bigindex, err := item.TryInteger()
	if err == nil && bigindex.IsInt64() && bigindex.Sign() >= 0 && bigindex.Int64() < (1<<32) {
		hash, err := ic.DAO.GetBlockHashByIndex(uint32(bigindex.Int64()))
		if err != nil {
			panic(fmt.Errorf("wrong block index: %w", err))
		}
		return hash
	}
	b, err := item.TryBytes()
	if err != nil {
		panic(err)
	}
	hash, err := util.Uint256DecodeBytesBE(b)
	if err != nil {
		panic(fmt.Errorf("%w: %v", vmerror.ErrBadScriptHash, err))
	}
	return hash
}

func (l *Ledger) getBlock(ic *interop.Context, params []stackitem.Item) stackitem.Item {
	hash := getBlockHashFromItem(ic, params[0])
	b, err := ic.DAO.GetBlock(hash)
	if err != nil {
		return stackitem.Null{}
	}
	return blockToStackItem(b)
}

// blockToStackItem projects a trimmed block into the interop structure.
func blockToStackItem(b *block.Block) stackitem.Item {
	return stackitem.NewArray([]stackitem.Item{
		stackitem.NewByteArray(b.Hash().BytesBE()),
		stackitem.Make(b.Version),
		stackitem.NewByteArray(b.PrevHash.BytesBE()),
		stackitem.NewByteArray(b.MerkleRoot.BytesBE()),
		stackitem.Make(b.Timestamp),
		stackitem.Make(b.Nonce),
		stackitem.Make(b.Index),
		stackitem.Make(int(b.PrimaryIndex)),
		stackitem.NewByteArray(b.NextConsensus.BytesBE()),
		stackitem.Make(len(b.Transactions)),
	})
}

func (l *Ledger) getTransaction(ic *interop.Context, params []stackitem.Item) stackitem.Item {
	hash := toUint256(params[0])
	tx, _, err := ic.DAO.GetTransaction(hash)
	if err != nil {
		return stackitem.Null{}
	}
	return transactionToStackItem(tx)
}

func (l *Ledger) getTransactionHeight(ic *interop.Context, params []stackitem.Item) stackitem.Item {
	hash := toUint256(params[0])
	_, height, err := ic.DAO.GetTransaction(hash)
	if err != nil {
		return stackitem.Make(-1)
	}
	return stackitem.Make(height)
}

// getTransactionFromBlock decodes the persisted block and returns the
// indexed transaction.
func (l *Ledger) getTransactionFromBlock(ic *interop.Context, params []stackitem.Item) stackitem.Item {
	hash := getBlockHashFromItem(ic, params[0])
	index := toInt64(params[1])
	b, err := ic.DAO.GetBlock(hash)
	if err != nil {
		return stackitem.Null{}
	}
	if index < 0 || index >= int64(len(b.Transactions)) {
		panic(fmt.Errorf("%w: transaction index %d", vmerror.ErrOutOfRange, index))
	}
	return transactionToStackItem(b.Transactions[index])
}

func (l *Ledger) getTransactionSigners(ic *interop.Context, params []stackitem.Item) stackitem.Item {
	hash := toUint256(params[0])
	tx, _, err := ic.DAO.GetTransaction(hash)
	if err != nil {
		return stackitem.Null{}
	}
	return signersToStackItem(tx.Signers)
}

func signersToStackItem(signers []transaction.Signer) stackitem.Item {
	res := make([]stackitem.Item, len(signers))
	for i := range signers {
		contracts := make([]stackitem.Item, len(signers[i].AllowedContracts))
		for j := range signers[i].AllowedContracts {
			contracts[j] = stackitem.NewByteArray(signers[i].AllowedContracts[j].BytesBE())
		}
		groups := make([]stackitem.Item, len(signers[i].AllowedGroups))
		for j := range signers[i].AllowedGroups {
			groups[j] = stackitem.NewByteArray(signers[i].AllowedGroups[j].Bytes())
		}
		res[i] = stackitem.NewArray([]stackitem.Item{
			stackitem.NewByteArray(signers[i].Account.BytesBE()),
			stackitem.Make(int(signers[i].Scopes)),
			stackitem.NewArray(contracts),
			stackitem.NewArray(groups),
		})
	}
	return stackitem.NewArray(res)
}

func transactionToStackItem(tx *transaction.Transaction) stackitem.Item {
	return stackitem.NewArray([]stackitem.Item{
		stackitem.NewByteArray(tx.Hash().BytesBE()),
		stackitem.Make(int(tx.Version)),
		stackitem.Make(tx.Nonce),
		stackitem.NewByteArray(tx.Sender().BytesBE()),
		stackitem.Make(tx.SystemFee),
		stackitem.Make(tx.NetworkFee),
		stackitem.Make(tx.ValidUntilBlock),
		stackitem.NewByteArray(tx.Script),
	})
}
