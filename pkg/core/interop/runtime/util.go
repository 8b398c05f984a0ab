package runtime

import (
	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/core/transaction"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// transactionToStackItem converts a transaction to the interop struct the
// scripts see through System.Runtime.GetScriptContainer.
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

// blockHashItem represents the persisting block as its hash only, blocks
// are not converted to full interop structures here.
func blockHashItem(ic *interop.Context) stackitem.Item {
	return stackitem.NewByteArray(ic.Block.Hash().BytesBE())
}

// signerToStackItem converts a transaction signer to a stack item with
// its account, scopes and custom lists.
func signerToStackItem(s *transaction.Signer) stackitem.Item {
	contracts := make([]stackitem.Item, len(s.AllowedContracts))
	for i := range s.AllowedContracts {
		contracts[i] = stackitem.NewByteArray(s.AllowedContracts[i].BytesBE())
	}
	groups := make([]stackitem.Item, len(s.AllowedGroups))
	for i := range s.AllowedGroups {
		groups[i] = stackitem.NewByteArray(s.AllowedGroups[i].Bytes())
	}
	rules := make([]stackitem.Item, len(s.Rules))
	for i := range s.Rules {
		rules[i] = ruleToStackItem(&s.Rules[i])
	}
	return stackitem.NewArray([]stackitem.Item{
		stackitem.NewByteArray(s.Account.BytesBE()),
		stackitem.Make(int(s.Scopes)),
		stackitem.NewArray(contracts),
		stackitem.NewArray(groups),
		stackitem.NewArray(rules),
	})
}

func ruleToStackItem(r *transaction.WitnessRule) stackitem.Item {
	return stackitem.NewArray([]stackitem.Item{
		stackitem.Make(int(r.Action)),
		stackitem.Make(int(r.Condition.Type())),
	})
}
