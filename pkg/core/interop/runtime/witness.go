package runtime

import (
	"errors"
	"fmt"

	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/core/transaction"
	"github.com/neoref/neoref/pkg/crypto/keys"
	"github.com/neoref/neoref/pkg/util"
)

// scopeContext implements transaction.MatchContext over the interop
// context for witness-rule evaluation.
type scopeContext struct {
	ic *interop.Context
}

// GetCallingScriptHash implements the MatchContext interface.
func (sc scopeContext) GetCallingScriptHash() util.Uint160 {
	return sc.ic.VM.GetCallingScriptHash()
}

// GetCurrentScriptHash implements the MatchContext interface.
func (sc scopeContext) GetCurrentScriptHash() util.Uint160 {
	return sc.ic.VM.GetCurrentScriptHash()
}

// IsCalledByEntry implements the MatchContext interface.
func (sc scopeContext) IsCalledByEntry() bool {
	return sc.ic.VM.GetEntryScriptHash().Equals(sc.ic.VM.GetCallingScriptHash()) ||
		sc.ic.VM.GetCallingScriptHash().Equals(util.Uint160{})
}

// CallingScriptHasGroup implements the MatchContext interface.
func (sc scopeContext) CallingScriptHasGroup(k *keys.PublicKey) (bool, error) {
	return sc.scriptHasGroup(sc.GetCallingScriptHash(), k)
}

// CurrentScriptHasGroup implements the MatchContext interface.
func (sc scopeContext) CurrentScriptHasGroup(k *keys.PublicKey) (bool, error) {
	return sc.scriptHasGroup(sc.GetCurrentScriptHash(), k)
}

func (sc scopeContext) scriptHasGroup(h util.Uint160, k *keys.PublicKey) (bool, error) {
	if sc.ic.GetContract == nil {
		return false, errors.New("no contract store")
	}
	cs, err := sc.ic.GetContract(sc.ic.DAO, h)
	if err != nil {
		return false, err
	}
	return cs.Manifest.Groups.Contains(k), nil
}

// checkScope checks whether the hashToCheck signer scope allows the
// witness in the current context.
func checkScope(ic *interop.Context, hashToCheck util.Uint160) (bool, error) {
	signers := ic.Signers()
	for i := range signers {
		c := &signers[i]
		if !c.Account.Equals(hashToCheck) {
			continue
		}
		if c.Scopes == transaction.Global {
			return true, nil
		}
		if c.Scopes&transaction.CalledByEntry != 0 {
			if (scopeContext{ic}).IsCalledByEntry() {
				return true, nil
			}
		}
		if c.Scopes&transaction.CustomContracts != 0 {
			currentScriptHash := ic.VM.GetCurrentScriptHash()
			for _, allowedContract := range c.AllowedContracts {
				if allowedContract.Equals(currentScriptHash) {
					return true, nil
				}
			}
		}
		if c.Scopes&transaction.CustomGroups != 0 {
			sc := scopeContext{ic}
			for _, group := range c.AllowedGroups {
				res, err := sc.CurrentScriptHasGroup(group)
				if err != nil {
					return false, err
				}
				if res {
					return true, nil
				}
			}
		}
		if c.Scopes&transaction.Rules != 0 {
			sc := scopeContext{ic}
			for _, rule := range c.Rules {
				res, err := rule.Condition.Match(sc)
				if err != nil {
					return false, err
				}
				if res {
					return rule.Action == transaction.WitnessAllow, nil
				}
			}
		}
		return false, nil
	}
	return false, nil
}

// CheckHashedWitness checks the given hash against the current list of
// script hashes for verifying in the interop context.
func CheckHashedWitness(ic *interop.Context, hash util.Uint160) (bool, error) {
	if ic.Tx != nil {
		return checkScope(ic, hash)
	}
	// Block-level executions witness the block's NextConsensus address.
	if ic.Block != nil {
		return ic.Block.NextConsensus.Equals(hash), nil
	}
	return false, errors.New("no script container")
}

// CheckKeyedWitness checks the hash of the signature check contract with
// the given public key against current list of script hashes for
// verifying in the interop context.
func CheckKeyedWitness(ic *interop.Context, key *keys.PublicKey) (bool, error) {
	return CheckHashedWitness(ic, key.GetScriptHash())
}

// CheckWitness checks the witnesses for the transaction with the given
// hash or key.
func CheckWitness(ic *interop.Context) error {
	var res bool
	var err error

	hashOrKey := ic.VM.Estack().PopBytes()
	hash, err := util.Uint160DecodeBytesBE(hashOrKey)
	if err != nil {
		var key = new(keys.PublicKey)
		err = key.DecodeBytes(hashOrKey)
		if err != nil {
			return errors.New("parameter given is neither a key nor a hash")
		}
		res, err = CheckKeyedWitness(ic, key)
	} else {
		res, err = CheckHashedWitness(ic, hash)
	}
	if err != nil {
		return fmt.Errorf("failed to check witness: %w", err)
	}
	ic.VM.Estack().PushVal(res)
	return nil
}
