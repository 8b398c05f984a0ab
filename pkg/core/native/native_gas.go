package native

import (
	"errors"
	"math/big"

	"github.com/neoref/neoref/pkg/config"
	"github.com/neoref/neoref/pkg/core/dao"
	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/core/native/nativenames"
	"github.com/neoref/neoref/pkg/core/storage"
	"github.com/neoref/neoref/pkg/encoding/bigint"
	"github.com/neoref/neoref/pkg/util"
)

// GAS represents the utility token contract.
type GAS struct {
	nep17TokenNative
	NEO    *NEO
	Policy *Policy

	initialSupply int64
}

const gasContractID = -6

// GASFactor is a divisor for finding GAS integral value.
const GASFactor = 100000000

func newGAS(init int64) *GAS {
	g := &GAS{
		initialSupply: init,
	}
	defer g.Finalize()

	nep17 := newNEP17Native(nativenames.Gas, gasContractID)
	nep17.symbol = "GAS"
	nep17.decimals = 8
	nep17.factor = GASFactor
	nep17.incBalance = g.increaseBalance
	nep17.balFromBytes = g.balanceFromBytes
	g.nep17TokenNative = *nep17

	return g
}

func (g *GAS) increaseBalance(ic *interop.Context, h util.Uint160, si []byte, amount *big.Int, checkBal *big.Int) (func(), error) {
	acc := big.NewInt(0)
	if len(si) > 0 {
		acc = bigint.FromBytes(si)
	}
	if amount.Sign() == -1 && acc.CmpAbs(amount) == -1 {
		return nil, errors.New("insufficient funds")
	}
	if checkBal != nil && acc.Cmp(checkBal) < 0 && amount.Sign() <= 0 && checkBal.Sign() > 0 {
		return nil, errors.New("insufficient funds")
	}
	acc.Add(acc, amount)
	if acc.Sign() != 0 {
		ic.DAO.PutStorageItem(g.ID, g.makeAccountKey(h), bigint.ToBytes(acc))
	} else {
		ic.DAO.DeleteStorageItem(g.ID, g.makeAccountKey(h))
	}
	return nil, nil
}

func (g *GAS) balanceFromBytes(si []byte) (*big.Int, error) {
	return bigint.FromBytes(si), nil
}

// Metadata implements the Contract interface.
func (g *GAS) Metadata() *interop.ContractMD {
	return &g.ContractMD
}

// ActiveIn implements the Contract interface.
func (g *GAS) ActiveIn() *config.Hardfork {
	return nil
}

// Initialize implements the Contract interface.
func (g *GAS) Initialize(ic *interop.Context, hf *config.Hardfork) error {
	if hf != nil {
		return nil
	}
	if g.initialSupply <= 0 {
		return nil
	}
	if len(g.NEO.cfg.StandbyCommittee) == 0 {
		return nil
	}
	committee, err := g.NEO.standbyCommittee()
	if err != nil {
		return err
	}
	addr, err := committeeAddress(committee)
	if err != nil {
		return err
	}
	g.mint(ic, addr, big.NewInt(g.initialSupply), false)
	return nil
}

// OnPersist burns the system and network fees of the persisting block's
// transactions and mints the network fee reward to the primary.
func (g *GAS) OnPersist(ic *interop.Context) error {
	if ic.Block == nil || len(ic.Block.Transactions) == 0 {
		return nil
	}
	var netFee int64
	for _, tx := range ic.Block.Transactions {
		absAmount := big.NewInt(tx.SystemFee + tx.NetworkFee)
		g.burn(ic, tx.Sender(), absAmount)
		netFee += tx.NetworkFee
	}
	validators, err := g.NEO.ComputeCommitteeMembers(ic.DAO)
	if err != nil || len(validators) == 0 {
		return nil
	}
	primary := int(ic.Block.PrimaryIndex) % len(validators)
	g.mint(ic, validators[primary].GetScriptHash(), big.NewInt(netFee), false)
	return nil
}

// PostPersist implements the Contract interface.
func (g *GAS) PostPersist(ic *interop.Context) error {
	return nil
}

// BalanceOf returns the GAS balance of the account.
func (g *GAS) BalanceOf(d *dao.Simple, acc util.Uint160) *big.Int {
	si := d.GetStorageItem(g.ID, g.makeAccountKey(acc))
	if si == nil {
		return big.NewInt(0)
	}
	return bigint.FromBytes(si)
}

// IterateBalances iterates over all GAS balances in the storage.
func (g *GAS) IterateBalances(d *dao.Simple, f func(h util.Uint160, b *big.Int) bool) {
	d.Seek(g.ID, storage.SeekRange{Prefix: []byte{prefixAccount}}, func(k, v []byte) bool {
		h, err := util.Uint160DecodeBytesBE(k[1:])
		if err != nil {
			return true
		}
		return f(h, bigint.FromBytes(v))
	})
}

// Mint is an exported mint used by other native contracts.
func (g *GAS) Mint(ic *interop.Context, h util.Uint160, amount *big.Int, callOnPayment bool) {
	g.mint(ic, h, amount, callOnPayment)
}

// Burn is an exported burn used by other native contracts.
func (g *GAS) Burn(ic *interop.Context, h util.Uint160, amount *big.Int) {
	g.burn(ic, h, amount)
}
