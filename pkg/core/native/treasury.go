package native

import (
	"github.com/neoref/neoref/pkg/config"
	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/core/native/nativenames"
	"github.com/neoref/neoref/pkg/smartcontract"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/smartcontract/manifest"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// Treasury is the native contract holding recovered funds, spendable only
// with a committee witness.
type Treasury struct {
	interop.ContractMD
	NEO *NEO
}

const treasuryContractID = -11

var activeInFaun = config.HFFaun

func newTreasury() *Treasury {
	t := &Treasury{
		ContractMD: *interop.NewContractMD(nativenames.Treasury, treasuryContractID, &activeInFaun),
	}
	defer t.Finalize()
	t.Manifest.SupportedStandards = []string{manifest.NEP27StandardName}

	desc := newDescriptor("onNEP17Payment", smartcontract.VoidType,
		manifest.NewParameter("from", smartcontract.Hash160Type),
		manifest.NewParameter("amount", smartcontract.IntegerType),
		manifest.NewParameter("data", smartcontract.AnyType))
	md := newMethodAndPrice(t.onPayment, 1<<15, callflag.States)
	t.AddMethod(md, desc)

	desc = newDescriptor("verify", smartcontract.BoolType)
	md = newMethodAndPrice(t.verify, 1<<15, callflag.ReadStates)
	t.AddMethod(md, desc)

	return t
}

// Metadata implements the Contract interface.
func (t *Treasury) Metadata() *interop.ContractMD {
	return &t.ContractMD
}

// ActiveIn implements the Contract interface.
func (t *Treasury) ActiveIn() *config.Hardfork {
	return &activeInFaun
}

// Initialize implements the Contract interface.
func (t *Treasury) Initialize(ic *interop.Context, hf *config.Hardfork) error {
	return nil
}

// OnPersist implements the Contract interface.
func (t *Treasury) OnPersist(ic *interop.Context) error {
	return nil
}

// PostPersist implements the Contract interface.
func (t *Treasury) PostPersist(ic *interop.Context) error {
	return nil
}

// onPayment accepts any NEP-17 token, the treasury is a sink by design of
// the fund-recovery flow.
func (t *Treasury) onPayment(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	amount := toBigInt(args[1])
	if amount.Sign() < 0 {
		panic("negative amount")
	}
	return stackitem.Null{}
}

// verify allows spending from the treasury only with the committee
// witness.
func (t *Treasury) verify(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.NewBool(t.NEO.checkCommittee(ic))
}
