package contract

import (
	"errors"
	"fmt"

	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/crypto/hash"
	"github.com/neoref/neoref/pkg/crypto/keys"
	"github.com/neoref/neoref/pkg/smartcontract"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// checkSigFee is the dynamic price component of the account-creating
// syscalls, one signature check worth of gas per key.
const checkSigFee = 1 << 15

// CreateStandardAccount calculates the single-signature contract script
// hash for the given public key.
func CreateStandardAccount(ic *interop.Context) error {
	key := ic.VM.Estack().PopBytes()
	if !ic.VM.AddGas(checkSigFee * ic.BaseExecFee()) {
		return errors.New("gas limit exceeded")
	}
	p, err := keys.NewPublicKeyFromBytes(key)
	if err != nil {
		return err
	}
	ic.VM.Estack().Push(stackitem.NewByteArray(p.GetScriptHash().BytesBE()))
	return nil
}

// CreateMultisigAccount calculates the m-out-of-n multisignature contract
// script hash for the given m and a set of public keys.
func CreateMultisigAccount(ic *interop.Context) error {
	m := ic.VM.Estack().PopBigInt()
	if !m.IsInt64() || m.Int64() < 1 {
		return errors.New("m must be a positive integer")
	}
	arr, ok := ic.VM.Estack().Pop().(*stackitem.Array)
	if !ok {
		return errors.New("expected an array of keys")
	}
	elems := arr.Value().([]stackitem.Item)
	if !ic.VM.AddGas(int64(len(elems)) * checkSigFee * ic.BaseExecFee()) {
		return errors.New("gas limit exceeded")
	}

	pubs := make(keys.PublicKeys, len(elems))
	for i, item := range elems {
		val, err := item.TryBytes()
		if err != nil {
			return fmt.Errorf("invalid key %d: %w", i, err)
		}
		pub, err := keys.NewPublicKeyFromBytes(val)
		if err != nil {
			return fmt.Errorf("invalid key %d: %w", i, err)
		}
		pubs[i] = pub
	}
	script, err := smartcontract.CreateMultiSigRedeemScript(int(m.Int64()), pubs)
	if err != nil {
		return err
	}
	ic.VM.Estack().Push(stackitem.NewByteArray(hash.Hash160(script).BytesBE()))
	return nil
}
