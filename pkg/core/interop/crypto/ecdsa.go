// Package crypto implements the System.Crypto.* syscall family.
package crypto

import (
	"errors"
	"fmt"

	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/crypto/hash"
	"github.com/neoref/neoref/pkg/crypto/keys"
)

// CheckSigPrice is the prize for the CheckSig syscall, adjusted by the
// base exec fee.
const CheckSigPrice = 1 << 15

// ECDSASecp256r1CheckSig checks the ECDSA signature on the curve
// secp256r1 using the network-prefixed container hash as the message.
func ECDSASecp256r1CheckSig(ic *interop.Context) error {
	keyb := ic.VM.Estack().PopBytes()
	signature := ic.VM.Estack().PopBytes()
	pkey, err := keys.NewPublicKeyFromBytes(keyb)
	if err != nil {
		return err
	}
	res := pkey.VerifyHashable(signature, ic.Network, ic.Container)
	ic.VM.Estack().PushVal(res)
	return nil
}

// ECDSASecp256r1CheckMultisig checks multiple ECDSA signatures at once.
func ECDSASecp256r1CheckMultisig(ic *interop.Context) error {
	pkeys, err := ic.VM.Estack().PopSigElements()
	if err != nil {
		return fmt.Errorf("wrong parameters: %w", err)
	}
	if !ic.VM.AddGas(ic.BaseExecFee() * CheckSigPrice * int64(len(pkeys))) {
		return errors.New("gas limit exceeded")
	}
	sigs, err := ic.VM.Estack().PopSigElements()
	if err != nil {
		return fmt.Errorf("wrong parameters: %w", err)
	}
	// It's ok to have more keys than there are signatures (it would
	// be useless, but not incorrect).
	if len(pkeys) < len(sigs) {
		return fmt.Errorf("more signatures (%d) than there are keys (%d)", len(sigs), len(pkeys))
	}
	sigok := checkMultisig(ic, pkeys, sigs)
	ic.VM.Estack().PushVal(sigok)
	return nil
}

func checkMultisig(ic *interop.Context, pkeys [][]byte, sigs [][]byte) bool {
	data := keys.GetSignedData(ic.Network, ic.Container)
	digest := hash.Sha256(data)

	sigok := true
	var pkeyIndex int

	for i := 0; i < len(sigs); i++ {
		ok := false
		for ; pkeyIndex < len(pkeys); pkeyIndex++ {
			pkey, err := keys.NewPublicKeyFromBytes(pkeys[pkeyIndex])
			if err != nil {
				continue
			}
			if pkey.Verify(sigs[i], digest.BytesBE()) {
				ok = true
				pkeyIndex++
				break
			}
		}
		if !ok {
			sigok = false
			break
		}
	}
	return sigok
}
