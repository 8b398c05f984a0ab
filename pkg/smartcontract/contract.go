package smartcontract

import (
	"errors"
	"fmt"
	"sort"

	"github.com/neoref/neoref/pkg/core/interop/interopnames"
	"github.com/neoref/neoref/pkg/crypto/keys"
	"github.com/neoref/neoref/pkg/io"
	"github.com/neoref/neoref/pkg/vm/emit"
	"github.com/neoref/neoref/pkg/vm/opcode"
)

// CreateMultiSigRedeemScript creates an "m out of n" type verification
// script where n is the length of publicKeys.
func CreateMultiSigRedeemScript(m int, publicKeys keys.PublicKeys) ([]byte, error) {
	if m < 1 {
		return nil, fmt.Errorf("param m cannot be smaller than 1, got %d", m)
	}
	if m > len(publicKeys) {
		return nil, fmt.Errorf("length of the signatures (%d) is higher then the number of public keys", m)
	}
	if m > 1024 {
		return nil, fmt.Errorf("public key count %d exceeds maximum of length 1024", m)
	}

	buf := io.NewBufBinWriter()
	emit.Int(&buf.BinWriter, int64(m))
	sorted := publicKeys.Copy()
	sort.Sort(sorted)
	for _, pubKey := range sorted {
		emit.Bytes(&buf.BinWriter, pubKey.Bytes())
	}
	emit.Int(&buf.BinWriter, int64(len(publicKeys)))
	emit.Syscall(&buf.BinWriter, interopnames.SystemCryptoCheckMultisig)

	return buf.Bytes(), nil
}

// CreateDefaultMultiSigRedeemScript creates an "m out of n" type
// verification script using publicKeys length with the default BFT
// assumptions of (n - (n-1)/3) for m.
func CreateDefaultMultiSigRedeemScript(publicKeys keys.PublicKeys) ([]byte, error) {
	n := len(publicKeys)
	m := GetDefaultHonestNodeCount(n)
	return CreateMultiSigRedeemScript(m, publicKeys)
}

// CreateMajorityMultiSigRedeemScript creates an "m out of n" type
// verification script using publicKeys length with m set to majority.
func CreateMajorityMultiSigRedeemScript(publicKeys keys.PublicKeys) ([]byte, error) {
	n := len(publicKeys)
	m := GetMajorityHonestNodeCount(n)
	return CreateMultiSigRedeemScript(m, publicKeys)
}

// GetDefaultHonestNodeCount returns the minimum number of honest nodes
// required for network of size n.
func GetDefaultHonestNodeCount(n int) int {
	return n - (n-1)/3
}

// GetMajorityHonestNodeCount returns the minimum number of honest nodes
// required for majority-style agreement.
func GetMajorityHonestNodeCount(n int) int {
	return n - (n-1)/2
}

// ParseMultiSigContract returns the number of signatures and a list of
// public keys from the verification script of the contract.
func ParseMultiSigContract(script []byte) (int, [][]byte, bool) {
	var nsigs, nkeys int

	ctx := scriptContext{script: script}
	instr, param, err := ctx.next()
	if err != nil {
		return nsigs, nil, false
	}
	switch {
	case opcode.PUSH1 <= instr && instr <= opcode.PUSH16:
		nsigs = int(instr-opcode.PUSH0)
	case instr == opcode.PUSHINT8 || instr == opcode.PUSHINT16:
		nsigs = paramToInt(param)
	default:
		return nsigs, nil, false
	}
	var pubs [][]byte
	for {
		instr, param, err = ctx.next()
		if err != nil {
			return nsigs, nil, false
		}
		if instr != opcode.PUSHDATA1 {
			break
		}
		if len(param) < 33 {
			return nsigs, nil, false
		}
		pubs = append(pubs, param)
		nkeys++
	}
	if nkeys < nsigs {
		return nsigs, nil, false
	}
	switch {
	case opcode.PUSH1 <= instr && instr <= opcode.PUSH16:
		if nkeys != int(instr-opcode.PUSH0) {
			return nsigs, nil, false
		}
	case instr == opcode.PUSHINT8 || instr == opcode.PUSHINT16:
		if nkeys != paramToInt(param) {
			return nsigs, nil, false
		}
	default:
		return nsigs, nil, false
	}
	instr, param, err = ctx.next()
	if err != nil || instr != opcode.SYSCALL || len(param) != 4 {
		return nsigs, nil, false
	}
	if interopnames.ToID([]byte(interopnames.SystemCryptoCheckMultisig)) !=
		uint32(param[0])|uint32(param[1])<<8|uint32(param[2])<<16|uint32(param[3])<<24 {
		return nsigs, nil, false
	}
	return nsigs, pubs, true
}

// IsSignatureContract checks whether the passed script is a signature
// check contract.
func IsSignatureContract(script []byte) bool {
	if len(script) != 40 {
		return false
	}
	if script[0] != byte(opcode.PUSHDATA1) || script[1] != 33 ||
		script[35] != byte(opcode.SYSCALL) {
		return false
	}
	id := uint32(script[36]) | uint32(script[37])<<8 | uint32(script[38])<<16 | uint32(script[39])<<24
	return id == interopnames.ToID([]byte(interopnames.SystemCryptoCheckSig))
}

// IsMultiSigContract checks whether the passed script is a multi-signature
// check contract.
func IsMultiSigContract(script []byte) bool {
	_, _, ok := ParseMultiSigContract(script)
	return ok
}

// IsStandardContract checks whether the passed script is a signature or
// multi-signature check contract.
func IsStandardContract(script []byte) bool {
	return IsSignatureContract(script) || IsMultiSigContract(script)
}

type scriptContext struct {
	script []byte
	ip     int
}

var errEndOfScript = errors.New("unexpected end of script")

func (c *scriptContext) next() (opcode.Opcode, []byte, error) {
	if c.ip >= len(c.script) {
		return opcode.RET, nil, errEndOfScript
	}
	op := opcode.Opcode(c.script[c.ip])
	c.ip++
	var size int
	switch op {
	case opcode.PUSHINT8:
		size = 1
	case opcode.PUSHINT16:
		size = 2
	case opcode.SYSCALL:
		size = 4
	case opcode.PUSHDATA1:
		if c.ip >= len(c.script) {
			return op, nil, errEndOfScript
		}
		size = int(c.script[c.ip])
		c.ip++
	}
	if c.ip+size > len(c.script) {
		return op, nil, errEndOfScript
	}
	param := c.script[c.ip : c.ip+size]
	c.ip += size
	return op, param, nil
}

func paramToInt(param []byte) int {
	var res int
	for i := len(param) - 1; i >= 0; i-- {
		res = res<<8 | int(param[i])
	}
	return res
}
