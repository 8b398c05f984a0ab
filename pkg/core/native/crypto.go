package native

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	secp256k1ecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/neoref/neoref/pkg/config"
	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/core/native/nativenames"
	"github.com/neoref/neoref/pkg/crypto/hash"
	"github.com/neoref/neoref/pkg/crypto/keys"
	"github.com/neoref/neoref/pkg/smartcontract"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/smartcontract/manifest"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// Crypto represents the CryptoLib native contract.
type Crypto struct {
	interop.ContractMD
}

const cryptoContractID = -3

// NamedCurveHash identifies a pair of named elliptic curve and hasher.
type NamedCurveHash byte

// Supported curve/hash combinations.
const (
	Secp256k1Sha256    NamedCurveHash = 22
	Secp256r1Sha256    NamedCurveHash = 23
	Secp256k1Keccak256 NamedCurveHash = 122
	Secp256r1Keccak256 NamedCurveHash = 123
)

func newCrypto() *Crypto {
	c := &Crypto{
		ContractMD: *interop.NewContractMD(nativenames.CryptoLib, cryptoContractID, nil),
	}
	defer c.Finalize()

	desc := newDescriptor("sha256", smartcontract.ByteArrayType,
		manifest.NewParameter("data", smartcontract.ByteArrayType))
	md := newMethodAndPrice(c.sha256, 1<<15, callflag.NoneFlag)
	c.AddMethod(md, desc)

	desc = newDescriptor("ripemd160", smartcontract.ByteArrayType,
		manifest.NewParameter("data", smartcontract.ByteArrayType))
	md = newMethodAndPrice(c.ripemd160, 1<<15, callflag.NoneFlag)
	c.AddMethod(md, desc)

	desc = newDescriptor("murmur32", smartcontract.ByteArrayType,
		manifest.NewParameter("data", smartcontract.ByteArrayType),
		manifest.NewParameter("seed", smartcontract.IntegerType))
	md = newMethodAndPrice(c.murmur32, 1<<13, callflag.NoneFlag)
	c.AddMethod(md, desc)

	desc = newDescriptor("keccak256", smartcontract.ByteArrayType,
		manifest.NewParameter("data", smartcontract.ByteArrayType))
	md = newMethodAndPrice(c.keccak256, 1<<15, callflag.NoneFlag)
	c.AddMethod(md, desc)

	desc = newDescriptor("verifyWithECDsa", smartcontract.BoolType,
		manifest.NewParameter("message", smartcontract.ByteArrayType),
		manifest.NewParameter("pubkey", smartcontract.ByteArrayType),
		manifest.NewParameter("signature", smartcontract.ByteArrayType),
		manifest.NewParameter("curveHash", smartcontract.IntegerType))
	md = newMethodAndPrice(c.verifyWithECDsa, 1<<15, callflag.NoneFlag)
	c.AddMethod(md, desc)

	desc = newDescriptor("verifyWithEd25519", smartcontract.BoolType,
		manifest.NewParameter("message", smartcontract.ByteArrayType),
		manifest.NewParameter("pubkey", smartcontract.ByteArrayType),
		manifest.NewParameter("signature", smartcontract.ByteArrayType))
	md = newMethodAndPrice(c.verifyWithEd25519, 1<<15, callflag.NoneFlag)
	c.AddMethod(md, desc)

	desc = newDescriptor("recoverSecp256K1", smartcontract.ByteArrayType,
		manifest.NewParameter("messageHash", smartcontract.ByteArrayType),
		manifest.NewParameter("signature", smartcontract.ByteArrayType))
	md = newMethodAndPrice(c.recoverSecp256K1, 1<<15, callflag.NoneFlag)
	c.AddMethod(md, desc)

	desc = newDescriptor("bls12381Serialize", smartcontract.ByteArrayType,
		manifest.NewParameter("g", smartcontract.InteropInterfaceType))
	md = newMethodAndPrice(c.bls12381Serialize, 1<<19, callflag.NoneFlag)
	c.AddMethod(md, desc)

	desc = newDescriptor("bls12381Deserialize", smartcontract.InteropInterfaceType,
		manifest.NewParameter("data", smartcontract.ByteArrayType))
	md = newMethodAndPrice(c.bls12381Deserialize, 1<<19, callflag.NoneFlag)
	c.AddMethod(md, desc)

	desc = newDescriptor("bls12381Equal", smartcontract.BoolType,
		manifest.NewParameter("x", smartcontract.InteropInterfaceType),
		manifest.NewParameter("y", smartcontract.InteropInterfaceType))
	md = newMethodAndPrice(c.bls12381Equal, 1<<5, callflag.NoneFlag)
	c.AddMethod(md, desc)

	desc = newDescriptor("bls12381Add", smartcontract.InteropInterfaceType,
		manifest.NewParameter("x", smartcontract.InteropInterfaceType),
		manifest.NewParameter("y", smartcontract.InteropInterfaceType))
	md = newMethodAndPrice(c.bls12381Add, 1<<19, callflag.NoneFlag)
	c.AddMethod(md, desc)

	desc = newDescriptor("bls12381Mul", smartcontract.InteropInterfaceType,
		manifest.NewParameter("x", smartcontract.InteropInterfaceType),
		manifest.NewParameter("mul", smartcontract.ByteArrayType),
		manifest.NewParameter("neg", smartcontract.BoolType))
	md = newMethodAndPrice(c.bls12381Mul, 1<<21, callflag.NoneFlag)
	c.AddMethod(md, desc)

	desc = newDescriptor("bls12381Pairing", smartcontract.InteropInterfaceType,
		manifest.NewParameter("g1", smartcontract.InteropInterfaceType),
		manifest.NewParameter("g2", smartcontract.InteropInterfaceType))
	md = newMethodAndPrice(c.bls12381Pairing, 1<<23, callflag.NoneFlag)
	c.AddMethod(md, desc)

	return c
}

// Metadata implements the Contract interface.
func (c *Crypto) Metadata() *interop.ContractMD {
	return &c.ContractMD
}

// ActiveIn implements the Contract interface.
func (c *Crypto) ActiveIn() *config.Hardfork {
	return nil
}

// Initialize implements the Contract interface.
func (c *Crypto) Initialize(ic *interop.Context, hf *config.Hardfork) error {
	return nil
}

// OnPersist implements the Contract interface.
func (c *Crypto) OnPersist(ic *interop.Context) error {
	return nil
}

// PostPersist implements the Contract interface.
func (c *Crypto) PostPersist(ic *interop.Context) error {
	return nil
}

func (c *Crypto) sha256(_ *interop.Context, args []stackitem.Item) stackitem.Item {
	bs := toBytes(args[0])
	return stackitem.NewByteArray(hash.Sha256(bs).BytesBE())
}

func (c *Crypto) ripemd160(_ *interop.Context, args []stackitem.Item) stackitem.Item {
	bs := toBytes(args[0])
	return stackitem.NewByteArray(hash.RipeMD160(bs).BytesBE())
}

func (c *Crypto) murmur32(_ *interop.Context, args []stackitem.Item) stackitem.Item {
	bs := toBytes(args[0])
	seed := toUint32(args[1])
	result := hash.Murmur32(bs, seed)
	return stackitem.NewByteArray([]byte{
		byte(result), byte(result >> 8), byte(result >> 16), byte(result >> 24),
	})
}

func (c *Crypto) keccak256(_ *interop.Context, args []stackitem.Item) stackitem.Item {
	bs := toBytes(args[0])
	return stackitem.NewByteArray(hash.Keccak256(bs).BytesBE())
}

func (c *Crypto) verifyWithECDsa(_ *interop.Context, args []stackitem.Item) stackitem.Item {
	msg := toBytes(args[0])
	pubkey := toBytes(args[1])
	signature := toBytes(args[2])
	curveHash := NamedCurveHash(toUint8(args[3]))

	var (
		digest []byte
		k1     bool
	)
	switch curveHash {
	case Secp256k1Sha256, Secp256r1Sha256:
		d := hash.Sha256(msg)
		digest = d.BytesBE()
	case Secp256k1Keccak256, Secp256r1Keccak256:
		d := hash.Keccak256(msg)
		digest = d.BytesBE()
	default:
		panic(errors.New("unsupported curve/hash"))
	}
	k1 = curveHash == Secp256k1Sha256 || curveHash == Secp256k1Keccak256

	var (
		pkey *keys.PublicKey
		err  error
	)
	if k1 {
		pkey, err = keys.NewSecp256k1PublicKeyFromBytes(pubkey)
	} else {
		pkey, err = keys.NewPublicKeyFromBytes(pubkey)
	}
	if err != nil {
		panic(err)
	}
	return stackitem.NewBool(pkey.Verify(signature, digest))
}

func (c *Crypto) verifyWithEd25519(_ *interop.Context, args []stackitem.Item) stackitem.Item {
	msg := toBytes(args[0])
	pubkey := toBytes(args[1])
	signature := toBytes(args[2])
	if len(pubkey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return stackitem.NewBool(false)
	}
	return stackitem.NewBool(ed25519.Verify(ed25519.PublicKey(pubkey), msg, signature))
}

// recoverSecp256K1 recovers the public key from the 65-byte compact
// signature (recovery id first) and the 32-byte message hash.
func (c *Crypto) recoverSecp256K1(_ *interop.Context, args []stackitem.Item) stackitem.Item {
	msgH := toBytes(args[0])
	signature := toBytes(args[1])
	if len(msgH) != util.Uint256Size || len(signature) != 65 {
		return stackitem.Null{}
	}
	// Compact signatures place the recovery id first, the original
	// representation keeps it last.
	compact := make([]byte, 65)
	compact[0] = signature[64] + 27
	copy(compact[1:], signature[:64])
	pub, _, err := secp256k1ecdsa.RecoverCompact(compact, msgH)
	if err != nil {
		return stackitem.Null{}
	}
	return stackitem.NewByteArray(pub.SerializeCompressed())
}

// blsPoint is a wrapper for BLS12-381 point types.
type blsPoint struct {
	point any
}

// Equals implements the stackitem.Equatable interface.
func (p blsPoint) Equals(other stackitem.Equatable) bool {
	res, err := blsEquals(p, other)
	return err == nil && res
}

func blsEquals(a blsPoint, bRaw stackitem.Equatable) (bool, error) {
	b, ok := bRaw.(blsPoint)
	if !ok {
		return false, errors.New("not a bls12-381 point")
	}
	switch x := a.point.(type) {
	case *bls12381.G1Affine:
		y, ok := b.point.(*bls12381.G1Affine)
		return ok && x.Equal(y), nil
	case *bls12381.G2Affine:
		y, ok := b.point.(*bls12381.G2Affine)
		return ok && x.Equal(y), nil
	case *bls12381.GT:
		y, ok := b.point.(*bls12381.GT)
		return ok && x.Equal(y), nil
	default:
		return false, errors.New("unknown bls12-381 point type")
	}
}

func (c *Crypto) bls12381Serialize(_ *interop.Context, args []stackitem.Item) stackitem.Item {
	iop, ok := args[0].(*stackitem.Interop)
	if !ok {
		panic(errors.New("not an interop item"))
	}
	p, ok := iop.Value().(blsPoint)
	if !ok {
		panic(errors.New("not a bls12-381 point"))
	}
	var data []byte
	switch x := p.point.(type) {
	case *bls12381.G1Affine:
		b := x.Bytes()
		data = b[:]
	case *bls12381.G2Affine:
		b := x.Bytes()
		data = b[:]
	case *bls12381.GT:
		b := x.Bytes()
		data = b[:]
	default:
		panic(errors.New("unknown bls12-381 point type"))
	}
	return stackitem.NewByteArray(data)
}

func (c *Crypto) bls12381Deserialize(_ *interop.Context, args []stackitem.Item) stackitem.Item {
	data := toBytes(args[0])
	var (
		p   any
		err error
	)
	switch len(data) {
	case bls12381.SizeOfG1AffineCompressed:
		g1 := new(bls12381.G1Affine)
		_, err = g1.SetBytes(data)
		p = g1
	case bls12381.SizeOfG2AffineCompressed:
		g2 := new(bls12381.G2Affine)
		_, err = g2.SetBytes(data)
		p = g2
	case bls12381.SizeOfGT:
		gt := new(bls12381.GT)
		err = gt.SetBytes(data)
		p = gt
	default:
		panic(fmt.Errorf("invalid bls12-381 point length %d", len(data)))
	}
	if err != nil {
		panic(err)
	}
	return stackitem.NewInterop(blsPoint{point: p})
}

func (c *Crypto) bls12381Equal(_ *interop.Context, args []stackitem.Item) stackitem.Item {
	a, okA := args[0].(*stackitem.Interop)
	b, okB := args[1].(*stackitem.Interop)
	if !okA || !okB {
		panic(errors.New("not an interop item"))
	}
	pa, ok := a.Value().(blsPoint)
	if !ok {
		panic(errors.New("not a bls12-381 point"))
	}
	pb, ok := b.Value().(blsPoint)
	if !ok {
		panic(errors.New("not a bls12-381 point"))
	}
	res, err := blsEquals(pa, pb)
	if err != nil {
		panic(err)
	}
	return stackitem.NewBool(res)
}

func (c *Crypto) bls12381Add(_ *interop.Context, args []stackitem.Item) stackitem.Item {
	a := popBLSPoint(args[0])
	b := popBLSPoint(args[1])

	var res any
	switch x := a.point.(type) {
	case *bls12381.G1Affine:
		y, ok := b.point.(*bls12381.G1Affine)
		if !ok {
			panic(errors.New("g1/g2 mismatch"))
		}
		xJac := new(bls12381.G1Jac).FromAffine(x)
		xJac.AddMixed(y)
		res = new(bls12381.G1Affine).FromJacobian(xJac)
	case *bls12381.G2Affine:
		y, ok := b.point.(*bls12381.G2Affine)
		if !ok {
			panic(errors.New("g1/g2 mismatch"))
		}
		xJac := new(bls12381.G2Jac).FromAffine(x)
		xJac.AddMixed(y)
		res = new(bls12381.G2Affine).FromJacobian(xJac)
	case *bls12381.GT:
		y, ok := b.point.(*bls12381.GT)
		if !ok {
			panic(errors.New("gt mismatch"))
		}
		// Additive notation for GT means multiplication.
		res = new(bls12381.GT).Mul(x, y)
	default:
		panic(errors.New("unknown bls12-381 point type"))
	}
	return stackitem.NewInterop(blsPoint{point: res})
}

func (c *Crypto) bls12381Mul(_ *interop.Context, args []stackitem.Item) stackitem.Item {
	a := popBLSPoint(args[0])
	mulBytes := toBytes(args[1])
	neg := toBool(args[2])
	if len(mulBytes) != fr.Bytes {
		panic(fmt.Errorf("invalid multiplier length %d", len(mulBytes)))
	}
	scalar := new(fr.Element)
	// The scalar comes in LE, fr expects BE.
	beBytes := make([]byte, fr.Bytes)
	for i := range mulBytes {
		beBytes[fr.Bytes-1-i] = mulBytes[i]
	}
	if err := scalar.SetBytesCanonical(beBytes); err != nil {
		panic(err)
	}
	if neg {
		scalar.Neg(scalar)
	}
	bi := new(big.Int)
	scalar.BigInt(bi)

	var res any
	switch x := a.point.(type) {
	case *bls12381.G1Affine:
		res = new(bls12381.G1Affine).ScalarMultiplication(x, bi)
	case *bls12381.G2Affine:
		res = new(bls12381.G2Affine).ScalarMultiplication(x, bi)
	case *bls12381.GT:
		res = new(bls12381.GT).Exp(*x, bi)
	default:
		panic(errors.New("unknown bls12-381 point type"))
	}
	return stackitem.NewInterop(blsPoint{point: res})
}

func (c *Crypto) bls12381Pairing(_ *interop.Context, args []stackitem.Item) stackitem.Item {
	a := popBLSPoint(args[0])
	b := popBLSPoint(args[1])
	x, ok := a.point.(*bls12381.G1Affine)
	if !ok {
		panic(errors.New("g1 expected"))
	}
	y, ok := b.point.(*bls12381.G2Affine)
	if !ok {
		panic(errors.New("g2 expected"))
	}
	gt, err := bls12381.Pair([]bls12381.G1Affine{*x}, []bls12381.G2Affine{*y})
	if err != nil {
		panic(err)
	}
	return stackitem.NewInterop(blsPoint{point: &gt})
}

func popBLSPoint(it stackitem.Item) blsPoint {
	iop, ok := it.(*stackitem.Interop)
	if !ok {
		panic(errors.New("not an interop item"))
	}
	p, ok := iop.Value().(blsPoint)
	if !ok {
		panic(errors.New("not a bls12-381 point"))
	}
	return p
}
