// Package curve wraps secp256k1 scalar and point arithmetic for the
// threshold protocols. It is a thin, typed layer over
// github.com/decred/dcrd/dcrec/secp256k1/v4, built so that protocol code
// never reaches for the underlying library's field/group types directly.
package curve

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
)

// ErrInvalidEncoding is returned when a scalar or point fails to parse.
var ErrInvalidEncoding = errors.New("curve: invalid encoding")

// Scalar is an element of Z_n, n the secp256k1 group order.
type Scalar struct {
	v secp256k1.ModNScalar
}

// NewScalar returns the zero scalar.
func NewScalar() Scalar {
	return Scalar{}
}

// SampleScalar draws a uniformly random non-zero scalar from r.
func SampleScalar(r io.Reader) (Scalar, error) {
	var buf [48]byte // extra bytes to bias-reduce uniformly, per RFC9380-style oversampling
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return Scalar{}, err
		}
		var wide saferith.Nat
		wide.SetBytes(buf[:])
		var nat saferith.Nat
		nat.Mod(&wide, groupOrderModulus())
		var s Scalar
		b := natTo32Bytes(&nat)
		s.v.SetByteSlice(b[:])
		if !s.IsZero() {
			return s, nil
		}
	}
}

// RandomScalar samples using the OS CSPRNG.
func RandomScalar() (Scalar, error) {
	return SampleScalar(rand.Reader)
}

// ScalarFromUint64 builds the scalar representation of a small non-negative
// integer, routed through saferith.Nat the way the teacher's round code
// constructs Shamir evaluation points and coefficient exponents.
func ScalarFromUint64(v uint64) Scalar {
	nat := new(saferith.Nat).SetUint64(v)
	var s Scalar
	b := natTo32Bytes(nat)
	s.v.SetByteSlice(b[:])
	return s
}

// PartyScalar returns the Shamir evaluation point (id+1) for a party.
func PartyScalar(id party.ID) Scalar {
	return ScalarFromUint64(uint64(id) + 1)
}

// ScalarFromBytes decodes a 32-byte big-endian scalar, reducing mod n.
// overflow reports whether the input was >= n before reduction.
func ScalarFromBytes(b []byte) (s Scalar, overflow bool, err error) {
	if len(b) != 32 {
		return Scalar{}, false, ErrInvalidEncoding
	}
	overflow = s.v.SetByteSlice(b)
	return s, overflow, nil
}

// Bytes serialises the scalar to fixed 32-byte big-endian form.
func (s Scalar) Bytes() [32]byte {
	return s.v.Bytes()
}

func (s Scalar) Set(other Scalar) Scalar { s.v = other.v; return s }

func (s Scalar) Add(other Scalar) Scalar {
	var out Scalar
	out.v.Set(&s.v)
	out.v.Add(&other.v)
	return out
}

func (s Scalar) Sub(other Scalar) Scalar {
	neg := other.Negate()
	return s.Add(neg)
}

func (s Scalar) Mul(other Scalar) Scalar {
	var out Scalar
	out.v.Set(&s.v)
	out.v.Mul(&other.v)
	return out
}

func (s Scalar) Negate() Scalar {
	var out Scalar
	out.v.Set(&s.v)
	out.v.Negate()
	return out
}

// Invert returns the multiplicative inverse; ok is false for the zero scalar.
func (s Scalar) Invert() (inv Scalar, ok bool) {
	if s.IsZero() {
		return Scalar{}, false
	}
	var out Scalar
	out.v.Set(&s.v)
	out.v.InverseValNonConst()
	return out, true
}

func (s Scalar) IsZero() bool { return s.v.IsZero() }

// halfOrder is floor(n/2), used to test the low-s ECDSA malleability rule.
var halfOrder = new(big.Int).Rsh(groupOrderBigIntOnce(), 1)

// IsHighS reports whether s is greater than n/2, the condition BIP-62 low-s
// normalization flips by negating.
func (s Scalar) IsHighS() bool {
	b := s.Bytes()
	v := new(big.Int).SetBytes(b[:])
	return v.Cmp(halfOrder) > 0
}

func (s Scalar) Equal(other Scalar) bool { return s.v.Equals(&other.v) }

// ActOnBase computes s*G, the point that "commits" the scalar.
func (s Scalar) ActOnBase() Point {
	var j secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&s.v, &j)
	return pointFromJacobian(j)
}

// Act computes s*P.
func (s Scalar) Act(p Point) Point {
	if p.isIdentity {
		return p
	}
	var j secp256k1.JacobianPoint
	pj := p.toJacobian()
	secp256k1.ScalarMultNonConst(&s.v, &pj, &j)
	return pointFromJacobian(j)
}

// Point is an element of the secp256k1 group, the point at infinity
// distinguished explicitly since the underlying library's affine
// representation does not encode it directly.
type Point struct {
	x, y       secp256k1.FieldVal
	isIdentity bool
}

// IdentityPoint returns the group identity (point at infinity).
func IdentityPoint() Point { return Point{isIdentity: true} }

// Generator returns the secp256k1 base point G.
func Generator() Point { return NewScalarOne().ActOnBase() }

// NewScalarOne returns the scalar 1.
func NewScalarOne() Scalar { return ScalarFromUint64(1) }

func pointFromJacobian(j secp256k1.JacobianPoint) Point {
	j.ToAffine()
	if j.X.IsZero() && j.Y.IsZero() {
		return Point{isIdentity: true}
	}
	return Point{x: j.X, y: j.Y}
}

func (p Point) toJacobian() secp256k1.JacobianPoint {
	var j secp256k1.JacobianPoint
	if p.isIdentity {
		return j
	}
	j.X = p.x
	j.Y = p.y
	j.Z.SetInt(1)
	return j
}

// Negate returns the additive inverse of p.
func (p Point) Negate() Point {
	if p.isIdentity {
		return p
	}
	var y secp256k1.FieldVal
	y.Set(&p.y)
	y.Negate(1).Normalize()
	return Point{x: p.x, y: y}
}

// Add computes the group sum p+q.
func (p Point) Add(q Point) Point {
	if p.isIdentity {
		return q
	}
	if q.isIdentity {
		return p
	}
	var j secp256k1.JacobianPoint
	pj, qj := p.toJacobian(), q.toJacobian()
	secp256k1.AddNonConst(&pj, &qj, &j)
	return pointFromJacobian(j)
}

// Equal reports whether p and q are the same group element.
func (p Point) Equal(q Point) bool {
	if p.isIdentity || q.isIdentity {
		return p.isIdentity == q.isIdentity
	}
	return p.x.Equals(&q.x) && p.y.Equals(&q.y)
}

// IsIdentity reports whether p is the point at infinity.
func (p Point) IsIdentity() bool { return p.isIdentity }

// CompressedBytes returns the 33-byte SEC1 compressed encoding. The identity
// has no compressed encoding and returns an error.
func (p Point) CompressedBytes() ([33]byte, error) {
	var out [33]byte
	if p.isIdentity {
		return out, errors.New("curve: cannot encode identity point")
	}
	pk := secp256k1.NewPublicKey(&p.x, &p.y)
	copy(out[:], pk.SerializeCompressed())
	return out, nil
}

// UncompressedBytes returns the 65-byte SEC1 uncompressed encoding.
func (p Point) UncompressedBytes() ([65]byte, error) {
	var out [65]byte
	if p.isIdentity {
		return out, errors.New("curve: cannot encode identity point")
	}
	pk := secp256k1.NewPublicKey(&p.x, &p.y)
	copy(out[:], pk.SerializeUncompressed())
	return out, nil
}

// XCoordScalar returns x(P) reduced mod the group order n, and whether the
// raw field element was >= n before that reduction (needed to derive the
// ECDSA recovery id's high bit).
func (p Point) XCoordScalar() (x Scalar, reducedFromField bool, err error) {
	if p.isIdentity {
		return Scalar{}, false, errors.New("curve: identity point has no x-coordinate")
	}
	xBytes := p.x.Bytes()
	overflow := x.v.SetByteSlice(xBytes[:])
	return x, overflow, nil
}

// IsYOdd reports the parity of the Y coordinate, used for recovery ids and
// compressed-point tag bytes.
func (p Point) IsYOdd() bool {
	return p.y.IsOdd()
}

// DecompressPoint parses a 33-byte compressed point.
func DecompressPoint(b [33]byte) (Point, error) {
	pk, err := secp256k1.ParsePubKey(b[:])
	if err != nil {
		return Point{}, ErrInvalidEncoding
	}
	return Point{x: pk.X, y: pk.Y}, nil
}

// DecompressPointSlice parses an arbitrary-length SEC1 point (33 or 65
// bytes), rejecting the 0x04-uncompressed identity encodings the library
// itself never produces but a hostile peer could attempt to send.
func DecompressPointSlice(b []byte) (Point, error) {
	pk, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return Point{}, ErrInvalidEncoding
	}
	return Point{x: pk.X, y: pk.Y}, nil
}

// groupOrderHex is the secp256k1 group order n, hardcoded since the
// underlying library exposes it only through the ModNScalar reduction
// logic, not as an importable big.Int constant.
const groupOrderHex = "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141"

func groupOrderBigIntOnce() *big.Int {
	n, ok := new(big.Int).SetString(groupOrderHex, 16)
	if !ok {
		panic("curve: invalid hardcoded group order")
	}
	return n
}

func groupOrderModulus() *saferith.Modulus {
	return saferith.ModulusFromBytes(groupOrderBigIntOnce().Bytes())
}

func natTo32Bytes(n *saferith.Nat) [32]byte {
	var out [32]byte
	b := n.Bytes()
	if len(b) >= 32 {
		copy(out[:], b[len(b)-32:])
	} else {
		copy(out[32-len(b):], b)
	}
	return out
}
