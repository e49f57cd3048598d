// Package ecdsa holds the signature type DSG produces: r, s, and a
// recovery id, along with SEC1 DER encoding.
package ecdsa

import (
	"math/big"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/curve"
)

// Signature is a combined ECDSA signature plus its recovery id (0-3,
// though secp256k1 in practice only ever produces 0 or 1 for the low-s
// form this package always returns).
type Signature struct {
	R          curve.Scalar
	S          curve.Scalar
	RecoveryID byte
}

// Normalize flips S to n-S (and toggles the recovery id's low bit) when S
// is in the upper half of the scalar field, enforcing BIP-62 low-s form.
func (sig Signature) Normalize() Signature {
	if !sig.S.IsHighS() {
		return sig
	}
	return Signature{
		R:          sig.R,
		S:          sig.S.Negate(),
		RecoveryID: sig.RecoveryID ^ 1,
	}
}

// ToBytes returns the 64-byte fixed r||s encoding.
func (sig Signature) ToBytes() [64]byte {
	var out [64]byte
	r := sig.R.Bytes()
	s := sig.S.Bytes()
	copy(out[:32], r[:])
	copy(out[32:], s[:])
	return out
}

// ToDER encodes the signature per SEC1/X9.62 (the two integers r, s as a
// DER SEQUENCE of INTEGER). Hand-rolled: the corpus carries no general
// ASN.1 encoder, and the encoding is two fixed-shape integers, not
// general-purpose ASN.1.
func (sig Signature) ToDER() []byte {
	rBytes := sig.R.Bytes()
	sBytes := sig.S.Bytes()
	rEnc := asn1Int(rBytes[:])
	sEnc := asn1Int(sBytes[:])
	body := append(append([]byte{}, rEnc...), sEnc...)
	out := []byte{0x30}
	out = append(out, asn1Length(len(body))...)
	out = append(out, body...)
	return out
}

func asn1Int(b []byte) []byte {
	// Strip leading zero bytes, then re-add one if the high bit is set
	// so the integer is never misread as negative (DER INTEGER is
	// signed, two's complement).
	v := new(big.Int).SetBytes(b)
	raw := v.Bytes()
	if len(raw) == 0 {
		raw = []byte{0x00}
	}
	if raw[0]&0x80 != 0 {
		raw = append([]byte{0x00}, raw...)
	}
	out := []byte{0x02}
	out = append(out, asn1Length(len(raw))...)
	out = append(out, raw...)
	return out
}

func asn1Length(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	var lb []byte
	for n > 0 {
		lb = append([]byte{byte(n & 0xff)}, lb...)
		n >>= 8
	}
	return append([]byte{0x80 | byte(len(lb))}, lb...)
}
