package dsg

import (
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/curve"
	dklsecdsa "github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/ecdsa"
)

// Verify checks a combined signature against the session's public key,
// the standard ECDSA verification equation: R' = s^-1*(m*G + r*Q), valid
// iff R'.x mod n == r.
func Verify(publicKey curve.Point, digest [32]byte, sig dklsecdsa.Signature) bool {
	if sig.R.IsZero() || sig.S.IsZero() {
		return false
	}
	m, _, err := curve.ScalarFromBytes(digest[:])
	if err != nil {
		return false
	}
	sInv, ok := sig.S.Invert()
	if !ok {
		return false
	}
	u1 := m.Mul(sInv)
	u2 := sig.R.Mul(sInv)
	point := u1.ActOnBase().Add(u2.Act(publicKey))
	x, _, err := point.XCoordScalar()
	if err != nil {
		return false
	}
	return x.Equal(sig.R)
}
