// Package polynomial implements Shamir secret sharing polynomials and
// Lagrange interpolation coefficients over the secp256k1 scalar field.
package polynomial

import (
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/curve"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
)

// Polynomial is a degree t-1 polynomial over Z_n, coefficients in ascending
// order (Coefficients[0] is the constant term, the secret for DKG).
type Polynomial struct {
	Coefficients []curve.Scalar
}

// New builds a random polynomial of the given degree, drawing every
// coefficient, the constant term included, from sampler. Sample below is
// the variant that takes a fixed constant term.
func New(degree int, sampler func() (curve.Scalar, error)) (*Polynomial, error) {
	coeffs := make([]curve.Scalar, degree+1)
	for i := range coeffs {
		s, err := sampler()
		if err != nil {
			return nil, err
		}
		coeffs[i] = s
	}
	return &Polynomial{Coefficients: coeffs}, nil
}

// Sample draws a random degree-(threshold-1) polynomial with the given
// constant term, the shape used both for DKG (constant = fresh secret) and
// Key Refresh (constant = zero scalar).
func Sample(threshold int, constant curve.Scalar) (*Polynomial, error) {
	coeffs := make([]curve.Scalar, threshold)
	coeffs[0] = constant
	for i := 1; i < threshold; i++ {
		s, err := curve.RandomScalar()
		if err != nil {
			return nil, err
		}
		coeffs[i] = s
	}
	return &Polynomial{Coefficients: coeffs}, nil
}

// Degree returns the polynomial's degree.
func (p *Polynomial) Degree() int { return len(p.Coefficients) - 1 }

// Constant returns the constant term (the shared secret).
func (p *Polynomial) Constant() curve.Scalar { return p.Coefficients[0] }

// Evaluate computes p(x) via Horner's method.
func (p *Polynomial) Evaluate(x curve.Scalar) curve.Scalar {
	acc := curve.NewScalar()
	for i := len(p.Coefficients) - 1; i >= 0; i-- {
		acc = acc.Mul(x).Add(p.Coefficients[i])
	}
	return acc
}

// EvaluateAt evaluates the polynomial at a party's Shamir evaluation point
// (id+1), the form every DKG/refresh round actually calls.
func (p *Polynomial) EvaluateAt(id party.ID) curve.Scalar {
	return p.Evaluate(curve.PartyScalar(id))
}

// Commitments returns c_k = Coefficients[k]*G for every coefficient, the
// Feldman VSS broadcast that lets peers verify shares without the secret.
func (p *Polynomial) Commitments() []curve.Point {
	out := make([]curve.Point, len(p.Coefficients))
	for i, c := range p.Coefficients {
		out[i] = c.ActOnBase()
	}
	return out
}

// EvaluateCommitments computes Σ_k x^k * C_k for the given commitment set,
// the public counterpart of EvaluateAt used to verify a received share
// against the sender's broadcast commitments.
func EvaluateCommitments(commitments []curve.Point, x curve.Scalar) curve.Point {
	acc := curve.IdentityPoint()
	xPower := curve.NewScalarOne()
	for _, c := range commitments {
		acc = acc.Add(xPower.Act(c))
		xPower = xPower.Mul(x)
	}
	return acc
}

// VerifyShare reports whether share*G equals the Horner evaluation of the
// sender's public commitments at x, i.e. whether the share is consistent
// with the broadcast polynomial.
func VerifyShare(share curve.Scalar, commitments []curve.Point, x curve.Scalar) bool {
	lhs := share.ActOnBase()
	rhs := EvaluateCommitments(commitments, x)
	return lhs.Equal(rhs)
}

// Lagrange computes the interpolation coefficients lambda_i for reconstructing
// f(0) from the evaluations {f(x_id)}_{id in ids}, x_id = id+1.
func Lagrange(ids party.IDSlice) map[party.ID]curve.Scalar {
	out := make(map[party.ID]curve.Scalar, len(ids))
	for _, i := range ids {
		xi := curve.PartyScalar(i)
		num := curve.NewScalarOne()
		den := curve.NewScalarOne()
		for _, j := range ids {
			if j == i {
				continue
			}
			xj := curve.PartyScalar(j)
			num = num.Mul(xj.Negate())
			den = den.Mul(xi.Sub(xj))
		}
		denInv, ok := den.Invert()
		if !ok {
			// ids contains a duplicate; callers must validate beforehand.
			out[i] = curve.NewScalar()
			continue
		}
		out[i] = num.Mul(denInv)
	}
	return out
}

// LagrangeAt computes interpolation coefficients for reconstructing f(x)
// at an arbitrary evaluation point rather than f(0), needed nowhere in the
// base protocol today but kept alongside Lagrange since both share the same
// structure and DSG's per-signer coefficient is just LagrangeAt with x=0.
func LagrangeAt(ids party.IDSlice, self party.ID, x curve.Scalar) curve.Scalar {
	xi := curve.PartyScalar(self)
	num := curve.NewScalarOne()
	den := curve.NewScalarOne()
	for _, j := range ids {
		if j == self {
			continue
		}
		xj := curve.PartyScalar(j)
		num = num.Mul(x.Sub(xj))
		den = den.Mul(xi.Sub(xj))
	}
	denInv, ok := den.Invert()
	if !ok {
		return curve.NewScalar()
	}
	return num.Mul(denInv)
}
