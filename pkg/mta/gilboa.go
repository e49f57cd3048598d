// Package mta implements two-party multiplicative-to-additive conversion
// via Gilboa's OT-based multiplication protocol, instantiated on the
// Naor-Pinkas base OT from pkg/ot. Given a sender holding scalar a and a
// receiver holding scalar b, the protocol yields additive shares alpha,
// beta with alpha+beta = a*b, without either party learning the other's
// input.
package mta

import (
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/curve"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dklserr"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/ot"
)

// bitLength is the number of bits of the scalar field the bitwise-OT
// encoding below iterates over. secp256k1's order is a 256-bit prime, so
// every scalar fits in this many base-OT instances.
const bitLength = 256

// SenderState carries the receiver-facing OT setups a sender must keep
// between SenderRound1 and SenderRound2 of one MtA instance.
type SenderState struct {
	a      curve.Scalar
	setups [bitLength]ot.SenderSetup
}

// SenderRound1 samples one base-OT sender setup per bit position of the
// receiver's input b, broadcasting the public C values to the receiver.
func SenderRound1(a curve.Scalar) (*SenderState, []curve.Point, error) {
	st := &SenderState{a: a}
	cs := make([]curve.Point, bitLength)
	for i := 0; i < bitLength; i++ {
		setup, err := ot.NewSenderSetup()
		if err != nil {
			return nil, nil, err
		}
		st.setups[i] = setup
		cs[i] = setup.C
	}
	return st, cs, nil
}

// ReceiverState carries the receiver's OT choices between ReceiverRound1
// and ReceiverRound2.
type ReceiverState struct {
	b       curve.Scalar
	bits    [bitLength]int
	choices [bitLength]ot.ReceiverChoice
	cs      [bitLength]curve.Point
	beta    curve.Scalar
}

// ReceiverRound1 encodes b's bits and makes one OT choice per bit against
// the sender's broadcast setups.
func ReceiverRound1(b curve.Scalar, cs []curve.Point) (*ReceiverState, []ot.ReceiverChoicePublic, error) {
	if len(cs) != bitLength {
		return nil, nil, dklserr.New(dklserr.KindInvalidConfig, "mta.ReceiverRound1", "unexpected setup count")
	}
	bBytes := b.Bytes()
	st := &ReceiverState{b: b}
	pubs := make([]ot.ReceiverChoicePublic, bitLength)
	for i := 0; i < bitLength; i++ {
		bit := bitAt(bBytes, i)
		st.bits[i] = bit
		setup := ot.SenderSetup{C: cs[i]}
		choice, err := ot.Choose(setup, bit)
		if err != nil {
			return nil, nil, err
		}
		st.choices[i] = choice
		st.cs[i] = cs[i]
		pubs[i] = choice.Public()
	}
	return st, pubs, nil
}

// SenderRound2 encrypts, for every bit position i, the pair
// (r_i, r_i + 2^i * a mod n), r_i a fresh random mask, under the receiver's
// two OT public keys, then returns the sender's additive share
// alpha = -sum of the masks r_i (see Gilboa 1999 for the share derivation
// this mirrors).
//
// Concretely: for bit i, let m0 = r_i, m1 = r_i + 2^i*a. The sender's
// running share accumulates -r_i for every bit; the receiver's share, after
// decrypting its chosen branch, accumulates m_{bit_i}. Summed over all bits
// the receiver holds sum(r_i) + sum(bit_i * 2^i * a) = sum(r_i) + b*a, and
// the sender's -sum(r_i) cancels the masks, so alpha + beta = a*b.
func SenderRound2(st *SenderState, pubs []ot.ReceiverChoicePublic) ([]ot.SenderReply, curve.Scalar, error) {
	if len(pubs) != bitLength {
		return nil, curve.Scalar{}, dklserr.New(dklserr.KindInvalidConfig, "mta.SenderRound2", "unexpected choice count")
	}
	replies := make([]ot.SenderReply, bitLength)
	alpha := curve.NewScalar()
	two := curve.ScalarFromUint64(2)
	power := curve.NewScalarOne()
	for i := 0; i < bitLength; i++ {
		r, err := curve.RandomScalar()
		if err != nil {
			return nil, curve.Scalar{}, err
		}
		m0 := r
		m1 := r.Add(power.Mul(st.a))

		reply, err := ot.Encrypt(st.setups[i], pubs[i], scalarToPad(m0), scalarToPad(m1))
		if err != nil {
			return nil, curve.Scalar{}, err
		}
		replies[i] = reply
		alpha = alpha.Sub(r)
		power = power.Mul(two)
	}
	return replies, alpha, nil
}

// ReceiverRound2 decrypts each OT reply according to the receiver's
// earlier bit choices and sums the results into beta, the receiver's
// additive share. alpha (from SenderRound2) plus this beta equals a*b.
func ReceiverRound2(st *ReceiverState, replies []ot.SenderReply) (curve.Scalar, error) {
	if len(replies) != bitLength {
		return curve.Scalar{}, dklserr.New(dklserr.KindInvalidConfig, "mta.ReceiverRound2", "unexpected reply count")
	}
	beta := curve.NewScalar()
	for i := 0; i < bitLength; i++ {
		setup := ot.SenderSetup{C: st.cs[i]}
		pad, err := ot.Decrypt(setup, st.choices[i], replies[i])
		if err != nil {
			return curve.Scalar{}, err
		}
		beta = beta.Add(padToScalar(pad))
	}
	return beta, nil
}

func bitAt(b [32]byte, i int) int {
	byteIdx := 31 - i/8
	bitIdx := uint(i % 8)
	return int((b[byteIdx] >> bitIdx) & 1)
}

func scalarToPad(s curve.Scalar) [32]byte {
	return s.Bytes()
}

func padToScalar(b [32]byte) curve.Scalar {
	s, _, _ := curve.ScalarFromBytes(b[:])
	return s
}
