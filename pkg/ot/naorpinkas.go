// Package ot implements a DDH-based 1-out-of-2 oblivious transfer base
// protocol (Naor-Pinkas) directly over secp256k1, the building block
// pkg/mta uses for Gilboa multiplication. Running the base OT on the same
// curve already in scope avoids pulling in a second elliptic curve library
// for what the Rust original stubbed out entirely.
package ot

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/curve"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dklserr"
)

// SenderSetup is the sender's first-flight state: the public point C and
// its secret exponent r. The encrypted payloads travel separately in a
// SenderReply.
type SenderSetup struct {
	C curve.Point
	r curve.Scalar
}

// NewSenderSetup samples the sender's DDH tuple. C is a uniformly random
// point unrelated to the receiver's eventual choice, broadcast once per OT
// and reusable across many transfers in this session.
func NewSenderSetup() (SenderSetup, error) {
	r, err := curve.RandomScalar()
	if err != nil {
		return SenderSetup{}, err
	}
	return SenderSetup{C: r.ActOnBase(), r: r}, nil
}

// ReceiverChoice is the receiver's first-flight output for choice bit b.
type ReceiverChoice struct {
	PK0 curve.Point
	PK1 curve.Point
	b   int
	k   curve.Scalar
}

// Choose builds the receiver's key pair for choice bit b (0 or 1) against
// the sender's public C: PK_b = k*G, PK_(1-b) = C - PK_b, so the sender can
// encrypt to PK_0 and PK_1 without learning b.
func Choose(setup SenderSetup, b int) (ReceiverChoice, error) {
	if b != 0 && b != 1 {
		return ReceiverChoice{}, dklserr.New(dklserr.KindInvalidConfig, "ot.Choose", "choice bit must be 0 or 1")
	}
	k, err := curve.RandomScalar()
	if err != nil {
		return ReceiverChoice{}, err
	}
	pkB := k.ActOnBase()
	pkOther := setup.C.Add(pkB.Negate())
	rc := ReceiverChoice{b: b, k: k}
	if b == 0 {
		rc.PK0, rc.PK1 = pkB, pkOther
	} else {
		rc.PK1, rc.PK0 = pkB, pkOther
	}
	return rc, nil
}

// SenderReply holds the two ciphertexts the sender sends back, plus a MAC
// tag over each branch keyed by that branch's own pad. The receiver only
// ever derives the pad for its chosen branch, so it can check that branch's
// tag without learning anything about the branch it didn't choose.
type SenderReply struct {
	E0, E1 [32]byte
	Tag0   [32]byte
	Tag1   [32]byte
}

// Encrypt produces the sender's second flight, one-time-pad encrypting
// msg0 under a key derived from r*PK0 and msg1 under a key derived from
// r*PK1. Only the party who knows the discrete log of PK_b can derive the
// matching pad. It first checks the structural invariant PK0 + PK1 == C a
// well-formed choice must satisfy, aborting rather than transferring
// against a transcript a receiver could have only produced inconsistently.
func Encrypt(setup SenderSetup, choice ReceiverChoicePublic, msg0, msg1 [32]byte) (SenderReply, error) {
	if !choice.PK0.Add(choice.PK1).Equal(setup.C) {
		return SenderReply{}, dklserr.New(dklserr.KindVerificationFailed, "ot.Encrypt", "receiver choice is inconsistent with C")
	}
	pad0 := deriveKey(setup.r.Act(choice.PK0))
	pad1 := deriveKey(setup.r.Act(choice.PK1))
	var e0, e1 [32]byte
	for i := range msg0 {
		e0[i] = msg0[i] ^ pad0[i]
		e1[i] = msg1[i] ^ pad1[i]
	}
	return SenderReply{
		E0:   e0,
		E1:   e1,
		Tag0: macTag(pad0, e0[:]),
		Tag1: macTag(pad1, e1[:]),
	}, nil
}

// ReceiverChoicePublic is the subset of ReceiverChoice the sender needs
// (the two public keys, without the receiver's secret exponent).
type ReceiverChoicePublic struct {
	PK0 curve.Point
	PK1 curve.Point
}

// Public strips the secret exponent for transmission to the sender.
func (rc ReceiverChoice) Public() ReceiverChoicePublic {
	return ReceiverChoicePublic{PK0: rc.PK0, PK1: rc.PK1}
}

// Decrypt recovers the chosen message from the sender's reply: the
// receiver derives k_b*C (== r*PK_b since PK_b = k_b*G and C = r*G) and
// unpads the branch it asked for. Before returning it, Decrypt recomputes
// the branch's MAC tag from the same pad and checks it against the tag the
// sender sent, catching a sender that encrypted against a different (or
// tampered) transcript than the one this receiver committed to in Choose.
func Decrypt(setup SenderSetup, rc ReceiverChoice, reply SenderReply) ([32]byte, error) {
	pad := deriveKey(rc.k.Act(setup.C))
	var ciphertext, wantTag [32]byte
	if rc.b == 0 {
		ciphertext, wantTag = reply.E0, reply.Tag0
	} else {
		ciphertext, wantTag = reply.E1, reply.Tag1
	}
	gotTag := macTag(pad, ciphertext[:])
	if !hmac.Equal(gotTag[:], wantTag[:]) {
		return [32]byte{}, dklserr.New(dklserr.KindVerificationFailed, "ot.Decrypt", "consistency tag mismatch")
	}
	var out [32]byte
	for i := range out {
		out[i] = ciphertext[i] ^ pad[i]
	}
	return out, nil
}

func deriveKey(p curve.Point) [32]byte {
	b, err := p.CompressedBytes()
	if err != nil {
		// Negligible-probability event (receiver's derived point is the
		// identity); domain-separate so the all-zero pad is never used.
		return sha256.Sum256([]byte("ot-identity-pad"))
	}
	return sha256.Sum256(b[:])
}

// macTag computes a MAC over ciphertext keyed by pad, domain-separated from
// pad's use as the one-time-pad encryption key by prefixing a fixed label
// before hashing into the HMAC key.
func macTag(pad [32]byte, ciphertext []byte) [32]byte {
	macKey := sha256.Sum256(append([]byte("ot-consistency-tag"), pad[:]...))
	mac := hmac.New(sha256.New, macKey[:])
	mac.Write(ciphertext)
	var tag [32]byte
	copy(tag[:], mac.Sum(nil))
	return tag
}
