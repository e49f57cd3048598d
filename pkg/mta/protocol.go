package mta

import (
	"context"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/curve"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dklserr"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/ot"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/relay"
)

// Role identifies which side of a single pairwise MtA instance a party
// plays. For every ordered pair (i, j) of distinct signers, DSG runs the
// protocol twice with i as sender and j as receiver (for k_i*gamma_j and
// w_i*gamma_j), so each unordered pair runs it four times in all.
type Role int

const (
	// RoleSender holds the "a" input and learns additive share alpha.
	RoleSender Role = iota
	// RoleReceiver holds the "b" input and learns additive share beta.
	RoleReceiver
)

// wire point/setup encodings, kept minimal since OT setups never need to
// survive a restart: only the current session's pair exchange.

type wirePoint [33]byte

func encodePoint(p curve.Point) (wirePoint, error) {
	b, err := p.CompressedBytes()
	return wirePoint(b), err
}

func decodePoint(w wirePoint) (curve.Point, error) {
	return curve.DecompressPoint([33]byte(w))
}

type setupMsg struct {
	Cs [bitLength]wirePoint
}

type choiceMsg struct {
	PK0s [bitLength]wirePoint
	PK1s [bitLength]wirePoint
}

type replyMsg struct {
	E0s   [bitLength][32]byte
	E1s   [bitLength][32]byte
	Tag0s [bitLength][32]byte
	Tag1s [bitLength][32]byte
}

// Run drives one pairwise MtA instance with peer over r, tagged so it does
// not collide with other MtA instances running concurrently in the same
// round. It returns this party's additive share of the product; the
// caller is responsible for knowing whether it played sender or receiver
// and which scalar it contributed.
func Run(ctx context.Context, r relay.Relay, self, peer party.ID, round int, tag string, role Role, value curve.Scalar) (curve.Scalar, error) {
	switch role {
	case RoleSender:
		return runSender(ctx, r, peer, round, tag, value)
	case RoleReceiver:
		return runReceiver(ctx, r, peer, round, tag, value)
	default:
		return curve.Scalar{}, dklserr.New(dklserr.KindInvalidConfig, "mta.Run", "unknown role")
	}
}

func runSender(ctx context.Context, r relay.Relay, peer party.ID, round int, tag string, a curve.Scalar) (curve.Scalar, error) {
	st, cs, err := SenderRound1(a)
	if err != nil {
		return curve.Scalar{}, err
	}
	var setup setupMsg
	for i, c := range cs {
		w, err := encodePoint(c)
		if err != nil {
			return curve.Scalar{}, err
		}
		setup.Cs[i] = w
	}
	buf, err := cbor.Marshal(setup)
	if err != nil {
		return curve.Scalar{}, dklserr.Wrap(dklserr.KindSerialization, "mta.sender", tag, err)
	}
	if err := r.SendDirect(ctx, round, peer, tag+"-setup", buf); err != nil {
		return curve.Scalar{}, err
	}

	choiceBytes, err := r.CollectDirect(ctx, round+1, tag+"-choice", party.IDSlice{peer})
	if err != nil {
		return curve.Scalar{}, err
	}
	var choice choiceMsg
	if err := cbor.Unmarshal(choiceBytes[peer], &choice); err != nil {
		return curve.Scalar{}, dklserr.Wrap(dklserr.KindSerialization, "mta.sender", tag, err)
	}
	pubs := make([]ot.ReceiverChoicePublic, bitLength)
	for i := range pubs {
		pk0, err := decodePoint(choice.PK0s[i])
		if err != nil {
			return curve.Scalar{}, dklserr.Wrap(dklserr.KindSerialization, "mta.sender", tag, err)
		}
		pk1, err := decodePoint(choice.PK1s[i])
		if err != nil {
			return curve.Scalar{}, dklserr.Wrap(dklserr.KindSerialization, "mta.sender", tag, err)
		}
		pubs[i] = ot.ReceiverChoicePublic{PK0: pk0, PK1: pk1}
	}

	replies, alpha, err := SenderRound2(st, pubs)
	if err != nil {
		return curve.Scalar{}, wrapMtAVerification(err, peer)
	}
	var reply replyMsg
	for i, rep := range replies {
		reply.E0s[i] = rep.E0
		reply.E1s[i] = rep.E1
		reply.Tag0s[i] = rep.Tag0
		reply.Tag1s[i] = rep.Tag1
	}
	replyBuf, err := cbor.Marshal(reply)
	if err != nil {
		return curve.Scalar{}, dklserr.Wrap(dklserr.KindSerialization, "mta.sender", tag, err)
	}
	if err := r.SendDirect(ctx, round+2, peer, tag+"-reply", replyBuf); err != nil {
		return curve.Scalar{}, err
	}
	return alpha, nil
}

func runReceiver(ctx context.Context, r relay.Relay, peer party.ID, round int, tag string, b curve.Scalar) (curve.Scalar, error) {
	setupBytes, err := r.CollectDirect(ctx, round, tag+"-setup", party.IDSlice{peer})
	if err != nil {
		return curve.Scalar{}, err
	}
	var setup setupMsg
	if err := cbor.Unmarshal(setupBytes[peer], &setup); err != nil {
		return curve.Scalar{}, dklserr.Wrap(dklserr.KindSerialization, "mta.receiver", tag, err)
	}
	cs := make([]curve.Point, bitLength)
	for i, w := range setup.Cs {
		p, err := decodePoint(w)
		if err != nil {
			return curve.Scalar{}, dklserr.Wrap(dklserr.KindSerialization, "mta.receiver", tag, err)
		}
		cs[i] = p
	}

	st, pubs, err := ReceiverRound1(b, cs)
	if err != nil {
		return curve.Scalar{}, err
	}
	var choice choiceMsg
	for i, pub := range pubs {
		w0, err := encodePoint(pub.PK0)
		if err != nil {
			return curve.Scalar{}, err
		}
		w1, err := encodePoint(pub.PK1)
		if err != nil {
			return curve.Scalar{}, err
		}
		choice.PK0s[i] = w0
		choice.PK1s[i] = w1
	}
	choiceBuf, err := cbor.Marshal(choice)
	if err != nil {
		return curve.Scalar{}, dklserr.Wrap(dklserr.KindSerialization, "mta.receiver", tag, err)
	}
	if err := r.SendDirect(ctx, round+1, peer, tag+"-choice", choiceBuf); err != nil {
		return curve.Scalar{}, err
	}

	replyBytes, err := r.CollectDirect(ctx, round+2, tag+"-reply", party.IDSlice{peer})
	if err != nil {
		return curve.Scalar{}, err
	}
	var reply replyMsg
	if err := cbor.Unmarshal(replyBytes[peer], &reply); err != nil {
		return curve.Scalar{}, dklserr.Wrap(dklserr.KindSerialization, "mta.receiver", tag, err)
	}
	replies := make([]ot.SenderReply, bitLength)
	for i := range replies {
		replies[i] = ot.SenderReply{E0: reply.E0s[i], E1: reply.E1s[i], Tag0: reply.Tag0s[i], Tag1: reply.Tag1s[i]}
	}
	beta, err := ReceiverRound2(st, replies)
	if err != nil {
		return curve.Scalar{}, wrapMtAVerification(err, peer)
	}
	return beta, nil
}

// wrapMtAVerification tags a VerificationFailed error arising from an
// inconsistent OT transcript with the peer it came from; every other kind
// of failure is returned unchanged.
func wrapMtAVerification(err error, peer party.ID) error {
	var derr *dklserr.Error
	if errors.As(err, &derr) && derr.Kind == dklserr.KindVerificationFailed {
		return dklserr.Wrap(dklserr.KindVerificationFailed, derr.Op, fmt.Sprintf("peer %d: %s", peer, derr.Context), derr.Err)
	}
	return err
}
