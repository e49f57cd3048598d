package dsg

import (
	"context"
	"errors"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sync/errgroup"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/curve"
	dklsecdsa "github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/ecdsa"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dklserr"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/keyshare"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/mta"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/polynomial"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/relay"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/session"
)

// PreSignature is the output of Presign: everything needed to sign one
// message except the message itself. It is single-use — Finish consumes
// it — since reusing a nonce across two messages breaks ECDSA's security
// entirely.
type PreSignature struct {
	self        party.ID
	signers     party.IDSlice
	r           curve.Scalar
	kInvShare   curve.Scalar
	chiShare    curve.Scalar
	recoveryID  byte
	publicPoint curve.Point
	consumed    bool
}

// Presign runs the nonce and MtA rounds of DSG for the signer subset in
// cfg.Parties (cfg.Self must be one of them), returning a PreSignature
// that Finish later turns into a signature over a specific message.
func Presign(ctx context.Context, cfg session.Config, r relay.Relay, ks *keyshare.KeyShare) (*PreSignature, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	secretShare, err := ks.Secret()
	if err != nil {
		return nil, err
	}
	publicPoint, err := ks.PublicPoint()
	if err != nil {
		return nil, err
	}

	k, err := curve.RandomScalar()
	if err != nil {
		return nil, err
	}
	gamma, err := curve.RandomScalar()
	if err != nil {
		return nil, err
	}
	lambdas := polynomial.Lagrange(cfg.Parties)
	w := lambdas[cfg.Self].Mul(secretShare)

	kPoint := k.ActOnBase()
	gammaPoint := gamma.ActOnBase()
	if err := broadcastNonce(ctx, r, kPoint, gammaPoint); err != nil {
		return nil, err
	}
	peerK, peerGamma, err := collectNonce(ctx, r, cfg.OtherParties())
	if err != nil {
		return nil, err
	}
	peerK[cfg.Self] = kPoint
	peerGamma[cfg.Self] = gammaPoint

	deltaShare, psiShare, err := runMtAPhase(ctx, r, cfg, k, gamma, w)
	if err != nil {
		return nil, err
	}

	if err := broadcastDelta(ctx, r, deltaShare); err != nil {
		return nil, err
	}
	peerDeltas, err := collectDelta(ctx, r, cfg.OtherParties())
	if err != nil {
		return nil, err
	}
	delta := deltaShare
	for _, d := range peerDeltas {
		delta = delta.Add(d)
	}
	if delta.IsZero() {
		return nil, dklserr.New(dklserr.KindRetry, "dsg.Presign", "delta is zero, retry with fresh nonces")
	}
	deltaInv, ok := delta.Invert()
	if !ok {
		return nil, dklserr.New(dklserr.KindRetry, "dsg.Presign", "delta not invertible, retry with fresh nonces")
	}

	rPoint := curve.IdentityPoint()
	for _, p := range peerK {
		rPoint = rPoint.Add(p)
	}
	rScalar, overflow, err := rPoint.XCoordScalar()
	if err != nil {
		return nil, dklserr.Wrap(dklserr.KindRetry, "dsg.Presign", "R is identity, retry with fresh nonces", err)
	}
	if rScalar.IsZero() {
		return nil, dklserr.New(dklserr.KindRetry, "dsg.Presign", "r is zero, retry with fresh nonces")
	}

	recID := byte(0)
	if rPoint.IsYOdd() {
		recID |= 1
	}
	if overflow {
		recID |= 2
	}

	return &PreSignature{
		self:        cfg.Self,
		signers:     cfg.Parties,
		r:           rScalar,
		kInvShare:   gamma.Mul(deltaInv),
		chiShare:    psiShare.Mul(deltaInv),
		recoveryID:  recID,
		publicPoint: publicPoint,
	}, nil
}

// Finish consumes the pre-signature to produce a signature over digest (a
// 32-byte hash, already reduced mod n inside). Calling Finish twice on the
// same PreSignature returns an error instead of silently reusing a nonce.
func (ps *PreSignature) Finish(ctx context.Context, r relay.Relay, digest [32]byte) (dklsecdsa.Signature, error) {
	if ps.consumed {
		return dklsecdsa.Signature{}, dklserr.New(dklserr.KindAborted, "dsg.Finish", "pre-signature already consumed")
	}
	ps.consumed = true

	m, _, err := curve.ScalarFromBytes(digest[:])
	if err != nil {
		return dklsecdsa.Signature{}, err
	}

	sigShare := ps.kInvShare.Mul(m).Add(ps.r.Mul(ps.chiShare))
	if err := broadcastSigShare(ctx, r, sigShare); err != nil {
		return dklsecdsa.Signature{}, err
	}
	peerShares, err := collectSigShare(ctx, r, ps.otherSigners())
	if err != nil {
		return dklsecdsa.Signature{}, err
	}
	s := sigShare
	for _, share := range peerShares {
		s = s.Add(share)
	}
	if s.IsZero() {
		return dklsecdsa.Signature{}, dklserr.New(dklserr.KindRetry, "dsg.Finish", "s is zero, retry with fresh presignature")
	}

	sig := dklsecdsa.Signature{R: ps.r, S: s, RecoveryID: ps.recoveryID}.Normalize()
	if !Verify(ps.publicPoint, digest, sig) {
		return dklsecdsa.Signature{}, dklserr.New(dklserr.KindSignatureInvalid, "dsg.Finish", "combined signature failed verification")
	}
	return sig, nil
}

func (ps *PreSignature) otherSigners() party.IDSlice {
	return ps.signers.Remove(ps.self)
}

// Sign runs Presign followed by Finish, making up to three attempts in all
// on a degenerate (r == 0 or s == 0) nonce choice, as ECDSA requires, and
// failing with KindSignatureInvalid once they are used up. Any other
// failure — a failed verification, a timed-out round, a malformed message —
// is fatal and is returned immediately rather than masked by a retry.
func Sign(ctx context.Context, cfg session.Config, r relay.Relay, ks *keyshare.KeyShare, digest [32]byte) (dklsecdsa.Signature, error) {
	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		ps, err := Presign(ctx, cfg, r, ks)
		if err != nil {
			if errors.Is(err, dklserr.Retry) {
				lastErr = err
				continue
			}
			return dklsecdsa.Signature{}, err
		}
		sig, err := ps.Finish(ctx, r, digest)
		if err != nil {
			if errors.Is(err, dklserr.Retry) {
				lastErr = err
				continue
			}
			return dklsecdsa.Signature{}, err
		}
		return sig, nil
	}
	return dklsecdsa.Signature{}, dklserr.Wrap(dklserr.KindSignatureInvalid, "dsg.Sign", "exhausted retries", lastErr)
}

// runMtAPhase fans out the four MtA instances (two for k*gamma, two for
// w*gamma) against every other signer concurrently.
func runMtAPhase(ctx context.Context, r relay.Relay, cfg session.Config, k, gamma, w curve.Scalar) (curve.Scalar, curve.Scalar, error) {
	deltaShare := k.Mul(gamma)
	psiShare := w.Mul(gamma)

	type partial struct {
		delta curve.Scalar
		psi   curve.Scalar
	}
	results := make([]partial, len(cfg.OtherParties()))
	peers := cfg.OtherParties()

	g, gctx := errgroup.WithContext(ctx)
	for idx, peer := range peers {
		idx, peer := idx, peer
		g.Go(func() error {
			d, p, err := runPairMtA(gctx, r, cfg.Self, peer, k, gamma, w)
			if err != nil {
				return err
			}
			results[idx] = partial{delta: d, psi: p}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return curve.Scalar{}, curve.Scalar{}, err
	}
	for _, res := range results {
		deltaShare = deltaShare.Add(res.delta)
		psiShare = psiShare.Add(res.psi)
	}
	return deltaShare, psiShare, nil
}

// runPairMtA runs the four MtA instances for the unordered pair
// {self, peer} and returns self's contribution to delta (k*gamma share)
// and psi (w*gamma share) arising from this pair.
func runPairMtA(ctx context.Context, r relay.Relay, self, peer party.ID, k, gamma, w curve.Scalar) (curve.Scalar, curve.Scalar, error) {
	g, gctx := errgroup.WithContext(ctx)

	var alphaKG, betaKG, alphaWG, betaWG curve.Scalar

	g.Go(func() (err error) {
		alphaKG, err = mta.Run(gctx, r, self, peer, mtaRoundBase, mtaTag("kg", uint32(self), uint32(peer)), mta.RoleSender, k)
		return err
	})
	g.Go(func() (err error) {
		betaKG, err = mta.Run(gctx, r, self, peer, mtaRoundBase, mtaTag("kg", uint32(peer), uint32(self)), mta.RoleReceiver, gamma)
		return err
	})
	g.Go(func() (err error) {
		alphaWG, err = mta.Run(gctx, r, self, peer, mtaRoundBase, mtaTag("wg", uint32(self), uint32(peer)), mta.RoleSender, w)
		return err
	})
	g.Go(func() (err error) {
		betaWG, err = mta.Run(gctx, r, self, peer, mtaRoundBase, mtaTag("wg", uint32(peer), uint32(self)), mta.RoleReceiver, gamma)
		return err
	})
	if err := g.Wait(); err != nil {
		return curve.Scalar{}, curve.Scalar{}, err
	}

	delta := alphaKG.Add(betaKG)
	psi := alphaWG.Add(betaWG)
	return delta, psi, nil
}

func broadcastNonce(ctx context.Context, r relay.Relay, k, gamma curve.Point) error {
	kb, err := k.CompressedBytes()
	if err != nil {
		return dklserr.Wrap(dklserr.KindSerialization, "dsg.nonce", "", err)
	}
	gb, err := gamma.CompressedBytes()
	if err != nil {
		return dklserr.Wrap(dklserr.KindSerialization, "dsg.nonce", "", err)
	}
	buf, err := cbor.Marshal(nonceMsg{K: kb, Gamma: gb})
	if err != nil {
		return dklserr.Wrap(dklserr.KindSerialization, "dsg.nonce", "", err)
	}
	return r.Broadcast(ctx, nonceRound, tagNonce, buf)
}

func collectNonce(ctx context.Context, r relay.Relay, from party.IDSlice) (map[party.ID]curve.Point, map[party.ID]curve.Point, error) {
	raw, err := r.CollectBroadcasts(ctx, nonceRound, tagNonce, from)
	if err != nil {
		return nil, nil, err
	}
	ks := make(map[party.ID]curve.Point, len(raw))
	gammas := make(map[party.ID]curve.Point, len(raw))
	for id, buf := range raw {
		var msg nonceMsg
		if err := cbor.Unmarshal(buf, &msg); err != nil {
			return nil, nil, dklserr.Wrap(dklserr.KindSerialization, "dsg.nonce", "", err)
		}
		kp, err := curve.DecompressPoint(msg.K)
		if err != nil {
			return nil, nil, dklserr.Wrap(dklserr.KindSerialization, "dsg.nonce", "", err)
		}
		gp, err := curve.DecompressPoint(msg.Gamma)
		if err != nil {
			return nil, nil, dklserr.Wrap(dklserr.KindSerialization, "dsg.nonce", "", err)
		}
		ks[id] = kp
		gammas[id] = gp
	}
	return ks, gammas, nil
}

func broadcastDelta(ctx context.Context, r relay.Relay, delta curve.Scalar) error {
	buf, err := cbor.Marshal(deltaMsg{Delta: delta.Bytes()})
	if err != nil {
		return dklserr.Wrap(dklserr.KindSerialization, "dsg.delta", "", err)
	}
	return r.Broadcast(ctx, deltaRound, tagDelta, buf)
}

func collectDelta(ctx context.Context, r relay.Relay, from party.IDSlice) (map[party.ID]curve.Scalar, error) {
	raw, err := r.CollectBroadcasts(ctx, deltaRound, tagDelta, from)
	if err != nil {
		return nil, err
	}
	out := make(map[party.ID]curve.Scalar, len(raw))
	for id, buf := range raw {
		var msg deltaMsg
		if err := cbor.Unmarshal(buf, &msg); err != nil {
			return nil, dklserr.Wrap(dklserr.KindSerialization, "dsg.delta", "", err)
		}
		s, _, err := curve.ScalarFromBytes(msg.Delta[:])
		if err != nil {
			return nil, dklserr.Wrap(dklserr.KindSerialization, "dsg.delta", "", err)
		}
		out[id] = s
	}
	return out, nil
}

func broadcastSigShare(ctx context.Context, r relay.Relay, s curve.Scalar) error {
	buf, err := cbor.Marshal(sigShareMsg{S: s.Bytes()})
	if err != nil {
		return dklserr.Wrap(dklserr.KindSerialization, "dsg.sig", "", err)
	}
	return r.Broadcast(ctx, sigRound, tagSig, buf)
}

func collectSigShare(ctx context.Context, r relay.Relay, from party.IDSlice) (map[party.ID]curve.Scalar, error) {
	raw, err := r.CollectBroadcasts(ctx, sigRound, tagSig, from)
	if err != nil {
		return nil, err
	}
	out := make(map[party.ID]curve.Scalar, len(raw))
	for id, buf := range raw {
		var msg sigShareMsg
		if err := cbor.Unmarshal(buf, &msg); err != nil {
			return nil, dklserr.Wrap(dklserr.KindSerialization, "dsg.sig", "", err)
		}
		s, _, err := curve.ScalarFromBytes(msg.S[:])
		if err != nil {
			return nil, dklserr.Wrap(dklserr.KindSerialization, "dsg.sig", "", err)
		}
		out[id] = s
	}
	return out, nil
}
