package dkg

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/curve"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dklserr"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/keyshare"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/polynomial"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/relay"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/session"
)

// Mode selects whether Run performs a fresh key generation (a random
// constant term) or a key refresh (a zero constant term added to an
// existing share).
type Mode int

const (
	// ModeKeygen samples a fresh random secret.
	ModeKeygen Mode = iota
	// ModeRefresh samples a zero-constant-term polynomial; the combined
	// shares form a sharing of zero that offsets every party's existing
	// secret share while leaving the joint secret and public key unchanged.
	ModeRefresh
)

// Run executes DKG (or Key Refresh, depending on mode) for cfg over r and
// returns this party's resulting key share. For ModeRefresh, existing must
// be the party's current share; for ModeKeygen it is ignored and may be
// nil.
func Run(ctx context.Context, cfg session.Config, r relay.Relay, mode Mode, existing *keyshare.KeyShare) (*keyshare.KeyShare, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	constant := curve.NewScalar()
	if mode == ModeKeygen {
		c, err := curve.RandomScalar()
		if err != nil {
			return nil, err
		}
		constant = c
	}

	poly, err := polynomial.Sample(cfg.Threshold, constant)
	if err != nil {
		return nil, err
	}
	commitments := poly.Commitments()

	var chainCode [32]byte
	if _, err := readRandom(chainCode[:]); err != nil {
		return nil, err
	}

	if err := round1Broadcast(ctx, r, commitments, chainCode); err != nil {
		return nil, err
	}
	peerCommits, peerChainCodes, err := round1Collect(ctx, r, cfg.OtherParties())
	if err != nil {
		return nil, err
	}
	peerCommits[cfg.Self] = commitments
	peerChainCodes[cfg.Self] = chainCode

	if err := round2Send(ctx, r, cfg, poly); err != nil {
		return nil, err
	}
	shares, err := round2Collect(ctx, r, cfg)
	if err != nil {
		return nil, err
	}
	shares[cfg.Self] = poly.EvaluateAt(cfg.Self)

	secretShare, publicKey, publicShares, err := combine(cfg, peerCommits, shares)
	if err != nil {
		return nil, err
	}

	finalChainCode := combineChainCodes(cfg.Parties, peerChainCodes)

	var generation uint64
	if mode == ModeRefresh && existing != nil {
		generation = existing.Generation + 1
		if !publicKey.Equal(curve.IdentityPoint()) {
			return nil, dklserr.New(dklserr.KindVerificationFailed, "dkg.Run", "refresh polynomials did not sum to zero")
		}
		base, err := existing.Secret()
		if err != nil {
			return nil, err
		}
		secretShare = base.Add(secretShare)
		finalChainCode = existing.ChainCode
		basePub, err := existing.PublicPoint()
		if err != nil {
			return nil, err
		}
		publicKey = basePub
		for id, share := range publicShares {
			if existingShare, ok := existing.PublicShares[id]; ok {
				p, err := curve.DecompressPoint(existingShare)
				if err != nil {
					return nil, dklserr.Wrap(dklserr.KindKeyShare, "dkg.Run", "", err)
				}
				combinedPoint := p.Add(mustDecompress(share))
				cb, err := combinedPoint.CompressedBytes()
				if err != nil {
					return nil, err
				}
				publicShares[id] = cb
			}
		}
	}

	secretBytes := secretShare.Bytes()
	pubKeyBytes, err := publicKey.CompressedBytes()
	if err != nil {
		return nil, dklserr.Wrap(dklserr.KindKeyShare, "dkg.Run", "public key is identity", err)
	}

	ks := &keyshare.KeyShare{
		SessionID:    string(cfg.SessionID),
		Self:         cfg.Self,
		Parties:      cfg.Parties.Sorted(),
		Threshold:    cfg.Threshold,
		Generation:   generation,
		SecretShare:  secretBytes,
		PublicKey:    pubKeyBytes,
		PublicShares: publicShares,
		ChainCode:    finalChainCode,
	}
	return ks, nil
}

func readRandom(b []byte) (int, error) {
	return io.ReadFull(rand.Reader, b)
}

func mustDecompress(b [33]byte) curve.Point {
	p, err := curve.DecompressPoint(b)
	if err != nil {
		return curve.IdentityPoint()
	}
	return p
}

func round1Broadcast(ctx context.Context, r relay.Relay, commitments []curve.Point, chainCode [32]byte) error {
	msg := commitMsg{ChainCode: chainCode}
	msg.Commitments = make([][33]byte, len(commitments))
	for i, c := range commitments {
		b, err := c.CompressedBytes()
		if err != nil {
			return dklserr.Wrap(dklserr.KindSerialization, "dkg.round1", "", err)
		}
		msg.Commitments[i] = b
	}
	buf, err := cbor.Marshal(msg)
	if err != nil {
		return dklserr.Wrap(dklserr.KindSerialization, "dkg.round1", "", err)
	}
	return r.Broadcast(ctx, 1, tagCommit, buf)
}

func round1Collect(ctx context.Context, r relay.Relay, from party.IDSlice) (map[party.ID][]curve.Point, map[party.ID][32]byte, error) {
	raw, err := r.CollectBroadcasts(ctx, 1, tagCommit, from)
	if err != nil {
		return nil, nil, err
	}
	commits := make(map[party.ID][]curve.Point, len(raw)+1)
	chainCodes := make(map[party.ID][32]byte, len(raw)+1)
	for id, buf := range raw {
		var msg commitMsg
		if err := cbor.Unmarshal(buf, &msg); err != nil {
			return nil, nil, dklserr.Wrap(dklserr.KindSerialization, "dkg.round1", "", err)
		}
		pts := make([]curve.Point, len(msg.Commitments))
		for i, b := range msg.Commitments {
			p, err := curve.DecompressPoint(b)
			if err != nil {
				return nil, nil, dklserr.Wrap(dklserr.KindSerialization, "dkg.round1", "", err)
			}
			pts[i] = p
		}
		commits[id] = pts
		chainCodes[id] = msg.ChainCode
	}
	return commits, chainCodes, nil
}

func round2Send(ctx context.Context, r relay.Relay, cfg session.Config, poly *polynomial.Polynomial) error {
	for _, to := range cfg.OtherParties() {
		share := poly.EvaluateAt(to)
		buf, err := cbor.Marshal(shareMsg{Share: share.Bytes()})
		if err != nil {
			return dklserr.Wrap(dklserr.KindSerialization, "dkg.round2", "", err)
		}
		if err := r.SendDirect(ctx, 2, to, tagShare, buf); err != nil {
			return err
		}
	}
	return nil
}

func round2Collect(ctx context.Context, r relay.Relay, cfg session.Config) (map[party.ID]curve.Scalar, error) {
	raw, err := r.CollectDirect(ctx, 2, tagShare, cfg.OtherParties())
	if err != nil {
		return nil, err
	}
	out := make(map[party.ID]curve.Scalar, len(raw)+1)
	for id, buf := range raw {
		var msg shareMsg
		if err := cbor.Unmarshal(buf, &msg); err != nil {
			return nil, dklserr.Wrap(dklserr.KindSerialization, "dkg.round2", "", err)
		}
		s, _, err := curve.ScalarFromBytes(msg.Share[:])
		if err != nil {
			return nil, dklserr.Wrap(dklserr.KindSerialization, "dkg.round2", "", err)
		}
		out[id] = s
	}
	return out, nil
}

// combine verifies every received share against its sender's commitments,
// sums verified shares into this party's final secret share, derives the
// joint public key from every party's constant-term commitment, and
// derives every party's public share via Horner evaluation of the summed
// commitment set.
func combine(cfg session.Config, peerCommits map[party.ID][]curve.Point, shares map[party.ID]curve.Scalar) (curve.Scalar, curve.Point, map[party.ID][33]byte, error) {
	selfScalar := curve.PartyScalar(cfg.Self)
	secretShare := curve.NewScalar()
	publicKey := curve.IdentityPoint()

	for _, sender := range cfg.Parties {
		commits, ok := peerCommits[sender]
		if !ok {
			return curve.Scalar{}, curve.Point{}, nil, dklserr.New(dklserr.KindVerificationFailed, "dkg.combine", fmt.Sprintf("sender %d: missing commitments", sender))
		}
		share, ok := shares[sender]
		if !ok {
			return curve.Scalar{}, curve.Point{}, nil, dklserr.New(dklserr.KindVerificationFailed, "dkg.combine", fmt.Sprintf("sender %d: missing share", sender))
		}
		if !polynomial.VerifyShare(share, commits, selfScalar) {
			return curve.Scalar{}, curve.Point{}, nil, dklserr.New(dklserr.KindVerificationFailed, "dkg.combine", fmt.Sprintf("sender %d: share failed VSS check", sender))
		}
		secretShare = secretShare.Add(share)
		publicKey = publicKey.Add(commits[0])
	}

	publicShares := make(map[party.ID][33]byte, len(cfg.Parties))
	for _, target := range cfg.Parties {
		targetScalar := curve.PartyScalar(target)
		acc := curve.IdentityPoint()
		for _, sender := range cfg.Parties {
			acc = acc.Add(polynomial.EvaluateCommitments(peerCommits[sender], targetScalar))
		}
		b, err := acc.CompressedBytes()
		if err != nil {
			return curve.Scalar{}, curve.Point{}, nil, dklserr.Wrap(dklserr.KindKeyShare, "dkg.combine", "", err)
		}
		publicShares[target] = b
	}

	return secretShare, publicKey, publicShares, nil
}

func combineChainCodes(parties party.IDSlice, chainCodes map[party.ID][32]byte) [32]byte {
	sorted := sortedParties(parties)
	h := blake3.New()
	for _, id := range sorted {
		cc := chainCodes[id]
		h.Write(cc[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
