package dsg_test

import (
	"context"
	"crypto/sha256"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dkg"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dsg"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/ecdsa"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/keyshare"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/relay"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/session"
)

func keygen(t *testing.T, n, threshold int) (map[party.ID]*keyshare.KeyShare, party.IDSlice) {
	t.Helper()
	hub := relay.NewMemoryHub()
	parties := make(party.IDSlice, n)
	for i := range parties {
		parties[i] = party.ID(i)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	results := make(map[party.ID]*keyshare.KeyShare, n)
	var mu sync.Mutex
	for _, id := range parties {
		id := id
		g.Go(func() error {
			cfg := session.Config{SessionID: "test-keygen", Self: id, Parties: parties, Threshold: threshold}
			ks, err := dkg.Run(gctx, cfg, hub.For(id), dkg.ModeKeygen, nil)
			if err != nil {
				return err
			}
			mu.Lock()
			results[id] = ks
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	return results, parties
}

func TestDSGProducesVerifiableSignature(t *testing.T) {
	shares, _ := keygen(t, 3, 2)
	signers := party.IDSlice{0, 1}

	hub := relay.NewMemoryHub()
	digest := sha256.Sum256([]byte("dkls23 test message"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	sigs := make(map[party.ID]ecdsa.Signature, len(signers))
	var mu sync.Mutex
	for _, id := range signers {
		id := id
		g.Go(func() error {
			cfg := session.Config{SessionID: "test-sign", Self: id, Parties: signers, Threshold: 2}
			sig, err := dsg.Sign(gctx, cfg, hub.For(id), shares[id], digest)
			if err != nil {
				return err
			}
			mu.Lock()
			sigs[id] = sig
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	pub, err := shares[0].PublicPoint()
	require.NoError(t, err)
	for _, sig := range sigs {
		require.True(t, dsg.Verify(pub, digest, sig))
	}
}
