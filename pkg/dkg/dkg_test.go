package dkg_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/curve"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dkg"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/keyshare"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/relay"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/session"
)

func runDKGNetwork(t *testing.T, n, threshold int) map[party.ID]*keyshare.KeyShare {
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
			cfg := session.Config{SessionID: "test-dkg", Self: id, Parties: parties, Threshold: threshold}
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
	return results
}

func TestDKGAllPartiesAgreeOnPublicKey(t *testing.T) {
	results := runDKGNetwork(t, 3, 2)
	require.Len(t, results, 3)

	var want [33]byte
	for i, ks := range results {
		if i == 0 {
			want = ks.PublicKey
		}
		require.Equal(t, want, ks.PublicKey)
	}
}

func TestDKGSharesReconstructPublicKey(t *testing.T) {
	results := runDKGNetwork(t, 3, 2)

	ids := party.IDSlice{0, 1}
	lambdas := make(map[party.ID]curve.Scalar)
	for _, id := range ids {
		lambdas[id] = lagrangeAt(ids, id)
	}

	acc := curve.NewScalar()
	for _, id := range ids {
		secret, err := results[id].Secret()
		require.NoError(t, err)
		acc = acc.Add(lambdas[id].Mul(secret))
	}

	want, err := results[0].PublicPoint()
	require.NoError(t, err)
	require.True(t, acc.ActOnBase().Equal(want))
}

func lagrangeAt(ids party.IDSlice, self party.ID) curve.Scalar {
	xi := curve.PartyScalar(self)
	num := curve.NewScalarOne()
	den := curve.NewScalarOne()
	for _, j := range ids {
		if j == self {
			continue
		}
		xj := curve.PartyScalar(j)
		num = num.Mul(xj.Negate())
		den = den.Mul(xi.Sub(xj))
	}
	inv, _ := den.Invert()
	return num.Mul(inv)
}
