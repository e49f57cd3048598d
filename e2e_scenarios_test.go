package dkls23_test

import (
	"context"
	"crypto/sha256"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/sync/errgroup"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/derive"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dkg"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dklserr"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dsg"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/keyshare"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/relay"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/session"
)

func runKeygenOverHub(hub *relay.MemoryHub, parties party.IDSlice, threshold int, sessionID session.ID) (map[party.ID]*keyshare.KeyShare, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	results := make(map[party.ID]*keyshare.KeyShare, len(parties))
	var mu sync.Mutex
	for _, id := range parties {
		id := id
		g.Go(func() error {
			cfg := session.Config{SessionID: sessionID, Self: id, Parties: parties, Threshold: threshold}
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
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

var _ = Describe("threshold key generation and signing", func() {
	It("signs a message with a 2-of-3 quorum after key generation", func() {
		hub := relay.NewMemoryHub()
		parties := party.IDSlice{0, 1, 2}
		shares, err := runKeygenOverHub(hub, parties, 2, "scenario-2of3")
		Expect(err).NotTo(HaveOccurred())

		signers := party.IDSlice{0, 2}
		signHub := relay.NewMemoryHub()
		digest := sha256.Sum256([]byte("hello threshold"))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		g, gctx := errgroup.WithContext(ctx)
		var mu sync.Mutex
		valid := true
		for _, id := range signers {
			id := id
			g.Go(func() error {
				cfg := session.Config{SessionID: "scenario-2of3-sign", Self: id, Parties: signers, Threshold: 2}
				sig, err := dsg.Sign(gctx, cfg, signHub.For(id), shares[id], digest)
				if err != nil {
					return err
				}
				pub, err := shares[id].PublicPoint()
				if err != nil {
					return err
				}
				mu.Lock()
				valid = valid && dsg.Verify(pub, digest, sig)
				mu.Unlock()
				return nil
			})
		}
		Expect(g.Wait()).NotTo(HaveOccurred())
		Expect(valid).To(BeTrue())
	})

	It("signs with the full quorum of parties", func() {
		hub := relay.NewMemoryHub()
		parties := party.IDSlice{0, 1, 2}
		shares, err := runKeygenOverHub(hub, parties, 2, "scenario-full-quorum")
		Expect(err).NotTo(HaveOccurred())

		signHub := relay.NewMemoryHub()
		digest := sha256.Sum256([]byte("full quorum message"))
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		g, gctx := errgroup.WithContext(ctx)
		for _, id := range parties {
			id := id
			g.Go(func() error {
				cfg := session.Config{SessionID: "scenario-full-quorum-sign", Self: id, Parties: parties, Threshold: 2}
				_, err := dsg.Sign(gctx, cfg, signHub.For(id), shares[id], digest)
				return err
			})
		}
		Expect(g.Wait()).NotTo(HaveOccurred())
	})

	It("times out when a required party never shows up", func() {
		hub := relay.NewMemoryHub()
		parties := party.IDSlice{0, 1, 2}

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		cfg := session.Config{SessionID: "scenario-timeout", Self: 0, Parties: parties, Threshold: 2}
		_, err := dkg.Run(ctx, cfg, hub.For(0), dkg.ModeKeygen, nil)
		Expect(err).To(HaveOccurred())

		var derr *dklserr.Error
		Expect(err).To(BeAssignableToTypeOf(derr))
	})

	It("rejects a share that fails Feldman verification", func() {
		Skip("covered at the polynomial level by TestVerifyShareRejectsTamperedShare, and at the dkg combine level (including sender identification) by TestCombineIdentifiesTamperingSender")
	})

	It("derives a child key share and signs with it", func() {
		hub := relay.NewMemoryHub()
		parties := party.IDSlice{0, 1, 2}
		shares, err := runKeygenOverHub(hub, parties, 2, "scenario-derive")
		Expect(err).NotTo(HaveOccurred())

		indices, err := derive.ParsePath("m/0/1/42")
		Expect(err).NotTo(HaveOccurred())

		children := make(map[party.ID]*keyshare.KeyShare, len(shares))
		for id, ks := range shares {
			child, err := derive.Path(ks, indices)
			Expect(err).NotTo(HaveOccurred())
			children[id] = child
		}

		signers := party.IDSlice{0, 1}
		signHub := relay.NewMemoryHub()
		digest := sha256.Sum256([]byte("derived key message"))
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		g, gctx := errgroup.WithContext(ctx)
		for _, id := range signers {
			id := id
			g.Go(func() error {
				cfg := session.Config{SessionID: "scenario-derive-sign", Self: id, Parties: signers, Threshold: 2}
				sig, err := dsg.Sign(gctx, cfg, signHub.For(id), children[id], digest)
				if err != nil {
					return err
				}
				pub, err := children[id].PublicPoint()
				if err != nil {
					return err
				}
				if !dsg.Verify(pub, digest, sig) {
					return dklserr.New(dklserr.KindSignatureInvalid, "scenario", "derived key signature failed verification")
				}
				return nil
			})
		}
		Expect(g.Wait()).NotTo(HaveOccurred())
	})
})
