package dkg

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/curve"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dklserr"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/polynomial"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/session"
)

func TestCombineIdentifiesTamperingSender(t *testing.T) {
	cfg := session.Config{SessionID: "test-combine", Self: 0, Parties: party.IDSlice{0, 1}, Threshold: 2}

	polys := make(map[party.ID]*polynomial.Polynomial, len(cfg.Parties))
	for _, id := range cfg.Parties {
		constant, err := curve.RandomScalar()
		require.NoError(t, err)
		p, err := polynomial.Sample(cfg.Threshold, constant)
		require.NoError(t, err)
		polys[id] = p
	}

	commits := make(map[party.ID][]curve.Point, len(cfg.Parties))
	for id, p := range polys {
		commits[id] = p.Commitments()
	}

	shares := make(map[party.ID]curve.Scalar, len(cfg.Parties))
	for _, id := range cfg.Parties {
		shares[id] = polys[id].EvaluateAt(cfg.Self)
	}
	// Tamper with party 1's share so it no longer matches its commitments.
	shares[1] = shares[1].Add(curve.NewScalarOne())

	_, _, _, err := combine(cfg, commits, shares)
	require.Error(t, err)

	var derr *dklserr.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, dklserr.KindVerificationFailed, derr.Kind)
	require.Contains(t, derr.Context, fmt.Sprintf("sender %d", party.ID(1)))
}
