package polynomial_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/curve"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/polynomial"
)

func partyIDs(n int) party.IDSlice {
	out := make(party.IDSlice, n)
	for i := range out {
		out[i] = party.ID(i)
	}
	return out
}

func TestLagrangeCoefficientsSumToOne(t *testing.T) {
	ids := partyIDs(5)
	coeffs := polynomial.Lagrange(ids)
	sum := curve.NewScalar()
	for _, c := range coeffs {
		sum = sum.Add(c)
	}
	assert.True(t, sum.Equal(curve.NewScalarOne()))
}

func TestLagrangeReconstructsSecret(t *testing.T) {
	secret, err := curve.RandomScalar()
	require.NoError(t, err)
	poly, err := polynomial.Sample(3, secret)
	require.NoError(t, err)

	ids := partyIDs(3)
	coeffs := polynomial.Lagrange(ids)
	reconstructed := curve.NewScalar()
	for _, id := range ids {
		share := poly.EvaluateAt(id)
		reconstructed = reconstructed.Add(coeffs[id].Mul(share))
	}
	assert.True(t, reconstructed.Equal(secret))
}

func TestVerifyShareAcceptsGenuineShare(t *testing.T) {
	secret, err := curve.RandomScalar()
	require.NoError(t, err)
	poly, err := polynomial.Sample(3, secret)
	require.NoError(t, err)
	commitments := poly.Commitments()

	share := poly.EvaluateAt(2)
	assert.True(t, polynomial.VerifyShare(share, commitments, curve.PartyScalar(2)))
}

func TestVerifyShareRejectsTamperedShare(t *testing.T) {
	secret, err := curve.RandomScalar()
	require.NoError(t, err)
	poly, err := polynomial.Sample(3, secret)
	require.NoError(t, err)
	commitments := poly.Commitments()

	share := poly.EvaluateAt(2).Add(curve.NewScalarOne())
	assert.False(t, polynomial.VerifyShare(share, commitments, curve.PartyScalar(2)))
}
