package mta_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/curve"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/mta"
)

func TestGilboaMultiplicationSharesSumToProduct(t *testing.T) {
	a, err := curve.RandomScalar()
	require.NoError(t, err)
	b, err := curve.RandomScalar()
	require.NoError(t, err)

	st, cs, err := mta.SenderRound1(a)
	require.NoError(t, err)

	rst, pubs, err := mta.ReceiverRound1(b, cs)
	require.NoError(t, err)

	replies, alpha, err := mta.SenderRound2(st, pubs)
	require.NoError(t, err)

	beta, err := mta.ReceiverRound2(rst, replies)
	require.NoError(t, err)

	sum := alpha.Add(beta)
	want := a.Mul(b)
	require.True(t, sum.Equal(want))
}
