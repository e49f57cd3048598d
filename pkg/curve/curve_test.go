package curve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/curve"
)

func TestScalarAddSubRoundtrip(t *testing.T) {
	a, err := curve.RandomScalar()
	require.NoError(t, err)
	b, err := curve.RandomScalar()
	require.NoError(t, err)

	sum := a.Add(b)
	back := sum.Sub(b)
	assert.True(t, back.Equal(a))
}

func TestScalarInvert(t *testing.T) {
	a, err := curve.RandomScalar()
	require.NoError(t, err)
	inv, ok := a.Invert()
	require.True(t, ok)
	assert.True(t, a.Mul(inv).Equal(curve.NewScalarOne()))
}

func TestScalarZeroHasNoInverse(t *testing.T) {
	_, ok := curve.NewScalar().Invert()
	assert.False(t, ok)
}

func TestActOnBaseMatchesGeneratorMultiplication(t *testing.T) {
	s := curve.ScalarFromUint64(5)
	lhs := s.ActOnBase()
	rhs := curve.Generator().Add(curve.Generator()).Add(curve.Generator()).Add(curve.Generator()).Add(curve.Generator())
	assert.True(t, lhs.Equal(rhs))
}

func TestPointCompressedRoundtrip(t *testing.T) {
	s, err := curve.RandomScalar()
	require.NoError(t, err)
	p := s.ActOnBase()
	b, err := p.CompressedBytes()
	require.NoError(t, err)
	decoded, err := curve.DecompressPoint(b)
	require.NoError(t, err)
	assert.True(t, p.Equal(decoded))
}

func TestIdentityHasNoCompressedEncoding(t *testing.T) {
	_, err := curve.IdentityPoint().CompressedBytes()
	assert.Error(t, err)
}

func TestPartyScalarIsIDPlusOne(t *testing.T) {
	assert.True(t, curve.PartyScalar(0).Equal(curve.NewScalarOne()))
	assert.True(t, curve.PartyScalar(1).Equal(curve.ScalarFromUint64(2)))
}
