package ecdsa_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/curve"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/ecdsa"
)

func TestNormalizeFlipsHighS(t *testing.T) {
	r := curve.ScalarFromUint64(1)
	high, err := curve.RandomScalar()
	require.NoError(t, err)
	for !high.IsHighS() {
		high = high.Add(curve.NewScalarOne())
	}
	sig := ecdsa.Signature{R: r, S: high, RecoveryID: 0}.Normalize()
	require.False(t, sig.S.IsHighS())
}

func TestDEREncodingStartsWithSequenceTag(t *testing.T) {
	sig := ecdsa.Signature{R: curve.ScalarFromUint64(1), S: curve.ScalarFromUint64(2)}
	der := sig.ToDER()
	require.Equal(t, byte(0x30), der[0])
	require.Equal(t, len(der)-2, int(der[1]))
}
