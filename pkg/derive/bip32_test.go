package derive_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/curve"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/derive"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dklserr"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/keyshare"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
)

func sampleShare(t *testing.T) *keyshare.KeyShare {
	t.Helper()
	secret, err := curve.RandomScalar()
	require.NoError(t, err)
	pub := secret.ActOnBase()
	pubBytes, err := pub.CompressedBytes()
	require.NoError(t, err)
	return &keyshare.KeyShare{
		SessionID:    "test",
		Self:         0,
		Parties:      party.IDSlice{0},
		Threshold:    1,
		SecretShare:  secret.Bytes(),
		PublicKey:    pubBytes,
		PublicShares: map[party.ID][33]byte{0: pubBytes},
	}
}

func TestChildDerivationMatchesSecretAndPublicKey(t *testing.T) {
	parent := sampleShare(t)
	child, err := derive.Child(parent, 0)
	require.NoError(t, err)

	secret, err := child.Secret()
	require.NoError(t, err)
	want := secret.ActOnBase()

	got, err := child.PublicPoint()
	require.NoError(t, err)
	require.True(t, want.Equal(got))
}

func TestChildDerivationRejectsHardenedIndex(t *testing.T) {
	parent := sampleShare(t)
	_, err := derive.Child(parent, 1<<31)
	require.Error(t, err)

	var derr *dklserr.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, dklserr.KindDerivation, derr.Kind)
}

func TestChildDerivationIsDeterministic(t *testing.T) {
	parent := sampleShare(t)
	a, err := derive.Child(parent, 7)
	require.NoError(t, err)
	b, err := derive.Child(parent, 7)
	require.NoError(t, err)
	require.Equal(t, a.SecretShare, b.SecretShare)
	require.Equal(t, a.ChainCode, b.ChainCode)
}
