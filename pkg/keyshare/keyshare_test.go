package keyshare_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/keyshare"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
)

func sample() *keyshare.KeyShare {
	return &keyshare.KeyShare{
		SessionID:  "s1",
		Self:       2,
		Parties:    party.IDSlice{2, 0, 1},
		Threshold:  2,
		Generation: 1,
		PublicShares: map[party.ID][33]byte{
			0: {1},
			1: {2},
			2: {3},
		},
	}
}

func TestMarshalJSONUsesDocumentedWireSchema(t *testing.T) {
	ks := sample()
	data, err := json.Marshal(ks)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	require.Equal(t, float64(2), raw["party_id"])
	require.Equal(t, float64(3), raw["n_parties"])
	shares, ok := raw["public_shares"].([]any)
	require.True(t, ok)
	require.Len(t, shares, 3)
	require.NotContains(t, raw, "self")
}

func TestMarshalUnmarshalRoundTripsInternalRepresentation(t *testing.T) {
	ks := sample()
	data, err := json.Marshal(ks)
	require.NoError(t, err)

	var got keyshare.KeyShare
	require.NoError(t, json.Unmarshal(data, &got))

	require.Equal(t, ks.Self, got.Self)
	require.Equal(t, ks.Threshold, got.Threshold)
	require.Equal(t, ks.PublicShares, got.PublicShares)
	require.Equal(t, party.IDSlice{0, 1, 2}, got.Parties)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	ks := sample()
	path := filepath.Join(t.TempDir(), "keyshare.json")
	require.NoError(t, keyshare.Save(path, ks))

	got, err := keyshare.Load(path)
	require.NoError(t, err)
	require.Equal(t, ks.Self, got.Self)
	require.Equal(t, ks.PublicShares, got.PublicShares)
}
