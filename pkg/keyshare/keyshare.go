// Package keyshare defines the persisted output of DKG, Refresh, and
// Derive: a single party's secret share plus the public data needed to
// verify and combine signatures.
package keyshare

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/curve"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dklserr"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
)

// KeyShare is one party's persisted slice of a threshold key, serialised
// as JSON on disk. It intentionally carries no generation-independent
// cache: PublicShares is recomputed on Refresh so a stale file can never
// silently mix shares from two generations.
type KeyShare struct {
	SessionID    string
	Self         party.ID
	Parties      party.IDSlice
	Threshold    int
	Generation   uint64
	SecretShare  [32]byte
	PublicKey    [33]byte
	PublicShares map[party.ID][33]byte
	ChainCode    [32]byte
}

// keyShareWire is the on-disk schema: party_id and n_parties instead of the
// Go-internal self/derived-count, and public_shares as an array ordered by
// sorted party id instead of a map, matching the documented key-share file
// interop contract other tooling reads.
type keyShareWire struct {
	PartyID      party.ID      `json:"party_id"`
	NParties     int           `json:"n_parties"`
	Threshold    int           `json:"threshold"`
	SecretShare  [32]byte      `json:"secret_share"`
	PublicKey    [33]byte      `json:"public_key"`
	PublicShares [][33]byte    `json:"public_shares"`
	ChainCode    [32]byte      `json:"chain_code"`
	SessionID    string        `json:"session_id"`
	Generation   uint64        `json:"generation"`
	Parties      party.IDSlice `json:"parties"`
}

// MarshalJSON writes k in the documented key-share wire schema.
func (k KeyShare) MarshalJSON() ([]byte, error) {
	sorted := k.Parties.Sorted()
	shares := make([][33]byte, len(sorted))
	for i, id := range sorted {
		shares[i] = k.PublicShares[id]
	}
	return json.Marshal(keyShareWire{
		PartyID:      k.Self,
		NParties:     len(sorted),
		Threshold:    k.Threshold,
		SecretShare:  k.SecretShare,
		PublicKey:    k.PublicKey,
		PublicShares: shares,
		ChainCode:    k.ChainCode,
		SessionID:    k.SessionID,
		Generation:   k.Generation,
		Parties:      sorted,
	})
}

// UnmarshalJSON reads k from the documented key-share wire schema, rebuilding
// the internal party-id-keyed map from the ordered public_shares array.
func (k *KeyShare) UnmarshalJSON(data []byte) error {
	var w keyShareWire
	if err := json.Unmarshal(data, &w); err != nil {
		return dklserr.Wrap(dklserr.KindKeyShare, "keyshare.UnmarshalJSON", "", err)
	}
	if w.NParties != len(w.Parties) || len(w.PublicShares) != len(w.Parties) {
		return dklserr.New(dklserr.KindKeyShare, "keyshare.UnmarshalJSON", "public_shares/parties/n_parties length mismatch")
	}
	k.Self = w.PartyID
	k.Threshold = w.Threshold
	k.Generation = w.Generation
	k.SessionID = w.SessionID
	k.Parties = w.Parties
	k.SecretShare = w.SecretShare
	k.PublicKey = w.PublicKey
	k.ChainCode = w.ChainCode
	k.PublicShares = make(map[party.ID][33]byte, len(w.Parties))
	for i, id := range w.Parties {
		k.PublicShares[id] = w.PublicShares[i]
	}
	return nil
}

// Secret decodes the stored secret share as a curve.Scalar.
func (k *KeyShare) Secret() (curve.Scalar, error) {
	s, _, err := curve.ScalarFromBytes(k.SecretShare[:])
	if err != nil {
		return curve.Scalar{}, dklserr.Wrap(dklserr.KindKeyShare, "keyshare.Secret", "", err)
	}
	return s, nil
}

// PublicPoint decodes the stored public key as a curve.Point.
func (k *KeyShare) PublicPoint() (curve.Point, error) {
	p, err := curve.DecompressPoint(k.PublicKey)
	if err != nil {
		return curve.Point{}, dklserr.Wrap(dklserr.KindKeyShare, "keyshare.PublicPoint", "", err)
	}
	return p, nil
}

// Zeroize overwrites the in-memory secret share, the closest Go analogue
// of the Rust type's zeroize-on-drop guarantee since Go has no destructors
// to hook automatically.
func (k *KeyShare) Zeroize() {
	for i := range k.SecretShare {
		k.SecretShare[i] = 0
	}
}

// Load reads and decodes a KeyShare from path.
func Load(path string) (*KeyShare, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dklserr.Wrap(dklserr.KindKeyShare, "keyshare.Load", path, err)
	}
	var ks KeyShare
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, dklserr.Wrap(dklserr.KindKeyShare, "keyshare.Load", path, err)
	}
	return &ks, nil
}

// Save writes k to path atomically (write to a temp file, then rename) with
// owner-only permissions, since the file holds secret share material.
func Save(path string, k *KeyShare) error {
	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return dklserr.Wrap(dklserr.KindKeyShare, "keyshare.Save", path, err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".keyshare-*.tmp")
	if err != nil {
		return dklserr.Wrap(dklserr.KindKeyShare, "keyshare.Save", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return dklserr.Wrap(dklserr.KindKeyShare, "keyshare.Save", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return dklserr.Wrap(dklserr.KindKeyShare, "keyshare.Save", path, err)
	}
	if err := tmp.Close(); err != nil {
		return dklserr.Wrap(dklserr.KindKeyShare, "keyshare.Save", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return dklserr.Wrap(dklserr.KindKeyShare, "keyshare.Save", path, err)
	}
	return nil
}

// Validate checks structural consistency: the self party is present, the
// public shares map has an entry per party, and the threshold is sane.
func (k *KeyShare) Validate() error {
	if k.Threshold < 2 || k.Threshold > len(k.Parties) {
		return dklserr.New(dklserr.KindKeyShare, "keyshare.Validate", fmt.Sprintf("threshold %d invalid for %d parties", k.Threshold, len(k.Parties)))
	}
	if !k.Parties.Contains(k.Self) {
		return dklserr.New(dklserr.KindKeyShare, "keyshare.Validate", "self not among parties")
	}
	for _, id := range k.Parties {
		if _, ok := k.PublicShares[id]; !ok {
			return dklserr.New(dklserr.KindKeyShare, "keyshare.Validate", fmt.Sprintf("missing public share for party %d", id))
		}
	}
	return nil
}
