// Package dkg implements the three-round Feldman VSS distributed key
// generation protocol, and the structurally identical Key Refresh variant
// (a DKG whose polynomials carry a zero constant term instead of a fresh
// secret).
package dkg

import "github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"

const (
	tagCommit = "dkg-commit"
	tagShare  = "dkg-share"
)

// commitMsg is the round-1 broadcast: Feldman commitments to this party's
// polynomial coefficients plus a chain-code contribution.
type commitMsg struct {
	Commitments [][33]byte `cbor:"commitments"`
	ChainCode   [32]byte   `cbor:"chain_code"`
}

// shareMsg is the round-2 direct message: the Shamir share this party
// computed for one specific recipient.
type shareMsg struct {
	Share [32]byte `cbor:"share"`
}

func sortedParties(ids party.IDSlice) party.IDSlice {
	return ids.Sorted()
}
