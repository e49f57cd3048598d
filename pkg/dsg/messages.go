// Package dsg implements distributed signature generation: a nonce round,
// a pairwise MtA phase deriving additive shares of k*gamma and x*gamma,
// and a combine round producing a single ECDSA signature. See the k^-1/chi
// derivation in Presign for the blinding trick that lets this avoid ever
// inverting a secret-shared nonce.
package dsg

import "fmt"

const (
	tagNonce = "dsg-nonce"
	tagDelta = "dsg-delta"
	tagSig   = "dsg-sig"

	mtaRoundBase = 10
	nonceRound   = 1
	deltaRound   = 20
	sigRound     = 30
)

// nonceMsg is the round-1 broadcast: this signer's nonce and blinding
// commitments K_i = k_i*G, Gamma_i = gamma_i*G.
type nonceMsg struct {
	K     [33]byte `cbor:"k"`
	Gamma [33]byte `cbor:"gamma"`
}

// deltaMsg is the round-2 broadcast revealing this signer's additive
// share of k*gamma. Revealing delta is safe: gamma is uniformly random and
// independent of k, so delta = k*gamma leaks nothing about k alone.
type deltaMsg struct {
	Delta [32]byte `cbor:"delta"`
}

// sigShareMsg is the final-round broadcast of this signer's additive
// share of the signature scalar s.
type sigShareMsg struct {
	S [32]byte `cbor:"s"`
}

func mtaTag(kind string, from, to uint32) string {
	return fmt.Sprintf("dsg-mta-%s-%d-%d", kind, from, to)
}
