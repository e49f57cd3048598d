package derive

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/keyshare"
)

// PubKeyHash160 computes HASH160(compressed pubkey) = RIPEMD160(SHA256(pk)),
// the identifier Bitcoin-style wallets derive addresses from, letting a
// caller turn a derived child key share directly into an address without
// a second library.
func PubKeyHash160(ks *keyshare.KeyShare) [20]byte {
	sum := sha256.Sum256(ks.PublicKey[:])
	h := ripemd160.New()
	h.Write(sum[:])
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}
