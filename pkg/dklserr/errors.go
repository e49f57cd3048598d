// Package dklserr defines the error taxonomy shared by every protocol
// engine, mirroring the Kind enumeration a session can fail with so callers
// can branch on errors.As rather than string matching.
package dklserr

import "fmt"

// Kind classifies a protocol failure.
type Kind int

const (
	// KindInvalidConfig covers malformed SessionConfig (empty session id,
	// threshold below 2, duplicate party ids).
	KindInvalidConfig Kind = iota
	// KindVerificationFailed covers a Feldman share that does not match
	// its sender's broadcast commitments.
	KindVerificationFailed
	// KindTimeout covers a round that failed to collect all expected
	// messages within its deadline.
	KindTimeout
	// KindRelay covers a failure of the underlying message transport.
	KindRelay
	// KindAborted covers a session cancelled by its caller's context.
	KindAborted
	// KindSerialization covers a malformed wire message.
	KindSerialization
	// KindInsufficientParties covers a quorum smaller than the threshold.
	KindInsufficientParties
	// KindSignatureInvalid covers a combined signature that fails to
	// verify against the session's public key, or a retry budget
	// exhausted without producing one.
	KindSignatureInvalid
	// KindDerivation covers a hardened BIP32 child index or a malformed
	// derivation path, neither expressible as an additive share tweak.
	KindDerivation
	// KindKeyShare covers a malformed or unreadable key share file.
	KindKeyShare
	// KindInvalidPartyID covers self not being among a session's
	// parties, or a party id outside the valid range.
	KindInvalidPartyID
	// KindRetry covers a degenerate DSG nonce (r == 0 or s == 0):
	// recovered internally by retrying with fresh randomness, up to a
	// bounded number of attempts.
	KindRetry
)

func (k Kind) String() string {
	switch k {
	case KindInvalidConfig:
		return "invalid_config"
	case KindVerificationFailed:
		return "verification_failed"
	case KindTimeout:
		return "timeout"
	case KindRelay:
		return "relay"
	case KindAborted:
		return "aborted"
	case KindSerialization:
		return "serialization"
	case KindInsufficientParties:
		return "insufficient_parties"
	case KindSignatureInvalid:
		return "signature_invalid"
	case KindDerivation:
		return "derivation"
	case KindKeyShare:
		return "key_share"
	case KindInvalidPartyID:
		return "invalid_party_id"
	case KindRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// Error is the sum-type error every package in this module returns across
// package boundaries. It never embeds secret scalars or shares; Context
// holds only identifiers (party ids, round numbers, session ids) useful
// for diagnosis.
type Error struct {
	Kind    Kind
	Op      string
	Context string
	Err     error
}

func (e *Error) Error() string {
	if e.Context != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Kind, e.Context, e.Err)
		}
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Kind, e.Context)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is(err, dklserr.Kind) style checks by comparing Kind
// whenever the target is itself an *Error, such as the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an Error with no wrapped cause.
func New(kind Kind, op, context string) *Error {
	return &Error{Kind: kind, Op: op, Context: context}
}

// Wrap constructs an Error that wraps an underlying cause.
func Wrap(kind Kind, op, context string, err error) *Error {
	return &Error{Kind: kind, Op: op, Context: context, Err: err}
}

// Sentinel values for errors.Is comparisons against a specific kind,
// e.g. errors.Is(err, dklserr.Timeout).
var (
	InvalidConfig       = &Error{Kind: KindInvalidConfig}
	VerificationFailed  = &Error{Kind: KindVerificationFailed}
	Timeout             = &Error{Kind: KindTimeout}
	Relay               = &Error{Kind: KindRelay}
	Aborted             = &Error{Kind: KindAborted}
	Serialization       = &Error{Kind: KindSerialization}
	InsufficientParties = &Error{Kind: KindInsufficientParties}
	SignatureInvalid    = &Error{Kind: KindSignatureInvalid}
	Derivation          = &Error{Kind: KindDerivation}
	KeyShareInvalid     = &Error{Kind: KindKeyShare}
	InvalidPartyID      = &Error{Kind: KindInvalidPartyID}
	Retry               = &Error{Kind: KindRetry}
)
