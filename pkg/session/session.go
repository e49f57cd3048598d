// Package session defines the shared configuration identifying a protocol
// run: which parties participate, at what threshold, and under what id.
package session

import (
	"fmt"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dklserr"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
)

// ID names a single protocol session across all of its rounds, used as the
// first component of every mailbox message key.
type ID string

// Config describes the parties and threshold of a DKG, Refresh, or DSG run.
type Config struct {
	SessionID ID
	Self      party.ID
	Parties   party.IDSlice
	Threshold int
}

// Validate enforces the structural invariants every engine assumes: the
// threshold is within [2, len(Parties)], Self is among Parties, and Parties
// contains no duplicates.
func (c Config) Validate() error {
	if c.SessionID == "" {
		return dklserr.New(dklserr.KindInvalidConfig, "session.Validate", "empty session id")
	}
	if c.Threshold < 2 {
		return dklserr.New(dklserr.KindInvalidConfig, "session.Validate",
			fmt.Sprintf("threshold %d below minimum of 2", c.Threshold))
	}
	n := len(c.Parties)
	if n < c.Threshold {
		return dklserr.New(dklserr.KindInsufficientParties, "session.Validate",
			fmt.Sprintf("quorum of %d parties smaller than threshold %d", n, c.Threshold))
	}
	if c.Parties.HasDuplicates() {
		return dklserr.New(dklserr.KindInvalidConfig, "session.Validate", "duplicate party id")
	}
	if !c.Parties.Contains(c.Self) {
		return dklserr.New(dklserr.KindInvalidPartyID, "session.Validate",
			fmt.Sprintf("self %d not among parties", c.Self))
	}
	return nil
}

// OtherParties returns every party id except Self, the usual fan-out set
// for broadcasts and direct sends.
func (c Config) OtherParties() party.IDSlice {
	return c.Parties.Remove(c.Self)
}
