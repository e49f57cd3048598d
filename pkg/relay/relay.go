// Package relay defines the message transport protocol engines use to
// exchange round messages, and a content-addressed message identifier
// shared with the mailbox store.
package relay

import (
	"context"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/session"
)

// MessageID addresses a single message within a session: which round it
// belongs to, who sent it, and who it is for (nil To means broadcast).
type MessageID struct {
	Session session.ID
	Round   int
	From    party.ID
	To      *party.ID
	Tag     string
}

// Hash returns the BLAKE3 content address of the id, matching the scheme
// the mailbox store uses as its map key and the HTTP relay uses as its
// path segment.
func (m MessageID) Hash() [32]byte {
	to := "broadcast"
	if m.To != nil {
		to = fmt.Sprintf("%d", *m.To)
	}
	canonical := fmt.Sprintf("%s:%d:%d:%s:%s", m.Session, m.Round, m.From, to, m.Tag)
	return blake3.Sum256([]byte(canonical))
}

// HexHash returns the hex-encoded content address, the form used in URLs
// and log fields.
func (m MessageID) HexHash() string {
	h := m.Hash()
	return fmt.Sprintf("%x", h[:])
}

// Relay is the transport abstraction every protocol round drives. A single
// relay handle is scoped to one (session, self) pair.
type Relay interface {
	// Broadcast publishes payload to every other party under tag at round.
	Broadcast(ctx context.Context, round int, tag string, payload []byte) error
	// SendDirect delivers payload to exactly one party.
	SendDirect(ctx context.Context, round int, to party.ID, tag string, payload []byte) error
	// CollectBroadcasts blocks until a broadcast under tag at round has
	// arrived from every party in from, returning each payload keyed by
	// sender.
	CollectBroadcasts(ctx context.Context, round int, tag string, from party.IDSlice) (map[party.ID][]byte, error)
	// CollectDirect blocks until a direct message under tag at round has
	// arrived from every party in from, addressed to self.
	CollectDirect(ctx context.Context, round int, tag string, from party.IDSlice) (map[party.ID][]byte, error)
}
