package mailbox_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/mailbox"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/relay"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/session"
)

func TestStorePutGetRoundtrip(t *testing.T) {
	store := mailbox.NewStore(time.Minute)
	id := relay.MessageID{Round: 1, From: party.ID(0), Tag: "test"}
	require.NoError(t, store.Put(id, []byte("payload")))

	got, ok := store.Get(id.Hash())
	require.True(t, ok)
	require.Equal(t, []byte("payload"), got)
}

func TestStorePutIsIdempotent(t *testing.T) {
	store := mailbox.NewStore(time.Minute)
	id := relay.MessageID{Round: 1, From: party.ID(0), Tag: "test"}
	require.NoError(t, store.Put(id, []byte("payload")))
	require.NoError(t, store.Put(id, []byte("payload")))
	require.Equal(t, 1, store.Len())
}

func TestStoreGetRoundReturnsAllSendersForRound(t *testing.T) {
	store := mailbox.NewStore(time.Minute)
	sid := session.ID("s1")
	idA := relay.MessageID{Session: sid, Round: 2, From: party.ID(0), Tag: "test"}
	idB := relay.MessageID{Session: sid, Round: 2, From: party.ID(1), Tag: "test"}
	idOtherRound := relay.MessageID{Session: sid, Round: 3, From: party.ID(0), Tag: "test"}
	require.NoError(t, store.Put(idA, []byte("a")))
	require.NoError(t, store.Put(idB, []byte("b")))
	require.NoError(t, store.Put(idOtherRound, []byte("c")))

	msgs := store.GetRound(sid, 2)
	require.Len(t, msgs, 2)
}

func TestStoreCleanupRemovesExpired(t *testing.T) {
	store := mailbox.NewStore(time.Millisecond)
	id := relay.MessageID{Round: 1, From: party.ID(0), Tag: "test"}
	require.NoError(t, store.Put(id, []byte("payload")))
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, 1, store.Cleanup())
	require.False(t, store.Exists(id.Hash()))
}
