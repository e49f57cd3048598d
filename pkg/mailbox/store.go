// Package mailbox implements the content-addressed message store backing
// the relay HTTP service: a TTL'd, idempotent put/get keyed by BLAKE3
// content address, grounded on the Rust msg-relay crate's MessageStore.
package mailbox

import (
	"sync"
	"time"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/relay"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/session"
)

// StoredMessage is a single message held by the store, timestamped for
// expiry sweeps.
type StoredMessage struct {
	ID        relay.MessageID
	Payload   []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// keyLock serializes puts per content-address. The message map itself is
// still guarded by the store-wide mapMu, which every Put, Get, GetRound and
// Cleanup takes, so puts for distinct addresses do contend on that lock.
type keyLock struct {
	mu sync.Mutex
	n  int
}

// Store is a TTL'd, content-addressed message store. Puts are idempotent:
// resubmitting the same (id, payload) pair is a no-op, matching the relay
// client's retry-on-timeout behaviour.
type Store struct {
	ttl time.Duration

	mapMu sync.RWMutex
	locks map[[32]byte]*keyLock
	data  map[[32]byte]*StoredMessage
}

// NewStore creates a store with the given per-message TTL.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:   ttl,
		locks: make(map[[32]byte]*keyLock),
		data:  make(map[[32]byte]*StoredMessage),
	}
}

func (s *Store) lockFor(hash [32]byte) *keyLock {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	l, ok := s.locks[hash]
	if !ok {
		l = &keyLock{}
		s.locks[hash] = l
	}
	l.n++
	return l
}

func (s *Store) releaseLock(hash [32]byte, l *keyLock) {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	l.n--
	if l.n == 0 {
		delete(s.locks, hash)
	}
}

// Put stores payload under id's content address. Idempotent: a second Put
// with the same id and payload succeeds silently.
func (s *Store) Put(id relay.MessageID, payload []byte) error {
	hash := id.Hash()
	l := s.lockFor(hash)
	l.mu.Lock()
	defer func() {
		l.mu.Unlock()
		s.releaseLock(hash, l)
	}()

	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	if existing, ok := s.data[hash]; ok {
		_ = existing // already stored; idempotent no-op
		return nil
	}
	now := time.Now()
	s.data[hash] = &StoredMessage{
		ID:        id,
		Payload:   append([]byte(nil), payload...),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	return nil
}

// Get retrieves the payload stored for hash, if present and unexpired.
func (s *Store) Get(hash [32]byte) ([]byte, bool) {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()
	msg, ok := s.data[hash]
	if !ok {
		return nil, false
	}
	if time.Now().After(msg.ExpiresAt) {
		return nil, false
	}
	return msg.Payload, true
}

// GetRound returns every unexpired stored message for sessionID at round,
// a linear scan used when a collector does not yet know every sender's
// message hash (e.g. a late-joining party catching up on a round).
func (s *Store) GetRound(sessionID session.ID, round int) []StoredMessage {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()
	now := time.Now()
	var out []StoredMessage
	for _, msg := range s.data {
		if msg.ID.Session == sessionID && msg.ID.Round == round && !now.After(msg.ExpiresAt) {
			out = append(out, *msg)
		}
	}
	return out
}

// Exists reports whether hash has an unexpired stored message.
func (s *Store) Exists(hash [32]byte) bool {
	_, ok := s.Get(hash)
	return ok
}

// Cleanup removes every expired message, returning the count removed. It is
// meant to be called on a fixed interval (60s in the reference service).
func (s *Store) Cleanup() int {
	now := time.Now()
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	removed := 0
	for hash, msg := range s.data {
		if now.After(msg.ExpiresAt) {
			delete(s.data, hash)
			removed++
		}
	}
	return removed
}

// Len reports the number of messages currently held, expired or not.
func (s *Store) Len() int {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()
	return len(s.data)
}
