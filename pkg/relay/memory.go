package relay

import (
	"context"
	"sync"
	"time"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dklserr"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
)

// memoryHub is the shared in-process store every MemoryRelay handle for a
// session reads from and writes to, grounded on the broadcast/direct map
// pair and notify-channel pattern of the Rust in-memory relay.
type memoryHub struct {
	mu         sync.Mutex
	broadcasts map[MessageID][]byte
	directs    map[MessageID][]byte
	notify     chan struct{}
}

func newMemoryHub() *memoryHub {
	return &memoryHub{
		broadcasts: make(map[MessageID][]byte),
		directs:    make(map[MessageID][]byte),
		notify:     make(chan struct{}),
	}
}

func (h *memoryHub) wake() {
	close(h.notify)
	h.notify = make(chan struct{})
}

// MemoryHub is a process-wide message bus shared by every MemoryRelay
// instance constructed from it, used to wire up multi-party simulations
// and tests without a network hop.
type MemoryHub struct {
	hub *memoryHub
}

// NewMemoryHub creates a fresh, empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{hub: newMemoryHub()}
}

// For returns a Relay handle on this hub scoped to the given party.
func (h *MemoryHub) For(self party.ID) Relay {
	return &MemoryRelay{hub: h.hub, self: self}
}

// MemoryRelay is an in-process Relay implementation backed by a shared
// MemoryHub, the Go analogue of the Rust MemoryRelay used in single-process
// multi-party tests and simulations.
type MemoryRelay struct {
	hub  *memoryHub
	self party.ID
}

func (r *MemoryRelay) Broadcast(ctx context.Context, round int, tag string, payload []byte) error {
	id := MessageID{Round: round, From: r.self, Tag: tag}
	r.hub.mu.Lock()
	r.hub.broadcasts[id] = append([]byte(nil), payload...)
	r.hub.wake()
	r.hub.mu.Unlock()
	return nil
}

func (r *MemoryRelay) SendDirect(ctx context.Context, round int, to party.ID, tag string, payload []byte) error {
	id := MessageID{Round: round, From: r.self, To: &to, Tag: tag}
	r.hub.mu.Lock()
	r.hub.directs[id] = append([]byte(nil), payload...)
	r.hub.wake()
	r.hub.mu.Unlock()
	return nil
}

func (r *MemoryRelay) CollectBroadcasts(ctx context.Context, round int, tag string, from party.IDSlice) (map[party.ID][]byte, error) {
	return r.collect(ctx, round, tag, from, true)
}

func (r *MemoryRelay) CollectDirect(ctx context.Context, round int, tag string, from party.IDSlice) (map[party.ID][]byte, error) {
	return r.collect(ctx, round, tag, from, false)
}

func (r *MemoryRelay) collect(ctx context.Context, round int, tag string, from party.IDSlice, broadcast bool) (map[party.ID][]byte, error) {
	out := make(map[party.ID][]byte, len(from))
	for {
		r.hub.mu.Lock()
		complete := true
		for _, sender := range from {
			if _, ok := out[sender]; ok {
				continue
			}
			var id MessageID
			if broadcast {
				id = MessageID{Round: round, From: sender, Tag: tag}
			} else {
				id = MessageID{Round: round, From: sender, To: &r.self, Tag: tag}
			}
			var store map[MessageID][]byte
			if broadcast {
				store = r.hub.broadcasts
			} else {
				store = r.hub.directs
			}
			if payload, ok := store[id]; ok {
				out[sender] = payload
			} else {
				complete = false
			}
		}
		notify := r.hub.notify
		r.hub.mu.Unlock()

		if complete {
			return out, nil
		}

		select {
		case <-ctx.Done():
			return nil, dklserr.Wrap(dklserr.KindAborted, "relay.collect", string(tag), ctx.Err())
		case <-notify:
		case <-time.After(100 * time.Millisecond):
		}
	}
}
