package relay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dklserr"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/session"
)

// maxPollAttempts bounds CollectBroadcasts/CollectDirect polling before
// giving up with a timeout error, matching the reference HTTP relay
// client's retry budget.
const maxPollAttempts = 100

const pollInterval = 100 * time.Millisecond

type httpPutRequest struct {
	Session string  `json:"session_id"`
	Round   int     `json:"round"`
	From    uint32  `json:"from"`
	To      *uint32 `json:"to,omitempty"`
	Tag     string  `json:"tag"`
	Payload string  `json:"payload"`
}

type httpPutResponse struct {
	Hash string `json:"hash"`
}

type httpGetResponse struct {
	Hash    string `json:"hash"`
	Payload string `json:"payload"`
}

// HTTPRelay is a Relay implementation that talks to a mailbox server over
// HTTP, polling for round messages the way the reference relay client
// polls the message store.
type HTTPRelay struct {
	baseURL string
	client  *http.Client
	session session.ID
	self    party.ID
}

// NewHTTPRelay builds an HTTPRelay bound to baseURL (e.g.
// "http://localhost:8080") for the given session and party.
func NewHTTPRelay(baseURL string, sessionID session.ID, self party.ID) *HTTPRelay {
	return &HTTPRelay{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		session: sessionID,
		self:    self,
	}
}

func (r *HTTPRelay) Broadcast(ctx context.Context, round int, tag string, payload []byte) error {
	return r.put(ctx, round, r.self, nil, tag, payload)
}

func (r *HTTPRelay) SendDirect(ctx context.Context, round int, to party.ID, tag string, payload []byte) error {
	return r.put(ctx, round, r.self, &to, tag, payload)
}

func (r *HTTPRelay) put(ctx context.Context, round int, from party.ID, to *party.ID, tag string, payload []byte) error {
	var toU *uint32
	if to != nil {
		v := uint32(*to)
		toU = &v
	}
	body := httpPutRequest{
		Session: string(r.session),
		Round:   round,
		From:    uint32(from),
		To:      toU,
		Tag:     tag,
		Payload: base64.StdEncoding.EncodeToString(payload),
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return dklserr.Wrap(dklserr.KindSerialization, "relay.put", tag, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/msg/", bytes.NewReader(buf))
	if err != nil {
		return dklserr.Wrap(dklserr.KindRelay, "relay.put", tag, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return dklserr.Wrap(dklserr.KindRelay, "relay.put", tag, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return dklserr.New(dklserr.KindRelay, "relay.put", fmt.Sprintf("%s: status %d", tag, resp.StatusCode))
	}
	var out httpPutResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return dklserr.Wrap(dklserr.KindSerialization, "relay.put", tag, err)
	}
	return nil
}

func (r *HTTPRelay) CollectBroadcasts(ctx context.Context, round int, tag string, from party.IDSlice) (map[party.ID][]byte, error) {
	return r.collect(ctx, round, tag, from, true)
}

func (r *HTTPRelay) CollectDirect(ctx context.Context, round int, tag string, from party.IDSlice) (map[party.ID][]byte, error) {
	return r.collect(ctx, round, tag, from, false)
}

func (r *HTTPRelay) collect(ctx context.Context, round int, tag string, from party.IDSlice, broadcast bool) (map[party.ID][]byte, error) {
	out := make(map[party.ID][]byte, len(from))
	for attempt := 0; attempt < maxPollAttempts; attempt++ {
		for _, sender := range from {
			if _, ok := out[sender]; ok {
				continue
			}
			var to *party.ID
			if !broadcast {
				self := r.self
				to = &self
			}
			id := MessageID{Session: r.session, Round: round, From: sender, To: to, Tag: tag}
			payload, ok, err := r.get(ctx, id)
			if err != nil {
				return nil, err
			}
			if ok {
				out[sender] = payload
			}
		}
		if len(out) == len(from) {
			return out, nil
		}
		select {
		case <-ctx.Done():
			return nil, dklserr.Wrap(dklserr.KindAborted, "relay.collect", tag, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
	return nil, dklserr.New(dklserr.KindTimeout, "relay.collect", fmt.Sprintf("%s round %d", tag, round))
}

func (r *HTTPRelay) get(ctx context.Context, id MessageID) ([]byte, bool, error) {
	url := fmt.Sprintf("%s/v1/msg/%s", r.baseURL, id.HexHash())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, dklserr.Wrap(dklserr.KindRelay, "relay.get", id.Tag, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, false, dklserr.Wrap(dklserr.KindRelay, "relay.get", id.Tag, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, dklserr.New(dklserr.KindRelay, "relay.get", fmt.Sprintf("status %d", resp.StatusCode))
	}
	var out httpGetResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, dklserr.Wrap(dklserr.KindSerialization, "relay.get", id.Tag, err)
	}
	payload, err := base64.StdEncoding.DecodeString(out.Payload)
	if err != nil {
		return nil, false, dklserr.Wrap(dklserr.KindSerialization, "relay.get", id.Tag, err)
	}
	return payload, true, nil
}
