package mailbox

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/relay"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/session"
)

// serviceName and serviceVersion identify this mailbox relay in its health
// check response.
const (
	serviceName    = "dkls23-mailbox"
	serviceVersion = "0.1.0"
)

// putRequest is the wire shape of a POST /v1/msg (and GET /v1/msg
// lookup-by-body) request.
type putRequest struct {
	Session string  `json:"session_id"`
	Round   int     `json:"round"`
	From    uint32  `json:"from"`
	To      *uint32 `json:"to,omitempty"`
	Tag     string  `json:"tag"`
	Payload string  `json:"payload"` // base64
}

type putResponse struct {
	Hash string `json:"hash"`
}

type getResponse struct {
	Hash    string `json:"hash"`
	Payload string `json:"payload"`
}

type getByBodyResponse struct {
	Found   bool   `json:"found"`
	Payload string `json:"payload,omitempty"`
}

type roundMessage struct {
	Hash    string `json:"hash"`
	From    uint32 `json:"from"`
	Tag     string `json:"tag"`
	Payload string `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the HTTP front-end for a Store, routed with chi and grounded
// on the reference relay service's route table (/health, /v1/msg,
// /v1/msg/:hash, /v1/ws).
type Server struct {
	store  *Store
	log    *slog.Logger
	router chi.Router

	wsMu chan struct{} // binary semaphore guarding subscriber fan-out registration
	subs map[*websocket.Conn]struct{}
}

// NewServer builds a Server around store.
func NewServer(store *Store, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		store: store,
		log:   log,
		wsMu:  make(chan struct{}, 1),
		subs:  make(map[*websocket.Conn]struct{}),
	}
	s.wsMu <- struct{}{}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/v1/msg", func(r chi.Router) {
		r.Post("/", s.handlePut)
		r.Get("/", s.handleGetByBody)
		r.Get("/{hash}", s.handleGet)
		r.Get("/round/{session}/{round}", s.handleGetRound)
	})
	r.Get("/v1/ws", s.handleWebsocket)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": serviceVersion,
	})
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	var req putRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}
	payload, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		http.Error(w, "malformed payload encoding", http.StatusBadRequest)
		return
	}

	var to *party.ID
	if req.To != nil {
		id := party.ID(*req.To)
		to = &id
	}
	id := relay.MessageID{
		Session: session.ID(req.Session),
		Round:   req.Round,
		From:    party.ID(req.From),
		To:      to,
		Tag:     req.Tag,
	}
	if err := s.store.Put(id, payload); err != nil {
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}

	s.notifySubscribers(id.HexHash())

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(putResponse{Hash: id.HexHash()})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	hashHex := chi.URLParam(r, "hash")
	var hash [32]byte
	n, err := hex.Decode(hash[:], []byte(hashHex))
	if err != nil || n != len(hash) {
		http.Error(w, "malformed hash", http.StatusBadRequest)
		return
	}
	payload, ok := s.store.Get(hash)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(getResponse{
		Hash:    hashHex,
		Payload: base64.StdEncoding.EncodeToString(payload),
	})
}

func (s *Server) handleGetByBody(w http.ResponseWriter, r *http.Request) {
	var req putRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}
	var to *party.ID
	if req.To != nil {
		id := party.ID(*req.To)
		to = &id
	}
	id := relay.MessageID{
		Session: session.ID(req.Session),
		Round:   req.Round,
		From:    party.ID(req.From),
		To:      to,
		Tag:     req.Tag,
	}
	payload, ok := s.store.Get(id.Hash())
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		_ = json.NewEncoder(w).Encode(getByBodyResponse{Found: false})
		return
	}
	_ = json.NewEncoder(w).Encode(getByBodyResponse{
		Found:   true,
		Payload: base64.StdEncoding.EncodeToString(payload),
	})
}

func (s *Server) handleGetRound(w http.ResponseWriter, r *http.Request) {
	sessionParam := chi.URLParam(r, "session")
	round, err := strconv.Atoi(chi.URLParam(r, "round"))
	if err != nil {
		http.Error(w, "malformed round", http.StatusBadRequest)
		return
	}
	msgs := s.store.GetRound(session.ID(sessionParam), round)
	out := make([]roundMessage, len(msgs))
	for i, msg := range msgs {
		out[i] = roundMessage{
			Hash:    msg.ID.HexHash(),
			From:    uint32(msg.ID.From),
			Tag:     msg.ID.Tag,
			Payload: base64.StdEncoding.EncodeToString(msg.Payload),
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	<-s.wsMu
	s.subs[conn] = struct{}{}
	s.wsMu <- struct{}{}

	defer func() {
		<-s.wsMu
		delete(s.subs, conn)
		s.wsMu <- struct{}{}
		conn.Close()
	}()

	// Subscribers only receive push notifications; they never send.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) notifySubscribers(hashHex string) {
	<-s.wsMu
	defer func() { s.wsMu <- struct{}{} }()
	for conn := range s.subs {
		if err := conn.WriteJSON(map[string]string{"hash": hashHex}); err != nil {
			conn.Close()
			delete(s.subs, conn)
		}
	}
}

// RunCleanupLoop periodically sweeps expired messages until stop is
// closed, matching the reference service's 60-second tokio interval.
func (s *Server) RunCleanupLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n := s.store.Cleanup(); n > 0 {
				s.log.Info("cleaned expired messages", "count", n)
			}
		}
	}
}
