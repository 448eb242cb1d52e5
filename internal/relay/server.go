package relay

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pairchat/internal/domain"
)

const (
	maxBodyBytes = 1 << 20
	writeTimeout = 10 * time.Second
)

// Server exposes a graph to remote clients.
type Server struct {
	graph    domain.Store
	log      *zap.Logger
	upgrader websocket.Upgrader
	router   *mux.Router

	mu    sync.Mutex
	conns map[string]*wsConn
}

// NewServer returns a Server backed by graph.
func NewServer(graph domain.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		graph: graph,
		log:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		conns: make(map[string]*wsConn),
	}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/put", s.handlePut).Methods(http.MethodPost)
	r.HandleFunc("/v1/once", s.handleOnce).Methods(http.MethodPost)
	r.HandleFunc("/v1/subscribe", s.handleSubscribe).Methods(http.MethodGet)
	s.router = r
	return s
}

// Handler returns the HTTP handler of the relay.
func (s *Server) Handler() http.Handler { return s.router }

// Connections reports how many websocket clients are attached.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// DropConnections closes every websocket. Clients reconnect on their own.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.conn.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	var req putRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	if !validPath(req.Path) {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid path"})
		return
	}

	done := make(chan error, 1)
	node(s.graph, req.Path).Put(req.Value, func(err error) { done <- err })
	select {
	case err := <-done:
		if err != nil {
			s.log.Warn("put failed", zap.Strings("path", req.Path), zap.Error(err))
			respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "store write failed"})
			return
		}
	case <-r.Context().Done():
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOnce(w http.ResponseWriter, r *http.Request) {
	var req onceRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	if !validPath(req.Path) {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid path"})
		return
	}

	done := make(chan domain.Value, 1)
	node(s.graph, req.Path).Once(func(v domain.Value, _ string) { done <- v })
	select {
	case v := <-done:
		respondJSON(w, http.StatusOK, onceResponse{Value: v})
	case <-r.Context().Done():
	}
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	c := &wsConn{
		id:     uuid.NewString(),
		conn:   conn,
		subs:   make(map[uint64]domain.Unsubscribe),
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
	s.log.Debug("subscriber connected", zap.String("conn", c.id), zap.String("remote", r.RemoteAddr))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(s.log)
	}()

	defer func() {
		c.shutdown()
		<-writerDone
		_ = conn.Close()
		s.mu.Lock()
		delete(s.conns, c.id)
		s.mu.Unlock()
		s.log.Debug("subscriber disconnected", zap.String("conn", c.id))
	}()

	for {
		var f subscribeFrame
		if err := conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("ws read error", zap.String("conn", c.id), zap.Error(err))
			}
			return
		}
		s.apply(c, f)
	}
}

func (s *Server) apply(c *wsConn, f subscribeFrame) {
	switch f.Op {
	case opOff:
		c.drop(f.ID)
	case opOn, opMap:
		if !validPath(f.Path) {
			s.log.Debug("subscribe with invalid path", zap.String("conn", c.id), zap.Uint64("id", f.ID))
			return
		}
		c.drop(f.ID)
		id := f.ID
		deliver := func(v domain.Value, key string) {
			c.enqueue(deliveryFrame{ID: id, Key: key, Value: v})
		}
		n := node(s.graph, f.Path)
		var unsub domain.Unsubscribe
		if f.Op == opMap {
			unsub = n.Map().On(deliver)
		} else {
			unsub = n.On(deliver)
		}
		c.keep(id, unsub)
	default:
		s.log.Debug("unknown op", zap.String("conn", c.id), zap.String("op", f.Op))
	}
}

// wsConn is one subscriber. Graph callbacks may run on any goroutine, so
// deliveries are queued and written by a single writer.
type wsConn struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	subs   map[uint64]domain.Unsubscribe
	queue  []deliveryFrame
	done   bool
	wake   chan struct{}
	closed chan struct{}
}

func (c *wsConn) keep(id uint64, unsub domain.Unsubscribe) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		unsub()
		return
	}
	c.subs[id] = unsub
	c.mu.Unlock()
}

func (c *wsConn) drop(id uint64) {
	c.mu.Lock()
	unsub := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (c *wsConn) enqueue(f deliveryFrame) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue, f)
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *wsConn) shutdown() {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	subs := c.subs
	c.subs = nil
	c.queue = nil
	c.mu.Unlock()

	for _, unsub := range subs {
		unsub()
	}
	close(c.closed)
}

func (c *wsConn) writeLoop(log *zap.Logger) {
	for {
		select {
		case <-c.closed:
			return
		case <-c.wake:
		}
		c.mu.Lock()
		batch := c.queue
		c.queue = nil
		c.mu.Unlock()

		for _, f := range batch {
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(f); err != nil {
				log.Debug("ws write failed", zap.String("conn", c.id), zap.Error(err))
				_ = c.conn.Close()
				return
			}
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
