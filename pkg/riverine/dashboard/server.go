// Package dashboard exposes the query boundary of a riverine core over
// HTTP: predicate queries against the index, a websocket feed of live
// events, and Prometheus metrics.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
	"github.com/randalmurphal/riverine/pkg/riverine/index"
	"github.com/randalmurphal/riverine/pkg/riverine/predicate"
)

const clientSendBuffer = 64

// Server serves the query boundary.
//
//	GET /index?query=service == "api" and metric > 0.5
//	GET /ws                websocket push of live events
//	GET /metrics           Prometheus exposition
type Server struct {
	addr     string
	idx      *index.Index
	log      *slog.Logger
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	clients  map[string]*client
	listener net.Listener
	server   *http.Server
}

// client is one websocket subscriber. Slow clients are disconnected
// rather than allowed to back up the publisher.
type client struct {
	id   string
	conn *websocket.Conn
	send chan event.Event
	done chan struct{}
}

// NewServer builds the dashboard server over the given index. A nil
// gatherer disables the /metrics route.
func NewServer(addr string, idx *index.Index, gatherer prometheus.Gatherer, log *slog.Logger) *Server {
	if idx == nil {
		panic("dashboard: server requires an index")
	}
	return &Server{
		addr:     addr,
		idx:      idx,
		log:      log,
		gatherer: gatherer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[string]*client),
	}
}

// Start binds the listener and serves until Stop.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /index", s.handleQuery)
	mux.HandleFunc("GET /ws", s.handleWS)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.server = &http.Server{Handler: mux}
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && s.log != nil {
			s.log.Error("dashboard server failed", slog.String("error", err.Error()))
		}
	}()
	if s.log != nil {
		s.log.Info("dashboard started", slog.String("addr", ln.Addr().String()))
	}
	return nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// queryRow is the JSON row shape for /index responses. TTL is in
// seconds.
type queryRow struct {
	Host    string    `json:"host,omitempty"`
	Service string    `json:"service"`
	State   string    `json:"state,omitempty"`
	Metric  *float64  `json:"metric,omitempty"`
	Tags    []string  `json:"tags,omitempty"`
	TTL     float64   `json:"ttl"`
	Time    time.Time `json:"time"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("query")
	var pred predicate.Predicate
	if q != "" {
		var err error
		pred, err = predicate.Parse(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	entries := s.idx.Query(pred)
	rows := make([]queryRow, len(entries))
	for i, e := range entries {
		rows[i] = queryRow{
			Host:    e.Host,
			Service: e.Service,
			State:   e.State,
			Metric:  e.Metric,
			Tags:    e.Tags,
			TTL:     e.TTL.Seconds(),
			Time:    e.Time,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan event.Event, clientSendBuffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	go s.writeLoop(c)

	// Reads are discarded; the read loop only notices disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.dropClient(c)
}

func (s *Server) writeLoop(c *client) {
	for {
		select {
		case e := <-c.send:
			row := queryRow{
				Host:    e.Host,
				Service: e.Service,
				State:   e.State,
				Metric:  e.Metric,
				Tags:    e.Tags,
				TTL:     e.TTL.Seconds(),
				Time:    e.Time,
			}
			if err := c.conn.WriteJSON(row); err != nil {
				s.dropClient(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (s *Server) dropClient(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c.id]; ok {
		delete(s.clients, c.id)
		close(c.done)
	}
	s.mu.Unlock()
	c.conn.Close()
}

// Publish pushes an event to every connected websocket client. Clients
// whose buffers are full miss the event rather than blocking the graph.
func (s *Server) Publish(e event.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		select {
		case c.send <- e:
		default:
		}
	}
}

// Stop shuts the server down, closing client connections.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	srv := s.server
	s.mu.Unlock()

	for _, c := range clients {
		s.dropClient(c)
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
