package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
	"github.com/randalmurphal/riverine/pkg/riverine/observability"
)

// Handler receives each well-formed event produced by a listener.
type Handler func(e event.Event)

// TCPServer accepts length-prefixed event frames on a stream socket.
// A malformed frame closes the offending connection; other connections
// are unaffected.
type TCPServer struct {
	addr    string
	handler Handler
	log     *slog.Logger
	metrics *observability.Metrics
	spans   observability.SpanManager

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	closed   bool
}

// NewTCPServer builds a TCP listener. Handler must not be nil; logger,
// metrics, and spans may be nil.
func NewTCPServer(addr string, handler Handler, log *slog.Logger, metrics *observability.Metrics, spans observability.SpanManager) *TCPServer {
	if handler == nil {
		panic("transport: TCP handler cannot be nil")
	}
	if spans == nil {
		spans = observability.NoopSpanManager{}
	}
	return &TCPServer{
		addr:    addr,
		handler: handler,
		log:     log,
		metrics: metrics,
		spans:   spans,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Start begins listening and accepting connections.
func (s *TCPServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen tcp %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	observability.LogListenerStart(s.log, "tcp", ln.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

// Addr returns the bound address, useful when the configured port is 0.
func (s *TCPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *TCPServer) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *TCPServer) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	r := bufio.NewReader(conn)
	for {
		_, span := s.spans.StartIngestSpan(context.Background(), "tcp")
		e, err := ReadFrame(r)
		if err != nil {
			s.spans.EndSpanWithError(span, err)
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			s.metrics.EventMalformed("tcp")
			observability.LogMalformed(s.log, "tcp", err)
			return
		}
		s.spans.EndSpanWithError(span, nil)
		s.metrics.EventReceived("tcp")
		s.handler(e)
	}
}

// Stop closes the listener and every open connection, then waits for
// in-flight handlers to return.
func (s *TCPServer) Stop() {
	s.mu.Lock()
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	observability.LogListenerStop(s.log, "tcp", s.addr)
}
