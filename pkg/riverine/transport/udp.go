package transport

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/randalmurphal/riverine/pkg/riverine/observability"
)

// maxDatagram bounds a single UDP payload.
const maxDatagram = 64 * 1024

// UDPServer accepts one JSON event per datagram. Malformed datagrams
// are counted and dropped; the socket stays open.
type UDPServer struct {
	addr    string
	handler Handler
	log     *slog.Logger
	metrics *observability.Metrics

	mu   sync.Mutex
	conn net.PacketConn
	wg   sync.WaitGroup
}

// NewUDPServer builds a UDP listener. Handler must not be nil; logger
// and metrics may be nil.
func NewUDPServer(addr string, handler Handler, log *slog.Logger, metrics *observability.Metrics) *UDPServer {
	if handler == nil {
		panic("transport: UDP handler cannot be nil")
	}
	return &UDPServer{addr: addr, handler: handler, log: log, metrics: metrics}
}

// Start binds the socket and begins reading datagrams.
func (s *UDPServer) Start() error {
	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("listen udp %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	observability.LogListenerStart(s.log, "udp", conn.LocalAddr().String())

	s.wg.Add(1)
	go s.readLoop(conn)
	return nil
}

// Addr returns the bound address.
func (s *UDPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return s.addr
	}
	return s.conn.LocalAddr().String()
}

func (s *UDPServer) readLoop(conn net.PacketConn) {
	defer s.wg.Done()
	buf := make([]byte, maxDatagram)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		e, err := Unmarshal(buf[:n])
		if err != nil {
			s.metrics.EventMalformed("udp")
			observability.LogMalformed(s.log, "udp", err)
			continue
		}
		s.metrics.EventReceived("udp")
		s.handler(e)
	}
}

// Stop closes the socket and waits for the read loop to finish.
func (s *UDPServer) Stop() {
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	observability.LogListenerStop(s.log, "udp", s.addr)
}
