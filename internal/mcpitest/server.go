// Package mcpitest provides a loopback MCPI server for tests.
package mcpitest

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Handler answers one command line (without its line feed). Each returned
// string is written back as one response line; nil writes nothing.
//
// A handler may block; it should select on Server.Done to return when the
// server closes.
type Handler func(line string) []string

// Server is a loopback TCP server speaking the MCPI line protocol.
type Server struct {
	ln      net.Listener
	handler Handler
	done    chan struct{}
	wg      sync.WaitGroup

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	received []string
	closed   bool
}

// NewServer starts a server on 127.0.0.1 with a random port. It is closed by
// t.Cleanup.
func NewServer(t testing.TB, handler Handler) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("mcpitest: listen: %v", err)
	}

	s := &Server{
		ln:      ln,
		handler: handler,
		done:    make(chan struct{}),
		conns:   make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go s.acceptLoop()

	t.Cleanup(s.Close)

	return s
}

// Addr returns the "host:port" address of the server.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Host returns the listening host.
func (s *Server) Host() string {
	return s.ln.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the listening port.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Done is closed when the server closes.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Received returns the command lines received so far, in arrival order.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.received))
	copy(out, s.received)

	return out
}

// WaitReceived waits until at least n command lines arrived or timeout
// elapses, and reports whether they arrived.
func (s *Server) WaitReceived(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		got := len(s.received)
		s.mu.Unlock()

		if got >= n {
			return true
		}

		if time.Now().After(deadline) {
			return false
		}

		time.Sleep(time.Millisecond)
	}
}

// DropConnections closes every accepted connection while the server keeps
// listening.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.conns {
		_ = conn.Close()
	}
}

// Close stops the listener, closes all connections and waits for every
// server goroutine to exit. It is idempotent.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	_ = s.ln.Close()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()

			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	w := bufio.NewWriter(conn)
	for scanner.Scan() {
		line := scanner.Text()

		s.mu.Lock()
		s.received = append(s.received, line)
		s.mu.Unlock()

		replies := s.handler(line)
		if len(replies) == 0 {
			continue
		}

		for _, reply := range replies {
			_, _ = w.WriteString(reply)
			_ = w.WriteByte('\n')
		}

		if err := w.Flush(); err != nil {
			return
		}
	}
}

// Silent is a handler that never answers.
func Silent(string) []string {
	return nil
}

// World is a handler simulating the block and chat commands of a game world.
// Lines that are not calls are answered with "Fail"; unknown commands are
// ignored.
type World struct {
	mu     sync.Mutex
	blocks map[[3]int][2]int
	chat   []string
}

// NewWorld creates an empty world where every block is air.
func NewWorld() *World {
	return &World{blocks: make(map[[3]int][2]int)}
}

// Chat returns the chat messages posted so far.
func (w *World) Chat() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, len(w.chat))
	copy(out, w.chat)

	return out
}

// Handle implements Handler.
func (w *World) Handle(line string) []string {
	name, args, ok := parseLine(line)
	if !ok {
		return []string{"Fail"}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch name {
	case "world.getBlock", "world.getBlockWithData":
		pos, ok := parseInts(args, 3)
		if !ok {
			return []string{"Fail"}
		}

		block := w.blocks[[3]int{pos[0], pos[1], pos[2]}]
		if name == "world.getBlock" {
			return []string{strconv.Itoa(block[0])}
		}

		return []string{strconv.Itoa(block[0]) + "," + strconv.Itoa(block[1])}

	case "world.setBlock":
		vals, ok := parseInts(args, 4)
		if !ok {
			return []string{"Fail"}
		}

		data := 0
		if len(vals) > 4 {
			data = vals[4]
		}
		w.blocks[[3]int{vals[0], vals[1], vals[2]}] = [2]int{vals[3], data}

		return nil

	case "world.getHeight":
		return []string{"0"}

	case "world.getPlayerIds":
		return []string{"1"}

	case "player.getPos":
		return []string{"0.5,1.0,0.5"}

	case "player.getTile":
		return []string{"0,1,0"}

	case "events.block.hits", "events.chat.posts":
		return []string{""}

	case "chat.post":
		w.chat = append(w.chat, args)
		return nil

	default:
		return nil
	}
}

func parseLine(line string) (string, string, bool) {
	open := strings.IndexByte(line, '(')
	if open <= 0 || !strings.HasSuffix(line, ")") {
		return "", "", false
	}

	return line[:open], line[open+1 : len(line)-1], true
}

func parseInts(args string, minCount int) ([]int, bool) {
	fields := strings.Split(args, ",")
	if len(fields) < minCount {
		return nil, false
	}

	vals := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, false
		}
		vals = append(vals, v)
	}

	return vals, true
}
