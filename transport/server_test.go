package transport

import (
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockServer is a scripted FTP server. Files, listings and stored uploads
// are keyed by the path argument of the command. Handlers override the
// built-in behavior of a command.
type mockServer struct {
	listener net.Listener
	addr     string

	mu       sync.Mutex
	files    map[string][]byte
	listings map[string]string
	stored   map[string][]byte
	handlers map[string]func(c *mockConn, args string)
	commands []string
	conns    map[net.Conn]struct{}

	wg sync.WaitGroup
}

// mockConn is one control connection of the mock server.
type mockConn struct {
	*textproto.Conn
	conn   net.Conn
	s      *mockServer
	pasv   net.Listener
	active string
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := &mockServer{
		listener: l,
		addr:     l.Addr().String(),
		files:    make(map[string][]byte),
		listings: make(map[string]string),
		stored:   make(map[string][]byte),
		handlers: make(map[string]func(*mockConn, string)),
		conns:    make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.stop)
	return s
}

func (s *mockServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
		}()
	}
}

func (s *mockServer) stop() {
	s.listener.Close()
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *mockServer) handle(conn net.Conn) {
	tc := textproto.NewConn(conn)
	defer tc.Close()

	c := &mockConn{Conn: tc, conn: conn, s: s}
	defer func() {
		if c.pasv != nil {
			c.pasv.Close()
		}
	}()

	_ = tc.PrintfLine("220 Service ready")
	for {
		line, err := tc.ReadLine()
		if err != nil {
			return
		}
		cmd, args, _ := strings.Cut(line, " ")
		cmd = strings.ToUpper(cmd)

		s.mu.Lock()
		s.commands = append(s.commands, line)
		h := s.handlers[cmd]
		s.mu.Unlock()

		if h != nil {
			h(c, args)
			continue
		}
		if !c.builtin(cmd, args) {
			return
		}
	}
}

// on registers a handler for cmd.
func (s *mockServer) on(cmd string, h func(c *mockConn, args string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[cmd] = h
}

func (s *mockServer) setFile(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data
}

func (s *mockServer) setListing(path, listing string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[path] = listing
}

func (s *mockServer) storedFile(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.stored[path]
	return data, ok
}

// received returns the command lines received so far.
func (s *mockServer) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// count returns how many commands named cmd were received.
func (s *mockServer) count(cmd string) int {
	n := 0
	for _, line := range s.received() {
		name, _, _ := strings.Cut(line, " ")
		if strings.EqualFold(name, cmd) {
			n++
		}
	}
	return n
}

func (c *mockConn) builtin(cmd, args string) bool {
	s := c.s
	switch cmd {
	case "USER":
		_ = c.PrintfLine("331 User name okay, need password.")
	case "PASS":
		_ = c.PrintfLine("230 User logged in, proceed.")
	case "TYPE":
		_ = c.PrintfLine("200 Type set to %s.", args)
	case "SIZE":
		s.mu.Lock()
		data, ok := s.files[args]
		s.mu.Unlock()
		if !ok {
			_ = c.PrintfLine("550 Could not get file size.")
			return true
		}
		_ = c.PrintfLine("213 %d", len(data))
	case "EPSV":
		port, err := c.listenPassive()
		if err != nil {
			_ = c.PrintfLine("425 Can't open data connection.")
			return true
		}
		_ = c.PrintfLine("229 Entering Extended Passive Mode (|||%d|)", port)
	case "PASV":
		port, err := c.listenPassive()
		if err != nil {
			_ = c.PrintfLine("425 Can't open data connection.")
			return true
		}
		_ = c.PrintfLine("227 Entering Passive Mode (127,0,0,1,%d,%d).", port/256, port%256)
	case "PORT":
		f := strings.Split(args, ",")
		if len(f) != 6 {
			_ = c.PrintfLine("501 Syntax error in parameters.")
			return true
		}
		p1, _ := strconv.Atoi(f[4])
		p2, _ := strconv.Atoi(f[5])
		c.active = net.JoinHostPort(strings.Join(f[:4], "."), strconv.Itoa(p1*256+p2))
		_ = c.PrintfLine("200 PORT command successful.")
	case "EPRT":
		f := strings.Split(args, "|")
		if len(f) != 5 {
			_ = c.PrintfLine("501 Syntax error in parameters.")
			return true
		}
		c.active = net.JoinHostPort(f[2], f[3])
		_ = c.PrintfLine("200 EPRT command successful.")
	case "RETR":
		s.mu.Lock()
		data, ok := s.files[args]
		s.mu.Unlock()
		if !ok {
			_ = c.PrintfLine("550 No such file.")
			return true
		}
		c.sendData(data)
	case "LIST", "MLSD":
		s.mu.Lock()
		listing, ok := s.listings[args]
		s.mu.Unlock()
		if !ok {
			_ = c.PrintfLine("550 No such directory.")
			return true
		}
		c.sendData([]byte(listing))
	case "STOR":
		data, err := c.receiveData()
		if err != nil {
			_ = c.PrintfLine("426 Connection closed; transfer aborted.")
			return true
		}
		if c.aborted() {
			_ = c.PrintfLine("426 Transfer aborted.")
			_ = c.PrintfLine("226 ABOR command successful.")
			return true
		}
		s.mu.Lock()
		s.stored[args] = data
		s.mu.Unlock()
		_ = c.PrintfLine("226 Transfer complete.")
	case "QUIT":
		_ = c.PrintfLine("221 Goodbye.")
		return false
	default:
		_ = c.PrintfLine("502 Command not implemented.")
	}
	return true
}

func (c *mockConn) listenPassive() (int, error) {
	if c.pasv != nil {
		c.pasv.Close()
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	c.pasv = l
	return l.Addr().(*net.TCPAddr).Port, nil
}

// openData returns the data connection announced by the last EPSV, PASV,
// PORT or EPRT.
func (c *mockConn) openData() (net.Conn, error) {
	if l := c.pasv; l != nil {
		c.pasv = nil
		defer l.Close()
		_ = l.(*net.TCPListener).SetDeadline(time.Now().Add(2 * time.Second))
		return l.Accept()
	}
	if c.active != "" {
		addr := c.active
		c.active = ""
		return net.DialTimeout("tcp", addr, 2*time.Second)
	}
	return nil, fmt.Errorf("no data connection")
}

// sendData transfers data with the usual 150/226 replies.
func (c *mockConn) sendData(data []byte) {
	_ = c.PrintfLine("150 Opening data connection.")
	conn, err := c.openData()
	if err != nil {
		_ = c.PrintfLine("425 Can't open data connection.")
		return
	}
	_, err = conn.Write(data)
	conn.Close()
	if err != nil {
		_ = c.PrintfLine("426 Connection closed; transfer aborted.")
		return
	}
	_ = c.PrintfLine("226 Transfer complete.")
}

// aborted reports whether the client sent ABOR when the upload data ended.
// A client sends ABOR before dropping the data connection, so the command is
// already waiting when the data ends.
func (c *mockConn) aborted() bool {
	_ = c.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	defer c.conn.SetReadDeadline(time.Time{})

	line, err := c.ReadLine()
	if err != nil {
		return false
	}
	c.s.mu.Lock()
	c.s.commands = append(c.s.commands, line)
	c.s.mu.Unlock()
	return strings.EqualFold(line, "ABOR")
}

// receiveData reads a whole upload after replying 150.
func (c *mockConn) receiveData() ([]byte, error) {
	_ = c.PrintfLine("150 Ok to send data.")
	conn, err := c.openData()
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return io.ReadAll(conn)
}
