package transport

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Response is a reply read from the control connection.
type Response struct {
	// Code is the three-digit reply code (e.g., 220, 550)
	Code int

	// Message is the reply text, without codes; lines of a multi-line
	// reply are joined with "\n".
	Message string

	// Lines holds the raw reply lines.
	Lines []string
}

// Is1xx reports a positive preliminary reply.
func (r *Response) Is1xx() bool {
	return r.Code >= 100 && r.Code < 200
}

// Is2xx reports a positive completion reply.
func (r *Response) Is2xx() bool {
	return r.Code >= 200 && r.Code < 300
}

func (r *Response) String() string {
	return strings.Join(r.Lines, "\n")
}

// readResponse reads a complete reply, single or multi-line:
//
//	"220 Welcome\r\n"
//
//	"220-Welcome to FTP\r\n"
//	"220-This is line 2\r\n"
//	"220 Ready\r\n"
func readResponse(r *bufio.Reader) (*Response, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}

	line = strings.TrimRight(line, "\r\n")
	if len(line) < 4 {
		// "220" alone is accepted as a reply without text.
		if len(line) == 3 {
			if code, err := strconv.Atoi(line); err == nil {
				return &Response{Code: code, Lines: []string{line}}, nil
			}
		}
		return nil, fmt.Errorf("invalid response line: %q", line)
	}

	code, err := strconv.Atoi(line[0:3])
	if err != nil {
		return nil, fmt.Errorf("invalid response code: %q", line[0:3])
	}

	lines := []string{line}
	switch line[3] {
	case ' ':
		return &Response{Code: code, Message: line[4:], Lines: lines}, nil
	case '-':
	default:
		return nil, fmt.Errorf("invalid response format: %q", line)
	}

	if err := readMultiLine(r, code, &lines); err != nil {
		return nil, err
	}

	prefix := line[0:3]
	var message []string
	for _, l := range lines {
		if len(l) >= 4 && l[0:3] == prefix && (l[3] == '-' || l[3] == ' ') {
			l = l[4:]
		} else {
			l = strings.TrimSpace(l)
		}
		if l != "" {
			message = append(message, l)
		}
	}
	return &Response{Code: code, Message: strings.Join(message, "\n"), Lines: lines}, nil
}

func readMultiLine(r *bufio.Reader, code int, lines *[]string) error {
	codeStr := fmt.Sprintf("%03d", code)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return fmt.Errorf("unexpected EOF reading response")
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		// RFC 2389 continuation lines start with a space.
		if len(line) > 0 && line[0] == ' ' {
			*lines = append(*lines, line)
			continue
		}
		// Servers may send free text inside a multi-line reply; only a line
		// starting with the code ends or continues it.
		if len(line) < 4 || line[0:3] != codeStr {
			*lines = append(*lines, line)
			continue
		}

		*lines = append(*lines, line)
		if line[3] == ' ' {
			return nil
		}
	}
}

// controlConn is the control connection of one stream.
type controlConn struct {
	conn   net.Conn
	reader *bufio.Reader
	host   string
	logger *zap.Logger
}

func newControlConn(conn net.Conn, host string, t *Transport) *controlConn {
	conn = withDeadline(conn, t.timeout)
	return &controlConn{
		conn:   conn,
		reader: bufio.NewReader(conn),
		host:   host,
		logger: t.logger,
	}
}

// greeting reads the server's 220 welcome, skipping 120 "ready in n minutes"
// notices.
func (c *controlConn) greeting() error {
	for {
		resp, err := c.readReply()
		if err != nil {
			return fmt.Errorf("failed to read greeting: %w", err)
		}
		if resp.Code == 120 {
			continue
		}
		if resp.Code != 220 {
			return protocolError("CONNECT", resp)
		}
		return nil
	}
}

func (c *controlConn) readReply() (*Response, error) {
	resp, err := readResponse(c.reader)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("ftp response", zap.Int("code", resp.Code), zap.String("message", resp.Message))
	return resp, nil
}

// sendCommand sends a command and reads its reply.
func (c *controlConn) sendCommand(command string, args ...string) (*Response, error) {
	cmd := command
	if len(args) > 0 {
		cmd = command + " " + strings.Join(args, " ")
	}

	if command == "PASS" {
		c.logger.Debug("ftp command", zap.String("cmd", "PASS ****"))
	} else {
		c.logger.Debug("ftp command", zap.String("cmd", cmd))
	}

	if _, err := fmt.Fprintf(c.conn, "%s\r\n", cmd); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	resp, err := c.readReply()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, nil
}

// expect2xx sends a command and fails unless the reply is 2xx.
func (c *controlConn) expect2xx(command string, args ...string) (*Response, error) {
	resp, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}
	if !resp.Is2xx() {
		return resp, protocolError(command, resp)
	}
	return resp, nil
}

// login authenticates with USER and, if asked for, PASS.
func (c *controlConn) login(username, password string) error {
	resp, err := c.sendCommand("USER", username)
	if err != nil {
		return err
	}
	if resp.Code == 230 {
		return nil
	}
	if resp.Code != 331 {
		return protocolError("USER", resp)
	}

	resp, err = c.sendCommand("PASS", password)
	if err != nil {
		return err
	}
	// 202: superfluous password.
	if resp.Code != 230 && resp.Code != 202 {
		return protocolError("PASS", resp)
	}
	return nil
}

// size returns the size of path from SIZE, if the server supports it.
func (c *controlConn) size(path string) (int64, bool) {
	resp, err := c.sendCommand("SIZE", path)
	if err != nil || resp.Code != 213 {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(resp.Message), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// abort interrupts the transfer running on data. ABOR is sent before the
// data connection is dropped, so the server does not take the end of the
// data for a complete transfer. The server answers with a 4xx for the
// transfer, unless start was already its final reply, then with the ABOR
// reply.
func (c *controlConn) abort(data net.Conn, start *Response) error {
	c.logger.Debug("ftp command", zap.String("cmd", "ABOR"))
	_, err := fmt.Fprintf(c.conn, "ABOR\r\n")
	data.Close()
	if err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}

	resp, err := c.readReply()
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if (start == nil || !start.Is2xx()) && !resp.Is2xx() {
		// That was the reply for the interrupted transfer.
		if resp, err = c.readReply(); err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
	}
	if !resp.Is2xx() {
		return protocolError("ABOR", resp)
	}
	return nil
}

// quit sends QUIT, ignoring its reply, and closes the connection.
func (c *controlConn) quit() error {
	_, _ = c.sendCommand("QUIT")
	return c.conn.Close()
}

func (c *controlConn) close() error {
	return c.conn.Close()
}
