package transport

import (
	"net"
	"time"
)

// deadlineConn sets a fresh read or write deadline before every operation,
// so a stalled peer fails the transfer after timeout of inactivity.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func withDeadline(c net.Conn, timeout time.Duration) net.Conn {
	if timeout <= 0 {
		return c
	}
	return &deadlineConn{Conn: c, timeout: timeout}
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}
