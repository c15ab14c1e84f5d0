package transport

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"
)

var (
	// pasvRegex matches the PASV reply: 227 Entering Passive Mode (h1,h2,h3,h4,p1,p2)
	pasvRegex = regexp.MustCompile(`\((\d+),(\d+),(\d+),(\d+),(\d+),(\d+)\)`)

	// epsvRegex matches the EPSV reply: 229 Entering Extended Passive Mode (|||port|)
	epsvRegex = regexp.MustCompile(`\(\|\|\|(\d+)\|\)`)
)

// parsePASV returns the data address of a PASV reply.
// "227 Entering Passive Mode (192,168,1,1,195,149)" gives "192.168.1.1:50069".
func parsePASV(response string) (string, error) {
	matches := pasvRegex.FindStringSubmatch(response)
	if len(matches) != 7 {
		return "", fmt.Errorf("invalid PASV response: %s", response)
	}

	var parts [6]int
	for i := range parts {
		v, err := strconv.Atoi(matches[i+1])
		if err != nil || v < 0 || v > 255 {
			return "", fmt.Errorf("invalid PASV field: %s", matches[i+1])
		}
		parts[i] = v
	}

	host := fmt.Sprintf("%d.%d.%d.%d", parts[0], parts[1], parts[2], parts[3])
	port := parts[4]*256 + parts[5]
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// parseEPSV returns the port of an EPSV reply.
// "229 Entering Extended Passive Mode (|||6446|)" gives "6446".
func parseEPSV(response string) (string, error) {
	matches := epsvRegex.FindStringSubmatch(response)
	if len(matches) != 2 {
		return "", fmt.Errorf("invalid EPSV response: %s", response)
	}
	port, err := strconv.Atoi(matches[1])
	if err != nil || port <= 0 || port > 65535 {
		return "", fmt.Errorf("invalid EPSV port: %s", matches[1])
	}
	return matches[1], nil
}

// formatPORT formats an IPv4 address for PORT.
// "192.168.1.100:50000" gives "192,168,1,100,195,80".
func formatPORT(addr string) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return "", fmt.Errorf("invalid IP address: %s", host)
	}
	ip = ip.To4()
	if ip == nil {
		return "", fmt.Errorf("PORT requires IPv4 address")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", fmt.Errorf("invalid port: %s", portStr)
	}
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", ip[0], ip[1], ip[2], ip[3], port/256, port%256), nil
}

// formatEPRT formats an address for EPRT (RFC 2428): |proto|addr|port|
func formatEPRT(addr string) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return "", fmt.Errorf("invalid IP address: %s", host)
	}
	proto := 2
	if ip.To4() != nil {
		proto = 1
	}
	return fmt.Sprintf("|%d|%s|%s|", proto, host, portStr), nil
}

// resolveDataAddr replaces an unroutable PASV host (0.0.0.0) with the host of
// the control connection.
func resolveDataAddr(pasvAddr, controlHost string) string {
	host, port, err := net.SplitHostPort(pasvAddr)
	if err != nil {
		return pasvAddr
	}
	if host == "0.0.0.0" {
		return net.JoinHostPort(controlHost, port)
	}
	return pasvAddr
}

// dataOpener opens the data connection of a transfer.
type dataOpener struct {
	t       *Transport
	ctrl    *controlConn
	passive bool
}

// open prepares a data connection. In active mode the returned connection
// accepts the server's connection on first use.
func (d *dataOpener) open() (net.Conn, error) {
	if d.passive {
		return d.openPassive()
	}
	return d.openActive()
}

// openPassive tries EPSV, then PASV. A 502 reply to EPSV disables it for every
// later stream of the transport.
func (d *dataOpener) openPassive() (net.Conn, error) {
	var addr string

	if !d.t.epsvDisabled.Load() {
		resp, err := d.ctrl.sendCommand("EPSV")
		if err != nil {
			return nil, fmt.Errorf("EPSV failed: %w", err)
		}
		switch {
		case resp.Code == 502:
			d.t.logger.Debug("EPSV not implemented, using PASV from now on")
			d.t.epsvDisabled.Store(true)
		case resp.Is2xx():
			if port, err := parseEPSV(resp.String()); err == nil {
				addr = net.JoinHostPort(d.ctrl.host, port)
			}
		}
	}

	if addr == "" {
		resp, err := d.ctrl.expect2xx("PASV")
		if err != nil {
			return nil, err
		}
		addr, err = parsePASV(resp.String())
		if err != nil {
			return nil, err
		}
		addr = resolveDataAddr(addr, d.ctrl.host)
	}

	d.t.logger.Debug("opening data connection", zap.String("addr", addr))
	conn, err := d.t.dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to data port: %w", err)
	}
	return withDeadline(conn, d.t.timeout), nil
}

// openActive listens on the control connection's local address and announces
// it with PORT (IPv4) or EPRT (IPv6).
func (d *dataOpener) openActive() (net.Conn, error) {
	host, _, err := net.SplitHostPort(d.ctrl.conn.LocalAddr().String())
	if err != nil {
		host = "127.0.0.1"
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	addr := listener.Addr().String()
	cmd, arg := "PORT", ""
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		cmd = "EPRT"
		arg, err = formatEPRT(addr)
	} else {
		arg, err = formatPORT(addr)
	}
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to format %s command: %w", cmd, err)
	}

	if _, err := d.ctrl.expect2xx(cmd, arg); err != nil {
		listener.Close()
		return nil, err
	}
	return &activeDataConn{listener: listener, timeout: d.t.timeout}, nil
}

// activeDataConn accepts the server's data connection on first use.
type activeDataConn struct {
	listener net.Listener
	conn     net.Conn
	timeout  time.Duration
}

func (a *activeDataConn) accept() error {
	if a.conn != nil {
		return nil
	}
	if a.timeout > 0 {
		if l, ok := a.listener.(*net.TCPListener); ok {
			_ = l.SetDeadline(time.Now().Add(a.timeout))
		}
	}
	c, err := a.listener.Accept()
	if err != nil {
		return err
	}
	a.conn = withDeadline(c, a.timeout)
	return nil
}

func (a *activeDataConn) Read(p []byte) (int, error) {
	if err := a.accept(); err != nil {
		return 0, err
	}
	return a.conn.Read(p)
}

func (a *activeDataConn) Write(p []byte) (int, error) {
	if err := a.accept(); err != nil {
		return 0, err
	}
	return a.conn.Write(p)
}

func (a *activeDataConn) Close() error {
	var err error
	if a.conn != nil {
		err = a.conn.Close()
	}
	if lerr := a.listener.Close(); err == nil {
		err = lerr
	}
	return err
}

func (a *activeDataConn) LocalAddr() net.Addr {
	if a.conn != nil {
		return a.conn.LocalAddr()
	}
	return a.listener.Addr()
}

func (a *activeDataConn) RemoteAddr() net.Addr {
	if a.conn != nil {
		return a.conn.RemoteAddr()
	}
	return nil
}

func (a *activeDataConn) SetDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetDeadline(t)
	}
	return nil
}

func (a *activeDataConn) SetReadDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetReadDeadline(t)
	}
	return nil
}

func (a *activeDataConn) SetWriteDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetWriteDeadline(t)
	}
	return nil
}

// startTransfer opens the data connection and sends the transfer command.
// The server must answer 1xx (transfer starting) or 2xx.
func (d *dataOpener) startTransfer(command string, args ...string) (net.Conn, *Response, error) {
	conn, err := d.open()
	if err != nil {
		return nil, nil, err
	}

	resp, err := d.ctrl.sendCommand(command, args...)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if !resp.Is1xx() && !resp.Is2xx() {
		conn.Close()
		return nil, resp, protocolError(command, resp)
	}
	return conn, resp, nil
}

// finishTransfer closes the data connection and reads the final reply of
// command, unless the server already sent it with start.
func (d *dataOpener) finishTransfer(conn net.Conn, command string, start *Response) error {
	if err := conn.Close(); err != nil {
		d.t.logger.Debug("closing data connection", zap.Error(err))
	}
	if start != nil && start.Is2xx() {
		return nil
	}

	resp, err := d.ctrl.readReply()
	if err != nil {
		return fmt.Errorf("failed to read completion response: %w", err)
	}
	if !resp.Is2xx() {
		return protocolError(command, resp)
	}
	return nil
}
