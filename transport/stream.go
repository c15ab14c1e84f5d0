package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/gonzalop/asyncftp"
	"github.com/gonzalop/asyncftp/internal/ratelimit"
)

const (
	anonymousUser     = "anonymous"
	anonymousPassword = "anonymous@"

	// readBufferSize is the size of the reads from the data connection.
	readBufferSize = 32 * 1024
)

// ErrClosed is returned by Write on a closed stream.
var ErrClosed = errors.New("ftp: stream closed")

// stream is the state shared by input and output streams. Each stream runs
// one goroutine that speaks the protocol and delivers the events.
type stream struct {
	t      *Transport
	url    *url.URL
	logger *zap.Logger

	mu       sync.Mutex
	delegate asyncftp.StreamDelegate
	opts     asyncftp.StreamOptions
	opened   bool
	closed   bool
	err      error
	ctrl     *controlConn
	data     net.Conn
	limiter  *ratelimit.Limiter
	done     chan struct{}
}

func (s *stream) init(t *Transport, u *url.URL) {
	s.t = t
	s.url = u
	s.logger = t.logger.With(zap.String("url", u.Redacted()))
	s.done = make(chan struct{})
}

// SetDelegate implements asyncftp.Stream.
func (s *stream) SetDelegate(d asyncftp.StreamDelegate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegate = d
}

// SetOptions implements asyncftp.Stream.
func (s *stream) SetOptions(opts asyncftp.StreamOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = opts
}

// Err implements asyncftp.Stream.
func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) options() asyncftp.StreamOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// markOpened returns false if the stream was opened or closed before.
func (s *stream) markOpened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened || s.closed {
		return false
	}
	s.opened = true
	return true
}

func (s *stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// connect dials the server, logs in and selects the transfer type.
func (s *stream) connect(transferType string) (*controlConn, error) {
	addr := address(s.url)
	s.logger.Debug("connecting to ftp server", zap.String("addr", addr))

	conn, err := s.t.dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	ctrl := newControlConn(conn, s.url.Hostname(), s.t)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return nil, ErrClosed
	}
	s.ctrl = ctrl
	opts := s.opts
	s.mu.Unlock()

	if err := ctrl.greeting(); err != nil {
		return nil, err
	}

	user, pass := opts.Username, opts.Password
	if user == "" {
		user, pass = anonymousUser, anonymousPassword
	}
	if err := ctrl.login(user, pass); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if _, err := ctrl.expect2xx("TYPE", transferType); err != nil {
		return nil, err
	}
	return ctrl, nil
}

// attachData records the data connection so Close can release it. It
// returns false if the stream was closed meanwhile.
func (s *stream) attachData(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		conn.Close()
		return false
	}
	s.data = conn
	s.limiter = ratelimit.New(s.t.bandwidth)
	return true
}

// deliver passes ev to the delegate unless the stream was closed.
func (s *stream) deliver(self asyncftp.Stream, ev asyncftp.Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	d := s.delegate
	s.mu.Unlock()

	if d != nil {
		d.HandleEvent(self, ev)
	}
	return true
}

// fail records err and delivers EventErrorOccurred. Failures of a closed
// stream are the result of closing it and are not reported.
func (s *stream) fail(self asyncftp.Stream, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.err = err
	s.mu.Unlock()

	s.logger.Debug("stream failed", zap.Error(err))
	s.deliver(self, asyncftp.EventErrorOccurred)
}

// release marks the stream closed and returns what must be shut down. ok is
// false if the stream was closed already.
func (s *stream) release() (ctrl *controlConn, data net.Conn, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, false
	}
	s.closed = true
	close(s.done)
	s.limiter.Stop()
	ctrl, data = s.ctrl, s.data
	s.data = nil
	return ctrl, data, true
}

// InputStream retrieves a file (RETR) or a directory listing (LIST or
// MLSD) and delivers its bytes.
type InputStream struct {
	stream

	pending  []byte
	size     int64
	hasSize  bool
	finished bool
}

// Open implements asyncftp.Stream.
func (s *InputStream) Open() {
	if !s.markOpened() {
		return
	}
	go s.run()
}

func (s *InputStream) run() {
	dir := isDirectory(s.url)
	transferType, command := "I", "RETR"
	if dir {
		transferType, command = "A", s.t.listCommand
	}

	ctrl, err := s.connect(transferType)
	if err != nil {
		s.fail(s, err)
		return
	}

	opts := s.options()
	path := remotePath(s.url)
	if opts.FetchResourceInfo && !dir {
		if n, ok := ctrl.size(path); ok {
			s.mu.Lock()
			s.size, s.hasSize = n, true
			s.mu.Unlock()
		}
	}

	d := &dataOpener{t: s.t, ctrl: ctrl, passive: opts.Passive}
	conn, start, err := d.startTransfer(command, path)
	if err != nil {
		s.fail(s, err)
		return
	}
	if !s.attachData(conn) {
		return
	}
	if !s.deliver(s, asyncftp.EventOpenCompleted) {
		return
	}

	r := ratelimit.NewReader(conn, s.limiter)
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.pending = append(s.pending, buf[:n]...)
			s.mu.Unlock()
			if !s.deliver(s, asyncftp.EventHasBytesAvailable) {
				return
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			s.fail(s, fmt.Errorf("failed to read data: %w", err))
			return
		}
	}

	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
	if err := d.finishTransfer(conn, command, start); err != nil {
		s.fail(s, err)
		return
	}

	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
	s.logger.Debug("transfer complete")
	s.deliver(s, asyncftp.EventEndEncountered)
}

// Read implements asyncftp.InputStream.
func (s *InputStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	if len(s.pending) == 0 {
		s.pending = nil
	}
	return n, nil
}

// ResourceSize implements asyncftp.ResourceSizer. The size is known when the
// stream was opened with FetchResourceInfo and the server supports SIZE.
func (s *InputStream) ResourceSize() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size, s.hasSize
}

// Close implements asyncftp.Stream. After a complete transfer the control
// connection is closed with QUIT if CloseNativeSocket is set; otherwise the
// connections are dropped, aborting any transfer.
func (s *InputStream) Close() error {
	ctrl, data, ok := s.release()
	if !ok {
		return nil
	}
	if data != nil {
		data.Close()
	}
	if ctrl == nil {
		return nil
	}

	s.mu.Lock()
	graceful := s.finished && s.opts.CloseNativeSocket
	s.mu.Unlock()
	if graceful {
		_ = ctrl.quit()
		return nil
	}
	_ = ctrl.close()
	return nil
}

// OutputStream stores a file (STOR). It reports space available after each
// accepted write; Close completes the upload and returns the server's
// verdict.
type OutputStream struct {
	stream

	d       *dataOpener
	start   *Response
	w       io.Writer
	wrote   bool
	kick    chan struct{}
	failed  bool
	aborted bool
}

// Open implements asyncftp.Stream.
func (s *OutputStream) Open() {
	if !s.markOpened() {
		return
	}
	s.kick = make(chan struct{}, 1)
	go s.run()
}

func (s *OutputStream) run() {
	ctrl, err := s.connect("I")
	if err != nil {
		s.fail(s, err)
		return
	}

	opts := s.options()
	d := &dataOpener{t: s.t, ctrl: ctrl, passive: opts.Passive}
	conn, start, err := d.startTransfer("STOR", remotePath(s.url))
	if err != nil {
		s.fail(s, err)
		return
	}
	if !s.attachData(conn) {
		return
	}
	s.mu.Lock()
	s.d, s.start = d, start
	s.w = ratelimit.NewWriter(conn, s.limiter)
	s.mu.Unlock()

	if !s.deliver(s, asyncftp.EventOpenCompleted) {
		return
	}

	for {
		s.mu.Lock()
		err := s.err
		s.wrote = false
		s.mu.Unlock()

		if err != nil {
			s.deliver(s, asyncftp.EventErrorOccurred)
			return
		}
		if !s.deliver(s, asyncftp.EventHasSpaceAvailable) {
			return
		}

		s.mu.Lock()
		wrote := s.wrote
		s.mu.Unlock()
		if wrote {
			continue
		}
		// Nothing was written: wait for the next write before offering space
		// again.
		select {
		case <-s.kick:
		case <-s.done:
			return
		}
	}
}

// Write implements asyncftp.OutputStream.
func (s *OutputStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	w, closed := s.w, s.closed
	s.mu.Unlock()
	if closed || w == nil {
		return 0, ErrClosed
	}

	n, err := w.Write(p)

	s.mu.Lock()
	s.wrote = true
	if err != nil && s.err == nil {
		s.err = fmt.Errorf("failed to write data: %w", err)
		s.failed = true
	}
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
	return n, err
}

// Abort implements asyncftp.Aborter. A later Close interrupts the upload
// with ABOR instead of completing it.
func (s *OutputStream) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
}

// Close implements asyncftp.Stream. If the upload is in progress it closes
// the data connection and waits for the server to confirm the transfer; a
// negative reply is returned as a *ProtocolError. An aborted upload is
// interrupted with ABOR and the connections are dropped.
func (s *OutputStream) Close() error {
	ctrl, data, ok := s.release()
	if !ok {
		return nil
	}

	s.mu.Lock()
	d, start, failed, aborted, opts := s.d, s.start, s.failed || s.err != nil, s.aborted, s.opts
	s.mu.Unlock()

	if aborted {
		if data != nil && ctrl != nil && !failed {
			if err := ctrl.abort(data, start); err != nil {
				s.logger.Debug("aborting upload", zap.Error(err))
			}
		} else if data != nil {
			data.Close()
		}
		if ctrl != nil {
			_ = ctrl.close()
		}
		return nil
	}

	var err error
	if data != nil {
		if d != nil && !failed {
			err = d.finishTransfer(data, "STOR", start)
		} else {
			data.Close()
		}
	}
	if ctrl == nil {
		return err
	}
	if err == nil && !failed && data != nil && opts.CloseNativeSocket {
		_ = ctrl.quit()
	} else {
		_ = ctrl.close()
	}
	return err
}

var (
	_ asyncftp.InputStream   = (*InputStream)(nil)
	_ asyncftp.OutputStream  = (*OutputStream)(nil)
	_ asyncftp.ResourceSizer = (*InputStream)(nil)
	_ asyncftp.Aborter       = (*OutputStream)(nil)
)
