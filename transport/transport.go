package transport

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gonzalop/asyncftp"
)

const defaultPort = "21"

// Transport creates FTP streams. Every stream uses its own control
// connection, dialed when the stream is opened.
//
// A Transport is safe for concurrent use.
type Transport struct {
	timeout     time.Duration
	dialer      *net.Dialer
	logger      *zap.Logger
	listCommand string
	bandwidth   int64

	// epsvDisabled is set by WithDisableEPSV or once a server answered EPSV
	// with 502.
	epsvDisabled atomic.Bool
}

// New returns a Transport configured by the options.
//
// Example:
//
//	t, err := transport.New(
//	    transport.WithTimeout(10*time.Second),
//	    transport.WithBandwidthLimit(512*1024),
//	)
func New(options ...Option) (*Transport, error) {
	t := &Transport{
		timeout:     30 * time.Second,
		dialer:      &net.Dialer{},
		logger:      zap.NewNop(),
		listCommand: "LIST",
	}
	for _, opt := range options {
		if err := opt(t); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if t.dialer.Timeout == 0 {
		t.dialer.Timeout = t.timeout
	}
	return t, nil
}

// NewInputStream returns a stream retrieving u: a listing if the path of u
// ends in "/", the file otherwise.
func (t *Transport) NewInputStream(u *url.URL) asyncftp.InputStream {
	s := &InputStream{}
	s.init(t, u)
	return s
}

// NewOutputStream returns a stream storing to the file at u.
func (t *Transport) NewOutputStream(u *url.URL) asyncftp.OutputStream {
	s := &OutputStream{}
	s.init(t, u)
	return s
}

// address returns host:port of u, defaulting to port 21.
func address(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// remotePath returns the path of u as sent to the server.
func remotePath(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

func isDirectory(u *url.URL) bool {
	return u.Path == "" || strings.HasSuffix(u.Path, "/")
}

var _ asyncftp.Transport = (*Transport)(nil)
