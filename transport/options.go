package transport

import (
	"net"
	"time"

	"go.uber.org/zap"
)

// Option is a functional option for configuring a Transport.
type Option func(*Transport) error

// WithTimeout sets the timeout for connecting and for every read or write on
// the control and data connections. The default is 30 seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(t *Transport) error {
		t.timeout = timeout
		return nil
	}
}

// WithDialer sets a custom net.Dialer for control and data connections.
// This can be used to configure source addresses, keep-alive settings, etc.
func WithDialer(dialer *net.Dialer) Option {
	return func(t *Transport) error {
		t.dialer = dialer
		return nil
	}
}

// WithLogger enables debug logging of FTP commands and replies.
//
// Example:
//
//	logger, _ := zap.NewDevelopment()
//	t, _ := transport.New(transport.WithLogger(logger))
func WithLogger(logger *zap.Logger) Option {
	return func(t *Transport) error {
		if logger != nil {
			t.logger = logger
		}
		return nil
	}
}

// WithDisableEPSV makes passive streams use PASV directly.
// By default EPSV is tried first and PASV is the fallback.
func WithDisableEPSV() Option {
	return func(t *Transport) error {
		t.epsvDisabled.Store(true)
		return nil
	}
}

// WithMLSD lists directories with MLSD (RFC 3659) instead of LIST.
func WithMLSD() Option {
	return func(t *Transport) error {
		t.listCommand = "MLSD"
		return nil
	}
}

// WithBandwidthLimit limits every data connection of the transport to
// bytesPerSecond. Zero means unlimited.
func WithBandwidthLimit(bytesPerSecond int64) Option {
	return func(t *Transport) error {
		t.bandwidth = bytesPerSecond
		return nil
	}
}
