package asyncftp

import (
	"go.uber.org/zap"

	"github.com/gonzalop/asyncftp/listing"
)

// Option is a functional option for configuring an operation.
type Option func(*settings)

type settings struct {
	logger   *zap.Logger
	progress ProgressFunc
	tempDir  string
	decoder  *listing.Decoder
}

func newSettings(opts []Option) settings {
	s := settings{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithLogger sets the logger for lifecycle and transfer events.
// By default nothing is logged.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProgress sets a callback receiving the total number of bytes
// transferred so far. It runs on the stream's event goroutine.
func WithProgress(fn ProgressFunc) Option {
	return func(s *settings) {
		s.progress = fn
	}
}

// WithTempDir sets the directory downloads are written to.
// The default is os.TempDir().
func WithTempDir(dir string) Option {
	return func(s *settings) {
		s.tempDir = dir
	}
}

// WithDecoder sets the listing decoder used by list operations.
func WithDecoder(d *listing.Decoder) Option {
	return func(s *settings) {
		s.decoder = d
	}
}
