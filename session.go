package asyncftp

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Session runs operations against one server configuration through a shared
// Queue.
type Session struct {
	config    *Configuration
	transport Transport
	queue     *Queue
	opts      []Option
	logger    *zap.Logger
}

// NewSession returns a Session running at most limit operations at once.
// The options apply to every operation the session creates.
func NewSession(ctx context.Context, cfg *Configuration, t Transport, limit int, opts ...Option) *Session {
	s := newSettings(opts)
	return &Session{
		config:    cfg,
		transport: t,
		queue:     NewQueue(ctx, limit, s.logger),
		opts:      opts,
		logger:    s.logger,
	}
}

// Configuration returns the session configuration.
func (s *Session) Configuration() *Configuration { return s.config }

func (s *Session) options(extra []Option) []Option {
	return append(append([]Option(nil), s.opts...), extra...)
}

// StartList queues a listing of path and returns the operation.
func (s *Session) StartList(path string, opts ...Option) *ListOperation {
	op := NewListOperation(s.config, s.transport, path, s.options(opts)...)
	s.queue.Add(op)
	return op
}

// StartDownload queues a download of path and returns the operation.
func (s *Session) StartDownload(path string, opts ...Option) *DownloadOperation {
	op := NewDownloadOperation(s.config, s.transport, path, s.options(opts)...)
	s.queue.Add(op)
	return op
}

// StartUpload queues an upload of localPath to path and returns the
// operation.
func (s *Session) StartUpload(localPath, path string, opts ...Option) *UploadOperation {
	op := NewUploadOperation(s.config, s.transport, localPath, path, s.options(opts)...)
	s.queue.Add(op)
	return op
}

// List lists the directory path and waits for the result.
func (s *Session) List(ctx context.Context, path string, opts ...Option) ([]ResourceItem, error) {
	op := s.StartList(path, opts...)
	if err := op.Wait(ctx); err != nil {
		return nil, errors.Wrapf(err, "list %s", op.URL())
	}
	return op.Resources(), nil
}

// Download downloads path and waits for it. It returns the path of the local
// temporary file, which the caller owns.
func (s *Session) Download(ctx context.Context, path string, opts ...Option) (string, error) {
	op := s.StartDownload(path, opts...)
	if err := op.Wait(ctx); err != nil {
		return "", errors.Wrapf(err, "download %s", op.URL())
	}
	return op.LocalPath(), nil
}

// Upload uploads localPath to path and waits for it.
func (s *Session) Upload(ctx context.Context, localPath, path string, opts ...Option) error {
	op := s.StartUpload(localPath, path, opts...)
	if err := op.Wait(ctx); err != nil {
		return errors.Wrapf(err, "upload %s", op.URL())
	}
	return nil
}

// Wait blocks until every queued operation finished and returns their
// combined errors.
func (s *Session) Wait() error {
	return s.queue.Wait()
}

// Cancel cancels every queued and running operation.
func (s *Session) Cancel() {
	s.queue.CancelAll()
}
