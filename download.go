package asyncftp

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DownloadOperation retrieves a remote file into a new local temporary file.
//
// On success LocalPath names the file, which then belongs to the caller. On
// failure or cancellation the partial file is removed.
type DownloadOperation struct {
	*StreamOperation
	h *downloadHandler
}

// NewDownloadOperation returns a Ready operation downloading path, relative to
// the base URL of cfg, through t.
func NewDownloadOperation(cfg *Configuration, t Transport, path string, opts ...Option) *DownloadOperation {
	s := newSettings(opts)
	h := &downloadHandler{
		readStream: readStream{transport: t},
		tempDir:    s.tempDir,
		progress:   s.progress,
		expected:   -1,
	}
	op := NewStreamOperation("download", cfg, path, h, opts...)
	h.logger = op.logger
	return &DownloadOperation{StreamOperation: op, h: h}
}

// LocalPath returns the downloaded file, or "" if the operation has not
// finished or failed.
func (d *DownloadOperation) LocalPath() string {
	if !d.IsFinished() || d.Err() != nil {
		return ""
	}
	return d.h.localPath
}

// BytesWritten returns the number of bytes written to the local file. It is
// final once the operation is Finished.
func (d *DownloadOperation) BytesWritten() int64 {
	if !d.IsFinished() {
		return 0
	}
	return d.h.written.Total()
}

// ExpectedSize returns the size of the remote file if the transport reported
// it, or -1. It is final once the operation is Finished.
func (d *DownloadOperation) ExpectedSize() int64 {
	if !d.IsFinished() {
		return -1
	}
	return d.h.expected
}

type downloadHandler struct {
	BaseHandler
	readStream

	tempDir   string
	progress  ProgressFunc
	logger    *zap.Logger
	file      *os.File
	written   ProgressWriter
	localPath string
	expected  int64
}

func (h *downloadHandler) Prepare(op *StreamOperation) (Stream, error) {
	dir := h.tempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, uuid.NewString())
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, localIOError("create", path, err)
	}
	h.file = f
	h.localPath = path
	h.written = ProgressWriter{Writer: f, Callback: h.progress}
	h.logger.Debug("created download file", zap.String("local_path", path))
	return h.inputStream(op), nil
}

func (h *downloadHandler) OpenCompleted(s Stream) error {
	if sizer, ok := s.(ResourceSizer); ok {
		if size, ok := sizer.ResourceSize(); ok {
			h.expected = size
		}
	}
	return nil
}

func (h *downloadHandler) BytesAvailable(s InputStream) error {
	return h.drain(s, func(p []byte) error {
		if _, err := h.written.Write(p); err != nil {
			return localIOError("write", h.localPath, err)
		}
		return nil
	})
}

func (h *downloadHandler) End(Stream) error {
	if h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	if err != nil {
		return h.discard(localIOError("close", h.localPath, err))
	}
	h.logger.Debug("download complete", zap.Int64("bytes", h.written.Total()))
	return nil
}

func (h *downloadHandler) Failed(_ Stream, err error) {
	if h.file != nil {
		h.file.Close()
		h.file = nil
	}
	h.discard(err)
}

// discard removes the partial file and returns err.
func (h *downloadHandler) discard(err error) error {
	if h.localPath == "" {
		return err
	}
	if rerr := os.Remove(h.localPath); rerr != nil && !os.IsNotExist(rerr) {
		h.logger.Warn("removing partial download", zap.String("local_path", h.localPath), zap.Error(rerr))
	}
	h.localPath = ""
	return err
}
