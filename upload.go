package asyncftp

import (
	"io"
	"os"

	"go.uber.org/zap"
)

// UploadOperation stores a local file at a remote path.
type UploadOperation struct {
	*StreamOperation
	h *uploadHandler
}

// NewUploadOperation returns a Ready operation uploading the file at
// localPath to path, relative to the base URL of cfg, through t.
func NewUploadOperation(cfg *Configuration, t Transport, localPath, path string, opts ...Option) *UploadOperation {
	s := newSettings(opts)
	h := &uploadHandler{
		writeStream: writeStream{transport: t},
		localPath:   localPath,
		progress:    s.progress,
	}
	op := NewStreamOperation("upload", cfg, path, h, opts...)
	h.logger = op.logger
	return &UploadOperation{StreamOperation: op, h: h}
}

// LocalPath returns the file being uploaded.
func (u *UploadOperation) LocalPath() string {
	return u.h.localPath
}

// Offset returns the number of bytes the transport accepted. It is final once
// the operation is Finished.
func (u *UploadOperation) Offset() int64 {
	if !u.IsFinished() {
		return 0
	}
	return u.h.offset
}

type uploadHandler struct {
	BaseHandler
	writeStream

	localPath string
	progress  ProgressFunc
	logger    *zap.Logger
	file      *os.File
	size      int64
	offset    int64
}

func (h *uploadHandler) Prepare(op *StreamOperation) (Stream, error) {
	f, err := os.Open(h.localPath)
	if err != nil {
		return nil, localIOError("open", h.localPath, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, localIOError("stat", h.localPath, err)
	}
	h.file = f
	h.size = fi.Size()
	return h.outputStream(op), nil
}

// SpaceAvailable writes one chunk read at the current offset. It returns
// io.EOF once the whole file was accepted or the transport refuses more data.
func (h *uploadHandler) SpaceAvailable(s OutputStream) error {
	buf := h.scratch()
	n, err := h.file.ReadAt(buf, h.offset)
	if err != nil && err != io.EOF {
		return localIOError("read", h.localPath, err)
	}
	if n == 0 {
		return io.EOF
	}

	written, err := s.Write(buf[:n])
	if written <= 0 {
		if err != nil {
			return err
		}
		h.logger.Debug("transport refused write", zap.Int64("offset", h.offset))
		return io.EOF
	}

	h.offset += int64(written)
	if h.progress != nil {
		h.progress(h.offset)
	}
	if h.offset >= h.size {
		return io.EOF
	}
	return nil
}

func (h *uploadHandler) End(Stream) error {
	h.closeFile()
	h.logger.Debug("upload complete", zap.Int64("bytes", h.offset))
	return nil
}

func (h *uploadHandler) Failed(Stream, error) {
	h.closeFile()
}

func (h *uploadHandler) closeFile() {
	if h.file != nil {
		h.file.Close()
		h.file = nil
	}
}
