package asyncftp

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/gonzalop/asyncftp/listing"
)

// ListOperation retrieves and decodes the listing of a remote directory.
type ListOperation struct {
	*StreamOperation
	h *listHandler
}

// NewListOperation returns a Ready operation listing the directory path,
// relative to the base URL of cfg, through t. A trailing slash is added to
// path if missing; the listed entries' Path is path joined with their name.
func NewListOperation(cfg *Configuration, t Transport, path string, opts ...Option) *ListOperation {
	s := newSettings(opts)
	if path != "" && !strings.HasSuffix(path, "/") {
		path += "/"
	}
	decoder := s.decoder
	if decoder == nil {
		decoder = listing.NewDecoder()
	}
	h := &listHandler{
		readStream: readStream{transport: t},
		parent:     path,
		decoder:    decoder,
		encoding:   cfg.Encoding(),
	}
	target := path
	if target == "" {
		target = "/"
	}
	op := NewStreamOperation("list", cfg, target, h, opts...)
	h.logger = op.logger
	return &ListOperation{StreamOperation: op, h: h}
}

// Resources returns the decoded entries, in listing order. It is nil until the
// operation finished without error.
func (l *ListOperation) Resources() []ResourceItem {
	if !l.IsFinished() || l.Err() != nil {
		return nil
	}
	return l.h.resources
}

type listHandler struct {
	BaseHandler
	readStream

	parent    string
	decoder   *listing.Decoder
	encoding  encoding.Encoding
	logger    *zap.Logger
	data      []byte
	resources []ResourceItem
}

func (h *listHandler) Prepare(op *StreamOperation) (Stream, error) {
	return h.inputStream(op), nil
}

func (h *listHandler) BytesAvailable(s InputStream) error {
	return h.drain(s, func(p []byte) error {
		h.data = append(h.data, p...)
		return nil
	})
}

func (h *listHandler) End(Stream) error {
	h.resources = h.decode(h.data)
	h.logger.Debug("listing decoded",
		zap.Int("bytes", len(h.data)),
		zap.Int("entries", len(h.resources)))
	h.data = nil
	return nil
}

// decode walks data entry by entry until the decoder consumes nothing.
func (h *listHandler) decode(data []byte) []ResourceItem {
	items := []ResourceItem{}
	for offset := 0; offset < len(data); {
		n, fields := h.decoder.Decode(data[offset:])
		if n <= 0 {
			if rest := len(data) - offset; rest > 0 {
				h.logger.Debug("ignoring undecodable listing tail", zap.Int("bytes", rest))
			}
			break
		}
		offset += n
		if fields == nil {
			continue
		}
		items = append(items, h.resourceItem(fields))
	}
	return items
}

func (h *listHandler) resourceItem(f *listing.Fields) ResourceItem {
	name := fixupName(f.Name, h.encoding)
	item := ResourceItem{
		Type:  ResourceTypeFromCode(f.Type),
		Name:  name,
		Link:  fixupName(f.Link, h.encoding),
		Date:  f.ModTime,
		Size:  f.Size,
		Mode:  f.Mode,
		Owner: fixupName(f.Owner, h.encoding),
		Group: fixupName(f.Group, h.encoding),
		Path:  name,
	}
	if h.parent != "" {
		item.Path = h.parent + name
	}
	return item
}

// fixupName converts a name, link target, owner or group decoded as listing.NameEncoding to enc by
// recovering its original bytes. The name is returned unchanged if the bytes
// are not valid in enc.
func fixupName(name string, enc encoding.Encoding) string {
	if enc == nil || enc == listing.NameEncoding {
		return name
	}
	raw, err := listing.NameEncoding.NewEncoder().Bytes([]byte(name))
	if err != nil {
		return name
	}
	if enc == unicode.UTF8 {
		if !utf8.Valid(raw) {
			return name
		}
		return string(raw)
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return name
	}
	return string(decoded)
}
