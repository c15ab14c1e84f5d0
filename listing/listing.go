// Package listing decodes FTP directory listings one entry at a time.
//
// A listing arrives as an undelimited byte stream whose format depends on the
// server. The Decoder consumes one line per call and reports how many bytes it
// used, so callers can walk an accumulated buffer without any framing of their
// own:
//
//	for offset := 0; ; {
//	    n, fields := listing.Decode(buf[offset:])
//	    if n == 0 {
//	        break
//	    }
//	    offset += n
//	    if fields != nil {
//	        // use fields
//	    }
//	}
//
// Supported grammars, tried in order for every line:
//
//   - EPLF: +facts\tname or +facts name
//   - MLSD (RFC 3659): fact=value;fact=value; name
//   - DOS/Windows: MM-DD-YY HH:MMAM/PM size|<DIR> filename
//   - Unix-style: perms links owner [group] size month day time/year name
//
// Names, link targets, owners and groups are decoded as Mac OS Roman, matching the behaviour of the platform
// listing parsers this package replaces. Callers that know the server's real
// text encoding re-encode the name with NameEncoding and decode it again.
package listing

import (
	"bytes"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
)

// Directory entry type codes, values defined in sys/dirent.h.
const (
	TypeUnknown  = 0  // DT_UNKNOWN
	TypeFIFO     = 1  // DT_FIFO
	TypeChar     = 2  // DT_CHR
	TypeDir      = 4  // DT_DIR
	TypeBlock    = 6  // DT_BLK
	TypeRegular  = 8  // DT_REG
	TypeLink     = 10 // DT_LNK
	TypeSocket   = 12 // DT_SOCK
	TypeWhiteout = 14 // DT_WHT
)

// NameEncoding is the single-byte encoding every decoded Name is produced in.
var NameEncoding = charmap.Macintosh

// Fields is one decoded listing entry.
type Fields struct {
	// Name is the entry name, decoded as NameEncoding.
	Name string

	// Link is the symlink target (empty if none). Link, Owner and Group are
	// decoded like Name.
	Link string

	// Type is a DT_* code (see TypeDir, TypeRegular, ...)
	Type int

	// Mode holds the permission bits, including setuid/setgid/sticky.
	Mode uint32

	Owner string
	Group string
	Size  int64

	// ModTime is the modification time (zero if the listing carries none)
	ModTime time.Time
}

// LineParser parses a single listing line.
//
// It returns ok=false if the line is not in the parser's format. A parser may
// return (nil, true) for lines it recognizes but that describe no entry, such
// as the MLSD cdir and pdir facts.
type LineParser interface {
	Parse(line string) (*Fields, bool)
}

// Decoder decodes a listing buffer one entry at a time.
type Decoder struct {
	parsers []LineParser
}

// NewDecoder returns a Decoder trying parsers in order. With no parsers it uses
// the built-in EPLF, MLSD, DOS and Unix parsers.
func NewDecoder(parsers ...LineParser) *Decoder {
	if len(parsers) == 0 {
		parsers = DefaultParsers()
	}
	return &Decoder{parsers: parsers}
}

// DefaultParsers returns the built-in parsers in the order they are tried.
func DefaultParsers() []LineParser {
	return []LineParser{
		&EPLFParser{},
		&MLSDParser{},
		&DOSParser{},
		&UnixParser{},
	}
}

var defaultDecoder = NewDecoder()

// Decode decodes the first entry of data with the default parsers.
func Decode(data []byte) (int, *Fields) {
	return defaultDecoder.Decode(data)
}

// Decode consumes the first line of data.
//
// It returns the number of bytes consumed and the decoded entry. A positive
// count with nil fields means the line carried no entry (blank lines, "total"
// headers, MLSD cdir/pdir). A count of zero means nothing more can be decoded:
// data is empty, or its first line is in no known format. An unterminated final
// line is consumed only if it parses. The count never exceeds len(data).
func (d *Decoder) Decode(data []byte) (int, *Fields) {
	if len(data) == 0 {
		return 0, nil
	}

	var line []byte
	var n int
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
		n = i + 1
	} else {
		line = data
		n = len(data)
	}

	text := strings.TrimRight(string(line), "\r")
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || isTotalLine(trimmed) {
		return n, nil
	}

	// Blanks before the first field are layout; trailing ones may be part of
	// the name.
	text = strings.TrimLeft(text, " \t")
	for _, p := range d.parsers {
		fields, ok := p.Parse(text)
		if !ok {
			continue
		}
		if fields != nil {
			fields.Name = decodeName(fields.Name)
			fields.Link = decodeName(fields.Link)
			fields.Owner = decodeName(fields.Owner)
			fields.Group = decodeName(fields.Group)
		}
		return n, fields
	}

	return 0, nil
}

// isTotalLine reports whether line is the "total N" header of ls -l output.
func isTotalLine(line string) bool {
	f := strings.Fields(line)
	if len(f) != 2 || !strings.EqualFold(f[0], "total") {
		return false
	}
	_, err := parseSize(f[1])
	return err == nil
}

func decodeName(raw string) string {
	s, err := NameEncoding.NewDecoder().String(raw)
	if err != nil {
		return raw
	}
	return s
}
