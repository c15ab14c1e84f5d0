package listing

import (
	"strconv"
	"strings"
	"time"
)

// EPLFParser parses EPLF (Easily Parsed LIST Format) entries.
// Format: +facts\tname or +facts name
// Facts are comma-separated, e.g.: i=inode, m=mtime, s=size, /, r, up=mode.
// Example: "+i8388621.48594,m825718503,r,s280,\tdjb.html"
type EPLFParser struct{}

func (p *EPLFParser) Parse(line string) (*Fields, bool) {
	if !strings.HasPrefix(line, "+") {
		return nil, false
	}
	line = line[1:]

	idx := strings.IndexAny(line, "\t ")
	if idx == -1 {
		return nil, false
	}
	facts := line[:idx]
	name := line[idx+1:]
	if name == "" {
		return nil, false
	}

	fields := &Fields{
		Name: name,
		Type: TypeRegular,
	}

	for fact := range strings.SplitSeq(facts, ",") {
		if fact == "" {
			continue
		}

		switch fact[0] {
		case '/':
			fields.Type = TypeDir
		case 's':
			if size, err := parseSize(fact[1:]); err == nil {
				fields.Size = size
			}
		case 'm':
			if secs, err := strconv.ParseInt(fact[1:], 10, 64); err == nil {
				fields.ModTime = time.Unix(secs, 0).UTC()
			}
		case 'u':
			if strings.HasPrefix(fact, "up") {
				if mode, err := strconv.ParseUint(fact[2:], 8, 32); err == nil {
					fields.Mode = uint32(mode)
				}
			}
		}
	}

	return fields, true
}
