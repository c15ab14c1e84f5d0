package listing

import (
	"strconv"
	"strings"
	"time"
)

// UnixParser parses ls -l style entries.
//
// It handles both 9-field (with group) and 8-field (without group) layouts,
// symbolic and numeric permissions, device entries ("major, minor" in place of
// the size) and symlinks written as "name -> target".
type UnixParser struct {
	// Now returns the reference time used to pick the year of recent entries,
	// which ls prints as "Mon DD HH:MM". Defaults to time.Now.
	Now func() time.Time

	// Location is the zone listing times are interpreted in. Defaults to UTC.
	Location *time.Location
}

// span is a whitespace separated field and its byte offset in the line.
type span struct {
	text  string
	start int
}

func splitSpans(line string) []span {
	var spans []span
	start := -1
	for i := 0; i < len(line); i++ {
		if line[i] == ' ' || line[i] == '\t' {
			if start >= 0 {
				spans = append(spans, span{text: line[start:i], start: start})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, span{text: line[start:], start: start})
	}
	return spans
}

func (p *UnixParser) Parse(line string) (*Fields, bool) {
	spans := splitSpans(line)
	if len(spans) < 8 {
		return nil, false
	}

	entryType, mode, ok := parsePerms(spans[0].text)
	if !ok {
		return nil, false
	}

	// Layouts to try, as offsets of owner/group/size/date/name fields.
	// 9-field: perms links owner group size month day time name
	// 8-field: perms links owner size month day time name
	layouts := []struct {
		group int
		size  int
	}{
		{group: 3, size: 4},
		{group: -1, size: 3},
	}

	for _, l := range layouts {
		sizeIdx := l.size
		if sizeIdx >= len(spans) {
			continue
		}

		var size int64
		dateIdx := sizeIdx + 1
		if entryType == TypeChar || entryType == TypeBlock {
			// Device entries print "major, minor" instead of a size.
			if strings.HasSuffix(spans[sizeIdx].text, ",") {
				dateIdx = sizeIdx + 2
			} else if strings.Contains(spans[sizeIdx].text, ",") {
				dateIdx = sizeIdx + 1
			} else if _, err := parseSize(spans[sizeIdx].text); err != nil {
				continue
			}
		} else {
			s, err := parseSize(spans[sizeIdx].text)
			if err != nil {
				continue
			}
			size = s
		}

		nameIdx := dateIdx + 3
		if nameIdx >= len(spans) {
			continue
		}

		modTime, ok := p.parseDate(spans[dateIdx].text, spans[dateIdx+1].text, spans[dateIdx+2].text)
		if !ok {
			continue
		}

		fields := &Fields{
			Type:    entryType,
			Mode:    mode,
			Owner:   spans[2].text,
			Size:    size,
			ModTime: modTime,
		}
		if l.group >= 0 {
			fields.Group = spans[l.group].text
		}

		fullName := line[spans[nameIdx].start:]
		if entryType == TypeLink {
			if before, after, found := strings.Cut(fullName, " -> "); found {
				fields.Name = before
				fields.Link = after
			} else {
				fields.Name = fullName
			}
		} else {
			fields.Name = fullName
		}

		return fields, true
	}

	return nil, false
}

// parsePerms parses symbolic ("drwxr-xr-x") or numeric ("644") permissions.
func parsePerms(perms string) (int, uint32, bool) {
	if perms == "" {
		return TypeUnknown, 0, false
	}

	if len(perms) >= 3 && len(perms) <= 4 {
		if m, err := strconv.ParseUint(perms, 8, 32); err == nil {
			// Numeric permissions carry no type information.
			return TypeRegular, uint32(m), true
		}
	}

	var entryType int
	switch perms[0] {
	case '-':
		entryType = TypeRegular
	case 'd':
		entryType = TypeDir
	case 'l':
		entryType = TypeLink
	case 'p':
		entryType = TypeFIFO
	case 'c':
		entryType = TypeChar
	case 'b':
		entryType = TypeBlock
	case 's':
		entryType = TypeSocket
	case 'w':
		entryType = TypeWhiteout
	default:
		return TypeUnknown, 0, false
	}

	// Trailing '+' or '@' markers (ACLs, xattrs) are ignored.
	if len(perms) < 10 {
		return TypeUnknown, 0, false
	}

	var mode uint32
	bits := perms[1:10]
	for i, ch := range bits {
		shift := uint(8 - i)
		switch ch {
		case 'r', 'w', 'x':
			mode |= 1 << shift
		case 's':
			mode |= 1 << shift
			mode |= specialBit(i)
		case 'S':
			mode |= specialBit(i)
		case 't':
			mode |= 1 << shift
			mode |= specialBit(i)
		case 'T':
			mode |= specialBit(i)
		case '-':
		default:
			return TypeUnknown, 0, false
		}
	}

	return entryType, mode, true
}

// specialBit maps the execute position of a permission triplet to the
// setuid, setgid or sticky bit.
func specialBit(pos int) uint32 {
	switch pos {
	case 2:
		return 0o4000
	case 5:
		return 0o2000
	case 8:
		return 0o1000
	}
	return 0
}

// parseDate parses "Mon DD HH:MM" or "Mon DD YYYY".
func (p *UnixParser) parseDate(month, day, timeOrYear string) (time.Time, bool) {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}

	m, err := time.Parse("Jan", month)
	if err != nil {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return time.Time{}, false
	}

	if hh, mm, found := strings.Cut(timeOrYear, ":"); found {
		hour, err1 := strconv.Atoi(hh)
		minute, err2 := strconv.Atoi(mm)
		if err1 != nil || err2 != nil || hour > 23 || minute > 59 {
			return time.Time{}, false
		}

		now := time.Now
		if p.Now != nil {
			now = p.Now
		}
		ref := now().In(loc)

		t := time.Date(ref.Year(), m.Month(), d, hour, minute, 0, 0, loc)
		// ls omits the year for entries from the last six months, so a date
		// ahead of now belongs to the previous year.
		if t.After(ref.Add(24 * time.Hour)) {
			t = t.AddDate(-1, 0, 0)
		}
		return t, true
	}

	year, err := strconv.Atoi(timeOrYear)
	if err != nil || year < 1000 {
		return time.Time{}, false
	}
	return time.Date(year, m.Month(), d, 0, 0, 0, 0, loc), true
}

// parseSize parses a size string from a directory listing.
func parseSize(sizeStr string) (int64, error) {
	return strconv.ParseInt(sizeStr, 10, 64)
}
