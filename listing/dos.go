package listing

import (
	"strings"
	"time"
)

// DOSParser parses DOS/Windows-style directory entries.
//
// Examples:
//
//	12-14-23  12:22PM           1037794 large-document.pdf
//	09-24-24  10:30AM       <DIR>          logger
type DOSParser struct{}

func (p *DOSParser) Parse(line string) (*Fields, bool) {
	spans := splitSpans(line)
	if len(spans) < 4 {
		return nil, false
	}
	if !isDOSDate(spans[0].text) {
		return nil, false
	}

	modTime, ok := parseDOSTime(spans[0].text, spans[1].text)
	if !ok {
		return nil, false
	}

	fields := &Fields{
		Name:    line[spans[3].start:],
		ModTime: modTime,
	}

	if spans[2].text == "<DIR>" {
		fields.Type = TypeDir
		return fields, true
	}

	size, err := parseSize(spans[2].text)
	if err != nil {
		return nil, false
	}
	fields.Type = TypeRegular
	fields.Size = size
	return fields, true
}

// isDOSDate checks if a string looks like a DOS/Windows date format.
// Common formats: MM-DD-YY, MM-DD-YYYY, MM/DD/YY, MM/DD/YYYY
func isDOSDate(s string) bool {
	var parts []string
	if strings.Contains(s, "-") {
		parts = strings.Split(s, "-")
	} else if strings.Contains(s, "/") {
		parts = strings.Split(s, "/")
	} else {
		return false
	}

	if len(parts) != 3 {
		return false
	}

	// Month: 1-2 digits, Day: 1-2 digits, Year: 2 or 4 digits
	for i, part := range parts {
		if len(part) < 1 || len(part) > 4 {
			return false
		}
		if i == 2 && len(part) != 2 && len(part) != 4 {
			return false
		}
		if i < 2 && len(part) > 2 {
			return false
		}
		for _, ch := range part {
			if ch < '0' || ch > '9' {
				return false
			}
		}
	}
	return true
}

// parseDOSTime combines a DOS date and a "HH:MMAM" clock into a UTC time.
func parseDOSTime(date, clock string) (time.Time, bool) {
	date = strings.ReplaceAll(date, "/", "-")
	clock = strings.ToUpper(clock)

	layouts := []string{
		"1-2-06 3:04PM",
		"1-2-2006 3:04PM",
		"1-2-06 15:04",
		"1-2-2006 15:04",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, date+" "+clock); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
