package listing

import (
	"strconv"
	"strings"
	"time"
)

// MLSDParser parses machine-readable entries as returned by MLSD (RFC 3659).
// Format: "fact1=value1;fact2=value2; entry-name"
type MLSDParser struct{}

func (p *MLSDParser) Parse(line string) (*Fields, bool) {
	// Find the space that separates facts from the name
	spaceIdx := strings.Index(line, " ")
	if spaceIdx <= 0 {
		return nil, false
	}

	factsStr := line[:spaceIdx]
	name := line[spaceIdx+1:]
	if !strings.Contains(factsStr, "=") || !strings.HasSuffix(factsStr, ";") || name == "" {
		return nil, false
	}

	facts := make(map[string]string)
	for pair := range strings.SplitSeq(factsStr, ";") {
		if pair == "" {
			continue
		}
		factName, factValue, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, false
		}
		facts[strings.ToLower(factName)] = factValue
	}

	fields := &Fields{Name: name}

	typeVal := strings.ToLower(facts["type"])
	switch {
	case typeVal == "cdir" || typeVal == "pdir":
		// The listed directory itself and its parent.
		return nil, true
	case typeVal == "dir":
		fields.Type = TypeDir
	case typeVal == "file":
		fields.Type = TypeRegular
	case strings.HasPrefix(typeVal, "os.unix=slink") || strings.HasPrefix(typeVal, "os.unix=symlink"):
		fields.Type = TypeLink
		// Some servers append the target: OS.unix=slink:/target
		if _, target, ok := strings.Cut(facts["type"], ":"); ok {
			fields.Link = target
		}
	case strings.HasPrefix(typeVal, "os.unix=chr"):
		fields.Type = TypeChar
	case strings.HasPrefix(typeVal, "os.unix=blk"):
		fields.Type = TypeBlock
	case strings.HasPrefix(typeVal, "os.unix=fifo"):
		fields.Type = TypeFIFO
	case strings.HasPrefix(typeVal, "os.unix=sock"):
		fields.Type = TypeSocket
	default:
		fields.Type = TypeUnknown
	}

	sizeVal, ok := facts["size"]
	if !ok {
		sizeVal = facts["sizd"]
	}
	if sizeVal != "" {
		if size, err := parseSize(sizeVal); err == nil {
			fields.Size = size
		}
	}

	if modifyVal, ok := facts["modify"]; ok {
		// Format: YYYYMMDDHHMMSS or YYYYMMDDHHMMSS.sss
		timestamp, _, _ := strings.Cut(modifyVal, ".")
		if len(timestamp) == 14 {
			// RFC 3659 Section 2.3: "Time values are always represented in UTC"
			if modTime, err := time.Parse("20060102150405", timestamp); err == nil {
				fields.ModTime = modTime.UTC()
			}
		}
	}

	if modeVal, ok := facts["unix.mode"]; ok {
		if mode, err := strconv.ParseUint(modeVal, 8, 32); err == nil {
			fields.Mode = uint32(mode)
		}
	}

	fields.Owner = firstFact(facts, "unix.owner", "unix.uid")
	fields.Group = firstFact(facts, "unix.group", "unix.gid")

	return fields, true
}

func firstFact(facts map[string]string, names ...string) string {
	for _, n := range names {
		if v, ok := facts[n]; ok {
			return v
		}
	}
	return ""
}
