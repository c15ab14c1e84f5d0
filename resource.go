package asyncftp

import (
	"fmt"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"

	"github.com/gonzalop/asyncftp/listing"
)

// ResourceType is the kind of a remote directory entry.
type ResourceType int

const (
	ResourceUnknown ResourceType = iota
	ResourceDirectory
	ResourceRegularFile
	ResourceSymbolicLink
	ResourceNamedPipe
	ResourceCharacterDevice
	ResourceBlockDevice
	ResourceLocalDomainSocket
	ResourceWhiteout
)

var resourceTypeNames = [...]string{
	ResourceUnknown:           "Unknown",
	ResourceDirectory:         "Directory",
	ResourceRegularFile:       "RegularFile",
	ResourceSymbolicLink:      "SymbolicLink",
	ResourceNamedPipe:         "NamedPipe",
	ResourceCharacterDevice:   "CharacterDevice",
	ResourceBlockDevice:       "BlockDevice",
	ResourceLocalDomainSocket: "LocalDomainSocket",
	ResourceWhiteout:          "Whiteout",
}

func (t ResourceType) String() string {
	if t < 0 || int(t) >= len(resourceTypeNames) {
		return fmt.Sprintf("ResourceType(%d)", int(t))
	}
	return resourceTypeNames[t]
}

// ResourceTypeFromCode maps a POSIX DT_* directory entry code to a
// ResourceType. Unrecognized codes map to ResourceUnknown.
func ResourceTypeFromCode(code int) ResourceType {
	switch code {
	case listing.TypeDir:
		return ResourceDirectory
	case listing.TypeRegular:
		return ResourceRegularFile
	case listing.TypeLink:
		return ResourceSymbolicLink
	case listing.TypeFIFO:
		return ResourceNamedPipe
	case listing.TypeChar:
		return ResourceCharacterDevice
	case listing.TypeBlock:
		return ResourceBlockDevice
	case listing.TypeSocket:
		return ResourceLocalDomainSocket
	case listing.TypeWhiteout:
		return ResourceWhiteout
	}
	return ResourceUnknown
}

// ResourceItem describes one entry of a remote directory listing.
type ResourceItem struct {
	Type ResourceType
	Name string

	// Link is the target of a symbolic link.
	Link string

	// Date is the modification time, zero if the server sent none.
	Date time.Time

	Size int64

	// Mode holds the POSIX permission bits, including setuid, setgid and
	// sticky (0o4000, 0o2000, 0o1000).
	Mode uint32

	Owner string
	Group string

	// Path is the listed directory path joined with Name, or Name alone when
	// the listing had no path.
	Path string
}

// IsDir reports whether the entry is a directory.
func (r ResourceItem) IsDir() bool {
	return r.Type == ResourceDirectory
}

// FileMode converts Mode and Type to an os.FileMode.
func (r ResourceItem) FileMode() os.FileMode {
	m := os.FileMode(r.Mode & 0o777)
	if r.Mode&0o4000 != 0 {
		m |= os.ModeSetuid
	}
	if r.Mode&0o2000 != 0 {
		m |= os.ModeSetgid
	}
	if r.Mode&0o1000 != 0 {
		m |= os.ModeSticky
	}
	switch r.Type {
	case ResourceDirectory:
		m |= os.ModeDir
	case ResourceSymbolicLink:
		m |= os.ModeSymlink
	case ResourceNamedPipe:
		m |= os.ModeNamedPipe
	case ResourceCharacterDevice:
		m |= os.ModeDevice | os.ModeCharDevice
	case ResourceBlockDevice:
		m |= os.ModeDevice
	case ResourceLocalDomainSocket:
		m |= os.ModeSocket
	}
	return m
}

func (r ResourceItem) String() string {
	return fmt.Sprintf("%s %s %d %s", r.FileMode(), r.Type, r.Size, r.Path)
}

// FilterResources returns the items whose Name matches the doublestar glob
// pattern, in their original order.
func FilterResources(items []ResourceItem, pattern string) ([]ResourceItem, error) {
	var out []ResourceItem
	for _, item := range items {
		ok, err := doublestar.Match(pattern, item.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "asyncftp: invalid pattern %q", pattern)
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}
