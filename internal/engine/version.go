package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a dotted engine version such as 21.09, compared numerically
// component by component.
type Version []int

var versionReply = regexp.MustCompile(`^MediaInfoLib - v(\S+)`)

// ParseVersion extracts the version from an Info_Version reply such as
// "MediaInfoLib - v21.09".
func ParseVersion(reply string) (Version, error) {
	m := versionReply.FindStringSubmatch(reply)
	if m == nil {
		return nil, fmt.Errorf("unrecognised version reply %q", reply)
	}
	return ParseVersionNumber(m[1])
}

// ParseVersionNumber parses a bare dotted version.
func ParseVersionNumber(s string) (Version, error) {
	parts := strings.Split(s, ".")
	v := make(Version, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid version %q: %w", s, err)
		}
		v[i] = n
	}
	return v, nil
}

// HandleVersion asks a handle for the engine version.
func HandleVersion(h Handle) (Version, error) {
	return ParseVersion(h.Option("Info_Version", ""))
}

// Compare returns -1, 0 or +1. Missing trailing components count as
// smaller, so 19 < 19.0.
func (v Version) Compare(o Version) int {
	for i := 0; i < len(v) && i < len(o); i++ {
		switch {
		case v[i] < o[i]:
			return -1
		case v[i] > o[i]:
			return 1
		}
	}
	switch {
	case len(v) < len(o):
		return -1
	case len(v) > len(o):
		return 1
	}
	return 0
}

// AtLeast reports whether v >= o.
func (v Version) AtLeast(o Version) bool {
	return v.Compare(o) >= 0
}

// Supports reports whether the version has a capability.
func (v Version) Supports(c Capability) bool {
	for _, entry := range capabilities {
		if entry.capability == c {
			return v.AtLeast(entry.since)
		}
	}
	return false
}

func (v Version) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// Capability is an engine behaviour that depends on its version.
type Capability int

const (
	// OldXMLFormat: the legacy XML report is selected with Inform=OLDXML
	// instead of Inform=XML.
	OldXMLFormat Capability = iota
	// CoverDataOption: cover art is only reported when Cover_Data is set.
	CoverDataOption
	// ResetOption: Reset restores every option to its default.
	ResetOption
	// ThreadSafe: independent handles may be used concurrently.
	ThreadSafe
)

var capabilities = []struct {
	since      Version
	capability Capability
}{
	{Version{17, 10}, OldXMLFormat},
	{Version{18, 3}, CoverDataOption},
	{Version{19, 9}, ResetOption},
	{Version{20, 3}, ThreadSafe},
}

func (c Capability) String() string {
	switch c {
	case OldXMLFormat:
		return "OldXMLFormat"
	case CoverDataOption:
		return "CoverDataOption"
	case ResetOption:
		return "ResetOption"
	case ThreadSafe:
		return "ThreadSafe"
	}
	return fmt.Sprintf("Capability(%d)", int(c))
}
