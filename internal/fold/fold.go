// Package fold turns the flat (name, text) children of one track node into a
// Track with unique primary fields and other_<name> overflow lists.
//
// Folding runs in two phases. The first pass buckets raw values: the first
// occurrence of a normalized name is its primary value, later occurrences are
// appended to other_<name> in document order. The second pass coerces the
// primary of every repeated name to an integer, swapping in the first
// convertible overflow value when the primary itself does not convert.
package fold

import (
	"strconv"
	"strings"

	"github.com/simonhull/mediainfo/internal/types"
)

// Attr is one child element of a track node. A nil Value means the element
// had no text content.
type Attr struct {
	Name  string
	Value *string
}

// Text returns an Attr carrying s.
func Text(name, s string) Attr {
	return Attr{Name: name, Value: &s}
}

// Empty returns an Attr for an element without text.
func Empty(name string) Attr {
	return Attr{Name: name}
}

// Normalize lowercases a field name, trims surrounding whitespace and
// underscores, and renames "id" to "track_id".
func Normalize(name string) string {
	n := strings.Trim(strings.TrimSpace(strings.ToLower(name)), "_")
	if n == "id" {
		return "track_id"
	}
	return n
}

// Fold builds the Track for one track node.
func Fold(trackType string, attrs []Attr) *types.Track {
	fields := map[string]any{types.TypeKey: trackType}
	keys := []string{types.TypeKey}

	// overflow maps an other_<name> key to the primary it belongs to, in the
	// order the lists were created.
	var overflowKeys []string
	overflowOf := make(map[string]string)

	for _, a := range attrs {
		name := Normalize(a.Name)
		value := rawValue(a.Value)

		if _, seen := fields[name]; !seen {
			fields[name] = value
			keys = append(keys, name)
			continue
		}

		key := types.OverflowPrefix + name
		if _, isList := overflowOf[key]; isList {
			fields[key] = append(fields[key].([]any), value)
			continue
		}

		list := []any{value}
		if cur, taken := fields[key]; taken {
			// A raw element already occupies other_<name>; it came earlier in
			// the document, so it heads the list.
			list = []any{cur, value}
		} else {
			keys = append(keys, key)
		}
		fields[key] = list
		overflowOf[key] = name
		overflowKeys = append(overflowKeys, key)
	}

	for _, key := range overflowKeys {
		name := overflowOf[key]
		if name == types.TypeKey {
			// The type attribute stays the primary; elements named
			// track_type are kept verbatim in the overflow list.
			continue
		}
		primary := fields[name]
		if _, isList := primary.([]any); isList {
			continue
		}
		fields[name], fields[key] = Coerce(primary, fields[key].([]any))
	}

	return types.NewTrack(trackType, keys, fields)
}

// Coerce applies the integer coercion rule to a primary value and its
// overflow list and returns the resulting pair. The input list is not
// modified.
//
// If primary converts, it becomes an int64 and the list is returned as is.
// Otherwise the first convertible list entry becomes the int64 primary and
// the displaced original primary takes its slot in the list, so
// ("abc", ["3000", "3100"]) yields (3000, ["abc", "3100"]). The list keeps
// its length. When nothing converts both are returned unchanged.
//
// This is a deliberate change from bindings that append the displaced
// primary after the existing entries and leave the converted value in the
// list: here a name seen k times always yields exactly k-1 overflow entries.
func Coerce(primary any, others []any) (any, []any) {
	if n, ok := toInt(primary); ok {
		return n, others
	}

	for i, v := range others {
		n, ok := toInt(v)
		if !ok {
			continue
		}
		swapped := make([]any, len(others))
		copy(swapped, others)
		swapped[i] = primary
		return n, swapped
	}

	return primary, others
}

func toInt(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func rawValue(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
