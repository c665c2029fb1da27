// Package types provides the core data structures shared by the ingestion
// pipeline: Track, Kind, the error taxonomy and Warning.
package types

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// TypeKey is the field under which every track stores its type string.
const TypeKey = "track_type"

// OverflowPrefix prefixes the field holding repeated occurrences of a name.
const OverflowPrefix = "other_"

// Track is one logical stream or metadata section of a media file.
//
// Field values are one of:
//   - nil: the element was present but carried no text
//   - string: the raw element text
//   - int64: a primary value coerced because the name occurred several times
//   - []any: an overflow list (other_<name>) of strings and nils
//
// A Track is immutable once built. Accessors return copies so callers can't
// alter the record through a returned slice or map.
type Track struct {
	// Type is the verbatim value of the track node's type attribute.
	Type string

	keys   []string
	fields map[string]any
}

// NewTrack builds a Track from a field mapping. keys fixes the export order;
// fields missing from keys are appended in sorted order. The track_type field
// is always set to trackType.
func NewTrack(trackType string, keys []string, fields map[string]any) *Track {
	t := &Track{
		Type:   trackType,
		keys:   make([]string, 0, len(fields)+1),
		fields: make(map[string]any, len(fields)+1),
	}

	t.keys = append(t.keys, TypeKey)
	t.fields[TypeKey] = trackType

	seen := map[string]bool{TypeKey: true}
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || seen[k] {
			continue
		}
		seen[k] = true
		t.keys = append(t.keys, k)
		t.fields[k] = cloneValue(v)
	}

	var rest []string
	for k := range fields {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		t.keys = append(t.keys, k)
		t.fields[k] = cloneValue(fields[k])
	}

	return t
}

// Get returns the value stored under a normalized field name.
//
// Lookup never fails: an unknown name, including the empty string, yields
// (nil, false). Note that a present field may itself hold nil, which is
// reported as (nil, true).
func (t *Track) Get(name string) (any, bool) {
	if t == nil || t.fields == nil {
		return nil, false
	}
	v, ok := t.fields[name]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// Has reports whether the field exists.
func (t *Track) Has(name string) bool {
	_, ok := t.Get(name)
	return ok
}

// Text returns a scalar field rendered as text. Integers are formatted in
// base 10. It reports false for missing fields, nil values and lists.
func (t *Track) Text(name string) (string, bool) {
	v, _ := t.Get(name)
	switch val := v.(type) {
	case string:
		return val, true
	case int64:
		return strconv.FormatInt(val, 10), true
	}
	return "", false
}

// Int returns a field as an integer. Coerced values are returned directly;
// single-occurrence text fields are converted on the fly.
func (t *Track) Int(name string) (int64, bool) {
	v, _ := t.Get(name)
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

// Others returns the overflow list for name (the other_<name> field), or nil
// when the name occurred at most once.
func (t *Track) Others(name string) []any {
	v, _ := t.Get(OverflowPrefix + name)
	list, _ := v.([]any)
	return list
}

// ID returns the track_id field as text.
func (t *Track) ID() (string, bool) {
	return t.Text("track_id")
}

// Keys returns the field names in insertion order.
func (t *Track) Keys() []string {
	if t == nil {
		return nil
	}
	return slices.Clone(t.keys)
}

// Len returns the number of stored fields, track_type included.
func (t *Track) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// ToMap returns a copy of every stored field.
func (t *Track) ToMap() map[string]any {
	out := make(map[string]any, t.Len())
	if t == nil {
		return out
	}
	for k, v := range t.fields {
		out[k] = cloneValue(v)
	}
	return out
}

// MarshalJSON encodes the fields as an object in insertion order.
func (t *Track) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range t.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(t.fields[k])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Equal reports whether both tracks hold exactly the same fields and values.
// Field order is not significant.
func (t *Track) Equal(other *Track) bool {
	if t == nil || other == nil {
		return t == other
	}
	if len(t.fields) != len(other.fields) {
		return false
	}
	for k, v := range t.fields {
		ov, ok := other.fields[k]
		if !ok || !valueEqual(v, ov) {
			return false
		}
	}
	return true
}

// Kind returns the normalized category of the track.
func (t *Track) Kind() Kind {
	return KindOf(t.Type)
}

// IsGeneral reports whether the track describes the container.
func (t *Track) IsGeneral() bool { return t.Kind() == KindGeneral }

// IsVideo reports whether the track is a video stream.
func (t *Track) IsVideo() bool { return t.Kind() == KindVideo }

// IsAudio reports whether the track is an audio stream.
func (t *Track) IsAudio() bool { return t.Kind() == KindAudio }

// IsText reports whether the track is a subtitle or caption stream.
func (t *Track) IsText() bool { return t.Kind() == KindText }

// IsImage reports whether the track is an image.
func (t *Track) IsImage() bool { return t.Kind() == KindImage }

// IsMenu reports whether the track is a menu or chapter list.
func (t *Track) IsMenu() bool { return t.Kind() == KindMenu }

// IsOther reports whether the track fits none of the known kinds.
func (t *Track) IsOther() bool { return t.Kind() == KindOther }

// Decode copies the track fields into out, which must be a pointer to a
// struct or map. Decoding is weakly typed, so text such as "1920" fills an
// int field. Fields are matched by their mapstructure tag:
//
//	var v struct {
//		Width  int    `mapstructure:"width"`
//		Codec  string `mapstructure:"codec"`
//	}
//	err := track.Decode(&v)
func (t *Track) Decode(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("decode %s track: %w", t.Type, err)
	}
	if err := decoder.Decode(t.ToMap()); err != nil {
		return fmt.Errorf("decode %s track: %w", t.Type, err)
	}
	return nil
}

// CoverData decodes the base64 cover_data field. It returns nil without error
// when the track carries no cover.
func (t *Track) CoverData() ([]byte, error) {
	s, ok := t.Text("cover_data")
	if !ok || s == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("cover_data: %w", err)
	}
	return data, nil
}

// String returns a short description of the track.
func (t *Track) String() string {
	id, ok := t.ID()
	if !ok {
		id = "None"
	}
	return fmt.Sprintf("<Track track_id='%s', track_type='%s'>", id, t.Type)
}

func cloneValue(v any) any {
	if list, ok := v.([]any); ok {
		return slices.Clone(list)
	}
	return v
}

func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	return false
}
