package mediainfo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/simonhull/mediainfo/internal/document"
)

// Document is the parsed report of one media file.
//
// Tracks are kept in report order. The kind views (General, Video, ...) are
// computed on each call.
type Document struct {
	// Tracks in the order the engine reported them
	Tracks []*Track

	// Warnings raised while producing the report (non-fatal)
	Warnings []Warning
}

// FromXML parses an engine XML report. Input that is not well-formed fails
// with a *MalformedInputError.
//
// Only WithEncodingErrors is relevant here; other options are ignored.
func FromXML(data []byte, opts ...Option) (*Document, error) {
	return FromReader(bytes.NewReader(data), opts...)
}

// FromReader is FromXML over a reader.
func FromReader(r io.Reader, opts ...Option) (*Document, error) {
	o := newOptions(opts)
	tracks, err := document.Parse(r, o.documentOptions())
	if err != nil {
		return nil, err
	}
	return &Document{Tracks: tracks}, nil
}

// FromXMLLenient parses a report on a best-effort basis: input that is not
// well-formed yields a Document without tracks. Only option errors are
// returned.
func FromXMLLenient(data []byte, opts ...Option) (*Document, error) {
	o := newOptions(opts)
	tracks, err := document.ParseLenient(bytes.NewReader(data), o.documentOptions())
	if err != nil {
		return nil, err
	}
	return &Document{Tracks: tracks}, nil
}

// ByKind returns the tracks of kind k in report order.
func (d *Document) ByKind(k Kind) []*Track {
	var out []*Track
	for _, t := range d.Tracks {
		if t.Kind() == k {
			out = append(out, t)
		}
	}
	return out
}

// General returns the container tracks.
func (d *Document) General() []*Track { return d.ByKind(KindGeneral) }

// Video returns the video tracks.
func (d *Document) Video() []*Track { return d.ByKind(KindVideo) }

// Audio returns the audio tracks.
func (d *Document) Audio() []*Track { return d.ByKind(KindAudio) }

// Text returns the subtitle and caption tracks.
func (d *Document) Text() []*Track { return d.ByKind(KindText) }

// Image returns the image tracks.
func (d *Document) Image() []*Track { return d.ByKind(KindImage) }

// Menu returns the menu and chapter tracks.
func (d *Document) Menu() []*Track { return d.ByKind(KindMenu) }

// Other returns the tracks of no known kind.
func (d *Document) Other() []*Track { return d.ByKind(KindOther) }

// Equal reports whether both documents hold equal tracks in the same order.
// Warnings are not compared.
func (d *Document) Equal(other *Document) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.Tracks) != len(other.Tracks) {
		return false
	}
	for i := range d.Tracks {
		if !d.Tracks[i].Equal(other.Tracks[i]) {
			return false
		}
	}
	return true
}

// ToMap returns {"tracks": [track.ToMap(), ...]}.
func (d *Document) ToMap() map[string]any {
	tracks := make([]map[string]any, len(d.Tracks))
	for i, t := range d.Tracks {
		tracks[i] = t.ToMap()
	}
	return map[string]any{"tracks": tracks}
}

// MarshalJSON encodes the document as {"tracks": [...]} with each track's
// fields in report order.
func (d *Document) MarshalJSON() ([]byte, error) {
	tracks := d.Tracks
	if tracks == nil {
		tracks = []*Track{}
	}
	return json.Marshal(struct {
		Tracks []*Track `json:"tracks"`
	}{tracks})
}

// ToJSON returns the JSON encoding of the document.
func (d *Document) ToJSON() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FromMap rebuilds a document from the ToMap representation. Numbers are
// restored as int64.
func FromMap(m map[string]any) (*Document, error) {
	raw, ok := m["tracks"]
	if !ok {
		return nil, fmt.Errorf("document map has no tracks")
	}

	var list []map[string]any
	switch tracks := raw.(type) {
	case []map[string]any:
		list = tracks
	case []any:
		for i, t := range tracks {
			tm, ok := t.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("track %d: expected an object, got %T", i, t)
			}
			list = append(list, tm)
		}
	default:
		return nil, fmt.Errorf("tracks: expected a list, got %T", raw)
	}

	doc := &Document{Tracks: make([]*Track, 0, len(list))}
	for i, tm := range list {
		t, err := trackFromFields(nil, tm)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", i, err)
		}
		doc.Tracks = append(doc.Tracks, t)
	}
	return doc, nil
}

// FromJSON is the inverse of ToJSON. Field order within each track is
// preserved.
func FromJSON(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var doc *Document
	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if key != "tracks" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			continue
		}

		doc = &Document{}
		if err := expectDelim(dec, '['); err != nil {
			return nil, err
		}
		for dec.More() {
			t, err := decodeTrack(dec)
			if err != nil {
				return nil, fmt.Errorf("track %d: %w", len(doc.Tracks), err)
			}
			doc.Tracks = append(doc.Tracks, t)
		}
		if err := expectDelim(dec, ']'); err != nil {
			return nil, err
		}
	}

	if doc == nil {
		return nil, fmt.Errorf("document JSON has no tracks")
	}
	return doc, nil
}

func decodeTrack(dec *json.Decoder) (*Track, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var keys []string
	fields := make(map[string]any)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		keys = append(keys, key)
		fields[key] = v
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return trackFromFields(keys, fields)
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func trackFromFields(keys []string, fields map[string]any) (*Track, error) {
	trackType, ok := fields["track_type"].(string)
	if !ok {
		return nil, fmt.Errorf("missing track_type")
	}

	norm := make(map[string]any, len(fields))
	for k, v := range fields {
		nv, err := restoreValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		norm[k] = nv
	}
	return NewTrack(trackType, keys, norm), nil
}

// restoreValue maps decoded values back onto the field value types.
func restoreValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, int64:
		return val, nil
	case int:
		return int64(val), nil
	case json.Number:
		n, err := strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s is not an integer", val)
		}
		return n, nil
	case float64:
		if val != math.Trunc(val) || val > math.MaxInt64 || val < math.MinInt64 {
			return nil, fmt.Errorf("%v is not an integer", val)
		}
		return int64(val), nil
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			r, err := restoreValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}
