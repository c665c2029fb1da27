// Package document assembles the tracks of an engine XML report.
//
// Three document shapes are recognised:
//
//	<File><track type="General">...</track></File>
//	<Mediainfo><File><track type="General">...</track></File></Mediainfo>
//	<MediaInfo><media><track type="General">...</track></media></MediaInfo>
//
// When the root element is File its direct track children are used. Any
// other root contributes the track children of its direct File (or media)
// children. Each track's direct child elements become its fields; nested
// sub-elements are skipped.
package document

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/simonhull/mediainfo/internal/fold"
	"github.com/simonhull/mediainfo/internal/types"
)

// Encoding error policies.
const (
	EncodingStrict  = "strict"
	EncodingReplace = "replace"
)

// Options controls how a document is decoded.
type Options struct {
	// EncodingErrors selects what happens to byte sequences that are not
	// valid UTF-8 in a UTF-8 document: EncodingStrict (the default) rejects
	// the document, EncodingReplace substitutes U+FFFD.
	EncodingErrors string
}

// Validate checks the option values.
func (o Options) Validate() error {
	switch o.EncodingErrors {
	case "", EncodingStrict, EncodingReplace:
		return nil
	}
	return &types.ConfigurationError{
		Field:  "EncodingErrors",
		Reason: "must be " + EncodingStrict + " or " + EncodingReplace + ", got " + o.EncodingErrors,
	}
}

var encodingDecl = regexp.MustCompile(`^\s*<\?xml[^>]*\bencoding\s*=\s*["']([^"']+)["']`)

// Parse reads a document and returns its tracks in document order.
//
// Input that is not well-formed, and track elements without a type
// attribute, produce a *types.MalformedInputError.
func Parse(r io.Reader, opts Options) ([]*types.Track, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if opts.EncodingErrors == EncodingReplace {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, &types.MalformedInputError{Message: "read document", Err: err}
		}
		r = bytes.NewReader(sanitize(data))
	}

	d := xml.NewDecoder(skipBOM(r))
	d.CharsetReader = charset.NewReaderLabel

	root, err := rootElement(d)
	if err != nil {
		return nil, err
	}

	var tracks []*types.Track
	if root.Name.Local == "File" {
		tracks, err = readTracks(d)
	} else {
		tracks, err = readContainers(d)
	}
	if err != nil {
		return nil, err
	}

	if err := expectEnd(d); err != nil {
		return nil, err
	}
	return tracks, nil
}

// ParseLenient is Parse with malformed input mapped to zero tracks. Only
// option errors are returned.
func ParseLenient(r io.Reader, opts Options) ([]*types.Track, error) {
	tracks, err := Parse(r, opts)
	if err != nil {
		var malformed *types.MalformedInputError
		if errors.As(err, &malformed) {
			return nil, nil
		}
		return nil, err
	}
	return tracks, nil
}

// sanitize replaces invalid UTF-8 unless the document declares another
// encoding, in which case the bytes are left to the charset reader.
func sanitize(data []byte) []byte {
	if m := encodingDecl.FindSubmatch(data); m != nil {
		label := strings.ToLower(string(m[1]))
		if label != "utf-8" && label != "utf8" {
			return data
		}
	}
	return bytes.ToValidUTF8(data, []byte("\uFFFD"))
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM drops a leading UTF-8 byte order mark, which the XML decoder
// would otherwise report as character data.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	return br
}

func rootElement(d *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return xml.StartElement{}, malformed(d, errors.New("no element found"))
		}
		if err != nil {
			return xml.StartElement{}, malformed(d, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return t, nil
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return xml.StartElement{}, malformed(d, errors.New("text before document element"))
			}
		}
	}
}

// expectEnd consumes everything after the root element. Only whitespace,
// comments and processing instructions may follow it.
func expectEnd(d *xml.Decoder) error {
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return malformed(d, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return malformed(d, errors.New("junk after document element"))
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return malformed(d, errors.New("junk after document element"))
			}
		}
	}
}

// readContainers walks the children of a non-File root, collecting the
// tracks of every File or media child, until the root closes.
func readContainers(d *xml.Decoder) ([]*types.Track, error) {
	var tracks []*types.Track
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, malformed(d, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "File" && t.Name.Local != "media" {
				if err := d.Skip(); err != nil {
					return nil, malformed(d, err)
				}
				continue
			}
			found, err := readTracks(d)
			if err != nil {
				return nil, err
			}
			tracks = append(tracks, found...)
		case xml.EndElement:
			return tracks, nil
		}
	}
}

// readTracks collects the direct track children of the current element
// until it closes.
func readTracks(d *xml.Decoder) ([]*types.Track, error) {
	var tracks []*types.Track
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, malformed(d, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "track" {
				if err := d.Skip(); err != nil {
					return nil, malformed(d, err)
				}
				continue
			}
			track, err := readTrack(d, t)
			if err != nil {
				return nil, err
			}
			tracks = append(tracks, track)
		case xml.EndElement:
			return tracks, nil
		}
	}
}

func readTrack(d *xml.Decoder, start xml.StartElement) (*types.Track, error) {
	trackType, ok := attrValue(start, "type")
	if !ok {
		return nil, malformed(d, errors.New("track element has no type attribute"))
	}

	var attrs []fold.Attr
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, malformed(d, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			attr, err := readField(d, t)
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, attr)
		case xml.EndElement:
			return fold.Fold(trackType, attrs), nil
		}
	}
}

// readField returns the character data that precedes the first nested
// element of a field. A field without character data has a nil value.
func readField(d *xml.Decoder, start xml.StartElement) (fold.Attr, error) {
	var (
		text    strings.Builder
		hasText bool
		nested  bool
	)
	for {
		tok, err := d.Token()
		if err != nil {
			return fold.Attr{}, malformed(d, err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			if !nested && len(t) > 0 {
				text.Write(t)
				hasText = true
			}
		case xml.StartElement:
			nested = true
			if err := d.Skip(); err != nil {
				return fold.Attr{}, malformed(d, err)
			}
		case xml.EndElement:
			if !hasText {
				return fold.Empty(start.Name.Local), nil
			}
			return fold.Text(start.Name.Local, text.String()), nil
		}
	}
}

func attrValue(el xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func malformed(d *xml.Decoder, err error) error {
	var existing *types.MalformedInputError
	if errors.As(err, &existing) {
		return err
	}

	line, _ := d.InputPos()
	e := &types.MalformedInputError{
		Message: err.Error(),
		Err:     err,
		Line:    line,
		Offset:  d.InputOffset(),
	}

	var syntax *xml.SyntaxError
	if errors.As(err, &syntax) {
		e.Message = syntax.Msg
		e.Line = syntax.Line
	}
	return e
}
