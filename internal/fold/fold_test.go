package fold

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Format", "format"},
		{"  Bit_rate  ", "bit_rate"},
		{"__Complete_name__", "complete_name"},
		{"ID", "track_id"},
		{"id", "track_id"},
		{"_id_", "track_id"},
		{"UniqueID", "uniqueid"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestFold_SingleOccurrencesStayText(t *testing.T) {
	track := Fold("General", []Attr{
		Text("Format", "MPEG-4"),
		Text("FooterSize", "59"),
	})

	v, ok := track.Get("footersize")
	require.True(t, ok)
	assert.Equal(t, "59", v, "single occurrences are never coerced")

	v, ok = track.Get("format")
	require.True(t, ok)
	assert.Equal(t, "MPEG-4", v)

	assert.Nil(t, track.Others("format"))
	assert.False(t, track.Has("other_format"))
}

func TestFold_TrackTypeIsStored(t *testing.T) {
	track := Fold("Audio", nil)

	assert.Equal(t, "Audio", track.Type)
	v, ok := track.Get("track_type")
	require.True(t, ok)
	assert.Equal(t, "Audio", v)
	assert.Equal(t, []string{"track_type"}, track.Keys())
}

func TestFold_IDRenamed(t *testing.T) {
	track := Fold("Video", []Attr{Text("ID", "1")})

	id, ok := track.ID()
	require.True(t, ok)
	assert.Equal(t, "1", id)
	assert.False(t, track.Has("id"))
}

func TestFold_DuplicatesOverflowInSourceOrder(t *testing.T) {
	track := Fold("General", []Attr{
		Text("Duration", "3000"),
		Text("Duration", "3 s 0 ms"),
		Text("Format", "AVI"),
		Text("Duration", "3 s"),
		Text("Duration", "00:00:03.000"),
	})

	d, ok := track.Int("duration")
	require.True(t, ok)
	assert.Equal(t, int64(3000), d)

	v, _ := track.Get("duration")
	assert.IsType(t, int64(0), v)

	assert.Equal(t, []any{"3 s 0 ms", "3 s", "00:00:03.000"}, track.Others("duration"))
	assert.Equal(t, []string{"track_type", "duration", "other_duration", "format"}, track.Keys())
}

func TestFold_OverflowCountIsOccurrencesMinusOne(t *testing.T) {
	for k := 2; k <= 7; k++ {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			attrs := make([]Attr, 0, k)
			for i := 0; i < k; i++ {
				attrs = append(attrs, Text("Stream_size", fmt.Sprintf("v%d", i)))
			}
			track := Fold("Audio", attrs)

			assert.Len(t, track.Others("stream_size"), k-1)
			v, _ := track.Get("stream_size")
			assert.Equal(t, "v0", v)
		})
	}
}

func TestFold_SwapRule(t *testing.T) {
	track := Fold("General", []Attr{
		Text("Duration", "abc"),
		Text("Duration", "3000"),
		Text("Duration", "3100"),
	})

	v, _ := track.Get("duration")
	assert.Equal(t, int64(3000), v)
	assert.Equal(t, []any{"abc", "3100"}, track.Others("duration"))
}

func TestFold_NoConvertibleValue(t *testing.T) {
	track := Fold("Audio", []Attr{
		Text("Language", "English"),
		Text("Language", "en"),
		Text("Language", "eng"),
	})

	v, _ := track.Get("language")
	assert.Equal(t, "English", v)
	assert.Equal(t, []any{"en", "eng"}, track.Others("language"))
}

func TestFold_EmptyElements(t *testing.T) {
	track := Fold("Text", []Attr{
		Empty("Title"),
		Text("Title", "Commentary"),
		Empty("Delay"),
	})

	v, ok := track.Get("title")
	require.True(t, ok, "an empty element still declares the field")
	assert.Nil(t, v)
	assert.Equal(t, []any{"Commentary"}, track.Others("title"))

	v, ok = track.Get("delay")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestFold_EmptyPrimaryIsSwappedOut(t *testing.T) {
	track := Fold("Video", []Attr{
		Empty("Width"),
		Text("Width", "1 920 pixels"),
		Text("Width", "1920"),
	})

	v, _ := track.Get("width")
	assert.Equal(t, int64(1920), v)
	assert.Equal(t, []any{"1 920 pixels", nil}, track.Others("width"))
}

func TestFold_RawOverflowNameHeadsList(t *testing.T) {
	track := Fold("Menu", []Attr{
		Text("Other_Format", "legacy"),
		Text("Format", "Timed Text"),
		Text("Format", "TX3G"),
	})

	assert.Equal(t, []any{"legacy", "TX3G"}, track.Others("format"))
	assert.Equal(t, []string{"track_type", "other_format", "format"}, track.Keys())
}

func TestFold_TrackTypeElement(t *testing.T) {
	tests := []struct {
		name   string
		attrs  []Attr
		others []any
	}{
		{"numeric", []Attr{Text("Track_type", "5")}, []any{"5"}},
		{"repeated", []Attr{Text("track_type", "Video"), Text("Track_type", "7")}, []any{"Video", "7"}},
		{"empty", []Attr{Empty("Track_type")}, []any{nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track := Fold("General", tt.attrs)

			v, _ := track.Get("track_type")
			assert.Equal(t, "General", v)
			assert.Equal(t, tt.others, track.Others("track_type"))
		})
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name        string
		primary     any
		others      []any
		wantPrimary any
		wantOthers  []any
	}{
		{
			name:        "primary converts",
			primary:     "5988",
			others:      []any{"5.85 KiB", "6 KiB"},
			wantPrimary: int64(5988),
			wantOthers:  []any{"5.85 KiB", "6 KiB"},
		},
		{
			name:        "negative primary converts",
			primary:     "-42",
			others:      []any{"x"},
			wantPrimary: int64(-42),
			wantOthers:  []any{"x"},
		},
		{
			name:        "first convertible wins",
			primary:     "abc",
			others:      []any{"3000", "3100"},
			wantPrimary: int64(3000),
			wantOthers:  []any{"abc", "3100"},
		},
		{
			name:        "later convertible",
			primary:     "2 channels",
			others:      []any{"Stereo", "2", "3"},
			wantPrimary: int64(2),
			wantOthers:  []any{"Stereo", "2 channels", "3"},
		},
		{
			name:        "nothing converts",
			primary:     "a",
			others:      []any{"b", nil},
			wantPrimary: "a",
			wantOthers:  []any{"b", nil},
		},
		{
			name:        "surrounding whitespace fails",
			primary:     " 12 ",
			others:      []any{"12 "},
			wantPrimary: " 12 ",
			wantOthers:  []any{"12 "},
		},
		{
			name:        "float fails",
			primary:     "23.976",
			others:      []any{"23.976 FPS"},
			wantPrimary: "23.976",
			wantOthers:  []any{"23.976 FPS"},
		},
		{
			name:        "overflowing integer stays text",
			primary:     "99999999999999999999",
			others:      []any{"big"},
			wantPrimary: "99999999999999999999",
			wantOthers:  []any{"big"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := append([]any(nil), tt.others...)
			p, o := Coerce(tt.primary, input)
			assert.Equal(t, tt.wantPrimary, p)
			assert.Equal(t, tt.wantOthers, o)
			assert.Equal(t, tt.others, input, "input list must not be modified")
		})
	}
}

func BenchmarkFold(b *testing.B) {
	attrs := make([]Attr, 0, 200)
	for i := 0; i < 40; i++ {
		name := fmt.Sprintf("Field_%d", i)
		attrs = append(attrs,
			Text(name, "text value"),
			Text(name, fmt.Sprintf("%d", i*1000)),
			Text(name, "another"),
			Empty(name),
			Text(name, "last"),
		)
	}

	b.ReportAllocs()
	for b.Loop() {
		Fold("General", attrs)
	}
}
