package mediainfo_test

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/mediainfo"
)

func loadSample(t *testing.T) *mediainfo.Document {
	t.Helper()
	data, err := os.ReadFile("testdata/sample.xml")
	require.NoError(t, err)
	doc, err := mediainfo.FromXML(data)
	require.NoError(t, err)
	return doc
}

func TestFromXML_Views(t *testing.T) {
	doc := loadSample(t)

	assert.Len(t, doc.General(), 1)
	assert.Len(t, doc.Video(), 1)
	assert.Len(t, doc.Audio(), 1)
	assert.Len(t, doc.Text(), 1)
	assert.Empty(t, doc.Image())
	assert.Empty(t, doc.Menu())
	assert.Empty(t, doc.Other())

	audio := doc.Audio()[0]
	id, ok := audio.Get("track_id")
	require.True(t, ok)
	assert.Equal(t, int64(2), id, "repeated ID is coerced")

	title, ok := audio.Get("title")
	assert.True(t, ok)
	assert.Nil(t, title)

	missing, ok := audio.Get("does_not_exist")
	assert.False(t, ok)
	assert.Nil(t, missing)
}

func TestFromXML_Malformed(t *testing.T) {
	data, err := os.ReadFile("testdata/invalid.xml")
	require.NoError(t, err)

	_, err = mediainfo.FromXML(data)
	var malformed *mediainfo.MalformedInputError
	require.ErrorAs(t, err, &malformed)

	doc, err := mediainfo.FromXMLLenient(data)
	require.NoError(t, err)
	assert.Empty(t, doc.Tracks)
}

func TestFromXML_EncodingErrors(t *testing.T) {
	data := []byte("<Mediainfo><File><track type=\"General\"><Title>Caf\xe9</Title></track></File></Mediainfo>")

	_, err := mediainfo.FromXML(data)
	var malformed *mediainfo.MalformedInputError
	require.ErrorAs(t, err, &malformed)

	doc, err := mediainfo.FromXML(data, mediainfo.WithEncodingErrors("replace"))
	require.NoError(t, err)
	title, _ := doc.General()[0].Text("title")
	assert.Equal(t, "Caf\uFFFD", title)

	_, err = mediainfo.FromXMLLenient(data, mediainfo.WithEncodingErrors("bogus"))
	var cfg *mediainfo.ConfigurationError
	assert.ErrorAs(t, err, &cfg)
}

func TestDocument_MapRoundTrip(t *testing.T) {
	doc := loadSample(t)

	m := doc.ToMap()
	tracks, ok := m["tracks"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, tracks, 4)
	assert.Equal(t, "Video", tracks[1]["track_type"])

	back, err := mediainfo.FromMap(m)
	require.NoError(t, err)
	assert.True(t, doc.Equal(back))
}

func TestDocument_JSONRoundTrip(t *testing.T) {
	doc := loadSample(t)

	s, err := doc.ToJSON()
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(s)))

	back, err := mediainfo.FromJSON([]byte(s))
	require.NoError(t, err)
	assert.True(t, doc.Equal(back))
	assert.Equal(t, doc.Tracks[0].Keys(), back.Tracks[0].Keys(), "field order survives")

	// A generic decode goes through float64 and must still restore int64.
	var generic map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &generic))
	fromMap, err := mediainfo.FromMap(generic)
	require.NoError(t, err)
	assert.True(t, doc.Equal(fromMap))
}

func TestDocument_EmptyJSON(t *testing.T) {
	s, err := (&mediainfo.Document{}).ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"tracks":[]}`, s)

	doc, err := mediainfo.FromJSON([]byte(s))
	require.NoError(t, err)
	assert.Empty(t, doc.Tracks)
}

func TestFromJSON_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not an object", `[]`},
		{"no tracks", `{"other":1}`},
		{"tracks not a list", `{"tracks":{}}`},
		{"missing track_type", `{"tracks":[{"format":"AVI"}]}`},
		{"float value", `{"tracks":[{"track_type":"General","duration":1.5}]}`},
		{"nested object", `{"tracks":[{"track_type":"General","extra":{"a":"b"}}]}`},
		{"truncated", `{"tracks":[`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mediainfo.FromJSON([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestFromMap_Errors(t *testing.T) {
	_, err := mediainfo.FromMap(map[string]any{})
	assert.Error(t, err)

	_, err = mediainfo.FromMap(map[string]any{"tracks": []any{"x"}})
	assert.Error(t, err)

	_, err = mediainfo.FromMap(map[string]any{"tracks": "x"})
	assert.Error(t, err)
}

func TestDocument_Equal(t *testing.T) {
	a := loadSample(t)
	b := loadSample(t)

	assert.True(t, a.Equal(b))

	b.Tracks = b.Tracks[:3]
	assert.False(t, a.Equal(b))

	var none *mediainfo.Document
	assert.False(t, a.Equal(none))
	assert.True(t, none.Equal(nil))
}

func TestTrack_Decode(t *testing.T) {
	doc := loadSample(t)

	var video struct {
		Format string `mapstructure:"format"`
		Width  int    `mapstructure:"width"`
		Height int    `mapstructure:"height"`
	}
	require.NoError(t, doc.Video()[0].Decode(&video))
	assert.Equal(t, "DV", video.Format)
	assert.Equal(t, 720, video.Width)
	assert.Equal(t, 480, video.Height)
}
