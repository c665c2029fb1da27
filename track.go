package mediainfo

import (
	"github.com/simonhull/mediainfo/internal/engine"
	"github.com/simonhull/mediainfo/internal/types"
)

// Track is one stream or metadata section of a media file.
type Track = types.Track

// NewTrack builds a Track from a field mapping. See types.NewTrack.
func NewTrack(trackType string, keys []string, fields map[string]any) *Track {
	return types.NewTrack(trackType, keys, fields)
}

// Kind is the normalized category of a track.
type Kind = types.Kind

const (
	KindOther   = types.KindOther
	KindGeneral = types.KindGeneral
	KindVideo   = types.KindVideo
	KindAudio   = types.KindAudio
	KindText    = types.KindText
	KindImage   = types.KindImage
	KindMenu    = types.KindMenu
)

// KindOf maps a track type string to its Kind.
func KindOf(trackType string) Kind {
	return types.KindOf(trackType)
}

// Engine creates analysis handles. Custom engines can be passed with
// WithCustomEngine.
type Engine = engine.Engine

// Handle is one analysis session inside an engine.
type Handle = engine.Handle

// Moder is implemented by streams that know the mode they were opened in.
type Moder = engine.Moder

// Output formats accepted by Inform. Any %-delimited template understood by
// the engine is accepted as well.
const (
	OutputText   = ""
	OutputXML    = "XML"
	OutputOldXML = "OLDXML"
	OutputJSON   = "JSON"
	OutputHTML   = "HTML"
)
