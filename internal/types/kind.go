package types

import "strings"

// Kind is the normalized category of a track.
//
// Engines are inconsistent about the exact type string they emit for the
// same logical stream ("Text" vs "Subtitle", "Chapters" vs "Menu"), so
// grouping is done on Kind rather than on Track.Type.
type Kind int

const (
	// KindOther covers "Other" tracks and any type string not recognised.
	KindOther Kind = iota
	// KindGeneral is the container-level track.
	KindGeneral
	// KindVideo represents video streams.
	KindVideo
	// KindAudio represents audio streams.
	KindAudio
	// KindText represents subtitle and caption streams.
	KindText
	// KindImage represents still images and cover art streams.
	KindImage
	// KindMenu represents menus and chapter lists.
	KindMenu
)

var kindNames = [...]string{
	KindOther:   "Other",
	KindGeneral: "General",
	KindVideo:   "Video",
	KindAudio:   "Audio",
	KindText:    "Text",
	KindImage:   "Image",
	KindMenu:    "Menu",
}

// String returns the canonical type string for the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Other"
	}
	return kindNames[k]
}

var kindSynonyms = map[string]Kind{
	"general":   KindGeneral,
	"container": KindGeneral,
	"video":     KindVideo,
	"audio":     KindAudio,
	"text":      KindText,
	"subtitle":  KindText,
	"subtitles": KindText,
	"image":     KindImage,
	"images":    KindImage,
	"cover":     KindImage,
	"menu":      KindMenu,
	"chapter":   KindMenu,
	"chapters":  KindMenu,
	"other":     KindOther,
}

// KindOf maps a track type string to its Kind. Matching is case-insensitive
// and ignores surrounding whitespace; unknown strings map to KindOther.
func KindOf(trackType string) Kind {
	if k, ok := kindSynonyms[strings.ToLower(strings.TrimSpace(trackType))]; ok {
		return k
	}
	return KindOther
}

// Kinds lists every kind in display order.
func Kinds() []Kind {
	return []Kind{KindGeneral, KindVideo, KindAudio, KindText, KindImage, KindMenu, KindOther}
}
