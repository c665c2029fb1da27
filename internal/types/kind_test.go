package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"General", KindGeneral},
		{"general", KindGeneral},
		{" Video ", KindVideo},
		{"AUDIO", KindAudio},
		{"Text", KindText},
		{"Subtitle", KindText},
		{"Image", KindImage},
		{"Cover", KindImage},
		{"Menu", KindMenu},
		{"Chapters", KindMenu},
		{"Other", KindOther},
		{"Timecode", KindOther},
		{"", KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.in))
		})
	}
}

func TestKind_String(t *testing.T) {
	for _, k := range Kinds() {
		assert.Equal(t, k, KindOf(k.String()), "String must round-trip through KindOf")
	}
	assert.Equal(t, "Other", Kind(99).String())
	assert.Equal(t, "Other", Kind(-1).String())
}

func TestKinds_Order(t *testing.T) {
	assert.Equal(t, []Kind{KindGeneral, KindVideo, KindAudio, KindText, KindImage, KindMenu, KindOther}, Kinds())
}
