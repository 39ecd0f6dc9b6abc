package audio

import (
	"testing"

	"revoice/internal/media/ffprobe"
)

func TestSelectPrefersRequestedLanguage(t *testing.T) {
	streams := []ffprobe.Stream{
		{Index: 0, CodecType: "video"},
		{
			Index:       1,
			CodecType:   "audio",
			CodecName:   "aac",
			Channels:    6,
			Tags:        map[string]string{"language": "eng"},
			Disposition: map[string]int{"default": 1},
		},
		{
			Index:     2,
			CodecType: "audio",
			CodecName: "aac",
			Channels:  2,
			Tags:      map[string]string{"language": "fre"},
		},
	}

	sel := Select(streams, "fr")
	if sel.PrimaryIndex != 2 {
		t.Fatalf("expected French track (index 2), got %d", sel.PrimaryIndex)
	}
	if sel.Candidates != 2 {
		t.Fatalf("expected 2 candidates, got %d", sel.Candidates)
	}

	if sel := Select(streams, ""); sel.PrimaryIndex != 1 {
		t.Fatalf("without a language the default track should win, got %d", sel.PrimaryIndex)
	}
}

func TestSelectDemotesCommentary(t *testing.T) {
	streams := []ffprobe.Stream{
		{
			Index:       1,
			CodecType:   "audio",
			Channels:    2,
			Tags:        map[string]string{"language": "eng", "title": "Director's Commentary"},
			Disposition: map[string]int{"default": 1},
		},
		{
			Index:     2,
			CodecType: "audio",
			Channels:  2,
			Tags:      map[string]string{"language": "eng", "title": "Stereo"},
		},
		{
			Index:       3,
			CodecType:   "audio",
			Channels:    2,
			Tags:        map[string]string{"language": "eng"},
			Disposition: map[string]int{"visual_impaired": 1},
		},
	}
	sel := Select(streams, "en")
	if sel.PrimaryIndex != 2 {
		t.Fatalf("expected main mix (index 2), got %d", sel.PrimaryIndex)
	}
}

func TestSelectTieKeepsEarliest(t *testing.T) {
	streams := []ffprobe.Stream{
		{Index: 4, CodecType: "audio", ChannelLayout: "stereo"},
		{Index: 5, CodecType: "audio", ChannelLayout: "stereo"},
	}
	if sel := Select(streams, ""); sel.PrimaryIndex != 4 {
		t.Fatalf("expected earliest stream, got %d", sel.PrimaryIndex)
	}
}

func TestSelectNoAudio(t *testing.T) {
	sel := Select([]ffprobe.Stream{{Index: 0, CodecType: "video"}}, "en")
	if sel.Found() {
		t.Fatalf("expected no selection, got %+v", sel)
	}
	if sel.PrimaryLabel() != "" {
		t.Fatalf("expected empty label, got %q", sel.PrimaryLabel())
	}
}

func TestChannelCountFromLayout(t *testing.T) {
	tests := map[string]int{
		"mono":      1,
		"stereo":    2,
		"5.1(side)": 6,
		"7.1":       8,
		"":          0,
		"downmix":   0,
	}
	for layout, want := range tests {
		if got := channelCount(ffprobe.Stream{ChannelLayout: layout}); got != want {
			t.Fatalf("channelCount(%q) = %d, want %d", layout, got, want)
		}
	}
}

func TestPrimaryLabel(t *testing.T) {
	sel := Selection{
		PrimaryIndex: 1,
		Primary: ffprobe.Stream{
			CodecName: "aac",
			Channels:  2,
			Tags:      map[string]string{"language": "ENG", "title": "Main"},
		},
	}
	if got := sel.PrimaryLabel(); got != "eng | aac | 2ch | Main" {
		t.Fatalf("unexpected label %q", got)
	}
}
