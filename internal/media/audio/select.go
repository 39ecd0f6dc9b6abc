package audio

import (
	"strconv"
	"strings"

	langpkg "revoice/internal/language"
	"revoice/internal/media/ffprobe"
)

// Selection names the audio stream that carries the dialogue to replace.
type Selection struct {
	Primary      ffprobe.Stream
	PrimaryIndex int
	Candidates   int
}

// Found reports whether any audio stream was selected.
func (s Selection) Found() bool {
	return s.PrimaryIndex >= 0
}

// PrimaryLabel returns a human-readable summary of the selected stream.
func (s Selection) PrimaryLabel() string {
	if s.PrimaryIndex < 0 {
		return ""
	}
	return formatStreamSummary(s.Primary)
}

// Select picks the dialogue stream from a probed container. When language is
// set, streams tagged with that language win; commentary and audio
// description tracks are ranked below the main mix; then default-flagged
// streams, then streams with a usable channel layout. Ties keep the
// earliest stream.
func Select(streams []ffprobe.Stream, language string) Selection {
	candidates := buildCandidates(streams, langpkg.ToISO2(language))
	if len(candidates) == 0 {
		return Selection{PrimaryIndex: -1}
	}

	best := candidates[0]
	bestScore := scorePrimary(best)
	for i := 1; i < len(candidates); i++ {
		if score := scorePrimary(candidates[i]); score > bestScore {
			best = candidates[i]
			bestScore = score
		}
	}
	return Selection{
		Primary:      best.stream,
		PrimaryIndex: best.stream.Index,
		Candidates:   len(candidates),
	}
}

type candidate struct {
	stream         ffprobe.Stream
	order          int
	title          string
	languageMatch  bool
	secondary      bool
	channels       int
	defaultFlagged bool
}

func scorePrimary(cand candidate) float64 {
	score := 0.0
	if cand.languageMatch {
		score += 1000
	}
	if !cand.secondary {
		score += 500
	}
	if cand.defaultFlagged {
		score += 100
	}
	switch {
	case cand.channels >= 6:
		score += 30
	case cand.channels >= 2:
		score += 20
	case cand.channels == 1:
		score += 10
	}
	score -= float64(cand.order) * 0.1
	return score
}

func buildCandidates(streams []ffprobe.Stream, wantLang string) []candidate {
	result := make([]candidate, 0, len(streams))
	order := 0
	for _, stream := range streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		cand := candidate{
			stream:         stream,
			order:          order,
			title:          normalizeTitle(stream.Tags),
			channels:       channelCount(stream),
			defaultFlagged: stream.Disposition != nil && stream.Disposition["default"] == 1,
		}
		if wantLang != "" {
			cand.languageMatch = langpkg.ToISO2(normalizeLanguage(stream.Tags)) == wantLang
		}
		cand.secondary = isSecondary(stream, cand.title)
		result = append(result, cand)
		order++
	}
	return result
}

func isSecondary(stream ffprobe.Stream, title string) bool {
	if stream.Disposition != nil {
		if stream.Disposition["comment"] == 1 || stream.Disposition["visual_impaired"] == 1 {
			return true
		}
	}
	for _, keyword := range []string{"commentary", "description", "descriptive", "director"} {
		if strings.Contains(title, keyword) {
			return true
		}
	}
	return false
}

func normalizeLanguage(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	for _, key := range []string{"language", "LANGUAGE", "Language", "language_ietf", "LANG"} {
		if value, ok := tags[key]; ok {
			return strings.ToLower(strings.TrimSpace(value))
		}
	}
	return ""
}

func normalizeTitle(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	for _, key := range []string{"title", "TITLE", "handler_name", "HANDLER_NAME"} {
		if value, ok := tags[key]; ok {
			return strings.ToLower(strings.TrimSpace(value))
		}
	}
	return ""
}

func channelCount(stream ffprobe.Stream) int {
	if stream.Channels > 0 {
		return stream.Channels
	}
	layout := strings.ToLower(strings.TrimSpace(stream.ChannelLayout))
	switch {
	case layout == "":
		return 0
	case layout == "mono":
		return 1
	case layout == "stereo":
		return 2
	case strings.Contains(layout, "."):
		total := 0
		for _, part := range strings.Split(layout, ".") {
			part = strings.Trim(part, "abcdefghijklmnopqrstuvwxyz ()")
			if n, err := strconv.Atoi(part); err == nil {
				total += n
			}
		}
		return total
	}
	return 0
}

func formatStreamSummary(stream ffprobe.Stream) string {
	parts := make([]string, 0, 4)
	if lang := normalizeLanguage(stream.Tags); lang != "" {
		parts = append(parts, lang)
	}
	codec := stream.CodecLong
	if codec == "" {
		codec = stream.CodecName
	}
	if codec != "" {
		parts = append(parts, codec)
	}
	if stream.Channels > 0 {
		parts = append(parts, strconv.Itoa(stream.Channels)+"ch")
	}
	if title := strings.TrimSpace(stream.Tags["title"]); title != "" {
		parts = append(parts, title)
	}
	if len(parts) == 0 {
		return "audio"
	}
	return strings.Join(parts, " | ")
}
