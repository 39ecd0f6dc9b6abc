package logging

import (
	"log/slog"
	"strings"
)

type infoField struct {
	label string
	value string
}

const infoAttrLimit = 8

// Keys listed here are shown first at info level; everything else follows in
// emission order until the limit is reached.
var infoHighlightKeys = []string{
	FieldAlert,
	FieldEventType,
	FieldErrorHint,
	FieldImpact,
	"error",
	"command",
	"backend",
	"input",
	"output",
	"segments",
	"duration",
	"speed",
	"attempt",
	"fallback",
}

var infoSkipKeys = map[string]struct{}{
	FieldStage:        {},
	FieldSegmentIndex: {},
	FieldRunID:        {},
}

func selectInfoFields(attrs []kv, limit int) ([]infoField, int) {
	if len(attrs) == 0 {
		return nil, 0
	}
	used := make([]bool, len(attrs))
	result := make([]infoField, 0, limit)
	hidden := 0

	add := func(idx int) {
		used[idx] = true
		if _, skip := infoSkipKeys[attrs[idx].key]; skip {
			return
		}
		if limit > 0 && len(result) >= limit {
			hidden++
			return
		}
		result = append(result, infoField{
			label: displayLabel(attrs[idx].key),
			value: formatInfoValue(attrs[idx].key, attrs[idx].value),
		})
	}

	for _, key := range infoHighlightKeys {
		for idx, attr := range attrs {
			if !used[idx] && attr.key == key {
				add(idx)
				break
			}
		}
	}
	for idx := range attrs {
		if !used[idx] {
			add(idx)
		}
	}
	return result, hidden
}

func formatInfoValue(key string, v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindBool:
		if v.Bool() {
			return "yes"
		}
		return "no"
	case slog.KindString, slog.KindAny:
		return attrString(v)
	}
	return formatValue(key, v)
}

func displayLabel(key string) string {
	switch key {
	case FieldEventType:
		return "Event"
	case FieldErrorHint:
		return "Hint"
	case FieldImpact:
		return "Impact"
	case FieldRunID:
		return "Run"
	}
	words := strings.Split(strings.ReplaceAll(key, ".", "_"), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		if i == 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
