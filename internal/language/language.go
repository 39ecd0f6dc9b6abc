package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type entry struct {
	code2   string   // ISO 639-1 (2-letter)
	code3   string   // ISO 639-2 primary (3-letter)
	alt3    string   // ISO 639-2 alternate (e.g. "fre" vs "fra")
	display string   // Human-readable name
	words   []string // Full word forms (e.g. "english")
}

var languages = []entry{
	{"en", "eng", "", "English", []string{"english"}},
	{"es", "spa", "", "Spanish", []string{"spanish"}},
	{"fr", "fra", "fre", "French", []string{"french"}},
	{"de", "deu", "ger", "German", []string{"german"}},
	{"it", "ita", "", "Italian", []string{"italian"}},
	{"pt", "por", "", "Portuguese", []string{"portuguese"}},
	{"ja", "jpn", "", "Japanese", []string{"japanese"}},
	{"ko", "kor", "", "Korean", []string{"korean"}},
	{"zh", "zho", "chi", "Chinese", []string{"chinese", "mandarin"}},
	{"ru", "rus", "", "Russian", []string{"russian"}},
	{"ar", "ara", "", "Arabic", []string{"arabic"}},
	{"hi", "hin", "", "Hindi", []string{"hindi"}},
	{"nl", "nld", "dut", "Dutch", []string{"dutch"}},
	{"pl", "pol", "", "Polish", []string{"polish"}},
	{"sv", "swe", "", "Swedish", []string{"swedish"}},
	{"da", "dan", "", "Danish", []string{"danish"}},
	{"no", "nor", "", "Norwegian", []string{"norwegian"}},
	{"fi", "fin", "", "Finnish", []string{"finnish"}},
	{"el", "ell", "gre", "Greek", []string{"greek"}},
	{"he", "heb", "", "Hebrew", []string{"hebrew"}},
	{"ms", "msa", "may", "Malay", []string{"malay"}},
	{"sw", "swa", "", "Swahili", []string{"swahili"}},
	{"tr", "tur", "", "Turkish", []string{"turkish"}},
}

var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	return nil
}

// parseBase resolves a BCP 47 tag (e.g. "pt-BR", "zh_Hant") to its base language.
func parseBase(code string) (language.Base, bool) {
	code = strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	if code == "" {
		return language.Base{}, false
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Base{}, false
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return language.Base{}, false
	}
	return base, true
}

// ToISO2 converts a language code, word or BCP 47 tag to ISO 639-1.
// Returns empty string for unrecognized input.
func ToISO2(code string) string {
	if e := lookup(code); e != nil {
		return e.code2
	}
	base, ok := parseBase(code)
	if !ok {
		return ""
	}
	if iso := base.String(); len(iso) == 2 {
		return iso
	}
	return ""
}

// ToISO3 converts a recognized language to ISO 639-2. Returns "und" otherwise.
func ToISO3(code string) string {
	if e := lookup(code); e != nil {
		return e.code3
	}
	base, ok := parseBase(code)
	if !ok {
		return "und"
	}
	return base.ISO3()
}

// Valid reports whether code names a language the tools can be told about.
func Valid(code string) bool {
	return ToISO2(code) != ""
}

// DisplayName returns a human-readable language name. Returns "Unknown" for
// empty input and the uppercased code when nothing matches.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	if base, ok := parseBase(code); ok {
		if name := display.English.Languages().Name(base); name != "" {
			return name
		}
	}
	return strings.ToUpper(strings.TrimSpace(code))
}
