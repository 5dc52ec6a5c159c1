package language

import "strings"

type entry struct {
	code2   string // ISO 639-1 (2-letter)
	code3   string // ISO 639-2 primary (3-letter)
	alt3    string // ISO 639-2 alternate (e.g. "spa" has none, "fra" has "fre")
	display string
	word    string // full word form
}

var languages = []entry{
	{"en", "eng", "", "English", "english"},
	{"es", "spa", "", "Spanish", "spanish"},
	{"fr", "fra", "fre", "French", "french"},
	{"de", "deu", "ger", "German", "german"},
	{"it", "ita", "", "Italian", "italian"},
	{"pt", "por", "", "Portuguese", "portuguese"},
	{"ja", "jpn", "", "Japanese", "japanese"},
	{"ko", "kor", "", "Korean", "korean"},
	{"zh", "zho", "chi", "Chinese", "chinese"},
	{"ru", "rus", "", "Russian", "russian"},
	{"ar", "ara", "", "Arabic", "arabic"},
	{"nl", "nld", "dut", "Dutch", "dutch"},
	{"pl", "pol", "", "Polish", "polish"},
	{"hi", "hin", "", "Hindi", "hindi"},
}

var index = func() map[string]*entry {
	m := make(map[string]*entry, len(languages)*3)
	for i := range languages {
		e := &languages[i]
		m[e.code2] = e
		m[e.code3] = e
		if e.alt3 != "" {
			m[e.alt3] = e
		}
		m[e.word] = e
	}
	return m
}()

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	return index[code]
}

// ToISO2 converts any recognized language code or word to ISO 639-1.
// Unrecognized 2-letter codes pass through; anything else yields "".
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if e := lookup(code); e != nil {
		return e.code2
	}
	if len(code) == 2 {
		return code
	}
	return ""
}

// DisplayName returns a human-readable language name for a recognized code,
// or the uppercased code when unrecognized.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(code))
}
