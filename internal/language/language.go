package language

import "strings"

// tongue describes one supported language: its ISO 639-1 code, display name,
// and the alternate spellings operators actually type (ISO 639-2 codes plus
// the English word form).
type tongue struct {
	iso2    string
	display string
	aliases []string
}

var tongues = []tongue{
	{"en", "English", []string{"eng", "english"}},
	{"es", "Spanish", []string{"spa", "spanish"}},
	{"fr", "French", []string{"fra", "fre", "french"}},
	{"de", "German", []string{"deu", "ger", "german"}},
	{"it", "Italian", []string{"ita", "italian"}},
	{"pt", "Portuguese", []string{"por", "portuguese"}},
	{"ja", "Japanese", []string{"jpn", "japanese"}},
	{"ko", "Korean", []string{"kor", "korean"}},
	{"zh", "Chinese", []string{"zho", "chi", "chinese"}},
	{"ru", "Russian", []string{"rus", "russian"}},
	{"ar", "Arabic", []string{"ara", "arabic"}},
	{"hi", "Hindi", []string{"hin", "hindi"}},
	{"nl", "Dutch", []string{"nld", "dut", "dutch"}},
	{"pl", "Polish", []string{"pol", "polish"}},
	{"sv", "Swedish", []string{"swe", "swedish"}},
	{"da", "Danish", []string{"dan", "danish"}},
	{"no", "Norwegian", []string{"nor", "norwegian"}},
	{"fi", "Finnish", []string{"fin", "finnish"}},
}

var (
	iso2ByAlias   = map[string]string{}
	displayByISO2 = map[string]string{}
)

func init() {
	for _, t := range tongues {
		iso2ByAlias[t.iso2] = t.iso2
		for _, alias := range t.aliases {
			iso2ByAlias[alias] = t.iso2
		}
		displayByISO2[t.iso2] = t.display
	}
}

// ToISO2 converts any recognized language code or word form to its ISO 639-1
// code. A 2-letter input passes through even when unrecognized; any other
// unrecognized input yields "".
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	switch {
	case code == "":
		return ""
	case iso2ByAlias[code] != "":
		return iso2ByAlias[code]
	case len(code) == 2:
		return code
	default:
		return ""
	}
}

// Canonical maps value to its ISO 639-1 code when recognized and falls back
// to the lowercased, trimmed input otherwise. Unrecognized values still reach
// providers unchanged rather than being dropped.
func Canonical(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	if mapped := ToISO2(value); mapped != "" {
		return mapped
	}
	return value
}

// DisplayName returns the human-readable name for any recognized code or word
// form, "Unknown" for empty input, and the uppercased input otherwise.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	if iso2, ok := iso2ByAlias[strings.ToLower(trimmed)]; ok {
		return displayByISO2[iso2]
	}
	return strings.ToUpper(trimmed)
}
