package language

import (
	"fmt"
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Auto means "let the recognizer detect the language".
const Auto = ""

// aliases covers word forms and bibliographic ISO 639-2 codes that the BCP 47
// parser does not accept.
var aliases = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"fre":        "fr",
	"german":     "de",
	"ger":        "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"chi":        "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"dut":        "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
}

// Normalize returns the base language code for value. Empty input and "auto"
// yield Auto; anything unparseable is an error.
func Normalize(value string) (string, error) {
	code := strings.ToLower(strings.TrimSpace(value))
	code = strings.ReplaceAll(code, "_", "-")
	if code == "" || code == "auto" {
		return Auto, nil
	}
	if mapped, ok := aliases[code]; ok {
		return mapped, nil
	}
	tag, err := xlang.Parse(code)
	if err != nil {
		return "", fmt.Errorf("unknown language %q: %w", value, err)
	}
	base, confidence := tag.Base()
	if confidence == xlang.No {
		return "", fmt.Errorf("unknown language %q", value)
	}
	return base.String(), nil
}

// ToISO2 is Normalize with errors folded into Auto.
func ToISO2(value string) string {
	code, err := Normalize(value)
	if err != nil {
		return Auto
	}
	return code
}

// DisplayName returns the English name of a language, "Auto-detect" for an
// empty code, or the upper-cased input when the code is unknown.
func DisplayName(value string) string {
	code, err := Normalize(value)
	if err != nil {
		return strings.ToUpper(strings.TrimSpace(value))
	}
	if code == Auto {
		return "Auto-detect"
	}
	name := display.English.Languages().Name(xlang.Make(code))
	if name == "" {
		return strings.ToUpper(code)
	}
	return name
}
