package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// revAICodes maps normalized two-letter codes to the codes Rev.ai expects.
// Rev.ai uses ISO 639-3 style codes for some languages (Mandarin is "cmn").
var revAICodes = map[string]string{
	"zh": "cmn",
}

// Normalize validates code as a language tag and returns its canonical
// two-letter base form. An empty code is returned unchanged.
func Normalize(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", nil
	}
	// Rev.ai's Mandarin code is not a standard tag; accept it directly.
	if strings.EqualFold(code, "cmn") {
		return "zh", nil
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("language %q: %w", code, err)
	}
	base, _ := tag.Base()
	return base.String(), nil
}

// ForRevAI converts a normalized code to the code the Rev.ai API expects.
func ForRevAI(code string) string {
	normalized, err := Normalize(code)
	if err != nil || normalized == "" {
		return code
	}
	if mapped, ok := revAICodes[normalized]; ok {
		return mapped
	}
	return normalized
}

// Display returns a human-readable English name for the code, falling back to
// the code itself when it cannot be resolved.
func Display(code string) string {
	normalized, err := Normalize(code)
	if err != nil || normalized == "" {
		return code
	}
	tag, err := language.Parse(normalized)
	if err != nil {
		return code
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		return code
	}
	return name
}
