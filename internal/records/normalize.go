package records

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeDisplayName cleans a free-form person or team name for import:
// separator runs collapse to single spaces and each word is title-cased.
func NormalizeDisplayName(name string) string {
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '\'':
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	trimmed := strings.TrimSpace(cleaned.String())
	if trimmed == "" {
		return ""
	}
	return cases.Title(language.Und).String(trimmed)
}
