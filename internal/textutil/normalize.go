// Package textutil cleans free text coming back from providers before it is
// compared, detected, or displayed. Providers return HTML fragments, entity
// escapes, and inconsistent whitespace; everything downstream assumes the
// normalized form.
package textutil

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

var (
	tagRE        = regexp.MustCompile(`<[^>]+>`)
	horizontalRE = regexp.MustCompile(`[ \t]+`)
	newlineRE    = regexp.MustCompile(`\s*\n\s*`)
	anySpaceRE   = regexp.MustCompile(`\s+`)
)

var zeroWidthReplacer = strings.NewReplacer(
	"​", "",
	"‌", "",
	"‍", "",
	"\uFEFF", "",
)

// Normalize decodes HTML entities, drops zero-width runes, strips tags,
// collapses horizontal whitespace runs to one space, and tightens whitespace
// around newlines. It is idempotent.
func Normalize(text string) string {
	value := html.UnescapeString(text)
	value = zeroWidthReplacer.Replace(value)
	value = tagRE.ReplaceAllString(value, "")
	value = strings.TrimSpace(value)
	value = horizontalRE.ReplaceAllString(value, " ")
	value = newlineRE.ReplaceAllString(value, "\n")
	return value
}

// ComparisonKey reduces text to a form where two renderings of the same
// content compare equal: normalized, case-folded, all whitespace collapsed.
// Used only for equivalence checks (e.g. "did the translation backend
// actually change anything"), never for display.
func ComparisonKey(text string) string {
	value := cases.Fold().String(Normalize(text))
	return anySpaceRE.ReplaceAllString(value, " ")
}

// JoinFragments flattens a list of text fragments into one sample, skipping
// empties. Some providers return multi-part descriptions.
func JoinFragments(fragments []string) string {
	parts := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		if strings.TrimSpace(fragment) == "" {
			continue
		}
		parts = append(parts, fragment)
	}
	return strings.Join(parts, " ")
}
