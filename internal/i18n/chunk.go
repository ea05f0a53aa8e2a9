package i18n

import (
	"strings"

	"moviefinder/searchservice/internal/textutil"
)

// maxChunkLen bounds the text sent to a translation backend in one request.
// Both backends silently truncate or reject longer payloads.
const maxChunkLen = 450

// splitChunks cuts normalized text into backend-sized chunks at paragraph
// boundaries. Paragraphs are accumulated greedily; a paragraph that alone
// exceeds the bound is kept whole rather than split mid-sentence.
func splitChunks(text string, maxLen int) []string {
	text = textutil.Normalize(text)
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	var current []string
	currentLen := 0
	for _, paragraph := range strings.Split(text, "\n") {
		if paragraph == "" {
			continue
		}
		length := len(paragraph) + 1
		if len(current) > 0 && currentLen+length > maxLen {
			chunks = append(chunks, strings.Join(current, " "))
			current = []string{paragraph}
			currentLen = len(paragraph)
		} else {
			current = append(current, paragraph)
			currentLen += length
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}
