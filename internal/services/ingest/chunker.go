package ingest

import (
	"strings"
	"unicode"
)

// charsPerToken approximates tokenisation; coarse but adequate for sizing chunks.
const charsPerToken = 4

type Chunk struct {
	Index   int
	Page    int
	Content string
}

// BuildChunks cuts page texts into windows of about targetTokens tokens that
// overlap by overlapTokens. A window ends at whitespace when there is some in
// its last fifth. Pages are numbered from 1; chunk indexes run across pages.
func BuildChunks(pages []string, targetTokens int, overlapTokens int) []Chunk {
	if targetTokens <= 0 {
		targetTokens = 600
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	targetChars := targetTokens * charsPerToken
	overlapChars := overlapTokens * charsPerToken
	if overlapChars >= targetChars {
		overlapChars = targetChars / 4
	}

	chunks := make([]Chunk, 0, len(pages))
	idx := 0
	for pageIdx, page := range pages {
		runes := []rune(strings.TrimSpace(page))
		for start := 0; start < len(runes); {
			end := start + targetChars
			if end >= len(runes) {
				end = len(runes)
			} else {
				end = softBoundary(runes, start, end)
			}

			if content := strings.TrimSpace(string(runes[start:end])); content != "" {
				chunks = append(chunks, Chunk{Index: idx, Page: pageIdx + 1, Content: content})
				idx++
			}
			if end == len(runes) {
				break
			}

			next := end - overlapChars
			if next <= start {
				next = end
			}
			start = next
		}
	}
	return chunks
}

// softBoundary moves end back to the last whitespace in the final fifth of the window.
func softBoundary(runes []rune, start, end int) int {
	floor := end - (end-start)/5
	for i := end; i > floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return end
}
