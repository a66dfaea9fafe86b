package usage

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// minJSONRegion regions smaller than this do not count
const minJSONRegion = 100

// ScanJSON scans texts for JSON payloads worth converting to a
// token-oriented notation. A text counts when it contains a balanced
// {...} or [...] region of at least 100 bytes that parses as JSON.
// Returns whether any region was found and the total bytes across all
// of them.
func ScanJSON(texts ...string) (bool, int) {
	total := 0
	for _, text := range texts {
		total += scanRegions(text)
	}
	return total > 0, total
}

// scanRegions walks one text and sums its JSON regions
func scanRegions(text string) int {
	total := 0
	for i := 0; i < len(text); i++ {
		open := text[i]
		if open != '{' && open != '[' {
			continue
		}

		end := matchBalanced(text, i)
		if end < 0 {
			continue
		}

		region := text[i : end+1]
		if len(region) >= minJSONRegion && isJSON(region) {
			total += len(region)
			i = end // skip past the region
		}
	}
	return total
}

// matchBalanced finds the closing bracket for the opener at start,
// honoring string literals and escapes. Returns -1 when unbalanced.
func matchBalanced(text string, start int) int {
	open := text[start]
	var closer byte = '}'
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isJSON(region string) bool {
	var v any
	return jsoniter.UnmarshalFromString(strings.TrimSpace(region), &v) == nil
}
