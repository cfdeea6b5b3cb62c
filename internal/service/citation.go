package service

import "unicode"

// defaultExcerptChars bounds excerpt length when no override is configured.
const defaultExcerptChars = 300

// resolveCitation attaches the display excerpt to a ranked result. The
// excerpt is a bounded window centered within the chunk text, snapped inward
// to word boundaries, and is always a literal substring of FullText. The page
// number was assigned by the chunker and is carried through untouched.
func resolveCitation(r *SearchResult, excerptChars int) {
	if excerptChars <= 0 {
		excerptChars = defaultExcerptChars
	}
	r.Excerpt = excerptWindow(r.FullText, excerptChars)
}

// excerptWindow cuts a window of at most maxChars runes centered in text.
// Short text is returned whole. Boundaries move inward to the nearest space
// so words are never split; if snapping would collapse the window, the raw
// cut is used instead.
func excerptWindow(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}

	center := len(runes) / 2
	start := center - maxChars/2
	if start < 0 {
		start = 0
	}
	end := start + maxChars
	if end > len(runes) {
		end = len(runes)
		start = end - maxChars
	}

	snapStart, snapEnd := start, end
	if snapStart > 0 {
		for snapStart < snapEnd && !unicode.IsSpace(runes[snapStart-1]) {
			snapStart++
		}
	}
	if snapEnd < len(runes) {
		for snapEnd > snapStart && !unicode.IsSpace(runes[snapEnd]) {
			snapEnd--
		}
	}

	if snapEnd <= snapStart {
		return string(runes[start:end])
	}
	return string(runes[snapStart:snapEnd])
}
