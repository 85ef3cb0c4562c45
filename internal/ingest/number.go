package ingest

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	markedNumber = regexp.MustCompile(`(?i)(?:^|[^a-z])(?:chapter|chap|ch|c|volume|vol|v|#)[.\s_-]*(\d+(?:\.\d+)?)`)
	anyNumber    = regexp.MustCompile(`\d+(?:\.\d+)?`)
	bracketed    = regexp.MustCompile(`[\[(][^\])]*[\])]`)
)

// ChapterTitle derives a display title from a chapter file name.
func ChapterTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}

// ChapterNumber extracts the chapter or volume number from a file name.
// Explicit markers ("Ch. 12", "v03", "#7") win over bare numbers; among bare
// numbers the last one is used, after dropping bracketed release tags.
// It returns 0 when the name contains no number.
func ChapterNumber(path string) float64 {
	name := bracketed.ReplaceAllString(ChapterTitle(path), " ")

	if m := markedNumber.FindAllStringSubmatch(name, -1); len(m) > 0 {
		if n, err := strconv.ParseFloat(m[len(m)-1][1], 64); err == nil {
			return n
		}
	}
	if m := anyNumber.FindAllString(name, -1); len(m) > 0 {
		if n, err := strconv.ParseFloat(m[len(m)-1], 64); err == nil {
			return n
		}
	}
	return 0
}
