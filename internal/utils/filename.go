package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// Characters invalid in filenames on most filesystems
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	// Multiple spaces to collapse
	multipleSpaces = regexp.MustCompile(`\s+`)
)

// MaxFilenameBytes leaves room for an extension within the common 255 byte limit.
const MaxFilenameBytes = 200

// SanitizeFilename makes name safe to use as a file name on the filesystems a
// library usually lives on, including SMB shares. Brackets are kept since
// release names use them for groups and volumes.
func SanitizeFilename(name string) string {
	// Control characters become spaces so words stay apart
	name = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, name)
	name = invalidFilenameChars.ReplaceAllString(name, "")
	name = multipleSpaces.ReplaceAllString(name, " ")

	// Windows drops trailing dots and spaces silently
	name = strings.TrimRight(strings.TrimSpace(name), ". ")

	if len(name) > MaxFilenameBytes {
		cut := MaxFilenameBytes
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = strings.TrimSpace(name[:cut])
	}

	if name == "" {
		name = "Untitled"
	}
	return name
}
