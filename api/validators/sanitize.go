package validators

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

func SanitizeString(input string, maxLen int) string {
	return truncateRunes(strings.TrimSpace(input), maxLen)
}

// SanitizeFileName trims the name and shortens its stem to fit maxLen bytes,
// keeping the extension.
func SanitizeFileName(name string, maxLen int) string {
	trimmed := strings.TrimSpace(name)
	if maxLen <= 0 || len(trimmed) <= maxLen {
		return trimmed
	}
	ext := filepath.Ext(trimmed)
	if len(ext) >= maxLen {
		return truncateRunes(trimmed, maxLen)
	}
	stem := strings.TrimSuffix(trimmed, ext)
	return truncateRunes(stem, maxLen-len(ext)) + ext
}

// truncateRunes cuts s to at most maxLen bytes without splitting a character.
func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
