package util

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxFileNameLen bounds stored original file names, in bytes.
const MaxFileNameLen = 255

var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName makes an uploaded file name safe to store and echo back in
// Content-Disposition. Separators become underscores, control characters are
// dropped and long names are shortened while keeping the extension.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == '/' || r == '\\':
			b.WriteByte('_')
		case r == '"' || unicode.IsControl(r) || r == utf8.RuneError:
		default:
			b.WriteRune(r)
		}
	}
	s := strings.TrimSpace(b.String())
	if s == "" || s == "." {
		return "", ErrInvalidFileName
	}
	if len(s) > MaxFileNameLen {
		ext := filepath.Ext(s)
		if len(ext) > 16 {
			ext = ""
		}
		s = truncateBytes(s[:len(s)-len(ext)], MaxFileNameLen-len(ext)) + ext
	}
	return s, nil
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
