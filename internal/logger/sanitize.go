package logger

import (
	"strings"
	"unicode"
)

// Log field limits. Paths and client ids come straight from the request and
// are attacker-controlled.
const (
	MaxPathLength          = 500
	MaxClientIDLength      = 128
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
)

// SanitizePath bounds a URL path for logging.
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeClientID bounds a client identifier taken from forwarding headers.
func SanitizeClientID(clientID string) string {
	return SanitizeString(clientID, MaxClientIDLength)
}

// SanitizeError bounds an error message for logging. A nil error yields "".
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeString drops invalid UTF-8 and control characters other than
// whitespace, then truncates to maxLength bytes with a "..." marker.
// A non-positive maxLength means MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, strings.ToValidUTF8(s, ""))

	if len(s) > maxLength {
		s = strings.ToValidUTF8(s[:maxLength], "") + "..."
	}
	return s
}
