package doubaospeech

import "strings"

// Sanitize makes free text safe to embed in a session configuration or a
// retrieval-context frame.
//
// Backslashes become forward slashes, tabs become spaces, and every other
// control character below U+0020 is removed. Newlines are kept.
func Sanitize(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\\':
			return '/'
		case r == '\t':
			return ' '
		case r == '\n':
			return r
		case r < ' ':
			return -1
		default:
			return r
		}
	}, text)
}
