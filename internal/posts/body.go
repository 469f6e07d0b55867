// ABOUTME: Live text body edits for open posts
// ABOUTME: Edits work on characters so multi-byte text is never split

package posts

import "strings"

// AppendChar returns body with the code point appended.
func AppendChar(body string, code rune) string {
	return body + string(code)
}

// Backspace returns body without its last character.
func Backspace(body string) string {
	r := []rune(body)
	if len(r) == 0 {
		return body
	}
	return string(r[:len(r)-1])
}

// SpliceLastLine replaces length characters of the body's last line,
// starting at start, with text. A length of -1 replaces everything from
// start to the end of the line. Out of range positions are clamped.
func SpliceLastLine(body string, start, length int, text string) string {
	prefix := ""
	line := body
	if i := strings.LastIndexByte(body, '\n'); i >= 0 {
		prefix, line = body[:i+1], body[i+1:]
	}

	chars := []rune(line)
	start = min(max(start, 0), len(chars))

	var tail []rune
	if length >= 0 && length < len(chars)-start {
		tail = chars[start+length:]
	}
	return prefix + string(chars[:start]) + text + string(tail)
}
