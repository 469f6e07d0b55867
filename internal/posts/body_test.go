// ABOUTME: Tests for live body edits
// ABOUTME: Checks character-aware append, backspace and last line splicing

package posts

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendAndBackspace(t *testing.T) {
	body := AppendChar("ab", 'ç')
	assert.Equal(t, "abç", body)
	assert.Equal(t, "ab", Backspace(body))
	assert.Equal(t, "", Backspace(""))
	assert.Equal(t, "日", Backspace("日本"))
}

func TestSpliceLastLine(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		start  int
		length int
		text   string
		want   string
	}{
		{"replace middle", "hello world", 6, 5, "there", "hello there"},
		{"insert", "helo", 3, 0, "l", "hello"},
		{"to line end", "first\nsecond line", 6, -1, "row", "first\nsecond row"},
		{"only last line", "keep\nabc", 0, 1, "X", "keep\nXbc"},
		{"multibyte", "日本語", 1, 1, "x", "日x語"},
		{"clamped start", "abc", 10, 0, "d", "abcd"},
		{"length past end", "abc", 1, 10, "z", "az"},
		{"huge length", "hello", 2, math.MaxInt, "X", "heX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SpliceLastLine(tt.body, tt.start, tt.length, tt.text))
		})
	}
}
