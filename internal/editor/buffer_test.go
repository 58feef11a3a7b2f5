package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferValue(t *testing.T) {
	tests := []string{
		"",
		"one line",
		"line one\nline two",
		"trailing newline\n",
		"\n\n",
	}
	for _, text := range tests {
		assert.Equal(t, text, NewBuffer(text).Value())
	}
}

func TestBufferSelectionNormalizesAndClamps(t *testing.T) {
	b := NewBuffer("abc\ndef")

	b.SetSelection(Position{Line: 1, Ch: 2}, Position{Line: 0, Ch: 1})
	from, to := b.Selection()
	assert.Equal(t, Position{Line: 0, Ch: 1}, from)
	assert.Equal(t, Position{Line: 1, Ch: 2}, to)

	b.SetSelection(Position{Line: -3, Ch: -1}, Position{Line: 99, Ch: 99})
	from, to = b.Selection()
	assert.Equal(t, Position{Line: 0, Ch: 0}, from)
	assert.Equal(t, Position{Line: 1, Ch: 3}, to)
}

func TestReplaceSelectionInsertsAtCursor(t *testing.T) {
	b := NewBuffer("hello world")
	b.SetCursor(Position{Line: 0, Ch: 5})

	b.ReplaceSelection(" brave")

	assert.Equal(t, "hello brave world", b.Value())
	assert.Equal(t, Position{Line: 0, Ch: 11}, b.Cursor())

	from, to := b.Selection()
	assert.Equal(t, from, to, "selection should collapse after insert")
}

func TestReplaceSelectionReplacesRange(t *testing.T) {
	b := NewBuffer("hello world")
	b.SetSelection(Position{Line: 0, Ch: 6}, Position{Line: 0, Ch: 11})

	b.ReplaceSelection("there")

	assert.Equal(t, "hello there", b.Value())
	assert.Equal(t, Position{Line: 0, Ch: 11}, b.Cursor())
}

func TestReplaceSelectionMultiLine(t *testing.T) {
	b := NewBuffer("hello world")
	b.SetCursor(Position{Line: 0, Ch: 5})

	b.ReplaceSelection("\nmarker\n")

	assert.Equal(t, "hello\nmarker\n world", b.Value())
	assert.Equal(t, Position{Line: 2, Ch: 0}, b.Cursor())
}

func TestReplaceRangeSingleLine(t *testing.T) {
	b := NewBuffer("before\n![Uploading file...17abcde]()\nafter")

	marker := "![Uploading file...17abcde]()"
	b.ReplaceRange("![](https://i.example/x.png)", Position{Line: 1, Ch: 0}, Position{Line: 1, Ch: len(marker)})

	assert.Equal(t, "before\n![](https://i.example/x.png)\nafter", b.Value())
}

func TestReplaceRangeMidLine(t *testing.T) {
	b := NewBuffer("aaMARKERbb")

	b.ReplaceRange("x", Position{Line: 0, Ch: 2}, Position{Line: 0, Ch: 8})

	assert.Equal(t, "aaxbb", b.Value())
}

func TestReplaceRangeAcrossLines(t *testing.T) {
	b := NewBuffer("one\ntwo\nthree")

	b.ReplaceRange("-", Position{Line: 0, Ch: 2}, Position{Line: 2, Ch: 3})

	assert.Equal(t, "on-ee", b.Value())
}

func TestReplaceRangeReversedAndOutOfBounds(t *testing.T) {
	b := NewBuffer("short")

	b.ReplaceRange("!", Position{Line: 8, Ch: 200}, Position{Line: 0, Ch: 5})

	assert.Equal(t, "short!", b.Value())
}

func TestReplaceRangeKeepsSelectionInBounds(t *testing.T) {
	b := NewBuffer("line one\nline two")
	b.SetCursor(Position{Line: 1, Ch: 8})

	b.ReplaceRange("", Position{Line: 1, Ch: 0}, Position{Line: 1, Ch: 8})

	cur := b.Cursor()
	require.Equal(t, 1, cur.Line)
	assert.Equal(t, 0, cur.Ch)
}
