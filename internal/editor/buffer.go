package editor

import (
	"strings"
	"sync"
)

// Buffer is an in-memory Editor backed by a slice of lines. It is the
// document implementation used by the daemon's IPC boundary and by
// tests; a real editor plugin substitutes its own Editor.
type Buffer struct {
	mu      sync.Mutex
	lines   []string
	selFrom Position
	selTo   Position
}

var _ Editor = (*Buffer)(nil)

// NewBuffer creates a buffer holding text, with the cursor at the start.
func NewBuffer(text string) *Buffer {
	return &Buffer{lines: strings.Split(text, "\n")}
}

// Value returns the full document text.
func (b *Buffer) Value() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}

// Selection returns the selected range.
func (b *Buffer) Selection() (from, to Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selFrom, b.selTo
}

// SetSelection selects the range between from and to. Reversed ranges
// are normalized; out-of-range positions are clamped.
func (b *Buffer) SetSelection(from, to Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	from = b.clamp(from)
	to = b.clamp(to)
	if to.Before(from) {
		from, to = to, from
	}
	b.selFrom, b.selTo = from, to
}

// SetCursor collapses the selection to pos.
func (b *Buffer) SetCursor(pos Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pos = b.clamp(pos)
	b.selFrom, b.selTo = pos, pos
}

// Cursor returns the head of the selection.
func (b *Buffer) Cursor() Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selTo
}

// ReplaceSelection replaces the selected range with text and collapses
// the selection to the end of the inserted text.
func (b *Buffer) ReplaceSelection(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	end := b.splice(text, b.selFrom, b.selTo)
	b.selFrom, b.selTo = end, end
}

// ReplaceRange splices text over the range between from and to. The
// selection is clamped afterwards so it always stays inside the document.
func (b *Buffer) ReplaceRange(text string, from, to Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	from = b.clamp(from)
	to = b.clamp(to)
	if to.Before(from) {
		from, to = to, from
	}
	b.splice(text, from, to)
	b.selFrom = b.clamp(b.selFrom)
	b.selTo = b.clamp(b.selTo)
}

// splice replaces the range [from, to] with text and returns the end
// position of the inserted text. Callers hold b.mu and pass normalized,
// clamped positions.
func (b *Buffer) splice(text string, from, to Position) Position {
	prefix := b.lines[from.Line][:from.Ch]
	suffix := b.lines[to.Line][to.Ch:]

	segs := strings.Split(text, "\n")
	newLines := make([]string, len(segs))
	newLines[0] = prefix + segs[0]
	copy(newLines[1:], segs[1:])

	var end Position
	if len(segs) == 1 {
		end = Position{Line: from.Line, Ch: len(newLines[0])}
	} else {
		end = Position{Line: from.Line + len(segs) - 1, Ch: len(segs[len(segs)-1])}
	}
	newLines[len(newLines)-1] += suffix

	replaced := make([]string, 0, len(b.lines)-(to.Line-from.Line+1)+len(newLines))
	replaced = append(replaced, b.lines[:from.Line]...)
	replaced = append(replaced, newLines...)
	replaced = append(replaced, b.lines[to.Line+1:]...)
	b.lines = replaced

	return end
}

// clamp restricts pos to valid coordinates. Callers hold b.mu.
func (b *Buffer) clamp(pos Position) Position {
	if pos.Line < 0 {
		pos.Line = 0
	}
	if pos.Line >= len(b.lines) {
		pos.Line = len(b.lines) - 1
	}
	if pos.Ch < 0 {
		pos.Ch = 0
	}
	if max := len(b.lines[pos.Line]); pos.Ch > max {
		pos.Ch = max
	}
	return pos
}
