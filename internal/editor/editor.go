// Package editor defines the document surface the interception engine
// works against and a line-buffer implementation of it. The engine only
// ever borrows an editor through the Editor interface; it never owns the
// document.
package editor

// Position is a line/character coordinate in a document. Line is
// zero-based; Ch counts bytes from the start of the line.
type Position struct {
	Line int `json:"line"`
	Ch   int `json:"ch"`
}

// Before reports whether p precedes q in document order.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Ch < q.Ch
}

// Editor is the minimal document surface required for interception.
type Editor interface {
	// Value returns the full document text.
	Value() string

	// Selection returns the selected range. An empty selection has
	// from == to at the cursor.
	Selection() (from, to Position)

	// ReplaceSelection replaces the selected range with text and
	// collapses the selection to the end of the inserted text.
	ReplaceSelection(text string)

	// ReplaceRange splices text over the range between from and to.
	ReplaceRange(text string, from, to Position)

	// Cursor returns the current cursor position.
	Cursor() Position
}
