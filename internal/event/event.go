// Package event defines the editor events the interception engine
// consumes. Events are plain records: they carry no references to native
// editor objects, so the same engine serves in-process buffers and
// events arriving over IPC.
package event

import (
	"github.com/google/uuid"

	"pasteup/pkg/uploader"
)

// TransferTypeFiles is the transfer type tag advertised when a drag
// payload carries files.
const TransferTypeFiles = "Files"

// Kind distinguishes paste events from drop events.
type Kind string

const (
	KindPaste Kind = "paste"
	KindDrop  Kind = "drop"
)

// String returns the kind name.
func (k Kind) String() string {
	return string(k)
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindPaste || k == KindDrop
}

// Position is the screen coordinate an event occurred at.
// Paste events carry the zero position.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Transfer is the payload attached to an event.
type Transfer struct {
	// Types lists the payload type tags, e.g. ["Files"] for a file drag.
	Types []string `json:"types"`

	// Files holds the attached files, when any.
	Files []uploader.File `json:"files"`
}

// HasType reports whether the transfer advertises the given type tag.
func (t Transfer) HasType(name string) bool {
	for _, typ := range t.Types {
		if typ == name {
			return true
		}
	}
	return false
}

// Event is one paste or drop observed in an editor.
type Event struct {
	// ID identifies the event. Residual events replayed after upload
	// failures carry the parent ID with a "/replay" suffix.
	ID string `json:"id"`

	Kind     Kind     `json:"kind"`
	Pos      Position `json:"pos"`
	Transfer Transfer `json:"transfer"`
}

// NewEvent creates an event with a fresh ID.
func NewEvent(kind Kind, pos Position, transfer Transfer) Event {
	return Event{
		ID:       uuid.NewString(),
		Kind:     kind,
		Pos:      pos,
		Transfer: transfer,
	}
}

// Residual builds the replay event for files whose uploads failed. It
// keeps the parent's kind and coordinates and carries exactly the given
// files in a fresh transfer.
func Residual(parent Event, files []uploader.File) Event {
	transfer := Transfer{Files: files}
	if parent.Kind == KindDrop {
		transfer.Types = []string{TransferTypeFiles}
	}
	return Event{
		ID:       parent.ID + "/replay",
		Kind:     parent.Kind,
		Pos:      parent.Pos,
		Transfer: transfer,
	}
}
