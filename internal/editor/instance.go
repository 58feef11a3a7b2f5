package editor

import (
	"sync"

	"pasteup/internal/event"
)

// HandlerFunc handles one paste or drop event on an editor instance.
type HandlerFunc func(*Instance, event.Event)

// Handlers is the pair of callbacks an instance dispatches events to.
// A nil handler means the event is dropped.
type Handlers struct {
	Paste HandlerFunc
	Drop  HandlerFunc
}

// Instance binds a document to its paste and drop handlers. The engine
// swaps the handlers to interpose itself and restores them on teardown.
type Instance struct {
	// ID is the stable identity token interception records key on.
	// It never changes for the lifetime of the instance.
	ID string

	// Doc is the document the instance edits.
	Doc Editor

	mu       sync.RWMutex
	handlers Handlers
}

// NewInstance creates an instance around doc. The ID must be unique
// among live instances.
func NewInstance(id string, doc Editor) *Instance {
	return &Instance{ID: id, Doc: doc}
}

// Handlers returns the currently installed handlers.
func (in *Instance) Handlers() Handlers {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.handlers
}

// SetHandlers installs h as the instance's handlers.
func (in *Instance) SetHandlers(h Handlers) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.handlers = h
}

// DispatchPaste invokes the currently installed paste handler.
func (in *Instance) DispatchPaste(ev event.Event) {
	h := in.Handlers()
	if h.Paste != nil {
		h.Paste(in, ev)
	}
}

// DispatchDrop invokes the currently installed drop handler.
func (in *Instance) DispatchDrop(ev event.Event) {
	h := in.Handlers()
	if h.Drop != nil {
		h.Drop(in, ev)
	}
}
