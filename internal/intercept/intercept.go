// Package intercept tracks which editor instances have had their paste
// and drop handlers wrapped, keeps the only backup of the native
// handlers, and restores them verbatim on teardown. It also owns the
// per-document mutation lock shared by everything that edits an
// intercepted document.
package intercept

import (
	"sort"
	"sync"

	"pasteup/internal/editor"
)

// record is the interception state for one editor instance.
type record struct {
	inst      *editor.Instance
	originals editor.Handlers
	docMu     *sync.Mutex
}

// Registry maps instance identity tokens to interception records.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*record
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*record)}
}

// Install swaps wrapped in as inst's handlers. The native handlers are
// backed up on the first install only; reinstalling replaces the
// wrappers but never touches the backup, so repeated installs are
// idempotent with respect to restoration.
func (r *Registry) Install(inst *editor.Instance, wrapped editor.Handlers) {
	r.mu.Lock()
	if _, ok := r.records[inst.ID]; !ok {
		r.records[inst.ID] = &record{
			inst:      inst,
			originals: inst.Handlers(),
			docMu:     &sync.Mutex{},
		}
	}
	r.mu.Unlock()

	inst.SetHandlers(wrapped)
}

// Installed reports whether the instance is currently intercepted.
func (r *Registry) Installed(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[id]
	return ok
}

// Originals returns the backed-up native handlers for the instance.
func (r *Registry) Originals(id string) (editor.Handlers, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return editor.Handlers{}, false
	}
	return rec.originals, true
}

// DocLock returns the document mutation lock for the instance. Every
// caller that mutates the instance's document holds this lock across
// its whole read-locate-patch sequence.
func (r *Registry) DocLock(id string) (*sync.Mutex, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, false
	}
	return rec.docMu, true
}

// Uninstall restores the native handlers verbatim and forgets the
// instance. It reports whether the instance was intercepted.
func (r *Registry) Uninstall(id string) bool {
	r.mu.Lock()
	rec, ok := r.records[id]
	if ok {
		delete(r.records, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	rec.inst.SetHandlers(rec.originals)
	return true
}

// UninstallAll restores every intercepted instance.
func (r *Registry) UninstallAll() {
	r.mu.Lock()
	recs := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.records = make(map[string]*record)
	r.mu.Unlock()

	for _, rec := range recs {
		rec.inst.SetHandlers(rec.originals)
	}
}

// IDs returns the intercepted instance IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
