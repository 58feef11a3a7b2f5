// Package placeholder issues progress markers, inserts them into a
// document and later replaces them with success embeds or failure
// annotations. Markers are plain document text; the user can move or
// delete them while an upload is in flight, so replacement locates the
// marker fresh each time and treats a vanished marker as a no-op.
package placeholder

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"pasteup/internal/editor"
	"pasteup/internal/security"
)

const (
	markerPrefix = "![Uploading file..."
	markerSuffix = "]()"

	tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	suffixLen     = 5
)

// MarkerFor returns the literal marker text for a token, without the
// trailing newline Insert appends.
func MarkerFor(token string) string {
	return markerPrefix + token + markerSuffix
}

// SuccessEmbed returns the image embed that replaces a marker whose
// upload succeeded.
func SuccessEmbed(url string) string {
	return "![](" + url + ")"
}

// FailureAnnotation returns the inline annotation that replaces a marker
// whose upload failed.
func FailureAnnotation(message string) string {
	return "<!-- ⚠️ image upload failed: " + message + " -->"
}

// TokenSource issues unique marker tokens. A token is a process-wide
// counter followed by a short random suffix, so markers never collide
// within a process and are overwhelmingly unlikely to collide with
// marker-shaped text already present in a document.
type TokenSource struct {
	counter atomic.Uint64
}

// Next returns a fresh token. Tokens are never reused.
func (s *TokenSource) Next() string {
	n := s.counter.Add(1)
	return strconv.FormatUint(n, 10) + randomSuffix()
}

func randomSuffix() string {
	var b [suffixLen]byte
	if err := security.GenerateSecureRandom(b[:]); err != nil {
		// The counter alone still guarantees per-process uniqueness.
		return ""
	}
	for i := range b {
		b[i] = tokenAlphabet[int(b[i])%len(tokenAlphabet)]
	}
	return string(b[:])
}

// Reconciler patches one document's markers. Every operation holds the
// document's mutation lock across the whole read-locate-patch sequence,
// so sibling uploads resolving concurrently never interleave their edits.
type Reconciler struct {
	doc editor.Editor
	mu  *sync.Mutex
}

// NewReconciler creates a reconciler for doc guarded by mu. The mutex is
// shared with everything else that mutates the same document.
func NewReconciler(doc editor.Editor, mu *sync.Mutex) *Reconciler {
	return &Reconciler{doc: doc, mu: mu}
}

// InsertSeparator inserts one blank line at the selection, ahead of the
// first marker of a multi-file drop.
func (r *Reconciler) InsertSeparator() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doc.ReplaceSelection("\n")
}

// Insert replaces the current selection with the marker for token plus a
// trailing newline and returns the marker text.
func (r *Reconciler) Insert(token string) string {
	marker := MarkerFor(token)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doc.ReplaceSelection(marker + "\n")
	return marker
}

// ResolveSuccess replaces token's marker with an image embed for url.
// It reports whether the marker was still present.
func (r *Reconciler) ResolveSuccess(token, url string) bool {
	return r.resolve(token, SuccessEmbed(url))
}

// ResolveFailure replaces token's marker with a failure annotation
// carrying message. It reports whether the marker was still present.
func (r *Reconciler) ResolveFailure(token, message string) bool {
	return r.resolve(token, FailureAnnotation(message))
}

// resolve patches the first remaining occurrence of token's marker,
// scanning the document line by line at call time.
func (r *Reconciler) resolve(token, replacement string) bool {
	marker := MarkerFor(token)

	r.mu.Lock()
	defer r.mu.Unlock()

	lines := strings.Split(r.doc.Value(), "\n")
	for i, line := range lines {
		ch := strings.Index(line, marker)
		if ch < 0 {
			continue
		}
		from := editor.Position{Line: i, Ch: ch}
		to := editor.Position{Line: i, Ch: ch + len(marker)}
		r.doc.ReplaceRange(replacement, from, to)
		return true
	}
	return false
}
