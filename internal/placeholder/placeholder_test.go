package placeholder

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pasteup/internal/editor"
)

func TestTokenSourceUnique(t *testing.T) {
	var src TokenSource

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok := src.Next()
		require.False(t, seen[tok], "token %q issued twice", tok)
		seen[tok] = true
	}
}

func TestTokenSourceCounterAdvances(t *testing.T) {
	var src TokenSource

	first := src.Next()
	second := src.Next()

	assert.True(t, strings.HasPrefix(first, "1"), "first token %q", first)
	assert.True(t, strings.HasPrefix(second, "2"), "second token %q", second)
	assert.Len(t, first, 1+suffixLen)
}

func TestMarkerFor(t *testing.T) {
	assert.Equal(t, "![Uploading file...17abcde]()", MarkerFor("17abcde"))
}

func TestSuccessEmbed(t *testing.T) {
	assert.Equal(t, "![](https://i.example/x.png)", SuccessEmbed("https://i.example/x.png"))
}

func TestFailureAnnotation(t *testing.T) {
	got := FailureAnnotation("Image is over the size limit")
	assert.Equal(t, "<!-- ⚠️ image upload failed: Image is over the size limit -->", got)
}

func newTestReconciler(text string) (*Reconciler, *editor.Buffer) {
	buf := editor.NewBuffer(text)
	var mu sync.Mutex
	return NewReconciler(buf, &mu), buf
}

func TestInsertAtCursor(t *testing.T) {
	rec, buf := newTestReconciler("hello world")
	buf.SetCursor(editor.Position{Line: 0, Ch: 5})

	marker := rec.Insert("3k9xy2")

	assert.Equal(t, "hello"+marker+"\n world", buf.Value())
	assert.Equal(t, editor.Position{Line: 1, Ch: 0}, buf.Cursor())
}

func TestInsertReplacesSelection(t *testing.T) {
	rec, buf := newTestReconciler("drag the image here")
	buf.SetSelection(editor.Position{Line: 0, Ch: 9}, editor.Position{Line: 0, Ch: 14})

	marker := rec.Insert("4aaaaa")

	assert.Equal(t, "drag the "+marker+"\n here", buf.Value())
}

func TestInsertSeparator(t *testing.T) {
	rec, buf := newTestReconciler("notes:")
	buf.SetCursor(editor.Position{Line: 0, Ch: 6})

	rec.InsertSeparator()
	marker := rec.Insert("5bbbbb")

	assert.Equal(t, "notes:\n"+marker+"\n", buf.Value())
}

func TestResolveSuccess(t *testing.T) {
	rec, buf := newTestReconciler("before")
	buf.SetCursor(editor.Position{Line: 0, Ch: 6})
	rec.Insert("6ccccc")

	ok := rec.ResolveSuccess("6ccccc", "https://i.example/a.png")

	require.True(t, ok)
	assert.Equal(t, "before![](https://i.example/a.png)\n", buf.Value())
}

func TestResolveFailure(t *testing.T) {
	rec, buf := newTestReconciler("")
	rec.Insert("7*****")

	ok := rec.ResolveFailure("7*****", "File not allowed")

	require.True(t, ok)
	assert.Equal(t, "<!-- ⚠️ image upload failed: File not allowed -->\n", buf.Value())
}

func TestResolveFirstOccurrenceOnly(t *testing.T) {
	marker := MarkerFor("8dup00")
	rec, buf := newTestReconciler(marker + "\nmiddle\n" + marker)

	ok := rec.ResolveSuccess("8dup00", "https://i.example/one.png")

	require.True(t, ok)
	assert.Equal(t, "![](https://i.example/one.png)\nmiddle\n"+marker, buf.Value())
}

func TestResolveVanishedMarkerIsNoop(t *testing.T) {
	rec, buf := newTestReconciler("the user deleted the marker")

	ok := rec.ResolveSuccess("9gone0", "https://i.example/x.png")

	assert.False(t, ok)
	assert.Equal(t, "the user deleted the marker", buf.Value())
}

func TestResolveMarkerMovedByUser(t *testing.T) {
	marker := MarkerFor("10mvd0")
	rec, buf := newTestReconciler("intro\n  indented " + marker + " trailing\noutro")

	ok := rec.ResolveSuccess("10mvd0", "https://i.example/m.png")

	require.True(t, ok)
	assert.Equal(t, "intro\n  indented ![](https://i.example/m.png) trailing\noutro", buf.Value())
}

func TestConcurrentResolves(t *testing.T) {
	var src TokenSource
	rec, buf := newTestReconciler("")

	const n = 16
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = src.Next()
		rec.Insert(tokens[i])
	}

	var wg sync.WaitGroup
	for i, tok := range tokens {
		wg.Add(1)
		go func(i int, tok string) {
			defer wg.Done()
			if i%2 == 0 {
				rec.ResolveSuccess(tok, "https://i.example/ok.png")
			} else {
				rec.ResolveFailure(tok, "boom")
			}
		}(i, tok)
	}
	wg.Wait()

	value := buf.Value()
	assert.NotContains(t, value, markerPrefix)
	assert.Equal(t, n/2, strings.Count(value, "![](https://i.example/ok.png)"))
	assert.Equal(t, n/2, strings.Count(value, "upload failed: boom"))
}
