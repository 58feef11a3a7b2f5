package uploader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	name string
}

func (f *fakeUploader) Name() string              { return f.name }
func (f *fakeUploader) DisplayName() string       { return f.name + ".example" }
func (f *fakeUploader) RequiresCredential() bool  { return false }
func (f *fakeUploader) Configure(map[string]interface{}) error { return nil }
func (f *fakeUploader) Upload(ctx context.Context, file File) (string, error) {
	return "https://example.com/" + file.Name, nil
}

func TestFileSize(t *testing.T) {
	assert.Equal(t, int64(0), File{}.Size())
	assert.Equal(t, int64(5), File{Data: []byte("12345")}.Size())
}

func TestFileIsImage(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"image/png", true},
		{"image/jpeg", true},
		{"image/svg+xml", true},
		{"text/plain", false},
		{"application/pdf", false},
		{"", false},
		{"IMAGE/PNG", false}, // MIME types are compared as-is
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			f := File{Name: "x", ContentType: tt.contentType}
			assert.Equal(t, tt.want, f.IsImage())
		})
	}
}

func TestAPIErrorMessage(t *testing.T) {
	withStatus := &APIError{Provider: "imgur", StatusCode: 400, Message: "Image is over the size limit"}
	assert.Equal(t, "imgur: Image is over the size limit (status 400)", withStatus.Error())

	withoutStatus := &APIError{Provider: "catbox", Message: "File not allowed"}
	assert.Equal(t, "catbox: File not allowed", withoutStatus.Error())
}

func TestIsAPIError(t *testing.T) {
	apiErr := &APIError{Provider: "imgur", StatusCode: 429, Message: "rate limited"}

	got, ok := IsAPIError(apiErr)
	require.True(t, ok)
	assert.Equal(t, apiErr, got)

	wrapped := fmt.Errorf("upload %q: %w", "shot.png", apiErr)
	got, ok = IsAPIError(wrapped)
	require.True(t, ok)
	assert.Equal(t, 429, got.StatusCode)

	_, ok = IsAPIError(ErrNotConfigured)
	assert.False(t, ok)

	_, ok = IsAPIError(nil)
	assert.False(t, ok)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	pngPath := filepath.Join(dir, "shot.png")
	require.NoError(t, os.WriteFile(pngPath, []byte("fake png"), 0o644))

	f, err := ReadFile(pngPath)
	require.NoError(t, err)
	assert.Equal(t, "shot.png", f.Name)
	assert.Equal(t, "image/png", f.ContentType)
	assert.Equal(t, []byte("fake png"), f.Data)

	// No extension: the content type comes from sniffing the bytes.
	rawPath := filepath.Join(dir, "clipboard")
	require.NoError(t, os.WriteFile(rawPath, []byte("\x89PNG\r\n\x1a\n rest"), 0o644))

	f, err = ReadFile(rawPath)
	require.NoError(t, err)
	assert.Equal(t, "clipboard", f.Name)
	assert.Equal(t, "image/png", f.ContentType)

	// Parameters like charset are stripped.
	txtPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("hello"), 0o644))

	f, err = ReadFile(txtPath)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", f.ContentType)

	_, err = ReadFile(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Get("imgur")
	assert.False(t, ok)

	r.Register(&fakeUploader{name: "imgur"})
	r.Register(&fakeUploader{name: "catbox"})

	got, ok := r.Get("imgur")
	require.True(t, ok)
	assert.Equal(t, "imgur", got.Name())

	assert.Equal(t, []string{"catbox", "imgur"}, r.Names())
}

func TestRegistryReplace(t *testing.T) {
	r := NewRegistry()

	first := &fakeUploader{name: "imgur"}
	second := &fakeUploader{name: "imgur"}
	r.Register(first)
	r.Register(second)

	got, ok := r.Get("imgur")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Len(t, r.Names(), 1)
}
