package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pasteup/internal/event"
	"pasteup/pkg/uploader"
)

func imageFile(name string) uploader.File {
	return uploader.File{Name: name, ContentType: "image/png", Data: []byte{0x89}}
}

func textFile(name string) uploader.File {
	return uploader.File{Name: name, ContentType: "text/plain", Data: []byte("hi")}
}

func dropEvent(types []string, files ...uploader.File) event.Event {
	return event.NewEvent(event.KindDrop, event.Position{X: 1, Y: 2}, event.Transfer{
		Types: types,
		Files: files,
	})
}

func pasteEvent(files ...uploader.File) event.Event {
	return event.NewEvent(event.KindPaste, event.Position{}, event.Transfer{Files: files})
}

func TestDrop(t *testing.T) {
	tests := []struct {
		name          string
		ev            event.Event
		uploaderReady bool
		want          Verdict
	}{
		{
			name:          "single image file",
			ev:            dropEvent([]string{event.TransferTypeFiles}, imageFile("a.png")),
			uploaderReady: true,
			want:          VerdictEligible,
		},
		{
			name:          "several image files",
			ev:            dropEvent([]string{event.TransferTypeFiles}, imageFile("a.png"), imageFile("b.gif"), imageFile("c.jpg")),
			uploaderReady: true,
			want:          VerdictEligible,
		},
		{
			name:          "extra transfer type",
			ev:            dropEvent([]string{event.TransferTypeFiles, "text/uri-list"}, imageFile("a.png")),
			uploaderReady: true,
			want:          VerdictIneligible,
		},
		{
			name:          "wrong transfer type",
			ev:            dropEvent([]string{"text/plain"}, imageFile("a.png")),
			uploaderReady: true,
			want:          VerdictIneligible,
		},
		{
			name:          "no transfer types",
			ev:            dropEvent(nil, imageFile("a.png")),
			uploaderReady: true,
			want:          VerdictIneligible,
		},
		{
			name:          "no files",
			ev:            dropEvent([]string{event.TransferTypeFiles}),
			uploaderReady: true,
			want:          VerdictIneligible,
		},
		{
			name:          "one non-image among images",
			ev:            dropEvent([]string{event.TransferTypeFiles}, imageFile("a.png"), textFile("notes.txt")),
			uploaderReady: true,
			want:          VerdictIneligible,
		},
		{
			name:          "eligible shape but no uploader",
			ev:            dropEvent([]string{event.TransferTypeFiles}, imageFile("a.png")),
			uploaderReady: false,
			want:          VerdictNoUploader,
		},
		{
			name:          "ineligible shape and no uploader stays silent",
			ev:            dropEvent([]string{"text/plain"}, textFile("notes.txt")),
			uploaderReady: false,
			want:          VerdictIneligible,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Drop(tt.ev, tt.uploaderReady))
		})
	}
}

func TestPaste(t *testing.T) {
	tests := []struct {
		name          string
		ev            event.Event
		uploaderReady bool
		want          Verdict
	}{
		{
			name:          "single image file",
			ev:            pasteEvent(imageFile("clip.png")),
			uploaderReady: true,
			want:          VerdictEligible,
		},
		{
			name:          "first image, later files ignored",
			ev:            pasteEvent(imageFile("clip.png"), textFile("notes.txt")),
			uploaderReady: true,
			want:          VerdictEligible,
		},
		{
			name:          "first file not an image",
			ev:            pasteEvent(textFile("notes.txt"), imageFile("clip.png")),
			uploaderReady: true,
			want:          VerdictIneligible,
		},
		{
			name:          "no files",
			ev:            pasteEvent(),
			uploaderReady: true,
			want:          VerdictIneligible,
		},
		{
			name:          "eligible shape but no uploader",
			ev:            pasteEvent(imageFile("clip.png")),
			uploaderReady: false,
			want:          VerdictNoUploader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Paste(tt.ev, tt.uploaderReady))
		})
	}
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "ineligible", VerdictIneligible.String())
	assert.Equal(t, "no-uploader", VerdictNoUploader.String())
	assert.Equal(t, "eligible", VerdictEligible.String())
	assert.Equal(t, "unknown", Verdict(42).String())
}
