// Package uploader defines the pluggable image upload provider interface.
//
// Providers take an in-memory image file and return a publicly reachable
// URL. The daemon ships with built-in providers and resolves the active
// one from configuration; third parties can implement Uploader and
// register it to add new destinations.
//
// # Built-in Providers
//
//   - imgur: anonymous (client ID) or authenticated (bearer token) uploads
//     to the imgur v3 API
//   - catbox: catbox.moe file host, optional account hash
//   - custom: arbitrary HTTP endpoint described by a JSON spec file
//
// # Usage
//
//	up, ok := uploader.Get("imgur")
//	if !ok {
//	    log.Fatal("no such provider")
//	}
//	if err := up.Configure(map[string]interface{}{"client_id": id}); err != nil {
//	    log.Fatal(err)
//	}
//	url, err := up.Upload(ctx, file)
package uploader

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Common errors
var (
	ErrNotConfigured   = errors.New("uploader: not configured")
	ErrUnknownProvider = errors.New("uploader: unknown provider")
	ErrEmptyFile       = errors.New("uploader: file is empty")
	ErrFileTooLarge    = errors.New("uploader: file exceeds provider limit")
	ErrNoURL           = errors.New("uploader: provider response contained no URL")
)

// File is an in-memory image attachment taken from a paste or drop event.
type File struct {
	// Name is the original filename, e.g. "screenshot.png".
	Name string `json:"name"`

	// ContentType is the declared MIME type, e.g. "image/png".
	ContentType string `json:"content_type"`

	// Data is the raw file content.
	Data []byte `json:"data"`
}

// Size returns the file size in bytes.
func (f File) Size() int64 {
	return int64(len(f.Data))
}

// IsImage reports whether the declared MIME type is an image type.
func (f File) IsImage() bool {
	return strings.HasPrefix(f.ContentType, "image/")
}

// ReadFile loads path into a File. The content type comes from the file
// extension when recognized, otherwise from sniffing the leading bytes.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}

	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}

	return File{
		Name:        filepath.Base(path),
		ContentType: ct,
		Data:        data,
	}, nil
}

// Uploader is the interface implemented by upload providers.
type Uploader interface {
	// Name returns a unique identifier, e.g. "imgur".
	Name() string

	// DisplayName returns a human-readable name, e.g. "imgur.com".
	DisplayName() string

	// RequiresCredential indicates whether the provider needs an API key,
	// client ID or similar before Upload can succeed.
	RequiresCredential() bool

	// Configure sets provider-specific configuration.
	// Returns an error if required configuration is missing or invalid.
	Configure(config map[string]interface{}) error

	// Upload sends the file and returns the public URL on success.
	// Remote rejections are reported as *APIError; anything else is a
	// transport or local failure.
	Upload(ctx context.Context, file File) (string, error)
}

// APIError means the provider accepted the request but rejected the
// upload, with a human-readable message from the service.
type APIError struct {
	// Provider identifier (e.g. "imgur")
	Provider string `json:"provider"`

	// StatusCode is the HTTP status of the rejecting response, when known.
	StatusCode int `json:"status_code,omitempty"`

	// Message is the provider's error message.
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// IsAPIError reports whether err is (or wraps) an *APIError, returning it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
