// Package providers implements the built-in upload providers (imgur,
// catbox, custom) and the factory that resolves the configured one.
// Built-ins register themselves into the default registry at init, the
// same way database/sql drivers do.
package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"pasteup/pkg/uploader"
)

func init() {
	uploader.Register(NewImgur())
	uploader.Register(NewCatbox())
	uploader.Register(NewCustom())
}

const (
	defaultTimeout = 60 * time.Second

	// maxResponseBytes caps how much of a provider response is read.
	maxResponseBytes = 10 << 20

	// errSnippetBytes caps how much of an error body lands in messages.
	errSnippetBytes = 1024
)

// multipartBody assembles a multipart form with the given fields plus
// the file under fileField, carrying the file's declared MIME type.
func multipartBody(fields map[string]string, fileField string, file uploader.File) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, file.Name))
	if file.ContentType != "" {
		h.Set("Content-Type", file.ContentType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// sendMultipart sends the form and returns the status code and the
// response body, capped at maxResponseBytes. Non-2xx responses still
// return the body so callers can extract the service's error message.
func sendMultipart(ctx context.Context, client *http.Client, method, url string, headers, fields map[string]string, fileField string, file uploader.File) (int, []byte, error) {
	body, contentType, err := multipartBody(fields, fileField, file)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// snippet trims a response body for inclusion in an error message.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > errSnippetBytes {
		s = s[:errSnippetBytes] + "..."
	}
	return s
}

func statusOK(status int) bool {
	return status >= 200 && status <= 299
}

// checkFile applies the provider's size cap before any bytes go out.
func checkFile(file uploader.File, maxBytes int64) error {
	if file.Size() == 0 {
		return uploader.ErrEmptyFile
	}
	if maxBytes > 0 && file.Size() > maxBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", uploader.ErrFileTooLarge, file.Size(), maxBytes)
	}
	return nil
}

// configInt reads a numeric config value. JSON-decoded settings arrive
// as float64, TOML as int64, and hand-built maps as int.
func configInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
