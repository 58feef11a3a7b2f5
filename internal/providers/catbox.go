package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pasteup/pkg/uploader"
)

const (
	catboxEndpoint = "https://catbox.moe/user/api.php"
	catboxMaxBytes = 200 << 20
)

// Catbox uploads to catbox.moe. No credential is required; an optional
// user hash attaches uploads to an account.
type Catbox struct {
	endpoint string
	userHash string
	maxBytes int64
	client   *http.Client
}

// NewCatbox creates a catbox provider ready for anonymous uploads.
func NewCatbox() *Catbox {
	return &Catbox{
		endpoint: catboxEndpoint,
		maxBytes: catboxMaxBytes,
		client:   &http.Client{Timeout: defaultTimeout},
	}
}

// Name returns the provider identifier.
func (p *Catbox) Name() string { return "catbox" }

// DisplayName returns a human-readable name.
func (p *Catbox) DisplayName() string { return "catbox.moe" }

// RequiresCredential reports that catbox works without a credential.
func (p *Catbox) RequiresCredential() bool { return false }

// Configure sets the optional user hash and limits.
func (p *Catbox) Configure(config map[string]interface{}) error {
	if hash, ok := config["userhash"].(string); ok {
		p.userHash = hash
	}
	if endpoint, ok := config["endpoint"].(string); ok && endpoint != "" {
		p.endpoint = endpoint
	}
	if sec, ok := configInt(config["timeout_sec"]); ok && sec > 0 {
		p.client.Timeout = time.Duration(sec) * time.Second
	}
	if mb, ok := configInt(config["max_upload_mb"]); ok && mb > 0 {
		p.maxBytes = mb << 20
	}
	return nil
}

// Upload implements uploader.Uploader. The API answers with a bare URL
// on success and a plain-text error message otherwise.
func (p *Catbox) Upload(ctx context.Context, file uploader.File) (string, error) {
	if err := checkFile(file, p.maxBytes); err != nil {
		return "", err
	}

	fields := map[string]string{"reqtype": "fileupload"}
	if p.userHash != "" {
		fields["userhash"] = p.userHash
	}

	status, body, err := sendMultipart(ctx, p.client, http.MethodPost, p.endpoint, nil, fields, "fileToUpload", file)
	if err != nil {
		return "", fmt.Errorf("catbox: %w", err)
	}

	text := strings.TrimSpace(string(body))
	if !statusOK(status) {
		return "", &uploader.APIError{Provider: "catbox", StatusCode: status, Message: snippet(body)}
	}
	if !strings.HasPrefix(text, "https://") {
		msg := text
		if msg == "" {
			msg = "empty response"
		}
		return "", &uploader.APIError{Provider: "catbox", StatusCode: status, Message: msg}
	}
	return text, nil
}
