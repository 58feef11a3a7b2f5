package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pasteup/pkg/uploader"
)

const (
	imgurEndpoint = "https://api.imgur.com/3/image"
	imgurMaxBytes = 10 << 20
)

// Imgur uploads to the imgur v3 API. With only a client ID uploads are
// anonymous; with an access token they land in the user's account.
type Imgur struct {
	endpoint    string
	clientID    string
	accessToken string
	maxBytes    int64
	client      *http.Client
}

// NewImgur creates an unconfigured imgur provider.
func NewImgur() *Imgur {
	return &Imgur{
		endpoint: imgurEndpoint,
		maxBytes: imgurMaxBytes,
		client:   &http.Client{Timeout: defaultTimeout},
	}
}

// Name returns the provider identifier.
func (p *Imgur) Name() string { return "imgur" }

// DisplayName returns a human-readable name.
func (p *Imgur) DisplayName() string { return "imgur.com" }

// RequiresCredential reports that imgur needs a client ID or token.
func (p *Imgur) RequiresCredential() bool { return true }

// Configure sets credentials and limits. Either client_id or
// access_token must be present.
func (p *Imgur) Configure(config map[string]interface{}) error {
	if id, ok := config["client_id"].(string); ok {
		p.clientID = id
	}
	if tok, ok := config["access_token"].(string); ok {
		p.accessToken = tok
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

	if p.clientID == "" && p.accessToken == "" {
		return fmt.Errorf("%w: imgur requires a client_id or access_token", uploader.ErrNotConfigured)
	}
	return nil
}

// imgurEnvelope is the v3 API response wrapper.
type imgurEnvelope struct {
	Data struct {
		Link  string          `json:"link"`
		Error json.RawMessage `json:"error"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
}

// Upload implements uploader.Uploader.
func (p *Imgur) Upload(ctx context.Context, file uploader.File) (string, error) {
	if p.clientID == "" && p.accessToken == "" {
		return "", uploader.ErrNotConfigured
	}
	if err := checkFile(file, p.maxBytes); err != nil {
		return "", err
	}

	headers := make(map[string]string, 1)
	if p.accessToken != "" {
		headers["Authorization"] = "Bearer " + p.accessToken
	} else {
		headers["Authorization"] = "Client-ID " + p.clientID
	}
	fields := map[string]string{
		"type": "file",
		"name": file.Name,
	}

	status, body, err := sendMultipart(ctx, p.client, http.MethodPost, p.endpoint, headers, fields, "image", file)
	if err != nil {
		return "", fmt.Errorf("imgur: %w", err)
	}

	var env imgurEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		if !statusOK(status) {
			return "", &uploader.APIError{Provider: "imgur", StatusCode: status, Message: snippet(body)}
		}
		return "", fmt.Errorf("imgur: decode response: %w", err)
	}

	if !statusOK(status) || !env.Success {
		return "", &uploader.APIError{
			Provider:   "imgur",
			StatusCode: status,
			Message:    imgurErrorMessage(env, body),
		}
	}
	if env.Data.Link == "" {
		return "", uploader.ErrNoURL
	}
	return env.Data.Link, nil
}

// imgurErrorMessage digs the human-readable message out of the error
// field, which the API serves either as a string or as an object.
func imgurErrorMessage(env imgurEnvelope, body []byte) string {
	if len(env.Data.Error) > 0 {
		var s string
		if json.Unmarshal(env.Data.Error, &s) == nil && s != "" {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(env.Data.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
	}
	return snippet(body)
}
