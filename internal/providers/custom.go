package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"pasteup/pkg/uploader"
)

// SpecSchemaJSON is the JSON Schema every custom uploader spec file must
// satisfy. The published copy under docs/schema is kept in sync by a test.
const SpecSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "$id": "https://pasteup.dev/schema/uploader-spec-v1.schema.json",
  "title": "Custom uploader spec",
  "type": "object",
  "required": ["name", "endpoint", "file_field"],
  "additionalProperties": false,
  "properties": {
    "name": {
      "type": "string",
      "minLength": 1
    },
    "endpoint": {
      "type": "string",
      "pattern": "^https?://"
    },
    "method": {
      "type": "string",
      "enum": ["POST", "PUT"]
    },
    "file_field": {
      "type": "string",
      "minLength": 1
    },
    "fields": {
      "type": "object",
      "additionalProperties": {
        "type": "string"
      }
    },
    "headers": {
      "type": "object",
      "additionalProperties": {
        "type": "string"
      }
    },
    "response": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "url_path": {
          "type": "string"
        },
        "error_path": {
          "type": "string"
        }
      }
    },
    "max_upload_mb": {
      "type": "integer",
      "minimum": 1
    }
  }
}`

// Spec describes a custom HTTP upload destination.
type Spec struct {
	Name        string            `json:"name"`
	Endpoint    string            `json:"endpoint"`
	Method      string            `json:"method,omitempty"`
	FileField   string            `json:"file_field"`
	Fields      map[string]string `json:"fields,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Response    SpecResponse      `json:"response,omitempty"`
	MaxUploadMB int64             `json:"max_upload_mb,omitempty"`
}

// SpecResponse tells the provider how to read the endpoint's answer.
type SpecResponse struct {
	// URLPath is the dotted path to the URL in a JSON response body,
	// e.g. "data.link". Empty means the whole body is the URL.
	URLPath string `json:"url_path,omitempty"`

	// ErrorPath is the dotted path to an error message, consulted on
	// failure responses.
	ErrorPath string `json:"error_path,omitempty"`
}

var specSchema = func() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("uploader-spec-v1.schema.json", strings.NewReader(SpecSchemaJSON)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("uploader-spec-v1.schema.json")
}()

// LoadSpec reads and validates a custom uploader spec file.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read uploader spec: %w", err)
	}
	return ParseSpec(data)
}

// ParseSpec validates raw JSON against the spec schema and decodes it.
func ParseSpec(data []byte) (*Spec, error) {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("uploader spec is not valid JSON: %w", err)
	}
	if err := specSchema.Validate(instance); err != nil {
		return nil, fmt.Errorf("uploader spec rejected: %w", err)
	}

	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	if spec.Method == "" {
		spec.Method = http.MethodPost
	}
	return &spec, nil
}

// Custom uploads to an arbitrary HTTP endpoint described by a spec file.
type Custom struct {
	spec     *Spec
	maxBytes int64
	client   *http.Client
}

// NewCustom creates an unconfigured custom provider. Configure must
// point it at a spec file before it can upload.
func NewCustom() *Custom {
	return &Custom{client: &http.Client{Timeout: defaultTimeout}}
}

// Name returns the provider identifier.
func (p *Custom) Name() string { return "custom" }

// DisplayName returns the spec's name once configured.
func (p *Custom) DisplayName() string {
	if p.spec != nil && p.spec.Name != "" {
		return p.spec.Name
	}
	return "custom endpoint"
}

// RequiresCredential reports that credentials, if any, live in the spec's
// headers rather than the daemon config.
func (p *Custom) RequiresCredential() bool { return false }

// Configure loads and validates the spec file named by spec_path.
func (p *Custom) Configure(config map[string]interface{}) error {
	path, _ := config["spec_path"].(string)
	if path == "" {
		return fmt.Errorf("%w: custom uploader requires spec_path", uploader.ErrNotConfigured)
	}

	spec, err := LoadSpec(path)
	if err != nil {
		return err
	}
	p.spec = spec
	if spec.MaxUploadMB > 0 {
		p.maxBytes = spec.MaxUploadMB << 20
	}

	if sec, ok := configInt(config["timeout_sec"]); ok && sec > 0 {
		p.client.Timeout = time.Duration(sec) * time.Second
	}
	if mb, ok := configInt(config["max_upload_mb"]); ok && mb > 0 {
		p.maxBytes = mb << 20
	}
	return nil
}

// Upload implements uploader.Uploader.
func (p *Custom) Upload(ctx context.Context, file uploader.File) (string, error) {
	if p.spec == nil {
		return "", uploader.ErrNotConfigured
	}
	if err := checkFile(file, p.maxBytes); err != nil {
		return "", err
	}

	status, body, err := sendMultipart(ctx, p.client, p.spec.Method, p.spec.Endpoint,
		p.spec.Headers, p.spec.Fields, p.spec.FileField, file)
	if err != nil {
		return "", fmt.Errorf("custom: %w", err)
	}

	if p.spec.Response.URLPath == "" {
		// Plain-text protocol: the whole body is the URL.
		if !statusOK(status) {
			return "", &uploader.APIError{Provider: p.Name(), StatusCode: status, Message: snippet(body)}
		}
		text := strings.TrimSpace(string(body))
		if text == "" {
			return "", uploader.ErrNoURL
		}
		return text, nil
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		if !statusOK(status) {
			return "", &uploader.APIError{Provider: p.Name(), StatusCode: status, Message: snippet(body)}
		}
		return "", fmt.Errorf("custom: decode response: %w", err)
	}

	if !statusOK(status) {
		msg := snippet(body)
		if m, ok := walkPath(doc, p.spec.Response.ErrorPath); ok && m != "" {
			msg = m
		}
		return "", &uploader.APIError{Provider: p.Name(), StatusCode: status, Message: msg}
	}

	url, ok := walkPath(doc, p.spec.Response.URLPath)
	if !ok || url == "" {
		return "", uploader.ErrNoURL
	}
	return url, nil
}

// walkPath returns the string at a dotted path in decoded JSON.
func walkPath(doc any, path string) (string, bool) {
	if path == "" {
		return "", false
	}
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur, ok = m[seg]
		if !ok {
			return "", false
		}
	}
	s, ok := cur.(string)
	return s, ok
}
