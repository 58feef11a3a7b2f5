package schemavalidation

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"pasteup/internal/providers"
)

type schemaCase struct {
	name         string
	schemaPath   string
	instancePath string
}

func TestSchemaValidation(t *testing.T) {
	repoRoot := repoRoot(t)
	cases := []schemaCase{
		{
			name:         "uploader-spec",
			schemaPath:   filepath.Join(repoRoot, "docs", "schema", "uploader-spec-v1.schema.json"),
			instancePath: filepath.Join(repoRoot, "docs", "spec", "fixtures", "uploader-spec-v1.json"),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			validateInstance(t, tc.schemaPath, tc.instancePath)
		})
	}
}

// The schema the daemon enforces is embedded in the providers package;
// the copy under docs/schema is the published form of the same
// contract. This test fails when the two drift apart.
func TestPublishedSchemaMatchesEmbedded(t *testing.T) {
	published, err := os.ReadFile(filepath.Join(repoRoot(t), "docs", "schema", "uploader-spec-v1.schema.json"))
	if err != nil {
		t.Fatalf("read published schema: %v", err)
	}

	var docsForm, embeddedForm any
	if err := json.Unmarshal(published, &docsForm); err != nil {
		t.Fatalf("unmarshal published schema: %v", err)
	}
	if err := json.Unmarshal([]byte(providers.SpecSchemaJSON), &embeddedForm); err != nil {
		t.Fatalf("unmarshal embedded schema: %v", err)
	}

	if !reflect.DeepEqual(docsForm, embeddedForm) {
		t.Fatal("docs/schema/uploader-spec-v1.schema.json differs from providers.SpecSchemaJSON")
	}
}

// The documented example must load through the real spec parser, not
// just the schema.
func TestFixtureParsesAsSpec(t *testing.T) {
	data, err := os.ReadFile(filepath.Join(repoRoot(t), "docs", "spec", "fixtures", "uploader-spec-v1.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	spec, err := providers.ParseSpec(data)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}

	if spec.Name != "smoke.pics" {
		t.Errorf("name = %q, want smoke.pics", spec.Name)
	}
	if spec.Endpoint != "https://smoke.pics/api/upload" {
		t.Errorf("endpoint = %q", spec.Endpoint)
	}
	if spec.FileField != "file" {
		t.Errorf("file_field = %q, want file", spec.FileField)
	}
	if spec.Response.URLPath != "data.url" {
		t.Errorf("response.url_path = %q, want data.url", spec.Response.URLPath)
	}
}

func TestPublishedSchemaRejectsUnknownKeys(t *testing.T) {
	schemaPath := filepath.Join(repoRoot(t), "docs", "schema", "uploader-spec-v1.schema.json")
	schema := compileSchema(t, schemaPath)

	var instance any
	bad := `{"name": "x", "endpoint": "https://x.example", "file_field": "f", "surprise": true}`
	if err := json.Unmarshal([]byte(bad), &instance); err != nil {
		t.Fatalf("unmarshal instance: %v", err)
	}

	if err := schema.Validate(instance); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func validateInstance(t *testing.T, schemaPath, instancePath string) {
	instanceData, err := os.ReadFile(instancePath)
	if err != nil {
		t.Fatalf("read instance: %v", err)
	}

	var instance any
	if err := json.Unmarshal(instanceData, &instance); err != nil {
		t.Fatalf("unmarshal instance: %v", err)
	}

	schema := compileSchema(t, schemaPath)
	if err := schema.Validate(instance); err != nil {
		t.Fatalf("schema validation failed for %s: %v", filepath.Base(instancePath), err)
	}
}

func compileSchema(t *testing.T, schemaPath string) *jsonschema.Schema {
	t.Helper()

	schemaData, err := os.ReadFile(schemaPath)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaPath, bytes.NewReader(schemaData)); err != nil {
		t.Fatalf("add schema resource: %v", err)
	}
	schema, err := compiler.Compile(schemaPath)
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	return schema
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("unable to resolve caller path")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
